package arcfs

import (
	"context"
	"log/slog"
)

// Core resolves paths into entry trees over one filesystem backend, one
// archive backend and the registry of known archives.
//
// Core does no locking. Callers that share it between goroutines must
// serialize access.
type Core struct {
	fs       FileSystem
	archives ArchiveBackend
	registry ArchiveRegistry
	matcher  *ArchiveMatcher
	logger   *slog.Logger
}

// New creates a Core over the given collaborators.
func New(fs FileSystem, archives ArchiveBackend, registry ArchiveRegistry, options ...Option) (*Core, error) {
	opts := processOptions(options...)

	matcher, err := NewArchiveMatcher(opts.ArchiveExtension)
	if err != nil {
		return nil, err
	}

	return &Core{
		fs:       fs,
		archives: archives,
		registry: registry,
		matcher:  matcher,
		logger:   opts.Logger,
	}, nil
}

// Matcher returns the archive name matcher in use.
func (c *Core) Matcher() *ArchiveMatcher {
	return c.matcher
}

// Resolve resolves path into an entry of any kind.
func (c *Core) Resolve(ctx context.Context, path string) (*Entry, error) {
	n, err := c.resolve(ctx, path)
	if err != nil {
		return nil, err
	}
	return &Entry{node: n}, nil
}

// Directory resolves path into a directory-like entry: a system directory,
// an archive or a directory inside an archive.
func (c *Core) Directory(ctx context.Context, path string) (*Directory, error) {
	n, err := c.resolve(ctx, path)
	if err != nil {
		return nil, err
	}
	return newDirectory(n)
}

// File resolves path into a file entry: a system file or a file inside an
// archive.
func (c *Core) File(ctx context.Context, path string) (*File, error) {
	n, err := c.resolve(ctx, path)
	if err != nil {
		return nil, err
	}
	return newFile(n)
}
