package arcfs

import (
	"context"
	"errors"
	"io"
)

// ErrReadOnly is returned when a write operation is attempted on a read-only filesystem.
var ErrReadOnly = errors.New("filesystem is read-only")

// ReadOnlyFileSystem wraps a FileSystem to prevent all write operations.
// Archives stored on it are read-only as well, since every archive mutation
// rewrites the container through Write.
//
// Example:
//
//	fs, _ := local.NewOS("/data")
//	core, _ := archive.Init(ctx, arcfs.NewReadOnlyFileSystem(fs))
//
//	// Reads work normally
//	file, _ := core.File(ctx, "backup.arc/notes.txt")
//	data, _ := file.ReadAll(ctx)
//
//	// Anything that writes fails with ErrReadOnly
//	err := file.Delete(ctx)
type ReadOnlyFileSystem struct {
	fs   FileSystem
	opts ReadOnlyOptions
}

// ReadOnlyOptions configures the ReadOnlyFileSystem behavior.
type ReadOnlyOptions struct {
	// AllowCreateDir permits directory creation even in read-only mode.
	// Default: false
	AllowCreateDir bool

	// OnWriteAttempt is called when a write operation is attempted.
	// If it returns nil, the write is allowed.
	OnWriteAttempt func(op, path string) error
}

// ReadOnlyOption is a functional option for configuring ReadOnlyFileSystem.
type ReadOnlyOption func(*ReadOnlyOptions)

// WithAllowCreateDir allows directory creation in read-only mode.
func WithAllowCreateDir(allow bool) ReadOnlyOption {
	return func(o *ReadOnlyOptions) {
		o.AllowCreateDir = allow
	}
}

// WithWriteAttemptHandler sets a custom handler for write attempts.
func WithWriteAttemptHandler(handler func(op, path string) error) ReadOnlyOption {
	return func(o *ReadOnlyOptions) {
		o.OnWriteAttempt = handler
	}
}

// NewReadOnlyFileSystem creates a read-only wrapper around a FileSystem.
func NewReadOnlyFileSystem(fs FileSystem, opts ...ReadOnlyOption) *ReadOnlyFileSystem {
	options := ReadOnlyOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	return &ReadOnlyFileSystem{
		fs:   fs,
		opts: options,
	}
}

// Unwrap returns the underlying FileSystem.
func (r *ReadOnlyFileSystem) Unwrap() FileSystem {
	return r.fs
}

// readOnlyError returns the error for a write operation, or nil when the
// write attempt handler lets it through.
func (r *ReadOnlyFileSystem) readOnlyError(op, path string) error {
	if r.opts.OnWriteAttempt != nil {
		if err := r.opts.OnWriteAttempt(op, path); err != nil {
			return &PathError{Op: op, Path: path, Err: err}
		}
		return nil
	}
	return &PathError{Op: op, Path: path, Err: ErrReadOnly}
}

// FileExists delegates to the underlying filesystem.
func (r *ReadOnlyFileSystem) FileExists(ctx context.Context, path string) (bool, error) {
	return r.fs.FileExists(ctx, path)
}

// DirExists delegates to the underlying filesystem.
func (r *ReadOnlyFileSystem) DirExists(ctx context.Context, path string) (bool, error) {
	return r.fs.DirExists(ctx, path)
}

// ReadDir delegates to the underlying filesystem.
func (r *ReadOnlyFileSystem) ReadDir(ctx context.Context, path string) ([]FileInfo, error) {
	return r.fs.ReadDir(ctx, path)
}

// ReadAll delegates to the underlying filesystem.
func (r *ReadOnlyFileSystem) ReadAll(ctx context.Context, path string) ([]byte, error) {
	return r.fs.ReadAll(ctx, path)
}

// CreateDir returns ErrReadOnly unless AllowCreateDir is enabled.
func (r *ReadOnlyFileSystem) CreateDir(ctx context.Context, path string) error {
	if !r.opts.AllowCreateDir {
		if err := r.readOnlyError("createdir", path); err != nil {
			return err
		}
	}
	return r.fs.CreateDir(ctx, path)
}

// CreateFile returns ErrReadOnly.
func (r *ReadOnlyFileSystem) CreateFile(ctx context.Context, path string) error {
	if err := r.readOnlyError("createfile", path); err != nil {
		return err
	}
	return r.fs.CreateFile(ctx, path)
}

// OpenFile returns ErrReadOnly; streams are always writable. Use ReadAll.
func (r *ReadOnlyFileSystem) OpenFile(ctx context.Context, path string, overwrite bool) (Stream, error) {
	if err := r.readOnlyError("open", path); err != nil {
		return nil, err
	}
	return r.fs.OpenFile(ctx, path, overwrite)
}

// Move returns ErrReadOnly.
func (r *ReadOnlyFileSystem) Move(ctx context.Context, src, dst string) error {
	if err := r.readOnlyError("move", dst); err != nil {
		return err
	}
	return r.fs.Move(ctx, src, dst)
}

// Delete returns ErrReadOnly.
func (r *ReadOnlyFileSystem) Delete(ctx context.Context, path string) error {
	if err := r.readOnlyError("delete", path); err != nil {
		return err
	}
	return r.fs.Delete(ctx, path)
}

// Write returns ErrReadOnly.
func (r *ReadOnlyFileSystem) Write(ctx context.Context, path string, content io.Reader) error {
	if err := r.readOnlyError("write", path); err != nil {
		return err
	}
	return r.fs.Write(ctx, path, content)
}

// Watch delegates to the underlying filesystem if supported.
func (r *ReadOnlyFileSystem) Watch(ctx context.Context, pattern string) (ChangeToken, error) {
	if watcher, ok := r.fs.(CanWatch); ok {
		return watcher.Watch(ctx, pattern)
	}
	return nil, &PathError{Op: "watch", Path: pattern, Err: ErrNotSupported}
}

// Ensure ReadOnlyFileSystem implements FileSystem and CanWatch
var (
	_ FileSystem = (*ReadOnlyFileSystem)(nil)
	_ CanWatch   = (*ReadOnlyFileSystem)(nil)
)

// IsReadOnlyError checks if an error is due to read-only restrictions.
func IsReadOnlyError(err error) bool {
	return errors.Is(err, ErrReadOnly)
}
