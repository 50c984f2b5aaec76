package arcfs

import (
	"context"
	"io"
	"time"
)

// FileInfo represents file/directory metadata
type FileInfo struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
	IsDir   bool
}

// Stream is a read/write byte stream over a file's content.
// Writes become durable on Flush or Close.
type Stream interface {
	io.Reader
	io.Writer
	io.Seeker
	io.Closer
	Flush() error
}

// ============================================================================
// Filesystem Backend
// ============================================================================

// FileSystem provides the OS side of the unified view.
// All paths are relative to the backend's root and use '/' as separator.
type FileSystem interface {
	// FileExists checks if a regular file exists at path.
	FileExists(ctx context.Context, path string) (bool, error)

	// DirExists checks if a directory exists at path.
	DirExists(ctx context.Context, path string) (bool, error)

	// CreateDir creates a directory (and parents if needed).
	CreateDir(ctx context.Context, path string) error

	// CreateFile creates an empty file, truncating an existing one.
	CreateFile(ctx context.Context, path string) error

	// OpenFile opens a file for reading and writing. With overwrite the
	// file is truncated, otherwise it is opened or created.
	OpenFile(ctx context.Context, path string, overwrite bool) (Stream, error)

	// Move renames src to dst.
	Move(ctx context.Context, src, dst string) error

	// Delete removes a file or an empty directory.
	Delete(ctx context.Context, path string) error

	// ReadDir lists the immediate children of a directory.
	ReadDir(ctx context.Context, path string) ([]FileInfo, error)

	// ReadAll reads entire file into memory.
	ReadAll(ctx context.Context, path string) ([]byte, error)

	// Write replaces the content of path with everything read from r.
	Write(ctx context.Context, path string, r io.Reader) error
}

// CanWatch indicates the filesystem supports change notifications.
// Not all backends support watching - check with type assertion.
type CanWatch interface {
	// Watch creates a change token for the specified glob pattern.
	// The token signals when any matching file is created, modified, or deleted.
	Watch(ctx context.Context, pattern string) (ChangeToken, error)
}

// ============================================================================
// Archive Backend
// ============================================================================

// ArchiveHandle refers to one archive container known to the backend.
type ArchiveHandle interface {
	Name() string
	// Path is the archive's canonical path; it follows renames of the
	// archive and of the archives it is nested in.
	Path() string
}

// EntryHandle is a directory or file record inside an archive.
type EntryHandle interface {
	Name() string
	Path() string
}

// DirHandle refers to a directory record inside an archive. The root
// directory of an archive has the archive's path.
type DirHandle interface {
	EntryHandle
	IsDir() bool
}

// FileHandle refers to a file record inside an archive. Path is empty once
// the record has been deleted.
type FileHandle interface {
	EntryHandle
	Size() int64
}

// EntryInfo is one item of an archive directory listing.
type EntryInfo struct {
	Name  string
	IsDir bool
}

// ArchiveBackend owns the archive container format.
type ArchiveBackend interface {
	// CreateArchive creates an empty archive file at path on the filesystem.
	CreateArchive(ctx context.Context, path string) (ArchiveHandle, error)

	// CreateNestedArchive creates an empty archive as a record of parent.
	CreateNestedArchive(ctx context.Context, parent DirHandle, name string) (ArchiveHandle, error)

	// RenameArchive renames the archive record. For archives stored on the
	// filesystem only the record changes; moving the file is up to the caller.
	RenameArchive(ctx context.Context, archive ArchiveHandle, newName string) error

	// RootDirectory returns the root directory of archive.
	RootDirectory(ctx context.Context, archive ArchiveHandle) (DirHandle, error)

	// FindDirectory looks up a directory of archive by its full path,
	// case-insensitively. It returns nil on a miss.
	FindDirectory(ctx context.Context, archive ArchiveHandle, path string) (DirHandle, error)

	// FindFile looks up a file of dir by name, case-insensitively.
	// It returns nil on a miss.
	FindFile(ctx context.Context, dir DirHandle, name string) (FileHandle, error)

	// CreateDirectory creates a directory record inside parent.
	CreateDirectory(ctx context.Context, parent DirHandle, name string) (DirHandle, error)

	// RenameEntry renames a directory or file record.
	RenameEntry(ctx context.Context, entry EntryHandle, newName string) error

	// DeleteFile removes a file record.
	DeleteFile(ctx context.Context, file FileHandle) error

	// ListDirectory lists the immediate entries of dir.
	ListDirectory(ctx context.Context, dir DirHandle) ([]EntryInfo, error)

	// ReadFileBytes returns the file content. Empty and absent content both
	// yield a zero-length, non-nil slice.
	ReadFileBytes(ctx context.Context, file FileHandle) ([]byte, error)

	// WriteFileBytes writes data as the content of file name in dir,
	// creating the record if needed.
	WriteFileBytes(ctx context.Context, dir DirHandle, name string, data []byte, appendData bool) (FileHandle, error)
}

// ArchiveRegistry knows which archives exist.
type ArchiveRegistry interface {
	// FindArchive returns the archive whose path case-insensitively equals
	// path, or nil. It fails with ErrNotInitialized before the startup scan.
	FindArchive(ctx context.Context, path string) (ArchiveHandle, error)

	// Register adds a newly created archive. It replaces any archive
	// registered under the same path.
	Register(archive ArchiveHandle) error

	// Relocate re-points the archives stored below oldDir after the
	// directory was moved to newDir.
	Relocate(ctx context.Context, oldDir, newDir string) error
}

// ============================================================================
// Change tokens
// ============================================================================

// ChangeToken represents a change notification token.
//
// Consumers can either:
// 1. Poll HasChanged() periodically
// 2. Register a callback via RegisterChangeCallback()
type ChangeToken interface {
	// HasChanged returns true if a change has occurred.
	// Once true, it remains true (tokens are single-use).
	HasChanged() bool

	// ActiveChangeCallbacks indicates if the token proactively raises callbacks.
	ActiveChangeCallbacks() bool

	// RegisterChangeCallback registers a callback to be invoked when change occurs.
	// Returns a function to unregister the callback.
	RegisterChangeCallback(callback func()) (unregister func())
}
