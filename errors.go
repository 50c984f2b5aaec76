package arcfs

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrNotExist     = errors.New("file does not exist")
	ErrExist        = errors.New("file already exists")
	ErrNotDir       = errors.New("not a directory")
	ErrIsDir        = errors.New("is a directory")
	ErrInvalidName  = errors.New("invalid name")
	ErrNotSupported = errors.New("operation not supported")
	ErrNotAllowed   = errors.New("operation not allowed")
	ErrClosed       = errors.New("stream already closed")

	// ErrUnsupportedEntryKind is returned when a resolved entry is not of the
	// kind the caller asked for.
	ErrUnsupportedEntryKind = errors.New("unsupported entry kind")

	// ErrUnimplemented is returned for operations that have no implementation
	// for a given entry kind (deleting archives and archive directories).
	ErrUnimplemented = errors.New("operation not implemented")

	// ErrNotInitialized is returned when the archive registry is queried
	// before its startup scan completed.
	ErrNotInitialized = errors.New("archive registry not initialized")
)

// PathError records an error and the operation and file path that caused it
type PathError struct {
	Op   string
	Path string
	Err  error
}

// Error implements the error interface
func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error
func (e *PathError) Unwrap() error {
	return e.Err
}

// WrapPathErr wraps err into a *PathError. A nil err stays nil.
func WrapPathErr(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &PathError{Op: op, Path: path, Err: err}
}

// IsNotExist reports whether an error indicates that a file or directory
// does not exist
func IsNotExist(err error) bool {
	return errors.Is(err, ErrNotExist)
}

// IsExist reports whether an error indicates that a file or directory
// already exists
func IsExist(err error) bool {
	return errors.Is(err, ErrExist)
}

// IsUnimplemented reports whether err is an unimplemented-operation failure.
func IsUnimplemented(err error) bool {
	return errors.Is(err, ErrUnimplemented)
}

// IsNotInitialized reports whether err was caused by using the archive
// registry before it was scanned.
func IsNotInitialized(err error) bool {
	return errors.Is(err, ErrNotInitialized)
}
