package local

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gobeaver/arcfs"
	"github.com/spf13/afero"
)

// Adapter provides the filesystem backend of arcfs over an afero.Fs.
type Adapter struct {
	fs     afero.Fs
	root   string // absolute OS root, empty when not backed by the OS
	logger *slog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the logger used for watch errors.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New creates an adapter over an arbitrary afero filesystem.
func New(fsys afero.Fs, opts ...Option) *Adapter {
	a := &Adapter{
		fs:     fsys,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewOS creates an adapter rooted at a directory of the OS filesystem.
func NewOS(root string, opts ...Option) (*Adapter, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	// Ensure the root directory exists
	if err := os.MkdirAll(absRoot, 0755); err != nil {
		return nil, err
	}

	a := New(afero.NewBasePathFs(afero.NewOsFs(), absRoot), opts...)
	a.root = absRoot
	return a, nil
}

// NewMemory creates an adapter over an in-memory filesystem.
func NewMemory(opts ...Option) *Adapter {
	return New(afero.NewMemMapFs(), opts...)
}

// Fs returns the underlying afero filesystem.
func (a *Adapter) Fs() afero.Fs {
	return a.fs
}

// resolve maps an arcfs path to an afero path rooted at "/".
// Paths escaping the root are rejected.
func (a *Adapter) resolve(op, p string) (string, error) {
	normalized := arcfs.NormalizePath(p)
	for _, segment := range strings.Split(normalized, "/") {
		if segment == ".." {
			return "", &arcfs.PathError{Op: op, Path: p, Err: arcfs.ErrNotAllowed}
		}
	}
	return path.Clean("/" + normalized), nil
}

func pathErr(op, p string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return &arcfs.PathError{Op: op, Path: p, Err: arcfs.ErrNotExist}
	}
	if errors.Is(err, fs.ErrExist) {
		return &arcfs.PathError{Op: op, Path: p, Err: arcfs.ErrExist}
	}
	return &arcfs.PathError{Op: op, Path: p, Err: err}
}

func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// FileExists implements arcfs.FileSystem
func (a *Adapter) FileExists(ctx context.Context, p string) (bool, error) {
	if err := checkContext(ctx); err != nil {
		return false, err
	}

	fullPath, err := a.resolve("fileexists", p)
	if err != nil {
		return false, err
	}

	info, err := a.fs.Stat(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, pathErr("fileexists", p, err)
	}

	// Return true only if it's a file (not a directory)
	return !info.IsDir(), nil
}

// DirExists implements arcfs.FileSystem
func (a *Adapter) DirExists(ctx context.Context, p string) (bool, error) {
	if err := checkContext(ctx); err != nil {
		return false, err
	}

	fullPath, err := a.resolve("direxists", p)
	if err != nil {
		return false, err
	}

	info, err := a.fs.Stat(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, pathErr("direxists", p, err)
	}

	// Return true only if it's a directory
	return info.IsDir(), nil
}

// CreateDir implements arcfs.FileSystem
func (a *Adapter) CreateDir(ctx context.Context, p string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	fullPath, err := a.resolve("createdir", p)
	if err != nil {
		return err
	}

	if err := a.fs.MkdirAll(fullPath, 0755); err != nil {
		return pathErr("createdir", p, err)
	}
	return nil
}

// CreateFile implements arcfs.FileSystem
func (a *Adapter) CreateFile(ctx context.Context, p string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	fullPath, err := a.resolve("createfile", p)
	if err != nil {
		return err
	}

	f, err := a.fs.OpenFile(fullPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return pathErr("createfile", p, err)
	}
	if err := f.Close(); err != nil {
		return pathErr("createfile", p, err)
	}
	return nil
}

// fileStream adapts afero.File to arcfs.Stream.
type fileStream struct {
	afero.File
}

// Flush commits the file to stable storage.
func (s fileStream) Flush() error {
	return s.Sync()
}

// OpenFile implements arcfs.FileSystem
func (a *Adapter) OpenFile(ctx context.Context, p string, overwrite bool) (arcfs.Stream, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	fullPath, err := a.resolve("open", p)
	if err != nil {
		return nil, err
	}

	flag := os.O_RDWR | os.O_CREATE
	if overwrite {
		flag |= os.O_TRUNC
	}

	f, err := a.fs.OpenFile(fullPath, flag, 0644)
	if err != nil {
		return nil, pathErr("open", p, err)
	}
	return fileStream{File: f}, nil
}

// Move implements arcfs.FileSystem
func (a *Adapter) Move(ctx context.Context, src, dst string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	srcPath, err := a.resolve("move", src)
	if err != nil {
		return err
	}
	dstPath, err := a.resolve("move", dst)
	if err != nil {
		return err
	}

	// Check source exists
	if _, err := a.fs.Stat(srcPath); err != nil {
		return pathErr("move", src, err)
	}

	// A case-only rename targets the source itself
	if !strings.EqualFold(srcPath, dstPath) {
		if _, err := a.fs.Stat(dstPath); err == nil {
			return pathErr("move", dst, fs.ErrExist)
		}
	}

	if err := a.fs.Rename(srcPath, dstPath); err != nil {
		return pathErr("move", src, err)
	}
	return nil
}

// Delete implements arcfs.FileSystem
func (a *Adapter) Delete(ctx context.Context, p string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	fullPath, err := a.resolve("delete", p)
	if err != nil {
		return err
	}

	if _, err := a.fs.Stat(fullPath); err != nil {
		return pathErr("delete", p, err)
	}
	if err := a.fs.Remove(fullPath); err != nil {
		return pathErr("delete", p, err)
	}
	return nil
}

// ReadDir implements arcfs.FileSystem
func (a *Adapter) ReadDir(ctx context.Context, p string) ([]arcfs.FileInfo, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	fullPath, err := a.resolve("readdir", p)
	if err != nil {
		return nil, err
	}

	entries, err := afero.ReadDir(a.fs, fullPath)
	if err != nil {
		return nil, pathErr("readdir", p, err)
	}

	dir := strings.TrimPrefix(fullPath, "/")
	files := make([]arcfs.FileInfo, 0, len(entries))
	for _, info := range entries {
		entryPath := info.Name()
		if dir != "" {
			entryPath = dir + "/" + info.Name()
		}
		files = append(files, arcfs.FileInfo{
			Name:    info.Name(),
			Path:    entryPath,
			Size:    info.Size(),
			ModTime: info.ModTime(),
			IsDir:   info.IsDir(),
		})
	}
	return files, nil
}

// ReadAll implements arcfs.FileSystem
func (a *Adapter) ReadAll(ctx context.Context, p string) ([]byte, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	fullPath, err := a.resolve("read", p)
	if err != nil {
		return nil, err
	}

	data, err := afero.ReadFile(a.fs, fullPath)
	if err != nil {
		return nil, pathErr("read", p, err)
	}
	return data, nil
}

// Write implements arcfs.FileSystem
func (a *Adapter) Write(ctx context.Context, p string, r io.Reader) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	fullPath, err := a.resolve("write", p)
	if err != nil {
		return err
	}

	if err := afero.WriteReader(a.fs, fullPath, r); err != nil {
		return pathErr("write", p, err)
	}
	return nil
}

// Ensure Adapter implements interfaces
var (
	_ arcfs.FileSystem = (*Adapter)(nil)
	_ arcfs.CanWatch   = (*Adapter)(nil)
)
