package archive

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/gobeaver/arcfs"
)

// Backend implements arcfs.ArchiveBackend over zip containers stored on an
// arcfs.FileSystem. Archives are held in memory and every mutation rewrites
// the container holding the changed record.
type Backend struct {
	fs      arcfs.FileSystem
	matcher *arcfs.ArchiveMatcher
	logger  *slog.Logger
}

// NewBackend creates an archive backend storing containers on fs.
func NewBackend(fs arcfs.FileSystem, options ...Option) (*Backend, error) {
	opts := processOptions(options...)

	matcher, err := arcfs.NewArchiveMatcher(opts.ArchiveExtension)
	if err != nil {
		return nil, err
	}

	return &Backend{
		fs:      fs,
		matcher: matcher,
		logger:  opts.Logger,
	}, nil
}

// Matcher returns the matcher used to recognize nested archives.
func (b *Backend) Matcher() *arcfs.ArchiveMatcher {
	return b.matcher
}

// Open loads the archive stored at p on the filesystem.
func (b *Backend) Open(ctx context.Context, p string) (*Archive, error) {
	p = cleanPath(p)
	data, err := b.fs.ReadAll(ctx, p)
	if err != nil {
		return nil, err
	}

	a := newArchive(p, nil)
	if err := b.decode(a, data); err != nil {
		return nil, &arcfs.PathError{Op: "open", Path: p, Err: err}
	}
	return a, nil
}

// save rewrites the container of a. A nested archive is written into its
// host record, which in turn saves the enclosing archive.
func (b *Backend) save(ctx context.Context, a *Archive) error {
	data, err := encode(a.root)
	if err != nil {
		return &arcfs.PathError{Op: "save", Path: a.Path(), Err: err}
	}

	if a.host != nil {
		host := a.host
		if host.dir == nil {
			return &arcfs.PathError{Op: "save", Path: a.Name(), Err: arcfs.ErrNotExist}
		}
		host.data = data
		host.digest = arcfs.Digest(data)
		host.modified = time.Now()
		return b.save(ctx, host.dir.archive)
	}

	b.logger.Debug("saving archive",
		slog.String("path", a.path),
		slog.Int("size", len(data)))

	return b.fs.Write(ctx, a.path, bytes.NewReader(data))
}

// CreateArchive implements arcfs.ArchiveBackend
func (b *Backend) CreateArchive(ctx context.Context, p string) (arcfs.ArchiveHandle, error) {
	p = cleanPath(p)
	exists, err := b.fs.FileExists(ctx, p)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, &arcfs.PathError{Op: "createarchive", Path: p, Err: arcfs.ErrExist}
	}

	a := newArchive(p, nil)
	if err := b.save(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// CreateNestedArchive implements arcfs.ArchiveBackend
func (b *Backend) CreateNestedArchive(ctx context.Context, parent arcfs.DirHandle, name string) (arcfs.ArchiveHandle, error) {
	d, err := asDir("createarchive", parent)
	if err != nil {
		return nil, err
	}
	if err := validName("createarchive", name); err != nil {
		return nil, err
	}
	if d.taken(name, nil) {
		return nil, &arcfs.PathError{Op: "createarchive", Path: d.Path() + "/" + name, Err: arcfs.ErrExist}
	}

	host := &File{dir: d, name: name, modified: time.Now()}
	nested := newArchive("", host)
	data, err := encode(nested.root)
	if err != nil {
		return nil, &arcfs.PathError{Op: "createarchive", Path: d.Path() + "/" + name, Err: err}
	}
	host.data = data
	host.digest = arcfs.Digest(data)
	host.nested = nested
	d.files = append(d.files, host)

	if err := b.save(ctx, d.archive); err != nil {
		return nil, err
	}
	return nested, nil
}

// RenameArchive implements arcfs.ArchiveBackend
func (b *Backend) RenameArchive(ctx context.Context, archive arcfs.ArchiveHandle, newName string) error {
	a, err := asArchive("renamearchive", archive)
	if err != nil {
		return err
	}
	if a.host != nil {
		return b.renameFile(ctx, a.host, newName)
	}
	if err := validName("renamearchive", newName); err != nil {
		return err
	}

	newPath := newName
	if i := strings.LastIndexByte(a.path, '/'); i >= 0 {
		newPath = a.path[:i+1] + newName
	}
	if !strings.EqualFold(newPath, a.path) {
		taken, err := b.occupied(ctx, newPath)
		if err != nil {
			return err
		}
		if taken {
			return &arcfs.PathError{Op: "renamearchive", Path: newPath, Err: arcfs.ErrExist}
		}
	}

	a.path = newPath
	return nil
}

// occupied reports whether p names a file or directory of the filesystem.
func (b *Backend) occupied(ctx context.Context, p string) (bool, error) {
	ok, err := b.fs.FileExists(ctx, p)
	if err != nil || ok {
		return ok, err
	}
	return b.fs.DirExists(ctx, p)
}

// RootDirectory implements arcfs.ArchiveBackend
func (b *Backend) RootDirectory(ctx context.Context, archive arcfs.ArchiveHandle) (arcfs.DirHandle, error) {
	a, err := asArchive("root", archive)
	if err != nil {
		return nil, err
	}
	return a.root, nil
}

// FindDirectory implements arcfs.ArchiveBackend
func (b *Backend) FindDirectory(ctx context.Context, archive arcfs.ArchiveHandle, p string) (arcfs.DirHandle, error) {
	a, err := asArchive("finddir", archive)
	if err != nil {
		return nil, err
	}

	p = cleanPath(p)
	archivePath := a.Path()
	if archivePath == "" {
		return nil, nil
	}
	if strings.EqualFold(p, archivePath) {
		return a.root, nil
	}
	prefix := archivePath + "/"
	if len(p) <= len(prefix) || !strings.EqualFold(p[:len(prefix)], prefix) {
		return nil, nil
	}

	d := a.root
	for _, segment := range strings.Split(p[len(prefix):], "/") {
		if segment == "" {
			continue
		}
		if d = d.dir(segment); d == nil {
			return nil, nil
		}
	}
	return d, nil
}

// FindFile implements arcfs.ArchiveBackend
func (b *Backend) FindFile(ctx context.Context, dir arcfs.DirHandle, name string) (arcfs.FileHandle, error) {
	d, err := asDir("findfile", dir)
	if err != nil {
		return nil, err
	}
	if f := d.file(name); f != nil {
		return f, nil
	}
	return nil, nil
}

// CreateDirectory implements arcfs.ArchiveBackend
func (b *Backend) CreateDirectory(ctx context.Context, parent arcfs.DirHandle, name string) (arcfs.DirHandle, error) {
	d, err := asDir("createdir", parent)
	if err != nil {
		return nil, err
	}
	if err := validName("createdir", name); err != nil {
		return nil, err
	}
	if existing := d.dir(name); existing != nil {
		return existing, nil
	}
	if d.file(name) != nil {
		return nil, &arcfs.PathError{Op: "createdir", Path: d.Path() + "/" + name, Err: arcfs.ErrExist}
	}

	sub := &Dir{archive: d.archive, parent: d, name: name}
	d.dirs = append(d.dirs, sub)

	if err := b.save(ctx, d.archive); err != nil {
		return nil, err
	}
	return sub, nil
}

// RenameEntry implements arcfs.ArchiveBackend
func (b *Backend) RenameEntry(ctx context.Context, entry arcfs.EntryHandle, newName string) error {
	switch e := entry.(type) {
	case *Dir:
		if e == nil {
			return &arcfs.PathError{Op: "rename", Err: arcfs.ErrNotExist}
		}
		if e.parent == nil {
			return b.RenameArchive(ctx, e.archive, newName)
		}
		if err := validName("rename", newName); err != nil {
			return err
		}
		if e.parent.taken(newName, e) {
			return &arcfs.PathError{Op: "rename", Path: e.parent.Path() + "/" + newName, Err: arcfs.ErrExist}
		}
		e.name = newName
		return b.save(ctx, e.archive)

	case *File:
		if e == nil {
			return &arcfs.PathError{Op: "rename", Err: arcfs.ErrNotExist}
		}
		return b.renameFile(ctx, e, newName)
	}

	return &arcfs.PathError{Op: "rename", Err: arcfs.ErrNotSupported}
}

func (b *Backend) renameFile(ctx context.Context, f *File, newName string) error {
	if err := validName("rename", newName); err != nil {
		return err
	}
	if f.dir == nil {
		return &arcfs.PathError{Op: "rename", Path: f.name, Err: arcfs.ErrNotExist}
	}
	if f.dir.taken(newName, f) {
		return &arcfs.PathError{Op: "rename", Path: f.dir.Path() + "/" + newName, Err: arcfs.ErrExist}
	}
	f.name = newName
	return b.save(ctx, f.dir.archive)
}

// DeleteFile implements arcfs.ArchiveBackend
func (b *Backend) DeleteFile(ctx context.Context, file arcfs.FileHandle) error {
	f, err := asFile("delete", file)
	if err != nil {
		return err
	}
	if f.dir == nil {
		return &arcfs.PathError{Op: "delete", Path: f.name, Err: arcfs.ErrNotExist}
	}

	d := f.dir
	d.removeFile(f)
	f.dir = nil
	return b.save(ctx, d.archive)
}

// ListDirectory implements arcfs.ArchiveBackend
func (b *Backend) ListDirectory(ctx context.Context, dir arcfs.DirHandle) ([]arcfs.EntryInfo, error) {
	d, err := asDir("list", dir)
	if err != nil {
		return nil, err
	}
	return d.entries(), nil
}

// ReadFileBytes implements arcfs.ArchiveBackend
func (b *Backend) ReadFileBytes(ctx context.Context, file arcfs.FileHandle) ([]byte, error) {
	f, err := asFile("read", file)
	if err != nil {
		return nil, err
	}
	data := make([]byte, len(f.data))
	copy(data, f.data)
	return data, nil
}

// WriteFileBytes implements arcfs.ArchiveBackend
func (b *Backend) WriteFileBytes(ctx context.Context, dir arcfs.DirHandle, name string, data []byte, appendData bool) (arcfs.FileHandle, error) {
	d, err := asDir("write", dir)
	if err != nil {
		return nil, err
	}
	if err := validName("write", name); err != nil {
		return nil, err
	}

	f := d.file(name)
	created := false
	if f == nil {
		if d.dir(name) != nil {
			return nil, &arcfs.PathError{Op: "write", Path: d.Path() + "/" + name, Err: arcfs.ErrIsDir}
		}
		f = &File{dir: d, name: name, data: []byte{}}
		d.files = append(d.files, f)
		created = true
	}

	content := make([]byte, 0, len(data))
	if appendData {
		content = append(content, f.data...)
	}
	content = append(content, data...)

	digest := arcfs.Digest(content)
	if !created && digest == f.digest && len(content) == len(f.data) {
		return f, nil
	}

	f.data = content
	f.digest = digest
	f.modified = time.Now()
	if f.nested != nil || b.matcher.Match(f.name) {
		b.attachNested(f)
	}

	if err := b.save(ctx, d.archive); err != nil {
		return nil, err
	}
	return f, nil
}

func cleanPath(p string) string {
	return strings.Trim(arcfs.NormalizePath(p), "/")
}

func validName(op, name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, "/\\") {
		return &arcfs.PathError{Op: op, Path: name, Err: arcfs.ErrInvalidName}
	}
	return nil
}

func asArchive(op string, h arcfs.ArchiveHandle) (*Archive, error) {
	a, ok := h.(*Archive)
	if !ok || a == nil {
		return nil, &arcfs.PathError{Op: op, Err: arcfs.ErrNotSupported}
	}
	return a, nil
}

func asDir(op string, h arcfs.DirHandle) (*Dir, error) {
	d, ok := h.(*Dir)
	if !ok || d == nil {
		return nil, &arcfs.PathError{Op: op, Err: arcfs.ErrNotSupported}
	}
	return d, nil
}

func asFile(op string, h arcfs.FileHandle) (*File, error) {
	f, ok := h.(*File)
	if !ok || f == nil {
		return nil, &arcfs.PathError{Op: op, Err: arcfs.ErrNotSupported}
	}
	return f, nil
}

// Ensure Backend implements arcfs.ArchiveBackend
var _ arcfs.ArchiveBackend = (*Backend)(nil)
