package arcfs

import (
	"context"
	"fmt"
)

// Entry is a resolved path of any kind.
type Entry struct {
	node *node
}

// Kind returns the kind the path resolved to.
func (e *Entry) Kind() Kind {
	return e.node.kind
}

// Name returns the last segment of the entry's path.
func (e *Entry) Name() string {
	return e.node.name()
}

// Path returns the entry's canonical path.
func (e *Entry) Path() string {
	return e.node.path
}

// Exists reports whether the entry currently exists in its backend.
func (e *Entry) Exists(ctx context.Context) (bool, error) {
	return e.node.exists(ctx)
}

// Create creates the entry and any missing ancestors. It does nothing when
// the entry already exists.
func (e *Entry) Create(ctx context.Context) error {
	return e.node.create(ctx)
}

// Delete removes the entry. Archives and archive directories cannot be
// deleted; for them Delete fails with ErrUnimplemented.
func (e *Entry) Delete(ctx context.Context) error {
	return e.node.delete(ctx)
}

// Rename renames the entry within its parent. Archives always keep the
// archive extension. Renaming an entry that does not exist does nothing.
func (e *Entry) Rename(ctx context.Context, name string) error {
	return e.node.rename(ctx, name)
}

// Directory returns the entry as a directory.
func (e *Entry) Directory() (*Directory, error) {
	return newDirectory(e.node)
}

// File returns the entry as a file.
func (e *Entry) File() (*File, error) {
	return newFile(e.node)
}

// DirectoryType classifies directory-like entries.
type DirectoryType int

const (
	SystemDirectory DirectoryType = iota
	Archive
	ArchiveDirectory
)

func (t DirectoryType) String() string {
	switch t {
	case SystemDirectory:
		return "SystemDirectory"
	case Archive:
		return "Archive"
	case ArchiveDirectory:
		return "ArchiveDirectory"
	default:
		return fmt.Sprintf("DirectoryType(%d)", int(t))
	}
}

// Directory is a system directory, an archive or a directory inside an
// archive.
type Directory struct {
	*Entry
	typ DirectoryType
}

func newDirectory(n *node) (*Directory, error) {
	var typ DirectoryType
	switch n.kind {
	case KindSystemDirectory:
		typ = SystemDirectory
	case KindArchive:
		typ = Archive
	case KindArchiveDirectory:
		typ = ArchiveDirectory
	default:
		return nil, WrapPathErr("directory", n.path, fmt.Errorf("%w: %s", ErrUnsupportedEntryKind, n.kind))
	}
	return &Directory{Entry: &Entry{node: n}, typ: typ}, nil
}

// Type returns the directory type.
func (d *Directory) Type() DirectoryType {
	return d.typ
}

// Parent returns the parent directory, or nil for a top-level entry.
func (d *Directory) Parent() *Directory {
	return parentDirectory(d.node)
}

// Nested reports whether an archive is stored inside another archive.
func (d *Directory) Nested() bool {
	return d.node.nested
}

// ArchivePath returns the path of the innermost archive holding an archive
// directory, the archive's own path for an archive, and "" otherwise.
func (d *Directory) ArchivePath() string {
	switch d.node.kind {
	case KindArchive:
		return d.node.path
	case KindArchiveDirectory:
		return d.node.archivePath
	}
	return ""
}

// Children returns the subdirectories and archives directly inside the
// directory. Plain files are not included. The list is computed once per
// Directory value.
func (d *Directory) Children(ctx context.Context) ([]*Directory, error) {
	nodes, err := d.node.list(ctx)
	if err != nil {
		return nil, err
	}

	dirs := make([]*Directory, 0, len(nodes))
	for _, n := range nodes {
		child, err := newDirectory(n)
		if err != nil {
			return nil, err
		}
		dirs = append(dirs, child)
	}
	return dirs, nil
}

// File is a system file or a file inside an archive.
type File struct {
	*Entry
}

func newFile(n *node) (*File, error) {
	if n.kind != KindSystemFile && n.kind != KindArchiveFile {
		return nil, WrapPathErr("file", n.path, fmt.Errorf("%w: %s", ErrUnsupportedEntryKind, n.kind))
	}
	return &File{Entry: &Entry{node: n}}, nil
}

// Parent returns the directory holding the file, or nil for a top-level file.
func (f *File) Parent() *Directory {
	return parentDirectory(f.node)
}

// InArchive reports whether the file lives inside an archive.
func (f *File) InArchive() bool {
	return f.node.kind == KindArchiveFile
}

// Open opens the file for reading and writing, creating it when missing.
// With overwrite the content starts empty. For files inside archives the
// content is buffered in memory and written back on Flush or Close.
func (f *File) Open(ctx context.Context, overwrite bool) (Stream, error) {
	return f.node.open(ctx, overwrite)
}

// Update opens the file, passes the stream to fn and closes it afterwards,
// flushing whatever fn wrote even when fn fails.
func (f *File) Update(ctx context.Context, overwrite bool, fn func(Stream) error) (err error) {
	s, err := f.Open(ctx, overwrite)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(s)
}

// ReadAll returns the file content. Unlike Open it does not create a
// missing file.
func (f *File) ReadAll(ctx context.Context) ([]byte, error) {
	return f.node.readAll(ctx)
}

// Checksum returns the hex digest of the file content.
func (f *File) Checksum(ctx context.Context, algorithm ChecksumAlgorithm) (string, error) {
	data, err := f.node.readAll(ctx)
	if err != nil {
		return "", err
	}
	sum, err := ChecksumBytes(data, algorithm)
	if err != nil {
		return "", WrapPathErr("checksum", f.node.path, err)
	}
	return sum, nil
}

func parentDirectory(n *node) *Directory {
	if n.parent == nil {
		return nil
	}
	d, err := newDirectory(n.parent)
	if err != nil {
		return nil
	}
	return d
}
