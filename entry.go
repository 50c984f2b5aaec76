package arcfs

import (
	"context"
	"log/slog"
	"strings"
)

// node is one resolved path segment. Identity (kind, parent) is fixed at
// resolution; path changes on rename and backend handles are re-queried on
// every lookup.
type node struct {
	core   *Core
	kind   Kind
	path   string
	parent *node

	// KindArchive: whether the archive lives inside another archive.
	nested bool
	// KindArchiveDirectory: path of the innermost enclosing archive.
	archivePath string

	archive ArchiveHandle // KindArchive
	dir     DirHandle     // KindArchiveDirectory
	file    FileHandle    // KindArchiveFile

	children []*node
	listed   bool
}

func (n *node) name() string {
	return baseName(n.path)
}

func (n *node) parentPath() string {
	if n.parent == nil {
		return dirName(n.path)
	}
	return n.parent.path
}

func samePath(a, b string) bool {
	return a != "" && strings.EqualFold(a, b)
}

// lookup refreshes the backend handle of an archive-side node from the
// registry and reports whether the record exists.
func (n *node) lookup(ctx context.Context) (bool, error) {
	c := n.core

	switch n.kind {
	case KindArchive:
		h, err := c.registry.FindArchive(ctx, n.path)
		if err != nil {
			return false, err
		}
		n.archive = h
		return h != nil, nil

	case KindArchiveDirectory:
		n.dir = nil
		archive, err := c.registry.FindArchive(ctx, n.archivePath)
		if err != nil || archive == nil {
			return false, err
		}
		d, err := c.archives.FindDirectory(ctx, archive, n.path)
		if err != nil {
			return false, err
		}
		n.dir = d
		return d != nil, nil

	case KindArchiveFile:
		n.file = nil
		if n.parent == nil || !n.parent.kind.InArchive() || !n.parent.kind.IsDir() {
			return false, nil
		}
		dir, err := n.parent.container(ctx)
		if err != nil || dir == nil {
			return false, err
		}
		f, err := c.archives.FindFile(ctx, dir, n.name())
		if err != nil {
			return false, err
		}
		n.file = f
		return f != nil, nil
	}

	return false, WrapPathErr("lookup", n.path, ErrUnsupportedEntryKind)
}

// container returns the archive directory record holding the children of an
// archive or archive directory node, or nil if the node does not exist.
func (n *node) container(ctx context.Context) (DirHandle, error) {
	switch n.kind {
	case KindArchive:
		ok, err := n.lookup(ctx)
		if err != nil || !ok {
			return nil, err
		}
		return n.core.archives.RootDirectory(ctx, n.archive)
	case KindArchiveDirectory:
		ok, err := n.lookup(ctx)
		if err != nil || !ok {
			return nil, err
		}
		return n.dir, nil
	}
	return nil, WrapPathErr("container", n.path, ErrNotDir)
}

// mustContainer is container for callers that need the record to exist.
func (n *node) mustContainer(ctx context.Context) (DirHandle, error) {
	dir, err := n.container(ctx)
	if err != nil {
		return nil, err
	}
	if dir == nil {
		return nil, WrapPathErr("container", n.path, ErrNotExist)
	}
	return dir, nil
}

func (n *node) exists(ctx context.Context) (bool, error) {
	switch n.kind {
	case KindSystemDirectory:
		return n.core.fs.DirExists(ctx, n.path)
	case KindSystemFile:
		return n.core.fs.FileExists(ctx, n.path)
	case KindArchive, KindArchiveDirectory, KindArchiveFile:
		return n.lookup(ctx)
	}
	return false, WrapPathErr("exists", n.path, ErrUnsupportedEntryKind)
}

// create creates the node, creating missing ancestors first. Ancestors that
// were created stay created when a deeper step fails.
func (n *node) create(ctx context.Context) error {
	ok, err := n.exists(ctx)
	if err != nil || ok {
		return err
	}

	if n.parent != nil {
		parentExists, err := n.parent.exists(ctx)
		if err != nil {
			return err
		}
		if !parentExists {
			if err := n.parent.create(ctx); err != nil {
				return err
			}
		}
	}

	c := n.core
	c.logger.Debug("creating entry",
		slog.String("path", n.path),
		slog.String("kind", n.kind.String()))

	switch n.kind {
	case KindSystemDirectory:
		return c.fs.CreateDir(ctx, n.path)

	case KindSystemFile:
		return c.fs.CreateFile(ctx, n.path)

	case KindArchive:
		return n.createArchive(ctx)

	case KindArchiveDirectory:
		parent, err := n.parent.mustContainer(ctx)
		if err != nil {
			return err
		}
		d, err := c.archives.CreateDirectory(ctx, parent, n.name())
		if err != nil {
			return err
		}
		n.dir = d
		return nil

	case KindArchiveFile:
		parent, err := n.parent.mustContainer(ctx)
		if err != nil {
			return err
		}
		f, err := c.archives.WriteFileBytes(ctx, parent, n.name(), nil, false)
		if err != nil {
			return err
		}
		n.file = f
		return nil
	}

	return WrapPathErr("create", n.path, ErrUnsupportedEntryKind)
}

func (n *node) createArchive(ctx context.Context) error {
	c := n.core

	var (
		h   ArchiveHandle
		err error
	)
	switch {
	case n.parent == nil || n.parent.kind == KindSystemDirectory:
		h, err = c.archives.CreateArchive(ctx, n.path)
	case n.parent.kind.InArchive() && n.parent.kind.IsDir():
		var parent DirHandle
		parent, err = n.parent.mustContainer(ctx)
		if err != nil {
			return err
		}
		h, err = c.archives.CreateNestedArchive(ctx, parent, n.name())
	default:
		return WrapPathErr("create", n.path, ErrNotDir)
	}
	if err != nil {
		return err
	}

	if err := c.registry.Register(h); err != nil {
		return err
	}
	n.archive = h
	return nil
}

// delete removes the node. Archives and archive directories cannot be
// deleted.
func (n *node) delete(ctx context.Context) error {
	c := n.core

	switch n.kind {
	case KindSystemDirectory, KindSystemFile:
		return c.fs.Delete(ctx, n.path)

	case KindArchive, KindArchiveDirectory:
		return WrapPathErr("delete", n.path, ErrUnimplemented)

	case KindArchiveFile:
		ok, err := n.lookup(ctx)
		if err != nil || !ok {
			return err
		}
		if err := c.archives.DeleteFile(ctx, n.file); err != nil {
			return err
		}
		n.file = nil
		return nil
	}

	return WrapPathErr("delete", n.path, ErrUnsupportedEntryKind)
}

// rename gives the node a new name under the same parent. Renaming a node
// that does not exist does nothing.
func (n *node) rename(ctx context.Context, newName string) error {
	if newName == "" || newName == "." || newName == ".." ||
		strings.ContainsAny(newName, string(Separator)+string(AltSeparator)) {
		return WrapPathErr("rename", n.path, ErrInvalidName)
	}

	ok, err := n.exists(ctx)
	if err != nil || !ok {
		return err
	}

	c := n.core
	oldPath := n.path

	switch n.kind {
	case KindSystemDirectory, KindSystemFile:
		newPath := joinPath(n.parentPath(), newName)
		if err := c.fs.Move(ctx, oldPath, newPath); err != nil {
			return err
		}
		if n.kind == KindSystemDirectory {
			if err := c.registry.Relocate(ctx, oldPath, newPath); err != nil {
				return err
			}
		}
		n.path = newPath

	case KindArchive:
		newName = c.matcher.EnsureExtension(newName)
		newPath := joinPath(n.parentPath(), newName)
		if !n.nested && !samePath(oldPath, newPath) {
			taken, err := c.registry.FindArchive(ctx, newPath)
			if err != nil {
				return err
			}
			if taken != nil {
				return WrapPathErr("rename", newPath, ErrExist)
			}
		}
		if err := c.archives.RenameArchive(ctx, n.archive, newName); err != nil {
			return err
		}
		if !n.nested {
			if err := c.fs.Move(ctx, oldPath, newPath); err != nil {
				return err
			}
		}
		n.path = newPath

	case KindArchiveDirectory:
		if err := c.archives.RenameEntry(ctx, n.dir, newName); err != nil {
			return err
		}
		n.path = joinPath(n.parentPath(), newName)

	case KindArchiveFile:
		if err := c.archives.RenameEntry(ctx, n.file, newName); err != nil {
			return err
		}
		n.path = joinPath(n.parentPath(), newName)

	default:
		return WrapPathErr("rename", n.path, ErrUnsupportedEntryKind)
	}

	n.children, n.listed = nil, false

	c.logger.Debug("renamed entry",
		slog.String("from", oldPath),
		slog.String("to", n.path))

	return nil
}

// list returns the directory-like children of the node: subdirectories and
// archives. Plain files are not listed. The result is cached on the node.
func (n *node) list(ctx context.Context) ([]*node, error) {
	if n.listed {
		return n.children, nil
	}

	ok, err := n.exists(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []*node{}, nil
	}

	c := n.core
	var dirs, archives []string

	switch n.kind {
	case KindSystemDirectory:
		infos, err := c.fs.ReadDir(ctx, n.path)
		if err != nil {
			return nil, err
		}
		for _, info := range infos {
			if info.IsDir {
				dirs = append(dirs, info.Name)
			} else if c.matcher.Match(info.Name) {
				archives = append(archives, info.Name)
			}
		}

	case KindArchive, KindArchiveDirectory:
		dir, err := n.mustContainer(ctx)
		if err != nil {
			return nil, err
		}
		entries, err := c.archives.ListDirectory(ctx, dir)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir {
				dirs = append(dirs, e.Name)
			} else if c.matcher.Match(e.Name) {
				archives = append(archives, e.Name)
			}
		}

	default:
		return nil, WrapPathErr("list", n.path, ErrNotDir)
	}

	children := make([]*node, 0, len(dirs)+len(archives))
	for _, name := range append(dirs, archives...) {
		child, err := c.resolve(ctx, joinPath(n.path, name))
		if err != nil {
			return nil, err
		}
		if !child.kind.IsDir() {
			// A directory whose name looks like a file resolves to a file kind.
			c.logger.Debug("skipping child", slog.String("path", child.path))
			continue
		}
		children = append(children, child)
	}

	n.children, n.listed = children, true
	return children, nil
}

// readAll returns the current content of a file node without creating it.
func (n *node) readAll(ctx context.Context) ([]byte, error) {
	switch n.kind {
	case KindSystemFile:
		return n.core.fs.ReadAll(ctx, n.path)
	case KindArchiveFile:
		ok, err := n.lookup(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, WrapPathErr("read", n.path, ErrNotExist)
		}
		return n.core.archives.ReadFileBytes(ctx, n.file)
	}
	return nil, WrapPathErr("read", n.path, ErrIsDir)
}

// open opens a file node for reading and writing, creating it first when it
// does not exist.
func (n *node) open(ctx context.Context, overwrite bool) (Stream, error) {
	if n.kind != KindSystemFile && n.kind != KindArchiveFile {
		return nil, WrapPathErr("open", n.path, ErrIsDir)
	}

	if err := n.create(ctx); err != nil {
		return nil, err
	}

	if n.kind == KindSystemFile {
		return n.core.fs.OpenFile(ctx, n.path, overwrite)
	}
	return newArchiveStream(ctx, n, overwrite)
}
