package arcfs

import (
	"context"
	"log/slog"
)

// Kind is the closed set of entry kinds a path segment can resolve to.
type Kind int

const (
	KindSystemDirectory Kind = iota
	KindSystemFile
	KindArchive
	KindArchiveDirectory
	KindArchiveFile
)

func (k Kind) String() string {
	switch k {
	case KindSystemDirectory:
		return "system directory"
	case KindSystemFile:
		return "system file"
	case KindArchive:
		return "archive"
	case KindArchiveDirectory:
		return "archive directory"
	case KindArchiveFile:
		return "archive file"
	default:
		return "unknown"
	}
}

// IsDir reports whether entries of this kind can hold children.
func (k Kind) IsDir() bool {
	return k == KindSystemDirectory || k == KindArchive || k == KindArchiveDirectory
}

// InArchive reports whether entries of this kind live in an archive.
func (k Kind) InArchive() bool {
	return k == KindArchive || k == KindArchiveDirectory || k == KindArchiveFile
}

// classifier carries the running state of one resolution pass.
type classifier struct {
	matcher     *ArchiveMatcher
	inArchive   bool
	archivePath string
}

// next classifies segment, whose accumulated path is p, and advances the
// state. Once inside an archive the state never leaves it.
func (cl *classifier) next(segment, p string) Kind {
	switch {
	case cl.matcher.Match(segment):
		cl.inArchive = true
		cl.archivePath = p
		return KindArchive
	case cl.inArchive && HasExtension(segment):
		return KindArchiveFile
	case cl.inArchive:
		return KindArchiveDirectory
	case HasExtension(segment):
		return KindSystemFile
	default:
		return KindSystemDirectory
	}
}

// resolve builds the parent-linked chain of nodes for path and returns the
// deepest one. Archive nodes get their backend handle looked up on the way;
// a miss leaves the handle empty.
func (c *Core) resolve(ctx context.Context, p string) (*node, error) {
	segments := splitPath(NormalizePath(p))
	if len(segments) == 0 {
		return nil, WrapPathErr("resolve", p, ErrInvalidName)
	}

	cl := &classifier{matcher: c.matcher}
	var prev *node
	current := ""

	for _, segment := range segments {
		current = joinPath(current, segment)
		nested := cl.inArchive

		n := &node{
			core:   c,
			kind:   cl.next(segment, current),
			path:   current,
			parent: prev,
		}

		switch n.kind {
		case KindArchive:
			n.nested = nested
		case KindArchiveDirectory:
			n.archivePath = cl.archivePath
		}

		if n.kind.InArchive() {
			if _, err := n.lookup(ctx); err != nil {
				return nil, err
			}
		}

		prev = n
	}

	c.logger.Debug("resolved path",
		slog.String("path", prev.path),
		slog.String("kind", prev.kind.String()))

	return prev, nil
}
