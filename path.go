package arcfs

import (
	"path"
	"strings"

	"github.com/gobwas/glob"
)

// Separator is the canonical path separator.
const Separator = '/'

// AltSeparator is rewritten to Separator by NormalizePath.
const AltSeparator = '\\'

// DefaultArchiveExtension is the reserved extension marking archive files.
const DefaultArchiveExtension = ".arc"

// NormalizePath replaces alternate separators with the canonical one.
func NormalizePath(p string) string {
	return strings.ReplaceAll(p, string(AltSeparator), string(Separator))
}

// splitPath splits a normalized path into its non-empty segments.
// "." segments and leading separators are dropped.
func splitPath(p string) []string {
	raw := strings.Split(p, string(Separator))
	segments := make([]string, 0, len(raw))
	for _, s := range raw {
		if s == "" || s == "." {
			continue
		}
		segments = append(segments, s)
	}
	return segments
}

// joinPath joins a parent path and a name with the canonical separator.
func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + string(Separator) + name
}

// baseName returns the last segment of a canonical path.
func baseName(p string) string {
	if i := strings.LastIndexByte(p, Separator); i >= 0 {
		return p[i+1:]
	}
	return p
}

// dirName returns everything before the last segment of a canonical path.
func dirName(p string) string {
	if i := strings.LastIndexByte(p, Separator); i >= 0 {
		return p[:i]
	}
	return ""
}

// HasExtension reports whether a path segment carries a file extension.
// A trailing dot does not count as one.
func HasExtension(name string) bool {
	ext := path.Ext(name)
	return ext != "" && ext != "."
}

// ArchiveMatcher recognizes archive file names.
type ArchiveMatcher struct {
	ext     string
	pattern glob.Glob
}

// NewArchiveMatcher builds a matcher for the given archive extension.
// Names match case-insensitively when the extension is the last one or is
// followed by further extensions ("a.arc", "a.ARC", "a.arc.bak").
func NewArchiveMatcher(ext string) (*ArchiveMatcher, error) {
	ext = strings.ToLower(ext)
	if ext == "" {
		ext = DefaultArchiveExtension
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	g, err := glob.Compile("{*" + ext + ",*" + ext + ".*}")
	if err != nil {
		return nil, WrapPathErr("matcher", ext, ErrInvalidName)
	}

	return &ArchiveMatcher{ext: ext, pattern: g}, nil
}

// Extension returns the lowercase archive extension including the dot.
func (m *ArchiveMatcher) Extension() string {
	return m.ext
}

// Match reports whether name denotes an archive.
func (m *ArchiveMatcher) Match(name string) bool {
	return m.pattern.Match(strings.ToLower(name))
}

// EnsureExtension returns name with its extension replaced by the archive
// extension, unless it already has it.
func (m *ArchiveMatcher) EnsureExtension(name string) string {
	ext := path.Ext(name)
	if strings.EqualFold(ext, m.ext) {
		return name
	}
	return strings.TrimSuffix(name, ext) + m.ext
}
