package archive

import (
	"sort"
	"strings"
	"time"

	"github.com/gobeaver/arcfs"
)

// Archive is one archive container. It is either stored as a file of the
// filesystem or as a file record of another archive (nested).
type Archive struct {
	path string // filesystem path, top-level archives only
	host *File  // record holding the bytes, nested archives only
	root *Dir
}

func newArchive(p string, host *File) *Archive {
	a := &Archive{path: p, host: host}
	a.root = &Dir{archive: a}
	return a
}

// Name returns the archive file name.
func (a *Archive) Name() string {
	if a.host != nil {
		return a.host.name
	}
	if i := strings.LastIndexByte(a.path, '/'); i >= 0 {
		return a.path[i+1:]
	}
	return a.path
}

// Path returns the canonical path of the archive. Nested archives derive it
// from their host record, so renames of enclosing entries carry over.
func (a *Archive) Path() string {
	if a.host != nil {
		return a.host.Path()
	}
	return a.path
}

// Nested reports whether the archive is stored inside another archive.
func (a *Archive) Nested() bool {
	return a.host != nil
}

// Root returns the root directory.
func (a *Archive) Root() *Dir {
	return a.root
}

// Archives returns every archive nested in a, at any depth.
func (a *Archive) Archives() []*Archive {
	var out []*Archive
	var walk func(d *Dir)
	walk = func(d *Dir) {
		for _, f := range d.files {
			if f.nested != nil {
				out = append(out, f.nested)
				walk(f.nested.root)
			}
		}
		for _, sub := range d.dirs {
			walk(sub)
		}
	}
	walk(a.root)
	return out
}

// Dir is a directory record. The root directory has no name of its own and
// shares the archive's path.
type Dir struct {
	archive *Archive
	parent  *Dir
	name    string
	dirs    []*Dir
	files   []*File
}

func (d *Dir) Name() string {
	if d.parent == nil {
		return d.archive.Name()
	}
	return d.name
}

func (d *Dir) Path() string {
	if d.parent == nil {
		return d.archive.Path()
	}
	parent := d.parent.Path()
	if parent == "" {
		return ""
	}
	return parent + "/" + d.name
}

func (d *Dir) IsDir() bool {
	return true
}

func (d *Dir) dir(name string) *Dir {
	for _, sub := range d.dirs {
		if strings.EqualFold(sub.name, name) {
			return sub
		}
	}
	return nil
}

func (d *Dir) file(name string) *File {
	for _, f := range d.files {
		if strings.EqualFold(f.name, name) {
			return f
		}
	}
	return nil
}

// taken reports whether name is used by an entry other than self.
func (d *Dir) taken(name string, self any) bool {
	if sub := d.dir(name); sub != nil && any(sub) != self {
		return true
	}
	if f := d.file(name); f != nil && any(f) != self {
		return true
	}
	return false
}

// mkdirAll returns the directory at the slash-separated relative path,
// creating missing ones.
func (d *Dir) mkdirAll(rel string) *Dir {
	current := d
	for _, segment := range strings.Split(rel, "/") {
		if segment == "" {
			continue
		}
		next := current.dir(segment)
		if next == nil {
			next = &Dir{archive: d.archive, parent: current, name: segment}
			current.dirs = append(current.dirs, next)
		}
		current = next
	}
	return current
}

func (d *Dir) removeFile(f *File) {
	for i, candidate := range d.files {
		if candidate == f {
			d.files = append(d.files[:i], d.files[i+1:]...)
			return
		}
	}
}

// entries lists the directory sorted case-insensitively by name.
func (d *Dir) entries() []arcfs.EntryInfo {
	entries := make([]arcfs.EntryInfo, 0, len(d.dirs)+len(d.files))
	for _, sub := range d.dirs {
		entries = append(entries, arcfs.EntryInfo{Name: sub.name, IsDir: true})
	}
	for _, f := range d.files {
		entries = append(entries, arcfs.EntryInfo{Name: f.name})
	}
	sort.Slice(entries, func(i, j int) bool {
		return strings.ToLower(entries[i].Name) < strings.ToLower(entries[j].Name)
	})
	return entries
}

// File is a file record.
type File struct {
	dir      *Dir
	name     string
	data     []byte
	digest   uint64
	modified time.Time
	nested   *Archive
}

func (f *File) Name() string {
	return f.name
}

// Path returns the file's canonical path, or "" once it has been deleted.
func (f *File) Path() string {
	if f.dir == nil {
		return ""
	}
	dir := f.dir.Path()
	if dir == "" {
		return ""
	}
	return dir + "/" + f.name
}

func (f *File) Size() int64 {
	return int64(len(f.data))
}

// Nested returns the archive stored in this record, if any.
func (f *File) Nested() *Archive {
	return f.nested
}

var (
	_ arcfs.ArchiveHandle = (*Archive)(nil)
	_ arcfs.DirHandle     = (*Dir)(nil)
	_ arcfs.FileHandle    = (*File)(nil)
)
