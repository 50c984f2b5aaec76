package archive

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"github.com/gobeaver/arcfs"
	"github.com/klauspost/compress/zip"
)

// encode serializes the tree under root as a zip container. Entries are
// stored uncompressed, directories first at each level.
func encode(root *Dir) ([]byte, error) {
	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)

	var walk func(d *Dir, prefix string) error
	walk = func(d *Dir, prefix string) error {
		for _, sub := range d.dirs {
			name := prefix + sub.name
			header := &zip.FileHeader{
				Name:     name + "/",
				Method:   zip.Store,
				Modified: time.Now(),
			}
			header.SetMode(os.ModeDir | 0755)
			if _, err := writer.CreateHeader(header); err != nil {
				return err
			}
			if err := walk(sub, name+"/"); err != nil {
				return err
			}
		}
		for _, f := range d.files {
			modified := f.modified
			if modified.IsZero() {
				modified = time.Now()
			}
			header := &zip.FileHeader{
				Name:     prefix + f.name,
				Method:   zip.Store,
				Modified: modified,
			}
			header.SetMode(0644)
			w, err := writer.CreateHeader(header)
			if err != nil {
				return err
			}
			if _, err := w.Write(f.data); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(root, ""); err != nil {
		writer.Close()
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decode loads the zip container in data into a, replacing its tree.
// Empty data is an empty archive. Nested archives are decoded recursively;
// a nested container that fails to decode stays a plain file record.
func (b *Backend) decode(a *Archive, data []byte) error {
	a.root = &Dir{archive: a}
	if len(data) == 0 {
		return nil
	}

	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}

	for _, zf := range reader.File {
		name := normalizeEntryName(zf.Name)
		if name == "" || !isValidPath(name) {
			continue
		}

		if zf.FileInfo().IsDir() {
			a.root.mkdirAll(name)
			continue
		}

		rc, err := zf.Open()
		if err != nil {
			return fmt.Errorf("failed to read archive entry: %w", err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("failed to read archive entry content: %w", err)
		}

		dir := a.root
		if parent := path.Dir(name); parent != "." {
			dir = a.root.mkdirAll(parent)
		}
		base := path.Base(name)
		if content == nil {
			content = []byte{}
		}
		f := dir.file(base)
		if f == nil {
			f = &File{dir: dir, name: base}
			dir.files = append(dir.files, f)
		}
		f.data = content
		f.digest = arcfs.Digest(content)
		f.modified = zf.Modified
	}

	b.decodeNested(a.root)
	return nil
}

func (b *Backend) decodeNested(d *Dir) {
	for _, f := range d.files {
		if b.matcher.Match(f.name) {
			b.attachNested(f)
		}
	}
	for _, sub := range d.dirs {
		b.decodeNested(sub)
	}
}

// attachNested (re)loads the archive held by f.
func (b *Backend) attachNested(f *File) {
	nested := f.nested
	if nested == nil {
		nested = &Archive{host: f}
	}
	if err := b.decode(nested, f.data); err != nil {
		b.logger.Warn("nested archive is not readable",
			slog.String("path", f.Path()),
			slog.Any("error", err))
		// detach a previously loaded archive so its path goes empty
		nested.host = nil
		f.nested = nil
		return
	}
	f.nested = nested
}

// normalizeEntryName converts a zip entry name to a clean relative path.
func normalizeEntryName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.Trim(name, "/")
	if name == "" || name == "." {
		return ""
	}
	return path.Clean(name)
}

// isValidPath checks if path is valid (no traversal)
func isValidPath(p string) bool {
	for _, segment := range strings.Split(p, "/") {
		if segment == ".." {
			return false
		}
	}
	return true
}
