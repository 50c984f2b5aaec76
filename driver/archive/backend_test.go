package archive

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gobeaver/arcfs"
	"github.com/gobeaver/arcfs/driver/local"
)

// countingFS counts container writes.
type countingFS struct {
	arcfs.FileSystem
	writes int
}

func (c *countingFS) Write(ctx context.Context, path string, r io.Reader) error {
	c.writes++
	return c.FileSystem.Write(ctx, path, r)
}

func newTestBackend(t *testing.T) (*Backend, *countingFS) {
	t.Helper()
	fs := &countingFS{FileSystem: local.NewMemory()}
	b, err := NewBackend(fs)
	require.NoError(t, err)
	return b, fs
}

// buildZip writes a zip container with the given entries. Names ending in
// "/" are directories.
func buildZip(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range entries {
		f, err := w.Create(name)
		require.NoError(t, err)
		if !strings.HasSuffix(name, "/") {
			_, err = f.Write([]byte(content))
			require.NoError(t, err)
		}
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestCreateArchive(t *testing.T) {
	ctx := context.Background()

	t.Run("writes an empty container", func(t *testing.T) {
		b, fs := newTestBackend(t)

		h, err := b.CreateArchive(ctx, "/data/pack.arc")
		require.NoError(t, err)
		assert.Equal(t, "data/pack.arc", h.Path())
		assert.Equal(t, "pack.arc", h.Name())
		assert.Equal(t, 1, fs.writes)

		a, err := b.Open(ctx, "data/pack.arc")
		require.NoError(t, err)
		assert.Empty(t, a.Root().entries())
	})

	t.Run("existing file", func(t *testing.T) {
		b, _ := newTestBackend(t)

		_, err := b.CreateArchive(ctx, "pack.arc")
		require.NoError(t, err)
		_, err = b.CreateArchive(ctx, "pack.arc")
		assert.True(t, arcfs.IsExist(err))
	})
}

func TestRecords(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend(t)

	h, err := b.CreateArchive(ctx, "pack.arc")
	require.NoError(t, err)
	root, err := b.RootDirectory(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, "pack.arc", root.Path())

	docs, err := b.CreateDirectory(ctx, root, "Docs")
	require.NoError(t, err)
	assert.Equal(t, "pack.arc/Docs", docs.Path())

	t.Run("create directory is idempotent", func(t *testing.T) {
		again, err := b.CreateDirectory(ctx, root, "docs")
		require.NoError(t, err)
		assert.Same(t, docs, again)
	})

	t.Run("find directory", func(t *testing.T) {
		d, err := b.FindDirectory(ctx, h, "PACK.ARC/docs")
		require.NoError(t, err)
		assert.Same(t, docs, d)

		d, err = b.FindDirectory(ctx, h, "pack.arc")
		require.NoError(t, err)
		assert.Same(t, root, d)

		d, err = b.FindDirectory(ctx, h, "pack.arc/missing")
		require.NoError(t, err)
		assert.Nil(t, d)

		d, err = b.FindDirectory(ctx, h, "other.arc/docs")
		require.NoError(t, err)
		assert.Nil(t, d)
	})

	t.Run("write, append and read", func(t *testing.T) {
		f, err := b.WriteFileBytes(ctx, docs, "a.txt", []byte("hello"), false)
		require.NoError(t, err)
		assert.Equal(t, "pack.arc/Docs/a.txt", f.Path())
		assert.Equal(t, int64(5), f.Size())

		_, err = b.WriteFileBytes(ctx, docs, "A.TXT", []byte(" world"), true)
		require.NoError(t, err)

		found, err := b.FindFile(ctx, docs, "a.txt")
		require.NoError(t, err)
		data, err := b.ReadFileBytes(ctx, found)
		require.NoError(t, err)
		assert.Equal(t, "hello world", string(data))

		missing, err := b.FindFile(ctx, docs, "missing.txt")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("empty content reads as empty slice", func(t *testing.T) {
		f, err := b.WriteFileBytes(ctx, docs, "empty.txt", nil, false)
		require.NoError(t, err)
		data, err := b.ReadFileBytes(ctx, f)
		require.NoError(t, err)
		assert.NotNil(t, data)
		assert.Empty(t, data)
	})

	t.Run("file and directory names do not collide", func(t *testing.T) {
		_, err := b.WriteFileBytes(ctx, root, "docs", []byte("x"), false)
		assert.ErrorIs(t, err, arcfs.ErrIsDir)

		_, err = b.CreateDirectory(ctx, docs, "a.txt")
		assert.True(t, arcfs.IsExist(err))
	})

	t.Run("list directory", func(t *testing.T) {
		_, err := b.CreateDirectory(ctx, docs, "Zeta")
		require.NoError(t, err)

		entries, err := b.ListDirectory(ctx, docs)
		require.NoError(t, err)
		assert.Equal(t, []arcfs.EntryInfo{
			{Name: "a.txt"},
			{Name: "empty.txt"},
			{Name: "Zeta", IsDir: true},
		}, entries)
	})

	t.Run("rename", func(t *testing.T) {
		f, err := b.FindFile(ctx, docs, "a.txt")
		require.NoError(t, err)

		assert.True(t, arcfs.IsExist(b.RenameEntry(ctx, f, "EMPTY.txt")))
		assert.ErrorIs(t, b.RenameEntry(ctx, f, "x/y"), arcfs.ErrInvalidName)

		require.NoError(t, b.RenameEntry(ctx, f, "b.txt"))
		assert.Equal(t, "pack.arc/Docs/b.txt", f.Path())

		require.NoError(t, b.RenameEntry(ctx, docs, "Papers"))
		assert.Equal(t, "pack.arc/Papers/b.txt", f.Path())
	})

	t.Run("delete", func(t *testing.T) {
		f, err := b.FindFile(ctx, docs, "b.txt")
		require.NoError(t, err)

		require.NoError(t, b.DeleteFile(ctx, f))
		assert.Equal(t, "", f.Path())

		again, err := b.FindFile(ctx, docs, "b.txt")
		require.NoError(t, err)
		assert.Nil(t, again)

		assert.True(t, arcfs.IsNotExist(b.DeleteFile(ctx, f)))
	})

	t.Run("changes are persisted", func(t *testing.T) {
		a, err := b.Open(ctx, "pack.arc")
		require.NoError(t, err)

		papers, err := b.FindDirectory(ctx, a, "pack.arc/papers")
		require.NoError(t, err)
		require.NotNil(t, papers)

		entries, err := b.ListDirectory(ctx, papers)
		require.NoError(t, err)
		assert.Equal(t, []arcfs.EntryInfo{
			{Name: "empty.txt"},
			{Name: "Zeta", IsDir: true},
		}, entries)
	})
}

func TestWriteDedupe(t *testing.T) {
	ctx := context.Background()
	b, fs := newTestBackend(t)

	h, err := b.CreateArchive(ctx, "pack.arc")
	require.NoError(t, err)
	root, err := b.RootDirectory(ctx, h)
	require.NoError(t, err)

	_, err = b.WriteFileBytes(ctx, root, "f.txt", []byte("same"), false)
	require.NoError(t, err)
	writes := fs.writes

	_, err = b.WriteFileBytes(ctx, root, "f.txt", []byte("same"), false)
	require.NoError(t, err)
	assert.Equal(t, writes, fs.writes)

	_, err = b.WriteFileBytes(ctx, root, "f.txt", []byte("different"), false)
	require.NoError(t, err)
	assert.Equal(t, writes+1, fs.writes)
}

func TestNestedArchives(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend(t)

	h, err := b.CreateArchive(ctx, "outer.arc")
	require.NoError(t, err)
	root, err := b.RootDirectory(ctx, h)
	require.NoError(t, err)
	dir, err := b.CreateDirectory(ctx, root, "dir")
	require.NoError(t, err)

	nested, err := b.CreateNestedArchive(ctx, dir, "inner.arc")
	require.NoError(t, err)
	assert.Equal(t, "outer.arc/dir/inner.arc", nested.Path())

	innerRoot, err := b.RootDirectory(ctx, nested)
	require.NoError(t, err)
	_, err = b.WriteFileBytes(ctx, innerRoot, "deep.txt", []byte("deep"), false)
	require.NoError(t, err)

	_, err = b.CreateNestedArchive(ctx, dir, "INNER.arc")
	assert.True(t, arcfs.IsExist(err))

	t.Run("reloaded from disk", func(t *testing.T) {
		a, err := b.Open(ctx, "outer.arc")
		require.NoError(t, err)

		archives := a.Archives()
		require.Len(t, archives, 1)
		assert.Equal(t, "outer.arc/dir/inner.arc", archives[0].Path())
		assert.True(t, archives[0].Nested())

		f, err := b.FindFile(ctx, archives[0].Root(), "deep.txt")
		require.NoError(t, err)
		require.NotNil(t, f)
		data, err := b.ReadFileBytes(ctx, f)
		require.NoError(t, err)
		assert.Equal(t, "deep", string(data))
	})

	t.Run("rename follows the host record", func(t *testing.T) {
		require.NoError(t, b.RenameArchive(ctx, nested, "moved.arc"))
		assert.Equal(t, "outer.arc/dir/moved.arc", nested.Path())

		require.NoError(t, b.RenameEntry(ctx, dir, "other"))
		assert.Equal(t, "outer.arc/other/moved.arc", nested.Path())

		d, err := b.FindDirectory(ctx, nested, "outer.arc/other/moved.arc")
		require.NoError(t, err)
		assert.Same(t, innerRoot, d)
	})

	t.Run("top-level rename changes only the record", func(t *testing.T) {
		require.NoError(t, b.RenameArchive(ctx, h, "renamed.arc"))
		assert.Equal(t, "renamed.arc", h.Path())
		assert.Equal(t, "renamed.arc/other/moved.arc", nested.Path())
	})
}

func TestDecode(t *testing.T) {
	ctx := context.Background()

	t.Run("implicit directories", func(t *testing.T) {
		b, fs := newTestBackend(t)

		data := buildZip(t, map[string]string{
			"top.txt":   "top",
			"a/b/c.txt": "deep",
			"empty/":    "",
		})
		require.NoError(t, fs.Write(ctx, "x.arc", bytes.NewReader(data)))

		a, err := b.Open(ctx, "x.arc")
		require.NoError(t, err)

		assert.Equal(t, []arcfs.EntryInfo{
			{Name: "a", IsDir: true},
			{Name: "empty", IsDir: true},
			{Name: "top.txt"},
		}, a.Root().entries())

		d, err := b.FindDirectory(ctx, a, "x.arc/a/b")
		require.NoError(t, err)
		require.NotNil(t, d)
		f, err := b.FindFile(ctx, d, "c.txt")
		require.NoError(t, err)
		require.NotNil(t, f)
		content, err := b.ReadFileBytes(ctx, f)
		require.NoError(t, err)
		assert.Equal(t, "deep", string(content))
	})

	t.Run("corrupt container", func(t *testing.T) {
		b, fs := newTestBackend(t)
		require.NoError(t, fs.Write(ctx, "bad.arc", strings.NewReader("not a zip")))

		_, err := b.Open(ctx, "bad.arc")
		assert.Error(t, err)
	})

	t.Run("unreadable nested archive stays a file", func(t *testing.T) {
		b, fs := newTestBackend(t)
		data := buildZip(t, map[string]string{"broken.arc": "garbage"})
		require.NoError(t, fs.Write(ctx, "x.arc", bytes.NewReader(data)))

		a, err := b.Open(ctx, "x.arc")
		require.NoError(t, err)
		assert.Empty(t, a.Archives())

		f, err := b.FindFile(ctx, a.Root(), "broken.arc")
		require.NoError(t, err)
		require.NotNil(t, f)
	})
}
