package archive

import (
	"context"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gobeaver/arcfs"
	"github.com/gobeaver/arcfs/driver/local"
)

func TestRegistry(t *testing.T) {
	ctx := context.Background()

	t.Run("not initialized before scan", func(t *testing.T) {
		fs := local.NewMemory()
		b, err := NewBackend(fs)
		require.NoError(t, err)
		r := NewRegistry(fs, b)

		_, err = r.FindArchive(ctx, "x.arc")
		assert.True(t, arcfs.IsNotInitialized(err))

		h, err := b.CreateArchive(ctx, "x.arc")
		require.NoError(t, err)
		assert.True(t, arcfs.IsNotInitialized(r.Register(h)))
	})

	t.Run("scan finds top-level and nested archives", func(t *testing.T) {
		fs := local.NewMemory()
		b, err := NewBackend(fs)
		require.NoError(t, err)

		h, err := b.CreateArchive(ctx, "data/deep/Outer.arc")
		require.NoError(t, err)
		root, err := b.RootDirectory(ctx, h)
		require.NoError(t, err)
		_, err = b.CreateNestedArchive(ctx, root, "inner.arc")
		require.NoError(t, err)
		require.NoError(t, fs.Write(ctx, "data/notes.txt", strings.NewReader("plain")))
		require.NoError(t, fs.Write(ctx, "data/broken.arc", strings.NewReader("not a zip")))

		r := NewRegistry(fs, b)
		require.NoError(t, r.Scan(ctx))

		found, err := r.FindArchive(ctx, "DATA/deep/outer.ARC")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, "data/deep/Outer.arc", found.Path())

		nested, err := r.FindArchive(ctx, "data/deep/outer.arc/inner.arc")
		require.NoError(t, err)
		require.NotNil(t, nested)

		broken, err := r.FindArchive(ctx, "data/broken.arc")
		require.NoError(t, err)
		assert.Nil(t, broken)

		missing, err := r.FindArchive(ctx, "data/missing.arc")
		require.NoError(t, err)
		assert.Nil(t, missing)

		assert.Len(t, r.Archives(), 2)
	})

	t.Run("register", func(t *testing.T) {
		fs := local.NewMemory()
		b, err := NewBackend(fs)
		require.NoError(t, err)
		r := NewRegistry(fs, b)
		require.NoError(t, r.Scan(ctx))

		h, err := b.CreateArchive(ctx, "new.arc")
		require.NoError(t, err)
		require.NoError(t, r.Register(h))
		require.NoError(t, r.Register(h))
		assert.Len(t, r.Archives(), 1)

		found, err := r.FindArchive(ctx, "/new.arc")
		require.NoError(t, err)
		assert.Same(t, h, found)
	})

	t.Run("register replaces an archive with the same path", func(t *testing.T) {
		fs := local.NewMemory()
		b, err := NewBackend(fs)
		require.NoError(t, err)
		r := NewRegistry(fs, b)

		// the file exists before the registry hears about it
		h, err := b.CreateArchive(ctx, "race.arc")
		require.NoError(t, err)
		require.NoError(t, r.Scan(ctx))

		scanned, err := r.FindArchive(ctx, "race.arc")
		require.NoError(t, err)
		require.NotNil(t, scanned)
		assert.NotSame(t, h, scanned)

		require.NoError(t, r.Register(h))
		require.NoError(t, r.Scan(ctx))
		assert.Len(t, r.Archives(), 1)

		found, err := r.FindArchive(ctx, "RACE.arc")
		require.NoError(t, err)
		assert.Same(t, h, found)
	})

	t.Run("relocate", func(t *testing.T) {
		fs := local.NewMemory()
		b, err := NewBackend(fs)
		require.NoError(t, err)
		r := NewRegistry(fs, b)
		assert.True(t, arcfs.IsNotInitialized(r.Relocate(ctx, "data", "moved")))

		h, err := b.CreateArchive(ctx, "data/deep/Outer.arc")
		require.NoError(t, err)
		root, err := b.RootDirectory(ctx, h)
		require.NoError(t, err)
		_, err = b.CreateNestedArchive(ctx, root, "inner.arc")
		require.NoError(t, err)
		_, err = b.CreateArchive(ctx, "database/other.arc")
		require.NoError(t, err)
		require.NoError(t, r.Scan(ctx))

		require.NoError(t, fs.Move(ctx, "data", "moved"))
		require.NoError(t, r.Relocate(ctx, "Data", "moved"))

		for p, want := range map[string]bool{
			"data/deep/Outer.arc":            false,
			"moved/deep/outer.arc":           true,
			"moved/deep/Outer.arc/inner.arc": true,
			"database/other.arc":             true,
		} {
			found, err := r.FindArchive(ctx, p)
			require.NoError(t, err)
			assert.Equal(t, want, found != nil, p)
		}
	})

	t.Run("refresh", func(t *testing.T) {
		fs := local.NewMemory()
		b, err := NewBackend(fs)
		require.NoError(t, err)
		r := NewRegistry(fs, b)
		require.NoError(t, r.Scan(ctx))

		// created behind the registry's back
		other, err := NewBackend(fs)
		require.NoError(t, err)
		_, err = other.CreateArchive(ctx, "late.arc")
		require.NoError(t, err)

		found, err := r.FindArchive(ctx, "late.arc")
		require.NoError(t, err)
		assert.Nil(t, found)

		require.NoError(t, r.Refresh(ctx))
		found, err = r.FindArchive(ctx, "late.arc")
		require.NoError(t, err)
		assert.NotNil(t, found)

		require.NoError(t, fs.Delete(ctx, "late.arc"))
		require.NoError(t, r.Refresh(ctx))
		found, err = r.FindArchive(ctx, "late.arc")
		require.NoError(t, err)
		assert.Nil(t, found)
	})
}

func TestInit(t *testing.T) {
	ctx := context.Background()

	t.Run("content survives a restart", func(t *testing.T) {
		root := t.TempDir()

		fs, err := local.NewOS(root)
		require.NoError(t, err)
		core, err := Init(ctx, fs)
		require.NoError(t, err)

		file, err := core.File(ctx, "Data/Foo.arc/Sub/Inner.arc/Bar.txt")
		require.NoError(t, err)
		require.NoError(t, file.Update(ctx, true, func(s arcfs.Stream) error {
			_, err := io.WriteString(s, "persisted")
			return err
		}))

		fs2, err := local.NewOS(root)
		require.NoError(t, err)
		core2, err := Init(ctx, fs2)
		require.NoError(t, err)

		file2, err := core2.File(ctx, "data/foo.arc/sub/inner.arc/bar.txt")
		require.NoError(t, err)
		data, err := file2.ReadAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, "persisted", string(data))

		inner, err := core2.Directory(ctx, "Data/Foo.arc/Sub/Inner.arc")
		require.NoError(t, err)
		assert.True(t, inner.Nested())
		exists, err := inner.Exists(ctx)
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("watch registers archives added by others", func(t *testing.T) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		root := t.TempDir()
		fs, err := local.NewOS(root)
		require.NoError(t, err)
		require.NoError(t, fs.CreateDir(ctx, "drop"))
		core, err := Init(ctx, fs, WithWatch(true))
		require.NoError(t, err)

		other, err := local.NewOS(root)
		require.NoError(t, err)
		b, err := NewBackend(other)
		require.NoError(t, err)
		_, err = b.CreateArchive(ctx, "drop/ext.arc")
		require.NoError(t, err)
		data, err := other.ReadAll(ctx, "drop/ext.arc")
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			dir, err := core.Directory(ctx, "drop/ext.arc")
			if err != nil {
				return false
			}
			ok, err := dir.Exists(ctx)
			if err == nil && ok {
				return true
			}
			// the watcher may have started after the first write
			_ = other.Write(ctx, "drop/ext.arc", strings.NewReader(string(data)))
			return false
		}, 5*time.Second, 50*time.Millisecond)
	})

	t.Run("custom extension", func(t *testing.T) {
		fs := local.NewMemory()
		core, err := Init(ctx, fs, WithArchiveExtension(".pak"))
		require.NoError(t, err)

		dir, err := core.Directory(ctx, "game/assets.pak/textures")
		require.NoError(t, err)
		assert.Equal(t, arcfs.ArchiveDirectory, dir.Type())
		require.NoError(t, dir.Create(ctx))

		ok, err := fs.FileExists(ctx, "game/assets.pak")
		require.NoError(t, err)
		assert.True(t, ok)

		plain, err := core.Resolve(ctx, "game/assets.arc")
		require.NoError(t, err)
		assert.Equal(t, arcfs.KindSystemFile, plain.Kind())
	})
}

func TestCoalescer(t *testing.T) {
	var calls atomic.Int32
	c := newCoalescer(20*time.Millisecond, func() { calls.Add(1) })
	defer c.stop()

	for range 10 {
		c.trigger()
	}
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	c.trigger()
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)
}
