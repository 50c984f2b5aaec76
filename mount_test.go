package arcfs_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gobeaver/arcfs"
	"github.com/gobeaver/arcfs/driver/archive"
	"github.com/gobeaver/arcfs/driver/local"
)

func TestMountManager(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*arcfs.MountManager, *local.Adapter, *local.Adapter) {
		t.Helper()
		base, extra := local.NewMemory(), local.NewMemory()
		m := arcfs.NewMountManager()
		require.NoError(t, m.Mount("", base))
		require.NoError(t, m.Mount("/mods/extra/", extra))
		return m, base, extra
	}

	t.Run("mount bookkeeping", func(t *testing.T) {
		m, _, extra := setup(t)

		assert.ErrorIs(t, m.Mount("x", nil), arcfs.ErrNilDriver)
		assert.ErrorIs(t, m.Mount("mods/extra", local.NewMemory()), arcfs.ErrMountExists)
		assert.ErrorIs(t, m.Mount("../up", local.NewMemory()), arcfs.ErrInvalidMountPath)
		assert.ErrorIs(t, m.Unmount("missing"), arcfs.ErrMountNotFound)

		assert.Equal(t, []string{"mods/extra", ""}, m.MountPaths())

		got, err := m.GetMount(`mods\extra`)
		require.NoError(t, err)
		assert.Same(t, extra, got)

		require.NoError(t, m.Unmount("mods/extra"))
		assert.Equal(t, []string{""}, m.MountPaths())
	})

	t.Run("routes by longest prefix", func(t *testing.T) {
		m, base, extra := setup(t)

		require.NoError(t, m.Write(ctx, "mods/extra/a.txt", strings.NewReader("extra")))
		require.NoError(t, m.Write(ctx, "mods/other.txt", strings.NewReader("base")))

		data, err := extra.ReadAll(ctx, "a.txt")
		require.NoError(t, err)
		assert.Equal(t, "extra", string(data))

		data, err = base.ReadAll(ctx, "mods/other.txt")
		require.NoError(t, err)
		assert.Equal(t, "base", string(data))

		data, err = m.ReadAll(ctx, "mods/extra/a.txt")
		require.NoError(t, err)
		assert.Equal(t, "extra", string(data))
	})

	t.Run("mount directories", func(t *testing.T) {
		m, _, _ := setup(t)

		for _, p := range []string{"", "mods", "mods/extra"} {
			ok, err := m.DirExists(ctx, p)
			require.NoError(t, err)
			assert.True(t, ok, p)

			ok, err = m.FileExists(ctx, p)
			require.NoError(t, err)
			assert.False(t, ok, p)

			require.NoError(t, m.CreateDir(ctx, p))
		}

		assert.ErrorIs(t, m.Delete(ctx, "mods"), arcfs.ErrNotAllowed)
		assert.ErrorIs(t, m.Delete(ctx, "mods/extra"), arcfs.ErrNotAllowed)
		assert.ErrorIs(t, m.Move(ctx, "mods/extra", "mods/renamed"), arcfs.ErrNotAllowed)
		assert.ErrorIs(t, m.CreateFile(ctx, "mods"), arcfs.ErrIsDir)
	})

	t.Run("read dir merges mount points", func(t *testing.T) {
		m, base, extra := setup(t)
		require.NoError(t, base.Write(ctx, "top/x.txt", strings.NewReader("x")))
		require.NoError(t, base.CreateDir(ctx, "mods/plain"))
		require.NoError(t, extra.Write(ctx, "inner/y.txt", strings.NewReader("y")))

		names := func(infos []arcfs.FileInfo) []string {
			out := make([]string, 0, len(infos))
			for _, info := range infos {
				out = append(out, info.Path)
			}
			return out
		}

		infos, err := m.ReadDir(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, []string{"mods", "top"}, names(infos))

		infos, err = m.ReadDir(ctx, "mods")
		require.NoError(t, err)
		assert.Equal(t, []string{"mods/extra", "mods/plain"}, names(infos))

		infos, err = m.ReadDir(ctx, "mods/extra")
		require.NoError(t, err)
		assert.Equal(t, []string{"mods/extra/inner"}, names(infos))

		infos, err = m.ReadDir(ctx, "mods/extra/inner")
		require.NoError(t, err)
		assert.Equal(t, []string{"mods/extra/inner/y.txt"}, names(infos))
	})

	t.Run("without a root mount", func(t *testing.T) {
		m := arcfs.NewMountManager()
		require.NoError(t, m.Mount("data", local.NewMemory()))

		ok, err := m.FileExists(ctx, "elsewhere/x.txt")
		require.NoError(t, err)
		assert.False(t, ok)

		err = m.Write(ctx, "elsewhere/x.txt", strings.NewReader("x"))
		assert.ErrorIs(t, err, arcfs.ErrMountNotFound)

		infos, err := m.ReadDir(ctx, "")
		require.NoError(t, err)
		require.Len(t, infos, 1)
		assert.Equal(t, "data", infos[0].Name)

		_, err = m.ReadDir(ctx, "elsewhere")
		assert.ErrorIs(t, err, arcfs.ErrMountNotFound)
	})

	t.Run("move across mounts", func(t *testing.T) {
		m, base, extra := setup(t)
		require.NoError(t, base.Write(ctx, "in.txt", strings.NewReader("moving")))

		require.NoError(t, m.Move(ctx, "in.txt", "mods/extra/out.txt"))

		data, err := extra.ReadAll(ctx, "out.txt")
		require.NoError(t, err)
		assert.Equal(t, "moving", string(data))
		ok, err := base.FileExists(ctx, "in.txt")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, base.CreateDir(ctx, "folder"))
		assert.ErrorIs(t, m.Move(ctx, "folder", "mods/extra/folder"), arcfs.ErrCrossMount)

		require.NoError(t, base.Write(ctx, "clash.txt", strings.NewReader("new")))
		assert.ErrorIs(t, m.Move(ctx, "clash.txt", "mods/extra/out.txt"), arcfs.ErrExist)
		data, err = extra.ReadAll(ctx, "out.txt")
		require.NoError(t, err)
		assert.Equal(t, "moving", string(data))

		require.NoError(t, m.Move(ctx, "mods/extra/out.txt", "mods/extra/again.txt"))
		ok, err = extra.FileExists(ctx, "again.txt")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("watch needs a watchable mount", func(t *testing.T) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		m, _, _ := setup(t)
		_, err := m.Watch(ctx, "**")
		assert.ErrorIs(t, err, arcfs.ErrNotSupported)

		osfs, err := local.NewOS(t.TempDir())
		require.NoError(t, err)
		require.NoError(t, m.Mount("disk", osfs))

		token, err := m.Watch(ctx, "**")
		require.NoError(t, err)
		assert.True(t, token.ActiveChangeCallbacks())
	})

	t.Run("archives inside a mount", func(t *testing.T) {
		m, _, extra := setup(t)

		core, err := archive.Init(ctx, m)
		require.NoError(t, err)

		file, err := core.File(ctx, "mods/extra/pack.arc/docs/readme.txt")
		require.NoError(t, err)
		require.NoError(t, file.Create(ctx))

		ok, err := extra.FileExists(ctx, "pack.arc")
		require.NoError(t, err)
		assert.True(t, ok)

		// a second core finds the archive through the mounted tree
		core2, err := archive.Init(ctx, m)
		require.NoError(t, err)
		dir, err := core2.Directory(ctx, "mods/extra/pack.arc")
		require.NoError(t, err)
		children, err := dir.Children(ctx)
		require.NoError(t, err)
		require.Len(t, children, 1)
		assert.Equal(t, "docs", children[0].Name())
	})
}

func TestCompositeChangeToken(t *testing.T) {
	a, b := arcfs.NewCallbackChangeToken(), arcfs.NewCallbackChangeToken()
	token := arcfs.NewCompositeChangeToken(a, b)
	assert.True(t, token.ActiveChangeCallbacks())
	assert.False(t, token.HasChanged())

	calls := 0
	unregister := token.RegisterChangeCallback(func() { calls++ })
	b.SignalChange()
	assert.True(t, token.HasChanged())
	assert.Equal(t, 1, calls)

	unregister()
	a.SignalChange()
	assert.Equal(t, 1, calls)

	assert.False(t, arcfs.NewCompositeChangeToken(a, arcfs.NeverChangeToken{}).ActiveChangeCallbacks())
	assert.False(t, arcfs.NewCompositeChangeToken().ActiveChangeCallbacks())
}
