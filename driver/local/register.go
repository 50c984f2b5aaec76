package local

import "github.com/gobeaver/arcfs"

func init() {
	arcfs.RegisterFileSystem("local", func(cfg *arcfs.Config) (arcfs.FileSystem, error) {
		return NewOS(cfg.Root)
	})
	arcfs.RegisterFileSystem("memory", func(cfg *arcfs.Config) (arcfs.FileSystem, error) {
		return NewMemory(), nil
	})
}
