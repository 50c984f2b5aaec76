package arcfs_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/gobeaver/arcfs"
	"github.com/gobeaver/arcfs/driver/archive"
	"github.com/gobeaver/arcfs/driver/local"
)

func BenchmarkCore(b *testing.B) {
	ctx := context.Background()
	content := strings.Repeat("Hello, World! ", 100) // ~1.4KB of content

	backends := map[string]func(b *testing.B) arcfs.FileSystem{
		"memory": func(b *testing.B) arcfs.FileSystem { return local.NewMemory() },
		"os": func(b *testing.B) arcfs.FileSystem {
			fs, err := local.NewOS(b.TempDir())
			if err != nil {
				b.Fatalf("Failed to create filesystem: %v", err)
			}
			return fs
		},
	}

	for name, newFS := range backends {
		b.Run(name, func(b *testing.B) {
			core, err := archive.Init(ctx, newFS(b))
			if err != nil {
				b.Fatalf("Failed to init core: %v", err)
			}

			file, err := core.File(ctx, "bench/data.arc/dir/file.txt")
			if err != nil {
				b.Fatal(err)
			}
			if err := file.Create(ctx); err != nil {
				b.Fatal(err)
			}

			b.Run("resolve", func(b *testing.B) {
				for i := 0; i < b.N; i++ {
					if _, err := core.Resolve(ctx, "bench/data.arc/dir/file.txt"); err != nil {
						b.Fatal(err)
					}
				}
			})

			b.Run("update", func(b *testing.B) {
				for i := 0; i < b.N; i++ {
					err := file.Update(ctx, true, func(s arcfs.Stream) error {
						_, err := io.WriteString(s, content)
						return err
					})
					if err != nil {
						b.Fatal(err)
					}
				}
			})

			b.Run("read", func(b *testing.B) {
				for i := 0; i < b.N; i++ {
					if _, err := file.ReadAll(ctx); err != nil {
						b.Fatal(err)
					}
				}
			})
		})
	}
}
