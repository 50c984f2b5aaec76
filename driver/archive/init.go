package archive

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gobeaver/arcfs"
)

// Init scans fs for archives and returns a Core over fs, the zip archive
// backend and a populated registry.
//
// With WithWatch(true) and a filesystem implementing arcfs.CanWatch, the
// registry keeps watching for archives created by other processes until
// ctx is cancelled.
func Init(ctx context.Context, fs arcfs.FileSystem, options ...Option) (*arcfs.Core, error) {
	opts := processOptions(options...)

	backend, err := NewBackend(fs, options...)
	if err != nil {
		return nil, err
	}

	registry := NewRegistry(fs, backend, options...)
	if err := registry.Scan(ctx); err != nil {
		return nil, err
	}

	core, err := arcfs.New(fs, backend, registry,
		arcfs.WithLogger(opts.Logger),
		arcfs.WithArchiveExtension(opts.ArchiveExtension))
	if err != nil {
		return nil, err
	}

	if opts.Watch {
		if w, ok := fs.(arcfs.CanWatch); ok {
			go func() {
				err := registry.Watch(ctx, w)
				if err != nil && !errors.Is(err, context.Canceled) {
					opts.Logger.Warn("archive watch stopped", slog.Any("error", err))
				}
			}()
		}
	}

	return core, nil
}
