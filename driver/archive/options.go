package archive

import (
	"log/slog"

	"github.com/gobeaver/arcfs"
)

// Options configures the backend, the registry and Init.
type Options struct {
	Logger           *slog.Logger
	ArchiveExtension string
	// Watch keeps the registry up to date with archives created by other
	// processes. Only used by Init, and only for watchable filesystems.
	Watch bool
}

// Option represents a configuration option
type Option func(*Options)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// WithArchiveExtension sets the archive extension (".arc" by default).
func WithArchiveExtension(ext string) Option {
	return func(o *Options) {
		o.ArchiveExtension = ext
	}
}

// WithWatch enables watching the filesystem for new archives.
func WithWatch(enabled bool) Option {
	return func(o *Options) {
		o.Watch = enabled
	}
}

// processOptions processes the provided options
func processOptions(options ...Option) *Options {
	opts := &Options{
		Logger:           slog.New(slog.DiscardHandler),
		ArchiveExtension: arcfs.DefaultArchiveExtension,
	}
	for _, option := range options {
		option(opts)
	}
	return opts
}
