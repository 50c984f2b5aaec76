package arcfs

import (
	"log/slog"
)

// Option configures a Core.
type Option func(*Options)

// Options contains the settings applied by New.
type Options struct {
	// Logger receives debug records for resolution and mutations.
	Logger *slog.Logger

	// ArchiveExtension is the reserved extension marking archive files.
	ArchiveExtension string
}

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

// processOptions processes the provided options
func processOptions(options ...Option) *Options {
	opts := &Options{
		Logger:           slog.New(slog.DiscardHandler),
		ArchiveExtension: DefaultArchiveExtension,
	}
	for _, option := range options {
		option(opts)
	}
	return opts
}
