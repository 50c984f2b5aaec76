package arcfs

import (
	"github.com/gobeaver/beaver-kit/config"
)

// EnvPrefix is prepended to the variable names of Config.
const EnvPrefix = "ARCFS_"

type Config struct {
	// Filesystem backend to use (local, memory)
	Driver string `env:"DRIVER,default:local"`

	// Root directory all paths are relative to (local driver)
	Root string `env:"ROOT,default:."`

	// Reserved extension marking archive files
	ArchiveExtension string `env:"ARCHIVE_EXTENSION,default:.arc"`

	// Pick up archives created by other processes after the startup scan
	WatchArchives bool `env:"WATCH_ARCHIVES,default:false"`

	// Reject every write through the filesystem backend
	ReadOnly bool `env:"READ_ONLY,default:false"`

	// Log level (debug, info, warn, error)
	LogLevel string `env:"LOG_LEVEL,default:info"`
}

// GetConfig returns config loaded from ARCFS_* environment variables
func GetConfig() (*Config, error) {
	return LoadConfig(EnvPrefix)
}

// LoadConfig returns config loaded from environment variables named with
// the given prefix, e.g. "MYAPP_" reads MYAPP_DRIVER.
func LoadConfig(prefix string) (*Config, error) {
	cfg := &Config{}
	if err := config.Load(cfg, config.LoadOptions{Prefix: prefix}); err != nil {
		return nil, err
	}
	return cfg, nil
}
