package arcfs

import (
	"fmt"
	"sync"
)

// FileSystemFactory is a function that creates a FileSystem from a config
type FileSystemFactory func(cfg *Config) (FileSystem, error)

var (
	fsFactories  = make(map[string]FileSystemFactory)
	factoryMutex sync.RWMutex
)

// RegisterFileSystem registers a filesystem backend factory function
func RegisterFileSystem(name string, factory FileSystemFactory) {
	factoryMutex.Lock()
	defer factoryMutex.Unlock()
	fsFactories[name] = factory
}

// CreateFileSystem creates a filesystem backend instance from config
func CreateFileSystem(cfg *Config) (FileSystem, error) {
	factoryMutex.RLock()
	factory, exists := fsFactories[cfg.Driver]
	factoryMutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("driver %s not registered", cfg.Driver)
	}

	return factory(cfg)
}
