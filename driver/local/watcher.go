package local

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/gobeaver/arcfs"
	"github.com/gobwas/glob"
)

// Watch implements arcfs.CanWatch using fsnotify for native file system events.
// Only adapters backed by the OS filesystem can watch.
//
// The pattern is a glob over slash-separated paths relative to the root;
// "**" crosses directories. The token fires on the first matching event.
func (a *Adapter) Watch(ctx context.Context, pattern string) (arcfs.ChangeToken, error) {
	if a.root == "" {
		return nil, &arcfs.PathError{Op: "watch", Path: pattern, Err: arcfs.ErrNotSupported}
	}

	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, &arcfs.PathError{Op: "watch", Path: pattern, Err: err}
	}

	token := arcfs.NewCallbackChangeToken()

	watcher, err := newFSWatcher()
	if err != nil {
		return nil, &arcfs.PathError{Op: "watch", Path: pattern, Err: err}
	}

	if err := watcher.Add(a.root); err != nil {
		watcher.Close()
		return nil, &arcfs.PathError{Op: "watch", Path: pattern, Err: err}
	}

	// For recursive patterns (**), add all subdirectories
	recursive := strings.Contains(pattern, "**")
	if recursive {
		filepath.Walk(a.root, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return nil
			}
			if info.IsDir() && p != a.root {
				watcher.Add(p)
			}
			return nil
		})
	}

	// Start goroutine to process events
	go func() {
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events():
				if !ok {
					return
				}

				if recursive && event.Op&uint32(fsnotify.Create) != 0 {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
						watcher.Add(event.Name)
					}
				}

				relPath, err := filepath.Rel(a.root, event.Name)
				if err != nil {
					continue
				}
				relPath = filepath.ToSlash(relPath)

				if g.Match(relPath) || g.Match(filepath.Base(relPath)) {
					token.SignalChange()
					return // Token is spent after first change
				}
			case err, ok := <-watcher.Errors():
				if !ok {
					return
				}
				a.logger.Warn("watch error", slog.String("root", a.root), slog.Any("error", err))
			}
		}
	}()

	return token, nil
}

// fsWatcher wraps fsnotify.Watcher with a simpler interface
type fsWatcher interface {
	Add(path string) error
	Close() error
	Events() <-chan fsEvent
	Errors() <-chan error
}

type fsEvent struct {
	Name string
	Op   uint32
}

// fsnotifyWatcher wraps fsnotify.Watcher to implement fsWatcher interface
type fsnotifyWatcher struct {
	watcher *fsnotify.Watcher
	events  chan fsEvent
	errors  chan error
	done    chan struct{}
}

// newFSWatcher creates a new file system watcher using fsnotify
func newFSWatcher() (fsWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	fw := &fsnotifyWatcher{
		watcher: w,
		events:  make(chan fsEvent),
		errors:  make(chan error),
		done:    make(chan struct{}),
	}

	// Forward events until the watcher is closed
	go func() {
		defer close(fw.events)
		defer close(fw.errors)
		for {
			select {
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				select {
				case fw.events <- fsEvent{Name: event.Name, Op: uint32(event.Op)}:
				case <-fw.done:
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				select {
				case fw.errors <- err:
				case <-fw.done:
					return
				}
			}
		}
	}()

	return fw, nil
}

func (w *fsnotifyWatcher) Add(path string) error {
	return w.watcher.Add(path)
}

func (w *fsnotifyWatcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *fsnotifyWatcher) Events() <-chan fsEvent {
	return w.events
}

func (w *fsnotifyWatcher) Errors() <-chan error {
	return w.errors
}
