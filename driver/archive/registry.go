package archive

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gobeaver/arcfs"
)

// Registry is the set of known archives. It is populated by a scan of the
// filesystem and extended by Register as archives are created.
type Registry struct {
	mu       sync.RWMutex
	fs       arcfs.FileSystem
	backend  *Backend
	archives []*Archive
	scanned  bool
	logger   *slog.Logger
}

// NewRegistry creates an empty registry. It answers lookups only after Scan.
func NewRegistry(fs arcfs.FileSystem, backend *Backend, options ...Option) *Registry {
	opts := processOptions(options...)
	return &Registry{
		fs:      fs,
		backend: backend,
		logger:  opts.Logger,
	}
}

// Scan walks the filesystem and registers every archive found, including
// archives nested in them. Unreadable archives are logged and skipped.
func (r *Registry) Scan(ctx context.Context) error {
	files, err := arcfs.ListWithSelector(ctx, r.fs, "", arcfs.Archives(r.backend.matcher), true)
	if err != nil {
		return err
	}

	var found []*Archive
	for _, info := range files {
		if r.known(info.Path) {
			continue
		}

		a, err := r.backend.Open(ctx, info.Path)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Warn("skipping unreadable archive",
				slog.String("path", info.Path),
				slog.Any("error", err))
			continue
		}
		found = append(found, a)
	}

	r.mu.Lock()
	for _, a := range found {
		// registered while the scan was reading
		if r.knownLocked(a.Path()) {
			continue
		}
		r.add(a)
	}
	r.scanned = true
	count := len(r.archives)
	r.mu.Unlock()

	r.logger.Debug("archive scan complete",
		slog.Int("found", len(found)),
		slog.Int("archives", count))
	return nil
}

// Refresh drops archives whose file no longer exists and scans again for
// new ones.
func (r *Registry) Refresh(ctx context.Context) error {
	r.mu.RLock()
	var top []*Archive
	for _, a := range r.archives {
		if !a.Nested() {
			top = append(top, a)
		}
	}
	r.mu.RUnlock()

	var gone []*Archive
	for _, a := range top {
		exists, err := r.fs.FileExists(ctx, a.path)
		if err != nil {
			return err
		}
		if !exists {
			gone = append(gone, a)
		}
	}

	if len(gone) > 0 {
		r.mu.Lock()
		for _, a := range gone {
			r.remove(a)
		}
		r.mu.Unlock()
	}

	return r.Scan(ctx)
}

// Watch refreshes the registry whenever an archive changes on a watchable
// filesystem. Changes arriving within refreshDelay of each other share one
// refresh. It blocks until ctx is cancelled.
func (r *Registry) Watch(ctx context.Context, w arcfs.CanWatch) error {
	refresh := newCoalescer(refreshDelay, func() {
		if ctx.Err() != nil {
			return
		}
		if err := r.Refresh(ctx); err != nil {
			r.logger.Warn("archive refresh failed", slog.Any("error", err))
		}
	})
	defer refresh.stop()

	pattern := "**" + r.backend.matcher.Extension() + "*"
	return arcfs.OnChange(ctx, func() (arcfs.ChangeToken, error) {
		return w.Watch(ctx, pattern)
	}, refresh.trigger)
}

// Relocate implements arcfs.ArchiveRegistry
func (r *Registry) Relocate(ctx context.Context, oldDir, newDir string) error {
	oldDir, newDir = cleanPath(oldDir), cleanPath(newDir)

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.scanned {
		return &arcfs.PathError{Op: "relocate", Path: oldDir, Err: arcfs.ErrNotInitialized}
	}

	moved := 0
	for _, a := range r.archives {
		if a.Nested() || !under(a.path, oldDir) {
			continue
		}
		a.path = newDir + a.path[len(oldDir):]
		moved++
	}

	r.logger.Debug("relocated archives",
		slog.String("from", oldDir),
		slog.String("to", newDir),
		slog.Int("archives", moved))
	return nil
}

// FindArchive implements arcfs.ArchiveRegistry
func (r *Registry) FindArchive(ctx context.Context, p string) (arcfs.ArchiveHandle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.scanned {
		return nil, &arcfs.PathError{Op: "findarchive", Path: p, Err: arcfs.ErrNotInitialized}
	}

	p = cleanPath(p)
	for _, a := range r.archives {
		if samePath(a.Path(), p) {
			return a, nil
		}
	}
	return nil, nil
}

// Register implements arcfs.ArchiveRegistry
func (r *Registry) Register(archive arcfs.ArchiveHandle) error {
	a, err := asArchive("register", archive)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.scanned {
		return &arcfs.PathError{Op: "register", Path: a.Path(), Err: arcfs.ErrNotInitialized}
	}
	r.add(a)
	return nil
}

// Archives returns the registered archives whose records are still attached.
func (r *Registry) Archives() []*Archive {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Archive, 0, len(r.archives))
	for _, a := range r.archives {
		if a.Path() != "" {
			out = append(out, a)
		}
	}
	return out
}

func (r *Registry) known(p string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.knownLocked(p)
}

func (r *Registry) knownLocked(p string) bool {
	for _, a := range r.archives {
		if samePath(a.Path(), p) {
			return true
		}
	}
	return false
}

// add registers a and its nested archives. An archive registered under the
// same path is replaced. Caller holds the lock.
func (r *Registry) add(a *Archive) {
	var stale []*Archive
	for _, existing := range r.archives {
		if existing == a {
			return
		}
		if samePath(existing.Path(), a.Path()) {
			stale = append(stale, existing)
		}
	}
	for _, s := range stale {
		r.remove(s)
	}

	r.archives = append(r.archives, a)
	for _, nested := range a.Archives() {
		r.add(nested)
	}
}

// remove drops a and its nested archives. Caller holds the lock.
func (r *Registry) remove(a *Archive) {
	drop := map[*Archive]bool{a: true}
	for _, nested := range a.Archives() {
		drop[nested] = true
	}

	kept := r.archives[:0]
	for _, existing := range r.archives {
		if !drop[existing] {
			kept = append(kept, existing)
		}
	}
	r.archives = kept
}

func samePath(a, b string) bool {
	return a != "" && strings.EqualFold(a, b)
}

// under reports whether p lies below dir, ignoring case.
func under(p, dir string) bool {
	return len(p) > len(dir) && p[len(dir)] == '/' && strings.EqualFold(p[:len(dir)], dir)
}

// refreshDelay is how long a registry watch waits for more change events
// before refreshing.
const refreshDelay = 250 * time.Millisecond

// coalescer runs fn once per burst of triggers: the first trigger schedules
// fn after delay and later ones are absorbed until it has started.
type coalescer struct {
	mu      sync.Mutex
	delay   time.Duration
	fn      func()
	timer   *time.Timer
	pending bool
}

func newCoalescer(delay time.Duration, fn func()) *coalescer {
	return &coalescer{delay: delay, fn: fn}
}

func (c *coalescer) trigger() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending {
		return
	}
	c.pending = true
	c.timer = time.AfterFunc(c.delay, func() {
		c.mu.Lock()
		c.pending = false
		c.mu.Unlock()
		c.fn()
	})
}

func (c *coalescer) stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
	}
}

// Ensure Registry implements arcfs.ArchiveRegistry
var _ arcfs.ArchiveRegistry = (*Registry)(nil)
