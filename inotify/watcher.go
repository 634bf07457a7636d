package inotify

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// Watch is a kernel watch. Several paths may resolve to the same inode and
// therefore share one Watch.
type Watch struct {
	wd      int32
	mask    uint32
	paths   map[string]struct{}
	watcher *Watcher
}

// Wd returns the watch descriptor.
func (w *Watch) Wd() int32 { return w.wd }

// Mask returns the union of the masks the watch was added with.
func (w *Watch) Mask() uint32 {
	w.watcher.mu.Lock()
	defer w.watcher.mu.Unlock()
	return w.mask
}

// Paths returns the paths resolving to this watch, sorted.
func (w *Watch) Paths() []string {
	w.watcher.mu.Lock()
	defer w.watcher.mu.Unlock()
	return sortedKeys(w.paths)
}

// RemovePath forgets one path of the watch. See Watcher.RemovePath.
func (w *Watch) RemovePath(path string) error {
	return w.watcher.RemovePath(path)
}

// Remove asks the kernel to drop the watch. See Watcher.RemoveWatch.
func (w *Watch) Remove() error {
	return w.watcher.RemoveWatch(w)
}

func (w *Watch) String() string {
	return fmt.Sprintf("watch(wd=%d, paths=%v)", w.wd, w.Paths())
}

// WatchEvent is an Event together with the watch that produced it. Watch is
// nil for IN_Q_OVERFLOW and for descriptors the Watcher does not know.
type WatchEvent struct {
	Event
	Watch *Watch
}

// Paths returns the watched paths the event belongs to.
func (e WatchEvent) Paths() []string {
	if e.Watch == nil {
		return nil
	}
	return e.Watch.Paths()
}

// FullPath returns the path of the object the event occurred on. When the
// watch has several paths the first in sorted order is used. It returns ""
// when the event has no watch.
func (e WatchEvent) FullPath() string {
	paths := e.Paths()
	if len(paths) == 0 {
		return ""
	}
	if e.Name == "" {
		return paths[0]
	}
	return filepath.Join(paths[0], e.Name)
}

func (e WatchEvent) String() string {
	return fmt.Sprintf("%v %s", e.Paths(), e.Event.String())
}

// Watcher keeps track of the watches of one inotify instance and maps the
// events read from it back to watched paths.
type Watcher struct {
	mu       sync.Mutex
	h        Handle
	dec      *Decoder
	watches  map[int32]*Watch  // key: watch descriptor
	paths    map[string]*Watch // key: cleaned path
	log      *logrus.Entry
	isClosed bool
}

type Option func(*Watcher)

// WithLogger sets the logger the Watcher reports through.
func WithLogger(log *logrus.Entry) Option {
	return func(w *Watcher) { w.log = log }
}

// WithBufferSize sets the decoder buffer size.
func WithBufferSize(n int) Option {
	return func(w *Watcher) { w.dec = NewDecoder(n) }
}

// NewWatcher opens a new inotify instance.
func NewWatcher(opts ...Option) (*Watcher, error) {
	h, err := Open()
	if err != nil {
		return nil, err
	}
	return NewWatcherWithHandle(h, opts...), nil
}

// NewWatcherWithHandle builds a Watcher on an already open handle. The
// Watcher takes ownership of h.
func NewWatcherWithHandle(h Handle, opts ...Option) *Watcher {
	w := &Watcher{
		h:       h,
		watches: make(map[int32]*Watch),
		paths:   make(map[string]*Watch),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.dec == nil {
		w.dec = NewDecoder(DefaultBufferSize)
	}
	if w.log == nil {
		w.log = logrus.NewEntry(logrus.StandardLogger())
	}
	w.log = w.log.WithField("fd", h.Fd())
	return w
}

// Fd returns the descriptor of the underlying queue, for select and poll.
func (w *Watcher) Fd() int { return w.h.Fd() }

// Add adds path to the watch covering its inode, creating the watch if
// needed. The kernel is always asked with IN_MASK_ADD so another path
// aliasing the same inode keeps its events.
func (w *Watcher) Add(path string, mask uint32) (*Watch, error) {
	path = filepath.Clean(path)
	wd, err := w.h.AddWatch(path, mask|InMaskAdd)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	watch, ok := w.watches[wd]
	if !ok {
		watch = &Watch{wd: wd, paths: make(map[string]struct{}), watcher: w}
		w.watches[wd] = watch
	}
	// The path may have been replaced by another inode since it was added.
	if old, ok := w.paths[path]; ok && old != watch {
		delete(old.paths, path)
		if len(old.paths) == 0 {
			if err := w.h.RemoveWatch(old.wd); err != nil {
				w.log.WithError(err).WithField("wd", old.wd).Debug("failed to remove replaced watch")
			}
		}
	}
	watch.paths[path] = struct{}{}
	watch.mask |= mask &^ InMaskAdd
	w.paths[path] = watch
	return watch, nil
}

// RemovePath stops tracking path. When it was the last path of its watch
// the watch itself is removed.
func (w *Watcher) RemovePath(path string) error {
	path = filepath.Clean(path)

	w.mu.Lock()
	watch, ok := w.paths[path]
	if !ok {
		w.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotWatched, path)
	}
	delete(watch.paths, path)
	delete(w.paths, path)
	last := len(watch.paths) == 0
	w.mu.Unlock()

	if last {
		return w.RemoveWatch(watch)
	}
	return nil
}

// RemoveWatch asks the kernel to remove the watch. The Watcher forgets it
// once the matching IN_IGNORED event has been read.
func (w *Watcher) RemoveWatch(watch *Watch) error {
	return w.h.RemoveWatch(watch.wd)
}

// Read reads the queued events. With block set it waits for at least one
// event. It must not be called from several goroutines at once.
func (w *Watcher) Read(block bool) ([]WatchEvent, error) {
	w.mu.Lock()
	n := len(w.watches)
	w.mu.Unlock()
	if n == 0 {
		return nil, ErrNoWatches
	}

	events, err := w.dec.Poll(w.h, block)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]WatchEvent, 0, len(events))
	for _, ev := range events {
		we := WatchEvent{Event: ev}
		if ev.Mask&InQOverflow != 0 {
			w.log.Warn("inotify event queue overflowed; some events were lost")
		}
		if ev.Wd != -1 {
			if watch, ok := w.watches[ev.Wd]; ok {
				we.Watch = watch
			} else {
				w.log.WithField("wd", ev.Wd).Debug("event for unknown watch descriptor")
			}
		}
		if ev.Mask&InIgnored != 0 && we.Watch != nil {
			w.forget(we.Watch)
		}
		out = append(out, we)
	}
	return out, nil
}

// forget drops watch from the maps. It keeps the watch's own path set so
// events already handed out still resolve. Called with mu held.
func (w *Watcher) forget(watch *Watch) {
	delete(w.watches, watch.wd)
	for p := range watch.paths {
		if w.paths[p] == watch {
			delete(w.paths, p)
		}
	}
}

// Close closes the inotify instance. A Read blocked in another goroutine
// returns an error.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.isClosed {
		w.mu.Unlock()
		return nil
	}
	w.isClosed = true
	w.watches = make(map[int32]*Watch)
	w.paths = make(map[string]*Watch)
	w.mu.Unlock()
	return w.h.Close()
}

// NumPaths returns the number of explicitly watched paths.
func (w *Watcher) NumPaths() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.paths)
}

// NumWatches returns the number of active watches.
func (w *Watcher) NumWatches() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.watches)
}

// Paths returns the watched paths, sorted.
func (w *Watcher) Paths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return sortedKeys(w.paths)
}

// Watches returns the active watches ordered by descriptor.
func (w *Watcher) Watches() []*Watch {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]*Watch, 0, len(w.watches))
	for _, watch := range w.watches {
		out = append(out, watch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].wd < out[j].wd })
	return out
}

// GetWatch returns the watch for path.
func (w *Watcher) GetWatch(path string) (*Watch, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	watch, ok := w.paths[filepath.Clean(path)]
	return watch, ok
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
