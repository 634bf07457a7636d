package pathwatch

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/hawkingrei/inotify/inotify"

	"github.com/sirupsen/logrus"
)

// elementMask is watched on the directory holding a path element.
const elementMask = inotify.InUnmount | inotify.InOnlydir | inotify.InExclUnlink

// Watcher watches paths. Every directory a path traverses is watched too,
// so a change of the meaning of the path is reported as an IN_PATH_* event
// and the watch moves on to the new target.
//
// Read must not be called from several goroutines at once. Close may be
// called from any goroutine to interrupt a blocked Read.
type Watcher struct {
	mu        sync.Mutex
	w         *inotify.Watcher
	paths     map[string]*pathWatch
	descs     map[int32]*descriptor // key: watch descriptor
	reconnect []*pathWatch
	log       *logrus.Entry
}

// descriptor is a kernel watch shared by all links on the same inode.
type descriptor struct {
	watch *inotify.Watch
	links []*link
	dead  bool // IN_IGNORED seen, the kernel dropped it
}

// link is one watched location of a path: a directory element on the way
// or the final target (leaf).
type link struct {
	pw       *pathWatch
	idx      int
	dir      string
	name     string // entry of dir being traversed, "" for ".." and the leaf
	rest     []string
	symlinks int
	mask     uint32
	leaf     bool
	desc     *descriptor
	removed  bool
}

// fullPath returns the path element the link watches.
func (l *link) fullPath() string {
	if l.name == "" {
		return l.dir
	}
	return filepath.Join(l.dir, l.name)
}

// matches reports whether the kernel event is meant for l.
func (l *link) matches(ev inotify.Event) bool {
	if l.removed || ev.Mask&l.mask == 0 {
		return false
	}
	return l.leaf || ev.Name == "" || ev.Name == l.name
}

type pathWatch struct {
	path     string // as given to Add
	abs      string
	mask     uint32
	links    []*link
	complete bool // the leaf is watched
	pending  bool // queued for reconnect
}

// NewWatcher opens a new inotify instance.
func NewWatcher(opts ...inotify.Option) (*Watcher, error) {
	w, err := inotify.NewWatcher(opts...)
	if err != nil {
		return nil, err
	}
	return NewWatcherWithInotify(w), nil
}

// NewWatcherWithInotify builds a path watcher on w and takes ownership of
// it. w should not be used for other watches.
func NewWatcherWithInotify(w *inotify.Watcher) *Watcher {
	return &Watcher{
		w:     w,
		paths: make(map[string]*pathWatch),
		descs: make(map[int32]*descriptor),
		log:   logrus.WithField("fd", w.Fd()),
	}
}

// Fd returns the descriptor of the underlying queue.
func (w *Watcher) Fd() int { return w.w.Fd() }

// Add watches path with mask. Relative paths are taken relative to the
// current working directory at the time of the call. If path is already
// watched its mask is replaced, or extended when mask has IN_MASK_ADD.
//
// Missing path elements are not an error: the nearest existing directory is
// watched and the watch completes when the element appears. A symlink loop
// is an error.
func (w *Watcher) Add(path string, mask uint32) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if pw, ok := w.paths[path]; ok {
		return w.update(pw, mask)
	}
	abs := path
	if !filepath.IsAbs(abs) {
		// Not filepath.Abs: cleaning would drop ".." before the symlinks
		// in front of it are known.
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		abs = cwd + "/" + path
	}
	pw := &pathWatch{path: path, abs: abs, mask: mask &^ inotify.InMaskAdd}
	if err := w.connect(pw); err != nil {
		w.truncate(pw, 0)
		return err
	}
	w.paths[path] = pw
	return nil
}

func (w *Watcher) update(pw *pathWatch, mask uint32) error {
	if mask&inotify.InMaskAdd != 0 {
		pw.mask |= mask &^ inotify.InMaskAdd
	} else {
		pw.mask = mask
	}
	if !pw.complete {
		return nil
	}
	old := pw.links[len(pw.links)-1]
	pw.links = pw.links[:len(pw.links)-1]
	err := w.addLink(pw, &link{dir: old.dir, mask: pw.mask, leaf: true})
	w.removeLink(old)
	if err != nil {
		pw.complete = false
		if isPathFault(err) {
			w.schedule(pw)
			return nil
		}
	}
	return err
}

// connect resolves the rest of the path from the last watched link,
// watching every step. It stops quietly at a missing element.
func (w *Watcher) connect(pw *pathWatch) error {
	start := step{dir: "/", rest: splitPath(pw.abs)}
	resume := len(pw.links) > 0
	if resume {
		last := pw.links[len(pw.links)-1]
		start = step{dir: last.dir, rest: last.rest, symlinks: last.symlinks}
	}

	target, err := resolve(start, func(s step) error {
		if resume {
			// Already watched by the last link.
			resume = false
			return nil
		}
		l := &link{dir: s.dir, rest: s.rest, symlinks: s.symlinks, mask: elementMask}
		if s.rest[0] == ".." {
			l.mask |= inotify.InMoveSelf | inotify.InDeleteSelf
		} else {
			l.mask |= inotify.InMove | inotify.InDelete | inotify.InCreate
			l.name = s.rest[0]
		}
		return w.addLink(pw, l)
	})
	if err == nil {
		err = w.addLink(pw, &link{dir: target, mask: pw.mask, leaf: true})
	}
	if err != nil {
		if isPathFault(err) {
			w.log.WithError(err).WithField("path", pw.path).Debug("path does not resolve yet")
			return nil
		}
		return err
	}
	pw.complete = true
	return nil
}

func (w *Watcher) addLink(pw *pathWatch, l *link) error {
	watch, err := w.w.Add(l.dir, l.mask)
	if err != nil {
		return err
	}
	d, ok := w.descs[watch.Wd()]
	if !ok {
		d = &descriptor{watch: watch}
		w.descs[watch.Wd()] = d
	}
	l.pw = pw
	l.idx = len(pw.links)
	l.desc = d
	d.links = append(d.links, l)
	pw.links = append(pw.links, l)
	return nil
}

func (w *Watcher) removeLink(l *link) {
	l.removed = true
	d := l.desc
	for i, other := range d.links {
		if other == l {
			d.links = append(d.links[:i], d.links[i+1:]...)
			break
		}
	}
	if len(d.links) > 0 || d.dead {
		return
	}
	delete(w.descs, d.watch.Wd())
	if err := w.w.RemoveWatch(d.watch); err != nil {
		w.log.WithError(err).WithField("wd", d.watch.Wd()).Debug("failed to remove path element watch")
	}
}

// truncate drops the links of pw from index i on.
func (w *Watcher) truncate(pw *pathWatch, i int) {
	if i >= len(pw.links) {
		return
	}
	for _, l := range pw.links[i:] {
		w.removeLink(l)
	}
	pw.links = pw.links[:i]
	pw.complete = false
}

func (w *Watcher) schedule(pw *pathWatch) {
	if !pw.pending {
		pw.pending = true
		w.reconnect = append(w.reconnect, pw)
	}
}

// Read reads the queued events. With block set it waits for at least one
// kernel event; that event may be filtered out, so the result can be empty.
// Paths whose meaning changed are reconnected before Read returns.
func (w *Watcher) Read(block bool) ([]Event, error) {
	w.mu.Lock()
	n := len(w.paths)
	w.mu.Unlock()
	if n == 0 {
		return nil, inotify.ErrNoWatches
	}

	raw, err := w.w.Read(block)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	var out []Event
	for _, ev := range raw {
		out = w.dispatch(out, ev.Event)
	}
	for _, pw := range w.reconnect {
		pw.pending = false
		if _, ok := w.paths[pw.path]; !ok {
			continue
		}
		if err := w.connect(pw); err != nil {
			w.log.WithError(err).WithField("path", pw.path).Warn("failed to follow changed path")
		}
	}
	w.reconnect = w.reconnect[:0]
	return out, nil
}

func (w *Watcher) dispatch(out []Event, ev inotify.Event) []Event {
	if ev.Wd == -1 {
		if ev.Mask&inotify.InQOverflow != 0 {
			// Changes may have been lost: start over for every path.
			for _, pw := range w.paths {
				w.truncate(pw, 0)
				w.schedule(pw)
			}
		}
		return append(out, Event{Event: ev})
	}
	d, ok := w.descs[ev.Wd]
	if !ok {
		return out
	}
	links := append([]*link(nil), d.links...)

	if ev.Mask&inotify.InIgnored != 0 {
		d.dead = true
		delete(w.descs, ev.Wd)
		for _, l := range links {
			if l.removed {
				continue
			}
			pw := l.pw
			if l.leaf && pw.complete {
				out = append(out, Event{Event: ev, Path: pw.path})
			} else {
				out = append(out, w.pathEvent(l, ev))
			}
			w.truncate(pw, l.idx)
			w.schedule(pw)
		}
		return out
	}

	for _, l := range links {
		if !l.matches(ev) {
			continue
		}
		pw := l.pw
		if l.leaf && pw.complete {
			out = append(out, Event{Event: ev, Path: pw.path})
			continue
		}
		// Entry events leave the directory itself intact, only what lies
		// behind the entry has to be resolved again.
		i := l.idx
		if ev.Mask&(inotify.InMove|inotify.InDelete|inotify.InCreate) != 0 {
			i++
		}
		out = append(out, w.pathEvent(l, ev))
		w.truncate(pw, i)
		w.schedule(pw)
	}
	return out
}

func (w *Watcher) pathEvent(l *link, ev inotify.Event) Event {
	return Event{
		Event: inotify.Event{Wd: ev.Wd, Mask: pathMask(ev.Mask), Name: l.fullPath()},
		Path:  l.pw.path,
	}
}

// Remove stops watching path.
func (w *Watcher) Remove(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	pw, ok := w.paths[path]
	if !ok {
		return fmt.Errorf("%w: %s", inotify.ErrNotWatched, path)
	}
	w.truncate(pw, 0)
	delete(w.paths, path)
	return nil
}

// Mask returns the mask of the watch on path.
func (w *Watcher) Mask(path string) (uint32, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	pw, ok := w.paths[path]
	if !ok {
		return 0, false
	}
	return pw.mask, true
}

// Target returns the symlink free location path currently resolves to, and
// false while some element of it is missing.
func (w *Watcher) Target(path string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	pw, ok := w.paths[path]
	if !ok || !pw.complete {
		return "", false
	}
	return pw.links[len(pw.links)-1].dir, true
}

// Paths returns the watched paths, sorted.
func (w *Watcher) Paths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	paths := make([]string, 0, len(w.paths))
	for p := range w.paths {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Close closes the inotify instance.
func (w *Watcher) Close() error {
	w.mu.Lock()
	w.paths = make(map[string]*pathWatch)
	w.descs = make(map[int32]*descriptor)
	w.reconnect = nil
	w.mu.Unlock()
	return w.w.Close()
}
