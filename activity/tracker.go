package activity

import (
	"context"
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"text/tabwriter"
	"time"

	"github.com/hawkingrei/inotify/activity/internal/heavykeeper"
	"github.com/hawkingrei/inotify/diskutil"
	"github.com/hawkingrei/inotify/inotify"

	"github.com/sirupsen/logrus"
)

// Tracker counts events per category and keeps the paths with the most
// activity. It only observes events; the stream itself is not altered.
type Tracker struct {
	mu          sync.Mutex
	heavykeeper heavykeeper.Topk
	categories  map[uint32]uint64
	total       uint64
	started     time.Time

	// reset on every fade
	eventCnt atomic.Int64
	write    atomic.Int64
}

// New returns a tracker keeping the top hottest paths.
func New(top int) *Tracker {
	if top < 1 {
		top = 1
	}
	factor := uint32(math.Log(float64(top)))
	if factor < 1 {
		factor = 1
	}
	return &Tracker{
		heavykeeper: heavykeeper.NewHeavyKeeper(uint32(top), 1024*factor, 4, 0.925, 1),
		categories:  make(map[uint32]uint64),
		started:     time.Now(),
	}
}

// Observe accounts one event. Creations weigh more than other events.
func (t *Tracker) Observe(event inotify.WatchEvent) {
	t.eventCnt.Add(1)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.total++
	for _, c := range inotify.Categories() {
		if event.Mask&c.Bit != 0 {
			t.categories[c.Bit]++
		}
	}
	path := event.FullPath()
	if path == "" {
		return
	}
	if event.HasEvent(inotify.InCreate) {
		t.heavykeeper.Add(path, 10)
		t.write.Add(1)
	} else {
		t.heavykeeper.Add(path, 1)
	}
}

// Run observes events until the channel is closed or ctx is done. Every
// interval the counts of a busy tracker are faded.
func (t *Tracker) Run(ctx context.Context, events <-chan inotify.WatchEvent, interval time.Duration) {
	expelledChan := t.heavykeeper.Expelled()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			t.Observe(event)
		case <-ticker.C:
			t.trickWorker()
		case item := <-expelledChan:
			logrus.WithField("path", item.Key).Debug("path left the hot list")
		case <-ctx.Done():
			return
		}
	}
}

func (t *Tracker) trickWorker() {
	if t.eventCnt.Load() > 5000 || t.write.Load() > 2000 {
		t.eventCnt.Store(0)
		t.write.Store(0)
		t.mu.Lock()
		t.heavykeeper.Fading()
		t.mu.Unlock()
		logrus.Info("faded path activity")
	}
}

// CategoryCount is the number of events carrying one category bit.
type CategoryCount struct {
	Name  string
	Count uint64
}

// HotEntry is a path with its estimated activity.
type HotEntry struct {
	diskutil.EntryInfo
	Count uint32
}

// Report is a snapshot of a Tracker.
type Report struct {
	Elapsed    time.Duration
	Events     uint64
	Categories []CategoryCount // catalog order, zero counts left out
	Hot        []HotEntry      // heaviest first
}

// Report takes a snapshot. Access times are resolved for hot entries.
func (t *Tracker) Report() Report {
	t.mu.Lock()
	r := Report{
		Elapsed: time.Since(t.started),
		Events:  t.total,
	}
	for _, c := range inotify.Categories() {
		if n := t.categories[c.Bit]; n > 0 {
			r.Categories = append(r.Categories, CategoryCount{Name: c.Name, Count: n})
		}
	}
	items := t.heavykeeper.List()
	t.mu.Unlock()

	paths := make([]string, len(items))
	for i, item := range items {
		paths[i] = item.Key
	}
	for i, entry := range diskutil.GetEntries(paths) {
		r.Hot = append(r.Hot, HotEntry{EntryInfo: entry, Count: items[i].Count})
	}
	return r
}

// WriteTo prints the report as aligned text.
func (r Report) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	tw := tabwriter.NewWriter(cw, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "total\t%d\tevents in %s\n", r.Events, r.Elapsed.Round(time.Second))
	for _, c := range r.Categories {
		fmt.Fprintf(tw, "%s\t%d\t\n", c.Name, c.Count)
	}
	if len(r.Hot) > 0 {
		fmt.Fprintln(tw, "\nweight\tlast access\tpath")
		for _, h := range r.Hot {
			atime := "-"
			if !h.LastAccess.IsZero() {
				atime = h.LastAccess.Format(time.RFC3339)
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\n", h.Count, atime, h.Path)
		}
	}
	err := tw.Flush()
	return cw.n, err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
