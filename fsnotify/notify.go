package fsnotify

import (
	"errors"
	"os"
	"sync"

	"github.com/hawkingrei/inotify/inotify"

	"github.com/sirupsen/logrus"
)

// Notify drains an inotify.Watcher on its own goroutine and hands the
// events over on a channel.
type Notify struct {
	watcher   *inotify.Watcher
	events    chan inotify.WatchEvent
	errors    chan error
	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
	log       *logrus.Entry
}

// New watches every path with mask.
func New(paths []string, mask uint32, opts ...inotify.Option) (*Notify, error) {
	watcher, err := inotify.NewWatcher(opts...)
	if err != nil {
		return nil, err
	}
	for _, path := range paths {
		if _, err := watcher.Add(path, mask); err != nil {
			watcher.Close()
			return nil, err
		}
	}
	return NewWithWatcher(watcher), nil
}

// NewWithWatcher takes ownership of watcher.
func NewWithWatcher(watcher *inotify.Watcher) *Notify {
	return &Notify{
		watcher: watcher,
		events:  make(chan inotify.WatchEvent, 64),
		errors:  make(chan error, 1),
		done:    make(chan struct{}),
		log:     logrus.WithField("fd", watcher.Fd()),
	}
}

// Watcher returns the underlying watcher, e.g. to add paths later.
func (n *Notify) Watcher() *inotify.Watcher { return n.watcher }

// Events delivers events in the order they were read. It is closed when
// the reader stops.
func (n *Notify) Events() <-chan inotify.WatchEvent { return n.events }

// Errors delivers the error that stopped the reader, if any. It is closed
// when the reader stops.
func (n *Notify) Errors() <-chan error { return n.errors }

// Start launches the reader goroutine. Calls after the first one, or after
// Stop, do nothing.
func (n *Notify) Start() {
	n.startOnce.Do(func() {
		n.wg.Add(1)
		go n.run()
	})
}

func (n *Notify) run() {
	defer n.wg.Done()
	defer close(n.errors)
	defer close(n.events)

	for {
		events, err := n.watcher.Read(true)
		if err != nil {
			select {
			case <-n.done:
				return
			default:
			}
			switch {
			case errors.Is(err, os.ErrClosed):
				n.log.Debug("inotify queue closed")
			case errors.Is(err, inotify.ErrNoWatches):
				n.log.Info("nothing left to watch")
			default:
				n.log.WithError(err).Error("Failed to read inotify events!")
				n.errors <- err
			}
			return
		}
		for _, event := range events {
			select {
			case n.events <- event:
			case <-n.done:
				return
			}
		}
	}
}

// Stop closes the watcher, which interrupts a blocked read, and waits for
// the reader to exit. It is safe to call more than once.
func (n *Notify) Stop() {
	n.stopOnce.Do(func() {
		close(n.done)
		if err := n.watcher.Close(); err != nil {
			n.log.WithError(err).Warn("Failed to close inotify watcher")
		}
		// Never started: nobody else will close the channels.
		n.startOnce.Do(func() {
			close(n.events)
			close(n.errors)
		})
		n.wg.Wait()
	})
}
