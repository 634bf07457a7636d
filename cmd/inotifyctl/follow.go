package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/hawkingrei/inotify/inotify"
	"github.com/hawkingrei/inotify/pathwatch"

	"github.com/sirupsen/logrus"
)

// pathStream reads a path watcher on a goroutine, in the manner of
// fsnotify.Notify.
type pathStream struct {
	w      *pathwatch.Watcher
	events chan pathwatch.Event
	errors chan error
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

func followPaths(paths []string, mask uint32, opts ...inotify.Option) (*pathStream, error) {
	w, err := pathwatch.NewWatcher(opts...)
	if err != nil {
		return nil, err
	}
	for _, p := range paths {
		if err := w.Add(p, mask); err != nil {
			w.Close()
			return nil, err
		}
	}
	s := &pathStream{
		w:      w,
		events: make(chan pathwatch.Event),
		errors: make(chan error, 1),
		done:   make(chan struct{}),
	}
	s.wg.Add(1)
	go s.run()
	return s, nil
}

func (s *pathStream) run() {
	defer s.wg.Done()
	defer close(s.errors)
	defer close(s.events)

	for {
		events, err := s.w.Read(true)
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			if !errors.Is(err, os.ErrClosed) && !errors.Is(err, inotify.ErrNoWatches) {
				s.errors <- err
			}
			return
		}
		for _, ev := range events {
			select {
			case s.events <- ev:
			case <-s.done:
				return
			}
		}
	}
}

func (s *pathStream) stop() {
	s.once.Do(func() {
		close(s.done)
		if err := s.w.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close path watcher")
		}
		s.wg.Wait()
	})
}

// writePathEvent prints the watched path, the mask and the event name. For
// IN_PATH_* events the name is the path element that changed.
func writePathEvent(w io.Writer, event pathwatch.Event) error {
	path := event.Path
	if path == "" {
		path = "-"
	}
	if event.Name == "" {
		_, err := fmt.Fprintf(w, "%s %s\n", path, pathwatch.MaskString(event.Mask))
		return err
	}
	_, err := fmt.Fprintf(w, "%s %s %s\n", path, pathwatch.MaskString(event.Mask), event.Name)
	return err
}
