package inotify

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedStream matches every *MalformedStreamError.
	ErrMalformedStream = errors.New("malformed inotify stream")
	// ErrNoWatches is returned by Watcher.Read when nothing is watched.
	ErrNoWatches = errors.New("inotify: there are no files to watch")
	// ErrNotWatched is returned when removing a path that is not watched.
	ErrNotWatched = errors.New("inotify: path is not watched")
	// ErrUnsupported is returned by Open on platforms without inotify.
	ErrUnsupported = errors.New("inotify: not supported on this platform")
)

// QueryError reports a failed query for the number of readable bytes.
type QueryError struct {
	Fd  int
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("inotify: query available bytes on fd %d: %v", e.Fd, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// MalformedStreamError means the bytes read from a queue cannot be a
// sequence of inotify records. The queue should be considered suspect.
type MalformedStreamError struct {
	Fd     int
	Offset uint64 // offset of the offending record within the poll cycle
	Reason string
}

func (e *MalformedStreamError) Error() string {
	return fmt.Sprintf("inotify: data read from fd %d seems to be garbage at offset %d (%s), are you sure this is an inotify fd?",
		e.Fd, e.Offset, e.Reason)
}

func (e *MalformedStreamError) Is(target error) bool {
	return target == ErrMalformedStream
}
