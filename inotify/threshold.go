package inotify

// DefaultThreshold is the byte count used by NewThreshold when n <= 0.
const DefaultThreshold = 1024

// Threshold tells whether a queue holds at least a given number of readable
// bytes. Callers use it to batch reads instead of waking on every event.
type Threshold struct {
	q Queue
	n int
}

func NewThreshold(q Queue, n int) *Threshold {
	if n <= 0 {
		n = DefaultThreshold
	}
	return &Threshold{q: q, n: n}
}

// Readable returns the number of bytes readable on the queue.
func (t *Threshold) Readable() (int, error) {
	n, err := t.q.Available()
	if err != nil {
		return 0, &QueryError{Fd: t.q.Fd(), Err: err}
	}
	return n, nil
}

// Reached reports whether the readable bytes met or exceeded the threshold.
func (t *Threshold) Reached() (bool, error) {
	n, err := t.Readable()
	if err != nil {
		return false, err
	}
	return n >= t.n, nil
}
