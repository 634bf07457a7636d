package inotify

// Queue is the readable side of an inotify instance.
type Queue interface {
	// Fd identifies the queue in errors.
	Fd() int
	// Available returns the number of bytes that can be read without
	// blocking. It never blocks.
	Available() (int, error)
	// Read reads at most len(p) bytes. It may block when the queue is
	// empty, depending on the queue.
	Read(p []byte) (int, error)
}

// Handle is a Queue that watches can be registered on.
type Handle interface {
	Queue
	AddWatch(path string, mask uint32) (int32, error)
	// RemoveWatch removes wd. The kernel later reports IN_IGNORED for it.
	RemoveWatch(wd int32) error
	Close() error
}
