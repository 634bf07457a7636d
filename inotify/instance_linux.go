//go:build linux

package inotify

import (
	"errors"
	"io"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// Instance is an inotify instance opened with inotify_init1(2).
//
// The descriptor is non-blocking and registered with the runtime poller, so
// a Read waiting for events parks the goroutine instead of a thread, and
// Close from another goroutine wakes it with os.ErrClosed.
type Instance struct {
	fd   int
	file *os.File
	conn syscall.RawConn
}

var _ Handle = (*Instance)(nil)

// Open creates a new inotify instance.
func Open() (*Instance, error) {
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC | unix.IN_NONBLOCK)
	if err != nil {
		return nil, os.NewSyscallError("inotify_init1", err)
	}
	file := os.NewFile(uintptr(fd), "inotify")
	conn, err := file.SyscallConn()
	if err != nil {
		file.Close()
		return nil, err
	}
	return &Instance{fd: fd, file: file, conn: conn}, nil
}

// Fd returns the descriptor number. Use it for identification only; the
// descriptor belongs to the Instance.
func (i *Instance) Fd() int { return i.fd }

// Available returns the number of readable bytes. FIONREAD is named
// TIOCINQ on Linux.
func (i *Instance) Available() (int, error) {
	var (
		n    int
		ierr error
	)
	if err := i.conn.Control(func(fd uintptr) {
		n, ierr = unix.IoctlGetInt(int(fd), unix.TIOCINQ)
	}); err != nil {
		return 0, err
	}
	if ierr != nil {
		return 0, os.NewSyscallError("ioctl FIONREAD", ierr)
	}
	return n, nil
}

// Read reads raw event records. It blocks until at least one event is
// queued.
func (i *Instance) Read(p []byte) (int, error) {
	n, err := i.file.Read(p)
	if errors.Is(err, io.EOF) {
		return n, nil
	}
	return n, err
}

// AddWatch adds or modifies the watch on path and returns its descriptor.
func (i *Instance) AddWatch(path string, mask uint32) (int32, error) {
	var (
		wd   int
		werr error
	)
	if err := i.conn.Control(func(fd uintptr) {
		wd, werr = unix.InotifyAddWatch(int(fd), path, mask)
	}); err != nil {
		return -1, err
	}
	if werr != nil {
		return -1, &os.PathError{Op: "inotify_add_watch", Path: path, Err: werr}
	}
	return int32(wd), nil
}

func (i *Instance) RemoveWatch(wd int32) error {
	var rerr error
	if err := i.conn.Control(func(fd uintptr) {
		_, rerr = unix.InotifyRmWatch(int(fd), uint32(wd))
	}); err != nil {
		return err
	}
	if rerr != nil {
		return os.NewSyscallError("inotify_rm_watch", rerr)
	}
	return nil
}

// Close closes the instance. Pending reads fail with os.ErrClosed.
func (i *Instance) Close() error {
	return i.file.Close()
}
