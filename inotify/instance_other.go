//go:build !linux

package inotify

// Instance is a stub on platforms without inotify; Open always fails.
type Instance struct{}

var _ Handle = (*Instance)(nil)

// Open always returns ErrUnsupported.
func Open() (*Instance, error) {
	return nil, ErrUnsupported
}

func (i *Instance) Fd() int { return -1 }

func (i *Instance) Available() (int, error) { return 0, ErrUnsupported }

func (i *Instance) Read(p []byte) (int, error) { return 0, ErrUnsupported }

func (i *Instance) AddWatch(path string, mask uint32) (int32, error) { return -1, ErrUnsupported }

func (i *Instance) RemoveWatch(wd int32) error { return ErrUnsupported }

func (i *Instance) Close() error { return nil }
