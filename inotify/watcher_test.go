package inotify

import (
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeHandle hands out one descriptor per inode name and queues the records
// a kernel would produce.
type fakeHandle struct {
	scriptQueue
	inodes  map[string]string // path -> inode
	wds     map[string]int32  // inode -> wd
	masks   map[int32]uint32
	removed []int32
	closed  bool
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{
		inodes: make(map[string]string),
		wds:    make(map[string]int32),
		masks:  make(map[int32]uint32),
	}
}

func (h *fakeHandle) AddWatch(path string, mask uint32) (int32, error) {
	ino, ok := h.inodes[path]
	if !ok {
		return -1, &os.PathError{Op: "inotify_add_watch", Path: path, Err: syscall.ENOENT}
	}
	wd, ok := h.wds[ino]
	if !ok {
		wd = int32(len(h.wds) + 1)
		h.wds[ino] = wd
	}
	if mask&InMaskAdd != 0 {
		h.masks[wd] |= mask &^ InMaskAdd
	} else {
		h.masks[wd] = mask
	}
	return wd, nil
}

func (h *fakeHandle) RemoveWatch(wd int32) error {
	h.removed = append(h.removed, wd)
	h.push(wd, InIgnored, "")
	return nil
}

func (h *fakeHandle) Close() error {
	h.closed = true
	return nil
}

func (h *fakeHandle) push(wd int32, mask uint32, name string) {
	h.data = appendRecord(h.data, wd, mask, 0, name)
}

func TestWatcherReadWithoutWatches(t *testing.T) {
	w := NewWatcherWithHandle(newFakeHandle())
	_, err := w.Read(false)
	require.ErrorIs(t, err, ErrNoWatches)
}

func TestWatcherAddAndRead(t *testing.T) {
	h := newFakeHandle()
	h.inodes["/tmp/dir"] = "dir"
	w := NewWatcherWithHandle(h)

	watch, err := w.Add("/tmp/dir/", InCreate)
	require.NoError(t, err)
	require.Equal(t, int32(1), watch.Wd())
	require.Equal(t, InCreate, h.masks[1])
	require.Equal(t, []string{"/tmp/dir"}, w.Paths())

	events, err := w.Read(false)
	require.NoError(t, err)
	require.Empty(t, events)

	h.push(1, InCreate, "new")
	h.push(1, InCreate|InIsdir, "sub")
	events, err = w.Read(false)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Same(t, watch, events[0].Watch)
	require.Equal(t, "/tmp/dir/new", events[0].FullPath())
	require.Equal(t, "/tmp/dir/sub", events[1].FullPath())
	require.True(t, events[1].HasEvent(InIsdir))
}

func TestWatcherAliasedPaths(t *testing.T) {
	h := newFakeHandle()
	h.inodes["/a"] = "ino"
	h.inodes["/b"] = "ino"
	w := NewWatcherWithHandle(h)

	wa, err := w.Add("/a", InModify)
	require.NoError(t, err)
	wb, err := w.Add("/b", InAttrib)
	require.NoError(t, err)
	require.Same(t, wa, wb)
	require.Equal(t, InModify|InAttrib, wa.Mask())
	require.Equal(t, 2, w.NumPaths())
	require.Equal(t, 1, w.NumWatches())
	require.Equal(t, []string{"/a", "/b"}, wa.Paths())

	require.NoError(t, w.RemovePath("/a"))
	require.Empty(t, h.removed)
	require.NoError(t, wb.RemovePath("/b"))
	require.Equal(t, []int32{1}, h.removed)

	// The watch lives until IN_IGNORED is read.
	require.Equal(t, 1, w.NumWatches())
	events, err := w.Read(false)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.True(t, events[0].HasEvent(InIgnored))
	require.Same(t, wa, events[0].Watch)
	require.Equal(t, 0, w.NumWatches())
	require.Equal(t, 0, w.NumPaths())

	_, err = w.Read(false)
	require.ErrorIs(t, err, ErrNoWatches)
}

func TestWatcherPathMovedToAnotherInode(t *testing.T) {
	h := newFakeHandle()
	h.inodes["/a"] = "one"
	w := NewWatcherWithHandle(h)

	first, err := w.Add("/a", InModify)
	require.NoError(t, err)
	h.inodes["/a"] = "two"
	second, err := w.Add("/a", InModify)
	require.NoError(t, err)
	require.NotSame(t, first, second)
	require.Empty(t, first.Paths())
	require.Equal(t, []int32{first.Wd()}, h.removed)

	events, err := w.Read(false)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.True(t, events[0].HasEvent(InIgnored))
	require.Equal(t, 1, w.NumWatches())
	require.Equal(t, []*Watch{second}, w.Watches())
}

func TestWatcherRemoveUnknownPath(t *testing.T) {
	w := NewWatcherWithHandle(newFakeHandle())
	err := w.RemovePath("/nowhere")
	require.ErrorIs(t, err, ErrNotWatched)
}

func TestWatcherAddMissingPath(t *testing.T) {
	w := NewWatcherWithHandle(newFakeHandle())
	_, err := w.Add("/missing", InCreate)
	require.ErrorIs(t, err, os.ErrNotExist)

	var perr *os.PathError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, "/missing", perr.Path)
}

func TestWatcherOverflowAndUnknownWd(t *testing.T) {
	h := newFakeHandle()
	h.inodes["/d"] = "d"
	w := NewWatcherWithHandle(h)
	_, err := w.Add("/d", InAllEvents)
	require.NoError(t, err)

	h.push(-1, InQOverflow, "")
	h.push(7, InModify, "x")
	events, err := w.Read(false)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Nil(t, events[0].Watch)
	require.Nil(t, events[1].Watch)
	require.Empty(t, events[1].FullPath())
}

func TestWatcherIgnoredWithoutRemove(t *testing.T) {
	h := newFakeHandle()
	h.inodes["/f"] = "f"
	w := NewWatcherWithHandle(h)
	watch, err := w.Add("/f", InDeleteSelf)
	require.NoError(t, err)

	h.push(1, InDeleteSelf, "")
	h.push(1, InIgnored, "")
	events, err := w.Read(false)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "/f", events[0].FullPath())
	require.Equal(t, []string{"/f"}, events[1].Paths())
	_, ok := w.GetWatch("/f")
	require.False(t, ok)
	require.Equal(t, []string{"/f"}, watch.Paths())
}

func TestWatcherClose(t *testing.T) {
	h := newFakeHandle()
	h.inodes["/f"] = "f"
	w := NewWatcherWithHandle(h, WithBufferSize(1024))
	_, err := w.Add("/f", InOpen)
	require.NoError(t, err)

	require.NoError(t, w.Close())
	require.True(t, h.closed)
	require.Empty(t, w.Watches())
	require.NoError(t, w.Close())
}

func TestThreshold(t *testing.T) {
	q := &scriptQueue{data: make([]byte, 100)}
	th := NewThreshold(q, 64)
	reached, err := th.Reached()
	require.NoError(t, err)
	require.True(t, reached)

	th = NewThreshold(q, 0)
	n, err := th.Readable()
	require.NoError(t, err)
	require.Equal(t, 100, n)
	reached, err = th.Reached()
	require.NoError(t, err)
	require.False(t, reached)

	q.queryErr = syscall.EBADF
	_, err = th.Reached()
	require.ErrorIs(t, err, syscall.EBADF)
}
