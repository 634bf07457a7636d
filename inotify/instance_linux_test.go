//go:build linux

package inotify

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestWatcher(t *testing.T) *Watcher {
	t.Helper()
	w, err := NewWatcher()
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	return w
}

func TestInstanceOpenClose(t *testing.T) {
	in, err := Open()
	require.NoError(t, err)
	require.Greater(t, in.Fd(), 2)

	n, err := in.Available()
	require.NoError(t, err)
	require.Equal(t, 0, n)
	require.NoError(t, in.Close())

	_, err = in.Available()
	require.Error(t, err)
}

func TestInstanceAvailableCountsQueuedBytes(t *testing.T) {
	dir := t.TempDir()
	in, err := Open()
	require.NoError(t, err)
	defer in.Close()

	_, err = in.AddWatch(dir, InCreate)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), nil, 0o644))

	// The kernel pads "a" plus its NUL to one header size.
	n, err := in.Available()
	require.NoError(t, err)
	require.Equal(t, 2*HeaderSize, n)

	buf := make([]byte, n)
	read, err := in.Read(buf)
	require.NoError(t, err)
	require.Equal(t, n, read)
	n, err = in.Available()
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestInstanceAddWatchMissingPath(t *testing.T) {
	in, err := Open()
	require.NoError(t, err)
	defer in.Close()

	_, err = in.AddWatch(filepath.Join(t.TempDir(), "missing"), InCreate)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestWatcherKernelOpenClose(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "testfile")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	w := newTestWatcher(t)
	_, err := w.Add(file, InOpen|InClose)
	require.NoError(t, err)

	f, err := os.Open(file)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	events, err := w.Read(false)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.True(t, events[0].HasEvent(InOpen))
	require.True(t, events[1].HasEvent(InCloseNowrite))
	require.Equal(t, file, events[1].FullPath())
}

func TestWatcherKernelMoveCookie(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "testfile"), nil, 0o644))

	w := newTestWatcher(t)
	_, err := w.Add(dir, InMove)
	require.NoError(t, err)

	events, err := w.Read(false)
	require.NoError(t, err)
	require.Empty(t, events)

	require.NoError(t, os.Rename(filepath.Join(dir, "testfile"), filepath.Join(dir, "targetfile")))
	events, err = w.Read(false)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "testfile", events[0].Name)
	require.True(t, events[0].HasEvent(InMovedFrom))
	require.Equal(t, "targetfile", events[1].Name)
	require.True(t, events[1].HasEvent(InMovedTo))
	require.True(t, events[0].HasCookie)
	require.Equal(t, events[0].Cookie, events[1].Cookie)
}

func TestWatcherKernelRemoveWatch(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t)
	_, err := w.Add(dir, InCreate)
	require.NoError(t, err)
	require.NoError(t, w.RemovePath(dir))

	events, err := w.Read(true)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.True(t, events[0].HasEvent(InIgnored))
	require.Equal(t, 0, w.NumWatches())
}

func TestWatcherKernelBlockingReadInterruptedByClose(t *testing.T) {
	w, err := NewWatcher()
	require.NoError(t, err)
	_, err = w.Add(t.TempDir(), InCreate)
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() {
		_, err := w.Read(true)
		errc <- err
	}()
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, w.Close())

	select {
	case err := <-errc:
		require.True(t, errors.Is(err, os.ErrClosed), "got %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("blocked Read did not return after Close")
	}
}

func TestKernelThreshold(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t)
	_, err := w.Add(dir, InCreate)
	require.NoError(t, err)

	th := NewThreshold(w.h, HeaderSize)
	reached, err := th.Reached()
	require.NoError(t, err)
	require.False(t, reached)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), nil, 0o644))
	reached, err = th.Reached()
	require.NoError(t, err)
	require.True(t, reached)
}

func TestLimits(t *testing.T) {
	for _, fn := range []func() (int, error){MaxQueuedEvents, MaxUserInstances, MaxUserWatches} {
		n, err := fn()
		if errors.Is(err, os.ErrNotExist) {
			t.Skip("inotify procfs limits not available")
		}
		require.NoError(t, err)
		require.Greater(t, n, 0)
	}
}
