//go:build linux

package fsnotify

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hawkingrei/inotify/inotify"

	"github.com/stretchr/testify/require"
)

func waitEvent(t *testing.T, ch <-chan inotify.WatchEvent) inotify.WatchEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "events channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event within 2s")
	}
	return inotify.WatchEvent{}
}

func TestNotifyDeliversEvents(t *testing.T) {
	dir := t.TempDir()
	n, err := New([]string{dir}, inotify.InCreate|inotify.InDelete)
	require.NoError(t, err)
	n.Start()
	defer n.Stop()

	path := filepath.Join(dir, "a")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	require.NoError(t, os.Remove(path))

	ev := waitEvent(t, n.Events())
	require.True(t, ev.HasEvent(inotify.InCreate))
	require.Equal(t, path, ev.FullPath())

	ev = waitEvent(t, n.Events())
	require.True(t, ev.HasEvent(inotify.InDelete))
	require.Equal(t, "a", ev.Name)
}

func TestNotifyStopClosesChannels(t *testing.T) {
	n, err := New([]string{t.TempDir()}, inotify.InCreate)
	require.NoError(t, err)
	n.Start()

	done := make(chan struct{})
	go func() {
		n.Stop()
		n.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Stop did not return within 3 seconds")
	}

	_, ok := <-n.Events()
	require.False(t, ok)
	_, ok = <-n.Errors()
	require.False(t, ok)
}

func TestNotifyExitsWhenNothingIsWatched(t *testing.T) {
	dir := t.TempDir()
	n, err := New([]string{dir}, inotify.InCreate)
	require.NoError(t, err)
	n.Start()
	defer n.Stop()

	require.NoError(t, n.Watcher().RemovePath(dir))
	ev := waitEvent(t, n.Events())
	require.True(t, ev.HasEvent(inotify.InIgnored))

	select {
	case _, ok := <-n.Events():
		require.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("reader did not stop after the last watch was removed")
	}
}

func TestNewFailsOnMissingPath(t *testing.T) {
	_, err := New([]string{filepath.Join(t.TempDir(), "missing")}, inotify.InCreate)
	require.ErrorIs(t, err, os.ErrNotExist)
}
