package inotify

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ProcfsPath holds the per-user inotify limits.
var ProcfsPath = "/proc/sys/fs/inotify"

// MaxQueuedEvents returns the queue length limit of new instances.
func MaxQueuedEvents() (int, error) { return readLimit("max_queued_events") }

// MaxUserInstances returns the limit on instances per user.
func MaxUserInstances() (int, error) { return readLimit("max_user_instances") }

// MaxUserWatches returns the limit on watches per user.
func MaxUserWatches() (int, error) { return readLimit("max_user_watches") }

func readLimit(name string) (int, error) {
	b, err := os.ReadFile(filepath.Join(ProcfsPath, name))
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(b)))
}
