package diskutil

import (
	"time"

	"github.com/djherbis/atime"
	"github.com/sirupsen/logrus"
)

// EntryInfo is a path with its last access time
type EntryInfo struct {
	Path       string
	LastAccess time.Time
}

// GetATime returns the last access time of path, or def if it cannot be
// determined (for instance because the file is gone by now)
func GetATime(path string, def time.Time) time.Time {
	at, err := atime.Stat(path)
	if err != nil {
		logrus.WithError(err).WithField("path", path).Debug("Failed to get access time")
		return def
	}
	return at
}

// GetEntries resolves the access time of each path, keeping their order.
// Paths that no longer exist get a zero LastAccess.
func GetEntries(paths []string) []EntryInfo {
	entries := make([]EntryInfo, 0, len(paths))
	for _, path := range paths {
		entries = append(entries, EntryInfo{
			Path:       path,
			LastAccess: GetATime(path, time.Time{}),
		})
	}
	return entries
}
