// Package inotify reads and decodes the Linux inotify event stream.
package inotify

import (
	"fmt"
	"strings"
)

// Event represents a notification
type Event struct {
	Wd        int32  // Watch descriptor that produced the event (-1 for IN_Q_OVERFLOW)
	Mask      uint32 // Mask of events
	Cookie    uint32 // Unique cookie associating related events (for rename(2))
	HasCookie bool   // Set when Mask carries IN_MOVED_FROM or IN_MOVED_TO
	Name      string // File name inside a watched directory (optional)
}

func (e Event) HasEvent(h uint32) bool {
	return e.Mask&h == h
}

func (e Event) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "event(wd=%d, mask=%s", e.Wd, MaskString(e.Mask))
	if e.HasCookie && e.Cookie != 0 {
		fmt.Fprintf(&b, ", cookie=0x%x", e.Cookie)
	}
	if e.Name != "" {
		fmt.Fprintf(&b, ", name=%q", e.Name)
	}
	b.WriteByte(')')
	return b.String()
}
