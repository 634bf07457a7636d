// Package pathwatch watches paths rather than inodes. A watch on
// /srv/current, where current is a symlink to release-2, also reports when
// the symlink is re-pointed or any directory on the way is renamed, deleted
// or unmounted, and then follows the path to its new target.
package pathwatch

import (
	"fmt"
	"strings"

	"github.com/hawkingrei/inotify/inotify"
)

// Synthetic event bits reporting a change of a path element. They use bits
// the kernel never sets in an event.
const (
	InPathMoved   uint32 = 0x00100000
	InPathDelete  uint32 = 0x00200000
	InPathCreate  uint32 = 0x00400000
	InPathUnmount uint32 = 0x00800000

	InPathChanged = InPathMoved | InPathDelete | InPathCreate | InPathUnmount
)

var pathNames = []struct {
	bit  uint32
	name string
}{
	{InPathMoved, "IN_PATH_MOVED"},
	{InPathDelete, "IN_PATH_DELETE"},
	{InPathCreate, "IN_PATH_CREATE"},
	{InPathUnmount, "IN_PATH_UNMOUNT"},
}

// MaskString renders mask like inotify.MaskString, including the
// IN_PATH_* bits.
func MaskString(mask uint32) string {
	var names []string
	for _, p := range pathNames {
		if mask&p.bit != 0 {
			names = append(names, p.name)
		}
	}
	names = append(names, inotify.DecodeMask(mask&^InPathChanged)...)
	return strings.Join(names, "|")
}

// Event is an event of a watched path. For IN_PATH_* events Name holds the
// full path of the element that changed; otherwise it is the name reported
// by the kernel. Path is empty for IN_Q_OVERFLOW.
type Event struct {
	inotify.Event
	Path string
}

// IsPathEvent reports whether the event is about an element of the path
// rather than the watched object itself.
func (e Event) IsPathEvent() bool { return e.Mask&InPathChanged != 0 }

func (e Event) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "pathevent(path=%q, mask=%s", e.Path, MaskString(e.Mask))
	if e.HasCookie && e.Cookie != 0 {
		fmt.Fprintf(&b, ", cookie=0x%x", e.Cookie)
	}
	if e.Name != "" {
		fmt.Fprintf(&b, ", name=%q", e.Name)
	}
	b.WriteByte(')')
	return b.String()
}

// pathMask maps a kernel event on a path element to its IN_PATH_* kind.
func pathMask(mask uint32) uint32 {
	var m uint32
	switch {
	case mask&inotify.InUnmount != 0:
		m = InPathUnmount
	case mask&inotify.InCreate != 0:
		m = InPathCreate
	case mask&(inotify.InDelete|inotify.InDeleteSelf|inotify.InIgnored) != 0:
		m = InPathDelete
	default:
		m = InPathMoved
	}
	return m | mask&inotify.InIsdir
}
