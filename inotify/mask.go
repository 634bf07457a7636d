package inotify

import (
	"errors"
	"fmt"
	"strings"
)

// Event and watch flags. The values are the kernel ABI from <sys/inotify.h>.
const (
	InAccess       uint32 = 0x00000001 // File was accessed
	InModify       uint32 = 0x00000002 // File was modified
	InAttrib       uint32 = 0x00000004 // Metadata changed
	InCloseWrite   uint32 = 0x00000008 // Writable file was closed
	InCloseNowrite uint32 = 0x00000010 // Unwritable file closed
	InOpen         uint32 = 0x00000020 // File was opened
	InMovedFrom    uint32 = 0x00000040 // File was moved from X
	InMovedTo      uint32 = 0x00000080 // File was moved to Y
	InCreate       uint32 = 0x00000100 // Subfile was created
	InDelete       uint32 = 0x00000200 // Subfile was deleted
	InDeleteSelf   uint32 = 0x00000400 // Self was deleted
	InMoveSelf     uint32 = 0x00000800 // Self was moved

	InUnmount   uint32 = 0x00002000 // Backing fs was unmounted
	InQOverflow uint32 = 0x00004000 // Event queue overflowed
	InIgnored   uint32 = 0x00008000 // Watch was removed

	InOnlydir    uint32 = 0x01000000 // Only watch the path if it is a directory
	InDontFollow uint32 = 0x02000000 // Don't follow a sym link
	InExclUnlink uint32 = 0x04000000 // Exclude events on unlinked objects
	InMaskAdd    uint32 = 0x20000000 // Add to the mask of an already existing watch
	InIsdir      uint32 = 0x40000000 // Event occurred against dir
	InOneshot    uint32 = 0x80000000 // Only send event once

	InClose     = InCloseWrite | InCloseNowrite
	InMove      = InMovedFrom | InMovedTo
	InAllEvents = InAccess | InModify | InAttrib | InCloseWrite | InCloseNowrite |
		InOpen | InMovedFrom | InMovedTo | InCreate | InDelete | InDeleteSelf | InMoveSelf
)

// ErrUnknownCategory is returned when a symbolic name has no mask bit.
var ErrUnknownCategory = errors.New("unknown event category")

// Category is one named bit of an inotify mask.
type Category struct {
	Bit         uint32
	Name        string
	Description string
}

// Short returns the lower case property name, e.g. "close_write".
func (c Category) Short() string {
	return strings.ToLower(strings.TrimPrefix(c.Name, "IN_"))
}

// categories is ordered; DecodeMask output follows this order.
var categories = []Category{
	{InAccess, "IN_ACCESS", "File was accessed"},
	{InModify, "IN_MODIFY", "File was modified"},
	{InAttrib, "IN_ATTRIB", "Attribute of a directory entry was changed"},
	{InCloseWrite, "IN_CLOSE_WRITE", "File was closed after being written to"},
	{InCloseNowrite, "IN_CLOSE_NOWRITE", "File was closed without being written to"},
	{InOpen, "IN_OPEN", "File was opened"},
	{InMovedFrom, "IN_MOVED_FROM", "Directory entry was renamed from this name"},
	{InMovedTo, "IN_MOVED_TO", "Directory entry was renamed to this name"},
	{InCreate, "IN_CREATE", "Directory entry was created"},
	{InDelete, "IN_DELETE", "Directory entry was deleted"},
	{InDeleteSelf, "IN_DELETE_SELF", "The watched directory entry was deleted"},
	{InMoveSelf, "IN_MOVE_SELF", "The watched directory entry was renamed"},
	{InUnmount, "IN_UNMOUNT", "Directory was unmounted, and can no longer be watched"},
	{InQOverflow, "IN_Q_OVERFLOW", "Kernel dropped events due to queue overflow"},
	{InIgnored, "IN_IGNORED", "Directory entry is no longer being watched"},
	{InOnlydir, "IN_ONLYDIR", "Only watch pathname if it is a directory"},
	{InDontFollow, "IN_DONT_FOLLOW", "Don't dereference pathname if it is a symbolic link"},
	{InMaskAdd, "IN_MASK_ADD", "Add this mask to the existing mask instead of replacing it"},
	{InIsdir, "IN_ISDIR", "Event occurred on a directory"},
	{InOneshot, "IN_ONESHOT", "Monitor pathname for one event, then stop watching it"},
	{InExclUnlink, "IN_EXCL_UNLINK", "Don't generate events after the file has been unlinked"},
}

// names maps every accepted spelling to its bits. Built once, read only.
var names = func() map[string]uint32 {
	m := make(map[string]uint32, 2*len(categories)+6)
	for _, c := range categories {
		m[c.Name] = c.Bit
		m[c.Short()] = c.Bit
	}
	for name, bit := range map[string]uint32{
		"IN_CLOSE":      InClose,
		"IN_MOVE":       InMove,
		"IN_ALL_EVENTS": InAllEvents,
	} {
		m[name] = bit
		m[strings.ToLower(strings.TrimPrefix(name, "IN_"))] = bit
	}
	return m
}()

// Categories returns a copy of the catalog in declaration order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// EncodeMask returns the bits for a symbolic name. Both the kernel spelling
// ("IN_CLOSE_WRITE") and the short form ("close_write") are accepted.
func EncodeMask(name string) (uint32, error) {
	if bit, ok := names[name]; ok {
		return bit, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, name)
}

// ParseMask ORs together the bits of all names.
func ParseMask(names ...string) (uint32, error) {
	var mask uint32
	for _, name := range names {
		bit, err := EncodeMask(strings.TrimSpace(name))
		if err != nil {
			return 0, err
		}
		mask |= bit
	}
	return mask, nil
}

// DecodeMask returns the names of all catalog bits set in mask, in catalog
// order.
func DecodeMask(mask uint32) []string {
	var out []string
	for _, c := range categories {
		if mask&c.Bit != 0 {
			out = append(out, c.Name)
		}
	}
	return out
}

// MaskString renders mask as "IN_CREATE|IN_ISDIR".
func MaskString(mask uint32) string {
	return strings.Join(DecodeMask(mask), "|")
}
