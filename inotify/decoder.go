package inotify

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	// HeaderSize is the size of struct inotify_event without its name.
	HeaderSize = 16
	// NameMax is the longest directory entry name (NAME_MAX).
	NameMax = 255
	// MinBufferSize fits the largest record the kernel produces.
	MinBufferSize = HeaderSize + NameMax + 1
	// DefaultBufferSize is the buffer size used by Watcher.
	DefaultBufferSize = 64 * 1024
)

// Decoder turns the byte stream of a Queue into Events. A record split
// across reads is kept in the buffer until the rest arrives.
//
// A Decoder must not be used from several goroutines at once.
type Decoder struct {
	buf []byte
	n   int // valid bytes at the front of buf
}

// NewDecoder allocates a decoder with a size byte buffer. Sizes below
// MinBufferSize are raised to it.
func NewDecoder(size int) *Decoder {
	if size < MinBufferSize {
		size = MinBufferSize
	}
	return &Decoder{buf: make([]byte, size)}
}

// Cap returns the buffer capacity.
func (d *Decoder) Cap() int { return len(d.buf) }

// Pending returns the number of bytes of an incomplete record carried over
// to the next Poll.
func (d *Decoder) Pending() int { return d.n }

// Reset drops any carried bytes.
func (d *Decoder) Reset() { d.n = 0 }

// Poll reads what q has available and decodes it. If block is false and
// nothing is available it returns immediately without reading. If block is
// true and nothing is available it waits in a single read.
//
// Any error aborts the whole call: no events are returned. Errors from q
// are returned as they are, except for Available failures which are wrapped
// in a *QueryError. Undecodable data yields a *MalformedStreamError and
// resets the buffer.
func (d *Decoder) Poll(q Queue, block bool) ([]Event, error) {
	metricPolls.Inc()

	avail, err := q.Available()
	if err != nil {
		return nil, &QueryError{Fd: q.Fd(), Err: err}
	}
	if avail < 0 {
		return nil, d.malformed(q, 0, fmt.Sprintf("negative readable byte count %d", avail))
	}
	if avail == 0 && !block {
		return nil, nil
	}

	var (
		events []Event
		want   = avail
		done   int
		// supply is every byte this cycle can see: the carried bytes
		// plus what the queue reported. base counts the bytes of it
		// already dropped from the front of the buffer.
		supply = uint64(d.n) + uint64(avail)
		base   uint64
	)
	for {
		toRead := len(d.buf) - d.n
		if want > 0 {
			toRead = min(want-done, toRead)
		}
		n, err := q.Read(d.buf[d.n : d.n+toRead])
		if err != nil {
			return nil, err
		}
		if n < 0 || n > toRead {
			return nil, d.malformed(q, base, fmt.Sprintf("read returned %d for a %d byte request", n, toRead))
		}
		if n == 0 {
			break
		}
		metricBytesRead.Add(float64(n))
		if want == 0 {
			want = n
			supply += uint64(n)
		}
		done += n
		d.n += n

		var pos int
		events, pos, err = d.scan(q, events, base, supply)
		if err != nil {
			return nil, err
		}
		copy(d.buf, d.buf[pos:d.n])
		d.n -= pos
		base += uint64(pos)

		if done >= want {
			break
		}
	}
	metricEvents.Add(float64(len(events)))
	return events, nil
}

// scan appends the complete records of the valid region to events and
// returns the offset of the first byte not consumed.
func (d *Decoder) scan(q Queue, events []Event, base, supply uint64) ([]Event, int, error) {
	valid := d.buf[:d.n]
	capacity := uint64(len(d.buf))
	pos := 0
	for pos < len(valid) {
		rest := uint64(len(valid) - pos)
		start := base + uint64(pos)
		if rest < HeaderSize {
			if start+HeaderSize > supply {
				return nil, 0, d.malformed(q, start, "record header extends past the available bytes")
			}
			break
		}

		h := parseHeader(valid[pos:])
		// Check against capacity first so the sums below cannot
		// overflow and an oversized record is never waited for.
		if uint64(h.len) > capacity-HeaderSize {
			return nil, 0, d.malformed(q, start, fmt.Sprintf("declared name length %d exceeds buffer capacity %d", h.len, capacity))
		}
		size := HeaderSize + uint64(h.len)
		if size > rest {
			if start+size > supply {
				return nil, 0, d.malformed(q, start, fmt.Sprintf("declared name length %d extends past the available bytes", h.len))
			}
			break
		}

		events = append(events, h.event(valid[pos+HeaderSize:pos+int(size)]))
		pos += int(size)
	}
	if pos == 0 && len(valid) == len(d.buf) {
		return nil, 0, d.malformed(q, base, "no complete record in a full buffer")
	}
	return events, pos, nil
}

func (d *Decoder) malformed(q Queue, offset uint64, reason string) error {
	d.n = 0
	metricMalformed.Inc()
	return &MalformedStreamError{Fd: q.Fd(), Offset: offset, Reason: reason}
}

// header mirrors struct inotify_event, native byte order.
type header struct {
	wd     int32
	mask   uint32
	cookie uint32
	len    uint32
}

func parseHeader(b []byte) header {
	_ = b[HeaderSize-1]
	return header{
		wd:     int32(binary.NativeEndian.Uint32(b[0:4])),
		mask:   binary.NativeEndian.Uint32(b[4:8]),
		cookie: binary.NativeEndian.Uint32(b[8:12]),
		len:    binary.NativeEndian.Uint32(b[12:16]),
	}
}

func (h header) event(name []byte) Event {
	ev := Event{Wd: h.wd, Mask: h.mask}
	if h.mask&InMove != 0 {
		ev.Cookie = h.cookie
		ev.HasCookie = true
	}
	// The kernel NUL terminates and pads the name.
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	if len(name) > 0 {
		ev.Name = string(name)
	}
	return ev
}
