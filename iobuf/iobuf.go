// Package iobuf provides the growable byte buffer that every tunneled
// stream direction uses to stage bytes between a socket and the channel
// codec. Bytes are appended at the tail and consumed from the head; the
// valid region always starts at offset zero.
//
// A Buffer is owned by exactly one direction of one tunnel and must not
// be shared between goroutines.
package iobuf

import (
	"github.com/go-pantheon/fabrica-util/errors"
)

// MinSize is the capacity floor used on the first growth of an empty buffer.
const MinSize = 2048

// ErrSizeOverflow is returned when a reservation would grow the buffer
// beyond the addressable size range.
var ErrSizeOverflow = errors.New("iobuf: buffer size overflow")

// Buffer is an append-at-tail, consume-from-head byte container with an
// explicit reserve/commit protocol for zero-copy writes.
//
// The zero value is an empty buffer ready for use.
type Buffer struct {
	// valid bytes are data[:len(data)], total capacity is cap(data)
	data []byte

	tag tag
}

// Reserve guarantees at least min contiguous free bytes after the current
// valid data, growing the storage geometrically when the free space is
// insufficient. It returns the whole free region, which may be larger than
// min, so callers can fill more than requested without a second call.
//
// On failure the buffer is unchanged.
func (b *Buffer) Reserve(min int) ([]byte, error) {
	if min < 0 {
		panic("iobuf: negative reserve size")
	}

	b.check()

	if cap(b.data)-len(b.data) < min {
		if err := b.grow(min); err != nil {
			return nil, err
		}
	}

	return b.data[len(b.data):cap(b.data)], nil
}

// Commit marks n previously reserved bytes as valid. Committing more than
// the reserved free space is a caller bug and panics.
func (b *Buffer) Commit(n int) {
	if n < 0 || n > cap(b.data)-len(b.data) {
		panic("iobuf: commit beyond reserved space")
	}

	b.data = b.data[:len(b.data)+n]
	b.check()
}

// Append copies p to the tail of the valid region, reserving space as
// needed. On failure no bytes are appended.
func (b *Buffer) Append(p []byte) error {
	region, err := b.Reserve(len(p))
	if err != nil {
		return err
	}

	b.Commit(copy(region, p))

	return nil
}

// Consume removes n bytes from the front of the valid region and shifts
// the remainder to offset zero. Capacity is unchanged. Consuming more
// than Len is a caller bug and panics.
func (b *Buffer) Consume(n int) {
	if n < 0 || n > len(b.data) {
		panic("iobuf: consume beyond valid data")
	}

	rest := copy(b.data, b.data[n:])
	b.data = b.data[:rest]
	b.check()
}

// Data returns the valid region, or nil when the buffer is empty. The
// slice aliases the buffer's storage and is invalidated by the next
// Reserve, Append or Consume.
func (b *Buffer) Data() []byte {
	if len(b.data) == 0 {
		return nil
	}

	return b.data
}

// Tail returns the currently free region immediately after the valid
// data, without growing the buffer. It is the region the next Reserve
// would return when no growth is required.
func (b *Buffer) Tail() []byte {
	return b.data[len(b.data):cap(b.data)]
}

// Len returns the number of valid bytes.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Cap returns the total allocated capacity.
func (b *Buffer) Cap() int {
	return cap(b.data)
}

// Reset drops all valid bytes but keeps the allocated storage.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
}

func (b *Buffer) grow(min int) error {
	need := len(b.data) + min
	if need < 0 {
		return ErrSizeOverflow
	}

	total := cap(b.data)
	if total == 0 {
		total = MinSize
	}

	for total < need {
		total <<= 1
		if total <= 0 {
			return ErrSizeOverflow
		}
	}

	next := make([]byte, len(b.data), total)
	copy(next, b.data)
	b.data = next

	return nil
}
