package frame

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/go-pantheon/fabrica-tun/compress"
	"github.com/go-pantheon/fabrica-tun/internal/bufpool"
	"github.com/go-pantheon/fabrica-util/errors"
)

const lenSize = 4

var (
	pool bufpool.Pool = bufpool.Default()

	ErrShortWrite    = errors.New("short write")
	ErrInvalidFrame  = errors.New("invalid frame")
	ErrChunkTooLarge = errors.New("chunk exceeds configured size limit")
)

// InitPool replaces the payload buffer pool. Call before any Decode.
func InitPool(thresholds []int) error {
	p, err := bufpool.New(thresholds)
	if err != nil {
		return err
	}

	pool = p

	return nil
}

// Encode writes f with an outer 4-byte length prefix and flushes.
func Encode(w *bufio.Writer, f Frame) error {
	if err := binary.Write(w, binary.BigEndian, int32(HeaderSize+len(f.Payload))); err != nil {
		return errors.Wrap(err, "write frame len failed")
	}

	var hdr [HeaderSize]byte
	hdr[0] = f.Cmd
	hdr[1] = f.TunnelID
	hdr[2] = byte(f.Algorithm)
	hdr[3] = f.Level
	binary.BigEndian.PutUint32(hdr[4:], f.OriginalSize)

	if _, err := w.Write(hdr[:]); err != nil {
		return errors.Wrap(err, "write frame header failed")
	}

	n, err := w.Write(f.Payload)
	if err != nil {
		return errors.Wrap(err, "write frame payload failed")
	}

	if n != len(f.Payload) {
		return ErrShortWrite
	}

	if err := w.Flush(); err != nil {
		return errors.Wrap(err, "flush frame failed")
	}

	return nil
}

// Decode reads one frame. The payload buffer comes from the package pool
// and must be returned by calling free once the frame is fully consumed.
//
// maxChunk caps the peer-claimed original size before any allocation is
// derived from it, so a hostile peer cannot turn a small frame into a
// huge decompression target.
func Decode(r io.Reader, maxChunk uint32) (f Frame, free func(), err error) {
	var lenBuf [lenSize]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return f, nil, errors.Wrap(err, "read frame len failed")
	}

	totalLen := int32(binary.BigEndian.Uint32(lenBuf[:]))
	if totalLen < HeaderSize || uint64(totalLen-HeaderSize) > payloadLimit(maxChunk) {
		return f, nil, ErrInvalidFrame
	}

	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return f, nil, errors.Wrap(err, "read frame header failed")
	}

	f.Cmd = hdr[0]
	f.TunnelID = hdr[1]
	f.Algorithm = compress.Algorithm(hdr[2])
	f.Level = hdr[3]
	f.OriginalSize = binary.BigEndian.Uint32(hdr[4:])

	if f.OriginalSize > maxChunk {
		return f, nil, errors.Wrapf(ErrChunkTooLarge, "claimed original size %d exceeds limit %d", f.OriginalSize, maxChunk)
	}

	payloadLen := int(totalLen) - HeaderSize
	if payloadLen == 0 {
		return f, func() {}, nil
	}

	buf := pool.Alloc(payloadLen)
	free = func() {
		pool.Free(buf)
	}

	if _, err := io.ReadFull(r, buf); err != nil {
		free()

		return f, nil, errors.Wrap(err, "read frame payload failed")
	}

	f.Payload = buf

	return f, free, nil
}

// payloadLimit is the largest on-wire payload any supported algorithm can
// produce for a maxChunk-sized chunk, with headroom for codec overhead.
func payloadLimit(maxChunk uint32) uint64 {
	n := uint64(maxChunk)

	return n + n/255 + 64
}

// Codec frames a channel stream.
type Codec struct {
	w        *bufio.Writer
	r        *bufio.Reader
	maxChunk uint32
}

// NewCodec wraps a channel stream. maxChunk is the per-chunk original
// size cap applied on receive. readBufSize and writeBufSize size the
// stream buffers; non-positive values fall back to the bufio defaults.
func NewCodec(rw io.ReadWriter, maxChunk uint32, readBufSize, writeBufSize int) *Codec {
	var (
		w *bufio.Writer
		r *bufio.Reader
	)

	if writeBufSize > 0 {
		w = bufio.NewWriterSize(rw, writeBufSize)
	} else {
		w = bufio.NewWriter(rw)
	}

	if readBufSize > 0 {
		r = bufio.NewReaderSize(rw, readBufSize)
	} else {
		r = bufio.NewReader(rw)
	}

	return &Codec{
		w:        w,
		r:        r,
		maxChunk: maxChunk,
	}
}

// Encode writes one frame and flushes it to the stream.
func (c *Codec) Encode(f Frame) error {
	return Encode(c.w, f)
}

// Decode reads one frame from the stream.
func (c *Codec) Decode() (Frame, func(), error) {
	return Decode(c.r, c.maxChunk)
}
