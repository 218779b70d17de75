// Package tunnel implements the per-direction data pipeline of one
// tunneled connection: staging socket bytes in a growable buffer,
// framing them with optional compression for the channel multiplexer,
// and unpacking inbound frames back into socket writes.
package tunnel

import (
	"io"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-pantheon/fabrica-tun/compress"
	"github.com/go-pantheon/fabrica-tun/conf"
	"github.com/go-pantheon/fabrica-tun/frame"
	"github.com/go-pantheon/fabrica-tun/internal/bufpool"
	"github.com/go-pantheon/fabrica-tun/iobuf"
	"github.com/go-pantheon/fabrica-tun/metrics"
	"github.com/go-pantheon/fabrica-util/errors"
)

var pool bufpool.Pool = bufpool.Default()

// ErrNoBufferedData is returned by Flush when the direction holds no
// bytes to frame.
var ErrNoBufferedData = errors.New("no buffered data")

// Direction owns one side of a tunneled connection's byte flow. It is
// single-owner: only the goroutine driving that side's I/O may touch it.
type Direction struct {
	buf  iobuf.Buffer
	conf conf.Config
	log  *log.Helper
}

// NewDirection creates a direction with the given configuration and
// diagnostic sink. The logger is required wiring, not ambient state;
// logging failures never surface as direction errors.
func NewDirection(cfg conf.Config, logger log.Logger) *Direction {
	return &Direction{
		conf: cfg,
		log:  log.NewHelper(logger),
	}
}

// Stage reads once from r into reserved buffer space and commits what
// was read. It returns the number of bytes staged and r's read error,
// if any.
func (d *Direction) Stage(r io.Reader) (int, error) {
	region, err := d.buf.Reserve(d.conf.Buffer.StageSize)
	if err != nil {
		return 0, err
	}

	n, err := r.Read(region)
	if n > 0 {
		d.buf.Commit(n)
	}

	return n, err
}

// Buffered returns the number of staged, unflushed bytes.
func (d *Direction) Buffered() int {
	return d.buf.Len()
}

// Flush drains up to MaxChunkSize buffered bytes into one outbound data
// frame and consumes them. The frame payload is pooled; call free once
// the frame has been written out. Returns ErrNoBufferedData when there
// is nothing to flush.
func (d *Direction) Flush(tunnelID byte) (frame.Frame, func(), error) {
	chunk := d.buf.Data()
	if len(chunk) == 0 {
		return frame.Frame{}, nil, ErrNoBufferedData
	}

	if limit := int(d.conf.Compression.MaxChunkSize); len(chunk) > limit {
		chunk = chunk[:limit]
	}

	f, free := d.encodeChunk(tunnelID, chunk)
	d.buf.Consume(len(chunk))

	return f, free, nil
}

// Receive decompresses one inbound data frame into the buffer. The
// frame's claimed original size is untrusted and is capped before it
// sizes any allocation.
func (d *Direction) Receive(f frame.Frame) error {
	if f.OriginalSize > d.conf.Compression.MaxChunkSize {
		return errors.Wrapf(frame.ErrChunkTooLarge, "claimed original size %d exceeds limit %d",
			f.OriginalSize, d.conf.Compression.MaxChunkSize)
	}

	if f.OriginalSize == 0 && len(f.Payload) == 0 {
		return nil
	}

	region, err := d.buf.Reserve(int(f.OriginalSize))
	if err != nil {
		return err
	}

	n, err := compress.Decompress(f.Algorithm, region[:f.OriginalSize], f.Payload)
	if err != nil {
		return err
	}

	d.buf.Commit(n)

	metrics.ObserveFrame(metrics.DirectionIn, compress.Name(f.Algorithm), n, len(f.Payload))

	if f.Algorithm != compress.None {
		d.log.Debugf("decompressed %d bytes to %d bytes using %s", len(f.Payload), n, compress.Name(f.Algorithm))
	}

	return nil
}

// Drain writes buffered bytes to w and consumes exactly what was
// written, so a short write leaves the remainder staged.
func (d *Direction) Drain(w io.Writer) (int, error) {
	data := d.buf.Data()
	if len(data) == 0 {
		return 0, nil
	}

	n, err := w.Write(data)
	if n > 0 {
		d.buf.Consume(n)
	}

	return n, err
}

// encodeChunk frames one chunk, compressing it when the configured
// algorithm is expected to pay off. Any compression failure falls back
// to a verbatim frame: the tunnel must keep flowing, compression is an
// optimization only.
func (d *Direction) encodeChunk(tunnelID byte, chunk []byte) (frame.Frame, func()) {
	cfg := d.conf.Compression

	if cfg.Algorithm != compress.None && len(chunk) >= cfg.MinSize && compress.ShouldCompress(chunk) {
		if f, free, ok := d.compressChunk(tunnelID, chunk); ok {
			return f, free
		}

		metrics.ObserveFallback()
	}

	raw := pool.Alloc(len(chunk))
	copy(raw, chunk)

	metrics.ObserveFrame(metrics.DirectionOut, compress.Name(compress.None), len(chunk), len(chunk))

	return frame.Data(tunnelID, raw), func() { pool.Free(raw) }
}

func (d *Direction) compressChunk(tunnelID byte, chunk []byte) (frame.Frame, func(), bool) {
	cfg := d.conf.Compression

	bound, err := compress.Bound(cfg.Algorithm, len(chunk))
	if err != nil {
		d.log.Warnf("size bound for %s unavailable: %v", compress.Name(cfg.Algorithm), err)

		return frame.Frame{}, nil, false
	}

	dst := pool.Alloc(bound)

	n, err := compress.Compress(cfg.Algorithm, cfg.Level, dst, chunk)
	if err != nil || n >= len(chunk) {
		pool.Free(dst)

		if err != nil {
			d.log.Debugf("compression fallback for %d bytes using %s: %v", len(chunk), compress.Name(cfg.Algorithm), err)
		}

		return frame.Frame{}, nil, false
	}

	metrics.ObserveFrame(metrics.DirectionOut, compress.Name(cfg.Algorithm), len(chunk), n)
	d.log.Debugf("compressed %d bytes to %d bytes using %s at level %d", len(chunk), n, compress.Name(cfg.Algorithm), cfg.Level)

	return frame.Compressed(tunnelID, cfg.Algorithm, byte(compress.EffectiveLevel(cfg.Algorithm, cfg.Level)), uint32(len(chunk)), dst[:n]),
		func() { pool.Free(dst) }, true
}
