// Package compress implements the chunk codec for tunneled stream data.
// Every call is self-contained: no dictionary or stream state is carried
// between chunks, so frames sharing one channel can be decoded in any
// order relative to other tunnels.
//
// Two algorithms are supported: a zlib deflate stream ("gzip" on the
// wire, matching the original channel protocol) and the LZ4 block format.
// LZ4 can be compiled out with the nolz4 build tag, in which case every
// LZ4 request fails with ErrUnsupportedAlgorithm.
package compress

import (
	"bytes"
	"io"

	"github.com/go-pantheon/fabrica-util/errors"
	"github.com/klauspost/compress/zlib"
)

// Algorithm identifies a chunk codec. The values are wire values and
// must not be renumbered.
type Algorithm byte

const (
	// None passes chunks through verbatim.
	None Algorithm = 0
	// Gzip is a one-shot zlib deflate stream.
	Gzip Algorithm = 1
	// Lz4 is the LZ4 block format, high-compression variant above level 9.
	Lz4 Algorithm = 2
)

// MinCompressSize is the payload size below which compression overhead
// exceeds any plausible saving.
const MinCompressSize = 64

const (
	gzipMinLevel = 1
	gzipMaxLevel = 9
	lz4MinLevel  = 1
	lz4MaxLevel  = 16
)

var (
	// ErrUnsupportedAlgorithm is returned for an algorithm id outside the
	// known set, or for Lz4 on builds without the LZ4 codec.
	ErrUnsupportedAlgorithm = errors.New("unsupported compression algorithm")
	// ErrCompressionFailed is returned when the codec cannot produce a
	// compressed chunk. The output buffer contents are undefined.
	ErrCompressionFailed = errors.New("compression failed")
	// ErrDecompressionFailed is returned for corrupt input or an output
	// buffer smaller than the original payload.
	ErrDecompressionFailed = errors.New("decompression failed")
)

// Bound returns the worst-case output size of Compress for n input bytes,
// so callers can size the output buffer before compressing.
func Bound(a Algorithm, n int) (int, error) {
	switch a {
	case None:
		return n, nil
	case Gzip:
		// classic deflate worst case: 0.1% expansion plus header overhead
		return n + n/1000 + 12, nil
	case Lz4:
		return lz4Bound(n)
	default:
		return 0, errors.Wrapf(ErrUnsupportedAlgorithm, "algorithm %d", a)
	}
}

// Compress encodes src into dst using the given algorithm and returns the
// number of bytes written. dst must be at least Bound(a, len(src)) bytes.
// The level is clamped into the algorithm's valid range; for Lz4, levels
// above 9 select the high-compression variant. Empty input succeeds with
// zero output for every algorithm.
func Compress(a Algorithm, level int, dst, src []byte) (int, error) {
	if len(src) == 0 {
		return 0, nil
	}

	switch a {
	case None:
		if len(dst) < len(src) {
			return 0, errors.Wrapf(ErrCompressionFailed, "output capacity %d below input size %d", len(dst), len(src))
		}

		return copy(dst, src), nil
	case Gzip:
		return compressGzip(level, dst, src)
	case Lz4:
		return compressLz4(level, dst, src)
	default:
		return 0, errors.Wrapf(ErrUnsupportedAlgorithm, "algorithm %d", a)
	}
}

// Decompress decodes src into dst and returns the number of bytes
// written. dst must be at least as large as the original payload. Corrupt
// input never panics; it fails with ErrDecompressionFailed.
func Decompress(a Algorithm, dst, src []byte) (int, error) {
	if len(src) == 0 {
		return 0, nil
	}

	switch a {
	case None:
		if len(dst) < len(src) {
			return 0, errors.Wrapf(ErrDecompressionFailed, "output capacity %d below input size %d", len(dst), len(src))
		}

		return copy(dst, src), nil
	case Gzip:
		return decompressGzip(dst, src)
	case Lz4:
		return decompressLz4(dst, src)
	default:
		return 0, errors.Wrapf(ErrUnsupportedAlgorithm, "algorithm %d", a)
	}
}

// EffectiveLevel returns the level Compress actually applies for a: the
// requested level clamped into the algorithm's valid range. It is what a
// sender should record next to an algorithm id. None carries no level and
// yields 0.
func EffectiveLevel(a Algorithm, level int) int {
	switch a {
	case Gzip:
		return clamp(level, gzipMinLevel, gzipMaxLevel)
	case Lz4:
		return clamp(level, lz4MinLevel, lz4MaxLevel)
	default:
		return 0
	}
}

// ShouldCompress reports whether compressing p is worthwhile. Payloads
// below MinCompressSize are never worth the framing overhead; everything
// above it is compressed.
func ShouldCompress(p []byte) bool {
	return len(p) >= MinCompressSize
}

// Name returns the diagnostic name of an algorithm. Unknown ids yield
// "unknown" rather than failing.
func Name(a Algorithm) string {
	switch a {
	case None:
		return "none"
	case Gzip:
		return "gzip"
	case Lz4:
		return "lz4"
	default:
		return "unknown"
	}
}

func compressGzip(level int, dst, src []byte) (int, error) {
	level = EffectiveLevel(Gzip, level)

	cw := capWriter{buf: dst}

	zw, err := zlib.NewWriterLevel(&cw, level)
	if err != nil {
		return 0, errors.Wrapf(ErrCompressionFailed, "deflate init level %d: %v", level, err)
	}

	if _, err := zw.Write(src); err != nil {
		return 0, errors.Wrapf(ErrCompressionFailed, "deflate: %v", err)
	}

	if err := zw.Close(); err != nil {
		return 0, errors.Wrapf(ErrCompressionFailed, "deflate finish: %v", err)
	}

	return cw.n, nil
}

func decompressGzip(dst, src []byte) (int, error) {
	zr, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return 0, errors.Wrapf(ErrDecompressionFailed, "inflate init: %v", err)
	}

	defer func() {
		_ = zr.Close()
	}()

	n, err := io.ReadFull(zr, dst)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return 0, errors.Wrapf(ErrDecompressionFailed, "inflate: %v", err)
	}

	// the stream must end exactly here, otherwise the claimed original
	// size was smaller than the real payload
	var probe [1]byte
	if m, err := zr.Read(probe[:]); m != 0 || (err != nil && !errors.Is(err, io.EOF)) {
		return 0, errors.Wrap(ErrDecompressionFailed, "inflate output exceeds capacity")
	}

	return n, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}

// capWriter writes into a fixed caller-owned buffer and fails once the
// buffer is full, so compression never silently truncates.
type capWriter struct {
	buf []byte
	n   int
}

func (w *capWriter) Write(p []byte) (int, error) {
	if len(p) > len(w.buf)-w.n {
		return 0, errors.New("output buffer full")
	}

	w.n += copy(w.buf[w.n:], p)

	return len(p), nil
}
