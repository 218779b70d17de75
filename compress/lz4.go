//go:build !nolz4

package compress

import (
	"github.com/go-pantheon/fabrica-util/errors"
	"github.com/pierrec/lz4/v4"
)

// Lz4Supported reports whether this build carries the LZ4 codec.
func Lz4Supported() bool {
	return true
}

// levels 10-16 map onto the high-compression search depths
var lz4HCLevels = [...]lz4.CompressionLevel{
	lz4.Level1,
	lz4.Level2,
	lz4.Level3,
	lz4.Level4,
	lz4.Level5,
	lz4.Level6,
	lz4.Level7,
}

func lz4Bound(n int) (int, error) {
	// the library owns the block format, so its bound is authoritative
	return lz4.CompressBlockBound(n), nil
}

func compressLz4(level int, dst, src []byte) (int, error) {
	level = EffectiveLevel(Lz4, level)

	var (
		n   int
		err error
	)

	if level > 9 {
		c := lz4.CompressorHC{Level: lz4HCLevels[level-10]}
		n, err = c.CompressBlock(src, dst)
	} else {
		var c lz4.Compressor
		n, err = c.CompressBlock(src, dst)
	}

	if err != nil {
		return 0, errors.Wrapf(ErrCompressionFailed, "lz4: %v", err)
	}

	if n == 0 {
		// the block format cannot represent this input smaller than raw;
		// callers fall back to an uncompressed frame
		return 0, errors.Wrap(ErrCompressionFailed, "lz4: incompressible input")
	}

	return n, nil
}

func decompressLz4(dst, src []byte) (int, error) {
	n, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		return 0, errors.Wrapf(ErrDecompressionFailed, "lz4: %v", err)
	}

	return n, nil
}
