//go:build nolz4

package compress

import (
	"github.com/go-pantheon/fabrica-util/errors"
)

// Lz4Supported reports whether this build carries the LZ4 codec.
func Lz4Supported() bool {
	return false
}

func lz4Bound(n int) (int, error) {
	return 0, errors.Wrap(ErrUnsupportedAlgorithm, "lz4 codec not built in")
}

func compressLz4(level int, dst, src []byte) (int, error) {
	return 0, errors.Wrap(ErrUnsupportedAlgorithm, "lz4 codec not built in")
}

func decompressLz4(dst, src []byte) (int, error) {
	return 0, errors.Wrap(ErrUnsupportedAlgorithm, "lz4 codec not built in")
}
