package compress

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPayloads() map[string][]byte {
	rng := rand.New(rand.NewSource(7))
	random := make([]byte, 4096)
	rng.Read(random)

	return map[string][]byte{
		"text":    bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 100),
		"zeros":   make([]byte, 10000),
		"pattern": bytes.Repeat([]byte{0xde, 0xad, 0xbe, 0xef}, 500),
		"random":  random,
	}
}

func TestRoundTripGzip(t *testing.T) {
	t.Parallel()

	for name, payload := range testPayloads() {
		for _, level := range []int{1, 6, 9} {
			t.Run(name, func(t *testing.T) {
				bound, err := Bound(Gzip, len(payload))
				require.NoError(t, err)

				dst := make([]byte, bound)
				n, err := Compress(Gzip, level, dst, payload)
				require.NoError(t, err)
				require.LessOrEqual(t, n, bound)

				out := make([]byte, len(payload))
				m, err := Decompress(Gzip, out, dst[:n])
				require.NoError(t, err)
				assert.Equal(t, payload, out[:m])
			})
		}
	}
}

func TestRoundTripLz4(t *testing.T) {
	t.Parallel()

	if !Lz4Supported() {
		t.Skip("lz4 codec not built in")
	}

	payloads := testPayloads()
	delete(payloads, "random") // incompressible input is covered separately

	for name, payload := range payloads {
		for _, level := range []int{1, 9, 12, 16} {
			t.Run(name, func(t *testing.T) {
				bound, err := Bound(Lz4, len(payload))
				require.NoError(t, err)

				dst := make([]byte, bound)
				n, err := Compress(Lz4, level, dst, payload)
				require.NoError(t, err)
				require.LessOrEqual(t, n, bound)

				out := make([]byte, len(payload))
				m, err := Decompress(Lz4, out, dst[:n])
				require.NoError(t, err)
				assert.Equal(t, payload, out[:m])
			})
		}
	}
}

func TestLz4IncompressibleInput(t *testing.T) {
	t.Parallel()

	if !Lz4Supported() {
		t.Skip("lz4 codec not built in")
	}

	rng := rand.New(rand.NewSource(42))
	payload := make([]byte, 4096)
	rng.Read(payload)

	bound, err := Bound(Lz4, len(payload))
	require.NoError(t, err)

	_, err = Compress(Lz4, 1, make([]byte, bound), payload)
	assert.ErrorIs(t, err, ErrCompressionFailed)
}

func TestNoneIdentity(t *testing.T) {
	t.Parallel()

	payload := []byte("verbatim payload")

	dst := make([]byte, len(payload))
	n, err := Compress(None, 0, dst, payload)
	require.NoError(t, err)
	assert.Equal(t, payload, dst[:n])

	out := make([]byte, len(payload))
	m, err := Decompress(None, out, dst[:n])
	require.NoError(t, err)
	assert.Equal(t, payload, out[:m])
}

func TestZeroLengthIdentity(t *testing.T) {
	t.Parallel()

	for _, a := range []Algorithm{None, Gzip, Lz4} {
		n, err := Compress(a, 6, nil, nil)
		require.NoError(t, err)
		assert.Zero(t, n)

		n, err = Decompress(a, nil, nil)
		require.NoError(t, err)
		assert.Zero(t, n)
	}
}

func TestTenThousandZeros(t *testing.T) {
	t.Parallel()

	payload := make([]byte, 10000)

	bound, err := Bound(Gzip, len(payload))
	require.NoError(t, err)
	assert.Equal(t, 10000+10+12, bound)

	dst := make([]byte, bound)
	n, err := Compress(Gzip, 6, dst, payload)
	require.NoError(t, err)
	require.LessOrEqual(t, n, bound)
	// ten thousand zeros deflate to a few dozen bytes
	require.Less(t, n, 100)

	out := make([]byte, len(payload))
	m, err := Decompress(Gzip, out, dst[:n])
	require.NoError(t, err)
	assert.Equal(t, payload, out[:m])
}

func TestLevelClamped(t *testing.T) {
	t.Parallel()

	payload := bytes.Repeat([]byte("clamp"), 100)

	for _, level := range []int{-3, 0, 100} {
		bound, err := Bound(Gzip, len(payload))
		require.NoError(t, err)

		dst := make([]byte, bound)
		n, err := Compress(Gzip, level, dst, payload)
		require.NoError(t, err)

		out := make([]byte, len(payload))
		m, err := Decompress(Gzip, out, dst[:n])
		require.NoError(t, err)
		assert.Equal(t, payload, out[:m])
	}
}

func TestEffectiveLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, EffectiveLevel(Gzip, -3))
	assert.Equal(t, 1, EffectiveLevel(Gzip, 0))
	assert.Equal(t, 6, EffectiveLevel(Gzip, 6))
	assert.Equal(t, 9, EffectiveLevel(Gzip, 100))

	assert.Equal(t, 1, EffectiveLevel(Lz4, 0))
	assert.Equal(t, 12, EffectiveLevel(Lz4, 12))
	assert.Equal(t, 16, EffectiveLevel(Lz4, 100))

	assert.Equal(t, 0, EffectiveLevel(None, 6))
	assert.Equal(t, 0, EffectiveLevel(Algorithm(99), 6))
}

func TestDecompressCorruptInput(t *testing.T) {
	t.Parallel()

	out := make([]byte, 1024)

	// not a zlib header
	_, err := Decompress(Gzip, out, []byte{0x00, 0x01, 0x02, 0x03})
	assert.ErrorIs(t, err, ErrDecompressionFailed)

	if Lz4Supported() {
		// truncated literal run
		_, err = Decompress(Lz4, out, []byte{0xff, 0xff, 0xff})
		assert.ErrorIs(t, err, ErrDecompressionFailed)
	}
}

func TestDecompressOutputTooSmall(t *testing.T) {
	t.Parallel()

	payload := bytes.Repeat([]byte("overflow"), 100)

	bound, err := Bound(Gzip, len(payload))
	require.NoError(t, err)

	dst := make([]byte, bound)
	n, err := Compress(Gzip, 6, dst, payload)
	require.NoError(t, err)

	_, err = Decompress(Gzip, make([]byte, len(payload)/2), dst[:n])
	assert.ErrorIs(t, err, ErrDecompressionFailed)
}

func TestUnsupportedAlgorithm(t *testing.T) {
	t.Parallel()

	const bogus Algorithm = 99

	_, err := Bound(bogus, 10)
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)

	_, err = Compress(bogus, 1, make([]byte, 10), []byte("x"))
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)

	_, err = Decompress(bogus, make([]byte, 10), []byte("x"))
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}

func TestShouldCompress(t *testing.T) {
	t.Parallel()

	assert.False(t, ShouldCompress(nil))
	assert.False(t, ShouldCompress(make([]byte, MinCompressSize-1)))
	assert.True(t, ShouldCompress(make([]byte, MinCompressSize)))
	assert.True(t, ShouldCompress(make([]byte, MinCompressSize+1)))
}

func TestName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "none", Name(None))
	assert.Equal(t, "gzip", Name(Gzip))
	assert.Equal(t, "lz4", Name(Lz4))
	assert.Equal(t, "unknown", Name(Algorithm(7)))
}

func BenchmarkCompressGzip(b *testing.B) {
	payload := bytes.Repeat([]byte("benchmark payload for deflate "), 200)

	bound, err := Bound(Gzip, len(payload))
	if err != nil {
		b.Fatal(err)
	}

	dst := make([]byte, bound)

	b.SetBytes(int64(len(payload)))
	b.ResetTimer()

	for range b.N {
		if _, err := Compress(Gzip, 6, dst, payload); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCompressLz4(b *testing.B) {
	if !Lz4Supported() {
		b.Skip("lz4 codec not built in")
	}

	payload := bytes.Repeat([]byte("benchmark payload for lz4 block "), 200)

	bound, err := Bound(Lz4, len(payload))
	if err != nil {
		b.Fatal(err)
	}

	dst := make([]byte, bound)

	b.SetBytes(int64(len(payload)))
	b.ResetTimer()

	for range b.N {
		if _, err := Compress(Lz4, 1, dst, payload); err != nil {
			b.Fatal(err)
		}
	}
}
