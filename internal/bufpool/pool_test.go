package bufpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocFree(t *testing.T) {
	t.Parallel()

	p := Default()

	for _, size := range []int{1, 64, 65, 4096, 64 * 1024, 256 * 1024} {
		buf := p.Alloc(size)
		require.Len(t, buf, size)

		for i := range buf {
			buf[i] = 0xab
		}

		p.Free(buf)
	}
}

func TestFreeZeroesBuffer(t *testing.T) {
	t.Parallel()

	p, err := New([]int{64, 128})
	require.NoError(t, err)

	buf := p.Alloc(64)
	for i := range buf {
		buf[i] = 0xff
	}

	p.Free(buf)

	again := p.Alloc(64)
	assert.Equal(t, make([]byte, 64), again)
}

func TestZeroSizeAlloc(t *testing.T) {
	t.Parallel()

	p := Default()

	assert.Empty(t, p.Alloc(0))
	assert.Empty(t, p.Alloc(-1))
}

func TestInvalidThresholds(t *testing.T) {
	t.Parallel()

	_, err := New(nil)
	assert.ErrorIs(t, err, ErrThresholdsRequired)

	_, err = New([]int{128, 64})
	assert.ErrorIs(t, err, ErrThresholdsNotSorted)
}

func TestClassCount(t *testing.T) {
	t.Parallel()

	p, err := New([]int{64, 128, 256})
	require.NoError(t, err)
	assert.Equal(t, 4, p.ClassCount())
}
