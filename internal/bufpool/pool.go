// Package bufpool provides a sync.Pool based slab allocator for frame
// payload buffers, so every decoded chunk does not cost a fresh heap
// allocation on the hot path.
package bufpool

import (
	"slices"
	"sort"
	"sync"

	"github.com/go-pantheon/fabrica-util/errors"
)

var (
	// ErrThresholdsRequired rejects an empty size-class table.
	ErrThresholdsRequired = errors.New("thresholds must not be empty")
	// ErrThresholdsNotSorted rejects a size-class table out of ascending order.
	ErrThresholdsNotSorted = errors.New("thresholds must be sorted in ascending order")
)

// Pool hands out byte slices and takes them back for reuse once a frame
// is done with them.
type Pool interface {
	Alloc(int) []byte
	Free([]byte)
}

var _ Pool = (*SlabPool)(nil)

// SlabPool groups buffers into size classes, one sync.Pool per class.
type SlabPool struct {
	pools      []sync.Pool
	thresholds []int
}

// Default returns a pool with power-of-two classes from 64 bytes up to
// 64 KiB, covering the typical tunneled chunk sizes.
func Default() *SlabPool {
	thresholds := make([]int, 0, 11)
	for size := 64; size <= 64*1024; size <<= 1 {
		thresholds = append(thresholds, size)
	}

	p, err := New(thresholds)
	if err != nil {
		panic("bufpool: default thresholds rejected: " + err.Error())
	}

	return p
}

// New creates a slab pool whose classes are the given ascending
// thresholds, plus an overflow class at twice the largest one. Requests
// beyond even that still succeed, they just bypass pooling.
func New(thresholds []int) (*SlabPool, error) {
	if len(thresholds) == 0 {
		return nil, ErrThresholdsRequired
	}

	for i := 1; i < len(thresholds); i++ {
		if thresholds[i] <= thresholds[i-1] {
			return nil, ErrThresholdsNotSorted
		}
	}

	pools := make([]sync.Pool, len(thresholds)+1)

	for i := range pools {
		classIndex := i
		pools[i].New = func() any {
			var size int

			if classIndex < len(thresholds) {
				size = thresholds[classIndex]
			} else {
				size = thresholds[len(thresholds)-1] * 2
			}

			buf := make([]byte, size)

			return &buf
		}
	}

	return &SlabPool{
		pools:      pools,
		thresholds: slices.Clone(thresholds),
	}, nil
}

func (p *SlabPool) classIndex(size int) int {
	return sort.Search(len(p.thresholds), func(i int) bool {
		return p.thresholds[i] >= size
	})
}

// Alloc returns a slice of exactly size bytes backed by a pooled buffer.
func (p *SlabPool) Alloc(size int) []byte {
	if size <= 0 {
		return make([]byte, 0)
	}

	mem := p.pools[p.classIndex(size)].Get().(*[]byte)

	if cap(*mem) < size {
		return make([]byte, size)
	}

	return (*mem)[:size]
}

// Free returns a slice obtained from Alloc. Tunneled payloads may carry
// credentials, so buffers are zeroed before reuse.
func (p *SlabPool) Free(mem []byte) {
	size := cap(mem)
	if size < p.thresholds[0] {
		return
	}

	mem = mem[:size]
	for i := range mem {
		mem[i] = 0
	}

	p.pools[p.classIndex(size)].Put(&mem)
}

// ClassCount returns the number of size classes including the overflow class.
func (p *SlabPool) ClassCount() int {
	return len(p.pools)
}
