package device

import (
	"fmt"
	"sync"

	"github.com/chenyuwen/myf2fs/internal/types"
)

// DefaultMaxReadBlocks caps a single ranged read. A checkpoint payload or
// NAT bitmap larger than this points at a corrupted superblock.
const DefaultMaxReadBlocks = 4096

// Allocator hands out block buffers. Free is called exactly once for every
// buffer returned by Alloc.
type Allocator interface {
	Alloc(size int) ([]byte, error)
	Free(buf []byte)
}

// HeapAllocator allocates every buffer with make and lets the garbage
// collector reclaim it.
type HeapAllocator struct{}

// Alloc implements Allocator.
func (HeapAllocator) Alloc(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: invalid size %d", types.ErrAllocationFailure, size)
	}
	return make([]byte, size), nil
}

// Free implements Allocator.
func (HeapAllocator) Free([]byte) {}

// PoolAllocator recycles single-block buffers through a sync.Pool. Larger
// buffers fall back to the heap.
type PoolAllocator struct {
	pool sync.Pool
}

// NewPoolAllocator returns an allocator recycling BlockSize buffers.
func NewPoolAllocator() *PoolAllocator {
	return &PoolAllocator{
		pool: sync.Pool{
			New: func() any {
				buf := make([]byte, types.BlockSize)
				return &buf
			},
		},
	}
}

// Alloc implements Allocator.
func (p *PoolAllocator) Alloc(size int) ([]byte, error) {
	if size != types.BlockSize {
		return HeapAllocator{}.Alloc(size)
	}
	buf := *(p.pool.Get().(*[]byte))
	clear(buf)
	return buf, nil
}

// Free implements Allocator.
func (p *PoolAllocator) Free(buf []byte) {
	if cap(buf) != types.BlockSize {
		return
	}
	buf = buf[:types.BlockSize]
	p.pool.Put(&buf)
}
