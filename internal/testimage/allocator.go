package testimage

import (
	"errors"
	"sync"
)

// ErrAllocLimit is returned by TrackingAllocator once its limit is reached.
var ErrAllocLimit = errors.New("allocation limit reached")

// TrackingAllocator hands out heap buffers and counts the ones not yet
// freed. It satisfies device.Allocator.
type TrackingAllocator struct {
	mu          sync.Mutex
	live        map[*byte]int
	allocs      int
	frees       int
	doubleFrees int

	// Limit fails every allocation after the first Limit when non-zero.
	Limit int
}

// NewTrackingAllocator returns an allocator with no limit.
func NewTrackingAllocator() *TrackingAllocator {
	return &TrackingAllocator{live: make(map[*byte]int)}
}

// Alloc returns a zeroed buffer of size bytes.
func (a *TrackingAllocator) Alloc(size int) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if size <= 0 {
		return nil, errors.New("invalid allocation size")
	}
	if a.Limit > 0 && a.allocs >= a.Limit {
		return nil, ErrAllocLimit
	}

	buf := make([]byte, size)
	a.live[&buf[0]] = size
	a.allocs++
	return buf, nil
}

// Free returns buf. Freeing a buffer twice, or one this allocator did not
// hand out, is counted as a double free.
func (a *TrackingAllocator) Free(buf []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(buf) == 0 {
		a.doubleFrees++
		return
	}
	if _, ok := a.live[&buf[0]]; !ok {
		a.doubleFrees++
		return
	}
	delete(a.live, &buf[0])
	a.frees++
}

// Outstanding returns the number of buffers not yet freed.
func (a *TrackingAllocator) Outstanding() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live)
}

// Allocs returns the number of successful allocations.
func (a *TrackingAllocator) Allocs() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocs
}

// DoubleFrees returns the number of bad Free calls.
func (a *TrackingAllocator) DoubleFrees() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.doubleFrees
}
