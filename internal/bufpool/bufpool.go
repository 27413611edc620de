// Package bufpool implements a generic, thread-safe free list of reusable
// arrays, so hot per-block and per-plane scratch buffers don't churn the
// allocator. The pattern mirrors the sync.Pool-backed buffer helpers the
// wavelet transform used to size scratch rows and columns, generalized
// here to any element type and exposed with explicit capacity rounding
// and hit-rate observability instead of sync.Pool's opaque GC-driven
// eviction.
package bufpool

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// Pool is a single free list for []T buffers, scanned in order for the
// first one with enough capacity. Unlike a raw
// sync.Pool, acquired buffers are guaranteed at least minCap capacity,
// and releases past maxPoolSize are discarded rather than retained
// indefinitely.
type Pool[T any] struct {
	mu          sync.Mutex
	free        [][]T
	maxPoolSize int

	hits   atomic.Int64
	misses atomic.Int64
}

// New returns a Pool that retains at most maxPoolSize released buffers.
func New[T any](maxPoolSize int) *Pool[T] {
	return &Pool[T]{maxPoolSize: maxPoolSize}
}

// nextPowerOfTwo rounds v up to the next power of two (v itself if already
// one); used so newly allocated buffers are reusable across a wider range
// of future Acquire calls than an exact-fit allocation would be.
func nextPowerOfTwo(v int) int {
	if v <= 1 {
		return 1
	}
	n := 1
	for n < v {
		n <<= 1
	}
	return n
}

// Acquire returns a buffer with capacity >= minCap and length 0, either
// reused from the free list or freshly allocated.
func (p *Pool[T]) Acquire(minCap int) []T {
	p.mu.Lock()
	for i, buf := range p.free {
		if cap(buf) >= minCap {
			p.free[i] = p.free[len(p.free)-1]
			p.free = p.free[:len(p.free)-1]
			p.mu.Unlock()
			p.hits.Add(1)
			return buf[:0]
		}
	}
	p.mu.Unlock()
	p.misses.Add(1)
	return make([]T, 0, nextPowerOfTwo(minCap))
}

// Release clears buf's length to zero (preserving capacity) and pushes it
// onto the free list, discarding it if the pool is already at
// maxPoolSize.
func (p *Pool[T]) Release(buf []T) {
	buf = buf[:0]
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) >= p.maxPoolSize {
		log.Warn().Int("maxPoolSize", p.maxPoolSize).Msg("bufpool: pool exhausted, discarding released buffer")
		return
	}
	p.free = append(p.free, buf)
}

// Stats reports cumulative Acquire hit/miss counts, an observable metric
// for tuning maxPoolSize.
type Stats struct {
	Hits, Misses int64
}

// HitRate returns the fraction of Acquire calls satisfied from the free
// list, or 0 if Acquire has never been called.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Stats returns a snapshot of this pool's cumulative hit/miss counters.
func (p *Pool[T]) Stats() Stats {
	return Stats{Hits: p.hits.Load(), Misses: p.misses.Load()}
}
