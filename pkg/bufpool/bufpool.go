// Package bufpool provides a tiered buffer pool for packed-list and stream
// buffers.
//
// Every engine call packs an argument list, and most allocate a reply
// buffer that usually comes back near-empty. Pooling those slices keeps the
// per-call allocation cost flat regardless of call rate.
//
// The pool uses three size tiers:
//   - Small buffers (default 4KB): packed argument lists
//   - Medium buffers (default 128KB): engine reply buffers (error maps,
//     property and bookmark listings)
//   - Large buffers (default 1MB): stream copy buffers
//
// Requests above the large tier are allocated directly and never pooled, so
// an occasional oversized reply does not pin memory.
//
// All operations are safe for concurrent use.
package bufpool

import (
	"sync"
)

// Default buffer size classes, overridable via NewPool.
const (
	// DefaultSmallSize covers packed argument lists (4KB).
	DefaultSmallSize = 4 << 10

	// DefaultMediumSize covers engine reply buffers (128KB).
	DefaultMediumSize = 128 << 10

	// DefaultLargeSize covers stream copy buffers (1MB).
	DefaultLargeSize = 1 << 20
)

// Pool manages byte-slice pools organized by size class, selecting the
// smallest class that satisfies each request.
type Pool struct {
	small      sync.Pool
	medium     sync.Pool
	large      sync.Pool
	smallSize  int
	mediumSize int
	largeSize  int
}

// Config holds the tier sizes for a custom pool. Zero values fall back to
// the defaults.
type Config struct {
	SmallSize  int
	MediumSize int
	LargeSize  int
}

// NewPool creates a buffer pool with the given configuration. A nil config
// uses the defaults.
func NewPool(cfg *Config) *Pool {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.SmallSize <= 0 {
		cfg.SmallSize = DefaultSmallSize
	}
	if cfg.MediumSize <= 0 {
		cfg.MediumSize = DefaultMediumSize
	}
	if cfg.LargeSize <= 0 {
		cfg.LargeSize = DefaultLargeSize
	}

	p := &Pool{
		smallSize:  cfg.SmallSize,
		mediumSize: cfg.MediumSize,
		largeSize:  cfg.LargeSize,
	}

	p.small = sync.Pool{
		New: func() any {
			buf := make([]byte, p.smallSize)
			return &buf
		},
	}
	p.medium = sync.Pool{
		New: func() any {
			buf := make([]byte, p.mediumSize)
			return &buf
		},
	}
	p.large = sync.Pool{
		New: func() any {
			buf := make([]byte, p.largeSize)
			return &buf
		},
	}

	return p
}

// Get returns a byte slice of at least the requested size. The slice
// capacity may exceed size to align with a pool class. The caller must
// return it with Put; sizes above the large tier are allocated directly
// and silently dropped by Put.
func (p *Pool) Get(size int) []byte {
	var bufPtr *[]byte

	switch {
	case size <= p.smallSize:
		bufPtr = p.small.Get().(*[]byte)
	case size <= p.mediumSize:
		bufPtr = p.medium.Get().(*[]byte)
	case size <= p.largeSize:
		bufPtr = p.large.Get().(*[]byte)
	default:
		return make([]byte, size)
	}

	buf := *bufPtr
	return buf[:size]
}

// Put returns a buffer obtained from Get to its pool. Buffers that do not
// match a pool class (oversized allocations, resliced capacities) are left
// for the garbage collector.
func (p *Pool) Put(buf []byte) {
	if buf == nil {
		return
	}

	switch cap(buf) {
	case p.smallSize:
		fullBuf := buf[:cap(buf)]
		p.small.Put(&fullBuf)
	case p.mediumSize:
		fullBuf := buf[:cap(buf)]
		p.medium.Put(&fullBuf)
	case p.largeSize:
		fullBuf := buf[:cap(buf)]
		p.large.Put(&fullBuf)
	}
}

// =============================================================================
// Global Pool
// =============================================================================

// globalPool backs the package-level Get/Put.
var globalPool = NewPool(nil)

// Get returns a byte slice of at least the requested size from the global
// pool. Pair with Put:
//
//	buf := bufpool.Get(size)
//	defer bufpool.Put(buf)
func Get(size int) []byte {
	return globalPool.Get(size)
}

// Put returns a buffer to the global pool.
func Put(buf []byte) {
	globalPool.Put(buf)
}
