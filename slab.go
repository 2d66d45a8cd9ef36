// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package slab

import (
	"sync"
	"sync/atomic"
	"unsafe"
)

// SupplementaryMalloc allocates size bytes outside the pooled range.
// Returning nil signals exhaustion.
type SupplementaryMalloc func(size int) unsafe.Pointer

// SupplementaryFree releases a block obtained from the paired
// SupplementaryMalloc.
type SupplementaryFree func(ptr unsafe.Pointer)

// facade is the process-wide default allocator: one parallel pool
// plus the supplementary pair covering everything the pools refuse.
type facade struct {
	pool      *ParallelPool
	supMalloc SupplementaryMalloc
	supFree   SupplementaryFree
	reporter  Reporter

	fallbackAcquires atomic.Uint64
	fallbackReleases atomic.Uint64
}

var theFacade atomic.Pointer[facade]

// Option configures Initialize.
type Option func(*config)

type config struct {
	appetite    Appetite
	reclaimGoal int
	supMalloc   SupplementaryMalloc
	supFree     SupplementaryFree
	reporter    Reporter
}

// WithSupplementary installs the allocator pair used for requests
// the pools cannot serve. Both functions must be provided together.
func WithSupplementary(m SupplementaryMalloc, f SupplementaryFree) Option {
	return func(c *config) { c.supMalloc, c.supFree = m, f }
}

// WithReporter installs a sink for replies the façade considers
// unexpected.
func WithReporter(r Reporter) Option {
	return func(c *config) { c.reporter = r }
}

// WithAppetite overrides DefaultAppetite for the default pool.
func WithAppetite(a Appetite) Option {
	return func(c *config) { c.appetite = a }
}

// WithReclaimGoal overrides DefaultReclaimGoal for the default pool.
func WithReclaimGoal(goal int) Option {
	return func(c *config) { c.reclaimGoal = goal }
}

// Initialize builds the process-wide default pool. It must run
// before any other façade call; running it again replaces the
// default pool, which is intended for tests only.
func Initialize(opts ...Option) error {
	c := config{
		appetite:    DefaultAppetite,
		reclaimGoal: DefaultReclaimGoal,
		supMalloc:   goMalloc,
		supFree:     goFree,
	}
	for _, opt := range opts {
		opt(&c)
	}
	if c.supMalloc == nil || c.supFree == nil {
		return Disallowed
	}
	pool, err := NewParallelPool(c.appetite, c.reclaimGoal)
	if err != nil {
		return err
	}
	theFacade.Store(&facade{
		pool:      pool,
		supMalloc: c.supMalloc,
		supFree:   c.supFree,
		reporter:  c.reporter,
	})
	return nil
}

func current() (*facade, error) {
	f := theFacade.Load()
	if f == nil {
		return nil, Inconsistent
	}
	return f, nil
}

func (f *facade) report(op string, err error) {
	if f.reporter != nil {
		f.reporter(op, err)
	}
}

// Acquire allocates size bytes: pooled when a size class can serve
// the request, supplementary otherwise. On a nil error the pointer
// is valid; nothing is allocated otherwise.
func Acquire(size int) (unsafe.Pointer, error) {
	f, err := current()
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		return nil, Disallowed
	}
	ptr, err := f.pool.Acquire(uintptr(size))
	switch err {
	case nil:
		return ptr, nil
	case RangeFail:
		p := f.supMalloc(size)
		if p == nil {
			return nil, ResourceFail
		}
		f.fallbackAcquires.Add(1)
		return p, nil
	default:
		f.report("acquire", err)
		return nil, err
	}
}

// AcquireZeroed allocates size bytes and guarantees they read as
// zero, composing Acquire with an explicit fill.
func AcquireZeroed(size int) (unsafe.Pointer, error) {
	ptr, err := Acquire(size)
	if err != nil {
		return nil, err
	}
	memset(uintptr(ptr), 0, uintptr(size))
	return ptr, nil
}

// Discard releases ptr wherever it came from: pooled pointers ride
// their owner's trash, everything else goes to the supplementary
// free.
func Discard(ptr unsafe.Pointer) error {
	f, err := current()
	if err != nil {
		return err
	}
	if ptr == nil {
		return Disallowed
	}
	switch err := f.pool.Release(ptr); err {
	case nil:
		return nil
	case NotFound:
		f.supFree(ptr)
		f.fallbackReleases.Add(1)
		return nil
	default:
		f.report("discard", err)
		return err
	}
}

// Query returns the usable size behind ptr when the default pool
// owns it, and NotFound when it belongs to the supplementary
// allocator or to nobody.
func Query(ptr unsafe.Pointer) (int, error) {
	f, err := current()
	if err != nil {
		return 0, err
	}
	if ptr == nil {
		return 0, Disallowed
	}
	size, err := f.pool.Query(ptr)
	if err != nil {
		return 0, err
	}
	return int(size), nil
}

// Reclaim drains up to goal entries from the calling goroutine's
// trash.
func Reclaim(goal int) (int, error) {
	f, err := current()
	if err != nil {
		return 0, err
	}
	if goal <= 0 {
		return 0, Disallowed
	}
	return f.pool.Reclaim(goal)
}

// Flush empties the calling goroutine's trash.
func Flush() error {
	f, err := current()
	if err != nil {
		return err
	}
	return f.pool.Flush()
}

// Check audits the calling goroutine's pools.
func Check() error {
	f, err := current()
	if err != nil {
		return err
	}
	return f.pool.Check()
}

// Detach flushes and drops the calling goroutine's record in the
// default pool.
func Detach() error {
	f, err := current()
	if err != nil {
		return err
	}
	return f.pool.Detach()
}

// DefaultPool returns the parallel pool behind the façade.
func DefaultPool() (*ParallelPool, error) {
	f, err := current()
	if err != nil {
		return nil, err
	}
	return f.pool, nil
}

// Bytes wraps an acquired pointer in a byte slice of length n. The
// slice aliases the allocation; it must not be used after the
// pointer is discarded.
func Bytes(ptr unsafe.Pointer, n int) []byte {
	return unsafe.Slice((*byte)(ptr), n)
}

// goHeap is the default supplementary allocator: ordinary Go heap
// blocks pinned in a registry so the garbage collector leaves them
// alone until the paired free.
var goHeap struct {
	mu     sync.Mutex
	blocks map[uintptr][]byte
}

func goMalloc(size int) unsafe.Pointer {
	if size <= 0 {
		return nil
	}
	b := make([]byte, size)
	p := unsafe.Pointer(unsafe.SliceData(b))
	goHeap.mu.Lock()
	if goHeap.blocks == nil {
		goHeap.blocks = make(map[uintptr][]byte)
	}
	goHeap.blocks[uintptr(p)] = b
	goHeap.mu.Unlock()
	return p
}

func goFree(ptr unsafe.Pointer) {
	goHeap.mu.Lock()
	delete(goHeap.blocks, uintptr(ptr))
	goHeap.mu.Unlock()
}
