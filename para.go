// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package slab

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"code.hybscloud.com/slab/internal/gid"
)

// paraTLS is the per-goroutine record of a parallel pool: a lazy
// pool plus a back-pointer used by Query to confirm ownership.
type paraTLS struct {
	pool *ParallelPool
	lazy LazyPool
}

// ParallelPool eliminates allocator contention by giving every
// goroutine its own lazy pool, looked up through a registry keyed on
// the goroutine id. Acquire and the reclaim family touch only the
// caller's record; the one lock they take is the caller's own trash
// lock. Releases of pointers owned by other goroutines ride the
// owner's trash, so that lock is the only one goroutines contend on.
//
// Goroutines that stop allocating should call Detach to flush and
// drop their record; Go offers no goroutine-exit hook the pool could
// use instead.
//
// All methods are safe for concurrent use.
type ParallelPool struct {
	_ noCopy

	appetite    Appetite
	reclaimGoal int
	records     sync.Map

	acquires  atomic.Uint64
	releases  atomic.Uint64
	reclaimed atomic.Uint64

	// detached parks records of exited goroutines that still own
	// live allocations. Footers point into these records, so they
	// must stay reachable for as long as their pages do.
	detached struct {
		mu   sync.Mutex
		recs []*paraTLS
	}
}

// NewParallelPool returns a parallel pool whose per-goroutine lazy
// pools use the given appetite and reclaim goal.
func NewParallelPool(appetite Appetite, reclaimGoal int) (*ParallelPool, error) {
	if reclaimGoal <= 0 {
		return nil, Disallowed
	}
	return &ParallelPool{appetite: appetite, reclaimGoal: reclaimGoal}, nil
}

// record returns the calling goroutine's TLS record, creating and
// registering it on first use.
func (p *ParallelPool) record() (*paraTLS, error) {
	id := gid.ID()
	if v, ok := p.records.Load(id); ok {
		return v.(*paraTLS), nil
	}
	rec := &paraTLS{pool: p}
	if err := rec.lazy.init(p.appetite, p.reclaimGoal); err != nil {
		return nil, err
	}
	rec.lazy.tls = rec
	p.records.Store(id, rec)
	return rec, nil
}

// Acquire reserves size bytes from the calling goroutine's lazy
// pool. RangeFail means the size is beyond the pooled classes.
func (p *ParallelPool) Acquire(size uintptr) (unsafe.Pointer, error) {
	rec, err := p.record()
	if err != nil {
		return nil, err
	}
	ptr, err := rec.lazy.Acquire(size)
	if err == nil {
		p.acquires.Add(1)
	}
	return ptr, err
}

// Release returns ptr to its owner. The footer chain routes the
// pointer to the trash of the goroutine that allocated it, wherever
// Release is called from.
func (p *ParallelPool) Release(ptr unsafe.Pointer) error {
	if ptr == nil {
		return Disallowed
	}
	owner, size, err := lazyQuery(uintptr(ptr))
	if err != nil {
		return err
	}
	if MarkFreed != 0 {
		memset(uintptr(ptr), MarkFreed, size)
	}
	if err := owner.trash.Push(ptr); err != nil {
		return err
	}
	p.releases.Add(1)
	return nil
}

// Query returns the rounded size of ptr if this pool owns it, and
// NotFound otherwise.
func (p *ParallelPool) Query(ptr unsafe.Pointer) (uintptr, error) {
	if ptr == nil {
		return 0, Disallowed
	}
	owner, size, err := lazyQuery(uintptr(ptr))
	if err != nil {
		return 0, err
	}
	if owner.tls == nil || owner.tls.pool != p {
		return 0, NotFound
	}
	return size, nil
}

// Reclaim drains up to goal pointers from the calling goroutine's
// trash.
func (p *ParallelPool) Reclaim(goal int) (int, error) {
	rec, err := p.record()
	if err != nil {
		return 0, err
	}
	n, err := rec.lazy.Reclaim(goal)
	p.reclaimed.Add(uint64(n))
	return n, err
}

// Flush drains the calling goroutine's trash completely, modulo
// concurrent producers.
func (p *ParallelPool) Flush() error {
	rec, err := p.record()
	if err != nil {
		return err
	}
	return rec.lazy.Flush()
}

// Check audits the calling goroutine's lazy pool.
func (p *ParallelPool) Check() error {
	rec, err := p.record()
	if err != nil {
		return err
	}
	return rec.lazy.Check()
}

// Detach flushes the calling goroutine's trash and removes its
// record from the registry. A record that still owns live
// allocations is parked instead of dropped: its footers must stay
// resolvable until the last pointer comes home, and releases of
// those pointers keep landing on its trash. Worker goroutines should
// defer Detach before exiting.
func (p *ParallelPool) Detach() error {
	id := gid.ID()
	v, ok := p.records.Load(id)
	if !ok {
		return nil
	}
	rec := v.(*paraTLS)
	if err := rec.lazy.Flush(); err != nil {
		return err
	}
	p.records.Delete(id)
	if !rec.lazy.idle() {
		p.detached.mu.Lock()
		p.detached.recs = append(p.detached.recs, rec)
		p.detached.mu.Unlock()
	}
	return nil
}

// Records returns the number of registered goroutine records.
func (p *ParallelPool) Records() int {
	n := 0
	p.records.Range(func(any, any) bool { n++; return true })
	return n
}

// TrashTotal returns the number of pointers awaiting reclamation
// across all registered goroutine records. Records parked by Detach
// are not counted.
func (p *ParallelPool) TrashTotal() int {
	n := 0
	p.records.Range(func(_, v any) bool {
		n += v.(*paraTLS).lazy.TrashSize()
		return true
	})
	return n
}
