// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package slab

import (
	"unsafe"
)

// LazyPool defers the real work of releasing memory. A release —
// possibly from a foreign thread — only pushes the pointer onto the
// owning pool's trash; the owner drains a few entries at the top of
// each acquire, so cross-thread frees never touch pool structures
// they do not own.
//
// Apart from its trash, a LazyPool is not safe for concurrent use.
type LazyPool struct {
	_ noCopy

	mux         MuxPool
	trash       Trash
	reclaimGoal int
	tls         *paraTLS
}

// NewLazyPool returns a lazy pool draining up to reclaimGoal trashed
// pointers per acquire.
func NewLazyPool(appetite Appetite, reclaimGoal int) (*LazyPool, error) {
	l := new(LazyPool)
	if err := l.init(appetite, reclaimGoal); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *LazyPool) init(appetite Appetite, reclaimGoal int) error {
	if reclaimGoal <= 0 {
		return Disallowed
	}
	if err := l.mux.init(appetite); err != nil {
		return err
	}
	l.mux.owner = l
	l.reclaimGoal = reclaimGoal
	return nil
}

// Acquire drains up to the pool's reclaim goal from the trash, then
// forwards to the multiplexer. RangeFail passes through untouched so
// the caller can route to its supplementary allocator.
func (l *LazyPool) Acquire(size uintptr) (unsafe.Pointer, error) {
	if size == 0 {
		return nil, Disallowed
	}
	if _, err := l.Reclaim(l.reclaimGoal); err != nil {
		return nil, err
	}
	return l.mux.Acquire(size)
}

// Release routes ptr back to the lazy pool that allocated it and
// pushes it onto that pool's trash. The receiver need not be the
// owner; the footer chain is.
func (l *LazyPool) Release(ptr unsafe.Pointer) error {
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
	return owner.trash.Push(ptr)
}

// Reclaim pops up to goal pointers from the trash and releases each
// through the multiplexer. Running dry early is not an error; the
// count of released pointers is returned.
func (l *LazyPool) Reclaim(goal int) (int, error) {
	if goal <= 0 {
		return 0, Disallowed
	}
	n := 0
	for n < goal {
		p, err := l.trash.Pop()
		if err == NotFound {
			break
		}
		if err != nil {
			return n, err
		}
		if err := l.mux.Release(p); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Flush snapshots the trash size and reclaims that many entries.
// Pointers trashed by other threads while the flush runs may remain;
// a quiescent caller gets an empty trash.
func (l *LazyPool) Flush() error {
	n := l.trash.Size()
	if n == 0 {
		return nil
	}
	_, err := l.Reclaim(n)
	return err
}

// TrashSize returns the number of pointers awaiting reclamation.
func (l *LazyPool) TrashSize() int { return l.trash.Size() }

// Query returns the lazy pool owning ptr and its rounded size.
func (l *LazyPool) Query(ptr unsafe.Pointer) (*LazyPool, uintptr, error) {
	if ptr == nil {
		return nil, 0, Disallowed
	}
	return lazyQuery(uintptr(ptr))
}

func lazyQuery(addr uintptr) (*LazyPool, uintptr, error) {
	mp, size, err := muxQuery(addr)
	if err != nil {
		return nil, 0, err
	}
	if mp.owner == nil {
		return nil, 0, NotFound
	}
	return mp.owner, size, nil
}

// idle reports whether the pool holds no live nodes and no trash,
// meaning nothing in the process can still reference it.
func (l *LazyPool) idle() bool {
	if l.trash.Size() != 0 {
		return false
	}
	for _, ap := range l.mux.pools {
		if ap != nil && !ap.slots.vec.inv.empty() {
			return false
		}
	}
	return true
}

// Check audits the multiplexer and verifies every trashed pointer
// still resolves to this pool.
func (l *LazyPool) Check() error {
	if err := l.mux.Check(); err != nil {
		return err
	}
	return l.trash.Foreach(func(p unsafe.Pointer) error {
		owner, _, err := lazyQuery(uintptr(p))
		if err != nil || owner != l {
			return Corrupt
		}
		return Again
	})
}
