// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package slab

import (
	"sync/atomic"
	"unsafe"

	"code.hybscloud.com/slab/internal"
	"code.hybscloud.com/spin"
)

// spinLock is a one-word mutual-exclusion lock built on spin-wait.
// The trash critical sections are a handful of stores, far below the
// cost of parking a thread, so a spinlock beats a full mutex here.
type spinLock struct {
	v atomic.Bool
}

func (l *spinLock) lock() {
	sw := spin.Wait{}
	for !l.v.CompareAndSwap(false, true) {
		sw.Once()
	}
}

func (l *spinLock) unlock() {
	l.v.Store(false)
}

// Trash is a multi-producer, single-consumer stack of released
// pointers awaiting reclamation on their owning thread. Every
// trashed block is at least one machine word, so its first word
// doubles as the intrusive next link.
//
// Push may be called from any goroutine; Pop belongs to the owner.
// All operations serialize on one lock, which is also the only
// synchronization between a cross-thread release and the eventual
// reclaim. The zero value is ready for use.
type Trash struct {
	_ noCopy

	mu   spinLock
	head unsafe.Pointer
	size int

	// Keep neighboring per-thread records off this lock's line.
	_ [internal.CacheLineSize - unsafe.Sizeof(spinLock{}) - unsafe.Sizeof(uintptr(0)) - unsafe.Sizeof(int(0))]byte
}

// Push prepends ptr to the stack. The block's first word is
// overwritten with the link.
func (t *Trash) Push(ptr unsafe.Pointer) error {
	if ptr == nil {
		return Disallowed
	}
	t.mu.lock()
	*(*unsafe.Pointer)(ptr) = t.head
	t.head = ptr
	t.size++
	t.mu.unlock()
	return nil
}

// Pop removes and returns the most recently pushed pointer, or
// NotFound when the stack is empty.
func (t *Trash) Pop() (unsafe.Pointer, error) {
	t.mu.lock()
	p := t.head
	if p == nil {
		t.mu.unlock()
		return nil, NotFound
	}
	t.head = *(*unsafe.Pointer)(p)
	t.size--
	t.mu.unlock()
	return p, nil
}

// Size returns the number of trashed pointers.
func (t *Trash) Size() int {
	t.mu.lock()
	n := t.size
	t.mu.unlock()
	return n
}

// Foreach visits every trashed pointer under the lock. The callback
// returns Again to continue and nil to stop early; any other reply
// aborts the walk and is returned. The callback must not push or pop.
func (t *Trash) Foreach(fn func(ptr unsafe.Pointer) error) error {
	if fn == nil {
		return Disallowed
	}
	t.mu.lock()
	defer t.mu.unlock()
	for p := t.head; p != nil; p = *(*unsafe.Pointer)(p) {
		switch err := fn(p); err {
		case Again:
			continue
		case nil:
			return nil
		default:
			return err
		}
	}
	return nil
}
