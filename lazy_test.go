// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package slab_test

import (
	"testing"
	"unsafe"

	"code.hybscloud.com/slab"
)

func TestLazyPoolReclaimMonotonic(t *testing.T) {
	pool, err := slab.NewLazyPool(slab.Frugal, 3)
	if err != nil {
		t.Fatalf("NewLazyPool failed: %v", err)
	}

	ptrs := make([]unsafe.Pointer, 10)
	for i := range ptrs {
		p, err := pool.Acquire(16)
		if err != nil {
			t.Fatalf("Acquire failed: %v", err)
		}
		ptrs[i] = p
	}
	for _, p := range ptrs {
		if err := pool.Release(p); err != nil {
			t.Fatalf("Release failed: %v", err)
		}
	}
	if pool.TrashSize() != 10 {
		t.Fatalf("TrashSize = %d, want 10", pool.TrashSize())
	}

	// Reclaim returns at most the goal and shrinks the trash by
	// exactly the returned count.
	n, err := pool.Reclaim(4)
	if err != nil || n != 4 {
		t.Fatalf("Reclaim(4) = %d, %v", n, err)
	}
	if pool.TrashSize() != 6 {
		t.Fatalf("TrashSize = %d, want 6", pool.TrashSize())
	}

	// Draining past empty stops early without an error.
	n, err = pool.Reclaim(100)
	if err != nil || n != 6 {
		t.Fatalf("Reclaim(100) = %d, %v", n, err)
	}
	if pool.TrashSize() != 0 {
		t.Fatalf("TrashSize = %d, want 0", pool.TrashSize())
	}

	if _, err := pool.Reclaim(0); err != slab.Disallowed {
		t.Fatalf("Reclaim(0) = %v, want Disallowed", err)
	}
	if err := pool.Check(); err != nil {
		t.Fatalf("Check failed: %v", err)
	}
}

func TestLazyPoolAcquireDrainsTrash(t *testing.T) {
	const goal = 3
	pool, err := slab.NewLazyPool(slab.Frugal, goal)
	if err != nil {
		t.Fatalf("NewLazyPool failed: %v", err)
	}

	ptrs := make([]unsafe.Pointer, 5)
	for i := range ptrs {
		p, err := pool.Acquire(32)
		if err != nil {
			t.Fatalf("Acquire failed: %v", err)
		}
		ptrs[i] = p
	}
	for _, p := range ptrs {
		if err := pool.Release(p); err != nil {
			t.Fatalf("Release failed: %v", err)
		}
	}

	// The next acquire drains up to the reclaim goal first.
	p, err := pool.Acquire(32)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if got := pool.TrashSize(); got != 5-goal {
		t.Fatalf("TrashSize after acquire = %d, want %d", got, 5-goal)
	}
	if err := pool.Release(p); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if err := pool.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if pool.TrashSize() != 0 {
		t.Fatalf("TrashSize after flush = %d", pool.TrashSize())
	}
}

func TestLazyPoolQueryAndForeignRelease(t *testing.T) {
	pool, err := slab.NewLazyPool(slab.Frugal, 3)
	if err != nil {
		t.Fatalf("NewLazyPool failed: %v", err)
	}
	p, err := pool.Acquire(24)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	owner, size, err := pool.Query(p)
	if err != nil || owner != pool {
		t.Fatalf("Query = %v, %v", owner, err)
	}
	if size < 24 {
		t.Fatalf("Query size = %d, want >= 24", size)
	}

	// A pointer from an untagged aligned pool is not lazy-owned.
	plain, err := slab.NewAlignedPool(slab.Frugal, 64, nil)
	if err != nil {
		t.Fatalf("NewAlignedPool failed: %v", err)
	}
	fp, err := plain.Acquire()
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := pool.Release(fp); err != slab.NotFound {
		t.Fatalf("foreign release = %v, want NotFound", err)
	}
	if err := plain.Release(fp); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	// Go heap pointers are foreign too.
	block := make([]byte, 64)
	if _, _, err := pool.Query(unsafe.Pointer(unsafe.SliceData(block))); err != slab.NotFound {
		t.Fatalf("heap query = %v, want NotFound", err)
	}

	if err := pool.Release(p); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if err := pool.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if err := pool.Check(); err != nil {
		t.Fatalf("Check failed: %v", err)
	}
}

func TestLazyPoolRangeFailPassThrough(t *testing.T) {
	pool, err := slab.NewLazyPool(slab.Frugal, 3)
	if err != nil {
		t.Fatalf("NewLazyPool failed: %v", err)
	}
	if _, err := pool.Acquire(1 << 20); err != slab.RangeFail {
		t.Fatalf("oversized acquire = %v, want RangeFail", err)
	}
	if _, err := pool.Acquire(0); err != slab.Disallowed {
		t.Fatalf("zero acquire = %v, want Disallowed", err)
	}
	if _, err := slab.NewLazyPool(slab.Frugal, 0); err != slab.Disallowed {
		t.Fatalf("zero reclaim goal = %v, want Disallowed", err)
	}
}
