// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package slab_test

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"unsafe"

	"code.hybscloud.com/slab"
)

func TestFacadeRoundTrip(t *testing.T) {
	if err := slab.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	step := int(unsafe.Sizeof(uintptr(0)))
	for size := 1; size <= 200; size++ {
		p, err := slab.Acquire(size)
		if err != nil {
			t.Fatalf("Acquire(%d) failed: %v", size, err)
		}
		fill := slab.Bytes(p, size)
		for i := range fill {
			fill[i] = byte(size)
		}

		rounded, err := slab.Query(p)
		switch err {
		case nil:
			if rounded < size || rounded-size >= step {
				t.Fatalf("size %d rounded to %d", size, rounded)
			}
		case slab.NotFound:
			// Served by the supplementary allocator.
		default:
			t.Fatalf("Query failed: %v", err)
		}

		for _, b := range slab.Bytes(p, size) {
			if b != byte(size) {
				t.Fatalf("fill mismatch at size %d", size)
			}
		}
		if err := slab.Discard(p); err != nil {
			t.Fatalf("Discard failed: %v", err)
		}
	}
	if err := slab.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if err := slab.Check(); err != nil {
		t.Fatalf("Check failed: %v", err)
	}
}

// TestFacadeFallback covers supplementary integration: a size beyond
// the largest class is served outside the pools, queries as foreign,
// and discards cleanly through the supplementary free.
func TestFacadeFallback(t *testing.T) {
	mallocs := atomic.Int64{}
	frees := atomic.Int64{}
	blocks := sync.Map{}
	if err := slab.Initialize(slab.WithSupplementary(
		func(size int) unsafe.Pointer {
			b := make([]byte, size)
			p := unsafe.Pointer(unsafe.SliceData(b))
			blocks.Store(uintptr(p), b)
			mallocs.Add(1)
			return p
		},
		func(p unsafe.Pointer) {
			blocks.Delete(uintptr(p))
			frees.Add(1)
		},
	)); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	p, err := slab.Acquire(1 << 16)
	if err != nil {
		t.Fatalf("oversized Acquire failed: %v", err)
	}
	if mallocs.Load() != 1 {
		t.Fatalf("supplementary malloc ran %d times", mallocs.Load())
	}
	fill := slab.Bytes(p, 1<<16)
	for i := range fill {
		fill[i] = 0x5a
	}
	if _, err := slab.Query(p); err != slab.NotFound {
		t.Fatalf("Query on fallback pointer = %v, want NotFound", err)
	}
	for _, b := range fill {
		if b != 0x5a {
			t.Fatal("fallback memory corrupted")
		}
	}
	if err := slab.Discard(p); err != nil {
		t.Fatalf("Discard failed: %v", err)
	}
	if frees.Load() != 1 {
		t.Fatalf("supplementary free ran %d times", frees.Load())
	}

	s, err := slab.FacadeStats()
	if err != nil {
		t.Fatalf("FacadeStats failed: %v", err)
	}
	if s.FallbackAcquires != 1 || s.FallbackReleases != 1 {
		t.Fatalf("fallback stats: %+v", s)
	}
}

func TestFacadeAcquireZeroed(t *testing.T) {
	if err := slab.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	// Dirty a slot, discard it, and demand zeroes on the next
	// zeroed acquire of the same class.
	p, err := slab.Acquire(40)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	fill := slab.Bytes(p, 40)
	for i := range fill {
		fill[i] = 0xff
	}
	if err := slab.Discard(p); err != nil {
		t.Fatalf("Discard failed: %v", err)
	}

	q, err := slab.AcquireZeroed(40)
	if err != nil {
		t.Fatalf("AcquireZeroed failed: %v", err)
	}
	for i, b := range slab.Bytes(q, 40) {
		if b != 0 {
			t.Fatalf("byte %d = %#x, want 0", i, b)
		}
	}
	if err := slab.Discard(q); err != nil {
		t.Fatalf("Discard failed: %v", err)
	}
}

func TestFacadeArgs(t *testing.T) {
	if err := slab.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if _, err := slab.Acquire(0); err != slab.Disallowed {
		t.Errorf("Acquire(0) = %v, want Disallowed", err)
	}
	if _, err := slab.Acquire(-3); err != slab.Disallowed {
		t.Errorf("Acquire(-3) = %v, want Disallowed", err)
	}
	if err := slab.Discard(nil); err != slab.Disallowed {
		t.Errorf("Discard(nil) = %v, want Disallowed", err)
	}
	if _, err := slab.Reclaim(0); err != slab.Disallowed {
		t.Errorf("Reclaim(0) = %v, want Disallowed", err)
	}
	if err := slab.Initialize(slab.WithSupplementary(nil, nil)); err != slab.Disallowed {
		t.Errorf("nil supplementary pair = %v, want Disallowed", err)
	}
}

// TestFacadeParallelMixed is the multi-goroutine end-to-end
// scenario: goroutines share the default pool, a share of the
// allocations exceed the pooled range and ride the supplementary
// allocator, and a share of the releases happen on a sibling
// goroutine.
func TestFacadeParallelMixed(t *testing.T) {
	const goroutines = 4
	const iterations = 20000

	if err := slab.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	type block struct {
		ptr  unsafe.Pointer
		size int
	}
	// Each goroutine forwards a slice of its releases to the next.
	forward := make([]chan block, goroutines)
	for i := range forward {
		forward[i] = make(chan block, 64)
	}

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := range goroutines {
		go func(id int) {
			defer wg.Done()
			defer slab.Detach()
			rng := rand.New(rand.NewSource(int64(id)))
			live := []block{}
			drain := func() {
				for {
					select {
					case b := <-forward[id]:
						for _, v := range slab.Bytes(b.ptr, b.size) {
							if v != byte(b.size) {
								t.Errorf("goroutine %d: forwarded fill mismatch", id)
							}
						}
						if err := slab.Discard(b.ptr); err != nil {
							t.Errorf("goroutine %d: forwarded Discard failed: %v", id, err)
						}
					default:
						return
					}
				}
			}
			for i := 0; i < iterations; i++ {
				drain()
				if len(live) < 64 {
					size := 4 + rng.Intn(100)
					if rng.Intn(10) < 3 {
						// Outside the pooled range.
						size = 1024 + rng.Intn(4096)
					}
					p, err := slab.Acquire(size)
					if err != nil {
						t.Errorf("goroutine %d: Acquire(%d) failed: %v", id, size, err)
						return
					}
					fill := slab.Bytes(p, size)
					for j := range fill {
						fill[j] = byte(size)
					}
					live = append(live, block{p, size})
				} else {
					k := rng.Intn(len(live))
					b := live[k]
					live[k] = live[len(live)-1]
					live = live[:len(live)-1]
					if rng.Intn(10) == 0 {
						// Hand the release to a sibling; if its
						// queue is full, release locally instead.
						select {
						case forward[(id+1)%goroutines] <- b:
							continue
						default:
						}
					}
					for _, v := range slab.Bytes(b.ptr, b.size) {
						if v != byte(b.size) {
							t.Errorf("goroutine %d: fill mismatch", id)
							return
						}
					}
					if err := slab.Discard(b.ptr); err != nil {
						t.Errorf("goroutine %d: Discard failed: %v", id, err)
						return
					}
				}
			}
			for _, b := range live {
				if err := slab.Discard(b.ptr); err != nil {
					t.Errorf("goroutine %d: final Discard failed: %v", id, err)
				}
			}
			if err := slab.Check(); err != nil {
				t.Errorf("goroutine %d: Check failed: %v", id, err)
			}
		}(g)
	}
	wg.Wait()

	// Drain anything forwarded after its target finished its loop.
	for id := range forward {
		close(forward[id])
		for b := range forward[id] {
			if err := slab.Discard(b.ptr); err != nil {
				t.Errorf("residual Discard failed: %v", err)
			}
		}
	}
	if err := slab.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
}
