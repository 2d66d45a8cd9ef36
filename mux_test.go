// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package slab_test

import (
	"math/rand"
	"testing"
	"unsafe"

	"code.hybscloud.com/slab"
)

func TestMuxPoolSizeClassRouting(t *testing.T) {
	pool, err := slab.NewMuxPool(slab.Frugal)
	if err != nil {
		t.Fatalf("NewMuxPool failed: %v", err)
	}
	step := pool.Step()

	// A size exactly on a class boundary stays in that class.
	for _, k := range []uintptr{1, 2, 7, 16} {
		size := k * step
		p, err := pool.Acquire(size)
		if err != nil {
			t.Fatalf("Acquire(%d) failed: %v", size, err)
		}
		_, rounded, err := pool.Query(p)
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if rounded != size {
			t.Errorf("size %d routed to class %d", size, rounded)
		}
		if err := pool.Release(p); err != nil {
			t.Fatalf("Release failed: %v", err)
		}
	}

	// One byte past a boundary moves to the next class.
	p, err := pool.Acquire(step + 1)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	_, rounded, err := pool.Query(p)
	if err != nil || rounded != 2*step {
		t.Errorf("size %d rounded to %d, want %d", step+1, rounded, 2*step)
	}
	if err := pool.Release(p); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
}

func TestMuxPoolRangeFail(t *testing.T) {
	pool, err := slab.NewMuxPool(slab.Frugal)
	if err != nil {
		t.Fatalf("NewMuxPool failed: %v", err)
	}
	step := pool.Step()

	// Beyond the last class.
	if _, err := pool.Acquire(step*slab.MuxPoolCount + 1); err != slab.RangeFail {
		t.Errorf("oversized acquire: %v, want RangeFail", err)
	}
	// Within the class table but too coarse for the density floor.
	if _, err := pool.Acquire(step * slab.MuxPoolCount); err != slab.RangeFail {
		t.Errorf("sparse class acquire: %v, want RangeFail", err)
	}
	if _, err := pool.Acquire(0); err != slab.Disallowed {
		t.Errorf("zero acquire: %v, want Disallowed", err)
	}
}

func TestMuxPoolQueryForeign(t *testing.T) {
	pool, err := slab.NewMuxPool(slab.Frugal)
	if err != nil {
		t.Fatalf("NewMuxPool failed: %v", err)
	}

	// Pointers from the Go heap are foreign.
	block := make([]byte, 64)
	if _, _, err := pool.Query(unsafe.Pointer(unsafe.SliceData(block))); err != slab.NotFound {
		t.Errorf("heap query: %v, want NotFound", err)
	}

	// Pointers from a plain aligned pool carry the wrong tag.
	plain, err := slab.NewAlignedPool(slab.Frugal, 64, nil)
	if err != nil {
		t.Fatalf("NewAlignedPool failed: %v", err)
	}
	p, err := plain.Acquire()
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if _, _, err := pool.Query(p); err != slab.NotFound {
		t.Errorf("untagged pool query: %v, want NotFound", err)
	}
	if err := plain.Release(p); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
}

// TestMuxPoolMixedSizes runs the mixed-size scenario: one hundred
// thousand acquires with sizes drawn from [4, 100], each filled and
// verified, with interleaved releases and a final structural check.
func TestMuxPoolMixedSizes(t *testing.T) {
	const acquires = 100000

	pool, err := slab.NewMuxPool(slab.Frugal)
	if err != nil {
		t.Fatalf("NewMuxPool failed: %v", err)
	}
	step := pool.Step()

	type allocation struct {
		ptr  unsafe.Pointer
		size int
	}
	rng := rand.New(rand.NewSource(0))
	live := []allocation{}
	seen := map[uintptr]bool{}
	done := 0
	for done < acquires {
		if len(live) == 0 || (rng.Intn(5) < 3 && done < acquires) {
			size := 4 + rng.Intn(97)
			p, err := pool.Acquire(uintptr(size))
			if err != nil {
				t.Fatalf("Acquire(%d) failed: %v", size, err)
			}
			if seen[uintptr(p)] {
				t.Fatalf("pointer %#x handed out twice while live", uintptr(p))
			}
			seen[uintptr(p)] = true

			mp, rounded, err := pool.Query(p)
			if err != nil || mp != pool {
				t.Fatalf("Query = %v, %v", mp, err)
			}
			if rounded < uintptr(size) || rounded-uintptr(size) >= step {
				t.Fatalf("size %d rounded to %d, outside [size, size+step)", size, rounded)
			}

			fill := slab.Bytes(p, size)
			for i := range fill {
				fill[i] = byte(size)
			}
			live = append(live, allocation{p, size})
			done++
		} else {
			i := rng.Intn(len(live))
			a := live[i]
			for _, b := range slab.Bytes(a.ptr, a.size) {
				if b != byte(a.size) {
					t.Fatalf("fill mismatch for size %d", a.size)
				}
			}
			delete(seen, uintptr(a.ptr))
			if err := pool.Release(a.ptr); err != nil {
				t.Fatalf("Release failed: %v", err)
			}
			live[i] = live[len(live)-1]
			live = live[:len(live)-1]
		}
	}
	for _, a := range live {
		if err := pool.Release(a.ptr); err != nil {
			t.Fatalf("final Release failed: %v", err)
		}
	}
	if err := pool.Check(); err != nil {
		t.Fatalf("final Check failed: %v", err)
	}
}
