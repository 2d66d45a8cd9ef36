// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package slab

import (
	"unsafe"
)

// MuxPoolCount is the number of size classes a multiplexer routes
// over. With a pointer-sized step the class table spans requests up
// to MuxPoolCount words; larger requests fail with RangeFail and
// belong to the supplementary allocator. Classes in the table too
// coarse to fit MinPageDensity slots on a page fail with RangeFail
// as well.
const MuxPoolCount = 128

// muxStep is the size-class quantum. Increments smaller than the
// address word would produce classes no allocation can use.
const muxStep = unsafe.Sizeof(uintptr(0))

// MuxPool routes size requests to an array of aligned pools, one per
// size class, materializing each class on first use. The slot at
// index i serves sizes in (i*step, (i+1)*step].
//
// Every class pool is tagged with the multiplexer's signature and
// back-pointer, so Query can identify the multiplexer owning an
// arbitrary address while tolerating foreign pointers.
//
// A MuxPool is not safe for concurrent use.
type MuxPool struct {
	_ noCopy

	step     uintptr
	appetite Appetite
	tag      Tag
	owner    *LazyPool
	pools    [MuxPoolCount]*AlignedPool
}

// NewMuxPool returns a multiplexer with the given appetite.
func NewMuxPool(appetite Appetite) (*MuxPool, error) {
	m := new(MuxPool)
	if err := m.init(appetite); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MuxPool) init(appetite Appetite) error {
	if err := alignedInitialize(); err != nil {
		return err
	}
	m.step = muxStep
	m.appetite = appetite
	m.tag[0] = uintptr(sigMux)
	m.tag[1] = uintptr(unsafe.Pointer(m))
	return nil
}

// Step returns the size-class quantum.
func (m *MuxPool) Step() uintptr { return m.step }

// classPool returns the aligned pool serving size, creating it on
// first use. Sizes beyond the largest class fail with RangeFail, as
// do classes too coarse to meet the page-density floor.
func (m *MuxPool) classPool(size uintptr) (*AlignedPool, error) {
	idx := (size+m.step-1)/m.step - 1
	if idx >= MuxPoolCount {
		return nil, RangeFail
	}
	if m.pools[idx] == nil {
		ap, err := NewAlignedPool(m.appetite, m.step*(idx+1), &m.tag)
		if err != nil {
			return nil, err
		}
		m.pools[idx] = ap
	}
	return m.pools[idx], nil
}

// Acquire reserves size bytes from the matching size class. RangeFail
// means no class can serve the size and the caller should fall back
// to its supplementary allocator.
func (m *MuxPool) Acquire(size uintptr) (unsafe.Pointer, error) {
	if size == 0 {
		return nil, Disallowed
	}
	ap, err := m.classPool(size)
	if err != nil {
		return nil, err
	}
	return ap.Acquire()
}

// Release returns ptr to its owning class pool. The page footer alone
// identifies the owner, so any multiplexer value can release any
// multiplexer-owned pointer.
func (m *MuxPool) Release(ptr unsafe.Pointer) error {
	if ptr == nil {
		return Disallowed
	}
	an, err := alignedOwner(uintptr(ptr))
	if err != nil {
		return err
	}
	return an.pool.Release(ptr)
}

// Query identifies the multiplexer owning ptr and the rounded size
// of its class. The tag signature gate tolerates pointers owned by
// plain aligned pools or by nothing at all; both report NotFound.
func (m *MuxPool) Query(ptr unsafe.Pointer) (*MuxPool, uintptr, error) {
	if ptr == nil {
		return nil, 0, Disallowed
	}
	return muxQuery(uintptr(ptr))
}

func muxQuery(addr uintptr) (*MuxPool, uintptr, error) {
	an, err := alignedOwner(addr)
	if err != nil {
		return nil, 0, err
	}
	owner := an.pool
	if _, err := owner.slots.calcIndex(&an.node, addr); err != nil {
		return nil, 0, NotFound
	}
	tag := owner.Tag()
	if Signature(tag[0]) != sigMux {
		return nil, 0, NotFound
	}
	mp := (*MuxPool)(unsafe.Pointer(tag[1]))
	if mp == nil {
		return nil, 0, NotFound
	}
	return mp, owner.Granularity(), nil
}

// Check audits every materialized size class.
func (m *MuxPool) Check() error {
	for _, ap := range m.pools {
		if ap == nil {
			continue
		}
		if err := ap.Check(); err != nil {
			return err
		}
	}
	return nil
}
