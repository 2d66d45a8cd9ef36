// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package slab

import (
	"sync"
	"unsafe"
)

// alignedNode pairs the slot node managing one page's slots with a
// back-pointer to its aligned pool, so a footer read recovers the
// whole ownership chain.
type alignedNode struct {
	node SlotNode
	pool *AlignedPool
}

// alignedFooter is the footer written beneath the page pool's own
// footer on every page an aligned pool owns.
type alignedFooter struct {
	sig  Signature
	node *alignedNode
}

var alignedGlobals struct {
	once sync.Once
	err  error
	spec footSpec
}

func alignedInitialize() error {
	alignedGlobals.once.Do(func() {
		wz, err := PageGranularity()
		if err != nil {
			alignedGlobals.err = err
			return
		}
		var f alignedFooter
		alignedGlobals.spec, alignedGlobals.err = mkFootSpec(wz,
			unsafe.Sizeof(f), unsafe.Alignof(f), unsafe.Offsetof(f.node), sigAligned)
	})
	return alignedGlobals.err
}

// alignedOwner reads the footer of the page containing addr and
// returns the owning node, or NotFound when the signature does not
// match.
func alignedOwner(addr uintptr) (*alignedNode, error) {
	storage, err := alignedGlobals.spec.storage(addr)
	if err != nil {
		return nil, err
	}
	an := *(**alignedNode)(unsafe.Pointer(storage))
	if an == nil {
		return nil, NotFound
	}
	return an, nil
}

// AlignedPool is a fixed-size allocator whose slots live on single
// hardware pages with tagged footers, making the owning pool
// recoverable from any slot address in constant time: mask the
// address to its page base and read the footer.
//
// An AlignedPool is not safe for concurrent use.
type AlignedPool struct {
	_ noCopy

	pages PagePool
	slots SlotPool
	tag   Tag
}

// NewAlignedPool returns an aligned pool handing out slots of
// granularity bytes. The optional tag is stored verbatim; embedding
// pools use it to mark their pools and find their way back from a
// footer. Granularities too coarse to fit MinPageDensity slots on a
// page, or too fine for the index type, fail with RangeFail.
func NewAlignedPool(appetite Appetite, granularity uintptr, tag *Tag) (*AlignedPool, error) {
	p := new(AlignedPool)
	if err := p.init(appetite, granularity, tag); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *AlignedPool) init(appetite Appetite, granularity uintptr, tag *Tag) error {
	if granularity == 0 {
		return Disallowed
	}
	if err := alignedInitialize(); err != nil {
		return err
	}
	if err := p.pages.init(appetite); err != nil {
		return err
	}
	capacity := alignedGlobals.spec.footerOffset / granularity
	if capacity < uintptr(MinPageDensity) || capacity > maxSlotCapacity {
		return RangeFail
	}
	if err := p.slots.init(granularity, int(capacity), p.mkNode, p.rmNode, nil); err != nil {
		return err
	}
	if tag != nil {
		p.tag = *tag
	}
	return nil
}

// Granularity returns the fixed slot size.
func (p *AlignedPool) Granularity() uintptr { return p.slots.Granularity() }

// Tag returns the tag supplied at construction.
func (p *AlignedPool) Tag() *Tag { return &p.tag }

// Acquire reserves one slot.
func (p *AlignedPool) Acquire() (unsafe.Pointer, error) {
	return p.slots.Acquire()
}

// Release returns ptr to the pool. The owning node is recovered from
// the page footer; a pointer this pool does not own fails with
// NotFound.
func (p *AlignedPool) Release(ptr unsafe.Pointer) error {
	if ptr == nil {
		return Disallowed
	}
	an, err := alignedOwner(uintptr(ptr))
	if err != nil {
		return err
	}
	if an.pool != p {
		return NotFound
	}
	return p.slots.Release(ptr, &an.node)
}

// Query returns the aligned pool owning ptr. Foreign pointers —
// wrong signature, interior misalignment, or addresses in the page's
// unused padding — report NotFound.
func (p *AlignedPool) Query(ptr unsafe.Pointer) (*AlignedPool, error) {
	if ptr == nil {
		return nil, Disallowed
	}
	an, err := alignedOwner(uintptr(ptr))
	if err != nil {
		return nil, err
	}
	owner := an.pool
	if _, err := owner.slots.calcIndex(&an.node, uintptr(ptr)); err != nil {
		return nil, NotFound
	}
	return owner, nil
}

// Check audits the embedded page and slot pools.
func (p *AlignedPool) Check() error {
	if err := p.pages.Check(); err != nil {
		return err
	}
	return p.slots.Check()
}

// mkNode backs a new slot node with one page and writes the footer
// that makes the node recoverable from any of its slots.
func (p *AlignedPool) mkNode(*SlotPool) (*SlotNode, uintptr, error) {
	page, err := p.pages.Acquire()
	if err != nil {
		return nil, 0, err
	}
	an := &alignedNode{pool: p}
	storage := alignedGlobals.spec.place(uintptr(page))
	*(**alignedNode)(unsafe.Pointer(storage)) = an
	return &an.node, uintptr(page), nil
}

func (p *AlignedPool) rmNode(node *SlotNode) error {
	return p.pages.Release(unsafe.Pointer(node.Base()))
}
