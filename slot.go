// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package slab

import (
	"unsafe"
)

// SlotMknode creates a node together with its backing slot storage
// and returns the node and the base address of the storage. The
// storage must hold at least nodeCapacity times granularity bytes and
// must stay valid until SlotRmnode destroys the node.
type SlotMknode func(pool *SlotPool) (*SlotNode, uintptr, error)

// SlotRmnode destroys a node and its backing storage. It is called
// when the last live slot of the node is released.
type SlotRmnode func(node *SlotNode) error

// SlotInitslot, when non-nil, runs on every slot handed out by
// Acquire, before the pointer reaches the caller. It runs on reused
// slots too; callers that need first-use detection inspect the slot
// state themselves.
type SlotInitslot func(addr uintptr, node *SlotNode) error

// SlotNode is one node of a SlotPool: a contiguous array of
// fixed-size slots plus an intrusive free stack threaded through the
// bodies of the unallocated slots. The first word of a free slot
// holds the index of the next free slot.
type SlotNode struct {
	vst     vecState
	pool    *SlotPool
	slots   uintptr
	count   slotCount
	freestk slotIndex
}

func (n *SlotNode) vecState() *vecState { return &n.vst }

func (n *SlotNode) full() bool  { return n.freestk == nilIndex }
func (n *SlotNode) empty() bool { return n.count == 0 }

// Pool returns the SlotPool the node belongs to.
func (n *SlotNode) Pool() *SlotPool { return n.pool }

// Base returns the base address of the node's slot storage.
func (n *SlotNode) Base() uintptr { return n.slots }

// SlotPool is a fixed-size slot allocator with constant-time acquire
// and release and LIFO slot reuse. Storage comes in node-sized chunks
// minted by the mknode callback; a node whose slots are all free is
// destroyed through rmnode.
//
// A SlotPool is not safe for concurrent use.
type SlotPool struct {
	_ noCopy

	vec         vectorPool[*SlotNode]
	granularity uintptr
	mknode      SlotMknode
	rmnode      SlotRmnode
	initslot    SlotInitslot
}

// NewSlotPool returns a slot pool handing out slots of granularity
// bytes, nodeCapacity slots per node. The granularity must be at
// least the size of a free-stack index and nodeCapacity must fit the
// index type.
func NewSlotPool(granularity uintptr, nodeCapacity int, mknode SlotMknode, rmnode SlotRmnode, initslot SlotInitslot) (*SlotPool, error) {
	p := new(SlotPool)
	if err := p.init(granularity, nodeCapacity, mknode, rmnode, initslot); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *SlotPool) init(granularity uintptr, nodeCapacity int, mknode SlotMknode, rmnode SlotRmnode, initslot SlotInitslot) error {
	if granularity == 0 || mknode == nil || rmnode == nil {
		return Disallowed
	}
	if granularity < unsafe.Sizeof(slotIndex(0)) || nodeCapacity > maxSlotCapacity {
		return RangeFail
	}
	if err := p.vec.init(nodeCapacity, p.newNode); err != nil {
		return err
	}
	p.granularity = granularity
	p.mknode = mknode
	p.rmnode = rmnode
	p.initslot = initslot
	return nil
}

// Granularity returns the fixed slot size.
func (p *SlotPool) Granularity() uintptr { return p.granularity }

// NodeCapacity returns the number of slots per node.
func (p *SlotPool) NodeCapacity() int { return p.vec.nodeCap }

// newNode is the vector-layer factory: it asks the user callback for
// a node plus storage, then threads the free stack through the slot
// bodies in descending order so the first acquire returns index 0.
func (p *SlotPool) newNode() (*SlotNode, error) {
	node, base, err := p.mknode(p)
	if err != nil {
		return nil, err
	}
	if node == nil || base == 0 {
		return nil, Corrupt
	}
	node.pool = p
	node.slots = base
	node.count = 0
	next := nilIndex
	for i := p.vec.nodeCap - 1; i >= 0; i-- {
		*(*slotIndex)(unsafe.Pointer(base + uintptr(i)*p.granularity)) = next
		next = slotIndex(i)
	}
	node.freestk = next
	return node, nil
}

// Acquire reserves one slot and returns its address. On any non-nil
// error nothing was allocated.
func (p *SlotPool) Acquire() (unsafe.Pointer, error) {
	node, err := p.vec.getnode()
	if err != nil {
		return nil, err
	}
	idx := node.freestk
	if idx < 0 || int(idx) >= p.vec.nodeCap {
		return nil, Corrupt
	}
	addr := node.slots + uintptr(idx)*p.granularity
	node.freestk = *(*slotIndex)(unsafe.Pointer(addr))
	node.count++
	p.vec.acquire(node, node.full())
	if ZeroMem {
		memset(addr, 0, p.granularity)
	}
	if p.initslot != nil {
		if err := p.initslot(addr, node); err != nil {
			_ = p.Release(unsafe.Pointer(addr), node)
			return nil, err
		}
	}
	return unsafe.Pointer(addr), nil
}

// Release returns the slot at ptr to node. The pointer must be the
// base address of a slot belonging to node; interior or misaligned
// addresses fail with RangeFail.
func (p *SlotPool) Release(ptr unsafe.Pointer, node *SlotNode) error {
	if ptr == nil || node == nil {
		return Disallowed
	}
	if node.pool != p {
		return NotFound
	}
	idx, err := p.calcIndex(node, uintptr(ptr))
	if err != nil {
		return err
	}
	if node.empty() {
		return Underflow
	}
	wasFull := node.full()
	if MarkFreed != 0 {
		memset(uintptr(ptr), MarkFreed, p.granularity)
	}
	*(*slotIndex)(ptr) = node.freestk
	node.freestk = idx
	node.count--
	emptyNow := node.empty()
	p.vec.release(node, wasFull, emptyNow)
	if emptyNow {
		return p.rmnode(node)
	}
	return nil
}

// calcIndex converts a slot address into its index, rejecting
// addresses outside the node or not on a slot boundary.
func (p *SlotPool) calcIndex(node *SlotNode, addr uintptr) (slotIndex, error) {
	if addr < node.slots {
		return nilIndex, RangeFail
	}
	offset := addr - node.slots
	if offset%p.granularity != 0 {
		return nilIndex, RangeFail
	}
	idx := offset / p.granularity
	if idx >= uintptr(p.vec.nodeCap) {
		return nilIndex, RangeFail
	}
	return slotIndex(idx), nil
}

// Check audits every node: counts within capacity, the full/empty
// predicates consistent with the counters, and a free stack whose
// length is exactly capacity minus count with unique in-range
// indices.
func (p *SlotPool) Check() error {
	return p.vec.check(p.checkNode)
}

func (p *SlotPool) checkNode(node *SlotNode) error {
	cap := p.vec.nodeCap
	if int(node.count) > cap {
		return Corrupt
	}
	if node.full() && int(node.count) != cap {
		return Corrupt
	}
	seen := make([]bool, cap)
	n := 0
	for idx := node.freestk; idx != nilIndex; {
		if idx < 0 || int(idx) >= cap || seen[idx] {
			return Corrupt
		}
		seen[idx] = true
		n++
		if n > cap {
			return Corrupt
		}
		idx = *(*slotIndex)(unsafe.Pointer(node.slots + uintptr(idx)*p.granularity))
	}
	if n != cap-int(node.count) {
		return Corrupt
	}
	return nil
}

// memset fills n bytes at addr with b.
func memset(addr uintptr, b byte, n uintptr) {
	s := unsafe.Slice((*byte)(unsafe.Pointer(addr)), n)
	for i := range s {
		s[i] = b
	}
}
