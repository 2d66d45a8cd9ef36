// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package slab

// vecState is the portion of a pool node the vector layer manages: a
// back-pointer to the owning pool plus membership in the inventory
// and availability rings. Higher layers embed it in their node types.
type vecState struct {
	pool  any
	inv   link
	avail link
}

// vecNoder is implemented by every node type managed by a vectorPool.
type vecNoder interface {
	vecState() *vecState
}

// vectorPool tracks the live nodes of a higher-level pool in two
// intrusive rings: the inventory ring holds every live node, the
// availability ring the subset with at least one free slot. Getnode
// answers "a node with a free slot, please" in constant time, minting
// a new node through the factory only when the availability ring is
// empty.
//
// A node is in the availability ring iff it is not full; it is in the
// inventory ring for its entire lifetime.
type vectorPool[N vecNoder] struct {
	inv     ring
	avail   ring
	nodeCap int
	mknode  func() (N, error)
}

func (p *vectorPool[N]) init(nodeCap int, mknode func() (N, error)) error {
	if nodeCap <= 0 || mknode == nil {
		return Disallowed
	}
	p.inv.init()
	p.avail.init()
	p.nodeCap = nodeCap
	p.mknode = mknode
	return nil
}

// getnode returns a node guaranteed to have at least one free slot.
// Resource shortage from the factory is propagated unchanged.
func (p *vectorPool[N]) getnode() (N, error) {
	if l := p.avail.front(); l != nil {
		return l.owner.(N), nil
	}
	node, err := p.mknode()
	if err != nil {
		var zero N
		return zero, err
	}
	st := node.vecState()
	st.pool = p
	st.inv.init(node)
	st.avail.init(node)
	p.avail.pushFront(&st.avail)
	p.inv.pushFront(&st.inv)
	return node, nil
}

// acquire finalizes a slot reservation made by the layer above. A
// node that just became full leaves the availability ring.
func (p *vectorPool[N]) acquire(node N, fullNow bool) {
	if fullNow {
		node.vecState().avail.remove()
	}
}

// release finalizes a slot return. A node that was full rejoins the
// availability ring; a node that became empty leaves both rings, and
// the caller is expected to destroy it.
func (p *vectorPool[N]) release(node N, wasFull, emptyNow bool) {
	st := node.vecState()
	if emptyNow {
		st.inv.remove()
		if st.avail.linked() {
			st.avail.remove()
		}
		return
	}
	if wasFull {
		p.avail.pushFront(&st.avail)
	}
}

// check walks both rings, verifying linkage, back-pointers, and the
// caller-supplied per-node predicate.
func (p *vectorPool[N]) check(chknode func(N) error) error {
	const limit = 1 << 24
	if err := p.inv.check(limit); err != nil {
		return err
	}
	if err := p.avail.check(limit); err != nil {
		return err
	}
	err := p.inv.foreach(func(l *link) error {
		node, ok := l.owner.(N)
		if !ok || node.vecState().pool != any(p) {
			return Corrupt
		}
		if chknode != nil {
			if err := chknode(node); err != nil {
				return err
			}
		}
		return Again
	})
	if err != nil {
		return err
	}
	return p.avail.foreach(func(l *link) error {
		node, ok := l.owner.(N)
		if !ok || node.vecState().pool != any(p) {
			return Corrupt
		}
		return Again
	})
}
