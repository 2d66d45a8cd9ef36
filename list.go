// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package slab

// link is one element of an intrusive, circular doubly-linked list.
// A detached link points at itself; a linked one participates in a
// ring anchored by a sentinel. Links are embedded in node structures
// that may live outside the Go heap, so the list never allocates.
type link struct {
	prev, next *link
	owner      any
}

func (l *link) init(owner any) {
	l.prev, l.next = l, l
	l.owner = owner
}

// linked reports whether l is part of a ring larger than itself.
func (l *link) linked() bool { return l.next != l }

// remove detaches l from its ring and restores the self-loop.
func (l *link) remove() {
	l.prev.next = l.next
	l.next.prev = l.prev
	l.prev, l.next = l, l
}

// ring is the sentinel anchoring an intrusive list.
type ring struct {
	root link
}

func (r *ring) init() { r.root.init(nil) }

func (r *ring) empty() bool { return !r.root.linked() }

// pushFront splices l in directly behind the sentinel.
func (r *ring) pushFront(l *link) {
	l.prev = &r.root
	l.next = r.root.next
	r.root.next.prev = l
	r.root.next = l
}

// front returns the first element, or nil when the ring is empty.
func (r *ring) front() *link {
	if r.empty() {
		return nil
	}
	return r.root.next
}

// foreach visits every element. The callback returns Again to
// continue and nil to stop early; any other reply aborts the walk.
func (r *ring) foreach(fn func(l *link) error) error {
	for l := r.root.next; l != &r.root; l = l.next {
		switch err := fn(l); err {
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

// check verifies the structural soundness of the ring: every link's
// neighbors agree with it, and following next pointers returns to the
// sentinel within limit steps.
func (r *ring) check(limit int) error {
	n := 0
	for l := r.root.next; l != &r.root; l = l.next {
		if l.next.prev != l || l.prev.next != l {
			return Corrupt
		}
		n++
		if n > limit {
			return Corrupt
		}
	}
	return nil
}
