// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package slab

// Appetite selects how aggressively released pages are returned to
// the operating system.
type Appetite int

const (
	// Frugal decommits a page the moment it is released, returning
	// the physical memory at the first opportunity.
	Frugal Appetite = iota

	// Greedy keeps released pages committed and only advises the
	// kernel that their contents are disposable, trading residency
	// for cheaper reuse.
	Greedy
)

// Package options. Like the teacher modules in this namespace, the
// knobs are package-level variables tuned before any pool is built;
// changing them afterwards affects only pools created later, except
// for ZeroMem and MarkFreed, which are read on every acquire and
// release and take effect immediately.
var (
	// ZeroMem zeroes every acquired slot and page before it is
	// handed out.
	ZeroMem = false

	// MarkFreed, when non-zero, overwrites released memory with the
	// given byte pattern. Debug aid; leave zero in production.
	MarkFreed byte = 0

	// MinPageDensity is the smallest number of slots an aligned pool
	// must fit on one page. Size classes too coarse to reach it are
	// refused with RangeFail.
	MinPageDensity = 10

	// DefaultReclaimGoal is the number of trashed pointers a lazy
	// pool drains per acquire when no explicit goal is configured.
	DefaultReclaimGoal = 3

	// DefaultAppetite is the appetite used by the façade's default
	// pool.
	DefaultAppetite = Frugal
)
