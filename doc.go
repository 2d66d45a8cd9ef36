// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package slab provides a pooled heap allocator for small, frequently
// allocated objects. Fixed-size slots are carved out of hardware
// pages, acquire and release run in amortized constant time, and
// per-goroutine allocation streams never contend. Requests outside
// the pooled size range are delegated to a caller-supplied
// supplementary allocator.
//
// # Pool Layers
//
// The allocator is built from layered pools, each relying on exact
// contracts of the layer below:
//
//	Layer        Role
//	─────        ────
//	SlotPool     fixed-size slots, intrusive free stack
//	PagePool     reserves regions, commits single hardware pages
//	AlignedPool  slots on one page with an owner-identifying footer
//	MuxPool      size-class router over 128 aligned pools
//	LazyPool     deferred release through a per-owner trash stack
//	ParallelPool one lazy pool per goroutine, lock-free hot paths
//
// The façade functions (Initialize, Acquire, Discard, Query, Reclaim,
// Flush, Check) operate a process-wide ParallelPool and fall back to
// the supplementary allocator for anything the pools refuse.
//
// # Footers
//
// Every page handed out carries a small footer near its tail: a
// 4-byte signature plus a pointer to the page's bookkeeping node.
// Masking any interior address to its page base and reading the
// footer identifies the owning pool in constant time, with no lookup
// structures. Footers are treated as untrusted input; a signature
// mismatch classifies the pointer as foreign (NotFound), never as
// corruption.
//
// # Deferred Release
//
// Releasing a pointer never touches pool structures directly.
// The footer routes the pointer to the trash stack of the goroutine
// that allocated it; that goroutine drains a few entries at the top
// of each subsequent acquire. Apart from the registration of a
// goroutine's record, the trash lock is the only lock on the pooled
// acquire and release paths.
//
// # Replies
//
// Operations return nil on success and a Reply value otherwise.
// Two replies are control flow rather than failure: RangeFail routes
// oversized requests to the supplementary allocator, NotFound routes
// foreign pointers there. Again bridges to iox.ErrWouldBlock under
// errors.Is for callers using the iox conventions.
//
// # Thread Safety
//
// Façade and ParallelPool operations are safe from any goroutine.
// SlotPool, PagePool, AlignedPool, MuxPool, and LazyPool are
// single-owner structures and are not safe for concurrent use; only
// the trash inside a LazyPool accepts concurrent producers.
//
// # Options
//
// Package-level knobs tune the allocator before pools are built:
// ZeroMem (zero-fill on acquire), MarkFreed (debug byte pattern on
// release), MinPageDensity (minimum slots per page), the default
// appetite and reclaim goal. The slabcompact build tag halves the
// free-stack index width. Appetite selects whether released pages
// are decommitted (Frugal) or kept and advised disposable (Greedy).
//
// # Dependencies
//
// slab depends on:
//   - iox: semantic error interop (ErrWouldBlock bridging)
//   - spin: spin-wait primitives backing the trash lock
//   - golang.org/x/sys: virtual-memory system calls
//   - prometheus/client_golang: optional pool metrics
package slab
