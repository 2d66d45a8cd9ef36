// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package slab

import (
	"sync"
	"unsafe"

	"code.hybscloud.com/slab/internal/vmem"
)

// regionMaxPages bounds the pages one reserved region may hold; the
// free-index stack uses byte-sized entries.
const regionMaxPages = 256

// pageNode is one page region: a reserved address range of exactly
// one VM granularity unit, partitioned into hardware pages, with a
// free-index stack and a commit bitset. The node itself lives inside
// a pageRecord slot minted by the pool's record slot pool.
type pageNode struct {
	vst       vecState
	pool      *PagePool
	rec       *pageRecord
	region    uintptr
	freestkSz uint16
	freestk   [regionMaxPages]uint8
	commit    [regionMaxPages / 64]uint64
}

func (n *pageNode) vecState() *vecState { return &n.vst }

func (n *pageNode) full() bool  { return n.freestkSz == 0 }
func (n *pageNode) empty() bool { return int(n.freestkSz) == pageGlobals.nodeCap }

func (n *pageNode) committed(idx uint8) bool {
	return n.commit[idx/64]&(1<<(idx%64)) != 0
}

func (n *pageNode) setCommit(idx uint8)   { n.commit[idx/64] |= 1 << (idx % 64) }
func (n *pageNode) clearCommit(idx uint8) { n.commit[idx/64] &^= 1 << (idx % 64) }

// indexOf converts a page base address into its index within the
// region.
func (n *pageNode) indexOf(page uintptr) (uint8, error) {
	if page < n.region {
		return 0, RangeFail
	}
	idx := (page - n.region) / vmem.PageSize()
	if idx >= uintptr(pageGlobals.nodeCap) {
		return 0, RangeFail
	}
	return uint8(idx), nil
}

// pageRecord is the bookkeeping slot a pageNode lives in. The
// signature and the back-pointer to the owning record node let the
// pool audit and release the record when its region is destroyed.
type pageRecord struct {
	sig   Signature
	snode *SlotNode
	node  pageNode
}

// pageFooter is the footer written to every handed-out page.
type pageFooter struct {
	sig  Signature
	node *pageNode
}

// pageGlobals holds the derived constants every page pool shares:
// the footer placement, the number of pages per region, and the
// usable bytes per page.
var pageGlobals struct {
	once    sync.Once
	err     error
	spec    footSpec
	nodeCap int
	// granularity is the writable prefix of each page, everything
	// below the page footer.
	granularity uintptr
}

func pageInitialize() error {
	pageGlobals.once.Do(func() {
		var f pageFooter
		spec, err := mkFootSpec(vmem.PageSize(), unsafe.Sizeof(f),
			unsafe.Alignof(f), unsafe.Offsetof(f.node), sigPage)
		if err != nil {
			pageGlobals.err = err
			return
		}
		nodeCap := vmem.PagesPerRegion()
		if nodeCap < 1 || nodeCap > regionMaxPages {
			pageGlobals.err = Unsupported
			return
		}
		pageGlobals.spec = spec
		pageGlobals.nodeCap = nodeCap
		pageGlobals.granularity = spec.footerOffset
	})
	return pageGlobals.err
}

// PageGranularity returns the number of usable bytes on each page a
// page pool hands out: the page size minus the footer reservation.
func PageGranularity() (uintptr, error) {
	if err := pageInitialize(); err != nil {
		return 0, err
	}
	return pageGlobals.granularity, nil
}

// PagePool hands out individual hardware pages carved from reserved
// regions. Each page carries a footer identifying its region node,
// so release needs nothing but the page address. Region bookkeeping
// lives in a dedicated record slot pool whose storage comes straight
// from the OS bulk allocator, which keeps the pool self-hosting.
//
// A PagePool is not safe for concurrent use.
type PagePool struct {
	_ noCopy

	vec      vectorPool[*pageNode]
	records  SlotPool
	appetite Appetite
	recSig   Signature
}

// NewPagePool returns a page pool with the given appetite.
func NewPagePool(appetite Appetite) (*PagePool, error) {
	p := new(PagePool)
	if err := p.init(appetite); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *PagePool) init(appetite Appetite) error {
	if err := pageInitialize(); err != nil {
		return err
	}
	if err := p.vec.init(pageGlobals.nodeCap, p.newRegion); err != nil {
		return err
	}
	recSize := unsafe.Sizeof(pageRecord{})
	recCap := int(vmem.Granularity() / recSize)
	if err := p.records.init(recSize, recCap, p.recMknode, p.recRmnode, p.recInitslot); err != nil {
		return err
	}
	p.appetite = appetite
	p.recSig = sigSlot
	return nil
}

// Appetite returns the pool's page-return policy.
func (p *PagePool) Appetite() Appetite { return p.appetite }

// Acquire commits one hardware page and returns its base address.
func (p *PagePool) Acquire() (unsafe.Pointer, error) {
	node, err := p.vec.getnode()
	if err != nil {
		return nil, err
	}
	if node.full() {
		return nil, Corrupt
	}
	idx := node.freestk[node.freestkSz-1]
	page := node.region + uintptr(idx)*vmem.PageSize()
	if err := vmem.Commit(page); err != nil {
		return nil, ResourceFail
	}
	node.setCommit(idx)
	node.freestkSz--
	storage := pageGlobals.spec.place(page)
	*(**pageNode)(unsafe.Pointer(storage)) = node
	p.vec.acquire(node, node.full())
	if ZeroMem {
		memset(page, 0, pageGlobals.granularity)
	}
	return unsafe.Pointer(page), nil
}

// Release returns a page to its region. Frugal pools decommit the
// page; greedy pools keep it committed and advise the kernel its
// contents are disposable. A region whose pages are all free is
// destroyed.
func (p *PagePool) Release(ptr unsafe.Pointer) error {
	if ptr == nil {
		return Disallowed
	}
	page := uintptr(ptr)
	if page != vmem.PageBase(page) {
		return Disallowed
	}
	storage, err := pageGlobals.spec.storage(page)
	if err != nil {
		return err
	}
	node := *(**pageNode)(unsafe.Pointer(storage))
	if node == nil || node.pool != p {
		return NotFound
	}
	idx, err := node.indexOf(page)
	if err != nil {
		return err
	}
	if !node.committed(idx) {
		return Corrupt
	}
	if p.appetite == Frugal {
		if err := vmem.Decommit(page); err != nil {
			return ResourceFail
		}
	} else {
		if err := vmem.Reset(page); err != nil {
			return ResourceFail
		}
		if MarkFreed != 0 {
			memset(page, MarkFreed, pageGlobals.granularity)
		}
	}
	node.clearCommit(idx)
	if int(node.freestkSz) >= pageGlobals.nodeCap {
		return Corrupt
	}
	node.freestk[node.freestkSz] = idx
	node.freestkSz++
	wasFull := node.freestkSz == 1
	emptyNow := node.empty()
	p.vec.release(node, wasFull, emptyNow)
	if emptyNow {
		return p.destroyRegion(node)
	}
	return nil
}

// Check audits the record pool, the region rings, and every region's
// free stack and commit bitset.
func (p *PagePool) Check() error {
	if err := p.records.Check(); err != nil {
		return err
	}
	return p.vec.check(p.checkRegion)
}

func (p *PagePool) checkRegion(node *pageNode) error {
	if node.empty() {
		return Corrupt
	}
	if node.region != vmem.PageBase(node.region) {
		return Corrupt
	}
	if int(node.freestkSz) > pageGlobals.nodeCap {
		return Corrupt
	}
	for i := 0; i < int(node.freestkSz); i++ {
		idx := node.freestk[i]
		if int(idx) >= pageGlobals.nodeCap {
			return Corrupt
		}
		if node.committed(idx) {
			return Corrupt
		}
	}
	return nil
}

// newRegion reserves a fresh address range and wraps it in a record
// from the record pool.
func (p *PagePool) newRegion() (*pageNode, error) {
	ptr, err := p.records.Acquire()
	if err != nil {
		return nil, err
	}
	rec := (*pageRecord)(unsafe.Pointer(ptr))
	node := &rec.node
	region, err := vmem.Reserve()
	if err != nil {
		_ = p.records.Release(ptr, rec.snode)
		return nil, ResourceFail
	}
	node.pool = p
	node.rec = rec
	node.region = region
	node.commit = [regionMaxPages / 64]uint64{}
	for i := 0; i < pageGlobals.nodeCap; i++ {
		node.freestk[i] = uint8(i)
	}
	node.freestkSz = uint16(pageGlobals.nodeCap)
	return node, nil
}

// destroyRegion unmaps a region whose pages are all free and returns
// its record to the record pool.
func (p *PagePool) destroyRegion(node *pageNode) error {
	rec := node.rec
	if rec == nil || rec.sig != p.recSig {
		return Corrupt
	}
	if err := vmem.Release(node.region); err != nil {
		return ResourceFail
	}
	return p.records.Release(unsafe.Pointer(rec), rec.snode)
}

// recMknode backs the record pool with one bulk-allocated region, so
// region bookkeeping never recurses into the page machinery.
func (p *PagePool) recMknode(*SlotPool) (*SlotNode, uintptr, error) {
	base, err := vmem.BulkAlloc()
	if err != nil {
		return nil, 0, ResourceFail
	}
	return new(SlotNode), base, nil
}

func (p *PagePool) recRmnode(node *SlotNode) error {
	if err := vmem.Release(node.Base()); err != nil {
		return ResourceFail
	}
	return nil
}

// recInitslot stamps each record with the pool's record signature
// and its owning node before it is handed out.
func (p *PagePool) recInitslot(addr uintptr, node *SlotNode) error {
	rec := (*pageRecord)(unsafe.Pointer(addr))
	rec.sig = p.recSig
	rec.snode = node
	return nil
}
