// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package slab

import (
	"unsafe"

	"code.hybscloud.com/slab/internal/vmem"
)

// footSpec describes where a footer lives on a hardware page. The
// footer is aligned right inside the page's writable zone subject to
// its natural alignment; everything below the footer offset is
// payload, everything above belongs to layers closer to the metal.
//
// Footers are read back from arbitrary addresses, so their contents
// are untrusted input: the leading signature gates every access, and
// a mismatch means "not ours", never corruption.
type footSpec struct {
	footerOffset  uintptr
	storageOffset uintptr
	writableZone  uintptr
	footerSize    uintptr
	master        Signature
}

// mkFootSpec computes the footer placement for a footer of the given
// size and alignment inside a writable zone of writableZone bytes.
// storageOffset locates the typed payload within the footer, after
// the signature.
func mkFootSpec(writableZone, footerSize, footerAlign, storageOffset uintptr, master Signature) (footSpec, error) {
	if writableZone == 0 || footerSize == 0 || footerAlign == 0 {
		return footSpec{}, Disallowed
	}
	if writableZone > vmem.PageSize() || footerSize > writableZone {
		return footSpec{}, RangeFail
	}
	return footSpec{
		footerOffset:  (writableZone - footerSize) &^ (footerAlign - 1),
		storageOffset: storageOffset,
		writableZone:  writableZone,
		footerSize:    footerSize,
		master:        master,
	}, nil
}

// place writes the master signature to page's footer and returns the
// address of the footer storage. The page must be committed and
// page-aligned.
func (s *footSpec) place(page uintptr) uintptr {
	f := page + s.footerOffset
	*(*Signature)(unsafe.Pointer(f)) = s.master
	return f + s.storageOffset
}

// storage returns the footer storage address for the page containing
// ptr, or NotFound when the page's footer signature does not match
// the master signature.
func (s *footSpec) storage(ptr uintptr) (uintptr, error) {
	f := vmem.PageBase(ptr) + s.footerOffset
	if *(*Signature)(unsafe.Pointer(f)) != s.master {
		return 0, NotFound
	}
	return f + s.storageOffset, nil
}
