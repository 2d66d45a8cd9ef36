// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build unix

package vmem

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

func probePageSize() uintptr { return uintptr(os.Getpagesize()) }

// POSIX has no allocation granularity of its own; sixteen pages per
// region matches the Windows granularity on 4 KiB page systems and
// keeps region bookkeeping compact everywhere else.
func probeGranularity() uintptr { return probePageSize() * 16 }

// Reserve obtains one granularity unit of address space with no
// access rights. The kernel commits lazily, so reservation and
// commitment are distinct only in the page protections.
func Reserve() (uintptr, error) {
	p, err := unix.MmapPtr(-1, 0, nil, granularity,
		unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return 0, err
	}
	return uintptr(p), nil
}

// BulkAlloc obtains one granularity unit of readable, writable
// memory in a single call.
func BulkAlloc() (uintptr, error) {
	p, err := unix.MmapPtr(-1, 0, nil, granularity,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return 0, err
	}
	return uintptr(p), nil
}

// Commit makes one reserved page readable and writable.
func Commit(page uintptr) error {
	return unix.Mprotect(pageSlice(page), unix.PROT_READ|unix.PROT_WRITE)
}

// Decommit discards a page's contents and revokes access, returning
// the physical memory to the kernel.
func Decommit(page uintptr) error {
	if err := unix.Madvise(pageSlice(page), unix.MADV_DONTNEED); err != nil {
		return err
	}
	return unix.Mprotect(pageSlice(page), unix.PROT_NONE)
}

// Reset tells the kernel the page's contents are disposable while
// keeping the mapping writable for cheap reuse.
func Reset(page uintptr) error {
	return unix.Madvise(pageSlice(page), unix.MADV_DONTNEED)
}

// Release unmaps one granularity unit previously obtained from
// Reserve or BulkAlloc.
func Release(region uintptr) error {
	return unix.MunmapPtr(unsafe.Pointer(region), granularity)
}

func pageSlice(page uintptr) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(page)), pageSize)
}
