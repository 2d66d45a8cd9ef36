// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build windows

package vmem

import (
	"os"

	"golang.org/x/sys/windows"
)

func probePageSize() uintptr { return uintptr(os.Getpagesize()) }

// probeGranularity returns the system allocation granularity, fixed
// at 64 KiB on every shipping Windows.
func probeGranularity() uintptr { return 1 << 16 }

// Reserve obtains one granularity unit of address space without
// attaching physical storage.
func Reserve() (uintptr, error) {
	return windows.VirtualAlloc(0, granularity,
		windows.MEM_RESERVE, windows.PAGE_NOACCESS)
}

// BulkAlloc reserves and commits one granularity unit in one call.
func BulkAlloc() (uintptr, error) {
	return windows.VirtualAlloc(0, granularity,
		windows.MEM_RESERVE|windows.MEM_COMMIT, windows.PAGE_READWRITE)
}

// Commit attaches physical storage to one reserved page.
func Commit(page uintptr) error {
	_, err := windows.VirtualAlloc(page, pageSize,
		windows.MEM_COMMIT, windows.PAGE_READWRITE)
	return err
}

// Decommit detaches the physical storage of one page.
func Decommit(page uintptr) error {
	return windows.VirtualFree(page, pageSize, windows.MEM_DECOMMIT)
}

// Reset marks a committed page's contents disposable without
// decommitting it.
func Reset(page uintptr) error {
	_, err := windows.VirtualAlloc(page, pageSize,
		windows.MEM_RESET, windows.PAGE_READWRITE)
	return err
}

// Release frees one reserved region and everything committed in it.
func Release(region uintptr) error {
	return windows.VirtualFree(region, 0, windows.MEM_RELEASE)
}
