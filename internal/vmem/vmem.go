// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package vmem wraps the platform's virtual-memory primitives behind
// a uniform interface: address space is reserved in granularity-sized
// regions, individual hardware pages inside a region are committed,
// decommitted, or reset, and whole regions are released back to the
// operating system.
package vmem

var (
	pageSize    = probePageSize()
	granularity = probeGranularity()
)

// PageSize returns the hardware page size.
func PageSize() uintptr { return pageSize }

// Granularity returns the coarse mapping unit: the size of every
// reserved region. It is always a positive multiple of PageSize.
func Granularity() uintptr { return granularity }

// PagesPerRegion returns how many hardware pages one region holds.
func PagesPerRegion() int { return int(granularity / pageSize) }

// PageBase masks addr down to the base of its hardware page.
func PageBase(addr uintptr) uintptr { return addr &^ (pageSize - 1) }
