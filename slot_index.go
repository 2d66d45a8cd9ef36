// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !slabcompact

package slab

import "math"

// slotIndex is the free-stack index type. The default build uses
// 32-bit indices; the slabcompact build tag halves them for workloads
// that want denser bookkeeping in exchange for smaller node capacity.
type slotIndex = int32

// slotCount counts live slots in a node.
type slotCount = uint32

const (
	// nilIndex terminates the intrusive free stack.
	nilIndex slotIndex = -1

	// maxSlotCapacity is the largest node capacity the index type
	// can address.
	maxSlotCapacity = math.MaxInt32
)
