// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build slabcompact

package slab

import "math"

// slotIndex is the free-stack index type under the compact build:
// 16-bit indices shrink per-slot bookkeeping at the cost of node
// capacity.
type slotIndex = int16

// slotCount counts live slots in a node.
type slotCount = uint16

const (
	// nilIndex terminates the intrusive free stack.
	nilIndex slotIndex = -1

	// maxSlotCapacity is the largest node capacity the index type
	// can address.
	maxSlotCapacity = math.MaxInt16
)
