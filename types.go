// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package slab

// Signature is a 4-byte tag used as a cheap, probabilistic ownership
// check. A footer whose signature does not match the reader's master
// signature is treated as foreign memory, never as corruption.
type Signature uint32

// MakeSignature packs the first four bytes of s into a Signature.
// Shorter strings pad with zero bytes.
func MakeSignature(s string) Signature {
	var b [4]byte
	copy(b[:], s)
	return Signature(b[0]) | Signature(b[1])<<8 | Signature(b[2])<<16 | Signature(b[3])<<24
}

// String returns the four characters of the signature.
func (s Signature) String() string {
	return string([]byte{byte(s), byte(s >> 8), byte(s >> 16), byte(s >> 24)})
}

// The signatures written into page footers and bookkeeping records.
// Changing one deliberately breaks compatibility between pools
// compiled against different values.
var (
	sigPage    = MakeSignature("PAGE")
	sigAligned = MakeSignature("ALIG")
	sigMux     = MakeSignature("MUXP")
	sigSlot    = MakeSignature("SLOT")
)

// Tag is a 2-word value an embedding pool stores into each of its
// aligned pools. By convention the first word carries a signature and
// the second a back-pointer to the embedding pool.
type Tag [2]uintptr

// noCopy is a sentinel used to prevent copying of pool types.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
