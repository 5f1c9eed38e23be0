// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package commit

import (
	"github.com/crate-crypto/go-ipa/banderwagon"
)

// Value is one element of the vector a commitment is made to, stored as a
// scalar of the Banderwagon curve field. The field holds roughly 253 bits,
// so any 31-byte quantity is representable exactly while 32-byte inputs are
// reduced into the field.
type Value struct {
	scalar banderwagon.Fr
}

// NewValue creates a value from a uint64. Every 64-bit quantity is a valid
// value.
func NewValue(value uint64) Value {
	var scalar banderwagon.Fr
	scalar.SetUint64(value)
	return Value{scalar: scalar}
}

// NewValueFromLittleEndianBytes creates a value from up to 32 little-endian
// bytes. Shorter inputs are zero-extended, longer inputs are truncated to 32
// bytes before the field reduction.
func NewValueFromLittleEndianBytes(data []byte) Value {
	var padded [32]byte
	copy(padded[:], data)
	var scalar banderwagon.Fr
	scalar.SetBytesLE(padded[:])
	return Value{scalar: scalar}
}

// SetMarker sets a dedicated high bit of the value. Vector slots fed from
// optional inputs use it to keep a present-but-zero input distinct from an
// absent one.
func (v *Value) SetMarker() {
	bytes := v.scalar.Bytes()
	bytes[15] = bytes[15] | 0x01
	v.scalar.SetBytes(bytes[:])
}

// Equal reports whether both values represent the same field element.
func (v Value) Equal(other Value) bool {
	return v.scalar.Equal(&other.scalar)
}
