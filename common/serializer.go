// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package common

import (
	"unsafe"

	"golang.org/x/exp/constraints"
)

// Serializer converts values of one type to and from a fixed-size byte
// representation. Implementations must be stateless.
type Serializer[T any] interface {
	// ToBytes returns a new slice holding the encoded value.
	ToBytes(value T) []byte
	// CopyBytes encodes the value into the provided slice, which must have
	// the serializer's size.
	CopyBytes(value T, out []byte)
	// FromBytes decodes a value from the given slice.
	FromBytes(data []byte) T
	// Size returns the length of the encoding in bytes.
	Size() int
}

// UintSerializer encodes unsigned integers of any width in big-endian byte
// order, so that the byte order of encoded keys follows the numeric order of
// the values.
type UintSerializer[T constraints.Unsigned] struct{}

func (s UintSerializer[T]) ToBytes(value T) []byte {
	res := make([]byte, s.Size())
	s.CopyBytes(value, res)
	return res
}

func (s UintSerializer[T]) CopyBytes(value T, out []byte) {
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = byte(value)
		value >>= 8
	}
}

func (s UintSerializer[T]) FromBytes(data []byte) T {
	var res T
	for _, b := range data {
		res = res<<8 | T(b)
	}
	return res
}

func (s UintSerializer[T]) Size() int {
	var instance T
	return int(unsafe.Sizeof(instance))
}
