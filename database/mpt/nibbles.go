// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package mpt

import (
	"fmt"
	"strings"
)

// Nibble is a 4-bit digit, the branching unit of trie paths.
type Nibble byte

func (n Nibble) String() string {
	if n < 10 {
		return string(rune('0' + n))
	}
	if n < 16 {
		return string(rune('a' + n - 10))
	}
	return "?"
}

// NibblesView is an immutable view on a sequence of nibbles packed two per
// byte, high nibble first. A view stays byte-aligned to its backing data: its
// first nibble lives in the first byte, selected by a begin parity of 0 (high
// half) or 1 (low half). Sub-views re-slice the backing bytes accordingly, so
// a view's data is always exactly the bytes it covers.
type NibblesView struct {
	data  []byte
	begin uint8
	size  int
}

// NibblesFromBytes creates a view covering all nibbles of the given bytes.
// The bytes are not copied; the caller must not modify them while the view or
// any derived sub-view is in use.
func NibblesFromBytes(data []byte) NibblesView {
	return NibblesView{data: data, size: 2 * len(data)}
}

// nibblesView rebuilds a view over packed bytes with an explicit begin parity
// and nibble count, as stored in node records.
func nibblesView(data []byte, begin uint8, size int) NibblesView {
	if begin > 1 {
		panic(fmt.Sprintf("invalid begin parity %d", begin))
	}
	return NibblesView{data: data, begin: begin, size: size}
}

// Length returns the number of nibbles in the view.
func (v NibblesView) Length() int {
	return v.size
}

// Empty reports whether the view contains no nibbles.
func (v NibblesView) Empty() bool {
	return v.size == 0
}

// Get returns the i-th nibble of the view.
func (v NibblesView) Get(i int) Nibble {
	if i < 0 || i >= v.size {
		panic(fmt.Sprintf("nibble index %d out of range [0,%d)", i, v.size))
	}
	pos := int(v.begin) + i
	b := v.data[pos/2]
	if pos%2 == 0 {
		return Nibble(b >> 4)
	}
	return Nibble(b & 0xf)
}

// Range returns the sub-view covering nibbles [from, to).
func (v NibblesView) Range(from, to int) NibblesView {
	if from < 0 || to < from || to > v.size {
		panic(fmt.Sprintf("nibble range [%d,%d) out of range [0,%d)", from, to, v.size))
	}
	if from == to {
		return NibblesView{}
	}
	begin := int(v.begin) + from
	end := int(v.begin) + to
	return NibblesView{
		data:  v.data[begin/2 : (end-1)/2+1],
		begin: uint8(begin % 2),
		size:  to - from,
	}
}

// Suffix returns the sub-view starting at the given nibble.
func (v NibblesView) Suffix(from int) NibblesView {
	return v.Range(from, v.size)
}

// CommonPrefixLength returns the number of leading nibbles shared with the
// other view.
func (v NibblesView) CommonPrefixLength(other NibblesView) int {
	limit := v.size
	if other.size < limit {
		limit = other.size
	}
	for i := 0; i < limit; i++ {
		if v.Get(i) != other.Get(i) {
			return i
		}
	}
	return limit
}

// Equal reports whether both views contain the same nibble sequence. Views of
// different begin parity may still be equal.
func (v NibblesView) Equal(other NibblesView) bool {
	return v.size == other.size && v.CommonPrefixLength(other) == v.size
}

// beginParity returns 0 or 1 depending on which half of its first byte the
// view starts in.
func (v NibblesView) beginParity() uint8 {
	return v.begin
}

// bytes returns the packed bytes covered by the view. The first and last byte
// may contain halves outside the view.
func (v NibblesView) bytes() []byte {
	return v.data
}

func (v NibblesView) String() string {
	var builder strings.Builder
	for i := 0; i < v.size; i++ {
		builder.WriteString(v.Get(i).String())
	}
	return builder.String()
}
