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
	"math/bits"
)

// DiskPages is a compact encoding of the number of disk pages a serialized
// node spans, small enough to travel in the 15 usable spare bits of the
// node's storage offset. It holds a 10-bit count and a 5-bit shift and
// decodes as count << shift. Counts up to 1023 pages are represented exactly,
// larger counts round up to the next representable value, so a read sized by
// the decoded count always covers the node. Bit 15 is unused and kept zero.
type DiskPages uint16

const (
	diskPagesCountBits = 10
	maxDiskPagesCount  = 1<<diskPagesCountBits - 1
	maxDiskPagesShift  = 31
)

// EncodeDiskPages encodes the given page count into its compact form. Zero
// encodes to zero.
func EncodeDiskPages(pages uint32) DiskPages {
	exp := pages >> diskPagesCountBits
	shift := uint32(bits.Len32(exp))
	count := pages >> shift
	if pages&((1<<shift)-1) != 0 {
		count++
	}
	if count > maxDiskPagesCount {
		// Only an exact 1024 can get here, halving loses no precision.
		count >>= 1
		shift++
	}
	if count > maxDiskPagesCount || shift > maxDiskPagesShift {
		panic(fmt.Sprintf("page count %d exceeds the representable range", pages))
	}
	res := DiskPages(count | shift<<diskPagesCountBits)
	if res.Pages() < pages {
		panic(fmt.Sprintf("page count %d encoded to smaller %d", pages, res.Pages()))
	}
	return res
}

// DiskPagesFromSpare reinterprets the spare bits of a storage offset as a
// page count. Bit 15 is ignored.
func DiskPagesFromSpare(spare uint16) DiskPages {
	return DiskPages(spare & 0x7fff)
}

// Pages returns the decoded page count, at least as large as the count that
// was encoded.
func (d DiskPages) Pages() uint32 {
	return d.count() << d.shift()
}

// Spare returns the representation to be stored in an offset's spare bits.
func (d DiskPages) Spare() uint16 {
	return uint16(d)
}

func (d DiskPages) count() uint32 {
	return uint32(d) & maxDiskPagesCount
}

func (d DiskPages) shift() uint32 {
	return uint32(d) >> diskPagesCountBits
}
