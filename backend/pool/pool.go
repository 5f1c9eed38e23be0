// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package pool defines the append-only storage pool trie nodes are written
// to. Storage is organized in fixed-size chunks, addressed by a compact
// 64-bit offset. Chunks belong to one of two tiers: the fast tier receiving
// freshly written nodes and the slow tier holding compacted long-lived data.
package pool

import (
	"errors"
	"fmt"
	"math"

	"github.com/0xsoniclabs/triedb/common"
)

//go:generate mockgen -source pool.go -destination pool_mocks.go -package pool

const (
	// ChunkSize is the fixed capacity of a single storage chunk. Nodes never
	// straddle a chunk boundary.
	ChunkSize = 1 << 28

	// PageSize is the granularity of read I/O within a chunk.
	PageSize = 4096

	offsetBits = 28
	chunkBits  = 20
	spareBits  = 16

	maxChunkID = 1<<chunkBits - 1
)

// ChunkOffset addresses a byte position in the pool: the low 28 bits hold the
// offset within a chunk, the next 20 bits the chunk id. The remaining 16 bits
// are spare and carry caller-defined metadata; the pool itself ignores them.
type ChunkOffset uint64

// InvalidChunkOffset marks an unassigned location. Its spare bits are zero.
const InvalidChunkOffset = ChunkOffset(1<<(offsetBits+chunkBits) - 1)

// NewChunkOffset composes an offset from a chunk id and a position within the
// chunk. Arguments out of range are rejected as a programming error.
func NewChunkOffset(chunk uint32, offset uint32) ChunkOffset {
	if chunk > maxChunkID {
		panic(fmt.Sprintf("chunk id %d exceeds %d bits", chunk, chunkBits))
	}
	if offset >= ChunkSize {
		panic(fmt.Sprintf("chunk-internal offset %d exceeds chunk size", offset))
	}
	return ChunkOffset(chunk)<<offsetBits | ChunkOffset(offset)
}

// Chunk returns the chunk id part of the offset.
func (o ChunkOffset) Chunk() uint32 {
	return uint32(o>>offsetBits) & maxChunkID
}

// Offset returns the byte position within the chunk.
func (o ChunkOffset) Offset() uint32 {
	return uint32(o) & (ChunkSize - 1)
}

// Spare returns the caller-defined metadata bits.
func (o ChunkOffset) Spare() uint16 {
	return uint16(o >> (offsetBits + chunkBits))
}

// WithSpare returns a copy of the offset with the spare bits replaced.
func (o ChunkOffset) WithSpare(spare uint16) ChunkOffset {
	const mask = ChunkOffset(1<<(offsetBits+chunkBits) - 1)
	return o&mask | ChunkOffset(spare)<<(offsetBits+chunkBits)
}

// WithoutSpare returns the offset with cleared spare bits, the canonical form
// used for comparisons and map keys.
func (o ChunkOffset) WithoutSpare() ChunkOffset {
	return o.WithSpare(0)
}

// IsValid reports whether the offset addresses an actual location. The spare
// bits do not participate in the decision.
func (o ChunkOffset) IsValid() bool {
	return o.WithoutSpare() != InvalidChunkOffset
}

func (o ChunkOffset) String() string {
	if !o.IsValid() {
		return "invalid"
	}
	return fmt.Sprintf("%d:%d", o.Chunk(), o.Offset())
}

// VirtualOffset is a position in the global write order of one tier: the
// insertion sequence number of the chunk shifted over the chunk-internal
// offset. Unlike ChunkOffset it is totally ordered by write time, which makes
// it suitable for age comparisons across chunks.
type VirtualOffset uint64

// NewVirtualOffset composes a virtual offset from a chunk sequence number and
// a position within the chunk.
func NewVirtualOffset(sequence uint32, offset uint32) VirtualOffset {
	return VirtualOffset(sequence)<<offsetBits | VirtualOffset(offset)
}

// Compact reduces the virtual offset to its lossy 32-bit form by dropping the
// low 16 bits. The truncation is monotone: ordering of virtual offsets is
// preserved, distinct nearby offsets may collapse to the same compact value.
func (v VirtualOffset) Compact() CompactOffset {
	return CompactOffset(v >> spareBits)
}

// CompactOffset is the lossy 32-bit form of a VirtualOffset, cheap enough to
// keep per child in every node for subtree age aggregation.
type CompactOffset uint32

// InvalidCompactOffset is the fold identity for minimum aggregation.
const InvalidCompactOffset = CompactOffset(math.MaxUint32)

// Tier selects one of the pool's two storage generations.
type Tier byte

const (
	// FastTier holds freshly written nodes.
	FastTier Tier = iota
	// SlowTier holds compacted long-lived nodes.
	SlowTier
)

func (t Tier) String() string {
	switch t {
	case FastTier:
		return "fast"
	case SlowTier:
		return "slow"
	}
	return fmt.Sprintf("tier(%d)", byte(t))
}

// ErrNotFound is returned when a read addresses a location no node was
// written to.
var ErrNotFound = errors.New("no node at the given offset")

// NodePool is an append-only store for serialized trie nodes.
//
// Writes append to the selected tier and return the assigned location with
// zero spare bits. Reads return up to length bytes starting at the given
// location; the result is clamped to the end of the written data, but always
// covers the full record placed at the offset when length does so. Callers
// derive the length from metadata they keep about the node, typically a page
// count encoded in the offset's spare bits.
//
// Implementations must be safe for concurrent use.
type NodePool interface {
	// Write appends data to the given tier and returns its location.
	Write(tier Tier, data []byte) (ChunkOffset, error)

	// Read returns up to length bytes stored at the given offset. The spare
	// bits of the offset are ignored.
	Read(offset ChunkOffset, length int) ([]byte, error)

	// Virtualize translates a physical location into its position in the
	// write order of the tier the chunk belongs to.
	Virtualize(offset ChunkOffset) (VirtualOffset, error)

	common.FlushAndCloser
	common.MemoryFootprintProvider
}
