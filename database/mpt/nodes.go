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
	"encoding/binary"
	"fmt"
	"math/bits"

	"github.com/0xsoniclabs/triedb/backend/pool"
)

const (
	// MaxChildren is the branching factor of the trie.
	MaxChildren = 16

	// MaxDataLen bounds the cached data of a node; the length travels in a
	// 6-bit field.
	MaxDataLen = 63

	// MaxDiskSize bounds the serialized form of a single node. It equals the
	// chunk size of the storage pool, nodes never span chunks.
	MaxDiskSize = pool.ChunkSize

	// DiskSizeBytes is the length of the size prefix leading every
	// serialized node.
	DiskSizeBytes = 4

	// MinDiskSize is the smallest well-formed serialized node, a size
	// prefix followed by a bare header.
	MinDiskSize = DiskSizeBytes + nodeHeaderSize

	nodeHeaderSize = 16

	perChildDiskSize = 26
	perChildMemSize  = perChildDiskSize + 8
)

// MaxValueLen is the largest value a node can carry, leaving headroom for a
// full-length keccak path and a 32-byte cached hash within MaxDiskSize.
const MaxValueLen = MaxDiskSize - nodeHeaderSize - 32 - 32

// NodeBase is the variant-independent core of a trie node: one contiguous,
// immutable record holding the node's header, its per-child attributes, its
// path, its value, and cached authentication data. The record is stored in
// exactly the byte layout it is persisted in, so accessors decode fields in
// place and serialization is a plain copy.
//
// Layout of the record, all fixed-width fields little-endian, n the number of
// children (the popcount of the mask):
//
//	[0:2]    mask, bit b set when a child exists at branch nibble b
//	[2]      packed: bit 0 value presence, bit 1 path begin parity,
//	         bits 2-7 length of the node's own cached data
//	[3]      path end nibble index
//	[4:8]    value length
//	[8:16]   node version
//	16+2i    per-child exclusive end offsets of the cached data blob (uint16)
//	16+2n+4i per-child minimum compact offset, fast tier (uint32)
//	16+6n+4i per-child minimum compact offset, slow tier (uint32)
//	16+10n+8i per-child minimum version in the child's subtree (int64)
//	16+18n+8i per-child physical storage offset (uint64)
//	16+26n   path bytes, nibbles packed two per byte, high first
//	...      value bytes
//	...      own cached data bytes
//	...      concatenated per-child cached data blob
//
// Every boundary is a closed-form function of the counts in the header, no
// field is located by scanning. Child attributes are indexed densely in
// ascending branch order; ToChildIndex maps branch nibbles to dense indices.
//
// Records are created through the factory functions, the deserializers or
// copies; a zero NodeBase is not a usable node.
type NodeBase struct {
	data []byte
}

// Node is the owning variant: children referenced through next are owned by
// this node exclusively and are released with it. Ownership of a child can be
// taken or handed over at most once per slot.
type Node struct {
	NodeBase
	next []*Node
}

// CacheNode is the cache-shared variant: children referenced through next are
// owned by the node cache, parents only borrow the pointers. CacheNodes are
// never mixed with owning nodes in one tree.
type CacheNode struct {
	NodeBase
	next []*CacheNode
}

// CalculateNodeSize returns the in-memory size of a node record with the
// given number of children and blob lengths, including the per-child pointer
// slots of the resident form.
func CalculateNodeSize(children, childData, value, path, data int) int {
	return nodeHeaderSize + perChildMemSize*children + childData + value + path + data
}

// ---- Header access ----

// Mask returns the child bitmask of the node.
func (b *NodeBase) Mask() uint16 {
	return binary.LittleEndian.Uint16(b.data)
}

// NumChildren returns the number of children of the node.
func (b *NodeBase) NumChildren() int {
	return bits.OnesCount16(b.Mask())
}

// HasChild reports whether a child exists at the given branch nibble.
func (b *NodeBase) HasChild(branch Nibble) bool {
	return b.Mask()&(1<<branch) != 0
}

// ToChildIndex maps a branch nibble to the dense index of its child. The
// child must exist.
func (b *NodeBase) ToChildIndex(branch Nibble) int {
	mask := b.Mask()
	if mask&(1<<branch) == 0 {
		panic(fmt.Sprintf("no child at branch %v", branch))
	}
	return bits.OnesCount16(mask & (1<<branch - 1))
}

// HasValue reports whether the node carries a value. A present value may
// still be empty.
func (b *NodeBase) HasValue() bool {
	return b.data[2]&1 != 0
}

func (b *NodeBase) pathBeginParity() uint8 {
	return b.data[2] >> 1 & 1
}

func (b *NodeBase) dataLen() int {
	return int(b.data[2] >> 2)
}

func (b *NodeBase) pathEnd() int {
	return int(b.data[3])
}

func (b *NodeBase) valueLen() int {
	return int(binary.LittleEndian.Uint32(b.data[4:8]))
}

// Version returns the version the node was created for.
func (b *NodeBase) Version() int64 {
	return int64(binary.LittleEndian.Uint64(b.data[8:16]))
}

// ---- Per-child attributes ----

func childDataEndsStart(n int) int     { return nodeHeaderSize }
func minOffsetFastStart(n int) int     { return nodeHeaderSize + 2*n }
func minOffsetSlowStart(n int) int     { return nodeHeaderSize + 6*n }
func subtrieMinVersionStart(n int) int { return nodeHeaderSize + 10*n }
func childOffsetsStart(n int) int      { return nodeHeaderSize + 18*n }
func pathStart(n int) int              { return nodeHeaderSize + 26*n }

func (b *NodeBase) checkChildIndex(i, n int) {
	if i < 0 || i >= n {
		panic(fmt.Sprintf("child index %d out of range [0,%d)", i, n))
	}
}

// ChildOffset returns the physical storage offset of the i-th child, or an
// invalid offset when the child has not been written yet.
func (b *NodeBase) ChildOffset(i int) pool.ChunkOffset {
	n := b.NumChildren()
	b.checkChildIndex(i, n)
	off := childOffsetsStart(n) + 8*i
	return pool.ChunkOffset(binary.LittleEndian.Uint64(b.data[off:]))
}

// SetChildOffset records the physical storage offset of the i-th child,
// including any metadata in its spare bits.
func (b *NodeBase) SetChildOffset(i int, offset pool.ChunkOffset) {
	n := b.NumChildren()
	b.checkChildIndex(i, n)
	off := childOffsetsStart(n) + 8*i
	binary.LittleEndian.PutUint64(b.data[off:], uint64(offset))
}

// MinOffsetFast returns the smallest compact fast-tier offset in the i-th
// child's subtree.
func (b *NodeBase) MinOffsetFast(i int) pool.CompactOffset {
	n := b.NumChildren()
	b.checkChildIndex(i, n)
	off := minOffsetFastStart(n) + 4*i
	return pool.CompactOffset(binary.LittleEndian.Uint32(b.data[off:]))
}

// SetMinOffsetFast updates the fast-tier minimum of the i-th child.
func (b *NodeBase) SetMinOffsetFast(i int, offset pool.CompactOffset) {
	n := b.NumChildren()
	b.checkChildIndex(i, n)
	off := minOffsetFastStart(n) + 4*i
	binary.LittleEndian.PutUint32(b.data[off:], uint32(offset))
}

// MinOffsetSlow returns the smallest compact slow-tier offset in the i-th
// child's subtree.
func (b *NodeBase) MinOffsetSlow(i int) pool.CompactOffset {
	n := b.NumChildren()
	b.checkChildIndex(i, n)
	off := minOffsetSlowStart(n) + 4*i
	return pool.CompactOffset(binary.LittleEndian.Uint32(b.data[off:]))
}

// SetMinOffsetSlow updates the slow-tier minimum of the i-th child.
func (b *NodeBase) SetMinOffsetSlow(i int, offset pool.CompactOffset) {
	n := b.NumChildren()
	b.checkChildIndex(i, n)
	off := minOffsetSlowStart(n) + 4*i
	binary.LittleEndian.PutUint32(b.data[off:], uint32(offset))
}

// SubtrieMinVersion returns the smallest version present in the i-th child's
// subtree.
func (b *NodeBase) SubtrieMinVersion(i int) int64 {
	n := b.NumChildren()
	b.checkChildIndex(i, n)
	off := subtrieMinVersionStart(n) + 8*i
	return int64(binary.LittleEndian.Uint64(b.data[off:]))
}

// SetSubtrieMinVersion updates the version minimum of the i-th child.
func (b *NodeBase) SetSubtrieMinVersion(i int, version int64) {
	n := b.NumChildren()
	b.checkChildIndex(i, n)
	off := subtrieMinVersionStart(n) + 8*i
	binary.LittleEndian.PutUint64(b.data[off:], uint64(version))
}

// CalcMinVersion returns the smallest version in the subtree rooted in this
// node, folding the node's own version with all per-child minima.
func (b *NodeBase) CalcMinVersion() int64 {
	res := b.Version()
	for i, n := 0, b.NumChildren(); i < n; i++ {
		if v := b.SubtrieMinVersion(i); v < res {
			res = v
		}
	}
	return res
}

// ---- Cached data ----

func (b *NodeBase) childDataEnd(i int) int {
	if i < 0 {
		return 0
	}
	off := childDataEndsStart(b.NumChildren()) + 2*i
	return int(binary.LittleEndian.Uint16(b.data[off:]))
}

// ChildDataLen returns the length of the cached data of the i-th child.
func (b *NodeBase) ChildDataLen(i int) int {
	n := b.NumChildren()
	b.checkChildIndex(i, n)
	return b.childDataEnd(i) - b.childDataEnd(i-1)
}

// ChildDataTotal returns the combined length of all child cached data.
func (b *NodeBase) ChildDataTotal() int {
	return b.childDataEnd(b.NumChildren() - 1)
}

// ChildData returns a read-only view of the cached data of the i-th child.
func (b *NodeBase) ChildData(i int) []byte {
	n := b.NumChildren()
	b.checkChildIndex(i, n)
	start := b.childDataStart() + b.childDataEnd(i-1)
	end := b.childDataStart() + b.childDataEnd(i)
	return b.data[start:end:end]
}

// SetChildData overwrites the cached data of the i-th child. The new data
// must have the length the slot was created with.
func (b *NodeBase) SetChildData(i int, data []byte) {
	if got, want := len(data), b.ChildDataLen(i); got != want {
		panic(fmt.Sprintf("child data of length %d does not fit slot of length %d", got, want))
	}
	start := b.childDataStart() + b.childDataEnd(i-1)
	copy(b.data[start:], data)
}

func (b *NodeBase) childDataStart() int {
	return b.dataStart() + b.dataLen()
}

func (b *NodeBase) dataStart() int {
	return b.valueStart() + b.valueLen()
}

func (b *NodeBase) valueStart() int {
	return pathStart(b.NumChildren()) + b.pathBytes()
}

// Data returns a read-only view of the node's own cached data, empty when the
// node caches none.
func (b *NodeBase) Data() []byte {
	start := b.dataStart()
	end := start + b.dataLen()
	return b.data[start:end:end]
}

// ---- Path and value ----

func (b *NodeBase) pathBytes() int {
	begin := int(b.pathBeginParity())
	end := b.pathEnd()
	if end <= begin {
		return 0
	}
	return (end-1)/2 - begin/2 + 1
}

// HasPath reports whether the node carries a non-empty path.
func (b *NodeBase) HasPath() bool {
	return b.PathLength() > 0
}

// PathLength returns the number of nibbles in the node's path.
func (b *NodeBase) PathLength() int {
	return b.pathEnd() - int(b.pathBeginParity())
}

// Path returns a view of the node's path. The view shares the node's record.
func (b *NodeBase) Path() NibblesView {
	start := pathStart(b.NumChildren())
	return nibblesView(b.data[start:start+b.pathBytes()], b.pathBeginParity(), b.PathLength())
}

// Value returns the node's value, nil when the node has none. A present but
// empty value yields a non-nil empty slice.
func (b *NodeBase) Value() []byte {
	if !b.HasValue() {
		return nil
	}
	start := b.valueStart()
	end := start + b.valueLen()
	return b.data[start:end:end]
}

// ---- Sizes ----

// GetMemSize returns the in-memory size of the node record including the
// per-child pointer slots, evaluated from the record's own counts.
func (b *NodeBase) GetMemSize() int {
	return CalculateNodeSize(
		b.NumChildren(), b.ChildDataTotal(), b.valueLen(), b.pathBytes(), b.dataLen())
}

// GetDiskSize returns the serialized size of the node including its 4-byte
// size prefix. The pointer slots are not persisted.
func (b *NodeBase) GetDiskSize() uint32 {
	return uint32(b.GetMemSize() - 8*b.NumChildren() + DiskSizeBytes)
}

// ---- Resident children ----

// Child returns the resident i-th child, or nil when it is not resident.
func (n *Node) Child(i int) *Node {
	return n.next[i]
}

// SetChild hands ownership of the given child to the node.
func (n *Node) SetChild(i int, child *Node) {
	n.next[i] = child
}

// TakeChild removes the resident i-th child from the node and transfers its
// ownership to the caller.
func (n *Node) TakeChild(i int) *Node {
	child := n.next[i]
	n.next[i] = nil
	return child
}

// Release frees the node and every resident node in its subtree. The node
// and all released descendants must not be used afterwards.
func (n *Node) Release() {
	for i, child := range n.next {
		if child != nil {
			child.Release()
			n.next[i] = nil
		}
	}
	n.next = nil
	n.data = nil
}

// Child returns the i-th child if resident, nil otherwise. The returned node
// is owned by the cache.
func (n *CacheNode) Child(i int) *CacheNode {
	return n.next[i]
}

// SetChild records a cache-owned child for later traversals.
func (n *CacheNode) SetChild(i int, child *CacheNode) {
	n.next[i] = child
}

// ---- Iteration ----

// ChildIterator enumerates the children present in a 16-bit mask in
// ascending branch order, yielding for each the dense child index and the
// branch nibble. Iterators are value types; restarting means creating a
// fresh one.
type ChildIterator struct {
	mask  uint16
	index int
}

// NewChildIterator creates an iterator over the children of the given mask.
func NewChildIterator(mask uint16) ChildIterator {
	return ChildIterator{mask: mask}
}

// Next returns the dense index and branch nibble of the next child, or
// ok == false when the mask is exhausted.
func (it *ChildIterator) Next() (index int, branch Nibble, ok bool) {
	if it.mask == 0 {
		return 0, 0, false
	}
	branch = Nibble(bits.TrailingZeros16(it.mask))
	index = it.index
	it.mask &= it.mask - 1
	it.index++
	return index, branch, true
}
