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
	"math"

	"github.com/0xsoniclabs/triedb/backend/pool"
)

// InvalidBranch marks a child descriptor as unused.
const InvalidBranch = Nibble(0xff)

// unversioned is the identity of version minimum aggregation, larger than
// any version a node can carry.
const unversioned = int64(math.MaxInt64)

// maxChildDataLen bounds the cached data a child contributes to its parent.
const maxChildDataLen = 32

// ChildData is the transient, by-value descriptor of one child assembled
// during a copy-on-write update. An update pass fills up to 16 descriptors,
// either by adopting surviving children of the replaced node or by finalizing
// freshly built ones, and the factory turns them into the new parent record.
//
// The zero value is not usable, descriptors start from NewChildData.
type ChildData struct {
	// Node is the in-memory child owned by the descriptor until it is
	// transferred into the created parent. The transfer happens at most once.
	Node *Node

	// Offset is the child's physical storage offset. It stays invalid for
	// freshly built children until a flush assigns their location.
	Offset pool.ChunkOffset

	// MinVersion is the smallest version in the child's subtree.
	MinVersion int64

	// MinOffsetFast and MinOffsetSlow are the smallest compact storage
	// offsets in the child's subtree, per pool tier.
	MinOffsetFast pool.CompactOffset
	MinOffsetSlow pool.CompactOffset

	// Branch is the branch nibble the child hangs off. It is set by the
	// update pass and remains InvalidBranch while the descriptor is unused.
	Branch Nibble

	// Cache keeps the child resident in the created parent after a flush
	// instead of handing it off for release.
	Cache bool

	data    [maxChildDataLen]byte
	dataLen uint8
}

// NewChildData returns a descriptor in its unused state.
func NewChildData() ChildData {
	return ChildData{
		Offset:        pool.InvalidChunkOffset,
		MinVersion:    unversioned,
		MinOffsetFast: pool.InvalidCompactOffset,
		MinOffsetSlow: pool.InvalidCompactOffset,
		Branch:        InvalidBranch,
	}
}

// NewChildren returns a full set of unused descriptors, one per branch.
func NewChildren() [MaxChildren]ChildData {
	var res [MaxChildren]ChildData
	for i := range res {
		res[i] = NewChildData()
	}
	return res
}

// IsValid reports whether the descriptor describes a child.
func (c *ChildData) IsValid() bool {
	return c.Branch != InvalidBranch
}

// Data returns the child's cached data held by the descriptor.
func (c *ChildData) Data() []byte {
	return c.data[:c.dataLen]
}

// Erase returns the descriptor to its unused state, releasing an owned child.
// A cache-resident child is owned by the cache and only detached.
func (c *ChildData) Erase() {
	if c.Node != nil && !c.Cache {
		c.Node.Release()
	}
	*c = NewChildData()
}

// Finalize completes the descriptor for a freshly built child: it derives the
// child's cached data through the given compute strategy, aggregates the
// subtree minima from the child's record, and takes ownership of the child.
// The storage offset stays invalid until the child is flushed. With cache set
// the child remains resident in the parent after a flush. The caller keeps
// the responsibility of assigning Branch.
func (c *ChildData) Finalize(node *Node, compute Compute, cache bool) {
	data := compute.ComputeNode(node)
	if len(data) > maxChildDataLen {
		panic(fmt.Sprintf("computed child data of %d bytes exceeds %d", len(data), maxChildDataLen))
	}
	c.dataLen = uint8(copy(c.data[:], data))
	c.MinVersion = node.CalcMinVersion()
	fast, slow := pool.InvalidCompactOffset, pool.InvalidCompactOffset
	for i, n := 0, node.NumChildren(); i < n; i++ {
		if v := node.MinOffsetFast(i); v < fast {
			fast = v
		}
		if v := node.MinOffsetSlow(i); v < slow {
			slow = v
		}
	}
	c.MinOffsetFast = fast
	c.MinOffsetSlow = slow
	c.Offset = pool.InvalidChunkOffset
	c.Node = node
	c.Cache = cache
}

// CopyOldChild adopts the dense index-th child of an existing node: its
// branch nibble, cached data, storage offset and subtree minima. The resident
// child pointer is not adopted, the old node keeps it.
func (c *ChildData) CopyOldChild(old *Node, index int) {
	it := NewChildIterator(old.Mask())
	branch := InvalidBranch
	for {
		i, b, ok := it.Next()
		if !ok {
			panic(fmt.Sprintf("child index %d out of range [0,%d)", index, old.NumChildren()))
		}
		if i == index {
			branch = b
			break
		}
	}
	c.Branch = branch
	c.setData(old.ChildData(index))
	c.Offset = old.ChildOffset(index)
	c.MinVersion = old.SubtrieMinVersion(index)
	c.MinOffsetFast = old.MinOffsetFast(index)
	c.MinOffsetSlow = old.MinOffsetSlow(index)
	c.Node = nil
	c.Cache = false
}

func (c *ChildData) setData(data []byte) {
	if len(data) > maxChildDataLen {
		panic(fmt.Sprintf("child data of %d bytes exceeds %d", len(data), maxChildDataLen))
	}
	c.dataLen = uint8(copy(c.data[:], data))
}
