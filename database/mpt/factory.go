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
)

// CreateNodeWithChildren builds a new node from up to 16 child descriptors,
// the regular product of one copy-on-write update step. The descriptors must
// be the valid entries in ascending branch order, matching the mask. When the
// node carries both children and a value, its own cached data is derived
// through the compute strategy before assembly. Owned child pointers are
// transferred from the descriptors into the new node.
//
// A nil value means the node has no value; a non-nil empty slice is a
// present, empty value.
func CreateNodeWithChildren(compute Compute, mask uint16, children []ChildData,
	path NibblesView, value []byte, version int64) *Node {
	var data []byte
	if mask != 0 && value != nil {
		data = compute.ComputeBranch(mask, children, path, value)
		if len(data) > maxChildDataLen {
			panic(fmt.Sprintf("computed node data of %d bytes exceeds %d", len(data), maxChildDataLen))
		}
	}
	return makeNode(mask, children, path, value, data, len(data), version)
}

// MakeNode builds a node reserving dataSize zero bytes of own cached data, to
// be derived by the parent's compute pass.
func MakeNode(mask uint16, children []ChildData, path NibblesView, value []byte,
	dataSize int, version int64) *Node {
	return makeNode(mask, children, path, value, nil, dataSize, version)
}

// MakeNodeWithData builds a node with pre-assembled own cached data, for
// callers that bypass the compute strategy, e.g. path compression reshaping
// an already derived node.
func MakeNodeWithData(mask uint16, children []ChildData, path NibblesView,
	value []byte, data []byte, version int64) *Node {
	return makeNode(mask, children, path, value, data, len(data), version)
}

// MakeNodeFromExisting rebuilds a node around the children of an existing
// one: all per-child attributes, cached data and resident child handles move
// over, while path, value and version are replaced. The node's own cached
// data is dropped, its shape changed.
func MakeNodeFromExisting(from *Node, path NibblesView, value []byte, version int64) *Node {
	n := from.NumChildren()
	children := make([]ChildData, n)
	it := NewChildIterator(from.Mask())
	for {
		i, branch, ok := it.Next()
		if !ok {
			break
		}
		child := NewChildData()
		child.Branch = branch
		child.setData(from.ChildData(i))
		child.Offset = from.ChildOffset(i)
		child.MinVersion = from.SubtrieMinVersion(i)
		child.MinOffsetFast = from.MinOffsetFast(i)
		child.MinOffsetSlow = from.MinOffsetSlow(i)
		child.Node = from.TakeChild(i)
		children[i] = child
	}
	return makeNode(from.Mask(), children, path, value, nil, 0, version)
}

// makeNode allocates and populates a node record. data may be shorter than
// dataSize, the remainder stays zero.
func makeNode(mask uint16, children []ChildData, path NibblesView, value []byte,
	data []byte, dataSize int, version int64) *Node {
	n := bits.OnesCount16(mask)
	if len(children) != n {
		panic(fmt.Sprintf("%d descriptors do not match mask %016b", len(children), mask))
	}
	if dataSize > MaxDataLen || len(data) > dataSize {
		panic(fmt.Sprintf("own data of %d/%d bytes exceeds %d", len(data), dataSize, MaxDataLen))
	}
	if len(value) > MaxValueLen {
		panic(fmt.Sprintf("value of %d bytes exceeds %d", len(value), MaxValueLen))
	}
	pathBegin := int(path.beginParity())
	pathEnd := pathBegin + path.Length()
	if pathEnd > 255 {
		panic(fmt.Sprintf("path of %d nibbles exceeds the representable range", path.Length()))
	}

	childDataTotal := 0
	it := NewChildIterator(mask)
	for {
		i, branch, ok := it.Next()
		if !ok {
			break
		}
		child := &children[i]
		if !child.IsValid() || child.Branch != branch {
			panic(fmt.Sprintf("descriptor %d does not describe branch %v of mask %016b", i, branch, mask))
		}
		childDataTotal += int(child.dataLen)
	}

	pathBytes := len(path.bytes())
	size := CalculateNodeSize(n, childDataTotal, len(value), pathBytes, dataSize) - 8*n
	node := &Node{
		NodeBase: NodeBase{data: make([]byte, size)},
		next:     make([]*Node, n),
	}
	buf := node.data

	binary.LittleEndian.PutUint16(buf[0:], mask)
	packed := byte(dataSize) << 2
	packed |= byte(path.beginParity()) << 1
	if value != nil {
		packed |= 1
	}
	buf[2] = packed
	buf[3] = byte(pathEnd)
	binary.LittleEndian.PutUint32(buf[4:], uint32(len(value)))
	binary.LittleEndian.PutUint64(buf[8:], uint64(version))

	end := 0
	for i := 0; i < n; i++ {
		child := &children[i]
		end += int(child.dataLen)
		binary.LittleEndian.PutUint16(buf[childDataEndsStart(n)+2*i:], uint16(end))
		binary.LittleEndian.PutUint32(buf[minOffsetFastStart(n)+4*i:], uint32(child.MinOffsetFast))
		binary.LittleEndian.PutUint32(buf[minOffsetSlowStart(n)+4*i:], uint32(child.MinOffsetSlow))
		binary.LittleEndian.PutUint64(buf[subtrieMinVersionStart(n)+8*i:], uint64(child.MinVersion))
		binary.LittleEndian.PutUint64(buf[childOffsetsStart(n)+8*i:], uint64(child.Offset))
	}

	copy(buf[pathStart(n):], path.bytes())
	copy(buf[node.valueStart():], value)
	copy(buf[node.dataStart():], data)
	for i := 0; i < n; i++ {
		node.SetChildData(i, children[i].Data())
		if children[i].Node != nil {
			node.next[i] = children[i].Node
			children[i].Node = nil
		}
	}
	return node
}
