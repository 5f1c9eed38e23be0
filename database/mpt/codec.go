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

// The persisted image of a node is its 4-byte little-endian disk size
// followed by the record bytes; the resident child pointers are not part of
// it. Serialization is therefore a plain copy and the round trip through
// serialize and deserialize is byte-exact.

// SerializeNode returns the full persisted image of the node.
func SerializeNode(node *NodeBase) []byte {
	size := node.GetDiskSize()
	res := make([]byte, size)
	SerializeNodeToBuffer(res, node, size, 0)
	return res
}

// SerializeNodeToBuffer writes the byte range [offset, offset+len(dst)) of
// the node's persisted image into dst and returns the number of bytes
// written, less than len(dst) only when the image ends. Split writes allow
// callers to place one image across fixed-size buffers. diskSize must equal
// the node's disk size; callers have it at hand for space accounting and the
// redundancy guards against serializing a record that changed size.
func SerializeNodeToBuffer(dst []byte, node *NodeBase, diskSize uint32, offset uint32) int {
	if diskSize != node.GetDiskSize() {
		panic(fmt.Sprintf("disk size %d does not match the node's %d", diskSize, node.GetDiskSize()))
	}
	if offset > diskSize {
		panic(fmt.Sprintf("offset %d beyond the %d byte image", offset, diskSize))
	}
	written := 0
	if offset < DiskSizeBytes {
		var prefix [DiskSizeBytes]byte
		binary.LittleEndian.PutUint32(prefix[:], diskSize)
		written = copy(dst, prefix[offset:])
	}
	pos := int(offset) + written
	if written < len(dst) && pos < int(diskSize) {
		written += copy(dst[written:], node.data[pos-DiskSizeBytes:])
	}
	return written
}

// DeserializeNode reads one node from the beginning of src and returns it as
// an owning node with no resident children. The buffer may extend beyond the
// node's image. Corrupt input aborts.
func DeserializeNode(src []byte) *Node {
	data, n := deserializeNodeData(src)
	return &Node{NodeBase: NodeBase{data: data}, next: make([]*Node, n)}
}

// DeserializeCacheNode reads one node from the beginning of src and returns
// it as a cache-shared node with no resident children.
func DeserializeCacheNode(src []byte) *CacheNode {
	data, n := deserializeNodeData(src)
	return &CacheNode{NodeBase: NodeBase{data: data}, next: make([]*CacheNode, n)}
}

func deserializeNodeData(src []byte) ([]byte, int) {
	if len(src) < DiskSizeBytes {
		panic(fmt.Sprintf("node image truncated, %d bytes", len(src)))
	}
	diskSize := binary.LittleEndian.Uint32(src)
	if diskSize < MinDiskSize || diskSize > MaxDiskSize {
		panic(fmt.Sprintf("corrupt node image, disk size %d", diskSize))
	}
	if int(diskSize) > len(src) {
		panic(fmt.Sprintf("node of %d bytes exceeds the %d byte buffer", diskSize, len(src)))
	}
	// Fault in the whole image before decoding; sources are typically views
	// into pooled or mapped chunks.
	for i := 0; i < int(diskSize); i += pool.PageSize {
		_ = src[i]
	}
	mask := binary.LittleEndian.Uint16(src[DiskSizeBytes:])
	n := bits.OnesCount16(mask)
	data := make([]byte, diskSize-DiskSizeBytes)
	copy(data, src[DiskSizeBytes:diskSize])
	base := NodeBase{data: data}
	if got, want := len(data)+8*n, base.GetMemSize(); got != want {
		panic(fmt.Sprintf("corrupt node image, %d bytes hold a record of %d", got, want))
	}
	return data, n
}

// CopyNode creates an owning deep copy of the given record with no resident
// children. Copying a cache-shared record this way yields the private,
// mutable-by-replacement copy an update pass works on.
func CopyNode(node *NodeBase) *Node {
	return &Node{NodeBase: copyNodeBase(node), next: make([]*Node, node.NumChildren())}
}

// CopyCacheNode creates a cache-shared deep copy of the given record with no
// resident children.
func CopyCacheNode(node *NodeBase) *CacheNode {
	return &CacheNode{NodeBase: copyNodeBase(node), next: make([]*CacheNode, node.NumChildren())}
}

func copyNodeBase(node *NodeBase) NodeBase {
	data := make([]byte, len(node.data))
	copy(data, node.data)
	return NodeBase{data: data}
}
