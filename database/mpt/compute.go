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

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/0xsoniclabs/triedb/common"
	"github.com/0xsoniclabs/triedb/database/mpt/commit"
)

//go:generate mockgen -source compute.go -destination compute_mocks.go -package mpt

// Compute is the strategy deriving the cached authentication data of nodes.
// Implementations must be deterministic functions of the node content alone
// and must be safe for concurrent use.
type Compute interface {
	// ComputeNode derives the cached data of a complete node record. The
	// result is at most 32 bytes.
	ComputeNode(node *Node) []byte

	// ComputeBranch derives the inline cached data of a node under
	// construction that holds both children and a value, given its parts.
	// The descriptors are the valid entries in ascending branch order. The
	// result is at most 32 bytes and consistent with ComputeNode applied to
	// the assembled record.
	ComputeBranch(mask uint16, children []ChildData, path NibblesView, value []byte) []byte
}

// nodePreimage is the canonical hashing input of a node. The path travels
// unpacked, one nibble per byte, so that views of different begin parity but
// equal content produce the same preimage.
type nodePreimage struct {
	Mask     uint16
	Path     []byte
	HasValue bool
	Value    []byte
	Children [][]byte
}

func (p *nodePreimage) encode() []byte {
	res, err := rlp.EncodeToBytes(p)
	if err != nil {
		panic(fmt.Sprintf("failed to encode node preimage: %v", err))
	}
	return res
}

func unpackNibbles(path NibblesView) []byte {
	res := make([]byte, path.Length())
	for i := range res {
		res[i] = byte(path.Get(i))
	}
	return res
}

// MerkleCompute derives cached data as the keccak256 hash of the RLP-encoded
// node preimage.
type MerkleCompute struct{}

func (MerkleCompute) ComputeNode(node *Node) []byte {
	n := node.NumChildren()
	children := make([][]byte, n)
	for i := 0; i < n; i++ {
		children[i] = node.ChildData(i)
	}
	preimage := nodePreimage{
		Mask:     node.Mask(),
		Path:     unpackNibbles(node.Path()),
		HasValue: node.HasValue(),
		Value:    node.Value(),
		Children: children,
	}
	hash := common.Keccak256(preimage.encode())
	return hash[:]
}

func (MerkleCompute) ComputeBranch(mask uint16, children []ChildData, path NibblesView, value []byte) []byte {
	data := make([][]byte, len(children))
	for i := range children {
		data[i] = children[i].Data()
	}
	preimage := nodePreimage{
		Mask:     mask,
		Path:     unpackNibbles(path),
		HasValue: value != nil,
		Value:    value,
		Children: data,
	}
	hash := common.Keccak256(preimage.encode())
	return hash[:]
}

// PedersenCompute derives cached data as the compressed Pedersen vector
// commitment over the node's parts: child data by branch at positions 0-15,
// the value digest at 16, the path digest at 17 and the child mask at 18.
// Values longer than one field element enter through their keccak256 hash.
type PedersenCompute struct{}

const (
	pedersenValueSlot = 16
	pedersenPathSlot  = 17
	pedersenMaskSlot  = 18
)

func (PedersenCompute) ComputeNode(node *Node) []byte {
	var values [commit.VectorSize]commit.Value
	it := NewChildIterator(node.Mask())
	for {
		i, branch, ok := it.Next()
		if !ok {
			break
		}
		values[branch] = commit.NewValueFromLittleEndianBytes(node.ChildData(i))
	}
	return pedersenCommit(&values, node.Mask(), node.Path(), node.Value())
}

func (PedersenCompute) ComputeBranch(mask uint16, children []ChildData, path NibblesView, value []byte) []byte {
	var values [commit.VectorSize]commit.Value
	for i := range children {
		values[children[i].Branch] = commit.NewValueFromLittleEndianBytes(children[i].Data())
	}
	return pedersenCommit(&values, mask, path, value)
}

func pedersenCommit(values *[commit.VectorSize]commit.Value, mask uint16, path NibblesView, value []byte) []byte {
	if value != nil {
		digest := common.Keccak256(value)
		slot := commit.NewValueFromLittleEndianBytes(digest[:])
		slot.SetMarker()
		values[pedersenValueSlot] = slot
	}
	if !path.Empty() {
		digest := common.Keccak256(unpackNibbles(path))
		values[pedersenPathSlot] = commit.NewValueFromLittleEndianBytes(digest[:])
	}
	values[pedersenMaskSlot] = commit.NewValue(uint64(mask))
	res := commit.Commit(*values).Compress()
	return res[:]
}
