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
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/0xsoniclabs/triedb/backend/pool"
)

func TestFactory_BuildsABranchFromTwoDescriptors(t *testing.T) {
	require := require.New(t)
	ctrl := gomock.NewController(t)

	mask := uint16(0b101)
	children := make([]ChildData, 2)
	for i, branch := range []Nibble{0, 2} {
		children[i] = NewChildData()
		children[i].Branch = branch
		children[i].setData(bytes.Repeat([]byte{byte(branch)}, 32))
	}

	// No value, so no own cached data is derived.
	compute := NewMockCompute(ctrl)
	node := CreateNodeWithChildren(compute, mask, children, NibblesView{}, nil, 5)

	require.Equal(2, node.NumChildren())
	require.Equal(0, node.ToChildIndex(0))
	require.Equal(1, node.ToChildIndex(2))
	require.Equal(mask, node.Mask())
	require.Equal(int64(5), node.Version())
	require.False(node.HasValue())
	require.False(node.HasPath())
	require.Empty(node.Data())
	require.Equal(bytes.Repeat([]byte{0}, 32), node.ChildData(0))
	require.Equal(bytes.Repeat([]byte{2}, 32), node.ChildData(1))
}

func TestFactory_DerivesOwnDataForBranchesTerminatingAValue(t *testing.T) {
	require := require.New(t)
	ctrl := gomock.NewController(t)

	mask := uint16(0b10)
	children := []ChildData{NewChildData()}
	children[0].Branch = 1
	children[0].setData([]byte{42})
	path := NibblesFromBytes([]byte{0xab})
	value := []byte("terminating value")

	own := bytes.Repeat([]byte{0xcc}, 32)
	compute := NewMockCompute(ctrl)
	compute.EXPECT().
		ComputeBranch(mask, gomock.Any(), path, value).
		Return(own)

	node := CreateNodeWithChildren(compute, mask, children, path, value, 8)
	require.Equal(own, node.Data())
	require.Equal(value, node.Value())
	require.True(path.Equal(node.Path()))
}

func TestFactory_DescriptorAttributesLandInTheParallelArrays(t *testing.T) {
	require := require.New(t)

	children := make([]ChildData, 3)
	for i, branch := range []Nibble{1, 7, 14} {
		children[i] = NewChildData()
		children[i].Branch = branch
		children[i].setData([]byte{byte(i), byte(i)})
		children[i].Offset = pool.NewChunkOffset(uint32(i), uint32(100*i))
		children[i].MinVersion = int64(10 + i)
		children[i].MinOffsetFast = pool.CompactOffset(20 + i)
		children[i].MinOffsetSlow = pool.CompactOffset(30 + i)
	}
	node := MakeNode(0b0100_0000_1000_0010, children, NibblesView{}, nil, 0, 99)

	for i := 0; i < 3; i++ {
		require.Equal(pool.NewChunkOffset(uint32(i), uint32(100*i)), node.ChildOffset(i))
		require.Equal(int64(10+i), node.SubtrieMinVersion(i))
		require.Equal(pool.CompactOffset(20+i), node.MinOffsetFast(i))
		require.Equal(pool.CompactOffset(30+i), node.MinOffsetSlow(i))
		require.Equal([]byte{byte(i), byte(i)}, node.ChildData(i))
	}
}

func TestFactory_OwnedHandlesAreTransferredIntoTheNewNode(t *testing.T) {
	require := require.New(t)

	resident := makeTestNode(t, 0, 0, NibblesView{}, []byte("child"), 1)
	children := []ChildData{NewChildData()}
	children[0].Branch = 4
	children[0].Node = resident

	node := MakeNode(0b1_0000, children, NibblesView{}, nil, 0, 2)
	require.Same(resident, node.Child(0))
	require.Nil(children[0].Node, "the descriptor must not keep a second owner")
}

func TestFactory_MakeNodeReservesZeroedOwnData(t *testing.T) {
	require := require.New(t)

	node := MakeNode(0, nil, NibblesView{}, []byte("v"), 32, 0)
	require.Len(node.Data(), 32)
	require.Equal(make([]byte, 32), node.Data())
	require.Equal(node.GetMemSize(), CalculateNodeSize(0, 0, 1, 0, 32))
}

func TestFactory_MakeNodeWithDataStoresItVerbatim(t *testing.T) {
	require := require.New(t)

	own := []byte{1, 2, 3, 4, 5}
	node := MakeNodeWithData(0, nil, NibblesView{}, nil, own, 3)
	require.Equal(own, node.Data())
	require.Equal(int64(3), node.Version())
}

func TestFactory_MakeNodeFromExistingMovesChildrenAndHandles(t *testing.T) {
	require := require.New(t)

	from := makeTestNode(t, 0b1001, 32, NibblesFromBytes([]byte{0x12}), []byte("old"), 4)
	resident := makeTestNode(t, 0, 0, NibblesView{}, []byte("x"), 1)
	from.SetChild(1, resident)

	path := NibblesFromBytes([]byte{0x34, 0x56})
	node := MakeNodeFromExisting(from, path, []byte("new"), 9)

	require.Equal(from.Mask(), node.Mask())
	require.True(path.Equal(node.Path()))
	require.Equal([]byte("new"), node.Value())
	require.Equal(int64(9), node.Version())
	require.Empty(node.Data())
	for i := 0; i < 2; i++ {
		require.Equal(from.ChildData(i), node.ChildData(i))
		require.Equal(from.ChildOffset(i), node.ChildOffset(i))
		require.Equal(from.SubtrieMinVersion(i), node.SubtrieMinVersion(i))
	}
	require.Same(resident, node.Child(1))
	require.Nil(from.Child(1))
}

func TestFactory_RejectsMalformedInputs(t *testing.T) {
	require := require.New(t)

	valid := NewChildData()
	valid.Branch = 0

	// Descriptor count not matching the mask.
	require.Panics(func() { MakeNode(0b11, []ChildData{valid}, NibblesView{}, nil, 0, 0) })

	// Descriptor branch not matching its mask position.
	misplaced := NewChildData()
	misplaced.Branch = 5
	require.Panics(func() { MakeNode(0b1, []ChildData{misplaced}, NibblesView{}, nil, 0, 0) })

	// Unused descriptor in a claimed slot.
	require.Panics(func() { MakeNode(0b1, []ChildData{NewChildData()}, NibblesView{}, nil, 0, 0) })

	// Own data beyond the 6-bit length field.
	require.Panics(func() { MakeNode(0, nil, NibblesView{}, nil, MaxDataLen+1, 0) })

	// Value beyond the leaf limit.
	require.Panics(func() { MakeNode(0, nil, NibblesView{}, make([]byte, MaxValueLen+1), 0, 0) })
}
