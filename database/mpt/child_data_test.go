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

func TestChildData_FreshDescriptorsAreInvalid(t *testing.T) {
	require := require.New(t)

	child := NewChildData()
	require.False(child.IsValid())
	require.Equal(pool.InvalidChunkOffset, child.Offset)
	require.Equal(pool.InvalidCompactOffset, child.MinOffsetFast)
	require.Equal(pool.InvalidCompactOffset, child.MinOffsetSlow)
	require.Empty(child.Data())

	for _, entry := range NewChildren() {
		require.False(entry.IsValid())
	}
}

func TestChildData_FinalizeDerivesDataAndAggregatesMinima(t *testing.T) {
	require := require.New(t)
	ctrl := gomock.NewController(t)

	node := makeTestNode(t, 0b11, 32, NibblesView{}, nil, 9)
	node.SetSubtrieMinVersion(0, 4)
	node.SetSubtrieMinVersion(1, 6)
	node.SetMinOffsetFast(0, 300)
	node.SetMinOffsetFast(1, 100)
	node.SetMinOffsetSlow(0, 500)
	node.SetMinOffsetSlow(1, 700)

	digest := bytes.Repeat([]byte{0xd1}, 32)
	compute := NewMockCompute(ctrl)
	compute.EXPECT().ComputeNode(node).Return(digest)

	child := NewChildData()
	child.Branch = 5
	child.Finalize(node, compute, false)

	require.True(child.IsValid())
	require.Equal(digest, child.Data())
	require.Equal(node.CalcMinVersion(), child.MinVersion)
	require.Equal(int64(4), child.MinVersion)
	require.Equal(pool.CompactOffset(100), child.MinOffsetFast)
	require.Equal(pool.CompactOffset(500), child.MinOffsetSlow)
	require.Equal(pool.InvalidChunkOffset, child.Offset)
	require.Same(node, child.Node)
	require.False(child.Cache)
}

func TestChildData_FinalizeOfALeafKeepsTheAggregationIdentity(t *testing.T) {
	require := require.New(t)
	ctrl := gomock.NewController(t)

	leaf := makeTestNode(t, 0, 0, NibblesView{}, []byte("leaf"), 12)
	compute := NewMockCompute(ctrl)
	compute.EXPECT().ComputeNode(leaf).Return([]byte{1, 2, 3})

	child := NewChildData()
	child.Branch = 0
	child.Finalize(leaf, compute, true)

	require.Equal(int64(12), child.MinVersion)
	require.Equal(pool.InvalidCompactOffset, child.MinOffsetFast)
	require.Equal(pool.InvalidCompactOffset, child.MinOffsetSlow)
	require.True(child.Cache)
}

func TestChildData_CopyOldChildAdoptsTheSlotVerbatim(t *testing.T) {
	require := require.New(t)

	old := makeTestNode(t, 0b0100_0100, 32, NibblesView{}, nil, 77)
	resident := makeTestNode(t, 0, 0, NibblesView{}, []byte("x"), 0)
	old.SetChild(1, resident)

	// No compute strategy is in reach; adopting an untouched sibling must
	// not derive anything anew.
	child := NewChildData()
	child.CopyOldChild(old, 1)

	require.True(child.IsValid())
	require.Equal(Nibble(6), child.Branch)
	require.Equal(old.ChildData(1), child.Data())
	require.Equal(old.ChildOffset(1), child.Offset)
	require.Equal(old.SubtrieMinVersion(1), child.MinVersion)
	require.Equal(old.MinOffsetFast(1), child.MinOffsetFast)
	require.Equal(old.MinOffsetSlow(1), child.MinOffsetSlow)

	// The resident handle stays with the old parent.
	require.Nil(child.Node)
	require.Same(resident, old.Child(1))

	require.Panics(func() { child.CopyOldChild(old, 2) })
}

func TestChildData_EraseReleasesOwnedChildrenAndIsIdempotent(t *testing.T) {
	require := require.New(t)

	node := makeTestNode(t, 0, 0, NibblesView{}, []byte("owned"), 0)
	child := NewChildData()
	child.Branch = 3
	child.Node = node

	child.Erase()
	require.False(child.IsValid())
	require.Nil(child.Node)
	require.Nil(node.data) // released

	child.Erase() // no effect on an unused descriptor
	require.False(child.IsValid())
}

func TestChildData_EraseDetachesCacheResidentChildrenWithoutReleasing(t *testing.T) {
	require := require.New(t)

	node := makeTestNode(t, 0, 0, NibblesView{}, []byte("cached"), 0)
	child := NewChildData()
	child.Branch = 3
	child.Node = node
	child.Cache = true

	child.Erase()
	require.Nil(child.Node)
	require.NotNil(node.data) // still owned by the cache
}
