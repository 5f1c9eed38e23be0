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
	"testing"

	"github.com/stretchr/testify/require"
)

func testNodeShapes(t *testing.T) map[string]*Node {
	t.Helper()
	return map[string]*Node{
		"leaf":              makeTestNode(t, 0, 0, NibblesFromBytes([]byte{0x12, 0x34}), []byte("leaf value"), 7),
		"empty value":       makeTestNode(t, 0, 0, NibblesView{}, []byte{}, 0),
		"branch":            makeTestNode(t, 0b1010_0110_0001_1001, 32, NibblesView{}, nil, -3),
		"branch with value": makeTestNode(t, 0b11, 32, NibblesFromBytes([]byte{0xab}), []byte("v"), 1<<40),
		"full":              makeTestNode(t, 0xffff, 32, NibblesFromBytes(make([]byte, 32)), make([]byte, 1000), 1),
		"short child data":  makeTestNode(t, 0b101, 3, NibblesView{}, nil, 2),
	}
}

func TestCodec_SerializedNodesRestoreToIdenticalRecords(t *testing.T) {
	for name, node := range testNodeShapes(t) {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)

			image := SerializeNode(&node.NodeBase)
			require.Len(image, int(node.GetDiskSize()))
			require.Equal(uint32(len(image)), binary.LittleEndian.Uint32(image))

			restored := DeserializeNode(image)
			require.Equal(node.data, restored.data)
			require.Equal(node.GetMemSize(), restored.GetMemSize())
			require.Equal(node.GetDiskSize(), restored.GetDiskSize())
			require.Len(restored.next, node.NumChildren())
			for _, child := range restored.next {
				require.Nil(child)
			}

			// The round trip is byte-exact.
			require.Equal(image, SerializeNode(&restored.NodeBase))
		})
	}
}

func TestCodec_StreamedSerializationMatchesTheFullImage(t *testing.T) {
	require := require.New(t)

	node := makeTestNode(t, 0b1011, 32, NibblesFromBytes([]byte{0x99}), []byte("streamed"), 5)
	want := SerializeNode(&node.NodeBase)
	size := node.GetDiskSize()

	for _, chunk := range []int{1, 2, 3, 7, 64, len(want) - 1, len(want), len(want) + 10} {
		got := make([]byte, 0, len(want))
		buf := make([]byte, chunk)
		for offset := uint32(0); offset < size; {
			written := SerializeNodeToBuffer(buf, &node.NodeBase, size, offset)
			require.Greater(written, 0)
			got = append(got, buf[:written]...)
			offset += uint32(written)
		}
		require.Equal(want, got, "chunk size %d", chunk)
	}

	// Writing past the end yields nothing.
	require.Equal(0, SerializeNodeToBuffer(make([]byte, 8), &node.NodeBase, size, size))
}

func TestCodec_SerializationGuardsItsSizeArguments(t *testing.T) {
	require := require.New(t)

	node := makeTestNode(t, 0, 0, NibblesView{}, []byte("x"), 0)
	size := node.GetDiskSize()
	require.Panics(func() { SerializeNodeToBuffer(make([]byte, 16), &node.NodeBase, size+1, 0) })
	require.Panics(func() { SerializeNodeToBuffer(make([]byte, 16), &node.NodeBase, size, size+1) })
}

func TestCodec_DeserializationAbortsOnCorruptImages(t *testing.T) {
	require := require.New(t)

	image := SerializeNode(&makeTestNode(t, 0b1, 32, NibblesView{}, nil, 1).NodeBase)

	// Truncated before the size prefix completes.
	require.Panics(func() { DeserializeNode(image[:3]) })

	// A size claiming more than the supplied buffer holds.
	require.Panics(func() { DeserializeNode(image[:len(image)-1]) })

	// A zero size.
	zero := make([]byte, len(image))
	require.Panics(func() { DeserializeNode(zero) })

	// A size below the smallest well-formed node.
	small := append([]byte{}, image...)
	binary.LittleEndian.PutUint32(small, MinDiskSize-1)
	require.Panics(func() { DeserializeNode(small) })

	// A size beyond the chunk bound.
	huge := append([]byte{}, image...)
	binary.LittleEndian.PutUint32(huge, MaxDiskSize+1)
	require.Panics(func() { DeserializeNode(huge) })

	// A size inconsistent with the record's own counts.
	padded := append(append([]byte{}, image...), 0)
	binary.LittleEndian.PutUint32(padded, uint32(len(padded)))
	require.Panics(func() { DeserializeNode(padded) })
}

func TestCodec_DeserializationIgnoresTrailingBufferContent(t *testing.T) {
	require := require.New(t)

	node := makeTestNode(t, 0b11, 32, NibblesView{}, nil, 4)
	image := SerializeNode(&node.NodeBase)
	buffer := append(append([]byte{}, image...), 0xde, 0xad, 0xbe, 0xef)

	restored := DeserializeNode(buffer)
	require.Equal(node.data, restored.data)

	cached := DeserializeCacheNode(buffer)
	require.Equal(node.data, cached.data)
	require.Len(cached.next, 2)
}

func TestCodec_CopiesAreDeepAndCarryNoResidentChildren(t *testing.T) {
	require := require.New(t)

	node := makeTestNode(t, 0b101, 32, NibblesFromBytes([]byte{0x77}), []byte("payload"), 6)
	node.SetChild(0, makeTestNode(t, 0, 0, NibblesView{}, []byte("c"), 1))

	clone := CopyNode(&node.NodeBase)
	require.Equal(node.data, clone.data)
	require.NotSame(&node.data[0], &clone.data[0])
	for i := range clone.next {
		require.Nil(clone.Child(i))
	}

	// Mutating the copy leaves the original untouched.
	clone.SetSubtrieMinVersion(0, -42)
	require.NotEqual(node.SubtrieMinVersion(0), clone.SubtrieMinVersion(0))

	shared := CopyCacheNode(&node.NodeBase)
	require.Equal(node.data, shared.data)
	require.Len(shared.next, 2)
}
