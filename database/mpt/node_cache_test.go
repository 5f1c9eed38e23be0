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
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/0xsoniclabs/triedb/backend/pool"
	"github.com/0xsoniclabs/triedb/backend/pool/memory"
)

func TestNodeCache_LoadsMissingNodesFromThePool(t *testing.T) {
	require := require.New(t)

	source := memory.NewNodePool()
	cache := NewNodeCache(source, NodeCacheConfig{Capacity: 16})

	node := makeTestNode(t, 0b101, 32, NibblesFromBytes([]byte{0x13}), []byte("cached"), 3)
	offset, err := source.Write(pool.FastTier, SerializeNode(&node.NodeBase))
	require.NoError(err)
	tagged := offset.WithSpare(EncodeDiskPages(pageSpan(offset, node.GetDiskSize())).Spare())

	_, found := cache.Get(tagged)
	require.False(found)

	loaded, err := cache.GetOrLoad(tagged)
	require.NoError(err)
	require.Equal(node.data, loaded.data)
	require.Len(loaded.next, 2)
	for i := range loaded.next {
		require.Nil(loaded.Child(i), "children are faulted in lazily")
	}

	// The second lookup is served from the cache.
	again, err := cache.GetOrLoad(tagged)
	require.NoError(err)
	require.Same(loaded, again)

	hits, misses := cache.Stats()
	require.Equal(uint64(1), hits)
	require.Equal(uint64(1), misses)
	require.Equal(1, cache.Size())
}

func TestNodeCache_LookupIgnoresSpareBits(t *testing.T) {
	require := require.New(t)

	source := memory.NewNodePool()
	cache := NewNodeCache(source, NodeCacheConfig{Capacity: 16})

	node := makeTestNode(t, 0, 0, NibblesView{}, []byte("x"), 1)
	offset, err := source.Write(pool.FastTier, SerializeNode(&node.NodeBase))
	require.NoError(err)

	loaded, err := cache.GetOrLoad(offset)
	require.NoError(err)

	found, exists := cache.Get(offset.WithSpare(0x1234))
	require.True(exists)
	require.Same(loaded, found)
}

func TestNodeCache_OffsetsWithoutPageCountFallBackToASizeRead(t *testing.T) {
	require := require.New(t)
	ctrl := gomock.NewController(t)

	node := makeTestNode(t, 0b1, 32, NibblesView{}, nil, 2)
	image := SerializeNode(&node.NodeBase)
	offset := pool.NewChunkOffset(0, 4000)

	source := pool.NewMockNodePool(ctrl)
	source.EXPECT().Read(offset, DiskSizeBytes).Return(image[:DiskSizeBytes], nil)
	source.EXPECT().Read(offset, len(image)).Return(image, nil)

	cache := NewNodeCache(source, NodeCacheConfig{Capacity: 16})
	loaded, err := cache.GetOrLoad(offset)
	require.NoError(err)
	require.Equal(node.data, loaded.data)
}

func TestNodeCache_InvalidOffsetsAreRejected(t *testing.T) {
	require := require.New(t)

	cache := NewNodeCache(memory.NewNodePool(), NodeCacheConfig{Capacity: 16})
	_, err := cache.GetOrLoad(pool.InvalidChunkOffset)
	require.Error(err)
}

func TestNodeCache_FailedReadsArePropagated(t *testing.T) {
	require := require.New(t)

	cache := NewNodeCache(memory.NewNodePool(), NodeCacheConfig{Capacity: 16})
	_, err := cache.GetOrLoad(pool.NewChunkOffset(17, 0))
	require.ErrorIs(err, pool.ErrNotFound)
}

func TestNodeCache_ConcurrentLoadsYieldOneNode(t *testing.T) {
	require := require.New(t)

	source := memory.NewNodePool()
	cache := NewNodeCache(source, NodeCacheConfig{Capacity: 16})

	node := makeTestNode(t, 0b11, 32, NibblesView{}, nil, 5)
	offset, err := source.Write(pool.FastTier, SerializeNode(&node.NodeBase))
	require.NoError(err)

	const goroutines = 8
	results := make([]*CacheNode, goroutines)
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func(g int) {
			defer wg.Done()
			loaded, err := cache.GetOrLoad(offset)
			if err == nil {
				results[g] = loaded
			}
		}(g)
	}
	wg.Wait()

	require.Equal(1, cache.Size())
	for g := 1; g < goroutines; g++ {
		require.Same(results[0], results[g])
	}
}

func TestNodeCache_DefaultCapacityIsDerivedFromSystemMemory(t *testing.T) {
	require := require.New(t)
	require.GreaterOrEqual(NodeCacheConfig{}.capacity(), 1024)
	require.Equal(7, NodeCacheConfig{Capacity: 7}.capacity())
}

func TestNodeCache_MemoryFootprintCoversResidentNodes(t *testing.T) {
	require := require.New(t)

	source := memory.NewNodePool()
	cache := NewNodeCache(source, NodeCacheConfig{Capacity: 16})

	node := makeTestNode(t, 0b1, 32, NibblesView{}, nil, 1)
	offset, err := source.Write(pool.FastTier, SerializeNode(&node.NodeBase))
	require.NoError(err)
	_, err = cache.GetOrLoad(offset)
	require.NoError(err)

	footprint := cache.GetMemoryFootprint()
	require.Greater(int(footprint.Total()), node.GetMemSize())

	entries := cache.Entries()
	require.Len(entries, 1)
	require.Equal(offset.WithoutSpare(), entries[0].Key)
}
