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
	"sync"
	"unsafe"

	"github.com/pbnjay/memory"

	"github.com/0xsoniclabs/triedb/backend/pool"
	"github.com/0xsoniclabs/triedb/common"
)

// NodeCacheConfig tunes the node cache.
type NodeCacheConfig struct {
	// Capacity is the number of nodes the cache is laid out for. Zero
	// derives a default from the machine's total memory.
	Capacity int
}

// expectedNodeSize is the average record size the default capacity is
// computed with.
const expectedNodeSize = 512

func (c NodeCacheConfig) capacity() int {
	if c.Capacity > 0 {
		return c.Capacity
	}
	res := int(memory.TotalMemory() / 4 / expectedNodeSize)
	if res < 1024 {
		res = 1024
	}
	return res
}

// NodeCache keeps cache-shared nodes indexed by their storage location,
// faulting missing ones in from the pool. The cache owns every node it hands
// out; parents attach borrowed child pointers for faster re-traversal, and
// entries stay resident for the cache's lifetime.
type NodeCache struct {
	config NodeCacheConfig
	source pool.NodePool

	mu     sync.Mutex
	nodes  map[pool.ChunkOffset]*CacheNode
	hits   uint64
	misses uint64
}

// NewNodeCache creates a cache reading through to the given pool.
func NewNodeCache(source pool.NodePool, config NodeCacheConfig) *NodeCache {
	capacity := config.capacity()
	hint := capacity
	if hint > 1<<20 {
		hint = 1 << 20
	}
	return &NodeCache{
		config: config,
		source: source,
		nodes:  make(map[pool.ChunkOffset]*CacheNode, hint),
	}
}

// Get returns the cached node at the given offset, if resident. The spare
// bits of the offset do not participate in the lookup.
func (c *NodeCache) Get(offset pool.ChunkOffset) (*CacheNode, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	node, exists := c.nodes[offset.WithoutSpare()]
	return node, exists
}

// GetOrLoad returns the cached node at the given offset, reading and
// deserializing it from the pool on a miss. The read length is derived from
// the page count carried in the offset's spare bits; offsets without one
// fall back to a two-step read. Corrupt stored data aborts.
func (c *NodeCache) GetOrLoad(offset pool.ChunkOffset) (*CacheNode, error) {
	if !offset.IsValid() {
		return nil, fmt.Errorf("cannot load node from invalid offset")
	}
	key := offset.WithoutSpare()
	c.mu.Lock()
	if node, exists := c.nodes[key]; exists {
		c.hits++
		c.mu.Unlock()
		return node, nil
	}
	c.mu.Unlock()

	length, err := c.readLength(offset)
	if err != nil {
		return nil, err
	}
	buf, err := c.source.Read(key, length)
	if err != nil {
		return nil, fmt.Errorf("failed to load node at %v: %w", key, err)
	}
	node := DeserializeCacheNode(buf)

	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, exists := c.nodes[key]; exists {
		// A concurrent load won the race, keep the published node.
		c.hits++
		return prev, nil
	}
	c.misses++
	c.nodes[key] = node
	return node, nil
}

// readLength determines how many bytes to fetch for the node at the given
// offset. The offset's spare bits carry the page count encoded at write
// time; without one the node's size prefix is read first.
func (c *NodeCache) readLength(offset pool.ChunkOffset) (int, error) {
	if pages := DiskPagesFromSpare(offset.Spare()).Pages(); pages > 0 {
		return int(pages)*pool.PageSize - int(offset.Offset())%pool.PageSize, nil
	}
	prefix, err := c.source.Read(offset.WithoutSpare(), DiskSizeBytes)
	if err != nil {
		return 0, fmt.Errorf("failed to read node size at %v: %w", offset, err)
	}
	if len(prefix) < DiskSizeBytes {
		return 0, fmt.Errorf("truncated node at %v", offset)
	}
	return int(prefix[0]) | int(prefix[1])<<8 | int(prefix[2])<<16 | int(prefix[3])<<24, nil
}

// Size returns the number of resident nodes.
func (c *NodeCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.nodes)
}

// Stats returns the number of lookups served from the cache and the number
// of loads from the pool.
func (c *NodeCache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Entries returns a snapshot of the cache's content, mainly for diagnostics
// and sampling in tools.
func (c *NodeCache) Entries() []common.MapEntry[pool.ChunkOffset, *CacheNode] {
	c.mu.Lock()
	defer c.mu.Unlock()
	res := make([]common.MapEntry[pool.ChunkOffset, *CacheNode], 0, len(c.nodes))
	for offset, node := range c.nodes {
		res = append(res, common.MapEntry[pool.ChunkOffset, *CacheNode]{Key: offset, Val: node})
	}
	return res
}

func (c *NodeCache) GetMemoryFootprint() *common.MemoryFootprint {
	c.mu.Lock()
	defer c.mu.Unlock()
	var nodesSize uintptr
	for _, node := range c.nodes {
		nodesSize += unsafe.Sizeof(*node) + uintptr(node.GetMemSize())
	}
	mf := common.NewMemoryFootprint(unsafe.Sizeof(*c))
	nodes := common.NewMemoryFootprint(nodesSize)
	nodes.SetNote(fmt.Sprintf("(%d nodes, capacity %d)", len(c.nodes), c.config.capacity()))
	mf.AddChild("nodes", nodes)
	return mf
}
