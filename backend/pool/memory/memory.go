// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package memory

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/0xsoniclabs/triedb/backend/pool"
	"github.com/0xsoniclabs/triedb/common"
)

// NodePool is an in-memory implementation of the node pool, keeping all
// chunks as byte slices on the heap. It is the backend of choice for tests
// and for workloads small enough to be rebuilt on restart.
type NodePool struct {
	mu     sync.Mutex
	chunks map[uint32]*chunk
	heads  [2]*chunk
	counts [2]uint32
	nextID uint32
}

type chunk struct {
	id   uint32
	tier pool.Tier
	seq  uint32
	data []byte
}

// NewNodePool creates an empty in-memory pool.
func NewNodePool() *NodePool {
	return &NodePool{chunks: map[uint32]*chunk{}}
}

func (p *NodePool) Write(tier pool.Tier, data []byte) (pool.ChunkOffset, error) {
	if len(data) == 0 || len(data) > pool.ChunkSize {
		return pool.InvalidChunkOffset, fmt.Errorf("invalid node size %d", len(data))
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	head := p.heads[tier]
	if head == nil || len(head.data)+len(data) > pool.ChunkSize {
		head = &chunk{id: p.nextID, tier: tier, seq: p.counts[tier]}
		p.nextID++
		p.counts[tier]++
		p.chunks[head.id] = head
		p.heads[tier] = head
	}
	offset := uint32(len(head.data))
	head.data = append(head.data, data...)
	return pool.NewChunkOffset(head.id, offset), nil
}

func (p *NodePool) Read(offset pool.ChunkOffset, length int) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, exists := p.chunks[offset.Chunk()]
	if !exists {
		return nil, fmt.Errorf("chunk %d: %w", offset.Chunk(), pool.ErrNotFound)
	}
	pos := int(offset.Offset())
	if pos >= len(c.data) {
		return nil, fmt.Errorf("offset %v: %w", offset, pool.ErrNotFound)
	}
	end := pos + length
	if end > len(c.data) {
		end = len(c.data)
	}
	// Written bytes are never touched again, so the view taken under the
	// lock stays stable across concurrent appends. It aliases the pool's
	// buffer and must be treated as read-only.
	return c.data[pos:end:end], nil
}

func (p *NodePool) Virtualize(offset pool.ChunkOffset) (pool.VirtualOffset, error) {
	p.mu.Lock()
	c, exists := p.chunks[offset.Chunk()]
	p.mu.Unlock()
	if !exists {
		return 0, fmt.Errorf("chunk %d: %w", offset.Chunk(), pool.ErrNotFound)
	}
	return pool.NewVirtualOffset(c.seq, offset.Offset()), nil
}

// Flush is a no-op, all data lives on the heap.
func (p *NodePool) Flush() error {
	return nil
}

// Close drops all chunks. The pool must not be used afterwards.
func (p *NodePool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chunks = nil
	p.heads = [2]*chunk{}
	return nil
}

func (p *NodePool) GetMemoryFootprint() *common.MemoryFootprint {
	p.mu.Lock()
	defer p.mu.Unlock()
	mf := common.NewMemoryFootprint(unsafe.Sizeof(*p))
	var dataSize uintptr
	for _, c := range p.chunks {
		dataSize += unsafe.Sizeof(*c) + uintptr(cap(c.data))
	}
	chunks := common.NewMemoryFootprint(dataSize)
	chunks.SetNote(fmt.Sprintf("(%d chunks)", len(p.chunks)))
	mf.AddChild("chunks", chunks)
	return mf
}
