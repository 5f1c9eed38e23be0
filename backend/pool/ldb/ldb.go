// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package ldb

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/0xsoniclabs/triedb/backend/pool"
	"github.com/0xsoniclabs/triedb/common"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// NodePool is a LevelDB backed implementation of the node pool. Every record
// is stored under its own key, addressed by chunk id and in-chunk offset,
// while chunk allocation follows the same per-tier append cursors as the
// in-memory pool. The cursors travel in the same write batch as each record,
// so a reopened pool continues appending where it stopped and never reuses
// an offset.
type NodePool struct {
	mu     sync.Mutex
	db     *leveldb.DB
	heads  [2]head
	chunks map[uint32]chunkInfo
	nextID uint32
}

// head is the append cursor of one tier.
type head struct {
	id    uint32 // the chunk receiving writes
	fill  uint32 // bytes used in that chunk
	count uint32 // chunks created in the tier so far
}

// chunkInfo is the allocation record of one chunk.
type chunkInfo struct {
	tier pool.Tier
	seq  uint32
}

// OpenNodePool opens the pool stored in the given directory, creating an
// empty one if the directory holds none.
func OpenNodePool(directory string) (*NodePool, error) {
	db, err := leveldb.OpenFile(directory, &opt.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open node pool database: %w", err)
	}
	p := &NodePool{db: db, chunks: map[uint32]chunkInfo{}}
	if err := p.loadState(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return p, nil
}

func (p *NodePool) Write(tier pool.Tier, data []byte) (pool.ChunkOffset, error) {
	if len(data) == 0 || len(data) > pool.ChunkSize {
		return pool.InvalidChunkOffset, fmt.Errorf("invalid node size %d", len(data))
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	batch := new(leveldb.Batch)
	h := p.heads[tier]
	nextID := p.nextID
	created := false
	if h.count == 0 || int(h.fill)+len(data) > pool.ChunkSize {
		h = head{id: nextID, fill: 0, count: h.count + 1}
		nextID++
		created = true
		batch.Put(newChunkKey(h.id), encodeChunkInfo(chunkInfo{tier: tier, seq: h.count - 1}))
	}
	offset := h.fill
	key := newNodeKey(h.id, offset)
	batch.Put(key[:], data)
	h.fill += uint32(len(data))
	batch.Put(stateKey, encodeState(nextID, withHead(p.heads, tier, h)))
	if err := p.db.Write(batch, nil); err != nil {
		return pool.InvalidChunkOffset, fmt.Errorf("failed to write node record: %w", err)
	}
	if created {
		p.chunks[h.id] = chunkInfo{tier: tier, seq: h.count - 1}
	}
	p.heads[tier] = h
	p.nextID = nextID
	return pool.NewChunkOffset(h.id, offset), nil
}

// Read returns the record written at the given offset, clamped to length
// bytes. Only offsets returned by Write are addressable, positions inside
// a record are not.
func (p *NodePool) Read(offset pool.ChunkOffset, length int) ([]byte, error) {
	key := newNodeKey(offset.Chunk(), offset.Offset())
	data, err := p.db.Get(key[:], nil)
	if err == leveldb.ErrNotFound {
		return nil, fmt.Errorf("offset %v: %w", offset, pool.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read node record: %w", err)
	}
	if length < len(data) {
		data = data[:length]
	}
	return data, nil
}

func (p *NodePool) Virtualize(offset pool.ChunkOffset) (pool.VirtualOffset, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	info, err := p.resolveChunk(offset.Chunk())
	if err != nil {
		return 0, err
	}
	return pool.NewVirtualOffset(info.seq, offset.Offset()), nil
}

// resolveChunk returns the allocation record of a chunk, faulting it in
// from the database after a reopen. The caller holds the lock.
func (p *NodePool) resolveChunk(id uint32) (chunkInfo, error) {
	if info, exists := p.chunks[id]; exists {
		return info, nil
	}
	data, err := p.db.Get(newChunkKey(id), nil)
	if err == leveldb.ErrNotFound {
		return chunkInfo{}, fmt.Errorf("chunk %d: %w", id, pool.ErrNotFound)
	}
	if err != nil {
		return chunkInfo{}, fmt.Errorf("failed to read chunk %d: %w", id, err)
	}
	info, err := decodeChunkInfo(data)
	if err != nil {
		return chunkInfo{}, err
	}
	p.chunks[id] = info
	return info, nil
}

// Flush forces all written records to disk.
func (p *NodePool) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	batch := new(leveldb.Batch)
	batch.Put(stateKey, encodeState(p.nextID, p.heads))
	if err := p.db.Write(batch, &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("failed to flush node pool: %w", err)
	}
	return nil
}

func (p *NodePool) Close() error {
	if err := p.Flush(); err != nil {
		return err
	}
	return p.db.Close()
}

func (p *NodePool) GetMemoryFootprint() *common.MemoryFootprint {
	p.mu.Lock()
	defer p.mu.Unlock()
	mf := common.NewMemoryFootprint(unsafe.Sizeof(*p))
	chunks := common.NewMemoryFootprint(uintptr(len(p.chunks)) * unsafe.Sizeof(chunkInfo{}))
	chunks.SetNote(fmt.Sprintf("(%d chunk records, database buffers excluded)", len(p.chunks)))
	mf.AddChild("chunks", chunks)
	return mf
}

const stateSize = 4 + 2*12

// loadState restores the allocation cursors of a previous run. A missing
// state record denotes a fresh pool.
func (p *NodePool) loadState() error {
	data, err := p.db.Get(stateKey, nil)
	if err == leveldb.ErrNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load pool state: %w", err)
	}
	if len(data) != stateSize {
		return fmt.Errorf("invalid pool state of %d bytes", len(data))
	}
	p.nextID = uint32Serializer.FromBytes(data[0:4])
	for tier := 0; tier < 2; tier++ {
		base := 4 + tier*12
		p.heads[tier] = head{
			id:    uint32Serializer.FromBytes(data[base : base+4]),
			fill:  uint32Serializer.FromBytes(data[base+4 : base+8]),
			count: uint32Serializer.FromBytes(data[base+8 : base+12]),
		}
	}
	return nil
}

func encodeState(nextID uint32, heads [2]head) []byte {
	data := make([]byte, stateSize)
	uint32Serializer.CopyBytes(nextID, data[0:4])
	for tier := 0; tier < 2; tier++ {
		base := 4 + tier*12
		uint32Serializer.CopyBytes(heads[tier].id, data[base:base+4])
		uint32Serializer.CopyBytes(heads[tier].fill, data[base+4:base+8])
		uint32Serializer.CopyBytes(heads[tier].count, data[base+8:base+12])
	}
	return data
}

func withHead(heads [2]head, tier pool.Tier, h head) [2]head {
	heads[tier] = h
	return heads
}

func encodeChunkInfo(info chunkInfo) []byte {
	data := make([]byte, 5)
	data[0] = byte(info.tier)
	uint32Serializer.CopyBytes(info.seq, data[1:5])
	return data
}

func decodeChunkInfo(data []byte) (chunkInfo, error) {
	if len(data) != 5 {
		return chunkInfo{}, fmt.Errorf("invalid chunk record of %d bytes", len(data))
	}
	return chunkInfo{tier: pool.Tier(data[0]), seq: uint32Serializer.FromBytes(data[1:5])}, nil
}
