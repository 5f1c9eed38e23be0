// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/0xsoniclabs/triedb/backend/pool"
	"github.com/0xsoniclabs/triedb/common"

	_ "github.com/mattn/go-sqlite3"
)

// NodePool is a SQLite backed implementation of the node pool, storing one
// record per row keyed by chunk id and in-chunk offset. Chunk allocation
// follows the same per-tier append cursors as the in-memory pool; every
// record is committed together with the updated cursors, so a reopened pool
// continues appending where it stopped and never reuses an offset.
type NodePool struct {
	mu     sync.Mutex
	db     *sql.DB
	heads  [2]head
	chunks map[uint32]chunkInfo
	nextID uint32

	insertNode  *sql.Stmt
	selectNode  *sql.Stmt
	insertChunk *sql.Stmt
	selectChunk *sql.Stmt
	updateState *sql.Stmt
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

const schema = `
CREATE TABLE IF NOT EXISTS nodes (
	chunk INTEGER NOT NULL,
	pos INTEGER NOT NULL,
	data BLOB NOT NULL,
	PRIMARY KEY (chunk, pos)
) WITHOUT ROWID;
CREATE TABLE IF NOT EXISTS chunks (
	id INTEGER PRIMARY KEY,
	tier INTEGER NOT NULL,
	seq INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS state (
	id INTEGER PRIMARY KEY CHECK (id = 0),
	next_id INTEGER NOT NULL,
	fast_id INTEGER NOT NULL, fast_fill INTEGER NOT NULL, fast_count INTEGER NOT NULL,
	slow_id INTEGER NOT NULL, slow_fill INTEGER NOT NULL, slow_count INTEGER NOT NULL
);
`

// OpenNodePool opens the pool stored in the given database file, creating
// an empty one if the file holds none.
func OpenNodePool(path string) (*NodePool, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open node pool database: %w", err)
	}
	p := &NodePool{db: db, chunks: map[uint32]chunkInfo{}}
	if err := p.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return p, nil
}

func (p *NodePool) init() error {
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := p.db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to configure database: %w", err)
		}
	}
	if _, err := p.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	var err error
	if p.insertNode, err = p.db.Prepare(
		"INSERT INTO nodes (chunk, pos, data) VALUES (?, ?, ?)"); err != nil {
		return err
	}
	if p.selectNode, err = p.db.Prepare(
		"SELECT data FROM nodes WHERE chunk = ? AND pos = ?"); err != nil {
		return err
	}
	if p.insertChunk, err = p.db.Prepare(
		"INSERT INTO chunks (id, tier, seq) VALUES (?, ?, ?)"); err != nil {
		return err
	}
	if p.selectChunk, err = p.db.Prepare(
		"SELECT tier, seq FROM chunks WHERE id = ?"); err != nil {
		return err
	}
	if p.updateState, err = p.db.Prepare(
		`INSERT INTO state (id, next_id, fast_id, fast_fill, fast_count, slow_id, slow_fill, slow_count)
		 VALUES (0, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			next_id = excluded.next_id,
			fast_id = excluded.fast_id, fast_fill = excluded.fast_fill, fast_count = excluded.fast_count,
			slow_id = excluded.slow_id, slow_fill = excluded.slow_fill, slow_count = excluded.slow_count`); err != nil {
		return err
	}
	return p.loadState()
}

// loadState restores the allocation cursors of a previous run. A missing
// state row denotes a fresh pool.
func (p *NodePool) loadState() error {
	row := p.db.QueryRow(
		"SELECT next_id, fast_id, fast_fill, fast_count, slow_id, slow_fill, slow_count FROM state WHERE id = 0")
	err := row.Scan(
		&p.nextID,
		&p.heads[pool.FastTier].id, &p.heads[pool.FastTier].fill, &p.heads[pool.FastTier].count,
		&p.heads[pool.SlowTier].id, &p.heads[pool.SlowTier].fill, &p.heads[pool.SlowTier].count)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load pool state: %w", err)
	}
	return nil
}

func (p *NodePool) Write(tier pool.Tier, data []byte) (pool.ChunkOffset, error) {
	if len(data) == 0 || len(data) > pool.ChunkSize {
		return pool.InvalidChunkOffset, fmt.Errorf("invalid node size %d", len(data))
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	tx, err := p.db.Begin()
	if err != nil {
		return pool.InvalidChunkOffset, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	h := p.heads[tier]
	created := false
	if h.count == 0 || int(h.fill)+len(data) > pool.ChunkSize {
		h = head{id: p.nextID, fill: 0, count: h.count + 1}
		created = true
		if _, err := tx.Stmt(p.insertChunk).Exec(int64(h.id), int64(tier), int64(h.count-1)); err != nil {
			return pool.InvalidChunkOffset, fmt.Errorf("failed to create chunk: %w", err)
		}
	}
	offset := h.fill
	if _, err := tx.Stmt(p.insertNode).Exec(int64(h.id), int64(offset), data); err != nil {
		return pool.InvalidChunkOffset, fmt.Errorf("failed to write node record: %w", err)
	}
	h.fill += uint32(len(data))

	heads := p.heads
	heads[tier] = h
	nextID := p.nextID
	if created {
		nextID++
	}
	if _, err := tx.Stmt(p.updateState).Exec(
		int64(nextID),
		int64(heads[pool.FastTier].id), int64(heads[pool.FastTier].fill), int64(heads[pool.FastTier].count),
		int64(heads[pool.SlowTier].id), int64(heads[pool.SlowTier].fill), int64(heads[pool.SlowTier].count)); err != nil {
		return pool.InvalidChunkOffset, fmt.Errorf("failed to update pool state: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return pool.InvalidChunkOffset, fmt.Errorf("failed to commit node record: %w", err)
	}

	if created {
		p.chunks[h.id] = chunkInfo{tier: tier, seq: h.count - 1}
	}
	p.heads = heads
	p.nextID = nextID
	return pool.NewChunkOffset(h.id, offset), nil
}

// Read returns the record written at the given offset, clamped to length
// bytes. Only offsets returned by Write are addressable, positions inside
// a record are not.
func (p *NodePool) Read(offset pool.ChunkOffset, length int) ([]byte, error) {
	var data []byte
	err := p.selectNode.QueryRow(int64(offset.Chunk()), int64(offset.Offset())).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
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
	var tier, seq int64
	err := p.selectChunk.QueryRow(int64(id)).Scan(&tier, &seq)
	if errors.Is(err, sql.ErrNoRows) {
		return chunkInfo{}, fmt.Errorf("chunk %d: %w", id, pool.ErrNotFound)
	}
	if err != nil {
		return chunkInfo{}, fmt.Errorf("failed to read chunk %d: %w", id, err)
	}
	info := chunkInfo{tier: pool.Tier(tier), seq: uint32(seq)}
	p.chunks[id] = info
	return info, nil
}

// Flush moves all committed records from the write-ahead log into the
// database file.
func (p *NodePool) Flush() error {
	if _, err := p.db.Exec("PRAGMA wal_checkpoint(FULL)"); err != nil {
		return fmt.Errorf("failed to flush node pool: %w", err)
	}
	return nil
}

func (p *NodePool) Close() error {
	if err := p.Flush(); err != nil {
		return err
	}
	for _, stmt := range []*sql.Stmt{
		p.insertNode, p.selectNode, p.insertChunk, p.selectChunk, p.updateState,
	} {
		if stmt != nil {
			_ = stmt.Close()
		}
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
