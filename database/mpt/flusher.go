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

	"github.com/0xsoniclabs/triedb/backend/pool"
	"github.com/0xsoniclabs/triedb/common/future"
	"github.com/0xsoniclabs/triedb/common/result"
)

// FlusherConfig tunes subtree flushes.
type FlusherConfig struct {
	// KeepResident retains written children in their parents instead of
	// releasing them once their storage offset is recorded.
	KeepResident bool
}

// Flusher writes owned subtrees to a node pool, bottom-up. Children are
// written before their parents so that every parent serializes with the final
// storage offsets of its children in place. The offset recorded in the parent
// carries the child's page count in its spare bits, and the minimum location
// across the child's written subtree is folded into the parent's offset
// minima.
//
// A flush mutates the subtree's parent slots; per the single-writer model it
// must not run concurrently with other accesses to the same subtree.
type Flusher struct {
	source pool.NodePool
	config FlusherConfig
}

// NewFlusher creates a flusher writing to the given pool.
func NewFlusher(source pool.NodePool, config FlusherConfig) *Flusher {
	return &Flusher{source: source, config: config}
}

// Flush writes the subtree rooted in the given node to the given tier and
// returns the root's assigned offset, page count in the spare bits. Unless
// configured otherwise, written children are released; the root stays with
// the caller.
func (f *Flusher) Flush(root *Node, tier pool.Tier) (pool.ChunkOffset, error) {
	if root == nil {
		return pool.InvalidChunkOffset, fmt.Errorf("cannot flush a nil node")
	}
	var rootOffset pool.ChunkOffset
	var tasks []*task

	var collect func(node *Node, parent *Node, index int) *task
	collect = func(node *Node, parent *Node, index int) *task {
		var childTasks []*task
		for i, child := range node.next {
			if child != nil {
				childTasks = append(childTasks, collect(child, node, i))
			}
		}
		t := newTask(func() error {
			return f.writeNode(node, parent, index, tier, &rootOffset)
		}, len(childTasks))
		for _, childTask := range childTasks {
			childTask.parentTask = t
		}
		tasks = append(tasks, t)
		return t
	}
	collect(root, nil, 0)

	if err := runTasks(tasks); err != nil {
		return pool.InvalidChunkOffset, err
	}
	return rootOffset, nil
}

// FlushAsync runs Flush in the background and returns a future holding the
// root's offset or the encountered error.
func (f *Flusher) FlushAsync(root *Node, tier pool.Tier) future.Future[result.Result[pool.ChunkOffset]] {
	promise, res := future.Create[result.Result[pool.ChunkOffset]]()
	go func() {
		promise.Fulfill(result.Of(f.Flush(root, tier)))
	}()
	return res
}

func (f *Flusher) writeNode(node *Node, parent *Node, index int, tier pool.Tier, rootOffset *pool.ChunkOffset) error {
	image := SerializeNode(&node.NodeBase)
	offset, err := f.source.Write(tier, image)
	if err != nil {
		return fmt.Errorf("failed to write node: %w", err)
	}
	pages := pageSpan(offset, uint32(len(image)))
	tagged := offset.WithSpare(EncodeDiskPages(pages).Spare())

	if parent == nil {
		*rootOffset = tagged
		return nil
	}

	virtual, err := f.source.Virtualize(offset)
	if err != nil {
		return fmt.Errorf("failed to resolve write order of %v: %w", offset, err)
	}
	// The subtree minimum folded into the parent's slot covers the node's own
	// location and its slots, which by now hold the minima of the already
	// written descendants.
	folded := virtual.Compact()

	parent.SetChildOffset(index, tagged)
	switch tier {
	case pool.FastTier:
		for i, n := 0, node.NumChildren(); i < n; i++ {
			if m := node.MinOffsetFast(i); m < folded {
				folded = m
			}
		}
		if current := parent.MinOffsetFast(index); folded < current {
			parent.SetMinOffsetFast(index, folded)
		}
	case pool.SlowTier:
		for i, n := 0, node.NumChildren(); i < n; i++ {
			if m := node.MinOffsetSlow(i); m < folded {
				folded = m
			}
		}
		if current := parent.MinOffsetSlow(index); folded < current {
			parent.SetMinOffsetSlow(index, folded)
		}
	}

	if !f.config.KeepResident {
		parent.SetChild(index, nil)
		node.Release()
	}
	return nil
}

// pageSpan returns the number of pages the written image touches, counted
// from the page containing its first byte.
func pageSpan(offset pool.ChunkOffset, size uint32) uint32 {
	start := offset.Offset() % pool.PageSize
	return (start + size + pool.PageSize - 1) / pool.PageSize
}
