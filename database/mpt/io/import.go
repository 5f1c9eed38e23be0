// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package io

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/0xsoniclabs/triedb/database/mpt"
	"github.com/golang/snappy"
)

// Import reads a dump produced by Export from the given reader and
// reconstructs the node tree it describes. The caller owns the resulting
// tree. A dump of an empty tree yields a nil root.
func Import(ctx context.Context, logger *Log, in io.Reader) (*mpt.Node, error) {
	reader := snappy.NewReader(in)

	magic := make([]byte, len(dumpMagic))
	if _, err := io.ReadFull(reader, magic); err != nil {
		return nil, fmt.Errorf("failed to read dump magic number: %w", err)
	}
	if !bytes.Equal(magic, dumpMagic) {
		return nil, fmt.Errorf("not a node tree dump")
	}
	var version [1]byte
	if _, err := io.ReadFull(reader, version[:]); err != nil {
		return nil, fmt.Errorf("failed to read dump format version: %w", err)
	}
	if version[0] != dumpFormatVersion {
		return nil, fmt.Errorf("unsupported dump format version %d, supported is %d", version[0], dumpFormatVersion)
	}
	var count [8]byte
	if _, err := io.ReadFull(reader, count[:]); err != nil {
		return nil, fmt.Errorf("failed to read node count: %w", err)
	}
	numNodes := binary.LittleEndian.Uint64(count[:])

	logger.Printf("Importing %d nodes ...", numNodes)
	progress := logger.NewProgressTracker("imported %d nodes, %.2f nodes/s", progressStep)

	var root *mpt.Node
	if numNodes > 0 {
		remaining := numNodes
		node, err := readSubTree(ctx, reader, &remaining, progress)
		if err != nil {
			return nil, err
		}
		if remaining != 0 {
			return nil, fmt.Errorf("dump announced %d nodes but its tree holds %d", numNodes, numNodes-remaining)
		}
		root = node
	}

	var tail [1]byte
	if _, err := io.ReadFull(reader, tail[:]); err != io.EOF {
		return nil, fmt.Errorf("unexpected content after the last node of the dump")
	}
	return root, nil
}

// readSubTree reads one node and, directed by its child mask, the full
// subtrees below it. remaining is decremented once per node and guards
// against dumps announcing fewer nodes than their tree references.
func readSubTree(ctx context.Context, reader io.Reader, remaining *uint64, progress *ProgressLogger) (*mpt.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if *remaining == 0 {
		return nil, fmt.Errorf("dump announced fewer nodes than its tree references")
	}
	*remaining--

	node, err := readNode(reader)
	if err != nil {
		return nil, err
	}
	progress.Step(1)

	it := mpt.NewChildIterator(node.Mask())
	for {
		index, _, ok := it.Next()
		if !ok {
			return node, nil
		}
		child, err := readSubTree(ctx, reader, remaining, progress)
		if err != nil {
			node.Release()
			return nil, err
		}
		node.SetChild(index, child)
	}
}

// readNode reads a single serialized node record, leading size prefix
// included, and deserializes it.
func readNode(reader io.Reader) (*mpt.Node, error) {
	var prefix [mpt.DiskSizeBytes]byte
	if _, err := io.ReadFull(reader, prefix[:]); err != nil {
		return nil, fmt.Errorf("failed to read node size: %w", err)
	}
	size := binary.LittleEndian.Uint32(prefix[:])
	if size < mpt.MinDiskSize || size > mpt.MaxDiskSize {
		return nil, fmt.Errorf("invalid node size %d in dump", size)
	}
	buffer := make([]byte, size)
	copy(buffer, prefix[:])
	if _, err := io.ReadFull(reader, buffer[mpt.DiskSizeBytes:]); err != nil {
		return nil, fmt.Errorf("failed to read node data: %w", err)
	}
	return mpt.DeserializeNode(buffer), nil
}
