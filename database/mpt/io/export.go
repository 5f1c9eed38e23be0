// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package io provides dump streams for moving node trees between
// processes. A dump is a snappy-framed stream holding a magic number, a
// format version, a node count, and the serialized node records of the
// tree in pre-order, children in branch order. Dumps are self-contained
// and can be imported into an empty store.
package io

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/0xsoniclabs/triedb/database/mpt"
	"github.com/golang/snappy"
)

// dumpMagic identifies node tree dump streams produced by Export.
var dumpMagic = []byte("triedb-node-dump")

// dumpFormatVersion is the version of the dump format produced by Export.
// Import rejects streams written in any other version.
const dumpFormatVersion = byte(1)

const progressStep = 1_000_000

// Export writes the node tree rooted in the given node to the given
// writer, in a compressed stream readable by Import. The tree must be
// fully resident, nodes with unloaded children cannot be exported. A nil
// root denotes an empty tree and produces a valid, empty dump. The tree
// is not modified.
func Export(ctx context.Context, logger *Log, root *mpt.Node, out io.Writer) error {
	numNodes := uint64(0)
	if root != nil {
		if err := visitPreOrder(root, func(*mpt.Node) error {
			numNodes++
			return nil
		}); err != nil {
			return err
		}
	}

	writer := snappy.NewBufferedWriter(out)
	if _, err := writer.Write(dumpMagic); err != nil {
		return err
	}
	if _, err := writer.Write([]byte{dumpFormatVersion}); err != nil {
		return err
	}
	var count [8]byte
	binary.LittleEndian.PutUint64(count[:], numNodes)
	if _, err := writer.Write(count[:]); err != nil {
		return err
	}

	logger.Printf("Exporting %d nodes ...", numNodes)
	progress := logger.NewProgressTracker("exported %d nodes, %.2f nodes/s", progressStep)
	if root != nil {
		err := visitPreOrder(root, func(node *mpt.Node) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := writer.Write(mpt.SerializeNode(&node.NodeBase)); err != nil {
				return err
			}
			progress.Step(1)
			return nil
		})
		if err != nil {
			return err
		}
	}
	return writer.Close()
}

// visitPreOrder calls visit on every node of the tree rooted in the given
// node, parents before children, children in ascending branch order. The
// walk fails if a child listed in a node's mask is not resident.
func visitPreOrder(node *mpt.Node, visit func(*mpt.Node) error) error {
	if err := visit(node); err != nil {
		return err
	}
	it := mpt.NewChildIterator(node.Mask())
	for {
		index, branch, ok := it.Next()
		if !ok {
			return nil
		}
		child := node.Child(index)
		if child == nil {
			return fmt.Errorf("cannot export node with unloaded child at nibble %v", branch)
		}
		if err := visitPreOrder(child, visit); err != nil {
			return err
		}
	}
}
