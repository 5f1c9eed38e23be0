// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/0xsoniclabs/triedb/common/interrupt"
	"github.com/0xsoniclabs/triedb/database/mpt"
	"github.com/0xsoniclabs/triedb/database/mpt/io"
)

var VerifyDumpCmd = cli.Command{
	Action:    addDiagnostics(doVerifyDump),
	Name:      "verify-dump",
	Usage:     "reads a node tree dump and verifies its integrity",
	ArgsUsage: "<dump-file>",
}

func doVerifyDump(context *cli.Context) error {
	if context.Args().Len() != 1 {
		return fmt.Errorf("missing dump file parameter")
	}
	path := context.Args().Get(0)

	logger := io.NewLog()
	ctx := interrupt.CancelOnInterrupt(context.Context)

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	root, err := io.Import(ctx, logger, file)
	if err != nil {
		return err
	}
	if root == nil {
		logger.Printf("the dump holds an empty tree")
		return nil
	}
	defer root.Release()

	numNodes, err := verifyTree(ctx, root, mpt.MerkleCompute{})
	if err != nil {
		return err
	}
	logger.Printf("verified %d nodes, the dump is consistent", numNodes)
	return nil
}

// verifyTree walks the tree and checks each parent's per-child records
// against a recomputation from the child itself.
func verifyTree(ctx context.Context, node *mpt.Node, compute mpt.Compute) (int, error) {
	if interrupt.IsCancelled(ctx) {
		return 0, interrupt.ErrCanceled
	}
	count := 1
	for i, n := 0, node.NumChildren(); i < n; i++ {
		child := node.Child(i)
		if child == nil {
			return 0, fmt.Errorf("tree misses the child at index %d", i)
		}
		if got, want := node.ChildData(i), compute.ComputeNode(child); !bytes.Equal(got, want) {
			return 0, fmt.Errorf("child data mismatch at index %d", i)
		}
		if got, want := node.SubtrieMinVersion(i), child.CalcMinVersion(); got != want {
			return 0, fmt.Errorf("subtree version mismatch at index %d, got %d, want %d", i, got, want)
		}
		sub, err := verifyTree(ctx, child, compute)
		if err != nil {
			return 0, err
		}
		count += sub
	}
	return count, nil
}
