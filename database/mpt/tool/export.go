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
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/holiman/uint256"
	"github.com/urfave/cli/v2"

	"github.com/0xsoniclabs/triedb/common/interrupt"
	"github.com/0xsoniclabs/triedb/database/mpt"
	"github.com/0xsoniclabs/triedb/database/mpt/io"
)

var ExportCmd = cli.Command{
	Action:    addDiagnostics(doExport),
	Name:      "export",
	Usage:     "writes a deterministically generated node tree to a dump file",
	ArgsUsage: "<target-file>",
	Flags: []cli.Flag{
		&numAccountsFlag,
		&seedFlag,
	},
}

func doExport(context *cli.Context) error {
	if context.Args().Len() != 1 {
		return fmt.Errorf("missing target file parameter")
	}
	path := context.Args().Get(0)
	seed := context.Int64(seedFlag.Name)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	numAccounts := context.Int(numAccountsFlag.Name)
	if numAccounts <= 0 {
		numAccounts = 100
	}

	logger := io.NewLog()
	ctx := interrupt.CancelOnInterrupt(context.Context)

	rnd := rand.New(rand.NewSource(seed))
	supply := uint256.NewInt(0)
	root, _ := buildBlockTree(rnd, mpt.MerkleCompute{}, numAccounts, 1, supply)
	defer root.Release()

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	logger.Printf("exporting a tree of %d accounts, seed %d, supply %s", numAccounts, seed, supply)
	if err := io.Export(ctx, logger, root, file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
