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
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
	sysmem "github.com/pbnjay/memory"
	"github.com/urfave/cli/v2"

	"github.com/0xsoniclabs/triedb/backend/pool"
	"github.com/0xsoniclabs/triedb/backend/pool/ldb"
	"github.com/0xsoniclabs/triedb/backend/pool/memory"
	"github.com/0xsoniclabs/triedb/backend/pool/sqlite"
	"github.com/0xsoniclabs/triedb/common"
	"github.com/0xsoniclabs/triedb/common/interrupt"
	"github.com/0xsoniclabs/triedb/database/mpt"
	"github.com/0xsoniclabs/triedb/database/mpt/io"
)

var StressTestCmd = cli.Command{
	Action: addDiagnostics(stressTest),
	Name:   "stress-test",
	Usage:  "builds, flushes, and re-reads randomized node trees until stopped",
	Flags: []cli.Flag{
		&numBlocksFlag,
		&numAccountsFlag,
		&backendFlag,
		&tmpDirFlag,
		&reportPeriodFlag,
		&seedFlag,
	},
}

var (
	numBlocksFlag = cli.IntFlag{
		Name:  "num-blocks",
		Usage: "the number of blocks to build and flush",
		Value: 1000,
	}
	numAccountsFlag = cli.IntFlag{
		Name:  "num-accounts",
		Usage: "the number of accounts placed in each block",
		Value: 100,
	}
	backendFlag = cli.StringFlag{
		Name:  "backend",
		Usage: "the node pool backend, one of memory, leveldb, sqlite",
		Value: "memory",
	}
	tmpDirFlag = cli.StringFlag{
		Name:  "tmp-dir",
		Usage: "the directory to place the node store in",
	}
	reportPeriodFlag = cli.DurationFlag{
		Name:  "report-period",
		Usage: "the time between progress reports",
		Value: 10 * time.Second,
	}
	seedFlag = cli.Int64Flag{
		Name:  "seed",
		Usage: "the seed for the random generator, 0 derives one from the current time",
		Value: 0,
	}
)

// account is the payload stored in leaf values during the stress test.
type account struct {
	Nonce    uint64
	Balance  []byte
	CodeHash []byte
}

// sample remembers one account per block for the read-back phase.
type sample struct {
	key     common.Hash
	value   []byte
	version int64
}

func stressTest(context *cli.Context) error {
	numBlocks := context.Int(numBlocksFlag.Name)
	if numBlocks <= 0 {
		numBlocks = 1000
	}
	numAccounts := context.Int(numAccountsFlag.Name)
	if numAccounts <= 0 {
		numAccounts = 100
	}
	seed := context.Int64(seedFlag.Name)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	tmpDir := context.String(tmpDirFlag.Name)
	if tmpDir == "" {
		tmpDir = os.TempDir()
	}
	if _, err := os.Stat(tmpDir); err != nil {
		return fmt.Errorf("invalid temporary directory %s: %w", tmpDir, err)
	}
	dir, err := os.MkdirTemp(tmpDir, "triedb-stress-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary directory: %w", err)
	}
	logger := io.NewLog()
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			logger.Printf("failed to clean up %s: %v", dir, err)
		}
	}()

	backend := context.String(backendFlag.Name)
	source, err := openNodePool(backend, dir)
	if err != nil {
		return err
	}
	defer source.Close()

	logger.Printf("stress-testing %s backend in %s, seed %d, system memory %d MiB",
		backend, dir, seed, sysmem.TotalMemory()/(1<<20))

	ctx := interrupt.CancelOnInterrupt(context.Context)
	rnd := rand.New(rand.NewSource(seed))
	flusher := mpt.NewFlusher(source, mpt.FlusherConfig{})
	compute := mpt.MerkleCompute{}

	roots := make([]pool.ChunkOffset, 0, numBlocks)
	samples := make([]sample, 0, numBlocks)
	totalSupply := uint256.NewInt(0)
	reportPeriod := context.Duration(reportPeriodFlag.Name)
	lastReport := time.Now()
	start := time.Now()

	for block := 0; block < numBlocks; block++ {
		if interrupt.IsCancelled(ctx) {
			logger.Printf("interrupted, stopping after %d blocks", block)
			break
		}
		version := int64(block + 1)
		root, probe := buildBlockTree(rnd, compute, numAccounts, version, totalSupply)

		// Odd blocks land in the slow tier to exercise both allocators.
		tier := pool.FastTier
		if block%2 == 1 {
			tier = pool.SlowTier
		}
		offset, err := flusher.Flush(root, tier)
		root.Release()
		if err != nil {
			return fmt.Errorf("failed to flush block %d: %w", block, err)
		}
		roots = append(roots, offset)
		samples = append(samples, probe)

		if time.Since(lastReport) >= reportPeriod {
			rate := float64(block+1) / time.Since(start).Seconds()
			free, _ := getFreeSpace(dir)
			logger.Printf("block %d, %.1f blocks/s, heap %d MiB, disk %d MiB, free %d MiB",
				block, rate, getMemoryUsage()/(1<<20), getDirectorySize(dir)/(1<<20), free/(1<<20))
			lastReport = time.Now()
		}
	}

	logger.Printf("flushed %d blocks, total supply %s, verifying samples", len(roots), totalSupply)

	cache := mpt.NewNodeCache(source, mpt.NodeCacheConfig{})
	for block, root := range roots {
		if interrupt.IsCancelled(ctx) {
			logger.Printf("interrupted, stopping after %d verified blocks", block)
			break
		}
		if err := verifySample(cache, root, samples[block]); err != nil {
			return fmt.Errorf("block %d: %w", block, err)
		}
	}
	hits, misses := cache.Stats()
	logger.Printf("verification done, cache served %d hits and %d misses", hits, misses)
	return nil
}

func openNodePool(backend, directory string) (pool.NodePool, error) {
	switch backend {
	case "memory":
		return memory.NewNodePool(), nil
	case "leveldb":
		return ldb.OpenNodePool(filepath.Join(directory, "leveldb"))
	case "sqlite":
		return sqlite.OpenNodePool(filepath.Join(directory, "sqlite.db"))
	}
	return nil, fmt.Errorf("unknown backend %q, supported are memory, leveldb, and sqlite", backend)
}

// buildBlockTree assembles a two-level tree of account leaves grouped by the
// first two nibbles of their hashed address. Group collisions are skipped.
// Balances of placed accounts are added to the given supply, and one placed
// account is returned as the block's read-back sample.
func buildBlockTree(rnd *rand.Rand, compute mpt.Compute, numAccounts int,
	version int64, supply *uint256.Int) (*mpt.Node, sample) {
	type leaf struct {
		node *mpt.Node
		key  common.Hash
	}
	var groups [mpt.MaxChildren]map[mpt.Nibble]leaf
	var probe sample
	placed := 0
	for i := 0; i < numAccounts; i++ {
		var addr [20]byte
		rnd.Read(addr[:])
		key := common.Keccak256(addr[:])
		nibbles := mpt.NibblesFromBytes(key[:])
		n1, n2 := nibbles.Get(0), nibbles.Get(1)
		if groups[n1] == nil {
			groups[n1] = map[mpt.Nibble]leaf{}
		}
		if _, exists := groups[n1][n2]; exists {
			continue
		}

		balance := uint256.NewInt(rnd.Uint64())
		code := common.Keccak256(addr[:8])
		value, err := rlp.EncodeToBytes(account{
			Nonce:    rnd.Uint64(),
			Balance:  balance.Bytes(),
			CodeHash: code[:],
		})
		if err != nil {
			panic(fmt.Sprintf("failed to encode account: %v", err))
		}

		node := mpt.MakeNode(0, nil, nibbles.Suffix(2), value, 0, version)
		groups[n1][n2] = leaf{node: node, key: key}
		supply.Add(supply, balance)
		placed++
		if rnd.Intn(placed) == 0 {
			probe = sample{key: key, value: value, version: version}
		}
	}

	var rootMask uint16
	rootChildren := make([]mpt.ChildData, 0, mpt.MaxChildren)
	for n1 := 0; n1 < mpt.MaxChildren; n1++ {
		group := groups[n1]
		if len(group) == 0 {
			continue
		}
		var mask uint16
		children := make([]mpt.ChildData, 0, len(group))
		for n2 := 0; n2 < mpt.MaxChildren; n2++ {
			entry, ok := group[mpt.Nibble(n2)]
			if !ok {
				continue
			}
			mask |= 1 << n2
			child := mpt.NewChildData()
			child.Branch = mpt.Nibble(n2)
			child.Finalize(entry.node, compute, false)
			children = append(children, child)
		}
		inner := mpt.CreateNodeWithChildren(compute, mask, children, mpt.NibblesView{}, nil, version)
		rootMask |= 1 << n1
		child := mpt.NewChildData()
		child.Branch = mpt.Nibble(n1)
		child.Finalize(inner, compute, false)
		rootChildren = append(rootChildren, child)
	}
	return mpt.CreateNodeWithChildren(compute, rootMask, rootChildren, mpt.NibblesView{}, nil, version), probe
}

// verifySample descends from the given root to the sampled account and checks
// the leaf content against the record taken at build time.
func verifySample(cache *mpt.NodeCache, root pool.ChunkOffset, probe sample) error {
	node, err := cache.GetOrLoad(root)
	if err != nil {
		return fmt.Errorf("failed to load root: %w", err)
	}
	nibbles := mpt.NibblesFromBytes(probe.key[:])
	for depth := 0; depth < 2; depth++ {
		branch := nibbles.Get(depth)
		if !node.HasChild(branch) {
			return fmt.Errorf("missing child at nibble %v, depth %d", branch, depth)
		}
		i := node.ToChildIndex(branch)
		child, err := cache.GetOrLoad(node.ChildOffset(i))
		if err != nil {
			return fmt.Errorf("failed to load child at depth %d: %w", depth, err)
		}
		node = child
	}
	if got, want := node.Path(), nibbles.Suffix(2); !got.Equal(want) {
		return fmt.Errorf("leaf path mismatch, got %v, want %v", got, want)
	}
	if !bytes.Equal(node.Value(), probe.value) {
		return fmt.Errorf("leaf value mismatch for key %v", probe.key)
	}
	if got, want := node.Version(), probe.version; got != want {
		return fmt.Errorf("leaf version mismatch, got %d, want %d", got, want)
	}
	return nil
}

func getMemoryUsage() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.Alloc
}

func getDirectorySize(directory string) int64 {
	var size int64
	_ = filepath.Walk(directory, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size
}

func getFreeSpace(path string) (int64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return int64(stat.Bavail) * stat.Bsize, nil
}
