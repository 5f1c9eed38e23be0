// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package common

import (
	"encoding/hex"
	"hash"
	"sync"

	"golang.org/x/crypto/sha3"
)

// HashSize is the number of bytes of a Hash.
const HashSize = 32

// Hash is a 32-byte cryptographic digest.
type Hash [HashSize]byte

func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// hasherPool recycles keccak256 instances to avoid per-call allocations on
// hot hashing paths.
var hasherPool = sync.Pool{
	New: func() any {
		return sha3.NewLegacyKeccak256()
	},
}

// Keccak256 computes the keccak256 hash of the given data.
func Keccak256(data []byte) Hash {
	hasher := hasherPool.Get().(hash.Hash)
	hasher.Reset()
	var res Hash
	hasher.Write(data)
	hasher.Sum(res[0:0])
	hasherPool.Put(hasher)
	return res
}

// Keccak256Parts computes the keccak256 hash of the concatenation of the
// given byte slices without materializing the concatenation.
func Keccak256Parts(parts ...[]byte) Hash {
	hasher := hasherPool.Get().(hash.Hash)
	hasher.Reset()
	var res Hash
	for _, part := range parts {
		hasher.Write(part)
	}
	hasher.Sum(res[0:0])
	hasherPool.Put(hasher)
	return res
}
