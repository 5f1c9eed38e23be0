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
	"github.com/0xsoniclabs/triedb/common"
)

// tableSpace separates the key spaces sharing one database.
type tableSpace byte

const (
	// nodeSpace holds node records keyed by chunk id and in-chunk offset.
	nodeSpace tableSpace = 'N'
	// chunkSpace holds the allocation record of every created chunk.
	chunkSpace tableSpace = 'C'
	// metaSpace holds the pool's allocation cursors.
	metaSpace tableSpace = 'M'
)

const nodeKeySize = 1 + 4 + 4

// nodeKey addresses one node record, a table space byte followed by the
// big-endian chunk id and in-chunk offset. Big-endian fields keep the
// database iteration order aligned with allocation order.
type nodeKey [nodeKeySize]byte

var uint32Serializer = common.UintSerializer[uint32]{}

func newNodeKey(chunk uint32, offset uint32) nodeKey {
	var k nodeKey
	k[0] = byte(nodeSpace)
	uint32Serializer.CopyBytes(chunk, k[1:5])
	uint32Serializer.CopyBytes(offset, k[5:9])
	return k
}

func newChunkKey(chunk uint32) []byte {
	k := make([]byte, 5)
	k[0] = byte(chunkSpace)
	uint32Serializer.CopyBytes(chunk, k[1:5])
	return k
}

// stateKey addresses the single record holding the allocation cursors.
var stateKey = []byte{byte(metaSpace), 's'}
