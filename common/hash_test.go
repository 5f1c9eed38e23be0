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
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeccak256_KnownVectors(t *testing.T) {
	require := require.New(t)

	require.Equal(
		"0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470",
		Keccak256(nil).String())
	require.Equal(
		"0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470",
		Keccak256([]byte{}).String())
	require.Equal(
		"0x4e03657aea45a94fc7d47ba826c8d667c0d1e6e33a64a036ec44f58fa12d6c45",
		Keccak256([]byte("abc")).String())
}

func TestKeccak256_PartsMatchTheConcatenation(t *testing.T) {
	require := require.New(t)

	require.Equal(Keccak256([]byte("abc")), Keccak256Parts([]byte("a"), []byte("bc")))
	require.Equal(Keccak256(nil), Keccak256Parts())
	require.Equal(Keccak256([]byte("xy")), Keccak256Parts([]byte("xy"), nil))
}

func TestKeccak256_PooledHashersDoNotLeakState(t *testing.T) {
	require := require.New(t)

	want := Keccak256([]byte("stable"))
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if Keccak256([]byte("stable")) != want {
					t.Error("hash result changed under concurrency")
					return
				}
			}
		}()
	}
	wg.Wait()
	require.Equal(want, Keccak256([]byte("stable")))
}
