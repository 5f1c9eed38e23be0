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
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUintSerializer_SizesMatchTheTypeWidth(t *testing.T) {
	require := require.New(t)
	require.Equal(1, UintSerializer[uint8]{}.Size())
	require.Equal(2, UintSerializer[uint16]{}.Size())
	require.Equal(4, UintSerializer[uint32]{}.Size())
	require.Equal(8, UintSerializer[uint64]{}.Size())
}

func TestUintSerializer_RoundTrips(t *testing.T) {
	require := require.New(t)

	serializer := UintSerializer[uint64]{}
	for _, value := range []uint64{0, 1, 255, 256, 1<<32 - 1, 1 << 32, 1<<64 - 1} {
		encoded := serializer.ToBytes(value)
		require.Len(encoded, 8)
		require.Equal(value, serializer.FromBytes(encoded))
	}
}

func TestUintSerializer_EncodingIsBigEndian(t *testing.T) {
	require := require.New(t)

	require.Equal([]byte{0x01, 0x02, 0x03, 0x04}, UintSerializer[uint32]{}.ToBytes(0x01020304))

	out := make([]byte, 2)
	UintSerializer[uint16]{}.CopyBytes(0xbeef, out)
	require.Equal([]byte{0xbe, 0xef}, out)
}

func TestUintSerializer_ByteOrderFollowsNumericOrder(t *testing.T) {
	require := require.New(t)

	serializer := UintSerializer[uint32]{}
	values := []uint32{0, 1, 255, 256, 65535, 1 << 20, 1<<32 - 1}
	for i := 1; i < len(values); i++ {
		a := serializer.ToBytes(values[i-1])
		b := serializer.ToBytes(values[i])
		require.Negative(bytes.Compare(a, b), "%d vs %d", values[i-1], values[i])
	}
}
