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

import "fmt"

// FlushAndCloser is implemented by components holding resources that need to
// be written out and released at shutdown. Close implies a final Flush.
type FlushAndCloser interface {
	// Flush writes all unsaved state to disk.
	Flush() error
	// Close flushes and releases held resources. The component must not be
	// used afterwards.
	Close() error
}

// MapEntry is a key-value pair produced when iterating map-like containers.
type MapEntry[K any, V any] struct {
	Key K
	Val V
}

func (e MapEntry[K, V]) String() string {
	return fmt.Sprintf("Entry: %v -> %v", e.Key, e.Val)
}
