// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package result bundles a value and an error into one type, for places
// where Go's two-value convention does not fit: channels, futures and other
// containers carrying outcomes of operations that may have failed.
package result

// Result is the outcome of an operation yielding a T: either a value or an
// error, never both. The zero Result is a successful zero value.
type Result[T any] struct {
	value T
	err   error
}

// Ok wraps a successful value.
func Ok[T any](value T) Result[T] {
	return Result[T]{value: value}
}

// Err wraps a failure.
func Err[T any](err error) Result[T] {
	return Result[T]{err: err}
}

// Of converts a conventional value/error pair into a Result. A non-nil error
// discards the value.
func Of[T any](value T, err error) Result[T] {
	if err != nil {
		return Err[T](err)
	}
	return Ok(value)
}

// Get unpacks the Result into the conventional value/error pair, forcing the
// caller to handle the error.
func (r Result[T]) Get() (T, error) {
	return r.value, r.err
}

// IsErr reports whether the Result holds an error.
func (r Result[T]) IsErr() bool {
	return r.err != nil
}
