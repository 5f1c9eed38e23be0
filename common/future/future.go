// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package future provides single-use promise/future pairs over channels, the
// handshake used to hand results out of background goroutines.
//
// The producing side creates the pair, starts its work and fulfills the
// promise when done:
//
//	promise, res := future.Create[T]()
//	go func() {
//		promise.Fulfill(work())
//	}()
//	return res
//
// The consuming side blocks in Await when it needs the value. Each future
// delivers exactly one value to exactly one consumer.
package future

// Promise is the producing end of the pair. It must be fulfilled exactly
// once.
type Promise[T any] struct {
	C chan<- T
}

// Future is the consuming end of the pair, a placeholder for a value still
// being produced.
type Future[T any] struct {
	C <-chan T
}

// Create returns a connected promise/future pair.
func Create[T any]() (Promise[T], Future[T]) {
	ch := make(chan T, 1)
	return Promise[T]{C: ch}, Future[T]{C: ch}
}

// Immediate returns an already fulfilled future, for producers that happen
// to have the value at hand.
func Immediate[T any](value T) Future[T] {
	ch := make(chan T, 1)
	ch <- value
	close(ch)
	return Future[T]{C: ch}
}

// Fulfill delivers the value to the connected future. The channel is
// buffered, so fulfilling never blocks.
func (p Promise[T]) Fulfill(value T) {
	p.C <- value
	close(p.C)
}

// Await blocks until the value is delivered and returns it. A future can be
// awaited once.
func (f Future[T]) Await() T {
	return <-f.C
}

// Then derives a future holding the transformed value of the given one. The
// transformation runs in a background goroutine and consumes the input
// future.
func Then[A, B any](f Future[A], transform func(A) B) Future[B] {
	promise, res := Create[B]()
	go func() {
		promise.Fulfill(transform(f.Await()))
	}()
	return res
}
