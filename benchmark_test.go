// Copyright 2026 The mpmcq Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mpmcq_test

import (
	"testing"

	mpmcq "github.com/noooah2000/lockfree-fifo-queue"
)

// =============================================================================
// Single-Goroutine Baselines
// =============================================================================

func BenchmarkQueue_SingleOp_Leak(b *testing.B) {
	q := mpmcq.New[int](mpmcq.NewLeak())
	h := q.Handle()
	defer h.Close()

	b.ResetTimer()
	for i := range b.N {
		v := i
		h.Enqueue(&v)
		h.Dequeue()
	}
}

func BenchmarkQueue_SingleOp_Hazard(b *testing.B) {
	q := mpmcq.New[int](mpmcq.NewHazard(0))
	h := q.Handle()
	defer h.Close()

	b.ResetTimer()
	for i := range b.N {
		v := i
		h.Enqueue(&v)
		h.Dequeue()
	}
}

func BenchmarkQueue_SingleOp_Epoch(b *testing.B) {
	q := mpmcq.New[int](mpmcq.NewEpoch(0))
	h := q.Handle()
	defer h.Close()

	b.ResetTimer()
	for i := range b.N {
		v := i
		h.Enqueue(&v)
		h.Dequeue()
	}
}

func BenchmarkMutexQueue_SingleOp(b *testing.B) {
	q := mpmcq.NewMutexQueue[int]()

	b.ResetTimer()
	for i := range b.N {
		v := i
		q.Enqueue(&v)
		q.Dequeue()
	}
}

// BenchmarkQueue_SingleOp_Borrowed measures the queue-level convenience
// methods, which borrow a handle per call.
func BenchmarkQueue_SingleOp_Borrowed(b *testing.B) {
	q := mpmcq.New[int](mpmcq.NewHazard(0))

	b.ResetTimer()
	for i := range b.N {
		v := i
		q.Enqueue(&v)
		q.Dequeue()
	}
}

// =============================================================================
// Contended Benchmarks
// =============================================================================

func benchmarkContended(b *testing.B, newRec func() mpmcq.Reclaimer) {
	q := mpmcq.New[int](newRec())

	b.RunParallel(func(pb *testing.PB) {
		h := q.Handle()
		defer h.Close()
		i := 0
		for pb.Next() {
			v := i
			h.Enqueue(&v)
			h.Dequeue()
			i++
		}
	})
}

func BenchmarkQueue_Contended_Leak(b *testing.B) {
	benchmarkContended(b, func() mpmcq.Reclaimer { return mpmcq.NewLeak() })
}

func BenchmarkQueue_Contended_Hazard(b *testing.B) {
	benchmarkContended(b, func() mpmcq.Reclaimer { return mpmcq.NewHazard(0) })
}

func BenchmarkQueue_Contended_Epoch(b *testing.B) {
	benchmarkContended(b, func() mpmcq.Reclaimer { return mpmcq.NewEpoch(0) })
}

func BenchmarkMutexQueue_Contended(b *testing.B) {
	q := mpmcq.NewMutexQueue[int]()

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			v := i
			q.Enqueue(&v)
			q.Dequeue()
			i++
		}
	})
}
