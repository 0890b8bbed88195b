// Copyright 2026 The mpmcq Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mpmcq

import (
	"sync"
	"unsafe"

	"code.hybscloud.com/atomix"
)

// pad is cache line padding to prevent false sharing.
type pad [64]byte

// Queue is an unbounded MPMC FIFO of the Michael & Scott variety.
//
// Producers link nodes behind the tail, consumers unlink at the head
// sentinel; both make progress through compare-and-swap, never locks.
// The reclaimer chosen at construction decides when an unlinked node may
// be recycled.
//
// Guarantees:
//   - per-producer FIFO (two enqueues by one goroutine are consumed in
//     program order); no total order across producers
//   - every successfully enqueued element is consumed exactly once by a
//     draining consumer set
//   - Close is monotonic; Enqueue after Close returns ErrClosed
//
// Queue-level Enqueue/Dequeue borrow a participation token per call. For
// hot loops, bind a token per goroutine with Handle instead.
type Queue[T any] struct {
	_       pad
	head    atomix.Uintptr // sentinel *node[T]; its value is already consumed
	_       pad
	tail    atomix.Uintptr // newest linked *node[T], may lag by one link
	_       pad
	closed  atomix.Bool
	_       pad
	rec     Reclaimer
	pool    *Pool[T]
	free    func(unsafe.Pointer) // type-erased deleter passed to Retire
	handles sync.Pool            // borrowed *Handle[T] for queue-level calls
}

// New creates an empty queue using the given reclamation policy.
// The reclaimer must outlive the queue and every Handle bound to it.
func New[T any](r Reclaimer) *Queue[T] {
	if r == nil {
		panic("mpmcq: nil reclaimer")
	}
	q := &Queue[T]{rec: r, pool: NewPool[T]()}
	pool := q.pool
	q.free = func(p unsafe.Pointer) {
		pool.release((*node[T])(p))
	}
	dummy := pool.fresh(1)[0]
	dummy.next.StoreRelaxed(0)
	q.head.Store(nodeRef(dummy))
	q.tail.Store(nodeRef(dummy))
	q.handles.New = func() any { return q.Handle() }
	return q
}

// Handle binds a participation token and an allocation cache for the
// calling goroutine. A Handle is not safe for concurrent use; close it
// when the goroutine is done so cached slots migrate back to the pool.
func (q *Queue[T]) Handle() *Handle[T] {
	return &Handle[T]{
		q:     q,
		guard: q.rec.Acquire(),
		cache: cache[T]{pool: q.pool},
	}
}

// Enqueue appends an element. Returns ErrClosed if Close was observed
// during the attempt; the element is dropped and its slot recycled.
func (q *Queue[T]) Enqueue(elem *T) error {
	h := q.handles.Get().(*Handle[T])
	err := h.Enqueue(elem)
	q.handles.Put(h)
	return err
}

// Dequeue removes and returns the oldest element.
// Returns (zero, ErrWouldBlock) when no payload is linked. Never blocks.
func (q *Queue[T]) Dequeue() (T, error) {
	h := q.handles.Get().(*Handle[T])
	v, err := h.Dequeue()
	q.handles.Put(h)
	return v, err
}

// Close permanently rejects new elements. Elements already linked remain
// consumable; producers past their link CAS complete normally. Idempotent.
func (q *Queue[T]) Close() {
	q.closed.StoreRelease(true)
}

// IsClosed reports whether Close has been called.
func (q *Queue[T]) IsClosed() bool {
	return q.closed.LoadAcquire()
}

// Quiescent hints that the calling goroutine is outside any critical
// region, letting the reclaimer scan or advance.
func (q *Queue[T]) Quiescent() {
	h := q.handles.Get().(*Handle[T])
	h.Quiescent()
	q.handles.Put(h)
}

// Pool exposes the node pool for introspection.
func (q *Queue[T]) Pool() *Pool[T] {
	return q.pool
}
