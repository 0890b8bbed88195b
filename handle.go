// Copyright 2026 The mpmcq Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mpmcq

import (
	"unsafe"

	"code.hybscloud.com/spin"
)

// Handle is a queue endpoint bound to one goroutine. It carries the
// reclaimer participation token and the local slot cache, which is what
// makes the operation fast paths allocation- and lock-free.
type Handle[T any] struct {
	q     *Queue[T]
	guard Guard
	cache cache[T]
}

// Enqueue appends an element behind the tail.
// Returns ErrClosed if Close was observed during the attempt; the slot
// allocated for the element goes back to the cache.
func (h *Handle[T]) Enqueue(elem *T) error {
	q := h.q
	g := h.guard
	g.Pin()
	defer g.Unpin()

	if q.closed.LoadAcquire() {
		return ErrClosed
	}

	n := h.cache.get()
	n.next.StoreRelaxed(0)
	n.value = *elem
	np := nodeRef(n)

	sw := spin.Wait{}
	for {
		t := q.tail.LoadAcquire()
		g.ProtectAt(0, unsafe.Pointer(t))
		// The protection is visible only after the store above; a tail
		// recheck confirms the node was not retired in the window.
		if q.tail.LoadAcquire() != t {
			sw.Once()
			continue
		}
		if q.closed.LoadAcquire() {
			h.cache.put(n)
			return ErrClosed
		}
		next := nodeOf[T](t).next.LoadAcquire()
		if next == poisonNext {
			// t was recycled out from under us through a stale pointer.
			sw.Once()
			continue
		}
		if q.tail.LoadAcquire() != t {
			sw.Once()
			continue
		}
		if next == 0 {
			if nodeOf[T](t).next.CompareAndSwapAcqRel(0, np) {
				// Swing tail; losing this CAS means someone helped.
				q.tail.CompareAndSwapAcqRel(t, np)
				return nil
			}
		} else {
			// Tail lags. Help it forward before retrying.
			q.tail.CompareAndSwapAcqRel(t, next)
		}
		sw.Once()
	}
}

// Dequeue removes and returns the oldest element.
// Returns (zero, ErrWouldBlock) when head.next is nil. Never blocks.
func (h *Handle[T]) Dequeue() (T, error) {
	var zero T
	q := h.q
	g := h.guard
	g.Pin()
	defer g.Unpin()

	sw := spin.Wait{}
	for {
		hd := q.head.LoadAcquire()
		g.ProtectAt(0, unsafe.Pointer(hd))
		if q.head.LoadAcquire() != hd {
			sw.Once()
			continue
		}
		t := q.tail.LoadAcquire()
		next := nodeOf[T](hd).next.LoadAcquire()
		if next == poisonNext {
			// hd was recycled out from under us through a stale pointer.
			sw.Once()
			continue
		}
		if next == 0 {
			return zero, ErrWouldBlock
		}
		g.ProtectAt(1, unsafe.Pointer(next))
		if q.head.LoadAcquire() != hd {
			sw.Once()
			continue
		}
		if hd == t {
			// Tail lags behind a linked node; push it forward.
			q.tail.CompareAndSwapAcqRel(t, next)
			sw.Once()
			continue
		}
		// Copy out before the CAS: once head moves to next, a rival
		// dequeuer may take next as its sentinel and retire it.
		v := nodeOf[T](next).value
		if q.head.CompareAndSwapAcqRel(hd, next) {
			g.Retire(unsafe.Pointer(hd), q.free)
			return v, nil
		}
		sw.Once()
	}
}

// Quiescent hints that this goroutine holds no references into the queue.
func (h *Handle[T]) Quiescent() {
	h.guard.Quiescent()
}

// Close migrates cached slots to the global pool and releases the
// participation token. The Handle must not be used afterwards.
func (h *Handle[T]) Close() {
	h.cache.drain()
	h.guard.Release()
	h.guard = nil
	h.q = nil
}
