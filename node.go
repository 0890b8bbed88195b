// Copyright 2026 The mpmcq Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mpmcq

import (
	"sync"
	"unsafe"

	"code.hybscloud.com/atomix"
)

const (
	// localCacheCap bounds the number of free slots a Handle keeps before
	// flushing a batch back to the global list.
	localCacheCap = 128

	// cacheBatch is the number of slots moved per refill or flush.
	cacheBatch = 32
)

// poisonNext marks the link of a free slot. The Handle's enqueue and
// dequeue loops treat a link holding this value as a failed revalidation
// and retry, so a traversal that reaches a recycled node through a stale
// pointer never follows it.
const poisonNext = ^uintptr(0)

// node is one slot of the linked list. A slot is live-sentinel while head
// or tail points at it, live-payload while linked behind the sentinel, and
// retired once unlinked and handed to a reclaimer. Ownership moves
// pool → producer → list → consumer → reclaimer → pool.
type node[T any] struct {
	next  atomix.Uintptr
	value T
}

func nodeOf[T any](p uintptr) *node[T] {
	return (*node[T])(unsafe.Pointer(p))
}

func nodeRef[T any](n *node[T]) uintptr {
	return uintptr(unsafe.Pointer(n))
}

// Pool hands out raw node slots. The fast path is a per-Handle cache; the
// slow path moves batches against the mutex-protected global list.
//
// The pool never returns memory to the runtime: list links and hazard
// slots store uintptr values the garbage collector cannot trace, so every
// slot ever created stays anchored in the arena. Slots only move between
// the live list, reclaimer retire lists, Handle caches, and the global
// free list.
type Pool[T any] struct {
	mu      sync.Mutex
	free    []*node[T]
	arena   []*node[T]
	freeLen atomix.Int64 // mirror of len(free) for the unlocked pre-check
}

// NewPool creates an empty pool.
func NewPool[T any]() *Pool[T] {
	return &Pool[T]{}
}

// fresh allocates a batch of new slots, anchors them in the arena, and
// returns them. Called for the initial sentinel, and when the local cache
// is empty and the global list holds fewer than a batch of slots.
func (p *Pool[T]) fresh(n int) []*node[T] {
	batch := make([]*node[T], n)
	for i := range batch {
		s := &node[T]{}
		s.next.StoreRelaxed(poisonNext)
		batch[i] = s
	}
	p.mu.Lock()
	p.arena = append(p.arena, batch...)
	p.mu.Unlock()
	return batch
}

// grab moves up to max slots from the global list into dst.
func (p *Pool[T]) grab(dst []*node[T], max int) []*node[T] {
	p.mu.Lock()
	n := min(max, len(p.free))
	if n > 0 {
		dst = append(dst, p.free[len(p.free)-n:]...)
		clear(p.free[len(p.free)-n:])
		p.free = p.free[:len(p.free)-n]
		p.freeLen.StoreRelaxed(int64(len(p.free)))
	}
	p.mu.Unlock()
	return dst
}

// give moves slots onto the global list.
func (p *Pool[T]) give(src []*node[T]) {
	if len(src) == 0 {
		return
	}
	p.mu.Lock()
	p.free = append(p.free, src...)
	p.freeLen.StoreRelaxed(int64(len(p.free)))
	p.mu.Unlock()
}

// release returns a single retired slot to the global list. This is the
// type-erased deleter target: reclaimers may run it on any goroutine,
// long after the owning queue is gone.
func (p *Pool[T]) release(n *node[T]) {
	var zero T
	n.value = zero
	n.next.StoreRelaxed(poisonNext)
	p.give([]*node[T]{n})
}

// GlobalLen reports the current length of the global free list.
func (p *Pool[T]) GlobalLen() int {
	return int(p.freeLen.LoadRelaxed())
}

// ArenaLen reports how many slots the pool has created in total.
func (p *Pool[T]) ArenaLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.arena)
}

// cache is the per-Handle free list.
type cache[T any] struct {
	pool *Pool[T]
	free []*node[T]
}

// get pops a slot: local cache first, then a batch from the global list if
// the unlocked length check says a batch is worth the lock, then a fresh
// arena batch.
func (c *cache[T]) get() *node[T] {
	if len(c.free) == 0 {
		if c.pool.freeLen.LoadRelaxed() >= cacheBatch {
			c.free = c.pool.grab(c.free, cacheBatch)
		}
		if len(c.free) == 0 {
			c.free = append(c.free, c.pool.fresh(cacheBatch)...)
		}
	}
	n := c.free[len(c.free)-1]
	c.free[len(c.free)-1] = nil
	c.free = c.free[:len(c.free)-1]
	return n
}

// put pushes a slot locally, flushing a batch to the global list when the
// cache is full. The value is zeroed so the collector can take whatever it
// referenced, and the link is poisoned.
func (c *cache[T]) put(n *node[T]) {
	var zero T
	n.value = zero
	n.next.StoreRelaxed(poisonNext)
	if len(c.free) >= localCacheCap {
		cut := len(c.free) - cacheBatch
		c.pool.give(c.free[cut:])
		clear(c.free[cut:])
		c.free = c.free[:cut]
	}
	c.free = append(c.free, n)
}

// drain migrates every cached slot to the global list. Called on Handle
// close so short-lived goroutines do not strand slots.
func (c *cache[T]) drain() {
	c.pool.give(c.free)
	c.free = nil
}
