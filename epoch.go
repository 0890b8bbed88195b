// Copyright 2026 The mpmcq Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mpmcq

import (
	"sync"
	"unsafe"

	"code.hybscloud.com/atomix"
)

// defaultEpochThreshold triggers an advance attempt once a bucket reaches
// this length.
const defaultEpochThreshold = 64

// Epoch implements epoch-based reclamation.
//
// A single global epoch advances monotonically. Each context publishes
// the epoch it entered at plus an active flag; retired slots are bucketed
// by retirement epoch modulo 3 and freed once the global epoch is two
// generations past them. No active context can still hold a pointer that
// old, so the free needs no per-pointer bookkeeping — the cost profile is
// the inverse of hazard pointers.
type Epoch struct {
	_         pad
	epoch     atomix.Uint64
	_         pad
	threshold int

	mu   sync.Mutex // registry of contexts; advance try-locks it
	ctxs []*epochContext
}

// NewEpoch creates an epoch reclaimer. threshold is the bucket length
// that triggers an advance attempt; <= 0 selects the default.
func NewEpoch(threshold int) *Epoch {
	if threshold <= 0 {
		threshold = defaultEpochThreshold
	}
	return &Epoch{threshold: threshold}
}

// Threshold reports the advance trigger length.
func (e *Epoch) Threshold() int {
	return e.threshold
}

// GlobalEpoch reports the current global epoch.
func (e *Epoch) GlobalEpoch() uint64 {
	return e.epoch.Load()
}

// Acquire registers a fresh context for the calling goroutine.
func (e *Epoch) Acquire() Guard {
	c := &epochContext{e: e}
	e.mu.Lock()
	e.ctxs = append(e.ctxs, c)
	e.mu.Unlock()
	return c
}

// advance attempts to move the global epoch forward. The registry lock is
// only tried: contention means another goroutine is already advancing, so
// there is nothing useful to wait for.
func (e *Epoch) advance() {
	if !e.mu.TryLock() {
		return
	}
	defer e.mu.Unlock()

	snapshot := e.epoch.Load()
	for _, c := range e.ctxs {
		if c.active.Load() && c.localEpoch.Load() != snapshot {
			// A straggler is still inside an older generation.
			return
		}
	}
	e.epoch.Store(snapshot + 1)
}

// epochContext is one goroutine's view: last observed epoch, active flag,
// and three retire buckets indexed by epoch mod 3.
type epochContext struct {
	localEpoch atomix.Uint64
	active     atomix.Bool
	_          pad
	buckets    [3][]retiredEntry
	e          *Epoch
}

// Pin enters the critical region: observe the global epoch, then publish
// the active flag with sequential consistency so no later load of shared
// state reorders above the publication.
func (c *epochContext) Pin() {
	c.localEpoch.StoreRelaxed(c.e.epoch.LoadRelaxed())
	c.active.Store(true)
}

// Unpin leaves the critical region.
func (c *epochContext) Unpin() {
	c.active.StoreRelease(false)
}

// ProtectAt is a no-op: epochs protect whole generations, not addresses.
func (c *epochContext) ProtectAt(int, unsafe.Pointer) {}

// Retire buckets the slot under the current epoch, attempts an advance at
// the threshold, and opportunistically frees the safe bucket.
func (c *epochContext) Retire(p unsafe.Pointer, free func(unsafe.Pointer)) {
	idx := c.e.epoch.LoadRelaxed() % 3
	c.buckets[idx] = append(c.buckets[idx], retiredEntry{ptr: p, free: free})
	if len(c.buckets[idx]) >= c.e.threshold {
		c.e.advance()
	}
	c.reclaimSafe()
}

// reclaimSafe frees the bucket two generations behind the global epoch.
// Bucket (global+1) mod 3 holds entries retired at global-2; any context
// still active has observed at least global-1, so nothing can reference
// them.
func (c *epochContext) reclaimSafe() {
	safe := (c.e.epoch.LoadRelaxed() + 1) % 3
	b := c.buckets[safe]
	if len(b) == 0 {
		return
	}
	for _, entry := range b {
		entry.free(entry.ptr)
	}
	clear(b)
	c.buckets[safe] = b[:0]
}

// Quiescent marks the context inactive, attempts an advance, and frees
// the safe bucket.
func (c *epochContext) Quiescent() {
	c.active.StoreRelease(false)
	c.e.advance()
	c.reclaimSafe()
}

// Release unregisters the context and drains all three buckets. The
// goroutine no longer participates, so its pending retirements cannot be
// re-protected; the caller must have stopped touching the queue first.
func (c *epochContext) Release() {
	c.active.StoreRelease(false)

	e := c.e
	e.mu.Lock()
	for i, reg := range e.ctxs {
		if reg == c {
			e.ctxs = append(e.ctxs[:i], e.ctxs[i+1:]...)
			break
		}
	}
	e.mu.Unlock()

	for i := range c.buckets {
		for _, entry := range c.buckets[i] {
			entry.free(entry.ptr)
		}
		c.buckets[i] = nil
	}
}

// Outstanding reports how many retired slots are pending across all
// registered contexts. Intended for tests and diagnostics.
func (e *Epoch) Outstanding() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	total := 0
	for _, c := range e.ctxs {
		for i := range c.buckets {
			total += len(c.buckets[i])
		}
	}
	return total
}
