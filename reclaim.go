// Copyright 2026 The mpmcq Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mpmcq

import "unsafe"

// Reclaimer is the safe-memory-reclamation capability a Queue is
// parameterised over at construction. A Reclaimer must outlive every Guard
// acquired from it; one Reclaimer may serve several queues.
//
// Variants:
//
//	NewLeak()       no-op baseline (retired slots are abandoned)
//	NewHazard(n)    hazard pointers
//	NewEpoch(n)     epoch-based reclamation
//	NewImmediate()  unsafe baseline: recycles at retire (ABA demonstration)
type Reclaimer interface {
	// Acquire registers the calling goroutine and returns its
	// participation token. A Guard is not safe for concurrent use.
	Acquire() Guard
}

// Guard is a per-goroutine participation token.
//
// Every queue operation runs between Pin and Unpin. Protections published
// inside the region are withdrawn by Unpin, never earlier: a protection
// left across a CAS retry is harmless because the next ProtectAt on the
// same slot overwrites it.
type Guard interface {
	// Pin marks the start of a critical region.
	Pin()

	// Unpin ends the critical region and withdraws every protection
	// published since Pin.
	Unpin()

	// ProtectAt publishes p in the given protection slot, announcing an
	// impending dereference. May be a no-op for policies that do not
	// track readers.
	ProtectAt(slot int, p unsafe.Pointer)

	// Retire claims reclamation responsibility for p. The caller
	// guarantees p has been unlinked from every shared structure. free
	// returns the slot to its pool; it must remain callable after the
	// owning queue itself is unreachable, because retirement can outlive
	// the queue.
	Retire(p unsafe.Pointer, free func(unsafe.Pointer))

	// Quiescent hints that the goroutine currently holds no references
	// into shared state. Policies use it to scan or advance.
	Quiescent()

	// Release withdraws the goroutine from participation. The Guard must
	// not be used afterwards.
	Release()
}

// leak is the no-op policy: retired slots are abandoned. It isolates the
// queue algorithm from reclaimer correctness — a linearization violation
// observed under leak is a queue bug, not an SMR bug — and doubles as the
// infinite-memory throughput baseline.
type leak struct{}

type leakGuard struct{}

// NewLeak returns the no-op reclaimer.
func NewLeak() Reclaimer { return leak{} }

func (leak) Acquire() Guard { return leakGuard{} }

func (leakGuard) Pin()                                        {}
func (leakGuard) Unpin()                                      {}
func (leakGuard) ProtectAt(int, unsafe.Pointer)               {}
func (leakGuard) Retire(unsafe.Pointer, func(unsafe.Pointer)) {}
func (leakGuard) Quiescent()                                  {}
func (leakGuard) Release()                                    {}

// immediate recycles a slot the moment it is retired, while other
// goroutines may still hold stale pointers into it. This is the ABA
// vector the real policies exist to close.
//
// NOT a production reclaimer. It is kept as a benchmark baseline and so
// the correctness harness can demonstrate that its stress tests are sharp
// enough to catch the bug class.
type immediate struct{}

type immediateGuard struct{}

// NewImmediate returns the deliberately unsafe recycle-at-retire
// reclaimer. See the type comment before using it anywhere.
func NewImmediate() Reclaimer { return immediate{} }

func (immediate) Acquire() Guard { return immediateGuard{} }

func (immediateGuard) Pin()                          {}
func (immediateGuard) Unpin()                        {}
func (immediateGuard) ProtectAt(int, unsafe.Pointer) {}

func (immediateGuard) Retire(p unsafe.Pointer, free func(unsafe.Pointer)) {
	free(p)
}

func (immediateGuard) Quiescent() {}
func (immediateGuard) Release()   {}
