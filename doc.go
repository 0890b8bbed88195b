// Copyright 2026 The mpmcq Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package mpmcq provides an unbounded multi-producer multi-consumer FIFO
// queue with pluggable safe memory reclamation.
//
// The queue is a non-blocking linked list of the Michael & Scott variety:
// producers link nodes behind an atomic tail, consumers unlink at an
// atomic head sentinel, and both make progress through compare-and-swap
// rather than locks. Unlinked nodes are handed to a reclamation policy
// chosen at construction, which decides when a node may be recycled
// without another goroutine still holding a stale pointer into it:
//
//   - Leak:      retired nodes are abandoned (correctness baseline)
//   - Hazard:    hazard pointers (per-goroutine published protections)
//   - Epoch:     epoch-based reclamation (generation counting)
//   - Immediate: recycle at retire — deliberately unsafe, benchmark only
//
// # Quick Start
//
//	q := mpmcq.New[Event](mpmcq.NewHazard(0))
//
//	v := Event{ID: 42}
//	err := q.Enqueue(&v)
//	if mpmcq.IsClosed(err) {
//	    // Queue was closed - value was dropped
//	}
//
//	elem, err := q.Dequeue()
//	if mpmcq.IsWouldBlock(err) {
//	    // Queue is empty - try again later
//	}
//
// # Handles
//
// Queue-level Enqueue/Dequeue borrow a participation token per call from
// an internal pool. Goroutines on a hot path should bind one explicitly:
//
//	h := q.Handle()
//	defer h.Close()
//	for job := range work {
//	    for h.Enqueue(&job) != nil {
//	        // queue closed
//	        return
//	    }
//	}
//
// A Handle carries the reclaimer participation token and a local node
// cache, which is what makes the operation fast paths allocation- and
// lock-free. A Handle belongs to one goroutine; Close it when done so
// cached slots migrate back to the shared pool.
//
// # Common Patterns
//
// Work distribution (many producers, many consumers):
//
//	rec := mpmcq.NewEpoch(0)
//	q := mpmcq.New[Task](rec)
//
//	for range producers {
//	    go func() {
//	        h := q.Handle()
//	        defer h.Close()
//	        for task := range source {
//	            if h.Enqueue(&task) != nil {
//	                return // closed
//	            }
//	        }
//	    }()
//	}
//
//	for range consumers {
//	    go func() {
//	        h := q.Handle()
//	        defer h.Close()
//	        backoff := iox.Backoff{}
//	        for {
//	            task, err := h.Dequeue()
//	            if err != nil {
//	                if q.IsClosed() {
//	                    return // drained and closed
//	                }
//	                backoff.Wait()
//	                continue
//	            }
//	            backoff.Reset()
//	            process(task)
//	        }
//	    }()
//	}
//
// Graceful shutdown:
//
//	q.Close()          // producers start seeing ErrClosed
//	                   // consumers drain whatever is already linked
//
// Close is monotonic and idempotent. Producers that already linked their
// node complete normally; producers that observe the flag mid-attempt
// return ErrClosed and recycle the node they allocated.
//
// # Choosing a Reclaimer
//
// Hazard pointers bound unreclaimed memory tightly (at most threshold
// retired nodes per participant) but pay a sequentially consistent store
// per pointer dereference. Epoch-based reclamation makes the read side
// nearly free but a single stalled participant delays reclamation for
// everyone. Leak is for correctness isolation: a linearization violation
// observed under Leak is a queue bug, not a reclamation bug.
//
// One Reclaimer may serve several queues. The Reclaimer must outlive
// every Guard acquired from it and every queue built on it.
//
// # Ordering Guarantees
//
//   - Per-producer FIFO: two enqueues by the same goroutine are consumed
//     in program order. No total order across producers.
//   - Every successfully enqueued element is consumed exactly once by a
//     consumer set that drains the queue.
//   - After Close returns, every subsequent Enqueue returns ErrClosed.
//
// # Error Handling
//
// All operations are non-blocking and report conditions as error values:
//
//	elem, err := q.Dequeue()
//	switch {
//	case err == nil:
//	    // got an element
//	case mpmcq.IsWouldBlock(err):
//	    // empty - retry, backoff, or stop if closed
//	}
//
//	if err := q.Enqueue(&v); mpmcq.IsClosed(err) {
//	    // rejected - the value was dropped
//	}
//
// ErrWouldBlock and ErrClosed are control flow signals, not failures;
// IsSemantic reports true for both.
//
// # Race Detector
//
// The queue's synchronization is expressed through atomix explicit-order
// atomics, which the race detector cannot model across variables. Stress
// tests consult the RaceEnabled constant and skip themselves under
// `go test -race`; single-goroutine tests run either way.
//
// # Dependencies
//
//   - code.hybscloud.com/atomix: typed atomics with explicit memory-order
//     method variants
//   - code.hybscloud.com/spin: CPU pause/yield escalation for CAS retry
//     loops
//   - code.hybscloud.com/iox: would-block error semantics and adaptive
//     backoff
package mpmcq
