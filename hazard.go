// Copyright 2026 The mpmcq Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mpmcq

import (
	"slices"
	"sync"
	"unsafe"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

const (
	// hazardSlots is the number of protection slots per record. The M&S
	// queue needs at most two live protections plus one spare.
	hazardSlots = 3

	// defaultHazardThreshold triggers a scan once a record's retire list
	// reaches this length.
	defaultHazardThreshold = 128
)

// retiredEntry pairs an unlinked slot with its type-erased deleter.
type retiredEntry struct {
	ptr  unsafe.Pointer
	free func(unsafe.Pointer)
}

// Hazard implements hazard-pointer reclamation.
//
// Each participating goroutine publishes the addresses it is about to
// dereference in the slots of its record; a retired slot is freed only
// when a scan of every record finds no protection on it.
//
// Records are strung on a grow-only list: released records keep their
// place and are re-acquired by later goroutines. A record released with
// retired slots still pending hands them to its next acquirer, whose
// scans reclaim them.
type Hazard struct {
	_         pad
	records   atomix.Uintptr // head *hazardRecord of the grow-only list
	_         pad
	threshold int

	mu   sync.Mutex
	keep []*hazardRecord // GC anchor: the list itself is uintptr-linked
}

// NewHazard creates a hazard-pointer reclaimer. threshold is the retire
// list length that triggers a scan; <= 0 selects the default.
func NewHazard(threshold int) *Hazard {
	if threshold <= 0 {
		threshold = defaultHazardThreshold
	}
	return &Hazard{threshold: threshold}
}

// Threshold reports the scan trigger length.
func (hz *Hazard) Threshold() int {
	return hz.threshold
}

// Acquire claims a released record, or links a new one at the list head.
func (hz *Hazard) Acquire() Guard {
	for r := hz.head(); r != nil; r = r.next {
		if !r.acquired.LoadAcquire() && r.acquired.CompareAndSwapAcqRel(false, true) {
			return r
		}
	}

	r := &hazardRecord{hz: hz}
	r.acquired.Store(true)
	hz.mu.Lock()
	hz.keep = append(hz.keep, r)
	hz.mu.Unlock()

	sw := spin.Wait{}
	for {
		head := hz.records.LoadAcquire()
		r.next = (*hazardRecord)(unsafe.Pointer(head))
		if hz.records.CompareAndSwapAcqRel(head, uintptr(unsafe.Pointer(r))) {
			return r
		}
		sw.Once()
	}
}

func (hz *Hazard) head() *hazardRecord {
	return (*hazardRecord)(unsafe.Pointer(hz.records.LoadAcquire()))
}

// Outstanding reports how many retired slots are pending across all
// records. Intended for tests and diagnostics; the count is approximate
// while operations are in flight.
func (hz *Hazard) Outstanding() int {
	total := 0
	for r := hz.head(); r != nil; r = r.next {
		total += len(r.retired)
	}
	return total
}

// hazardRecord is one goroutine's protection slots plus its retire list.
// Records are never freed; acquired flips as goroutines come and go.
type hazardRecord struct {
	slots    [hazardSlots]atomix.Uintptr
	acquired atomix.Bool
	next     *hazardRecord // immutable once linked
	retired  []retiredEntry
	hz       *Hazard
	_        pad
}

func (r *hazardRecord) Pin() {}

// Unpin withdraws every protection published during the operation.
// Withdrawing once on exit, rather than per retry, keeps the invariant
// that no stale protection survives an operation while sparing the fence
// per loop iteration.
func (r *hazardRecord) Unpin() {
	for i := range r.slots {
		r.slots[i].StoreRelease(0)
	}
}

// ProtectAt publishes p with sequential consistency. The full fence
// orders the publication before the caller's revalidating reload of the
// source: a reclaimer that scans after the reload misses p only if p was
// already unreachable, in which case the revalidation fails and the
// caller retries.
func (r *hazardRecord) ProtectAt(slot int, p unsafe.Pointer) {
	r.slots[slot].Store(uintptr(p))
}

// Retire appends to the record's retire list and scans past the
// threshold.
func (r *hazardRecord) Retire(p unsafe.Pointer, free func(unsafe.Pointer)) {
	r.retired = append(r.retired, retiredEntry{ptr: p, free: free})
	if len(r.retired) >= r.hz.threshold {
		r.scan()
	}
}

// Quiescent withdraws this record's protections and scans.
func (r *hazardRecord) Quiescent() {
	for i := range r.slots {
		r.slots[i].StoreRelease(0)
	}
	r.scan()
}

// Release scans once more and surrenders the record. Entries still
// protected stay on the record for the next acquirer.
func (r *hazardRecord) Release() {
	r.scan()
	for i := range r.slots {
		r.slots[i].StoreRelease(0)
	}
	r.acquired.StoreRelease(false)
}

// scan collects every protection published by acquired records, then
// partitions the retire list: protected entries stay, the rest are freed.
func (r *hazardRecord) scan() {
	var hazards []uintptr
	for rec := r.hz.head(); rec != nil; rec = rec.next {
		if !rec.acquired.Load() {
			continue
		}
		for i := range rec.slots {
			if p := rec.slots[i].Load(); p != 0 {
				hazards = append(hazards, p)
			}
		}
	}
	slices.Sort(hazards)

	kept := r.retired[:0]
	for _, e := range r.retired {
		if _, found := slices.BinarySearch(hazards, uintptr(e.ptr)); found {
			kept = append(kept, e)
		} else {
			e.free(e.ptr)
		}
	}
	clear(r.retired[len(kept):])
	r.retired = kept
}
