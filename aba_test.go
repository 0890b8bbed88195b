// Copyright 2026 The mpmcq Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mpmcq_test

import (
	"sync"
	"testing"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	mpmcq "github.com/noooah2000/lockfree-fifo-queue"
)

// abaWorkload runs producers x consumers x itemsPerProd through q and
// reports the inconsistencies it observed: lost values, duplicated
// values, and per-producer order violations. Used both to demonstrate
// that the Immediate baseline is broken and that the real policies are
// not — on the identical workload.
func abaWorkload(t *testing.T, q *mpmcq.Queue[int], numP, numC, itemsPerProd int) (lost, duplicated, reordered int) {
	t.Helper()

	var wg sync.WaitGroup
	expectedTotal := numP * itemsPerProd
	seen := make([]atomix.Int32, expectedTotal)
	var consumed atomix.Int64
	var orderViolations atomix.Int64
	var spurious atomix.Int64

	var prodWg sync.WaitGroup
	var prodDone atomix.Bool
	for p := range numP {
		prodWg.Add(1)
		go func(id int) {
			defer prodWg.Done()
			h := q.Handle()
			defer h.Close()
			for i := range itemsPerProd {
				v := id*1000000 + i
				if err := h.Enqueue(&v); err != nil {
					return
				}
			}
		}(p)
	}

	deadline := time.Now().Add(60 * time.Second)
	for range numC {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h := q.Handle()
			defer h.Close()
			lastSeq := make([]int, numP)
			for i := range lastSeq {
				lastSeq[i] = -1
			}
			backoff := iox.Backoff{}
			idleSince := time.Time{}
			for consumed.Load() < int64(expectedTotal) {
				if time.Now().After(deadline) {
					return
				}
				v, err := h.Dequeue()
				if err != nil {
					// Lost values mean the total may never be reached;
					// once producers are done and the queue stays dry,
					// there is nothing left to observe.
					if prodDone.Load() {
						if idleSince.IsZero() {
							idleSince = time.Now()
						} else if time.Since(idleSince) > time.Second {
							return
						}
					}
					backoff.Wait()
					continue
				}
				idleSince = time.Time{}
				backoff.Reset()
				consumed.Add(1)
				producerID := v / 1000000
				seq := v % 1000000
				if producerID < 0 || producerID >= numP || seq < 0 || seq >= itemsPerProd {
					spurious.Add(1)
					continue
				}
				if seq <= lastSeq[producerID] {
					orderViolations.Add(1)
				}
				lastSeq[producerID] = seq
				seen[producerID*itemsPerProd+seq].Add(1)
			}
		}()
	}

	go func() {
		prodWg.Wait()
		prodDone.Store(true)
	}()
	wg.Wait()
	prodWg.Wait()

	for i := range expectedTotal {
		switch n := seen[i].Load(); {
		case n == 0:
			lost++
		case n > 1:
			duplicated += int(n) - 1
		}
	}
	duplicated += int(spurious.Load())
	reordered = int(orderViolations.Load())
	return lost, duplicated, reordered
}

// TestScenarioD_UnsafeBaseline runs the workload over the Immediate
// reclaimer, which recycles nodes while rivals still hold pointers into
// them. Inconsistencies are the expected outcome; the test records them
// to show the harness is sharp enough to catch the bug class. It logs
// rather than asserts reproduction: the manifestation is probabilistic.
func TestScenarioD_UnsafeBaseline(t *testing.T) {
	if mpmcq.RaceEnabled {
		t.Skip("skip: concurrent test uses cross-variable memory ordering")
	}
	if testing.Short() {
		t.Skip("skip: stress test in short mode")
	}

	q := mpmcq.New[int](mpmcq.NewImmediate())
	lost, duplicated, reordered := abaWorkload(t, q, 16, 16, 30000)

	if lost+duplicated+reordered > 0 {
		t.Logf("unsafe baseline misbehaved as expected: lost=%d duplicated=%d reordered=%d",
			lost, duplicated, reordered)
	} else {
		t.Log("unsafe baseline survived this run; manifestation is probabilistic")
	}
}

// TestScenarioD_SafePolicies runs the identical workload over hazard
// pointers and epochs; here any inconsistency is a hard failure.
func TestScenarioD_SafePolicies(t *testing.T) {
	if mpmcq.RaceEnabled {
		t.Skip("skip: concurrent test uses cross-variable memory ordering")
	}
	if testing.Short() {
		t.Skip("skip: stress test in short mode")
	}

	for name, newRec := range map[string]func() mpmcq.Reclaimer{
		"hazard": func() mpmcq.Reclaimer { return mpmcq.NewHazard(64) },
		"epoch":  func() mpmcq.Reclaimer { return mpmcq.NewEpoch(64) },
	} {
		t.Run(name, func(t *testing.T) {
			q := mpmcq.New[int](newRec())
			lost, duplicated, reordered := abaWorkload(t, q, 16, 16, 30000)
			if lost > 0 {
				t.Errorf("lost %d values", lost)
			}
			if duplicated > 0 {
				t.Errorf("duplicated %d values", duplicated)
			}
			if reordered > 0 {
				t.Errorf("%d per-producer order violations", reordered)
			}
		})
	}
}
