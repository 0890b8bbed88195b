// Copyright 2026 The mpmcq Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mpmcq_test

import (
	"errors"
	"sync"
	"testing"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	mpmcq "github.com/noooah2000/lockfree-fifo-queue"
)

func TestMutexQueueBasic(t *testing.T) {
	q := mpmcq.NewMutexQueue[int]()

	if _, err := q.Dequeue(); !errors.Is(err, mpmcq.ErrWouldBlock) {
		t.Fatalf("Dequeue on empty: got %v, want ErrWouldBlock", err)
	}

	for i := range 100 {
		v := i + 100
		if err := q.Enqueue(&v); err != nil {
			t.Fatalf("Enqueue(%d): %v", i, err)
		}
	}
	for i := range 100 {
		v, err := q.Dequeue()
		if err != nil {
			t.Fatalf("Dequeue(%d): %v", i, err)
		}
		if v != i+100 {
			t.Fatalf("Dequeue(%d): got %d, want %d", i, v, i+100)
		}
	}

	q.Close()
	if !q.IsClosed() {
		t.Fatal("IsClosed: got false, want true")
	}
	v := 1
	if err := q.Enqueue(&v); !errors.Is(err, mpmcq.ErrClosed) {
		t.Fatalf("Enqueue on closed: got %v, want ErrClosed", err)
	}
	q.Quiescent() // no-op, must not panic
}

// TestMutexQueueConcurrentCount verifies conservation under contention.
// The mutex queue is the reference implementation for the lock-free
// queue, so it gets the same count check.
func TestMutexQueueConcurrentCount(t *testing.T) {
	const (
		numP  = 4
		numC  = 4
		items = 10000
	)
	q := mpmcq.NewMutexQueue[int]()

	var wg sync.WaitGroup
	for p := range numP {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := range items {
				v := id*1000000 + i
				if err := q.Enqueue(&v); err != nil {
					t.Errorf("Enqueue: %v", err)
					return
				}
			}
		}(p)
	}

	var consumed atomix.Int64
	for range numC {
		wg.Add(1)
		go func() {
			defer wg.Done()
			backoff := iox.Backoff{}
			for consumed.Load() < numP*items {
				if _, err := q.Dequeue(); err != nil {
					backoff.Wait()
					continue
				}
				backoff.Reset()
				consumed.Add(1)
			}
		}()
	}
	wg.Wait()

	if consumed.Load() != numP*items {
		t.Fatalf("consumed %d, want %d", consumed.Load(), numP*items)
	}
}
