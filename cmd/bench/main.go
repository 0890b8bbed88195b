// Copyright 2026 The mpmcq Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command bench drives the queue with configured producer/consumer
// counts and reports throughput, latency percentiles, depth, and peak
// memory, optionally appending a CSV row.
//
// Usage:
//
//	bench [--impl hp|ebr|none|immediate|mutex]
//	      [--producers P] [--consumers C]
//	      [--payload-us N] [--warmup S] [--duration S]
//	      [--csv path]
package main

import (
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	mpmcq "github.com/noooah2000/lockfree-fifo-queue"
)

type args struct {
	impl      string
	producers int
	consumers int
	payloadUs int
	warmupS   int
	durationS int
	csv       string
}

// elem is the benchmark element: producer id, per-producer sequence, and
// the enqueue timestamp the consumer derives latency from.
type elem struct {
	producer int
	seq      int64
	stamp    int64 // ns since the run started
}

// endpoint is one goroutine's view of a queue under test. Lock-free
// implementations back it with a Handle, the mutex baseline with the
// queue itself.
type endpoint interface {
	Enqueue(*elem) error
	Dequeue() (elem, error)
	Close()
}

type mutexEndpoint struct{ q *mpmcq.MutexQueue[elem] }

func (m mutexEndpoint) Enqueue(e *elem) error  { return m.q.Enqueue(e) }
func (m mutexEndpoint) Dequeue() (elem, error) { return m.q.Dequeue() }
func (m mutexEndpoint) Close()                 {}

func main() {
	a := args{}
	flag.StringVar(&a.impl, "impl", "hp", "queue implementation: hp|ebr|none|immediate|mutex")
	flag.IntVar(&a.producers, "producers", 4, "producer goroutines")
	flag.IntVar(&a.consumers, "consumers", 4, "consumer goroutines")
	flag.IntVar(&a.payloadUs, "payload-us", 100, "busy-work microseconds per operation")
	flag.IntVar(&a.warmupS, "warmup", 2, "warmup seconds (excluded from measurement)")
	flag.IntVar(&a.durationS, "duration", 5, "measurement seconds")
	flag.StringVar(&a.csv, "csv", "", "append results to this CSV file")
	flag.Parse()

	var bind func() endpoint
	var closeQ func()
	switch a.impl {
	case "hp", "ebr", "none", "immediate":
		var rec mpmcq.Reclaimer
		switch a.impl {
		case "hp":
			rec = mpmcq.NewHazard(0)
		case "ebr":
			rec = mpmcq.NewEpoch(0)
		case "none":
			rec = mpmcq.NewLeak()
		case "immediate":
			rec = mpmcq.NewImmediate()
		}
		q := mpmcq.New[elem](rec)
		bind = func() endpoint { return q.Handle() }
		closeQ = q.Close
	case "mutex":
		q := mpmcq.NewMutexQueue[elem]()
		bind = func() endpoint { return mutexEndpoint{q} }
		closeQ = q.Close
	default:
		fmt.Fprintf(os.Stderr, "unknown --impl %q\n", a.impl)
		flag.Usage()
		os.Exit(1)
	}

	run(a, bind, closeQ)
}

func run(a args, bind func() endpoint, closeQ func()) {
	var (
		stop      atomix.Bool
		measuring atomix.Bool
		enqOK     atomix.Int64
		deqOK     atomix.Int64
		depth     atomix.Int64
		maxDepth  atomix.Int64
	)
	start := time.Now()
	stamp := func() int64 { return int64(time.Since(start)) }

	payload := func() {
		if a.payloadUs <= 0 {
			return
		}
		t0 := time.Now()
		for time.Since(t0) < time.Duration(a.payloadUs)*time.Microsecond {
		}
	}

	var wg sync.WaitGroup
	for p := range a.producers {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			ep := bind()
			defer ep.Close()
			var seq int64
			for !stop.LoadAcquire() {
				payload()
				e := elem{producer: id, seq: seq, stamp: stamp()}
				if ep.Enqueue(&e) != nil {
					return // closed
				}
				seq++
				enqOK.Add(1)
				d := depth.Add(1)
				for {
					prev := maxDepth.LoadRelaxed()
					if d <= prev || maxDepth.CompareAndSwapRelaxed(prev, d) {
						break
					}
				}
			}
		}(p)
	}

	samples := make([][]int64, a.consumers)
	for c := range a.consumers {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			ep := bind()
			defer ep.Close()
			var lats []int64
			backoff := iox.Backoff{}
			for !stop.LoadAcquire() {
				e, err := ep.Dequeue()
				if err != nil {
					backoff.Wait()
					continue
				}
				backoff.Reset()
				deqOK.Add(1)
				depth.Add(-1)
				if measuring.Load() {
					lats = append(lats, stamp()-e.stamp)
				}
				payload()
			}
			samples[id] = lats
		}(c)
	}

	time.Sleep(time.Duration(a.warmupS) * time.Second)
	enq0, deq0 := enqOK.LoadRelaxed(), deqOK.LoadRelaxed()
	measuring.Store(true)
	t0 := time.Now()
	time.Sleep(time.Duration(a.durationS) * time.Second)
	measuring.Store(false)
	secs := time.Since(t0).Seconds()
	enq1, deq1 := enqOK.LoadRelaxed(), deqOK.LoadRelaxed()
	stop.StoreRelease(true)
	closeQ()
	wg.Wait()

	var all []int64
	for _, s := range samples {
		all = append(all, s...)
	}
	lat := summarize(all)

	res := result{
		impl:           a.impl,
		producers:      a.producers,
		consumers:      a.consumers,
		payloadUs:      a.payloadUs,
		throughputProd: float64(enq1-enq0) / secs,
		throughputCons: float64(deq1-deq0) / secs,
		lat:            lat,
		maxDepth:       maxDepth.LoadRelaxed(),
		peakMemKB:      peakRSSKB(),
	}

	if a.csv == "" {
		fmt.Printf("impl=%s P=%d C=%d payload_us=%d throughput_prod=%.0f throughput_cons=%.0f avg_lat=%dns p50=%dns p99=%dns p999=%dns max_lat=%dns max_depth=%d peak_mem_kb=%d\n",
			res.impl, res.producers, res.consumers, res.payloadUs,
			res.throughputProd, res.throughputCons,
			res.lat.avg, res.lat.p50, res.lat.p99, res.lat.p999, res.lat.max,
			res.maxDepth, res.peakMemKB)
		return
	}
	if err := appendCSV(a.csv, res); err != nil {
		fmt.Fprintf(os.Stderr, "csv: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote CSV: %s\n", a.csv)
}
