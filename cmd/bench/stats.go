// Copyright 2026 The mpmcq Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"slices"
	"syscall"
)

// csvHeader is written once per file, iff the file is empty.
const csvHeader = "impl,P,C,payload_us,throughput_prod,throughput_cons,avg_lat,p50,p99,p999,max_lat,max_depth,peak_mem_kb"

// latency holds the percentile summary of the enqueue-to-dequeue samples
// taken during the measurement window, in nanoseconds.
type latency struct {
	avg  int64
	p50  int64
	p99  int64
	p999 int64
	max  int64
}

type result struct {
	impl           string
	producers      int
	consumers      int
	payloadUs      int
	throughputProd float64
	throughputCons float64
	lat            latency
	maxDepth       int64
	peakMemKB      int64
}

// summarize sorts the samples and extracts the percentile set. An empty
// sample set yields all zeros.
func summarize(samples []int64) latency {
	if len(samples) == 0 {
		return latency{}
	}
	slices.Sort(samples)

	var sum int64
	for _, s := range samples {
		sum += s
	}
	pct := func(p float64) int64 {
		idx := int(p * float64(len(samples)-1))
		return samples[idx]
	}
	return latency{
		avg:  sum / int64(len(samples)),
		p50:  pct(0.50),
		p99:  pct(0.99),
		p999: pct(0.999),
		max:  samples[len(samples)-1],
	}
}

// peakRSSKB reports the process peak resident set size in kilobytes.
func peakRSSKB() int64 {
	var ru syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &ru); err != nil {
		return 0
	}
	// Linux reports Maxrss in kilobytes already.
	return ru.Maxrss
}

// appendCSV appends one result row, writing the header first when the
// file is empty.
func appendCSV(path string, r result) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return err
	}
	if st.Size() == 0 {
		if _, err := fmt.Fprintln(f, csvHeader); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(f, "%s,%d,%d,%d,%.3f,%.3f,%d,%d,%d,%d,%d,%d,%d\n",
		r.impl, r.producers, r.consumers, r.payloadUs,
		r.throughputProd, r.throughputCons,
		r.lat.avg, r.lat.p50, r.lat.p99, r.lat.p999, r.lat.max,
		r.maxDepth, r.peakMemKB)
	return err
}
