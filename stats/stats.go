// Package stats implements the lock-free latency accounting the hot-path
// handler feeds on every message: a running total, a running max via
// compare-and-swap, and a count of samples that crossed the slow threshold.
// All three counters use relaxed semantics — they are statistics, not
// synchronization.
package stats

import "sync/atomic"

// Latency accumulates hot-path processing-time samples.
type Latency struct {
	totalMessages    uint64
	maxProcUs        uint64
	overThresholdCnt uint64
	slowThresholdUs  uint64
}

// NewLatency constructs a counter set with the given slow threshold, in
// microseconds (spec.md default: 5000).
func NewLatency(slowThresholdUs uint64) *Latency {
	return &Latency{slowThresholdUs: slowThresholdUs}
}

// Record adds one processing-time sample, in microseconds.
func (l *Latency) Record(procUs uint64) {
	atomic.AddUint64(&l.totalMessages, 1)

	for {
		cur := atomic.LoadUint64(&l.maxProcUs)
		if procUs <= cur {
			break
		}
		if atomic.CompareAndSwapUint64(&l.maxProcUs, cur, procUs) {
			break
		}
	}

	if procUs > l.slowThresholdUs {
		atomic.AddUint64(&l.overThresholdCnt, 1)
	}
}

// IsSlow reports whether procUs exceeds the configured slow threshold,
// without recording anything — used by the hot-path handler to decide
// whether to emit an off-path diagnostic.
func (l *Latency) IsSlow(procUs uint64) bool {
	return procUs > l.slowThresholdUs
}

// Report is a point-in-time snapshot of the counters.
type Report struct {
	TotalMessages    uint64
	MaxProcUs        uint64
	OverThresholdCnt uint64
}

// OverThresholdPercent returns the derived over-threshold percentage, or 0
// if no messages have been recorded yet.
func (r Report) OverThresholdPercent() float64 {
	if r.TotalMessages == 0 {
		return 0
	}
	return float64(r.OverThresholdCnt) / float64(r.TotalMessages) * 100
}

// Snapshot reads all three counters. Safe to call concurrently with Record.
func (l *Latency) Snapshot() Report {
	return Report{
		TotalMessages:    atomic.LoadUint64(&l.totalMessages),
		MaxProcUs:        atomic.LoadUint64(&l.maxProcUs),
		OverThresholdCnt: atomic.LoadUint64(&l.overThresholdCnt),
	}
}
