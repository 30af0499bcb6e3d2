// Package metrics implements the dispatch engine's counters: monotonic
// totals tracked with atomics, plus an HdrHistogram-backed latency
// distribution for the supplemental percentile fields.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	hdrhistogram "github.com/HdrHistogram/hdrhistogram-go"
)

// Snapshot is a point-in-time read of the engine's counters.
type Snapshot struct {
	TotalRequests      int64
	SuccessfulRequests int64
	FailedRequests     int64
	PendingRequests    int64
	QueuedRequests     int64
	UptimeSeconds      float64
	RequestsPerSecond  float64
	SuccessRate        float64

	P50 time.Duration
	P90 time.Duration
	P99 time.Duration
	Max time.Duration
	Min time.Duration
}

// Monitor is the dispatch engine's metrics collector. A Monitor's
// pending/queued gauges are set explicitly by the engine whenever its
// active set or queue changes, since
// those counts reflect live structures the engine owns, not a running
// total.
type Monitor struct {
	total   int64
	success int64
	failed  int64
	pending int64
	queued  int64

	startTime time.Time

	mu        sync.Mutex
	histogram *hdrhistogram.Histogram
}

// NewMonitor creates a Monitor whose uptime clock starts now. The
// histogram tracks microsecond latencies from 1µs to 30s at 3
// significant figures, matching the precision/range a single request's
// round trip plausibly spans.
func NewMonitor() *Monitor {
	return &Monitor{
		startTime: time.Now(),
		histogram: hdrhistogram.New(1, 30_000_000, 3),
	}
}

// RecordSuccess increments the total and success counters and records
// latency into the percentile histogram.
func (m *Monitor) RecordSuccess(latency time.Duration) {
	atomic.AddInt64(&m.total, 1)
	atomic.AddInt64(&m.success, 1)
	m.recordLatency(latency)
}

// RecordFailure increments the total and failure counters. latency may
// be zero for transport failures that never produced a response.
func (m *Monitor) RecordFailure(latency time.Duration) {
	atomic.AddInt64(&m.total, 1)
	atomic.AddInt64(&m.failed, 1)
	if latency > 0 {
		m.recordLatency(latency)
	}
}

func (m *Monitor) recordLatency(latency time.Duration) {
	m.mu.Lock()
	_ = m.histogram.RecordValue(latency.Microseconds())
	m.mu.Unlock()
}

// SetLive updates the live pending/queued gauges; the dispatch engine
// calls this with its current active-set and queue sizes whenever either
// changes.
func (m *Monitor) SetLive(pending, queued int) {
	atomic.StoreInt64(&m.pending, int64(pending))
	atomic.StoreInt64(&m.queued, int64(queued))
}

// Snapshot returns the current metrics.
func (m *Monitor) Snapshot() Snapshot {
	total := atomic.LoadInt64(&m.total)
	success := atomic.LoadInt64(&m.success)
	failed := atomic.LoadInt64(&m.failed)

	uptime := time.Since(m.startTime).Seconds()
	rps := 0.0
	if uptime > 0 {
		rps = float64(total) / uptime
	}
	successRate := 0.0
	if total > 0 {
		successRate = float64(success) / float64(total) * 100
	}

	m.mu.Lock()
	h := m.histogram
	p50 := time.Duration(h.ValueAtQuantile(50)) * time.Microsecond
	p90 := time.Duration(h.ValueAtQuantile(90)) * time.Microsecond
	p99 := time.Duration(h.ValueAtQuantile(99)) * time.Microsecond
	max := time.Duration(h.Max()) * time.Microsecond
	min := time.Duration(h.Min()) * time.Microsecond
	m.mu.Unlock()

	return Snapshot{
		TotalRequests:      total,
		SuccessfulRequests: success,
		FailedRequests:     failed,
		PendingRequests:    atomic.LoadInt64(&m.pending),
		QueuedRequests:     atomic.LoadInt64(&m.queued),
		UptimeSeconds:      uptime,
		RequestsPerSecond:  rps,
		SuccessRate:        successRate,
		P50:                p50,
		P90:                p90,
		P99:                p99,
		Max:                max,
		Min:                min,
	}
}
