package retry

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Amr-9/asynchttp/internal/metrics"
)

// Breaker is an optional, disabled-by-default guard consulted alongside
// [Policy]: once it trips, ShouldRetry's caller is expected to treat
// every further retry as a give-up regardless of what the policy itself
// would have decided. It exists for callers who want a global circuit
// breaker on top of the per-request retry budget, not as a replacement
// for it. Unlike a bare error-count guard, it reads directly off a
// [metrics.Snapshot] — the same percentiles and rates a caller would see
// from [dispatch.Engine.Metrics] — rather than its own parallel tally of
// totals and failures.
type Breaker struct {
	metric       gauge
	reasonMetric string // the metric name as written in the condition, for Reason()
	operator     string
	threshold    float64
	unit         string // "%", "ms", or "" (bare count/fraction)
	minSamples   int64

	tripped int32 // atomic: 0 = closed, 1 = open
	mu      sync.Mutex
	reason  string
}

// gauge reads the value a condition's metric name refers to out of a
// Snapshot, in the metric's native unit (percent, milliseconds, or a
// bare count/fraction); the condition's own unit suffix decides how the
// threshold comparison interprets it.
type gauge func(metrics.Snapshot) float64

var gauges = map[string]gauge{
	"errors":      func(s metrics.Snapshot) float64 { return 100 - s.SuccessRate },
	"error_rate":  func(s metrics.Snapshot) float64 { return 100 - s.SuccessRate },
	"failures":    func(s metrics.Snapshot) float64 { return float64(s.FailedRequests) },
	"latency_p99": func(s metrics.Snapshot) float64 { return float64(s.P99.Milliseconds()) },
	"latency_p90": func(s metrics.Snapshot) float64 { return float64(s.P90.Milliseconds()) },
}

var conditionPattern = regexp.MustCompile(`(?i)(errors?|error_rate|failures?|latency_p9[09])\s*([><=]+)\s*([\d.]+)\s*(%|ms)?`)

// NewBreaker parses a condition string such as "errors > 10%",
// "error_rate > 0.1", "failures > 100", or "latency_p99 > 500ms" and
// returns a Breaker that trips once minSamples total requests have been
// observed and the condition holds against the engine's own metrics
// snapshot. minSamples <= 0 defaults to 100 (cold-start protection: a
// breaker must not trip off the first handful of requests).
func NewBreaker(condition string, minSamples int64) (*Breaker, error) {
	expr := strings.TrimSpace(condition)
	if expr == "" {
		return nil, fmt.Errorf("retry: empty circuit breaker condition")
	}

	matches := conditionPattern.FindStringSubmatch(expr)
	if matches == nil {
		return nil, fmt.Errorf("retry: invalid circuit breaker condition %q, expected e.g. %q, %q, or %q", expr, "errors > 10%", "failures > 100", "latency_p99 > 500ms")
	}

	name := normalizeMetric(matches[1])
	g, ok := gauges[name]
	if !ok {
		return nil, fmt.Errorf("retry: unknown circuit breaker metric %q", name)
	}

	threshold, err := strconv.ParseFloat(matches[3], 64)
	if err != nil {
		return nil, fmt.Errorf("retry: invalid circuit breaker threshold %q: %w", matches[3], err)
	}

	unit := strings.ToLower(matches[4])
	if strings.HasPrefix(name, "latency_") && unit == "" {
		unit = "ms"
	}

	if minSamples <= 0 {
		minSamples = 100
	}

	return &Breaker{
		metric:       g,
		reasonMetric: name,
		operator:     matches[2],
		threshold:    threshold,
		unit:         unit,
		minSamples:   minSamples,
	}, nil
}

func normalizeMetric(raw string) string {
	switch strings.ToLower(raw) {
	case "error", "errors":
		return "errors"
	case "error_rate":
		return "error_rate"
	case "failure", "failures":
		return "failures"
	default:
		return strings.ToLower(raw)
	}
}

// Check evaluates snap against the configured condition and reports
// whether the breaker is (now, or already) tripped. A rate metric with
// no "%" suffix is compared as a fraction (errors/total in [0,1]); with
// a "%" suffix it is compared on a 0-100 scale, matching whichever form
// the condition string used.
func (b *Breaker) Check(snap metrics.Snapshot) bool {
	if b == nil {
		return false
	}
	if atomic.LoadInt32(&b.tripped) == 1 {
		return true
	}
	if snap.TotalRequests < b.minSamples {
		return false
	}

	current := b.metric(snap)
	if (b.reasonMetric == "errors" || b.reasonMetric == "error_rate") && b.unit != "%" {
		// bare rate comparisons (e.g. "error_rate > 0.1") operate on the
		// 0-1 fraction, not the 0-100 percent the gauge returns; counts
		// ("failures") and latency gauges have no such percent/fraction
		// duality and are compared on their native scale unconditionally.
		current /= 100
	}

	if !b.trips(current) {
		return false
	}

	b.mu.Lock()
	if atomic.CompareAndSwapInt32(&b.tripped, 0, 1) {
		b.reason = fmt.Sprintf("circuit breaker tripped: %s (%.2f%s) %s %.2f%s", b.reasonMetric, current, b.unit, b.operator, b.threshold, b.unit)
	}
	b.mu.Unlock()
	return true
}

func (b *Breaker) trips(current float64) bool {
	switch b.operator {
	case ">":
		return current > b.threshold
	case ">=":
		return current >= b.threshold
	case "<":
		return current < b.threshold
	case "<=":
		return current <= b.threshold
	default:
		return false
	}
}

// IsTripped reports whether the breaker has tripped.
func (b *Breaker) IsTripped() bool {
	if b == nil {
		return false
	}
	return atomic.LoadInt32(&b.tripped) == 1
}

// Reason returns the message describing why the breaker tripped, or
// empty if it hasn't.
func (b *Breaker) Reason() string {
	if b == nil {
		return ""
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reason
}

// Reset clears the tripped state.
func (b *Breaker) Reset() {
	if b == nil {
		return
	}
	atomic.StoreInt32(&b.tripped, 0)
	b.mu.Lock()
	b.reason = ""
	b.mu.Unlock()
}
