// Package retry implements the stateless retry decision consulted by the
// dispatch engine after every completion, plus an optional circuit
// breaker that can veto further retries once error rates cross a
// configured threshold.
package retry

import (
	"math"
	"strings"
	"time"
)

// idempotentMethods is the set of methods the scheduler is permitted to
// retry. POST, PATCH, TRACE, and CONNECT are never retried, so a single
// side-effecting call is never issued twice.
var idempotentMethods = map[string]bool{
	"GET":     true,
	"HEAD":    true,
	"OPTIONS": true,
	"PUT":     true,
	"DELETE":  true,
}

// Outcome describes a completed attempt that the policy must classify.
type Outcome struct {
	Method         string
	Attempt        int // 1-based: the attempt that just completed
	StatusCode     int // 0 if TransportErr is set
	TransportErr   bool
}

// Policy is the stateless retry decision function, parameterized by the
// Options retry fields.
type Policy struct {
	Attempts    int
	Delay       time.Duration
	StatusCodes map[int]bool
}

// NewPolicy builds a Policy from the retryAttempts/retryDelay/retryStatusCodes
// Options fields.
func NewPolicy(attempts int, delay time.Duration, statusCodes []int) *Policy {
	set := make(map[int]bool, len(statusCodes))
	for _, c := range statusCodes {
		set[c] = true
	}
	return &Policy{Attempts: attempts, Delay: delay, StatusCodes: set}
}

// ShouldRetry reports whether outcome should be retried, and if so, the
// minimum duration to wait before the successor attempt is admitted
// (retryDelay × 2^(attempt-1), per the exponential backoff rule).
func (p *Policy) ShouldRetry(o Outcome) (retry bool, delay time.Duration) {
	if !idempotentMethods[strings.ToUpper(o.Method)] {
		return false, 0
	}
	if o.Attempt > p.Attempts {
		return false, 0
	}
	if o.TransportErr {
		return true, p.backoff(o.Attempt)
	}
	if p.StatusCodes[o.StatusCode] {
		return true, p.backoff(o.Attempt)
	}
	return false, 0
}

func (p *Policy) backoff(attempt int) time.Duration {
	multiplier := math.Pow(2, float64(attempt-1))
	return time.Duration(float64(p.Delay) * multiplier)
}
