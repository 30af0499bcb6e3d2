// Package dispatch implements the bounded-concurrency request engine:
// an admission queue, an active set of in-flight transfers, completion
// demultiplexing, and retry re-admission, all driven through the
// multiplexed transfer driver. Everything above this package only ever
// sees a [*promise.Promise]; dispatch owns the Deferred that settles it.
package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/Amr-9/asynchttp/internal/driver"
	"github.com/Amr-9/asynchttp/internal/metrics"
	"github.com/Amr-9/asynchttp/internal/pool"
	"github.com/Amr-9/asynchttp/internal/retry"
	"github.com/Amr-9/asynchttp/promise"
)

// ErrShutdown is the rejection reason for requests still queued when
// [Engine.Shutdown] runs.
var ErrShutdown = errors.New("dispatch: client shut down with request still queued")

// TransferDriver is the interface the engine multiplexes over; satisfied
// by [*driver.Driver] and by test doubles.
type TransferDriver interface {
	Perform(ctx context.Context, handle pool.Handle, t driver.Transfer) (*driver.Response, error)
}

// Descriptor is a fully resolved request ready for the driver: absolute
// URL, wire-ready header lines, serialized body, and the attempt number
// this submission represents. CorrelationID ties every attempt and log
// line for one logical request together; Submit assigns one if the
// caller leaves it blank.
type Descriptor struct {
	Method        string
	URL           string
	Headers       []string
	Body          string
	Attempt       int
	CorrelationID string
}

type queuedEntry struct {
	descriptor Descriptor
	deferred   *promise.Deferred
	enqueuedAt time.Time
	notBefore  time.Time
}

type activeEntry struct {
	handle     pool.Handle
	deferred   *promise.Deferred
	descriptor Descriptor
	cancel     context.CancelFunc
}

// Engine is the per-client dispatch engine.
type Engine struct {
	mu            sync.Mutex
	queue         []*queuedEntry
	active        map[int64]*activeEntry
	nextID        int64
	maxConcurrent int
	closed        bool

	pool    *pool.Pool
	retry   *retry.Policy
	breaker *retry.Breaker
	metrics *metrics.Monitor
	drv     TransferDriver
	logger  Logger
	limiter *rate.Limiter
}

// Logger receives lifecycle events worth surfacing to structured
// logging; the engine itself never formats or writes log lines. A nil
// Logger (the default) means events are simply not reported.
type Logger interface {
	LogRetry(correlationID, method, url string, attempt int, delay time.Duration)
	LogGiveUp(correlationID, method, url string, err error)
}

// New creates an Engine wired to the given pool, retry policy, metrics
// monitor, and transfer driver. breaker may be nil (no circuit breaker).
func New(maxConcurrent int, p *pool.Pool, rp *retry.Policy, breaker *retry.Breaker, m *metrics.Monitor, drv TransferDriver) *Engine {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Engine{
		active:        make(map[int64]*activeEntry),
		maxConcurrent: maxConcurrent,
		pool:          p,
		retry:         rp,
		breaker:       breaker,
		metrics:       m,
		drv:           drv,
	}
}

// Submit enqueues descriptor and returns the Promise that will settle
// with the final driver.Response or error once the retry budget is
// exhausted. The Promise's Wait is driven by the engine's own Tick.
func (e *Engine) Submit(descriptor Descriptor) *promise.Promise {
	if descriptor.Attempt == 0 {
		descriptor.Attempt = 1
	}
	if descriptor.CorrelationID == "" {
		descriptor.CorrelationID = uuid.NewString()
	}
	deferred := promise.NewDeferred(e.Tick)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		deferred.Reject(ErrShutdown)
		return deferred.Promise()
	}
	e.queue = append(e.queue, &queuedEntry{
		descriptor: descriptor,
		deferred:   deferred,
		enqueuedAt: time.Now(),
	})
	e.updateLiveMetrics()
	e.mu.Unlock()

	e.admit()
	return deferred.Promise()
}

// admit moves eligible queued entries into the active set until either
// the queue is exhausted of eligible entries or the active set is full.
// An entry is eligible once its notBefore timestamp (zero for a first
// attempt) has elapsed; the queue otherwise stays FIFO, so a delayed
// retry may be admitted after later-arriving zero-delay requests.
func (e *Engine) admit() {
	for {
		entry, id, ok := e.reserveSlot()
		if !ok {
			return
		}
		e.launch(id, entry)
	}
}

// reserveSlot checks the concurrency cap and, if a slot is free and an
// eligible queued entry exists, both pops the entry and commits its
// placeholder into the active set in the same critical section. That
// makes "check len(active) < maxConcurrent" and "commit to active"
// atomic with respect to every other admit and every completion, so two
// concurrent callers (e.g. two completions racing a fresh Submit) can
// never both observe a free slot and both admit into it.
func (e *Engine) reserveSlot() (*queuedEntry, int64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || len(e.active) >= e.maxConcurrent {
		return nil, 0, false
	}
	if e.limiter != nil && !e.limiter.Allow() {
		return nil, 0, false
	}

	now := time.Now()
	for i, entry := range e.queue {
		if !entry.notBefore.IsZero() && entry.notBefore.After(now) {
			continue
		}
		e.queue = append(e.queue[:i], e.queue[i+1:]...)
		id := e.nextID
		e.nextID++
		e.active[id] = &activeEntry{deferred: entry.deferred, descriptor: entry.descriptor}
		e.updateLiveMetrics()
		return entry, id, true
	}
	return nil, 0, false
}

// launch acquires a handle and starts the transfer for a slot already
// reserved in the active set by reserveSlot. Acquiring a handle and
// performing the transfer both happen outside e.mu, so neither blocks
// other admissions or completions; only the handle/cancel assignment
// back into the already-reserved entry needs the lock.
func (e *Engine) launch(id int64, entry *queuedEntry) {
	handle, err := e.pool.Acquire(entry.descriptor.URL)
	if err != nil {
		e.complete(id, nil, entry, nil, err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	e.mu.Lock()
	if active, ok := e.active[id]; ok {
		active.handle = handle
		active.cancel = cancel
	}
	e.mu.Unlock()

	go func() {
		start := time.Now()
		resp, perr := e.drv.Perform(ctx, handle, driver.Transfer{
			Method:  entry.descriptor.Method,
			URL:     entry.descriptor.URL,
			Headers: entry.descriptor.Headers,
			Body:    entry.descriptor.Body,
		})
		e.complete(id, resp, entry, &start, perr)
	}()
}

// complete classifies a finished attempt, consults the retry policy
// (and circuit breaker, if configured), and either re-admits a
// successor attempt or settles the deferred.
func (e *Engine) complete(id int64, resp *driver.Response, entry *queuedEntry, start *time.Time, transferErr error) {
	e.mu.Lock()
	active, ok := e.active[id]
	if ok {
		delete(e.active, id)
		e.updateLiveMetrics()
	}
	e.mu.Unlock()

	var handle pool.Handle
	if active != nil {
		handle = active.handle
	}

	var latency time.Duration
	if start != nil {
		latency = time.Since(*start)
	}

	outcome := retry.Outcome{
		Method:       entry.descriptor.Method,
		Attempt:      entry.descriptor.Attempt,
		TransportErr: transferErr != nil,
	}
	if resp != nil {
		outcome.StatusCode = resp.StatusCode
	}

	shouldRetry, delay := false, time.Duration(0)
	if e.retry != nil {
		shouldRetry, delay = e.retry.ShouldRetry(outcome)
	}
	if shouldRetry && e.breaker != nil {
		if e.breaker.Check(e.metrics.Snapshot()) {
			shouldRetry = false
		}
	}

	if shouldRetry {
		if handle != nil {
			_ = e.pool.Release(handle, entry.descriptor.URL)
		}
		if e.logger != nil {
			e.logger.LogRetry(entry.descriptor.CorrelationID, entry.descriptor.Method, entry.descriptor.URL, entry.descriptor.Attempt, delay)
		}
		successor := entry.descriptor
		successor.Attempt++
		e.mu.Lock()
		e.queue = append(e.queue, &queuedEntry{
			descriptor: successor,
			deferred:   entry.deferred,
			enqueuedAt: time.Now(),
			notBefore:  time.Now().Add(delay),
		})
		e.updateLiveMetrics()
		e.mu.Unlock()
		e.admit()
		return
	}

	if handle != nil {
		_ = e.pool.Release(handle, entry.descriptor.URL)
	}

	if transferErr != nil {
		if e.metrics != nil {
			e.metrics.RecordFailure(latency)
		}
		if e.logger != nil {
			e.logger.LogGiveUp(entry.descriptor.CorrelationID, entry.descriptor.Method, entry.descriptor.URL, transferErr)
		}
		entry.deferred.Reject(transferErr)
	} else {
		if e.metrics != nil {
			e.metrics.RecordSuccess(latency)
		}
		entry.deferred.Resolve(resp)
	}
	e.admit()
}

func (e *Engine) updateLiveMetrics() {
	if e.metrics != nil {
		e.metrics.SetLive(len(e.active), len(e.queue))
	}
}

// Metrics returns the engine's metrics monitor, or nil if none was
// configured.
func (e *Engine) Metrics() *metrics.Monitor {
	return e.metrics
}

// SetLogger installs a Logger that receives retry and give-up events.
func (e *Engine) SetLogger(l Logger) {
	e.mu.Lock()
	e.logger = l
	e.mu.Unlock()
}

// SetRateLimiter paces admission (queue to active) at l, independent of
// the concurrency cap; pass nil to disable pacing. Unlike maxConcurrent,
// which bounds how many transfers run at once, the limiter bounds how
// fast new ones start.
func (e *Engine) SetRateLimiter(l *rate.Limiter) {
	e.mu.Lock()
	e.limiter = l
	e.mu.Unlock()
}

// Tick drives one unit of forward progress: it admits any queued entry
// whose retry backoff has elapsed. Completions themselves progress via
// their own goroutines regardless of Tick, so Tick's only job is timer
// based re-admission; it is safe, and cheap, to call repeatedly.
func (e *Engine) Tick() {
	e.admit()
}

// Wait blocks until no request is pending or queued, or timeout elapses
// (timeout <= 0 waits indefinitely). On timeout it simply returns,
// without touching any still-outstanding promise.
func (e *Engine) Wait(timeout time.Duration) {
	var deadline time.Time
	hasDeadline := timeout > 0
	if hasDeadline {
		deadline = time.Now().Add(timeout)
	}
	for e.HasPending() {
		if hasDeadline && time.Now().After(deadline) {
			return
		}
		e.Tick()
		time.Sleep(time.Millisecond)
	}
}

// HasPending reports whether any request is active or queued.
func (e *Engine) HasPending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active) > 0 || len(e.queue) > 0
}

// PendingCount returns the size of the active set.
func (e *Engine) PendingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}

// QueuedCount returns the number of requests awaiting admission.
func (e *Engine) QueuedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// Shutdown marks the engine closed (no further Submit calls are
// accepted) and rejects every still-queued request with ErrShutdown.
// Active (already-admitted) transfers are left to finish naturally.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	e.closed = true
	queued := e.queue
	e.queue = nil
	e.updateLiveMetrics()
	e.mu.Unlock()

	for _, entry := range queued {
		entry.deferred.Reject(ErrShutdown)
	}
}
