// Package promise implements a settable-once future with Promise/A+-style
// chaining, blocking wait, and JavaScript-style static combinators
// (All, AllSettled, Any, Race).
//
// Unlike a JavaScript engine's promise, there is no microtask queue here:
// handlers registered on an already-settled Promise run synchronously,
// in-line, during registration; handlers registered before settlement run
// synchronously, in registration order, the moment the Promise settles.
// This matches the synchronous-handler-chain behavior called for by the
// spec this package implements, and avoids pulling in an event loop for
// what is fundamentally a single assignment-once value.
package promise

import (
	"sync"
	"time"
)

// State is the lifecycle state of a Promise.
type State int

const (
	// Pending indicates the Promise has not yet settled.
	Pending State = iota
	// Fulfilled indicates the Promise settled successfully.
	Fulfilled
	// Rejected indicates the Promise settled with an error.
	Rejected
)

func (s State) String() string {
	switch s {
	case Fulfilled:
		return "fulfilled"
	case Rejected:
		return "rejected"
	default:
		return "pending"
	}
}

// OnFulfilled is a Then handler invoked with the fulfillment value. A nil
// error return fulfills the derived Promise with the returned value (which
// may itself be a *Promise, in which case the derived Promise transparently
// adopts its eventual state); a non-nil error rejects the derived Promise.
type OnFulfilled func(value any) (any, error)

// OnRejected is a Then/Catch handler invoked with the rejection reason,
// normalized to an error. Semantics otherwise match [OnFulfilled]: returning
// a nil error "recovers" from the rejection for the derived Promise.
type OnRejected func(reason error) (any, error)

type handler struct {
	onFulfilled OnFulfilled
	onRejected  OnRejected
	target      *Promise
}

// TickFunc is a driver pump invoked repeatedly by [Promise.Wait] to make
// forward progress while blocked. A Promise created without one falls back
// to a short sleep loop.
type TickFunc func()

// Promise is a value that will be supplied exactly once, either as a
// fulfillment value or a rejection reason.
type Promise struct {
	mu       sync.Mutex
	state    State
	value    any
	reason   error
	handlers []handler
	tick     TickFunc
}

// New creates a pending Promise along with its resolve and reject
// functions. tick, if non-nil, is invoked repeatedly by [Promise.Wait]
// (and by any combinator promise built from this one) to drive forward
// progress while blocked; pass nil to fall back to a short sleep loop.
func New(tick TickFunc) (p *Promise, resolve func(any), reject func(error)) {
	p = &Promise{tick: tick}
	return p, p.resolve, p.reject
}

func newChild(tick TickFunc) *Promise {
	return &Promise{tick: tick}
}

// Resolve returns v unchanged if it is already a *Promise, otherwise a
// Promise already fulfilled with v.
func Resolve(v any) *Promise {
	if p, ok := v.(*Promise); ok {
		return p
	}
	p := &Promise{state: Fulfilled, value: v}
	return p
}

// Reject returns a Promise already rejected with reason.
func Reject(reason error) *Promise {
	return &Promise{state: Rejected, reason: reason}
}

// Try calls fn and wraps its outcome in a settled Promise.
func Try(fn func() (any, error)) *Promise {
	v, err := fn()
	if err != nil {
		return Reject(err)
	}
	return Resolve(v)
}

// Delay returns a Promise that fulfills with v after d has elapsed. It
// blocks a background goroutine for the duration, not the caller.
func Delay(d time.Duration, v any) *Promise {
	p, resolve, _ := New(nil)
	go func() {
		time.Sleep(d)
		resolve(v)
	}()
	return p
}

// State returns the current lifecycle state.
func (p *Promise) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// IsPending reports whether the Promise has not yet settled.
func (p *Promise) IsPending() bool { return p.State() == Pending }

// IsFulfilled reports whether the Promise settled successfully.
func (p *Promise) IsFulfilled() bool { return p.State() == Fulfilled }

// IsRejected reports whether the Promise settled with an error.
func (p *Promise) IsRejected() bool { return p.State() == Rejected }

func (p *Promise) resolve(value any) {
	if inner, ok := value.(*Promise); ok {
		// Transparent unwrapping: adopt the inner promise's eventual state.
		inner.Then(
			func(v any) (any, error) { p.resolve(v); return nil, nil },
			func(r error) (any, error) { p.reject(r); return nil, nil },
		)
		return
	}

	p.mu.Lock()
	if p.state != Pending {
		p.mu.Unlock()
		return
	}
	p.state = Fulfilled
	p.value = value
	hs := p.handlers
	p.handlers = nil
	p.mu.Unlock()

	for _, h := range hs {
		runHandler(h, Fulfilled, value, nil)
	}
}

func (p *Promise) reject(reason error) {
	p.mu.Lock()
	if p.state != Pending {
		p.mu.Unlock()
		return
	}
	p.state = Rejected
	p.reason = reason
	hs := p.handlers
	p.handlers = nil
	p.mu.Unlock()

	for _, h := range hs {
		runHandler(h, Rejected, nil, reason)
	}
}

func runHandler(h handler, state State, value any, reason error) {
	if state == Fulfilled {
		if h.onFulfilled == nil {
			if h.target != nil {
				h.target.resolve(value)
			}
			return
		}
		v, err := h.onFulfilled(value)
		if h.target == nil {
			return
		}
		if err != nil {
			h.target.reject(err)
			return
		}
		h.target.resolve(v)
		return
	}

	if h.onRejected == nil {
		if h.target != nil {
			h.target.reject(reason)
		}
		return
	}
	v, err := h.onRejected(reason)
	if h.target == nil {
		return
	}
	if err != nil {
		h.target.reject(err)
		return
	}
	h.target.resolve(v)
}

func (p *Promise) addHandler(h handler) {
	p.mu.Lock()
	if p.state == Pending {
		p.handlers = append(p.handlers, h)
		p.mu.Unlock()
		return
	}
	state, value, reason := p.state, p.value, p.reason
	p.mu.Unlock()
	runHandler(h, state, value, reason)
}

// Then registers handlers invoked on settlement and returns a new Promise
// derived from whichever handler runs. Either handler may be nil, in which
// case the corresponding outcome passes through unchanged.
func (p *Promise) Then(onFulfilled OnFulfilled, onRejected OnRejected) *Promise {
	child := newChild(p.tick)
	p.addHandler(handler{onFulfilled: onFulfilled, onRejected: onRejected, target: child})
	return child
}

// Catch is equivalent to Then(nil, onRejected).
func (p *Promise) Catch(onRejected OnRejected) *Promise {
	return p.Then(nil, onRejected)
}

// Finally runs onFinally regardless of settlement and forwards the
// original outcome unchanged. A panic inside onFinally is recovered and
// replaces the outcome with that panic value, wrapped as an error if
// necessary.
func (p *Promise) Finally(onFinally func()) *Promise {
	child := newChild(p.tick)
	run := func(settle func()) {
		defer func() {
			if r := recover(); r != nil {
				child.reject(asError(r))
			}
		}()
		onFinally()
		settle()
	}
	p.addHandler(handler{
		onFulfilled: func(v any) (any, error) {
			run(func() { child.resolve(v) })
			return nil, nil
		},
		onRejected: func(r error) (any, error) {
			run(func() { child.reject(r) })
			return nil, nil
		},
	})
	return child
}

// Wait blocks until the Promise settles or timeout elapses (timeout <= 0
// means wait indefinitely). While waiting, it repeatedly calls the
// driver tick function the Promise was created with, if any, to make
// forward progress; otherwise it spins on state with a short sleep.
// On success it returns the fulfillment value; on rejection it returns
// the stored reason as an error; on timeout it returns a [TimeoutError].
func (p *Promise) Wait(timeout time.Duration) (any, error) {
	var deadline time.Time
	hasDeadline := timeout > 0
	if hasDeadline {
		deadline = time.Now().Add(timeout)
	}

	for {
		p.mu.Lock()
		state, value, reason := p.state, p.value, p.reason
		p.mu.Unlock()

		switch state {
		case Fulfilled:
			return value, nil
		case Rejected:
			return nil, reason
		}

		if hasDeadline && time.Now().After(deadline) {
			return nil, &TimeoutError{}
		}

		if p.tick != nil {
			p.tick()
		} else {
			time.Sleep(time.Millisecond)
		}
	}
}
