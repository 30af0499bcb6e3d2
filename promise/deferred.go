package promise

// Deferred is an external resolver/rejecter for a [Promise] it owns,
// letting a producer (e.g. the dispatch engine) hand the observer side
// (the caller) a read-only Promise while retaining settlement control.
type Deferred struct {
	p        *Promise
	resolve  func(any)
	reject   func(error)
}

// NewDeferred creates a Deferred whose Promise is bound to tick (see
// [New]), optionally nil.
func NewDeferred(tick TickFunc) *Deferred {
	p, resolve, reject := New(tick)
	return &Deferred{p: p, resolve: resolve, reject: reject}
}

// Promise returns the Deferred's underlying Promise.
func (d *Deferred) Promise() *Promise {
	return d.p
}

// Resolve fulfills the bound Promise. A call after the first is a no-op.
func (d *Deferred) Resolve(value any) {
	d.resolve(value)
}

// Reject rejects the bound Promise. A call after the first is a no-op.
func (d *Deferred) Reject(reason error) {
	d.reject(reason)
}
