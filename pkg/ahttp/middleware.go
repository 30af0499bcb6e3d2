package ahttp

import "github.com/Amr-9/asynchttp/promise"

// Request is the mutable view of an outbound call a [Middleware] may
// inspect or rewrite before delegating to next.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    any
	Query   map[string]string
}

// Middleware wraps request submission. It may mutate req before calling
// next, observe or transform the Promise next returns, short-circuit by
// returning a Promise of its own without calling next, or reject.
type Middleware func(req *Request, next func(*Request) *promise.Promise) *promise.Promise

// composeMiddlewares builds the onion described by the interceptor
// pipeline: for middlewares [m1, m2, ..., mk] and terminal submit
// function s, the result is m1(R, r1 -> m2(r1, r2 -> ... mk(r_{k-1}, rk
// -> s(rk)))). Middlewares run in registration order on the way in;
// because each middleware's own Promise composition wraps the one
// returned by next, they unwind in reverse order as promises settle.
func composeMiddlewares(middlewares []Middleware, terminal func(*Request) *promise.Promise) func(*Request) *promise.Promise {
	next := terminal
	for i := len(middlewares) - 1; i >= 0; i-- {
		mw := middlewares[i]
		downstream := next
		next = func(r *Request) *promise.Promise {
			return mw(r, downstream)
		}
	}
	return next
}
