package promise

import "sync"

// SettledOutcome is one entry of an [AllSettled] result.
type SettledOutcome struct {
	Status string // "fulfilled" or "rejected"
	Value  any
	Reason error
}

func commonTick(ps []*Promise) TickFunc {
	for _, p := range ps {
		if p != nil && p.tick != nil {
			return p.tick
		}
	}
	return nil
}

// All fulfills with a slice of values, in input order, once every input
// Promise fulfills; it rejects immediately with the first rejection
// reason observed, even if other inputs remain pending. An empty input
// fulfills immediately with an empty slice.
func All(ps []*Promise) *Promise {
	result, resolve, reject := New(commonTick(ps))
	if len(ps) == 0 {
		resolve([]any{})
		return result
	}

	var mu sync.Mutex
	values := make([]any, len(ps))
	remaining := len(ps)
	done := false

	for i, p := range ps {
		idx := i
		p.Then(
			func(v any) (any, error) {
				mu.Lock()
				defer mu.Unlock()
				if done {
					return nil, nil
				}
				values[idx] = v
				remaining--
				if remaining == 0 {
					done = true
					resolve(values)
				}
				return nil, nil
			},
			func(r error) (any, error) {
				mu.Lock()
				defer mu.Unlock()
				if done {
					return nil, nil
				}
				done = true
				reject(r)
				return nil, nil
			},
		)
	}
	return result
}

// AllSettled fulfills with a slice of [SettledOutcome], in input order,
// once every input Promise has settled. It never rejects. An empty
// input fulfills immediately with an empty slice.
func AllSettled(ps []*Promise) *Promise {
	result, resolve, _ := New(commonTick(ps))
	if len(ps) == 0 {
		resolve([]SettledOutcome{})
		return result
	}

	var mu sync.Mutex
	outcomes := make([]SettledOutcome, len(ps))
	remaining := len(ps)

	for i, p := range ps {
		idx := i
		p.Then(
			func(v any) (any, error) {
				mu.Lock()
				defer mu.Unlock()
				outcomes[idx] = SettledOutcome{Status: "fulfilled", Value: v}
				remaining--
				if remaining == 0 {
					resolve(outcomes)
				}
				return nil, nil
			},
			func(r error) (any, error) {
				mu.Lock()
				defer mu.Unlock()
				outcomes[idx] = SettledOutcome{Status: "rejected", Reason: r}
				remaining--
				if remaining == 0 {
					resolve(outcomes)
				}
				return nil, nil
			},
		)
	}
	return result
}

// Any fulfills with the value of the first input Promise to fulfill; it
// rejects with an [AggregateError] only once every input has rejected.
// An empty input rejects immediately with an [AggregateError].
func Any(ps []*Promise) *Promise {
	result, resolve, reject := New(commonTick(ps))
	if len(ps) == 0 {
		reject(&AggregateError{Message: "promise: Any called with no promises"})
		return result
	}

	var mu sync.Mutex
	reasons := make([]error, len(ps))
	remaining := len(ps)
	done := false

	for i, p := range ps {
		idx := i
		p.Then(
			func(v any) (any, error) {
				mu.Lock()
				defer mu.Unlock()
				if done {
					return nil, nil
				}
				done = true
				resolve(v)
				return nil, nil
			},
			func(r error) (any, error) {
				mu.Lock()
				defer mu.Unlock()
				if done {
					return nil, nil
				}
				reasons[idx] = r
				remaining--
				if remaining == 0 {
					done = true
					reject(&AggregateError{Errors: reasons})
				}
				return nil, nil
			},
		)
	}
	return result
}

// Race settles (fulfilling or rejecting) with whichever input Promise
// settles first; later settlements are ignored. An empty input leaves
// the returned Promise pending forever (see spec.md's Open Questions on
// this; that ambiguity is preserved deliberately rather than guessed).
func Race(ps []*Promise) *Promise {
	result, resolve, reject := New(commonTick(ps))
	if len(ps) == 0 {
		return result
	}

	var mu sync.Mutex
	done := false

	for _, p := range ps {
		p.Then(
			func(v any) (any, error) {
				mu.Lock()
				defer mu.Unlock()
				if done {
					return nil, nil
				}
				done = true
				resolve(v)
				return nil, nil
			},
			func(r error) (any, error) {
				mu.Lock()
				defer mu.Unlock()
				if done {
					return nil, nil
				}
				done = true
				reject(r)
				return nil, nil
			},
		)
	}
	return result
}
