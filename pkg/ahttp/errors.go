package ahttp

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// InvalidInputError is raised synchronously from request-submitting
// methods for an unknown HTTP method or a URL rejected by the
// validation predicate.
type InvalidInputError struct {
	Field   string
	Value   string
	Message string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("ahttp: invalid %s %q: %s", e.Field, e.Value, e.Message)
}

// TransportError wraps a transport-level failure (DNS, TCP, TLS,
// protocol) reported by the driver.
type TransportError struct {
	URL           string
	Method        string
	CorrelationID string
	Cause         error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("ahttp: transport error for %s %s [%s]: %v", e.Method, e.URL, e.CorrelationID, e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }

// HttpError is constructed, by choice, from a Response whose status
// indicates failure; the core never raises this on its own, only the
// fromResponse factory used by opt-in middleware.
type HttpError struct {
	URL        string
	Method     string
	StatusCode int
	Response   *Response
	Message    string
}

func (e *HttpError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("ahttp: %s %s returned %d: %s", e.Method, e.URL, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("ahttp: %s %s returned %d", e.Method, e.URL, e.StatusCode)
}

// FromResponse builds an HttpError from resp if its status code is >=
// 400, otherwise returns nil. It attempts to extract a human-readable
// message from a JSON body's "message" or "error" field via gjson,
// falling back to the raw body.
func FromResponse(method, url string, resp *Response) *HttpError {
	if resp == nil || resp.StatusCode < 400 {
		return nil
	}

	message := ""
	if len(resp.Body) > 0 {
		parsed := gjson.ParseBytes(resp.Body)
		if parsed.IsObject() {
			if m := parsed.Get("message"); m.Exists() {
				message = m.String()
			} else if m := parsed.Get("error"); m.Exists() {
				message = m.String()
			}
		}
		if message == "" {
			message = string(resp.Body)
		}
	}

	return &HttpError{URL: url, Method: method, StatusCode: resp.StatusCode, Response: resp, Message: message}
}

// TimeoutKind, RejectionKind, and AggregateKind are fulfilled by
// [promise.TimeoutError], [promise.RejectionError], and
// [promise.AggregateError]: every Promise this package returns, from
// [Client.Request] down through [Client.Concurrent] and [Client.Race],
// is a *promise.Promise, so those are the types a caller's Wait
// actually observes for those three taxonomy members.

// toTransportError wraps a raw driver-level transport error into the
// taxonomy's TransportError.
func toTransportError(correlationID, method, url string, err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{URL: url, Method: method, CorrelationID: correlationID, Cause: err}
}
