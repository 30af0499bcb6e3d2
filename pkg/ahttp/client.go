// Package ahttp is the public facade of the asynchronous HTTP client:
// an immutable, fluently-configured Client backed by a bounded-
// concurrency dispatch engine, a per-host connection pool, a stateless
// retry policy, and an onion of request middleware.
package ahttp

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"golang.org/x/time/rate"

	"github.com/Amr-9/asynchttp/internal/dispatch"
	"github.com/Amr-9/asynchttp/internal/driver"
	"github.com/Amr-9/asynchttp/internal/formatter"
	"github.com/Amr-9/asynchttp/internal/metrics"
	"github.com/Amr-9/asynchttp/internal/pool"
	"github.com/Amr-9/asynchttp/internal/retry"
	"github.com/Amr-9/asynchttp/promise"
)

// URLValidator is the pluggable predicate request submission consults;
// it should return a non-empty reason to reject a URL, or "" to accept
// it. The default rejects non-http(s) schemes.
type URLValidator func(rawURL string) (rejectReason string)

// Client is the immutable, fluently-configured entry point. Every
// With... method returns a new Client; clones share no mutable state
// with the receiver: each clone builds its own dispatch engine, and with
// it its own connection pool, driver, retry policy and metrics.
type Client struct {
	options     Options
	middlewares []Middleware
	validateURL URLValidator
	engine      *dispatch.Engine
	log         *logiface.Logger[*stumpy.Event]
}

// New creates a Client from options (zero value treated as
// [DefaultOptions] with every field left unset) and maxConcurrent (<=0
// falls back to options.MaxConcurrent, and to 50 when that is unset too).
func New(options Options, maxConcurrent int) *Client {
	if options.RetryStatusCodes == nil && options.DefaultHeaders == nil {
		options = DefaultOptions()
	}
	if maxConcurrent > 0 {
		options.MaxConcurrent = maxConcurrent
	} else if options.MaxConcurrent <= 0 {
		options.MaxConcurrent = 50
	}

	c := &Client{
		options:     options.clone(),
		validateURL: defaultURLValidator,
		log:         defaultLogger(),
	}
	c.engine = c.buildEngine(c.options.MaxConcurrent)
	return c
}

func defaultURLValidator(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return "only http and https schemes are permitted"
	}
	return ""
}

func (c *Client) buildEngine(maxConcurrent int) *dispatch.Engine {
	drv := driver.New(driver.Config{
		ConnectTimeout:  c.options.ConnectTimeout,
		ReadTimeout:     c.options.ReadTimeout,
		VerifyTLS:       c.options.VerifyTLS,
		TCPKeepAlive:    c.options.TCPKeepAlive,
		HTTP2Enabled:    c.options.Http2Enabled,
		H2C:             c.options.H2C,
		Proxy:           c.options.Proxy,
		FollowRedirects: c.options.FollowRedirects,
		MaxRedirects:    c.options.MaxRedirects,
	})
	p := pool.New(c.options.MaxPoolSize, drv.HandleFactory())
	rp := retry.NewPolicy(c.options.RetryAttempts, c.options.RetryDelay, c.options.RetryStatusCodes)

	var breaker *retry.Breaker
	if c.options.CircuitBreakerCondition != "" {
		breaker, _ = retry.NewBreaker(c.options.CircuitBreakerCondition, c.options.CircuitBreakerMinSamples)
	}

	m := metrics.NewMonitor()
	eng := dispatch.New(maxConcurrent, p, rp, breaker, m, drv)
	eng.SetLogger(&engineLogger{log: c.log})
	if c.options.RateLimitPerSecond > 0 {
		eng.SetRateLimiter(rate.NewLimiter(rate.Limit(c.options.RateLimitPerSecond), 1))
	}
	return eng
}

// clone produces a new Client sharing no mutable state with c; mutate
// is applied to the cloned Options before the engine is rebuilt.
func (c *Client) clone(mutate func(*Options)) *Client {
	next := c.options.clone()
	if mutate != nil {
		mutate(&next)
	}
	n := &Client{
		options:     next,
		middlewares: append([]Middleware(nil), c.middlewares...),
		validateURL: c.validateURL,
		log:         c.log,
	}
	n.engine = n.buildEngine(n.options.MaxConcurrent)
	return n
}

// --- fluent configuration ---

func (c *Client) WithBaseUrl(url string) *Client {
	return c.clone(func(o *Options) { o.BaseUrl = url })
}

func (c *Client) WithTimeout(seconds float64) *Client {
	d := time.Duration(seconds * float64(time.Second))
	return c.clone(func(o *Options) { o.ReadTimeout = d })
}

func (c *Client) WithUserAgent(ua string) *Client {
	return c.clone(func(o *Options) { o.UserAgent = ua })
}

func (c *Client) WithHeaders(headers map[string]string) *Client {
	return c.clone(func(o *Options) {
		merged := make(map[string]string, len(o.DefaultHeaders)+len(headers))
		for k, v := range o.DefaultHeaders {
			merged[k] = v
		}
		for k, v := range headers {
			merged[k] = v
		}
		o.DefaultHeaders = merged
	})
}

func (c *Client) WithProxy(proxy string) *Client {
	return c.clone(func(o *Options) { o.Proxy = proxy })
}

func (c *Client) WithoutTLSVerification() *Client {
	return c.clone(func(o *Options) { o.VerifyTLS = false })
}

func (c *Client) WithBearerToken(token string) *Client {
	return c.WithHeaders(map[string]string{"Authorization": "Bearer " + token})
}

func (c *Client) WithBasicAuth(user, pass string) *Client {
	return c.WithHeaders(map[string]string{"Authorization": basicAuthHeader(user, pass)})
}

func (c *Client) AsJson() *Client {
	return c.WithHeaders(map[string]string{"Content-Type": "application/json"})
}

func (c *Client) AsForm() *Client {
	return c.WithHeaders(map[string]string{"Content-Type": "application/x-www-form-urlencoded"})
}

func (c *Client) WithHttp2(enabled bool) *Client {
	return c.clone(func(o *Options) { o.Http2Enabled = enabled })
}

func (c *Client) WithTcpKeepAlive(enabled bool) *Client {
	return c.clone(func(o *Options) { o.TCPKeepAlive = enabled })
}

func (c *Client) WithMaxPoolSize(n int) *Client {
	return c.clone(func(o *Options) { o.MaxPoolSize = n })
}

func (c *Client) WithMaxConcurrent(n int) *Client {
	return c.clone(func(o *Options) { o.MaxConcurrent = n })
}

func (c *Client) WithRetry(attempts int, delay float64, statusCodes []int) *Client {
	return c.clone(func(o *Options) {
		o.RetryAttempts = attempts
		o.RetryDelay = time.Duration(delay * float64(time.Second))
		o.RetryStatusCodes = append([]int(nil), statusCodes...)
	})
}

func (c *Client) WithCircuitBreaker(condition string, minSamples int64) *Client {
	return c.clone(func(o *Options) {
		o.CircuitBreakerCondition = condition
		o.CircuitBreakerMinSamples = minSamples
	})
}

func (c *Client) WithRateLimit(requestsPerSecond float64) *Client {
	return c.clone(func(o *Options) { o.RateLimitPerSecond = requestsPerSecond })
}

func (c *Client) WithMiddleware(mw Middleware) *Client {
	n := c.clone(nil)
	n.middlewares = append(append([]Middleware(nil), c.middlewares...), mw)
	return n
}

func (c *Client) WithMiddlewares(mws []Middleware) *Client {
	n := c.clone(nil)
	n.middlewares = append(append([]Middleware(nil), c.middlewares...), mws...)
	return n
}

func (c *Client) WithOptions(options Options) *Client {
	n := c.clone(func(o *Options) { *o = options.clone() })
	return n
}

func (c *Client) WithURLValidator(v URLValidator) *Client {
	n := c.clone(nil)
	n.validateURL = v
	return n
}

func basicAuthHeader(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

// --- engine control ---

func (c *Client) Tick()                        { c.engine.Tick() }
func (c *Client) Wait(timeout time.Duration)   { c.engine.Wait(timeout) }
func (c *Client) HasPending() bool             { return c.engine.HasPending() }
func (c *Client) PendingCount() int            { return c.engine.PendingCount() }
func (c *Client) QueuedCount() int             { return c.engine.QueuedCount() }
func (c *Client) GetMetrics() metrics.Snapshot { return c.engine.Metrics().Snapshot() }
func (c *Client) GetOptions() Options          { return c.options.clone() }

// Shutdown rejects every still-queued request with a shutdown reason and
// stops accepting further submissions. Already-active transfers run to
// completion.
func (c *Client) Shutdown() { c.engine.Shutdown() }

// --- request submission ---

// Request submits method/url with optional headers, body, and query
// through the middleware pipeline and returns the settling Promise.
func (c *Client) Request(method, url string, headers map[string]string, body any, query map[string]string) *promise.Promise {
	ok, normalized, suggestion := formatter.ValidateMethod(method)
	if !ok {
		msg := fmt.Sprintf("unknown HTTP method %q", method)
		if suggestion != "" {
			msg += fmt.Sprintf(", did you mean %q?", suggestion)
		}
		return promise.Reject(&InvalidInputError{Field: "method", Value: method, Message: msg})
	}

	req := &Request{Method: normalized, URL: url, Headers: headers, Body: body, Query: query}

	chain := composeMiddlewares(c.middlewares, c.submit)
	return chain(req)
}

// submit is the terminal stage of the middleware pipeline: it resolves
// the absolute URL, merges and sanitizes headers, serializes the body,
// validates the URL, and hands the descriptor to the dispatch engine.
func (c *Client) submit(req *Request) *promise.Promise {
	absoluteURL := c.resolveURL(req.URL)

	builtURL, err := formatter.BuildUrl(absoluteURL, req.Query)
	if err != nil {
		return promise.Reject(&InvalidInputError{Field: "url", Value: req.URL, Message: err.Error()})
	}

	if reason := c.validateURL(builtURL); reason != "" {
		return promise.Reject(&InvalidInputError{Field: "url", Value: builtURL, Message: reason})
	}

	merged := formatter.MergeHeaders(req.Headers, c.defaultHeadersWithUserAgent())
	lines, err := formatter.FormatHeaders(merged)
	if err != nil {
		return promise.Reject(&InvalidInputError{Field: "headers", Value: req.URL, Message: err.Error()})
	}

	serializedBody, err := formatter.FormatParams(req.Body, merged)
	if err != nil {
		return promise.Reject(&InvalidInputError{Field: "body", Value: req.URL, Message: err.Error()})
	}

	correlationID := uuid.NewString()
	enginePromise := c.engine.Submit(dispatch.Descriptor{
		Method:        req.Method,
		URL:           builtURL,
		Headers:       lines,
		Body:          serializedBody,
		CorrelationID: correlationID,
	})

	return enginePromise.Then(
		func(v any) (any, error) {
			return fromDriverResponse(v.(*driver.Response)), nil
		},
		func(reason error) (any, error) {
			if reason == dispatch.ErrShutdown {
				return nil, reason
			}
			return nil, toTransportError(correlationID, req.Method, builtURL, reason)
		},
	)
}

func (c *Client) resolveURL(url string) string {
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return url
	}
	return c.options.BaseUrl + url
}

func (c *Client) defaultHeadersWithUserAgent() map[string]string {
	headers := make(map[string]string, len(c.options.DefaultHeaders)+1)
	for k, v := range c.options.DefaultHeaders {
		headers[k] = v
	}
	if _, ok := headers["User-Agent"]; !ok {
		headers["User-Agent"] = c.options.resolvedUserAgent()
	}
	return headers
}

// --- verb shorthands ---

func (c *Client) Get(url string, headers map[string]string, query map[string]string) *promise.Promise {
	return c.Request("GET", url, headers, nil, query)
}

func (c *Client) Post(url string, body any, headers map[string]string) *promise.Promise {
	return c.Request("POST", url, headers, body, nil)
}

func (c *Client) Put(url string, body any, headers map[string]string) *promise.Promise {
	return c.Request("PUT", url, headers, body, nil)
}

func (c *Client) Patch(url string, body any, headers map[string]string) *promise.Promise {
	return c.Request("PATCH", url, headers, body, nil)
}

func (c *Client) Delete(url string, body any, headers map[string]string) *promise.Promise {
	return c.Request("DELETE", url, headers, body, nil)
}

func (c *Client) Head(url string, headers map[string]string) *promise.Promise {
	return c.Request("HEAD", url, headers, nil, nil)
}

func (c *Client) OptionsMethod(url string, headers map[string]string) *promise.Promise {
	return c.Request("OPTIONS", url, headers, nil, nil)
}

// Json applies the JSON content-type preset then issues method/url/data.
func (c *Client) Json(method, url string, data any, headers map[string]string) *promise.Promise {
	merged := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		merged[k] = v
	}
	merged["Content-Type"] = "application/json"
	return c.Request(method, url, merged, data, nil)
}

// --- aggregate helpers ---

// Concurrent issues every entry of requests and returns a Promise of a
// map[key]*Response, fulfilling only once every request has fulfilled
// (via [promise.All] semantics) and wired to this Client's own Tick so
// that Wait on the aggregate advances this engine.
func (c *Client) Concurrent(requests map[string]func() *promise.Promise) *promise.Promise {
	keys := make([]string, 0, len(requests))
	promises := make([]*promise.Promise, 0, len(requests))
	for k, fn := range requests {
		keys = append(keys, k)
		promises = append(promises, fn())
	}

	aggregate, resolve, reject := promise.New(c.Tick)
	promise.All(promises).Then(
		func(v any) (any, error) {
			values := v.([]any)
			out := make(map[string]*Response, len(keys))
			for i, k := range keys {
				out[k] = values[i].(*Response)
			}
			resolve(out)
			return nil, nil
		},
		func(reason error) (any, error) {
			reject(reason)
			return nil, nil
		},
	)
	return aggregate
}

// Race is analogous to [Client.Concurrent] but settles with whichever
// request settles first, via [promise.Race].
func (c *Client) Race(requests map[string]func() *promise.Promise) *promise.Promise {
	promises := make([]*promise.Promise, 0, len(requests))
	for _, fn := range requests {
		promises = append(promises, fn())
	}

	aggregate, resolve, reject := promise.New(c.Tick)
	promise.Race(promises).Then(
		func(v any) (any, error) {
			resolve(v)
			return nil, nil
		},
		func(reason error) (any, error) {
			reject(reason)
			return nil, nil
		},
	)
	return aggregate
}
