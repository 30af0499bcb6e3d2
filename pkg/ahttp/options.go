package ahttp

import (
	"fmt"
	"runtime"
	"time"
)

// defaultRetryStatusCodes is the out-of-the-box retryStatusCodes set.
var defaultRetryStatusCodes = []int{429, 502, 503, 504}

// Options is the immutable per-client configuration record. Every
// With... method on [Client] returns a Client wrapping a new Options
// value; the receiver's Options is never mutated.
type Options struct {
	BaseUrl         string
	ConnectTimeout  time.Duration
	ReadTimeout     time.Duration
	FollowRedirects bool
	MaxRedirects    int
	VerifyTLS       bool
	UserAgent       string
	Proxy           string
	DefaultHeaders  map[string]string
	RetryAttempts   int
	RetryDelay      time.Duration
	RetryStatusCodes []int
	Http2Enabled    bool
	H2C             bool
	TCPKeepAlive    bool
	MaxPoolSize     int
	MaxConcurrent   int
	CircuitBreakerCondition string
	CircuitBreakerMinSamples int64
	RateLimitPerSecond float64
}

// DefaultOptions returns the library's baseline Options, matching the
// defaults spelled out for every field: 30s connect/read timeouts,
// redirects followed up to 5 times, TLS verification on, no retries,
// {429,502,503,504} as the retry status set, HTTP/2 off, keep-alive on.
func DefaultOptions() Options {
	return Options{
		ConnectTimeout:   30 * time.Second,
		ReadTimeout:      30 * time.Second,
		FollowRedirects:  true,
		MaxRedirects:     5,
		VerifyTLS:        true,
		DefaultHeaders:   map[string]string{},
		RetryAttempts:    0,
		RetryDelay:       time.Second,
		RetryStatusCodes: append([]int(nil), defaultRetryStatusCodes...),
		Http2Enabled:     false,
		TCPKeepAlive:     true,
		MaxPoolSize:      16,
		MaxConcurrent:    50,
	}
}

// clone returns a deep-enough copy of o so that mutating the copy's
// maps/slices never bleeds back into o.
func (o Options) clone() Options {
	headers := make(map[string]string, len(o.DefaultHeaders))
	for k, v := range o.DefaultHeaders {
		headers[k] = v
	}
	codes := append([]int(nil), o.RetryStatusCodes...)
	o.DefaultHeaders = headers
	o.RetryStatusCodes = codes
	return o
}

// resolvedUserAgent returns the configured UserAgent, or a default
// identifying this library and the Go runtime version if none was set.
func (o Options) resolvedUserAgent() string {
	if o.UserAgent != "" {
		return o.UserAgent
	}
	return fmt.Sprintf("asynchttp/1.0 (%s; %s)", runtime.Version(), runtime.GOOS)
}
