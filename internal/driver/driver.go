// Package driver implements the transfer engine the dispatch package
// multiplexes over: it turns a resolved request (method, URL, headers,
// body) into a completed response or a transport error, using net/http
// with an HTTP/2-capable transport. Everything above this package
// treats it as opaque — admit a transfer, get a completion.
package driver

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/http2"

	"github.com/Amr-9/asynchttp/internal/pool"
)

// Config carries the subset of client Options the transport needs.
type Config struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	VerifyTLS      bool
	TCPKeepAlive   bool
	HTTP2Enabled   bool
	H2C            bool
	Proxy          string
	FollowRedirects bool
	MaxRedirects    int
}

// Transfer is a fully resolved outbound request: absolute URL, wire-ready
// header lines, and an already-serialized body.
type Transfer struct {
	Method  string
	URL     string
	Headers []string
	Body    string
}

// Response is the driver's view of a completed transfer.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Proto      string
}

// Handle is the pool.Handle the driver hands to the pool: a client bound
// to a single shared transport, plus per-request scratch state cleared
// on Reset.
type Handle struct {
	client      *http.Client
	stickyVary  map[string]string
}

func (h *Handle) Reset() {
	for k := range h.stickyVary {
		delete(h.stickyVary, k)
	}
}

func (h *Handle) Close() error { return nil }

// Driver performs transfers handed to it by the dispatch engine.
type Driver struct {
	client *http.Client
}

// New builds a Driver from cfg, configuring HTTP/2 (with or without h2c)
// the same way the teacher's load-test engine configures its transport:
// ForceAttemptHTTP2 plus explicit http2.ConfigureTransport for regular
// TLS, or a raw h2c transport dialing plaintext when H2C is requested.
func New(cfg Config) *Driver {
	var rt http.RoundTripper

	keepAlive := 30 * time.Second
	if !cfg.TCPKeepAlive {
		keepAlive = -1
	}

	if cfg.H2C {
		rt = &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				return (&net.Dialer{
					Timeout:   cfg.ConnectTimeout,
					KeepAlive: keepAlive,
				}).DialContext(ctx, network, addr)
			},
		}
	} else {
		transport := &http.Transport{
			TLSClientConfig:     &tls.Config{InsecureSkipVerify: !cfg.VerifyTLS},
			DisableKeepAlives:   !cfg.TCPKeepAlive,
			ForceAttemptHTTP2:   cfg.HTTP2Enabled,
			IdleConnTimeout:     90 * time.Second,
			MaxIdleConnsPerHost: 16,
			DialContext: (&net.Dialer{
				Timeout:   cfg.ConnectTimeout,
				KeepAlive: keepAlive,
			}).DialContext,
		}
		if cfg.Proxy != "" {
			if proxyURL, err := url.Parse(cfg.Proxy); err == nil {
				transport.Proxy = http.ProxyURL(proxyURL)
			}
		}
		if cfg.HTTP2Enabled {
			_ = http2.ConfigureTransport(transport)
		}
		rt = transport
	}

	client := &http.Client{
		Transport: rt,
		Timeout:   cfg.ReadTimeout,
	}
	if !cfg.FollowRedirects {
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	} else if cfg.MaxRedirects > 0 {
		max := cfg.MaxRedirects
		client.CheckRedirect = func(_ *http.Request, via []*http.Request) error {
			if len(via) > max {
				return http.ErrUseLastResponse
			}
			return nil
		}
	}

	return &Driver{client: client}
}

// HandleFactory returns a pool.Factory that allocates Handles sharing
// this Driver's client/transport — the pool never needs a distinct
// client per host, since net/http's Transport already keys its
// connection cache by host internally; what the pool manages above that
// is handle-level reuse and the per-host cap the spec calls for.
func (d *Driver) HandleFactory() pool.Factory {
	return func(host string) (pool.Handle, error) {
		return &Handle{client: d.client, stickyVary: make(map[string]string)}, nil
	}
}

// Perform executes t using handle's client and returns the completed
// response, or a transport error (DNS, TCP, TLS, protocol failure).
func (d *Driver) Perform(ctx context.Context, handle pool.Handle, t Transfer) (*Response, error) {
	h, _ := handle.(*Handle)
	client := d.client
	if h != nil {
		client = h.client
	}

	var bodyReader io.Reader
	if t.Body != "" {
		bodyReader = strings.NewReader(t.Body)
	}

	req, err := http.NewRequestWithContext(ctx, t.Method, t.URL, bodyReader)
	if err != nil {
		return nil, err
	}
	for _, line := range t.Headers {
		name, value, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}
		req.Header.Add(name, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
		Proto:      resp.Proto,
	}, nil
}
