package ahttp

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amr-9/asynchttp/promise"
)

func newTestClient(baseURL string) *Client {
	return New(DefaultOptions(), 8).WithBaseUrl(baseURL)
}

func TestGetSucceeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	p := c.Get("/widgets", nil, nil)
	v, err := p.Wait(2 * time.Second)
	require.NoError(t, err)
	resp := v.(*Response)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, `{"ok":true}`, string(resp.Body))
}

func TestRetryWithBackoffThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			w.WriteHeader(503)
			return
		}
		w.WriteHeader(200)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL).WithRetry(3, 0.01, []int{503})
	start := time.Now()
	p := c.Get("/flaky", nil, nil)
	v, err := p.Wait(2 * time.Second)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, 200, v.(*Response).StatusCode)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
}

func TestPostNeverRetriesOnFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(500)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL).WithRetry(3, 0.01, []int{500})
	p := c.Post("/submit", map[string]string{"x": "1"}, nil)
	v, err := p.Wait(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, 500, v.(*Response).StatusCode)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestConcurrencyCapBoundsActiveRequests(t *testing.T) {
	var active, maxSeen int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&active, 1)
		for {
			cur := atomic.LoadInt32(&maxSeen)
			if n <= cur || atomic.CompareAndSwapInt32(&maxSeen, cur, n) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		w.WriteHeader(200)
	}))
	defer srv.Close()

	c := New(DefaultOptions(), 2).WithBaseUrl(srv.URL)
	type waiter interface {
		Wait(time.Duration) (any, error)
	}
	var waiters []waiter
	for i := 0; i < 5; i++ {
		waiters = append(waiters, c.Get("/slow", nil, nil))
	}
	for _, w := range waiters {
		_, err := w.Wait(3 * time.Second)
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, int(atomic.LoadInt32(&maxSeen)), 2)
}

func TestWithBaseUrlImmutability(t *testing.T) {
	base := New(DefaultOptions(), 4)
	derived := base.WithBaseUrl("http://example.test")

	assert.Equal(t, "", base.GetOptions().BaseUrl)
	assert.Equal(t, "http://example.test", derived.GetOptions().BaseUrl)
}

func TestWithHeadersDoesNotMutateParent(t *testing.T) {
	base := New(DefaultOptions(), 4).WithHeaders(map[string]string{"X-A": "1"})
	derived := base.WithHeaders(map[string]string{"X-B": "2"})

	_, hasB := base.GetOptions().DefaultHeaders["X-B"]
	assert.False(t, hasB)
	assert.Equal(t, "2", derived.GetOptions().DefaultHeaders["X-B"])
	assert.Equal(t, "1", derived.GetOptions().DefaultHeaders["X-A"])
}

func TestMiddlewareRunsInRegistrationOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	}))
	defer srv.Close()

	var order []string
	first := Middleware(func(req *Request, next func(*Request) *promise.Promise) *promise.Promise {
		order = append(order, "first-in")
		return next(req).Then(func(v any) (any, error) {
			order = append(order, "first-out")
			return v, nil
		}, nil)
	})
	second := Middleware(func(req *Request, next func(*Request) *promise.Promise) *promise.Promise {
		order = append(order, "second-in")
		return next(req).Then(func(v any) (any, error) {
			order = append(order, "second-out")
			return v, nil
		}, nil)
	})

	c := newTestClient(srv.URL).WithMiddleware(first).WithMiddleware(second)
	_, err := c.Get("/x", nil, nil).Wait(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, []string{"first-in", "second-in", "second-out", "first-out"}, order)
}

func TestInvalidMethodRejectsSynchronously(t *testing.T) {
	c := newTestClient("http://example.test")
	p := c.Request("FETCH", "/x", nil, nil, nil)
	assert.Equal(t, "rejected", p.State().String())
	_, err := p.Wait(time.Second)
	var invalid *InvalidInputError
	require.ErrorAs(t, err, &invalid)
}

func TestBuildUrlMergesQuery(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.WriteHeader(200)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Get("/search?existing=1", nil, map[string]string{"q": "go"}).Wait(2 * time.Second)
	require.NoError(t, err)
	assert.Contains(t, gotQuery, "existing=1")
	assert.Contains(t, gotQuery, "q=go")
}

func TestJsonBodyRoundTrips(t *testing.T) {
	var gotBody string
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(200)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Json("POST", "/items", map[string]any{"name": "widget"}, nil).Wait(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "application/json", gotContentType)
	assert.Contains(t, gotBody, `"name":"widget"`)
}
