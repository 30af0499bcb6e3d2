package ahttp

import (
	"strings"

	"github.com/Amr-9/asynchttp/internal/driver"
)

// Response is the library's abstract response: status, headers, and a
// materialized body. It carries no reference to the connection that
// produced it, so it's safe to hold onto after the handle that served
// it has returned to the pool.
type Response struct {
	StatusCode int
	Header     map[string][]string
	Body       []byte
	Proto      string
}

func fromDriverResponse(r *driver.Response) *Response {
	if r == nil {
		return nil
	}
	return &Response{
		StatusCode: r.StatusCode,
		Header:     map[string][]string(r.Header),
		Body:       append([]byte(nil), r.Body...),
		Proto:      r.Proto,
	}
}

// GetHeader performs a case-insensitive lookup of the first value for
// name.
func (r *Response) GetHeader(name string) string {
	if r == nil {
		return ""
	}
	for k, values := range r.Header {
		if strings.EqualFold(k, name) && len(values) > 0 {
			return values[0]
		}
	}
	return ""
}
