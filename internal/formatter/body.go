package formatter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"
)

// FormatParams serializes body according to the resolved content type:
// a JSON content type encodes body as a JSON document (slashes left
// unescaped, matching what most HTTP peers expect from a JSON body); any
// other content type URL-encodes a map[string]string, map[string]any or
// url.Values body as form fields, and casts anything else that is not
// array-like or an object (numbers, bools, other scalars) to its string
// form instead. Other array-like or object bodies (slices, arrays,
// structs, maps of other types) are not form-encoded: they return an
// error. A nil body yields an empty
// string with no error. A raw string body is always passed through
// unchanged, regardless of content type, so callers can hand in
// pre-encoded payloads.
func FormatParams(body any, headers map[string]string) (string, error) {
	if body == nil {
		return "", nil
	}
	if s, ok := body.(string); ok {
		return s, nil
	}

	contentType := GetContentType(headers)
	if strings.Contains(strings.ToLower(contentType), "json") {
		return encodeJSON(body)
	}
	if !isArrayOrObject(body) {
		return scalarString(body), nil
	}
	return encodeForm(body)
}

// isArrayOrObject reports whether body is a map/slice/array/struct
// shape that FormatParams hands to form encoding, as opposed to a
// scalar (number, bool, or anything else) that formatParams instead
// string-casts whole.
func isArrayOrObject(body any) bool {
	switch body.(type) {
	case map[string]string, map[string]any, url.Values:
		return true
	}
	switch reflect.ValueOf(body).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		return true
	default:
		return false
	}
}

func encodeJSON(body any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(body); err != nil {
		return "", fmt.Errorf("formatter: encoding JSON body: %w", err)
	}
	// json.Encoder.Encode appends a trailing newline; callers expect a
	// clean document.
	return strings.TrimRight(buf.String(), "\n"), nil
}

func encodeForm(body any) (string, error) {
	values := url.Values{}

	switch b := body.(type) {
	case map[string]string:
		for k, v := range b {
			values.Set(k, v)
		}
	case map[string]any:
		for k, v := range b {
			values.Set(k, scalarString(v))
		}
	case url.Values:
		return b.Encode(), nil
	default:
		return "", fmt.Errorf("formatter: cannot form-encode body of type %T", body)
	}
	return values.Encode(), nil
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// BuildUrl appends query to rawURL. An empty query map returns rawURL
// unchanged. query is URL-encoded and joined with "&" to any query
// string rawURL already carries, using exactly one "?".
func BuildUrl(rawURL string, query map[string]string) (string, error) {
	if len(query) == 0 {
		return rawURL, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("formatter: invalid URL %q: %w", rawURL, err)
	}

	existing := u.Query()
	for k, v := range query {
		existing.Set(k, v)
	}
	u.RawQuery = existing.Encode()
	return u.String(), nil
}
