// Package formatter implements the pure request-shaping functions shared
// by every outbound request: header merging and sanitization, body
// serialization by content type, and URL/query composition. None of it
// touches a socket; it only prepares what the driver eventually sends.
package formatter

import (
	"fmt"
	"sort"
	"strings"
)

// tokenByte reports whether b is legal in an RFC 7230 "token" (the
// grammar HTTP header field names must satisfy).
func tokenByte(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	}
	switch b {
	case '!', '#', '$', '%', '&', '\'', '*', '+', '-', '.', '^', '_', '`', '|', '~':
		return true
	}
	return false
}

func isToken(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !tokenByte(s[i]) {
			return false
		}
	}
	return true
}

// validHeaderValue rejects CR, LF, NUL, and every other control byte
// (below 0x20, and DEL); printable ASCII, space, horizontal tab, and the
// high-byte range 0x80-0xFF (for raw UTF-8 passthrough) are permitted.
func validHeaderValue(v string) bool {
	for i := 0; i < len(v); i++ {
		b := v[i]
		switch b {
		case '\r', '\n', 0, 0x7f:
			return false
		}
		if b < 0x20 && b != '\t' {
			return false
		}
	}
	return true
}

// MergeHeaders unions custom over defaults, case-insensitively. custom
// wins on key collision; the surviving casing is whichever side
// supplied the winning value.
func MergeHeaders(custom, defaults map[string]string) map[string]string {
	type entry struct {
		key   string
		value string
	}
	merged := make(map[string]entry, len(defaults)+len(custom))

	lower := func(k string) string { return strings.ToLower(k) }

	for k, v := range defaults {
		merged[lower(k)] = entry{key: k, value: v}
	}
	for k, v := range custom {
		merged[lower(k)] = entry{key: k, value: v}
	}

	out := make(map[string]string, len(merged))
	for _, e := range merged {
		out[e.key] = e.value
	}
	return out
}

// FormatHeaders renders headers into wire-ready "Name: Value" lines,
// sorted by name for determinism. It returns an error naming the first
// offending header if any name fails the token grammar or any value
// contains CR, LF, or NUL.
func FormatHeaders(headers map[string]string) ([]string, error) {
	lines := make([]string, 0, len(headers))
	for name, value := range headers {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if !isToken(name) {
			return nil, fmt.Errorf("formatter: invalid header name %q", name)
		}
		if !validHeaderValue(value) {
			return nil, fmt.Errorf("formatter: invalid header value for %q", name)
		}
		lines = append(lines, name+": "+value)
	}
	sort.Strings(lines)
	return lines, nil
}

// GetContentType performs a case-insensitive header lookup for
// "Content-Type", defaulting to application/x-www-form-urlencoded when
// absent.
func GetContentType(headers map[string]string) string {
	for name, value := range headers {
		if strings.EqualFold(name, "Content-Type") {
			return value
		}
	}
	return "application/x-www-form-urlencoded"
}

// ValidateHeaderName is exported for callers (e.g. interceptors) that
// want to validate a single header name ahead of submission.
func ValidateHeaderName(name string) bool {
	return isToken(name)
}
