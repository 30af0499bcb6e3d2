package formatter

import "strings"

// ValidMethods is the set of HTTP methods the client will submit.
var ValidMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS", "TRACE", "CONNECT"}

// ValidateMethod reports whether method (case-insensitively) is one of
// ValidMethods, and if not, suggests the closest valid method by edit
// distance for inclusion in the resulting error message.
func ValidateMethod(method string) (ok bool, normalized string, suggestion string) {
	upper := strings.ToUpper(method)
	for _, valid := range ValidMethods {
		if upper == valid {
			return true, upper, ""
		}
	}
	return false, "", closestMethod(upper)
}

func closestMethod(input string) string {
	best := ""
	bestDistance := 1 << 30
	for _, candidate := range ValidMethods {
		d := levenshtein(input, candidate)
		if d < bestDistance && d <= len(candidate)/2+1 {
			bestDistance = d
			best = candidate
		}
	}
	if best == input {
		return ""
	}
	return best
}

// levenshtein computes the edit distance between a and b.
func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
