package ahttp

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "options.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestOptionsFromYAMLAppliesOverrides(t *testing.T) {
	path := writeYAML(t, `
base_url: https://api.example.test
connect_timeout: 5s
verify_tls: false
retry_attempts: 3
retry_delay: 250ms
retry_status_codes: [500, 503]
headers:
  X-Team: platform
circuit_breaker:
  stop_if: "errors > 10%"
  min_samples: 50
rate_limit_per_second: 20
`)

	opts, err := OptionsFromYAML(path)
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.test", opts.BaseUrl)
	assert.Equal(t, 5e9, float64(opts.ConnectTimeout))
	assert.False(t, opts.VerifyTLS)
	assert.Equal(t, 3, opts.RetryAttempts)
	assert.Equal(t, []int{500, 503}, opts.RetryStatusCodes)
	assert.Equal(t, "platform", opts.DefaultHeaders["X-Team"])
	assert.Equal(t, "errors > 10%", opts.CircuitBreakerCondition)
	assert.EqualValues(t, 50, opts.CircuitBreakerMinSamples)
	assert.Equal(t, 20.0, opts.RateLimitPerSecond)
}

func TestOptionsFromYAMLLeavesUnsetFieldsAtDefault(t *testing.T) {
	path := writeYAML(t, `base_url: https://api.example.test`)

	opts, err := OptionsFromYAML(path)
	require.NoError(t, err)

	defaults := DefaultOptions()
	assert.Equal(t, defaults.FollowRedirects, opts.FollowRedirects)
	assert.Equal(t, defaults.MaxPoolSize, opts.MaxPoolSize)
	assert.Equal(t, defaults.RetryStatusCodes, opts.RetryStatusCodes)
}

func TestOptionsFromYAMLRejectsBadDuration(t *testing.T) {
	path := writeYAML(t, `connect_timeout: "not-a-duration"`)

	_, err := OptionsFromYAML(path)
	assert.Error(t, err)
}

func TestOptionsFromYAMLMissingFile(t *testing.T) {
	_, err := OptionsFromYAML(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
