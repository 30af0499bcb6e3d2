package ahttp

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// yamlOptions mirrors the subset of Options a caller would reasonably
// want to externalize into a config file, the way the teacher's
// scenario config separated a YAML-facing struct from its runtime model.
type yamlOptions struct {
	BaseUrl          string            `yaml:"base_url,omitempty"`
	ConnectTimeout   string            `yaml:"connect_timeout,omitempty"`
	ReadTimeout      string            `yaml:"read_timeout,omitempty"`
	FollowRedirects  *bool             `yaml:"follow_redirects,omitempty"`
	MaxRedirects     int               `yaml:"max_redirects,omitempty"`
	VerifyTLS        *bool             `yaml:"verify_tls,omitempty"`
	UserAgent        string            `yaml:"user_agent,omitempty"`
	Proxy            string            `yaml:"proxy,omitempty"`
	Headers          map[string]string `yaml:"headers,omitempty"`
	RetryAttempts    int               `yaml:"retry_attempts,omitempty"`
	RetryDelay       string            `yaml:"retry_delay,omitempty"`
	RetryStatusCodes []int             `yaml:"retry_status_codes,omitempty"`
	Http2Enabled     bool              `yaml:"http2,omitempty"`
	TCPKeepAlive     *bool             `yaml:"tcp_keep_alive,omitempty"`
	MaxPoolSize      int               `yaml:"max_pool_size,omitempty"`
	MaxConcurrent    int               `yaml:"max_concurrent,omitempty"`
	CircuitBreaker   struct {
		StopIf     string `yaml:"stop_if,omitempty"`
		MinSamples int64  `yaml:"min_samples,omitempty"`
	} `yaml:"circuit_breaker,omitempty"`
	RateLimitPerSecond float64 `yaml:"rate_limit_per_second,omitempty"`
}

// OptionsFromYAML reads path and applies its fields on top of
// [DefaultOptions], returning the resulting Options. Unset fields keep
// their default; explicit zero values in the file (e.g. verify_tls:
// false) are honored via pointer fields for the handful of booleans
// where false is meaningfully different from "not set".
func OptionsFromYAML(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("ahttp: reading options file: %w", err)
	}

	var y yamlOptions
	if err := yaml.Unmarshal(data, &y); err != nil {
		return Options{}, fmt.Errorf("ahttp: parsing options file: %w", err)
	}

	opts := DefaultOptions()

	if y.BaseUrl != "" {
		opts.BaseUrl = y.BaseUrl
	}
	if y.ConnectTimeout != "" {
		d, err := time.ParseDuration(y.ConnectTimeout)
		if err != nil {
			return Options{}, fmt.Errorf("ahttp: invalid connect_timeout %q: %w", y.ConnectTimeout, err)
		}
		opts.ConnectTimeout = d
	}
	if y.ReadTimeout != "" {
		d, err := time.ParseDuration(y.ReadTimeout)
		if err != nil {
			return Options{}, fmt.Errorf("ahttp: invalid read_timeout %q: %w", y.ReadTimeout, err)
		}
		opts.ReadTimeout = d
	}
	if y.FollowRedirects != nil {
		opts.FollowRedirects = *y.FollowRedirects
	}
	if y.MaxRedirects != 0 {
		opts.MaxRedirects = y.MaxRedirects
	}
	if y.VerifyTLS != nil {
		opts.VerifyTLS = *y.VerifyTLS
	}
	if y.UserAgent != "" {
		opts.UserAgent = y.UserAgent
	}
	if y.Proxy != "" {
		opts.Proxy = y.Proxy
	}
	for k, v := range y.Headers {
		opts.DefaultHeaders[k] = v
	}
	if y.RetryAttempts != 0 {
		opts.RetryAttempts = y.RetryAttempts
	}
	if y.RetryDelay != "" {
		d, err := time.ParseDuration(y.RetryDelay)
		if err != nil {
			return Options{}, fmt.Errorf("ahttp: invalid retry_delay %q: %w", y.RetryDelay, err)
		}
		opts.RetryDelay = d
	}
	if len(y.RetryStatusCodes) > 0 {
		opts.RetryStatusCodes = y.RetryStatusCodes
	}
	opts.Http2Enabled = y.Http2Enabled
	if y.TCPKeepAlive != nil {
		opts.TCPKeepAlive = *y.TCPKeepAlive
	}
	if y.MaxPoolSize != 0 {
		opts.MaxPoolSize = y.MaxPoolSize
	}
	if y.MaxConcurrent != 0 {
		opts.MaxConcurrent = y.MaxConcurrent
	}
	opts.CircuitBreakerCondition = y.CircuitBreaker.StopIf
	opts.CircuitBreakerMinSamples = y.CircuitBreaker.MinSamples
	opts.RateLimitPerSecond = y.RateLimitPerSecond

	return opts, nil
}
