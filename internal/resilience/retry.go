package resilience

import (
	"context"
	"strings"
	"time"
)

// RetryConfig controls exponential backoff retries. Retries here are only
// used for connection establishment; a recognition run is never re-decoded
// automatically.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// DefaultRetryConfig returns the backoff used by the client when first
// reaching the gateway.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Multiplier:     2.0,
	}
}

// Retry executes fn with exponential backoff until it succeeds, the attempts
// run out, or the context ends. When isRetryable is non-nil, a rejected
// error aborts immediately.
func Retry(ctx context.Context, fn func() error, cfg *RetryConfig, isRetryable func(error) bool) error {
	if cfg == nil {
		cfg = DefaultRetryConfig()
	}

	var lastErr error
	backoff := cfg.InitialBackoff

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if isRetryable != nil && !isRetryable(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff = time.Duration(float64(backoff) * cfg.Multiplier)
		if backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}
	return lastErr
}

// IsRetryableNetworkError reports whether an error looks like a transient
// connection problem worth another attempt.
func IsRetryableNetworkError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, s := range []string{
		"connection refused",
		"connection reset",
		"network is unreachable",
		"no route to host",
		"i/o timeout",
		"deadline exceeded",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
