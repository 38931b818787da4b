package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("connection refused")
		}
		return nil
	}, fastRetryConfig(), IsRetryableNetworkError)

	if err != nil {
		t.Fatalf("Retry() failed: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	attempts := 0
	wantErr := errors.New("connection refused")
	err := Retry(context.Background(), func() error {
		attempts++
		return wantErr
	}, fastRetryConfig(), IsRetryableNetworkError)

	if !errors.Is(err, wantErr) {
		t.Fatalf("Expected last error back, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), func() error {
		attempts++
		return errors.New("unexpected server status: 401 Unauthorized")
	}, fastRetryConfig(), IsRetryableNetworkError)

	if err == nil {
		t.Fatal("Expected an error")
	}
	if attempts != 1 {
		t.Errorf("Non-retryable errors must abort immediately, got %d attempts", attempts)
	}
}

func TestRetryHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, func() error {
		return errors.New("connection refused")
	}, &RetryConfig{
		MaxAttempts:    5,
		InitialBackoff: time.Hour,
		MaxBackoff:     time.Hour,
		Multiplier:     1.0,
	}, nil)

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
}

func TestIsRetryableNetworkError(t *testing.T) {
	tests := []struct {
		err       error
		retryable bool
	}{
		{nil, false},
		{errors.New("dial tcp 127.0.0.1:8000: connect: connection refused"), true},
		{errors.New("read tcp: connection reset by peer"), true},
		{errors.New("i/o timeout"), true},
		{errors.New("context deadline exceeded"), true},
		{errors.New("unexpected server status: 500"), false},
		{errors.New("parse error"), false},
	}
	for _, tt := range tests {
		if got := IsRetryableNetworkError(tt.err); got != tt.retryable {
			t.Errorf("IsRetryableNetworkError(%v) = %v, want %v", tt.err, got, tt.retryable)
		}
	}
}
