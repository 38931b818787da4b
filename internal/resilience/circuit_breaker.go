package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while the breaker rejects calls outright.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitState is the breaker's current mode.
type CircuitState int

const (
	StateClosed   CircuitState = iota // normal operation
	StateOpen                         // calls fail immediately
	StateHalfOpen                     // probing recovery
)

// CircuitBreaker protects a dependency that can fail persistently, such as
// the recognizer process spawn. After maxFailures consecutive failures the
// breaker opens; after resetTimeout it lets a few probe calls through.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	halfOpenMax  int

	mu            sync.Mutex
	state         CircuitState
	failureCount  int
	successCount  int
	halfOpenCalls int
	lastFailure   time.Time
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(name string, maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		name:         name,
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		halfOpenMax:  3,
		state:        StateClosed,
	}
}

// Call runs fn under breaker protection.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if !cb.allow() {
		return ErrCircuitOpen
	}
	err := fn()
	cb.record(err == nil)
	return err
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(cb.lastFailure) >= cb.resetTimeout {
			cb.state = StateHalfOpen
			cb.halfOpenCalls = 0
			cb.successCount = 0
			cb.halfOpenCalls++
			return true
		}
		return false
	case StateHalfOpen:
		if cb.halfOpenCalls < cb.halfOpenMax {
			cb.halfOpenCalls++
			return true
		}
		return false
	}
	return false
}

func (cb *CircuitBreaker) record(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if success {
		switch cb.state {
		case StateClosed:
			cb.failureCount = 0
		case StateHalfOpen:
			cb.successCount++
			if cb.successCount >= cb.halfOpenMax {
				cb.state = StateClosed
				cb.failureCount = 0
				cb.halfOpenCalls = 0
				cb.successCount = 0
			}
		}
		return
	}

	cb.lastFailure = time.Now()
	switch cb.state {
	case StateClosed:
		cb.failureCount++
		if cb.failureCount >= cb.maxFailures {
			cb.state = StateOpen
		}
	case StateHalfOpen:
		cb.state = StateOpen
		cb.halfOpenCalls = 0
		cb.successCount = 0
	}
}

// State returns the breaker's current mode.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Name identifies the protected dependency.
func (cb *CircuitBreaker) Name() string { return cb.name }

// Reset forces the breaker closed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failureCount = 0
	cb.halfOpenCalls = 0
	cb.successCount = 0
}
