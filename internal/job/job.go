package job

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is a job's lifecycle position.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Cause classifies why a job failed. It distinguishes cancellation from
// engine failure, as the two release resources on different triggers.
type Cause string

const (
	CauseValidation   Cause = "validation"
	CauseInvalidInput Cause = "invalid_input"
	CauseEngine       Cause = "engine"
	CauseDelivery     Cause = "delivery"
	CauseCancelled    Cause = "cancelled"
)

// Job is one transcription request's lifecycle from acceptance to terminal
// event. A single goroutine drives it; the mutex only guards snapshots taken
// by observers.
type Job struct {
	ID string

	mu        sync.Mutex
	state     State
	cause     Cause
	startedAt time.Time
	segments  int
}

// newJob creates a pending job with a fresh id.
func newJob() *Job {
	return &Job{
		ID:        uuid.New().String(),
		state:     StatePending,
		startedAt: time.Now(),
	}
}

// transition applies a state change, rejecting edges the lifecycle does not
// allow.
func (j *Job) transition(to State) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !validTransition(j.state, to) {
		return fmt.Errorf("invalid job transition: %s -> %s", j.state, to)
	}
	j.state = to
	return nil
}

// fail marks the job failed with its cause.
func (j *Job) fail(cause Cause) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = StateFailed
	j.cause = cause
}

// State returns a snapshot of the current state.
func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// FailureCause returns the recorded cause, empty unless failed.
func (j *Job) FailureCause() Cause {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cause
}

// addSegment bumps the running counter and returns the new count, which is
// also the segment's id.
func (j *Job) addSegment() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.segments++
	return j.segments
}

// Segments returns the accumulated segment count.
func (j *Job) Segments() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.segments
}

// Elapsed returns the wall-clock time since acceptance, in seconds.
func (j *Job) Elapsed() float64 {
	return time.Since(j.startedAt).Seconds()
}

func validTransition(from, to State) bool {
	switch from {
	case StatePending:
		return to == StateRunning || to == StateFailed
	case StateRunning:
		return to == StateCompleted || to == StateFailed
	default:
		return false
	}
}
