package engine

import (
	"context"
	"sync"
	"time"
)

// MockScript configures a scripted recognition run for tests and dry runs.
type MockScript struct {
	// Language emitted before the first segment; skipped when empty.
	Language    string
	Probability float64

	// Segments replayed in order. IDs are assigned 1..N on emission.
	Segments []Segment

	// FailAfter injects a failure once this many segments were emitted.
	// Negative means never fail.
	FailAfter int
	Failure   *Failure

	// Delay between items, to exercise cancellation and backpressure.
	Delay time.Duration
}

// MockEngine replays a script instead of invoking a recognizer. Each call
// to Stream starts an independent session over the same script.
type MockEngine struct {
	Script MockScript

	mu       sync.Mutex
	sessions int
}

// NewMockEngine creates a mock with FailAfter disabled.
func NewMockEngine(script MockScript) *MockEngine {
	if script.FailAfter == 0 && script.Failure == nil {
		script.FailAfter = -1
	}
	return &MockEngine{Script: script}
}

// Sessions reports how many sessions were started.
func (m *MockEngine) Sessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions
}

func (m *MockEngine) Stream(ctx context.Context, mediaPath string, opts Options) (Session, error) {
	m.mu.Lock()
	m.sessions++
	m.mu.Unlock()

	s := &mockSession{
		script:  m.Script,
		results: make(chan Item),
		done:    make(chan struct{}),
	}
	go s.replay(ctx)
	return s, nil
}

type mockSession struct {
	script  MockScript
	results chan Item
	done    chan struct{}

	mu        sync.Mutex
	err       error
	closeOnce sync.Once
}

func (s *mockSession) Results() <-chan Item { return s.results }

func (s *mockSession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *mockSession) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

func (s *mockSession) fail(f *Failure) {
	s.mu.Lock()
	s.err = f
	s.mu.Unlock()
}

func (s *mockSession) send(ctx context.Context, item Item) bool {
	select {
	case s.results <- item:
		return true
	case <-ctx.Done():
		s.fail(&Failure{Message: "recognition cancelled", Recoverable: false})
		return false
	case <-s.done:
		return false
	}
}

func (s *mockSession) replay(ctx context.Context) {
	defer close(s.results)

	if s.script.Language != "" {
		det := LanguageDetection{Language: s.script.Language, Probability: s.script.Probability}
		if !s.send(ctx, Item{Language: &det}) {
			return
		}
	}

	for i, seg := range s.script.Segments {
		seg := seg
		if s.script.FailAfter >= 0 && i >= s.script.FailAfter {
			break
		}
		if s.script.Delay > 0 {
			select {
			case <-time.After(s.script.Delay):
			case <-ctx.Done():
				s.fail(&Failure{Message: "recognition cancelled", Recoverable: false})
				return
			case <-s.done:
				return
			}
		}
		seg.ID = i + 1
		if !s.send(ctx, Item{Segment: &seg}) {
			return
		}
	}

	if s.script.FailAfter >= 0 && s.script.FailAfter <= len(s.script.Segments) {
		f := s.script.Failure
		if f == nil {
			f = &Failure{Message: "scripted failure", Recoverable: false}
		}
		s.fail(f)
	}
}
