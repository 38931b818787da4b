package engine

import (
	"context"
	"testing"
	"time"
)

func collect(t *testing.T, s Session) ([]Item, error) {
	t.Helper()
	var items []Item
	for item := range s.Results() {
		items = append(items, item)
	}
	return items, s.Err()
}

func TestMockEngine_Replay(t *testing.T) {
	eng := NewMockEngine(MockScript{
		Language:    "zh",
		Probability: 0.98,
		Segments: []Segment{
			{Start: 0, End: 1.5, Text: "one"},
			{Start: 1.5, End: 3.0, Text: "two"},
			{Start: 3.0, End: 4.2, Text: "three"},
		},
	})

	s, err := eng.Stream(context.Background(), "sample.mp3", validOptions())
	if err != nil {
		t.Fatalf("Stream() failed: %v", err)
	}

	items, serr := collect(t, s)
	if serr != nil {
		t.Fatalf("Expected clean exhaustion, got %v", serr)
	}
	if len(items) != 4 {
		t.Fatalf("Expected 4 items, got %d", len(items))
	}

	if items[0].Language == nil || items[0].Language.Language != "zh" {
		t.Errorf("Expected language detection first, got %+v", items[0])
	}
	for i, item := range items[1:] {
		if item.Segment == nil {
			t.Fatalf("Expected segment at position %d", i+1)
		}
		if item.Segment.ID != i+1 {
			t.Errorf("Expected segment id %d, got %d", i+1, item.Segment.ID)
		}
	}
}

func TestMockEngine_FailAfter(t *testing.T) {
	eng := NewMockEngine(MockScript{
		Language:  "en",
		Segments:  make([]Segment, 10),
		FailAfter: 5,
		Failure:   &Failure{Message: "decoder crashed", Recoverable: true},
	})

	s, err := eng.Stream(context.Background(), "sample.mp3", validOptions())
	if err != nil {
		t.Fatalf("Stream() failed: %v", err)
	}

	items, serr := collect(t, s)
	if len(items) != 6 { // language + 5 segments
		t.Errorf("Expected 6 items before failure, got %d", len(items))
	}
	f, ok := serr.(*Failure)
	if !ok {
		t.Fatalf("Expected *Failure, got %v", serr)
	}
	if !f.Recoverable || f.Message != "decoder crashed" {
		t.Errorf("Unexpected failure: %+v", f)
	}
}

func TestMockEngine_Cancel(t *testing.T) {
	eng := NewMockEngine(MockScript{
		Language: "en",
		Segments: make([]Segment, 100),
		Delay:    5 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s, err := eng.Stream(ctx, "sample.mp3", validOptions())
	if err != nil {
		t.Fatalf("Stream() failed: %v", err)
	}

	var got int
	for range s.Results() {
		got++
		if got == 3 {
			cancel()
		}
	}

	if got >= 100 {
		t.Errorf("Cancellation did not stop the stream, got %d items", got)
	}
	if s.Err() == nil {
		t.Error("Expected a cancellation failure")
	}
}

func TestMockEngine_IndependentSessions(t *testing.T) {
	eng := NewMockEngine(MockScript{
		Language: "en",
		Segments: []Segment{{Start: 0, End: 1, Text: "only"}},
	})

	for i := 0; i < 2; i++ {
		s, err := eng.Stream(context.Background(), "sample.mp3", validOptions())
		if err != nil {
			t.Fatalf("Stream() failed: %v", err)
		}
		items, serr := collect(t, s)
		if serr != nil {
			t.Fatalf("Expected clean exhaustion, got %v", serr)
		}
		if len(items) != 2 {
			t.Errorf("Run %d: expected 2 items, got %d", i, len(items))
		}
	}

	if eng.Sessions() != 2 {
		t.Errorf("Expected 2 sessions, got %d", eng.Sessions())
	}
}
