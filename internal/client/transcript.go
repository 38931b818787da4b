package client

import (
	"fmt"

	"github.com/asrlabs/asr-gateway/internal/stream"
)

// ProtocolViolation reports an ordering violation observed in the incoming
// stream: a segment id gap, a decreasing timestamp, or frames after a
// terminal event. It is terminal for the consumer and says nothing about the
// server's job state.
type ProtocolViolation struct {
	Message string
}

func (e *ProtocolViolation) Error() string {
	return fmt.Sprintf("protocol violation: %s", e.Message)
}

// Outcome is the terminal state of a consumed stream.
type Outcome string

const (
	// OutcomePending means no terminal event was seen yet.
	OutcomePending Outcome = "pending"
	// OutcomeComplete means the server reported a clean completion.
	OutcomeComplete Outcome = "complete"
	// OutcomeServerError means the server reported a failure.
	OutcomeServerError Outcome = "error"
	// OutcomeDisconnected means the connection ended before a terminal
	// event; the partial transcript is preserved.
	OutcomeDisconnected Outcome = "disconnected"
)

// SegmentRecord is one received segment as persisted in the detailed
// artifact.
type SegmentRecord struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript reconstructs a job's output incrementally from its event
// stream. It is valid for partial display at any point and finalized by a
// terminal event or a connection loss.
type Transcript struct {
	MediaName           string
	FileType            string
	Language            string
	LanguageProbability float64
	Segments            []SegmentRecord
	TotalSegments       int
	ElapsedTime         float64
	ErrorMessage        string

	outcome Outcome
	started bool
}

// NewTranscript creates an empty, pending transcript.
func NewTranscript() *Transcript {
	return &Transcript{outcome: OutcomePending}
}

// Outcome returns the transcript's terminal state.
func (t *Transcript) Outcome() Outcome { return t.outcome }

// Apply folds one event into the transcript, enforcing the stream's
// ordering contract.
func (t *Transcript) Apply(ev stream.Event) error {
	if t.outcome != OutcomePending {
		return &ProtocolViolation{Message: fmt.Sprintf("event %q after terminal event", ev.Type)}
	}

	switch ev.Type {
	case stream.EventTypeStart:
		if t.started {
			return &ProtocolViolation{Message: "duplicate start event"}
		}
		t.started = true
		t.MediaName = ev.FileName
		t.FileType = ev.FileType

	case stream.EventTypeLanguageDetected:
		if !t.started {
			return &ProtocolViolation{Message: "language_detected before start"}
		}
		if t.Language != "" {
			return &ProtocolViolation{Message: "duplicate language_detected event"}
		}
		if len(t.Segments) > 0 {
			return &ProtocolViolation{Message: "language_detected after first segment"}
		}
		t.Language = ev.Language
		t.LanguageProbability = ev.LanguageProbability

	case stream.EventTypeSegment:
		if !t.started {
			return &ProtocolViolation{Message: "segment before start"}
		}
		if want := len(t.Segments) + 1; ev.SegmentID != want {
			return &ProtocolViolation{
				Message: fmt.Sprintf("segment_id %d, expected %d", ev.SegmentID, want),
			}
		}
		if n := len(t.Segments); n > 0 && ev.StartTime < t.Segments[n-1].Start {
			return &ProtocolViolation{
				Message: fmt.Sprintf("segment %d start_time %.3f decreased below %.3f",
					ev.SegmentID, ev.StartTime, t.Segments[n-1].Start),
			}
		}
		if ev.EndTime < ev.StartTime {
			return &ProtocolViolation{
				Message: fmt.Sprintf("segment %d end_time %.3f before start_time %.3f",
					ev.SegmentID, ev.EndTime, ev.StartTime),
			}
		}
		t.Segments = append(t.Segments, SegmentRecord{
			ID:    ev.SegmentID,
			Start: ev.StartTime,
			End:   ev.EndTime,
			Text:  ev.Text,
		})

	case stream.EventTypeComplete:
		if !t.started {
			return &ProtocolViolation{Message: "complete before start"}
		}
		if ev.TotalSegments != len(t.Segments) {
			return &ProtocolViolation{
				Message: fmt.Sprintf("complete reports %d segments, received %d",
					ev.TotalSegments, len(t.Segments)),
			}
		}
		t.TotalSegments = ev.TotalSegments
		t.ElapsedTime = ev.ElapsedTime
		t.outcome = OutcomeComplete

	case stream.EventTypeError:
		if !t.started {
			return &ProtocolViolation{Message: "error before start"}
		}
		t.ErrorMessage = ev.ErrorMessage
		t.outcome = OutcomeServerError

	default:
		return &ProtocolViolation{Message: fmt.Sprintf("unknown event type %q", ev.Type)}
	}

	return nil
}

// MarkDisconnected finalizes the transcript after a connection loss. It is a
// no-op once a terminal event was applied.
func (t *Transcript) MarkDisconnected() {
	if t.outcome == OutcomePending {
		t.outcome = OutcomeDisconnected
	}
}
