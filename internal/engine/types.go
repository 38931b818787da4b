package engine

import (
	"context"
	"fmt"
)

// Segment is one timestamped span of recognized text. Segments of a stream
// are numbered contiguously from 1 in decode order.
type Segment struct {
	ID    int
	Start float64
	End   float64
	Text  string
}

// LanguageDetection is the engine's one-time language signal, produced
// before the first segment.
type LanguageDetection struct {
	Language    string
	Probability float64
}

// Item is one element of the recognition stream: either a language detection
// or a segment, never both.
type Item struct {
	Language *LanguageDetection
	Segment  *Segment
}

// Session is one in-flight recognition run. The sequence on Results is
// finite, ordered, and not restartable: once it ends, Err reports whether
// it ended by exhaustion (nil) or by failure.
type Session interface {
	// Results yields items in decode order. The channel is closed when the
	// engine is exhausted or has failed; check Err after it closes.
	Results() <-chan Item

	// Err returns the terminal failure, if any, once Results is closed.
	Err() error

	// Close releases the session early. Safe to call more than once.
	Close() error
}

// Engine wraps an external speech recognizer behind a streaming contract.
type Engine interface {
	Stream(ctx context.Context, mediaPath string, opts Options) (Session, error)
}

// Failure is a typed engine error. Recoverable marks failures that look
// transient (resource exhaustion); it is informational for the caller and
// never triggers an automatic retry here.
type Failure struct {
	Message     string
	Recoverable bool
}

func (f *Failure) Error() string {
	return fmt.Sprintf("engine failure: %s", f.Message)
}
