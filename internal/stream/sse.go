package stream

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// DeliveryError reports that a frame could not be pushed to the consumer,
// either because the connection broke or because the per-frame send timeout
// elapsed. It is terminal for the job that owns the stream.
type DeliveryError struct {
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("event delivery failed: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// SSEEncoder frames events as Server-Sent Events on an HTTP response.
// Every frame is flushed before the next event is accepted, so a consumer
// observes events with no batching delay.
type SSEEncoder struct {
	w           http.ResponseWriter
	rc          *http.ResponseController
	sendTimeout time.Duration
	headersSent bool
}

// NewSSEEncoder wraps an HTTP response as an event stream. sendTimeout bounds
// each frame write; zero disables the deadline.
func NewSSEEncoder(w http.ResponseWriter, sendTimeout time.Duration) *SSEEncoder {
	return &SSEEncoder{
		w:           w,
		rc:          http.NewResponseController(w),
		sendTimeout: sendTimeout,
	}
}

// writeHeaders marks the response as an incremental event stream.
func (e *SSEEncoder) writeHeaders() {
	h := e.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("Access-Control-Allow-Origin", "*")
	e.w.WriteHeader(http.StatusOK)
	e.headersSent = true
}

// Encode writes one event as a single `data:` frame and flushes it.
func (e *SSEEncoder) Encode(ev Event) error {
	if !e.headersSent {
		e.writeHeaders()
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if e.sendTimeout > 0 {
		// Best effort: not every ResponseWriter supports deadlines
		// (httptest recorders do not), and a stream without one still works.
		_ = e.rc.SetWriteDeadline(time.Now().Add(e.sendTimeout))
	}

	if _, err := fmt.Fprintf(e.w, "data: %s\n\n", payload); err != nil {
		return &DeliveryError{Err: err}
	}
	if err := e.rc.Flush(); err != nil {
		return &DeliveryError{Err: err}
	}
	return nil
}
