package client

import (
	"fmt"
	"io"

	"github.com/asrlabs/asr-gateway/internal/stream"
)

// Renderer prints events as they arrive, giving live progress during a
// stream. It does no buffering: each segment is written when received.
type Renderer struct {
	out io.Writer
}

// NewRenderer creates a renderer writing to out.
func NewRenderer(out io.Writer) *Renderer {
	return &Renderer{out: out}
}

// Render prints one event. Plug it into Client.OnEvent.
func (r *Renderer) Render(ev stream.Event) {
	switch ev.Type {
	case stream.EventTypeStart:
		fmt.Fprintf(r.out, "processing %s (%s)\n", ev.FileName, ev.FileType)
	case stream.EventTypeLanguageDetected:
		fmt.Fprintf(r.out, "detected language %s (confidence %.3f)\n", ev.Language, ev.LanguageProbability)
	case stream.EventTypeSegment:
		fmt.Fprintf(r.out, "[%6.2fs -> %6.2fs] %s\n", ev.StartTime, ev.EndTime, ev.Text)
	case stream.EventTypeComplete:
		fmt.Fprintf(r.out, "done: %d segments in %.2fs\n", ev.TotalSegments, ev.ElapsedTime)
	case stream.EventTypeError:
		fmt.Fprintf(r.out, "server error: %s\n", ev.ErrorMessage)
	}
}

// Report prints the final outcome, always distinguishing a clean completion
// from any failure and showing how much arrived before a fault.
func (r *Renderer) Report(t *Transcript) {
	switch t.Outcome() {
	case OutcomeComplete:
		fmt.Fprintf(r.out, "transcription complete (%d segments)\n", len(t.Segments))
	case OutcomeServerError:
		fmt.Fprintf(r.out, "transcription failed: %s (%d segments received)\n",
			t.ErrorMessage, len(t.Segments))
	case OutcomeDisconnected:
		fmt.Fprintf(r.out, "connection lost before completion (%d segments received)\n",
			len(t.Segments))
	}
}
