package stream

import "time"

// EventType tags a transcript event frame.
type EventType string

const (
	EventTypeStart            EventType = "start"
	EventTypeLanguageDetected EventType = "language_detected"
	EventTypeSegment          EventType = "segment"
	EventTypeComplete         EventType = "complete"
	EventTypeError            EventType = "error"
)

// Event is one frame of a job's transcript stream. It is a tagged union
// flattened into a single struct so that every frame marshals to the wire
// format directly; fields that do not belong to the tagged type stay empty.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp float64   `json:"timestamp"`

	// start
	FileName string `json:"file_name,omitempty"`
	FileType string `json:"file_type,omitempty"`

	// language_detected
	Language            string  `json:"language,omitempty"`
	LanguageProbability float64 `json:"language_probability,omitempty"`

	// segment
	SegmentID int     `json:"segment_id,omitempty"`
	StartTime float64 `json:"start_time,omitempty"`
	EndTime   float64 `json:"end_time,omitempty"`
	Text      string  `json:"text,omitempty"`

	// complete
	TotalSegments int     `json:"total_segments,omitempty"`
	ElapsedTime   float64 `json:"elapsed_time,omitempty"`

	// error
	ErrorMessage string `json:"error_message,omitempty"`
	Recoverable  *bool  `json:"recoverable,omitempty"`
}

// IsTerminal reports whether the event ends a job's stream.
func (e Event) IsTerminal() bool {
	return e.Type == EventTypeComplete || e.Type == EventTypeError
}

// now returns the wall clock as epoch seconds, matching the wire format.
func now() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}

// NewStart builds the opening frame of a stream.
func NewStart(fileName, fileType string) Event {
	return Event{
		Type:      EventTypeStart,
		Timestamp: now(),
		FileName:  fileName,
		FileType:  fileType,
	}
}

// NewLanguageDetected builds the one-time language detection frame.
func NewLanguageDetected(language string, probability float64) Event {
	return Event{
		Type:                EventTypeLanguageDetected,
		Timestamp:           now(),
		Language:            language,
		LanguageProbability: probability,
	}
}

// NewSegment builds a frame for one recognized segment.
func NewSegment(id int, start, end float64, text string) Event {
	return Event{
		Type:      EventTypeSegment,
		Timestamp: now(),
		SegmentID: id,
		StartTime: start,
		EndTime:   end,
		Text:      text,
	}
}

// NewComplete builds the successful terminal frame.
func NewComplete(totalSegments int, elapsed float64, fileType string) Event {
	return Event{
		Type:          EventTypeComplete,
		Timestamp:     now(),
		TotalSegments: totalSegments,
		ElapsedTime:   elapsed,
		FileType:      fileType,
	}
}

// NewError builds the failure terminal frame.
func NewError(message string, recoverable bool) Event {
	return Event{
		Type:         EventTypeError,
		Timestamp:    now(),
		ErrorMessage: message,
		Recoverable:  &recoverable,
	}
}
