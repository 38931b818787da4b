package client

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// DetailedArtifact is the structured output persisted next to the plain-text
// transcript. Complete is false for any failed or interrupted stream.
type DetailedArtifact struct {
	Complete            bool            `json:"complete"`
	Outcome             Outcome         `json:"outcome"`
	ErrorMessage        string          `json:"error_message,omitempty"`
	MediaName           string          `json:"media_name"`
	Language            string          `json:"language,omitempty"`
	LanguageProbability float64         `json:"language_probability,omitempty"`
	TotalSegments       int             `json:"total_segments"`
	ElapsedTime         float64         `json:"elapsed_time,omitempty"`
	Segments            []SegmentRecord `json:"segments"`
	FullText            string          `json:"full_text"`
}

// PlainText renders the transcript as ordered lines, one per segment,
// prefixed with the segment's time range.
func (t *Transcript) PlainText() string {
	var b strings.Builder
	for _, seg := range t.Segments {
		fmt.Fprintf(&b, "[%.2fs -> %.2fs] %s\n", seg.Start, seg.End, seg.Text)
	}
	return b.String()
}

// detailedPath derives the structured artifact's path from the text path.
func detailedPath(textPath string) string {
	base := textPath
	if i := strings.LastIndex(base, "."); i > strings.LastIndex(base, "/") {
		base = base[:i]
	}
	return base + "_detailed.json"
}

// Save writes both artifacts: the plain-text transcript at textPath and the
// detailed JSON beside it. Call only after the stream reached a terminal
// state; an incomplete stream is persisted with Complete=false.
func (t *Transcript) Save(textPath string) (string, error) {
	if t.outcome == OutcomePending {
		return "", fmt.Errorf("transcript is not finalized")
	}

	if err := os.WriteFile(textPath, []byte(t.PlainText()), 0o644); err != nil {
		return "", fmt.Errorf("write transcript: %w", err)
	}

	artifact := DetailedArtifact{
		Complete:            t.outcome == OutcomeComplete,
		Outcome:             t.outcome,
		ErrorMessage:        t.ErrorMessage,
		MediaName:           t.MediaName,
		Language:            t.Language,
		LanguageProbability: t.LanguageProbability,
		TotalSegments:       len(t.Segments),
		ElapsedTime:         t.ElapsedTime,
		Segments:            t.Segments,
		FullText:            t.PlainText(),
	}

	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal detailed artifact: %w", err)
	}

	jsonPath := detailedPath(textPath)
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return "", fmt.Errorf("write detailed artifact: %w", err)
	}
	return jsonPath, nil
}

// LoadDetailed parses a previously saved structured artifact.
func LoadDetailed(path string) (*DetailedArtifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var artifact DetailedArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("parse detailed artifact: %w", err)
	}
	return &artifact, nil
}
