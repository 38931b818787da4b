package client

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/asrlabs/asr-gateway/internal/stream"
)

func TestPlainTextLines(t *testing.T) {
	tr := NewTranscript()
	applyAll(t, tr,
		stream.NewStart("talk.mp3", "audio"),
		stream.NewSegment(1, 0.0, 2.5, "hello"),
		stream.NewSegment(2, 2.5, 4.0, "world"),
	)

	want := "[0.00s -> 2.50s] hello\n[2.50s -> 4.00s] world\n"
	if got := tr.PlainText(); got != want {
		t.Errorf("PlainText() = %q, want %q", got, want)
	}
}

func TestDetailedPath(t *testing.T) {
	tests := []struct{ in, want string }{
		{"out.txt", "out_detailed.json"},
		{"/tmp/run/out.txt", "/tmp/run/out_detailed.json"},
		{"noext", "noext_detailed.json"},
		{"/tmp/v1.2/out", "/tmp/v1.2/out_detailed.json"},
	}
	for _, tt := range tests {
		if got := detailedPath(tt.in); got != tt.want {
			t.Errorf("detailedPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSaveAndLoadDetailed(t *testing.T) {
	tr := NewTranscript()
	applyAll(t, tr,
		stream.NewStart("talk.mp3", "audio"),
		stream.NewLanguageDetected("zh", 0.95),
		stream.NewSegment(1, 0.0, 2.0, "你好"),
		stream.NewComplete(1, 2.1, "audio"),
	)

	textPath := filepath.Join(t.TempDir(), "out.txt")
	jsonPath, err := tr.Save(textPath)
	if err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	text, err := os.ReadFile(textPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(text), "你好") {
		t.Errorf("Transcript text missing segment: %q", text)
	}

	artifact, err := LoadDetailed(jsonPath)
	if err != nil {
		t.Fatalf("LoadDetailed() failed: %v", err)
	}
	if !artifact.Complete || artifact.Outcome != OutcomeComplete {
		t.Errorf("Artifact not marked complete: %+v", artifact)
	}
	if artifact.MediaName != "talk.mp3" || artifact.Language != "zh" {
		t.Errorf("Metadata lost: %+v", artifact)
	}
	if len(artifact.Segments) != 1 || artifact.Segments[0].Text != "你好" {
		t.Errorf("Segments lost: %+v", artifact.Segments)
	}
	if artifact.FullText != tr.PlainText() {
		t.Errorf("FullText mismatch: %q", artifact.FullText)
	}
}

func TestSaveIncompleteStream(t *testing.T) {
	tr := NewTranscript()
	applyAll(t, tr,
		stream.NewStart("talk.mp3", "audio"),
		stream.NewSegment(1, 0, 1, "partial"),
	)

	if _, err := tr.Save(filepath.Join(t.TempDir(), "out.txt")); err == nil {
		t.Fatal("Save() must refuse a pending transcript")
	}

	tr.MarkDisconnected()
	jsonPath, err := tr.Save(filepath.Join(t.TempDir(), "out.txt"))
	if err != nil {
		t.Fatalf("Save() after disconnect failed: %v", err)
	}

	artifact, err := LoadDetailed(jsonPath)
	if err != nil {
		t.Fatal(err)
	}
	if artifact.Complete {
		t.Error("Disconnected transcript must persist Complete=false")
	}
	if artifact.Outcome != OutcomeDisconnected {
		t.Errorf("Outcome = %s, want disconnected", artifact.Outcome)
	}
}
