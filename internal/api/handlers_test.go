package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/asrlabs/asr-gateway/internal/config"
	"github.com/asrlabs/asr-gateway/internal/engine"
	"github.com/asrlabs/asr-gateway/internal/job"
	"github.com/asrlabs/asr-gateway/internal/media"
	"github.com/asrlabs/asr-gateway/internal/stream"
	"github.com/rs/zerolog"
)

func testConfig(tempDir string) *config.Config {
	return &config.Config{
		Port:               "0",
		TempDir:            tempDir,
		GPUPoolSize:        1,
		CPUPoolSize:        2,
		SendTimeoutSeconds: 5,
		EventBuffer:        16,
		DefaultModelSize:   engine.ModelMedium,
		DefaultDevice:      engine.DeviceCPU,
		DefaultComputeType: engine.ComputeInt8,
		DefaultBeamSize:    5,
		DefaultLanguage:    "zh",
	}
}

func newTestServer(t *testing.T, eng engine.Engine, tempDir string) *httptest.Server {
	t.Helper()
	cfg := testConfig(tempDir)
	pool := job.NewDevicePool(map[string]int{
		engine.DeviceCUDA: cfg.GPUPoolSize,
		engine.DeviceCPU:  cfg.CPUPoolSize,
	})
	controller := job.NewController(eng, media.NewIngestor(tempDir), pool, cfg.EventBuffer, zerolog.Nop())

	mux := http.NewServeMux()
	NewServer(cfg, controller, zerolog.Nop()).Routes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// decodeFrames parses a complete SSE response body into events.
func decodeFrames(t *testing.T, body io.Reader) []stream.Event {
	t.Helper()
	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatal(err)
	}

	var events []stream.Event
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev stream.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("Malformed frame %q: %v", line, err)
		}
		events = append(events, ev)
	}
	return events
}

func scriptedEngine() *engine.MockEngine {
	return engine.NewMockEngine(engine.MockScript{
		Language:    "zh",
		Probability: 0.98,
		Segments: []engine.Segment{
			{Start: 0, End: 1.5, Text: "第一段"},
			{Start: 1.5, End: 3.0, Text: "第二段"},
		},
	})
}

func TestRootEndpoint(t *testing.T) {
	srv := newTestServer(t, scriptedEngine(), t.TempDir())

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Status = %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["message"] == "" {
		t.Error("Root response missing message")
	}

	notFound, err := http.Get(srv.URL + "/nope")
	if err != nil {
		t.Fatal(err)
	}
	notFound.Body.Close()
	if notFound.StatusCode != http.StatusNotFound {
		t.Errorf("Unknown path status = %d, want 404", notFound.StatusCode)
	}
}

func TestTranscribeEndpoint(t *testing.T) {
	dir := t.TempDir()
	mediaPath := filepath.Join(dir, "talk.mp3")
	if err := os.WriteFile(mediaPath, []byte("media"), 0o644); err != nil {
		t.Fatal(err)
	}
	srv := newTestServer(t, scriptedEngine(), dir)

	resp, err := http.Get(srv.URL + "/asr?media_path=" + mediaPath + "&model_size=small&device=cpu")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	events := decodeFrames(t, resp.Body)
	if len(events) != 5 { // start, language, 2 segments, complete
		t.Fatalf("Expected 5 events, got %d: %+v", len(events), events)
	}
	if events[0].Type != stream.EventTypeStart || events[0].FileName != "talk.mp3" {
		t.Errorf("Unexpected start frame: %+v", events[0])
	}
	last := events[len(events)-1]
	if last.Type != stream.EventTypeComplete || last.TotalSegments != 2 {
		t.Errorf("Unexpected terminal frame: %+v", last)
	}
}

func TestTranscribeRequiresMediaPath(t *testing.T) {
	srv := newTestServer(t, scriptedEngine(), t.TempDir())

	resp, err := http.Get(srv.URL + "/asr")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400", resp.StatusCode)
	}
}

func TestTranscribeMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, scriptedEngine(), t.TempDir())

	resp, err := http.Post(srv.URL+"/asr?media_path=x", "text/plain", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("Status = %d, want 405", resp.StatusCode)
	}
}

func TestTranscribeInvalidOptions(t *testing.T) {
	dir := t.TempDir()
	mediaPath := filepath.Join(dir, "talk.mp3")
	if err := os.WriteFile(mediaPath, []byte("media"), 0o644); err != nil {
		t.Fatal(err)
	}
	srv := newTestServer(t, scriptedEngine(), dir)

	// Option errors are reported on the stream, not as an HTTP status.
	resp, err := http.Get(srv.URL + "/asr?media_path=" + mediaPath + "&beam_size=lots")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Status = %d, want 200", resp.StatusCode)
	}

	events := decodeFrames(t, resp.Body)
	if len(events) != 2 {
		t.Fatalf("Expected start then error, got %d events", len(events))
	}
	if events[1].Type != stream.EventTypeError {
		t.Fatalf("Expected error frame, got %s", events[1].Type)
	}
	if events[1].Recoverable == nil || *events[1].Recoverable {
		t.Error("Option errors must be non-recoverable")
	}
}

func postUpload(t *testing.T, url, fieldName, fileName string, content []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(fieldName, fileName)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Post(url, writer.FormDataContentType(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestUploadEndpoint(t *testing.T) {
	dir := t.TempDir()
	srv := newTestServer(t, scriptedEngine(), dir)

	resp := postUpload(t, srv.URL+"/asr/upload?device=cpu", "file", "clip.mp3", []byte("media-bytes"))
	defer resp.Body.Close()

	events := decodeFrames(t, resp.Body)
	if len(events) != 5 {
		t.Fatalf("Expected 5 events, got %d", len(events))
	}
	if events[0].FileName != "clip.mp3" {
		t.Errorf("Start frame file_name = %q, want clip.mp3", events[0].FileName)
	}
	if events[len(events)-1].Type != stream.EventTypeComplete {
		t.Errorf("Expected complete, got %+v", events[len(events)-1])
	}

	// Temp media is released once the job finishes.
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("Expected no leftover temp files, found %d", len(entries))
	}
}

func TestUploadEmptyFile(t *testing.T) {
	eng := scriptedEngine()
	srv := newTestServer(t, eng, t.TempDir())

	resp := postUpload(t, srv.URL+"/asr/upload", "file", "empty.mp3", nil)
	defer resp.Body.Close()

	events := decodeFrames(t, resp.Body)
	if len(events) != 2 {
		t.Fatalf("Expected start then error, got %d events: %+v", len(events), events)
	}
	if events[0].Type != stream.EventTypeStart {
		t.Errorf("First frame must be start, got %s", events[0].Type)
	}
	if events[1].Type != stream.EventTypeError || !strings.Contains(events[1].ErrorMessage, "empty upload") {
		t.Errorf("Expected empty-upload error, got %+v", events[1])
	}
	if eng.Sessions() != 0 {
		t.Error("Engine must not run for a rejected upload")
	}
}

func TestUploadRequiresFileField(t *testing.T) {
	srv := newTestServer(t, scriptedEngine(), t.TempDir())

	resp := postUpload(t, srv.URL+"/asr/upload", "attachment", "clip.mp3", []byte("x"))
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400", resp.StatusCode)
	}
}
