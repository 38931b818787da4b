package api

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/asrlabs/asr-gateway/internal/stream"
	"github.com/gorilla/websocket"
)

func TestTranscribeWSEndpoint(t *testing.T) {
	dir := t.TempDir()
	mediaPath := filepath.Join(dir, "talk.mp3")
	if err := os.WriteFile(mediaPath, []byte("media"), 0o644); err != nil {
		t.Fatal(err)
	}
	srv := newTestServer(t, scriptedEngine(), dir)

	wsURL := strings.Replace(srv.URL, "http://", "ws://", 1) +
		"/asr/ws?media_path=" + mediaPath + "&device=cpu"

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() failed: %v", err)
	}
	defer conn.Close()
	resp.Body.Close()

	var events []stream.Event
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var ev stream.Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			t.Fatalf("Malformed frame %q: %v", payload, err)
		}
		events = append(events, ev)
		if ev.IsTerminal() {
			break
		}
	}

	if len(events) != 5 { // start, language, 2 segments, complete
		t.Fatalf("Expected 5 events, got %d: %+v", len(events), events)
	}
	if events[0].Type != stream.EventTypeStart {
		t.Errorf("First frame must be start, got %s", events[0].Type)
	}
	if last := events[len(events)-1]; last.Type != stream.EventTypeComplete || last.TotalSegments != 2 {
		t.Errorf("Unexpected terminal frame: %+v", last)
	}
}

func TestTranscribeWSRequiresMediaPath(t *testing.T) {
	srv := newTestServer(t, scriptedEngine(), t.TempDir())

	resp, err := http.Get(srv.URL + "/asr/ws")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400", resp.StatusCode)
	}
}
