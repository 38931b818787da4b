package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/asrlabs/asr-gateway/internal/engine"
	"github.com/asrlabs/asr-gateway/internal/stream"
	"github.com/gorilla/websocket"
)

// TranscribeWS streams recognition of a server-visible media path over the
// WebSocket endpoint. Frames carry the same payloads as the SSE stream.
func (c *Client) TranscribeWS(ctx context.Context, mediaPath string, opts engine.Options) (*Transcript, error) {
	wsURL := strings.Replace(c.serverURL, "http", "ws", 1)
	q := optionsQuery(opts)
	q.Set("media_path", mediaPath)

	u, err := url.Parse(wsURL + "/asr/ws?" + q.Encode())
	if err != nil {
		return nil, err
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("connect to gateway: %w", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	transcript := NewTranscript()
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			// Any closed read before a terminal frame is a disconnect; the
			// partial transcript is preserved.
			transcript.MarkDisconnected()
			return transcript, nil
		}

		var ev stream.Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			return transcript, &ProtocolViolation{Message: fmt.Sprintf("malformed frame: %v", err)}
		}

		if c.OnEvent != nil {
			c.OnEvent(ev)
		}
		if err := transcript.Apply(ev); err != nil {
			return transcript, err
		}
		if ev.IsTerminal() {
			return transcript, nil
		}
	}
}
