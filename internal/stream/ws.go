package stream

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// WSEncoder frames events as JSON text messages on a WebSocket connection.
// The payloads are identical to the SSE frames; only the framing differs.
type WSEncoder struct {
	conn        *websocket.Conn
	sendTimeout time.Duration
}

// NewWSEncoder wraps an upgraded connection as an event stream.
func NewWSEncoder(conn *websocket.Conn, sendTimeout time.Duration) *WSEncoder {
	return &WSEncoder{conn: conn, sendTimeout: sendTimeout}
}

// Encode pushes one event as a text message. WebSocket messages are not
// buffered by the library, so a returned nil means the frame left the server.
func (e *WSEncoder) Encode(ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if e.sendTimeout > 0 {
		_ = e.conn.SetWriteDeadline(time.Now().Add(e.sendTimeout))
	}
	if err := e.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return &DeliveryError{Err: err}
	}
	return nil
}

// Close sends a close frame and tears down the connection.
func (e *WSEncoder) Close() error {
	deadline := time.Now().Add(time.Second)
	_ = e.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		deadline,
	)
	return e.conn.Close()
}

// Encoder is the common contract of the SSE and WebSocket framings: one call
// per event, in emission order, each frame pushed before the next call.
type Encoder interface {
	Encode(Event) error
}
