package api

import (
	"context"
	"net/http"
	"time"

	"github.com/asrlabs/asr-gateway/internal/job"
	"github.com/asrlabs/asr-gateway/internal/media"
	"github.com/asrlabs/asr-gateway/internal/stream"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Origin validation is a deployment concern; the gateway itself
		// accepts any origin.
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// handleTranscribeWS streams recognition of a server-visible media path over
// a WebSocket. The frames carry the same JSON payloads as the SSE endpoint;
// a close frame follows the terminal event.
func (s *Server) handleTranscribeWS(w http.ResponseWriter, r *http.Request) {
	mediaPath := r.URL.Query().Get("media_path")
	if mediaPath == "" {
		http.Error(w, "media_path is required", http.StatusBadRequest)
		return
	}
	req := job.Request{
		Input:   media.Input{Path: mediaPath},
		Options: s.optionsFromQuery(r),
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// A read loop is required to notice the peer going away; the stream
	// itself is strictly server-to-client.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	enc := stream.NewWSEncoder(conn, time.Duration(s.cfg.SendTimeoutSeconds)*time.Second)
	defer enc.Close()

	j, events := s.controller.Run(ctx, req)
	s.pump(cancel, j, events, enc)
}
