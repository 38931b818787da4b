package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/asrlabs/asr-gateway/internal/config"
	"github.com/asrlabs/asr-gateway/internal/engine"
	"github.com/asrlabs/asr-gateway/internal/job"
	"github.com/asrlabs/asr-gateway/internal/media"
	"github.com/asrlabs/asr-gateway/internal/observability"
	"github.com/asrlabs/asr-gateway/internal/stream"
	"github.com/rs/zerolog"
)

// Server exposes the transcription endpoints.
type Server struct {
	cfg        *config.Config
	controller *job.Controller
	logger     zerolog.Logger
}

// NewServer builds the API surface around one job controller.
func NewServer(cfg *config.Config, controller *job.Controller, logger zerolog.Logger) *Server {
	return &Server{cfg: cfg, controller: controller, logger: logger}
}

// Routes registers all endpoints on the mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/asr", s.handleTranscribe)
	mux.HandleFunc("/asr/upload", s.handleUpload)
	mux.HandleFunc("/asr/ws", s.handleTranscribeWS)
}

// handleRoot answers the connection test.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "asr gateway running",
		"version": "1.0.0",
	})
}

// optionsFromQuery reads transcription options, falling back to the
// configured defaults. Values are validated later by the controller, which
// reports them on the event stream rather than as an HTTP error.
func (s *Server) optionsFromQuery(r *http.Request) engine.Options {
	q := r.URL.Query()
	opts := engine.Options{
		ModelSize:   s.cfg.DefaultModelSize,
		Device:      s.cfg.DefaultDevice,
		ComputeType: s.cfg.DefaultComputeType,
		BeamSize:    s.cfg.DefaultBeamSize,
		Language:    s.cfg.DefaultLanguage,
	}
	if v := q.Get("model_size"); v != "" {
		opts.ModelSize = v
	}
	if v := q.Get("device"); v != "" {
		opts.Device = v
	}
	if v := q.Get("compute_type"); v != "" {
		opts.ComputeType = v
	}
	if v := q.Get("beam_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.BeamSize = n
		} else {
			opts.BeamSize = -1 // fails validation instead of silently defaulting
		}
	}
	if v := q.Get("language"); v != "" {
		opts.Language = v
	}
	return opts
}

// handleTranscribe streams recognition of a server-visible media path as
// Server-Sent Events.
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	mediaPath := r.URL.Query().Get("media_path")
	if mediaPath == "" {
		http.Error(w, "media_path is required", http.StatusBadRequest)
		return
	}

	req := job.Request{
		Input:   media.Input{Path: mediaPath},
		Options: s.optionsFromQuery(r),
	}
	s.streamJob(w, r, req)
}

// handleUpload persists the posted media and streams its recognition as
// Server-Sent Events. Options arrive as query parameters alongside the
// multipart body.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "multipart field \"file\" is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	observability.RecordUploadBytes(header.Size)

	req := job.Request{
		Input: media.Input{
			Upload:     file,
			UploadName: header.Filename,
		},
		Options: s.optionsFromQuery(r),
	}
	s.streamJob(w, r, req)
}

// streamJob runs one job and pumps its events through an SSE encoder. A
// failed push cancels the job; the engine stops and resources are released
// even though the consumer never sees a terminal frame.
func (s *Server) streamJob(w http.ResponseWriter, r *http.Request, req job.Request) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	j, events := s.controller.Run(ctx, req)
	enc := stream.NewSSEEncoder(w, time.Duration(s.cfg.SendTimeoutSeconds)*time.Second)
	s.pump(cancel, j, events, enc)
}

// pump forwards events to the encoder in emission order until the stream
// closes or a frame fails to deliver.
func (s *Server) pump(cancel context.CancelFunc, j *job.Job, events <-chan stream.Event, enc stream.Encoder) {
	for ev := range events {
		if err := enc.Encode(ev); err != nil {
			var deliveryErr *stream.DeliveryError
			if errors.As(err, &deliveryErr) {
				observability.RecordDeliveryFailure()
			}
			s.logger.Warn().Err(err).Str("job_id", j.ID).Msg("event delivery failed, cancelling job")
			cancel()
			for range events {
				// Drain so the controller can finish releasing resources.
			}
			return
		}
	}
}
