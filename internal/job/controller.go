package job

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/asrlabs/asr-gateway/internal/engine"
	"github.com/asrlabs/asr-gateway/internal/media"
	"github.com/asrlabs/asr-gateway/internal/observability"
	"github.com/asrlabs/asr-gateway/internal/resilience"
	"github.com/asrlabs/asr-gateway/internal/stream"
	"github.com/rs/zerolog"
)

// Request is one accepted transcription submission.
type Request struct {
	Input   media.Input
	Options engine.Options
}

// mediaName is the display name used for the opening frame, known before
// ingestion resolves the input.
func (r Request) mediaName() string {
	if r.Input.UploadName != "" {
		return filepath.Base(r.Input.UploadName)
	}
	return filepath.Base(r.Input.Path)
}

// Controller owns job lifecycles. Each Run drives one job on its own
// goroutine and emits a strictly ordered event sequence:
// start, language_detected?, segment*, then exactly one of complete/error.
type Controller struct {
	eng         engine.Engine
	ingestor    *media.Ingestor
	pool        *DevicePool
	logger      zerolog.Logger
	eventBuffer int
}

// NewController wires the controller's collaborators. eventBuffer bounds the
// channel between the job goroutine and the transport pump.
func NewController(eng engine.Engine, ingestor *media.Ingestor, pool *DevicePool, eventBuffer int, logger zerolog.Logger) *Controller {
	if eventBuffer < 1 {
		eventBuffer = 1
	}
	return &Controller{
		eng:         eng,
		ingestor:    ingestor,
		pool:        pool,
		logger:      logger,
		eventBuffer: eventBuffer,
	}
}

// Run accepts a request and returns its event stream. The channel closes
// after the terminal event, or without one only when ctx ends first (the
// consumer is gone, so nothing is lost). Cancelling ctx stops the engine,
// releases the media source, and fails the job with a cancellation cause.
func (c *Controller) Run(ctx context.Context, req Request) (*Job, <-chan stream.Event) {
	j := newJob()
	events := make(chan stream.Event, c.eventBuffer)
	go c.run(ctx, j, req, events)
	return j, events
}

func (c *Controller) run(ctx context.Context, j *Job, req Request, events chan<- stream.Event) {
	defer close(events)

	logger := c.logger.With().Str("job_id", j.ID).Logger()
	metrics := observability.NewJobMetrics()

	// emit delivers one event unless the consumer is gone.
	emit := func(ev stream.Event) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			j.fail(CauseCancelled)
			return false
		}
	}

	// fail emits the terminal error frame and records the failure. The frame
	// is best effort: a cancelled consumer cannot receive it.
	fail := func(cause Cause, message string, recoverable bool) {
		j.fail(cause)
		observability.RecordError(string(cause), "job")
		logger.Warn().Str("cause", string(cause)).Str("error", message).Msg("job failed")
		emit(stream.NewError(message, recoverable))
		metrics.RecordEnd(string(cause))
	}

	fileType := media.FileType(req.mediaName())
	if err := j.transition(StateRunning); err != nil {
		// Unreachable for a fresh job; guards future callers.
		fail(CauseValidation, err.Error(), false)
		return
	}

	// The opening frame is unconditional once the job is accepted, so the
	// consumer always learns which job began, even when validation fails.
	if !emit(stream.NewStart(req.mediaName(), fileType)) {
		metrics.RecordEnd(string(CauseCancelled))
		return
	}

	logger.Info().
		Str("media", req.mediaName()).
		Str("model", req.Options.ModelSize).
		Str("device", req.Options.Device).
		Str("language", req.Options.Language).
		Msg("job started")

	if err := req.Options.Validate(); err != nil {
		fail(CauseValidation, err.Error(), false)
		return
	}

	source, err := c.ingestor.Resolve(req.Input)
	if err != nil {
		fail(CauseInvalidInput, err.Error(), false)
		return
	}
	// Owned temp media is removed on every exit path from here on.
	defer source.Release()

	release, err := c.pool.Acquire(ctx, req.Options.Device)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			j.fail(CauseCancelled)
			metrics.RecordEnd(string(CauseCancelled))
			logger.Info().Msg("job cancelled while waiting for device slot")
			return
		}
		fail(CauseValidation, err.Error(), false)
		return
	}
	defer release()

	session, err := c.eng.Stream(ctx, source.Path, req.Options)
	if err != nil {
		observability.RecordEngineSession(req.Options.Device, "spawn_error")
		message, recoverable := failureDetails(err)
		fail(CauseEngine, message, recoverable)
		return
	}
	defer session.Close()

	for item := range session.Results() {
		switch {
		case item.Language != nil:
			if !emit(stream.NewLanguageDetected(item.Language.Language, item.Language.Probability)) {
				metrics.RecordEnd(string(CauseCancelled))
				return
			}
		case item.Segment != nil:
			id := j.addSegment()
			metrics.RecordSegment()
			seg := item.Segment
			if !emit(stream.NewSegment(id, seg.Start, seg.End, seg.Text)) {
				metrics.RecordEnd(string(CauseCancelled))
				return
			}
		}
	}

	if err := session.Err(); err != nil {
		observability.RecordEngineSession(req.Options.Device, "error")
		if ctx.Err() != nil {
			// Consumer disconnected mid-run; the engine was cancelled on its
			// behalf, not by its own failure.
			j.fail(CauseCancelled)
			metrics.RecordEnd(string(CauseCancelled))
			logger.Info().Int("segments", j.Segments()).Msg("job cancelled by consumer")
			return
		}
		message, recoverable := failureDetails(err)
		fail(CauseEngine, message, recoverable)
		return
	}

	observability.RecordEngineSession(req.Options.Device, "ok")
	if err := j.transition(StateCompleted); err != nil {
		fail(CauseEngine, err.Error(), false)
		return
	}

	total := j.Segments()
	elapsed := j.Elapsed()
	if emit(stream.NewComplete(total, elapsed, source.FileType)) {
		logger.Info().
			Int("total_segments", total).
			Float64("elapsed_seconds", elapsed).
			Msg("job completed")
	}
	metrics.RecordEnd("completed")
}

// failureDetails extracts the message and recoverability flag from an engine
// error. A rejected spawn from an open circuit breaker counts as transient.
func failureDetails(err error) (string, bool) {
	var f *engine.Failure
	if errors.As(err, &f) {
		return f.Message, f.Recoverable
	}
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return "recognition engine unavailable", true
	}
	return err.Error(), false
}
