package engine

import (
	"bufio"
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/asrlabs/asr-gateway/internal/observability"
	"github.com/asrlabs/asr-gateway/internal/resilience"
	"github.com/rs/zerolog"
)

//go:embed assets/faster_whisper.py
var helperFS embed.FS

// WhisperEngine runs faster-whisper in a helper process and streams its
// NDJSON output. One process per session; the process is killed when the
// session's context is cancelled.
type WhisperEngine struct {
	python  string
	script  string
	breaker *resilience.CircuitBreaker
	logger  zerolog.Logger

	scriptOnce sync.Once
	scriptErr  error
}

// NewWhisperEngine creates the adapter. python is the interpreter to invoke
// ("python3" if empty); script overrides the embedded helper when set.
// breaker guards process spawns so a persistently broken engine fails fast.
func NewWhisperEngine(python, script string, breaker *resilience.CircuitBreaker, logger zerolog.Logger) *WhisperEngine {
	if python == "" {
		python = "python3"
	}
	return &WhisperEngine{
		python:  python,
		script:  script,
		breaker: breaker,
		logger:  logger,
	}
}

// scriptPath materializes the embedded helper on first use.
func (w *WhisperEngine) scriptPath() (string, error) {
	if w.script != "" {
		return w.script, nil
	}
	w.scriptOnce.Do(func() {
		data, err := helperFS.ReadFile("assets/faster_whisper.py")
		if err != nil {
			w.scriptErr = err
			return
		}
		path := filepath.Join(os.TempDir(), "asr_gateway_faster_whisper.py")
		if err := os.WriteFile(path, data, 0o755); err != nil {
			w.scriptErr = fmt.Errorf("write helper script: %w", err)
			return
		}
		w.script = path
	})
	return w.script, w.scriptErr
}

// helperLine is one NDJSON record emitted by the helper process.
type helperLine struct {
	Type        string  `json:"type"`
	Language    string  `json:"language,omitempty"`
	Probability float64 `json:"probability,omitempty"`
	Start       float64 `json:"start,omitempty"`
	End         float64 `json:"end,omitempty"`
	Text        string  `json:"text,omitempty"`
	Message     string  `json:"message,omitempty"`
}

// Stream starts one recognition run. The returned session yields the
// language detection first, then segments in decode order.
func (w *WhisperEngine) Stream(ctx context.Context, mediaPath string, opts Options) (Session, error) {
	script, err := w.scriptPath()
	if err != nil {
		return nil, &Failure{Message: err.Error(), Recoverable: false}
	}

	args := []string{
		script,
		"--media", mediaPath,
		"--model", opts.ModelSize,
		"--device", opts.Device,
		"--compute-type", opts.ComputeType,
		"--beam-size", strconv.Itoa(opts.BeamSize),
	}
	if opts.Language != LanguageAuto {
		args = append(args, "--language", opts.Language)
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(sessionCtx, w.python, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, &Failure{Message: err.Error(), Recoverable: false}
	}

	spawn := func() error { return cmd.Start() }
	if w.breaker != nil {
		err = w.breaker.Call(spawn)
		observability.UpdateCircuitBreakerState(w.breaker.Name(), int(w.breaker.State()))
	} else {
		err = spawn()
	}
	if err != nil {
		cancel()
		return nil, &Failure{Message: fmt.Sprintf("start recognizer: %v", err), Recoverable: true}
	}

	s := &whisperSession{
		cancel:  cancel,
		results: make(chan Item, 1),
	}

	w.logger.Debug().
		Str("media", mediaPath).
		Str("model", opts.ModelSize).
		Str("device", opts.Device).
		Msg("recognizer process started")

	go s.pump(sessionCtx, cmd, stdout, &stderr)
	return s, nil
}

// whisperSession drives one helper process.
type whisperSession struct {
	cancel  context.CancelFunc
	results chan Item

	mu  sync.Mutex
	err error
}

func (s *whisperSession) Results() <-chan Item { return s.results }

func (s *whisperSession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *whisperSession) Close() error {
	s.cancel()
	return nil
}

func (s *whisperSession) fail(f *Failure) {
	s.mu.Lock()
	s.err = f
	s.mu.Unlock()
}

// pump decodes NDJSON lines as the helper produces them. Segment ids are
// assigned here so they are contiguous regardless of what the helper emits.
func (s *whisperSession) pump(ctx context.Context, cmd *exec.Cmd, stdout io.Reader, stderr *bytes.Buffer) {
	defer close(s.results)
	defer s.cancel()

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	failed := false
	nextID := 1

scan:
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var rec helperLine
		if err := json.Unmarshal(line, &rec); err != nil {
			s.fail(&Failure{Message: fmt.Sprintf("malformed recognizer output: %v", err), Recoverable: false})
			failed = true
			break
		}

		var item Item
		switch rec.Type {
		case "language":
			item.Language = &LanguageDetection{
				Language:    rec.Language,
				Probability: rec.Probability,
			}
		case "segment":
			item.Segment = &Segment{
				ID:    nextID,
				Start: rec.Start,
				End:   rec.End,
				Text:  strings.TrimSpace(rec.Text),
			}
			nextID++
		case "error":
			s.fail(classifyFailure(rec.Message))
			failed = true
			break scan
		default:
			continue
		}

		select {
		case s.results <- item:
		case <-ctx.Done():
			s.fail(&Failure{Message: "recognition cancelled", Recoverable: false})
			failed = true
			break scan
		}
	}

	// Reap the process on every path; a failed run was cancelled above.
	if failed {
		s.cancel()
	}
	err := cmd.Wait()
	if failed || err == nil {
		return
	}
	if ctx.Err() != nil {
		s.fail(&Failure{Message: "recognition cancelled", Recoverable: false})
		return
	}
	msg := strings.TrimSpace(stderr.String())
	if msg == "" {
		msg = err.Error()
	}
	s.fail(classifyFailure(msg))
}

// classifyFailure marks resource exhaustion as recoverable; unreadable or
// corrupt media is not.
func classifyFailure(message string) *Failure {
	lower := strings.ToLower(message)
	recoverable := strings.Contains(lower, "out of memory") ||
		strings.Contains(lower, "resource") ||
		strings.Contains(lower, "temporarily unavailable") ||
		strings.Contains(lower, "too many")
	return &Failure{Message: message, Recoverable: recoverable}
}
