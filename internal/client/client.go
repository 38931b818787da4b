package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/asrlabs/asr-gateway/internal/engine"
	"github.com/asrlabs/asr-gateway/internal/resilience"
	"github.com/asrlabs/asr-gateway/internal/stream"
)

const ssePrefix = "data: "

// Client consumes a gateway's event streams and reconstructs transcripts.
type Client struct {
	serverURL  string
	httpClient *http.Client

	// OnEvent, when set, observes every decoded event as it arrives, before
	// it is folded into the transcript. Used for live rendering.
	OnEvent func(stream.Event)
}

// New creates a client for the given server base URL. The HTTP client has
// no overall timeout: transcription streams are long-lived by design, and
// cancellation flows through the request context.
func New(serverURL string) *Client {
	return &Client{
		serverURL:  strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{},
	}
}

// Ping verifies the gateway is reachable, retrying transient connection
// errors with backoff.
func (c *Client) Ping(ctx context.Context) error {
	return resilience.Retry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serverURL+"/", nil)
		if err != nil {
			return err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected server status: %s", resp.Status)
		}
		return nil
	}, nil, resilience.IsRetryableNetworkError)
}

// optionsQuery encodes transcription options as query parameters.
func optionsQuery(opts engine.Options) url.Values {
	q := url.Values{}
	q.Set("model_size", opts.ModelSize)
	q.Set("device", opts.Device)
	q.Set("compute_type", opts.ComputeType)
	q.Set("beam_size", strconv.Itoa(opts.BeamSize))
	q.Set("language", opts.Language)
	return q
}

// Transcribe streams recognition of a server-visible media path and returns
// the reconstructed transcript. The transcript's Outcome distinguishes a
// clean completion from a server-reported error or a dropped connection; a
// non-nil error means the stream itself was unusable.
func (c *Client) Transcribe(ctx context.Context, mediaPath string, opts engine.Options) (*Transcript, error) {
	q := optionsQuery(opts)
	q.Set("media_path", mediaPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serverURL+"/asr?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connect to gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("gateway rejected request: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	return c.consume(resp.Body)
}

// Upload posts a local file to the gateway and streams its recognition.
func (c *Client) Upload(ctx context.Context, filePath string, opts engine.Options) (*Transcript, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open media file: %w", err)
	}
	defer f.Close()

	// The multipart body is piped so large files are never buffered whole.
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		part, err := writer.CreateFormFile("file", filepath.Base(filePath))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(writer.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.serverURL+"/asr/upload?"+optionsQuery(opts).Encode(), pr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload to gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("gateway rejected upload: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	return c.consume(resp.Body)
}

// consume decodes SSE frames in arrival order until a terminal event or the
// connection drops. A dropped connection finalizes the transcript as
// disconnected rather than failing the call.
func (c *Client) consume(body io.Reader) (*Transcript, error) {
	transcript := NewTranscript()
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, ssePrefix) {
			continue
		}

		var ev stream.Event
		if err := json.Unmarshal([]byte(line[len(ssePrefix):]), &ev); err != nil {
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

	// EOF or read error before a terminal event: connection loss, distinct
	// from a server-reported error.
	transcript.MarkDisconnected()
	return transcript, nil
}
