// Package transport builds the retrying HTTP client shared by the outbound integrations
// (notification webhook and suggestion service).
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 1 << 20

// Options configures NewClient.
type Options struct {
	Timeout time.Duration // per attempt
	Retries int           // additional attempts after the first
	WaitMin time.Duration
	WaitMax time.Duration
	Logger  zerolog.Logger
}

// Client posts JSON with jittered exponential backoff on connection errors and 5xx.
type Client struct {
	rc *retryablehttp.Client
}

// NewClient builds a Client. Zero wait bounds fall back to 200ms and 2s.
func NewClient(opts Options) *Client {
	rc := retryablehttp.NewClient()
	rc.HTTPClient.Timeout = opts.Timeout
	rc.RetryMax = opts.Retries
	rc.RetryWaitMin = opts.WaitMin
	rc.RetryWaitMax = opts.WaitMax
	if rc.RetryWaitMin <= 0 {
		rc.RetryWaitMin = 200 * time.Millisecond
	}
	if rc.RetryWaitMax <= 0 {
		rc.RetryWaitMax = 2 * time.Second
	}
	rc.Logger = leveled{opts.Logger}
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return &Client{rc: rc}
}

// StatusError is returned for a non-2xx response after retries are exhausted.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// PostJSON sends in as JSON and, when out is non-nil, decodes a 2xx response into out.
// headers are added to the request.
func (c *Client) PostJSON(ctx context.Context, url string, headers map[string]string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.rc.Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, Body: string(bytes.TrimSpace(raw))}
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// leveled adapts zerolog to retryablehttp.LeveledLogger.
type leveled struct{ zl zerolog.Logger }

func (l leveled) Error(msg string, kv ...any) { l.zl.Error().Fields(kv).Msg(msg) }
func (l leveled) Info(msg string, kv ...any)  { l.zl.Debug().Fields(kv).Msg(msg) }
func (l leveled) Debug(msg string, kv ...any) { l.zl.Debug().Fields(kv).Msg(msg) }
func (l leveled) Warn(msg string, kv ...any)  { l.zl.Warn().Fields(kv).Msg(msg) }
