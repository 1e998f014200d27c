package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/contractworks/nda-extract/internal/common"
)

// Config for the LLMWhisperer client.
type Config struct {
	APIKey       string
	BaseURL      string        // default https://llmwhisperer-api.us-central.unstract.com/api/v2
	Timeout      time.Duration // total wait per document, submit through retrieve
	PollInterval time.Duration
	MaxRetries   int // transient retries per HTTP call
}

// Client talks to the LLMWhisperer v2 API: submit bytes, poll status,
// retrieve text.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://llmwhisperer-api.us-central.unstract.com/api/v2"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Minute
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: 60 * time.Second},
		logger: logger,
	}
}

type whisperStatus struct {
	WhisperHash string `json:"whisper_hash"`
	Status      string `json:"status"`
	Message     string `json:"message"`
}

type whisperResult struct {
	ResultText string `json:"result_text"`
}

// ExtractText submits the file, polls until the service reports processed,
// and retrieves the extracted text. The whole exchange is bounded by
// cfg.Timeout; hitting that bound surfaces as EXTRACTION_TIMEOUT.
func (c *Client) ExtractText(ctx context.Context, path string) (ExtractionResult, error) {
	rid := uuid.New().String()
	start := time.Now()

	data, err := os.ReadFile(path)
	if err != nil {
		return ExtractionResult{}, common.NewAppErrorf(common.CodeExtractionServiceError, err, "read %q", path)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	c.logger.Info("ocr.extract.start", "req_id", rid, "path", path, "bytes", len(data))

	retries := 0
	hash, err := c.submit(ctx, rid, data, &retries)
	if err != nil {
		return ExtractionResult{}, c.classify(err, "submit")
	}

	if err := c.waitProcessed(ctx, rid, hash); err != nil {
		return ExtractionResult{}, c.classify(err, "status")
	}

	text, err := c.retrieve(ctx, rid, hash, &retries)
	if err != nil {
		return ExtractionResult{}, c.classify(err, "retrieve")
	}

	c.logger.Info("ocr.extract.ok",
		"req_id", rid,
		"path", path,
		"text_len", len(text),
		"retries", retries,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return ExtractionResult{Text: text, Retries: retries, Duration: time.Since(start)}, nil
}

func (c *Client) submit(ctx context.Context, rid string, data []byte, retries *int) (string, error) {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/whisper?" + url.Values{
		"mode":        {"high_quality"},
		"output_mode": {"line_printer"},
	}.Encode()

	var hash string
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("unstract-key", c.cfg.APIKey)
		req.Header.Set("Content-Type", "application/octet-stream")

		body, status, err := c.do(req)
		if err != nil {
			return err
		}
		if status != http.StatusAccepted && status/100 != 2 {
			return statusError(status, body)
		}
		var ws whisperStatus
		if err := json.Unmarshal(body, &ws); err != nil {
			return backoff.Permanent(fmt.Errorf("decode whisper response: %w", err))
		}
		if ws.WhisperHash == "" {
			return backoff.Permanent(fmt.Errorf("whisper response missing hash"))
		}
		hash = ws.WhisperHash
		return nil
	}
	err := backoff.RetryNotify(op, c.backoff(ctx), func(err error, wait time.Duration) {
		*retries++
		c.logger.Warn("ocr.submit.retry", "req_id", rid, "error", err, "wait_ms", wait.Milliseconds())
	})
	return hash, err
}

func (c *Client) waitProcessed(ctx context.Context, rid, hash string) error {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/whisper-status?" + url.Values{"whisper_hash": {hash}}.Encode()

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		req.Header.Set("unstract-key", c.cfg.APIKey)

		body, status, err := c.do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue // poll again; the deadline bounds us
		}
		if status/100 != 2 {
			if transientStatus(status) {
				continue
			}
			return statusError(status, body)
		}
		var ws whisperStatus
		if err := json.Unmarshal(body, &ws); err != nil {
			return fmt.Errorf("decode status: %w", err)
		}
		switch ws.Status {
		case "processed":
			return nil
		case "processing", "accepted", "delivered":
			c.logger.Debug("ocr.status.pending", "req_id", rid, "status", ws.Status)
		default:
			return fmt.Errorf("whisper status %q: %s", ws.Status, ws.Message)
		}
	}
}

func (c *Client) retrieve(ctx context.Context, rid, hash string, retries *int) (string, error) {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/whisper-retrieve?" + url.Values{"whisper_hash": {hash}}.Encode()

	var text string
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("unstract-key", c.cfg.APIKey)

		body, status, err := c.do(req)
		if err != nil {
			return err
		}
		if status/100 != 2 {
			return statusError(status, body)
		}
		var wr whisperResult
		if err := json.Unmarshal(body, &wr); err != nil {
			return backoff.Permanent(fmt.Errorf("decode retrieve response: %w", err))
		}
		text = wr.ResultText
		return nil
	}
	err := backoff.RetryNotify(op, c.backoff(ctx), func(err error, wait time.Duration) {
		*retries++
		c.logger.Warn("ocr.retrieve.retry", "req_id", rid, "error", err, "wait_ms", wait.Milliseconds())
	})
	return text, err
}

func (c *Client) do(req *http.Request) ([]byte, int, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Warn("ocr.http.body_close_error", "error", cerr)
		}
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

func (c *Client) backoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.cfg.MaxRetries)), ctx)
}

func (c *Client) classify(err error, stage string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return common.NewAppErrorf(common.CodeExtractionTimeout, err, "ocr %s exceeded %s", stage, c.cfg.Timeout)
	}
	return common.NewAppErrorf(common.CodeExtractionServiceError, err, "ocr %s failed", stage)
}

// statusError marks non-retryable HTTP statuses permanent so backoff stops.
func statusError(status int, body []byte) error {
	err := fmt.Errorf("status %d: %s", status, truncate(string(body), 512))
	if transientStatus(status) {
		return err
	}
	return backoff.Permanent(err)
}

func transientStatus(status int) bool {
	return status == http.StatusTooManyRequests || status/100 == 5
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
