package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/contractworks/nda-extract/internal/common"
	"github.com/contractworks/nda-extract/internal/llm"
)

// Complete implements llm.CompletionService over chat/completions with
// json_object response format. One call per document per run, no caching.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (llm.Completion, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.logger.Info("llm.complete.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"user_len", len(req.User),
		"truncated", req.Truncated,
	)

	messages := []map[string]any{
		{"role": "system", "content": req.System},
		{"role": "user", "content": req.User},
	}
	if req.SchemaJSON != "" {
		messages = append(messages, map[string]any{
			"role":    "system",
			"content": "JSON Schema:\n" + req.SchemaJSON,
		})
	}
	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages":        messages,
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	retries := 0
	raw, err := c.post(ctx, rid, endpoint, body, &retries)
	if err != nil {
		c.logger.Error("llm.complete.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		if errors.Is(err, context.DeadlineExceeded) {
			return llm.Completion{}, common.NewAppErrorf(common.CodeCompletionTimeout, err, "completion exceeded %s", c.cfg.Timeout)
		}
		return llm.Completion{}, common.NewAppError(common.CodeCompletionServiceError, "completion request failed", err)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Error("llm.complete.decode_error", "req_id", rid, "error", err, "raw_bytes", len(raw))
		return llm.Completion{}, common.NewAppError(common.CodeCompletionServiceError, "decode completion response", err)
	}
	if len(cc.Choices) == 0 {
		c.logger.Error("llm.complete.no_choices", "req_id", rid, "raw", string(raw))
		return llm.Completion{}, common.NewAppError(common.CodeCompletionServiceError, "no choices in completion response", nil)
	}

	content := strings.TrimSpace(cc.Choices[0].Message.Content)
	c.logger.Info("llm.complete.ok",
		"req_id", rid,
		"content_len", len(content),
		"retries", retries,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return llm.Completion{Content: content, Retries: retries, Duration: time.Since(start)}, nil
}

func (c *Client) post(ctx context.Context, rid, url string, body map[string]any, retries *int) ([]byte, error) {
	bs, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var raw []byte
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bs))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := resp.Body.Close(); cerr != nil {
				c.logger.Warn("llm.http.body_close_error", "req_id", rid, "error", cerr)
			}
		}()

		buf, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode/100 != 2 {
			err := fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(buf), 512))
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode/100 == 5 {
				return err
			}
			return backoff.Permanent(err)
		}
		raw = buf
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	err = backoff.RetryNotify(op,
		backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.cfg.MaxRetries)), ctx),
		func(err error, wait time.Duration) {
			*retries++
			c.logger.Warn("llm.http.retry", "req_id", rid, "error", err, "wait_ms", wait.Milliseconds())
		})
	return raw, err
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
