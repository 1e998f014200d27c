// Package ocr extracts plain text from documents by delegating to the
// LLMWhisperer document-understanding service.
package ocr

import (
	"context"
	"time"
)

// TextExtractionService converts one document into plain text.
type TextExtractionService interface {
	ExtractText(ctx context.Context, path string) (ExtractionResult, error)
}

type ExtractionResult struct {
	Text     string
	Retries  int // transient failures retried before success
	CacheHit bool
	Duration time.Duration
}
