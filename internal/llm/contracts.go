package llm

import (
	"context"
	"time"
)

// CompletionRequest is a composed prompt plus its structural constraint.
// Transient and single-use: one request per document per run.
type CompletionRequest struct {
	System     string
	User       string
	SchemaJSON string // JSON-Schema the reply must satisfy; attached verbatim
	Truncated  bool   // document text was cut to fit the prompt budget
}

// Completion is the raw model reply.
type Completion struct {
	Content  string
	Retries  int // transient failures retried before success
	Duration time.Duration
}

// CompletionService is the interface the pipeline depends on; tests
// substitute deterministic fakes.
type CompletionService interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}
