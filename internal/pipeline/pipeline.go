// Package pipeline orchestrates the per-document flow: extract text, compose
// the prompt, call the completion service, validate, write.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/contractworks/nda-extract/internal/common"
	"github.com/contractworks/nda-extract/internal/ingest"
	"github.com/contractworks/nda-extract/internal/llm"
	"github.com/contractworks/nda-extract/internal/ocr"
	"github.com/contractworks/nda-extract/internal/schema"
)

// Pipeline holds the per-run wiring. Definition, template and validator are
// read-only and shared across documents; everything per-document is local.
type Pipeline struct {
	Def        *schema.Definition
	Tmpl       *schema.PromptTemplate
	Extractor  ocr.TextExtractionService
	Completer  llm.CompletionService
	Validator  *schema.Validator
	ComposeCfg llm.ComposeConfig
	OutputDir  string // empty -> next to the source document
	Logger     *slog.Logger
}

// DocumentResult records the outcome for one document.
type DocumentResult struct {
	Doc        ingest.Document
	OutputPath string
	Fields     schema.Result // nil on failure
	Retries    int           // transient service retries across both calls
	CacheHit   bool
	Duration   time.Duration
	Err        error
}

// ErrKind returns the error code for a failed document, or "" on success.
func (r DocumentResult) ErrKind() string {
	if r.Err == nil {
		return ""
	}
	return common.ErrorCode(r.Err)
}

// Summary aggregates a run. Retried counts documents that succeeded only
// after transient retries.
type Summary struct {
	Succeeded int
	Retried   int
	Failed    int
	Results   []DocumentResult
}

// ProcessDocument runs the full flow for one document. Errors are returned
// inside the result; the caller decides batch policy.
func (p *Pipeline) ProcessDocument(ctx context.Context, doc ingest.Document) DocumentResult {
	start := time.Now()
	res := DocumentResult{Doc: doc}
	log := p.logger().With("document", doc.Name)

	log.Info("pipeline.document.start")

	ext, err := p.Extractor.ExtractText(ctx, doc.Path)
	if err != nil {
		res.Err = err
		res.Duration = time.Since(start)
		log.Error("pipeline.ocr.failed", "error", err)
		return res
	}
	res.Retries += ext.Retries
	res.CacheHit = ext.CacheHit
	log.Info("pipeline.ocr.ok", "text_len", len(ext.Text), "cache_hit", ext.CacheHit)

	req, err := llm.Compose(p.Def, p.Tmpl, ext.Text, p.ComposeCfg)
	if err != nil {
		res.Err = err
		res.Duration = time.Since(start)
		log.Error("pipeline.compose.failed", "error", err)
		return res
	}
	if req.Truncated {
		log.Warn("pipeline.compose.truncated", "budget", p.ComposeCfg.CharBudget)
	}

	comp, err := p.Completer.Complete(ctx, req)
	if err != nil {
		res.Err = err
		res.Duration = time.Since(start)
		log.Error("pipeline.complete.failed", "error", err)
		return res
	}
	res.Retries += comp.Retries

	fields, err := p.Validator.Validate(comp.Content)
	if err != nil {
		res.Err = err
		res.Duration = time.Since(start)
		log.Error("pipeline.validate.failed", "error", err)
		return res
	}
	res.Fields = fields

	outPath, err := p.writeResult(doc, fields)
	if err != nil {
		res.Err = err
		res.Duration = time.Since(start)
		log.Error("pipeline.write.failed", "error", err)
		return res
	}
	res.OutputPath = outPath
	res.Duration = time.Since(start)

	log.Info("pipeline.document.ok",
		"output", outPath,
		"retries", res.Retries,
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res
}

// Run processes docs with up to workers concurrent pipelines (1 = sequential).
// A failing document is recorded and does not abort its siblings.
func (p *Pipeline) Run(ctx context.Context, docs []ingest.Document, workers int) Summary {
	if workers < 1 {
		workers = 1
	}

	results := make([]DocumentResult, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, doc := range docs {
		g.Go(func() error {
			results[i] = p.ProcessDocument(gctx, doc)
			return nil // skip-and-report: never fail the group
		})
	}
	_ = g.Wait()

	var s Summary
	s.Results = results
	for _, r := range results {
		switch {
		case r.Err != nil:
			s.Failed++
		case r.Retries > 0:
			s.Retried++
			s.Succeeded++
		default:
			s.Succeeded++
		}
	}
	return s
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}
