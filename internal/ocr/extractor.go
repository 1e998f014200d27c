package ocr

import (
	"context"
	"log/slog"
	"time"
)

// CachingExtractor wraps a TextExtractionService with the content-hash cache.
// A cache hit skips the service call entirely. Cache failures degrade to a
// direct service call rather than failing the document.
type CachingExtractor struct {
	svc    TextExtractionService
	cache  *Cache
	logger *slog.Logger
}

func NewCachingExtractor(svc TextExtractionService, cache *Cache, logger *slog.Logger) *CachingExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachingExtractor{svc: svc, cache: cache, logger: logger}
}

func (e *CachingExtractor) ExtractText(ctx context.Context, path string) (ExtractionResult, error) {
	start := time.Now()

	hash, err := HashFile(path)
	if err != nil {
		e.logger.Warn("ocr.cache.hash_error", "path", path, "error", err)
		return e.svc.ExtractText(ctx, path)
	}

	if text, ok, err := e.cache.Get(ctx, hash); err != nil {
		e.logger.Warn("ocr.cache.get_error", "path", path, "error", err)
	} else if ok {
		e.logger.Info("ocr.cache.hit", "path", path, "content_hash", hash)
		return ExtractionResult{Text: text, CacheHit: true, Duration: time.Since(start)}, nil
	}

	res, err := e.svc.ExtractText(ctx, path)
	if err != nil {
		return res, err
	}
	if err := e.cache.Put(ctx, hash, res.Text); err != nil {
		e.logger.Warn("ocr.cache.put_error", "path", path, "error", err)
	}
	return res, nil
}
