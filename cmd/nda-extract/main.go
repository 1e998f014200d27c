package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/contractworks/nda-extract/internal/common"
	"github.com/contractworks/nda-extract/internal/export"
	"github.com/contractworks/nda-extract/internal/ingest"
	"github.com/contractworks/nda-extract/internal/llm"
	"github.com/contractworks/nda-extract/internal/llm/openai"
	"github.com/contractworks/nda-extract/internal/ocr"
	"github.com/contractworks/nda-extract/internal/pipeline"
	"github.com/contractworks/nda-extract/internal/schema"
)

// Exit codes: 0 full success, 1 one or more documents failed, 2 usage or
// configuration errors (nothing processed).
const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	os.Exit(run())
}

func run() int {
	var (
		out        = flag.String("out", "", "output directory for result JSON (default: next to each source file)")
		workers    = flag.Int("workers", 1, "concurrent document pipelines")
		xlsxPath   = flag.String("xlsx", "", "also write an XLSX run summary to this path")
		noCache    = flag.Bool("no-cache", false, "disable the OCR text cache")
		schemasDir = flag.String("schemas", "", "schemas root (default: $SCHEMAS_DIR or ./schemas)")
	)
	flag.Usage = func() {
		printError("Usage: nda-extract [flags] <path_to_pdf_or_directory> <schema_name>\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 2 {
		flag.Usage()
		return exitUsage
	}
	inputPath, schemaName := flag.Arg(0), flag.Arg(1)

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx := context.Background()

	cfg := common.LoadConfig()
	if *out != "" {
		cfg.Paths.OutputDir = *out
	}
	if *schemasDir != "" {
		cfg.Paths.SchemasDir = *schemasDir
	}
	if err := cfg.Validate(); err != nil {
		printError("Error: %v\n", err)
		return exitUsage
	}

	def, tmpl, err := schema.Load(cfg.Paths.SchemasDir, schemaName)
	if err != nil {
		printError("Error: %v\n", err)
		return exitUsage
	}
	validator, err := schema.NewValidator(def, logger)
	if err != nil {
		printError("Error: compile schema %q: %v\n", def.Name, err)
		return exitUsage
	}
	logger.Info("schema loaded", "name", def.Name, "fields", len(def.Fields))

	docs, err := ingest.Enumerate(inputPath)
	if err != nil {
		printError("Error: %v\n", err)
		return exitUsage
	}
	logger.Info("documents enumerated", "path", inputPath, "count", len(docs))

	var extractor ocr.TextExtractionService = ocr.NewClient(ocr.Config{
		APIKey:       cfg.OCR.APIKey,
		BaseURL:      cfg.OCR.BaseURL,
		Timeout:      cfg.OCR.Timeout,
		PollInterval: cfg.OCR.PollInterval,
		MaxRetries:   cfg.OCR.MaxRetries,
	}, logger)

	if !*noCache && cfg.OCR.CachePath != "" {
		cache, err := ocr.OpenCache(cfg.OCR.CachePath)
		if err != nil {
			logger.Warn("ocr cache unavailable, proceeding without", "path", cfg.OCR.CachePath, "error", err)
		} else {
			defer func() { _ = cache.Close() }()
			extractor = ocr.NewCachingExtractor(extractor, cache, logger)
		}
	}

	completer := openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
		MaxRetries:  cfg.LLM.MaxRetries,
	}, logger)
	logger.Info("completion client initialized", "model", cfg.LLM.Model, "temperature", cfg.LLM.Temperature)

	p := &pipeline.Pipeline{
		Def:       def,
		Tmpl:      tmpl,
		Extractor: extractor,
		Completer: completer,
		Validator: validator,
		ComposeCfg: llm.ComposeConfig{
			CharBudget: cfg.Prompt.CharBudget,
			Truncate:   cfg.Prompt.Truncate,
		},
		OutputDir: cfg.Paths.OutputDir,
		Logger:    logger,
	}

	summary := p.Run(ctx, docs, *workers)

	if *xlsxPath != "" {
		xlsxBytes, err := export.NewService(def, logger).SummaryXLSX(summary)
		if err != nil {
			logger.Error("failed to build XLSX summary", "error", err)
		} else if err := os.WriteFile(*xlsxPath, xlsxBytes, 0o644); err != nil {
			logger.Error("failed to write XLSX summary", "path", *xlsxPath, "error", err)
		} else {
			logger.Info("XLSX summary written", "path", *xlsxPath)
		}
	}

	fmt.Printf("Extraction complete!\n")
	fmt.Printf("- Documents: %d\n", len(summary.Results))
	fmt.Printf("- Succeeded: %d (of which retried: %d)\n", summary.Succeeded, summary.Retried)
	fmt.Printf("- Failed: %d\n", summary.Failed)
	for _, r := range summary.Results {
		if r.Err != nil {
			fmt.Printf("  FAIL %s [%s]: %v\n", r.Doc.Name, r.ErrKind(), r.Err)
		}
	}

	if summary.Failed > 0 {
		return exitFailed
	}
	return exitOK
}
