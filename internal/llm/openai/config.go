package openai

import (
	"log/slog"
	"net/http"
	"time"
)

// Config for the OpenAI-compatible completion client.
type Config struct {
	APIKey      string
	BaseURL     string  // default https://api.openai.com/v1
	Model       string  // e.g. "gpt-4o-mini"
	Temperature float32 // 0 for reproducible extraction
	Timeout     time.Duration
	MaxRetries  int
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}
