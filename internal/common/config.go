package common

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	OCR    OCRConfig
	LLM    LLMConfig
	Prompt PromptConfig
	Paths  PathsConfig
}

// OCRConfig holds settings for the LLMWhisperer document service.
type OCRConfig struct {
	APIKey       string
	BaseURL      string
	Timeout      time.Duration // total wait for one document, submit through retrieve
	PollInterval time.Duration
	MaxRetries   int
	CachePath    string // sqlite file for the OCR text cache; empty disables caching
}

// LLMConfig holds settings for the completion service.
type LLMConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Timeout     time.Duration
	MaxRetries  int
}

// PromptConfig bounds the composed prompt.
type PromptConfig struct {
	CharBudget int
	Truncate   bool // cut document text to fit instead of failing
}

// PathsConfig holds filesystem roots.
type PathsConfig struct {
	SchemasDir string
	OutputDir  string // empty -> next to the source document
}

// LoadConfig loads configuration from a .env file (if present) and the environment.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		OCR: OCRConfig{
			APIKey:       getEnv("LLMWHISPERER_API_KEY", ""),
			BaseURL:      getEnv("LLMWHISPERER_BASE_URL", "https://llmwhisperer-api.us-central.unstract.com/api/v2"),
			Timeout:      getEnvAsDuration("OCR_TIMEOUT", 3*time.Minute),
			PollInterval: getEnvAsDuration("OCR_POLL_INTERVAL", 2*time.Second),
			MaxRetries:   getEnvAsInt("OCR_MAX_RETRIES", 3),
			CachePath:    getEnv("OCR_CACHE_PATH", "./tmp/ocr-cache.db"),
		},
		LLM: LLMConfig{
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			BaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			Temperature: getEnvAsFloat32("OPENAI_TEMPERATURE", 0.0),
			Timeout:     getEnvAsDuration("OPENAI_TIMEOUT", 60*time.Second),
			MaxRetries:  getEnvAsInt("OPENAI_MAX_RETRIES", 3),
		},
		Prompt: PromptConfig{
			CharBudget: getEnvAsInt("PROMPT_CHAR_BUDGET", 120000),
			Truncate:   getEnvAsBool("PROMPT_TRUNCATE", true),
		},
		Paths: PathsConfig{
			SchemasDir: getEnv("SCHEMAS_DIR", "./schemas"),
			OutputDir:  getEnv("OUTPUT_DIR", ""),
		},
	}
}

// Validate checks that both service credentials are present. Runs before any
// document is touched so a missing key fails the whole run up front.
func (c *Config) Validate() error {
	if c.OCR.APIKey == "" {
		return NewAppError(CodeMissingCredential, "LLMWHISPERER_API_KEY is required", nil)
	}
	if c.LLM.APIKey == "" {
		return NewAppError(CodeMissingCredential, "OPENAI_API_KEY is required", nil)
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
