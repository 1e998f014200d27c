package ocr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contractworks/nda-extract/internal/common"
)

func pdfFixture(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "agreement.pdf")
	require.NoError(t, os.WriteFile(p, []byte("%PDF-1.4 fake"), 0o644))
	return p
}

func newWhisperServer(t *testing.T, submitFailures int32, pollsUntilProcessed int32) *httptest.Server {
	t.Helper()
	var submits, polls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/whisper", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NotEmpty(t, r.Header.Get("unstract-key"))
		if atomic.AddInt32(&submits, 1) <= submitFailures {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]string{"whisper_hash": "abc123", "status": "processing"})
	})
	mux.HandleFunc("/whisper-status", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "abc123", r.URL.Query().Get("whisper_hash"))
		status := "processing"
		if atomic.AddInt32(&polls, 1) >= pollsUntilProcessed {
			status = "processed"
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
	})
	mux.HandleFunc("/whisper-retrieve", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"result_text": "THIS AGREEMENT is made..."})
	})
	return httptest.NewServer(mux)
}

func testConfig(baseURL string) Config {
	return Config{
		APIKey:       "test-key",
		BaseURL:      baseURL,
		Timeout:      2 * time.Second,
		PollInterval: 10 * time.Millisecond,
		MaxRetries:   2,
	}
}

func TestExtractTextHappyPath(t *testing.T) {
	srv := newWhisperServer(t, 0, 2)
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil)
	res, err := c.ExtractText(context.Background(), pdfFixture(t))
	require.NoError(t, err)
	assert.Equal(t, "THIS AGREEMENT is made...", res.Text)
	assert.Equal(t, 0, res.Retries)
	assert.False(t, res.CacheHit)
}

func TestExtractTextRetriesRateLimit(t *testing.T) {
	srv := newWhisperServer(t, 1, 1)
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil)
	res, err := c.ExtractText(context.Background(), pdfFixture(t))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Retries)
}

func TestExtractTextPermanentFailure(t *testing.T) {
	var submits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&submits, 1)
		http.Error(w, "bad document", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil)
	_, err := c.ExtractText(context.Background(), pdfFixture(t))
	require.Error(t, err)
	assert.True(t, common.IsCode(err, common.CodeExtractionServiceError), "got %v", err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&submits), "4xx must not be retried")
}

func TestExtractTextTimeout(t *testing.T) {
	srv := newWhisperServer(t, 0, 1<<30) // never reaches processed
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Timeout = 100 * time.Millisecond
	c := NewClient(cfg, nil)

	_, err := c.ExtractText(context.Background(), pdfFixture(t))
	require.Error(t, err)
	assert.True(t, common.IsCode(err, common.CodeExtractionTimeout), "got %v", err)
}

func TestExtractTextMissingFile(t *testing.T) {
	c := NewClient(testConfig("http://127.0.0.1:0"), nil)
	_, err := c.ExtractText(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))
	require.Error(t, err)
	assert.True(t, common.IsCode(err, common.CodeExtractionServiceError), "got %v", err)
}
