package ocr

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Cache stores extracted text keyed by document content hash, so re-running
// a batch does not repeat OCR service calls for unchanged files.
type Cache struct {
	db *sql.DB
}

// OpenCache opens (creating if needed) the sqlite cache at path.
func OpenCache(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	const ddl = `CREATE TABLE IF NOT EXISTS ocr_text (
		content_hash TEXT PRIMARY KEY,
		text         TEXT NOT NULL,
		created_at   TIMESTAMP NOT NULL
	)`
	if _, err := db.Exec(ddl); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

func (c *Cache) Get(ctx context.Context, hash string) (string, bool, error) {
	var text string
	err := c.db.QueryRowContext(ctx, `SELECT text FROM ocr_text WHERE content_hash = ?`, hash).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return text, true, nil
}

func (c *Cache) Put(ctx context.Context, hash, text string) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO ocr_text (content_hash, text, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(content_hash) DO UPDATE SET text = excluded.text, created_at = excluded.created_at`,
		hash, text, time.Now().UTC())
	return err
}

// HashFile returns the hex sha256 of the file's contents.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
