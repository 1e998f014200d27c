package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contractworks/nda-extract/internal/common"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestEnumerateSingleFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "agreement.pdf")
	touch(t, p)

	docs, err := Enumerate(p)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "agreement.pdf", docs[0].Name)
	assert.Equal(t, "agreement", docs[0].Stem())
}

func TestEnumerateUnsupportedFileType(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "notes.txt")
	touch(t, p)

	_, err := Enumerate(p)
	require.Error(t, err)
	assert.True(t, common.IsCode(err, common.CodeUnsupportedFileType), "got %v", err)
}

func TestEnumeratePathNotFound(t *testing.T) {
	_, err := Enumerate(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.True(t, common.IsCode(err, common.CodePathNotFound), "got %v", err)
}

func TestEnumerateDirectoryLexicographic(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "b.pdf"))
	touch(t, filepath.Join(dir, "a.pdf"))
	touch(t, filepath.Join(dir, "ignore.txt"))
	touch(t, filepath.Join(dir, ".hidden.pdf"))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))
	touch(t, filepath.Join(dir, "nested", "c.pdf")) // non-recursive: skipped

	docs, err := Enumerate(dir)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a.pdf", docs[0].Name)
	assert.Equal(t, "b.pdf", docs[1].Name)
}

func TestEnumerateEmptyDirectory(t *testing.T) {
	_, err := Enumerate(t.TempDir())
	require.Error(t, err)
	assert.True(t, common.IsCode(err, common.CodeNoDocumentsFound), "got %v", err)
}

func TestEnumerateDirectoryWithOnlyUnmatchedFiles(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "readme.md"))

	_, err := Enumerate(dir)
	require.Error(t, err)
	assert.True(t, common.IsCode(err, common.CodeNoDocumentsFound), "got %v", err)
}
