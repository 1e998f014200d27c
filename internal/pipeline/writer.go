package pipeline

import (
	"os"
	"path/filepath"

	"github.com/contractworks/nda-extract/internal/common"
	"github.com/contractworks/nda-extract/internal/ingest"
	"github.com/contractworks/nda-extract/internal/schema"
)

// writeResult serializes a validated result to <stem>.json next to the
// source document, or under OutputDir when configured. An existing file of
// the same name is overwritten; re-runs are expected to refresh output.
func (p *Pipeline) writeResult(doc ingest.Document, fields schema.Result) (string, error) {
	dir := p.OutputDir
	if dir == "" {
		dir = filepath.Dir(doc.Path)
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", common.NewAppErrorf(common.CodeWriteError, err, "create output dir %q", dir)
	}

	outPath := filepath.Join(dir, doc.Stem()+".json")
	data, err := schema.MarshalOrdered(p.Def, fields)
	if err != nil {
		return "", common.NewAppError(common.CodeWriteError, "serialize result", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return "", common.NewAppErrorf(common.CodeWriteError, err, "write %q", outPath)
	}
	return outPath, nil
}
