package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/contractworks/nda-extract/internal/common"
	"github.com/contractworks/nda-extract/internal/ingest"
	"github.com/contractworks/nda-extract/internal/pipeline"
	"github.com/contractworks/nda-extract/internal/schema"
)

func TestSummaryXLSX(t *testing.T) {
	def := &schema.Definition{
		Name: "test",
		Fields: []schema.Field{
			{Name: "governing_law", Type: schema.TypeString},
			{Name: "severability", Type: schema.TypeBoolean},
		},
	}
	summary := pipeline.Summary{
		Succeeded: 1,
		Failed:    1,
		Results: []pipeline.DocumentResult{
			{
				Doc:        ingest.Document{Path: "/in/a.pdf", Name: "a.pdf"},
				OutputPath: "/in/a.json",
				Fields:     schema.Result{"governing_law": "Delaware", "severability": true},
			},
			{
				Doc: ingest.Document{Path: "/in/b.pdf", Name: "b.pdf"},
				Err: common.NewAppError(common.CodeExtractionTimeout, "ocr exceeded wait", nil),
			},
		},
	}

	data, err := NewService(def, nil).SummaryXLSX(summary)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	const sheet = "Documents"
	get := func(cell string) string {
		v, err := f.GetCellValue(sheet, cell)
		require.NoError(t, err)
		return v
	}

	assert.Equal(t, "Document", get("A1"))
	assert.Equal(t, "governing_law", get("E1"))

	assert.Equal(t, "a.pdf", get("A2"))
	assert.Equal(t, "succeeded", get("B2"))
	assert.Equal(t, "Delaware", get("E2"))
	assert.Equal(t, "TRUE", get("F2"))

	assert.Equal(t, "b.pdf", get("A3"))
	assert.Equal(t, "failed", get("B3"))
	assert.Equal(t, common.CodeExtractionTimeout, get("C3"))
	assert.Equal(t, "", get("E3"))
}
