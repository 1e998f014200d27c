// Package export renders a run summary as an XLSX workbook.
package export

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/contractworks/nda-extract/internal/pipeline"
	"github.com/contractworks/nda-extract/internal/schema"
)

// Service produces XLSX bytes summarizing a batch run: one row per document,
// top-level schema fields flattened into columns.
type Service struct {
	def    *schema.Definition
	logger *slog.Logger
}

func NewService(def *schema.Definition, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{def: def, logger: logger}
}

// SummaryXLSX returns a workbook for the run results.
func (s *Service) SummaryXLSX(summary pipeline.Summary) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	const sheet = "Documents"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{"Document", "Status", "Error", "Output"}
	for _, fd := range s.def.Fields {
		headers = append(headers, fd.Name)
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, r := range summary.Results {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, r.Doc.Name)
		if r.Err != nil {
			write(2, "failed")
			write(3, r.ErrKind())
		} else if r.Retries > 0 {
			write(2, "succeeded (retried)")
		} else {
			write(2, "succeeded")
		}
		write(4, r.OutputPath)

		for i, fd := range s.def.Fields {
			if r.Fields == nil {
				break
			}
			write(5+i, cellValue(r.Fields[fd.Name]))
		}
		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 28)
	_ = f.SetColWidth(sheet, "B", "C", 20)
	_ = f.SetColWidth(sheet, "D", "D", 36)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	s.logger.Info("export.summary.ok",
		"documents", len(summary.Results),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// cellValue flattens a field for a spreadsheet cell. Nested values become
// compact JSON; scalars pass through.
func cellValue(v any) any {
	switch v.(type) {
	case nil:
		return ""
	case string, bool, float64:
		return v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return truncate(string(b), 140)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
