package xlsx

import (
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/luismhernandezs-crypto/doc-classifier/internal/core/domain"
)

const sheet = "History"

// textPreviewChars keeps cells well under the 32767-char Excel limit.
const textPreviewChars = 500

var headers = []string{
	"Record ID",
	"Created At",
	"Identity",
	"Filename",
	"Category",
	"Confidence",
	"Primary Prediction",
	"Secondary Prediction",
	"Ground Truth",
	"Text",
}

// Exporter renders ledger records as an XLSX workbook.
type Exporter struct {
	logger *slog.Logger
}

func NewExporter(logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{logger: logger}
}

func (e *Exporter) Export(records []domain.ClassificationRecord) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer f.Close()

	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, fmt.Errorf("create sheet: %w", err)
		}
	}
	_ = f.DeleteSheet("Sheet1")
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}

	row := 2
	for _, r := range records {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, r.ID)
		write(2, r.CreatedAt.UTC().Format(time.RFC3339))
		write(3, r.Identity)
		write(4, r.Filename)
		write(5, deref(r.Category))
		if r.PrimaryConfidence != nil {
			write(6, *r.PrimaryConfidence)
		}
		write(7, deref(r.PrimaryPrediction))
		write(8, deref(r.SecondaryPrediction))
		write(9, deref(r.GroundTruth))
		write(10, preview(deref(r.Text), textPreviewChars))
		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 38)
	_ = f.SetColWidth(sheet, "B", "B", 22)
	_ = f.SetColWidth(sheet, "C", "D", 24)
	_ = f.SetColWidth(sheet, "E", "I", 18)
	_ = f.SetColWidth(sheet, "J", "J", 80)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	e.logger.Info("history_export_ok",
		"rows", len(records),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func preview(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-1]) + "…"
}
