package xlsx

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/luismhernandezs-crypto/doc-classifier/internal/core/domain"
)

func TestExportWritesHeaderAndRows(t *testing.T) {
	records := []domain.ClassificationRecord{
		{
			ID:                "rec-1",
			CreatedAt:         time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC),
			Identity:          "ana",
			Filename:          "factura.pdf",
			Category:          domain.StringPtr("Factura"),
			PrimaryConfidence: domain.Float64Ptr(0.82),
			PrimaryPrediction: domain.StringPtr("Factura"),
			Text:              domain.StringPtr(strings.Repeat("a", 600)),
		},
		{ID: "rec-2", Identity: "luis"},
	}

	out, err := NewExporter(nil).Export(records)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "Record ID" || rows[1][0] != "rec-1" || rows[1][4] != "Factura" {
		t.Fatalf("unexpected rows: %v", rows[:2])
	}
	if rows[1][1] != "2025-03-01T09:30:00Z" {
		t.Fatalf("unexpected timestamp cell: %q", rows[1][1])
	}
	if got := len([]rune(rows[1][9])); got != textPreviewChars {
		t.Fatalf("text preview length = %d", got)
	}
	if rows[2][2] != "luis" {
		t.Fatalf("unexpected second row: %v", rows[2])
	}
}

func TestPreview(t *testing.T) {
	if got := preview("ñandú", 10); got != "ñandú" {
		t.Fatalf("preview() = %q", got)
	}
	if got := preview("ñandú", 3); got != "ña…" {
		t.Fatalf("preview() = %q", got)
	}
}
