package ports

import (
	"context"

	"github.com/luismhernandezs-crypto/doc-classifier/internal/core/domain"
)

// DocumentProcessor is the inbound contract for the full ingest pipeline.
type DocumentProcessor interface {
	Process(ctx context.Context, sub domain.DocumentSubmission) (*domain.ProcessResult, error)
}

// TextClassifier is the inbound contract for direct text classification (no OCR).
type TextClassifier interface {
	ClassifyText(ctx context.Context, identity, text string) (*domain.ProcessResult, error)
}

// HistoryService is the inbound read model over the ledger.
type HistoryService interface {
	History(ctx context.Context, filter domain.LedgerFilter) ([]domain.ClassificationRecord, error)
	Export(ctx context.Context, filter domain.LedgerFilter) ([]byte, error)
}

// MetricsReporter serves the administrative global metrics view.
type MetricsReporter interface {
	Global(ctx context.Context) (*domain.GlobalMetrics, error)
}

// HistoryExporter renders ledger records into a downloadable workbook.
type HistoryExporter interface {
	Export(records []domain.ClassificationRecord) ([]byte, error)
}
