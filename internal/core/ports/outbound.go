package ports

import (
	"context"

	"github.com/luismhernandezs-crypto/doc-classifier/internal/core/domain"
)

// TextModel is the opaque trained classifier. Implementations are read-only after load.
type TextModel interface {
	Predict(text string) (category string, confidence float64)
	Classes() []string
	Version() string
}

// TextExtractor is the OCR collaborator.
type TextExtractor interface {
	Extract(ctx context.Context, filename, contentType string, body []byte) (domain.ExtractionResult, error)
}

// SecondaryClassifier is the independent second classification path.
type SecondaryClassifier interface {
	Classify(ctx context.Context, text string) (domain.Classification, error)
}

// ArtifactStore stores incoming uploads and classified summaries in named buckets.
type ArtifactStore interface {
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Exists(ctx context.Context, bucket string) (bool, error)
	EnsureBucket(ctx context.Context, bucket string) error
	List(ctx context.Context, bucket, prefix string) ([]domain.ObjectInfo, error)
}

// Ledger is the append-only classification log.
type Ledger interface {
	EnsureSchema(ctx context.Context) error
	Append(ctx context.Context, rec domain.ClassificationRecord) error
	Query(ctx context.Context, filter domain.LedgerFilter) ([]domain.ClassificationRecord, error)
	AllLabeledPairs(ctx context.Context) ([]domain.LabeledPair, error)
	LabeledSamples(ctx context.Context) ([]domain.LabeledSample, error)
	Summary(ctx context.Context, recent int) (domain.LedgerSummary, error)
}

// EventPublisher announces completed classifications.
type EventPublisher interface {
	PublishClassified(ctx context.Context, event domain.ClassifiedEvent) error
}

// ReprocessQueue carries incoming artifact keys to be re-run by workers.
type ReprocessQueue interface {
	PublishReprocess(ctx context.Context, key string) error
	SubscribeReprocess(ctx context.Context, handler func(context.Context, string) error) error
}

// PipelineObserver receives operational metric updates from the hot path.
type PipelineObserver interface {
	ObserveClassification(category string, rejected bool, latencySeconds float64)
	ObserveOCRError()
	ObserveStageFailure(stage domain.Stage, kind domain.ErrorKind)
	ObserveDocument(status domain.ProcessStatus)
}

// QualityObserver receives the recomputed model-quality gauges.
type QualityObserver interface {
	SetQuality(report domain.QualityReport)
}
