package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"

	"github.com/luismhernandezs-crypto/doc-classifier/internal/core/domain"
	"github.com/luismhernandezs-crypto/doc-classifier/internal/core/ports"
)

// RebuildReport summarizes one sweep over the incoming bucket.
type RebuildReport struct {
	Total     int      `json:"total"`
	Processed int      `json:"processed"`
	Degraded  int      `json:"processed_with_errors"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// RebuildUseCase re-runs stored incoming artifacts through the pipeline.
// Every re-run appends new ledger rows; earlier rows are left untouched.
type RebuildUseCase struct {
	store     ports.ArtifactStore
	processor ports.DocumentProcessor
	queue     ports.ReprocessQueue
	bucket    string
	logger    *slog.Logger
}

func NewRebuildUseCase(store ports.ArtifactStore, processor ports.DocumentProcessor, queue ports.ReprocessQueue, incomingBucket string, logger *slog.Logger) *RebuildUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	if incomingBucket == "" {
		incomingBucket = "incoming-docs"
	}
	return &RebuildUseCase{
		store:     store,
		processor: processor,
		queue:     queue,
		bucket:    incomingBucket,
		logger:    logger,
	}
}

// Sweep processes every incoming object in-process, in key order.
func (uc *RebuildUseCase) Sweep(ctx context.Context, prefix string) (RebuildReport, error) {
	objects, err := uc.store.List(ctx, uc.bucket, prefix)
	if err != nil {
		return RebuildReport{}, domain.WrapError(domain.ErrExternalServiceUnavailable, "list incoming artifacts", err)
	}

	report := RebuildReport{Total: len(objects)}
	for _, obj := range objects {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res, err := uc.ReprocessKey(ctx, obj.Key)
		switch {
		case err != nil:
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", obj.Key, err))
		case res.Status == domain.StatusProcessed:
			report.Processed++
		case res.Status == domain.StatusProcessedWithErrors:
			report.Degraded++
		default:
			report.Failed++
		}
	}
	uc.logger.Info("rebuild_sweep_completed",
		"bucket", uc.bucket,
		"total", report.Total,
		"processed", report.Processed,
		"processed_with_errors", report.Degraded,
		"failed", report.Failed,
	)
	return report, nil
}

// Enqueue publishes every incoming key for asynchronous workers.
func (uc *RebuildUseCase) Enqueue(ctx context.Context, prefix string) (int, error) {
	if uc.queue == nil {
		return 0, domain.WrapError(domain.ErrValidation, "enqueue rebuild", errors.New("reprocess queue is not configured"))
	}
	objects, err := uc.store.List(ctx, uc.bucket, prefix)
	if err != nil {
		return 0, domain.WrapError(domain.ErrExternalServiceUnavailable, "list incoming artifacts", err)
	}
	published := 0
	for _, obj := range objects {
		if err := uc.queue.PublishReprocess(ctx, obj.Key); err != nil {
			return published, domain.WrapError(domain.ErrExternalServiceUnavailable, "publish reprocess", err)
		}
		published++
	}
	uc.logger.Info("rebuild_enqueued", "bucket", uc.bucket, "published", published)
	return published, nil
}

// ReprocessKey loads one incoming artifact and runs it without re-uploading it.
func (uc *RebuildUseCase) ReprocessKey(ctx context.Context, key string) (*domain.ProcessResult, error) {
	body, err := uc.store.Get(ctx, uc.bucket, key)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrExternalServiceUnavailable, "get incoming artifact", err)
	}
	identity, filename := SplitIncomingKey(key)
	return uc.processor.Process(ctx, domain.DocumentSubmission{
		Filename:      filename,
		ContentType:   mime.TypeByExtension(filepath.Ext(filename)),
		Identity:      identity,
		Body:          body,
		ReuseIncoming: true,
		IncomingKey:   key,
	})
}
