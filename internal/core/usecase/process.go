package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/luismhernandezs-crypto/doc-classifier/internal/core/domain"
	"github.com/luismhernandezs-crypto/doc-classifier/internal/core/ports"
	"github.com/luismhernandezs-crypto/doc-classifier/internal/core/textnorm"
)

type PipelineConfig struct {
	IncomingBucket   string
	ClassifiedBucket string
	MaxTextChars     int

	OCRTimeout      time.Duration
	ArtifactTimeout time.Duration
	LedgerTimeout   time.Duration
	EventsTimeout   time.Duration
}

func (c PipelineConfig) normalize() PipelineConfig {
	out := c
	if out.IncomingBucket == "" {
		out.IncomingBucket = "incoming-docs"
	}
	if out.ClassifiedBucket == "" {
		out.ClassifiedBucket = "classified-docs"
	}
	if out.MaxTextChars <= 0 {
		out.MaxTextChars = 10000
	}
	if out.OCRTimeout <= 0 {
		out.OCRTimeout = 120 * time.Second
	}
	if out.ArtifactTimeout <= 0 {
		out.ArtifactTimeout = 15 * time.Second
	}
	if out.LedgerTimeout <= 0 {
		out.LedgerTimeout = 10 * time.Second
	}
	if out.EventsTimeout <= 0 {
		out.EventsTimeout = 5 * time.Second
	}
	return out
}

type PipelineDeps struct {
	Extractor  ports.TextExtractor
	Engine     *ClassificationEngine
	Reconciler *Reconciler
	Gate       ConfidenceGate
	Store      ports.ArtifactStore
	Ledger     ports.Ledger
	Events     ports.EventPublisher
	Observer   ports.PipelineObserver
	Namer      *ArtifactNamer
	Logger     *slog.Logger
}

// PipelineUseCase sequences one submission through extract, normalize,
// classify, gate and persist. Stage failures degrade the run instead of aborting it.
type PipelineUseCase struct {
	extractor  ports.TextExtractor
	engine     *ClassificationEngine
	reconciler *Reconciler
	gate       ConfidenceGate
	store      ports.ArtifactStore
	ledger     ports.Ledger
	events     ports.EventPublisher
	observer   ports.PipelineObserver
	namer      *ArtifactNamer
	logger     *slog.Logger
	cfg        PipelineConfig

	now   func() time.Time
	newID func() string
}

func NewPipelineUseCase(deps PipelineDeps, cfg PipelineConfig) *PipelineUseCase {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	observer := deps.Observer
	if observer == nil {
		observer = noopObserver{}
	}
	namer := deps.Namer
	if namer == nil {
		namer = NewArtifactNamer(nil)
	}
	return &PipelineUseCase{
		extractor:  deps.Extractor,
		engine:     deps.Engine,
		reconciler: deps.Reconciler,
		gate:       deps.Gate,
		store:      deps.Store,
		ledger:     deps.Ledger,
		events:     deps.Events,
		observer:   observer,
		namer:      namer,
		logger:     logger,
		cfg:        cfg.normalize(),
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}
}

// run carries the mutable state of a single submission.
type run struct {
	result    *domain.ProcessResult
	text      string
	textValid bool
}

func (r *run) advance(state domain.PipelineState) {
	r.result.State = state
}

func (r *run) record(res domain.StageResult) {
	r.result.Stages = append(r.result.Stages, res)
	if res.Failed() && r.result.FailedStage == "" {
		r.result.FailedStage = res.Stage
	}
}

func (uc *PipelineUseCase) Process(ctx context.Context, sub domain.DocumentSubmission) (*domain.ProcessResult, error) {
	if err := validateSubmission(sub); err != nil {
		return nil, err
	}
	if err := uc.ready(); err != nil {
		return uc.hardFailure(sub.Identity, sub.Filename, err), err
	}

	r := uc.start(sub.Identity, sub.Filename)
	uc.extract(ctx, r, sub)
	normalized := uc.normalizeText(r)
	uc.classify(ctx, r, normalized)
	uc.persistArtifacts(ctx, r, sub)
	uc.appendRecord(ctx, r)
	uc.publish(ctx, r)
	uc.finish(r)
	return r.result, nil
}

func (uc *PipelineUseCase) ClassifyText(ctx context.Context, identity, text string) (*domain.ProcessResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.WrapError(domain.ErrValidation, "classify text", errors.New("text is required"))
	}
	if err := uc.ready(); err != nil {
		return uc.hardFailure(identity, "", err), err
	}

	r := uc.start(identity, "")
	r.text = text
	r.textValid = true
	r.result.ExtractedText = text
	r.record(domain.StageSkip(domain.StageOCR, "text submitted directly"))
	r.advance(domain.StateExtracted)

	normalized := uc.normalizeText(r)
	uc.classify(ctx, r, normalized)
	r.record(domain.StageSkip(domain.StageIncomingArtifact, "no document"))
	r.record(domain.StageSkip(domain.StageClassifiedArtifact, "no document"))
	uc.appendRecord(ctx, r)
	uc.publish(ctx, r)
	uc.finish(r)
	return r.result, nil
}

func (uc *PipelineUseCase) ready() error {
	if uc.engine == nil || uc.reconciler == nil {
		return domain.WrapError(domain.ErrFatalStartup, "pipeline", errEngineMissing)
	}
	return nil
}

func (uc *PipelineUseCase) start(identity, filename string) *run {
	return &run{result: &domain.ProcessResult{
		State:       domain.StateReceived,
		Filename:    filename,
		Identity:    sanitizeIdentity(identity),
		Stages:      make([]domain.StageResult, 0, 8),
		ProcessedAt: uc.now(),
	}}
}

func (uc *PipelineUseCase) hardFailure(identity, filename string, err error) *domain.ProcessResult {
	uc.logger.Error("pipeline_unavailable", "identity", identity, "filename", filename, "error", err)
	uc.observer.ObserveDocument(domain.StatusFailed)
	return &domain.ProcessResult{
		Status:      domain.StatusFailed,
		Summary:     "failed: " + err.Error(),
		State:       domain.StateFailed,
		FailedStage: domain.StageClassify,
		Filename:    filename,
		Identity:    sanitizeIdentity(identity),
		ProcessedAt: uc.now(),
	}
}

func (uc *PipelineUseCase) extract(ctx context.Context, r *run, sub domain.DocumentSubmission) {
	if uc.extractor == nil {
		r.record(domain.StageFail(domain.StageOCR, 0, domain.WrapError(
			domain.ErrExternalServiceUnavailable, "ocr", errors.New("no text extractor configured"))))
		uc.observer.ObserveOCRError()
		r.advance(domain.StateExtracted)
		return
	}

	callCtx, cancel := stageContext(ctx, uc.cfg.OCRTimeout)
	defer cancel()

	start := time.Now()
	res, err := uc.extractor.Extract(callCtx, sub.Filename, sub.ContentType, sub.Body)
	elapsed := time.Since(start)
	if err != nil {
		if domain.KindOf(err) == domain.KindInternal {
			err = domain.WrapError(domain.ErrExternalServiceUnavailable, "ocr", err)
		}
		r.record(domain.StageFail(domain.StageOCR, elapsed, err))
		uc.observer.ObserveOCRError()
		uc.logger.Warn("pipeline_stage_failed", "stage", domain.StageOCR, "filename", sub.Filename, "error", err)
	} else {
		r.text = strings.TrimSpace(res.Text)
		r.textValid = true
		r.record(domain.StageOK(domain.StageOCR, elapsed))
	}
	r.result.ExtractedText = r.text
	r.advance(domain.StateExtracted)
}

func (uc *PipelineUseCase) normalizeText(r *run) string {
	start := time.Now()
	normalized := textnorm.Normalize(r.text)
	r.record(domain.StageOK(domain.StageNormalize, time.Since(start)))
	r.result.NormalizedText = normalized
	r.advance(domain.StateNormalized)
	return normalized
}

func (uc *PipelineUseCase) classify(ctx context.Context, r *run, normalized string) {
	rec, primary, stages := uc.reconciler.Reconcile(context.WithoutCancel(ctx), normalized)
	for _, s := range stages {
		r.record(s)
		if s.Failed() {
			uc.logger.Warn("pipeline_stage_failed", "stage", s.Stage, "kind", s.Kind, "error", s.Error)
		}
	}
	r.result.Reconciliation = rec
	r.result.ClassifyLatency = primary.Latency
	r.advance(domain.StateClassified)

	gated := uc.gate.Apply(primary.Result)
	r.result.Gated = gated
	r.record(domain.StageOK(domain.StageGate, 0))
	r.advance(domain.StateGated)

	uc.observer.ObserveClassification(gated.Category, gated.Rejected, primary.Latency.Seconds())
}

func (uc *PipelineUseCase) persistArtifacts(ctx context.Context, r *run, sub domain.DocumentSubmission) {
	if uc.store == nil {
		r.record(domain.StageFail(domain.StageIncomingArtifact, 0, domain.WrapError(
			domain.ErrStorageWriteFailure, "artifact store", errors.New("no artifact store configured"))))
		r.record(domain.StageFail(domain.StageClassifiedArtifact, 0, domain.WrapError(
			domain.ErrStorageWriteFailure, "artifact store", errors.New("no artifact store configured"))))
		return
	}

	if sub.ReuseIncoming && sub.IncomingKey != "" {
		r.result.IncomingRef = domain.ArtifactRef{Bucket: uc.cfg.IncomingBucket, Key: sub.IncomingKey}
		r.record(domain.StageSkip(domain.StageIncomingArtifact, "artifact already stored"))
	} else {
		key := uc.namer.IncomingKey(r.result.Identity, sub.Filename)
		if res := uc.put(ctx, domain.StageIncomingArtifact, uc.cfg.IncomingBucket, key, sub.Body, contentTypeOrDefault(sub.ContentType)); res.Failed() {
			r.record(res)
		} else {
			r.result.IncomingRef = domain.ArtifactRef{Bucket: uc.cfg.IncomingBucket, Key: key}
			r.record(res)
		}
	}

	key := uc.namer.ClassifiedKey(r.result.Gated.Category)
	summary := ClassifiedSummary(sub.Filename, r.result.Gated.Category, r.result.Gated.Confidence, r.text)
	res := uc.put(ctx, domain.StageClassifiedArtifact, uc.cfg.ClassifiedBucket, key, []byte(summary), "text/plain; charset=utf-8")
	if !res.Failed() {
		r.result.ClassifiedRef = domain.ArtifactRef{Bucket: uc.cfg.ClassifiedBucket, Key: key}
	}
	r.record(res)
}

func (uc *PipelineUseCase) put(ctx context.Context, stage domain.Stage, bucket, key string, data []byte, contentType string) domain.StageResult {
	callCtx, cancel := stageContext(ctx, uc.cfg.ArtifactTimeout)
	defer cancel()

	start := time.Now()
	err := uc.store.Put(callCtx, bucket, key, data, contentType)
	elapsed := time.Since(start)
	if err != nil {
		err = domain.WrapError(domain.ErrStorageWriteFailure, fmt.Sprintf("put %s/%s", bucket, key), err)
		uc.logger.Warn("pipeline_stage_failed", "stage", stage, "bucket", bucket, "key", key, "error", err)
		return domain.StageFail(stage, elapsed, err)
	}
	return domain.StageOK(stage, elapsed)
}

func (uc *PipelineUseCase) appendRecord(ctx context.Context, r *run) {
	rec := uc.buildRecord(r)
	r.result.RecordID = rec.ID

	if uc.ledger == nil {
		r.record(domain.StageFail(domain.StageLedger, 0, domain.WrapError(
			domain.ErrPersistenceFailure, "ledger append", errors.New("no ledger configured"))))
		return
	}

	callCtx, cancel := stageContext(ctx, uc.cfg.LedgerTimeout)
	defer cancel()

	start := time.Now()
	err := uc.ledger.Append(callCtx, rec)
	elapsed := time.Since(start)
	if err != nil {
		err = domain.WrapError(domain.ErrPersistenceFailure, "ledger append", err)
		uc.logger.Error("pipeline_stage_failed", "stage", domain.StageLedger, "record_id", rec.ID, "error", err)
		r.result.RecordID = ""
		r.record(domain.StageFail(domain.StageLedger, elapsed, err))
		return
	}
	r.record(domain.StageOK(domain.StageLedger, elapsed))
	r.advance(domain.StatePersisted)
}

func (uc *PipelineUseCase) buildRecord(r *run) domain.ClassificationRecord {
	rec := domain.ClassificationRecord{
		ID:                uc.newID(),
		Filename:          r.result.Filename,
		Category:          domain.StringPtr(r.result.Gated.Category),
		CreatedAt:         r.result.ProcessedAt,
		Identity:          r.result.Identity,
		GroundTruth:       r.result.Reconciliation.GroundTruth,
		PrimaryConfidence: domain.Float64Ptr(r.result.Gated.Confidence),
	}
	if r.textValid {
		rec.Text = domain.StringPtr(truncateRunes(r.text, uc.cfg.MaxTextChars))
	}
	if p := r.result.Reconciliation.Primary; p != nil {
		rec.PrimaryPrediction = domain.StringPtr(p.Category)
	}
	if s := r.result.Reconciliation.Secondary; s != nil {
		rec.SecondaryPrediction = domain.StringPtr(s.Category)
	}
	return rec
}

func (uc *PipelineUseCase) publish(ctx context.Context, r *run) {
	if uc.events == nil {
		return
	}
	if r.result.RecordID == "" {
		r.record(domain.StageSkip(domain.StageEvents, "record not persisted"))
		return
	}

	callCtx, cancel := stageContext(ctx, uc.cfg.EventsTimeout)
	defer cancel()

	start := time.Now()
	err := uc.events.PublishClassified(callCtx, domain.ClassifiedEvent{
		RecordID:    r.result.RecordID,
		Identity:    r.result.Identity,
		Filename:    r.result.Filename,
		Category:    r.result.Gated.Category,
		Confidence:  r.result.Gated.Confidence,
		GroundTruth: r.result.Reconciliation.GroundTruth,
		Status:      string(statusOf(r.result)),
		OccurredAt:  r.result.ProcessedAt,
	})
	if err != nil {
		uc.logger.Warn("classified_event_publish_failed", "record_id", r.result.RecordID, "error", err)
		r.record(domain.StageFail(domain.StageEvents, time.Since(start), err))
		return
	}
	r.record(domain.StageOK(domain.StageEvents, time.Since(start)))
}

func (uc *PipelineUseCase) finish(r *run) {
	for _, s := range r.result.Stages {
		if s.Failed() {
			uc.observer.ObserveStageFailure(s.Stage, s.Kind)
		}
	}
	r.result.Status = statusOf(r.result)
	r.result.Summary = summarize(r.result, uc.gate.Threshold())
	r.advance(domain.StateDone)
	uc.observer.ObserveDocument(r.result.Status)

	uc.logger.Info("document_processed",
		"record_id", r.result.RecordID,
		"identity", r.result.Identity,
		"filename", r.result.Filename,
		"category", r.result.Gated.Category,
		"confidence", r.result.Gated.Confidence,
		"status", r.result.Status,
	)
}

// statusOf ignores the events stage; publishing has its own failure path.
func statusOf(res *domain.ProcessResult) domain.ProcessStatus {
	for _, s := range res.Stages {
		if s.Failed() && s.Stage != domain.StageEvents {
			return domain.StatusProcessedWithErrors
		}
	}
	return domain.StatusProcessed
}

var stageLabels = map[domain.Stage]string{
	domain.StageOCR:                "OCR",
	domain.StageSecondary:          "secondary classifier",
	domain.StageIncomingArtifact:   "incoming artifact",
	domain.StageClassifiedArtifact: "classified artifact",
	domain.StageLedger:             "ledger",
}

func summarize(res *domain.ProcessResult, threshold float64) string {
	labels := make([]string, 0, 4)
	for _, s := range res.Failures() {
		if label, ok := stageLabels[s.Stage]; ok {
			labels = append(labels, label)
		}
	}

	var b strings.Builder
	switch len(labels) {
	case 0:
		b.WriteString("processed")
	case 1:
		b.WriteString("processed with " + labels[0] + " error")
	default:
		b.WriteString("processed with " + strings.Join(labels, ", ") + " errors")
	}
	if res.Gated.Rejected {
		fmt.Fprintf(&b, "; low confidence %.4f below threshold %.2f", res.Gated.Confidence, threshold)
	}
	return b.String()
}

// ClassifiedSummary is the fixed-format body of a classified artifact.
func ClassifiedSummary(filename, category string, confidence float64, text string) string {
	return fmt.Sprintf("original_filename: %s\ncategory: %s\nconfidence: %.4f\n\nextracted_text:\n%s\n",
		filename, category, confidence, text)
}

func validateSubmission(sub domain.DocumentSubmission) error {
	if strings.TrimSpace(sub.Filename) == "" {
		return domain.WrapError(domain.ErrValidation, "process document", errors.New("filename is required"))
	}
	if len(sub.Body) == 0 {
		return domain.WrapError(domain.ErrValidation, "process document", errors.New("file is empty"))
	}
	return nil
}

// stageContext detaches from caller cancellation; only the stage timeout ends the call.
func stageContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}

func contentTypeOrDefault(ct string) string {
	if strings.TrimSpace(ct) == "" {
		return "application/octet-stream"
	}
	return ct
}

type noopObserver struct{}

func (noopObserver) ObserveClassification(string, bool, float64)        {}
func (noopObserver) ObserveOCRError()                                   {}
func (noopObserver) ObserveStageFailure(domain.Stage, domain.ErrorKind) {}
func (noopObserver) ObserveDocument(domain.ProcessStatus)               {}
