package usecase

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/luismhernandezs-crypto/doc-classifier/internal/core/domain"
)

// modelFake answers by keyword lookup over the normalized text.
type modelFake struct {
	mu       sync.Mutex
	answers  map[string]domain.Classification
	fallback domain.Classification
	calls    int
}

func (f *modelFake) Predict(text string) (string, float64) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	for keyword, cls := range f.answers {
		if strings.Contains(text, keyword) {
			return cls.Category, cls.Confidence
		}
	}
	return f.fallback.Category, f.fallback.Confidence
}

func (f *modelFake) Classes() []string {
	out := make([]string, 0, len(f.answers))
	for _, cls := range f.answers {
		out = append(out, cls.Category)
	}
	sort.Strings(out)
	return out
}

func (f *modelFake) Version() string { return "fake-1" }

func (f *modelFake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type extractorFake struct {
	text  string
	err   error
	delay time.Duration
}

func (f *extractorFake) Extract(ctx context.Context, filename, _ string, _ []byte) (domain.ExtractionResult, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return domain.ExtractionResult{}, ctx.Err()
		}
	}
	if f.err != nil {
		return domain.ExtractionResult{}, f.err
	}
	return domain.ExtractionResult{Text: f.text, SourceFilename: filename}, nil
}

type secondaryFake struct {
	cls   domain.Classification
	err   error
	delay time.Duration
	mu    sync.Mutex
	texts []string
}

func (f *secondaryFake) Classify(ctx context.Context, text string) (domain.Classification, error) {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return domain.Classification{}, ctx.Err()
		}
	}
	if f.err != nil {
		return domain.Classification{}, f.err
	}
	return f.cls, nil
}

func (f *secondaryFake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.texts)
}

type storedObject struct {
	data        []byte
	contentType string
}

type storeFake struct {
	mu      sync.Mutex
	objects map[string]storedObject
	failOn  string
	err     error
}

func newStoreFake() *storeFake {
	return &storeFake{objects: map[string]storedObject{}}
}

func (f *storeFake) Put(_ context.Context, bucket, key string, data []byte, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil && (f.failOn == "" || f.failOn == bucket) {
		return f.err
	}
	f.objects[bucket+"/"+key] = storedObject{data: append([]byte(nil), data...), contentType: contentType}
	return nil
}

func (f *storeFake) Get(_ context.Context, bucket, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return obj.data, nil
}

func (f *storeFake) Exists(context.Context, string) (bool, error) { return true, nil }

func (f *storeFake) EnsureBucket(context.Context, string) error { return nil }

func (f *storeFake) List(_ context.Context, bucket, prefix string) ([]domain.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ObjectInfo, 0)
	for full, obj := range f.objects {
		key, ok := strings.CutPrefix(full, bucket+"/")
		if !ok || !strings.HasPrefix(key, prefix) {
			continue
		}
		out = append(out, domain.ObjectInfo{Key: key, Size: int64(len(obj.data)), ContentType: obj.contentType})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (f *storeFake) Keys(bucket string) []string {
	objs, _ := f.List(context.Background(), bucket, "")
	out := make([]string, 0, len(objs))
	for _, o := range objs {
		out = append(out, o.Key)
	}
	return out
}

type ledgerFake struct {
	mu        sync.Mutex
	records   []domain.ClassificationRecord
	appendErr error
	summary   domain.LedgerSummary
	pairs     []domain.LabeledPair
	pairCalls int
}

func (f *ledgerFake) EnsureSchema(context.Context) error { return nil }

func (f *ledgerFake) Append(_ context.Context, rec domain.ClassificationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *ledgerFake) Query(_ context.Context, filter domain.LedgerFilter) ([]domain.ClassificationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ClassificationRecord, 0, len(f.records))
	for _, rec := range f.records {
		if filter.Identity != "" && rec.Identity != filter.Identity {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (f *ledgerFake) AllLabeledPairs(context.Context) ([]domain.LabeledPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pairCalls++
	if f.pairs != nil {
		return f.pairs, nil
	}
	out := make([]domain.LabeledPair, 0, len(f.records))
	for _, rec := range f.records {
		if rec.GroundTruth == nil || rec.PrimaryPrediction == nil {
			continue
		}
		out = append(out, domain.LabeledPair{GroundTruth: *rec.GroundTruth, PrimaryPrediction: *rec.PrimaryPrediction})
	}
	return out, nil
}

func (f *ledgerFake) LabeledSamples(context.Context) ([]domain.LabeledSample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.LabeledSample, 0, len(f.records))
	for _, rec := range f.records {
		if rec.GroundTruth == nil || rec.Text == nil {
			continue
		}
		sample := domain.LabeledSample{Text: *rec.Text, GroundTruth: *rec.GroundTruth}
		if rec.PrimaryPrediction != nil {
			sample.PrimaryPrediction = *rec.PrimaryPrediction
		}
		out = append(out, sample)
	}
	return out, nil
}

func (f *ledgerFake) Summary(context.Context, int) (domain.LedgerSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.summary
	if s.TotalRecords == 0 {
		s.TotalRecords = int64(len(f.records))
	}
	return s, nil
}

func (f *ledgerFake) Records() []domain.ClassificationRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ClassificationRecord(nil), f.records...)
}

type observerFake struct {
	mu             sync.Mutex
	classified     []string
	rejected       int
	ocrErrors      int
	stageFailures  []domain.Stage
	documents      []domain.ProcessStatus
	latencySamples int
}

func (f *observerFake) ObserveClassification(category string, rejected bool, _ float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.classified = append(f.classified, category)
	f.latencySamples++
	if rejected {
		f.rejected++
	}
}

func (f *observerFake) ObserveOCRError() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ocrErrors++
}

func (f *observerFake) ObserveStageFailure(stage domain.Stage, _ domain.ErrorKind) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stageFailures = append(f.stageFailures, stage)
}

func (f *observerFake) ObserveDocument(status domain.ProcessStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.documents = append(f.documents, status)
}

type eventsFake struct {
	mu     sync.Mutex
	events []domain.ClassifiedEvent
	err    error
}

func (f *eventsFake) PublishClassified(_ context.Context, event domain.ClassifiedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}
