package sqlstore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/luismhernandezs-crypto/doc-classifier/internal/core/domain"
)

func newSQLiteLedger(t *testing.T) *LedgerRepository {
	t.Helper()
	ctx := context.Background()
	db, err := OpenDB(SQLite, ":memory:")
	if err != nil {
		t.Fatalf("OpenDB() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := NewLedgerRepository(db, SQLite)
	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema() must be idempotent: %v", err)
	}
	return repo
}

func record(id, identity, category string, at time.Time) domain.ClassificationRecord {
	return domain.ClassificationRecord{
		ID:                id,
		Filename:          id + ".pdf",
		Text:              domain.StringPtr("texto de " + id),
		Category:          domain.StringPtr(category),
		CreatedAt:         at,
		Identity:          identity,
		PrimaryPrediction: domain.StringPtr(category),
		GroundTruth:       domain.StringPtr(category),
		PrimaryConfidence: domain.Float64Ptr(0.9),
	}
}

func TestSQLiteAppendQuerySummary(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteLedger(t)
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	recs := []domain.ClassificationRecord{
		record("r1", "ana", "Factura", base),
		record("r2", "ana", "Contrato", base.Add(time.Minute)),
		record("r3", "luis", "Factura", base.Add(2*time.Minute)),
	}
	failed := domain.ClassificationRecord{
		ID:                "r4",
		Filename:          "scan.pdf",
		Category:          domain.StringPtr("unknown"),
		CreatedAt:         base.Add(3 * time.Minute),
		Identity:          "luis",
		PrimaryConfidence: domain.Float64Ptr(0),
	}
	for _, rec := range append(recs, failed) {
		if err := repo.Append(ctx, rec); err != nil {
			t.Fatalf("Append(%s) error = %v", rec.ID, err)
		}
	}

	got, err := repo.Query(ctx, domain.LedgerFilter{Limit: 10})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 4 || got[0].ID != "r4" || got[3].ID != "r1" {
		t.Fatalf("expected newest first, got %+v", got)
	}
	if got[0].Text != nil || got[0].GroundTruth != nil {
		t.Fatalf("null fields not preserved: %+v", got[0])
	}
	if !got[3].CreatedAt.Equal(base) {
		t.Fatalf("created_at round trip: %v != %v", got[3].CreatedAt, base)
	}

	since := base.Add(time.Minute)
	got, err = repo.Query(ctx, domain.LedgerFilter{Identity: "ana", Since: &since, Limit: 10})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "r2" {
		t.Fatalf("unexpected filtered result: %+v", got)
	}

	summary, err := repo.Summary(ctx, 2)
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if summary.TotalRecords != 4 || len(summary.Recent) != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.PerCategory[0].Category != "Factura" || summary.PerCategory[0].Count != 2 {
		t.Fatalf("unexpected per-category counts: %+v", summary.PerCategory)
	}
	if len(summary.PerIdentity) != 2 {
		t.Fatalf("unexpected per-identity counts: %+v", summary.PerIdentity)
	}
	if summary.AverageTextLength != float64(len("texto de r1")) {
		t.Fatalf("average text length = %v", summary.AverageTextLength)
	}

	pairs, err := repo.AllLabeledPairs(ctx)
	if err != nil {
		t.Fatalf("AllLabeledPairs() error = %v", err)
	}
	if len(pairs) != 3 {
		t.Fatalf("expected 3 labeled pairs, got %d", len(pairs))
	}
	samples, err := repo.LabeledSamples(ctx)
	if err != nil {
		t.Fatalf("LabeledSamples() error = %v", err)
	}
	if len(samples) != 3 || samples[0].Text != "texto de r1" {
		t.Fatalf("unexpected samples: %+v", samples)
	}
}

func TestSQLiteConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteLedger(t)
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	const n = 25
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- repo.Append(ctx, record(fmt.Sprintf("c%02d", i), "ana", "Factura", base))
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	summary, err := repo.Summary(ctx, 0)
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if summary.TotalRecords != n {
		t.Fatalf("expected %d rows, got %d", n, summary.TotalRecords)
	}
}
