package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/luismhernandezs-crypto/doc-classifier/internal/core/domain"
)

type filterLedger struct {
	ledgerFake
	last domain.LedgerFilter
	err  error
}

func (f *filterLedger) Query(ctx context.Context, filter domain.LedgerFilter) ([]domain.ClassificationRecord, error) {
	f.last = filter
	if f.err != nil {
		return nil, f.err
	}
	return f.ledgerFake.Query(ctx, filter)
}

type exporterFake struct {
	got []domain.ClassificationRecord
}

func (f *exporterFake) Export(records []domain.ClassificationRecord) ([]byte, error) {
	f.got = records
	return []byte("xlsx"), nil
}

func TestHistoryClampsLimit(t *testing.T) {
	ledger := &filterLedger{}
	uc := NewHistoryUseCase(ledger, nil)

	if _, err := uc.History(context.Background(), domain.LedgerFilter{Identity: " ana "}); err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if ledger.last.Limit != defaultHistoryLimit || ledger.last.Identity != "ana" {
		t.Fatalf("unexpected filter: %+v", ledger.last)
	}
	if _, err := uc.History(context.Background(), domain.LedgerFilter{Limit: 10000}); err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if ledger.last.Limit != maxHistoryLimit {
		t.Fatalf("expected limit clamp, got %d", ledger.last.Limit)
	}
}

func TestHistoryValidation(t *testing.T) {
	uc := NewHistoryUseCase(&filterLedger{}, nil)
	since := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	until := since.Add(-time.Hour)

	for _, filter := range []domain.LedgerFilter{
		{Limit: -1},
		{Offset: -3},
		{Since: &since, Until: &until},
	} {
		if _, err := uc.History(context.Background(), filter); !domain.IsKind(err, domain.ErrValidation) {
			t.Fatalf("expected validation error for %+v, got %v", filter, err)
		}
	}
}

func TestHistoryWrapsLedgerError(t *testing.T) {
	uc := NewHistoryUseCase(&filterLedger{err: errors.New("boom")}, nil)
	if _, err := uc.History(context.Background(), domain.LedgerFilter{}); !domain.IsKind(err, domain.ErrPersistenceFailure) {
		t.Fatalf("expected persistence failure, got %v", err)
	}
}

func TestHistoryExport(t *testing.T) {
	ledger := &filterLedger{}
	ledger.records = []domain.ClassificationRecord{{ID: "r1", Identity: "ana"}, {ID: "r2", Identity: "luis"}}
	exporter := &exporterFake{}
	uc := NewHistoryUseCase(ledger, exporter)

	out, err := uc.Export(context.Background(), domain.LedgerFilter{Identity: "ana"})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if string(out) != "xlsx" || len(exporter.got) != 1 || exporter.got[0].ID != "r1" {
		t.Fatalf("unexpected export: %q %+v", out, exporter.got)
	}
	if ledger.last.Limit != maxExportRows {
		t.Fatalf("export should use the export row cap, got %d", ledger.last.Limit)
	}
}
