package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/luismhernandezs-crypto/doc-classifier/internal/core/domain"
	"github.com/luismhernandezs-crypto/doc-classifier/internal/core/ports"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
	maxExportRows       = 10000
)

// HistoryUseCase is the read side of the ledger.
type HistoryUseCase struct {
	ledger   ports.Ledger
	exporter ports.HistoryExporter
}

func NewHistoryUseCase(ledger ports.Ledger, exporter ports.HistoryExporter) *HistoryUseCase {
	return &HistoryUseCase{ledger: ledger, exporter: exporter}
}

// History returns records newest first.
func (uc *HistoryUseCase) History(ctx context.Context, filter domain.LedgerFilter) ([]domain.ClassificationRecord, error) {
	filter, err := normalizeFilter(filter, defaultHistoryLimit, maxHistoryLimit)
	if err != nil {
		return nil, err
	}
	records, err := uc.ledger.Query(ctx, filter)
	if err != nil {
		return nil, domain.WrapError(domain.ErrPersistenceFailure, "history query", err)
	}
	return records, nil
}

// Export renders the filtered selection as a workbook.
func (uc *HistoryUseCase) Export(ctx context.Context, filter domain.LedgerFilter) ([]byte, error) {
	if uc.exporter == nil {
		return nil, domain.WrapError(domain.ErrValidation, "history export", errors.New("export is not configured"))
	}
	filter, err := normalizeFilter(filter, maxExportRows, maxExportRows)
	if err != nil {
		return nil, err
	}
	records, err := uc.ledger.Query(ctx, filter)
	if err != nil {
		return nil, domain.WrapError(domain.ErrPersistenceFailure, "history query", err)
	}
	out, err := uc.exporter.Export(records)
	if err != nil {
		return nil, domain.WrapError(domain.ErrStorageWriteFailure, "history export", err)
	}
	return out, nil
}

func normalizeFilter(filter domain.LedgerFilter, def, ceiling int) (domain.LedgerFilter, error) {
	filter.Identity = strings.TrimSpace(filter.Identity)
	filter.Category = strings.TrimSpace(filter.Category)
	if filter.Limit < 0 || filter.Offset < 0 {
		return filter, domain.WrapError(domain.ErrValidation, "history filter", errors.New("limit and offset must be non-negative"))
	}
	if filter.Since != nil && filter.Until != nil && filter.Until.Before(*filter.Since) {
		return filter, domain.WrapError(domain.ErrValidation, "history filter", errors.New("until is before since"))
	}
	if filter.Limit == 0 {
		filter.Limit = def
	}
	if filter.Limit > ceiling {
		filter.Limit = ceiling
	}
	return filter, nil
}
