package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/luismhernandezs-crypto/doc-classifier/internal/core/domain"
	"github.com/luismhernandezs-crypto/doc-classifier/internal/core/ports"
	"github.com/luismhernandezs-crypto/doc-classifier/internal/core/textnorm"
)

type MetricsConfig struct {
	CacheTTL      time.Duration
	RatePerMinute int
	RecentRecords int
	LedgerTimeout time.Duration
}

// MetricsUseCase serves the global metrics view. Quality is rebuilt from
// the whole ledger, so snapshots are cached, rate limited and shared
// between concurrent callers.
type MetricsUseCase struct {
	ledger   ports.Ledger
	engine   *ClassificationEngine
	observer ports.QualityObserver
	logger   *slog.Logger
	cfg      MetricsConfig

	limiter *rate.Limiter
	group   singleflight.Group
	now     func() time.Time

	mu     sync.RWMutex
	cached *domain.GlobalMetrics
}

func NewMetricsUseCase(ledger ports.Ledger, engine *ClassificationEngine, observer ports.QualityObserver, logger *slog.Logger, cfg MetricsConfig) *MetricsUseCase {
	if cfg.CacheTTL < 0 {
		cfg.CacheTTL = 0
	}
	if cfg.RecentRecords <= 0 {
		cfg.RecentRecords = 10
	}
	if cfg.LedgerTimeout <= 0 {
		cfg.LedgerTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RatePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RatePerMinute)), cfg.RatePerMinute)
	}

	return &MetricsUseCase{
		ledger:   ledger,
		engine:   engine,
		observer: observer,
		logger:   logger,
		cfg:      cfg,
		limiter:  limiter,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (uc *MetricsUseCase) Global(ctx context.Context) (*domain.GlobalMetrics, error) {
	if snap, ok := uc.fresh(); ok {
		return snap, nil
	}

	v, err, _ := uc.group.Do("global", func() (interface{}, error) {
		if snap, ok := uc.fresh(); ok {
			return snap, nil
		}
		allowed := uc.limiter.Allow()
		if stale := uc.snapshot(); stale != nil && !allowed {
			out := *stale
			out.Stale = true
			return &out, nil
		}
		return uc.recompute(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.GlobalMetrics), nil
}

func (uc *MetricsUseCase) recompute(ctx context.Context) (*domain.GlobalMetrics, error) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.cfg.LedgerTimeout)
	defer cancel()

	start := time.Now()
	summary, err := uc.ledger.Summary(callCtx, uc.cfg.RecentRecords)
	if err != nil {
		return nil, domain.WrapError(domain.ErrPersistenceFailure, "ledger summary", err)
	}
	quality, err := uc.Quality(callCtx, true)
	if err != nil {
		return nil, err
	}

	snap := &domain.GlobalMetrics{
		LedgerSummary: summary,
		Quality:       quality,
		ComputedAt:    uc.now(),
	}
	uc.mu.Lock()
	uc.cached = snap
	uc.mu.Unlock()

	if uc.observer != nil {
		uc.observer.SetQuality(quality)
	}
	uc.logger.Info("quality_recomputed",
		"samples", quality.Samples,
		"accuracy", quality.Accuracy,
		"f1", quality.F1,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return snap, nil
}

// Quality scores the ledger once. live re-runs inference over stored text;
// otherwise the stored primary predictions are compared.
func (uc *MetricsUseCase) Quality(ctx context.Context, live bool) (domain.QualityReport, error) {
	if uc.engine == nil {
		return domain.QualityReport{}, domain.WrapError(domain.ErrFatalStartup, "quality", errEngineMissing)
	}
	if !live {
		pairs, err := uc.ledger.AllLabeledPairs(ctx)
		if err != nil {
			return domain.QualityReport{}, domain.WrapError(domain.ErrPersistenceFailure, "ledger labeled pairs", err)
		}
		return ComputeQuality(StoredPairs(uc.engine, pairs)), nil
	}
	samples, err := uc.ledger.LabeledSamples(ctx)
	if err != nil {
		return domain.QualityReport{}, domain.WrapError(domain.ErrPersistenceFailure, "ledger labeled samples", err)
	}
	return ComputeQuality(LivePairs(uc.engine, textnorm.Normalize, samples)), nil
}

func (uc *MetricsUseCase) fresh() (*domain.GlobalMetrics, bool) {
	snap := uc.snapshot()
	if snap == nil || uc.cfg.CacheTTL == 0 {
		return nil, false
	}
	if uc.now().Sub(snap.ComputedAt) >= uc.cfg.CacheTTL {
		return nil, false
	}
	return snap, true
}

func (uc *MetricsUseCase) snapshot() *domain.GlobalMetrics {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	return uc.cached
}
