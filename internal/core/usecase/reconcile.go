package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/luismhernandezs-crypto/doc-classifier/internal/core/domain"
	"github.com/luismhernandezs-crypto/doc-classifier/internal/core/ports"
)

// Authority names the model whose label wins when both are present.
type Authority string

const (
	AuthoritySecondary Authority = "secondary"
	AuthorityPrimary   Authority = "primary"
)

// ParseAuthority defaults to AuthoritySecondary for anything but "primary".
func ParseAuthority(v string) Authority {
	if Authority(v) == AuthorityPrimary {
		return AuthorityPrimary
	}
	return AuthoritySecondary
}

// Reconciler runs the primary engine and the optional secondary classifier
// against the same text and derives the proxy ground-truth label.
type Reconciler struct {
	engine    *ClassificationEngine
	secondary ports.SecondaryClassifier
	authority Authority
	timeout   time.Duration
}

// NewReconciler accepts a nil secondary; the secondary stage is then skipped.
func NewReconciler(engine *ClassificationEngine, secondary ports.SecondaryClassifier, authority Authority, timeout time.Duration) *Reconciler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Reconciler{
		engine:    engine,
		secondary: secondary,
		authority: authority,
		timeout:   timeout,
	}
}

// PrimaryOutcome is the primary path plus its measured latency.
type PrimaryOutcome struct {
	Result  domain.Classification
	Latency time.Duration
}

func (r *Reconciler) Reconcile(ctx context.Context, normalized string) (domain.Reconciliation, PrimaryOutcome, []domain.StageResult) {
	var (
		wg           sync.WaitGroup
		secondary    *domain.Classification
		secondaryRes domain.StageResult
	)

	switch {
	case r.secondary == nil:
		secondaryRes = domain.StageSkip(domain.StageSecondary, "secondary classifier disabled")
	case normalized == "":
		secondaryRes = domain.StageSkip(domain.StageSecondary, "no text to classify")
	default:
		wg.Add(1)
		go func() {
			defer wg.Done()
			secondary, secondaryRes = r.runSecondary(ctx, normalized)
		}()
	}

	start := time.Now()
	primaryResult := r.engine.Predict(normalized)
	primary := PrimaryOutcome{Result: primaryResult, Latency: time.Since(start)}
	primaryRes := domain.StageOK(domain.StageClassify, primary.Latency)

	wg.Wait()

	rec := domain.Reconciliation{Secondary: secondary}
	if !r.engine.IsUnknown(primaryResult.Category) {
		p := primaryResult
		rec.Primary = &p
	}
	rec.GroundTruth = r.groundTruth(rec.Primary, rec.Secondary)

	return rec, primary, []domain.StageResult{primaryRes, secondaryRes}
}

func (r *Reconciler) runSecondary(ctx context.Context, text string) (*domain.Classification, domain.StageResult) {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	cls, err := r.secondary.Classify(callCtx, text)
	elapsed := time.Since(start)
	if err != nil {
		if !domain.IsKind(err, domain.ErrExternalServiceUnavailable) {
			err = domain.WrapError(domain.ErrExternalServiceUnavailable, "secondary classifier", err)
		}
		return nil, domain.StageFail(domain.StageSecondary, elapsed, err)
	}
	if r.engine.IsUnknown(cls.Category) {
		return nil, domain.StageOK(domain.StageSecondary, elapsed)
	}
	cls.Confidence = clamp01(cls.Confidence)
	return &cls, domain.StageOK(domain.StageSecondary, elapsed)
}

// groundTruth prefers the authoritative label, falls back to the other one, else nil.
func (r *Reconciler) groundTruth(primary, secondary *domain.Classification) *string {
	first, second := secondary, primary
	if r.authority == AuthorityPrimary {
		first, second = primary, secondary
	}
	if first != nil {
		return domain.StringPtr(first.Category)
	}
	if second != nil {
		return domain.StringPtr(second.Category)
	}
	return nil
}
