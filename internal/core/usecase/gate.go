package usecase

import (
	"github.com/luismhernandezs-crypto/doc-classifier/internal/core/domain"
)

// DefaultConfidenceThreshold is used when the configured threshold is outside [0,1].
const DefaultConfidenceThreshold = 0.55

// ConfidenceGate replaces low-confidence categories with the unknown sentinel.
type ConfidenceGate struct {
	threshold float64
	unknown   string
}

// NewConfidenceGate falls back to DefaultConfidenceThreshold (0.55) for a
// threshold outside [0,1], and to domain.DefaultUnknownCategory for an empty label.
func NewConfidenceGate(threshold float64, unknown string) ConfidenceGate {
	if threshold < 0 || threshold > 1 {
		threshold = DefaultConfidenceThreshold
	}
	if unknown == "" {
		unknown = domain.DefaultUnknownCategory
	}
	return ConfidenceGate{threshold: threshold, unknown: unknown}
}

func (g ConfidenceGate) Threshold() float64 { return g.threshold }

// Apply keeps the numeric confidence in every case.
func (g ConfidenceGate) Apply(c domain.Classification) domain.GatedClassification {
	out := domain.GatedClassification{
		Category:   c.Category,
		Confidence: c.Confidence,
		Raw:        c.Category,
	}
	if c.Confidence < g.threshold {
		out.Category = g.unknown
		out.Rejected = true
	}
	return out
}
