package usecase

import (
	"errors"
	"strings"

	"github.com/luismhernandezs-crypto/doc-classifier/internal/core/domain"
	"github.com/luismhernandezs-crypto/doc-classifier/internal/core/ports"
)

var errEngineMissing = errors.New("classification engine is not loaded")

// ClassificationEngine wraps the process-wide model handle.
type ClassificationEngine struct {
	model   ports.TextModel
	unknown string
}

// NewClassificationEngine fails with ErrFatalStartup when no model is loaded.
func NewClassificationEngine(model ports.TextModel, unknown string) (*ClassificationEngine, error) {
	if model == nil {
		return nil, domain.WrapError(domain.ErrFatalStartup, "init classification engine", errors.New("model is not loaded"))
	}
	if strings.TrimSpace(unknown) == "" {
		unknown = domain.DefaultUnknownCategory
	}
	return &ClassificationEngine{model: model, unknown: unknown}, nil
}

// Predict never calls the model for empty input.
func (e *ClassificationEngine) Predict(normalizedText string) domain.Classification {
	if strings.TrimSpace(normalizedText) == "" {
		return domain.NoPrediction(e.unknown)
	}
	category, confidence := e.model.Predict(normalizedText)
	if category == "" {
		return domain.NoPrediction(e.unknown)
	}
	return domain.Classification{Category: category, Confidence: clamp01(confidence)}
}

func (e *ClassificationEngine) Unknown() string { return e.unknown }

func (e *ClassificationEngine) ModelVersion() string { return e.model.Version() }

func (e *ClassificationEngine) IsUnknown(category string) bool {
	return category == "" || category == e.unknown
}

func clamp01(v float64) float64 {
	switch {
	case v != v:
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
