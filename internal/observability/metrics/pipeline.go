package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"

	"github.com/luismhernandezs-crypto/doc-classifier/internal/core/domain"
)

// PipelineMetrics exports hot-path counters and the cached quality gauges.
type PipelineMetrics struct {
	service string

	documentsTotal       *prometheus.CounterVec
	classificationsTotal *prometheus.CounterVec
	lowConfidenceTotal   prometheus.Counter
	ocrErrorsTotal       prometheus.Counter
	stageFailuresTotal   *prometheus.CounterVec
	classifyDuration     prometheus.Histogram
	breakerState         *prometheus.GaugeVec

	qualityAccuracy  prometheus.Gauge
	qualityPrecision prometheus.Gauge
	qualityRecall    prometheus.Gauge
	qualityF1        prometheus.Gauge
	qualitySamples   prometheus.Gauge
}

func NewPipelineMetrics(service string, registerer prometheus.Registerer) *PipelineMetrics {
	constLabels := prometheus.Labels{"service": service}

	m := &PipelineMetrics{
		service: service,
		documentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "pipeline",
				Name:        "documents_total",
				Help:        "Documents that finished the pipeline, by status.",
				ConstLabels: constLabels,
			},
			[]string{"status"},
		),
		classificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "pipeline",
				Name:        "classifications_total",
				Help:        "Gated classifications by final category.",
				ConstLabels: constLabels,
			},
			[]string{"category"},
		),
		lowConfidenceTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "pipeline",
			Name:        "low_confidence_total",
			Help:        "Predictions rejected by the confidence gate.",
			ConstLabels: constLabels,
		}),
		ocrErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "pipeline",
			Name:        "ocr_errors_total",
			Help:        "Text extraction failures.",
			ConstLabels: constLabels,
		}),
		stageFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "pipeline",
				Name:        "stage_failures_total",
				Help:        "Stage failures by stage and error kind.",
				ConstLabels: constLabels,
			},
			[]string{"stage", "kind"},
		),
		classifyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "pipeline",
			Name:        "classification_duration_seconds",
			Help:        "Time spent in inference and reconciliation.",
			Buckets:     []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			ConstLabels: constLabels,
		}),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Subsystem:   "resilience",
				Name:        "breaker_state",
				Help:        "Circuit breaker state per operation: 0 closed, 1 half-open, 2 open.",
				ConstLabels: constLabels,
			},
			[]string{"operation"},
		),
		qualityAccuracy:  qualityGauge("accuracy", "Model accuracy against ledger ground truth.", constLabels),
		qualityPrecision: qualityGauge("precision_macro", "Macro-averaged precision.", constLabels),
		qualityRecall:    qualityGauge("recall_macro", "Macro-averaged recall.", constLabels),
		qualityF1:        qualityGauge("f1_macro", "Macro-averaged F1.", constLabels),
		qualitySamples:   qualityGauge("samples", "Labeled samples used by the last quality computation.", constLabels),
	}

	registerer.MustRegister(
		m.documentsTotal,
		m.classificationsTotal,
		m.lowConfidenceTotal,
		m.ocrErrorsTotal,
		m.stageFailuresTotal,
		m.classifyDuration,
		m.breakerState,
		m.qualityAccuracy,
		m.qualityPrecision,
		m.qualityRecall,
		m.qualityF1,
		m.qualitySamples,
	)
	return m
}

func qualityGauge(name, help string, constLabels prometheus.Labels) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Subsystem:   "quality",
		Name:        name,
		Help:        help,
		ConstLabels: constLabels,
	})
}

func (m *PipelineMetrics) ObserveClassification(category string, rejected bool, latencySeconds float64) {
	if category == "" {
		category = domain.DefaultUnknownCategory
	}
	m.classificationsTotal.WithLabelValues(category).Inc()
	if rejected {
		m.lowConfidenceTotal.Inc()
	}
	if latencySeconds >= 0 {
		m.classifyDuration.Observe(latencySeconds)
	}
}

func (m *PipelineMetrics) ObserveOCRError() {
	m.ocrErrorsTotal.Inc()
}

func (m *PipelineMetrics) ObserveStageFailure(stage domain.Stage, kind domain.ErrorKind) {
	m.stageFailuresTotal.WithLabelValues(string(stage), string(kind)).Inc()
}

func (m *PipelineMetrics) ObserveDocument(status domain.ProcessStatus) {
	m.documentsTotal.WithLabelValues(string(status)).Inc()
}

func (m *PipelineMetrics) SetQuality(report domain.QualityReport) {
	m.qualityAccuracy.Set(report.Accuracy)
	m.qualityPrecision.Set(report.Precision)
	m.qualityRecall.Set(report.Recall)
	m.qualityF1.Set(report.F1)
	m.qualitySamples.Set(float64(report.Samples))
}

// ObserveBreakerState matches resilience.StateObserver.
func (m *PipelineMetrics) ObserveBreakerState(operation string, state gobreaker.State) {
	value := 0.0
	switch state {
	case gobreaker.StateHalfOpen:
		value = 1
	case gobreaker.StateOpen:
		value = 2
	}
	m.breakerState.WithLabelValues(operation).Set(value)
}
