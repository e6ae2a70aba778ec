package domain

import "time"

type CategoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

type IdentityCount struct {
	Identity string `json:"identity"`
	Count    int64  `json:"count"`
}

// LedgerSummary aggregates the ledger for the global metrics view.
type LedgerSummary struct {
	TotalRecords      int64                  `json:"total_records"`
	PerCategory       []CategoryCount        `json:"per_category"`
	PerIdentity       []IdentityCount        `json:"per_identity"`
	AverageTextLength float64                `json:"average_text_length"`
	Recent            []ClassificationRecord `json:"recent"`
}

type ClassScore struct {
	Label     string  `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// QualityReport holds macro-averaged metrics; Labels index both axes of Confusion (rows = truth).
type QualityReport struct {
	Samples   int          `json:"samples"`
	Accuracy  float64      `json:"accuracy"`
	Precision float64      `json:"precision"`
	Recall    float64      `json:"recall"`
	F1        float64      `json:"f1"`
	Labels    []string     `json:"labels"`
	Confusion [][]int      `json:"confusion_matrix"`
	PerClass  []ClassScore `json:"per_class"`
}

type GlobalMetrics struct {
	LedgerSummary
	Quality    QualityReport `json:"quality"`
	ComputedAt time.Time     `json:"computed_at"`
	Stale      bool          `json:"stale"`
}
