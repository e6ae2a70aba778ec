package domain

import "time"

// DefaultUnknownCategory is the sentinel label for "no prediction".
const DefaultUnknownCategory = "unknown"

type Classification struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// NoPrediction is the canonical empty result.
func NoPrediction(unknown string) Classification {
	return Classification{Category: unknown, Confidence: 0}
}

// GatedClassification is the Confidence Gate output. Rejected is a designed outcome, not an error.
type GatedClassification struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Raw        string  `json:"raw_category"`
	Rejected   bool    `json:"low_confidence"`
}

// Reconciliation holds both classifier outputs and the derived proxy label.
type Reconciliation struct {
	Primary     *Classification `json:"primary,omitempty"`
	Secondary   *Classification `json:"secondary,omitempty"`
	GroundTruth *string         `json:"ground_truth,omitempty"`
}

// ClassificationRecord is one append-only ledger row. Nil pointers encode failed upstream stages.
type ClassificationRecord struct {
	ID                  string    `json:"id"`
	Filename            string    `json:"filename,omitempty"`
	Text                *string   `json:"text"`
	Category            *string   `json:"category"`
	CreatedAt           time.Time `json:"created_at"`
	Identity            string    `json:"identity"`
	PrimaryPrediction   *string   `json:"primary_prediction"`
	SecondaryPrediction *string   `json:"secondary_prediction"`
	GroundTruth         *string   `json:"ground_truth"`
	PrimaryConfidence   *float64  `json:"primary_confidence"`
}

type LedgerFilter struct {
	Identity string
	Category string
	Since    *time.Time
	Until    *time.Time
	Limit    int
	Offset   int
}

// LabeledPair couples the derived ground truth with the stored primary prediction.
type LabeledPair struct {
	GroundTruth       string `json:"ground_truth"`
	PrimaryPrediction string `json:"primary_prediction"`
}

// LabeledSample carries the text needed to re-run inference for quality recomputation.
type LabeledSample struct {
	Text              string
	GroundTruth       string
	PrimaryPrediction string
}

func StringPtr(v string) *string {
	return &v
}

func Float64Ptr(v float64) *float64 {
	return &v
}
