package domain

import "time"

// PipelineState is a node of the per-submission state machine.
type PipelineState string

const (
	StateReceived   PipelineState = "received"
	StateExtracted  PipelineState = "extracted"
	StateNormalized PipelineState = "normalized"
	StateClassified PipelineState = "classified"
	StateGated      PipelineState = "gated"
	StatePersisted  PipelineState = "persisted"
	StateDone       PipelineState = "done"
	StateFailed     PipelineState = "failed"
)

type Stage string

const (
	StageOCR                Stage = "ocr"
	StageNormalize          Stage = "normalize"
	StageClassify           Stage = "classify"
	StageSecondary          Stage = "secondary_classifier"
	StageGate               Stage = "gate"
	StageIncomingArtifact   Stage = "incoming_artifact"
	StageClassifiedArtifact Stage = "classified_artifact"
	StageLedger             Stage = "ledger"
	StageEvents             Stage = "events"
)

type StageOutcome string

const (
	OutcomeOK      StageOutcome = "ok"
	OutcomeFailed  StageOutcome = "failed"
	OutcomeSkipped StageOutcome = "skipped"
)

// StageResult is the explicit success/failure variant recorded for each stage.
type StageResult struct {
	Stage    Stage         `json:"stage"`
	Outcome  StageOutcome  `json:"outcome"`
	Kind     ErrorKind     `json:"error_kind,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"-"`
	Millis   float64       `json:"duration_ms"`
}

func StageOK(stage Stage, d time.Duration) StageResult {
	return StageResult{Stage: stage, Outcome: OutcomeOK, Duration: d, Millis: millis(d)}
}

func StageSkip(stage Stage, reason string) StageResult {
	return StageResult{Stage: stage, Outcome: OutcomeSkipped, Error: reason}
}

func StageFail(stage Stage, d time.Duration, err error) StageResult {
	res := StageResult{Stage: stage, Outcome: OutcomeFailed, Kind: KindOf(err), Duration: d, Millis: millis(d)}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

func (r StageResult) Failed() bool {
	return r.Outcome == OutcomeFailed
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}

type ProcessStatus string

const (
	StatusProcessed           ProcessStatus = "processed"
	StatusProcessedWithErrors ProcessStatus = "processed_with_errors"
	StatusFailed              ProcessStatus = "failed"
)

// ProcessResult is what the orchestrator returns for every submission that entered the pipeline.
type ProcessResult struct {
	Status          ProcessStatus       `json:"status"`
	Summary         string              `json:"summary"`
	State           PipelineState       `json:"state"`
	FailedStage     Stage               `json:"failed_stage,omitempty"`
	RecordID        string              `json:"record_id,omitempty"`
	Filename        string              `json:"filename"`
	Identity        string              `json:"identity"`
	ExtractedText   string              `json:"extracted_text"`
	NormalizedText  string              `json:"-"`
	Gated           GatedClassification `json:"gated"`
	Reconciliation  Reconciliation      `json:"reconciliation"`
	IncomingRef     ArtifactRef         `json:"incoming_artifact"`
	ClassifiedRef   ArtifactRef         `json:"classified_artifact"`
	Stages          []StageResult       `json:"stages"`
	ProcessedAt     time.Time           `json:"processed_at"`
	ClassifyLatency time.Duration       `json:"-"`
}

// Failures lists the stages that failed, in execution order.
func (r *ProcessResult) Failures() []StageResult {
	out := make([]StageResult, 0, len(r.Stages))
	for _, s := range r.Stages {
		if s.Failed() {
			out = append(out, s)
		}
	}
	return out
}

func (r *ProcessResult) StageFailed(stage Stage) bool {
	for _, s := range r.Stages {
		if s.Stage == stage && s.Failed() {
			return true
		}
	}
	return false
}

// ClassifiedEvent is published after a record reaches the ledger.
type ClassifiedEvent struct {
	RecordID    string    `json:"record_id"`
	Identity    string    `json:"identity"`
	Filename    string    `json:"filename"`
	Category    string    `json:"category"`
	Confidence  float64   `json:"confidence"`
	GroundTruth *string   `json:"ground_truth,omitempty"`
	Status      string    `json:"status"`
	OccurredAt  time.Time `json:"occurred_at"`
}
