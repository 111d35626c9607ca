package models

import (
	"time"
)

// RunStatus is the overall outcome of one analysis run.
type RunStatus string

const (
	RunSuccess RunStatus = "SUCCESS"
	RunPartial RunStatus = "PARTIAL"
	RunFailed  RunStatus = "FAILED"
)

// RunStage identifies a stage of the analysis pipeline.
type RunStage string

const (
	StageEvents         RunStage = "CATEGORIZING_SENTIMENT"
	StageCorrelations   RunStage = "CORRELATING"
	StagePredictability RunStage = "SCORING"
)

// StageResult records the outcome of a single pipeline stage.
type StageResult struct {
	Stage  RunStage
	Status RunStatus
	Error  string
}

// AnalysisRunResult summarizes one orchestration pass for a stock.
// It is returned to the caller and not persisted.
type AnalysisRunResult struct {
	StockID        int64
	Ticker         string
	Status         RunStatus
	Stages         []StageResult
	EventsAnalyzed int
	Correlations   int
	Predictability *PredictabilityRecord
	Error          string
	StartedAt      time.Time
	CompletedAt    time.Time
}

// Duration returns the elapsed time of the run.
func (r *AnalysisRunResult) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// StageStatus returns the recorded status for a stage, or RunSuccess if the
// stage was skipped (a skipped stage never degrades the run).
func (r *AnalysisRunResult) StageStatus(stage RunStage) RunStatus {
	for _, s := range r.Stages {
		if s.Stage == stage {
			return s.Status
		}
	}
	return RunSuccess
}
