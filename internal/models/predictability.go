package models

import (
	"time"
)

// Prediction is the directional forecast attached to a predictability score.
type Prediction struct {
	Direction     Direction
	MagnitudeLow  float64
	MagnitudeHigh float64
	TimingDays    int
	WinRate       float64
}

// PredictabilityRecord is the composite predictability score for a stock,
// computed at most once per calendar day. Exactly one record per stock is
// current at a time; older records are superseded, never deleted.
type PredictabilityRecord struct {
	ID      int64
	StockID int64

	InformationScore int
	PatternScore     int
	TimingScore      int
	DirectionScore   int
	OverallScore     int

	Prediction Prediction

	SampleSize int
	Confidence float64

	ScoreDate    time.Time
	IsCurrent    bool
	CalculatedAt time.Time
}
