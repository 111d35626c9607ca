package models

import (
	"time"
)

// WindowStats holds the statistics for one event-to-price time window.
type WindowStats struct {
	SampleSize   int
	WinRate      float64
	AvgChangePct float64
	Coefficient  float64
	Consistency  float64
}

// CorrelationRecord holds event-price correlation statistics for one
// (stock, event category) pair. The whole set for a stock is recomputed
// and replaced on every correlation run.
type CorrelationRecord struct {
	ID       int64
	StockID  int64
	Category EventCategory

	SameDay WindowStats
	NextDay WindowStats
	Lagged  WindowStats

	// Aggregates across all windows.
	WinRate      float64
	SampleSize   int
	Confidence   float64
	AvgChangePct float64
	Direction    Direction
	DaysToMove   int
	IsImmediate  bool

	CalculatedAt time.Time
}
