// Package models provides domain models for the stock predictability application.
package models

import (
	"time"
)

// Market represents a stock market / exchange.
type Market string

const (
	MarketNSE  Market = "NSE"
	MarketBSE  Market = "BSE"
	MarketNYSE Market = "NYSE"
)

// AnalysisStatus represents the analysis lifecycle state of a stock.
type AnalysisStatus string

const (
	AnalysisPending    AnalysisStatus = "PENDING"
	AnalysisProcessing AnalysisStatus = "PROCESSING"
	AnalysisCompleted  AnalysisStatus = "COMPLETED"
	AnalysisFailed     AnalysisStatus = "FAILED"
)

// Direction represents a price or prediction direction.
type Direction string

const (
	DirectionUp       Direction = "UP"
	DirectionDown     Direction = "DOWN"
	DirectionFlat     Direction = "FLAT"
	DirectionSideways Direction = "SIDEWAYS"
)

// Stock is the master record for a tracked security.
type Stock struct {
	ID          int64
	Ticker      string
	CompanyName string
	Market      Market
	Sector      string
	Industry    string
	IsActive    bool

	AnalysisStatus     AnalysisStatus
	LastPriceUpdatedAt time.Time
	LastNewsUpdatedAt  time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PriceBar represents one trading day's OHLCV for a stock, keyed by date.
type PriceBar struct {
	StockID int64
	Date    time.Time
	Open    float64
	High    float64
	Low     float64
	Close   float64
	Volume  int64
}

// Day truncates a timestamp to its calendar date in UTC.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}
