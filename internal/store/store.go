// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"stock-predictor/internal/models"
)

// StockStore manages the stock master records.
type StockStore interface {
	SaveStock(ctx context.Context, stock *models.Stock) error
	GetStock(ctx context.Context, id int64) (*models.Stock, error)
	GetStockByTicker(ctx context.Context, ticker string) (*models.Stock, error)
	ListStocks(ctx context.Context, filter StockFilter) ([]models.Stock, error)
	UpdateAnalysisStatus(ctx context.Context, stockID int64, status models.AnalysisStatus) error
	MarkPricesSynced(ctx context.Context, stockID int64, at time.Time) error
	MarkNewsSynced(ctx context.Context, stockID int64, at time.Time) error
}

// EventStore manages news events and their analysis results.
type EventStore interface {
	SaveEvents(ctx context.Context, events []models.NewsEvent) error
	GetEvents(ctx context.Context, filter EventFilter) ([]models.NewsEvent, error)
	UpdateEventAnalysis(ctx context.Context, events []models.NewsEvent) error
	HasContentHash(ctx context.Context, stockID int64, hash string) (bool, error)
}

// PriceStore manages daily OHLCV bars.
type PriceStore interface {
	SavePrices(ctx context.Context, bars []models.PriceBar) error
	GetPrices(ctx context.Context, stockID int64, from, to time.Time) ([]models.PriceBar, error)
	GetPriceFreshness(ctx context.Context, stockID int64) (time.Time, error)
}

// CorrelationStore manages the per-category correlation records of a stock.
type CorrelationStore interface {
	ReplaceCorrelations(ctx context.Context, stockID int64, records []models.CorrelationRecord) error
	GetCorrelations(ctx context.Context, stockID int64) ([]models.CorrelationRecord, error)
}

// PredictabilityStore manages predictability score history.
type PredictabilityStore interface {
	UpsertPredictability(ctx context.Context, record *models.PredictabilityRecord) error
	GetCurrentPredictability(ctx context.Context, stockID int64) (*models.PredictabilityRecord, error)
	GetPredictabilityHistory(ctx context.Context, stockID int64, limit int) ([]models.PredictabilityRecord, error)
	ListCurrentPredictability(ctx context.Context, limit int) ([]models.PredictabilityRecord, error)
}

// DataStore is the full persistence surface of the application.
type DataStore interface {
	StockStore
	EventStore
	PriceStore
	CorrelationStore
	PredictabilityStore

	// Sync bookkeeping for scheduled jobs
	GetLastSync(dataType string) time.Time
	SetLastSync(dataType string, t time.Time) error

	// Lifecycle
	Close() error
}

// StockFilter represents filters for listing stocks.
type StockFilter struct {
	Market     models.Market
	Sector     string
	Status     models.AnalysisStatus
	ActiveOnly bool
	Limit      int
}

// EventFilter represents filters for querying news events.
type EventFilter struct {
	StockID   int64
	Category  models.EventCategory
	StartDate time.Time
	EndDate   time.Time
	// Unanalyzed restricts to events without a sentiment category yet.
	Unanalyzed bool
	// IncludeDuplicates keeps events flagged as duplicates in the result.
	IncludeDuplicates bool
	Limit             int
}
