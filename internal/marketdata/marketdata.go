// Package marketdata pulls prices and headlines from external sources.
// The analytical packages never fetch anything themselves; everything
// they read arrives through these interfaces and the store.
package marketdata

import (
	"context"
	"time"

	"stock-predictor/internal/models"
)

// PriceSource provides daily OHLCV history for a stock.
type PriceSource interface {
	FetchDaily(ctx context.Context, stock *models.Stock, from, to time.Time) ([]models.PriceBar, error)
}

// NewsSource provides headlines about a stock published since a given time.
type NewsSource interface {
	FetchHeadlines(ctx context.Context, stock *models.Stock, since time.Time) ([]models.NewsEvent, error)
}

// Feed describes one scraped headline source. The URL may contain
// {ticker} and {company} placeholders expanded per stock. Quality weights
// the source's events during analysis.
type Feed struct {
	Name    string
	URL     string
	Quality float64
}
