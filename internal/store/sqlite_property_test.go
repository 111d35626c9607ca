package store

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"stock-predictor/internal/models"
)

// Property: for any valid daily price history, saving bars and reading them
// back over the covering date range produces equivalent bars, and the
// freshness marker lands on the newest bar's date.
func TestProperty_PriceHistoryRoundTrip(t *testing.T) {
	store := newTestStore(t)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	countGen := gen.IntRange(1, 30)
	priceGen := gen.Float64Range(10.0, 5000.0)
	volumeGen := gen.Int64Range(0, 10_000_000)

	// Each iteration gets its own stock so histories never collide.
	nextTicker := 0
	newStockID := func(ctx context.Context) (int64, error) {
		nextTicker++
		stock := &models.Stock{
			Ticker:      fmt.Sprintf("PROP%04d", nextTicker),
			CompanyName: "Property Test Ltd",
			Market:      models.MarketNSE,
			IsActive:    true,
		}
		if err := store.SaveStock(ctx, stock); err != nil {
			return 0, err
		}
		return stock.ID, nil
	}

	properties.Property("price history round-trip preserves bars", prop.ForAll(
		func(count int, basePrice float64, baseVolume int64) bool {
			ctx := context.Background()
			stockID, err := newStockID(ctx)
			if err != nil {
				t.Logf("Failed to save stock: %v", err)
				return false
			}

			bars := generateTestBars(stockID, count, basePrice, baseVolume)
			if err := store.SavePrices(ctx, bars); err != nil {
				t.Logf("Failed to save bars: %v", err)
				return false
			}

			retrieved, err := store.GetPrices(ctx, stockID, bars[0].Date, bars[len(bars)-1].Date)
			if err != nil {
				t.Logf("Failed to get bars: %v", err)
				return false
			}
			if len(retrieved) != len(bars) {
				t.Logf("Count mismatch: expected %d, got %d", len(bars), len(retrieved))
				return false
			}
			for i, orig := range bars {
				if !barsEqual(orig, retrieved[i]) {
					t.Logf("Bar mismatch at index %d: original=%+v, retrieved=%+v", i, orig, retrieved[i])
					return false
				}
			}

			latest, err := store.GetPriceFreshness(ctx, stockID)
			if err != nil {
				t.Logf("Failed to get freshness: %v", err)
				return false
			}
			return latest.Equal(bars[len(bars)-1].Date)
		},
		countGen,
		priceGen,
		volumeGen,
	))

	properties.TestingRun(t)
}

// generateTestBars creates daily bars with valid OHLC relationships.
func generateTestBars(stockID int64, count int, basePrice float64, baseVolume int64) []models.PriceBar {
	bars := make([]models.PriceBar, count)
	baseDate := time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)

	for i := 0; i < count; i++ {
		variation := float64(i%10) * 0.01 * basePrice
		open := basePrice + variation
		close := basePrice + variation*0.5
		high := math.Max(open, close) * 1.01
		low := math.Min(open, close) * 0.99

		bars[i] = models.PriceBar{
			StockID: stockID,
			Date:    baseDate.AddDate(0, 0, i),
			Open:    open,
			High:    high,
			Low:     low,
			Close:   close,
			Volume:  baseVolume + int64(i*1000),
		}
	}

	return bars
}

// barsEqual compares two price bars with floating point tolerance.
func barsEqual(a, b models.PriceBar) bool {
	const tolerance = 1e-9

	if a.StockID != b.StockID {
		return false
	}
	if !a.Date.Equal(b.Date) {
		return false
	}
	if !floatEqual(a.Open, b.Open, tolerance) {
		return false
	}
	if !floatEqual(a.High, b.High, tolerance) {
		return false
	}
	if !floatEqual(a.Low, b.Low, tolerance) {
		return false
	}
	if !floatEqual(a.Close, b.Close, tolerance) {
		return false
	}
	return a.Volume == b.Volume
}

// floatEqual compares two floats with a tolerance.
func floatEqual(a, b, tolerance float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}
