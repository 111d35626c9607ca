package marketdata

import (
	"testing"
	"time"

	"stock-predictor/internal/models"
	"stock-predictor/pkg/utils"
)

func dayBar(year int, month time.Month, day int) models.PriceBar {
	return models.PriceBar{
		StockID: 7,
		Date:    time.Date(year, month, day, 0, 0, 0, 0, time.UTC),
		Open:    100, High: 105, Low: 99, Close: 104,
		Volume: 1000,
	}
}

func TestClosedBars(t *testing.T) {
	bars := []models.PriceBar{
		dayBar(2026, time.August, 20),
		dayBar(2026, time.August, 21),
	}

	t.Run("drops today's bar during the session", func(t *testing.T) {
		now := time.Date(2026, time.August, 21, 11, 0, 0, 0, utils.IndiaLocation)
		got := ClosedBars(bars, now)
		if len(got) != 1 {
			t.Fatalf("got %d bars, want 1", len(got))
		}
		if got[0].Date.Day() != 20 {
			t.Errorf("kept bar dated %v, want the 20th", got[0].Date)
		}
	})

	t.Run("keeps today's bar after the close", func(t *testing.T) {
		now := time.Date(2026, time.August, 21, 16, 0, 0, 0, utils.IndiaLocation)
		if got := ClosedBars(bars, now); len(got) != 2 {
			t.Errorf("got %d bars, want 2", len(got))
		}
	})

	t.Run("keeps all bars when the last day is already past", func(t *testing.T) {
		now := time.Date(2026, time.August, 24, 11, 0, 0, 0, utils.IndiaLocation)
		if got := ClosedBars(bars, now); len(got) != 2 {
			t.Errorf("got %d bars, want 2", len(got))
		}
	})

	t.Run("handles empty input", func(t *testing.T) {
		now := time.Date(2026, time.August, 21, 11, 0, 0, 0, utils.IndiaLocation)
		if got := ClosedBars(nil, now); len(got) != 0 {
			t.Errorf("got %d bars, want 0", len(got))
		}
	})
}
