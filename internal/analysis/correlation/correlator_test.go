package correlation

import (
	"math"
	"testing"
	"time"

	"stock-predictor/internal/models"
)

const tolerance = 1e-9

func date(dayOfMonth int) time.Time {
	return time.Date(2024, time.March, dayOfMonth, 0, 0, 0, 0, time.UTC)
}

func event(dayOfMonth int, category models.EventCategory, sentiment float64) models.NewsEvent {
	return models.NewsEvent{
		Headline:       "event",
		EventDate:      date(dayOfMonth),
		Category:       category,
		SentimentScore: sentiment,
	}
}

func bar(dayOfMonth int, close float64) models.PriceBar {
	return models.PriceBar{
		Date:  date(dayOfMonth),
		Open:  close,
		High:  close,
		Low:   close,
		Close: close,
	}
}

func TestFindCorrelationsEmptyInputs(t *testing.T) {
	a := New()

	tests := []struct {
		name   string
		events []models.NewsEvent
		prices []models.PriceBar
	}{
		{"no events", nil, []models.PriceBar{bar(1, 100)}},
		{"no prices", []models.NewsEvent{event(1, models.CategoryEarnings, 0.5)}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.FindCorrelations(tt.events, tt.prices, "")

			if rec.SampleSize != 0 {
				t.Errorf("sample size = %d, want 0", rec.SampleSize)
			}
			if rec.Confidence != 0 {
				t.Errorf("confidence = %v, want 0", rec.Confidence)
			}
			if rec.WinRate != 0 {
				t.Errorf("win rate = %v, want 0", rec.WinRate)
			}
			if rec.DaysToMove != defaultDaysToMove {
				t.Errorf("days to move = %d, want %d", rec.DaysToMove, defaultDaysToMove)
			}
			if rec.Direction != models.DirectionFlat {
				t.Errorf("direction = %s, want FLAT", rec.Direction)
			}
		})
	}
}

func TestFindCorrelationsWinRate(t *testing.T) {
	a := New()

	// Four events spaced so each only ever sees its own bar: four same-day
	// samples, all 0% moves. Three neutral sentiments match FLAT, one
	// bullish sentiment does not.
	events := []models.NewsEvent{
		event(1, models.CategoryEarnings, 0.0),
		event(7, models.CategoryEarnings, 0.1),
		event(13, models.CategoryEarnings, -0.2),
		event(19, models.CategoryEarnings, 0.8),
	}
	prices := []models.PriceBar{
		bar(1, 100), bar(7, 101), bar(13, 102), bar(19, 103),
	}

	rec := a.FindCorrelations(events, prices, "")

	if rec.SampleSize != 4 {
		t.Fatalf("sample size = %d, want 4", rec.SampleSize)
	}
	if rec.WinRate != 0.75 {
		t.Errorf("win rate = %v, want exactly 0.75", rec.WinRate)
	}
	if math.Abs(rec.Confidence-0.2) > tolerance {
		t.Errorf("confidence = %v, want 0.2", rec.Confidence)
	}
	if rec.SameDay.SampleSize != 4 || rec.SameDay.WinRate != 0.75 {
		t.Errorf("same-day stats = %+v, want 4 samples at 0.75", rec.SameDay)
	}
	if rec.NextDay.SampleSize != 0 || rec.Lagged.SampleSize != 0 {
		t.Errorf("next-day/lagged samples = %d/%d, want 0/0",
			rec.NextDay.SampleSize, rec.Lagged.SampleSize)
	}
	if rec.DaysToMove != 0 || !rec.IsImmediate {
		t.Errorf("days to move = %d immediate=%v, want 0/true", rec.DaysToMove, rec.IsImmediate)
	}
}

func TestFindCorrelationsWindows(t *testing.T) {
	a := New()

	// One bullish event with bars on its own day, the next day, and two
	// days out. Each window gets exactly one sample.
	events := []models.NewsEvent{event(1, models.CategoryEarnings, 0.5)}
	prices := []models.PriceBar{bar(1, 100), bar(2, 102), bar(3, 98)}

	rec := a.FindCorrelations(events, prices, "")

	if rec.SameDay.SampleSize != 1 {
		t.Errorf("same-day samples = %d, want 1", rec.SameDay.SampleSize)
	}
	if math.Abs(rec.SameDay.AvgChangePct) > tolerance {
		t.Errorf("same-day avg change = %v, want 0", rec.SameDay.AvgChangePct)
	}
	if rec.NextDay.SampleSize != 1 {
		t.Errorf("next-day samples = %d, want 1", rec.NextDay.SampleSize)
	}
	if math.Abs(rec.NextDay.AvgChangePct-2.0) > tolerance {
		t.Errorf("next-day avg change = %v, want 2.0", rec.NextDay.AvgChangePct)
	}
	if rec.Lagged.SampleSize != 1 {
		t.Errorf("lagged samples = %d, want 1", rec.Lagged.SampleSize)
	}
	if math.Abs(rec.Lagged.AvgChangePct-(-2.0)) > tolerance {
		t.Errorf("lagged avg change = %v, want -2.0", rec.Lagged.AvgChangePct)
	}

	// Single-sample windows keep their rate fields at zero.
	if rec.NextDay.WinRate != 0 || rec.NextDay.Coefficient != 0 || rec.NextDay.Consistency != 0 {
		t.Errorf("next-day rates = %+v, want zeros below two samples", rec.NextDay)
	}

	if rec.SampleSize != 3 {
		t.Errorf("aggregate samples = %d, want 3", rec.SampleSize)
	}
	if math.Abs(rec.WinRate-1.0/3.0) > tolerance {
		t.Errorf("aggregate win rate = %v, want 1/3", rec.WinRate)
	}
	if math.Abs(rec.AvgChangePct) > tolerance {
		t.Errorf("aggregate avg change = %v, want 0", rec.AvgChangePct)
	}
	if rec.DaysToMove != 1 || rec.IsImmediate {
		t.Errorf("days to move = %d immediate=%v, want 1/false", rec.DaysToMove, rec.IsImmediate)
	}
	if rec.Direction != models.DirectionFlat {
		t.Errorf("direction = %s, want FLAT when nothing dominates", rec.Direction)
	}
}

func TestFindCorrelationsCategoryFilter(t *testing.T) {
	a := New()

	events := []models.NewsEvent{
		event(1, models.CategoryEarnings, 0),
		event(7, models.CategoryEarnings, 0),
		event(13, models.CategoryDividend, 0),
		event(19, models.CategoryDividend, 0),
		event(25, models.CategoryDividend, 0),
	}
	prices := []models.PriceBar{
		bar(1, 100), bar(7, 100), bar(13, 100), bar(19, 100), bar(25, 100),
	}

	earnings := a.FindCorrelations(events, prices, models.CategoryEarnings)
	if earnings.SampleSize != 2 {
		t.Errorf("earnings sample size = %d, want 2", earnings.SampleSize)
	}
	if earnings.Category != models.CategoryEarnings {
		t.Errorf("category = %s, want earnings", earnings.Category)
	}

	pooled := a.FindCorrelations(events, prices, "")
	if pooled.SampleSize != 5 {
		t.Errorf("pooled sample size = %d, want 5", pooled.SampleSize)
	}
}

func TestFindCorrelationsForwardScan(t *testing.T) {
	a := New()

	t.Run("scan passes over missing bars", func(t *testing.T) {
		// Bars only on the event day and four days out: the lagged window
		// finds the day-4 bar, the next-day window finds nothing.
		events := []models.NewsEvent{event(1, models.CategoryEarnings, 0.5)}
		prices := []models.PriceBar{bar(1, 100), bar(5, 103)}

		rec := a.FindCorrelations(events, prices, "")

		if rec.NextDay.SampleSize != 0 {
			t.Errorf("next-day samples = %d, want 0", rec.NextDay.SampleSize)
		}
		if rec.Lagged.SampleSize != 1 {
			t.Fatalf("lagged samples = %d, want 1", rec.Lagged.SampleSize)
		}
		if math.Abs(rec.Lagged.AvgChangePct-3.0) > tolerance {
			t.Errorf("lagged avg change = %v, want 3.0", rec.Lagged.AvgChangePct)
		}
		// Offsets 0 and 4 give a truncated median of 2.
		if rec.DaysToMove != 2 {
			t.Errorf("days to move = %d, want 2", rec.DaysToMove)
		}
	})

	t.Run("window end is exclusive", func(t *testing.T) {
		// A bar five days out sits at hour offset 120, just past the
		// lagged window.
		events := []models.NewsEvent{event(1, models.CategoryEarnings, 0.5)}
		prices := []models.PriceBar{bar(1, 100), bar(6, 110)}

		rec := a.FindCorrelations(events, prices, "")

		if rec.Lagged.SampleSize != 0 {
			t.Errorf("lagged samples = %d, want 0", rec.Lagged.SampleSize)
		}
		if rec.SampleSize != 1 {
			t.Errorf("aggregate samples = %d, want 1 (same-day only)", rec.SampleSize)
		}
	})

	t.Run("event without a bar on its own day is skipped", func(t *testing.T) {
		events := []models.NewsEvent{event(1, models.CategoryEarnings, 0.5)}
		prices := []models.PriceBar{bar(2, 102), bar(3, 104)}

		rec := a.FindCorrelations(events, prices, "")

		if rec.SampleSize != 0 {
			t.Errorf("sample size = %d, want 0 without a base price", rec.SampleSize)
		}
	})
}

func TestByCategory(t *testing.T) {
	a := New()

	events := []models.NewsEvent{
		event(1, models.CategoryDividend, 0),
		event(7, models.CategoryEarnings, 0),
		event(13, "", 0), // not yet categorized
	}
	prices := []models.PriceBar{bar(1, 100), bar(7, 100), bar(13, 100)}

	records := a.ByCategory(events, prices)

	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Category != models.CategoryEarnings {
		t.Errorf("first record category = %s, want earnings", records[0].Category)
	}
	if records[1].Category != models.CategoryDividend {
		t.Errorf("second record category = %s, want dividend", records[1].Category)
	}
	for _, rec := range records {
		if rec.SampleSize != 1 {
			t.Errorf("%s sample size = %d, want 1", rec.Category, rec.SampleSize)
		}
	}
}

func TestConsistency(t *testing.T) {
	tests := []struct {
		name string
		wins []bool
		want float64
	}{
		{"empty", nil, 0},
		{"single outcome", []bool{true}, 0},
		{"two outcomes give one rolling rate", []bool{true, false}, 1},
		{"all wins", []bool{true, true, true, true, true, true}, 1},
		{
			name: "alternating outcomes",
			wins: []bool{true, false, true, false, true, false, true, false, true, false},
			// rolling rates oscillate 0.6/0.4 around 0.5
			want: 0.9,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := consistency(tt.wins); math.Abs(got-tt.want) > tolerance {
				t.Errorf("consistency(%v) = %v, want %v", tt.wins, got, tt.want)
			}
		})
	}
}
