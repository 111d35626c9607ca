// Package correlation aligns news events with subsequent price moves and
// derives per-window statistics for each event category.
package correlation

import (
	"sort"
	"time"

	"stock-predictor/internal/analysis"
	"stock-predictor/internal/models"
)

// Analysis thresholds.
const (
	// directionThreshold is the percent move beyond which a window price
	// reads UP or DOWN rather than FLAT.
	directionThreshold = 0.5
	// sentimentThreshold is the sentiment score beyond which an event
	// implies an expected direction.
	sentimentThreshold = 0.3
	// fullConfidenceSamples is the total sample count at which aggregate
	// confidence saturates at 1.0.
	fullConfidenceSamples = 20
	// maxScanDays bounds the forward scan for a window price.
	maxScanDays = 10
	// consistencyWindow is the sliding-window size for rolling win rates.
	consistencyWindow = 5
	// defaultDaysToMove is reported when no sample exists to measure.
	defaultDaysToMove = 1
)

// window is an hour-offset range from the event timestamp, half-open on
// the right.
type window struct {
	startHours int
	endHours   int
}

var (
	sameDayWindow = window{startHours: 0, endHours: 8}
	nextDayWindow = window{startHours: 8, endHours: 32}
	laggedWindow  = window{startHours: 32, endHours: 120}
)

// contains reports whether a bar dayOffset days after the event falls
// inside the window. Daily bars sit on midnight, so offsets enter the
// range in whole 24-hour steps.
func (w window) contains(dayOffset int) bool {
	hours := dayOffset * 24
	return hours >= w.startHours && hours < w.endHours
}

// sample is one event aligned with one window price.
type sample struct {
	dayOffset int
	changePct float64
	direction models.Direction
	win       bool
}

// Analyzer computes event-price correlation statistics. It is stateless
// apart from its configuration and safe for concurrent use.
type Analyzer struct {
	minSamples int
}

// New creates an analyzer that reaches full confidence at the default
// sample count.
func New() *Analyzer {
	return &Analyzer{minSamples: fullConfidenceSamples}
}

// NewWithMinSamples creates an analyzer whose aggregate confidence
// saturates at n samples. Values below 1 fall back to the default.
func NewWithMinSamples(n int) *Analyzer {
	if n < 1 {
		n = fullConfidenceSamples
	}
	return &Analyzer{minSamples: n}
}

// FindCorrelations computes per-window and aggregate statistics for the
// given events against the price history. A non-empty category restricts
// the event set; an empty category pools all events. Missing events or
// prices yield a zero-sample, zero-confidence record, not an error.
// StockID and CalculatedAt are left for the caller to fill.
func (a *Analyzer) FindCorrelations(events []models.NewsEvent, prices []models.PriceBar, category models.EventCategory) models.CorrelationRecord {
	record := models.CorrelationRecord{
		Category:   category,
		Direction:  models.DirectionFlat,
		DaysToMove: defaultDaysToMove,
	}

	filtered := events
	if category != "" {
		filtered = make([]models.NewsEvent, 0, len(events))
		for _, e := range events {
			if e.Category == category {
				filtered = append(filtered, e)
			}
		}
	}
	if len(filtered) == 0 || len(prices) == 0 {
		return record
	}

	ordered := make([]models.NewsEvent, len(filtered))
	copy(ordered, filtered)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].EventDate.Before(ordered[j].EventDate)
	})

	priceMap := make(map[time.Time]models.PriceBar, len(prices))
	for _, p := range prices {
		priceMap[models.Day(p.Date)] = p
	}

	sameDay := a.collectSamples(ordered, priceMap, sameDayWindow)
	nextDay := a.collectSamples(ordered, priceMap, nextDayWindow)
	lagged := a.collectSamples(ordered, priceMap, laggedWindow)

	record.SameDay = windowStats(sameDay)
	record.NextDay = windowStats(nextDay)
	record.Lagged = windowStats(lagged)

	all := make([]sample, 0, len(sameDay)+len(nextDay)+len(lagged))
	all = append(all, sameDay...)
	all = append(all, nextDay...)
	all = append(all, lagged...)

	record.SampleSize = len(all)
	if len(all) == 0 {
		return record
	}

	wins := 0
	pcts := make([]float64, len(all))
	offsets := make([]float64, len(all))
	for i, s := range all {
		if s.win {
			wins++
		}
		pcts[i] = s.changePct
		offsets[i] = float64(s.dayOffset)
	}

	record.AvgChangePct = analysis.Mean(pcts)
	if len(all) >= 2 {
		record.WinRate = float64(wins) / float64(len(all))
	}

	confidence := float64(len(all)) / float64(a.minSamples)
	if confidence > 1 {
		confidence = 1
	}
	record.Confidence = confidence

	record.Direction = dominantDirection(all)
	record.DaysToMove = int(analysis.Median(offsets))
	record.IsImmediate = record.DaysToMove == 0
	return record
}

// ByCategory computes one correlation record per event category present
// in the event set, in fixed category order. Events without a category
// assigned yet are skipped.
func (a *Analyzer) ByCategory(events []models.NewsEvent, prices []models.PriceBar) []models.CorrelationRecord {
	present := make(map[models.EventCategory]bool, len(events))
	for _, e := range events {
		if e.Category != "" {
			present[e.Category] = true
		}
	}

	var records []models.CorrelationRecord
	for _, category := range models.AllCategories() {
		if !present[category] {
			continue
		}
		records = append(records, a.FindCorrelations(events, prices, category))
	}
	return records
}

// collectSamples aligns each event with the first usable bar inside the
// window, scanning forward up to maxScanDays from the event date. Events
// without a priced bar on their own date contribute nothing.
func (a *Analyzer) collectSamples(events []models.NewsEvent, priceMap map[time.Time]models.PriceBar, w window) []sample {
	var samples []sample
	for _, event := range events {
		day0 := models.Day(event.EventDate)
		base, ok := priceMap[day0]
		if !ok || base.Close <= 0 {
			continue
		}

		var bar models.PriceBar
		offset := -1
		for d := 0; d < maxScanDays; d++ {
			if !w.contains(d) {
				continue
			}
			candidate, found := priceMap[day0.AddDate(0, 0, d)]
			if !found || candidate.Close <= 0 {
				continue
			}
			bar = candidate
			offset = d
			break
		}
		if offset < 0 {
			continue
		}

		changePct := (bar.Close - base.Close) / base.Close * 100
		direction := priceDirection(changePct)

		samples = append(samples, sample{
			dayOffset: offset,
			changePct: changePct,
			direction: direction,
			win:       impliedDirection(event.SentimentScore) == direction,
		})
	}
	return samples
}

// windowStats reduces one window's samples to summary statistics. Rate
// and coefficient fields stay zero below two samples.
func windowStats(samples []sample) models.WindowStats {
	stats := models.WindowStats{SampleSize: len(samples)}
	if len(samples) == 0 {
		return stats
	}

	wins := 0
	winFlags := make([]bool, len(samples))
	pcts := make([]float64, len(samples))
	dirs := make([]float64, len(samples))
	for i, s := range samples {
		if s.win {
			wins++
			winFlags[i] = true
		}
		pcts[i] = s.changePct
		dirs[i] = directionValue(s.direction)
	}

	stats.AvgChangePct = analysis.Mean(pcts)
	if len(samples) >= 2 {
		stats.WinRate = float64(wins) / float64(len(samples))
		stats.Coefficient = analysis.Pearson(dirs, pcts)
		stats.Consistency = consistency(winFlags)
	}
	return stats
}

// consistency measures win-rate stability as 1 minus the population
// standard deviation of rolling win rates, floored at 0. Fewer than two
// outcomes give no stability signal.
func consistency(wins []bool) float64 {
	n := len(wins)
	if n < 2 {
		return 0
	}

	size := consistencyWindow
	if n < size {
		size = n
	}

	winSum := 0
	for i := 0; i < size; i++ {
		if wins[i] {
			winSum++
		}
	}
	rolling := make([]float64, 0, n-size+1)
	rolling = append(rolling, float64(winSum)/float64(size))
	for i := size; i < n; i++ {
		if wins[i] {
			winSum++
		}
		if wins[i-size] {
			winSum--
		}
		rolling = append(rolling, float64(winSum)/float64(size))
	}

	c := 1 - analysis.PopStdDev(rolling)
	if c < 0 {
		return 0
	}
	return c
}

// dominantDirection returns the most frequent realized direction across
// the samples, FLAT when nothing dominates.
func dominantDirection(samples []sample) models.Direction {
	var up, down, flat int
	for _, s := range samples {
		switch s.direction {
		case models.DirectionUp:
			up++
		case models.DirectionDown:
			down++
		default:
			flat++
		}
	}
	switch {
	case up > down && up > flat:
		return models.DirectionUp
	case down > up && down > flat:
		return models.DirectionDown
	default:
		return models.DirectionFlat
	}
}

// priceDirection maps a percent change onto a coarse direction.
func priceDirection(changePct float64) models.Direction {
	switch {
	case changePct > directionThreshold:
		return models.DirectionUp
	case changePct < -directionThreshold:
		return models.DirectionDown
	default:
		return models.DirectionFlat
	}
}

// impliedDirection maps an event's sentiment score onto the direction it
// suggests the price should take.
func impliedDirection(score float64) models.Direction {
	switch {
	case score > sentimentThreshold:
		return models.DirectionUp
	case score < -sentimentThreshold:
		return models.DirectionDown
	default:
		return models.DirectionFlat
	}
}
