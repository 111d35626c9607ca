// Package predict computes the composite predictability score and the
// directional prediction attached to it.
package predict

import (
	"math"
	"time"

	"stock-predictor/internal/analysis"
	"stock-predictor/internal/models"
)

// Weights blend the four component scores into the overall score.
type Weights struct {
	Information float64
	Pattern     float64
	Timing      float64
	Direction   float64
}

// DefaultWeights returns the standard component blend.
func DefaultWeights() Weights {
	return Weights{
		Information: 0.30,
		Pattern:     0.25,
		Timing:      0.25,
		Direction:   0.20,
	}
}

// Scoring constants.
const (
	// baseScore is the component value when no supporting data exists.
	baseScore = 10
	// fullInfoEventCount is the event count saturating the frequency term.
	fullInfoEventCount = 30
	// categorizationQuality is the fixed quality assumption feeding the
	// information score's 30-point quality term.
	categorizationQuality = 0.7
	// extremeSentiment marks a sentiment score as clearly directional.
	extremeSentiment = 0.6
	// recentSentimentDays bounds the recency window of the direction score.
	recentSentimentDays = 30
	// predictionSentimentDays bounds the recency window of the predicted
	// direction.
	predictionSentimentDays = 7
	// sentimentDirectionThreshold turns a mean sentiment into a direction.
	sentimentDirectionThreshold = 0.3
	// goodWinRate marks a correlation record as a reliable pattern.
	goodWinRate = 0.55
	// fullSampleMean is the mean sample size saturating the sample term.
	fullSampleMean = 50.0
	// fullConfidenceEvents and fullConfidenceRecords saturate the two
	// halves of the overall confidence.
	fullConfidenceEvents  = 30
	fullConfidenceRecords = 8
	// minRecencyFactor floors the staleness penalty on confidence.
	minRecencyFactor = 0.3
)

// Prediction fallbacks when no correlation record carries samples.
const (
	defaultMagnitudeLow  = 0.5
	defaultMagnitudeHigh = 1.5
	defaultTimingDays    = 1
	defaultWinRate       = 0.5
)

// Scorer computes predictability scores. It is stateless apart from its
// weights and safe for concurrent use.
type Scorer struct {
	weights Weights
}

// New creates a scorer with the default weights.
func New() *Scorer {
	return NewWithWeights(DefaultWeights())
}

// NewWithWeights creates a scorer with a custom component blend.
func NewWithWeights(weights Weights) *Scorer {
	return &Scorer{weights: weights}
}

// Score computes the predictability record for a stock from its events and
// correlation records, as of the given time. Empty inputs produce the
// documented base scores, never an error. ID, StockID, IsCurrent and
// CalculatedAt are left for the caller to fill.
func (s *Scorer) Score(events []models.NewsEvent, correlations []models.CorrelationRecord, asOf time.Time) models.PredictabilityRecord {
	info := int(s.scoreInformation(events, asOf))
	pattern := int(s.scorePattern(correlations))
	timing := int(s.scoreTiming(correlations))
	direction := int(s.scoreDirection(events, correlations, asOf))

	// Floor of the weighted blend over the integer components, so the
	// stored overall is always reproducible from the stored parts.
	overall := int(
		float64(info)*s.weights.Information +
			float64(pattern)*s.weights.Pattern +
			float64(timing)*s.weights.Timing +
			float64(direction)*s.weights.Direction,
	)
	if overall < 0 {
		overall = 0
	}
	if overall > 100 {
		overall = 100
	}

	return models.PredictabilityRecord{
		InformationScore: info,
		PatternScore:     pattern,
		TimingScore:      timing,
		DirectionScore:   direction,
		OverallScore:     overall,
		Prediction:       s.generatePrediction(events, correlations, asOf),
		SampleSize:       len(events),
		Confidence:       s.confidence(events, correlations, asOf),
		ScoreDate:        models.Day(asOf),
	}
}

// scoreInformation rates how much raw information backs a prediction:
// event frequency (40), categorization quality (30, fixed assumption),
// sentiment coverage (20) and recency (10).
func (s *Scorer) scoreInformation(events []models.NewsEvent, asOf time.Time) float64 {
	if len(events) == 0 {
		return baseScore
	}

	frequency := float64(len(events)) / fullInfoEventCount * 40
	if frequency > 40 {
		frequency = 40
	}

	quality := categorizationQuality * 30

	withSentiment := 0
	for _, e := range events {
		if e.HasSentiment() {
			withSentiment++
		}
	}
	coverage := float64(withSentiment) / float64(len(events)) * 20

	recency := 10 - float64(s.daysSinceLatest(events, asOf))/30
	if recency < 0 {
		recency = 0
	}

	return analysis.Clamp(frequency+quality+coverage+recency, 0, 100)
}

// scorePattern rates how reliable the historical correlation patterns
// are: mean win rate above coin-flip (50), sample depth (30) and the
// share of records beating the good-win-rate bar (20).
func (s *Scorer) scorePattern(correlations []models.CorrelationRecord) float64 {
	if len(correlations) == 0 {
		return baseScore
	}

	var winRateScore, sampleScore float64
	if sampled := usable(correlations); len(sampled) > 0 {
		rates := make([]float64, len(sampled))
		sizes := make([]float64, len(sampled))
		for i, c := range sampled {
			rates[i] = c.WinRate
			sizes[i] = float64(c.SampleSize)
		}
		winRateScore = analysis.Clamp((analysis.Mean(rates)-0.5)*100, 0, 50)
		sampleScore = analysis.Mean(sizes) / fullSampleMean * 30
		if sampleScore > 30 {
			sampleScore = 30
		}
	}

	good := 0
	for _, c := range correlations {
		if c.WinRate > goodWinRate {
			good++
		}
	}
	consistencyScore := float64(good) / float64(len(correlations)) * 20

	return analysis.Clamp(winRateScore+sampleScore+consistencyScore, 0, 100)
}

// scoreTiming rates how quickly patterns resolve: records that move the
// same day score highest, next-day records less, lagged ones least.
func (s *Scorer) scoreTiming(correlations []models.CorrelationRecord) float64 {
	if len(correlations) == 0 {
		return baseScore
	}

	var sameDay, nextDay, lagged int
	for _, c := range correlations {
		switch {
		case c.DaysToMove == 0:
			sameDay++
		case c.DaysToMove == 1:
			nextDay++
		default:
			lagged++
		}
	}

	total := float64(len(correlations))
	score := float64(sameDay)*3/total*50 +
		float64(nextDay)*2/total*30 +
		float64(lagged)*1/total*20

	return analysis.Clamp(score, 0, 100)
}

// scoreDirection rates how clear the directional signal is: the share of
// extreme sentiments (40), the strength of the last month's mean
// sentiment (30) and any directional bias across correlation records (30).
func (s *Scorer) scoreDirection(events []models.NewsEvent, correlations []models.CorrelationRecord, asOf time.Time) float64 {
	if len(events) == 0 {
		return baseScore
	}

	clarity := 10.0
	var scored []float64
	for _, e := range events {
		if e.HasSentiment() {
			scored = append(scored, e.SentimentScore)
		}
	}
	if len(scored) > 0 {
		extreme := 0
		for _, score := range scored {
			if math.Abs(score) > extremeSentiment {
				extreme++
			}
		}
		clarity = float64(extreme) / float64(len(scored)) * 40
	}

	var recent float64
	if recentScores := s.recentSentiments(events, asOf, recentSentimentDays); len(recentScores) > 0 {
		recent = math.Abs(analysis.Mean(recentScores)) * 30
	}

	var bias float64
	if len(correlations) > 0 {
		var up, down int
		for _, c := range correlations {
			switch c.Direction {
			case models.DirectionUp:
				up++
			case models.DirectionDown:
				down++
			}
		}
		maxBias := float64(up) / float64(len(correlations))
		if d := float64(down) / float64(len(correlations)); d > maxBias {
			maxBias = d
		}
		if maxBias > 0.5 {
			bias = (maxBias - 0.5) * 60
		}
	}

	return analysis.Clamp(clarity+recent+bias, 0, 100)
}

// generatePrediction derives the forecast: direction from the last week's
// mean sentiment, magnitude and timing from sampled correlation records.
func (s *Scorer) generatePrediction(events []models.NewsEvent, correlations []models.CorrelationRecord, asOf time.Time) models.Prediction {
	prediction := models.Prediction{
		Direction:     models.DirectionSideways,
		MagnitudeLow:  defaultMagnitudeLow,
		MagnitudeHigh: defaultMagnitudeHigh,
		TimingDays:    defaultTimingDays,
		WinRate:       defaultWinRate,
	}

	if recent := s.recentSentiments(events, asOf, predictionSentimentDays); len(recent) > 0 {
		mean := analysis.Mean(recent)
		switch {
		case mean > sentimentDirectionThreshold:
			prediction.Direction = models.DirectionUp
		case mean < -sentimentDirectionThreshold:
			prediction.Direction = models.DirectionDown
		}
	}

	if sampled := usable(correlations); len(sampled) > 0 {
		magnitudes := make([]float64, len(sampled))
		rates := make([]float64, len(sampled))
		timings := make([]float64, len(sampled))
		for i, c := range sampled {
			magnitudes[i] = math.Abs(c.AvgChangePct)
			rates[i] = c.WinRate
			timings[i] = float64(c.DaysToMove)
		}
		prediction.MagnitudeLow = analysis.Percentile(magnitudes, 25)
		prediction.MagnitudeHigh = analysis.Percentile(magnitudes, 75)
		prediction.WinRate = analysis.Mean(rates)
		prediction.TimingDays = int(analysis.Median(timings))
		if prediction.TimingDays < 0 {
			prediction.TimingDays = 0
		}
	}

	return prediction
}

// confidence combines data coverage with a staleness penalty.
func (s *Scorer) confidence(events []models.NewsEvent, correlations []models.CorrelationRecord, asOf time.Time) float64 {
	eventScore := float64(len(events)) / fullConfidenceEvents
	if eventScore > 1 {
		eventScore = 1
	}
	recordScore := float64(len(correlations)) / fullConfidenceRecords
	if recordScore > 1 {
		recordScore = 1
	}
	base := (eventScore + recordScore) / 2

	recencyFactor := minRecencyFactor
	if len(events) > 0 {
		recencyFactor = 1 - float64(s.daysSinceLatest(events, asOf))/365
		if recencyFactor < minRecencyFactor {
			recencyFactor = minRecencyFactor
		}
	}

	return analysis.Clamp01(base * recencyFactor)
}

// recentSentiments returns the scores of analyzed events dated within the
// given number of days before asOf. Future-dated events are ignored.
func (s *Scorer) recentSentiments(events []models.NewsEvent, asOf time.Time, days int) []float64 {
	var scores []float64
	for _, e := range events {
		age := models.DaysBetween(e.EventDate, asOf)
		if age < 0 || age > days {
			continue
		}
		if e.HasSentiment() {
			scores = append(scores, e.SentimentScore)
		}
	}
	return scores
}

// daysSinceLatest returns the age in days of the newest event, never
// negative. Callers guarantee a non-empty slice.
func (s *Scorer) daysSinceLatest(events []models.NewsEvent, asOf time.Time) int {
	latest := events[0].EventDate
	for _, e := range events[1:] {
		if e.EventDate.After(latest) {
			latest = e.EventDate
		}
	}
	age := models.DaysBetween(latest, asOf)
	if age < 0 {
		return 0
	}
	return age
}

// usable filters to records that carry at least one sample.
func usable(correlations []models.CorrelationRecord) []models.CorrelationRecord {
	var sampled []models.CorrelationRecord
	for _, c := range correlations {
		if c.SampleSize > 0 {
			sampled = append(sampled, c)
		}
	}
	return sampled
}
