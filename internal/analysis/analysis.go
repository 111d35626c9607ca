// Package analysis provides news analysis functionality including event
// categorization, sentiment scoring, event-price correlation and
// predictability scoring.
package analysis

import (
	"stock-predictor/internal/models"
)

// Categorization is the result of classifying one news event.
type Categorization struct {
	Primary     models.EventCategory
	Confidence  float64
	Secondaries map[models.EventCategory]float64
}

// Sentiment is the result of scoring one text for polarity.
type Sentiment struct {
	Score    float64
	Category models.SentimentCategory
}

// DualSentiment is the result of scoring a headline and its content
// separately and blending the two.
type DualSentiment struct {
	HeadlineScore    float64
	HeadlineCategory models.SentimentCategory
	ContentScore     float64
	ContentCategory  models.SentimentCategory
	Score            float64
	Category         models.SentimentCategory
}

// Clamp restricts a value to the given range.
func Clamp(value, minVal, maxVal float64) float64 {
	if value < minVal {
		return minVal
	}
	if value > maxVal {
		return maxVal
	}
	return value
}

// Clamp01 restricts a value to [0, 1].
func Clamp01(value float64) float64 {
	return Clamp(value, 0, 1)
}
