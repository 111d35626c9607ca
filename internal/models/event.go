package models

import (
	"time"
)

// EventCategory represents one of the fixed news event categories.
type EventCategory string

const (
	CategoryEarnings   EventCategory = "earnings"
	CategoryPolicy     EventCategory = "policy"
	CategorySeasonal   EventCategory = "seasonal"
	CategoryTechnical  EventCategory = "technical"
	CategorySector     EventCategory = "sector"
	CategoryMerger     EventCategory = "merger"
	CategoryDividend   EventCategory = "dividend"
	CategoryManagement EventCategory = "management"
)

// AllCategories lists every event category in declaration order.
// The order doubles as the tie-break order during categorization.
func AllCategories() []EventCategory {
	return []EventCategory{
		CategoryEarnings,
		CategoryPolicy,
		CategorySeasonal,
		CategoryTechnical,
		CategorySector,
		CategoryMerger,
		CategoryDividend,
		CategoryManagement,
	}
}

// SentimentCategory buckets a sentiment score.
type SentimentCategory string

const (
	SentimentPositive SentimentCategory = "POSITIVE"
	SentimentNeutral  SentimentCategory = "NEUTRAL"
	SentimentNegative SentimentCategory = "NEGATIVE"
)

// NewsEvent is a single news item about a stock.
//
// Headline, Content, EventDate and the source fields are set at ingestion.
// Category, CategoryConfidence, SentimentScore and SentimentCategory are
// assigned by the analysis pipeline; an empty SentimentCategory means the
// event has not been analyzed yet.
type NewsEvent struct {
	ID      int64
	StockID int64

	Headline  string
	Content   string
	EventDate time.Time
	URL       string

	Category           EventCategory
	CategoryConfidence float64
	SentimentScore     float64
	SentimentCategory  SentimentCategory

	SourceName    string
	SourceQuality float64
	ContentHash   string
	IsDuplicate   bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasSentiment reports whether the event carries an analyzed sentiment.
func (e *NewsEvent) HasSentiment() bool {
	return e.SentimentCategory != ""
}
