// Package cache drops stale predictability entries from Redis after a
// scoring run commits. Caching is best-effort: callers log failures and
// keep going.
package cache

import (
	"context"
	"strings"
)

const (
	predictabilityPrefix = "predictor:predictability:"
	predictionPrefix     = "predictor:prediction:"

	// PatternAll matches every key this application owns.
	PatternAll = "predictor:*"
)

// Invalidator removes cached entries for a stock once fresh scores land.
type Invalidator interface {
	// Invalidate drops both the predictability and prediction entries
	// for the given ticker.
	Invalidate(ctx context.Context, ticker string) error

	// InvalidatePattern drops every key matching the glob pattern.
	InvalidatePattern(ctx context.Context, pattern string) error

	Close() error
}

// PredictabilityKey returns the cache key for a stock's current score record.
func PredictabilityKey(ticker string) string {
	return predictabilityPrefix + normalizeTicker(ticker)
}

// PredictionKey returns the cache key for a stock's current prediction.
func PredictionKey(ticker string) string {
	return predictionPrefix + normalizeTicker(ticker)
}

func normalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}
