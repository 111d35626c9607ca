// Package pipeline orchestrates the analysis stages for a stock: event
// categorization and sentiment, event-price correlation, and
// predictability scoring. The stages themselves are pure; this package
// owns their ordering, persistence and failure policy.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"stock-predictor/internal/analysis/categorize"
	"stock-predictor/internal/analysis/correlation"
	"stock-predictor/internal/analysis/predict"
	"stock-predictor/internal/analysis/sentiment"
	"stock-predictor/internal/cache"
	"stock-predictor/internal/config"
	apperrors "stock-predictor/internal/errors"
	"stock-predictor/internal/models"
	"stock-predictor/internal/store"
)

const defaultLookbackDays = 365

// RunOptions selects which stages of an analysis run execute. A skipped
// stage leaves its stored output untouched; later stages read the
// last-known-good data instead.
type RunOptions struct {
	UpdateEvents         bool
	UpdateCorrelations   bool
	UpdatePredictability bool
}

// DefaultRunOptions runs every stage.
func DefaultRunOptions() RunOptions {
	return RunOptions{
		UpdateEvents:         true,
		UpdateCorrelations:   true,
		UpdatePredictability: true,
	}
}

// Orchestrator runs the analysis pipeline for one stock at a time.
// Different stocks may be analyzed concurrently; two concurrent runs for
// the same stock are the scheduler's job to prevent.
type Orchestrator struct {
	store       store.DataStore
	invalidator cache.Invalidator
	categorizer *categorize.Categorizer
	analyzer    *sentiment.Analyzer
	correlator  *correlation.Analyzer
	scorer      *predict.Scorer

	lookbackDays int
	logger       zerolog.Logger
}

// New creates an orchestrator tuned by the analysis settings. Zero
// values fall back to the engine defaults.
func New(dataStore store.DataStore, invalidator cache.Invalidator, cfg config.AnalysisConfig, logger zerolog.Logger) *Orchestrator {
	lookbackDays := cfg.LookbackDays
	if lookbackDays <= 0 {
		lookbackDays = defaultLookbackDays
	}
	if invalidator == nil {
		invalidator = cache.Noop{}
	}

	return &Orchestrator{
		store:        dataStore,
		invalidator:  invalidator,
		categorizer:  categorize.New(),
		analyzer:     sentiment.New(),
		correlator:   correlation.NewWithMinSamples(cfg.MinSampleSize),
		scorer:       predict.New(),
		lookbackDays: lookbackDays,
		logger:       logger.With().Str("component", "pipeline").Logger(),
	}
}

// Run executes the analysis pipeline for a stock.
//
// A failure before the first stage starts (stock or events unretrievable)
// returns a FAILED result and a non-nil error. A failure inside a stage is
// recorded on the result, degrades the run to PARTIAL, and the remaining
// stages still execute against the last data that made it to the store.
// PARTIAL runs return a nil error; callers inspect the result.
func (o *Orchestrator) Run(ctx context.Context, stockID int64, opts RunOptions) (*models.AnalysisRunResult, error) {
	result := &models.AnalysisRunResult{
		StockID:   stockID,
		Status:    models.RunSuccess,
		StartedAt: time.Now().UTC(),
	}

	stock, err := o.store.GetStock(ctx, stockID)
	if err != nil {
		return o.failRun(result, fmt.Errorf("failed to load stock: %w", err))
	}
	result.Ticker = stock.Ticker

	log := o.logger.With().Str("ticker", stock.Ticker).Logger()
	log.Info().Msg("Analysis run started")

	if err := o.store.UpdateAnalysisStatus(ctx, stockID, models.AnalysisProcessing); err != nil {
		log.Warn().Err(err).Msg("Failed to mark stock as processing")
	}

	since := time.Now().UTC().AddDate(0, 0, -o.lookbackDays)
	events, err := o.store.GetEvents(ctx, store.EventFilter{StockID: stockID, StartDate: since})
	if err != nil {
		o.setAnalysisStatus(ctx, stockID, models.AnalysisFailed, log)
		return o.failRun(result, fmt.Errorf("failed to load events: %w", err))
	}

	// Stage 1: categorize and score sentiment, flushed before correlations.
	if opts.UpdateEvents {
		if err := o.checkpoint(ctx, result); err != nil {
			return result, err
		}
		err := o.analyzeEvents(ctx, events)
		o.recordStage(result, models.StageEvents, err, stock.Ticker, log)
		if err == nil {
			result.EventsAnalyzed = len(events)
		}
	}

	// Stage 2: replace the stock's correlation records in one transaction.
	if opts.UpdateCorrelations {
		if err := o.checkpoint(ctx, result); err != nil {
			return result, err
		}
		count, err := o.refreshCorrelations(ctx, stockID, events, since)
		o.recordStage(result, models.StageCorrelations, err, stock.Ticker, log)
		if err == nil {
			result.Correlations = count
		}
	}

	// Stage 3: score predictability from stored correlations, then upsert.
	// The cache entry is dropped only after the record is committed.
	if opts.UpdatePredictability {
		if err := o.checkpoint(ctx, result); err != nil {
			return result, err
		}
		record, err := o.scoreAndPersist(ctx, stockID, stock.Ticker, events)
		o.recordStage(result, models.StagePredictability, err, stock.Ticker, log)
		if err == nil {
			result.Predictability = record
		}
	}

	result.CompletedAt = time.Now().UTC()

	finalStatus := models.AnalysisCompleted
	if result.Status == models.RunFailed {
		finalStatus = models.AnalysisFailed
	}
	o.setAnalysisStatus(ctx, stockID, finalStatus, log)

	log.Info().
		Str("status", string(result.Status)).
		Int("events", result.EventsAnalyzed).
		Int("correlations", result.Correlations).
		Dur("elapsed", result.Duration()).
		Msg("Analysis run finished")

	return result, nil
}

// ScoreStock recomputes the predictability record from stored events and
// stored correlations, independent of a full run.
func (o *Orchestrator) ScoreStock(ctx context.Context, stockID int64, lookbackDays int) (*models.PredictabilityRecord, error) {
	if lookbackDays <= 0 {
		lookbackDays = o.lookbackDays
	}

	stock, err := o.store.GetStock(ctx, stockID)
	if err != nil {
		return nil, fmt.Errorf("failed to load stock: %w", err)
	}

	since := time.Now().UTC().AddDate(0, 0, -lookbackDays)
	events, err := o.store.GetEvents(ctx, store.EventFilter{StockID: stockID, StartDate: since})
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	correlations, err := o.store.GetCorrelations(ctx, stockID)
	if err != nil {
		return nil, fmt.Errorf("failed to load correlations: %w", err)
	}

	record := o.scorer.Score(events, correlations, time.Now().UTC())
	record.StockID = stockID
	if err := o.store.UpsertPredictability(ctx, &record); err != nil {
		return nil, fmt.Errorf("failed to persist predictability: %w", err)
	}
	o.invalidate(ctx, stock.Ticker)

	return &record, nil
}

// RefreshCorrelations regenerates the stock's correlation records from
// stored events and prices. Used by the weekly regeneration job.
func (o *Orchestrator) RefreshCorrelations(ctx context.Context, stockID int64) (int, error) {
	since := time.Now().UTC().AddDate(0, 0, -o.lookbackDays)
	events, err := o.store.GetEvents(ctx, store.EventFilter{StockID: stockID, StartDate: since})
	if err != nil {
		return 0, fmt.Errorf("failed to load events: %w", err)
	}
	return o.refreshCorrelations(ctx, stockID, events, since)
}

// analyzeEvents mutates category and sentiment fields in place and flushes
// them in one transaction.
func (o *Orchestrator) analyzeEvents(ctx context.Context, events []models.NewsEvent) error {
	if len(events) == 0 {
		return nil
	}

	for i := range events {
		e := &events[i]
		cat := o.categorizer.Categorize(e.Headline, e.Content)
		sent := o.analyzer.AnalyzeHeadlineContent(e.Headline, e.Content)

		e.Category = cat.Primary
		e.CategoryConfidence = cat.Confidence
		e.SentimentScore = sent.Score
		e.SentimentCategory = sent.Category
	}

	if err := o.store.UpdateEventAnalysis(ctx, events); err != nil {
		return fmt.Errorf("failed to flush event analysis: %w", err)
	}
	return nil
}

func (o *Orchestrator) refreshCorrelations(ctx context.Context, stockID int64, events []models.NewsEvent, since time.Time) (int, error) {
	prices, err := o.store.GetPrices(ctx, stockID, since, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to load prices: %w", err)
	}

	records := o.correlator.ByCategory(events, prices)
	if err := o.store.ReplaceCorrelations(ctx, stockID, records); err != nil {
		return 0, fmt.Errorf("failed to replace correlations: %w", err)
	}
	return len(records), nil
}

// scoreAndPersist reads correlations back from the store so that a failed
// correlation stage leaves scoring working on the last committed set.
func (o *Orchestrator) scoreAndPersist(ctx context.Context, stockID int64, ticker string, events []models.NewsEvent) (*models.PredictabilityRecord, error) {
	correlations, err := o.store.GetCorrelations(ctx, stockID)
	if err != nil {
		return nil, fmt.Errorf("failed to load correlations: %w", err)
	}

	record := o.scorer.Score(events, correlations, time.Now().UTC())
	record.StockID = stockID
	if err := o.store.UpsertPredictability(ctx, &record); err != nil {
		return nil, fmt.Errorf("failed to persist predictability: %w", err)
	}
	o.invalidate(ctx, ticker)

	return &record, nil
}

// invalidate drops the stock's cache entries. Best-effort: a failure is
// logged and the run keeps its status.
func (o *Orchestrator) invalidate(ctx context.Context, ticker string) {
	if err := o.invalidator.Invalidate(ctx, ticker); err != nil {
		o.logger.Warn().Err(err).Str("ticker", ticker).Msg("Cache invalidation failed")
	}
}

// checkpoint honors the caller's time-box between stages. Cancellation
// before any stage ran fails the run; afterwards it degrades to PARTIAL
// with the completed stages' persistence already in place.
func (o *Orchestrator) checkpoint(ctx context.Context, result *models.AnalysisRunResult) error {
	err := ctx.Err()
	if err == nil {
		return nil
	}

	result.Error = err.Error()
	result.CompletedAt = time.Now().UTC()
	if len(result.Stages) == 0 {
		result.Status = models.RunFailed
	} else {
		result.Status = models.RunPartial
	}
	return err
}

func (o *Orchestrator) recordStage(result *models.AnalysisRunResult, stage models.RunStage, err error, ticker string, log zerolog.Logger) {
	if err == nil {
		result.Stages = append(result.Stages, models.StageResult{Stage: stage, Status: models.RunSuccess})
		return
	}

	stageErr := apperrors.NewStageError(string(stage), ticker, err)
	log.Error().Err(stageErr).Str("stage", string(stage)).Msg("Stage failed, run degraded to PARTIAL")

	result.Stages = append(result.Stages, models.StageResult{
		Stage:  stage,
		Status: models.RunFailed,
		Error:  err.Error(),
	})
	result.Status = models.RunPartial
}

func (o *Orchestrator) failRun(result *models.AnalysisRunResult, err error) (*models.AnalysisRunResult, error) {
	result.Status = models.RunFailed
	result.Error = err.Error()
	result.CompletedAt = time.Now().UTC()
	o.logger.Error().Err(err).Int64("stock_id", result.StockID).Msg("Analysis run failed before any stage")
	return result, err
}

func (o *Orchestrator) setAnalysisStatus(ctx context.Context, stockID int64, status models.AnalysisStatus, log zerolog.Logger) {
	if err := o.store.UpdateAnalysisStatus(ctx, stockID, status); err != nil {
		log.Warn().Err(err).Str("status", string(status)).Msg("Failed to update analysis status")
	}
}
