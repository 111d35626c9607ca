package schedule

import (
	"context"
	"fmt"
	"time"

	"stock-predictor/internal/models"
	"stock-predictor/internal/pipeline"
	"stock-predictor/internal/store"
)

// syncPrices appends daily bars for every active stock, from each stock's
// freshness watermark forward. A stock with no history is backfilled.
func (s *Scheduler) syncPrices(ctx context.Context) error {
	if s.prices == nil {
		return fmt.Errorf("no price source configured")
	}

	stocks, err := s.store.ListStocks(ctx, store.StockFilter{ActiveOnly: true})
	if err != nil {
		return fmt.Errorf("failed to list stocks: %w", err)
	}

	now := time.Now().UTC()
	failed := 0
	for i := range stocks {
		stock := &stocks[i]
		if err := ctx.Err(); err != nil {
			return err
		}

		freshness, err := s.store.GetPriceFreshness(ctx, stock.ID)
		if err != nil {
			s.logger.Warn().Err(err).Str("ticker", stock.Ticker).Msg("Freshness lookup failed")
			failed++
			continue
		}

		from := freshness.AddDate(0, 0, 1)
		if freshness.IsZero() {
			from = now.AddDate(0, 0, -backfillDays)
		}
		if !from.Before(now) {
			continue // already current
		}

		bars, err := s.prices.FetchDaily(ctx, stock, from, now)
		if err != nil {
			s.logger.Warn().Err(err).Str("ticker", stock.Ticker).Msg("Price fetch failed")
			failed++
			continue
		}
		if len(bars) == 0 {
			continue
		}

		if err := s.store.SavePrices(ctx, bars); err != nil {
			s.logger.Warn().Err(err).Str("ticker", stock.Ticker).Msg("Price save failed")
			failed++
			continue
		}
		if err := s.store.MarkPricesSynced(ctx, stock.ID, now); err != nil {
			s.logger.Warn().Err(err).Str("ticker", stock.Ticker).Msg("Price sync mark failed")
		}
		s.logger.Debug().Str("ticker", stock.Ticker).Int("bars", len(bars)).Msg("Prices appended")
	}

	if err := s.store.SetLastSync(JobPrices, now); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to stamp price sync time")
	}
	if failed > 0 {
		return fmt.Errorf("price sync failed for %d of %d stocks", failed, len(stocks))
	}
	return nil
}

// syncNews pulls fresh headlines for every active stock and stores the
// ones whose content hash has not been seen for that stock.
func (s *Scheduler) syncNews(ctx context.Context) error {
	if s.news == nil {
		return fmt.Errorf("no news source configured")
	}

	stocks, err := s.store.ListStocks(ctx, store.StockFilter{ActiveOnly: true})
	if err != nil {
		return fmt.Errorf("failed to list stocks: %w", err)
	}

	now := time.Now().UTC()
	since := s.store.GetLastSync(JobNews)
	if since.IsZero() {
		since = now.AddDate(0, 0, -7)
	}

	failed := 0
	stored := 0
	for i := range stocks {
		stock := &stocks[i]
		if err := ctx.Err(); err != nil {
			return err
		}

		events, err := s.news.FetchHeadlines(ctx, stock, since)
		if err != nil {
			s.logger.Warn().Err(err).Str("ticker", stock.Ticker).Msg("News fetch failed")
			failed++
			continue
		}

		fresh, err := s.filterSeen(ctx, stock.ID, events)
		if err != nil {
			s.logger.Warn().Err(err).Str("ticker", stock.Ticker).Msg("Duplicate check failed")
			failed++
			continue
		}
		if len(fresh) > 0 {
			if err := s.store.SaveEvents(ctx, fresh); err != nil {
				s.logger.Warn().Err(err).Str("ticker", stock.Ticker).Msg("Event save failed")
				failed++
				continue
			}
			stored += len(fresh)
		}
		if err := s.store.MarkNewsSynced(ctx, stock.ID, now); err != nil {
			s.logger.Warn().Err(err).Str("ticker", stock.Ticker).Msg("News sync mark failed")
		}
	}

	if err := s.store.SetLastSync(JobNews, now); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to stamp news sync time")
	}
	s.logger.Info().Int("events", stored).Msg("News sync stored fresh events")
	if failed > 0 {
		return fmt.Errorf("news sync failed for %d of %d stocks", failed, len(stocks))
	}
	return nil
}

// filterSeen drops events whose content hash is already stored for the stock.
func (s *Scheduler) filterSeen(ctx context.Context, stockID int64, events []models.NewsEvent) ([]models.NewsEvent, error) {
	var fresh []models.NewsEvent
	for _, e := range events {
		seen, err := s.store.HasContentHash(ctx, stockID, e.ContentHash)
		if err != nil {
			return nil, err
		}
		if !seen {
			fresh = append(fresh, e)
		}
	}
	return fresh, nil
}

// runAnalysis executes the full pipeline over every active stock.
func (s *Scheduler) runAnalysis(ctx context.Context) error {
	batch, err := s.orch.RunAll(ctx, s.cfg.Analysis.BatchWorkers, pipeline.DefaultRunOptions())
	if err != nil {
		return fmt.Errorf("batch analysis failed to start: %w", err)
	}

	if err := s.store.SetLastSync(JobAnalysis, time.Now().UTC()); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to stamp analysis sync time")
	}
	if batch.Failed > 0 {
		return fmt.Errorf("analysis failed for %d of %d stocks", batch.Failed, batch.Total)
	}
	return nil
}

// refreshCorrelations regenerates correlation records for every active stock.
func (s *Scheduler) refreshCorrelations(ctx context.Context) error {
	stocks, err := s.store.ListStocks(ctx, store.StockFilter{ActiveOnly: true})
	if err != nil {
		return fmt.Errorf("failed to list stocks: %w", err)
	}

	failed := 0
	for i := range stocks {
		stock := &stocks[i]
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := s.orch.RefreshCorrelations(ctx, stock.ID); err != nil {
			s.logger.Warn().Err(err).Str("ticker", stock.Ticker).Msg("Correlation refresh failed")
			failed++
		}
	}

	if err := s.store.SetLastSync(JobCorrelations, time.Now().UTC()); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to stamp correlation sync time")
	}
	if failed > 0 {
		return fmt.Errorf("correlation refresh failed for %d of %d stocks", failed, len(stocks))
	}
	return nil
}
