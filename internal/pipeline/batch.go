package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"stock-predictor/internal/models"
	"stock-predictor/internal/store"
)

const defaultBatchWorkers = 4

// BatchResult summarizes one batch run over many stocks.
type BatchResult struct {
	Total     int
	Succeeded int
	Partial   int
	Failed    int
	Results   []*models.AnalysisRunResult
	Elapsed   time.Duration
}

// RunBatch analyzes the given stocks with a bounded worker pool, one job
// per stock. A failing stock never aborts the batch; its FAILED result is
// collected like any other. Cancelling the context stops feeding new jobs
// and lets in-flight runs wind down at their next stage boundary.
func (o *Orchestrator) RunBatch(ctx context.Context, stockIDs []int64, workers int, opts RunOptions) *BatchResult {
	if workers <= 0 {
		workers = defaultBatchWorkers
	}
	if workers > len(stockIDs) && len(stockIDs) > 0 {
		workers = len(stockIDs)
	}

	start := time.Now()
	o.logger.Info().Int("stocks", len(stockIDs)).Int("workers", workers).Msg("Batch analysis started")

	var (
		succeeded atomic.Int64
		partial   atomic.Int64
		failed    atomic.Int64

		mu      sync.Mutex
		results = make([]*models.AnalysisRunResult, 0, len(stockIDs))
	)

	jobs := make(chan int64)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for stockID := range jobs {
				result, _ := o.Run(ctx, stockID, opts)

				switch result.Status {
				case models.RunSuccess:
					succeeded.Add(1)
				case models.RunPartial:
					partial.Add(1)
				default:
					failed.Add(1)
				}

				mu.Lock()
				results = append(results, result)
				mu.Unlock()
			}
		}()
	}

feed:
	for _, stockID := range stockIDs {
		select {
		case jobs <- stockID:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	batch := &BatchResult{
		Total:     len(stockIDs),
		Succeeded: int(succeeded.Load()),
		Partial:   int(partial.Load()),
		Failed:    int(failed.Load()),
		Results:   results,
		Elapsed:   time.Since(start),
	}

	o.logger.Info().
		Int("succeeded", batch.Succeeded).
		Int("partial", batch.Partial).
		Int("failed", batch.Failed).
		Dur("elapsed", batch.Elapsed).
		Msg("Batch analysis finished")

	return batch
}

// RunAll analyzes every active stock.
func (o *Orchestrator) RunAll(ctx context.Context, workers int, opts RunOptions) (*BatchResult, error) {
	stocks, err := o.store.ListStocks(ctx, store.StockFilter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}

	stockIDs := make([]int64, len(stocks))
	for i, s := range stocks {
		stockIDs[i] = s.ID
	}

	return o.RunBatch(ctx, stockIDs, workers, opts), nil
}
