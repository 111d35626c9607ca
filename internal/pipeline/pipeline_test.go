package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"stock-predictor/internal/config"
	apperrors "stock-predictor/internal/errors"
	"stock-predictor/internal/models"
	"stock-predictor/internal/store"
)

// memStore is an in-memory DataStore with switchable failure points.
type memStore struct {
	mu           sync.Mutex
	nextID       int64
	stocks       map[int64]*models.Stock
	events       map[int64][]models.NewsEvent
	prices       map[int64][]models.PriceBar
	correlations map[int64][]models.CorrelationRecord
	current      map[int64]*models.PredictabilityRecord
	history      map[int64][]models.PredictabilityRecord
	syncs        map[string]time.Time

	failGetEvents            bool
	failUpdateEvents         bool
	failReplaceCorrelations  bool
	failUpsertPredictability bool
}

func newMemStore() *memStore {
	return &memStore{
		stocks:       make(map[int64]*models.Stock),
		events:       make(map[int64][]models.NewsEvent),
		prices:       make(map[int64][]models.PriceBar),
		correlations: make(map[int64][]models.CorrelationRecord),
		current:      make(map[int64]*models.PredictabilityRecord),
		history:      make(map[int64][]models.PredictabilityRecord),
		syncs:        make(map[string]time.Time),
	}
}

func (m *memStore) SaveStock(ctx context.Context, stock *models.Stock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if stock.ID == 0 {
		m.nextID++
		stock.ID = m.nextID
	}
	if stock.AnalysisStatus == "" {
		stock.AnalysisStatus = models.AnalysisPending
	}
	copied := *stock
	m.stocks[stock.ID] = &copied
	return nil
}

func (m *memStore) GetStock(ctx context.Context, id int64) (*models.Stock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stock, ok := m.stocks[id]
	if !ok {
		return nil, fmt.Errorf("stock %d: %w", id, apperrors.ErrStockNotFound)
	}
	copied := *stock
	return &copied, nil
}

func (m *memStore) GetStockByTicker(ctx context.Context, ticker string) (*models.Stock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, stock := range m.stocks {
		if stock.Ticker == ticker {
			copied := *stock
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("stock %q: %w", ticker, apperrors.ErrStockNotFound)
}

func (m *memStore) ListStocks(ctx context.Context, filter store.StockFilter) ([]models.Stock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Stock
	for _, stock := range m.stocks {
		if filter.ActiveOnly && !stock.IsActive {
			continue
		}
		out = append(out, *stock)
	}
	return out, nil
}

func (m *memStore) UpdateAnalysisStatus(ctx context.Context, stockID int64, status models.AnalysisStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stock, ok := m.stocks[stockID]
	if !ok {
		return apperrors.ErrStockNotFound
	}
	stock.AnalysisStatus = status
	return nil
}

func (m *memStore) MarkPricesSynced(ctx context.Context, stockID int64, at time.Time) error {
	return nil
}

func (m *memStore) MarkNewsSynced(ctx context.Context, stockID int64, at time.Time) error {
	return nil
}

func (m *memStore) SaveEvents(ctx context.Context, events []models.NewsEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range events {
		if events[i].ID == 0 {
			m.nextID++
			events[i].ID = m.nextID
		}
		m.events[events[i].StockID] = append(m.events[events[i].StockID], events[i])
	}
	return nil
}

func (m *memStore) GetEvents(ctx context.Context, filter store.EventFilter) ([]models.NewsEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGetEvents {
		return nil, errors.New("events table unavailable")
	}
	var out []models.NewsEvent
	for _, e := range m.events[filter.StockID] {
		if e.IsDuplicate && !filter.IncludeDuplicates {
			continue
		}
		if !filter.StartDate.IsZero() && e.EventDate.Before(filter.StartDate) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *memStore) UpdateEventAnalysis(ctx context.Context, events []models.NewsEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpdateEvents {
		return errors.New("event update failed")
	}
	for _, updated := range events {
		stored := m.events[updated.StockID]
		for i := range stored {
			if stored[i].ID == updated.ID {
				stored[i].Category = updated.Category
				stored[i].CategoryConfidence = updated.CategoryConfidence
				stored[i].SentimentScore = updated.SentimentScore
				stored[i].SentimentCategory = updated.SentimentCategory
			}
		}
	}
	return nil
}

func (m *memStore) HasContentHash(ctx context.Context, stockID int64, hash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events[stockID] {
		if e.ContentHash == hash {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) SavePrices(ctx context.Context, bars []models.PriceBar) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range bars {
		m.prices[b.StockID] = append(m.prices[b.StockID], b)
	}
	return nil
}

func (m *memStore) GetPrices(ctx context.Context, stockID int64, from, to time.Time) ([]models.PriceBar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.PriceBar(nil), m.prices[stockID]...), nil
}

func (m *memStore) GetPriceFreshness(ctx context.Context, stockID int64) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest time.Time
	for _, b := range m.prices[stockID] {
		if b.Date.After(latest) {
			latest = b.Date
		}
	}
	return latest, nil
}

func (m *memStore) ReplaceCorrelations(ctx context.Context, stockID int64, records []models.CorrelationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failReplaceCorrelations {
		return errors.New("correlation replace failed")
	}
	m.correlations[stockID] = append([]models.CorrelationRecord(nil), records...)
	return nil
}

func (m *memStore) GetCorrelations(ctx context.Context, stockID int64) ([]models.CorrelationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.CorrelationRecord(nil), m.correlations[stockID]...), nil
}

func (m *memStore) UpsertPredictability(ctx context.Context, record *models.PredictabilityRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpsertPredictability {
		return errors.New("predictability upsert failed")
	}
	if record.CalculatedAt.IsZero() {
		record.CalculatedAt = time.Now().UTC()
	}
	record.IsCurrent = true
	copied := *record
	m.current[record.StockID] = &copied
	m.history[record.StockID] = append(m.history[record.StockID], copied)
	return nil
}

func (m *memStore) GetCurrentPredictability(ctx context.Context, stockID int64) (*models.PredictabilityRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.current[stockID]
	if !ok {
		return nil, apperrors.ErrDataNotFound
	}
	copied := *record
	return &copied, nil
}

func (m *memStore) GetPredictabilityHistory(ctx context.Context, stockID int64, limit int) ([]models.PredictabilityRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.PredictabilityRecord(nil), m.history[stockID]...), nil
}

func (m *memStore) ListCurrentPredictability(ctx context.Context, limit int) ([]models.PredictabilityRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.PredictabilityRecord
	for _, record := range m.current {
		out = append(out, *record)
	}
	return out, nil
}

func (m *memStore) GetLastSync(dataType string) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.syncs[dataType]
}

func (m *memStore) SetLastSync(dataType string, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncs[dataType] = t
	return nil
}

func (m *memStore) Close() error { return nil }

var _ store.DataStore = (*memStore)(nil)

// fakeInvalidator records invalidations.
type fakeInvalidator struct {
	mu      sync.Mutex
	tickers []string
	fail    bool
}

func (f *fakeInvalidator) Invalidate(ctx context.Context, ticker string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("redis down")
	}
	f.tickers = append(f.tickers, ticker)
	return nil
}

func (f *fakeInvalidator) InvalidatePattern(ctx context.Context, pattern string) error { return nil }
func (f *fakeInvalidator) Close() error                                               { return nil }

func (f *fakeInvalidator) invalidated() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tickers...)
}

func seedStock(t *testing.T, m *memStore, ticker string) int64 {
	t.Helper()
	stock := &models.Stock{Ticker: ticker, CompanyName: ticker + " Ltd", Market: models.MarketNSE, IsActive: true}
	if err := m.SaveStock(context.Background(), stock); err != nil {
		t.Fatalf("SaveStock failed: %v", err)
	}
	return stock.ID
}

func seedMarketData(t *testing.T, m *memStore, stockID int64) {
	t.Helper()
	ctx := context.Background()

	eventDay := time.Now().UTC().AddDate(0, 0, -30)
	events := []models.NewsEvent{
		{
			StockID:   stockID,
			Headline:  "Quarterly earnings beat estimates with record profit",
			Content:   "Revenue growth was strong across segments.",
			EventDate: eventDay,
		},
		{
			StockID:   stockID,
			Headline:  "Board declares interim dividend",
			EventDate: eventDay.AddDate(0, 0, 2),
		},
	}
	if err := m.SaveEvents(ctx, events); err != nil {
		t.Fatalf("SaveEvents failed: %v", err)
	}

	var bars []models.PriceBar
	base := models.Day(eventDay).AddDate(0, 0, -2)
	for i := 0; i < 14; i++ {
		price := 100 + float64(i)
		bars = append(bars, models.PriceBar{
			StockID: stockID,
			Date:    base.AddDate(0, 0, i),
			Open:    price,
			High:    price + 2,
			Low:     price - 1,
			Close:   price + 1,
			Volume:  1000,
		})
	}
	if err := m.SavePrices(ctx, bars); err != nil {
		t.Fatalf("SavePrices failed: %v", err)
	}
}

func newTestOrchestrator(m *memStore, inv *fakeInvalidator) *Orchestrator {
	return New(m, inv, config.AnalysisConfig{LookbackDays: 365}, zerolog.Nop())
}

func TestRunFullPipeline(t *testing.T) {
	m := newMemStore()
	inv := &fakeInvalidator{}
	stockID := seedStock(t, m, "RELIANCE")
	seedMarketData(t, m, stockID)

	o := newTestOrchestrator(m, inv)
	result, err := o.Run(context.Background(), stockID, DefaultRunOptions())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Status != models.RunSuccess {
		t.Errorf("status = %s, want SUCCESS", result.Status)
	}
	if result.Ticker != "RELIANCE" {
		t.Errorf("ticker = %q", result.Ticker)
	}
	if len(result.Stages) != 3 {
		t.Fatalf("stages = %d, want 3", len(result.Stages))
	}
	for _, stage := range result.Stages {
		if stage.Status != models.RunSuccess {
			t.Errorf("stage %s = %s, want SUCCESS", stage.Stage, stage.Status)
		}
	}
	if result.EventsAnalyzed != 2 {
		t.Errorf("events analyzed = %d, want 2", result.EventsAnalyzed)
	}
	if result.Correlations == 0 {
		t.Error("no correlation records written")
	}
	if result.Predictability == nil {
		t.Fatal("no predictability record on result")
	}
	if result.CompletedAt.Before(result.StartedAt) {
		t.Error("completion timestamp precedes start")
	}

	// Stage 1 mutations must be flushed to the store.
	stored := m.events[stockID]
	for _, e := range stored {
		if e.Category == "" || e.SentimentCategory == "" {
			t.Errorf("event %d not analyzed in store: %+v", e.ID, e)
		}
	}
	if stored[0].Category != models.CategoryEarnings {
		t.Errorf("earnings headline categorized as %s", stored[0].Category)
	}

	if len(m.correlations[stockID]) == 0 {
		t.Error("correlations not persisted")
	}
	if m.current[stockID] == nil {
		t.Error("predictability not persisted")
	}
	if got := inv.invalidated(); len(got) != 1 || got[0] != "RELIANCE" {
		t.Errorf("invalidations = %v, want one for RELIANCE", got)
	}

	stock, _ := m.GetStock(context.Background(), stockID)
	if stock.AnalysisStatus != models.AnalysisCompleted {
		t.Errorf("final analysis status = %s, want COMPLETED", stock.AnalysisStatus)
	}
}

func TestRunFailsForMissingStock(t *testing.T) {
	m := newMemStore()
	o := newTestOrchestrator(m, &fakeInvalidator{})

	result, err := o.Run(context.Background(), 404, DefaultRunOptions())
	if err == nil {
		t.Fatal("expected an error for a missing stock")
	}
	if !errors.Is(err, apperrors.ErrStockNotFound) {
		t.Errorf("error = %v, want ErrStockNotFound in chain", err)
	}
	if result.Status != models.RunFailed {
		t.Errorf("status = %s, want FAILED", result.Status)
	}
	if len(result.Stages) != 0 {
		t.Errorf("stages = %d, want none before failure", len(result.Stages))
	}
	if result.Error == "" {
		t.Error("result carries no error message")
	}
}

func TestRunFailsWhenEventsUnretrievable(t *testing.T) {
	m := newMemStore()
	stockID := seedStock(t, m, "TCS")
	m.failGetEvents = true

	o := newTestOrchestrator(m, &fakeInvalidator{})
	result, err := o.Run(context.Background(), stockID, DefaultRunOptions())
	if err == nil {
		t.Fatal("expected an error when events cannot be loaded")
	}
	if result.Status != models.RunFailed {
		t.Errorf("status = %s, want FAILED", result.Status)
	}

	stock, _ := m.GetStock(context.Background(), stockID)
	if stock.AnalysisStatus != models.AnalysisFailed {
		t.Errorf("analysis status = %s, want FAILED", stock.AnalysisStatus)
	}
}

func TestRunCorrelationFailureDegradesToPartial(t *testing.T) {
	m := newMemStore()
	inv := &fakeInvalidator{}
	stockID := seedStock(t, m, "INFY")
	seedMarketData(t, m, stockID)

	// Last-known-good correlations from an earlier run.
	m.correlations[stockID] = []models.CorrelationRecord{{
		StockID:    stockID,
		Category:   models.CategoryEarnings,
		WinRate:    0.75,
		SampleSize: 40,
		Direction:  models.DirectionUp,
		DaysToMove: 1,
	}}
	m.failReplaceCorrelations = true

	o := newTestOrchestrator(m, inv)
	result, err := o.Run(context.Background(), stockID, DefaultRunOptions())
	if err != nil {
		t.Fatalf("Run returned error for a recoverable stage failure: %v", err)
	}

	if result.Status != models.RunPartial {
		t.Errorf("status = %s, want PARTIAL", result.Status)
	}
	if got := result.StageStatus(models.StageCorrelations); got != models.RunFailed {
		t.Errorf("correlation stage = %s, want FAILED", got)
	}
	if got := result.StageStatus(models.StageEvents); got != models.RunSuccess {
		t.Errorf("event stage = %s, want SUCCESS", got)
	}
	if got := result.StageStatus(models.StagePredictability); got != models.RunSuccess {
		t.Errorf("scoring stage = %s, want SUCCESS via last-known-good data", got)
	}
	if result.Predictability == nil {
		t.Fatal("scoring should still produce a record from stored correlations")
	}
	if result.Predictability.PatternScore <= 10 {
		t.Errorf("pattern score = %d, want evidence of the stored correlation set", result.Predictability.PatternScore)
	}
	if got := inv.invalidated(); len(got) != 1 {
		t.Errorf("invalidations = %v, want one after the scoring commit", got)
	}
}

func TestRunScoringFailureSkipsInvalidation(t *testing.T) {
	m := newMemStore()
	inv := &fakeInvalidator{}
	stockID := seedStock(t, m, "WIPRO")
	seedMarketData(t, m, stockID)
	m.failUpsertPredictability = true

	o := newTestOrchestrator(m, inv)
	result, err := o.Run(context.Background(), stockID, DefaultRunOptions())
	if err != nil {
		t.Fatalf("Run returned error for a recoverable stage failure: %v", err)
	}

	if result.Status != models.RunPartial {
		t.Errorf("status = %s, want PARTIAL", result.Status)
	}
	if result.Predictability != nil {
		t.Error("failed scoring stage should leave no record on the result")
	}
	if got := inv.invalidated(); len(got) != 0 {
		t.Errorf("invalidations = %v, want none without a successful commit", got)
	}
}

func TestRunSkipsDeselectedStages(t *testing.T) {
	m := newMemStore()
	stockID := seedStock(t, m, "ITC")
	seedMarketData(t, m, stockID)

	o := newTestOrchestrator(m, &fakeInvalidator{})
	result, err := o.Run(context.Background(), stockID, RunOptions{UpdatePredictability: true})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(result.Stages) != 1 || result.Stages[0].Stage != models.StagePredictability {
		t.Fatalf("stages = %+v, want only the scoring stage", result.Stages)
	}
	if result.EventsAnalyzed != 0 {
		t.Errorf("events analyzed = %d, want 0 for a skipped stage", result.EventsAnalyzed)
	}
	for _, e := range m.events[stockID] {
		if e.SentimentCategory != "" {
			t.Errorf("skipped event stage still wrote analysis: %+v", e)
		}
	}
	if len(m.correlations[stockID]) != 0 {
		t.Error("skipped correlation stage still wrote records")
	}
	if m.current[stockID] == nil {
		t.Error("selected scoring stage wrote nothing")
	}
}

func TestRunCancelledBeforeStages(t *testing.T) {
	m := newMemStore()
	stockID := seedStock(t, m, "SBIN")
	seedMarketData(t, m, stockID)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := newTestOrchestrator(m, &fakeInvalidator{})
	result, err := o.Run(ctx, stockID, DefaultRunOptions())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if result.Status != models.RunFailed {
		t.Errorf("status = %s, want FAILED when cancelled before any stage", result.Status)
	}
	if len(result.Stages) != 0 {
		t.Errorf("stages = %d, want none", len(result.Stages))
	}
}

func TestRunCacheFailureIsBestEffort(t *testing.T) {
	m := newMemStore()
	inv := &fakeInvalidator{fail: true}
	stockID := seedStock(t, m, "HCLTECH")
	seedMarketData(t, m, stockID)

	o := newTestOrchestrator(m, inv)
	result, err := o.Run(context.Background(), stockID, DefaultRunOptions())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Status != models.RunSuccess {
		t.Errorf("status = %s, want SUCCESS despite cache failure", result.Status)
	}
}

func TestScoreStock(t *testing.T) {
	m := newMemStore()
	inv := &fakeInvalidator{}
	stockID := seedStock(t, m, "ONGC")

	now := time.Now().UTC()
	m.events[stockID] = []models.NewsEvent{{
		ID:                1,
		StockID:           stockID,
		Headline:          "Output guidance raised",
		EventDate:         now.AddDate(0, 0, -5),
		Category:          models.CategoryEarnings,
		SentimentScore:    0.7,
		SentimentCategory: models.SentimentPositive,
	}}
	m.correlations[stockID] = []models.CorrelationRecord{{
		StockID:    stockID,
		Category:   models.CategoryEarnings,
		WinRate:    0.8,
		SampleSize: 30,
		Direction:  models.DirectionUp,
		DaysToMove: 1,
	}}

	o := newTestOrchestrator(m, inv)
	record, err := o.ScoreStock(context.Background(), stockID, 90)
	if err != nil {
		t.Fatalf("ScoreStock failed: %v", err)
	}
	if record.StockID != stockID {
		t.Errorf("stock id = %d, want %d", record.StockID, stockID)
	}
	if record.OverallScore < 0 || record.OverallScore > 100 {
		t.Errorf("overall = %d, out of range", record.OverallScore)
	}
	if m.current[stockID] == nil {
		t.Error("record not persisted")
	}
	if got := inv.invalidated(); len(got) != 1 || got[0] != "ONGC" {
		t.Errorf("invalidations = %v, want one for ONGC", got)
	}
}

func TestRunBatch(t *testing.T) {
	m := newMemStore()
	inv := &fakeInvalidator{}

	ids := []int64{
		seedStock(t, m, "AAA"),
		seedStock(t, m, "BBB"),
		seedStock(t, m, "CCC"),
	}
	seedMarketData(t, m, ids[0])
	ids = append(ids, 9999) // unknown stock fails, batch continues

	o := newTestOrchestrator(m, inv)
	batch := o.RunBatch(context.Background(), ids, 2, DefaultRunOptions())

	if batch.Total != 4 {
		t.Errorf("total = %d, want 4", batch.Total)
	}
	if batch.Failed != 1 {
		t.Errorf("failed = %d, want 1", batch.Failed)
	}
	if batch.Succeeded != 3 {
		t.Errorf("succeeded = %d, want 3", batch.Succeeded)
	}
	if got := batch.Succeeded + batch.Partial + batch.Failed; got != batch.Total {
		t.Errorf("tally %d does not cover total %d", got, batch.Total)
	}
	if len(batch.Results) != 4 {
		t.Errorf("results = %d, want 4", len(batch.Results))
	}
	if batch.Elapsed <= 0 {
		t.Error("elapsed not measured")
	}
}

func TestRunAllCoversActiveStocks(t *testing.T) {
	m := newMemStore()
	activeID := seedStock(t, m, "ACTIVE")
	seedMarketData(t, m, activeID)

	inactive := &models.Stock{Ticker: "DORMANT", Market: models.MarketNSE, IsActive: false}
	if err := m.SaveStock(context.Background(), inactive); err != nil {
		t.Fatalf("SaveStock failed: %v", err)
	}

	o := newTestOrchestrator(m, &fakeInvalidator{})
	batch, err := o.RunAll(context.Background(), 2, DefaultRunOptions())
	if err != nil {
		t.Fatalf("RunAll failed: %v", err)
	}
	if batch.Total != 1 {
		t.Errorf("total = %d, want only the active stock", batch.Total)
	}
}
