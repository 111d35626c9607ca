// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "stock-predictor/internal/errors"
	"stock-predictor/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db        *sql.DB
	mu        sync.RWMutex
	syncTimes map[string]time.Time
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{
		db:        db,
		syncTimes: make(map[string]time.Time),
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Stock master records
	CREATE TABLE IF NOT EXISTS stocks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ticker TEXT NOT NULL,
		company_name TEXT NOT NULL,
		market TEXT NOT NULL,
		sector TEXT,
		industry TEXT,
		is_active INTEGER DEFAULT 1,
		analysis_status TEXT DEFAULT 'PENDING',
		last_price_updated_at DATETIME,
		last_news_updated_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(ticker, market)
	);

	-- News events with analysis columns filled in by the pipeline
	CREATE TABLE IF NOT EXISTS news_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		stock_id INTEGER NOT NULL,
		headline TEXT NOT NULL,
		content TEXT,
		event_date DATETIME NOT NULL,
		url TEXT,
		category TEXT,
		category_confidence REAL,
		sentiment_score REAL,
		sentiment_category TEXT,
		source_name TEXT,
		source_quality REAL,
		content_hash TEXT,
		is_duplicate INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (stock_id) REFERENCES stocks(id)
	);

	-- Daily OHLCV bars, one row per stock per calendar day
	CREATE TABLE IF NOT EXISTS stock_prices (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		stock_id INTEGER NOT NULL,
		date DATETIME NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(stock_id, date),
		FOREIGN KEY (stock_id) REFERENCES stocks(id)
	);

	-- Event-price correlation records, one per (stock, category)
	CREATE TABLE IF NOT EXISTS event_correlations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		stock_id INTEGER NOT NULL,
		category TEXT NOT NULL,
		same_day TEXT,
		next_day TEXT,
		lagged TEXT,
		win_rate REAL NOT NULL,
		sample_size INTEGER NOT NULL,
		confidence REAL NOT NULL,
		avg_change_pct REAL NOT NULL,
		direction TEXT NOT NULL,
		days_to_move INTEGER NOT NULL,
		is_immediate INTEGER DEFAULT 0,
		calculated_at DATETIME NOT NULL,
		UNIQUE(stock_id, category),
		FOREIGN KEY (stock_id) REFERENCES stocks(id)
	);

	-- Predictability score history, one row per (stock, score date)
	CREATE TABLE IF NOT EXISTS predictability_scores (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		stock_id INTEGER NOT NULL,
		information_score INTEGER NOT NULL,
		pattern_score INTEGER NOT NULL,
		timing_score INTEGER NOT NULL,
		direction_score INTEGER NOT NULL,
		overall_score INTEGER NOT NULL,
		predicted_direction TEXT NOT NULL,
		magnitude_low REAL NOT NULL,
		magnitude_high REAL NOT NULL,
		timing_days INTEGER NOT NULL,
		win_rate REAL NOT NULL,
		sample_size INTEGER NOT NULL,
		confidence REAL NOT NULL,
		score_date DATETIME NOT NULL,
		is_current INTEGER DEFAULT 0,
		calculated_at DATETIME NOT NULL,
		UNIQUE(stock_id, score_date),
		FOREIGN KEY (stock_id) REFERENCES stocks(id)
	);

	-- Sync status table
	CREATE TABLE IF NOT EXISTS sync_status (
		data_type TEXT PRIMARY KEY,
		last_sync DATETIME NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Create indexes for performance
	CREATE INDEX IF NOT EXISTS idx_stocks_ticker ON stocks(ticker);
	CREATE INDEX IF NOT EXISTS idx_stocks_status ON stocks(analysis_status);
	CREATE INDEX IF NOT EXISTS idx_events_stock ON news_events(stock_id);
	CREATE INDEX IF NOT EXISTS idx_events_date ON news_events(event_date);
	CREATE INDEX IF NOT EXISTS idx_events_category ON news_events(category);
	CREATE INDEX IF NOT EXISTS idx_events_hash ON news_events(stock_id, content_hash);
	CREATE INDEX IF NOT EXISTS idx_prices_date ON stock_prices(date);
	CREATE INDEX IF NOT EXISTS idx_correlations_stock ON event_correlations(stock_id);
	CREATE INDEX IF NOT EXISTS idx_scores_stock ON predictability_scores(stock_id);
	CREATE INDEX IF NOT EXISTS idx_scores_current ON predictability_scores(is_current);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Stocks Methods
// ============================================================================

// SaveStock inserts a new stock or updates an existing one. On insert the
// generated ID is written back to the stock.
func (s *SQLiteStore) SaveStock(ctx context.Context, stock *models.Stock) error {
	now := time.Now().UTC()
	if stock.CreatedAt.IsZero() {
		stock.CreatedAt = now
	}
	stock.UpdatedAt = now
	if stock.AnalysisStatus == "" {
		stock.AnalysisStatus = models.AnalysisPending
	}
	isActive := 0
	if stock.IsActive {
		isActive = 1
	}

	if stock.ID == 0 {
		result, err := s.db.ExecContext(ctx, `
			INSERT INTO stocks (ticker, company_name, market, sector, industry, is_active, analysis_status, last_price_updated_at, last_news_updated_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, stock.Ticker, stock.CompanyName, stock.Market, stock.Sector, stock.Industry, isActive, stock.AnalysisStatus, stock.LastPriceUpdatedAt, stock.LastNewsUpdatedAt, stock.CreatedAt, stock.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert stock: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read stock id: %w", err)
		}
		stock.ID = id
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE stocks SET ticker = ?, company_name = ?, market = ?, sector = ?, industry = ?, is_active = ?, analysis_status = ?, last_price_updated_at = ?, last_news_updated_at = ?, updated_at = ?
		WHERE id = ?
	`, stock.Ticker, stock.CompanyName, stock.Market, stock.Sector, stock.Industry, isActive, stock.AnalysisStatus, stock.LastPriceUpdatedAt, stock.LastNewsUpdatedAt, stock.UpdatedAt, stock.ID)
	if err != nil {
		return fmt.Errorf("failed to update stock: %w", err)
	}
	return nil
}

// GetStock retrieves a stock by ID.
func (s *SQLiteStore) GetStock(ctx context.Context, id int64) (*models.Stock, error) {
	var st models.Stock
	var isActive int
	err := s.db.QueryRowContext(ctx, `
		SELECT id, ticker, company_name, market, sector, industry, is_active, analysis_status, last_price_updated_at, last_news_updated_at, created_at, updated_at
		FROM stocks WHERE id = ?
	`, id).Scan(&st.ID, &st.Ticker, &st.CompanyName, &st.Market, &st.Sector, &st.Industry, &isActive, &st.AnalysisStatus, &st.LastPriceUpdatedAt, &st.LastNewsUpdatedAt, &st.CreatedAt, &st.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("stock id %d: %w", id, apperrors.ErrStockNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stock: %w", err)
	}
	st.IsActive = isActive == 1
	return &st, nil
}

// GetStockByTicker retrieves a stock by its ticker symbol.
func (s *SQLiteStore) GetStockByTicker(ctx context.Context, ticker string) (*models.Stock, error) {
	var st models.Stock
	var isActive int
	err := s.db.QueryRowContext(ctx, `
		SELECT id, ticker, company_name, market, sector, industry, is_active, analysis_status, last_price_updated_at, last_news_updated_at, created_at, updated_at
		FROM stocks WHERE ticker = ?
	`, ticker).Scan(&st.ID, &st.Ticker, &st.CompanyName, &st.Market, &st.Sector, &st.Industry, &isActive, &st.AnalysisStatus, &st.LastPriceUpdatedAt, &st.LastNewsUpdatedAt, &st.CreatedAt, &st.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("ticker %s: %w", ticker, apperrors.ErrStockNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stock by ticker: %w", err)
	}
	st.IsActive = isActive == 1
	return &st, nil
}

// ListStocks retrieves stocks matching the filter.
func (s *SQLiteStore) ListStocks(ctx context.Context, filter StockFilter) ([]models.Stock, error) {
	query := "SELECT id, ticker, company_name, market, sector, industry, is_active, analysis_status, last_price_updated_at, last_news_updated_at, created_at, updated_at FROM stocks WHERE 1=1"
	args := []interface{}{}

	if filter.Market != "" {
		query += " AND market = ?"
		args = append(args, filter.Market)
	}
	if filter.Sector != "" {
		query += " AND sector = ?"
		args = append(args, filter.Sector)
	}
	if filter.Status != "" {
		query += " AND analysis_status = ?"
		args = append(args, filter.Status)
	}
	if filter.ActiveOnly {
		query += " AND is_active = 1"
	}

	query += " ORDER BY ticker ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query stocks: %w", err)
	}
	defer rows.Close()

	var stocks []models.Stock
	for rows.Next() {
		var st models.Stock
		var isActive int
		if err := rows.Scan(&st.ID, &st.Ticker, &st.CompanyName, &st.Market, &st.Sector, &st.Industry, &isActive, &st.AnalysisStatus, &st.LastPriceUpdatedAt, &st.LastNewsUpdatedAt, &st.CreatedAt, &st.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stock: %w", err)
		}
		st.IsActive = isActive == 1
		stocks = append(stocks, st)
	}

	return stocks, rows.Err()
}

// UpdateAnalysisStatus updates the analysis lifecycle state of a stock.
func (s *SQLiteStore) UpdateAnalysisStatus(ctx context.Context, stockID int64, status models.AnalysisStatus) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE stocks SET analysis_status = ?, updated_at = ? WHERE id = ?
	`, status, time.Now().UTC(), stockID)
	if err != nil {
		return fmt.Errorf("failed to update analysis status: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("stock id %d: %w", stockID, apperrors.ErrStockNotFound)
	}

	return nil
}

// MarkPricesSynced records when a stock's price data was last refreshed.
func (s *SQLiteStore) MarkPricesSynced(ctx context.Context, stockID int64, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE stocks SET last_price_updated_at = ?, updated_at = ? WHERE id = ?
	`, at, time.Now().UTC(), stockID)
	if err != nil {
		return fmt.Errorf("failed to mark prices synced: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("stock id %d: %w", stockID, apperrors.ErrStockNotFound)
	}

	return nil
}

// MarkNewsSynced records when a stock's news was last fetched.
func (s *SQLiteStore) MarkNewsSynced(ctx context.Context, stockID int64, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE stocks SET last_news_updated_at = ?, updated_at = ? WHERE id = ?
	`, at, time.Now().UTC(), stockID)
	if err != nil {
		return fmt.Errorf("failed to mark news synced: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("stock id %d: %w", stockID, apperrors.ErrStockNotFound)
	}

	return nil
}

// ============================================================================
// News Events Methods
// ============================================================================

// SaveEvents inserts news events in one transaction. Generated IDs are
// written back to the slice elements.
func (s *SQLiteStore) SaveEvents(ctx context.Context, events []models.NewsEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO news_events (stock_id, headline, content, event_date, url, category, category_confidence, sentiment_score, sentiment_category, source_name, source_quality, content_hash, is_duplicate, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i := range events {
		e := &events[i]
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		e.UpdatedAt = now
		isDuplicate := 0
		if e.IsDuplicate {
			isDuplicate = 1
		}

		result, err := stmt.ExecContext(ctx, e.StockID, e.Headline, e.Content, e.EventDate, e.URL, e.Category, e.CategoryConfidence, e.SentimentScore, e.SentimentCategory, e.SourceName, e.SourceQuality, e.ContentHash, isDuplicate, e.CreatedAt, e.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert news event: %w", err)
		}
		if id, err := result.LastInsertId(); err == nil {
			e.ID = id
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetEvents retrieves news events matching the filter, newest first.
func (s *SQLiteStore) GetEvents(ctx context.Context, filter EventFilter) ([]models.NewsEvent, error) {
	query := "SELECT id, stock_id, headline, content, event_date, url, category, category_confidence, sentiment_score, sentiment_category, source_name, source_quality, content_hash, is_duplicate, created_at, updated_at FROM news_events WHERE 1=1"
	args := []interface{}{}

	if filter.StockID != 0 {
		query += " AND stock_id = ?"
		args = append(args, filter.StockID)
	}
	if filter.Category != "" {
		query += " AND category = ?"
		args = append(args, filter.Category)
	}
	if !filter.StartDate.IsZero() {
		query += " AND event_date >= ?"
		args = append(args, filter.StartDate)
	}
	if !filter.EndDate.IsZero() {
		query += " AND event_date <= ?"
		args = append(args, filter.EndDate)
	}
	if filter.Unanalyzed {
		query += " AND sentiment_category = ''"
	}
	if !filter.IncludeDuplicates {
		query += " AND is_duplicate = 0"
	}

	query += " ORDER BY event_date DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query news events: %w", err)
	}
	defer rows.Close()

	var events []models.NewsEvent
	for rows.Next() {
		var e models.NewsEvent
		var isDuplicate int
		if err := rows.Scan(&e.ID, &e.StockID, &e.Headline, &e.Content, &e.EventDate, &e.URL, &e.Category, &e.CategoryConfidence, &e.SentimentScore, &e.SentimentCategory, &e.SourceName, &e.SourceQuality, &e.ContentHash, &isDuplicate, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan news event: %w", err)
		}
		e.IsDuplicate = isDuplicate == 1
		events = append(events, e)
	}

	return events, rows.Err()
}

// UpdateEventAnalysis writes the categorization and sentiment results of the
// given events in one transaction.
func (s *SQLiteStore) UpdateEventAnalysis(ctx context.Context, events []models.NewsEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		UPDATE news_events SET category = ?, category_confidence = ?, sentiment_score = ?, sentiment_category = ?, updated_at = ?
		WHERE id = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, e := range events {
		if _, err := stmt.ExecContext(ctx, e.Category, e.CategoryConfidence, e.SentimentScore, e.SentimentCategory, now, e.ID); err != nil {
			return fmt.Errorf("failed to update news event %d: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// HasContentHash reports whether a stock already has an event with the given
// content hash.
func (s *SQLiteStore) HasContentHash(ctx context.Context, stockID int64, hash string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM news_events WHERE stock_id = ? AND content_hash = ? LIMIT 1
	`, stockID, hash).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check content hash: %w", err)
	}
	return true, nil
}

// ============================================================================
// Prices Methods
// ============================================================================

// SavePrices saves daily bars to the database. Dates are truncated to their
// UTC calendar day; an existing bar for the same day is replaced.
func (s *SQLiteStore) SavePrices(ctx context.Context, bars []models.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO stock_prices (stock_id, date, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		_, err := stmt.ExecContext(ctx, b.StockID, models.Day(b.Date), b.Open, b.High, b.Low, b.Close, b.Volume)
		if err != nil {
			return fmt.Errorf("failed to insert price bar: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetPrices retrieves daily bars between from and to inclusive, oldest first.
// Bounds are truncated to whole calendar days.
func (s *SQLiteStore) GetPrices(ctx context.Context, stockID int64, from, to time.Time) ([]models.PriceBar, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT stock_id, date, open, high, low, close, volume
		FROM stock_prices
		WHERE stock_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`, stockID, models.Day(from), models.Day(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query prices: %w", err)
	}
	defer rows.Close()

	var bars []models.PriceBar
	for rows.Next() {
		var b models.PriceBar
		if err := rows.Scan(&b.StockID, &b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan price bar: %w", err)
		}
		bars = append(bars, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prices: %w", err)
	}

	return bars, nil
}

// GetPriceFreshness returns the date of the most recent bar for a stock.
// The bare column is selected so the driver keeps its datetime decltype;
// MAX(date) would come back as text.
func (s *SQLiteStore) GetPriceFreshness(ctx context.Context, stockID int64) (time.Time, error) {
	var latest time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT date FROM stock_prices WHERE stock_id = ? ORDER BY date DESC LIMIT 1
	`, stockID).Scan(&latest)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get price freshness: %w", err)
	}
	return latest, nil
}

// ============================================================================
// Correlations Methods
// ============================================================================

// ReplaceCorrelations atomically replaces all correlation records for a
// stock. An empty slice clears them. Generated IDs and the stock ID are
// written back to the slice elements.
func (s *SQLiteStore) ReplaceCorrelations(ctx context.Context, stockID int64, records []models.CorrelationRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM event_correlations WHERE stock_id = ?`, stockID); err != nil {
		return fmt.Errorf("failed to clear correlations: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO event_correlations (stock_id, category, same_day, next_day, lagged, win_rate, sample_size, confidence, avg_change_pct, direction, days_to_move, is_immediate, calculated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i := range records {
		r := &records[i]
		r.StockID = stockID
		if r.CalculatedAt.IsZero() {
			r.CalculatedAt = now
		}
		sameDay, _ := json.Marshal(r.SameDay)
		nextDay, _ := json.Marshal(r.NextDay)
		lagged, _ := json.Marshal(r.Lagged)
		isImmediate := 0
		if r.IsImmediate {
			isImmediate = 1
		}

		result, err := stmt.ExecContext(ctx, stockID, r.Category, string(sameDay), string(nextDay), string(lagged), r.WinRate, r.SampleSize, r.Confidence, r.AvgChangePct, r.Direction, r.DaysToMove, isImmediate, r.CalculatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert correlation record: %w", err)
		}
		if id, err := result.LastInsertId(); err == nil {
			r.ID = id
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetCorrelations retrieves the correlation records of a stock in insertion
// order.
func (s *SQLiteStore) GetCorrelations(ctx context.Context, stockID int64) ([]models.CorrelationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, stock_id, category, same_day, next_day, lagged, win_rate, sample_size, confidence, avg_change_pct, direction, days_to_move, is_immediate, calculated_at
		FROM event_correlations WHERE stock_id = ? ORDER BY id ASC
	`, stockID)
	if err != nil {
		return nil, fmt.Errorf("failed to query correlations: %w", err)
	}
	defer rows.Close()

	var records []models.CorrelationRecord
	for rows.Next() {
		var r models.CorrelationRecord
		var sameDayJSON, nextDayJSON, laggedJSON string
		var isImmediate int
		if err := rows.Scan(&r.ID, &r.StockID, &r.Category, &sameDayJSON, &nextDayJSON, &laggedJSON, &r.WinRate, &r.SampleSize, &r.Confidence, &r.AvgChangePct, &r.Direction, &r.DaysToMove, &isImmediate, &r.CalculatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan correlation record: %w", err)
		}
		json.Unmarshal([]byte(sameDayJSON), &r.SameDay)
		json.Unmarshal([]byte(nextDayJSON), &r.NextDay)
		json.Unmarshal([]byte(laggedJSON), &r.Lagged)
		r.IsImmediate = isImmediate == 1
		records = append(records, r)
	}

	return records, rows.Err()
}

// ============================================================================
// Predictability Methods
// ============================================================================

// UpsertPredictability stores a predictability record as the current one for
// its stock. A record for the same score date is replaced; older records are
// superseded but kept. The generated ID is written back.
func (s *SQLiteStore) UpsertPredictability(ctx context.Context, record *models.PredictabilityRecord) error {
	if record.CalculatedAt.IsZero() {
		record.CalculatedAt = time.Now().UTC()
	}
	record.ScoreDate = models.Day(record.ScoreDate)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE predictability_scores SET is_current = 0 WHERE stock_id = ?
	`, record.StockID); err != nil {
		return fmt.Errorf("failed to supersede predictability scores: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO predictability_scores (stock_id, information_score, pattern_score, timing_score, direction_score, overall_score, predicted_direction, magnitude_low, magnitude_high, timing_days, win_rate, sample_size, confidence, score_date, is_current, calculated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
	`, record.StockID, record.InformationScore, record.PatternScore, record.TimingScore, record.DirectionScore, record.OverallScore, record.Prediction.Direction, record.Prediction.MagnitudeLow, record.Prediction.MagnitudeHigh, record.Prediction.TimingDays, record.Prediction.WinRate, record.SampleSize, record.Confidence, record.ScoreDate, record.CalculatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert predictability score: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		record.ID = id
	}
	record.IsCurrent = true

	return nil
}

// GetCurrentPredictability retrieves the current predictability record for a
// stock.
func (s *SQLiteStore) GetCurrentPredictability(ctx context.Context, stockID int64) (*models.PredictabilityRecord, error) {
	var r models.PredictabilityRecord
	var isCurrent int
	err := s.db.QueryRowContext(ctx, `
		SELECT id, stock_id, information_score, pattern_score, timing_score, direction_score, overall_score, predicted_direction, magnitude_low, magnitude_high, timing_days, win_rate, sample_size, confidence, score_date, is_current, calculated_at
		FROM predictability_scores WHERE stock_id = ? AND is_current = 1
	`, stockID).Scan(&r.ID, &r.StockID, &r.InformationScore, &r.PatternScore, &r.TimingScore, &r.DirectionScore, &r.OverallScore, &r.Prediction.Direction, &r.Prediction.MagnitudeLow, &r.Prediction.MagnitudeHigh, &r.Prediction.TimingDays, &r.Prediction.WinRate, &r.SampleSize, &r.Confidence, &r.ScoreDate, &isCurrent, &r.CalculatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no predictability score for stock %d: %w", stockID, apperrors.ErrDataNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get predictability score: %w", err)
	}
	r.IsCurrent = isCurrent == 1
	return &r, nil
}

// GetPredictabilityHistory retrieves score history for a stock, newest first.
func (s *SQLiteStore) GetPredictabilityHistory(ctx context.Context, stockID int64, limit int) ([]models.PredictabilityRecord, error) {
	query := `
		SELECT id, stock_id, information_score, pattern_score, timing_score, direction_score, overall_score, predicted_direction, magnitude_low, magnitude_high, timing_days, win_rate, sample_size, confidence, score_date, is_current, calculated_at
		FROM predictability_scores WHERE stock_id = ? ORDER BY score_date DESC
	`
	args := []interface{}{stockID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictability history: %w", err)
	}
	defer rows.Close()

	return scanPredictabilityRows(rows)
}

// ListCurrentPredictability retrieves the current record of every scored
// stock, highest overall score first.
func (s *SQLiteStore) ListCurrentPredictability(ctx context.Context, limit int) ([]models.PredictabilityRecord, error) {
	query := `
		SELECT id, stock_id, information_score, pattern_score, timing_score, direction_score, overall_score, predicted_direction, magnitude_low, magnitude_high, timing_days, win_rate, sample_size, confidence, score_date, is_current, calculated_at
		FROM predictability_scores WHERE is_current = 1 ORDER BY overall_score DESC, stock_id ASC
	`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query current predictability: %w", err)
	}
	defer rows.Close()

	return scanPredictabilityRows(rows)
}

func scanPredictabilityRows(rows *sql.Rows) ([]models.PredictabilityRecord, error) {
	var records []models.PredictabilityRecord
	for rows.Next() {
		var r models.PredictabilityRecord
		var isCurrent int
		if err := rows.Scan(&r.ID, &r.StockID, &r.InformationScore, &r.PatternScore, &r.TimingScore, &r.DirectionScore, &r.OverallScore, &r.Prediction.Direction, &r.Prediction.MagnitudeLow, &r.Prediction.MagnitudeHigh, &r.Prediction.TimingDays, &r.Prediction.WinRate, &r.SampleSize, &r.Confidence, &r.ScoreDate, &isCurrent, &r.CalculatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan predictability record: %w", err)
		}
		r.IsCurrent = isCurrent == 1
		records = append(records, r)
	}
	return records, rows.Err()
}

// ============================================================================
// Sync Methods
// ============================================================================

// GetLastSync returns the last sync time for a data type.
func (s *SQLiteStore) GetLastSync(dataType string) time.Time {
	s.mu.RLock()
	if t, ok := s.syncTimes[dataType]; ok {
		s.mu.RUnlock()
		return t
	}
	s.mu.RUnlock()

	var lastSync time.Time
	err := s.db.QueryRow(`
		SELECT last_sync FROM sync_status WHERE data_type = ?
	`, dataType).Scan(&lastSync)
	if err != nil {
		return time.Time{}
	}

	s.mu.Lock()
	s.syncTimes[dataType] = lastSync
	s.mu.Unlock()

	return lastSync
}

// SetLastSync sets the last sync time for a data type.
func (s *SQLiteStore) SetLastSync(dataType string, t time.Time) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO sync_status (data_type, last_sync, updated_at)
		VALUES (?, ?, ?)
	`, dataType, t, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set last sync: %w", err)
	}

	s.mu.Lock()
	s.syncTimes[dataType] = t
	s.mu.Unlock()

	return nil
}
