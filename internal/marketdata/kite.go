package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	apperrors "stock-predictor/internal/errors"
	"stock-predictor/internal/models"
	"stock-predictor/pkg/utils"
)

// KiteConfig holds configuration for the Kite Connect price source.
type KiteConfig struct {
	APIKey      string
	APISecret   string
	AccessToken string
	SessionPath string
}

// KiteSource fetches daily candles from Zerodha Kite Connect.
type KiteSource struct {
	client        *kiteconnect.Client
	apiKey        string
	apiSecret     string
	sessionPath   string
	authenticated bool
	retry         utils.RetryConfig

	// instrument tokens keyed by "EXCHANGE:SYMBOL"
	tokens map[string]uint32
	mu     sync.RWMutex
}

var _ PriceSource = (*KiteSource)(nil)

// NewKiteSource creates a Kite Connect source. A configured access token
// takes precedence; otherwise any persisted session is loaded.
func NewKiteSource(cfg KiteConfig) *KiteSource {
	client := kiteconnect.New(cfg.APIKey)

	sessionPath := cfg.SessionPath
	if sessionPath == "" {
		homeDir, _ := os.UserHomeDir()
		sessionPath = filepath.Join(homeDir, ".config", "stock-predictor", "session.json")
	}

	k := &KiteSource{
		client:      client,
		apiKey:      cfg.APIKey,
		apiSecret:   cfg.APISecret,
		sessionPath: sessionPath,
		retry:       utils.DefaultRetryConfig(),
		tokens:      make(map[string]uint32),
	}

	if cfg.AccessToken != "" {
		k.client.SetAccessToken(cfg.AccessToken)
		k.authenticated = true
		return k
	}

	_ = k.loadSession()

	return k
}

// sessionData represents a persisted Kite session.
type sessionData struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// LoginURL returns the Kite OAuth URL the operator must visit.
func (k *KiteSource) LoginURL() string {
	return k.client.GetLoginURL()
}

// CompleteLogin exchanges the OAuth request token for an access token and
// persists the session.
func (k *KiteSource) CompleteLogin(ctx context.Context, requestToken string) error {
	session, err := k.client.GenerateSession(requestToken, k.apiSecret)
	if err != nil {
		return fmt.Errorf("failed to generate session: %w", err)
	}

	k.mu.Lock()
	k.client.SetAccessToken(session.AccessToken)
	k.authenticated = true
	k.mu.Unlock()

	if err := k.saveSession(session.AccessToken); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}

	return nil
}

// Logout invalidates the access token and removes the persisted session.
func (k *KiteSource) Logout(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.authenticated {
		if _, err := k.client.InvalidateAccessToken(); err != nil {
			return fmt.Errorf("failed to invalidate token: %w", err)
		}
	}
	k.authenticated = false

	if err := os.Remove(k.sessionPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}

	return nil
}

// IsAuthenticated reports whether a usable session is loaded.
func (k *KiteSource) IsAuthenticated() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.authenticated
}

// FetchDaily fetches daily OHLCV bars for the stock, normalized to
// midnight-UTC calendar days.
func (k *KiteSource) FetchDaily(ctx context.Context, stock *models.Stock, from, to time.Time) ([]models.PriceBar, error) {
	if !k.IsAuthenticated() {
		return nil, apperrors.ErrNotAuthenticated
	}

	token, err := k.instrumentToken(ctx, stock)
	if err != nil {
		return nil, apperrors.NewFetchError("kite", stock.Ticker, err)
	}

	data, err := utils.RetryWithResult(ctx, k.retry, func() ([]kiteconnect.HistoricalData, error) {
		return k.client.GetHistoricalData(int(token), "day", from, to, false, false)
	})
	if err != nil {
		return nil, apperrors.NewFetchError("kite", stock.Ticker, fmt.Errorf("historical data: %w", err))
	}

	bars := make([]models.PriceBar, len(data))
	for i, d := range data {
		bars[i] = models.PriceBar{
			StockID: stock.ID,
			Date:    models.Day(d.Date.Time),
			Open:    d.Open,
			High:    d.High,
			Low:     d.Low,
			Close:   d.Close,
			Volume:  int64(d.Volume),
		}
	}

	return ClosedBars(bars, time.Now()), nil
}

// ClosedBars drops a trailing bar for the session still in progress at now.
// A partial bar must not be persisted: the append watermark would skip the
// day on the next sync and the provisional values would stick.
func ClosedBars(bars []models.PriceBar, now time.Time) []models.PriceBar {
	if len(bars) == 0 {
		return bars
	}
	ist := now.In(utils.IndiaLocation)
	if !ist.Before(utils.MarketClose(ist)) {
		return bars
	}
	last := bars[len(bars)-1].Date
	if last.Year() == ist.Year() && last.Month() == ist.Month() && last.Day() == ist.Day() {
		return bars[:len(bars)-1]
	}
	return bars
}

func (k *KiteSource) instrumentToken(ctx context.Context, stock *models.Stock) (uint32, error) {
	key := fmt.Sprintf("%s:%s", stock.Market, stock.Ticker)

	k.mu.RLock()
	token, ok := k.tokens[key]
	k.mu.RUnlock()
	if ok {
		return token, nil
	}

	// Refresh the token cache from the full instrument dump.
	instruments, err := k.client.GetInstruments()
	if err != nil {
		return 0, fmt.Errorf("failed to get instruments: %w", err)
	}

	k.mu.Lock()
	for _, inst := range instruments {
		if inst.Exchange != string(stock.Market) {
			continue
		}
		k.tokens[fmt.Sprintf("%s:%s", inst.Exchange, inst.Tradingsymbol)] = uint32(inst.InstrumentToken)
	}
	token, ok = k.tokens[key]
	k.mu.Unlock()

	if !ok {
		return 0, fmt.Errorf("instrument not found: %s", stock.Ticker)
	}

	return token, nil
}

func (k *KiteSource) loadSession() error {
	data, err := os.ReadFile(k.sessionPath)
	if err != nil {
		return err
	}

	var session sessionData
	if err := json.Unmarshal(data, &session); err != nil {
		return err
	}

	if time.Now().After(session.ExpiresAt) {
		return fmt.Errorf("session expired")
	}

	k.mu.Lock()
	k.client.SetAccessToken(session.AccessToken)
	k.authenticated = true
	k.mu.Unlock()

	return nil
}

func (k *KiteSource) saveSession(accessToken string) error {
	dir := filepath.Dir(k.sessionPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	session := sessionData{
		AccessToken: accessToken,
		// Kite access tokens expire at 6 AM IST the next day.
		ExpiresAt: utils.NextSessionExpiry(time.Now()),
	}

	data, err := json.Marshal(session)
	if err != nil {
		return err
	}

	return os.WriteFile(k.sessionPath, data, 0600)
}
