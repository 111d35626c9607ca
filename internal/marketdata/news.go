package marketdata

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	apperrors "stock-predictor/internal/errors"
	"stock-predictor/internal/models"
)

const (
	defaultNewsTimeout = 30 * time.Second
	defaultNewsRate    = 2.0
	scraperUserAgent   = "Mozilla/5.0 (compatible; stock-predictor/1.0)"
)

// Scraper fetches headline feeds over HTTP and extracts news events.
// Feeds are polled politely: one shared rate limiter paces all requests.
type Scraper struct {
	feeds   []Feed
	client  *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

var _ NewsSource = (*Scraper)(nil)

// NewScraper creates a scraper over the given feeds.
func NewScraper(feeds []Feed, ratePerSecond float64, timeout time.Duration, logger zerolog.Logger) *Scraper {
	if ratePerSecond <= 0 {
		ratePerSecond = defaultNewsRate
	}
	if timeout <= 0 {
		timeout = defaultNewsTimeout
	}
	burst := int(ratePerSecond)
	if burst < 1 {
		burst = 1
	}

	return &Scraper{
		feeds:   feeds,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
		logger:  logger,
	}
}

// FetchHeadlines scrapes every feed for the stock and returns events
// published at or after since. A failing feed is logged and skipped; the
// call fails only when every feed fails.
func (s *Scraper) FetchHeadlines(ctx context.Context, stock *models.Stock, since time.Time) ([]models.NewsEvent, error) {
	var events []models.NewsEvent
	failed := 0

	for _, feed := range s.feeds {
		if err := s.limiter.Wait(ctx); err != nil {
			return events, err
		}

		items, err := s.fetchFeed(ctx, feed, stock)
		if err != nil {
			failed++
			s.logger.Warn().Err(err).
				Str("feed", feed.Name).
				Str("ticker", stock.Ticker).
				Msg("Feed fetch failed")
			continue
		}

		for _, e := range items {
			if e.EventDate.Before(since) {
				continue
			}
			events = append(events, e)
		}
	}

	if len(s.feeds) > 0 && failed == len(s.feeds) {
		return nil, apperrors.NewFetchError("news", stock.Ticker, fmt.Errorf("all %d feeds failed", failed))
	}

	return events, nil
}

func (s *Scraper) fetchFeed(ctx context.Context, feed Feed, stock *models.Stock) ([]models.NewsEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL(feed.URL, stock), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", scraperUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, apperrors.ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	return s.parseFeed(doc, feed, stock, resp.Request.URL), nil
}

// parseFeed extracts headline items. Story cards come from <article>
// elements; pages without them fall back to headline anchors.
func (s *Scraper) parseFeed(doc *goquery.Document, feed Feed, stock *models.Stock, base *url.URL) []models.NewsEvent {
	var events []models.NewsEvent
	seen := make(map[string]bool)

	doc.Find("article").Each(func(_ int, sel *goquery.Selection) {
		event, ok := s.extractItem(sel, feed, stock, base)
		if ok && !seen[event.ContentHash] {
			seen[event.ContentHash] = true
			events = append(events, event)
		}
	})

	if len(events) == 0 {
		doc.Find("h2 a, h3 a").Each(func(_ int, a *goquery.Selection) {
			headline := strings.TrimSpace(a.Text())
			if headline == "" {
				return
			}
			event := models.NewsEvent{
				StockID:       stock.ID,
				Headline:      headline,
				EventDate:     time.Now().UTC(),
				URL:           resolveHref(a, base),
				SourceName:    feed.Name,
				SourceQuality: feed.Quality,
				ContentHash:   ContentHash(headline, ""),
			}
			if !seen[event.ContentHash] {
				seen[event.ContentHash] = true
				events = append(events, event)
			}
		})
	}

	return events
}

func (s *Scraper) extractItem(sel *goquery.Selection, feed Feed, stock *models.Stock, base *url.URL) (models.NewsEvent, bool) {
	headline := strings.TrimSpace(sel.Find("h1, h2, h3, .headline").First().Text())
	if headline == "" {
		return models.NewsEvent{}, false
	}
	summary := strings.TrimSpace(sel.Find("p, .summary").First().Text())

	eventDate := time.Now().UTC()
	if dt, exists := sel.Find("time").First().Attr("datetime"); exists {
		if parsed, err := parseEventTime(dt); err == nil {
			eventDate = parsed
		}
	}

	return models.NewsEvent{
		StockID:       stock.ID,
		Headline:      headline,
		Content:       summary,
		EventDate:     eventDate,
		URL:           resolveHref(sel.Find("a[href]").First(), base),
		SourceName:    feed.Name,
		SourceQuality: feed.Quality,
		ContentHash:   ContentHash(headline, summary),
	}, true
}

// ContentHash fingerprints an article for duplicate suppression. The same
// headline and body always produce the same hash regardless of case and
// surrounding whitespace.
func ContentHash(headline, content string) string {
	input := strings.TrimSpace(strings.ToLower(headline + "||" + content))
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

func feedURL(template string, stock *models.Stock) string {
	return strings.NewReplacer(
		"{ticker}", url.QueryEscape(stock.Ticker),
		"{company}", url.QueryEscape(stock.CompanyName),
	).Replace(template)
}

func resolveHref(a *goquery.Selection, base *url.URL) string {
	href, exists := a.Attr("href")
	if !exists || href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		return base.ResolveReference(ref).String()
	}
	return ref.String()
}

func parseEventTime(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", value)
}
