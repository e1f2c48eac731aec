package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"stock-news/pkg/domain"
	"stock-news/pkg/filter"
	"stock-news/pkg/parser"
)

// DefaultGoogleNewsBaseURL is the Google News RSS search endpoint.
const DefaultGoogleNewsBaseURL = "https://news.google.com/rss/search"

// DefaultGoogleLimit is the number of feed entries kept per ticker.
const DefaultGoogleLimit = 5

// GoogleNewsAdapter is the search adapter: Google News RSS results per ticker.
type GoogleNewsAdapter struct {
	parser  parser.Parser
	baseURL string
	limit   int
	filters []filter.Filter
	now     func() time.Time
	logger  *slog.Logger
}

// NewGoogleNewsAdapter creates the adapter. An empty baseURL uses the public
// endpoint; limit <= 0 uses DefaultGoogleLimit.
func NewGoogleNewsAdapter(p parser.Parser, baseURL string, limit int, filters []filter.Filter, logger *slog.Logger) *GoogleNewsAdapter {
	if baseURL == "" {
		baseURL = DefaultGoogleNewsBaseURL
	}
	if limit <= 0 {
		limit = DefaultGoogleLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GoogleNewsAdapter{
		parser:  p,
		baseURL: baseURL,
		limit:   limit,
		filters: filters,
		now:     time.Now,
		logger:  logger.With("component", "google_news"),
	}
}

func (a *GoogleNewsAdapter) Name() string { return "google_news" }

// SearchURL builds the feed URL for a stock.
func (a *GoogleNewsAdapter) SearchURL(stock domain.Stock) string {
	query := fmt.Sprintf("%s OR %s stock", stock.Ticker, stock.DisplayName())
	return a.baseURL + "?q=" + url.QueryEscape(query) + "&hl=en-US&gl=US&ceid=US:en"
}

// FetchForStock returns filtered candidates for stock, or nil on any failure.
func (a *GoogleNewsAdapter) FetchForStock(ctx context.Context, stock domain.Stock) []domain.NewsCandidate {
	entries, err := a.parser.ParseFromURL(ctx, a.SearchURL(stock))
	if err != nil {
		a.logger.Warn("Google News: fetch failed", "ticker", stock.Ticker, "error", err)
		return nil
	}
	if len(entries) > a.limit {
		entries = entries[:a.limit]
	}

	candidates := make([]domain.NewsCandidate, 0, len(entries))
	for _, entry := range entries {
		published := a.now()
		if entry.Published != nil {
			published = *entry.Published
		}
		candidates = append(candidates, domain.NewsCandidate{
			StockID:     stock.ID,
			Title:       entry.Title,
			URL:         entry.Link,
			RawSummary:  entry.Summary,
			PublishedAt: published,
			SourceLabel: labelOr(entry.Source, GoogleLabel),
		})
	}

	kept := applyFilters(ctx, a.logger, candidates, a.filters)
	a.logger.Debug("Google News: fetched", "ticker", stock.Ticker, "entries", len(entries), "new", len(kept))
	return kept
}
