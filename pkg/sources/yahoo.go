package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"stock-news/pkg/domain"
	"stock-news/pkg/filter"
	"stock-news/pkg/httpclient"
)

// DefaultYahooBaseURL is the Yahoo Finance search endpoint.
const DefaultYahooBaseURL = "https://query1.finance.yahoo.com/v1/finance/search"

// DefaultYahooLimit is the number of items requested per ticker.
const DefaultYahooLimit = 5

// YahooNewsItem is a news entry from the Yahoo Finance search API.
type YahooNewsItem struct {
	UUID                string `json:"uuid"`
	Title               string `json:"title"`
	Publisher           string `json:"publisher"`
	Link                string `json:"link"`
	Summary             string `json:"summary"`
	ProviderPublishTime int64  `json:"providerPublishTime"`
}

type yahooSearchResponse struct {
	News []YahooNewsItem `json:"news"`
}

// YahooClient queries the Yahoo Finance search endpoint for news.
type YahooClient struct {
	client  *httpclient.HTTPClient
	baseURL string
}

// NewYahooClient creates a client. An empty baseURL uses DefaultYahooBaseURL.
func NewYahooClient(client *httpclient.HTTPClient, baseURL string) *YahooClient {
	if client == nil {
		client = httpclient.NewClient(httpclient.BrowserClient)
	}
	if baseURL == "" {
		baseURL = DefaultYahooBaseURL
	}
	return &YahooClient{client: client, baseURL: baseURL}
}

// SearchNews returns up to count news items for symbol.
func (c *YahooClient) SearchNews(ctx context.Context, symbol string, count int) ([]YahooNewsItem, error) {
	params := url.Values{}
	params.Set("q", symbol)
	params.Set("quotesCount", "0")
	params.Set("newsCount", strconv.Itoa(count))

	body, err := c.client.GetBody(ctx, c.baseURL+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("yahoo search %s: %w", symbol, err)
	}

	var resp yahooSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode yahoo search %s: %w", symbol, err)
	}
	if len(resp.News) > count {
		resp.News = resp.News[:count]
	}
	return resp.News, nil
}

func (item YahooNewsItem) candidate(stockID, defaultLabel string) domain.NewsCandidate {
	var published time.Time
	if item.ProviderPublishTime > 0 {
		published = time.Unix(item.ProviderPublishTime, 0).UTC()
	}
	return domain.NewsCandidate{
		StockID:     stockID,
		Title:       item.Title,
		URL:         item.Link,
		RawSummary:  item.Summary,
		PublishedAt: published,
		SourceLabel: labelOr(item.Publisher, defaultLabel),
	}
}

// YahooAdapter is the provider adapter: latest Yahoo Finance items per ticker.
type YahooAdapter struct {
	client  *YahooClient
	limit   int
	filters []filter.Filter
	logger  *slog.Logger
}

// NewYahooAdapter creates the adapter. limit <= 0 uses DefaultYahooLimit.
func NewYahooAdapter(client *YahooClient, limit int, filters []filter.Filter, logger *slog.Logger) *YahooAdapter {
	if limit <= 0 {
		limit = DefaultYahooLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &YahooAdapter{
		client:  client,
		limit:   limit,
		filters: filters,
		logger:  logger.With("component", "yahoo"),
	}
}

func (a *YahooAdapter) Name() string { return "yahoo" }

// FetchForStock returns filtered candidates for stock, or nil on any failure.
func (a *YahooAdapter) FetchForStock(ctx context.Context, stock domain.Stock) []domain.NewsCandidate {
	items, err := a.client.SearchNews(ctx, stock.Ticker, a.limit)
	if err != nil {
		a.logger.Warn("Yahoo: fetch failed", "ticker", stock.Ticker, "error", err)
		return nil
	}

	candidates := make([]domain.NewsCandidate, 0, len(items))
	for _, item := range items {
		candidates = append(candidates, item.candidate(stock.ID, YahooLabel))
	}

	kept := applyFilters(ctx, a.logger, candidates, a.filters)
	a.logger.Debug("Yahoo: fetched", "ticker", stock.Ticker, "items", len(items), "new", len(kept))
	return kept
}
