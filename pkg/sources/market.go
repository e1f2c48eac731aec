package sources

import (
	"context"
	"log/slog"
	"time"

	"stock-news/pkg/domain"
	"stock-news/pkg/filter"
)

// Market index defaults.
var DefaultMarketSymbols = []string{"^GSPC", "^IXIC", "^DJI"}

const (
	DefaultMarketPerSymbol = 3
	DefaultMarketPause     = time.Second
)

// StockLookup finds the stock market-wide news is attached to.
type StockLookup interface {
	FirstStock(ctx context.Context) (*domain.Stock, error)
}

// MarketConfig tunes the market adapter. Zero values use the defaults; a
// negative Pause disables the pause between symbols.
type MarketConfig struct {
	Symbols   []string
	PerSymbol int
	Pause     time.Duration
}

// MarketAdapter fetches index news and attaches it to the placeholder stock.
type MarketAdapter struct {
	stocks    StockLookup
	client    *YahooClient
	symbols   []string
	perSymbol int
	pause     time.Duration
	sleep     SleepFunc
	filters   []filter.Filter
	logger    *slog.Logger
}

// NewMarketAdapter creates the adapter. A nil sleep uses ContextSleep.
func NewMarketAdapter(stocks StockLookup, client *YahooClient, cfg MarketConfig, filters []filter.Filter, sleep SleepFunc, logger *slog.Logger) *MarketAdapter {
	if len(cfg.Symbols) == 0 {
		cfg.Symbols = DefaultMarketSymbols
	}
	if cfg.PerSymbol <= 0 {
		cfg.PerSymbol = DefaultMarketPerSymbol
	}
	switch {
	case cfg.Pause == 0:
		cfg.Pause = DefaultMarketPause
	case cfg.Pause < 0:
		cfg.Pause = 0
	}
	if sleep == nil {
		sleep = ContextSleep
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MarketAdapter{
		stocks:    stocks,
		client:    client,
		symbols:   cfg.Symbols,
		perSymbol: cfg.PerSymbol,
		pause:     cfg.Pause,
		sleep:     sleep,
		filters:   filters,
		logger:    logger.With("component", "market"),
	}
}

// FetchMarket returns filtered market candidates. Without any stock row there
// is nothing to attach them to, so the result is empty.
func (a *MarketAdapter) FetchMarket(ctx context.Context) []domain.NewsCandidate {
	placeholder, err := a.stocks.FirstStock(ctx)
	if err != nil {
		a.logger.Warn("Market: placeholder stock lookup failed", "error", err)
		return nil
	}
	if placeholder == nil {
		a.logger.Info("Market: no stocks configured, skipping market news")
		return nil
	}

	var candidates []domain.NewsCandidate
	for _, symbol := range a.symbols {
		items, err := a.client.SearchNews(ctx, symbol, a.perSymbol)
		if err != nil {
			a.logger.Warn("Market: fetch failed", "symbol", symbol, "error", err)
		}
		for _, item := range items {
			candidates = append(candidates, item.candidate(placeholder.ID, MarketLabel))
		}

		if err := a.sleep(ctx, a.pause); err != nil {
			break
		}
	}

	// The same story is often listed under several indices.
	filters := append([]filter.Filter{filter.NewAlreadySeenFilter()}, a.filters...)
	kept := applyFilters(ctx, a.logger, candidates, filters)
	a.logger.Debug("Market: fetched", "items", len(candidates), "new", len(kept))
	return kept
}
