// Package sources turns external news providers into news candidates.
//
// Adapters never return errors: a failing provider is logged and yields an
// empty slice. Filters are applied inside each adapter so callers only see
// complete, non-root, not-yet-persisted URLs.
package sources

import (
	"context"
	"log/slog"
	"time"

	"stock-news/pkg/domain"
	"stock-news/pkg/filter"
)

// Default source labels used when a provider does not name the publisher.
const (
	MarketLabel = "Market News"
	YahooLabel  = "Yahoo Finance"
	GoogleLabel = "Google News"
)

// MarketSource produces market-wide news attached to the placeholder stock.
type MarketSource interface {
	FetchMarket(ctx context.Context) []domain.NewsCandidate
}

// TickerSource produces news for a single stock.
type TickerSource interface {
	Name() string
	FetchForStock(ctx context.Context, stock domain.Stock) []domain.NewsCandidate
}

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// ContextSleep is the production SleepFunc.
func ContextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// DefaultFilters is the standard chain: complete, non-root, not yet persisted.
func DefaultFilters(checker filter.URLChecker) []filter.Filter {
	return []filter.Filter{
		filter.NewCompleteFilter(),
		filter.NewBaseURLFilter(),
		filter.NewAlreadyPersistedFilter(checker),
	}
}

func applyFilters(ctx context.Context, logger *slog.Logger, candidates []domain.NewsCandidate, filters []filter.Filter) []domain.NewsCandidate {
	if len(candidates) == 0 {
		return nil
	}
	kept, err := filter.FilterCandidates(ctx, candidates, filters...)
	if err != nil {
		logger.Warn("Sources: filter errors, affected candidates dropped", "error", err)
	}
	return kept
}

func labelOr(label, fallback string) string {
	if label == "" {
		return fallback
	}
	return label
}
