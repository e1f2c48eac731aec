package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"stock-news/pkg/domain"
	"stock-news/pkg/sources"
)

// Defaults for the orchestrator.
const (
	DefaultStockPause   = 2 * time.Second
	DefaultStoreTimeout = 10 * time.Second
)

// ContentProcessor turns a candidate into a scored record ready to persist.
type ContentProcessor interface {
	ProcessContent(ctx context.Context, candidate domain.NewsCandidate) (*domain.NewsRecord, error)
}

// ContentSaver persists a record. It reports false without error when the URL
// is already stored.
type ContentSaver interface {
	SaveNews(ctx context.Context, record *domain.NewsRecord) (bool, error)
}

// StockLister lists the tracked stocks.
type StockLister interface {
	ListStocks(ctx context.Context) ([]domain.Stock, error)
}

// InsertHook is called after each successful insert.
type InsertHook func(ctx context.Context, record *domain.NewsRecord)

// Config wires an Orchestrator.
type Config struct {
	Market    sources.MarketSource
	Tickers   []sources.TickerSource
	Stocks    StockLister
	Processor ContentProcessor
	Saver     ContentSaver

	// OnInsert is optional.
	OnInsert InsertHook

	// StockPause zero uses DefaultStockPause; negative disables the pause.
	StockPause   time.Duration
	StoreTimeout time.Duration
	Sleep        sources.SleepFunc
	Logger       *slog.Logger
}

// RunStats is the outcome of one run.
type RunStats struct {
	Added      int
	Candidates int
	Failed     int
	PerStock   map[string]int
}

// Orchestrator runs one ingestion pass: market news first, then every
// tracked stock in order, one candidate at a time.
type Orchestrator struct {
	market       sources.MarketSource
	tickers      []sources.TickerSource
	stocks       StockLister
	processor    ContentProcessor
	saver        ContentSaver
	onInsert     InsertHook
	stockPause   time.Duration
	storeTimeout time.Duration
	sleep        sources.SleepFunc
	logger       *slog.Logger
}

// NewOrchestrator creates an orchestrator. A nil Market is skipped.
func NewOrchestrator(cfg Config) *Orchestrator {
	switch {
	case cfg.StockPause == 0:
		cfg.StockPause = DefaultStockPause
	case cfg.StockPause < 0:
		cfg.StockPause = 0
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = DefaultStoreTimeout
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sources.ContextSleep
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Orchestrator{
		market:       cfg.Market,
		tickers:      cfg.Tickers,
		stocks:       cfg.Stocks,
		processor:    cfg.Processor,
		saver:        cfg.Saver,
		onInsert:     cfg.OnInsert,
		stockPause:   cfg.StockPause,
		storeTimeout: cfg.StoreTimeout,
		sleep:        cfg.Sleep,
		logger:       cfg.Logger.With("component", "orchestrator"),
	}
}

// Run executes one pass and returns the number of records inserted.
func (o *Orchestrator) Run(ctx context.Context) (int, error) {
	stats, err := o.RunWithStats(ctx)
	return stats.Added, err
}

// RunWithStats is Run with per-stock detail. The only run-ending error is a
// failure to list stocks (or cancellation); the count so far is still returned.
func (o *Orchestrator) RunWithStats(ctx context.Context) (RunStats, error) {
	stats := RunStats{PerStock: make(map[string]int)}
	start := time.Now()
	o.logger.Info("Orchestrator: run started")

	if o.market != nil {
		candidates := o.fetchMarket(ctx)
		added := o.processCandidates(ctx, candidates, &stats)
		o.logger.Info("Orchestrator: market news processed", "candidates", len(candidates), "added", added)
	}

	stocks, err := o.listStocks(ctx)
	if err != nil {
		o.logger.Error("Orchestrator: failed to list stocks", "error", err, "added", stats.Added)
		return stats, fmt.Errorf("list stocks: %w", err)
	}
	if len(stocks) == 0 {
		o.logger.Info("Orchestrator: no tracked stocks", "added", stats.Added)
		return stats, nil
	}

	for i, stock := range stocks {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		added := 0
		for _, source := range o.tickers {
			candidates := o.fetchForStock(ctx, source, stock)
			added += o.processCandidates(ctx, candidates, &stats)
		}
		stats.PerStock[stock.Ticker] = added
		o.logger.Info("Orchestrator: stock processed", "ticker", stock.Ticker, "position", i+1, "of", len(stocks), "added", added)

		if err := o.sleep(ctx, o.stockPause); err != nil {
			return stats, err
		}
	}

	o.logger.Info("Orchestrator: run finished",
		"added", stats.Added,
		"candidates", stats.Candidates,
		"failed", stats.Failed,
		"duration", time.Since(start).Round(time.Millisecond))
	return stats, nil
}

func (o *Orchestrator) listStocks(ctx context.Context) ([]domain.Stock, error) {
	ctx, cancel := context.WithTimeout(ctx, o.storeTimeout)
	defer cancel()
	return o.stocks.ListStocks(ctx)
}

// fetchMarket treats a panicking adapter as one that found nothing.
func (o *Orchestrator) fetchMarket(ctx context.Context) (candidates []domain.NewsCandidate) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Orchestrator: market source panicked", "panic", r)
			candidates = nil
		}
	}()
	return o.market.FetchMarket(ctx)
}

func (o *Orchestrator) fetchForStock(ctx context.Context, source sources.TickerSource, stock domain.Stock) (candidates []domain.NewsCandidate) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Orchestrator: source panicked", "source", source.Name(), "ticker", stock.Ticker, "panic", r)
			candidates = nil
		}
	}()
	return source.FetchForStock(ctx, stock)
}

func (o *Orchestrator) processCandidates(ctx context.Context, candidates []domain.NewsCandidate, stats *RunStats) int {
	added := 0
	for _, candidate := range candidates {
		if ctx.Err() != nil {
			break
		}
		stats.Candidates++

		inserted, err := o.processCandidate(ctx, candidate)
		if err != nil {
			stats.Failed++
			o.logger.Warn("Orchestrator: candidate failed", "url", candidate.URL, "error", err)
			continue
		}
		if inserted {
			added++
			stats.Added++
		}
	}
	return added
}

func (o *Orchestrator) processCandidate(ctx context.Context, candidate domain.NewsCandidate) (inserted bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			inserted, err = false, fmt.Errorf("panic while processing: %v", r)
		}
	}()

	record, err := o.processor.ProcessContent(ctx, candidate)
	if err != nil {
		return false, fmt.Errorf("process: %w", err)
	}

	saveCtx, cancel := context.WithTimeout(ctx, o.storeTimeout)
	inserted, err = o.saver.SaveNews(saveCtx, record)
	cancel()
	if err != nil {
		return false, fmt.Errorf("save: %w", err)
	}
	if !inserted {
		o.logger.Debug("Orchestrator: duplicate skipped", "url", record.URL)
		return false, nil
	}

	o.logger.Debug("Orchestrator: news added", "url", record.URL, "impact_score", record.ImpactScore, "source", record.Source)
	if o.onInsert != nil {
		o.onInsert(ctx, record)
	}
	return true, nil
}
