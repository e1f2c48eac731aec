package replication

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"stock-news/pkg/db"
	"stock-news/pkg/domain"
)

const (
	DefaultBatchSize = 100
	DefaultWorkers   = 5
)

// Source is the store news is copied from.
type Source interface {
	ListStocks(ctx context.Context) ([]domain.Stock, error)
	ListNews(ctx context.Context, filter db.NewsFilter) ([]domain.NewsRecord, error)
}

// Target is the store news is copied into. Its stocks must already exist;
// they are matched to the source by ticker.
type Target interface {
	GetStockByTicker(ctx context.Context, ticker string) (*domain.Stock, error)
	InsertNews(ctx context.Context, record *domain.NewsRecord) (bool, error)
}

// Config wires the replication dependencies.
type Config struct {
	Source    Source
	Target    Target
	BatchSize int
	Workers   int
	Logger    *slog.Logger
}

// Result counts the outcome of a replication.
type Result struct {
	Processed int
	Inserted  int

	// Skipped counts records whose stock has no counterpart in the target.
	Skipped int
}

// Replicator copies news between backends, e.g. from MongoDB into Postgres.
//
// This is a one-shot, "copy everything" flow. Records already present in the
// target (same URL) are left untouched.
type Replicator struct {
	source    Source
	target    Target
	batchSize int
	workers   int
	logger    *slog.Logger
}

func NewReplicator(cfg Config) (*Replicator, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("source store is required")
	}
	if cfg.Target == nil {
		return nil, fmt.Errorf("target store is required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Replicator{
		source:    cfg.Source,
		target:    cfg.Target,
		batchSize: cfg.BatchSize,
		workers:   cfg.Workers,
		logger:    cfg.Logger.With("component", "replication"),
	}, nil
}

// Replicate reads every news record from the source page by page and inserts
// the batches into the target in parallel. It fails fast on the first
// storage error.
func (r *Replicator) Replicate(ctx context.Context) (Result, error) {
	stockIDs, err := r.mapStocks(ctx)
	if err != nil {
		return Result{}, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan []domain.NewsRecord)
	results := make(chan batchResult)

	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batch := range jobs {
				results <- r.processBatch(ctx, batch, stockIDs)
			}
		}()
	}

	readErr := make(chan error, 1)
	go func() {
		defer close(jobs)
		readErr <- r.readBatches(ctx, jobs)
	}()

	// Close results channel when all workers are done
	go func() {
		wg.Wait()
		close(results)
	}()

	var total Result
	var firstErr error
	for res := range results {
		if res.err != nil && firstErr == nil {
			firstErr = res.err
			cancel()
		}
		total.Processed += res.processed
		total.Inserted += res.inserted
		total.Skipped += res.skipped
	}

	if err := <-readErr; err != nil && firstErr == nil && !errors.Is(err, context.Canceled) {
		firstErr = err
	}
	if firstErr != nil {
		return total, firstErr
	}

	r.logger.Info("Replication: complete", "processed", total.Processed, "inserted", total.Inserted, "skipped", total.Skipped)
	return total, nil
}

type batchResult struct {
	processed int
	inserted  int
	skipped   int
	err       error
}

// readBatches pages through the source until a short page.
func (r *Replicator) readBatches(ctx context.Context, jobs chan<- []domain.NewsRecord) error {
	for offset := 0; ; offset += r.batchSize {
		batch, err := r.source.ListNews(ctx, db.NewsFilter{Limit: r.batchSize, Offset: offset})
		if err != nil {
			return fmt.Errorf("read news at offset %d: %w", offset, err)
		}
		if len(batch) > 0 {
			select {
			case jobs <- batch:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if len(batch) < r.batchSize {
			return nil
		}
	}
}

// mapStocks maps source stock IDs to target stock IDs by ticker.
func (r *Replicator) mapStocks(ctx context.Context) (map[string]string, error) {
	stocks, err := r.source.ListStocks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list source stocks: %w", err)
	}

	ids := make(map[string]string, len(stocks))
	for _, s := range stocks {
		target, err := r.target.GetStockByTicker(ctx, s.Ticker)
		if errors.Is(err, db.ErrNotFound) {
			r.logger.Warn("Replication: stock missing in target, its news is skipped", "ticker", s.Ticker)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("look up target stock %s: %w", s.Ticker, err)
		}
		ids[s.ID] = target.ID
	}
	return ids, nil
}

func (r *Replicator) processBatch(ctx context.Context, batch []domain.NewsRecord, stockIDs map[string]string) batchResult {
	res := batchResult{processed: len(batch)}
	for i := range batch {
		record := batch[i]
		if record.StockID != "" {
			targetID, ok := stockIDs[record.StockID]
			if !ok {
				res.skipped++
				continue
			}
			record.StockID = targetID
		}
		record.Stock = nil
		// SQL backends key news by uuid; Mongo documents may carry other ids.
		if _, err := uuid.Parse(record.ID); err != nil {
			record.ID = uuid.NewString()
		}

		inserted, err := r.target.InsertNews(ctx, &record)
		if err != nil {
			res.err = fmt.Errorf("insert news url=%q: %w", record.URL, err)
			return res
		}
		if inserted {
			res.inserted++
		}
	}
	r.logger.Debug("Replication: batch done", "size", len(batch), "inserted", res.inserted, "skipped", res.skipped)
	return res
}
