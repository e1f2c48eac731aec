package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"stock-news/pkg/domain"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// DBProvider is an interface for database clients that provide access to a sql.DB handle.
// This allows both PostgresClient and SupabaseClient to back a SQLStore.
type DBProvider interface {
	DB() *sql.DB
}

// NewsFilter narrows ListNews. Zero values mean "no constraint".
type NewsFilter struct {
	Limit    int
	Offset   int
	MinScore int
	StockID  string
}

// Store is the persistence surface used by ingestion, the API and the CLI.
type Store interface {
	ListStocks(ctx context.Context) ([]domain.Stock, error)

	// FirstStock returns the stock market-wide news is attached to, or nil
	// when there are no stocks.
	FirstStock(ctx context.Context) (*domain.Stock, error)

	// GetStockByTicker returns ErrNotFound for unknown tickers.
	GetStockByTicker(ctx context.Context, ticker string) (*domain.Stock, error)

	ExistsNewsByURL(ctx context.Context, url string) (bool, error)

	// InsertNews persists a record. It reports false without error when a
	// record with the same URL already exists.
	InsertNews(ctx context.Context, record *domain.NewsRecord) (bool, error)

	// ListNews returns records ordered by published_at descending.
	ListNews(ctx context.Context, filter NewsFilter) ([]domain.NewsRecord, error)

	// GetNews returns ErrNotFound for unknown IDs.
	GetNews(ctx context.Context, id string) (*domain.NewsRecord, error)

	UpdateNewsAnalysis(ctx context.Context, id, summary string, impactScore int) error
}

// isUUID reports whether id can match the uuid primary key of the SQL schema.
// Other IDs are answered with ErrNotFound instead of a cast error.
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
