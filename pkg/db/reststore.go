package db

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/supabase-community/postgrest-go"

	"stock-news/pkg/domain"
)

const (
	stocksTable = "stocks"
	newsTable   = "news"

	// newsWithStock embeds the owning stock under the "stocks" key.
	newsWithStock = "*, stocks(*)"

	uniqueViolation = "(23505)"
)

// TableQuerier is satisfied by both *postgrest.Client and *supabase.Client.
type TableQuerier interface {
	From(table string) *postgrest.QueryBuilder
}

// RESTStore implements Store over the Supabase REST (PostgREST) API.
// postgrest-go takes no context, so cancellation is checked between calls and
// each request is bounded by the transport built in boundedTransport.
type RESTStore struct {
	client TableQuerier
}

// NewRESTStore wraps a PostgREST table client.
func NewRESTStore(client TableQuerier) *RESTStore {
	return &RESTStore{client: client}
}

// boundedTransport returns a transport that gives up on slow response headers.
func boundedTransport(timeout time.Duration) http.RoundTripper {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.ResponseHeaderTimeout = timeout
	return t
}

func (s *RESTStore) ListStocks(ctx context.Context) ([]domain.Stock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var stocks []domain.Stock
	_, err := s.client.From(stocksTable).
		Select("*", "", false).
		Order("ticker", &postgrest.OrderOpts{Ascending: true}).
		ExecuteTo(&stocks)
	if err != nil {
		return nil, fmt.Errorf("list stocks: %w", err)
	}
	return stocks, nil
}

func (s *RESTStore) FirstStock(ctx context.Context) (*domain.Stock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var stocks []domain.Stock
	_, err := s.client.From(stocksTable).
		Select("*", "", false).
		Limit(1, "").
		ExecuteTo(&stocks)
	if err != nil {
		return nil, fmt.Errorf("first stock: %w", err)
	}
	if len(stocks) == 0 {
		return nil, nil
	}
	return &stocks[0], nil
}

func (s *RESTStore) GetStockByTicker(ctx context.Context, ticker string) (*domain.Stock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var stocks []domain.Stock
	_, err := s.client.From(stocksTable).
		Select("*", "", false).
		Eq("ticker", strings.ToUpper(ticker)).
		Limit(1, "").
		ExecuteTo(&stocks)
	if err != nil {
		return nil, fmt.Errorf("get stock %s: %w", ticker, err)
	}
	if len(stocks) == 0 {
		return nil, ErrNotFound
	}
	return &stocks[0], nil
}

func (s *RESTStore) ExistsNewsByURL(ctx context.Context, url string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var rows []struct {
		ID string `json:"id"`
	}
	_, err := s.client.From(newsTable).
		Select("id", "", false).
		Eq("url", url).
		Limit(1, "").
		ExecuteTo(&rows)
	if err != nil {
		return false, fmt.Errorf("check news url: %w", err)
	}
	return len(rows) > 0, nil
}

func (s *RESTStore) InsertNews(ctx context.Context, record *domain.NewsRecord) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, _, err := s.client.From(newsTable).
		Insert(record, false, "", "minimal", "").
		Execute()
	if err != nil {
		if strings.HasPrefix(err.Error(), uniqueViolation) {
			return false, nil
		}
		return false, fmt.Errorf("insert news: %w", err)
	}
	return true, nil
}

func (s *RESTStore) ListNews(ctx context.Context, filter NewsFilter) ([]domain.NewsRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	query := s.client.From(newsTable).
		Select(newsWithStock, "", false).
		Order("published_at", &postgrest.OrderOpts{Ascending: false})
	if filter.MinScore > 0 {
		query = query.Gte("impact_score", strconv.Itoa(filter.MinScore))
	}
	if filter.StockID != "" {
		query = query.Eq("stock_id", filter.StockID)
	}
	if filter.Limit > 0 {
		query = query.Range(filter.Offset, filter.Offset+filter.Limit-1, "")
	}

	var records []domain.NewsRecord
	if _, err := query.ExecuteTo(&records); err != nil {
		return nil, fmt.Errorf("list news: %w", err)
	}
	return records, nil
}

func (s *RESTStore) GetNews(ctx context.Context, id string) (*domain.NewsRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !isUUID(id) {
		return nil, ErrNotFound
	}
	var records []domain.NewsRecord
	_, err := s.client.From(newsTable).
		Select(newsWithStock, "", false).
		Eq("id", id).
		Limit(1, "").
		ExecuteTo(&records)
	if err != nil {
		return nil, fmt.Errorf("get news %s: %w", id, err)
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return &records[0], nil
}

func (s *RESTStore) UpdateNewsAnalysis(ctx context.Context, id, summary string, impactScore int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !isUUID(id) {
		return ErrNotFound
	}
	update := map[string]any{
		"summary":      summary,
		"impact_score": impactScore,
	}
	var updated []struct {
		ID string `json:"id"`
	}
	_, err := s.client.From(newsTable).
		Update(update, "representation", "").
		Eq("id", id).
		ExecuteTo(&updated)
	if err != nil {
		return fmt.Errorf("update news %s: %w", id, err)
	}
	if len(updated) == 0 {
		return ErrNotFound
	}
	return nil
}
