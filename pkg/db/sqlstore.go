package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"stock-news/pkg/domain"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var stockColumns = []string{
	"id::text",
	"ticker",
	"company_name",
	"COALESCE(sector, '')",
}

var newsColumns = []string{
	"n.id::text",
	"COALESCE(n.stock_id::text, '')",
	"n.title",
	"n.content",
	"n.summary",
	"n.url",
	"n.source",
	"n.published_at",
	"n.impact_score",
	"n.created_at",
	"COALESCE(s.id::text, '')",
	"COALESCE(s.ticker, '')",
	"COALESCE(s.company_name, '')",
	"COALESCE(s.sector, '')",
}

// SQLStore implements Store over a direct Postgres connection.
type SQLStore struct {
	provider DBProvider
}

// NewSQLStore builds a store on any DBProvider (Postgres or Supabase).
func NewSQLStore(provider DBProvider) *SQLStore {
	return &SQLStore{provider: provider}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStock(row rowScanner) (domain.Stock, error) {
	var s domain.Stock
	err := row.Scan(&s.ID, &s.Ticker, &s.CompanyName, &s.Sector)
	return s, err
}

func scanNews(row rowScanner) (domain.NewsRecord, error) {
	var (
		n     domain.NewsRecord
		stock domain.Stock
	)
	err := row.Scan(
		&n.ID, &n.StockID, &n.Title, &n.Content, &n.Summary, &n.URL, &n.Source,
		&n.PublishedAt, &n.ImpactScore, &n.CreatedAt,
		&stock.ID, &stock.Ticker, &stock.CompanyName, &stock.Sector,
	)
	if err != nil {
		return n, err
	}
	if stock.ID != "" {
		n.Stock = &stock
	}
	return n, nil
}

func stocksQuery() sq.SelectBuilder {
	return psql.Select(stockColumns...).From("stocks")
}

func newsQuery() sq.SelectBuilder {
	return psql.Select(newsColumns...).
		From("news n").
		LeftJoin("stocks s ON s.id = n.stock_id")
}

func (s *SQLStore) queryStocks(ctx context.Context, b sq.SelectBuilder) ([]domain.Stock, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.provider.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stocks []domain.Stock
	for rows.Next() {
		stock, err := scanStock(rows)
		if err != nil {
			return nil, err
		}
		stocks = append(stocks, stock)
	}
	return stocks, rows.Err()
}

func (s *SQLStore) ListStocks(ctx context.Context) ([]domain.Stock, error) {
	stocks, err := s.queryStocks(ctx, stocksQuery().OrderBy("ticker"))
	if err != nil {
		return nil, fmt.Errorf("list stocks: %w", err)
	}
	return stocks, nil
}

func (s *SQLStore) FirstStock(ctx context.Context) (*domain.Stock, error) {
	stocks, err := s.queryStocks(ctx, stocksQuery().Limit(1))
	if err != nil {
		return nil, fmt.Errorf("first stock: %w", err)
	}
	if len(stocks) == 0 {
		return nil, nil
	}
	return &stocks[0], nil
}

func (s *SQLStore) GetStockByTicker(ctx context.Context, ticker string) (*domain.Stock, error) {
	stocks, err := s.queryStocks(ctx, stocksQuery().Where(sq.Eq{"ticker": strings.ToUpper(ticker)}).Limit(1))
	if err != nil {
		return nil, fmt.Errorf("get stock %s: %w", ticker, err)
	}
	if len(stocks) == 0 {
		return nil, ErrNotFound
	}
	return &stocks[0], nil
}

func (s *SQLStore) ExistsNewsByURL(ctx context.Context, url string) (bool, error) {
	query, args, err := existsNewsQuery(url)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := s.provider.DB().QueryRowContext(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("check news url: %w", err)
	}
	return exists, nil
}

func existsNewsQuery(url string) (string, []any, error) {
	return psql.Select().Column(sq.Expr("EXISTS(SELECT 1 FROM news WHERE url = ?)", url)).ToSql()
}

func insertNewsQuery(record *domain.NewsRecord) (string, []any, error) {
	var stockID any
	if record.StockID != "" {
		stockID = record.StockID
	}
	return psql.Insert("news").
		Columns("id", "stock_id", "title", "content", "summary", "url", "source", "published_at", "impact_score", "created_at").
		Values(record.ID, stockID, record.Title, record.Content, record.Summary, record.URL, record.Source,
			record.PublishedAt, record.ImpactScore, record.CreatedAt).
		Suffix("ON CONFLICT (url) DO NOTHING").
		ToSql()
}

func (s *SQLStore) InsertNews(ctx context.Context, record *domain.NewsRecord) (bool, error) {
	query, args, err := insertNewsQuery(record)
	if err != nil {
		return false, err
	}
	res, err := s.provider.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("insert news: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert news: %w", err)
	}
	return affected == 1, nil
}

func listNewsQuery(filter NewsFilter) sq.SelectBuilder {
	b := newsQuery().OrderBy("n.published_at DESC")
	if filter.MinScore > 0 {
		b = b.Where(sq.GtOrEq{"n.impact_score": filter.MinScore})
	}
	if filter.StockID != "" {
		b = b.Where(sq.Eq{"n.stock_id": filter.StockID})
	}
	if filter.Limit > 0 {
		b = b.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		b = b.Offset(uint64(filter.Offset))
	}
	return b
}

func (s *SQLStore) ListNews(ctx context.Context, filter NewsFilter) ([]domain.NewsRecord, error) {
	query, args, err := listNewsQuery(filter).ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.provider.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list news: %w", err)
	}
	defer rows.Close()

	var records []domain.NewsRecord
	for rows.Next() {
		record, err := scanNews(rows)
		if err != nil {
			return nil, fmt.Errorf("scan news: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *SQLStore) GetNews(ctx context.Context, id string) (*domain.NewsRecord, error) {
	if !isUUID(id) {
		return nil, ErrNotFound
	}
	query, args, err := newsQuery().Where(sq.Eq{"n.id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	record, err := scanNews(s.provider.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get news %s: %w", id, err)
	}
	return &record, nil
}

func (s *SQLStore) UpdateNewsAnalysis(ctx context.Context, id, summary string, impactScore int) error {
	if !isUUID(id) {
		return ErrNotFound
	}
	query, args, err := psql.Update("news").
		Set("summary", summary).
		Set("impact_score", impactScore).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := s.provider.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update news %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
