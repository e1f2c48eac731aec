package replication

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"stock-news/pkg/db"
	"stock-news/pkg/domain"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// mockSource is a mock implementation of Source for testing
type mockSource struct {
	stocks    []domain.Stock
	news      []domain.NewsRecord
	listErr   error
	mu        sync.Mutex
	callCount int
}

func (m *mockSource) ListStocks(ctx context.Context) ([]domain.Stock, error) {
	return m.stocks, nil
}

func (m *mockSource) ListNews(ctx context.Context, filter db.NewsFilter) ([]domain.NewsRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	if m.listErr != nil {
		return nil, m.listErr
	}
	if filter.Offset >= len(m.news) {
		return nil, nil
	}
	end := filter.Offset + filter.Limit
	if end > len(m.news) {
		end = len(m.news)
	}
	out := make([]domain.NewsRecord, end-filter.Offset)
	copy(out, m.news[filter.Offset:end])
	return out, nil
}

// mockTarget is a mock implementation of Target enforcing URL uniqueness
type mockTarget struct {
	stocks    map[string]domain.Stock // ticker -> stock
	mu        sync.Mutex
	records   map[string]domain.NewsRecord
	insertErr error
}

func (m *mockTarget) GetStockByTicker(ctx context.Context, ticker string) (*domain.Stock, error) {
	s, ok := m.stocks[ticker]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &s, nil
}

func (m *mockTarget) InsertNews(ctx context.Context, record *domain.NewsRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return false, m.insertErr
	}
	if _, ok := m.records[record.URL]; ok {
		return false, nil
	}
	m.records[record.URL] = *record
	return true, nil
}

func newsFor(stockID string, n, from int) []domain.NewsRecord {
	out := make([]domain.NewsRecord, 0, n)
	for i := from; i < from+n; i++ {
		out = append(out, domain.NewsRecord{
			ID:      fmt.Sprintf("id-%d", i),
			StockID: stockID,
			Title:   fmt.Sprintf("Story %d", i),
			URL:     fmt.Sprintf("https://news.example.com/%d", i),
		})
	}
	return out
}

// Test Case 1: Copy news across backends
// Input: 25 source records over two stocks (one unknown in target), one
// record already in the target, batch size 10
// Expected Output: stock IDs remapped by ticker, the unknown stock's news
// skipped, the existing URL not re-inserted
func TestReplicate(t *testing.T) {
	source := &mockSource{
		stocks: []domain.Stock{
			{ID: "mongo-aapl", Ticker: "AAPL"},
			{ID: "mongo-tsla", Ticker: "TSLA"},
		},
	}
	source.news = append(newsFor("mongo-aapl", 20, 0), newsFor("mongo-tsla", 5, 20)...)
	source.news[0].Stock = &domain.Stock{ID: "mongo-aapl", Ticker: "AAPL"}

	target := &mockTarget{
		stocks:  map[string]domain.Stock{"AAPL": {ID: "pg-aapl", Ticker: "AAPL"}},
		records: map[string]domain.NewsRecord{"https://news.example.com/3": {}},
	}

	r, err := NewReplicator(Config{Source: source, Target: target, BatchSize: 10, Workers: 3, Logger: discardLogger})
	if err != nil {
		t.Fatalf("NewReplicator failed: %v", err)
	}

	res, err := r.Replicate(context.Background())
	if err != nil {
		t.Fatalf("Replicate failed: %v", err)
	}

	if res.Processed != 25 {
		t.Errorf("expected 25 processed, got %d", res.Processed)
	}
	if res.Skipped != 5 {
		t.Errorf("expected 5 skipped, got %d", res.Skipped)
	}
	if res.Inserted != 19 {
		t.Errorf("expected 19 inserted, got %d", res.Inserted)
	}
	if source.callCount != 3 {
		t.Errorf("expected 3 pages read, got %d", source.callCount)
	}

	got := target.records["https://news.example.com/0"]
	if got.StockID != "pg-aapl" {
		t.Errorf("expected remapped stock ID, got %q", got.StockID)
	}
	if got.Stock != nil {
		t.Error("expected joined stock to be dropped")
	}
	if got.ID == "id-0" {
		t.Error("expected a non-uuid source ID to be replaced")
	}
	if _, ok := target.records["https://news.example.com/22"]; ok {
		t.Error("news of a stock missing in the target must not be copied")
	}
}

func TestReplicateSourceError(t *testing.T) {
	source := &mockSource{listErr: errors.New("mongo down")}
	target := &mockTarget{stocks: map[string]domain.Stock{}, records: map[string]domain.NewsRecord{}}

	r, _ := NewReplicator(Config{Source: source, Target: target, Logger: discardLogger})
	if _, err := r.Replicate(context.Background()); err == nil {
		t.Error("expected error when the source fails")
	}
}

func TestReplicateInsertError(t *testing.T) {
	source := &mockSource{
		stocks: []domain.Stock{{ID: "s1", Ticker: "AAPL"}},
		news:   newsFor("s1", 30, 0),
	}
	target := &mockTarget{
		stocks:    map[string]domain.Stock{"AAPL": {ID: "t1", Ticker: "AAPL"}},
		records:   map[string]domain.NewsRecord{},
		insertErr: errors.New("disk full"),
	}

	r, _ := NewReplicator(Config{Source: source, Target: target, BatchSize: 5, Workers: 2, Logger: discardLogger})
	res, err := r.Replicate(context.Background())
	if err == nil {
		t.Fatal("expected insert error")
	}
	if res.Inserted != 0 {
		t.Errorf("expected nothing inserted, got %d", res.Inserted)
	}
}

func TestNewReplicatorRequiresStores(t *testing.T) {
	if _, err := NewReplicator(Config{Target: &mockTarget{}}); err == nil {
		t.Error("expected error without source")
	}
	if _, err := NewReplicator(Config{Source: &mockSource{}}); err == nil {
		t.Error("expected error without target")
	}
}
