package db

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	supabase "github.com/supabase-community/supabase-go"

	"stock-news/pkg/domain"
)

func newTestRESTStore(t *testing.T, handler http.HandlerFunc) *RESTStore {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := supabase.NewClient(server.URL, "test-key", nil)
	if err != nil {
		t.Fatalf("supabase.NewClient: %v", err)
	}
	return NewRESTStore(client)
}

// Test Case 1: TestRESTStore_ListStocks
// Input: PostgREST returns two stocks
// Expected Output: Both decoded, request ordered by ticker with the API key header
func TestRESTStore_ListStocks(t *testing.T) {
	store := newTestRESTStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/stocks" {
			t.Errorf("path = %s, want /rest/v1/stocks", r.URL.Path)
		}
		if got := r.URL.Query().Get("order"); got != "ticker.asc.nullslast" {
			t.Errorf("order = %q", got)
		}
		if r.Header.Get("apikey") != "test-key" {
			t.Errorf("apikey header missing")
		}
		w.Write([]byte(`[{"id":"s1","ticker":"AAPL","company_name":"Apple Inc."},{"id":"s2","ticker":"MSFT","company_name":"Microsoft"}]`))
	})

	stocks, err := store.ListStocks(context.Background())
	if err != nil {
		t.Fatalf("ListStocks: %v", err)
	}
	if len(stocks) != 2 || stocks[0].Ticker != "AAPL" || stocks[1].CompanyName != "Microsoft" {
		t.Errorf("unexpected stocks: %+v", stocks)
	}
}

func TestRESTStore_FirstStock_Empty(t *testing.T) {
	store := newTestRESTStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "1" {
			t.Errorf("limit = %q, want 1", r.URL.Query().Get("limit"))
		}
		w.Write([]byte(`[]`))
	})

	stock, err := store.FirstStock(context.Background())
	if err != nil {
		t.Fatalf("FirstStock: %v", err)
	}
	if stock != nil {
		t.Errorf("expected nil stock, got %+v", stock)
	}
}

func TestRESTStore_GetStockByTicker_NotFound(t *testing.T) {
	store := newTestRESTStore(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("ticker"); got != "eq.TSLA" {
			t.Errorf("ticker filter = %q, want eq.TSLA", got)
		}
		w.Write([]byte(`[]`))
	})

	_, err := store.GetStockByTicker(context.Background(), "tsla")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRESTStore_ExistsNewsByURL(t *testing.T) {
	store := newTestRESTStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("url") == "eq.https://example.com/a" {
			w.Write([]byte(`[{"id":"n1"}]`))
			return
		}
		w.Write([]byte(`[]`))
	})

	ctx := context.Background()
	exists, err := store.ExistsNewsByURL(ctx, "https://example.com/a")
	if err != nil || !exists {
		t.Errorf("expected existing url, got %v, %v", exists, err)
	}
	exists, err = store.ExistsNewsByURL(ctx, "https://example.com/b")
	if err != nil || exists {
		t.Errorf("expected missing url, got %v, %v", exists, err)
	}
}

// Test Case 2: TestRESTStore_InsertNews
// Input: First insert accepted (201), second rejected with unique violation 23505
// Expected Output: (true, nil) then (false, nil)
func TestRESTStore_InsertNews(t *testing.T) {
	seen := map[string]bool{}
	store := newTestRESTStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.Header.Get("Prefer") != "return=minimal" {
			t.Errorf("Prefer = %q", r.Header.Get("Prefer"))
		}
		body, _ := io.ReadAll(r.Body)
		var row map[string]any
		if err := json.Unmarshal(body, &row); err != nil {
			t.Errorf("bad body: %v", err)
			return
		}
		if _, ok := row["stocks"]; ok {
			t.Errorf("joined stock must not be sent on insert")
		}
		url := row["url"].(string)
		if seen[url] {
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{"code":"23505","message":"duplicate key value violates unique constraint \"news_url_key\""}`))
			return
		}
		seen[url] = true
		w.WriteHeader(http.StatusCreated)
	})

	record := domain.NewRecord(domain.NewsCandidate{
		StockID: "s1",
		Title:   "Apple beats estimates",
		URL:     "https://example.com/apple",
	}, "", 4, time.Now())

	ctx := context.Background()
	inserted, err := store.InsertNews(ctx, record)
	if err != nil || !inserted {
		t.Fatalf("first insert: inserted=%v err=%v", inserted, err)
	}
	inserted, err = store.InsertNews(ctx, record)
	if err != nil {
		t.Fatalf("duplicate insert returned error: %v", err)
	}
	if inserted {
		t.Error("duplicate insert reported inserted")
	}
}

func TestRESTStore_InsertNews_ServerError(t *testing.T) {
	store := newTestRESTStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"code":"XX000","message":"boom"}`))
	})

	_, err := store.InsertNews(context.Background(), &domain.NewsRecord{ID: "n1", URL: "https://example.com/x"})
	if err == nil {
		t.Fatal("expected error")
	}
}

// Test Case 3: TestRESTStore_ListNews_Filters
// Input: limit 10, offset 20, min score 4, stock id s1
// Expected Output: PostgREST params select/order/gte/eq/offset/limit, joined stock decoded
func TestRESTStore_ListNews_Filters(t *testing.T) {
	store := newTestRESTStore(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		want := map[string]string{
			"select":       "*,stocks(*)",
			"order":        "published_at.desc.nullslast",
			"impact_score": "gte.4",
			"stock_id":     "eq.s1",
			"offset":       "20",
			"limit":        "10",
		}
		for k, v := range want {
			if q.Get(k) != v {
				t.Errorf("param %s = %q, want %q", k, q.Get(k), v)
			}
		}
		w.Write([]byte(`[{"id":"n1","stock_id":"s1","title":"T","content":"C","summary":"C","url":"https://example.com/n1","source":"Reuters","published_at":"2024-03-01T10:00:00+00:00","impact_score":4,"created_at":"2024-03-01T10:05:00+00:00","stocks":{"id":"s1","ticker":"AAPL","company_name":"Apple Inc."}}]`))
	})

	records, err := store.ListNews(context.Background(), NewsFilter{Limit: 10, Offset: 20, MinScore: 4, StockID: "s1"})
	if err != nil {
		t.Fatalf("ListNews: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Stock == nil || records[0].Stock.Ticker != "AAPL" {
		t.Errorf("joined stock not decoded: %+v", records[0].Stock)
	}
	if !records[0].PublishedAt.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("published_at = %v", records[0].PublishedAt)
	}
}

const (
	knownID   = "3f2b6c1e-8a4d-4e0b-9c7a-2d5e6f708192"
	missingID = "00000000-0000-4000-8000-000000000000"
)

func TestRESTStore_GetNews_NotFound(t *testing.T) {
	calls := 0
	store := newTestRESTStore(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`[]`))
	})

	_, err := store.GetNews(context.Background(), missingID)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	// Non-UUID IDs never reach the server.
	_, err = store.GetNews(context.Background(), "not-a-uuid")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for malformed id, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 request, got %d", calls)
	}
}

func TestRESTStore_UpdateNewsAnalysis(t *testing.T) {
	var patched map[string]any
	store := newTestRESTStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("method = %s, want PATCH", r.Method)
		}
		if r.URL.Query().Get("id") == "eq."+missingID {
			w.Write([]byte(`[]`))
			return
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &patched)
		w.Write([]byte(`[{"id":"n1"}]`))
	})

	ctx := context.Background()
	if err := store.UpdateNewsAnalysis(ctx, knownID, "new summary", 5); err != nil {
		t.Fatalf("UpdateNewsAnalysis: %v", err)
	}
	if patched["summary"] != "new summary" || patched["impact_score"] != float64(5) {
		t.Errorf("unexpected patch body: %v", patched)
	}
	if err := store.UpdateNewsAnalysis(ctx, missingID, "s", 3); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRESTStore_CancelledContext(t *testing.T) {
	called := false
	store := newTestRESTStore(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.Write([]byte(`[]`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.ListStocks(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if called {
		t.Error("request sent after cancellation")
	}
}
