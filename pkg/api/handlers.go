package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"stock-news/pkg/db"
	"stock-news/pkg/domain"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListNews(w http.ResponseWriter, r *http.Request) {
	filter, err := parseNewsFilter(r, true)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if ticker := strings.TrimSpace(r.URL.Query().Get("ticker")); ticker != "" {
		s.writeTickerNews(w, r, ticker, filter.Limit)
		return
	}

	records, err := s.news.ListNews(r.Context(), filter)
	if err != nil {
		s.logger.Error("API: failed to list news", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list news")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(records))
}

func (s *Server) handleStockNews(w http.ResponseWriter, r *http.Request) {
	filter, err := parseNewsFilter(r, false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeTickerNews(w, r, chi.URLParam(r, "ticker"), filter.Limit)
}

// writeTickerNews answers an empty list for unknown tickers.
func (s *Server) writeTickerNews(w http.ResponseWriter, r *http.Request, ticker string, limit int) {
	stock, err := s.news.GetStockByTicker(r.Context(), strings.ToUpper(ticker))
	if errors.Is(err, db.ErrNotFound) {
		writeJSON(w, http.StatusOK, []domain.NewsRecord{})
		return
	}
	if err != nil {
		s.logger.Error("API: failed to load stock", "ticker", ticker, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list news")
		return
	}

	records, err := s.news.ListNews(r.Context(), db.NewsFilter{Limit: limit, StockID: stock.ID})
	if err != nil {
		s.logger.Error("API: failed to list stock news", "ticker", ticker, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list news")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(records))
}

func (s *Server) handleGetNews(w http.ResponseWriter, r *http.Request) {
	record, ok := s.loadNews(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleNewsAnalysis(w http.ResponseWriter, r *http.Request) {
	if s.analyzer == nil {
		writeError(w, http.StatusServiceUnavailable, "Analysis is not configured")
		return
	}

	record, ok := s.loadNews(w, r)
	if !ok {
		return
	}

	ticker := ""
	if record.Stock != nil {
		ticker = record.Stock.Ticker
	}

	analysis, err := s.analyzer.Analyze(r.Context(), record.Title, record.Content, ticker)
	if err != nil || analysis == nil {
		s.logger.Warn("API: analysis failed", "id", record.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to analyze news")
		return
	}

	body := make(map[string]any, len(analysis)+1)
	for k, v := range analysis {
		body[k] = v
	}
	body["news_id"] = record.ID
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	if s.trigger == nil {
		writeError(w, http.StatusServiceUnavailable, "Ingestion is not configured")
		return
	}

	// A client disconnect must not abort the run halfway.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()
	defer context.AfterFunc(s.base, cancel)()

	count, ran, err := s.trigger.TryRun(ctx)
	if !ran {
		writeError(w, http.StatusConflict, "Ingestion already in progress")
		return
	}
	if err != nil {
		s.logger.Error("API: manual ingestion failed", "added", count, "error", err)
		writeError(w, http.StatusInternalServerError, "Ingestion failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"added": count})
}

func (s *Server) loadNews(w http.ResponseWriter, r *http.Request) (*domain.NewsRecord, bool) {
	id := chi.URLParam(r, "id")
	record, err := s.news.GetNews(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "News not found")
		return nil, false
	}
	if err != nil {
		s.logger.Error("API: failed to load news", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load news")
		return nil, false
	}
	return record, true
}

// parseNewsFilter reads limit, and with paging also offset and min_score.
func parseNewsFilter(r *http.Request, paging bool) (db.NewsFilter, error) {
	q := r.URL.Query()
	filter := db.NewsFilter{Limit: DefaultLimit}

	limit, err := intParam(q.Get("limit"), "limit", 1, MaxLimit)
	if err != nil {
		return filter, err
	}
	if limit != nil {
		filter.Limit = *limit
	}
	if !paging {
		return filter, nil
	}

	offset, err := intParam(q.Get("offset"), "offset", 0, -1)
	if err != nil {
		return filter, err
	}
	if offset != nil {
		filter.Offset = *offset
	}

	minScore, err := intParam(q.Get("min_score"), "min_score", 1, 5)
	if err != nil {
		return filter, err
	}
	if minScore != nil {
		filter.MinScore = *minScore
	}
	return filter, nil
}

// intParam parses an optional integer within [min,max]. A negative max
// means unbounded.
func intParam(raw, name string, min, max int) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: must be an integer", name)
	}
	if v < min || (max >= 0 && v > max) {
		if max < 0 {
			return nil, fmt.Errorf("invalid %s: must be >= %d", name, min)
		}
		return nil, fmt.Errorf("invalid %s: must be between %d and %d", name, min, max)
	}
	return &v, nil
}

func nonNil(records []domain.NewsRecord) []domain.NewsRecord {
	if records == nil {
		return []domain.NewsRecord{}
	}
	return records
}
