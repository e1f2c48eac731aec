// Package api serves stored news over HTTP and exposes a manual ingestion
// trigger.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"stock-news/pkg/db"
	"stock-news/pkg/domain"
)

const (
	DefaultLimit          = 20
	MaxLimit              = 100
	DefaultRequestTimeout = 60 * time.Second
	shutdownTimeout       = 15 * time.Second
)

// NewsReader is the read side of the store used by the handlers.
type NewsReader interface {
	ListNews(ctx context.Context, filter db.NewsFilter) ([]domain.NewsRecord, error)
	GetNews(ctx context.Context, id string) (*domain.NewsRecord, error)
	GetStockByTicker(ctx context.Context, ticker string) (*domain.Stock, error)
}

// Analyzer produces the detailed AI analysis of one article. A nil map
// means the model reply could not be used.
type Analyzer interface {
	Analyze(ctx context.Context, title, content, ticker string) (map[string]any, error)
}

// Trigger runs one ingestion pass unless one is already running.
type Trigger interface {
	TryRun(ctx context.Context) (count int, ran bool, err error)
}

// Options configures the server. Zero values use the defaults.
type Options struct {
	CORSOrigins    []string
	RequestTimeout time.Duration
}

// Server is the HTTP API server.
type Server struct {
	router   chi.Router
	news     NewsReader
	analyzer Analyzer
	trigger  Trigger
	opts     Options
	logger   *slog.Logger

	// base is cancelled on server shutdown; manual runs stop only with it.
	base context.Context
}

// NewServer creates a server with all routes and middleware. analyzer and
// trigger may be nil, in which case their endpoints answer 503.
func NewServer(news NewsReader, analyzer Analyzer, trigger Trigger, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}

	s := &Server{
		news:     news,
		analyzer: analyzer,
		trigger:  trigger,
		opts:     opts,
		logger:   logger.With("component", "api"),
		base:     context.Background(),
	}
	s.router = s.buildRouter()
	return s
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.base = ctx
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API: listening", "addr", addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("API: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	origins := []string{"*"}
	if len(s.opts.CORSOrigins) > 0 {
		origins = s.opts.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.opts.RequestTimeout))
			r.Get("/news", s.handleListNews)
			r.Get("/news/{id}", s.handleGetNews)
			r.Get("/news/{id}/analysis", s.handleNewsAnalysis)
			r.Get("/stocks/{ticker}/news", s.handleStockNews)
		})

		// A full pass pauses between stocks and can outlive the read timeout.
		r.Post("/news/fetch", s.handleFetch)
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("API: request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("API: failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Detail: msg})
}
