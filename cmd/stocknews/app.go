package main

import (
	"context"
	"fmt"
	"log/slog"

	"stock-news/pkg/ai"
	"stock-news/pkg/alert"
	"stock-news/pkg/api"
	"stock-news/pkg/config"
	"stock-news/pkg/content"
	"stock-news/pkg/db"
	"stock-news/pkg/httpclient"
	"stock-news/pkg/parser"
	"stock-news/pkg/pipeline"
	"stock-news/pkg/sources"
)

// app holds the wired components shared by the commands.
type app struct {
	handle       *db.Handle
	orchestrator *pipeline.Orchestrator

	// analyzer is nil when no Gemini key is configured.
	analyzer *ai.Analyzer
}

func newApp(ctx context.Context, c *config.Config, logger *slog.Logger) (*app, error) {
	handle, err := db.Open(ctx, storeOptions(c))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", c.Store.Backend, err)
	}

	a := &app{handle: handle}
	a.orchestrator = newOrchestrator(c, handle.Store, logger)

	if c.AI.GeminiKey != "" {
		gen, err := ai.NewGeminiGenerator(ctx, ai.GeminiConfig{
			APIKey:  c.AI.GeminiKey,
			Model:   c.AI.Model,
			Timeout: c.AI.Timeout,
		})
		if err != nil {
			_ = handle.Close(ctx)
			return nil, err
		}
		a.analyzer = ai.NewAnalyzer(gen, logger)
	} else {
		logger.Info("AI: no Gemini key configured, analysis disabled")
	}

	return a, nil
}

func (a *app) Close(ctx context.Context) error {
	return a.handle.Close(ctx)
}

// apiAnalyzer returns the analyzer as the API interface, nil when disabled.
func (a *app) apiAnalyzer() api.Analyzer {
	if a.analyzer == nil {
		return nil
	}
	return a.analyzer
}

func newOrchestrator(c *config.Config, store db.Store, logger *slog.Logger) *pipeline.Orchestrator {
	browser := httpclient.NewClientWithTimeout(httpclient.BrowserClient, c.Ingest.HTTPTimeout)
	filters := sources.DefaultFilters(store)

	yahoo := sources.NewYahooClient(browser, c.Ingest.YahooBaseURL)
	market := sources.NewMarketAdapter(store, yahoo, sources.MarketConfig{
		Symbols:   c.Ingest.MarketSymbols,
		PerSymbol: c.Ingest.MarketPerSymbol,
		Pause:     c.Ingest.MarketPause,
	}, filters, nil, logger)

	tickers := []sources.TickerSource{
		sources.NewYahooAdapter(yahoo, c.Ingest.YahooLimit, filters, logger),
		sources.NewGoogleNewsAdapter(parser.NewRSSParser(browser.Standard()), c.Ingest.GoogleBaseURL, c.Ingest.GoogleLimit, filters, logger),
	}

	var onInsert pipeline.InsertHook
	if c.Alerts.Enabled {
		senders := alertSenders(c.Alerts)
		if len(senders) == 0 {
			logger.Warn("Alert: alerts enabled but no channel configured")
		} else {
			onInsert = alert.NewDispatcher(senders, c.Alerts.MinScore, logger).Hook
		}
	}

	return pipeline.NewOrchestrator(pipeline.Config{
		Market:       market,
		Tickers:      tickers,
		Stocks:       store,
		Processor:    pipeline.NewHTTPContentProcessor(content.NewArticleExtractor(browser, logger)),
		Saver:        pipeline.NewStoreContentSaver(store),
		OnInsert:     onInsert,
		StockPause:   c.Ingest.StockPause,
		StoreTimeout: c.Ingest.StoreTimeout,
		Logger:       logger,
	})
}

func storeOptions(c *config.Config) db.Options {
	pool := db.PoolConfig{
		MaxOpenConns: c.Store.Pool.MaxOpenConns,
		MaxIdleConns: c.Store.Pool.MaxIdleConns,
		ConnMaxIdle:  c.Store.Pool.ConnMaxIdle,
		ConnMaxLife:  c.Store.Pool.ConnMaxLife,
	}
	return db.Options{
		Backend: c.Store.Backend,
		Supabase: db.SupabaseConfig{
			ConnectionString: c.Store.Supabase.ConnectionString,
			SupabaseURL:      c.Store.Supabase.URL,
			SupabaseKey:      c.Store.Supabase.Key,
			ServiceKey:       c.Store.Supabase.ServiceKey,
			Password:         c.Store.Supabase.Password,
			RequestTimeout:   c.Store.Supabase.RequestTimeout,
			Pool:             pool,
		},
		Postgres:      db.PostgresConfig{DSN: c.Store.Postgres.DSN, Pool: pool},
		MongoURI:      c.Store.Mongo.URI,
		MongoDatabase: c.Store.Mongo.Database,
	}
}

// alertSenders returns a sender per configured channel.
func alertSenders(c config.AlertsConfig) []alert.Sender {
	var senders []alert.Sender
	if c.Telegram.BotToken != "" && c.Telegram.ChatID != "" {
		senders = append(senders, alert.NewTelegramSender(c.Telegram.BotToken, c.Telegram.ChatID, c.Telegram.BaseURL))
	}
	if c.Email.SMTPServer != "" && c.Email.To != "" {
		senders = append(senders, alert.NewEmailSender(alert.EmailConfig{
			SMTPServer: c.Email.SMTPServer,
			SMTPPort:   c.Email.SMTPPort,
			SMTPUser:   c.Email.SMTPUser,
			SMTPPass:   c.Email.SMTPPass,
			FromEmail:  c.Email.From,
			ToEmail:    c.Email.To,
		}))
	}
	return senders
}
