package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"stock-news/pkg/api"
	"stock-news/pkg/db"
	"stock-news/pkg/replication"
	"stock-news/pkg/scheduler"
)

const closeTimeout = 10 * time.Second

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

// withApp opens the store and wiring for the duration of fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			logger.Warn("Store: close failed", "error", err)
		}
	}()

	return fn(ctx, a)
}

// --- Serve Command ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the hourly ingestion schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			sched, err := scheduler.New(a.orchestrator, scheduler.Config{
				Spec:       cfg.Scheduler.Cron,
				Location:   cfg.Location(),
				RunOnStart: cfg.Scheduler.RunOnStart,
			}, logger)
			if err != nil {
				return err
			}
			if err := sched.Start(ctx); err != nil {
				return err
			}
			defer func() {
				// An in-flight run stops at its next pause or request once
				// ctx is cancelled.
				cancel()
				<-sched.Stop().Done()
			}()

			server := api.NewServer(a.handle.Store, a.apiAnalyzer(), sched, api.Options{
				CORSOrigins: cfg.API.CORSOrigins,
			}, logger)
			return server.ListenAndServe(ctx, cfg.API.Addr())
		})
	},
}

// --- Fetch Command ---

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Run one ingestion pass and print the number of news items added",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			added, err := a.orchestrator.Run(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "Added %d news items\n", added)
			return err
		})
	},
}

// --- Debug Command ---

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Run one ingestion pass with debug logging and a per-stock summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			start := time.Now()
			stats, err := a.orchestrator.RunWithStats(ctx)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Candidates: %d  Added: %d  Failed: %d  Duration: %s\n",
				stats.Candidates, stats.Added, stats.Failed, time.Since(start).Round(time.Millisecond))

			tickers := make([]string, 0, len(stats.PerStock))
			for ticker := range stats.PerStock {
				tickers = append(tickers, ticker)
			}
			sort.Strings(tickers)
			for _, ticker := range tickers {
				fmt.Fprintf(out, "  %-8s %d\n", ticker, stats.PerStock[ticker])
			}
			return err
		})
	},
}

// --- Analyze Command ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze [news-id]",
	Short: "Re-summarize a stored news item with AI and write the result back",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if a.analyzer == nil {
				return errors.New("analyze requires ai.gemini_key (GEMINI_API_KEY)")
			}
			summary, err := a.analyzer.Reanalyze(ctx, a.handle.Store, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Impact Score: %d/5\n\n%s\n", summary.ImpactScore, summary.Summary)
			return nil
		})
	},
}

// --- Migrate Command ---

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the SQL schema (postgres, or supabase with a direct connection)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.handle.Migrate(ctx); err != nil {
				if errors.Is(err, db.ErrNoSQL) {
					return fmt.Errorf("%s backend: %w", cfg.Store.Backend, err)
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema applied")
			return nil
		})
	},
}

// --- Replicate Command ---

var replicateCmd = &cobra.Command{
	Use:   "replicate",
	Short: "Copy all news from another backend into the configured store",
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetString("from")
		workers, _ := cmd.Flags().GetInt("workers")
		if strings.EqualFold(from, cfg.Store.Backend) {
			return fmt.Errorf("source backend %q is the configured store", from)
		}

		return withApp(cmd, func(ctx context.Context, a *app) error {
			opts := storeOptions(cfg)
			opts.Backend = from
			source, err := db.Open(ctx, opts)
			if err != nil {
				return fmt.Errorf("failed to open %s source: %w", from, err)
			}
			defer source.Close(context.Background())

			r, err := replication.NewReplicator(replication.Config{
				Source:  source.Store,
				Target:  a.handle.Store,
				Workers: workers,
				Logger:  logger,
			})
			if err != nil {
				return err
			}
			res, err := r.Replicate(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "Processed %d, inserted %d, skipped %d\n", res.Processed, res.Inserted, res.Skipped)
			return err
		})
	},
}

func init() {
	replicateCmd.Flags().String("from", db.BackendMongo, "source backend (supabase, postgres, mongo)")
	replicateCmd.Flags().Int("workers", replication.DefaultWorkers, "parallel insert workers")
}

// --- Config Command ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML with secrets masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := cfg.YAML()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}
