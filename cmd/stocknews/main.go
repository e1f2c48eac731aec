// Command stocknews ingests stock news on a schedule and serves it over HTTP.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"stock-news/pkg/config"
	"stock-news/pkg/logging"
)

var (
	cfg    *config.Config
	logger *slog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "stocknews",
	Short:         "Stock news ingestion service",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configFile, _ := cmd.Flags().GetString("config")

		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		flagLevel, _ := cmd.Flags().GetString("log-level")
		level := logLevel(cfg, flagLevel, cmd.Name() == debugCmd.Name())
		logger = logging.New(level, cfg.Logging.Format)
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(debugCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(replicateCmd)
	rootCmd.AddCommand(configCmd)
}

// logLevel resolves the effective level. The debug command always logs at
// debug; otherwise the flag wins over the debug setting and the configured
// level.
func logLevel(c *config.Config, flagLevel string, forceDebug bool) string {
	switch {
	case forceDebug:
		return "debug"
	case flagLevel != "":
		return flagLevel
	case c.Debug:
		return "debug"
	default:
		return c.Logging.Level
	}
}
