// Package cmd provides the finsight CLI.
//
// Commands:
//   - serve: HTTP API server for the question answering pipeline
//   - ask: one-shot question from the terminal
//   - cleanup: purge expired quota counters and idle sessions once
//   - version: build information
package cmd

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/finsight/finsight/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "finsight",
	Short: "Financial question answering over NASDAQ-100 filings and fundamentals",
	Long: `finsight answers natural language questions about NASDAQ-100 companies
by combining SQL over structured fundamentals with semantic search over
10-K filings and earnings call transcripts.

Run "finsight serve" to start the HTTP API, or "finsight ask" for a
one-shot answer from the terminal.`,
	SilenceUsage: true,
}

// Execute runs the root command. It is the entry point called from main.
func Execute() error {
	// Missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	slog.SetDefault(newLogger())
	return rootCmd.Execute()
}

// newLogger builds the process-wide logger. DEBUG enables debug level,
// LOG_JSON switches to JSON output for log collectors.
func newLogger() log.Logger {
	cfg := log.Config{Level: slog.LevelInfo}
	if os.Getenv("DEBUG") != "" {
		cfg.Level = slog.LevelDebug
	}
	if os.Getenv("LOG_JSON") != "" {
		cfg.JSON = true
	}
	return log.New(cfg)
}
