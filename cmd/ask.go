package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/finsight/finsight/internal/app"
	"github.com/finsight/finsight/internal/config"
	"github.com/finsight/finsight/internal/quota"
)

var askShowSources bool

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a one-shot question from the terminal",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askShowSources, "sources", false, "print retrieved source passages")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	question := strings.Join(args, " ")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err = cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	a, err := app.Setup(ctx, cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			slog.Warn("shutdown error", "error", closeErr)
		}
	}()

	// Terminal usage counts against quota like any other client. The
	// loopback hash keeps local runs under one counter.
	sess, _, err := a.Sessions.GetOrCreate(ctx, uuid.New(), quota.HashIP("127.0.0.1"))
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	result, err := a.Pipeline.Ask(ctx, sess.ID, sess.IPHash, question)
	if err != nil {
		return fmt.Errorf("answering question: %w", err)
	}

	fmt.Println(result.Answer)

	if askShowSources && len(result.Sources) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for _, c := range result.Sources {
			fmt.Printf("  [%s %s %s] similarity %.2f\n", c.Company, c.Source, c.Period, c.Similarity)
		}
	}
	return nil
}
