package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/kobyzev-yuri/lse/internal/app"
	"github.com/kobyzev-yuri/lse/internal/logger"
	"github.com/kobyzev-yuri/lse/internal/store"
	"github.com/spf13/cobra"
)

var analyzeUseLLM bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze TICKER...",
	Short: "Run the analyst for one or more tickers and print the decisions",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeUseLLM, "llm", false, "include LLM guidance")
	rootCmd.AddCommand(analyzeCmd)
}

func buildApp() (*app.App, error) {
	log := logger.Must(debug)

	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.DatabaseURL, log)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return app.New(cfg, st, log)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	application, err := buildApp()
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	ctx := context.Background()
	for _, ticker := range args {
		result, err := application.Analyst().AnalyzeWithOptions(ctx, ticker, analyzeUseLLM)
		if err != nil {
			return err
		}
		if err := enc.Encode(result); err != nil {
			return err
		}
	}
	return nil
}
