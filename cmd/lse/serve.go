package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/kobyzev-yuri/lse/internal/app"
	"github.com/kobyzev-yuri/lse/internal/logger"
	"github.com/kobyzev-yuri/lse/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server and the job scheduler",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	st, err := store.Open(cfg.DatabaseURL, log)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := st.InitSchema(ctx); err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}

	application, err := app.New(cfg, st, log)
	if err != nil {
		return fmt.Errorf("building application: %w", err)
	}

	log.Info("LSE starting",
		zap.String("host", cfg.ServerHost),
		zap.Int("port", cfg.ServerPort),
		zap.Strings("tickers", cfg.AllTickers()),
		zap.Bool("llm", cfg.UseLLM),
	)

	return application.Start(ctx)
}
