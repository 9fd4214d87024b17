package main

import (
	"context"
	"fmt"

	"github.com/kobyzev-yuri/lse/internal/logger"
	"github.com/kobyzev-yuri/lse/internal/store"
	"github.com/spf13/cobra"
)

var initdbCmd = &cobra.Command{
	Use:   "initdb",
	Short: "Create the database schema and the initial portfolio state",
	RunE:  runInitDB,
}

func init() {
	rootCmd.AddCommand(initdbCmd)
}

func runInitDB(cmd *cobra.Command, args []string) error {
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

	ctx := context.Background()
	if err := st.InitSchema(ctx); err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	if err := st.EnsureCash(ctx, cfg.InitialCashUSD); err != nil {
		return fmt.Errorf("initializing portfolio: %w", err)
	}

	fmt.Println("schema initialized")
	return nil
}
