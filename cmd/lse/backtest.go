package main

import (
	"context"
	"fmt"
	"time"

	"github.com/kobyzev-yuri/lse/internal/analyst"
	"github.com/kobyzev-yuri/lse/internal/backtest"
	"github.com/kobyzev-yuri/lse/internal/logger"
	"github.com/kobyzev-yuri/lse/internal/store"
	"github.com/spf13/cobra"
)

var (
	backtestStart string
	backtestEnd   string
)

var backtestCmd = &cobra.Command{
	Use:   "backtest TICKER",
	Short: "Replay the analyst over stored history for a ticker",
	Args:  cobra.ExactArgs(1),
	RunE:  runBacktest,
}

func init() {
	backtestCmd.Flags().StringVar(&backtestStart, "start", "", "start date (YYYY-MM-DD)")
	backtestCmd.Flags().StringVar(&backtestEnd, "end", "", "end date (YYYY-MM-DD)")
	backtestCmd.MarkFlagRequired("start")
	backtestCmd.MarkFlagRequired("end")
	rootCmd.AddCommand(backtestCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	start, err := time.Parse("2006-01-02", backtestStart)
	if err != nil {
		return fmt.Errorf("parsing start date: %w", err)
	}
	end, err := time.Parse("2006-01-02", backtestEnd)
	if err != nil {
		return fmt.Errorf("parsing end date: %w", err)
	}

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

	// The replay clock is the only thing that differs from live mode: the
	// analyst and the store read strictly at-or-before the replayed instant.
	clock := backtest.NewReplayClock(start)
	st.SetClock(clock)
	agent := analyst.New(st, st, nil, log, analyst.WithClock(clock))

	ticker := args[0]
	result, err := backtest.New(st, agent, clock).Run(context.Background(), ticker, start, end)
	if err != nil {
		return err
	}

	fmt.Printf("Backtest %s %s .. %s\n", ticker, backtestStart, backtestEnd)
	fmt.Printf("  decisions: %d, trades: %d (open: %d)\n",
		len(result.Decisions), result.Stats.TotalTrades,
		result.Stats.TotalTrades-result.Stats.WinningTrades-result.Stats.LosingTrades)
	fmt.Printf("  win rate: %.1f%%  total return: %.2f%%\n",
		result.Stats.WinRate, result.Stats.TotalReturn)
	fmt.Printf("  max drawdown: %.2f%%  sharpe: %.2f\n",
		result.Stats.MaxDrawdown, result.Stats.SharpeRatio)
	return nil
}
