package main

import (
	"fmt"

	"github.com/kobyzev-yuri/lse/internal/app"
	"github.com/spf13/cobra"
)

var cycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "Run one trading cycle: analyze, execute and apply exit rules",
	RunE:  runCycle,
}

func init() {
	rootCmd.AddCommand(cycleCmd)
}

func runCycle(cmd *cobra.Command, args []string) error {
	application, err := buildApp()
	if err != nil {
		return err
	}

	if err := application.RunJob(app.JobTradingCycle); err != nil {
		return fmt.Errorf("running trading cycle: %w", err)
	}
	fmt.Println("trading cycle completed")
	return nil
}
