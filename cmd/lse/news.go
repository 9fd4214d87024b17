package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var newsCmd = &cobra.Command{
	Use:   "news",
	Short: "Run the news ingestion pipeline once and print the summary",
	RunE:  runNews,
}

func init() {
	rootCmd.AddCommand(newsCmd)
}

func runNews(cmd *cobra.Command, args []string) error {
	application, err := buildApp()
	if err != nil {
		return err
	}

	summary := application.Pipeline().Run(context.Background())
	for source, count := range summary.Inserted {
		fmt.Printf("%s: %d inserted (%d duplicates)\n", source, count, summary.Skipped[source])
	}
	for _, se := range summary.Errors {
		fmt.Printf("%s: ERROR %v\n", se.Source, se.Err)
	}
	fmt.Printf("total inserted: %d\n", summary.Total())
	return nil
}
