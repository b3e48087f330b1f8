package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List configured sources",
	RunE:  runSources,
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

func runSources(cmd *cobra.Command, _ []string) error {
	if ingestor == nil {
		return errors.New("ingest service not configured")
	}

	sources := ingestor.Sources(context.Background())
	if len(sources) == 0 {
		cmd.Println("No sources configured.")
		return nil
	}

	cmd.Printf("%-12s %-10s %-9s %-8s %s\n", "NAME", "INTERVAL", "BACKFILL", "ENABLED", "FEED")
	for _, src := range sources {
		enabled := "yes"
		if !src.Enabled {
			enabled = "no"
		}
		cmd.Printf("%-12s %-10s %-9s %-8s %s\n",
			src.Name, src.Interval, fmt.Sprintf("%dd", src.BackfillDays), enabled, src.FeedURL)
	}
	return nil
}
