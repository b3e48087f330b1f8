package cli

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/annsync/internal/core/domain"
)

// statusHistoryLimit bounds how many recent runs the status command prints.
const statusHistoryLimit = 5

var statusCmd = &cobra.Command{
	Use:   "status [source]",
	Short: "Show cursor state and recent runs",
	Long: `Shows the sync cursor and recent run history for one source, or a
summary line per source when no source is named.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if ingestor == nil || cursorStore == nil {
		return errors.New("services not configured")
	}

	ctx := context.Background()
	if len(args) == 1 {
		return printSourceStatus(ctx, cmd, args[0])
	}

	for _, src := range ingestor.Sources(ctx) {
		cursor, err := cursorStore.GetCursor(ctx, src.Name)
		if errors.Is(err, domain.ErrNotFound) {
			cmd.Printf("%-12s never run\n", src.Name)
			continue
		}
		if err != nil {
			return err
		}
		cmd.Printf("%-12s %s\n", src.Name, cursorSummary(cursor))
	}
	return nil
}

func printSourceStatus(ctx context.Context, cmd *cobra.Command, sourceName string) error {
	status, err := ingestor.Status(ctx, sourceName)
	if err != nil {
		return err
	}
	if status.Running {
		cmd.Printf("Source %s: run in flight (%d records processed, %d errors)\n",
			sourceName, status.RecordsProcessed, status.ErrorCount)
	} else {
		cmd.Printf("Source %s: idle\n", sourceName)
	}

	cursor, err := cursorStore.GetCursor(ctx, sourceName)
	if errors.Is(err, domain.ErrNotFound) {
		cmd.Println("No runs recorded yet.")
		return nil
	}
	if err != nil {
		return err
	}

	cmd.Printf("  Cursor:      %s\n", cursorSummary(cursor))
	if cursor.FirstRun {
		cmd.Println("  Next run:    full backfill")
	}

	history, err := cursorStore.RunHistory(ctx, sourceName, statusHistoryLimit)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		return nil
	}

	cmd.Println("  Recent runs:")
	for _, run := range history {
		outcome := "ok"
		if !run.Success {
			outcome = "failed: " + run.Error
		}
		cmd.Printf("    %s  %d new, %d updated, %d skipped, %d failed  %s\n",
			run.StartedAt.Format(time.RFC3339), run.NewRecords, run.UpdatedRecords,
			run.SkippedRecords, run.FailedRecords, outcome)
	}
	return nil
}

func cursorSummary(cursor *domain.SourceCursor) string {
	if cursor.LastRunAt.IsZero() {
		return "never run"
	}
	summary := "last run " + cursor.LastRunAt.Format(time.RFC3339)
	if cursor.LastError != "" {
		summary += " (error: " + cursor.LastError + ")"
	} else if !cursor.LastWindowEnd.IsZero() {
		summary += ", synced to " + cursor.LastWindowEnd.Format(time.RFC3339)
	}
	return summary
}
