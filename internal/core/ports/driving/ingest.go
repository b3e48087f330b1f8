package driving

import (
	"context"

	"github.com/custodia-labs/annsync/internal/core/domain"
)

// RunStatus describes an in-flight or idle source.
type RunStatus struct {
	// SourceName is the source being reported on.
	SourceName string

	// Running is true while a run for the source is in flight.
	Running bool

	// RecordsProcessed counts records handled so far in the current run.
	RecordsProcessed int

	// ErrorCount counts per-record failures so far in the current run.
	ErrorCount int
}

// Ingestor is the ingestion entry point. The scheduler and any manual
// trigger call it.
type Ingestor interface {
	// Run ingests one source's pending window and returns a structured
	// report. Every executed run yields a non-nil report, failed runs
	// included. At most one run per source may be in flight; a second
	// trigger returns domain.ErrRunInProgress with a nil report and is
	// dropped, not queued.
	Run(ctx context.Context, sourceName string) (*domain.RunReport, error)

	// Status returns the current status for a source.
	Status(ctx context.Context, sourceName string) (*RunStatus, error)

	// Sources lists the configured sources.
	Sources(ctx context.Context) []domain.Source
}
