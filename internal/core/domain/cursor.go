package domain

import "time"

// Window is a bounded time range over which records are requested
// from a raw record source.
type Window struct {
	// Start is the inclusive lower bound.
	Start time.Time

	// End is the exclusive upper bound.
	End time.Time
}

// IsZero reports whether the window is unset.
func (w Window) IsZero() bool {
	return w.Start.IsZero() && w.End.IsZero()
}

// SourceCursor is the persisted synchronisation state for one source.
type SourceCursor struct {
	// SourceName is the key.
	SourceName string

	// FirstRun is true until one full backfill run completes successfully.
	FirstRun bool

	// LastWindowEnd is the end of the most recent successfully ingested
	// window. It only ever advances, and only after persistence of that
	// window fully succeeded. Zero before the first successful run.
	LastWindowEnd time.Time

	// LastRunAt is when the most recent run finished, successful or not.
	LastRunAt time.Time

	// LastError is the most recent run's error text, empty on success.
	LastError string

	// LastNewRecords is how many new announcements the most recent run
	// persisted.
	LastNewRecords int

	// UpdatedAt is when the cursor row was last written.
	UpdatedAt time.Time
}

// NewSourceCursor returns the initial cursor for a source that has
// never completed a run.
func NewSourceCursor(sourceName string) *SourceCursor {
	return &SourceCursor{
		SourceName: sourceName,
		FirstRun:   true,
	}
}

// RunReport is the structured result of one ingestion run.
// Callers always receive one, with or without an error.
type RunReport struct {
	// RunID uniquely identifies this run for history and logs.
	RunID string

	// SourceName is the source this run ingested.
	SourceName string

	// Window is the time range that was fetched.
	Window Window

	// FirstRun is true when this run performed the historical backfill.
	FirstRun bool

	// NewRecords is the count of announcements persisted for the first time.
	NewRecords int

	// UpdatedRecords is the count of announcements overwritten by upsert.
	UpdatedRecords int

	// SkippedRecords is the count of malformed records rejected by
	// normalisation. Skips do not fail the run.
	SkippedRecords int

	// FailedRecords is the count of records whose persistence failed.
	FailedRecords int

	// AttachmentsFetched is the count of attachments durably stored.
	AttachmentsFetched int

	// AttachmentsFailed is the count of attachments marked fetch-failed.
	AttachmentsFailed int

	// StartedAt and EndedAt bound the run's execution.
	StartedAt time.Time
	EndedAt   time.Time

	// Success reports whether the cursor advanced.
	Success bool

	// Error is the run-level error text, empty on success.
	Error string
}

// Processed returns the total count of records handled in this run.
func (r *RunReport) Processed() int {
	return r.NewRecords + r.UpdatedRecords + r.SkippedRecords + r.FailedRecords
}
