package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrRecordRejected indicates a raw record lacks both a usable
	// headline/body and any identity-contributing field. The record is
	// skipped, not retried individually.
	ErrRecordRejected = errors.New("record rejected")

	// ErrRunInProgress indicates a run for the source is already in
	// flight. The trigger is dropped, not queued.
	ErrRunInProgress = errors.New("run already in progress")

	// ErrSourceFetch indicates the raw record source failed entirely.
	// The run aborts without advancing the cursor.
	ErrSourceFetch = errors.New("source fetch failed")

	// ErrTooManyFailures indicates per-record persistence failures
	// exceeded the run's threshold. The run is marked failed and the
	// cursor is not advanced.
	ErrTooManyFailures = errors.New("too many record failures")

	// ErrStoreUnavailable indicates the database or blob store cannot
	// be reached at all. The run aborts immediately.
	ErrStoreUnavailable = errors.New("store unavailable")
)
