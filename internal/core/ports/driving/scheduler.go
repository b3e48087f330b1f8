package driving

import "context"

// RunScheduler triggers ingestion runs on a recurring cadence.
type RunScheduler interface {
	// Start begins the scheduling loop. Blocks until Stop is called or
	// the context is cancelled.
	Start(ctx context.Context) error

	// Stop gracefully shuts the scheduler down, waiting for in-flight
	// runs to finish.
	Stop() error
}
