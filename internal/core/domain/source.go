package domain

import "time"

// Default source settings applied by Normalize.
const (
	// DefaultTimezone is the target timezone for naive upstream timestamps.
	DefaultTimezone = "Asia/Kolkata"

	// DefaultBackfillDays bounds the first-run historical window.
	DefaultBackfillDays = 90

	// DefaultInterval is the scheduling cadence per source.
	DefaultInterval = 15 * time.Minute

	// DefaultWorkers bounds concurrent record processing within one run.
	DefaultWorkers = 4
)

// Source is one configured announcement source.
type Source struct {
	// Name is the unique identifier for the source.
	Name string

	// FeedURL is the endpoint the raw record source fetches from.
	// Its interpretation belongs to the record source adapter.
	FeedURL string

	// Timezone is the IANA name of the target timezone for naive
	// upstream timestamps.
	Timezone string

	// BackfillDays bounds the first-run window: the initial run fetches
	// the last BackfillDays days.
	BackfillDays int

	// Interval is how often the scheduler triggers this source.
	Interval time.Duration

	// Workers bounds concurrent record processing within one run.
	Workers int

	// Enabled controls whether the scheduler triggers this source.
	// Manual runs ignore it.
	Enabled bool
}

// Normalize fills unset fields with defaults. Returns ErrInvalidInput
// when the source has no name.
func (s *Source) Normalize() error {
	if s.Name == "" {
		return ErrInvalidInput
	}
	if s.Timezone == "" {
		s.Timezone = DefaultTimezone
	}
	if s.BackfillDays <= 0 {
		s.BackfillDays = DefaultBackfillDays
	}
	if s.Interval <= 0 {
		s.Interval = DefaultInterval
	}
	if s.Workers <= 0 {
		s.Workers = DefaultWorkers
	}
	return nil
}

// BackfillWindow returns the first-run fetch window ending at now.
func (s *Source) BackfillWindow(now time.Time) Window {
	return Window{
		Start: now.AddDate(0, 0, -s.BackfillDays),
		End:   now,
	}
}
