package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/custodia-labs/annsync/internal/core/domain"
	"github.com/custodia-labs/annsync/internal/core/ports/driving"
	"github.com/custodia-labs/annsync/internal/logger"
)

// Ensure Scheduler implements the interface.
var _ driving.RunScheduler = (*Scheduler)(nil)

// defaultCheckInterval is how often the scheduler looks for due sources.
const defaultCheckInterval = 30 * time.Second

// Scheduler triggers ingestion runs per source on each source's
// configured interval. Sources run on independent timelines and are
// failure-isolated: one source failing never stops the others' triggers.
type Scheduler struct {
	ingestor      driving.Ingestor
	checkInterval time.Duration
	now           func() time.Time

	mu      sync.Mutex
	running bool
	nextRun map[string]time.Time
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithCheckInterval overrides how often due sources are checked.
func WithCheckInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.checkInterval = d
		}
	}
}

// WithSchedulerClock replaces the wall clock. Useful for tests.
func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.now = now }
}

// NewScheduler creates a scheduler driving the given ingestor.
func NewScheduler(ingestor driving.Ingestor, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		ingestor:      ingestor,
		checkInterval: defaultCheckInterval,
		now:           time.Now,
		nextRun:       make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins the scheduler loop. This method blocks until Stop is
// called or the context is cancelled. Enabled sources are triggered
// immediately on startup, then on their configured intervals.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil // Already running
	}
	s.running = true
	s.stopCh = make(chan struct{})
	now := s.now()
	for _, src := range s.ingestor.Sources(ctx) {
		if src.Enabled {
			s.nextRun[src.Name] = now
		}
	}
	s.mu.Unlock()

	logger.Info("Scheduler started (check interval %s)", s.checkInterval)

	// Check for due sources immediately on startup
	s.checkAndRunDue(ctx)

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return ctx.Err()
		case <-s.stopCh:
			return nil
		case <-ticker.C:
			s.checkAndRunDue(ctx)
		}
	}
}

// Stop gracefully shuts down the scheduler and waits for in-flight
// runs to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// checkAndRunDue triggers every enabled source whose next-run time has
// passed. The next trigger time advances immediately so a slow run
// cannot pile up triggers behind itself.
func (s *Scheduler) checkAndRunDue(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	var due []domain.Source
	for _, src := range s.ingestor.Sources(ctx) {
		if !src.Enabled {
			continue
		}
		next, ok := s.nextRun[src.Name]
		if !ok {
			next = now
		}
		if !next.After(now) {
			s.nextRun[src.Name] = now.Add(src.Interval)
			due = append(due, src)
		}
	}
	s.mu.Unlock()

	for _, src := range due {
		s.triggerRun(ctx, src.Name)
	}
}

// triggerRun launches one ingestion run in the background. A trigger
// that collides with an in-flight run for the same source is dropped;
// the ingestor records every executed run's outcome in the cursor.
func (s *Scheduler) triggerRun(ctx context.Context, sourceName string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		report, err := s.ingestor.Run(ctx, sourceName)
		switch {
		case errors.Is(err, domain.ErrRunInProgress):
			logger.Info("Dropping trigger for %s: run still in flight", sourceName)
		case err != nil:
			logger.Error("Run for %s failed: %v", sourceName, err)
		default:
			logger.Info("Scheduled run for %s: %d new records", sourceName, report.NewRecords)
		}
	}()
}
