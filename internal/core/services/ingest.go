package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/annsync/internal/core/domain"
	"github.com/custodia-labs/annsync/internal/core/ports/driven"
	"github.com/custodia-labs/annsync/internal/core/ports/driving"
	"github.com/custodia-labs/annsync/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.Ingestor = (*IngestService)(nil)

const (
	// defaultFailureThreshold is how many per-record persistence
	// failures a run tolerates before the whole run is marked failed.
	defaultFailureThreshold = 10

	// defaultHistoryKeep is how many run reports are retained per source.
	defaultHistoryKeep = 100
)

// IngestService coordinates ingestion runs: it owns the per-source
// cursor decision (backfill vs. catch-up), drives records through
// normalisation, attachment resolution and persistence, and advances
// the cursor only after a fully successful run.
type IngestService struct {
	recordSource driven.RecordSource
	normaliser   driven.RecordNormaliser
	resolver     driven.AttachmentResolver
	annStore     driven.AnnouncementStore
	cursorStore  driven.CursorStore

	sources          map[string]domain.Source
	failureThreshold int
	historyKeep      int
	now              func() time.Time

	// Single-in-flight-per-source guard and status tracking.
	mu       sync.Mutex
	inFlight map[string]*driving.RunStatus
}

// IngestOption configures an IngestService.
type IngestOption func(*IngestService)

// WithFailureThreshold overrides the per-run record failure tolerance.
func WithFailureThreshold(n int) IngestOption {
	return func(s *IngestService) { s.failureThreshold = n }
}

// WithHistoryKeep overrides the run history retention per source.
func WithHistoryKeep(n int) IngestOption {
	return func(s *IngestService) {
		if n > 0 {
			s.historyKeep = n
		}
	}
}

// WithClock replaces the wall clock. Useful for tests.
func WithClock(now func() time.Time) IngestOption {
	return func(s *IngestService) { s.now = now }
}

// NewIngestService creates the ingestion coordinator for the given
// sources. Source defaults are applied; sources without a name are
// dropped with a warning.
func NewIngestService(
	recordSource driven.RecordSource,
	normaliser driven.RecordNormaliser,
	resolver driven.AttachmentResolver,
	annStore driven.AnnouncementStore,
	cursorStore driven.CursorStore,
	sources []domain.Source,
	opts ...IngestOption,
) *IngestService {
	s := &IngestService{
		recordSource:     recordSource,
		normaliser:       normaliser,
		resolver:         resolver,
		annStore:         annStore,
		cursorStore:      cursorStore,
		sources:          make(map[string]domain.Source, len(sources)),
		failureThreshold: defaultFailureThreshold,
		historyKeep:      defaultHistoryKeep,
		now:              time.Now,
		inFlight:         make(map[string]*driving.RunStatus),
	}
	for _, src := range sources {
		if err := src.Normalize(); err != nil {
			logger.Warn("Dropping source with no name")
			continue
		}
		s.sources[src.Name] = src
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run ingests the pending window for one source and returns a
// structured report. A trigger while another run for the same source
// is in flight returns domain.ErrRunInProgress with a nil report: the
// trigger is dropped, not queued.
func (s *IngestService) Run(ctx context.Context, sourceName string) (*domain.RunReport, error) {
	source, ok := s.sources[sourceName]
	if !ok {
		return nil, fmt.Errorf("source %q: %w", sourceName, domain.ErrNotFound)
	}

	status, acquired := s.acquire(sourceName)
	if !acquired {
		return nil, fmt.Errorf("source %q: %w", sourceName, domain.ErrRunInProgress)
	}
	defer s.release(sourceName)

	startedAt := s.now()
	report := &domain.RunReport{
		RunID:      uuid.New().String(),
		SourceName: sourceName,
		StartedAt:  startedAt,
	}

	// Resolve the cursor; a missing cursor means this is the first run.
	cursor, err := s.cursorStore.GetCursor(ctx, sourceName)
	if errors.Is(err, domain.ErrNotFound) {
		cursor = domain.NewSourceCursor(sourceName)
	} else if err != nil {
		// The cursor store is unreachable: abort before touching anything.
		report.EndedAt = s.now()
		report.Error = err.Error()
		return report, fmt.Errorf("get cursor: %w: %w", domain.ErrStoreUnavailable, err)
	}

	report.FirstRun = cursor.FirstRun || cursor.LastWindowEnd.IsZero()
	if report.FirstRun {
		report.Window = source.BackfillWindow(startedAt)
	} else {
		report.Window = domain.Window{Start: cursor.LastWindowEnd, End: startedAt}
	}

	logger.Info("Starting run for source %s (window %s .. %s, first_run=%t)",
		sourceName, report.Window.Start.Format(time.RFC3339),
		report.Window.End.Format(time.RFC3339), report.FirstRun)

	runErr := s.processWindow(ctx, source, report, status)

	report.EndedAt = s.now()
	report.Success = runErr == nil
	if runErr != nil {
		report.Error = runErr.Error()
	}

	s.finishRun(ctx, cursor, report)

	logger.Info("Run for source %s finished: %d new, %d updated, %d skipped, %d failed, success=%t",
		sourceName, report.NewRecords, report.UpdatedRecords,
		report.SkippedRecords, report.FailedRecords, report.Success)

	return report, runErr
}

// Status returns the current status for a source.
func (s *IngestService) Status(_ context.Context, sourceName string) (*driving.RunStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if status, ok := s.inFlight[sourceName]; ok {
		// Return a copy to avoid race conditions
		copied := *status
		return &copied, nil
	}
	return &driving.RunStatus{SourceName: sourceName}, nil
}

// Sources lists the configured sources, sorted by name.
func (s *IngestService) Sources(_ context.Context) []domain.Source {
	sources := make([]domain.Source, 0, len(s.sources))
	for _, src := range s.sources {
		sources = append(sources, src)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].Name < sources[j].Name })
	return sources
}

// processWindow streams records from the raw source through the
// pipeline with a bounded worker pool. Per-record failures are counted,
// never fatal; a failure of the fetch itself fails the run.
func (s *IngestService) processWindow(
	ctx context.Context,
	source domain.Source,
	report *domain.RunReport,
	status *driving.RunStatus,
) error {
	recsCh, errsCh := s.recordSource.Fetch(ctx, source, report.Window)

	var (
		wg       sync.WaitGroup
		counters runCounters
		fetchErr error
	)
	sem := make(chan struct{}, source.Workers)

	for recsCh != nil || errsCh != nil {
		select {
		case <-ctx.Done():
			wg.Wait()
			s.applyCounters(report, status, &counters)
			return ctx.Err()

		case err, ok := <-errsCh:
			if !ok {
				errsCh = nil
				continue
			}
			if err != nil && fetchErr == nil {
				fetchErr = fmt.Errorf("%w: %w", domain.ErrSourceFetch, err)
			}

		case rec, ok := <-recsCh:
			if !ok {
				recsCh = nil
				continue
			}
			// Claim a worker slot before spawning so a large backfill
			// window never holds more than Workers goroutines at once.
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				wg.Wait()
				s.applyCounters(report, status, &counters)
				return ctx.Err()
			}
			wg.Add(1)
			go func(rec domain.RawRecord) {
				defer wg.Done()
				defer func() { <-sem }()

				s.processRecord(ctx, &rec, &counters)
				s.applyCounters(report, status, &counters)
			}(rec)
		}
	}
	wg.Wait()
	s.applyCounters(report, status, &counters)

	if fetchErr != nil {
		return fetchErr
	}
	if report.FailedRecords > s.failureThreshold {
		return fmt.Errorf("%d record failures: %w", report.FailedRecords, domain.ErrTooManyFailures)
	}
	return nil
}

// processRecord runs one record through normalise → attachments →
// persist, recording the outcome in counters.
func (s *IngestService) processRecord(ctx context.Context, rec *domain.RawRecord, counters *runCounters) {
	ann, err := s.normaliser.Normalise(ctx, rec)
	if err != nil {
		// Malformed beyond recovery: skipped and counted, not retried
		// individually.
		logger.Debug("Skipping record from %s: %v", rec.SourceName, err)
		counters.add(func(c *counts) { c.skipped++ })
		return
	}

	atts := s.resolver.Resolve(ctx, ann)
	var attFetched, attFailed int
	for i := range atts {
		if atts[i].Fetched() {
			attFetched++
		} else {
			attFailed++
		}
	}

	created, err := s.annStore.SaveAnnouncement(ctx, ann, atts)
	if err != nil {
		// Retryable: the window is replayed while the cursor has not
		// advanced.
		logger.Warn("Persist failed for %s: %v", ann.IdentityKey, err)
		counters.add(func(c *counts) { c.failed++ })
		return
	}

	counters.add(func(c *counts) {
		if created {
			c.newRecords++
		} else {
			c.updated++
		}
		c.attFetched += attFetched
		c.attFailed += attFailed
	})
}

// finishRun overwrites the cursor's observability fields and, on
// success only, advances the window end and clears the first-run flag.
// Cursor bookkeeping failures are logged, not returned: the run outcome
// stands.
func (s *IngestService) finishRun(ctx context.Context, cursor *domain.SourceCursor, report *domain.RunReport) {
	cursor.LastRunAt = report.EndedAt
	cursor.LastError = report.Error
	cursor.LastNewRecords = report.NewRecords

	if report.Success {
		cursor.FirstRun = false
		// Never rewind.
		if report.Window.End.After(cursor.LastWindowEnd) {
			cursor.LastWindowEnd = report.Window.End
		}
	}

	if err := s.cursorStore.SaveCursor(ctx, cursor); err != nil {
		logger.Error("Saving cursor for %s: %v", cursor.SourceName, err)
	}
	if err := s.cursorStore.RecordRun(ctx, report); err != nil {
		logger.Warn("Recording run result for %s: %v", cursor.SourceName, err)
	}
	if err := s.cursorStore.PruneHistory(ctx, s.historyKeep); err != nil {
		logger.Warn("Pruning run history: %v", err)
	}
}

// acquire claims the single run slot for a source.
func (s *IngestService) acquire(sourceName string) (*driving.RunStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, running := s.inFlight[sourceName]; running {
		return nil, false
	}
	status := &driving.RunStatus{SourceName: sourceName, Running: true}
	s.inFlight[sourceName] = status
	return status, true
}

// release frees the run slot for a source.
func (s *IngestService) release(sourceName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, sourceName)
}

// applyCounters copies the counters into the report and live status.
func (s *IngestService) applyCounters(report *domain.RunReport, status *driving.RunStatus, counters *runCounters) {
	c := counters.snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()
	report.NewRecords = c.newRecords
	report.UpdatedRecords = c.updated
	report.SkippedRecords = c.skipped
	report.FailedRecords = c.failed
	report.AttachmentsFetched = c.attFetched
	report.AttachmentsFailed = c.attFailed
	status.RecordsProcessed = c.newRecords + c.updated + c.skipped + c.failed
	status.ErrorCount = c.failed
}

// counts are the per-run tallies.
type counts struct {
	newRecords int
	updated    int
	skipped    int
	failed     int
	attFetched int
	attFailed  int
}

// runCounters guards counts for concurrent workers.
type runCounters struct {
	mu sync.Mutex
	c  counts
}

func (r *runCounters) add(fn func(*counts)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.c)
}

func (r *runCounters) snapshot() counts {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.c
}
