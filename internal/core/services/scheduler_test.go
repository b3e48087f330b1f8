package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/annsync/internal/core/domain"
	"github.com/custodia-labs/annsync/internal/core/ports/driving"
)

// --- Mock implementations for scheduler testing ---

// schedMockIngestor implements driving.Ingestor for testing.
type schedMockIngestor struct {
	mu      sync.Mutex
	sources []domain.Source
	runs    map[string]int
	runErr  map[string]error
}

func newSchedMockIngestor(sources ...domain.Source) *schedMockIngestor {
	return &schedMockIngestor{
		sources: sources,
		runs:    make(map[string]int),
		runErr:  make(map[string]error),
	}
}

func (m *schedMockIngestor) Run(_ context.Context, sourceName string) (*domain.RunReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[sourceName]++
	if err := m.runErr[sourceName]; err != nil {
		return nil, err
	}
	return &domain.RunReport{SourceName: sourceName, Success: true}, nil
}

func (m *schedMockIngestor) Status(_ context.Context, sourceName string) (*driving.RunStatus, error) {
	return &driving.RunStatus{SourceName: sourceName}, nil
}

func (m *schedMockIngestor) Sources(_ context.Context) []domain.Source {
	return m.sources
}

func (m *schedMockIngestor) runCount(sourceName string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs[sourceName]
}

func enabledSource(name string, interval time.Duration) domain.Source {
	return domain.Source{Name: name, Interval: interval, Enabled: true}
}

func startScheduler(t *testing.T, s *Scheduler) (stop func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Start(context.Background())
	}()
	return func() {
		require.NoError(t, s.Stop())
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("scheduler did not stop")
		}
	}
}

func TestScheduler_TriggersEnabledSourcesOnStartup(t *testing.T) {
	ingestor := newSchedMockIngestor(
		enabledSource("nse", time.Hour),
		enabledSource("bse", time.Hour),
		domain.Source{Name: "disabled", Interval: time.Hour, Enabled: false},
	)
	scheduler := NewScheduler(ingestor, WithCheckInterval(10*time.Millisecond))
	stop := startScheduler(t, scheduler)
	defer stop()

	require.Eventually(t, func() bool {
		return ingestor.runCount("nse") == 1 && ingestor.runCount("bse") == 1
	}, time.Second, 5*time.Millisecond)

	assert.Zero(t, ingestor.runCount("disabled"))
}

func TestScheduler_RespectsSourceInterval(t *testing.T) {
	ingestor := newSchedMockIngestor(enabledSource("nse", time.Hour))
	scheduler := NewScheduler(ingestor, WithCheckInterval(5*time.Millisecond))
	stop := startScheduler(t, scheduler)
	defer stop()

	require.Eventually(t, func() bool {
		return ingestor.runCount("nse") == 1
	}, time.Second, 5*time.Millisecond)

	// The interval is an hour: further checks must not re-trigger.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, ingestor.runCount("nse"))
}

func TestScheduler_RetriggersAfterInterval(t *testing.T) {
	ingestor := newSchedMockIngestor(enabledSource("nse", 20*time.Millisecond))
	scheduler := NewScheduler(ingestor, WithCheckInterval(5*time.Millisecond))
	stop := startScheduler(t, scheduler)
	defer stop()

	require.Eventually(t, func() bool {
		return ingestor.runCount("nse") >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestScheduler_SourceFailureIsolated(t *testing.T) {
	ingestor := newSchedMockIngestor(
		enabledSource("nse", time.Hour),
		enabledSource("bse", time.Hour),
	)
	ingestor.runErr["nse"] = errors.New("feed unreachable")

	scheduler := NewScheduler(ingestor, WithCheckInterval(10*time.Millisecond))
	stop := startScheduler(t, scheduler)
	defer stop()

	require.Eventually(t, func() bool {
		return ingestor.runCount("bse") == 1
	}, time.Second, 5*time.Millisecond)
}

func TestScheduler_DroppedTriggerNotFatal(t *testing.T) {
	ingestor := newSchedMockIngestor(enabledSource("nse", 10*time.Millisecond))
	ingestor.runErr["nse"] = domain.ErrRunInProgress

	scheduler := NewScheduler(ingestor, WithCheckInterval(5*time.Millisecond))
	stop := startScheduler(t, scheduler)
	defer stop()

	require.Eventually(t, func() bool {
		return ingestor.runCount("nse") >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	ingestor := newSchedMockIngestor(enabledSource("nse", time.Hour))
	scheduler := NewScheduler(ingestor, WithCheckInterval(10*time.Millisecond))
	stop := startScheduler(t, scheduler)
	stop()

	assert.NoError(t, scheduler.Stop())
}
