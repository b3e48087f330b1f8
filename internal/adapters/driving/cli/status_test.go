package cli

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/annsync/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/annsync/internal/core/domain"
	"github.com/custodia-labs/annsync/internal/core/ports/driving"
)

// withCursorStore swaps the package cursor store for the test's duration.
func withCursorStore(t *testing.T, store *memory.CursorStore) {
	t.Helper()
	original := cursorStore
	cursorStore = store
	t.Cleanup(func() { cursorStore = original })
}

func TestStatusCmd_AllSources_NeverRun(t *testing.T) {
	withIngestor(t, &cliMockIngestor{sources: []domain.Source{{Name: "nse"}}})
	withCursorStore(t, memory.NewCursorStore())

	out, err := execute(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "nse")
	assert.Contains(t, out, "never run")
}

func TestStatusCmd_SingleSource_WithHistory(t *testing.T) {
	withIngestor(t, &cliMockIngestor{})
	store := memory.NewCursorStore()
	withCursorStore(t, store)

	lastRun := time.Date(2025, 8, 25, 17, 0, 0, 0, time.UTC)
	cursor := &domain.SourceCursor{
		SourceName:    "nse",
		FirstRun:      false,
		LastWindowEnd: lastRun,
		LastRunAt:     lastRun,
	}
	ctx := context.Background()
	require.NoError(t, store.SaveCursor(ctx, cursor))
	require.NoError(t, store.RecordRun(ctx, &domain.RunReport{
		RunID:      "run-1",
		SourceName: "nse",
		NewRecords: 7,
		StartedAt:  lastRun.Add(-time.Minute),
		Success:    true,
	}))

	out, err := execute(t, "status", "nse")
	require.NoError(t, err)
	assert.Contains(t, out, "idle")
	assert.Contains(t, out, "synced to 2025-08-25T17:00:00Z")
	assert.Contains(t, out, "7 new")
}

func TestStatusCmd_RunningSource(t *testing.T) {
	withIngestor(t, &cliMockIngestor{status: driving.RunStatus{
		SourceName:       "nse",
		Running:          true,
		RecordsProcessed: 100,
		ErrorCount:       2,
	}})
	withCursorStore(t, memory.NewCursorStore())

	out, err := execute(t, "status", "nse")
	require.NoError(t, err)
	assert.Contains(t, out, "run in flight")
	assert.Contains(t, out, "100 records processed")
}

func TestSourcesCmd_ListsSources(t *testing.T) {
	withIngestor(t, &cliMockIngestor{sources: []domain.Source{
		{Name: "nse", FeedURL: "https://example.com/nse", Interval: 15 * time.Minute, BackfillDays: 90, Enabled: true},
		{Name: "bse", FeedURL: "https://example.com/bse", Interval: time.Hour, BackfillDays: 30},
	}})

	out, err := execute(t, "sources")
	require.NoError(t, err)
	assert.Contains(t, out, "nse")
	assert.Contains(t, out, "bse")
	assert.Contains(t, out, "yes")
	assert.Contains(t, out, "no")
}

func TestSourcesCmd_Empty(t *testing.T) {
	withIngestor(t, &cliMockIngestor{})

	out, err := execute(t, "sources")
	require.NoError(t, err)
	assert.Contains(t, out, "No sources configured")
}
