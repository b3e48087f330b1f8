package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/annsync/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/annsync/internal/core/domain"
)

// --- Mock implementations for ingest testing ---

// ingestMockSource implements driven.RecordSource for testing.
type ingestMockSource struct {
	mu       sync.Mutex
	records  []domain.RawRecord
	fetchErr error
	windows  []domain.Window
	release  chan struct{} // when non-nil, Fetch blocks until closed
}

func (m *ingestMockSource) Fetch(ctx context.Context, source domain.Source, window domain.Window) (<-chan domain.RawRecord, <-chan error) {
	m.mu.Lock()
	m.windows = append(m.windows, window)
	release := m.release
	m.mu.Unlock()

	recs := make(chan domain.RawRecord)
	errs := make(chan error, 1)

	go func() {
		defer close(recs)
		defer close(errs)

		if release != nil {
			select {
			case <-ctx.Done():
				return
			case <-release:
			}
		}

		if m.fetchErr != nil {
			errs <- m.fetchErr
			return
		}

		for _, rec := range m.records {
			select {
			case <-ctx.Done():
				return
			case recs <- rec:
			}
		}
	}()

	return recs, errs
}

func (m *ingestMockSource) seenWindows() []domain.Window {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Window, len(m.windows))
	copy(out, m.windows)
	return out
}

// ingestMockNormaliser implements driven.RecordNormaliser. Records
// whose "id" field is "reject" are rejected.
type ingestMockNormaliser struct{}

func (ingestMockNormaliser) Normalise(_ context.Context, raw *domain.RawRecord) (*domain.Announcement, error) {
	id, _ := raw.Fields["id"].(string)
	if id == "" || id == "reject" {
		return nil, domain.ErrRecordRejected
	}
	headline, _ := raw.Fields["headline"].(string)
	return &domain.Announcement{
		IdentityKey: id,
		SourceName:  raw.SourceName,
		SourceID:    id,
		Headline:    headline,
	}, nil
}

// ingestMockResolver implements driven.AttachmentResolver.
type ingestMockResolver struct {
	atts []domain.Attachment
}

func (m *ingestMockResolver) Resolve(_ context.Context, ann *domain.Announcement) []domain.Attachment {
	out := make([]domain.Attachment, len(m.atts))
	copy(out, m.atts)
	for i := range out {
		out[i].AnnouncementKey = ann.IdentityKey
	}
	return out
}

// failingAnnouncementStore wraps the memory store and fails every save.
type failingAnnouncementStore struct {
	*memory.AnnouncementStore
}

func (f *failingAnnouncementStore) SaveAnnouncement(_ context.Context, _ *domain.Announcement, _ []domain.Attachment) (bool, error) {
	return false, errors.New("disk full")
}

func rawRecord(source, id string) domain.RawRecord {
	return domain.RawRecord{
		SourceName: source,
		Fields:     map[string]any{"id": id, "headline": "Outcome of Board Meeting"},
	}
}

func newTestIngestService(t *testing.T, src *ingestMockSource, sources []domain.Source, opts ...IngestOption) (*IngestService, *memory.AnnouncementStore, *memory.CursorStore) {
	t.Helper()
	annStore := memory.NewAnnouncementStore()
	cursorStore := memory.NewCursorStore()
	svc := NewIngestService(src, ingestMockNormaliser{}, &ingestMockResolver{}, annStore, cursorStore, sources, opts...)
	return svc, annStore, cursorStore
}

// ingestConcurrencyNormaliser wraps the mock normaliser and records the
// peak number of records being processed at once.
type ingestConcurrencyNormaliser struct {
	ingestMockNormaliser

	mu      sync.Mutex
	current int
	peak    int
}

func (n *ingestConcurrencyNormaliser) Normalise(ctx context.Context, raw *domain.RawRecord) (*domain.Announcement, error) {
	n.mu.Lock()
	n.current++
	if n.current > n.peak {
		n.peak = n.current
	}
	n.mu.Unlock()

	time.Sleep(time.Millisecond)

	n.mu.Lock()
	n.current--
	n.mu.Unlock()

	return n.ingestMockNormaliser.Normalise(ctx, raw)
}

func testSource(name string) domain.Source {
	return domain.Source{Name: name, FeedURL: "https://example.com/feed", Enabled: true}
}

func TestIngestService_Run_UnknownSource(t *testing.T) {
	svc, _, _ := newTestIngestService(t, &ingestMockSource{}, nil)

	report, err := svc.Run(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Nil(t, report)
}

func TestIngestService_Run_FirstRunUsesBackfillWindow(t *testing.T) {
	now := time.Date(2025, 8, 25, 17, 0, 0, 0, time.UTC)
	src := &ingestMockSource{records: []domain.RawRecord{rawRecord("nse", "N1")}}
	svc, annStore, cursorStore := newTestIngestService(t, src, []domain.Source{testSource("nse")},
		WithClock(func() time.Time { return now }))

	report, err := svc.Run(context.Background(), "nse")
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.True(t, report.FirstRun)
	assert.True(t, report.Success)
	assert.Equal(t, 1, report.NewRecords)
	assert.Equal(t, now.AddDate(0, 0, -domain.DefaultBackfillDays), report.Window.Start)
	assert.Equal(t, now, report.Window.End)

	ann, err := annStore.GetAnnouncement(context.Background(), "N1")
	require.NoError(t, err)
	assert.Equal(t, "Outcome of Board Meeting", ann.Headline)

	cursor, err := cursorStore.GetCursor(context.Background(), "nse")
	require.NoError(t, err)
	assert.False(t, cursor.FirstRun)
	assert.Equal(t, now, cursor.LastWindowEnd)
	assert.Equal(t, 1, cursor.LastNewRecords)
	assert.Empty(t, cursor.LastError)
}

func TestIngestService_Run_IncrementalWindowFromCursor(t *testing.T) {
	start := time.Date(2025, 8, 25, 17, 0, 0, 0, time.UTC)
	clock := start
	src := &ingestMockSource{records: []domain.RawRecord{rawRecord("nse", "N1")}}
	svc, _, _ := newTestIngestService(t, src, []domain.Source{testSource("nse")},
		WithClock(func() time.Time { return clock }))

	_, err := svc.Run(context.Background(), "nse")
	require.NoError(t, err)

	clock = start.Add(15 * time.Minute)
	report, err := svc.Run(context.Background(), "nse")
	require.NoError(t, err)

	assert.False(t, report.FirstRun)
	assert.Equal(t, start, report.Window.Start)
	assert.Equal(t, clock, report.Window.End)

	windows := src.seenWindows()
	require.Len(t, windows, 2)
	assert.Equal(t, start, windows[1].Start)
}

func TestIngestService_Run_Reingest_CountsUpdated(t *testing.T) {
	src := &ingestMockSource{records: []domain.RawRecord{rawRecord("nse", "N1")}}
	svc, _, _ := newTestIngestService(t, src, []domain.Source{testSource("nse")})

	report, err := svc.Run(context.Background(), "nse")
	require.NoError(t, err)
	assert.Equal(t, 1, report.NewRecords)
	assert.Equal(t, 0, report.UpdatedRecords)

	report, err = svc.Run(context.Background(), "nse")
	require.NoError(t, err)
	assert.Equal(t, 0, report.NewRecords)
	assert.Equal(t, 1, report.UpdatedRecords)
}

func TestIngestService_Run_FetchErrorDoesNotAdvanceCursor(t *testing.T) {
	now := time.Date(2025, 8, 25, 17, 0, 0, 0, time.UTC)
	src := &ingestMockSource{fetchErr: errors.New("connection refused")}
	svc, _, cursorStore := newTestIngestService(t, src, []domain.Source{testSource("nse")},
		WithClock(func() time.Time { return now }))

	report, err := svc.Run(context.Background(), "nse")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSourceFetch)
	require.NotNil(t, report)
	assert.False(t, report.Success)
	assert.NotEmpty(t, report.Error)

	cursor, err := cursorStore.GetCursor(context.Background(), "nse")
	require.NoError(t, err)
	assert.True(t, cursor.FirstRun)
	assert.True(t, cursor.LastWindowEnd.IsZero())
	assert.Contains(t, cursor.LastError, "connection refused")
	assert.Equal(t, now, cursor.LastRunAt)
}

func TestIngestService_Run_RejectedRecordsSkippedNotFatal(t *testing.T) {
	src := &ingestMockSource{records: []domain.RawRecord{
		rawRecord("nse", "N1"),
		rawRecord("nse", "reject"),
		rawRecord("nse", "N2"),
	}}
	svc, _, _ := newTestIngestService(t, src, []domain.Source{testSource("nse")})

	report, err := svc.Run(context.Background(), "nse")
	require.NoError(t, err)
	assert.True(t, report.Success)
	assert.Equal(t, 2, report.NewRecords)
	assert.Equal(t, 1, report.SkippedRecords)
	assert.Equal(t, 3, report.Processed())
}

func TestIngestService_Run_FailureThreshold(t *testing.T) {
	var records []domain.RawRecord
	for i := 0; i < 5; i++ {
		records = append(records, rawRecord("nse", fmt.Sprintf("N%d", i)))
	}
	src := &ingestMockSource{records: records}

	annStore := &failingAnnouncementStore{memory.NewAnnouncementStore()}
	cursorStore := memory.NewCursorStore()
	svc := NewIngestService(src, ingestMockNormaliser{}, &ingestMockResolver{}, annStore, cursorStore,
		[]domain.Source{testSource("nse")}, WithFailureThreshold(2))

	report, err := svc.Run(context.Background(), "nse")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTooManyFailures)
	assert.False(t, report.Success)
	assert.Equal(t, 5, report.FailedRecords)

	cursor, err := cursorStore.GetCursor(context.Background(), "nse")
	require.NoError(t, err)
	assert.True(t, cursor.FirstRun)
}

func TestIngestService_Run_AttachmentCounts(t *testing.T) {
	src := &ingestMockSource{records: []domain.RawRecord{rawRecord("nse", "N1")}}
	annStore := memory.NewAnnouncementStore()
	cursorStore := memory.NewCursorStore()
	resolver := &ingestMockResolver{atts: []domain.Attachment{
		{SourceURL: "https://example.com/a.pdf", Status: domain.FetchStatusFetched},
		{SourceURL: "https://example.com/b.pdf", Status: domain.FetchStatusFailed, FetchError: "404"},
	}}
	svc := NewIngestService(src, ingestMockNormaliser{}, resolver, annStore, cursorStore,
		[]domain.Source{testSource("nse")})

	report, err := svc.Run(context.Background(), "nse")
	require.NoError(t, err)
	assert.True(t, report.Success)
	assert.Equal(t, 1, report.AttachmentsFetched)
	assert.Equal(t, 1, report.AttachmentsFailed)

	atts, err := annStore.GetAttachments(context.Background(), "N1")
	require.NoError(t, err)
	assert.Len(t, atts, 2)
}

func TestIngestService_Run_SecondTriggerDropped(t *testing.T) {
	release := make(chan struct{})
	src := &ingestMockSource{
		records: []domain.RawRecord{rawRecord("nse", "N1")},
		release: release,
	}
	svc, _, _ := newTestIngestService(t, src, []domain.Source{testSource("nse")})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := svc.Run(context.Background(), "nse")
		assert.NoError(t, err)
	}()

	// Wait until the first run holds the slot.
	require.Eventually(t, func() bool {
		status, err := svc.Status(context.Background(), "nse")
		return err == nil && status.Running
	}, time.Second, 5*time.Millisecond)

	report, err := svc.Run(context.Background(), "nse")
	assert.ErrorIs(t, err, domain.ErrRunInProgress)
	assert.Nil(t, report)

	close(release)
	<-done

	// Slot freed: a new trigger runs again.
	src.mu.Lock()
	src.release = nil
	src.mu.Unlock()
	_, err = svc.Run(context.Background(), "nse")
	assert.NoError(t, err)
}

func TestIngestService_Sources_SortedByName(t *testing.T) {
	svc, _, _ := newTestIngestService(t, &ingestMockSource{}, []domain.Source{
		testSource("nse"), testSource("bse"), {Name: ""},
	})

	sources := svc.Sources(context.Background())
	require.Len(t, sources, 2)
	assert.Equal(t, "bse", sources[0].Name)
	assert.Equal(t, "nse", sources[1].Name)
}

func TestIngestService_Status_IdleSource(t *testing.T) {
	svc, _, _ := newTestIngestService(t, &ingestMockSource{}, []domain.Source{testSource("nse")})

	status, err := svc.Status(context.Background(), "nse")
	require.NoError(t, err)
	assert.False(t, status.Running)
	assert.Zero(t, status.RecordsProcessed)
}

func TestIngestService_Run_WorkerPoolBounded(t *testing.T) {
	src := &ingestMockSource{}
	for i := 0; i < 40; i++ {
		src.records = append(src.records, rawRecord("nse", fmt.Sprintf("N%d", i)))
	}

	source := testSource("nse")
	source.Workers = 2

	norm := &ingestConcurrencyNormaliser{}
	annStore := memory.NewAnnouncementStore()
	svc := NewIngestService(src, norm, &ingestMockResolver{}, annStore,
		memory.NewCursorStore(), []domain.Source{source})

	report, err := svc.Run(context.Background(), "nse")
	require.NoError(t, err)
	assert.Equal(t, 40, report.NewRecords)

	norm.mu.Lock()
	defer norm.mu.Unlock()
	assert.LessOrEqual(t, norm.peak, 2, "in-flight records must stay within the source's worker count")
}
