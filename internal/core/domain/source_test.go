package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSource_Normalize_Defaults(t *testing.T) {
	src := Source{Name: "nse", FeedURL: "https://example.com/feed"}
	require.NoError(t, src.Normalize())

	assert.Equal(t, DefaultTimezone, src.Timezone)
	assert.Equal(t, DefaultBackfillDays, src.BackfillDays)
	assert.Equal(t, DefaultInterval, src.Interval)
	assert.Equal(t, DefaultWorkers, src.Workers)
}

func TestSource_Normalize_KeepsExplicitValues(t *testing.T) {
	src := Source{
		Name:         "bse",
		Timezone:     "Europe/London",
		BackfillDays: 7,
		Interval:     time.Minute,
		Workers:      1,
	}
	require.NoError(t, src.Normalize())

	assert.Equal(t, "Europe/London", src.Timezone)
	assert.Equal(t, 7, src.BackfillDays)
	assert.Equal(t, time.Minute, src.Interval)
	assert.Equal(t, 1, src.Workers)
}

func TestSource_Normalize_NoName(t *testing.T) {
	src := Source{}
	assert.ErrorIs(t, src.Normalize(), ErrInvalidInput)
}

func TestSource_BackfillWindow(t *testing.T) {
	src := Source{Name: "nse", BackfillDays: 90}
	now := time.Date(2025, 8, 25, 17, 0, 0, 0, time.UTC)

	window := src.BackfillWindow(now)
	assert.Equal(t, now.AddDate(0, 0, -90), window.Start)
	assert.Equal(t, now, window.End)
}

func TestNewSourceCursor(t *testing.T) {
	cursor := NewSourceCursor("nse")
	assert.Equal(t, "nse", cursor.SourceName)
	assert.True(t, cursor.FirstRun)
	assert.True(t, cursor.LastWindowEnd.IsZero())
}

func TestRunReport_Processed(t *testing.T) {
	report := RunReport{NewRecords: 3, UpdatedRecords: 2, SkippedRecords: 1, FailedRecords: 1}
	assert.Equal(t, 7, report.Processed())
}

func TestWindow_IsZero(t *testing.T) {
	assert.True(t, Window{}.IsZero())
	assert.False(t, Window{End: time.Now()}.IsZero())
}

func TestAttachment_Fetched(t *testing.T) {
	assert.True(t, (&Attachment{Status: FetchStatusFetched}).Fetched())
	assert.False(t, (&Attachment{Status: FetchStatusFailed}).Fetched())
	assert.False(t, (&Attachment{Status: FetchStatusSkipped}).Fetched())
}
