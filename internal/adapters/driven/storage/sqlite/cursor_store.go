package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/annsync/internal/core/domain"
	"github.com/custodia-labs/annsync/internal/core/ports/driven"
)

// cursorStore implements driven.CursorStore.
type cursorStore struct {
	store *Store
}

var _ driven.CursorStore = (*cursorStore)(nil)

// GetCursor retrieves the cursor for a source.
// Returns domain.ErrNotFound before the source's first run.
func (s *cursorStore) GetCursor(ctx context.Context, sourceName string) (*domain.SourceCursor, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT source_name, first_run, last_window_end, last_run_at,
			last_error, last_new_records, updated_at
		FROM source_cursors WHERE source_name = ?
	`, sourceName)

	var (
		cursor                            domain.SourceCursor
		firstRun                          int
		lastWindowEnd, lastRunAt, lastErr sql.NullString
		updatedAt                         sql.NullString
	)
	if err := row.Scan(&cursor.SourceName, &firstRun, &lastWindowEnd, &lastRunAt,
		&lastErr, &cursor.LastNewRecords, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning cursor: %w", err)
	}

	cursor.FirstRun = firstRun == 1
	cursor.LastWindowEnd = parseNullableTime(lastWindowEnd)
	cursor.LastRunAt = parseNullableTime(lastRunAt)
	cursor.LastError = lastErr.String
	cursor.UpdatedAt = parseNullableTime(updatedAt)

	return &cursor, nil
}

// SaveCursor stores or overwrites the cursor for a source.
func (s *cursorStore) SaveCursor(ctx context.Context, cursor *domain.SourceCursor) error {
	if cursor == nil || cursor.SourceName == "" {
		return domain.ErrInvalidInput
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO source_cursors (source_name, first_run, last_window_end,
			last_run_at, last_error, last_new_records, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_name) DO UPDATE SET
			first_run = excluded.first_run,
			last_window_end = excluded.last_window_end,
			last_run_at = excluded.last_run_at,
			last_error = excluded.last_error,
			last_new_records = excluded.last_new_records,
			updated_at = excluded.updated_at
	`, cursor.SourceName, boolToInt(cursor.FirstRun),
		formatNullableTime(cursor.LastWindowEnd), formatNullableTime(cursor.LastRunAt),
		nullString(cursor.LastError), cursor.LastNewRecords,
		time.Now().UTC().Format(time.RFC3339Nano))

	if err != nil {
		return fmt.Errorf("saving cursor: %w", err)
	}
	return nil
}

// RecordRun appends one run report to the history.
func (s *cursorStore) RecordRun(ctx context.Context, report *domain.RunReport) error {
	if report == nil || report.SourceName == "" {
		return domain.ErrInvalidInput
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO run_results (run_id, source_name, window_start, window_end,
			first_run, new_records, updated_records, skipped_records,
			failed_records, attachments_fetched, attachments_failed,
			started_at, ended_at, success, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, report.RunID, report.SourceName,
		formatNullableTime(report.Window.Start), formatNullableTime(report.Window.End),
		boolToInt(report.FirstRun), report.NewRecords, report.UpdatedRecords,
		report.SkippedRecords, report.FailedRecords,
		report.AttachmentsFetched, report.AttachmentsFailed,
		report.StartedAt.Format(time.RFC3339Nano), formatNullableTime(report.EndedAt),
		boolToInt(report.Success), nullString(report.Error))

	if err != nil {
		return fmt.Errorf("recording run result: %w", err)
	}
	return nil
}

// RunHistory returns recent run reports for a source, most recent first.
func (s *cursorStore) RunHistory(ctx context.Context, sourceName string, limit int) ([]domain.RunReport, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT run_id, source_name, window_start, window_end, first_run,
			new_records, updated_records, skipped_records, failed_records,
			attachments_fetched, attachments_failed, started_at, ended_at,
			success, error
		FROM run_results
		WHERE source_name = ?
		ORDER BY started_at DESC
		LIMIT ?
	`, sourceName, limit)
	if err != nil {
		return nil, fmt.Errorf("querying run history: %w", err)
	}
	defer rows.Close()

	var reports []domain.RunReport //nolint:prealloc // size unknown from query
	for rows.Next() {
		var (
			report                          domain.RunReport
			windowStart, windowEnd          sql.NullString
			firstRun, success               int
			startedAt, endedAt              sql.NullString
			errMsg                          sql.NullString
		)
		if err := rows.Scan(&report.RunID, &report.SourceName, &windowStart, &windowEnd,
			&firstRun, &report.NewRecords, &report.UpdatedRecords, &report.SkippedRecords,
			&report.FailedRecords, &report.AttachmentsFetched, &report.AttachmentsFailed,
			&startedAt, &endedAt, &success, &errMsg); err != nil {
			return nil, fmt.Errorf("scanning run result: %w", err)
		}

		report.Window = domain.Window{
			Start: parseNullableTime(windowStart),
			End:   parseNullableTime(windowEnd),
		}
		report.FirstRun = firstRun == 1
		report.StartedAt = parseNullableTime(startedAt)
		report.EndedAt = parseNullableTime(endedAt)
		report.Success = success == 1
		report.Error = errMsg.String
		reports = append(reports, report)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating run history: %w", err)
	}
	return reports, nil
}

// PruneHistory removes old run results beyond the retention limit.
// Keeps the most recent 'keep' results per source.
func (s *cursorStore) PruneHistory(ctx context.Context, keep int) error {
	if keep < 0 {
		return domain.ErrInvalidInput
	}
	// Delete all results except the most recent 'keep' per source
	_, err := s.store.db.ExecContext(ctx, `
		DELETE FROM run_results
		WHERE id NOT IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (PARTITION BY source_name ORDER BY started_at DESC) as rn
				FROM run_results
			) WHERE rn <= ?
		)
	`, keep)
	if err != nil {
		return fmt.Errorf("pruning run history: %w", err)
	}
	return nil
}
