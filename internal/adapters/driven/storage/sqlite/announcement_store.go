package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/annsync/internal/core/domain"
	"github.com/custodia-labs/annsync/internal/core/ports/driven"
)

// announcementStore implements driven.AnnouncementStore.
type announcementStore struct {
	store *Store
}

var _ driven.AnnouncementStore = (*announcementStore)(nil)

const announcementColumns = `identity_key, source_name, source_id, entity_code, entity_name,
		category, subcategory, headline, body_text, body_html,
		disseminated_at, received_at, processing_latency_seconds,
		is_revision, tags, declared_attachments, raw_payload,
		created_at, updated_at`

// SaveAnnouncement upserts the announcement and its attachments in one
// transaction. The identity key and created_at are immutable; every
// other column is overwritten. Returns created=true when the row did
// not exist before.
func (s *announcementStore) SaveAnnouncement(ctx context.Context, ann *domain.Announcement, atts []domain.Attachment) (bool, error) {
	if ann == nil || ann.IdentityKey == "" {
		return false, domain.ErrInvalidInput
	}

	tagsJSON, err := json.Marshal(ann.Tags)
	if err != nil {
		return false, fmt.Errorf("marshalling tags: %w", err)
	}
	declaredJSON, err := json.Marshal(declaredToRows(ann.DeclaredAttachments))
	if err != nil {
		return false, fmt.Errorf("marshalling declared attachments: %w", err)
	}
	rawJSON, err := json.Marshal(ann.RawPayload)
	if err != nil {
		return false, fmt.Errorf("marshalling raw payload: %w", err)
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	// Existence check drives the created flag; the upsert itself keeps
	// created_at through the conflict clause.
	var existing int
	err = tx.QueryRowContext(ctx,
		"SELECT 1 FROM announcements WHERE identity_key = ?", ann.IdentityKey).Scan(&existing)
	created := errors.Is(err, sql.ErrNoRows)
	if err != nil && !created {
		return false, fmt.Errorf("checking announcement: %w", err)
	}

	now := time.Now().UTC()
	var latency interface{}
	if ann.ProcessingLatencySeconds != nil {
		latency = *ann.ProcessingLatencySeconds
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO announcements (`+announcementColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(identity_key) DO UPDATE SET
			source_name = excluded.source_name,
			source_id = excluded.source_id,
			entity_code = excluded.entity_code,
			entity_name = excluded.entity_name,
			category = excluded.category,
			subcategory = excluded.subcategory,
			headline = excluded.headline,
			body_text = excluded.body_text,
			body_html = excluded.body_html,
			disseminated_at = excluded.disseminated_at,
			received_at = excluded.received_at,
			processing_latency_seconds = excluded.processing_latency_seconds,
			is_revision = excluded.is_revision,
			tags = excluded.tags,
			declared_attachments = excluded.declared_attachments,
			raw_payload = excluded.raw_payload,
			updated_at = excluded.updated_at
	`, ann.IdentityKey, ann.SourceName, nullString(ann.SourceID),
		nullString(ann.EntityCode), nullString(ann.EntityName),
		nullString(ann.Category), nullString(ann.Subcategory),
		nullString(ann.Headline), nullString(ann.BodyText), nullString(ann.BodyHTML),
		formatTimePtr(ann.DisseminatedAt), formatTimePtr(ann.ReceivedAt), latency,
		boolToInt(ann.IsRevision), string(tagsJSON), string(declaredJSON), string(rawJSON),
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		return false, fmt.Errorf("saving announcement: %w", err)
	}

	for i := range atts {
		if err := saveAttachment(ctx, tx, ann.IdentityKey, &atts[i], now); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing announcement: %w", err)
	}
	return created, nil
}

// saveAttachment upserts one attachment row keyed by (announcement_key,
// source_url), preserving created_at on overwrite.
func saveAttachment(ctx context.Context, tx *sql.Tx, announcementKey string, att *domain.Attachment, now time.Time) error {
	if att.SourceURL == "" {
		return domain.ErrInvalidInput
	}

	var size interface{}
	if att.SizeBytes != nil {
		size = *att.SizeBytes
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO attachments (announcement_key, source_url, kind, status,
			content_hash, size_bytes, mime_type, storage_key, storage_url,
			fetch_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(announcement_key, source_url) DO UPDATE SET
			kind = excluded.kind,
			status = excluded.status,
			content_hash = excluded.content_hash,
			size_bytes = excluded.size_bytes,
			mime_type = excluded.mime_type,
			storage_key = excluded.storage_key,
			storage_url = excluded.storage_url,
			fetch_error = excluded.fetch_error,
			updated_at = excluded.updated_at
	`, announcementKey, att.SourceURL, string(att.Kind), string(att.Status),
		nullString(att.ContentHash), size, nullString(att.MIMEType),
		nullString(att.StorageKey), nullString(att.StorageURL), nullString(att.FetchError),
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("saving attachment %s: %w", att.SourceURL, err)
	}
	return nil
}

// GetAnnouncement retrieves an announcement by identity key.
func (s *announcementStore) GetAnnouncement(ctx context.Context, identityKey string) (*domain.Announcement, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT `+announcementColumns+`
		FROM announcements WHERE identity_key = ?
	`, identityKey)

	ann, err := scanAnnouncement(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return ann, nil
}

// GetAttachments retrieves all attachments for an announcement.
func (s *announcementStore) GetAttachments(ctx context.Context, identityKey string) ([]domain.Attachment, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT announcement_key, source_url, kind, status, content_hash,
			size_bytes, mime_type, storage_key, storage_url, fetch_error,
			created_at, updated_at
		FROM attachments
		WHERE announcement_key = ?
		ORDER BY source_url
	`, identityKey)
	if err != nil {
		return nil, fmt.Errorf("querying attachments: %w", err)
	}
	defer rows.Close()

	var atts []domain.Attachment //nolint:prealloc // size unknown from query
	for rows.Next() {
		var (
			att                                                     domain.Attachment
			kind, status                                            string
			contentHash, mimeType, storageKey, storageURL, fetchErr sql.NullString
			size                                                    sql.NullInt64
			createdAt, updatedAt                                    sql.NullString
		)
		if err := rows.Scan(&att.AnnouncementKey, &att.SourceURL, &kind, &status,
			&contentHash, &size, &mimeType, &storageKey, &storageURL, &fetchErr,
			&createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning attachment: %w", err)
		}

		att.Kind = domain.AttachmentKind(kind)
		att.Status = domain.FetchStatus(status)
		att.ContentHash = contentHash.String
		if size.Valid {
			v := size.Int64
			att.SizeBytes = &v
		}
		att.MIMEType = mimeType.String
		att.StorageKey = storageKey.String
		att.StorageURL = storageURL.String
		att.FetchError = fetchErr.String
		att.CreatedAt = parseNullableTime(createdAt)
		att.UpdatedAt = parseNullableTime(updatedAt)
		atts = append(atts, att)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating attachments: %w", err)
	}
	return atts, nil
}

// ListAnnouncements returns announcements for a source, most recently
// disseminated first.
func (s *announcementStore) ListAnnouncements(ctx context.Context, sourceName string, limit int) ([]domain.Announcement, error) {
	if limit <= 0 {
		limit = -1 // SQLite treats a negative LIMIT as unbounded
	}
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+announcementColumns+`
		FROM announcements
		WHERE source_name = ?
		ORDER BY disseminated_at DESC, identity_key
		LIMIT ?
	`, sourceName, limit)
	if err != nil {
		return nil, fmt.Errorf("querying announcements: %w", err)
	}
	defer rows.Close()

	var anns []domain.Announcement //nolint:prealloc // size unknown from query
	for rows.Next() {
		ann, err := scanAnnouncement(rows.Scan)
		if err != nil {
			return nil, err
		}
		anns = append(anns, *ann)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating announcements: %w", err)
	}
	return anns, nil
}

// declaredRow is the JSON shape for one declared attachment reference.
type declaredRow struct {
	URL  string `json:"url"`
	Kind string `json:"kind"`
}

func declaredToRows(declared []domain.DeclaredAttachment) []declaredRow {
	rows := make([]declaredRow, 0, len(declared))
	for _, d := range declared {
		rows = append(rows, declaredRow{URL: d.URL, Kind: string(d.Kind)})
	}
	return rows
}

func rowsToDeclared(rows []declaredRow) []domain.DeclaredAttachment {
	if len(rows) == 0 {
		return nil
	}
	declared := make([]domain.DeclaredAttachment, 0, len(rows))
	for _, r := range rows {
		declared = append(declared, domain.DeclaredAttachment{URL: r.URL, Kind: domain.AttachmentKind(r.Kind)})
	}
	return declared
}

// scanAnnouncement scans one announcement row via the given Scan func.
func scanAnnouncement(scan func(dest ...any) error) (*domain.Announcement, error) {
	var (
		ann                                        domain.Announcement
		sourceID, entityCode, entityName           sql.NullString
		category, subcategory                      sql.NullString
		headline, bodyText, bodyHTML               sql.NullString
		disseminatedAt, receivedAt                 sql.NullString
		latency                                    sql.NullFloat64
		isRevision                                 int
		tagsJSON, declaredJSON, rawJSON            string
		createdAt, updatedAt                       sql.NullString
	)
	if err := scan(&ann.IdentityKey, &ann.SourceName, &sourceID, &entityCode, &entityName,
		&category, &subcategory, &headline, &bodyText, &bodyHTML,
		&disseminatedAt, &receivedAt, &latency,
		&isRevision, &tagsJSON, &declaredJSON, &rawJSON,
		&createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning announcement: %w", err)
	}

	ann.SourceID = sourceID.String
	ann.EntityCode = entityCode.String
	ann.EntityName = entityName.String
	ann.Category = category.String
	ann.Subcategory = subcategory.String
	ann.Headline = headline.String
	ann.BodyText = bodyText.String
	ann.BodyHTML = bodyHTML.String
	ann.DisseminatedAt = parseTimePtr(disseminatedAt)
	ann.ReceivedAt = parseTimePtr(receivedAt)
	if latency.Valid {
		v := latency.Float64
		ann.ProcessingLatencySeconds = &v
	}
	ann.IsRevision = isRevision == 1
	ann.CreatedAt = parseNullableTime(createdAt)
	ann.UpdatedAt = parseNullableTime(updatedAt)

	if err := json.Unmarshal([]byte(tagsJSON), &ann.Tags); err != nil {
		return nil, fmt.Errorf("unmarshaling tags: %w", err)
	}
	var declared []declaredRow
	if err := json.Unmarshal([]byte(declaredJSON), &declared); err != nil {
		return nil, fmt.Errorf("unmarshaling declared attachments: %w", err)
	}
	ann.DeclaredAttachments = rowsToDeclared(declared)
	if err := json.Unmarshal([]byte(rawJSON), &ann.RawPayload); err != nil {
		return nil, fmt.Errorf("unmarshaling raw payload: %w", err)
	}

	return &ann, nil
}
