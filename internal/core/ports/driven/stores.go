package driven

import (
	"context"

	"github.com/custodia-labs/annsync/internal/core/domain"
)

// AnnouncementStore persists announcements and their attachments.
type AnnouncementStore interface {
	// SaveAnnouncement upserts the announcement keyed by identity, then
	// upserts each attachment keyed by (identity, source URL), all in
	// one transaction. Attachments not present in this call are left
	// untouched. Returns created=true when the announcement row was
	// inserted rather than overwritten. Any error rolls back the whole
	// transaction.
	SaveAnnouncement(ctx context.Context, ann *domain.Announcement, atts []domain.Attachment) (created bool, err error)

	// GetAnnouncement retrieves an announcement by identity key.
	GetAnnouncement(ctx context.Context, identityKey string) (*domain.Announcement, error)

	// GetAttachments retrieves all attachments for an announcement.
	GetAttachments(ctx context.Context, identityKey string) ([]domain.Attachment, error)

	// ListAnnouncements returns announcements for a source, most
	// recently disseminated first, up to limit.
	ListAnnouncements(ctx context.Context, sourceName string, limit int) ([]domain.Announcement, error)
}

// CursorStore persists per-source synchronisation state and run history.
type CursorStore interface {
	// GetCursor retrieves the cursor for a source.
	// Returns domain.ErrNotFound before the source's first run.
	GetCursor(ctx context.Context, sourceName string) (*domain.SourceCursor, error)

	// SaveCursor stores or overwrites the cursor for a source.
	SaveCursor(ctx context.Context, cursor *domain.SourceCursor) error

	// RecordRun appends one run report to the history.
	RecordRun(ctx context.Context, report *domain.RunReport) error

	// RunHistory returns recent run reports for a source, most recent
	// first, up to limit.
	RunHistory(ctx context.Context, sourceName string, limit int) ([]domain.RunReport, error)

	// PruneHistory removes old run reports beyond the retention limit,
	// keeping the most recent keep per source.
	PruneHistory(ctx context.Context, keep int) error
}
