package driven

import (
	"context"

	"github.com/custodia-labs/annsync/internal/core/domain"
)

// RecordSource fetches raw records from an upstream publisher.
//
// Implementations own the site-specific retrieval mechanics (HTTP, API
// paging, markup handling); the core only sees the record stream.
type RecordSource interface {
	// Fetch yields raw records for the source within the window.
	// Records arrive on the first channel; a terminal failure of the
	// fetch itself arrives on the second. Both channels are closed when
	// the fetch completes. A fetch failure aborts the run for that
	// source without advancing its cursor.
	Fetch(ctx context.Context, source domain.Source, window domain.Window) (<-chan domain.RawRecord, <-chan error)
}

// RecordNormaliser converts one raw record into a canonical Announcement.
type RecordNormaliser interface {
	// Normalise maps the open key-value record to the Announcement
	// shape. Returns domain.ErrRecordRejected when the record lacks any
	// usable headline/body and any identity-contributing field;
	// everything else degrades to null/empty rather than rejecting.
	Normalise(ctx context.Context, raw *domain.RawRecord) (*domain.Announcement, error)
}

// AttachmentResolver retrieves and durably stores an announcement's
// declared attachments.
type AttachmentResolver interface {
	// Resolve returns one Attachment per declared attachment, each
	// independently marked fetched or fetch-failed. It returns only
	// after all attempts settle; it never fails the parent record.
	Resolve(ctx context.Context, ann *domain.Announcement) []domain.Attachment
}
