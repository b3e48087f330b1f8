package domain

import "time"

// AttachmentKind classifies a declared attachment by its role.
type AttachmentKind string

const (
	// KindPrimaryDocument is the main disclosure document (usually a PDF).
	KindPrimaryDocument AttachmentKind = "primary-document"

	// KindStructuredData is machine-readable data (XBRL, XML, JSON).
	KindStructuredData AttachmentKind = "structured-data"

	// KindMedia is supplementary media (images, recordings).
	KindMedia AttachmentKind = "media"
)

// FetchStatus records the outcome of retrieving one attachment.
type FetchStatus string

const (
	// FetchStatusFetched means the bytes were retrieved and durably stored.
	FetchStatusFetched FetchStatus = "fetched"

	// FetchStatusFailed means retrieval or durable storage failed.
	// The declared URL is still recorded for a later retry.
	FetchStatusFailed FetchStatus = "fetch-failed"

	// FetchStatusSkipped means the attachment was intentionally not fetched.
	FetchStatusSkipped FetchStatus = "skipped"
)

// DeclaredAttachment is an attachment reference as published by the source,
// independent of whether the fetch succeeded.
type DeclaredAttachment struct {
	// URL is the original locator for the attachment.
	URL string

	// Kind is the inferred role of the attachment.
	Kind AttachmentKind
}

// Announcement is one disclosure event in its canonical form.
// It is the output of record normalisation and the unit of persistence.
type Announcement struct {
	// IdentityKey is the stable unique key for this event.
	// It never changes once assigned; re-ingestion of the same upstream
	// item resolves to the same key.
	IdentityKey string

	// SourceName identifies the configured source that produced the record.
	SourceName string

	// SourceID is the upstream-declared identifier, if any.
	// When present it is the basis for IdentityKey.
	SourceID string

	// EntityCode identifies the issuer (ticker or scrip code). May be empty.
	EntityCode string

	// EntityName is the issuer's name. May be empty.
	EntityName string

	// Category and Subcategory are free-text classifications from the source.
	Category    string
	Subcategory string

	// Headline is the announcement title.
	Headline string

	// BodyText is the plain-text body. Derived from BodyHTML by
	// tag-stripping when the source provides only markup.
	BodyText string

	// BodyHTML is the body as published, markup included. May be empty.
	BodyHTML string

	// DisseminatedAt is when the source published the announcement.
	// Nil when the source value could not be parsed.
	DisseminatedAt *time.Time

	// ReceivedAt is when the exchange/platform received the filing.
	// Nil when the source value could not be parsed.
	ReceivedAt *time.Time

	// ProcessingLatencySeconds is ReceivedAt→DisseminatedAt in seconds.
	// Nil unless both instants parsed; never negative.
	ProcessingLatencySeconds *float64

	// IsRevision is true when the headline or body indicates the
	// announcement revises an earlier one.
	IsRevision bool

	// Tags are classification labels in first-match order, deduplicated.
	Tags []string

	// DeclaredAttachments lists attachment references as published,
	// regardless of fetch outcome.
	DeclaredAttachments []DeclaredAttachment

	// RawPayload retains the normalised-input record verbatim for audit.
	RawPayload map[string]any

	// CreatedAt is when the announcement was first persisted.
	// Immutable after creation.
	CreatedAt time.Time

	// UpdatedAt is when the announcement was last written.
	UpdatedAt time.Time
}

// Attachment is one binary artifact referenced by an Announcement.
// It never exists without its parent and is written in the parent's
// transaction.
type Attachment struct {
	// AnnouncementKey links to the owning Announcement's IdentityKey.
	AnnouncementKey string

	// SourceURL is the original locator. Unique within the parent's
	// attachment set; (AnnouncementKey, SourceURL) is the natural key.
	SourceURL string

	// Kind is the declared role of the attachment.
	Kind AttachmentKind

	// Status records the fetch outcome.
	Status FetchStatus

	// ContentHash is the SHA-256 of the fetched bytes, hex encoded.
	// Empty when the fetch failed.
	ContentHash string

	// SizeBytes is the observed content length. Nil when the fetch failed.
	SizeBytes *int64

	// MIMEType is the observed content type. Empty when the fetch failed.
	MIMEType string

	// StorageKey is the object key in the blob store. Empty on failure.
	StorageKey string

	// StorageURL is the durable location returned by the blob store.
	// Empty on failure.
	StorageURL string

	// FetchError describes why the fetch failed, for operators.
	FetchError string

	// CreatedAt is when the attachment row was first persisted.
	CreatedAt time.Time

	// UpdatedAt is when the attachment row was last written.
	UpdatedAt time.Time
}

// Fetched reports whether the attachment bytes are durably stored.
func (a *Attachment) Fetched() bool {
	return a.Status == FetchStatusFetched
}
