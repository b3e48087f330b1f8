package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/annsync/internal/core/domain"
	"github.com/custodia-labs/annsync/internal/core/ports/driven"
)

// Ensure AnnouncementStore implements the interface.
var _ driven.AnnouncementStore = (*AnnouncementStore)(nil)

// AnnouncementStore is an in-memory implementation of
// driven.AnnouncementStore. It mirrors the sqlite adapter's upsert
// semantics, including created-at preservation on overwrite.
type AnnouncementStore struct {
	mu            sync.RWMutex
	announcements map[string]domain.Announcement
	attachments   map[string]map[string]domain.Attachment
	now           func() time.Time
}

// NewAnnouncementStore creates a new in-memory announcement store.
func NewAnnouncementStore() *AnnouncementStore {
	return &AnnouncementStore{
		announcements: make(map[string]domain.Announcement),
		attachments:   make(map[string]map[string]domain.Attachment),
		now:           time.Now,
	}
}

// SaveAnnouncement upserts the announcement and its attachments.
// Returns created=true when the identity key was not present before.
func (s *AnnouncementStore) SaveAnnouncement(_ context.Context, ann *domain.Announcement, atts []domain.Attachment) (bool, error) {
	if ann == nil || ann.IdentityKey == "" {
		return false, domain.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	stored := *ann
	stored.UpdatedAt = now

	existing, exists := s.announcements[ann.IdentityKey]
	if exists {
		stored.CreatedAt = existing.CreatedAt
	} else {
		stored.CreatedAt = now
	}
	s.announcements[ann.IdentityKey] = stored

	byURL := s.attachments[ann.IdentityKey]
	if byURL == nil {
		byURL = make(map[string]domain.Attachment)
		s.attachments[ann.IdentityKey] = byURL
	}
	for _, att := range atts {
		att.AnnouncementKey = ann.IdentityKey
		att.UpdatedAt = now
		if prev, ok := byURL[att.SourceURL]; ok {
			att.CreatedAt = prev.CreatedAt
		} else {
			att.CreatedAt = now
		}
		byURL[att.SourceURL] = att
	}

	return !exists, nil
}

// GetAnnouncement retrieves an announcement by identity key.
func (s *AnnouncementStore) GetAnnouncement(_ context.Context, identityKey string) (*domain.Announcement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ann, ok := s.announcements[identityKey]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &ann, nil
}

// GetAttachments retrieves all attachments for an announcement.
func (s *AnnouncementStore) GetAttachments(_ context.Context, identityKey string) ([]domain.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byURL, ok := s.attachments[identityKey]
	if !ok {
		return nil, nil
	}
	result := make([]domain.Attachment, 0, len(byURL))
	for _, att := range byURL {
		result = append(result, att)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].SourceURL < result[j].SourceURL
	})
	return result, nil
}

// ListAnnouncements returns announcements for a source, most recently
// disseminated first.
func (s *AnnouncementStore) ListAnnouncements(_ context.Context, sourceName string, limit int) ([]domain.Announcement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Announcement
	for key := range s.announcements {
		ann := s.announcements[key]
		if ann.SourceName == sourceName {
			result = append(result, ann)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		ti, tj := result[i].DisseminatedAt, result[j].DisseminatedAt
		switch {
		case ti == nil && tj == nil:
			return result[i].IdentityKey < result[j].IdentityKey
		case ti == nil:
			return false
		case tj == nil:
			return true
		default:
			return ti.After(*tj)
		}
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
