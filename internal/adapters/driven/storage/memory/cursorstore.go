package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/annsync/internal/core/domain"
	"github.com/custodia-labs/annsync/internal/core/ports/driven"
)

// Ensure CursorStore implements the interface.
var _ driven.CursorStore = (*CursorStore)(nil)

// CursorStore is an in-memory implementation of driven.CursorStore.
type CursorStore struct {
	mu      sync.RWMutex
	cursors map[string]domain.SourceCursor
	history map[string][]domain.RunReport
	now     func() time.Time
}

// NewCursorStore creates a new in-memory cursor store.
func NewCursorStore() *CursorStore {
	return &CursorStore{
		cursors: make(map[string]domain.SourceCursor),
		history: make(map[string][]domain.RunReport),
		now:     time.Now,
	}
}

// GetCursor retrieves the cursor for a source.
func (s *CursorStore) GetCursor(_ context.Context, sourceName string) (*domain.SourceCursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cursor, ok := s.cursors[sourceName]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &cursor, nil
}

// SaveCursor stores or overwrites the cursor for a source.
func (s *CursorStore) SaveCursor(_ context.Context, cursor *domain.SourceCursor) error {
	if cursor == nil || cursor.SourceName == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *cursor
	stored.UpdatedAt = s.now()
	s.cursors[cursor.SourceName] = stored
	return nil
}

// RecordRun appends one run report to the history.
func (s *CursorStore) RecordRun(_ context.Context, report *domain.RunReport) error {
	if report == nil || report.SourceName == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[report.SourceName] = append(s.history[report.SourceName], *report)
	return nil
}

// RunHistory returns recent run reports for a source, most recent first.
func (s *CursorStore) RunHistory(_ context.Context, sourceName string, limit int) ([]domain.RunReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	runs := s.history[sourceName]
	result := make([]domain.RunReport, len(runs))
	copy(result, runs)
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.After(result[j].StartedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// PruneHistory keeps the most recent keep reports per source.
func (s *CursorStore) PruneHistory(_ context.Context, keep int) error {
	if keep < 0 {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, runs := range s.history {
		if len(runs) <= keep {
			continue
		}
		sorted := make([]domain.RunReport, len(runs))
		copy(sorted, runs)
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i].StartedAt.After(sorted[j].StartedAt)
		})
		s.history[name] = sorted[:keep]
	}
	return nil
}
