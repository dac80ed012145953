package exportrepo

import (
	"context"
	"sort"
	"sync"

	"github.com/yanqian/mealplanner/internal/domain/session"
)

// MemoryRepository keeps export history in memory. Used for tests and local dev.
type MemoryRepository struct {
	mu        sync.RWMutex
	bySession map[string][]session.ExportRecord
}

// NewMemoryRepository constructs a repo backed by memory.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{bySession: make(map[string][]session.ExportRecord)}
}

// Save implements session.ExportRepository.
func (r *MemoryRepository) Save(_ context.Context, record session.ExportRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bySession[record.SessionID] = append(r.bySession[record.SessionID], record)
	return nil
}

// ListBySession returns the newest records first.
func (r *MemoryRepository) ListBySession(_ context.Context, sessionID string, limit int) ([]session.ExportRecord, error) {
	r.mu.RLock()
	records := append([]session.ExportRecord(nil), r.bySession[sessionID]...)
	r.mu.RUnlock()

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	if records == nil {
		records = []session.ExportRecord{}
	}
	return records, nil
}

// DeleteBySession drops the history of a session.
func (r *MemoryRepository) DeleteBySession(_ context.Context, sessionID string) error {
	r.mu.Lock()
	delete(r.bySession, sessionID)
	r.mu.Unlock()
	return nil
}

var _ session.ExportRepository = (*MemoryRepository)(nil)
