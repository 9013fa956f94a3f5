package memory

import (
	"context"
	"sort"
	"sync"

	"agent-funding-engine/internal/domain"
	"agent-funding-engine/internal/storage"
)

// AppliedFillStore is an in-memory implementation of
// storage.AppliedFillStore.
type AppliedFillStore struct {
	mu   sync.RWMutex
	data map[string]*domain.AppliedFill // keyed by fill_id
}

// NewAppliedFillStore creates a new in-memory applied fill store.
func NewAppliedFillStore() *AppliedFillStore {
	return &AppliedFillStore{
		data: make(map[string]*domain.AppliedFill),
	}
}

// Insert records an applied fill. Returns ErrDuplicateKey if the fill ID was
// already applied.
func (s *AppliedFillStore) Insert(_ context.Context, f *domain.AppliedFill) error {
	if f == nil || f.FillID == "" || f.AgentID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[f.FillID]; exists {
		return storage.ErrDuplicateKey
	}

	fillCopy := *f
	s.data[f.FillID] = &fillCopy
	return nil
}

// GetByAgentID retrieves all fills applied for an agent, ordered by
// applied_at ASC, fill_id ASC.
func (s *AppliedFillStore) GetByAgentID(_ context.Context, agentID string) ([]*domain.AppliedFill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.AppliedFill
	for _, f := range s.data {
		if f.AgentID == agentID {
			fillCopy := *f
			result = append(result, &fillCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].AppliedAt != result[j].AppliedAt {
			return result[i].AppliedAt < result[j].AppliedAt
		}
		return result[i].FillID < result[j].FillID
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.AppliedFillStore = (*AppliedFillStore)(nil)
