package memory

import (
	"context"
	"sort"
	"sync"

	"agent-funding-engine/internal/domain"
	"agent-funding-engine/internal/storage"
)

// ActivityStore is an in-memory implementation of storage.ActivityStore.
type ActivityStore struct {
	mu   sync.RWMutex
	data []*domain.ActivityEvent
}

// NewActivityStore creates a new in-memory activity store.
func NewActivityStore() *ActivityStore {
	return &ActivityStore{}
}

// Insert appends an activity event.
func (s *ActivityStore) Insert(_ context.Context, e *domain.ActivityEvent) error {
	if e == nil || e.Kind == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	eventCopy := *e
	s.data = append(s.data, &eventCopy)
	return nil
}

// GetByAgentID retrieves all events for an agent, ordered by recorded_at ASC.
func (s *ActivityStore) GetByAgentID(_ context.Context, agentID string) ([]*domain.ActivityEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ActivityEvent
	for _, e := range s.data {
		if e.AgentID == agentID {
			eventCopy := *e
			result = append(result, &eventCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].RecordedAt < result[j].RecordedAt
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.ActivityStore = (*ActivityStore)(nil)
