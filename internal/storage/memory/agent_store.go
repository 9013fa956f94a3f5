package memory

import (
	"context"
	"sort"
	"sync"

	"agent-funding-engine/internal/domain"
	"agent-funding-engine/internal/storage"
)

// AgentStore is an in-memory implementation of storage.AgentStore.
type AgentStore struct {
	mu        sync.RWMutex
	byID      map[string]*domain.Agent
	byAddress map[string]string // external address -> agent ID
}

// NewAgentStore creates a new in-memory agent store.
func NewAgentStore() *AgentStore {
	return &AgentStore{
		byID:      make(map[string]*domain.Agent),
		byAddress: make(map[string]string),
	}
}

// Insert adds a new agent. Returns ErrDuplicateKey if the agent ID or the
// external address already exists.
func (s *AgentStore) Insert(_ context.Context, a *domain.Agent) error {
	if a == nil || a.ID == "" || a.ExternalAddress == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertLocked(a)
}

// insertLocked performs the duplicate checks and insert under s.mu.
func (s *AgentStore) insertLocked(a *domain.Agent) error {
	if _, exists := s.byID[a.ID]; exists {
		return storage.ErrDuplicateKey
	}
	if _, exists := s.byAddress[a.ExternalAddress]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	agentCopy := *a
	s.byID[a.ID] = &agentCopy
	s.byAddress[a.ExternalAddress] = a.ID
	return nil
}

// GetByID retrieves an agent by its ID. Returns ErrNotFound if not exists.
func (s *AgentStore) GetByID(_ context.Context, agentID string) (*domain.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, exists := s.byID[agentID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	agentCopy := *a
	return &agentCopy, nil
}

// GetByAddress retrieves an agent by its external address. Returns
// ErrNotFound if not exists.
func (s *AgentStore) GetByAddress(_ context.Context, address string) (*domain.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.byAddress[address]
	if !exists {
		return nil, storage.ErrNotFound
	}

	agentCopy := *s.byID[id]
	return &agentCopy, nil
}

// Update overwrites the mutable fields of an existing agent. Returns
// ErrNotFound if the agent does not exist.
func (s *AgentStore) Update(_ context.Context, a *domain.Agent) error {
	if a == nil || a.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.byID[a.ID]
	if !exists {
		return storage.ErrNotFound
	}

	current.Status = a.Status
	current.TradeCount = a.TradeCount
	current.CumulativeRealizedPnl = a.CumulativeRealizedPnl
	current.AgentShareAccrued = a.AgentShareAccrued
	current.FirmShareAccrued = a.FirmShareAccrued
	return nil
}

// List retrieves agents ordered by created_at ASC, agent_id ASC. A nil
// status returns all agents.
func (s *AgentStore) List(_ context.Context, status *domain.AgentStatus) ([]*domain.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Agent
	for _, a := range s.byID {
		if status != nil && a.Status != *status {
			continue
		}
		agentCopy := *a
		result = append(result, &agentCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.AgentStore = (*AgentStore)(nil)
