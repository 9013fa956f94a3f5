package memory

import (
	"context"

	"agent-funding-engine/internal/domain"
	"agent-funding-engine/internal/storage"
)

// AllocationStore implements storage.AllocationStore over the in-memory
// agent and pool account stores. It is the only writer that touches both
// stores, so taking both locks in a fixed order (accounts, then agents) is
// race-free.
type AllocationStore struct {
	agents   *AgentStore
	accounts *PoolAccountStore
}

// NewAllocationStore creates a new in-memory allocation store.
func NewAllocationStore(agents *AgentStore, accounts *PoolAccountStore) *AllocationStore {
	return &AllocationStore{agents: agents, accounts: accounts}
}

// ClaimAndBind atomically claims the first free pool account and inserts the
// agent built by bind. Either both mutations land or neither does.
func (s *AllocationStore) ClaimAndBind(_ context.Context, bind func(acct *domain.PoolAccount) (*domain.Agent, error)) (*domain.Agent, *domain.PoolAccount, error) {
	if bind == nil {
		return nil, nil, storage.ErrInvalidInput
	}

	s.accounts.mu.Lock()
	defer s.accounts.mu.Unlock()
	s.agents.mu.Lock()
	defer s.agents.mu.Unlock()

	acct, err := s.accounts.firstFreeLocked()
	if err != nil {
		return nil, nil, err
	}

	agent, err := bind(acct)
	if err != nil {
		return nil, nil, err
	}
	if agent == nil || agent.ID == "" || agent.ExternalAddress == "" {
		return nil, nil, storage.ErrInvalidInput
	}

	agent.AssignedAccount = acct.Address
	if err := s.agents.insertLocked(agent); err != nil {
		return nil, nil, err
	}

	s.accounts.data[acct.Address].AssignedTo = agent.ID
	acct.AssignedTo = agent.ID

	agentCopy := *agent
	return &agentCopy, acct, nil
}

// Verify interface compliance at compile time.
var _ storage.AllocationStore = (*AllocationStore)(nil)
