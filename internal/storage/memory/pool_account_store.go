package memory

import (
	"context"
	"sort"
	"sync"

	"agent-funding-engine/internal/domain"
	"agent-funding-engine/internal/storage"
)

// PoolAccountStore is an in-memory implementation of
// storage.PoolAccountStore.
type PoolAccountStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PoolAccount // keyed by address
}

// NewPoolAccountStore creates a new in-memory pool account store.
func NewPoolAccountStore() *PoolAccountStore {
	return &PoolAccountStore{
		data: make(map[string]*domain.PoolAccount),
	}
}

// Insert adds a new unassigned account. Returns ErrDuplicateKey if the
// address already exists.
func (s *PoolAccountStore) Insert(_ context.Context, acct *domain.PoolAccount) error {
	if acct == nil || acct.Address == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[acct.Address]; exists {
		return storage.ErrDuplicateKey
	}

	acctCopy := *acct
	acctCopy.AssignedTo = ""
	s.data[acct.Address] = &acctCopy
	return nil
}

// Claim atomically marks the first free account (address ASC) as assigned to
// agentID and returns it. Returns ErrNoFreeAccount when the pool is
// exhausted.
func (s *PoolAccountStore) Claim(_ context.Context, agentID string) (*domain.PoolAccount, error) {
	if agentID == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.claimFirstFreeLocked(agentID)
}

// GetByAddress retrieves an account by address. Returns ErrNotFound if not
// exists.
func (s *PoolAccountStore) GetByAddress(_ context.Context, address string) (*domain.PoolAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, exists := s.data[address]
	if !exists {
		return nil, storage.ErrNotFound
	}

	acctCopy := *acct
	return &acctCopy, nil
}

// GetByAgentID retrieves the account assigned to an agent. Returns
// ErrNotFound if the agent holds no account.
func (s *PoolAccountStore) GetByAgentID(_ context.Context, agentID string) (*domain.PoolAccount, error) {
	if agentID == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, acct := range s.data {
		if acct.AssignedTo == agentID {
			acctCopy := *acct
			return &acctCopy, nil
		}
	}
	return nil, storage.ErrNotFound
}

// CountFree returns the number of unassigned accounts.
func (s *PoolAccountStore) CountFree(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	free := 0
	for _, acct := range s.data {
		if acct.Free() {
			free++
		}
	}
	return free, nil
}

// CountTotal returns the number of accounts under management.
func (s *PoolAccountStore) CountTotal(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.data), nil
}

// claimFirstFreeLocked marks the first free account (address ASC) as
// assigned to agentID and returns a copy. Callers hold s.mu.
func (s *PoolAccountStore) claimFirstFreeLocked(agentID string) (*domain.PoolAccount, error) {
	addresses := make([]string, 0, len(s.data))
	for addr := range s.data {
		addresses = append(addresses, addr)
	}
	sort.Strings(addresses)

	for _, addr := range addresses {
		acct := s.data[addr]
		if acct.Free() {
			acct.AssignedTo = agentID
			acctCopy := *acct
			return &acctCopy, nil
		}
	}
	return nil, storage.ErrNoFreeAccount
}

// firstFreeLocked returns a copy of the first free account without claiming
// it. Callers hold s.mu.
func (s *PoolAccountStore) firstFreeLocked() (*domain.PoolAccount, error) {
	addresses := make([]string, 0, len(s.data))
	for addr := range s.data {
		addresses = append(addresses, addr)
	}
	sort.Strings(addresses)

	for _, addr := range addresses {
		if s.data[addr].Free() {
			acctCopy := *s.data[addr]
			return &acctCopy, nil
		}
	}
	return nil, storage.ErrNoFreeAccount
}

// Verify interface compliance at compile time.
var _ storage.PoolAccountStore = (*PoolAccountStore)(nil)
