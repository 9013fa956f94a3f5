// Package pool manages the fixed set of funded trading accounts. The pool
// only hands accounts out: once assigned, an account stays bound to its
// agent for good. Exclusivity is enforced by the store's atomic claim.
package pool

import (
	"context"

	"agent-funding-engine/internal/domain"
	"agent-funding-engine/internal/storage"
)

// Pool exposes exclusive acquire semantics over the account store.
type Pool struct {
	accounts storage.PoolAccountStore
}

// New creates a pool over an account store.
func New(accounts storage.PoolAccountStore) *Pool {
	return &Pool{accounts: accounts}
}

// Acquire claims a free account for agentID. Two concurrent acquires never
// receive the same account. Returns storage.ErrNoFreeAccount when the pool
// is exhausted; callers treat that as retryable, not as an engine error.
func (p *Pool) Acquire(ctx context.Context, agentID string) (*domain.PoolAccount, error) {
	return p.accounts.Claim(ctx, agentID)
}

// LookupByAgentID returns the account assigned to an agent.
func (p *Pool) LookupByAgentID(ctx context.Context, agentID string) (*domain.PoolAccount, error) {
	return p.accounts.GetByAgentID(ctx, agentID)
}

// LookupByAddress returns the account with the given address.
func (p *Pool) LookupByAddress(ctx context.Context, address string) (*domain.PoolAccount, error) {
	return p.accounts.GetByAddress(ctx, address)
}

// CountFree returns the number of unassigned accounts.
func (p *Pool) CountFree(ctx context.Context) (int, error) {
	return p.accounts.CountFree(ctx)
}

// CountTotal returns the number of accounts under management.
func (p *Pool) CountTotal(ctx context.Context) (int, error) {
	return p.accounts.CountTotal(ctx)
}

// Utilization is a snapshot of pool occupancy.
type Utilization struct {
	Total    int
	Free     int
	Assigned int
}

// Utilization reports current pool occupancy.
func (p *Pool) Utilization(ctx context.Context) (*Utilization, error) {
	total, err := p.accounts.CountTotal(ctx)
	if err != nil {
		return nil, err
	}
	free, err := p.accounts.CountFree(ctx)
	if err != nil {
		return nil, err
	}
	return &Utilization{
		Total:    total,
		Free:     free,
		Assigned: total - free,
	}, nil
}
