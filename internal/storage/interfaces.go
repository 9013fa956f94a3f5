package storage

import (
	"context"

	"agent-funding-engine/internal/domain"
)

// AgentStore provides access to agents storage.
type AgentStore interface {
	// Insert adds a new agent. Returns ErrDuplicateKey if the agent ID or
	// the external address already exists.
	Insert(ctx context.Context, a *domain.Agent) error

	// GetByID retrieves an agent by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, agentID string) (*domain.Agent, error)

	// GetByAddress retrieves an agent by its external address.
	// Returns ErrNotFound if not exists.
	GetByAddress(ctx context.Context, address string) (*domain.Agent, error)

	// Update overwrites the mutable fields of an existing agent (status,
	// trade count, PnL totals). Returns ErrNotFound if the agent does not
	// exist. Callers serialize updates per agent.
	Update(ctx context.Context, a *domain.Agent) error

	// List retrieves agents ordered by created_at ASC, agent_id ASC.
	// A nil status returns all agents.
	List(ctx context.Context, status *domain.AgentStatus) ([]*domain.Agent, error)
}

// PoolAccountStore provides access to pool_accounts storage.
type PoolAccountStore interface {
	// Insert adds a new unassigned account. Returns ErrDuplicateKey if the
	// address already exists.
	Insert(ctx context.Context, acct *domain.PoolAccount) error

	// Claim atomically marks the first free account (address ASC) as
	// assigned to agentID and returns it. Two concurrent claims never
	// return the same account. Returns ErrNoFreeAccount when the pool is
	// exhausted.
	Claim(ctx context.Context, agentID string) (*domain.PoolAccount, error)

	// GetByAddress retrieves an account by address. Returns ErrNotFound if
	// not exists.
	GetByAddress(ctx context.Context, address string) (*domain.PoolAccount, error)

	// GetByAgentID retrieves the account assigned to an agent.
	// Returns ErrNotFound if the agent holds no account.
	GetByAgentID(ctx context.Context, agentID string) (*domain.PoolAccount, error)

	// CountFree returns the number of unassigned accounts.
	CountFree(ctx context.Context) (int, error)

	// CountTotal returns the number of accounts under management.
	CountTotal(ctx context.Context) (int, error)
}

// AllocationStore performs the paired claim-and-create write of onboarding.
type AllocationStore interface {
	// ClaimAndBind atomically claims the first free pool account and inserts
	// the agent built by bind, as one unit: either both the assignment and
	// the agent record become durable, or neither does.
	//
	// bind receives the claimed account (AssignedTo still empty) and
	// constructs the agent record to persist; the store then writes the
	// assignment as AssignedTo = agent.ID. Returning an error from bind
	// aborts the claim.
	//
	// Returns ErrNoFreeAccount when the pool is exhausted, and
	// ErrDuplicateKey when the agent's external address lost a race against
	// a concurrent onboarding of the same address.
	ClaimAndBind(ctx context.Context, bind func(acct *domain.PoolAccount) (*domain.Agent, error)) (*domain.Agent, *domain.PoolAccount, error)
}

// AppliedFillStore provides access to applied_fills storage, the profit
// ledger's idempotency record.
type AppliedFillStore interface {
	// Insert records an applied fill. Returns ErrDuplicateKey if the fill ID
	// was already applied.
	Insert(ctx context.Context, f *domain.AppliedFill) error

	// GetByAgentID retrieves all fills applied for an agent, ordered by
	// applied_at ASC, fill_id ASC.
	GetByAgentID(ctx context.Context, agentID string) ([]*domain.AppliedFill, error)
}

// ActivityStore provides append-only analytics storage for engine decisions.
type ActivityStore interface {
	// Insert appends an activity event.
	Insert(ctx context.Context, e *domain.ActivityEvent) error

	// GetByAgentID retrieves all events for an agent, ordered by
	// recorded_at ASC.
	GetByAgentID(ctx context.Context, agentID string) ([]*domain.ActivityEvent, error)
}
