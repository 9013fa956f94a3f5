// Package registry owns agent records and their lifecycle. All read-modify-
// write mutations of a single agent go through WithAgent, which serializes
// them per agent ID; operations on different agents never contend.
package registry

import (
	"context"

	"agent-funding-engine/internal/domain"
	"agent-funding-engine/internal/storage"
)

// Registry provides access to agent records with per-agent serialization.
type Registry struct {
	agents storage.AgentStore
	locks  *keyedMutex
}

// New creates a new registry over an agent store.
func New(agents storage.AgentStore) *Registry {
	return &Registry{
		agents: agents,
		locks:  newKeyedMutex(),
	}
}

// GetAgent retrieves an agent by ID. Returns storage.ErrNotFound if not
// exists.
func (r *Registry) GetAgent(ctx context.Context, agentID string) (*domain.Agent, error) {
	return r.agents.GetByID(ctx, agentID)
}

// GetAgentByAddress retrieves an agent by external address. Returns
// storage.ErrNotFound if not exists.
func (r *Registry) GetAgentByAddress(ctx context.Context, address string) (*domain.Agent, error) {
	return r.agents.GetByAddress(ctx, address)
}

// ListAgents retrieves agents, optionally filtered by status.
func (r *Registry) ListAgents(ctx context.Context, status *domain.AgentStatus) ([]*domain.Agent, error) {
	return r.agents.List(ctx, status)
}

// WithAgent loads the agent, runs mutate under the agent's lock, and
// persists the record when mutate returns true. The returned agent reflects
// the state after mutation. mutate must not retain the agent past the call.
func (r *Registry) WithAgent(ctx context.Context, agentID string, mutate func(a *domain.Agent) (bool, error)) (*domain.Agent, error) {
	lock := r.locks.get(agentID)
	lock.Lock()
	defer lock.Unlock()

	a, err := r.agents.GetByID(ctx, agentID)
	if err != nil {
		return nil, err
	}

	dirty, err := mutate(a)
	if err != nil {
		return nil, err
	}
	if dirty {
		if err := r.agents.Update(ctx, a); err != nil {
			return nil, err
		}
	}
	return a, nil
}
