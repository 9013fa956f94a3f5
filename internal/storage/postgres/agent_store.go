package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"agent-funding-engine/internal/domain"
	"agent-funding-engine/internal/storage"
)

// AgentStore implements storage.AgentStore using PostgreSQL.
type AgentStore struct {
	pool *Pool
}

// NewAgentStore creates a new AgentStore.
func NewAgentStore(pool *Pool) *AgentStore {
	return &AgentStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AgentStore = (*AgentStore)(nil)

const agentColumns = `
	agent_id, external_address, assigned_account, initial_capital,
	cumulative_realized_pnl, agent_share_accrued, firm_share_accrued,
	trade_count, status, created_at
`

// Insert adds a new agent. Returns ErrDuplicateKey if the agent ID or the
// external address already exists.
func (s *AgentStore) Insert(ctx context.Context, a *domain.Agent) error {
	query := `
		INSERT INTO agents (
			agent_id, external_address, assigned_account, initial_capital,
			cumulative_realized_pnl, agent_share_accrued, firm_share_accrued,
			trade_count, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.pool.Exec(ctx, query,
		a.ID,
		a.ExternalAddress,
		a.AssignedAccount,
		a.InitialCapital,
		a.CumulativeRealizedPnl,
		a.AgentShareAccrued,
		a.FirmShareAccrued,
		a.TradeCount,
		string(a.Status),
		a.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert agent: %w", err)
	}
	return nil
}

// GetByID retrieves an agent by its ID. Returns ErrNotFound if not exists.
func (s *AgentStore) GetByID(ctx context.Context, agentID string) (*domain.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE agent_id = $1`

	row := s.pool.QueryRow(ctx, query, agentID)
	a, err := scanAgent(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get agent by id: %w", err)
	}
	return a, nil
}

// GetByAddress retrieves an agent by its external address. Returns
// ErrNotFound if not exists.
func (s *AgentStore) GetByAddress(ctx context.Context, address string) (*domain.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE external_address = $1`

	row := s.pool.QueryRow(ctx, query, address)
	a, err := scanAgent(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get agent by address: %w", err)
	}
	return a, nil
}

// Update overwrites the mutable fields of an existing agent. Returns
// ErrNotFound if the agent does not exist.
func (s *AgentStore) Update(ctx context.Context, a *domain.Agent) error {
	query := `
		UPDATE agents
		SET status = $2,
			trade_count = $3,
			cumulative_realized_pnl = $4,
			agent_share_accrued = $5,
			firm_share_accrued = $6
		WHERE agent_id = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		a.ID,
		string(a.Status),
		a.TradeCount,
		a.CumulativeRealizedPnl,
		a.AgentShareAccrued,
		a.FirmShareAccrued,
	)
	if err != nil {
		return fmt.Errorf("update agent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// List retrieves agents ordered by created_at ASC, agent_id ASC. A nil
// status returns all agents.
func (s *AgentStore) List(ctx context.Context, status *domain.AgentStatus) ([]*domain.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents`
	args := []interface{}{}
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, string(*status))
	}
	query += ` ORDER BY created_at ASC, agent_id ASC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	return scanAgents(rows)
}

// scanAgent scans a single row into an Agent.
func scanAgent(row pgx.Row) (*domain.Agent, error) {
	var a domain.Agent
	var statusStr string

	err := row.Scan(
		&a.ID,
		&a.ExternalAddress,
		&a.AssignedAccount,
		&a.InitialCapital,
		&a.CumulativeRealizedPnl,
		&a.AgentShareAccrued,
		&a.FirmShareAccrued,
		&a.TradeCount,
		&statusStr,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Status = domain.AgentStatus(statusStr)
	return &a, nil
}

// scanAgents scans multiple rows into a slice of Agent.
func scanAgents(rows pgx.Rows) ([]*domain.Agent, error) {
	var agents []*domain.Agent

	for rows.Next() {
		var a domain.Agent
		var statusStr string

		err := rows.Scan(
			&a.ID,
			&a.ExternalAddress,
			&a.AssignedAccount,
			&a.InitialCapital,
			&a.CumulativeRealizedPnl,
			&a.AgentShareAccrued,
			&a.FirmShareAccrued,
			&a.TradeCount,
			&statusStr,
			&a.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan agent row: %w", err)
		}

		a.Status = domain.AgentStatus(statusStr)
		agents = append(agents, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agent rows: %w", err)
	}

	return agents, nil
}
