package postgres

import (
	"context"
	"fmt"

	"agent-funding-engine/internal/domain"
	"agent-funding-engine/internal/storage"
)

// AllocationStore implements storage.AllocationStore using PostgreSQL.
// Claim and agent insert run in one transaction: a crash or a lost
// unique-address race rolls the claim back, so no claimed account is ever
// left without an owning agent record.
type AllocationStore struct {
	pool *Pool
}

// NewAllocationStore creates a new AllocationStore.
func NewAllocationStore(pool *Pool) *AllocationStore {
	return &AllocationStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AllocationStore = (*AllocationStore)(nil)

// ClaimAndBind atomically claims the first free pool account and inserts the
// agent built by bind.
func (s *AllocationStore) ClaimAndBind(ctx context.Context, bind func(acct *domain.PoolAccount) (*domain.Agent, error)) (*domain.Agent, *domain.PoolAccount, error) {
	if bind == nil {
		return nil, nil, storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin allocation tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock the first free row without assigning yet; the agent ID is not
	// known until bind returns.
	selectQuery := `
		SELECT address, credential, assigned_to, imported_at
		FROM pool_accounts
		WHERE assigned_to IS NULL
		ORDER BY address ASC
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	`
	acct, err := scanPoolAccount(tx.QueryRow(ctx, selectQuery))
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil, storage.ErrNoFreeAccount
		}
		return nil, nil, fmt.Errorf("select free pool account: %w", err)
	}

	agent, err := bind(acct)
	if err != nil {
		return nil, nil, err
	}
	if agent == nil || agent.ID == "" || agent.ExternalAddress == "" {
		return nil, nil, storage.ErrInvalidInput
	}
	agent.AssignedAccount = acct.Address

	insertQuery := `
		INSERT INTO agents (
			agent_id, external_address, assigned_account, initial_capital,
			cumulative_realized_pnl, agent_share_accrued, firm_share_accrued,
			trade_count, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = tx.Exec(ctx, insertQuery,
		agent.ID,
		agent.ExternalAddress,
		agent.AssignedAccount,
		agent.InitialCapital,
		agent.CumulativeRealizedPnl,
		agent.AgentShareAccrued,
		agent.FirmShareAccrued,
		agent.TradeCount,
		string(agent.Status),
		agent.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, nil, storage.ErrDuplicateKey
		}
		return nil, nil, fmt.Errorf("insert agent in allocation tx: %w", err)
	}

	assignQuery := `UPDATE pool_accounts SET assigned_to = $1 WHERE address = $2`
	if _, err := tx.Exec(ctx, assignQuery, agent.ID, acct.Address); err != nil {
		return nil, nil, fmt.Errorf("assign pool account in allocation tx: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit allocation tx: %w", err)
	}

	acct.AssignedTo = agent.ID
	return agent, acct, nil
}
