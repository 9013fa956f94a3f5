package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"agent-funding-engine/internal/domain"
	"agent-funding-engine/internal/storage"
)

// PoolAccountStore implements storage.PoolAccountStore using PostgreSQL.
type PoolAccountStore struct {
	pool *Pool
}

// NewPoolAccountStore creates a new PoolAccountStore.
func NewPoolAccountStore(pool *Pool) *PoolAccountStore {
	return &PoolAccountStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PoolAccountStore = (*PoolAccountStore)(nil)

// claimQuery claims the first free account in one statement. SKIP LOCKED
// keeps concurrent claimers from blocking on (or double-claiming) the same
// row.
const claimQuery = `
	UPDATE pool_accounts
	SET assigned_to = $1
	WHERE address = (
		SELECT address FROM pool_accounts
		WHERE assigned_to IS NULL
		ORDER BY address ASC
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	)
	RETURNING address, credential, assigned_to, imported_at
`

// Insert adds a new unassigned account. Returns ErrDuplicateKey if the
// address already exists.
func (s *PoolAccountStore) Insert(ctx context.Context, acct *domain.PoolAccount) error {
	query := `
		INSERT INTO pool_accounts (address, credential, assigned_to, imported_at)
		VALUES ($1, $2, NULL, $3)
	`

	_, err := s.pool.Exec(ctx, query, acct.Address, acct.Credential, acct.ImportedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert pool account: %w", err)
	}
	return nil
}

// Claim atomically marks the first free account as assigned to agentID.
// Returns ErrNoFreeAccount when the pool is exhausted.
func (s *PoolAccountStore) Claim(ctx context.Context, agentID string) (*domain.PoolAccount, error) {
	if agentID == "" {
		return nil, storage.ErrInvalidInput
	}

	row := s.pool.QueryRow(ctx, claimQuery, agentID)
	acct, err := scanPoolAccount(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNoFreeAccount
		}
		return nil, fmt.Errorf("claim pool account: %w", err)
	}
	return acct, nil
}

// GetByAddress retrieves an account by address. Returns ErrNotFound if not
// exists.
func (s *PoolAccountStore) GetByAddress(ctx context.Context, address string) (*domain.PoolAccount, error) {
	query := `
		SELECT address, credential, assigned_to, imported_at
		FROM pool_accounts
		WHERE address = $1
	`

	row := s.pool.QueryRow(ctx, query, address)
	acct, err := scanPoolAccount(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get pool account by address: %w", err)
	}
	return acct, nil
}

// GetByAgentID retrieves the account assigned to an agent. Returns
// ErrNotFound if the agent holds no account.
func (s *PoolAccountStore) GetByAgentID(ctx context.Context, agentID string) (*domain.PoolAccount, error) {
	query := `
		SELECT address, credential, assigned_to, imported_at
		FROM pool_accounts
		WHERE assigned_to = $1
	`

	row := s.pool.QueryRow(ctx, query, agentID)
	acct, err := scanPoolAccount(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get pool account by agent id: %w", err)
	}
	return acct, nil
}

// CountFree returns the number of unassigned accounts.
func (s *PoolAccountStore) CountFree(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM pool_accounts WHERE assigned_to IS NULL`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count free pool accounts: %w", err)
	}
	return count, nil
}

// CountTotal returns the number of accounts under management.
func (s *PoolAccountStore) CountTotal(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM pool_accounts`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pool accounts: %w", err)
	}
	return count, nil
}

// scanPoolAccount scans a single row into a PoolAccount. assigned_to is
// NULL while the account is free.
func scanPoolAccount(row pgx.Row) (*domain.PoolAccount, error) {
	var acct domain.PoolAccount
	var assignedTo *string

	err := row.Scan(
		&acct.Address,
		&acct.Credential,
		&assignedTo,
		&acct.ImportedAt,
	)
	if err != nil {
		return nil, err
	}

	if assignedTo != nil {
		acct.AssignedTo = *assignedTo
	}
	return &acct, nil
}
