package postgres

import (
	"context"
	"fmt"

	"agent-funding-engine/internal/domain"
	"agent-funding-engine/internal/storage"
)

// AppliedFillStore implements storage.AppliedFillStore using PostgreSQL.
type AppliedFillStore struct {
	pool *Pool
}

// NewAppliedFillStore creates a new AppliedFillStore.
func NewAppliedFillStore(pool *Pool) *AppliedFillStore {
	return &AppliedFillStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AppliedFillStore = (*AppliedFillStore)(nil)

// Insert records an applied fill. Returns ErrDuplicateKey if the fill ID was
// already applied.
func (s *AppliedFillStore) Insert(ctx context.Context, f *domain.AppliedFill) error {
	query := `
		INSERT INTO applied_fills (fill_id, agent_id, closed_pnl, agent_share, firm_share, applied_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.pool.Exec(ctx, query,
		f.FillID,
		f.AgentID,
		f.ClosedPnl,
		f.AgentShare,
		f.FirmShare,
		f.AppliedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert applied fill: %w", err)
	}
	return nil
}

// GetByAgentID retrieves all fills applied for an agent, ordered by
// applied_at ASC, fill_id ASC.
func (s *AppliedFillStore) GetByAgentID(ctx context.Context, agentID string) ([]*domain.AppliedFill, error) {
	query := `
		SELECT fill_id, agent_id, closed_pnl, agent_share, firm_share, applied_at
		FROM applied_fills
		WHERE agent_id = $1
		ORDER BY applied_at ASC, fill_id ASC
	`

	rows, err := s.pool.Query(ctx, query, agentID)
	if err != nil {
		return nil, fmt.Errorf("get applied fills by agent id: %w", err)
	}
	defer rows.Close()

	var fills []*domain.AppliedFill
	for rows.Next() {
		var f domain.AppliedFill
		err := rows.Scan(
			&f.FillID,
			&f.AgentID,
			&f.ClosedPnl,
			&f.AgentShare,
			&f.FirmShare,
			&f.AppliedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan applied fill row: %w", err)
		}
		fills = append(fills, &f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied fill rows: %w", err)
	}

	return fills, nil
}
