package clickhouse

import (
	"context"
	"fmt"

	"agent-funding-engine/internal/domain"
	"agent-funding-engine/internal/storage"
)

// ActivityStore implements storage.ActivityStore using ClickHouse. The table
// is append-only analytics: duplicate events are tolerated, ordering is by
// recorded_at.
type ActivityStore struct {
	conn *Conn
}

// NewActivityStore creates a new ActivityStore.
func NewActivityStore(conn *Conn) *ActivityStore {
	return &ActivityStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ActivityStore = (*ActivityStore)(nil)

// Insert appends an activity event.
func (s *ActivityStore) Insert(ctx context.Context, e *domain.ActivityEvent) error {
	if e == nil || e.Kind == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO activity_events (agent_id, kind, outcome, detail, value, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	err := s.conn.Exec(ctx, query,
		e.AgentID,
		string(e.Kind),
		e.Outcome,
		e.Detail,
		e.Value,
		e.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("insert activity event: %w", err)
	}
	return nil
}

// GetByAgentID retrieves all events for an agent, ordered by recorded_at ASC.
func (s *ActivityStore) GetByAgentID(ctx context.Context, agentID string) ([]*domain.ActivityEvent, error) {
	query := `
		SELECT agent_id, kind, outcome, detail, value, recorded_at
		FROM activity_events
		WHERE agent_id = ?
		ORDER BY recorded_at ASC
	`

	rows, err := s.conn.Query(ctx, query, agentID)
	if err != nil {
		return nil, fmt.Errorf("get activity events by agent id: %w", err)
	}
	defer rows.Close()

	var events []*domain.ActivityEvent
	for rows.Next() {
		var e domain.ActivityEvent
		var kindStr string

		err := rows.Scan(
			&e.AgentID,
			&kindStr,
			&e.Outcome,
			&e.Detail,
			&e.Value,
			&e.RecordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan activity event row: %w", err)
		}

		e.Kind = domain.ActivityKind(kindStr)
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity event rows: %w", err)
	}

	return events, nil
}
