// Package ledger accrues realized PnL and profit shares per agent. Each fill
// is applied at most once: the applied-fill record keyed by the exchange fill
// ID is written first and acts as the idempotency claim, so a redelivered
// fill becomes a no-op instead of double-counting.
package ledger

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"agent-funding-engine/internal/domain"
	"agent-funding-engine/internal/observability"
	"agent-funding-engine/internal/registry"
	"agent-funding-engine/internal/storage"
)

// Shares are the fixed profit split fractions. They need not sum to 1.0;
// any residual stays with the firm's books outside this engine.
type Shares struct {
	Agent float64
	Firm  float64
}

// DefaultShares returns the standard 80/20 split.
func DefaultShares() Shares {
	return Shares{Agent: 0.80, Firm: 0.20}
}

// ApplyResult describes what one ApplyFill call did.
type ApplyResult string

const (
	// ApplyResultApplied means the fill updated the agent's totals.
	ApplyResultApplied ApplyResult = "APPLIED"

	// ApplyResultDuplicate means the fill ID was seen before; nothing changed.
	ApplyResultDuplicate ApplyResult = "DUPLICATE"
)

// Application reports the effect of one fill on an agent's totals.
type Application struct {
	Result     ApplyResult
	AgentShare float64
	FirmShare  float64
	Agent      *domain.Agent
}

// Ledger applies settled fills to agent totals.
type Ledger struct {
	registry *registry.Registry
	applied  storage.AppliedFillStore
	activity storage.ActivityStore
	shares   Shares
	logger   *log.Logger
	now      func() time.Time
}

// New creates a profit ledger.
func New(reg *registry.Registry, applied storage.AppliedFillStore, activity storage.ActivityStore, shares Shares, logger *log.Logger) *Ledger {
	if logger == nil {
		logger = log.New(os.Stdout, "[ledger] ", log.LstdFlags|log.Lshortfile)
	}
	return &Ledger{
		registry: reg,
		applied:  applied,
		activity: activity,
		shares:   shares,
		logger:   logger,
		now:      time.Now,
	}
}

// ApplyFill applies one settled fill to an agent. Positive PnL accrues both
// shares and the cumulative total; negative PnL moves the cumulative total
// only; zero PnL changes nothing but still consumes the fill ID.
//
// The applied-fill record is inserted before the agent update. A crash
// between the two loses the agent-side update for that fill rather than
// risking a double application on redelivery; never double-counting wins
// over never losing a single update.
func (l *Ledger) ApplyFill(ctx context.Context, agentID, fillID string, closedPnl float64) (*Application, error) {
	app := &Application{}

	agent, err := l.registry.WithAgent(ctx, agentID, func(a *domain.Agent) (bool, error) {
		agentShare := 0.0
		firmShare := 0.0
		if closedPnl > 0 {
			agentShare = closedPnl * l.shares.Agent
			firmShare = closedPnl * l.shares.Firm
		}

		record := &domain.AppliedFill{
			FillID:     fillID,
			AgentID:    a.ID,
			ClosedPnl:  closedPnl,
			AgentShare: agentShare,
			FirmShare:  firmShare,
			AppliedAt:  l.now().UnixMilli(),
		}
		if insErr := l.applied.Insert(ctx, record); insErr != nil {
			if errors.Is(insErr, storage.ErrDuplicateKey) {
				app.Result = ApplyResultDuplicate
				return false, nil
			}
			return false, insErr
		}

		if closedPnl == 0 {
			app.Result = ApplyResultApplied
			return false, nil
		}

		a.CumulativeRealizedPnl += closedPnl
		a.AgentShareAccrued += agentShare
		a.FirmShareAccrued += firmShare

		app.Result = ApplyResultApplied
		app.AgentShare = agentShare
		app.FirmShare = firmShare
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	app.Agent = agent

	if app.Result == ApplyResultDuplicate {
		l.logger.Printf("duplicate fill skipped: agent=%s fill=%s", agentID, fillID)
		observability.RecordFillApplied(string(ApplyResultDuplicate), 0, 0)
		return app, nil
	}

	observability.RecordFillApplied(string(ApplyResultApplied), app.AgentShare, app.FirmShare)
	l.recordActivity(ctx, agentID, app.Result, fillID, closedPnl)
	return app, nil
}

// History returns all fills applied for an agent in application order.
func (l *Ledger) History(ctx context.Context, agentID string) ([]*domain.AppliedFill, error) {
	return l.applied.GetByAgentID(ctx, agentID)
}

// recordActivity appends an analytics event. Best-effort.
func (l *Ledger) recordActivity(ctx context.Context, agentID string, result ApplyResult, fillID string, closedPnl float64) {
	if l.activity == nil {
		return
	}
	event := &domain.ActivityEvent{
		AgentID:    agentID,
		Kind:       domain.ActivityFill,
		Outcome:    string(result),
		Detail:     fillID,
		Value:      closedPnl,
		RecordedAt: l.now().UnixMilli(),
	}
	if err := l.activity.Insert(ctx, event); err != nil {
		l.logger.Printf("activity write failed: kind=%s fill=%s err=%v", event.Kind, fillID, err)
	}
}
