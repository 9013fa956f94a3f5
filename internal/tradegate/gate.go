// Package tradegate decides, per order submission, whether an agent may
// trade. It enforces the daily quota and the drawdown kill-switch; the
// kill-switch write is a side effect of the check itself and is irreversible.
package tradegate

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"agent-funding-engine/internal/domain"
	"agent-funding-engine/internal/exchange"
	"agent-funding-engine/internal/observability"
	"agent-funding-engine/internal/registry"
	"agent-funding-engine/internal/storage"
)

// Decision is the verdict of one authorization check.
type Decision string

const (
	// DecisionAuthorized permits the order submission.
	DecisionAuthorized Decision = "AUTHORIZED"

	// DecisionForbidden denies because the agent is revoked, either before
	// this call or by the drawdown kill-switch during it.
	DecisionForbidden Decision = "FORBIDDEN"

	// DecisionRateLimited denies because the daily order quota is spent.
	DecisionRateLimited Decision = "RATE_LIMITED"

	// DecisionNotFound denies because no such agent exists.
	DecisionNotFound Decision = "NOT_FOUND"
)

// Verdict carries a decision and the drawdown reading that produced it, when
// one was taken.
type Verdict struct {
	Decision Decision

	// Drawdown is the fraction observed during the check. Only meaningful
	// when DrawdownKnown is true: a zero-baseline agent or a failed balance
	// read produces no reading.
	Drawdown      float64
	DrawdownKnown bool
}

// Config holds the gate's limits.
type Config struct {
	// MaxDailyTrades caps submitted orders per accounting period.
	MaxDailyTrades int

	// DrawdownKill is the drawdown fraction at which the agent is revoked.
	// The boundary is inclusive: a reading equal to the limit trips it.
	DrawdownKill float64
}

// DefaultConfig returns the standard gate limits.
func DefaultConfig() Config {
	return Config{
		MaxDailyTrades: 50,
		DrawdownKill:   0.25,
	}
}

// Gate authorizes order submissions for agents.
type Gate struct {
	registry *registry.Registry
	exchange exchange.Client
	activity storage.ActivityStore
	cfg      Config
	logger   *log.Logger
	now      func() time.Time
}

// NewGate creates a trade gate.
func NewGate(reg *registry.Registry, ex exchange.Client, activity storage.ActivityStore, cfg Config, logger *log.Logger) *Gate {
	if logger == nil {
		logger = log.New(os.Stdout, "[tradegate] ", log.LstdFlags|log.Lshortfile)
	}
	return &Gate{
		registry: reg,
		exchange: ex,
		activity: activity,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Authorize decides whether the agent may submit intendedOrderCount orders.
// Checks run in order: existence, revocation, quota, drawdown. The drawdown
// check fails open: an unreadable balance authorizes the trade, a confirmed
// reading at or past the kill limit revokes the agent and denies it.
func (g *Gate) Authorize(ctx context.Context, agentID string, intendedOrderCount int) (*Verdict, error) {
	if intendedOrderCount < 1 {
		intendedOrderCount = 1
	}

	verdict := &Verdict{}
	_, err := g.registry.WithAgent(ctx, agentID, func(a *domain.Agent) (bool, error) {
		if a.Revoked() {
			verdict.Decision = DecisionForbidden
			return false, nil
		}

		if a.TradeCount+intendedOrderCount-1 >= g.cfg.MaxDailyTrades {
			verdict.Decision = DecisionRateLimited
			return false, nil
		}

		if a.InitialCapital > 0 {
			start := time.Now()
			balance, balErr := g.exchange.FetchBalance(ctx, a.AssignedAccount)
			observability.RecordExchangeCall("fetch_balance", time.Since(start).Seconds(), balErr)
			if balErr != nil {
				// Fail open: a degraded balance oracle must not block
				// trading. Only a confirmed reading can deny.
				g.logger.Printf("balance read failed, authorizing without drawdown check: agent=%s err=%v", a.ID, balErr)
				verdict.Decision = DecisionAuthorized
				return false, nil
			}

			drawdown := (a.InitialCapital - balance.AccountValue) / a.InitialCapital
			verdict.Drawdown = drawdown
			verdict.DrawdownKnown = true

			if drawdown >= g.cfg.DrawdownKill {
				a.Status = domain.AgentStatusRevoked
				verdict.Decision = DecisionForbidden
				g.logger.Printf("kill-switch tripped: agent=%s drawdown=%.4f limit=%.4f", a.ID, drawdown, g.cfg.DrawdownKill)
				observability.RecordKillSwitch()
				return true, nil
			}
		}

		verdict.Decision = DecisionAuthorized
		return false, nil
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			verdict.Decision = DecisionNotFound
			observability.RecordAuthorization(string(DecisionNotFound))
			return verdict, nil
		}
		return nil, err
	}

	observability.RecordAuthorization(string(verdict.Decision))
	g.recordActivity(ctx, agentID, verdict)
	return verdict, nil
}

// RecordSubmission counts one submitted order against the agent's quota.
// Called by the transport layer after the external order placement succeeds;
// authorization itself never consumes quota since the order may still fail.
func (g *Gate) RecordSubmission(ctx context.Context, agentID string) (*domain.Agent, error) {
	agent, err := g.registry.WithAgent(ctx, agentID, func(a *domain.Agent) (bool, error) {
		a.TradeCount++
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	observability.RecordTradeSubmission()
	return agent, nil
}

// recordActivity appends an analytics event. Best-effort.
func (g *Gate) recordActivity(ctx context.Context, agentID string, v *Verdict) {
	if g.activity == nil {
		return
	}
	event := &domain.ActivityEvent{
		AgentID:    agentID,
		Kind:       domain.ActivityAuthorize,
		Outcome:    string(v.Decision),
		Value:      v.Drawdown,
		RecordedAt: g.now().UnixMilli(),
	}
	if err := g.activity.Insert(ctx, event); err != nil {
		g.logger.Printf("activity write failed: kind=%s outcome=%s err=%v", event.Kind, v.Decision, err)
	}
}
