// Package allocation orchestrates onboarding: it decides whether an external
// address may receive a funded account and, if so, creates the agent and
// binds the account in one durable step.
package allocation

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"agent-funding-engine/internal/domain"
	"agent-funding-engine/internal/evaluation"
	"agent-funding-engine/internal/exchange"
	"agent-funding-engine/internal/idhash"
	"agent-funding-engine/internal/observability"
	"agent-funding-engine/internal/storage"
)

// Outcome is the terminal result of an onboarding request.
type Outcome string

const (
	// OutcomeAlreadyRegistered means the address already holds an agent; the
	// existing record is returned verbatim.
	OutcomeAlreadyRegistered Outcome = "ALREADY_REGISTERED"

	// OutcomeUnauthorized means the caller's signature was not verified.
	OutcomeUnauthorized Outcome = "UNAUTHORIZED"

	// OutcomeRejected means the fill history failed the risk gate.
	OutcomeRejected Outcome = "REJECTED"

	// OutcomeNoCapacity means the pool has no free account. Retryable.
	OutcomeNoCapacity Outcome = "NO_CAPACITY"

	// OutcomeApproved means an agent was created and bound to an account.
	OutcomeApproved Outcome = "APPROVED"

	// OutcomeApprovedBypass means the risk gate failed but the bypass flag
	// admitted the agent anyway.
	OutcomeApprovedBypass Outcome = "APPROVED_BYPASS"
)

// Result carries the outcome of an onboarding request. Agent is set for
// AlreadyRegistered and both approved outcomes; Evaluation is set whenever
// the analyzer ran.
type Result struct {
	Outcome    Outcome
	Agent      *domain.Agent
	Evaluation *domain.EvaluationResult
}

// Engine runs the onboarding pipeline.
type Engine struct {
	agents   storage.AgentStore
	alloc    storage.AllocationStore
	analyzer *evaluation.Analyzer
	exchange exchange.Client
	activity storage.ActivityStore

	// bypassRiskGate admits agents whose history fails the risk gate.
	// Evaluation still runs and is reported; only the verdict is overridden.
	bypassRiskGate bool

	logger *log.Logger
	now    func() time.Time
}

// Config carries the engine's collaborators and policy knobs.
type Config struct {
	Agents    storage.AgentStore
	Allocator storage.AllocationStore
	Analyzer  *evaluation.Analyzer
	Exchange  exchange.Client

	// Activity receives best-effort analytics events. Optional.
	Activity storage.ActivityStore

	BypassRiskGate bool

	Logger *log.Logger
}

// NewEngine creates an onboarding engine.
func NewEngine(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[allocation] ", log.LstdFlags|log.Lshortfile)
	}
	return &Engine{
		agents:         cfg.Agents,
		alloc:          cfg.Allocator,
		analyzer:       cfg.Analyzer,
		exchange:       cfg.Exchange,
		activity:       cfg.Activity,
		bypassRiskGate: cfg.BypassRiskGate,
		logger:         logger,
		now:            time.Now,
	}
}

// Onboard runs the ordered onboarding gates for an address. The first
// failing gate determines the outcome; later gates do not run. Errors are
// returned only for infrastructure failures — every business denial is an
// Outcome, not an error.
func (e *Engine) Onboard(ctx context.Context, address string, signatureVerified bool, fills []domain.Fill) (*Result, error) {
	existing, err := e.agents.GetByAddress(ctx, address)
	if err == nil {
		e.recordActivity(ctx, existing.ID, string(OutcomeAlreadyRegistered), "", 0)
		observability.RecordOnboarding(string(OutcomeAlreadyRegistered))
		return &Result{Outcome: OutcomeAlreadyRegistered, Agent: existing}, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	if !signatureVerified {
		e.recordActivity(ctx, "", string(OutcomeUnauthorized), address, 0)
		observability.RecordOnboarding(string(OutcomeUnauthorized))
		return &Result{Outcome: OutcomeUnauthorized}, nil
	}

	eval := e.analyzer.Evaluate(fills)
	observability.RecordEvaluation(eval.TradeSampleSize, eval.MaxDrawdownFraction)
	if !eval.Passed && !e.bypassRiskGate {
		e.logger.Printf("onboarding rejected: address=%s reasons=%v", address, eval.FailureReasons)
		e.recordActivity(ctx, "", string(OutcomeRejected), address, eval.MaxDrawdownFraction)
		observability.RecordOnboarding(string(OutcomeRejected))
		return &Result{Outcome: OutcomeRejected, Evaluation: eval}, nil
	}

	agent, acct, err := e.alloc.ClaimAndBind(ctx, func(acct *domain.PoolAccount) (*domain.Agent, error) {
		createdAt := e.now().UnixMilli()

		// Baseline snapshot is best-effort: a failed read leaves the
		// baseline at zero, which disables the drawdown signal for this
		// agent until refreshed out-of-band.
		initialCapital := 0.0
		start := time.Now()
		balance, balErr := e.exchange.FetchBalance(ctx, acct.Address)
		observability.RecordExchangeCall("fetch_balance", time.Since(start).Seconds(), balErr)
		if balErr != nil {
			e.logger.Printf("balance snapshot failed, onboarding with zero baseline: account=%s err=%v", acct.Address, balErr)
		} else {
			initialCapital = balance.AccountValue
		}

		return &domain.Agent{
			ID:              idhash.ComputeAgentID(address, createdAt),
			ExternalAddress: address,
			AssignedAccount: acct.Address,
			InitialCapital:  initialCapital,
			Status:          domain.AgentStatusActive,
			CreatedAt:       createdAt,
		}, nil
	})
	if err != nil {
		if errors.Is(err, storage.ErrNoFreeAccount) {
			e.recordActivity(ctx, "", string(OutcomeNoCapacity), address, 0)
			observability.RecordOnboarding(string(OutcomeNoCapacity))
			return &Result{Outcome: OutcomeNoCapacity, Evaluation: eval}, nil
		}
		if errors.Is(err, storage.ErrDuplicateKey) {
			// Lost a race against a concurrent onboarding of the same
			// address; the winner's record is the agent for this address.
			winner, readErr := e.agents.GetByAddress(ctx, address)
			if readErr != nil {
				return nil, readErr
			}
			observability.RecordOnboarding(string(OutcomeAlreadyRegistered))
			return &Result{Outcome: OutcomeAlreadyRegistered, Agent: winner}, nil
		}
		return nil, err
	}

	outcome := OutcomeApproved
	if !eval.Passed {
		outcome = OutcomeApprovedBypass
	}
	e.logger.Printf("agent onboarded: agent=%s account=%s initial_capital=%.2f outcome=%s",
		agent.ID, acct.Address, agent.InitialCapital, outcome)
	e.recordActivity(ctx, agent.ID, string(outcome), acct.Address, agent.InitialCapital)
	observability.RecordOnboarding(string(outcome))

	return &Result{Outcome: outcome, Agent: agent, Evaluation: eval}, nil
}

// recordActivity appends an analytics event. Failures are logged and
// swallowed: analytics never blocks or reverses a decision.
func (e *Engine) recordActivity(ctx context.Context, agentID, outcome, detail string, value float64) {
	if e.activity == nil {
		return
	}
	event := &domain.ActivityEvent{
		AgentID:    agentID,
		Kind:       domain.ActivityOnboard,
		Outcome:    outcome,
		Detail:     detail,
		Value:      value,
		RecordedAt: e.now().UnixMilli(),
	}
	if err := e.activity.Insert(ctx, event); err != nil {
		e.logger.Printf("activity write failed: kind=%s outcome=%s err=%v", event.Kind, outcome, err)
	}
}
