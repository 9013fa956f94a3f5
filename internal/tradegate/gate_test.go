package tradegate

import (
	"context"
	"io"
	"log"
	"testing"

	"agent-funding-engine/internal/domain"
	"agent-funding-engine/internal/exchange"
	"agent-funding-engine/internal/exchange/stub"
	"agent-funding-engine/internal/registry"
	"agent-funding-engine/internal/storage/memory"
)

type gateFixture struct {
	gate     *Gate
	registry *registry.Registry
	exchange *stub.Client
}

// newGateFixture creates a gate over one active agent with the given
// baseline and current balance.
func newGateFixture(t *testing.T, initialCapital, currentBalance float64) *gateFixture {
	t.Helper()

	agents := memory.NewAgentStore()
	a := &domain.Agent{
		ID:              "agent1",
		ExternalAddress: "addr1",
		AssignedAccount: "acct1",
		InitialCapital:  initialCapital,
		Status:          domain.AgentStatusActive,
	}
	if err := agents.Insert(context.Background(), a); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	ex := stub.NewClient()
	ex.SetBalance("acct1", currentBalance)

	reg := registry.New(agents)
	gate := NewGate(reg, ex, memory.NewActivityStore(), DefaultConfig(), log.New(io.Discard, "", 0))
	return &gateFixture{gate: gate, registry: reg, exchange: ex}
}

func TestAuthorize_HealthyAgent(t *testing.T) {
	f := newGateFixture(t, 1000, 950)
	ctx := context.Background()

	v, err := f.gate.Authorize(ctx, "agent1", 1)
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if v.Decision != DecisionAuthorized {
		t.Fatalf("Expected AUTHORIZED, got %s", v.Decision)
	}
	if !v.DrawdownKnown {
		t.Error("A successful balance read should report the drawdown")
	}
	if v.Drawdown != 0.05 {
		t.Errorf("Drawdown mismatch: got %v, want 0.05", v.Drawdown)
	}
}

func TestAuthorize_NotFound(t *testing.T) {
	f := newGateFixture(t, 1000, 1000)
	ctx := context.Background()

	v, err := f.gate.Authorize(ctx, "ghost", 1)
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if v.Decision != DecisionNotFound {
		t.Errorf("Expected NOT_FOUND, got %s", v.Decision)
	}
}

func TestAuthorize_RevokedIsTerminal(t *testing.T) {
	f := newGateFixture(t, 1000, 1000)
	ctx := context.Background()

	_, err := f.registry.WithAgent(ctx, "agent1", func(a *domain.Agent) (bool, error) {
		a.Status = domain.AgentStatusRevoked
		return true, nil
	})
	if err != nil {
		t.Fatalf("WithAgent failed: %v", err)
	}

	v, err := f.gate.Authorize(ctx, "agent1", 1)
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if v.Decision != DecisionForbidden {
		t.Errorf("Expected FORBIDDEN, got %s", v.Decision)
	}
	// No balance call happens for a revoked agent.
	if f.exchange.BalanceCalls != 0 {
		t.Errorf("Revocation check must short-circuit, %d balance calls", f.exchange.BalanceCalls)
	}
}

func TestAuthorize_QuotaBoundary(t *testing.T) {
	f := newGateFixture(t, 1000, 1000)
	ctx := context.Background()

	cfg := DefaultConfig()
	_, err := f.registry.WithAgent(ctx, "agent1", func(a *domain.Agent) (bool, error) {
		a.TradeCount = cfg.MaxDailyTrades - 1
		return true, nil
	})
	if err != nil {
		t.Fatalf("WithAgent failed: %v", err)
	}

	// One more order still fits.
	v, err := f.gate.Authorize(ctx, "agent1", 1)
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if v.Decision != DecisionAuthorized {
		t.Errorf("Last slot should authorize, got %s", v.Decision)
	}

	// Two at once do not.
	v, err = f.gate.Authorize(ctx, "agent1", 2)
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if v.Decision != DecisionRateLimited {
		t.Errorf("Expected RATE_LIMITED, got %s", v.Decision)
	}
}

func TestAuthorize_QuotaExhausted(t *testing.T) {
	f := newGateFixture(t, 1000, 1000)
	ctx := context.Background()

	cfg := DefaultConfig()
	_, err := f.registry.WithAgent(ctx, "agent1", func(a *domain.Agent) (bool, error) {
		a.TradeCount = cfg.MaxDailyTrades
		return true, nil
	})
	if err != nil {
		t.Fatalf("WithAgent failed: %v", err)
	}

	v, err := f.gate.Authorize(ctx, "agent1", 1)
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if v.Decision != DecisionRateLimited {
		t.Errorf("Expected RATE_LIMITED, got %s", v.Decision)
	}
}

func TestAuthorize_KillSwitchAtBoundary(t *testing.T) {
	// Drawdown exactly at the kill limit: (1000-750)/1000 = 0.25.
	f := newGateFixture(t, 1000, 750)
	ctx := context.Background()

	v, err := f.gate.Authorize(ctx, "agent1", 1)
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if v.Decision != DecisionForbidden {
		t.Fatalf("Boundary drawdown must trip the kill-switch, got %s", v.Decision)
	}
	if !v.DrawdownKnown || v.Drawdown != 0.25 {
		t.Errorf("Verdict should carry the drawdown, got %v (known=%v)", v.Drawdown, v.DrawdownKnown)
	}

	// The revocation is persisted.
	a, err := f.registry.GetAgent(ctx, "agent1")
	if err != nil {
		t.Fatalf("GetAgent failed: %v", err)
	}
	if a.Status != domain.AgentStatusRevoked {
		t.Errorf("Agent should be revoked, got %s", a.Status)
	}
}

func TestAuthorize_RevocationSticky(t *testing.T) {
	f := newGateFixture(t, 1000, 700)
	ctx := context.Background()

	v, err := f.gate.Authorize(ctx, "agent1", 1)
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if v.Decision != DecisionForbidden {
		t.Fatalf("Expected FORBIDDEN, got %s", v.Decision)
	}

	// Balance fully recovers; the agent stays revoked.
	f.exchange.SetBalance("acct1", 2000)

	v, err = f.gate.Authorize(ctx, "agent1", 1)
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if v.Decision != DecisionForbidden {
		t.Errorf("Revocation must be sticky, got %s", v.Decision)
	}
}

func TestAuthorize_FailOpenOnBalanceError(t *testing.T) {
	f := newGateFixture(t, 1000, 0)
	ctx := context.Background()
	f.exchange.BalanceErr = exchange.ErrUnavailable

	v, err := f.gate.Authorize(ctx, "agent1", 1)
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if v.Decision != DecisionAuthorized {
		t.Errorf("Unreadable balance must fail open, got %s", v.Decision)
	}
	if v.DrawdownKnown {
		t.Error("No drawdown reading exists on a failed balance read")
	}
}

func TestAuthorize_ZeroBaselineSkipsDrawdown(t *testing.T) {
	// Baseline snapshot failed at onboarding: no drawdown signal.
	f := newGateFixture(t, 0, 1)
	ctx := context.Background()

	v, err := f.gate.Authorize(ctx, "agent1", 1)
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if v.Decision != DecisionAuthorized {
		t.Errorf("Zero baseline must authorize, got %s", v.Decision)
	}
	if f.exchange.BalanceCalls != 0 {
		t.Errorf("No balance call is needed without a baseline, got %d", f.exchange.BalanceCalls)
	}
}

func TestRecordSubmission(t *testing.T) {
	f := newGateFixture(t, 1000, 1000)
	ctx := context.Background()

	a, err := f.gate.RecordSubmission(ctx, "agent1")
	if err != nil {
		t.Fatalf("RecordSubmission failed: %v", err)
	}
	if a.TradeCount != 1 {
		t.Errorf("TradeCount mismatch: got %d, want 1", a.TradeCount)
	}

	a, err = f.gate.RecordSubmission(ctx, "agent1")
	if err != nil {
		t.Fatalf("RecordSubmission failed: %v", err)
	}
	if a.TradeCount != 2 {
		t.Errorf("TradeCount mismatch: got %d, want 2", a.TradeCount)
	}
}
