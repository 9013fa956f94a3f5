package domain

// AgentStatus is the lifecycle state of an agent.
// Transitions are one-directional: ACTIVE -> REVOKED only.
type AgentStatus string

const (
	AgentStatusActive  AgentStatus = "ACTIVE"
	AgentStatusRevoked AgentStatus = "REVOKED"
)

// Agent is an onboarded trading identity bound to exactly one funded account.
// Corresponds to the agents table.
type Agent struct {
	ID              string // deterministic hash, immutable
	ExternalAddress string // verified trading identity, unique across agents
	AssignedAccount string // pool account address, set exactly once

	// InitialCapital is the account value snapshot taken at assignment time.
	// It is the drawdown baseline and never changes after creation. A zero
	// value means the snapshot failed at onboarding; such an agent produces
	// no drawdown signal until the baseline is refreshed out-of-band.
	InitialCapital float64

	// Running totals. CumulativeRealizedPnl may go negative; the share
	// fields only ever grow since shares are accrued on positive PnL only.
	CumulativeRealizedPnl float64
	AgentShareAccrued     float64
	FirmShareAccrued      float64

	// TradeCount counts submitted orders in the current accounting period.
	// Period rollover is an external scheduling concern.
	TradeCount int

	Status    AgentStatus
	CreatedAt int64 // unix ms
}

// Revoked reports whether the kill-switch has fired for this agent.
func (a *Agent) Revoked() bool {
	return a.Status == AgentStatusRevoked
}
