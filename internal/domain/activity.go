package domain

// ActivityKind classifies engine activity events.
type ActivityKind string

const (
	ActivityOnboard   ActivityKind = "ONBOARD"
	ActivityAuthorize ActivityKind = "AUTHORIZE"
	ActivityFill      ActivityKind = "FILL"
)

// ActivityEvent is one append-only analytics record of an engine decision.
// Events are written best-effort after the decision commits; a failed write
// never blocks or reverses the decision.
type ActivityEvent struct {
	AgentID    string
	Kind       ActivityKind
	Outcome    string  // outcome code of the decision (APPROVED, FORBIDDEN, ...)
	Detail     string  // human-readable context, may be empty
	Value      float64 // kind-specific scalar (drawdown, closed PnL, ...)
	RecordedAt int64   // unix ms
}
