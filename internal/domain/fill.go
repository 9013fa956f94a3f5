package domain

// Fill is one historical trade outcome from the exchange, used as input to
// the performance analyzer. Fills are assumed to arrive in chronological
// order.
type Fill struct {
	RealizedPnl float64
}

// FillEvent is a settled fill delivered by the exchange settlement stream.
// FillID is the exchange-assigned settlement identifier; the ledger uses it
// to de-duplicate redeliveries.
type FillEvent struct {
	FillID         string
	AccountAddress string
	ClosedPnl      float64
	SettledAt      int64 // unix ms
}

// AppliedFill records one fill the profit ledger has already applied.
// Corresponds to the applied_fills table; the (fill_id) primary key is the
// idempotency guard for fill application.
type AppliedFill struct {
	FillID     string
	AgentID    string
	ClosedPnl  float64
	AgentShare float64
	FirmShare  float64
	AppliedAt  int64 // unix ms
}
