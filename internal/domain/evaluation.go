package domain

// EvaluationResult is the risk-gate verdict over a fill history. It is
// transient: returned to callers for transparency, never persisted.
type EvaluationResult struct {
	TotalRealizedPnl    float64
	WinRate             float64
	MaxDrawdownFraction float64
	TradeSampleSize     int

	// Passed is computed on unrounded values; the numeric fields above are
	// rounded for display only.
	Passed bool

	// FailureReasons lists every violated gate in evaluation order.
	// Empty iff Passed.
	FailureReasons []string
}
