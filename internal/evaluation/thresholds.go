package evaluation

// Thresholds are the risk-gate limits applied to a fill history. The
// structure is immutable once handed to an Analyzer; runtime reconfiguration
// means constructing a new Analyzer.
type Thresholds struct {
	// MinTrades is the minimum sample size for a meaningful verdict.
	MinTrades int

	// MinWinRate is the minimum fraction of fills with positive PnL.
	MinWinRate float64

	// MinTotalPnl is the minimum cumulative realized PnL. May be negative:
	// a modest loss over a large sample is acceptable history.
	MinTotalPnl float64

	// MaxDrawdown is the maximum tolerated peak-to-trough fraction of the
	// running PnL.
	MaxDrawdown float64

	// DisplayPrecision is the number of decimal places for reported
	// metrics. Display only: the verdict is computed on unrounded values.
	DisplayPrecision int
}

// DefaultThresholds returns the standard risk gate.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinTrades:        10,
		MinWinRate:       0.45,
		MinTotalPnl:      -500,
		MaxDrawdown:      0.15,
		DisplayPrecision: 4,
	}
}
