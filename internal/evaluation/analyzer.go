// Package evaluation scores a historical fill sequence against the risk
// gate. Evaluation is a pure function of its input: no state, no I/O.
package evaluation

import (
	"fmt"
	"math"

	"agent-funding-engine/internal/domain"
)

// Analyzer evaluates fill histories against a fixed set of thresholds.
type Analyzer struct {
	thresholds Thresholds
}

// NewAnalyzer creates an analyzer with the given thresholds.
func NewAnalyzer(t Thresholds) *Analyzer {
	return &Analyzer{thresholds: t}
}

// Evaluate produces the risk verdict for a chronologically ordered fill
// history. All gates are evaluated independently (no short-circuit) so a
// failing caller sees every violated threshold at once. Passed is computed
// on unrounded values; the reported metrics are rounded to
// DisplayPrecision.
func (a *Analyzer) Evaluate(fills []domain.Fill) *domain.EvaluationResult {
	n := len(fills)
	t := a.thresholds

	totalPnl := 0.0
	wins := 0
	peak := 0.0
	runningPnl := 0.0
	maxDrawdown := 0.0

	for _, f := range fills {
		runningPnl += f.RealizedPnl
		totalPnl = runningPnl
		if f.RealizedPnl > 0 {
			wins++
		}
		if runningPnl > peak {
			peak = runningPnl
		}
		// A drawdown ratio only exists once the running PnL has had a
		// positive peak; before that there is no base to decline from.
		if peak > 0 {
			drawdown := (peak - runningPnl) / peak
			if drawdown > maxDrawdown {
				maxDrawdown = drawdown
			}
		}
	}

	winRate := 0.0
	if n > 0 {
		winRate = float64(wins) / float64(n)
	}

	var reasons []string
	if n < t.MinTrades {
		reasons = append(reasons, fmt.Sprintf("insufficient trade history: %d fills, need at least %d", n, t.MinTrades))
	}
	if winRate < t.MinWinRate {
		reasons = append(reasons, fmt.Sprintf("win rate %s below minimum %s", a.display(winRate), a.display(t.MinWinRate)))
	}
	if totalPnl < t.MinTotalPnl {
		reasons = append(reasons, fmt.Sprintf("total realized PnL %s below minimum %s", a.display(totalPnl), a.display(t.MinTotalPnl)))
	}
	if maxDrawdown > t.MaxDrawdown {
		reasons = append(reasons, fmt.Sprintf("max drawdown %s exceeds maximum %s", a.display(maxDrawdown), a.display(t.MaxDrawdown)))
	}

	return &domain.EvaluationResult{
		TotalRealizedPnl:    a.round(totalPnl),
		WinRate:             a.round(winRate),
		MaxDrawdownFraction: a.round(maxDrawdown),
		TradeSampleSize:     n,
		Passed:              len(reasons) == 0,
		FailureReasons:      reasons,
	}
}

// round rounds v to the configured display precision.
func (a *Analyzer) round(v float64) float64 {
	scale := math.Pow(10, float64(a.thresholds.DisplayPrecision))
	return math.Round(v*scale) / scale
}

// display formats v at display precision for failure reasons.
func (a *Analyzer) display(v float64) string {
	return fmt.Sprintf("%.*f", a.thresholds.DisplayPrecision, v)
}
