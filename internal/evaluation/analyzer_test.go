package evaluation

import (
	"strings"
	"testing"

	"agent-funding-engine/internal/domain"
)

func fillsFromPnl(pnls ...float64) []domain.Fill {
	fills := make([]domain.Fill, len(pnls))
	for i, p := range pnls {
		fills[i] = domain.Fill{RealizedPnl: p}
	}
	return fills
}

func TestEvaluate_PassingHistory(t *testing.T) {
	a := NewAnalyzer(DefaultThresholds())

	// 12 trades, 7 wins, max drawdown 30/210 ~ 0.143, total +390
	fills := fillsFromPnl(100, 50, -20, 80, -30, 60, -10, 90, -40, 70, -10, 50)

	result := a.Evaluate(fills)

	if !result.Passed {
		t.Fatalf("Expected passed, got failure reasons: %v", result.FailureReasons)
	}
	if len(result.FailureReasons) != 0 {
		t.Errorf("Expected no failure reasons, got %v", result.FailureReasons)
	}
	if result.TradeSampleSize != 12 {
		t.Errorf("TradeSampleSize mismatch: got %d, want 12", result.TradeSampleSize)
	}
	if result.WinRate != 0.5833 {
		t.Errorf("WinRate mismatch: got %v, want 0.5833", result.WinRate)
	}
	if result.TotalRealizedPnl != 390 {
		t.Errorf("TotalRealizedPnl mismatch: got %v, want 390", result.TotalRealizedPnl)
	}
	if result.MaxDrawdownFraction != 0.1429 {
		t.Errorf("MaxDrawdownFraction mismatch: got %v, want 0.1429", result.MaxDrawdownFraction)
	}
}

func TestEvaluate_ShortHistoryCitesShortfall(t *testing.T) {
	a := NewAnalyzer(DefaultThresholds())

	result := a.Evaluate(fillsFromPnl(10, 20, 30))

	if result.Passed {
		t.Fatal("Expected failure for 3 fills")
	}
	if len(result.FailureReasons) != 1 {
		t.Fatalf("Expected exactly 1 reason, got %v", result.FailureReasons)
	}
	if !strings.Contains(result.FailureReasons[0], "3 fills") {
		t.Errorf("Reason should cite the sample size: %q", result.FailureReasons[0])
	}
	if !strings.Contains(result.FailureReasons[0], "10") {
		t.Errorf("Reason should cite the minimum: %q", result.FailureReasons[0])
	}
	// Metrics are still computed on the small sample for visibility.
	if result.WinRate != 1 {
		t.Errorf("WinRate mismatch: got %v, want 1", result.WinRate)
	}
	if result.TotalRealizedPnl != 60 {
		t.Errorf("TotalRealizedPnl mismatch: got %v, want 60", result.TotalRealizedPnl)
	}
}

func TestEvaluate_EmptyHistory(t *testing.T) {
	a := NewAnalyzer(DefaultThresholds())

	result := a.Evaluate(nil)

	if result.Passed {
		t.Fatal("Expected failure for empty history")
	}
	if result.TradeSampleSize != 0 {
		t.Errorf("TradeSampleSize mismatch: got %d, want 0", result.TradeSampleSize)
	}
	if result.WinRate != 0 {
		t.Errorf("WinRate for empty history should be 0, got %v", result.WinRate)
	}
	// Insufficient trades and win rate both fail; no drawdown or PnL breach.
	if len(result.FailureReasons) != 2 {
		t.Errorf("Expected 2 reasons, got %v", result.FailureReasons)
	}
}

func TestEvaluate_AllGatesReportedIndependently(t *testing.T) {
	a := NewAnalyzer(Thresholds{
		MinTrades:        10,
		MinWinRate:       0.45,
		MinTotalPnl:      -500,
		MaxDrawdown:      0.15,
		DisplayPrecision: 4,
	})

	// 4 fills, 1 win, total -600, drawdown (100-(-600))/100 clipped by
	// nothing: peak 100, trough -600 -> 7.0
	result := a.Evaluate(fillsFromPnl(100, -300, -200, -200))

	if result.Passed {
		t.Fatal("Expected failure")
	}
	// insufficient trades, win rate, total PnL, drawdown: all four at once
	if len(result.FailureReasons) != 4 {
		t.Errorf("Expected 4 reasons, got %d: %v", len(result.FailureReasons), result.FailureReasons)
	}
}

func TestEvaluate_NonIncreasingPnlHasZeroDrawdown(t *testing.T) {
	a := NewAnalyzer(DefaultThresholds())

	// Peak never exceeds zero: no base to decline from.
	result := a.Evaluate(fillsFromPnl(-10, -20, -5, -40, -1, -3, -7, -9, -2, -11))

	if result.MaxDrawdownFraction != 0 {
		t.Errorf("Drawdown for non-increasing PnL should be 0, got %v", result.MaxDrawdownFraction)
	}
	if result.Passed {
		t.Fatal("Expected failure on win rate")
	}
}

func TestEvaluate_DrawdownWithinUnitRange(t *testing.T) {
	a := NewAnalyzer(DefaultThresholds())

	// Running PnL stays non-negative, so drawdown is a proper fraction.
	result := a.Evaluate(fillsFromPnl(50, 30, -60, 40, -20, 10, 25, -15, 5, 35))

	if result.MaxDrawdownFraction < 0 || result.MaxDrawdownFraction > 1 {
		t.Errorf("Drawdown out of [0, 1]: %v", result.MaxDrawdownFraction)
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	a := NewAnalyzer(DefaultThresholds())
	fills := fillsFromPnl(100, 50, -20, 80, -30, 60, -10, 90, -40, 70, -10, 50)

	first := a.Evaluate(fills)
	second := a.Evaluate(fills)

	if first.Passed != second.Passed {
		t.Error("Evaluate should be deterministic")
	}
	if first.WinRate != second.WinRate || first.MaxDrawdownFraction != second.MaxDrawdownFraction {
		t.Error("Metrics should be identical across evaluations")
	}
}

func TestEvaluate_VerdictUsesUnroundedValues(t *testing.T) {
	// Win rate 5/11 = 0.4545... rounds to 0.4545 but must be compared
	// unrounded against a threshold of 5.0/11 exactly.
	a := NewAnalyzer(Thresholds{
		MinTrades:        10,
		MinWinRate:       5.0 / 11.0,
		MinTotalPnl:      -500,
		MaxDrawdown:      1,
		DisplayPrecision: 4,
	})

	result := a.Evaluate(fillsFromPnl(10, 10, 10, 10, 10, -1, -1, -1, -1, -1, -1))

	if !result.Passed {
		t.Fatalf("Win rate exactly at threshold should pass, reasons: %v", result.FailureReasons)
	}
}
