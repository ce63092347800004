// Package metrics is the risk-metric engine: Sharpe, Sortino and maximum
// drawdown over a NAV trajectory, computed in decimal arithmetic.
package metrics

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"strategy-tuner/internal/domain"
)

// DefaultPeriodsPerYear is the number of trading periods used for annualization.
const DefaultPeriodsPerYear = 250

var (
	// ErrEmptyTrajectory is returned when a NAV trajectory has no points.
	ErrEmptyTrajectory = errors.New("empty nav trajectory")

	// ErrNonPositiveNAV is returned when a return cannot be formed because
	// the previous NAV is zero or negative.
	ErrNonPositiveNAV = errors.New("non-positive nav")
)

// Returns computes simple per-period returns r[i] = nav[i]/nav[i-1] - 1.
// A trajectory of n points yields n-1 returns.
func Returns(nav []domain.NAVPoint) ([]decimal.Decimal, error) {
	if len(nav) == 0 {
		return nil, ErrEmptyTrajectory
	}
	out := make([]decimal.Decimal, 0, len(nav)-1)
	for i := 1; i < len(nav); i++ {
		prev := nav[i-1].NAV
		if !prev.IsPositive() {
			return nil, fmt.Errorf("return at index %d: %w", i, ErrNonPositiveNAV)
		}
		out = append(out, nav[i].NAV.Sub(prev).Div(prev))
	}
	return out, nil
}

// Sharpe returns the per-period Sharpe ratio: mean excess return over the
// sample standard deviation of excess returns.
// Returns zero when the deviation is zero or fewer than two returns exist.
func Sharpe(nav []domain.NAVPoint, riskFree decimal.Decimal) (decimal.Decimal, error) {
	excess, err := excessReturns(nav, riskFree)
	if err != nil {
		return decimal.Zero, err
	}
	if len(excess) < 2 {
		return decimal.Zero, nil
	}

	mean := computeMean(excess)
	std := computeStddev(excess, mean)
	if std.IsZero() {
		return decimal.Zero, nil
	}
	return mean.Div(std), nil
}

// Sortino returns the per-period Sortino ratio: mean excess return over the
// downside deviation sqrt(sum(min(e, 0)^2) / n).
// Returns zero when there is no downside.
func Sortino(nav []domain.NAVPoint, riskFree decimal.Decimal) (decimal.Decimal, error) {
	excess, err := excessReturns(nav, riskFree)
	if err != nil {
		return decimal.Zero, err
	}
	if len(excess) == 0 {
		return decimal.Zero, nil
	}

	mean := computeMean(excess)
	downside := computeDownsideDeviation(excess)
	if downside.IsZero() {
		return decimal.Zero, nil
	}
	return mean.Div(downside), nil
}

// MaxDrawdown finds the largest peak-to-trough decline as a fraction of the
// running peak and the trajectory index of the trough.
// A monotonically non-decreasing trajectory has drawdown exactly zero at index 0.
func MaxDrawdown(nav []domain.NAVPoint) (decimal.Decimal, int, error) {
	if len(nav) == 0 {
		return decimal.Zero, 0, ErrEmptyTrajectory
	}

	peak := nav[0].NAV
	maxDrawdown := decimal.Zero
	troughIdx := 0

	for i, p := range nav {
		if p.NAV.GreaterThan(peak) {
			peak = p.NAV
		}
		if !peak.IsPositive() {
			continue
		}
		drawdown := peak.Sub(p.NAV).Div(peak)
		if drawdown.GreaterThan(maxDrawdown) {
			maxDrawdown = drawdown
			troughIdx = i
		}
	}
	return maxDrawdown, troughIdx, nil
}

// Annualize scales a per-period ratio by sqrt(periodsPerYear).
// The square root is taken in float64; the product stays decimal.
func Annualize(ratio decimal.Decimal, periodsPerYear int) decimal.Decimal {
	return ratio.Mul(decimal.NewFromFloat(math.Sqrt(float64(periodsPerYear))))
}

// Snapshot computes annualized Sharpe/Sortino and maximum drawdown over nav.
func Snapshot(nav []domain.NAVPoint, riskFree decimal.Decimal, periodsPerYear int) (*domain.MetricsSnapshot, error) {
	if periodsPerYear <= 0 {
		periodsPerYear = DefaultPeriodsPerYear
	}

	sharpe, err := Sharpe(nav, riskFree)
	if err != nil {
		return nil, fmt.Errorf("sharpe ratio: %w", err)
	}
	sortino, err := Sortino(nav, riskFree)
	if err != nil {
		return nil, fmt.Errorf("sortino ratio: %w", err)
	}
	mdd, idx, err := MaxDrawdown(nav)
	if err != nil {
		return nil, fmt.Errorf("maximum drawdown: %w", err)
	}

	return &domain.MetricsSnapshot{
		Sharpe:           Annualize(sharpe, periodsPerYear),
		Sortino:          Annualize(sortino, periodsPerYear),
		MaxDrawdown:      mdd,
		MaxDrawdownIndex: idx,
		MaxDrawdownAt:    nav[idx].Timestamp,
		RiskFreeReturn:   riskFree,
	}, nil
}

// excessReturns subtracts the per-period risk-free return from each return.
func excessReturns(nav []domain.NAVPoint, riskFree decimal.Decimal) ([]decimal.Decimal, error) {
	returns, err := Returns(nav)
	if err != nil {
		return nil, err
	}
	for i := range returns {
		returns[i] = returns[i].Sub(riskFree)
	}
	return returns, nil
}

// computeMean calculates the arithmetic mean.
func computeMean(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	return decimal.Sum(decimal.Zero, values...).Div(decimal.NewFromInt(int64(len(values))))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(values []decimal.Decimal, mean decimal.Decimal) decimal.Decimal {
	n := len(values)
	if n < 2 {
		return decimal.Zero
	}
	sumSq := decimal.Zero
	for _, v := range values {
		diff := v.Sub(mean)
		sumSq = sumSq.Add(diff.Mul(diff))
	}
	return sqrt(sumSq.Div(decimal.NewFromInt(int64(n - 1))))
}

// computeDownsideDeviation calculates sqrt(mean(min(v, 0)^2)).
func computeDownsideDeviation(values []decimal.Decimal) decimal.Decimal {
	sumSq := decimal.Zero
	for _, v := range values {
		if v.IsNegative() {
			sumSq = sumSq.Add(v.Mul(v))
		}
	}
	return sqrt(sumSq.Div(decimal.NewFromInt(int64(len(values)))))
}

// sqrt takes the square root of a non-negative decimal via float64.
func sqrt(v decimal.Decimal) decimal.Decimal {
	if !v.IsPositive() {
		return decimal.Zero
	}
	return decimal.NewFromFloat(math.Sqrt(v.InexactFloat64()))
}
