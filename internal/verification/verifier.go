// Package verification replays stored trials and checks that the objective
// evaluator reproduces their metric snapshots.
package verification

import (
	"context"

	"github.com/shopspring/decimal"

	"strategy-tuner/internal/domain"
)

// DefaultTolerance is the absolute tolerance for decimal metric comparisons.
var DefaultTolerance = decimal.New(1, -9)

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Field    string // field name
	Expected any    // stored value
	Actual   any    // replayed value
}

// VerificationResult contains the result of verifying a single trial.
type VerificationResult struct {
	TrialNumber       int
	Params            domain.Parameters
	Match             bool              // true if all fields match
	Divergences       []FieldDivergence // list of divergent fields
	StoredObjective   decimal.Decimal   // Sharpe from the stored snapshot
	ReplayedObjective decimal.Decimal   // Sharpe from the replay
	Replayed          *domain.MetricsSnapshot
}

// VerificationReport contains results for batch verification.
type VerificationReport struct {
	TotalTrials     int // trials with a snapshot to verify
	MatchedTrials   int
	DivergentTrials int
	Results         []VerificationResult
}

// Verifier replays trials.
type Verifier interface {
	// VerifyTrial re-evaluates trial.Params on ds and compares the result
	// with the stored snapshot.
	VerifyTrial(ctx context.Context, trial domain.Trial, ds *domain.Dataset) (*VerificationResult, error)

	// VerifyRun verifies every stored trial of a run that carries a snapshot.
	VerifyRun(ctx context.Context, runID string, ds *domain.Dataset) (*VerificationReport, error)
}

// CompareSnapshots compares two metric snapshots and returns divergences.
// Ratios and drawdown are compared within tol; the trough position must match exactly.
func CompareSnapshots(stored, replayed *domain.MetricsSnapshot, tol decimal.Decimal) []FieldDivergence {
	var divergences []FieldDivergence

	if !decimalEquals(stored.Sharpe, replayed.Sharpe, tol) {
		divergences = append(divergences, FieldDivergence{
			Field:    "Sharpe",
			Expected: stored.Sharpe,
			Actual:   replayed.Sharpe,
		})
	}

	if !decimalEquals(stored.Sortino, replayed.Sortino, tol) {
		divergences = append(divergences, FieldDivergence{
			Field:    "Sortino",
			Expected: stored.Sortino,
			Actual:   replayed.Sortino,
		})
	}

	if !decimalEquals(stored.MaxDrawdown, replayed.MaxDrawdown, tol) {
		divergences = append(divergences, FieldDivergence{
			Field:    "MaxDrawdown",
			Expected: stored.MaxDrawdown,
			Actual:   replayed.MaxDrawdown,
		})
	}

	if stored.MaxDrawdownIndex != replayed.MaxDrawdownIndex {
		divergences = append(divergences, FieldDivergence{
			Field:    "MaxDrawdownIndex",
			Expected: stored.MaxDrawdownIndex,
			Actual:   replayed.MaxDrawdownIndex,
		})
	}

	if !stored.MaxDrawdownAt.Equal(replayed.MaxDrawdownAt) {
		divergences = append(divergences, FieldDivergence{
			Field:    "MaxDrawdownAt",
			Expected: stored.MaxDrawdownAt,
			Actual:   replayed.MaxDrawdownAt,
		})
	}

	return divergences
}

// decimalEquals compares a and b within tol.
func decimalEquals(a, b, tol decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tol)
}
