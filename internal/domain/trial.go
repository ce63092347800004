package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TrialState is the lifecycle state of a trial.
type TrialState string

// Trial states.
const (
	TrialRunning  TrialState = "RUNNING"
	TrialComplete TrialState = "COMPLETE"
	TrialPruned   TrialState = "PRUNED"
	TrialFailed   TrialState = "FAILED"
)

// IsTerminal reports whether the state can no longer change.
func (s TrialState) IsTerminal() bool {
	return s == TrialComplete || s == TrialPruned || s == TrialFailed
}

// PruneReason tells apart the two causes of a PRUNED trial.
type PruneReason string

// Prune reasons.
const (
	PruneNone       PruneReason = ""
	PruneConstraint PruneReason = "CONSTRAINT" // drawdown above threshold
	PrunePruner     PruneReason = "PRUNER"     // early-stopped by the pruner
)

// FailureCancelled is the failure cause of a trial interrupted by cancellation.
const FailureCancelled = "cancelled"

// Trial is one parameters -> objective evaluation of the search.
type Trial struct {
	Number int        // 0-based creation order, never reused
	Params Parameters // proposed parameter point
	State  TrialState

	Objective           *decimal.Decimal // annualized Sharpe, set only when COMPLETE
	ConstraintSatisfied bool
	Metrics             *MetricsSnapshot // nil when evaluation failed
	PruneReason         PruneReason
	FailureCause        string

	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns the trial wall-clock duration.
func (t Trial) Duration() time.Duration {
	if t.FinishedAt.IsZero() {
		return 0
	}
	return t.FinishedAt.Sub(t.StartedAt)
}

// Clone returns a copy that shares no pointers with t.
func (t Trial) Clone() Trial {
	if t.Objective != nil {
		obj := *t.Objective
		t.Objective = &obj
	}
	if t.Metrics != nil {
		m := *t.Metrics
		t.Metrics = &m
	}
	return t
}

// SearchResult summarizes a finished search run.
type SearchResult struct {
	Best *Trial // best COMPLETE trial, nil if none

	Total              int
	Completed          int
	Pruned             int
	PrunedByConstraint int
	PrunedByPruner     int
	Failed             int

	Cancelled bool // loop stopped before the trial budget was exhausted
	Trials    []Trial
}

// Run describes one search run persisted next to its trials.
type Run struct {
	RunID      string
	ConfigHash string
	Symbol     string
	Seed       uint64
	Trials     int
	StartedAt  time.Time
}
