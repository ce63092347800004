package verification

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"strategy-tuner/internal/domain"
	"strategy-tuner/internal/objective"
	"strategy-tuner/internal/observability"
	"strategy-tuner/internal/storage"
)

var (
	// ErrNonDeterministic is returned when a replay does not reproduce the
	// stored snapshot. It indicates a defect in the evaluator, not bad input.
	ErrNonDeterministic = errors.New("non-deterministic evaluation")

	// ErrNoSnapshot is returned when a trial has no stored metrics to compare.
	ErrNoSnapshot = errors.New("trial has no metrics snapshot")

	// ErrNoStore is returned by VerifyRun when the verifier has no trial store.
	ErrNoStore = errors.New("no trial store configured")
)

// ReplayVerifierOptions contains configuration for creating a ReplayVerifier.
type ReplayVerifierOptions struct {
	Evaluator objective.Evaluator
	Tolerance decimal.Decimal        // defaults to DefaultTolerance
	Store     storage.TrialStore     // required by VerifyRun
	Metrics   *observability.Metrics // optional
}

// ReplayVerifier implements Verifier by re-running the objective evaluator.
type ReplayVerifier struct {
	evaluator objective.Evaluator
	tolerance decimal.Decimal
	store     storage.TrialStore
	metrics   *observability.Metrics
}

// NewReplayVerifier creates a new ReplayVerifier.
func NewReplayVerifier(opts ReplayVerifierOptions) *ReplayVerifier {
	if opts.Tolerance.IsZero() {
		opts.Tolerance = DefaultTolerance
	}
	return &ReplayVerifier{
		evaluator: opts.Evaluator,
		tolerance: opts.Tolerance,
		store:     opts.Store,
		metrics:   opts.Metrics,
	}
}

// VerifyTrial replays one trial. When the replay diverges the result is
// returned together with an error wrapping ErrNonDeterministic.
func (v *ReplayVerifier) VerifyTrial(ctx context.Context, trial domain.Trial, ds *domain.Dataset) (*VerificationResult, error) {
	if trial.Metrics == nil {
		return nil, fmt.Errorf("trial %d: %w", trial.Number, ErrNoSnapshot)
	}

	ev, err := v.evaluator.Evaluate(ctx, trial.Params, ds)
	if err != nil {
		return nil, fmt.Errorf("replay trial %d: %w", trial.Number, err)
	}

	divergences := CompareSnapshots(trial.Metrics, ev.Metrics, v.tolerance)
	if trial.Objective != nil && !decimalEquals(*trial.Objective, ev.Objective, v.tolerance) {
		divergences = append(divergences, FieldDivergence{
			Field:    "Objective",
			Expected: *trial.Objective,
			Actual:   ev.Objective,
		})
	}
	if trial.ConstraintSatisfied != ev.ConstraintSatisfied {
		divergences = append(divergences, FieldDivergence{
			Field:    "ConstraintSatisfied",
			Expected: trial.ConstraintSatisfied,
			Actual:   ev.ConstraintSatisfied,
		})
	}

	result := &VerificationResult{
		TrialNumber:       trial.Number,
		Params:            trial.Params,
		Match:             len(divergences) == 0,
		Divergences:       divergences,
		StoredObjective:   trial.Metrics.Sharpe,
		ReplayedObjective: ev.Metrics.Sharpe,
		Replayed:          ev.Metrics,
	}
	if !result.Match {
		v.metrics.RecordReplayDivergence()
		return result, fmt.Errorf("%w: trial %d (%s): %d divergent fields, first %s",
			ErrNonDeterministic, trial.Number, trial.Params, len(divergences), divergences[0].Field)
	}
	return result, nil
}

// VerifyRun verifies all stored trials of runID that carry a snapshot.
// Replay errors are recorded as divergences; the report is returned with an
// error wrapping ErrNonDeterministic if any trial diverged.
func (v *ReplayVerifier) VerifyRun(ctx context.Context, runID string, ds *domain.Dataset) (*VerificationReport, error) {
	if v.store == nil {
		return nil, ErrNoStore
	}
	trials, err := v.store.GetByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load trials of run %s: %w", runID, err)
	}

	report := &VerificationReport{}
	for _, t := range trials {
		if t.Metrics == nil {
			continue
		}
		report.TotalTrials++

		result, err := v.VerifyTrial(ctx, *t, ds)
		if result == nil {
			report.Results = append(report.Results, VerificationResult{
				TrialNumber:     t.Number,
				Params:          t.Params,
				StoredObjective: t.Metrics.Sharpe,
				Divergences: []FieldDivergence{
					{Field: "Error", Expected: nil, Actual: err.Error()},
				},
			})
			report.DivergentTrials++
			continue
		}

		report.Results = append(report.Results, *result)
		if result.Match {
			report.MatchedTrials++
		} else {
			report.DivergentTrials++
		}
	}

	if report.DivergentTrials > 0 {
		return report, fmt.Errorf("%w: %d of %d trials of run %s",
			ErrNonDeterministic, report.DivergentTrials, report.TotalTrials, runID)
	}
	return report, nil
}

var _ Verifier = (*ReplayVerifier)(nil)
