package reporting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"strategy-tuner/internal/domain"
	"strategy-tuner/internal/metrics"
	"strategy-tuner/internal/objective"
	"strategy-tuner/internal/verification"
)

// ErrNoFeasibleTrial is returned when a run has no COMPLETE trial.
var ErrNoFeasibleTrial = errors.New("no feasible trial")

// ReporterOptions configures a Reporter.
type ReporterOptions struct {
	Verifier  verification.Verifier
	Threshold decimal.Decimal // defaults to objective.DefaultMaxDrawdown
	Clock     func() time.Time
}

// Reporter builds the best-trial report of a finished search.
type Reporter struct {
	verifier  verification.Verifier
	threshold decimal.Decimal
	now       func() time.Time // Injectable clock for deterministic output
}

// NewReporter creates a Reporter.
func NewReporter(opts ReporterOptions) *Reporter {
	if opts.Threshold.IsZero() {
		opts.Threshold = objective.DefaultMaxDrawdown
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}
	return &Reporter{
		verifier:  opts.Verifier,
		threshold: opts.Threshold,
		now:       opts.Clock,
	}
}

// Report replays the best trial of result on ds and assembles the report.
//
// Without a COMPLETE trial the statistics-only report is returned together
// with ErrNoFeasibleTrial. A replay that does not reproduce the stored
// snapshot fails with an error wrapping verification.ErrNonDeterministic.
func (r *Reporter) Report(ctx context.Context, result *domain.SearchResult, ds *domain.Dataset) (*BestTrialReport, error) {
	report := &BestTrialReport{
		GeneratedAt: r.now(),
		Threshold:   r.threshold,
		Counts:      countTrials(result),
		Objectives:  metrics.Summarize(completeObjectives(result.Trials)),
		Cancelled:   result.Cancelled,
		Dataset:     summarizeDataset(ds),
	}

	if result.Best == nil {
		return report, ErrNoFeasibleTrial
	}
	best := result.Best.Clone()
	report.Best = &best

	if r.verifier == nil {
		report.Replayed = best.Metrics
		return report, nil
	}
	vr, err := r.verifier.VerifyTrial(ctx, best, ds)
	if err != nil {
		return nil, fmt.Errorf("verify best trial %d: %w", best.Number, err)
	}
	report.Replayed = vr.Replayed
	return report, nil
}

func completeObjectives(trials []domain.Trial) []float64 {
	var out []float64
	for _, t := range trials {
		if t.State == domain.TrialComplete && t.Objective != nil {
			out = append(out, t.Objective.InexactFloat64())
		}
	}
	return out
}
