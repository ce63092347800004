package reporting

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"strategy-tuner/internal/domain"
	"strategy-tuner/internal/objective"
	"strategy-tuner/internal/observability"
)

// EvaluationRunnerOptions configures an EvaluationRunner.
type EvaluationRunnerOptions struct {
	Evaluator objective.Evaluator
	Plotter   Plotter                // optional
	Threshold decimal.Decimal        // defaults to objective.DefaultMaxDrawdown
	Logger    zerolog.Logger
	Metrics   *observability.Metrics // optional
}

// EvaluationRunner evaluates one fixed parameter point, typically on the
// held-out split, and emits its trajectories through a Plotter.
type EvaluationRunner struct {
	opts EvaluationRunnerOptions
}

// NewEvaluationRunner creates an EvaluationRunner.
func NewEvaluationRunner(opts EvaluationRunnerOptions) *EvaluationRunner {
	if opts.Threshold.IsZero() {
		opts.Threshold = objective.DefaultMaxDrawdown
	}
	return &EvaluationRunner{opts: opts}
}

// Run evaluates params on ds. Evaluation errors are returned unchanged so the
// caller can tell engine defects from cancellation.
func (r *EvaluationRunner) Run(ctx context.Context, params domain.Parameters, ds *domain.Dataset) (*EvaluationReport, error) {
	ev, err := r.opts.Evaluator.Evaluate(ctx, params, ds)
	if err != nil {
		r.opts.Metrics.RecordEvaluation("error")
		return nil, err
	}
	status := "feasible"
	if !ev.ConstraintSatisfied {
		status = "infeasible"
	}
	r.opts.Metrics.RecordEvaluation(status)

	report := &EvaluationReport{
		Params:    params,
		Metrics:   ev.Metrics,
		Feasible:  ev.ConstraintSatisfied,
		Threshold: r.opts.Threshold,
		Fills:     ev.Fills,
		Dataset:   summarizeDataset(ds),
	}
	if n := len(ev.NAV); n > 0 {
		report.FinalNAV = ev.NAV[n-1].NAV
	}

	r.opts.Logger.Info().
		Str("params", params.String()).
		Str("sharpe", ev.Metrics.Sharpe.StringFixed(6)).
		Str("sortino", ev.Metrics.Sortino.StringFixed(6)).
		Str("mdd", ev.Metrics.MaxDrawdown.StringFixed(6)).
		Int("fills", ev.Fills).
		Msg("evaluation finished")

	if r.opts.Plotter == nil {
		return report, nil
	}
	plots := []func() (string, error){
		func() (string, error) { return r.opts.Plotter.PlotNAV(ev.NAV) },
		func() (string, error) { return r.opts.Plotter.PlotDrawdown(ev.NAV) },
		func() (string, error) { return r.opts.Plotter.PlotInventory(ev.Inventory) },
	}
	for _, plot := range plots {
		path, err := plot()
		if err != nil {
			return report, fmt.Errorf("plot: %w", err)
		}
		report.Artifacts = append(report.Artifacts, path)
	}
	return report, nil
}
