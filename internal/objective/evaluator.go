// Package objective turns one simulation run into a scalar objective and a
// feasibility verdict.
package objective

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"strategy-tuner/internal/domain"
	"strategy-tuner/internal/metrics"
	"strategy-tuner/internal/simulation"
)

// DefaultMaxDrawdown is the drawdown threshold above which a trial is infeasible.
var DefaultMaxDrawdown = decimal.RequireFromString("0.20")

// Evaluation stages reported in EvaluationError.
const (
	StageSimulate = "simulate"
	StageMetrics  = "metrics"
)

// Evaluator scores a parameter point on a dataset.
type Evaluator interface {
	Evaluate(ctx context.Context, params domain.Parameters, ds *domain.Dataset) (*Evaluation, error)
}

// Simulator is a single-use strategy simulation.
type Simulator interface {
	Run(ctx context.Context, params domain.Parameters, ds *domain.Dataset) (*simulation.Result, error)
}

// EngineFactory builds a fresh Simulator for one evaluation.
type EngineFactory func(capital decimal.Decimal) Simulator

// Evaluation is the outcome of one successful evaluation.
// Objective is the annualized Sharpe ratio. It is computed even when the
// constraint is violated, but callers must not rank infeasible evaluations.
type Evaluation struct {
	Objective           decimal.Decimal
	ConstraintSatisfied bool
	Metrics             *domain.MetricsSnapshot
	NAV                 []domain.NAVPoint
	Inventory           []domain.InventoryPoint
	Fills               int
}

// EvaluationError wraps a simulation or metric failure.
type EvaluationError struct {
	Params domain.Parameters
	Stage  string
	Err    error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluate %s: %s: %v", e.Params, e.Stage, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// IsCancellation reports whether err stems from context cancellation.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Options configures a BacktestEvaluator.
type Options struct {
	Capital        decimal.Decimal
	RiskFreeReturn decimal.Decimal
	PeriodsPerYear int             // defaults to metrics.DefaultPeriodsPerYear
	MaxDrawdown    decimal.Decimal // defaults to DefaultMaxDrawdown
	Engine         simulation.Options
	NewEngine      EngineFactory // defaults to simulation.NewEngine with Engine
}

// BacktestEvaluator runs a fresh simulation per call and scores its NAV.
type BacktestEvaluator struct {
	opts Options
}

// NewBacktestEvaluator creates a BacktestEvaluator.
func NewBacktestEvaluator(opts Options) *BacktestEvaluator {
	if opts.PeriodsPerYear <= 0 {
		opts.PeriodsPerYear = metrics.DefaultPeriodsPerYear
	}
	if opts.MaxDrawdown.IsZero() {
		opts.MaxDrawdown = DefaultMaxDrawdown
	}
	if opts.NewEngine == nil {
		engineOpts := opts.Engine
		opts.NewEngine = func(capital decimal.Decimal) Simulator {
			return simulation.NewEngine(capital, engineOpts)
		}
	}
	return &BacktestEvaluator{opts: opts}
}

// Threshold returns the drawdown constraint threshold.
func (e *BacktestEvaluator) Threshold() decimal.Decimal {
	return e.opts.MaxDrawdown
}

// Evaluate simulates params on ds and computes the metrics snapshot.
func (e *BacktestEvaluator) Evaluate(ctx context.Context, params domain.Parameters, ds *domain.Dataset) (*Evaluation, error) {
	engine := e.opts.NewEngine(e.opts.Capital)

	res, err := engine.Run(ctx, params, ds)
	if err != nil {
		return nil, &EvaluationError{Params: params, Stage: StageSimulate, Err: err}
	}

	snap, err := metrics.Snapshot(res.NAV, e.opts.RiskFreeReturn, e.opts.PeriodsPerYear)
	if err != nil {
		return nil, &EvaluationError{Params: params, Stage: StageMetrics, Err: err}
	}

	return &Evaluation{
		Objective:           snap.Sharpe,
		ConstraintSatisfied: snap.MaxDrawdown.Abs().LessThanOrEqual(e.opts.MaxDrawdown),
		Metrics:             snap,
		NAV:                 res.NAV,
		Inventory:           res.Inventory,
		Fills:               res.Fills,
	}, nil
}

var _ Evaluator = (*BacktestEvaluator)(nil)

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(ctx context.Context, params domain.Parameters, ds *domain.Dataset) (*Evaluation, error)

// Evaluate calls f.
func (f EvaluatorFunc) Evaluate(ctx context.Context, params domain.Parameters, ds *domain.Dataset) (*Evaluation, error) {
	return f(ctx, params, ds)
}
