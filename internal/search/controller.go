package search

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"strategy-tuner/internal/domain"
	"strategy-tuner/internal/objective"
	"strategy-tuner/internal/observability"
	"strategy-tuner/internal/storage"
)

// Search run statuses reported to metrics.
const (
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusAborted   = "aborted"
)

// Options configures a Controller.
type Options struct {
	Space     *Space
	Sampler   Sampler // defaults to a TPESampler with default options
	Pruner    Pruner  // defaults to MedianPruner{WarmupTrials: DefaultWarmupTrials}
	Evaluator objective.Evaluator
	Dataset   *domain.Dataset

	Trials int
	Seed   uint64

	Callbacks []Callback
	Logger    zerolog.Logger
	Metrics   *observability.Metrics // optional

	Store storage.TrialStore // optional
	RunID string

	Clock func() time.Time
}

// Controller runs the sequential trial loop. It owns the ledger of one run
// and is not reusable.
type Controller struct {
	opts   Options
	ledger *Ledger
	log    zerolog.Logger
}

// NewController validates opts and creates a Controller.
func NewController(opts Options) (*Controller, error) {
	switch {
	case opts.Space == nil:
		return nil, fmt.Errorf("%w: space is required", ErrInvalidOptions)
	case opts.Evaluator == nil:
		return nil, fmt.Errorf("%w: evaluator is required", ErrInvalidOptions)
	case opts.Dataset == nil:
		return nil, fmt.Errorf("%w: dataset is required", ErrInvalidOptions)
	case opts.Trials <= 0:
		return nil, fmt.Errorf("%w: trial budget must be positive, got %d", ErrInvalidOptions, opts.Trials)
	case opts.Store != nil && opts.RunID == "":
		return nil, fmt.Errorf("%w: run id is required with a store", ErrInvalidOptions)
	}
	if opts.Sampler == nil {
		opts.Sampler = NewTPESampler(TPEOptions{StartupTrials: DefaultStartupTrials})
	}
	if opts.Pruner == nil {
		opts.Pruner = MedianPruner{WarmupTrials: DefaultWarmupTrials}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	log := opts.Logger
	if opts.RunID != "" {
		log = log.With().Str("run_id", opts.RunID).Logger()
	}

	return &Controller{
		opts: opts,
		ledger: NewLedger(LedgerOptions{
			Store: opts.Store,
			RunID: opts.RunID,
			Clock: opts.Clock,
		}),
		log: log,
	}, nil
}

// Ledger exposes the trial history of the run.
func (c *Controller) Ledger() *Ledger {
	return c.ledger
}

// Run executes trials until the budget is exhausted or ctx is cancelled.
//
// Cancellation is not an error: the in-flight trial is FAILED with cause
// "cancelled", the loop stops and the result has Cancelled set. A sampler
// defect, a ledger persistence failure or a callback error aborts the run;
// the partial result is returned alongside the error.
func (c *Controller) Run(ctx context.Context) (*domain.SearchResult, error) {
	start := c.opts.Clock()
	c.log.Info().
		Int("trials", c.opts.Trials).
		Uint64("seed", c.opts.Seed).
		Int("grid_points", c.opts.Space.Size()).
		Int("bars", c.opts.Dataset.Len()).
		Msg("search started")

	cancelled, err := c.loop(ctx)

	result := Summarize(c.ledger.History())
	result.Cancelled = cancelled

	status := StatusCompleted
	switch {
	case err != nil:
		status = StatusAborted
	case cancelled:
		status = StatusCancelled
	}
	c.opts.Metrics.RecordSearchRun(status, c.opts.Clock().Sub(start).Seconds())

	ev := c.log.Info()
	if err != nil {
		ev = c.log.Error().Err(err)
	}
	ev.Str("status", status).
		Int("total", result.Total).
		Int("completed", result.Completed).
		Int("pruned", result.Pruned).
		Int("failed", result.Failed).
		Msg("search finished")

	return result, err
}

func (c *Controller) loop(ctx context.Context) (cancelled bool, err error) {
	var best *domain.Trial

	for i := 0; i < c.opts.Trials; i++ {
		if ctx.Err() != nil {
			return true, nil
		}

		history := c.ledger.History()
		params, err := c.opts.Sampler.Propose(c.opts.Space, history, c.opts.Seed)
		if err != nil {
			return false, fmt.Errorf("propose trial %d: %w", len(history), err)
		}
		if !c.opts.Space.Contains(params) {
			return false, fmt.Errorf("%w: trial %d: %s", ErrProposalOffGrid, len(history), params)
		}

		trial := c.ledger.Create(params)
		c.opts.Metrics.RecordTrialStarted()

		outcome := c.evaluate(ctx, trial, history)
		final, err := c.ledger.Finalize(ctx, trial.Number, outcome)
		if err != nil {
			return false, err
		}
		c.opts.Metrics.RecordTrial(string(final.State), string(final.PruneReason), final.Duration().Seconds())
		c.logTrial(final)

		if final.State == domain.TrialComplete && (best == nil || final.Objective.GreaterThan(*best.Objective)) {
			best = &final
			c.opts.Metrics.SetBestObjective(final.Objective.InexactFloat64())
		}

		for _, cb := range c.opts.Callbacks {
			if err := cb.OnTrialFinalized(ctx, final); err != nil {
				return false, fmt.Errorf("trial %d callback: %w", final.Number, err)
			}
		}

		if final.State == domain.TrialFailed && final.FailureCause == domain.FailureCancelled {
			return true, nil
		}
	}
	return false, nil
}

// evaluate runs the objective and folds the result into a terminal outcome.
// Evaluation errors and panics become FAILED outcomes.
func (c *Controller) evaluate(ctx context.Context, trial domain.Trial, history []domain.Trial) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{State: domain.TrialFailed, FailureCause: fmt.Sprintf("panic: %v", r)}
		}
	}()

	ev, err := c.opts.Evaluator.Evaluate(ctx, trial.Params, c.opts.Dataset)
	if err != nil {
		if objective.IsCancellation(err) || ctx.Err() != nil {
			return Outcome{State: domain.TrialFailed, FailureCause: domain.FailureCancelled}
		}
		return Outcome{State: domain.TrialFailed, FailureCause: err.Error()}
	}

	if !ev.ConstraintSatisfied {
		return Outcome{
			State:       domain.TrialPruned,
			Metrics:     ev.Metrics,
			PruneReason: domain.PruneConstraint,
		}
	}

	obj := ev.Objective
	candidate := trial
	candidate.Objective = &obj
	candidate.ConstraintSatisfied = true
	candidate.Metrics = ev.Metrics
	if c.opts.Pruner.ShouldPrune(candidate, history) {
		return Outcome{
			State:               domain.TrialPruned,
			ConstraintSatisfied: true,
			Metrics:             ev.Metrics,
			PruneReason:         domain.PrunePruner,
		}
	}

	return Outcome{
		State:               domain.TrialComplete,
		Objective:           &obj,
		ConstraintSatisfied: true,
		Metrics:             ev.Metrics,
	}
}

func (c *Controller) logTrial(t domain.Trial) {
	var ev *zerolog.Event
	if t.State == domain.TrialFailed {
		ev = c.log.Warn().Str("cause", t.FailureCause)
	} else {
		ev = c.log.Debug()
	}
	ev = ev.Int("trial", t.Number).
		Str("state", string(t.State)).
		Str("step", t.Params.Step.String()).
		Str("price_encouragement", t.Params.PriceEncouragement.String()).
		Dur("elapsed", t.Duration())
	if t.PruneReason != domain.PruneNone {
		ev = ev.Str("reason", string(t.PruneReason))
	}
	if t.Metrics != nil {
		ev = ev.Str("sharpe", t.Metrics.Sharpe.StringFixed(6)).
			Str("mdd", t.Metrics.MaxDrawdown.StringFixed(6))
	}
	ev.Msg("trial finalized")
}
