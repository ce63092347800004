// Package orchestrator coordinates one optimization run:
// load data → register run → search → verify and report.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"strategy-tuner/internal/config"
	"strategy-tuner/internal/dataset"
	"strategy-tuner/internal/domain"
	"strategy-tuner/internal/idhash"
	"strategy-tuner/internal/observability"
	"strategy-tuner/internal/reporting"
	"strategy-tuner/internal/search"
	"strategy-tuner/internal/storage"
	"strategy-tuner/internal/verification"
)

// Options for creating Orchestrator.
type Options struct {
	Config *config.Config
	Loader dataset.Loader

	// Optional persistence; both or neither.
	RunStore   storage.RunStore
	TrialStore storage.TrialStore

	Callbacks []search.Callback
	Logger    zerolog.Logger
	Metrics   *observability.Metrics

	RunID string           // generated when empty
	Clock func() time.Time // defaults to time.Now
}

// Orchestrator runs the optimization pipeline.
type Orchestrator struct {
	opts Options
	log  zerolog.Logger
}

// RunResult contains results from orchestrator execution.
type RunResult struct {
	RunID   string
	Dataset *domain.Dataset
	Search  *domain.SearchResult
	Report  *reporting.BestTrialReport
}

// New creates a new Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Config == nil {
		return nil, errors.New("orchestrator: config is required")
	}
	if opts.Loader == nil {
		return nil, errors.New("orchestrator: loader is required")
	}
	if (opts.RunStore == nil) != (opts.TrialStore == nil) {
		return nil, errors.New("orchestrator: run store and trial store go together")
	}
	if opts.RunID == "" {
		opts.RunID = idhash.NewRunID()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Orchestrator{
		opts: opts,
		log:  opts.Logger.With().Str("run_id", opts.RunID).Logger(),
	}, nil
}

// Run executes the pipeline.
// Phases:
//  1. Load the in-sample split
//  2. Register the run (when persistence is configured)
//  3. Run the search
//  4. Replay the best trial and build the report
//
// A search aborted by a callback or persistence error returns the partial
// result with the error. A run without a feasible trial is not an error: the
// report has no best trial.
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	cfg := o.opts.Config
	result := &RunResult{RunID: o.opts.RunID}

	// Phase 1: Load data
	o.log.Info().Str("phase", "load").Str("symbol", cfg.Data.Symbol).Msg("loading in-sample data")
	ds, err := o.opts.Loader.LoadAndSplit(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("phase 1 (load data) failed: %w", err)
	}
	result.Dataset = ds
	o.log.Info().Int("bars", ds.Len()).Time("from", ds.First()).Time("to", ds.Last()).Msg("in-sample data loaded")

	space, err := BuildSpace(cfg)
	if err != nil {
		return nil, err
	}
	sampler, err := BuildSampler(cfg)
	if err != nil {
		return nil, err
	}
	evaluator := BuildEvaluator(cfg)

	// Phase 2: Register run
	if o.opts.RunStore != nil {
		run := &domain.Run{
			RunID:      o.opts.RunID,
			ConfigHash: ConfigHash(cfg, ds),
			Symbol:     cfg.Data.Symbol,
			Seed:       cfg.Search.Seed,
			Trials:     cfg.Search.Trials,
			StartedAt:  o.opts.Clock().UTC(),
		}
		if err := o.opts.RunStore.InsertRun(ctx, run); err != nil {
			return nil, fmt.Errorf("phase 2 (register run) failed: %w", err)
		}
		o.log.Info().Str("phase", "register").Str("config_hash", run.ConfigHash).Msg("run registered")
	}

	// Phase 3: Search
	controller, err := search.NewController(search.Options{
		Space:     space,
		Sampler:   sampler,
		Pruner:    search.MedianPruner{WarmupTrials: cfg.Search.WarmupTrials},
		Evaluator: evaluator,
		Dataset:   ds,
		Trials:    cfg.Search.Trials,
		Seed:      cfg.Search.Seed,
		Callbacks: o.opts.Callbacks,
		Logger:    o.opts.Logger,
		Metrics:   o.opts.Metrics,
		Store:     o.opts.TrialStore,
		RunID:     o.opts.RunID,
		Clock:     o.opts.Clock,
	})
	if err != nil {
		return nil, err
	}
	searchResult, err := controller.Run(ctx)
	result.Search = searchResult
	if err != nil {
		return result, fmt.Errorf("phase 3 (search) failed: %w", err)
	}

	// Phase 4: Report
	reporter := reporting.NewReporter(reporting.ReporterOptions{
		Verifier: verification.NewReplayVerifier(verification.ReplayVerifierOptions{
			Evaluator: evaluator,
			Metrics:   o.opts.Metrics,
		}),
		Threshold: cfg.Backtest.MaxDrawdown,
		Clock:     o.opts.Clock,
	})
	// The replay must finish even when the search itself was cancelled.
	report, err := reporter.Report(context.WithoutCancel(ctx), searchResult, ds)
	switch {
	case errors.Is(err, reporting.ErrNoFeasibleTrial):
		o.log.Warn().Int("trials", searchResult.Total).Msg("no trial satisfied the drawdown constraint")
	case err != nil:
		return result, fmt.Errorf("phase 4 (report) failed: %w", err)
	}
	result.Report = report
	return result, nil
}
