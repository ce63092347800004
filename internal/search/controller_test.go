package search

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strategy-tuner/internal/dataset"
	"strategy-tuner/internal/domain"
	"strategy-tuner/internal/objective"
	"strategy-tuner/internal/observability"
	"strategy-tuner/internal/simulation"
	"strategy-tuner/internal/storage/memory"
)

func backtestEvaluator() *objective.BacktestEvaluator {
	return objective.NewBacktestEvaluator(objective.Options{
		Capital:        dec("500000"),
		RiskFreeReturn: dec("0.00023"),
		Engine:         simulation.DefaultOptions(),
	})
}

// constEvaluator scores every point as objective = step and always feasible.
func constEvaluator() objective.Evaluator {
	return objective.EvaluatorFunc(func(_ context.Context, p domain.Parameters, _ *domain.Dataset) (*objective.Evaluation, error) {
		return &objective.Evaluation{
			Objective:           p.Step,
			ConstraintSatisfied: true,
			Metrics:             &domain.MetricsSnapshot{Sharpe: p.Step},
		}, nil
	})
}

func newController(t *testing.T, opts Options) *Controller {
	t.Helper()
	if opts.Space == nil {
		opts.Space = referenceSpace(t)
	}
	if opts.Dataset == nil {
		opts.Dataset = dataset.Synthetic(dataset.SyntheticOptions{Bars: 200, Seed: 42})
	}
	if opts.Trials == 0 {
		opts.Trials = 10
	}
	if opts.Seed == 0 {
		opts.Seed = 42
	}
	c, err := NewController(opts)
	require.NoError(t, err)
	return c
}

func TestController_EndToEnd(t *testing.T) {
	ctx := context.Background()
	store := memory.NewTrialStore()
	var finalized []domain.Trial

	c := newController(t, Options{
		Evaluator: backtestEvaluator(),
		Trials:    10,
		Seed:      42,
		Store:     store,
		RunID:     "run-e2e",
		Metrics:   observability.NewMetrics("", prometheus.NewRegistry()),
		Callbacks: []Callback{CallbackFunc(func(_ context.Context, tr domain.Trial) error {
			finalized = append(finalized, tr)
			return nil
		})},
	})

	res, err := c.Run(ctx)
	require.NoError(t, err)
	assert.False(t, res.Cancelled)
	assert.Equal(t, 10, res.Total)
	assert.Equal(t, res.Total, res.Completed+res.Pruned+res.Failed)
	assert.Equal(t, res.Pruned, res.PrunedByConstraint+res.PrunedByPruner)

	space := referenceSpace(t)
	history := c.Ledger().History()
	require.Len(t, history, 10)
	require.Len(t, finalized, 10)
	for i, tr := range history {
		assert.Equal(t, i, tr.Number)
		assert.Equal(t, i, finalized[i].Number, "callbacks fire in finalization order")
		assert.True(t, tr.State.IsTerminal())
		assert.True(t, space.Contains(tr.Params), "trial %d off grid: %s", i, tr.Params)
		switch tr.State {
		case domain.TrialComplete:
			require.NotNil(t, tr.Objective)
			assert.True(t, tr.ConstraintSatisfied)
			assert.True(t, tr.Metrics.MaxDrawdown.LessThanOrEqual(dec("0.20")))
		case domain.TrialPruned:
			assert.Nil(t, tr.Objective)
			if tr.PruneReason == domain.PruneConstraint {
				assert.False(t, tr.ConstraintSatisfied)
			}
		}
	}

	stored, err := store.GetByRun(ctx, "run-e2e")
	require.NoError(t, err)
	assert.Len(t, stored, 10)

	if res.Best != nil {
		for _, tr := range history {
			if tr.State == domain.TrialComplete {
				assert.False(t, tr.Objective.GreaterThan(*res.Best.Objective))
			}
		}
	}
}

func TestController_Deterministic(t *testing.T) {
	run := func() []domain.Trial {
		c := newController(t, Options{Evaluator: backtestEvaluator(), Trials: 15, Seed: 7})
		_, err := c.Run(context.Background())
		require.NoError(t, err)
		return c.Ledger().History()
	}

	a, b := run(), run()
	require.Len(t, b, len(a))
	for i := range a {
		assert.True(t, a[i].Params.Step.Equal(b[i].Params.Step), "trial %d", i)
		assert.True(t, a[i].Params.PriceEncouragement.Equal(b[i].Params.PriceEncouragement), "trial %d", i)
		assert.Equal(t, a[i].State, b[i].State, "trial %d", i)
		if a[i].Objective != nil {
			assert.True(t, a[i].Objective.Equal(*b[i].Objective), "trial %d", i)
		}
	}
}

func TestController_FailureIsolation(t *testing.T) {
	calls := 0
	ev := objective.EvaluatorFunc(func(_ context.Context, p domain.Parameters, _ *domain.Dataset) (*objective.Evaluation, error) {
		calls++
		if calls%2 == 0 {
			return nil, errors.New("simulator crashed")
		}
		return &objective.Evaluation{Objective: p.Step, ConstraintSatisfied: true, Metrics: &domain.MetricsSnapshot{}}, nil
	})

	c := newController(t, Options{Evaluator: ev, Pruner: NopPruner{}, Trials: 6})
	res, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, res.Total)
	assert.Equal(t, 3, res.Failed)
	assert.Equal(t, 3, res.Completed)

	for _, tr := range c.Ledger().History() {
		if tr.State == domain.TrialFailed {
			assert.Equal(t, "simulator crashed", tr.FailureCause)
			assert.Nil(t, tr.Objective)
		}
	}
}

func TestController_RecoversPanics(t *testing.T) {
	ev := objective.EvaluatorFunc(func(context.Context, domain.Parameters, *domain.Dataset) (*objective.Evaluation, error) {
		panic("nil map")
	})

	c := newController(t, Options{Evaluator: ev, Trials: 2})
	res, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Failed)
	assert.Nil(t, res.Best)

	tr, err := c.Ledger().Get(0)
	require.NoError(t, err)
	assert.Equal(t, "panic: nil map", tr.FailureCause)
}

func TestController_ConstraintPruning(t *testing.T) {
	ev := objective.EvaluatorFunc(func(_ context.Context, p domain.Parameters, _ *domain.Dataset) (*objective.Evaluation, error) {
		mdd := dec("0.1")
		if p.Step.GreaterThan(dec("1.0")) {
			mdd = dec("0.35")
		}
		return &objective.Evaluation{
			Objective:           dec("3"),
			ConstraintSatisfied: mdd.LessThanOrEqual(dec("0.20")),
			Metrics:             &domain.MetricsSnapshot{Sharpe: dec("3"), MaxDrawdown: mdd},
		}, nil
	})

	c := newController(t, Options{Evaluator: ev, Pruner: NopPruner{}, Trials: 20})
	res, err := c.Run(context.Background())
	require.NoError(t, err)

	for _, tr := range c.Ledger().History() {
		if tr.Params.Step.GreaterThan(dec("1.0")) {
			assert.Equal(t, domain.TrialPruned, tr.State)
			assert.Equal(t, domain.PruneConstraint, tr.PruneReason)
			assert.Nil(t, tr.Objective)
			require.NotNil(t, tr.Metrics, "metrics of an infeasible trial are kept")
			assert.True(t, tr.Metrics.MaxDrawdown.Equal(dec("0.35")))
		} else {
			assert.Equal(t, domain.TrialComplete, tr.State)
		}
	}
	if res.Best != nil {
		assert.True(t, res.Best.Params.Step.LessThanOrEqual(dec("1.0")))
	}
}

func TestController_AllInfeasible(t *testing.T) {
	ev := objective.EvaluatorFunc(func(context.Context, domain.Parameters, *domain.Dataset) (*objective.Evaluation, error) {
		return &objective.Evaluation{Objective: dec("9"), Metrics: &domain.MetricsSnapshot{MaxDrawdown: dec("0.5")}}, nil
	})

	c := newController(t, Options{Evaluator: ev, Trials: 5})
	res, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Nil(t, res.Best)
	assert.Equal(t, 5, res.PrunedByConstraint)
}

func TestController_MedianPruning(t *testing.T) {
	c := newController(t, Options{
		Evaluator: constEvaluator(),
		Pruner:    MedianPruner{WarmupTrials: 2},
		Trials:    12,
	})
	res, err := c.Run(context.Background())
	require.NoError(t, err)

	history := c.Ledger().History()
	for _, tr := range history[:2] {
		assert.NotEqual(t, domain.TrialPruned, tr.State, "warm-up trial %d", tr.Number)
	}
	for _, tr := range history {
		if tr.State == domain.TrialPruned {
			assert.Equal(t, domain.PrunePruner, tr.PruneReason)
			assert.True(t, tr.ConstraintSatisfied)
			assert.Nil(t, tr.Objective)
		}
	}
	assert.Equal(t, res.Pruned, res.PrunedByPruner)
}

func TestController_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	ev := objective.EvaluatorFunc(func(ctx context.Context, p domain.Parameters, _ *domain.Dataset) (*objective.Evaluation, error) {
		calls++
		if calls == 3 {
			cancel()
			return nil, ctx.Err()
		}
		return &objective.Evaluation{Objective: p.Step, ConstraintSatisfied: true, Metrics: &domain.MetricsSnapshot{}}, nil
	})

	var seen []int
	c := newController(t, Options{
		Evaluator: ev,
		Pruner:    NopPruner{},
		Trials:    10,
		Callbacks: []Callback{CallbackFunc(func(_ context.Context, tr domain.Trial) error {
			seen = append(seen, tr.Number)
			return nil
		})},
	})

	res, err := c.Run(ctx)
	require.NoError(t, err)
	assert.True(t, res.Cancelled)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, []int{0, 1, 2}, seen)

	last, err := c.Ledger().Get(2)
	require.NoError(t, err)
	assert.Equal(t, domain.TrialFailed, last.State)
	assert.Equal(t, domain.FailureCancelled, last.FailureCause)
}

func TestController_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newController(t, Options{Evaluator: constEvaluator()})
	res, err := c.Run(ctx)
	require.NoError(t, err)
	assert.True(t, res.Cancelled)
	assert.Zero(t, res.Total)
}

func TestController_CallbacksReceiveCopies(t *testing.T) {
	var order []string
	first := CallbackFunc(func(_ context.Context, tr domain.Trial) error {
		order = append(order, fmt.Sprintf("a%d", tr.Number))
		if tr.Objective != nil {
			*tr.Objective = dec("-999")
		}
		tr.State = domain.TrialFailed
		return nil
	})
	second := CallbackFunc(func(_ context.Context, tr domain.Trial) error {
		order = append(order, fmt.Sprintf("b%d", tr.Number))
		return nil
	})

	c := newController(t, Options{
		Evaluator: constEvaluator(),
		Pruner:    NopPruner{},
		Trials:    2,
		Callbacks: []Callback{first, second},
	})
	_, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"a0", "b0", "a1", "b1"}, order)
	for _, tr := range c.Ledger().History() {
		assert.Equal(t, domain.TrialComplete, tr.State)
		assert.True(t, tr.Objective.Equal(tr.Params.Step))
	}
}

func TestController_CallbackErrorAborts(t *testing.T) {
	sinkErr := errors.New("sink closed")
	cb := CallbackFunc(func(_ context.Context, tr domain.Trial) error {
		if tr.Number == 1 {
			return sinkErr
		}
		return nil
	})

	c := newController(t, Options{Evaluator: constEvaluator(), Trials: 5, Callbacks: []Callback{cb}})
	res, err := c.Run(context.Background())
	require.ErrorIs(t, err, sinkErr)
	require.NotNil(t, res)
	assert.Equal(t, 2, res.Total)
}

type offGridSampler struct{}

func (offGridSampler) Propose(*Space, []domain.Trial, uint64) (domain.Parameters, error) {
	return domain.Parameters{Step: dec("0.15"), PriceEncouragement: dec("0.5")}, nil
}

func TestController_RejectsOffGridProposals(t *testing.T) {
	c := newController(t, Options{Evaluator: constEvaluator(), Sampler: offGridSampler{}})
	res, err := c.Run(context.Background())
	require.ErrorIs(t, err, ErrProposalOffGrid)
	assert.Zero(t, res.Total)
}

func TestController_LogsTrials(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)

	c := newController(t, Options{Evaluator: constEvaluator(), Trials: 2, Logger: log, RunID: "run-log"})
	_, err := c.Run(context.Background())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"message":"search started"`)
	assert.Contains(t, out, `"message":"trial finalized"`)
	assert.Contains(t, out, `"run_id":"run-log"`)
	assert.Contains(t, out, `"status":"completed"`)
}

func TestNewController_Validation(t *testing.T) {
	space := referenceSpace(t)
	ds := dataset.Flat(10, "100")
	ev := constEvaluator()

	cases := map[string]Options{
		"no space":       {Evaluator: ev, Dataset: ds, Trials: 1},
		"no evaluator":   {Space: space, Dataset: ds, Trials: 1},
		"no dataset":     {Space: space, Evaluator: ev, Trials: 1},
		"zero budget":    {Space: space, Evaluator: ev, Dataset: ds},
		"store no runid": {Space: space, Evaluator: ev, Dataset: ds, Trials: 1, Store: memory.NewTrialStore()},
	}
	for name, opts := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewController(opts)
			assert.ErrorIs(t, err, ErrInvalidOptions)
		})
	}
}

func TestController_UsesClock(t *testing.T) {
	c := newController(t, Options{Evaluator: constEvaluator(), Trials: 1, Clock: fixedClock()})
	_, err := c.Run(context.Background())
	require.NoError(t, err)

	tr, err := c.Ledger().Get(0)
	require.NoError(t, err)
	assert.Equal(t, time.Second, tr.Duration())
}
