package orchestrator

import (
	"fmt"

	"strategy-tuner/internal/config"
	"strategy-tuner/internal/domain"
	"strategy-tuner/internal/idhash"
	"strategy-tuner/internal/objective"
	"strategy-tuner/internal/search"
	"strategy-tuner/internal/simulation"
)

// BuildSpace returns the quantized search space of the config.
func BuildSpace(cfg *config.Config) (*search.Space, error) {
	p := cfg.Search.Parameters
	space, err := search.NewSpace(
		dimension(domain.ParamStep, p.Step),
		dimension(domain.ParamPriceEncouragement, p.PriceEncouragement),
	)
	if err != nil {
		return nil, &config.ConfigError{Field: "search.parameters", Msg: err.Error()}
	}
	return space, nil
}

func dimension(name string, b config.Bound) search.Dimension {
	return search.Dimension{Name: name, Low: b.Low, High: b.High, Step: b.Step}
}

// BuildSampler returns the configured proposal strategy.
func BuildSampler(cfg *config.Config) (search.Sampler, error) {
	switch cfg.Search.Sampler {
	case config.SamplerTPE:
		return search.NewTPESampler(search.TPEOptions{
			StartupTrials: cfg.Search.StartupTrials,
			EICandidates:  cfg.Search.EICandidates,
		}), nil
	case config.SamplerRandom:
		return search.RandomSampler{}, nil
	default:
		return nil, &config.ConfigError{Field: "search.sampler", Msg: fmt.Sprintf("unknown sampler %q", cfg.Search.Sampler)}
	}
}

// BuildEvaluator returns the backtest objective described by the config.
func BuildEvaluator(cfg *config.Config) *objective.BacktestEvaluator {
	b := cfg.Backtest
	return objective.NewBacktestEvaluator(objective.Options{
		Capital:        b.Capital,
		RiskFreeReturn: b.RiskFreeReturn,
		PeriodsPerYear: b.PeriodsPerYear,
		MaxDrawdown:    b.MaxDrawdown,
		Engine: simulation.Options{
			Multiplier:     b.Multiplier,
			FeePerContract: b.FeePerContract,
			MaxInventory:   b.MaxInventory,
		},
	})
}

// ConfigHash fingerprints the settings that determine the trial sequence.
func ConfigHash(cfg *config.Config, ds *domain.Dataset) string {
	p := cfg.Search.Parameters
	return idhash.ComputeConfigHash(idhash.ConfigFields{
		Symbol:      cfg.Data.Symbol,
		Bars:        ds.Len(),
		Seed:        cfg.Search.Seed,
		Trials:      cfg.Search.Trials,
		Sampler:     cfg.Search.Sampler,
		MaxDrawdown: cfg.Backtest.MaxDrawdown,
		Bounds: []idhash.Bound{
			{Name: domain.ParamStep, Low: p.Step.Low, High: p.Step.High, Step: p.Step.Step},
			{Name: domain.ParamPriceEncouragement, Low: p.PriceEncouragement.Low, High: p.PriceEncouragement.High, Step: p.PriceEncouragement.Step},
		},
	})
}
