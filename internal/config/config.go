// Package config loads the static tuner configuration.
//
// Configuration is read once at process start from a YAML file layered over
// Default(), then overlaid with environment variables (optionally from a
// .env file). Nothing mutates it afterwards.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"strategy-tuner/internal/dataset"
	"strategy-tuner/internal/domain"
)

// Environment variables read by LoadEnv.
const (
	EnvPostgresDSN   = "TUNER_POSTGRES_DSN"
	EnvClickhouseDSN = "TUNER_CLICKHOUSE_DSN"
	EnvLogLevel      = "TUNER_LOG_LEVEL"
)

// Sampler names accepted in search.sampler.
const (
	SamplerTPE    = "tpe"
	SamplerRandom = "random"
)

// splitDateLayout is the layout of data.split_at.
const splitDateLayout = "2006-01-02"

// Config is the root configuration object.
type Config struct {
	Search     SearchConfig     `yaml:"search"`
	Backtest   BacktestConfig   `yaml:"backtest"`
	Data       DataConfig       `yaml:"data"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	Output     OutputConfig     `yaml:"output"`
	Log        LogConfig        `yaml:"log"`

	// Storage is populated from the environment only.
	Storage StorageConfig `yaml:"-"`
}

// Bound is a quantized closed interval [Low, High] with grid Step.
type Bound struct {
	Low  decimal.Decimal `yaml:"low"`
	High decimal.Decimal `yaml:"high"`
	Step decimal.Decimal `yaml:"step"`
}

// ParameterBounds holds the search bounds of both strategy parameters.
type ParameterBounds struct {
	Step               Bound `yaml:"step"`
	PriceEncouragement Bound `yaml:"priceEncouragement"`
}

// SearchConfig configures the search loop.
type SearchConfig struct {
	Trials        int             `yaml:"trials"`
	Seed          uint64          `yaml:"seed"`
	Sampler       string          `yaml:"sampler"`
	StartupTrials int             `yaml:"startup_trials"`
	EICandidates  int             `yaml:"ei_candidates"`
	WarmupTrials  int             `yaml:"warmup_trials"`
	Parameters    ParameterBounds `yaml:"parameters"`
}

// BacktestConfig configures the simulation and the objective.
type BacktestConfig struct {
	Capital        decimal.Decimal `yaml:"capital"`
	RiskFreeReturn decimal.Decimal `yaml:"risk_free_return"`
	PeriodsPerYear int             `yaml:"periods_per_year"`
	MaxDrawdown    decimal.Decimal `yaml:"max_drawdown"`
	Multiplier     decimal.Decimal `yaml:"multiplier"`
	FeePerContract decimal.Decimal `yaml:"fee_per_contract"`
	MaxInventory   int64           `yaml:"max_inventory"`
}

// DataConfig locates the market data and describes the in-sample/held-out split.
type DataConfig struct {
	CSV           string  `yaml:"csv"`
	Symbol        string  `yaml:"symbol"`
	InSampleRatio float64 `yaml:"in_sample_ratio"`
	SplitAt       string  `yaml:"split_at"`
}

// EvaluationConfig holds the fixed parameter set of a held-out evaluation.
// Nil fields are unset.
type EvaluationConfig struct {
	Step               *decimal.Decimal `yaml:"step"`
	PriceEncouragement *decimal.Decimal `yaml:"priceEncouragement"`
}

// OutputConfig locates result artifacts.
type OutputConfig struct {
	Dir      string `yaml:"dir"`
	TrialLog string `yaml:"trial_log"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// StorageConfig holds optional persistence DSNs.
type StorageConfig struct {
	PostgresDSN   string
	ClickhouseDSN string
}

// ConfigError reports a malformed or missing configuration value.
// It is fatal at startup.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Msg)
}

func fieldErr(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// Default returns the reference configuration.
func Default() *Config {
	return &Config{
		Search: SearchConfig{
			Trials:        100,
			Seed:          42,
			Sampler:       SamplerTPE,
			StartupTrials: 10,
			EICandidates:  24,
			WarmupTrials:  5,
			Parameters: ParameterBounds{
				Step: Bound{
					Low:  decimal.RequireFromString("0.1"),
					High: decimal.RequireFromString("2.0"),
					Step: decimal.RequireFromString("0.1"),
				},
				PriceEncouragement: Bound{
					Low:  decimal.Zero,
					High: decimal.RequireFromString("1.0"),
					Step: decimal.RequireFromString("0.01"),
				},
			},
		},
		Backtest: BacktestConfig{
			Capital:        decimal.RequireFromString("5e5"),
			RiskFreeReturn: decimal.RequireFromString("0.00023"),
			PeriodsPerYear: 250,
			MaxDrawdown:    decimal.RequireFromString("0.20"),
			Multiplier:     decimal.NewFromInt(100),
			FeePerContract: decimal.NewFromInt(20),
			MaxInventory:   3,
		},
		Data: DataConfig{
			Symbol:        "VN30F1M",
			InSampleRatio: dataset.DefaultInSampleRatio,
		},
		Output: OutputConfig{
			Dir:      "result/optimization",
			TrialLog: "optimization.log.csv",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path over Default() and validates the result.
// An empty path yields the validated defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML over Default() and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(data); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return &ConfigError{Field: "yaml", Msg: err.Error()}
	}
	return nil
}

// LoadEnv overlays environment variables, loading the given .env files first.
// Missing .env files are ignored; variables already set in the process win.
func (c *Config) LoadEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load env file %s: %w", f, err)
		}
	}

	if v := os.Getenv(EnvPostgresDSN); v != "" {
		c.Storage.PostgresDSN = v
	}
	if v := os.Getenv(EnvClickhouseDSN); v != "" {
		c.Storage.ClickhouseDSN = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	return nil
}

// Validate checks bounds, budgets and required keys.
func (c *Config) Validate() error {
	if err := validateBound("search.parameters.step", c.Search.Parameters.Step); err != nil {
		return err
	}
	if err := validateBound("search.parameters.priceEncouragement", c.Search.Parameters.PriceEncouragement); err != nil {
		return err
	}
	if c.Search.Parameters.Step.Low.IsNegative() {
		return fieldErr("search.parameters.step.low", "must be non-negative, got %s", c.Search.Parameters.Step.Low)
	}

	s := c.Search
	switch {
	case s.Trials <= 0:
		return fieldErr("search.trials", "must be positive, got %d", s.Trials)
	case s.Sampler != SamplerTPE && s.Sampler != SamplerRandom:
		return fieldErr("search.sampler", "must be %q or %q, got %q", SamplerTPE, SamplerRandom, s.Sampler)
	case s.StartupTrials < 0:
		return fieldErr("search.startup_trials", "must be non-negative, got %d", s.StartupTrials)
	case s.EICandidates <= 0:
		return fieldErr("search.ei_candidates", "must be positive, got %d", s.EICandidates)
	case s.WarmupTrials < 0:
		return fieldErr("search.warmup_trials", "must be non-negative, got %d", s.WarmupTrials)
	}

	b := c.Backtest
	switch {
	case !b.Capital.IsPositive():
		return fieldErr("backtest.capital", "must be positive, got %s", b.Capital)
	case b.PeriodsPerYear <= 0:
		return fieldErr("backtest.periods_per_year", "must be positive, got %d", b.PeriodsPerYear)
	case !b.MaxDrawdown.IsPositive():
		return fieldErr("backtest.max_drawdown", "must be positive, got %s", b.MaxDrawdown)
	case !b.Multiplier.IsPositive():
		return fieldErr("backtest.multiplier", "must be positive, got %s", b.Multiplier)
	case b.FeePerContract.IsNegative():
		return fieldErr("backtest.fee_per_contract", "must be non-negative, got %s", b.FeePerContract)
	case b.MaxInventory <= 0:
		return fieldErr("backtest.max_inventory", "must be positive, got %d", b.MaxInventory)
	}

	d := c.Data
	if d.Symbol == "" {
		return fieldErr("data.symbol", "is required")
	}
	if d.InSampleRatio <= 0 || d.InSampleRatio >= 1 {
		return fieldErr("data.in_sample_ratio", "must be in (0, 1), got %v", d.InSampleRatio)
	}
	if d.SplitAt != "" {
		if _, err := time.Parse(splitDateLayout, d.SplitAt); err != nil {
			return fieldErr("data.split_at", "must be a %s date, got %q", splitDateLayout, d.SplitAt)
		}
	}

	if c.Output.Dir == "" {
		return fieldErr("output.dir", "is required")
	}
	if c.Output.TrialLog == "" {
		return fieldErr("output.trial_log", "is required")
	}
	return nil
}

func validateBound(field string, b Bound) error {
	if b.Low.GreaterThan(b.High) {
		return fieldErr(field, "low %s exceeds high %s", b.Low, b.High)
	}
	if !b.Step.IsPositive() {
		return fieldErr(field+".step", "quantization must be positive, got %s", b.Step)
	}
	return nil
}

// SplitOptions returns the dataset split described by the data section.
func (c *Config) SplitOptions() dataset.SplitOptions {
	opts := dataset.SplitOptions{Ratio: c.Data.InSampleRatio}
	if c.Data.SplitAt != "" {
		// validated in Validate
		opts.At, _ = time.Parse(splitDateLayout, c.Data.SplitAt)
	}
	return opts
}

// EvaluationParams returns the fixed evaluation parameters, or false if unset.
func (c *Config) EvaluationParams() (domain.Parameters, bool) {
	e := c.Evaluation
	if e.Step == nil || e.PriceEncouragement == nil {
		return domain.Parameters{}, false
	}
	return domain.Parameters{Step: *e.Step, PriceEncouragement: *e.PriceEncouragement}, true
}
