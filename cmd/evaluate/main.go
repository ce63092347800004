// Command evaluate backtests one fixed parameter set on the held-out split.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"strategy-tuner/internal/config"
	"strategy-tuner/internal/dataset"
	"strategy-tuner/internal/domain"
	"strategy-tuner/internal/logger"
	"strategy-tuner/internal/objective"
	"strategy-tuner/internal/orchestrator"
	"strategy-tuner/internal/reporting"
	chstore "strategy-tuner/internal/storage/clickhouse"
	pgstore "strategy-tuner/internal/storage/postgres"
	"strategy-tuner/internal/verification"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to YAML config (defaults apply when empty)")
	envFile := flag.String("env-file", ".env", "Optional .env file with DSNs")
	csvPath := flag.String("csv", "", "Bars CSV file (overrides data.csv)")
	step := flag.String("step", "", "Quote step (overrides evaluation.step)")
	priceEncouragement := flag.String("price-encouragement", "", "Inventory skew (overrides evaluation.priceEncouragement)")
	runID := flag.String("run-id", "", "Evaluate the best trial of a stored run (requires --postgres-dsn)")
	verifyRun := flag.Bool("verify-run", false, "Replay every stored trial of --run-id on the in-sample split first")
	resultDir := flag.String("result-dir", "", "Directory for nav/drawdown/inventory series (overrides output.dir)")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL DSN")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse DSN to load bars from")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err == nil {
		err = cfg.LoadEnv(*envFile)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *csvPath != "" {
		cfg.Data.CSV = *csvPath
	}
	if *resultDir != "" {
		cfg.Output.Dir = *resultDir
	}
	if *postgresDSN != "" {
		cfg.Storage.PostgresDSN = *postgresDSN
	}
	if *clickhouseDSN != "" {
		cfg.Storage.ClickhouseDSN = *clickhouseDSN
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty}).
		With().Str("cmd", "evaluate").Logger()

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	flags := paramFlags{step: *step, priceEncouragement: *priceEncouragement, runID: *runID, verifyRun: *verifyRun}
	if err := run(ctx, cfg, flags, log); err != nil {
		var cfgErr *config.ConfigError
		if errors.As(err, &cfgErr) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		if objective.IsCancellation(err) {
			log.Warn().Msg("evaluation cancelled")
			return
		}
		log.Error().Err(err).Msg("evaluation failed")
		os.Exit(1)
	}
}

type paramFlags struct {
	step               string
	priceEncouragement string
	runID              string
	verifyRun          bool
}

func run(ctx context.Context, cfg *config.Config, flags paramFlags, log zerolog.Logger) error {
	evaluator := orchestrator.BuildEvaluator(cfg)

	params, err := resolveParams(ctx, cfg, flags, evaluator, log)
	if err != nil {
		return err
	}

	loader, closeLoader, err := buildLoader(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLoader()

	heldOut, err := loader.LoadAndSplit(ctx, true)
	if err != nil {
		return fmt.Errorf("load held-out data: %w", err)
	}
	log.Info().Int("bars", heldOut.Len()).Str("params", params.String()).Msg("evaluating held-out split")

	runner := reporting.NewEvaluationRunner(reporting.EvaluationRunnerOptions{
		Evaluator: evaluator,
		Plotter:   reporting.SeriesPlotter{Dir: cfg.Output.Dir},
		Threshold: cfg.Backtest.MaxDrawdown,
		Logger:    log,
	})
	report, err := runner.Run(ctx, params, heldOut)
	if err != nil {
		return err
	}
	return reporting.RenderEvaluation(os.Stdout, report)
}

// resolveParams picks parameters from flags, then a stored run, then the config.
func resolveParams(ctx context.Context, cfg *config.Config, flags paramFlags, evaluator objective.Evaluator, log zerolog.Logger) (domain.Parameters, error) {
	if flags.step != "" || flags.priceEncouragement != "" {
		return parseParams(flags.step, flags.priceEncouragement)
	}
	if flags.runID != "" {
		return bestOfRun(ctx, cfg, flags, evaluator, log)
	}
	if p, ok := cfg.EvaluationParams(); ok {
		return p, nil
	}
	return domain.Parameters{}, &config.ConfigError{
		Field: "evaluation",
		Msg:   "set evaluation.step and evaluation.priceEncouragement, pass --step/--price-encouragement, or --run-id",
	}
}

func parseParams(step, pe string) (domain.Parameters, error) {
	s, err := decimal.NewFromString(step)
	if err != nil {
		return domain.Parameters{}, &config.ConfigError{Field: "--step", Msg: err.Error()}
	}
	p, err := decimal.NewFromString(pe)
	if err != nil {
		return domain.Parameters{}, &config.ConfigError{Field: "--price-encouragement", Msg: err.Error()}
	}
	return domain.Parameters{Step: s, PriceEncouragement: p}, nil
}

func bestOfRun(ctx context.Context, cfg *config.Config, flags paramFlags, evaluator objective.Evaluator, log zerolog.Logger) (domain.Parameters, error) {
	if cfg.Storage.PostgresDSN == "" {
		return domain.Parameters{}, &config.ConfigError{Field: "--postgres-dsn", Msg: "required with --run-id"}
	}
	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		return domain.Parameters{}, fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	trials := pgstore.NewTrialStore(pool)
	best, err := trials.GetBest(ctx, flags.runID)
	if err != nil {
		return domain.Parameters{}, fmt.Errorf("best trial of run %s: %w", flags.runID, err)
	}
	log.Info().Str("run_id", flags.runID).Int("trial", best.Number).Str("objective", best.Objective.String()).Msg("using stored best trial")

	if flags.verifyRun {
		loader, closeLoader, err := buildLoader(ctx, cfg)
		if err != nil {
			return domain.Parameters{}, err
		}
		defer closeLoader()
		inSample, err := loader.LoadAndSplit(ctx, false)
		if err != nil {
			return domain.Parameters{}, fmt.Errorf("load in-sample data: %w", err)
		}
		v := verification.NewReplayVerifier(verification.ReplayVerifierOptions{Evaluator: evaluator, Store: trials})
		report, err := v.VerifyRun(ctx, flags.runID, inSample)
		if err != nil {
			return domain.Parameters{}, err
		}
		log.Info().Int("verified", report.TotalTrials).Int("matched", report.MatchedTrials).Msg("stored run reproduced")
	}
	return best.Params, nil
}

// buildLoader prefers the CSV file and falls back to ClickHouse.
func buildLoader(ctx context.Context, cfg *config.Config) (dataset.Loader, func(), error) {
	split := cfg.SplitOptions()
	if cfg.Data.CSV != "" {
		return &dataset.FileLoader{Path: cfg.Data.CSV, Symbol: cfg.Data.Symbol, Split: split}, func() {}, nil
	}
	if dsn := cfg.Storage.ClickhouseDSN; dsn != "" {
		conn, err := chstore.NewConn(ctx, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		loader := &dataset.StoreLoader{Store: chstore.NewBarStore(conn), Symbol: cfg.Data.Symbol, Split: split}
		return loader, func() { _ = conn.Close() }, nil
	}
	return nil, nil, &config.ConfigError{Field: "data.csv", Msg: "a CSV file or a ClickHouse DSN is required"}
}
