// Command optimize runs the constrained parameter search.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"strategy-tuner/internal/config"
	"strategy-tuner/internal/dataset"
	"strategy-tuner/internal/logger"
	"strategy-tuner/internal/observability"
	"strategy-tuner/internal/orchestrator"
	"strategy-tuner/internal/reporting"
	"strategy-tuner/internal/search"
	chstore "strategy-tuner/internal/storage/clickhouse"
	"strategy-tuner/internal/storage/migrations"
	pgstore "strategy-tuner/internal/storage/postgres"
	"strategy-tuner/internal/trialog"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to YAML config (defaults apply when empty)")
	envFile := flag.String("env-file", ".env", "Optional .env file with DSNs")
	csvPath := flag.String("csv", "", "Bars CSV file (overrides data.csv)")
	symbol := flag.String("symbol", "", "Instrument symbol (overrides data.symbol)")
	trials := flag.Int("trials", 0, "Trial budget (overrides search.trials)")
	seed := flag.Uint64("seed", 0, "Sampler seed (overrides search.seed)")
	resultDir := flag.String("result-dir", "", "Result directory (overrides output.dir)")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL DSN for run/trial persistence")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse DSN to load bars from")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (empty to disable)")
	flag.Parse()

	cfg, err := loadConfig(*configPath, *envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	applyOverrides(cfg, *csvPath, *symbol, *trials, *seed, *resultDir, *postgresDSN, *clickhouseDSN)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty}).
		With().Str("cmd", "optimize").Logger()

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Warn().Str("signal", sig.String()).Msg("cancelling search")
		cancel()
	}()

	if err := run(ctx, cfg, *metricsAddr, log); err != nil {
		log.Error().Err(err).Msg("optimization failed")
		os.Exit(1)
	}
}

func loadConfig(path, envFile string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.LoadEnv(envFile); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyOverrides(cfg *config.Config, csvPath, symbol string, trials int, seed uint64, resultDir, pgDSN, chDSN string) {
	if csvPath != "" {
		cfg.Data.CSV = csvPath
	}
	if symbol != "" {
		cfg.Data.Symbol = symbol
	}
	if trials > 0 {
		cfg.Search.Trials = trials
	}
	if seed > 0 {
		cfg.Search.Seed = seed
	}
	if resultDir != "" {
		cfg.Output.Dir = resultDir
	}
	if pgDSN != "" {
		cfg.Storage.PostgresDSN = pgDSN
	}
	if chDSN != "" {
		cfg.Storage.ClickhouseDSN = chDSN
	}
}

func run(ctx context.Context, cfg *config.Config, metricsAddr string, log zerolog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := observability.NewMetrics("", reg)

	// Start metrics server if enabled
	if metricsAddr != "" {
		srv := &http.Server{Addr: metricsAddr, Handler: metricsMux(reg), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			log.Info().Str("addr", metricsAddr).Msg("starting metrics server")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("metrics server error")
			}
		}()
		defer srv.Close()
	}

	loader, closeLoader, err := buildLoader(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLoader()

	opts := orchestrator.Options{
		Config:  cfg,
		Loader:  loader,
		Logger:  log,
		Metrics: m,
	}

	// PostgreSQL for runs and trials
	if dsn := cfg.Storage.PostgresDSN; dsn != "" {
		pool, err := pgstore.NewPool(ctx, dsn)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return fmt.Errorf("postgres migrations: %w", err)
		}
		store := observability.InstrumentStore(pgStore{
			RunStore:   pgstore.NewRunStore(pool),
			TrialStore: pgstore.NewTrialStore(pool),
		}, "postgres", m)
		opts.RunStore = store
		opts.TrialStore = store
	}

	trialLog, err := trialog.Create(filepath.Join(cfg.Output.Dir, cfg.Output.TrialLog), log)
	if err != nil {
		return err
	}
	defer trialLog.Close()
	opts.Callbacks = []search.Callback{trialLog}

	orch, err := orchestrator.New(opts)
	if err != nil {
		return err
	}
	result, err := orch.Run(ctx)
	if err != nil {
		return err
	}

	if err := reporting.RenderText(os.Stdout, result.Report); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	reportPath := filepath.Join(cfg.Output.Dir, "report.md")
	if err := os.WriteFile(reportPath, []byte(reporting.RenderMarkdown(result.Report)), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	log.Info().
		Str("run_id", result.RunID).
		Str("trial_log", filepath.Join(cfg.Output.Dir, cfg.Output.TrialLog)).
		Str("report", reportPath).
		Int("rows", trialLog.Rows()).
		Msg("optimization finished")
	return nil
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

func metricsMux(reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler(reg))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// pgStore joins the postgres run and trial stores.
type pgStore struct {
	*pgstore.RunStore
	*pgstore.TrialStore
}
