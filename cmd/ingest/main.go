// Command ingest loads a bars CSV file into ClickHouse.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"strategy-tuner/internal/config"
	"strategy-tuner/internal/dataset"
	"strategy-tuner/internal/logger"
	chstore "strategy-tuner/internal/storage/clickhouse"
	"strategy-tuner/internal/storage/migrations"
)

func main() {
	// Parse flags
	csvPath := flag.String("csv", "", "Bars CSV file (required)")
	symbol := flag.String("symbol", "", "Instrument symbol (required)")
	envFile := flag.String("env-file", ".env", "Optional .env file with DSNs")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse DSN (or "+config.EnvClickhouseDSN+")")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	log := logger.New(logger.Config{Level: *logLevel}).With().Str("cmd", "ingest").Logger()

	// Validate required flags
	if *csvPath == "" || *symbol == "" {
		log.Fatal().Msg("--csv and --symbol are required")
	}
	cfg := config.Default()
	if err := cfg.LoadEnv(*envFile); err != nil {
		log.Fatal().Err(err).Msg("load env")
	}
	dsn := *clickhouseDSN
	if dsn == "" {
		dsn = cfg.Storage.ClickhouseDSN
	}
	if dsn == "" {
		log.Fatal().Msg("--clickhouse-dsn or " + config.EnvClickhouseDSN + " is required")
	}

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

	f, err := os.Open(*csvPath)
	if err != nil {
		log.Fatal().Err(err).Msg("open bars file")
	}
	defer f.Close()

	ds, err := dataset.ReadCSV(f, *symbol)
	if err != nil {
		log.Fatal().Err(err).Str("file", *csvPath).Msg("parse bars")
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("clickhouse migrations")
	}
	defer conn.Close()

	if err := chstore.NewBarStore(conn).InsertBulk(ctx, *symbol, ds.Bars); err != nil {
		log.Fatal().Err(err).Msg("insert bars")
	}
	log.Info().
		Str("symbol", *symbol).
		Int("bars", ds.Len()).
		Time("from", ds.First()).
		Time("to", ds.Last()).
		Msg("bars ingested")
}
