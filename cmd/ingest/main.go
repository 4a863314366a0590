package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"ashare-quant-lab/internal/config"
	"ashare-quant-lab/internal/domain"
	"ashare-quant-lab/internal/logging"
	"ashare-quant-lab/internal/marketdata"
	"ashare-quant-lab/internal/storage"
	chstore "ashare-quant-lab/internal/storage/clickhouse"
	"ashare-quant-lab/internal/storage/memory"
	"ashare-quant-lab/internal/storage/migrations"
)

// batchSize bounds a single InsertBulk call.
const batchSize = 5000

func main() {
	// Parse flags
	csvPath := flag.String("csv", "", "Daily bar CSV file to load (required)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string (defaults to config data.clickhouseDSN)")
	configPath := flag.String("config", "", "YAML config file")
	migrate := flag.Bool("migrate", false, "Apply ClickHouse migrations before loading")
	dryRun := flag.Bool("dry-run", false, "Validate the file into an in-memory store only")
	flag.Parse()

	if *csvPath == "" {
		fmt.Fprintln(os.Stderr, "Error: --csv is required")
		os.Exit(1)
	}

	cfg, err := config.Read(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *clickhouseDSN != "" {
		cfg.Data.ClickHouseDSN = *clickhouseDSN
	}
	if !*dryRun && cfg.Data.ClickHouseDSN == "" {
		fmt.Fprintln(os.Stderr, "Error: --clickhouse-dsn is required (use --dry-run to validate only)")
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.JSON)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger, *csvPath, cfg.Data.ClickHouseDSN, *migrate, *dryRun); err != nil {
		logger.Error("ingest failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("ingest complete")
}

func run(ctx context.Context, logger *zap.Logger, csvPath, dsn string, migrate, dryRun bool) error {
	f, err := os.Open(csvPath)
	if err != nil {
		return err
	}
	defer f.Close()

	bars, err := marketdata.ReadCSV(f)
	if err != nil {
		return err
	}
	// Reject duplicates and malformed OHLC before touching the database.
	series, err := marketdata.NewSeries(bars)
	if err != nil {
		return err
	}
	logger.Info("bars parsed",
		zap.String("file", csvPath),
		zap.Int("bars", len(bars)),
		zap.Strings("instruments", series.Instruments()),
	)

	var store storage.BarStore
	if dryRun {
		store = memory.NewBarStore()
	} else {
		var conn *chstore.Conn
		if migrate {
			conn, err = migrations.RunClickhouseMigrations(ctx, dsn, logger)
		} else {
			conn, err = chstore.NewConn(ctx, dsn)
		}
		if err != nil {
			return fmt.Errorf("connect to clickhouse: %w", err)
		}
		defer conn.Close()
		store = chstore.NewBarStore(conn)
	}

	return insertBatches(ctx, logger, store, bars)
}

// insertBatches writes bars in fixed-size batches so a failure reports the
// offending range.
func insertBatches(ctx context.Context, logger *zap.Logger, store storage.BarStore, bars []*domain.Bar) error {
	for start := 0; start < len(bars); start += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+batchSize, len(bars))
		if err := store.InsertBulk(ctx, bars[start:end]); err != nil {
			return fmt.Errorf("insert bars %d..%d: %w", start, end-1, err)
		}
		logger.Debug("batch inserted", zap.Int("from", start), zap.Int("to", end-1))
	}
	logger.Info("bars stored", zap.Int("bars", len(bars)))
	return nil
}
