package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"ashare-quant-lab/internal/config"
	"ashare-quant-lab/internal/marketdata"
	"ashare-quant-lab/internal/storage"
	chstore "ashare-quant-lab/internal/storage/clickhouse"
	"ashare-quant-lab/internal/storage/memory"
	"ashare-quant-lab/internal/storage/migrations"
	pgstore "ashare-quant-lab/internal/storage/postgres"
)

// Stores holds all storage implementations.
type Stores struct {
	Bars       storage.BarStore // nil when bars come from a CSV file
	Runs       storage.BacktestRunStore
	Trades     storage.TradeRecordStore
	Curves     storage.EquityCurveStore
	Rejections storage.RejectedTradeStore

	closers []func()
}

// Close releases database connections.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// MemoryStores returns empty in-memory stores.
func MemoryStores() *Stores {
	return &Stores{
		Bars:       memory.NewBarStore(),
		Runs:       memory.NewBacktestRunStore(),
		Trades:     memory.NewTradeRecordStore(),
		Curves:     memory.NewEquityCurveStore(),
		Rejections: memory.NewRejectedTradeStore(),
	}
}

// StoreOptions controls OpenStores.
type StoreOptions struct {
	Migrate bool // apply embedded migrations after connecting
	Logger  *zap.Logger
}

// OpenStores connects the bar source and the result stores selected by cfg.
// Callers must Close the returned Stores.
func OpenStores(ctx context.Context, cfg *config.Config, opts StoreOptions) (*Stores, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := MemoryStores()

	switch strings.ToLower(cfg.Storage.Backend) {
	case "postgres":
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		s.closers = append(s.closers, pool.Close)
		if opts.Migrate {
			if _, err := migrations.RunPostgresMigrations(ctx, pool, logger); err != nil {
				s.Close()
				return nil, err
			}
		}
		s.Runs = pgstore.NewBacktestRunStore(pool)
		s.Trades = pgstore.NewTradeRecordStore(pool)
		s.Curves = pgstore.NewEquityCurveStore(pool)
		s.Rejections = pgstore.NewRejectedTradeStore(pool)
	}

	switch strings.ToLower(cfg.Data.Source) {
	case "clickhouse":
		var (
			conn *chstore.Conn
			err  error
		)
		if opts.Migrate {
			conn, err = migrations.RunClickhouseMigrations(ctx, cfg.Data.ClickHouseDSN, logger)
		} else {
			conn, err = chstore.NewConn(ctx, cfg.Data.ClickHouseDSN)
		}
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		s.closers = append(s.closers, func() { _ = conn.Close() })
		s.Bars = chstore.NewBarStore(conn)
	case "csv":
		s.Bars = nil
	}

	return s, nil
}

// LoadSeries returns the CSV series for csv data sources and nil otherwise,
// in which case bars are read from Stores.Bars per run.
func LoadSeries(cfg *config.Config) (*marketdata.Series, error) {
	if strings.ToLower(cfg.Data.Source) != "csv" {
		return nil, nil
	}
	return marketdata.LoadCSV(cfg.Data.CSVPath)
}
