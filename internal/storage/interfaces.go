package storage

import (
	"context"
	"time"

	"ashare-quant-lab/internal/domain"
)

// BarStore provides access to daily_bars storage.
type BarStore interface {
	// InsertBulk adds multiple bars. Fails entire batch on duplicate (instrument_id, date).
	InsertBulk(ctx context.Context, bars []*domain.Bar) error

	// GetByInstrument retrieves all bars for an instrument, ordered by date ASC.
	GetByInstrument(ctx context.Context, instrumentID string) ([]*domain.Bar, error)

	// GetByTimeRange retrieves bars for an instrument within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, instrumentID string, start, end time.Time) ([]*domain.Bar, error)
}

// TradeRecordStore provides access to trade_records storage.
type TradeRecordStore interface {
	// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, trades []*domain.TradeRecord) error

	// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tradeID string) (*domain.TradeRecord, error)

	// GetByRunID retrieves all trades of a run, ordered by seq ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.TradeRecord, error)
}

// RejectedTradeStore provides access to rejected_trades storage.
type RejectedTradeStore interface {
	// InsertBulk adds multiple rejections atomically.
	InsertBulk(ctx context.Context, rejections []*domain.RejectedTrade) error

	// GetByRunID retrieves all rejections of a run, ordered by date ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.RejectedTrade, error)
}

// EquityCurveStore provides access to equity_curve storage.
type EquityCurveStore interface {
	// InsertBulk adds the curve of a run atomically. Fails on duplicate (run_id, date).
	InsertBulk(ctx context.Context, runID string, points []*domain.EquityCurvePoint) error

	// GetByRunID retrieves the curve of a run, ordered by date ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.EquityCurvePoint, error)
}

// BacktestRunStore provides access to backtest_runs storage.
type BacktestRunStore interface {
	// Insert adds a new run summary. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.BacktestRun) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.BacktestRun, error)

	// GetByStrategy retrieves all runs of a strategy, ordered by created_at ASC.
	GetByStrategy(ctx context.Context, strategyID string) ([]*domain.BacktestRun, error)
}
