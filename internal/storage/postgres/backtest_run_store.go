package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"ashare-quant-lab/internal/domain"
	"ashare-quant-lab/internal/storage"
)

// BacktestRunStore implements storage.BacktestRunStore using PostgreSQL.
type BacktestRunStore struct {
	pool *Pool
}

// NewBacktestRunStore creates a new BacktestRunStore.
func NewBacktestRunStore(pool *Pool) *BacktestRunStore {
	return &BacktestRunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BacktestRunStore = (*BacktestRunStore)(nil)

const backtestRunColumns = `
	run_id, strategy_id, config_hash, start_date, end_date, initial_capital,
	total_return, annualized_return, annualized_volatility,
	sharpe_ratio, sortino_ratio, max_drawdown, calmar_ratio,
	win_rate, profit_factor, trade_count, closed_trades, trading_days,
	final_equity, total_costs, insufficient_data, rejection_count, created_at`

// Insert adds a new run summary. Returns ErrDuplicateKey if run_id exists.
func (s *BacktestRunStore) Insert(ctx context.Context, r *domain.BacktestRun) (err error) {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}
	defer func(started time.Time) { observe("backtest_runs.insert", started, err) }(time.Now())

	query := `INSERT INTO backtest_runs (` + backtestRunColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)`

	m := r.Metrics
	_, err = s.pool.Exec(ctx, query,
		r.RunID, r.StrategyID, r.ConfigHash, domain.Day(r.StartDate), domain.Day(r.EndDate), numeric(r.InitialCapital),
		m.TotalReturn, m.AnnualizedReturn, m.AnnualizedVolatility,
		m.SharpeRatio, m.SortinoRatio, m.MaxDrawdown, m.CalmarRatio,
		m.WinRate, m.ProfitFactor, m.TradeCount, m.ClosedTrades, m.TradingDays,
		numeric(m.FinalEquity), numeric(m.TotalCosts), m.InsufficientData, r.RejectionCount, r.CreatedAt.UTC(),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert backtest run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *BacktestRunStore) GetByID(ctx context.Context, runID string) (r *domain.BacktestRun, err error) {
	defer func(started time.Time) { observe("backtest_runs.get_by_id", started, err) }(time.Now())

	query := `SELECT ` + backtestRunColumns + ` FROM backtest_runs WHERE run_id = $1`

	r, err = scanBacktestRun(s.pool.QueryRow(ctx, query, runID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get backtest run by id: %w", err)
	}
	return r, nil
}

// GetByStrategy retrieves all runs of a strategy, ordered by created_at ASC.
func (s *BacktestRunStore) GetByStrategy(ctx context.Context, strategyID string) (runs []*domain.BacktestRun, err error) {
	defer func(started time.Time) { observe("backtest_runs.get_by_strategy", started, err) }(time.Now())

	query := `SELECT ` + backtestRunColumns + ` FROM backtest_runs
		WHERE strategy_id = $1
		ORDER BY created_at ASC, run_id ASC`

	rows, err := s.pool.Query(ctx, query, strategyID)
	if err != nil {
		return nil, fmt.Errorf("get backtest runs by strategy: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanBacktestRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backtest run row: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backtest run rows: %w", err)
	}
	return runs, nil
}

// scanBacktestRun scans a single row into a BacktestRun.
func scanBacktestRun(row pgx.Row) (*domain.BacktestRun, error) {
	var (
		r                           domain.BacktestRun
		capital, finalEquity, costs pgtype.Numeric
	)
	m := &r.Metrics

	err := row.Scan(
		&r.RunID, &r.StrategyID, &r.ConfigHash, &r.StartDate, &r.EndDate, &capital,
		&m.TotalReturn, &m.AnnualizedReturn, &m.AnnualizedVolatility,
		&m.SharpeRatio, &m.SortinoRatio, &m.MaxDrawdown, &m.CalmarRatio,
		&m.WinRate, &m.ProfitFactor, &m.TradeCount, &m.ClosedTrades, &m.TradingDays,
		&finalEquity, &costs, &m.InsufficientData, &r.RejectionCount, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.StartDate = domain.Day(r.StartDate)
	r.EndDate = domain.Day(r.EndDate)
	r.InitialCapital = fromNumeric(capital)
	m.FinalEquity = fromNumeric(finalEquity)
	m.TotalCosts = fromNumeric(costs)
	r.CreatedAt = r.CreatedAt.UTC()
	return &r, nil
}
