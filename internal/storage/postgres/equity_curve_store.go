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

// EquityCurveStore implements storage.EquityCurveStore using PostgreSQL.
type EquityCurveStore struct {
	pool *Pool
}

// NewEquityCurveStore creates a new EquityCurveStore.
func NewEquityCurveStore(pool *Pool) *EquityCurveStore {
	return &EquityCurveStore{pool: pool}
}

// Compile-time interface check.
var _ storage.EquityCurveStore = (*EquityCurveStore)(nil)

// InsertBulk adds the curve of a run in one transaction. Fails on duplicate (run_id, point_date).
func (s *EquityCurveStore) InsertBulk(ctx context.Context, runID string, points []*domain.EquityCurvePoint) (err error) {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(points) == 0 {
		return nil
	}
	defer func(started time.Time) { observe("equity_curve.insert_bulk", started, err) }(time.Now())

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO equity_curve (run_id, point_date, cash, holdings_value, total_equity, daily_return)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	batch := &pgx.Batch{}
	for _, p := range points {
		if p == nil {
			return storage.ErrInvalidInput
		}
		batch.Queue(query, runID, domain.Day(p.Date),
			numeric(p.Cash), numeric(p.HoldingsValue), numeric(p.TotalEquity), p.DailyReturn)
	}

	results := tx.SendBatch(ctx, batch)
	for range points {
		if _, err := results.Exec(); err != nil {
			results.Close()
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert equity point: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByRunID retrieves the curve of a run, ordered by date ASC.
func (s *EquityCurveStore) GetByRunID(ctx context.Context, runID string) (points []*domain.EquityCurvePoint, err error) {
	defer func(started time.Time) { observe("equity_curve.get_by_run", started, err) }(time.Now())

	query := `
		SELECT point_date, cash, holdings_value, total_equity, daily_return
		FROM equity_curve
		WHERE run_id = $1
		ORDER BY point_date ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get equity curve by run id: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p                  domain.EquityCurvePoint
			cash, holdings, eq pgtype.Numeric
		)
		if err := rows.Scan(&p.Date, &cash, &holdings, &eq, &p.DailyReturn); err != nil {
			return nil, fmt.Errorf("scan equity curve row: %w", err)
		}
		p.Date = domain.Day(p.Date)
		p.Cash = fromNumeric(cash)
		p.HoldingsValue = fromNumeric(holdings)
		p.TotalEquity = fromNumeric(eq)
		points = append(points, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate equity curve rows: %w", err)
	}
	return points, nil
}
