package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"ashare-quant-lab/internal/domain"
	"ashare-quant-lab/internal/storage"
)

// RejectedTradeStore implements storage.RejectedTradeStore using PostgreSQL.
type RejectedTradeStore struct {
	pool *Pool
}

// NewRejectedTradeStore creates a new RejectedTradeStore.
func NewRejectedTradeStore(pool *Pool) *RejectedTradeStore {
	return &RejectedTradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RejectedTradeStore = (*RejectedTradeStore)(nil)

// InsertBulk adds multiple rejections atomically.
func (s *RejectedTradeStore) InsertBulk(ctx context.Context, rejections []*domain.RejectedTrade) (err error) {
	if len(rejections) == 0 {
		return nil
	}
	for _, r := range rejections {
		if r == nil || r.RunID == "" {
			return storage.ErrInvalidInput
		}
	}
	defer func(started time.Time) { observe("rejected_trades.insert_bulk", started, err) }(time.Now())

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO rejected_trades (run_id, trade_date, instrument_id, side, shares, quoted_price, reason, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for _, r := range rejections {
		_, err := tx.Exec(ctx, query,
			r.RunID, domain.Day(r.Date), r.InstrumentID, string(r.Side), r.Shares,
			numeric(r.QuotedPrice), string(r.Reason), r.Detail,
		)
		if err != nil {
			return fmt.Errorf("insert rejected trade: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByRunID retrieves all rejections of a run, ordered by date ASC then
// insertion order.
func (s *RejectedTradeStore) GetByRunID(ctx context.Context, runID string) (rejections []*domain.RejectedTrade, err error) {
	defer func(started time.Time) { observe("rejected_trades.get_by_run", started, err) }(time.Now())

	query := `
		SELECT run_id, trade_date, instrument_id, side, shares, quoted_price, reason, detail
		FROM rejected_trades
		WHERE run_id = $1
		ORDER BY trade_date ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get rejected trades by run id: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r            domain.RejectedTrade
			side, reason string
			quoted       pgtype.Numeric
		)
		if err := rows.Scan(&r.RunID, &r.Date, &r.InstrumentID, &side, &r.Shares, &quoted, &reason, &r.Detail); err != nil {
			return nil, fmt.Errorf("scan rejected trade row: %w", err)
		}
		r.Date = domain.Day(r.Date)
		r.Side = domain.Side(side)
		r.QuotedPrice = fromNumeric(quoted)
		r.Reason = domain.RejectReason(reason)
		rejections = append(rejections, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rejected trade rows: %w", err)
	}
	return rejections, nil
}
