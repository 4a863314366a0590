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

// TradeRecordStore implements storage.TradeRecordStore using PostgreSQL.
type TradeRecordStore struct {
	pool *Pool
}

// NewTradeRecordStore creates a new TradeRecordStore.
func NewTradeRecordStore(pool *Pool) *TradeRecordStore {
	return &TradeRecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeRecordStore = (*TradeRecordStore)(nil)

const tradeRecordColumns = `
	trade_id, run_id, seq, trade_date, instrument_id, venue, side,
	quoted_price, fill_price, shares,
	commission, stamp_tax, transfer_fee, slippage_cost,
	realized_pnl, net_cash_delta`

// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
func (s *TradeRecordStore) InsertBulk(ctx context.Context, trades []*domain.TradeRecord) (err error) {
	if len(trades) == 0 {
		return nil
	}
	for _, t := range trades {
		if t == nil || t.TradeID == "" || t.RunID == "" {
			return storage.ErrInvalidInput
		}
	}
	defer func(started time.Time) { observe("trade_records.insert_bulk", started, err) }(time.Now())

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `INSERT INTO trade_records (` + tradeRecordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	for _, t := range trades {
		_, err := tx.Exec(ctx, query,
			t.TradeID, t.RunID, t.Seq, domain.Day(t.Date), t.InstrumentID, string(t.Venue), string(t.Side),
			numeric(t.QuotedPrice), numeric(t.FillPrice), t.Shares,
			numeric(t.Commission), numeric(t.StampTax), numeric(t.TransferFee), numeric(t.SlippageCost),
			numeric(t.RealizedPnL), numeric(t.NetCashDelta),
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert trade record in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeRecordStore) GetByID(ctx context.Context, tradeID string) (t *domain.TradeRecord, err error) {
	defer func(started time.Time) { observe("trade_records.get_by_id", started, err) }(time.Now())

	query := `SELECT ` + tradeRecordColumns + ` FROM trade_records WHERE trade_id = $1`

	t, err = scanTradeRecord(s.pool.QueryRow(ctx, query, tradeID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade record by id: %w", err)
	}
	return t, nil
}

// GetByRunID retrieves all trades of a run, ordered by seq ASC.
func (s *TradeRecordStore) GetByRunID(ctx context.Context, runID string) (trades []*domain.TradeRecord, err error) {
	defer func(started time.Time) { observe("trade_records.get_by_run", started, err) }(time.Now())

	query := `SELECT ` + tradeRecordColumns + ` FROM trade_records WHERE run_id = $1 ORDER BY seq ASC`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get trade records by run id: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		t, err := scanTradeRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade record row: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade record rows: %w", err)
	}
	return trades, nil
}

// scanTradeRecord scans a single row into a TradeRecord.
func scanTradeRecord(row pgx.Row) (*domain.TradeRecord, error) {
	var (
		t                                               domain.TradeRecord
		venue, side                                     string
		quoted, fill, commission, stampTax, transferFee pgtype.Numeric
		slippage, pnl, netCash                          pgtype.Numeric
	)

	err := row.Scan(
		&t.TradeID, &t.RunID, &t.Seq, &t.Date, &t.InstrumentID, &venue, &side,
		&quoted, &fill, &t.Shares,
		&commission, &stampTax, &transferFee, &slippage,
		&pnl, &netCash,
	)
	if err != nil {
		return nil, err
	}

	t.Date = domain.Day(t.Date)
	t.Venue = domain.Venue(venue)
	t.Side = domain.Side(side)
	t.QuotedPrice = fromNumeric(quoted)
	t.FillPrice = fromNumeric(fill)
	t.Commission = fromNumeric(commission)
	t.StampTax = fromNumeric(stampTax)
	t.TransferFee = fromNumeric(transferFee)
	t.SlippageCost = fromNumeric(slippage)
	t.RealizedPnL = fromNumeric(pnl)
	t.NetCashDelta = fromNumeric(netCash)
	return &t, nil
}
