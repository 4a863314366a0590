package clickhouse

import (
	"context"
	"fmt"
	"time"

	"ashare-quant-lab/internal/domain"
	"ashare-quant-lab/internal/storage"
)

// BarStore implements storage.BarStore using ClickHouse.
type BarStore struct {
	conn *Conn
}

// NewBarStore creates a new BarStore.
func NewBarStore(conn *Conn) *BarStore {
	return &BarStore{conn: conn}
}

// Compile-time interface check.
var _ storage.BarStore = (*BarStore)(nil)

// InsertBulk adds multiple bars. Fails entire batch on duplicate (instrument_id, date).
// MergeTree does not enforce keys, so duplicates are checked before the insert.
func (s *BarStore) InsertBulk(ctx context.Context, bars []*domain.Bar) (err error) {
	if len(bars) == 0 {
		return nil
	}
	defer func(started time.Time) { observe("daily_bars.insert_bulk", started, err) }(time.Now())

	// Check for intra-batch duplicates
	type key struct {
		instrumentID string
		date         string
	}
	seen := make(map[key]struct{}, len(bars))
	for _, b := range bars {
		if b == nil || b.InstrumentID == "" || b.Date.IsZero() {
			return storage.ErrInvalidInput
		}
		k := key{b.InstrumentID, b.Date.Format(domain.DateLayout)}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing rows
	for k := range seen {
		exists, err := s.exists(ctx, k.instrumentID, k.date)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO daily_bars (instrument_id, date, open, high, low, close, volume)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, b := range bars {
		err = batch.Append(
			b.InstrumentID, domain.Day(b.Date),
			b.Open, b.High, b.Low, b.Close, b.Volume,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByInstrument retrieves all bars for an instrument, ordered by date ASC.
func (s *BarStore) GetByInstrument(ctx context.Context, instrumentID string) (bars []*domain.Bar, err error) {
	defer func(started time.Time) { observe("daily_bars.get_by_instrument", started, err) }(time.Now())

	query := `
		SELECT instrument_id, date, open, high, low, close, volume
		FROM daily_bars
		WHERE instrument_id = ?
		ORDER BY date ASC
	`

	rows, err := s.conn.Query(ctx, query, instrumentID)
	if err != nil {
		return nil, fmt.Errorf("query by instrument: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// GetByTimeRange retrieves bars for an instrument within [start, end] (inclusive).
func (s *BarStore) GetByTimeRange(ctx context.Context, instrumentID string, start, end time.Time) (bars []*domain.Bar, err error) {
	defer func(started time.Time) { observe("daily_bars.get_by_time_range", started, err) }(time.Now())

	query := `
		SELECT instrument_id, date, open, high, low, close, volume
		FROM daily_bars
		WHERE instrument_id = ? AND date >= toDate(?) AND date <= toDate(?)
		ORDER BY date ASC
	`

	rows, err := s.conn.Query(ctx, query, instrumentID,
		domain.Day(start).Format(domain.DateLayout), domain.Day(end).Format(domain.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// exists checks if a bar with the given key exists.
func (s *BarStore) exists(ctx context.Context, instrumentID, date string) (bool, error) {
	query := `
		SELECT count(*) FROM daily_bars
		WHERE instrument_id = ? AND date = toDate(?)
	`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, instrumentID, date).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanBars scans multiple rows.
func scanBars(rows chRows) ([]*domain.Bar, error) {
	var bars []*domain.Bar

	for rows.Next() {
		var b domain.Bar
		err := rows.Scan(&b.InstrumentID, &b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume)
		if err != nil {
			return nil, fmt.Errorf("scan daily bar row: %w", err)
		}

		b.Date = domain.Day(b.Date)
		bars = append(bars, &b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily bar rows: %w", err)
	}

	return bars, nil
}
