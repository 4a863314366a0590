package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ashare-quant-lab/internal/domain"
	"ashare-quant-lab/internal/storage"
)

func day(n int) time.Time {
	return time.Date(2024, 1, n, 0, 0, 0, 0, time.UTC)
}

func testBar(instrumentID string, date time.Time, close int64) *domain.Bar {
	c := decimal.NewFromInt(close)
	return &domain.Bar{InstrumentID: instrumentID, Date: date, Open: c, High: c, Low: c, Close: c, Volume: 1000}
}

func TestBarStore_InsertBulkAndGet(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	bars := []*domain.Bar{
		testBar("600000.SH", day(3), 11),
		testBar("600000.SH", day(2), 10),
		testBar("000001.SZ", day(2), 20),
	}

	if err := store.InsertBulk(ctx, bars); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, err := store.GetByInstrument(ctx, "600000.SH")
	if err != nil {
		t.Fatalf("GetByInstrument failed: %v", err)
	}

	if len(result) != 2 {
		t.Fatalf("Expected 2 bars, got %d", len(result))
	}
	if !result[0].Date.Equal(day(2)) || !result[1].Date.Equal(day(3)) {
		t.Errorf("Bars not ordered by date: %v, %v", result[0].Date, result[1].Date)
	}
}

func TestBarStore_DuplicateKey(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	bars := []*domain.Bar{testBar("600000.SH", day(2), 10)}
	if err := store.InsertBulk(ctx, bars); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.InsertBulk(ctx, bars)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	// intra-batch duplicate, nothing inserted
	err = store.InsertBulk(ctx, []*domain.Bar{
		testBar("000001.SZ", day(2), 10),
		testBar("000001.SZ", day(2), 11),
	})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey for intra-batch duplicate, got %v", err)
	}
	got, _ := store.GetByInstrument(ctx, "000001.SZ")
	if len(got) != 0 {
		t.Errorf("Expected failed batch to insert nothing, got %d bars", len(got))
	}
}

func TestBarStore_InvalidInput(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	err := store.InsertBulk(ctx, []*domain.Bar{{Date: day(2)}})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestBarStore_GetByTimeRange(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	var bars []*domain.Bar
	for i := 2; i <= 6; i++ {
		bars = append(bars, testBar("600000.SH", day(i), int64(i)))
	}
	if err := store.InsertBulk(ctx, bars); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, err := store.GetByTimeRange(ctx, "600000.SH", day(3), day(5))
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(result) != 3 {
		t.Fatalf("Expected 3 bars (inclusive range), got %d", len(result))
	}
	if !result[0].Close.Equal(decimal.NewFromInt(3)) || !result[2].Close.Equal(decimal.NewFromInt(5)) {
		t.Errorf("Unexpected range bounds: %s..%s", result[0].Close, result[2].Close)
	}
}
