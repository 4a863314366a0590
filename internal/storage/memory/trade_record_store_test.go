package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"ashare-quant-lab/internal/domain"
	"ashare-quant-lab/internal/storage"
)

func TestTradeRecordStore_InsertAndGet(t *testing.T) {
	store := NewTradeRecordStore()
	ctx := context.Background()

	trade := &domain.TradeRecord{
		TradeID:      "trade1",
		RunID:        "run1",
		Seq:          1,
		Date:         day(2),
		InstrumentID: "600000.SH",
		Side:         domain.SideBuy,
		FillPrice:    decimal.RequireFromString("10.01"),
		Shares:       100,
	}

	if err := store.InsertBulk(ctx, []*domain.TradeRecord{trade}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByID(ctx, "trade1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}

	if !got.FillPrice.Equal(trade.FillPrice) {
		t.Errorf("FillPrice mismatch: got %s, want %s", got.FillPrice, trade.FillPrice)
	}
}

func TestTradeRecordStore_DuplicateKey(t *testing.T) {
	store := NewTradeRecordStore()
	ctx := context.Background()

	trade := &domain.TradeRecord{TradeID: "trade1", RunID: "run1"}

	if err := store.InsertBulk(ctx, []*domain.TradeRecord{trade}); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.InsertBulk(ctx, []*domain.TradeRecord{trade})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestTradeRecordStore_NotFound(t *testing.T) {
	store := NewTradeRecordStore()
	ctx := context.Background()

	_, err := store.GetByID(ctx, "nonexistent")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestTradeRecordStore_GetByRunID_OrderedBySeq(t *testing.T) {
	store := NewTradeRecordStore()
	ctx := context.Background()

	trades := []*domain.TradeRecord{
		{TradeID: "t3", RunID: "r1", Seq: 3},
		{TradeID: "t1", RunID: "r1", Seq: 1},
		{TradeID: "t2", RunID: "r1", Seq: 2},
		{TradeID: "x1", RunID: "r2", Seq: 1},
	}
	if err := store.InsertBulk(ctx, trades); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, err := store.GetByRunID(ctx, "r1")
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if len(result) != 3 {
		t.Fatalf("Expected 3 trades, got %d", len(result))
	}
	for i, tr := range result {
		if tr.Seq != i+1 {
			t.Errorf("position %d: expected seq %d, got %d", i, i+1, tr.Seq)
		}
	}
}
