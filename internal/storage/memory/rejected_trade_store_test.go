package memory

import (
	"context"
	"errors"
	"testing"

	"ashare-quant-lab/internal/domain"
	"ashare-quant-lab/internal/storage"
)

func TestRejectedTradeStore_InsertAndGet(t *testing.T) {
	store := NewRejectedTradeStore()
	ctx := context.Background()

	rejections := []*domain.RejectedTrade{
		{RunID: "r1", Date: day(3), InstrumentID: "600000.SH", Side: domain.SideSell, Reason: domain.RejectInsufficientShares},
		{RunID: "r1", Date: day(2), InstrumentID: "000001.SZ", Side: domain.SideBuy, Reason: domain.RejectInsufficientCash},
		{RunID: "r2", Date: day(2), InstrumentID: "000001.SZ", Side: domain.SideBuy, Reason: domain.RejectMissingPriceData},
	}
	if err := store.InsertBulk(ctx, rejections); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByRunID(ctx, "r1")
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 rejections, got %d", len(got))
	}
	if got[0].Reason != domain.RejectInsufficientCash {
		t.Errorf("Expected earliest rejection first, got %s", got[0].Reason)
	}
}

func TestRejectedTradeStore_InvalidInput(t *testing.T) {
	store := NewRejectedTradeStore()

	err := store.InsertBulk(context.Background(), []*domain.RejectedTrade{{Date: day(2)}})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}
