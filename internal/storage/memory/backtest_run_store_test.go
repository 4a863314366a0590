package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"ashare-quant-lab/internal/domain"
	"ashare-quant-lab/internal/storage"
)

func TestBacktestRunStore_InsertAndGet(t *testing.T) {
	store := NewBacktestRunStore()
	ctx := context.Background()

	run := &domain.BacktestRun{
		RunID:      "run1",
		StrategyID: "MA_CROSS_5_20",
		Metrics:    domain.PerformanceMetrics{SharpeRatio: 1.2, TradeCount: 10},
	}
	if err := store.Insert(ctx, run); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "run1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Metrics.SharpeRatio != 1.2 || got.Metrics.TradeCount != 10 {
		t.Errorf("Metrics mismatch: %+v", got.Metrics)
	}

	if err := store.Insert(ctx, run); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
	if _, err := store.GetByID(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestBacktestRunStore_GetByStrategy(t *testing.T) {
	store := NewBacktestRunStore()
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	runs := []*domain.BacktestRun{
		{RunID: "b", StrategyID: "S1", CreatedAt: base.Add(time.Minute)},
		{RunID: "a", StrategyID: "S1", CreatedAt: base},
		{RunID: "c", StrategyID: "S2", CreatedAt: base},
	}
	for _, r := range runs {
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	got, err := store.GetByStrategy(ctx, "S1")
	if err != nil {
		t.Fatalf("GetByStrategy failed: %v", err)
	}
	if len(got) != 2 || got[0].RunID != "a" || got[1].RunID != "b" {
		t.Errorf("Unexpected runs: %+v", got)
	}
}
