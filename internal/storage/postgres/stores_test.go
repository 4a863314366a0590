package postgres

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ashare-quant-lab/internal/domain"
	"ashare-quant-lab/internal/storage"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(n int) time.Time { return time.Date(2024, 1, n, 0, 0, 0, 0, time.UTC) }

func testTrade(runID, tradeID string, seq int) *domain.TradeRecord {
	return &domain.TradeRecord{
		TradeID:      tradeID,
		RunID:        runID,
		Seq:          seq,
		Date:         day(2 + seq),
		InstrumentID: "600000.SH",
		Venue:        domain.VenueSSE,
		Side:         domain.SideSell,
		QuotedPrice:  d("10.50"),
		FillPrice:    d("10.4895"),
		Shares:       1000,
		Commission:   d("5"),
		StampTax:     d("5.24475"),
		TransferFee:  d("0.104895"),
		SlippageCost: d("10.5"),
		RealizedPnL:  d("479.5"),
		NetCashDelta: d("10479.145355"),
	}
}

func TestTradeRecordStore(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTradeRecordStore(pool)

	require.NoError(t, store.InsertBulk(ctx, nil))
	require.NoError(t, store.InsertBulk(ctx, []*domain.TradeRecord{
		testTrade("run-1", "t-2", 2),
		testTrade("run-1", "t-1", 1),
		testTrade("run-2", "t-3", 1),
	}))

	got, err := store.GetByID(ctx, "t-1")
	require.NoError(t, err)
	want := testTrade("run-1", "t-1", 1)
	assert.Equal(t, want.Date, got.Date)
	assert.Equal(t, want.Venue, got.Venue)
	assert.Equal(t, want.Side, got.Side)
	assert.Equal(t, want.Shares, got.Shares)
	assert.True(t, want.FillPrice.Equal(got.FillPrice))
	assert.True(t, want.TransferFee.Equal(got.TransferFee), "numeric keeps every digit")
	assert.True(t, want.NetCashDelta.Equal(got.NetCashDelta))
	assert.True(t, want.RealizedPnL.Equal(got.RealizedPnL))

	run1, err := store.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, run1, 2)
	assert.Equal(t, "t-1", run1[0].TradeID)
	assert.Equal(t, "t-2", run1[1].TradeID)

	_, err = store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// whole batch fails on one duplicate
	err = store.InsertBulk(ctx, []*domain.TradeRecord{
		testTrade("run-3", "t-9", 1),
		testTrade("run-1", "t-1", 1),
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
	_, err = store.GetByID(ctx, "t-9")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestEquityCurveStore(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewEquityCurveStore(pool)

	points := []*domain.EquityCurvePoint{
		{Date: day(2), Cash: d("989995"), HoldingsValue: d("10000"), TotalEquity: d("999995"), DailyReturn: -0.000005},
		{Date: day(3), Cash: d("989995"), HoldingsValue: d("11983"), TotalEquity: d("1001978"), DailyReturn: 0.0019830099150495753},
	}
	require.NoError(t, store.InsertBulk(ctx, "run-1", points))

	got, err := store.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, day(2), got[0].Date)
	assert.True(t, got[1].TotalEquity.Equal(d("1001978")))
	assert.Equal(t, points[1].DailyReturn, got[1].DailyReturn)

	err = store.InsertBulk(ctx, "run-1", points[:1])
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	err = store.InsertBulk(ctx, "", points)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	none, err := store.GetByRunID(ctx, "run-x")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRejectedTradeStore(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRejectedTradeStore(pool)

	require.NoError(t, store.InsertBulk(ctx, []*domain.RejectedTrade{
		{RunID: "run-1", Date: day(5), InstrumentID: "600000.SH", Side: domain.SideBuy, Shares: 100, QuotedPrice: d("10"), Reason: domain.RejectInsufficientCash, Detail: "need 1005"},
		{RunID: "run-1", Date: day(3), InstrumentID: "000001.SZ", Side: domain.SideSell, Shares: 200, Reason: domain.RejectMissingPriceData},
		{RunID: "run-1", Date: day(3), InstrumentID: "600000.SH", Side: domain.SideSell, Shares: 300, QuotedPrice: d("9.9"), Reason: domain.RejectInsufficientShares},
	}))

	got, err := store.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, domain.RejectMissingPriceData, got[0].Reason)
	assert.True(t, got[0].QuotedPrice.IsZero())
	assert.Equal(t, domain.RejectInsufficientShares, got[1].Reason)
	assert.Equal(t, "need 1005", got[2].Detail)

	err = store.InsertBulk(ctx, []*domain.RejectedTrade{{Date: day(3)}})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestBacktestRunStore(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewBacktestRunStore(pool)

	created := time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)
	run := &domain.BacktestRun{
		RunID:          "run-1",
		StrategyID:     "MA_CROSS_5_20",
		ConfigHash:     "abc123",
		StartDate:      day(2),
		EndDate:        day(31),
		InitialCapital: d("1000000"),
		Metrics: domain.PerformanceMetrics{
			TotalReturn:  0.3,
			SharpeRatio:  1.25,
			MaxDrawdown:  0.25,
			WinRate:      0.5,
			TradeCount:   4,
			ClosedTrades: 2,
			TradingDays:  21,
			FinalEquity:  d("1300000.1234"),
			TotalCosts:   d("28"),
		},
		RejectionCount: 1,
		CreatedAt:      created,
	}
	require.NoError(t, store.Insert(ctx, run))

	got, err := store.GetByID(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, run.StrategyID, got.StrategyID)
	assert.Equal(t, run.StartDate, got.StartDate)
	assert.Equal(t, run.EndDate, got.EndDate)
	assert.True(t, got.InitialCapital.Equal(run.InitialCapital))
	assert.True(t, got.Metrics.FinalEquity.Equal(run.Metrics.FinalEquity))
	assert.Equal(t, run.Metrics.SharpeRatio, got.Metrics.SharpeRatio)
	assert.Equal(t, run.Metrics.TradingDays, got.Metrics.TradingDays)
	assert.True(t, created.Equal(got.CreatedAt))

	assert.ErrorIs(t, store.Insert(ctx, run), storage.ErrDuplicateKey)

	second := *run
	second.RunID = "run-2"
	second.CreatedAt = created.Add(time.Hour)
	second.Metrics.InsufficientData = true
	second.Metrics.ProfitFactor = math.Inf(1)
	require.NoError(t, store.Insert(ctx, &second))

	runs, err := store.GetByStrategy(ctx, "MA_CROSS_5_20")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-1", runs[0].RunID)
	assert.Equal(t, "run-2", runs[1].RunID)
	assert.False(t, runs[0].Metrics.InsufficientData)
	assert.True(t, runs[1].Metrics.InsufficientData)
	assert.True(t, math.IsInf(runs[1].Metrics.ProfitFactor, 1))

	_, err = store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestNumericRoundTrip(t *testing.T) {
	for _, s := range []string{"0", "-12.5", "1000000", "0.00001", "123456789.987654321"} {
		assert.True(t, fromNumeric(numeric(d(s))).Equal(d(s)), s)
	}
	assert.True(t, fromNumeric(numeric(decimal.Zero)).IsZero())
}
