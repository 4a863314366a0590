package reporting

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ashare-quant-lab/internal/domain"
	"ashare-quant-lab/internal/storage"
	"ashare-quant-lab/internal/storage/memory"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func day(n int) time.Time {
	return time.Date(2024, 1, n, 0, 0, 0, 0, time.UTC)
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func fixture() (*domain.BacktestRun, []*domain.EquityCurvePoint, []*domain.TradeRecord, []*domain.RejectedTrade) {
	run := &domain.BacktestRun{
		RunID:          "run-a",
		StrategyID:     "MA_CROSS_5_20",
		ConfigHash:     "abc123",
		StartDate:      day(2),
		EndDate:        day(4),
		InitialCapital: d("1000000"),
		Metrics: domain.PerformanceMetrics{
			TotalReturn: 0.0019,
			SharpeRatio: 1.5,
			MaxDrawdown: 0.01,
			TradeCount:  2,
			TotalCosts:  d("22"),
		},
		CreatedAt: fixedNow.Add(-time.Hour),
	}
	curve := []*domain.EquityCurvePoint{
		{Date: day(2), Cash: d("989995"), HoldingsValue: d("10000"), TotalEquity: d("999995")},
		{Date: day(3), Cash: d("989995"), HoldingsValue: d("11000"), TotalEquity: d("1000995")},
		{Date: day(4), Cash: d("1001978"), HoldingsValue: d("0"), TotalEquity: d("1001978")},
	}
	trades := []*domain.TradeRecord{
		{TradeID: "t1", RunID: "run-a", Seq: 1, Date: day(2), InstrumentID: "000001.SZ", Venue: domain.VenueSZSE,
			Side: domain.SideBuy, Shares: 1000, QuotedPrice: d("10"), FillPrice: d("10"), Commission: d("5"),
			NetCashDelta: d("-10005")},
		{TradeID: "t2", RunID: "run-a", Seq: 2, Date: day(4), InstrumentID: "000001.SZ", Venue: domain.VenueSZSE,
			Side: domain.SideSell, Shares: 1000, QuotedPrice: d("12"), FillPrice: d("12"), Commission: d("5"),
			StampTax: d("12"), RealizedPnL: d("2000"), NetCashDelta: d("11983")},
	}
	rejections := []*domain.RejectedTrade{
		{RunID: "run-a", Date: day(3), InstrumentID: "600000.SH", Side: domain.SideBuy, Shares: 100, Reason: domain.RejectMissingPriceData},
		{RunID: "run-a", Date: day(2), InstrumentID: "600000.SH", Side: domain.SideBuy, Shares: 1_000_000, Reason: domain.RejectInsufficientCash},
		{RunID: "run-a", Date: day(4), InstrumentID: "600000.SH", Side: domain.SideBuy, Shares: 100, Reason: domain.RejectMissingPriceData},
	}
	return run, curve, trades, rejections
}

func TestBuild_Summaries(t *testing.T) {
	run, curve, trades, rejections := fixture()

	r := Build(run, curve, trades, rejections, fixedNow)

	assert.Equal(t, 3, r.DataSummary.TradingDays)
	assert.Equal(t, 1, r.DataSummary.Buys)
	assert.Equal(t, 1, r.DataSummary.Sells)
	assert.True(t, r.DataSummary.PeakEquity.Equal(d("1001978")))
	assert.True(t, r.DataSummary.DateRangeStart.Equal(day(2)))

	require.Len(t, r.Rejections, 2)
	assert.Equal(t, domain.RejectInsufficientCash, r.Rejections[0].Reason)
	assert.Equal(t, 2, r.Rejections[1].Count)

	require.Len(t, r.Instruments, 1)
	row := r.Instruments[0]
	assert.Equal(t, int64(1000), row.SharesBought)
	assert.Equal(t, int64(1000), row.SharesSold)
	assert.True(t, row.RealizedPnL.Equal(d("2000")))
	assert.True(t, row.Costs.Equal(d("22")))
}

func TestRenderMarkdown(t *testing.T) {
	run, curve, trades, rejections := fixture()
	r := Build(run, curve, trades, rejections, fixedNow)
	r.RelatedRuns = []RunComparisonRow{{RunID: "run-b", ConfigHash: "def456", SharpeRatio: 0.7}}

	md := RenderMarkdown(r)

	assert.Contains(t, md, "# Backtest Report: MA_CROSS_5_20")
	assert.Contains(t, md, "Generated: 2024-06-01T12:00:00Z")
	assert.Contains(t, md, "| Period | 2024-01-02 .. 2024-01-04 |")
	assert.Contains(t, md, "| Final Equity | 1001978.00 |")
	assert.Contains(t, md, "| Sharpe Ratio | 1.5000 |")
	assert.Contains(t, md, "| 000001.SZ | SZSE | 1 | 1 | 1000 | 1000 | 2000.00 | 22.00 |")
	assert.Contains(t, md, "| MISSING_PRICE_DATA | 2 |")
	assert.Contains(t, md, "| run-b | def456 |")
}

func TestRenderMarkdown_Empty(t *testing.T) {
	run, _, _, _ := fixture()
	md := RenderMarkdown(Build(run, nil, nil, nil, fixedNow))

	assert.Contains(t, md, "No trades executed.")
	assert.Contains(t, md, "No rejected trades.")
	assert.Contains(t, md, "| Period | - .. - |")
	assert.NotContains(t, md, "Other Runs")
}

func TestRenderMarkdown_ShortRun(t *testing.T) {
	run, curve, trades, _ := fixture()
	run.Metrics = domain.PerformanceMetrics{
		TradeCount:       1,
		TradingDays:      1,
		FinalEquity:      d("999995"),
		InsufficientData: true,
	}
	r := Build(run, curve[:1], trades[:1], nil, fixedNow)
	r.RelatedRuns = []RunComparisonRow{
		{RunID: "run-b", ConfigHash: "def456", TradeCount: 1, InsufficientData: true},
	}

	md := RenderMarkdown(r)

	assert.Contains(t, md, "Too few trading days for ratio metrics.")
	assert.Contains(t, md, "| Sharpe Ratio | n/a |")
	assert.Contains(t, md, "| Max Drawdown | n/a |")
	assert.Contains(t, md, "| Profit Factor | n/a |")
	assert.NotContains(t, md, "| Sharpe Ratio | 0.0000 |")
	assert.Contains(t, md, "| run-b | def456 | n/a | n/a | n/a | 1 |")
}

func TestRenderMarkdown_ProfitFactorWithoutLosses(t *testing.T) {
	run, curve, trades, rejections := fixture()
	run.Metrics.ProfitFactor = math.Inf(1)

	md := RenderMarkdown(Build(run, curve, trades, rejections, fixedNow))

	assert.Contains(t, md, "| Profit Factor | inf |")
	assert.Contains(t, md, "| Sharpe Ratio | 1.5000 |")
}

func TestFormatRatio(t *testing.T) {
	assert.Equal(t, "0.2500", FormatRatio(0.25, false, "%.4f"))
	assert.Equal(t, "n/a", FormatRatio(0, true, "%.4f"))
	assert.Equal(t, "n/a", FormatRatio(math.Inf(1), true, "%.4f"))
	assert.Equal(t, "inf", FormatRatio(math.Inf(1), false, "%.4f"))
	assert.Equal(t, "-inf", FormatRatio(math.Inf(-1), false, "%.4f"))
}

func TestRenderCSV(t *testing.T) {
	_, curve, trades, _ := fixture()

	equity := strings.Split(strings.TrimSpace(RenderEquityCSV(curve)), "\n")
	require.Len(t, equity, 4)
	assert.Equal(t, "date,cash,holdings_value,total_equity,daily_return", equity[0])
	assert.Equal(t, "2024-01-02,989995.00,10000.00,999995.00,0.00000000", equity[1])

	log := strings.Split(strings.TrimSpace(RenderTradesCSV(trades)), "\n")
	require.Len(t, log, 3)
	assert.True(t, strings.HasPrefix(log[2], "2,t2,2024-01-04,000001.SZ,SZSE,sell,1000,12,12,5.0000,12.0000"))

	cmp := RenderComparisonCSV([]RunComparisonRow{{RunID: "r", StrategyID: "s", ConfigHash: "h", TotalReturn: 0.5, TradeCount: 3}})
	assert.Contains(t, cmp, "r,s,h,0.500000,0.000000,0.000000,3\n")

	cmp = RenderComparisonCSV([]RunComparisonRow{{RunID: "r", StrategyID: "s", ConfigHash: "h", TradeCount: 1, InsufficientData: true}})
	assert.Contains(t, cmp, "r,s,h,n/a,n/a,n/a,1\n")
}

func TestGenerator_Generate(t *testing.T) {
	ctx := context.Background()
	run, curve, trades, rejections := fixture()

	runs := memory.NewBacktestRunStore()
	tradeStore := memory.NewTradeRecordStore()
	curves := memory.NewEquityCurveStore()
	rejected := memory.NewRejectedTradeStore()

	other := *run
	other.RunID = "run-b"
	other.CreatedAt = fixedNow
	require.NoError(t, runs.Insert(ctx, run))
	require.NoError(t, runs.Insert(ctx, &other))
	require.NoError(t, tradeStore.InsertBulk(ctx, trades))
	require.NoError(t, curves.InsertBulk(ctx, run.RunID, curve))
	require.NoError(t, rejected.InsertBulk(ctx, rejections))

	g := NewGenerator(runs, tradeStore, curves, rejected).WithClock(func() time.Time { return fixedNow })
	r, err := g.Generate(ctx, "run-a")
	require.NoError(t, err)

	assert.Equal(t, fixedNow, r.GeneratedAt)
	assert.Equal(t, 2, r.DataSummary.TotalTrades)
	assert.Equal(t, 3, r.DataSummary.Rejections)
	require.Len(t, r.RelatedRuns, 1)
	assert.Equal(t, "run-b", r.RelatedRuns[0].RunID)

	_, err = g.Generate(ctx, "missing")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}
