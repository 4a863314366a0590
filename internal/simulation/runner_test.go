package simulation

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ashare-quant-lab/internal/backtest"
	"ashare-quant-lab/internal/cost"
	"ashare-quant-lab/internal/domain"
	"ashare-quant-lab/internal/marketdata"
	"ashare-quant-lab/internal/storage/memory"
	"ashare-quant-lab/internal/strategy"
)

const instrument = "600000.SH"

func date(month time.Month, d int) time.Time {
	return time.Date(2024, month, d, 0, 0, 0, 0, time.UTC)
}

// risingBars returns one bar per calendar day from Jan 1 to Feb 29 with the
// close rising 0.10 a day.
func risingBars() []*domain.Bar {
	var bars []*domain.Bar
	price := decimal.NewFromInt(10)
	step := decimal.RequireFromString("0.1")
	for t := date(time.January, 1); !t.After(date(time.February, 29)); t = t.AddDate(0, 0, 1) {
		bars = append(bars, &domain.Bar{
			InstrumentID: instrument,
			Date:         t,
			Open:         price,
			High:         price.Add(step),
			Low:          price,
			Close:        price.Add(step),
			Volume:       100000,
		})
		price = price.Add(step)
	}
	return bars
}

func testConfig() backtest.Config {
	costs, _ := cost.Scenario(cost.ScenarioRealistic)
	return backtest.Config{
		InitialCapital: decimal.NewFromInt(1000000),
		StartDate:      date(time.February, 1),
		EndDate:        date(time.February, 29),
		Universe:       []string{instrument},
		ExecutionMode:  backtest.ExecutionNextOpen,
		GapPolicy:      backtest.GapSkip,
		LotSize:        100,
		Costs:          costs,
	}
}

func maCross(fast, slow int) domain.StrategyConfig {
	return domain.StrategyConfig{
		StrategyType: domain.StrategyTypeMACross,
		Universe:     []string{instrument},
		FastWindow:   &fast,
		SlowWindow:   &slow,
	}
}

type stores struct {
	bars       *memory.BarStore
	runs       *memory.BacktestRunStore
	trades     *memory.TradeRecordStore
	curves     *memory.EquityCurveStore
	rejections *memory.RejectedTradeStore
}

func newRunner(t *testing.T) (*Runner, stores) {
	t.Helper()
	s := stores{
		bars:       memory.NewBarStore(),
		runs:       memory.NewBacktestRunStore(),
		trades:     memory.NewTradeRecordStore(),
		curves:     memory.NewEquityCurveStore(),
		rejections: memory.NewRejectedTradeStore(),
	}
	require.NoError(t, s.bars.InsertBulk(context.Background(), risingBars()))

	created := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	r := NewRunner(RunnerOptions{
		BarStore:           s.bars,
		RunStore:           s.runs,
		TradeRecordStore:   s.trades,
		EquityCurveStore:   s.curves,
		RejectedTradeStore: s.rejections,
		Clock:              func() time.Time { return created },
	})
	return r, s
}

func TestRunner_Run_PersistsEverything(t *testing.T) {
	ctx := context.Background()
	r, s := newRunner(t)

	out, err := r.Run(ctx, Request{Config: testConfig(), Strategy: maCross(3, 5)})
	require.NoError(t, err)

	run := out.Run
	assert.Equal(t, out.Result.RunID, run.RunID)
	assert.Equal(t, "MA_CROSS_3_5", run.StrategyID)
	assert.Len(t, run.ConfigHash, 64)
	assert.Equal(t, 29, run.Metrics.TradingDays)
	assert.Greater(t, run.Metrics.TotalReturn, 0.0)
	assert.Equal(t, time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC), run.CreatedAt)

	stored, err := s.runs.GetByID(ctx, run.RunID)
	require.NoError(t, err)
	assert.Equal(t, run.ConfigHash, stored.ConfigHash)

	trades, err := s.trades.GetByRunID(ctx, run.RunID)
	require.NoError(t, err)
	assert.Len(t, trades, len(out.Result.Trades))

	curve, err := s.curves.GetByRunID(ctx, run.RunID)
	require.NoError(t, err)
	assert.Len(t, curve, 29)
}

func TestRunner_Run_WarmupHistory(t *testing.T) {
	r, _ := newRunner(t)

	out, err := r.Run(context.Background(), Request{Config: testConfig(), Strategy: maCross(3, 5)})
	require.NoError(t, err)

	// With history before the start date the cross is visible on day one.
	require.NotEmpty(t, out.Result.Trades)
	first := out.Result.Trades[0]
	assert.Equal(t, date(time.February, 1), first.Date)
	assert.Equal(t, domain.SideBuy, first.Side)
}

func TestRunner_Run_PreloadedSeries(t *testing.T) {
	series, err := marketdata.NewSeries(risingBars())
	require.NoError(t, err)

	r := NewRunner(RunnerOptions{})
	out, err := r.Run(context.Background(), Request{
		Config: testConfig(),
		Strategy: domain.StrategyConfig{
			StrategyType: domain.StrategyTypeBuyAndHold,
			Universe:     []string{instrument},
		},
		Series: series,
	})
	require.NoError(t, err)
	require.Len(t, out.Result.Trades, 1)
	assert.Equal(t, 1, out.Run.Metrics.TradeCount)
}

func TestRunner_Run_ConfigHashIgnoresRunID(t *testing.T) {
	r, _ := newRunner(t)

	a, err := r.Run(context.Background(), Request{Config: testConfig(), Strategy: maCross(3, 5)})
	require.NoError(t, err)
	b, err := r.Run(context.Background(), Request{Config: testConfig(), Strategy: maCross(3, 5)})
	require.NoError(t, err)
	c, err := r.Run(context.Background(), Request{Config: testConfig(), Strategy: maCross(2, 5)})
	require.NoError(t, err)

	assert.NotEqual(t, a.Run.RunID, b.Run.RunID)
	assert.Equal(t, a.Run.ConfigHash, b.Run.ConfigHash)
	assert.NotEqual(t, a.Run.ConfigHash, c.Run.ConfigHash)
}

func TestRunner_Run_SingleDayHasNoMetrics(t *testing.T) {
	r, s := newRunner(t)
	cfg := testConfig()
	cfg.EndDate = cfg.StartDate

	out, err := r.Run(context.Background(), Request{Config: cfg, Strategy: maCross(3, 5)})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Run.Metrics.TradingDays)
	assert.True(t, out.Run.Metrics.InsufficientData)
	assert.Zero(t, out.Run.Metrics.SharpeRatio)
	assert.False(t, out.Run.Metrics.FinalEquity.IsZero())

	stored, err := s.runs.GetByID(context.Background(), out.Run.RunID)
	require.NoError(t, err)
	assert.True(t, stored.Metrics.InsufficientData)

	full, err := r.Run(context.Background(), Request{Config: testConfig(), Strategy: maCross(3, 5)})
	require.NoError(t, err)
	assert.False(t, full.Run.Metrics.InsufficientData)
}

func TestRunner_Run_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := NewRunner(RunnerOptions{}).Run(ctx, Request{Config: testConfig(), Strategy: maCross(3, 5)})
	assert.ErrorIs(t, err, ErrNoMarketData)

	r, _ := newRunner(t)
	_, err = r.Run(ctx, Request{Config: testConfig(), Strategy: domain.StrategyConfig{StrategyType: "MOMENTUM"}})
	assert.ErrorIs(t, err, strategy.ErrUnknownStrategyType)

	cfg := testConfig()
	cfg.LotSize = 0
	_, err = r.Run(ctx, Request{Config: cfg, Strategy: maCross(3, 5)})
	assert.ErrorIs(t, err, backtest.ErrInvalidConfiguration)

	// A fixed run ID can only be stored once.
	cfg = testConfig()
	cfg.RunID = "fixed"
	_, err = r.Run(ctx, Request{Config: cfg, Strategy: maCross(3, 5)})
	require.NoError(t, err)
	_, err = r.Run(ctx, Request{Config: cfg, Strategy: maCross(3, 5)})
	assert.Error(t, err)
}

func TestWarmupStart(t *testing.T) {
	start := date(time.March, 1)
	assert.Equal(t, start, warmupStart(start, 0))
	assert.Equal(t, start, warmupStart(start, -3))
	assert.Equal(t, date(time.January, 21), warmupStart(start, 15))

	assert.Equal(t, 0, lookbackOf(&strategy.BuyAndHoldStrategy{}))
	assert.Equal(t, 20, lookbackOf(&strategy.MACrossStrategy{SlowWindow: 20}))
}
