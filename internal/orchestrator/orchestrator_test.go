package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ashare-quant-lab/internal/backtest"
	"ashare-quant-lab/internal/config"
	"ashare-quant-lab/internal/cost"
	"ashare-quant-lab/internal/domain"
	"ashare-quant-lab/internal/marketdata"
	"ashare-quant-lab/internal/metrics"
	"ashare-quant-lab/internal/simulation"
	"ashare-quant-lab/internal/storage"
	"ashare-quant-lab/internal/verification"
)

const instrument = "000001.SZ"

var fixedNow = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func date(month time.Month, d int) time.Time {
	return time.Date(2024, month, d, 0, 0, 0, 0, time.UTC)
}

// bars returns weekday bars through February with a slowly rising close.
func bars() []*domain.Bar {
	var out []*domain.Bar
	price := decimal.NewFromInt(20)
	step := decimal.RequireFromString("0.05")
	for t := date(time.February, 1); !t.After(date(time.February, 29)); t = t.AddDate(0, 0, 1) {
		if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
			continue
		}
		out = append(out, &domain.Bar{
			InstrumentID: instrument,
			Date:         t,
			Open:         price,
			High:         price.Add(step),
			Low:          price,
			Close:        price.Add(step),
			Volume:       50000,
		})
		price = price.Add(step)
	}
	return out
}

func request() simulation.Request {
	costs, _ := cost.Scenario(cost.ScenarioRealistic)
	return simulation.Request{
		Config: backtest.Config{
			InitialCapital: decimal.NewFromInt(500000),
			StartDate:      date(time.February, 1),
			EndDate:        date(time.February, 29),
			Universe:       []string{instrument},
			ExecutionMode:  backtest.ExecutionNextOpen,
			GapPolicy:      backtest.GapSkip,
			LotSize:        100,
			Costs:          costs,
		},
		Strategy: domain.StrategyConfig{
			StrategyType: domain.StrategyTypeBuyAndHold,
			Universe:     []string{instrument},
		},
	}
}

func newOrchestrator(t *testing.T) (*Orchestrator, *Stores) {
	t.Helper()
	s := MemoryStores()
	require.NoError(t, s.Bars.InsertBulk(context.Background(), bars()))
	return New(Options{Stores: s, Clock: func() time.Time { return fixedNow }}), s
}

func TestBacktest_AllPhases(t *testing.T) {
	ctx := context.Background()
	o, s := newOrchestrator(t)
	dir := t.TempDir()

	res, err := o.Backtest(ctx, request(), BacktestOptions{Verify: true, ReportDir: dir})
	require.NoError(t, err)

	runID := res.Outcome.Run.RunID
	require.NotNil(t, res.Verification)
	assert.True(t, res.Verification.Match())
	assert.Equal(t, 1, res.Verification.TotalTrades)
	require.Len(t, res.ReportFiles, 3)
	for _, f := range res.ReportFiles {
		assert.Equal(t, dir, filepath.Dir(f))
		_, err := os.Stat(f)
		assert.NoError(t, err)
	}

	stored, err := s.Runs.GetByID(ctx, runID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stored.StrategyID, "BUY_AND_HOLD"))
	assert.Equal(t, fixedNow, stored.CreatedAt)
}

func TestBacktest_SimulationOnly(t *testing.T) {
	o, _ := newOrchestrator(t)

	res, err := o.Backtest(context.Background(), request(), BacktestOptions{})
	require.NoError(t, err)
	assert.Nil(t, res.Verification)
	assert.Empty(t, res.ReportFiles)
}

func TestBacktest_SimulationError(t *testing.T) {
	o, _ := newOrchestrator(t)
	req := request()
	req.Strategy.StrategyType = "MOMENTUM"

	_, err := o.Backtest(context.Background(), req, BacktestOptions{Verify: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "phase 1")
}

func TestVerify_StoredRun(t *testing.T) {
	ctx := context.Background()
	o, _ := newOrchestrator(t)
	req := request()

	res, err := o.Backtest(ctx, req, BacktestOptions{})
	require.NoError(t, err)
	runID := res.Outcome.Run.RunID

	t.Run("same costs reproduce the run", func(t *testing.T) {
		report, err := o.Verify(ctx, runID, req.Config.Costs, nil)
		require.NoError(t, err)
		assert.True(t, report.Match(), "divergences: %v", report.Divergences)
	})

	t.Run("different costs diverge", func(t *testing.T) {
		zero, _ := cost.Scenario(cost.ScenarioZero)
		report, err := o.Verify(ctx, runID, zero, nil)
		require.NoError(t, err)
		assert.False(t, report.Match())
		assert.NotEmpty(t, report.Divergences)
	})

	t.Run("missing run", func(t *testing.T) {
		_, err := o.Verify(ctx, "nope", req.Config.Costs, nil)
		assert.ErrorIs(t, err, verification.ErrRunNotFound)
	})
}

func TestMetrics_Recompute(t *testing.T) {
	ctx := context.Background()
	o, _ := newOrchestrator(t)

	res, err := o.Backtest(ctx, request(), BacktestOptions{})
	require.NoError(t, err)
	runID := res.Outcome.Run.RunID

	same, err := o.Metrics(ctx, runID, metrics.Options{})
	require.NoError(t, err)
	assert.InDelta(t, res.Outcome.Run.Metrics.SharpeRatio, same.SharpeRatio, 1e-12)
	assert.Equal(t, res.Outcome.Run.Metrics.TradeCount, same.TradeCount)

	withRate, err := o.Metrics(ctx, runID, metrics.Options{RiskFreeRate: 0.02})
	require.NoError(t, err)
	assert.Less(t, withRate.SharpeRatio, same.SharpeRatio)

	_, err = o.Metrics(ctx, "missing", metrics.Options{})
	assert.ErrorIs(t, err, metrics.ErrNoEquityCurve)
}

func TestVerify_NoBarSource(t *testing.T) {
	s := MemoryStores()
	s.Bars = nil
	o := New(Options{Stores: s})

	_, err := o.Verify(context.Background(), "run", request().Config.Costs, nil)
	assert.ErrorIs(t, err, simulation.ErrNoMarketData)
}

func TestReport_MissingRun(t *testing.T) {
	o, _ := newOrchestrator(t)

	_, err := o.Report(context.Background(), "missing", t.TempDir())
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestOpenStores_MemoryAndCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bars.csv")
	require.NoError(t, os.WriteFile(path, []byte(marketdata.RenderCSV(bars())), 0o644))

	cfg := config.Default()
	cfg.Data.Source = "csv"
	cfg.Data.CSVPath = path

	s, err := OpenStores(context.Background(), &cfg, StoreOptions{})
	require.NoError(t, err)
	defer s.Close()
	assert.Nil(t, s.Bars)
	assert.NotNil(t, s.Runs)

	series, err := LoadSeries(&cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{instrument}, series.Instruments())

	cfg.Data.Source = "memory"
	series, err = LoadSeries(&cfg)
	require.NoError(t, err)
	assert.Nil(t, series)
}

func TestBacktest_FromCSVSeries(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "bars.csv")
	require.NoError(t, os.WriteFile(path, []byte(marketdata.RenderCSV(bars())), 0o644))

	cfg := config.Default()
	cfg.Data.CSVPath = path
	s, err := OpenStores(ctx, &cfg, StoreOptions{})
	require.NoError(t, err)
	defer s.Close()

	series, err := LoadSeries(&cfg)
	require.NoError(t, err)

	req := request()
	req.Series = series
	res, err := New(Options{Stores: s}).Backtest(ctx, req, BacktestOptions{Verify: true})
	require.NoError(t, err)
	assert.True(t, res.Verification.Match())
}
