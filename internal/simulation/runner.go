// Package simulation wires market data, a strategy, the backtest engine,
// performance analysis and persistence into one call.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ashare-quant-lab/internal/backtest"
	"ashare-quant-lab/internal/domain"
	"ashare-quant-lab/internal/idhash"
	"ashare-quant-lab/internal/marketdata"
	"ashare-quant-lab/internal/metrics"
	"ashare-quant-lab/internal/observability"
	"ashare-quant-lab/internal/storage"
	"ashare-quant-lab/internal/strategy"
)

// Runner errors
var (
	ErrNoMarketData = errors.New("no market data source: set Request.Series or RunnerOptions.BarStore")
)

// Runner executes complete backtests.
type Runner struct {
	barStore       storage.BarStore
	runStore       storage.BacktestRunStore
	tradeStore     storage.TradeRecordStore
	curveStore     storage.EquityCurveStore
	rejectionStore storage.RejectedTradeStore
	engine         *backtest.Engine
	logger         *zap.Logger
	clock          func() time.Time
}

// RunnerOptions contains configuration for creating a Runner.
// Nil stores are skipped when persisting.
type RunnerOptions struct {
	BarStore           storage.BarStore
	RunStore           storage.BacktestRunStore
	TradeRecordStore   storage.TradeRecordStore
	EquityCurveStore   storage.EquityCurveStore
	RejectedTradeStore storage.RejectedTradeStore
	Logger             *zap.Logger
	Clock              func() time.Time
}

// NewRunner creates a simulation runner.
func NewRunner(opts RunnerOptions) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := opts.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Runner{
		barStore:       opts.BarStore,
		runStore:       opts.RunStore,
		tradeStore:     opts.TradeRecordStore,
		curveStore:     opts.EquityCurveStore,
		rejectionStore: opts.RejectedTradeStore,
		engine:         backtest.NewEngine(logger),
		logger:         logger,
		clock:          clock,
	}
}

// Request describes one backtest.
type Request struct {
	Config   backtest.Config
	Strategy domain.StrategyConfig
	Metrics  metrics.Options

	// Series is used as-is when set. Otherwise bars are loaded from the
	// BarStore, including a warm-up period for strategies with a lookback.
	Series *marketdata.Series
}

// Outcome is the persisted summary plus the raw engine output.
type Outcome struct {
	Run    *domain.BacktestRun
	Result *backtest.Result
	Series *marketdata.Series // bars the run was simulated on
}

// Run executes a backtest.
// Steps:
//  1. Build strategy via strategy.FromConfig
//  2. Load market data (with warm-up)
//  3. Run the day loop
//  4. Analyze performance
//  5. Persist trades, curve, rejections, then the run summary
func (r *Runner) Run(ctx context.Context, req Request) (*Outcome, error) {
	// 1. Build strategy via factory
	strat, err := strategy.FromConfig(req.Strategy)
	if err != nil {
		return nil, err
	}
	if err := req.Config.Validate(); err != nil {
		return nil, err
	}

	// 2. Load market data
	series := req.Series
	if series == nil {
		if r.barStore == nil {
			return nil, ErrNoMarketData
		}
		from := warmupStart(req.Config.StartDate, lookbackOf(strat))
		series, err = marketdata.Load(ctx, r.barStore, req.Config.Universe, from, req.Config.EndDate)
		if err != nil {
			return nil, fmt.Errorf("load bars: %w", err)
		}
	}

	// 3. Run the day loop
	res, err := r.engine.Run(ctx, series, strat, req.Config)
	if err != nil {
		return nil, err
	}

	// 4. Analyze performance
	perf, err := metrics.AnalyzePerformance(res.Curve, res.Trades, req.Metrics)
	switch {
	case errors.Is(err, metrics.ErrInsufficientDataForMetrics):
		r.logger.Warn("metrics unavailable", zap.String("run_id", res.RunID), zap.Error(err))
		perf = &domain.PerformanceMetrics{
			TradeCount:       len(res.Trades),
			TradingDays:      len(res.Curve),
			FinalEquity:      finalEquity(req.Config, res),
			InsufficientData: true,
		}
	case err != nil:
		return nil, err
	}

	run := &domain.BacktestRun{
		RunID:          res.RunID,
		StrategyID:     strat.ID(),
		ConfigHash:     idhash.ComputeConfigHash(ConfigParams(req.Config, strat.ID())),
		StartDate:      domain.Day(req.Config.StartDate),
		EndDate:        domain.Day(req.Config.EndDate),
		InitialCapital: req.Config.InitialCapital,
		Metrics:        *perf,
		RejectionCount: len(res.Rejections),
		CreatedAt:      r.clock(),
	}

	// 5. Persist
	if err := r.persist(ctx, run, res); err != nil {
		return nil, err
	}

	observability.RecordResult(perf.FinalEquity.InexactFloat64(), perf.SharpeRatio, run.CreatedAt.Unix())
	r.logger.Info("run complete",
		zap.String("run_id", run.RunID),
		zap.String("strategy", run.StrategyID),
		zap.Float64("total_return", perf.TotalReturn),
		zap.Float64("sharpe", perf.SharpeRatio),
		zap.Float64("max_drawdown", perf.MaxDrawdown),
	)

	return &Outcome{Run: run, Result: res, Series: series}, nil
}

// persist writes the run summary last so a stored summary implies a complete log.
func (r *Runner) persist(ctx context.Context, run *domain.BacktestRun, res *backtest.Result) error {
	if r.tradeStore != nil && len(res.Trades) > 0 {
		if err := r.tradeStore.InsertBulk(ctx, res.Trades); err != nil {
			return fmt.Errorf("persist trades: %w", err)
		}
	}
	if r.curveStore != nil && len(res.Curve) > 0 {
		if err := r.curveStore.InsertBulk(ctx, res.RunID, res.Curve); err != nil {
			return fmt.Errorf("persist equity curve: %w", err)
		}
	}
	if r.rejectionStore != nil && len(res.Rejections) > 0 {
		if err := r.rejectionStore.InsertBulk(ctx, res.Rejections); err != nil {
			return fmt.Errorf("persist rejections: %w", err)
		}
	}
	if r.runStore != nil {
		if err := r.runStore.Insert(ctx, run); err != nil {
			return fmt.Errorf("persist run: %w", err)
		}
	}
	return nil
}

// ConfigParams flattens everything that determines a run's outcome.
// Equal params give equal config hashes.
func ConfigParams(cfg backtest.Config, strategyID string) map[string]string {
	universe := append([]string(nil), cfg.Universe...)
	sort.Strings(universe)

	p := map[string]string{
		"strategy":        strategyID,
		"initial_capital": cfg.InitialCapital.String(),
		"start":           domain.Day(cfg.StartDate).Format(domain.DateLayout),
		"end":             domain.Day(cfg.EndDate).Format(domain.DateLayout),
		"universe":        strings.Join(universe, ","),
		"execution_mode":  string(cfg.ExecutionMode),
		"gap_policy":      string(cfg.GapPolicy),
		"lot_size":        fmt.Sprintf("%d", cfg.LotSize),
		"commission_rate": cfg.Costs.CommissionRate.String(),
		"min_commission":  cfg.Costs.MinCommission.String(),
		"stamp_tax_rate":  cfg.Costs.StampTaxRate.String(),
		"slippage_rate":   cfg.Costs.SlippageRate.String(),
	}
	for venue, rate := range cfg.Costs.TransferFeeRates {
		p["transfer_fee_"+string(venue)] = rate.String()
	}
	if len(cfg.Calendar) > 0 {
		days := make([]string, len(cfg.Calendar))
		for i, d := range cfg.Calendar {
			days[i] = domain.Day(d).Format(domain.DateLayout)
		}
		sort.Strings(days)
		p["calendar"] = strings.Join(days, ",")
	}
	return p
}

func finalEquity(cfg backtest.Config, res *backtest.Result) decimal.Decimal {
	if len(res.Curve) == 0 {
		return cfg.InitialCapital
	}
	return res.Curve[len(res.Curve)-1].TotalEquity
}
