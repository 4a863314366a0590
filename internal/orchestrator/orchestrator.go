// Package orchestrator coordinates a complete run:
// simulation → verification → reporting
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ashare-quant-lab/internal/cost"
	"ashare-quant-lab/internal/domain"
	"ashare-quant-lab/internal/marketdata"
	"ashare-quant-lab/internal/metrics"
	"ashare-quant-lab/internal/reporting"
	"ashare-quant-lab/internal/simulation"
	"ashare-quant-lab/internal/storage"
	"ashare-quant-lab/internal/verification"
)

// ErrVerificationFailed is returned when a run does not reproduce from its own log.
var ErrVerificationFailed = errors.New("run failed replay verification")

// Orchestrator runs backtests and produces their verification and reports.
type Orchestrator struct {
	stores    *Stores
	runner    *simulation.Runner
	verifier  *verification.ReplayVerifier
	generator *reporting.Generator
	logger    *zap.Logger
}

// Options for creating Orchestrator.
type Options struct {
	Stores *Stores
	Logger *zap.Logger
	Clock  func() time.Time // defaults to time.Now().UTC()
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := opts.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	s := opts.Stores
	if s == nil {
		s = MemoryStores()
	}

	return &Orchestrator{
		stores: s,
		runner: simulation.NewRunner(simulation.RunnerOptions{
			BarStore:           s.Bars,
			RunStore:           s.Runs,
			TradeRecordStore:   s.Trades,
			EquityCurveStore:   s.Curves,
			RejectedTradeStore: s.Rejections,
			Logger:             logger,
			Clock:              clock,
		}),
		verifier: verification.NewReplayVerifier(verification.ReplayVerifierOptions{
			RunStore:   s.Runs,
			TradeStore: s.Trades,
			CurveStore: s.Curves,
		}),
		generator: reporting.NewGenerator(s.Runs, s.Trades, s.Curves, s.Rejections).WithClock(clock),
		logger:    logger,
	}
}

// Runner exposes the simulation runner, for sweeps sharing the same stores.
func (o *Orchestrator) Runner() *simulation.Runner {
	return o.runner
}

// BacktestOptions selects the optional phases after simulation.
type BacktestOptions struct {
	Verify    bool
	ReportDir string // empty skips report files
}

// BacktestResult contains results from orchestrator execution.
type BacktestResult struct {
	Outcome      *simulation.Outcome
	Verification *verification.VerificationReport
	ReportFiles  []string
}

// Backtest executes the pipeline.
// Phases:
//  1. Simulate and persist
//  2. Replay the trade log against the bars it was produced from
//  3. Render report files
func (o *Orchestrator) Backtest(ctx context.Context, req simulation.Request, opts BacktestOptions) (*BacktestResult, error) {
	// Phase 1: Simulation
	out, err := o.runner.Run(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("phase 1 (simulation) failed: %w", err)
	}
	result := &BacktestResult{Outcome: out}
	logger := o.logger.With(zap.String("run_id", out.Run.RunID))

	// Phase 2: Verification
	if opts.Verify {
		model, err := cost.NewModel(req.Config.Costs)
		if err != nil {
			return nil, fmt.Errorf("phase 2 (verification) failed: %w", err)
		}
		res := out.Result
		report, err := verification.VerifyRun(out.Run.RunID, req.Config.InitialCapital, model, res.Trades, res.Curve, out.Series)
		if err != nil {
			return nil, fmt.Errorf("phase 2 (verification) failed: %w", err)
		}
		result.Verification = report
		if !report.Match() {
			logger.Error("verification mismatch", zap.Int("divergences", len(report.Divergences)))
			return result, ErrVerificationFailed
		}
		logger.Info("verification passed",
			zap.Int("trades", report.TotalTrades),
			zap.Int("points", report.TotalPoints),
		)
	}

	// Phase 3: Reporting
	if opts.ReportDir != "" {
		files, err := o.writeReport(ctx, out.Run.RunID, opts.ReportDir)
		if err != nil {
			return result, fmt.Errorf("phase 3 (reporting) failed: %w", err)
		}
		result.ReportFiles = files
	}

	return result, nil
}

// Report renders the stored run into dir.
func (o *Orchestrator) Report(ctx context.Context, runID, dir string) ([]string, error) {
	return o.writeReport(ctx, runID, dir)
}

// Verify replays a stored run under costs. Holdings are valued from series,
// or from the bar store when series is nil.
func (o *Orchestrator) Verify(ctx context.Context, runID string, costs cost.Config, series *marketdata.Series) (*verification.VerificationReport, error) {
	model, err := cost.NewModel(costs)
	if err != nil {
		return nil, err
	}
	if series == nil {
		if series, err = o.seriesForRun(ctx, runID); err != nil {
			return nil, err
		}
	}
	return o.verifier.VerifyStoredRun(ctx, runID, model, series)
}

// seriesForRun loads bars for every instrument the run traded.
func (o *Orchestrator) seriesForRun(ctx context.Context, runID string) (*marketdata.Series, error) {
	if o.stores.Bars == nil {
		return nil, simulation.ErrNoMarketData
	}
	run, err := o.stores.Runs.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, verification.ErrRunNotFound
		}
		return nil, err
	}
	trades, err := o.stores.Trades.GetByRunID(ctx, runID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var instruments []string
	for _, t := range trades {
		if !seen[t.InstrumentID] {
			seen[t.InstrumentID] = true
			instruments = append(instruments, t.InstrumentID)
		}
	}
	return marketdata.Load(ctx, o.stores.Bars, instruments, run.StartDate, run.EndDate)
}

// Metrics recomputes a stored run's performance under opts, e.g. a
// different risk-free rate than the run used.
func (o *Orchestrator) Metrics(ctx context.Context, runID string, opts metrics.Options) (*domain.PerformanceMetrics, error) {
	return metrics.NewAggregator(o.stores.Trades, o.stores.Curves, opts).ComputeRun(ctx, runID)
}

func (o *Orchestrator) writeReport(ctx context.Context, runID, dir string) ([]string, error) {
	report, err := o.generator.Generate(ctx, runID)
	if err != nil {
		return nil, err
	}
	curve, err := o.stores.Curves.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load equity curve: %w", err)
	}
	trades, err := o.stores.Trades.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load trades: %w", err)
	}

	files, err := reporting.WriteFiles(dir, report, curve, trades)
	if err != nil {
		return nil, err
	}
	o.logger.Info("report written", zap.String("run_id", runID), zap.Strings("files", files))
	return files, nil
}
