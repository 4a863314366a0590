package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"ashare-quant-lab/internal/config"
	"ashare-quant-lab/internal/domain"
	"ashare-quant-lab/internal/logging"
	"ashare-quant-lab/internal/observability"
	"ashare-quant-lab/internal/orchestrator"
	"ashare-quant-lab/internal/reporting"
	"ashare-quant-lab/internal/simulation"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "YAML config file")
	strategyType := flag.String("strategy", "", "Strategy: BUY_AND_HOLD, MA_CROSS, ORDER_LIST (overrides config)")
	fastWindow := flag.Int("fast", 0, "MA_CROSS fast window (overrides config)")
	slowWindow := flag.Int("slow", 0, "MA_CROSS slow window (overrides config)")
	start := flag.String("start", "", "First simulated day, YYYY-MM-DD (overrides config)")
	end := flag.String("end", "", "Last simulated day, YYYY-MM-DD (overrides config)")
	universe := flag.String("universe", "", "Comma-separated instrument IDs (overrides config)")
	scenario := flag.String("scenario", "", "Cost scenario: zero, realistic, pessimistic, pre_2023 (overrides config)")
	csvPath := flag.String("csv", "", "Daily bar CSV file (implies data source csv)")

	// Storage
	persist := flag.Bool("persist", false, "Persist results to the configured storage backend")
	migrate := flag.Bool("migrate", false, "Apply database migrations before running")

	// Output
	outputJSON := flag.Bool("json", false, "Output as JSON")
	reportDir := flag.String("report-dir", "", "Write markdown and CSV reports to this directory")
	verify := flag.Bool("verify", false, "Replay the trade log and check it reproduces the run")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (empty to disable)")

	flag.Parse()

	cfg, err := config.Read(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	applyFlags(cfg, flagOverrides{
		strategy: *strategyType,
		fast:     *fastWindow,
		slow:     *slowWindow,
		start:    *start,
		end:      *end,
		universe: *universe,
		scenario: *scenario,
		csvPath:  *csvPath,
		persist:  *persist,
	})
	if *metricsAddr != "" {
		cfg.Server.MetricsAddr = *metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.JSON)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// Create context with cancellation
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Server.MetricsAddr != "" {
		go func() {
			if err := observability.Serve(ctx, cfg.Server.MetricsAddr, logger); err != nil {
				logger.Error("metrics server", zap.Error(err))
			}
		}()
	}

	if err := run(ctx, cfg, logger, runFlags{
		migrate:   *migrate,
		verify:    *verify,
		reportDir: *reportDir,
		json:      *outputJSON,
	}); err != nil {
		logger.Error("backtest failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(exitCode(err))
	}
}

type runFlags struct {
	migrate   bool
	verify    bool
	reportDir string
	json      bool
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, f runFlags) error {
	btCfg, err := cfg.BacktestConfig()
	if err != nil {
		return err
	}
	stratCfg, err := cfg.StrategyConfig()
	if err != nil {
		return err
	}

	stores, err := orchestrator.OpenStores(ctx, cfg, orchestrator.StoreOptions{Migrate: f.migrate, Logger: logger})
	if err != nil {
		return err
	}
	defer stores.Close()

	series, err := orchestrator.LoadSeries(cfg)
	if err != nil {
		return err
	}

	orch := orchestrator.New(orchestrator.Options{Stores: stores, Logger: logger})
	res, err := orch.Backtest(ctx, simulation.Request{
		Config:   btCfg,
		Strategy: stratCfg,
		Metrics:  cfg.MetricsOptions(),
		Series:   series,
	}, orchestrator.BacktestOptions{Verify: f.verify, ReportDir: f.reportDir})
	if res != nil && res.Outcome != nil {
		if printErr := printResult(res, f.json); printErr != nil {
			return printErr
		}
	}
	return err
}

type flagOverrides struct {
	strategy   string
	fast, slow int
	start, end string
	universe   string
	scenario   string
	csvPath    string
	persist    bool
}

// applyFlags layers non-zero flag values over cfg.
func applyFlags(cfg *config.Config, o flagOverrides) {
	if o.strategy != "" {
		cfg.Strategy.Type = strings.ToUpper(o.strategy)
	}
	if o.fast > 0 {
		cfg.Strategy.FastWindow = o.fast
	}
	if o.slow > 0 {
		cfg.Strategy.SlowWindow = o.slow
	}
	if o.start != "" {
		cfg.Backtest.Start = o.start
	}
	if o.end != "" {
		cfg.Backtest.End = o.end
	}
	if o.universe != "" {
		var ids []string
		for _, id := range strings.Split(o.universe, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		cfg.Backtest.Universe = ids
	}
	if o.scenario != "" {
		cfg.Costs.Scenario = o.scenario
	}
	if o.csvPath != "" {
		cfg.Data.Source = "csv"
		cfg.Data.CSVPath = o.csvPath
	}
	if o.persist {
		cfg.Storage.Persist = true
	}
	if !cfg.Storage.Persist {
		cfg.Storage.Backend = "memory"
	}
}

// output is the JSON shape of a finished run.
type output struct {
	Run         *domain.BacktestRun   `json:"run"`
	Trades      []*domain.TradeRecord `json:"trades"`
	Rejections  int                   `json:"rejections"`
	SkippedDays []string              `json:"skipped_days,omitempty"`
	Verified    *bool                 `json:"verified,omitempty"`
	ReportFiles []string              `json:"report_files,omitempty"`
}

func printResult(res *orchestrator.BacktestResult, asJSON bool) error {
	out := res.Outcome
	if asJSON {
		o := output{
			Run:         out.Run,
			Trades:      out.Result.Trades,
			Rejections:  len(out.Result.Rejections),
			ReportFiles: res.ReportFiles,
		}
		for _, d := range out.Result.SkippedDays {
			o.SkippedDays = append(o.SkippedDays, d.Format(domain.DateLayout))
		}
		if res.Verification != nil {
			ok := res.Verification.Match()
			o.Verified = &ok
		}
		b, err := json.MarshalIndent(o, "", "  ")
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		fmt.Println(string(b))
		return nil
	}
	printRun(res)
	return nil
}

// printRun outputs a human-readable run summary.
func printRun(res *orchestrator.BacktestResult) {
	run := res.Outcome.Run
	m := run.Metrics

	fmt.Println()
	fmt.Println("=== Backtest Result ===")
	fmt.Printf("Run ID:             %s\n", run.RunID)
	fmt.Printf("Strategy:           %s\n", run.StrategyID)
	fmt.Printf("Config Hash:        %s\n", run.ConfigHash)
	fmt.Printf("Period:             %s .. %s\n", run.StartDate.Format(domain.DateLayout), run.EndDate.Format(domain.DateLayout))
	fmt.Printf("Initial Capital:    %s\n", run.InitialCapital.StringFixed(2))
	fmt.Printf("Final Equity:       %s\n", m.FinalEquity.StringFixed(2))
	fmt.Println()

	na := m.InsufficientData
	fmt.Println("Performance:")
	if na {
		fmt.Println("  (too few trading days for ratio metrics)")
	}
	fmt.Printf("  Total Return:     %s\n", reporting.FormatRatio(m.TotalReturn*100, na, "%.2f%%"))
	fmt.Printf("  Annual Return:    %s\n", reporting.FormatRatio(m.AnnualizedReturn*100, na, "%.2f%%"))
	fmt.Printf("  Annual Vol:       %s\n", reporting.FormatRatio(m.AnnualizedVolatility*100, na, "%.2f%%"))
	fmt.Printf("  Sharpe:           %s\n", reporting.FormatRatio(m.SharpeRatio, na, "%.4f"))
	fmt.Printf("  Sortino:          %s\n", reporting.FormatRatio(m.SortinoRatio, na, "%.4f"))
	fmt.Printf("  Max Drawdown:     %s\n", reporting.FormatRatio(m.MaxDrawdown*100, na, "%.2f%%"))
	fmt.Printf("  Calmar:           %s\n", reporting.FormatRatio(m.CalmarRatio, na, "%.4f"))
	fmt.Println()

	fmt.Println("Trading:")
	fmt.Printf("  Trades:           %d (%d closed)\n", m.TradeCount, m.ClosedTrades)
	fmt.Printf("  Win Rate:         %s\n", reporting.FormatRatio(m.WinRate*100, na, "%.2f%%"))
	fmt.Printf("  Profit Factor:    %s\n", reporting.FormatRatio(m.ProfitFactor, na, "%.4f"))
	fmt.Printf("  Total Costs:      %s\n", m.TotalCosts.StringFixed(2))
	fmt.Printf("  Rejected Orders:  %d\n", run.RejectionCount)
	fmt.Printf("  Trading Days:     %d (%d skipped)\n", m.TradingDays, len(res.Outcome.Result.SkippedDays))

	if v := res.Verification; v != nil {
		fmt.Println()
		status := "PASS"
		if !v.Match() {
			status = "FAIL"
		}
		fmt.Printf("Verification:       %s (%d/%d trades, %d/%d points)\n",
			status, v.MatchedTrades, v.TotalTrades, v.MatchedPoints, v.TotalPoints)
	}
	for _, f := range res.ReportFiles {
		fmt.Printf("Report:             %s\n", f)
	}
}

// exitCode maps run errors to process exit codes.
func exitCode(err error) int {
	if errors.Is(err, orchestrator.ErrVerificationFailed) {
		return 2
	}
	return 1
}
