package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"ashare-quant-lab/internal/config"
	"ashare-quant-lab/internal/logging"
	"ashare-quant-lab/internal/orchestrator"
	"ashare-quant-lab/internal/verification"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "YAML config file (storage, data and cost sections)")
	runID := flag.String("run-id", "", "Stored run to report on (required)")
	outputDir := flag.String("output-dir", "reports", "Output directory for generated files")
	verify := flag.Bool("verify", false, "Replay the stored trade log before reporting")
	recompute := flag.Bool("recompute", false, "Recompute metrics with the config's metrics section")
	flag.Parse()

	if *runID == "" {
		fmt.Fprintln(os.Stderr, "Error: --run-id is required")
		os.Exit(1)
	}

	cfg, err := config.Read(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if cfg.Storage.Backend != "postgres" {
		fmt.Fprintln(os.Stderr, "Error: reports read stored runs; set storage.backend to postgres")
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.JSON)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger, *runID, *outputDir, *verify, *recompute); err != nil {
		logger.Error("report failed", zap.String("run_id", *runID), zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, runID, outputDir string, verify, recompute bool) error {
	stores, err := orchestrator.OpenStores(ctx, cfg, orchestrator.StoreOptions{Logger: logger})
	if err != nil {
		return err
	}
	defer stores.Close()

	orch := orchestrator.New(orchestrator.Options{Stores: stores, Logger: logger})

	if verify {
		costs, err := cfg.CostConfig()
		if err != nil {
			return err
		}
		series, err := orchestrator.LoadSeries(cfg)
		if err != nil {
			return err
		}
		report, err := orch.Verify(ctx, runID, costs, series)
		if err != nil {
			return err
		}
		printVerification(report)
		if !report.Match() {
			return orchestrator.ErrVerificationFailed
		}
	}

	if recompute {
		opts := cfg.MetricsOptions()
		m, err := orch.Metrics(ctx, runID, opts)
		if err != nil {
			return err
		}
		fmt.Printf("Metrics (risk-free %.4f, %d days/year):\n", opts.RiskFreeRate, opts.TradingDaysPerYear)
		fmt.Printf("  Total Return:     %.2f%%\n", m.TotalReturn*100)
		fmt.Printf("  Sharpe:           %.4f\n", m.SharpeRatio)
		fmt.Printf("  Sortino:          %.4f\n", m.SortinoRatio)
		fmt.Printf("  Max Drawdown:     %.2f%%\n", m.MaxDrawdown*100)
		fmt.Printf("  Calmar:           %.4f\n", m.CalmarRatio)
	}

	files, err := orch.Report(ctx, runID, outputDir)
	if err != nil {
		return fmt.Errorf("report %s: %w", runID, err)
	}

	fmt.Println("Report generated successfully:")
	for _, f := range files {
		fmt.Printf("  - %s\n", f)
	}
	return nil
}

func printVerification(r *verification.VerificationReport) {
	fmt.Printf("Verification of %s:\n", r.RunID)
	fmt.Printf("  Trades:           %d/%d match\n", r.MatchedTrades, r.TotalTrades)
	fmt.Printf("  Curve Points:     %d/%d match\n", r.MatchedPoints, r.TotalPoints)
	fmt.Printf("  Invariant Breaks: %d\n", r.InvariantBreaks)
	for _, d := range r.Divergences {
		fmt.Printf("  %s %s: stored=%v replayed=%v\n", d.Ref, d.Field, d.Expected, d.Actual)
	}
}
