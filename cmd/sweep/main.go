package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
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
	"ashare-quant-lab/internal/sweep"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "YAML config file")
	fast := flag.String("fast", "", "Comma-separated MA_CROSS fast windows (overrides config)")
	slow := flag.String("slow", "", "Comma-separated MA_CROSS slow windows (overrides config)")
	parallelism := flag.Int("parallelism", 0, "Concurrent runs (overrides config)")
	csvPath := flag.String("csv", "", "Daily bar CSV file (implies data source csv)")
	persist := flag.Bool("persist", false, "Persist every run to the configured storage backend")
	migrate := flag.Bool("migrate", false, "Apply database migrations before running")
	top := flag.Int("top", 10, "Print the N best runs (0 for all)")
	outputJSON := flag.Bool("json", false, "Output as JSON")
	outputDir := flag.String("output-dir", "", "Write the ranked comparison CSV to this directory")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (empty to disable)")
	flag.Parse()

	cfg, err := config.Read(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := applyFlags(cfg, *fast, *slow, *parallelism, *csvPath, *persist, *metricsAddr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
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

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Server.MetricsAddr != "" {
		go func() {
			if err := observability.Serve(ctx, cfg.Server.MetricsAddr, logger); err != nil {
				logger.Error("metrics server", zap.Error(err))
			}
		}()
	}

	rows, err := run(ctx, cfg, logger, *migrate)
	if err != nil {
		logger.Fatal("sweep failed", zap.Error(err))
	}

	if *outputDir != "" {
		if err := os.MkdirAll(*outputDir, 0o755); err != nil {
			logger.Fatal("create output dir", zap.Error(err))
		}
		path := filepath.Join(*outputDir, "sweep_ranking.csv")
		if err := os.WriteFile(path, []byte(reporting.RenderComparisonCSV(rows)), 0o644); err != nil {
			logger.Fatal("write ranking", zap.Error(err))
		}
		logger.Info("ranking written", zap.String("path", path))
	}

	if *top > 0 && len(rows) > *top {
		rows = rows[:*top]
	}
	if *outputJSON {
		b, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			logger.Fatal("encode result", zap.Error(err))
		}
		fmt.Println(string(b))
		return
	}
	printRanking(rows)
}

// run executes the configured grid and returns the ranked rows.
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, migrate bool) ([]reporting.RunComparisonRow, error) {
	btCfg, err := cfg.BacktestConfig()
	if err != nil {
		return nil, err
	}

	stores, err := orchestrator.OpenStores(ctx, cfg, orchestrator.StoreOptions{Migrate: migrate, Logger: logger})
	if err != nil {
		return nil, err
	}
	defer stores.Close()

	series, err := orchestrator.LoadSeries(cfg)
	if err != nil {
		return nil, err
	}

	stratCfg, err := cfg.StrategyConfig()
	if err != nil {
		return nil, err
	}
	grid := sweep.MACrossGrid(btCfg.Universe, cfg.Sweep.FastWindows, cfg.Sweep.SlowWindows)
	for i := range grid {
		grid[i].InvestFraction = stratCfg.InvestFraction
	}
	logger.Info("starting sweep",
		zap.Int("runs", len(grid)),
		zap.Int("parallelism", cfg.Sweep.Parallelism),
	)

	orch := orchestrator.New(orchestrator.Options{Stores: stores, Logger: logger})
	s := sweep.New(orch.Runner(), sweep.Options{Parallelism: cfg.Sweep.Parallelism, Logger: logger})
	outcomes, err := s.Run(ctx, simulation.Request{
		Config:  btCfg,
		Metrics: cfg.MetricsOptions(),
		Series:  series,
	}, grid)
	if err != nil {
		return nil, err
	}

	rows := make([]reporting.RunComparisonRow, 0, len(outcomes))
	for _, out := range outcomes {
		rows = append(rows, reporting.ComparisonRow(out.Run))
	}
	return rows, nil
}

func applyFlags(cfg *config.Config, fast, slow string, parallelism int, csvPath string, persist bool, metricsAddr string) error {
	if fast != "" {
		w, err := parseWindows(fast)
		if err != nil {
			return fmt.Errorf("--fast: %w", err)
		}
		cfg.Sweep.FastWindows = w
	}
	if slow != "" {
		w, err := parseWindows(slow)
		if err != nil {
			return fmt.Errorf("--slow: %w", err)
		}
		cfg.Sweep.SlowWindows = w
	}
	if parallelism > 0 {
		cfg.Sweep.Parallelism = parallelism
	}
	if csvPath != "" {
		cfg.Data.Source = "csv"
		cfg.Data.CSVPath = csvPath
	}
	if persist {
		cfg.Storage.Persist = true
	}
	if !cfg.Storage.Persist {
		cfg.Storage.Backend = "memory"
	}
	if metricsAddr != "" {
		cfg.Server.MetricsAddr = metricsAddr
	}
	// The grid only runs MA_CROSS.
	cfg.Strategy.Type = domain.StrategyTypeMACross
	return nil
}

func parseWindows(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid window %q", part)
		}
		out = append(out, n)
	}
	return out, nil
}

func printRanking(rows []reporting.RunComparisonRow) {
	fmt.Println()
	fmt.Println("=== Sweep Ranking ===")
	fmt.Printf("%-4s %-18s %-36s %10s %8s %8s %7s\n", "#", "Strategy", "Run ID", "Return", "Sharpe", "MaxDD", "Trades")
	for i, r := range rows {
		na := r.InsufficientData
		fmt.Printf("%-4d %-18s %-36s %10s %8s %8s %7d\n",
			i+1, r.StrategyID, r.RunID,
			reporting.FormatRatio(r.TotalReturn*100, na, "%.2f%%"),
			reporting.FormatRatio(r.SharpeRatio, na, "%.4f"),
			reporting.FormatRatio(r.MaxDrawdown*100, na, "%.2f%%"),
			r.TradeCount)
	}
}
