// Package sweep runs one backtest per strategy configuration in parallel and
// ranks the outcomes.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ashare-quant-lab/internal/domain"
	"ashare-quant-lab/internal/observability"
	"ashare-quant-lab/internal/simulation"
)

// DefaultParallelism bounds concurrent runs when Options.Parallelism is 0.
const DefaultParallelism = 4

// ErrEmptyGrid is returned when there is nothing to run.
var ErrEmptyGrid = errors.New("sweep grid is empty")

// Sweeper fans a base request out over many strategy configurations.
type Sweeper struct {
	runner      *simulation.Runner
	parallelism int
	logger      *zap.Logger
}

// Options configures a Sweeper.
type Options struct {
	Parallelism int
	Logger      *zap.Logger
}

// New creates a Sweeper on top of runner.
func New(runner *simulation.Runner, opts Options) *Sweeper {
	p := opts.Parallelism
	if p <= 0 {
		p = DefaultParallelism
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{runner: runner, parallelism: p, logger: logger}
}

// MACrossGrid builds MA_CROSS configs for every fast < slow pair.
func MACrossGrid(universe []string, fastWindows, slowWindows []int) []domain.StrategyConfig {
	var out []domain.StrategyConfig
	for _, f := range fastWindows {
		for _, s := range slowWindows {
			if f < 1 || f >= s {
				continue
			}
			fast, slow := f, s
			out = append(out, domain.StrategyConfig{
				StrategyType: domain.StrategyTypeMACross,
				Universe:     append([]string(nil), universe...),
				FastWindow:   &fast,
				SlowWindow:   &slow,
			})
		}
	}
	return out
}

// Run executes base once per strategy. Each run gets its own generated run
// ID. The first failure cancels the remaining runs. Outcomes are ranked
// with Rank.
func (s *Sweeper) Run(ctx context.Context, base simulation.Request, strategies []domain.StrategyConfig) ([]*simulation.Outcome, error) {
	if len(strategies) == 0 {
		return nil, ErrEmptyGrid
	}

	outcomes := make([]*simulation.Outcome, len(strategies))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)

	for i, sc := range strategies {
		g.Go(func() error {
			observability.SweepJobStarted()
			defer observability.SweepJobFinished()

			req := base
			req.Strategy = sc
			req.Config.RunID = ""

			out, err := s.runner.Run(gctx, req)
			if err != nil {
				return fmt.Errorf("sweep job %d (%s): %w", i, sc.StrategyType, err)
			}
			outcomes[i] = out
			s.logger.Debug("sweep job done",
				zap.Int("job", i),
				zap.String("strategy", out.Run.StrategyID),
				zap.String("run_id", out.Run.RunID),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	Rank(outcomes)
	s.logger.Info("sweep finished", zap.Int("runs", len(outcomes)))
	return outcomes, nil
}

// Rank sorts outcomes by Sharpe ratio descending, then total return
// descending, then strategy ID. Runs without ratio metrics go last.
func Rank(outcomes []*simulation.Outcome) {
	sort.SliceStable(outcomes, func(i, j int) bool {
		a, b := outcomes[i].Run.Metrics, outcomes[j].Run.Metrics
		if a.InsufficientData != b.InsufficientData {
			return b.InsufficientData
		}
		if a.SharpeRatio != b.SharpeRatio {
			return a.SharpeRatio > b.SharpeRatio
		}
		if a.TotalReturn != b.TotalReturn {
			return a.TotalReturn > b.TotalReturn
		}
		return outcomes[i].Run.StrategyID < outcomes[j].Run.StrategyID
	})
}
