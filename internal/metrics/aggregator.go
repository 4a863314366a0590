package metrics

import (
	"context"
	"errors"
	"fmt"

	"ashare-quant-lab/internal/domain"
	"ashare-quant-lab/internal/storage"
)

// ErrNoEquityCurve is returned when a stored run has no curve points.
var ErrNoEquityCurve = errors.New("no equity curve stored for run")

// Aggregator recomputes metrics of persisted runs from their stored curve and trades.
type Aggregator struct {
	tradeRecordStore storage.TradeRecordStore
	equityCurveStore storage.EquityCurveStore
	opts             Options
}

// NewAggregator creates a new metrics aggregator.
func NewAggregator(tradeStore storage.TradeRecordStore, curveStore storage.EquityCurveStore, opts Options) *Aggregator {
	return &Aggregator{
		tradeRecordStore: tradeStore,
		equityCurveStore: curveStore,
		opts:             opts,
	}
}

// ComputeRun loads the curve and trade log of runID and analyses them.
// Returns ErrNoEquityCurve if nothing is stored for the run.
func (a *Aggregator) ComputeRun(ctx context.Context, runID string) (*domain.PerformanceMetrics, error) {
	curve, err := a.equityCurveStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load equity curve: %w", err)
	}
	if len(curve) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoEquityCurve, runID)
	}

	trades, err := a.tradeRecordStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load trades: %w", err)
	}

	return AnalyzePerformance(curve, trades, a.opts)
}
