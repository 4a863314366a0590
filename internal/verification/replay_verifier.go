package verification

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"ashare-quant-lab/internal/cost"
	"ashare-quant-lab/internal/domain"
	"ashare-quant-lab/internal/portfolio"
	"ashare-quant-lab/internal/storage"
)

var (
	// ErrRunNotFound is returned when the run ID doesn't exist.
	ErrRunNotFound = errors.New("run not found")

	// ErrMalformedLog is returned when the trade log cannot be re-executed.
	ErrMalformedLog = errors.New("trade log cannot be replayed")
)

// VerifyRun re-executes every trade against a fresh portfolio and re-values
// each curve point, reporting any field that differs from what was stored.
// Trades must be in seq order and curve points in date order.
func VerifyRun(runID string, initialCash decimal.Decimal, model *cost.Model, trades []*domain.TradeRecord, curve []*domain.EquityCurvePoint, prices PriceSource) (*VerificationReport, error) {
	manager, err := portfolio.NewManager(initialCash, model, portfolio.WithRunID(runID))
	if err != nil {
		return nil, err
	}

	report := &VerificationReport{
		RunID:       runID,
		TotalTrades: len(trades),
		TotalPoints: len(curve),
	}

	next := 0
	for _, point := range curve {
		for next < len(trades) && !trades[next].Date.After(point.Date) {
			stored := trades[next]
			replayed, err := reexecute(manager, stored)
			if err != nil {
				return nil, fmt.Errorf("%w: trade %s: %w", ErrMalformedLog, stored.TradeID, err)
			}
			divergences := CompareTradeRecords(stored, replayed)
			if len(divergences) == 0 {
				report.MatchedTrades++
			}
			report.Divergences = append(report.Divergences, divergences...)
			next++
		}

		if !point.Cash.Add(point.HoldingsValue).Equal(point.TotalEquity) {
			report.InvariantBreaks++
		}

		valuation, err := value(manager, point, prices)
		if err != nil {
			return nil, err
		}
		divergences := comparePoint(point, valuation.Cash, valuation.HoldingsValue, valuation.TotalEquity)
		if len(divergences) == 0 {
			report.MatchedPoints++
		}
		report.Divergences = append(report.Divergences, divergences...)
	}

	if next < len(trades) {
		return nil, fmt.Errorf("%w: %d trades dated after the last curve point", ErrMalformedLog, len(trades)-next)
	}
	return report, nil
}

func reexecute(m *portfolio.Manager, stored *domain.TradeRecord) (*domain.TradeRecord, error) {
	switch stored.Side {
	case domain.SideBuy:
		return m.Buy(stored.InstrumentID, stored.Shares, stored.QuotedPrice, stored.Date)
	case domain.SideSell:
		return m.Sell(stored.InstrumentID, stored.Shares, stored.QuotedPrice, stored.Date)
	default:
		return nil, fmt.Errorf("unknown side %q", stored.Side)
	}
}

func value(m *portfolio.Manager, point *domain.EquityCurvePoint, prices PriceSource) (portfolio.Valuation, error) {
	held := m.Instruments()
	closes := make(map[string]decimal.Decimal, len(held))
	for _, id := range held {
		price, err := prices.CloseAtOrBefore(id, point.Date)
		if err != nil {
			return portfolio.Valuation{}, fmt.Errorf("value %s on %s: %w", id, point.Date.Format(domain.DateLayout), err)
		}
		closes[id] = price
	}
	return m.MarkToMarket(closes, point.Date)
}

// ReplayVerifier verifies persisted runs.
type ReplayVerifier struct {
	runStore   storage.BacktestRunStore
	tradeStore storage.TradeRecordStore
	curveStore storage.EquityCurveStore
}

// ReplayVerifierOptions contains configuration for creating a ReplayVerifier.
type ReplayVerifierOptions struct {
	RunStore   storage.BacktestRunStore
	TradeStore storage.TradeRecordStore
	CurveStore storage.EquityCurveStore
}

// NewReplayVerifier creates a new ReplayVerifier.
func NewReplayVerifier(opts ReplayVerifierOptions) *ReplayVerifier {
	return &ReplayVerifier{
		runStore:   opts.RunStore,
		tradeStore: opts.TradeStore,
		curveStore: opts.CurveStore,
	}
}

// VerifyStoredRun loads a run with its trades and curve and verifies it with
// the cost model the run was executed under.
func (v *ReplayVerifier) VerifyStoredRun(ctx context.Context, runID string, model *cost.Model, prices PriceSource) (*VerificationReport, error) {
	run, err := v.runStore.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}

	trades, err := v.tradeStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, err
	}
	curve, err := v.curveStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, err
	}

	return VerifyRun(runID, run.InitialCapital, model, trades, curve, prices)
}
