package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"ashare-quant-lab/internal/domain"
	"ashare-quant-lab/internal/storage"
)

// Generator produces reports from stored data.
type Generator struct {
	runStore       storage.BacktestRunStore
	tradeStore     storage.TradeRecordStore
	curveStore     storage.EquityCurveStore
	rejectionStore storage.RejectedTradeStore
	now            func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(
	runStore storage.BacktestRunStore,
	tradeStore storage.TradeRecordStore,
	curveStore storage.EquityCurveStore,
	rejectionStore storage.RejectedTradeStore,
) *Generator {
	return &Generator{
		runStore:       runStore,
		tradeStore:     tradeStore,
		curveStore:     curveStore,
		rejectionStore: rejectionStore,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate loads a stored run and builds its report.
func (g *Generator) Generate(ctx context.Context, runID string) (*Report, error) {
	run, err := g.runStore.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	curve, err := g.curveStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load equity curve: %w", err)
	}
	trades, err := g.tradeStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load trades: %w", err)
	}
	rejections, err := g.rejectionStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load rejections: %w", err)
	}
	related, err := g.runStore.GetByStrategy(ctx, run.StrategyID)
	if err != nil {
		return nil, fmt.Errorf("load related runs: %w", err)
	}

	report := Build(run, curve, trades, rejections, g.now())
	report.RelatedRuns = compareRuns(related, runID)
	return report, nil
}

// Build assembles a report from in-memory run output.
func Build(run *domain.BacktestRun, curve []*domain.EquityCurvePoint, trades []*domain.TradeRecord, rejections []*domain.RejectedTrade, generatedAt time.Time) *Report {
	return &Report{
		GeneratedAt: generatedAt,
		Run:         *run,
		Metrics:     run.Metrics,
		DataSummary: summarize(curve, trades, rejections),
		Rejections:  countRejections(rejections),
		Instruments: summarizeInstruments(trades),
	}
}

func summarize(curve []*domain.EquityCurvePoint, trades []*domain.TradeRecord, rejections []*domain.RejectedTrade) DataSummary {
	s := DataSummary{
		TradingDays: len(curve),
		TotalTrades: len(trades),
		Rejections:  len(rejections),
	}
	for _, t := range trades {
		if t.Side == domain.SideBuy {
			s.Buys++
		} else {
			s.Sells++
		}
	}
	if len(curve) == 0 {
		return s
	}
	s.DateRangeStart = curve[0].Date
	s.DateRangeEnd = curve[len(curve)-1].Date
	s.FinalEquity = curve[len(curve)-1].TotalEquity
	s.PeakEquity = curve[0].TotalEquity
	for _, p := range curve {
		s.PeakEquity = decimal.Max(s.PeakEquity, p.TotalEquity)
	}
	return s
}

func countRejections(rejections []*domain.RejectedTrade) []RejectionCountRow {
	counts := make(map[domain.RejectReason]int)
	for _, r := range rejections {
		counts[r.Reason]++
	}
	rows := make([]RejectionCountRow, 0, len(counts))
	for reason, n := range counts {
		rows = append(rows, RejectionCountRow{Reason: reason, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Reason < rows[j].Reason
	})
	return rows
}

func summarizeInstruments(trades []*domain.TradeRecord) []InstrumentRow {
	byID := make(map[string]*InstrumentRow)
	for _, t := range trades {
		row, ok := byID[t.InstrumentID]
		if !ok {
			row = &InstrumentRow{InstrumentID: t.InstrumentID, Venue: t.Venue}
			byID[t.InstrumentID] = row
		}
		row.Costs = row.Costs.Add(t.TotalCost())
		switch t.Side {
		case domain.SideBuy:
			row.Buys++
			row.SharesBought += t.Shares
		case domain.SideSell:
			row.Sells++
			row.SharesSold += t.Shares
			row.RealizedPnL = row.RealizedPnL.Add(t.RealizedPnL)
		}
	}

	rows := make([]InstrumentRow, 0, len(byID))
	for _, row := range byID {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].InstrumentID < rows[j].InstrumentID
	})
	return rows
}

func compareRuns(runs []*domain.BacktestRun, exclude string) []RunComparisonRow {
	rows := make([]RunComparisonRow, 0, len(runs))
	for _, r := range runs {
		if r.RunID == exclude {
			continue
		}
		rows = append(rows, ComparisonRow(r))
	}
	return rows
}

// ComparisonRow extracts the headline metrics of a run.
func ComparisonRow(r *domain.BacktestRun) RunComparisonRow {
	return RunComparisonRow{
		RunID:       r.RunID,
		StrategyID:  r.StrategyID,
		ConfigHash:  r.ConfigHash,
		TotalReturn: r.Metrics.TotalReturn,
		SharpeRatio: r.Metrics.SharpeRatio,
		MaxDrawdown: r.Metrics.MaxDrawdown,
		TradeCount:  r.Metrics.TradeCount,

		InsufficientData: r.Metrics.InsufficientData,
	}
}
