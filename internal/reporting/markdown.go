package reporting

import (
	"fmt"
	"math"
	"strings"
	"time"

	"ashare-quant-lab/internal/domain"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("# Backtest Report: %s\n\n", r.Run.StrategyID))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Run: `%s` | Config: `%s`\n\n", r.Run.RunID, r.Run.ConfigHash))

	// Data Summary
	ds := r.DataSummary
	sb.WriteString("## Data Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Period | %s .. %s |\n", formatDate(ds.DateRangeStart), formatDate(ds.DateRangeEnd)))
	sb.WriteString(fmt.Sprintf("| Trading Days | %d |\n", ds.TradingDays))
	sb.WriteString(fmt.Sprintf("| Initial Capital | %s |\n", r.Run.InitialCapital.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("| Peak Equity | %s |\n", ds.PeakEquity.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("| Final Equity | %s |\n", ds.FinalEquity.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("| Trades (buy/sell) | %d (%d/%d) |\n", ds.TotalTrades, ds.Buys, ds.Sells))
	sb.WriteString(fmt.Sprintf("| Rejected Attempts | %d |\n", ds.Rejections))
	sb.WriteString("\n")

	// Performance
	m := r.Metrics
	na := m.InsufficientData
	sb.WriteString("## Performance\n\n")
	if na {
		sb.WriteString("Too few trading days for ratio metrics.\n\n")
	}
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Total Return | %s |\n", FormatRatio(m.TotalReturn, na, "%.4f")))
	sb.WriteString(fmt.Sprintf("| Annualized Return | %s |\n", FormatRatio(m.AnnualizedReturn, na, "%.4f")))
	sb.WriteString(fmt.Sprintf("| Annualized Volatility | %s |\n", FormatRatio(m.AnnualizedVolatility, na, "%.4f")))
	sb.WriteString(fmt.Sprintf("| Sharpe Ratio | %s |\n", FormatRatio(m.SharpeRatio, na, "%.4f")))
	sb.WriteString(fmt.Sprintf("| Sortino Ratio | %s |\n", FormatRatio(m.SortinoRatio, na, "%.4f")))
	sb.WriteString(fmt.Sprintf("| Max Drawdown | %s |\n", FormatRatio(m.MaxDrawdown, na, "%.4f")))
	sb.WriteString(fmt.Sprintf("| Calmar Ratio | %s |\n", FormatRatio(m.CalmarRatio, na, "%.4f")))
	sb.WriteString(fmt.Sprintf("| Win Rate | %s |\n", FormatRatio(m.WinRate, na, "%.4f")))
	sb.WriteString(fmt.Sprintf("| Profit Factor | %s |\n", FormatRatio(m.ProfitFactor, na, "%.4f")))
	sb.WriteString(fmt.Sprintf("| Closed Trades | %d |\n", m.ClosedTrades))
	sb.WriteString(fmt.Sprintf("| Total Costs | %s |\n", m.TotalCosts.StringFixed(2)))
	sb.WriteString("\n")

	// Instruments
	sb.WriteString("## Instruments\n\n")
	if len(r.Instruments) > 0 {
		sb.WriteString("| Instrument | Venue | Buys | Sells | Bought | Sold | Realized PnL | Costs |\n")
		sb.WriteString("|------------|-------|------|-------|--------|------|--------------|-------|\n")
		for _, row := range r.Instruments {
			sb.WriteString(fmt.Sprintf("| %s | %s | %d | %d | %d | %d | %s | %s |\n",
				row.InstrumentID, row.Venue, row.Buys, row.Sells,
				row.SharesBought, row.SharesSold,
				row.RealizedPnL.StringFixed(2), row.Costs.StringFixed(2)))
		}
	} else {
		sb.WriteString("No trades executed.\n")
	}
	sb.WriteString("\n")

	// Rejections
	sb.WriteString("## Rejected Trades\n\n")
	if len(r.Rejections) > 0 {
		sb.WriteString("| Reason | Count |\n")
		sb.WriteString("|--------|-------|\n")
		for _, row := range r.Rejections {
			sb.WriteString(fmt.Sprintf("| %s | %d |\n", row.Reason, row.Count))
		}
	} else {
		sb.WriteString("No rejected trades.\n")
	}
	sb.WriteString("\n")

	// Related runs
	if len(r.RelatedRuns) > 0 {
		sb.WriteString("## Other Runs of This Strategy\n\n")
		sb.WriteString("| Run | Config | Return | Sharpe | MaxDD | Trades |\n")
		sb.WriteString("|-----|--------|--------|--------|-------|--------|\n")
		for _, row := range r.RelatedRuns {
			na := row.InsufficientData
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %d |\n",
				row.RunID, row.ConfigHash,
				FormatRatio(row.TotalReturn, na, "%.4f"),
				FormatRatio(row.SharpeRatio, na, "%.4f"),
				FormatRatio(row.MaxDrawdown, na, "%.4f"),
				row.TradeCount))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// FormatRatio renders a float metric with verb. Metrics of a run too short
// to measure print as n/a and an unbounded value as inf.
func FormatRatio(v float64, unavailable bool, verb string) string {
	switch {
	case unavailable:
		return "n/a"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return fmt.Sprintf(verb, v)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(domain.DateLayout)
}
