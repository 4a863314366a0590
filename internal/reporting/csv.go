package reporting

import (
	"fmt"
	"strings"

	"ashare-quant-lab/internal/domain"
)

// RenderEquityCSV renders an equity curve as CSV string.
func RenderEquityCSV(curve []*domain.EquityCurvePoint) string {
	var sb strings.Builder

	sb.WriteString("date,cash,holdings_value,total_equity,daily_return\n")

	for _, p := range curve {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%.8f\n",
			p.Date.Format(domain.DateLayout),
			p.Cash.StringFixed(2),
			p.HoldingsValue.StringFixed(2),
			p.TotalEquity.StringFixed(2),
			p.DailyReturn,
		))
	}

	return sb.String()
}

// RenderTradesCSV renders a trade log as CSV string.
func RenderTradesCSV(trades []*domain.TradeRecord) string {
	var sb strings.Builder

	sb.WriteString("seq,trade_id,date,instrument_id,venue,side,shares,quoted_price,fill_price,")
	sb.WriteString("commission,stamp_tax,transfer_fee,slippage_cost,realized_pnl,net_cash_delta\n")

	for _, t := range trades {
		sb.WriteString(fmt.Sprintf("%d,%s,%s,%s,%s,%s,%d,%s,%s,%s,%s,%s,%s,%s,%s\n",
			t.Seq,
			t.TradeID,
			t.Date.Format(domain.DateLayout),
			t.InstrumentID,
			t.Venue,
			t.Side,
			t.Shares,
			t.QuotedPrice.String(),
			t.FillPrice.String(),
			t.Commission.StringFixed(4),
			t.StampTax.StringFixed(4),
			t.TransferFee.StringFixed(4),
			t.SlippageCost.StringFixed(4),
			t.RealizedPnL.StringFixed(4),
			t.NetCashDelta.StringFixed(4),
		))
	}

	return sb.String()
}

// RenderComparisonCSV renders run comparison rows as CSV string.
func RenderComparisonCSV(rows []RunComparisonRow) string {
	var sb strings.Builder

	sb.WriteString("run_id,strategy_id,config_hash,total_return,sharpe_ratio,max_drawdown,trade_count\n")

	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%s,%d\n",
			r.RunID,
			r.StrategyID,
			r.ConfigHash,
			FormatRatio(r.TotalReturn, r.InsufficientData, "%.6f"),
			FormatRatio(r.SharpeRatio, r.InsufficientData, "%.6f"),
			FormatRatio(r.MaxDrawdown, r.InsufficientData, "%.6f"),
			r.TradeCount,
		))
	}

	return sb.String()
}
