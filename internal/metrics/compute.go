package metrics

import (
	"math"

	"github.com/shopspring/decimal"

	"ashare-quant-lab/internal/domain"
)

// dailyReturns recomputes returns from consecutive equity points (n-1 values).
func dailyReturns(curve []*domain.EquityCurvePoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	out := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].TotalEquity
		if prev.IsZero() {
			out = append(out, 0)
			continue
		}
		r, _ := curve[i].TotalEquity.Div(prev).Sub(decimal.NewFromInt(1)).Float64()
		out = append(out, r)
	}
	return out
}

// computeMean calculates arithmetic mean of values.
func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(values []float64, mean float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// computeDownsideDeviation is the root mean square of the negative part of
// returns, averaged over all returns.
func computeDownsideDeviation(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		if v < 0 {
			sumSq += v * v
		}
	}
	return math.Sqrt(sumSq / float64(len(values)))
}

// computeMaxDrawdown calculates the worst peak-to-trough decline as a
// fraction of the running peak, in a single forward pass.
func computeMaxDrawdown(equity []float64) float64 {
	if len(equity) == 0 {
		return 0
	}

	peak := equity[0]
	maxDrawdown := 0.0

	for _, e := range equity {
		if e > peak {
			peak = e
		}
		if peak <= 0 {
			continue
		}
		drawdown := (peak - e) / peak
		if drawdown > maxDrawdown {
			maxDrawdown = drawdown
		}
	}
	return maxDrawdown
}

// computeWinRate calculates win rate as wins / total.
func computeWinRate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total)
}

// tradeStats summarises realized outcomes of closing trades.
type tradeStats struct {
	closed     int
	wins       int
	grossWin   decimal.Decimal
	grossLoss  decimal.Decimal // positive magnitude
	totalCosts decimal.Decimal
}

// computeTradeStats treats every sell as a closed trade.
func computeTradeStats(trades []*domain.TradeRecord) tradeStats {
	s := tradeStats{}
	for _, t := range trades {
		s.totalCosts = s.totalCosts.Add(t.TotalCost())
		if t.Side != domain.SideSell {
			continue
		}
		s.closed++
		switch {
		case t.RealizedPnL.IsPositive():
			s.wins++
			s.grossWin = s.grossWin.Add(t.RealizedPnL)
		case t.RealizedPnL.IsNegative():
			s.grossLoss = s.grossLoss.Add(t.RealizedPnL.Neg())
		}
	}
	return s
}

// profitFactor is gross profit / gross loss. Wins without losses are +Inf.
func (s tradeStats) profitFactor() float64 {
	if s.grossLoss.IsZero() {
		if s.grossWin.IsPositive() {
			return math.Inf(1)
		}
		return 0
	}
	f, _ := s.grossWin.Div(s.grossLoss).Float64()
	return f
}

// ratio divides and returns 0 for a zero denominator.
func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
