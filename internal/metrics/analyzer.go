// Package metrics computes performance statistics of a finished run.
package metrics

import (
	"errors"
	"fmt"
	"math"

	"ashare-quant-lab/internal/domain"
)

// ErrInsufficientDataForMetrics is returned for curves with fewer than two points.
var ErrInsufficientDataForMetrics = errors.New("insufficient data for metrics")

// DefaultTradingDaysPerYear is the A-share annualisation factor.
const DefaultTradingDaysPerYear = 252

// Options controls annualisation and the risk-free rate.
type Options struct {
	RiskFreeRate       float64 // annual
	TradingDaysPerYear int     // 0 means DefaultTradingDaysPerYear
}

// AnalyzePerformance computes PerformanceMetrics from an equity curve and its
// trade log. Inputs are not modified.
func AnalyzePerformance(curve []*domain.EquityCurvePoint, trades []*domain.TradeRecord, opts Options) (*domain.PerformanceMetrics, error) {
	n := len(curve)
	if n < 2 {
		return nil, fmt.Errorf("%w: %d equity points", ErrInsufficientDataForMetrics, n)
	}
	daysPerYear := opts.TradingDaysPerYear
	if daysPerYear <= 0 {
		daysPerYear = DefaultTradingDaysPerYear
	}
	if curve[0].TotalEquity.Sign() <= 0 {
		return nil, fmt.Errorf("%w: first equity point is %s", ErrInsufficientDataForMetrics, curve[0].TotalEquity)
	}

	equity := make([]float64, n)
	for i, p := range curve {
		equity[i] = p.TotalEquity.InexactFloat64()
	}

	first, last := curve[0].TotalEquity, curve[n-1].TotalEquity
	totalReturn, _ := last.Div(first).Float64()
	totalReturn--

	annualized := -1.0
	if growth := 1 + totalReturn; growth > 0 {
		annualized = math.Pow(growth, float64(daysPerYear)/float64(n)) - 1
	}

	returns := dailyReturns(curve)
	sqrtD := math.Sqrt(float64(daysPerYear))
	volatility := computeStddev(returns, computeMean(returns)) * sqrtD
	downside := computeDownsideDeviation(returns) * sqrtD
	maxDrawdown := computeMaxDrawdown(equity)

	excess := annualized - opts.RiskFreeRate
	stats := computeTradeStats(trades)

	return &domain.PerformanceMetrics{
		TotalReturn:          totalReturn,
		AnnualizedReturn:     annualized,
		AnnualizedVolatility: volatility,
		SharpeRatio:          ratio(excess, volatility),
		SortinoRatio:         ratio(excess, downside),
		MaxDrawdown:          maxDrawdown,
		CalmarRatio:          ratio(annualized, maxDrawdown),
		WinRate:              computeWinRate(stats.wins, stats.closed),
		ProfitFactor:         stats.profitFactor(),
		TradeCount:           len(trades),

		ClosedTrades: stats.closed,
		TradingDays:  n,
		FinalEquity:  last,
		TotalCosts:   stats.totalCosts,
	}, nil
}
