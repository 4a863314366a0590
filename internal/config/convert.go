package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ashare-quant-lab/internal/backtest"
	"ashare-quant-lab/internal/cost"
	"ashare-quant-lab/internal/domain"
	"ashare-quant-lab/internal/metrics"
)

// BacktestConfig converts the backtest and costs sections.
func (c *Config) BacktestConfig() (backtest.Config, error) {
	b := c.Backtest

	capital, err := parseDecimal("backtest.initialCapital", b.InitialCapital)
	if err != nil {
		return backtest.Config{}, err
	}
	start, err := parseDate("backtest.start", b.Start)
	if err != nil {
		return backtest.Config{}, err
	}
	end, err := parseDate("backtest.end", b.End)
	if err != nil {
		return backtest.Config{}, err
	}
	calendar := make([]time.Time, 0, len(b.Calendar))
	for _, s := range b.Calendar {
		d, err := parseDate("backtest.calendar", s)
		if err != nil {
			return backtest.Config{}, err
		}
		calendar = append(calendar, d)
	}
	costs, err := c.CostConfig()
	if err != nil {
		return backtest.Config{}, err
	}

	out := backtest.Config{
		InitialCapital: capital,
		StartDate:      start,
		EndDate:        end,
		Universe:       append([]string(nil), b.Universe...),
		Calendar:       calendar,
		ExecutionMode:  backtest.ExecutionMode(strings.ToLower(b.ExecutionMode)),
		GapPolicy:      backtest.GapPolicy(strings.ToLower(b.GapPolicy)),
		LotSize:        b.LotSize,
		Costs:          costs,
	}
	if err := out.Validate(); err != nil {
		return backtest.Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return out, nil
}

// CostConfig converts the costs section: scenario first, then explicit rates.
func (c *Config) CostConfig() (cost.Config, error) {
	cc := c.Costs

	var out cost.Config
	if cc.Scenario != "" {
		base, ok := cost.Scenario(strings.ToLower(cc.Scenario))
		if !ok {
			return cost.Config{}, fmt.Errorf("%w: costs.scenario %q", ErrInvalidConfig, cc.Scenario)
		}
		out = base
	}

	overrides := []struct {
		name  string
		value string
		dst   *decimal.Decimal
	}{
		{"costs.commissionRate", cc.CommissionRate, &out.CommissionRate},
		{"costs.minCommission", cc.MinCommission, &out.MinCommission},
		{"costs.stampTaxRate", cc.StampTaxRate, &out.StampTaxRate},
		{"costs.slippageRate", cc.SlippageRate, &out.SlippageRate},
	}
	for _, o := range overrides {
		if o.value == "" {
			continue
		}
		v, err := parseDecimal(o.name, o.value)
		if err != nil {
			return cost.Config{}, err
		}
		*o.dst = v
	}

	if len(cc.TransferFeeRates) > 0 {
		rates := make(map[domain.Venue]decimal.Decimal, len(out.TransferFeeRates)+len(cc.TransferFeeRates))
		for v, r := range out.TransferFeeRates {
			rates[v] = r
		}
		for name, s := range cc.TransferFeeRates {
			venue, err := domain.ParseVenue(name)
			if err != nil {
				return cost.Config{}, fmt.Errorf("%w: costs.transferFeeRates: %w", ErrInvalidConfig, err)
			}
			r, err := parseDecimal("costs.transferFeeRates."+name, s)
			if err != nil {
				return cost.Config{}, err
			}
			rates[venue] = r
		}
		out.TransferFeeRates = rates
	}

	if err := out.Validate(); err != nil {
		return cost.Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return out, nil
}

// StrategyConfig converts the strategy section. The universe comes from the
// backtest section.
func (c *Config) StrategyConfig() (domain.StrategyConfig, error) {
	s := c.Strategy
	out := domain.StrategyConfig{
		StrategyType: strings.ToUpper(s.Type),
		Universe:     append([]string(nil), c.Backtest.Universe...),
	}

	if s.InvestFraction != "" {
		f, err := parseDecimal("strategy.investFraction", s.InvestFraction)
		if err != nil {
			return domain.StrategyConfig{}, err
		}
		out.InvestFraction = &f
	}
	if s.FastWindow != 0 {
		fast := s.FastWindow
		out.FastWindow = &fast
	}
	if s.SlowWindow != 0 {
		slow := s.SlowWindow
		out.SlowWindow = &slow
	}

	if len(s.Schedule) > 0 {
		out.Schedule = make(map[string][]domain.Order, len(s.Schedule))
		for date, orders := range s.Schedule {
			if _, err := parseDate("strategy.schedule", date); err != nil {
				return domain.StrategyConfig{}, err
			}
			for _, o := range orders {
				side := domain.Side(strings.ToLower(o.Side))
				if side != domain.SideBuy && side != domain.SideSell {
					return domain.StrategyConfig{}, fmt.Errorf("%w: strategy.schedule %s: side %q", ErrInvalidConfig, date, o.Side)
				}
				out.Schedule[date] = append(out.Schedule[date], domain.Order{
					InstrumentID: o.Instrument,
					Side:         side,
					Shares:       o.Shares,
				})
			}
		}
	}

	switch out.StrategyType {
	case domain.StrategyTypeBuyAndHold, domain.StrategyTypeMACross, domain.StrategyTypeOrderList:
	default:
		return domain.StrategyConfig{}, fmt.Errorf("%w: strategy.type %q", ErrInvalidConfig, s.Type)
	}
	return out, nil
}

// MetricsOptions converts the metrics section.
func (c *Config) MetricsOptions() metrics.Options {
	return metrics.Options{
		RiskFreeRate:       c.Metrics.RiskFreeRate,
		TradingDaysPerYear: c.Metrics.TradingDaysPerYear,
	}
}

func parseDecimal(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s: %q is not a decimal", ErrInvalidConfig, field, s)
	}
	return d, nil
}

func parseDate(field, s string) (time.Time, error) {
	d, err := domain.ParseDay(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, field, err)
	}
	return d, nil
}
