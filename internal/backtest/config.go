package backtest

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"ashare-quant-lab/internal/cost"
	"ashare-quant-lab/internal/domain"
)

// ExecutionMode selects which price of day t fills orders decided for day t.
type ExecutionMode string

// Execution modes
const (
	ExecutionNextOpen  ExecutionMode = "next_open"  // open of t, decision made after t-1 close
	ExecutionSameClose ExecutionMode = "same_close" // close of t
)

// GapPolicy decides what happens when prices are missing. GapSkip drops
// calendar days with no bars and rejects trades in instruments without a bar
// on the day. GapFail aborts the run in both cases, checking whole days
// before the first day executes.
type GapPolicy string

// Gap policies
const (
	GapSkip GapPolicy = "skip"
	GapFail GapPolicy = "fail"
)

// Config is the full input of one run besides market data and the signal source.
type Config struct {
	RunID          string // generated when empty
	InitialCapital decimal.Decimal
	StartDate      time.Time
	EndDate        time.Time
	Universe       []string

	// Calendar lists the expected trading days. When empty, every date
	// with at least one bar in range is a trading day.
	Calendar []time.Time

	ExecutionMode ExecutionMode
	GapPolicy     GapPolicy
	LotSize       int64
	Costs         cost.Config
}

// Validate checks the config. Errors wrap ErrInvalidConfiguration.
func (c Config) Validate() error {
	if !c.InitialCapital.IsPositive() {
		return fmt.Errorf("%w: initial capital must be positive, got %s", ErrInvalidConfiguration, c.InitialCapital)
	}
	if c.StartDate.IsZero() || c.EndDate.IsZero() {
		return fmt.Errorf("%w: start and end dates are required", ErrInvalidConfiguration)
	}
	if domain.Day(c.EndDate).Before(domain.Day(c.StartDate)) {
		return fmt.Errorf("%w: end %s before start %s", ErrInvalidConfiguration,
			c.EndDate.Format(domain.DateLayout), c.StartDate.Format(domain.DateLayout))
	}
	if len(c.Universe) == 0 {
		return fmt.Errorf("%w: universe is empty", ErrInvalidConfiguration)
	}
	for _, id := range c.Universe {
		if _, err := domain.VenueOf(id); err != nil {
			return fmt.Errorf("%w: universe: %v", ErrInvalidConfiguration, err)
		}
	}
	if c.LotSize < 1 {
		return fmt.Errorf("%w: lot size must be >= 1, got %d", ErrInvalidConfiguration, c.LotSize)
	}
	switch c.ExecutionMode {
	case ExecutionNextOpen, ExecutionSameClose:
	default:
		return fmt.Errorf("%w: unknown execution mode %q", ErrInvalidConfiguration, c.ExecutionMode)
	}
	switch c.GapPolicy {
	case GapSkip, GapFail:
	default:
		return fmt.Errorf("%w: unknown gap policy %q", ErrInvalidConfiguration, c.GapPolicy)
	}
	if err := c.Costs.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	return nil
}

// universe returns the sorted, deduplicated universe.
func (c Config) universe() []string {
	seen := make(map[string]struct{}, len(c.Universe))
	out := make([]string, 0, len(c.Universe))
	for _, id := range c.Universe {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// calendarDays returns the configured calendar restricted to [start, end],
// normalised, sorted and deduplicated.
func (c Config) calendarDays() []time.Time {
	start, end := domain.Day(c.StartDate), domain.Day(c.EndDate)
	seen := make(map[time.Time]struct{}, len(c.Calendar))
	var out []time.Time
	for _, d := range c.Calendar {
		d = domain.Day(d)
		if d.Before(start) || d.After(end) {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
