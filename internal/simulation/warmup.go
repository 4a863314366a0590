package simulation

import (
	"time"

	"ashare-quant-lab/internal/domain"
)

// warmupCalendarFactor converts trading days to calendar days with room for
// weekends and the week-long exchange holidays.
const (
	warmupCalendarFactor = 2
	warmupPaddingDays    = 10
)

// lookbackOf returns how many trading days of history a strategy needs
// before its first decision. Strategies without a Lookback method need none.
func lookbackOf(s any) int {
	if lb, ok := s.(interface{ Lookback() int }); ok && lb.Lookback() > 0 {
		return lb.Lookback()
	}
	return 0
}

// warmupStart returns the first date to load so that lookback trading days
// precede start.
func warmupStart(start time.Time, lookback int) time.Time {
	start = domain.Day(start)
	if lookback <= 0 {
		return start
	}
	return start.AddDate(0, 0, -(lookback*warmupCalendarFactor + warmupPaddingDays))
}
