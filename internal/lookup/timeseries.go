package lookup

import (
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"ashare-quant-lab/internal/domain"
)

// Errors returned by lookup functions.
var (
	ErrNoPriceData = errors.New("no price data available")
)

// BarAtOrBefore returns the index of the last bar dated at or before target.
// Bars must be sorted by Date ASC. Returns -1 if there is none.
func BarAtOrBefore(target time.Time, bars []*domain.Bar) int {
	// first bar strictly after target
	i := sort.Search(len(bars), func(i int) bool {
		return bars[i].Date.After(target)
	})
	return i - 1
}

// BarsBefore returns the number of leading bars dated strictly before cutoff.
// Bars must be sorted by Date ASC.
func BarsBefore(cutoff time.Time, bars []*domain.Bar) int {
	return sort.Search(len(bars), func(i int) bool {
		return !bars[i].Date.Before(cutoff)
	})
}

// CloseAt returns the close of the last bar at or before target.
// Never looks past target: returns ErrNoPriceData if no such bar exists.
func CloseAt(target time.Time, bars []*domain.Bar) (decimal.Decimal, error) {
	if len(bars) == 0 {
		return decimal.Zero, ErrNoPriceData
	}

	i := BarAtOrBefore(target, bars)
	if i < 0 {
		return decimal.Zero, ErrNoPriceData
	}
	return bars[i].Close, nil
}
