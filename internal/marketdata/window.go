package marketdata

import (
	"time"

	"github.com/shopspring/decimal"

	"ashare-quant-lab/internal/domain"
	"ashare-quant-lab/internal/lookup"
)

// Window is a read-only view of a Series that only exposes bars dated
// strictly before its cutoff. It has no accessor for later data, so a signal
// source computing day t's decision from a Window cut at t cannot see day t.
type Window struct {
	series *Series
	cutoff time.Time
}

// Cutoff returns the first day the window does not expose.
func (w *Window) Cutoff() time.Time {
	return w.cutoff
}

// Bars returns copies of the visible bars of an instrument, date ASC.
func (w *Window) Bars(instrumentID string) []domain.Bar {
	all := w.series.bars[instrumentID]
	n := lookup.BarsBefore(w.cutoff, all)
	out := make([]domain.Bar, n)
	for i := 0; i < n; i++ {
		out[i] = *all[i]
	}
	return out
}

// Last returns the most recent visible bar of an instrument.
func (w *Window) Last(instrumentID string) (domain.Bar, bool) {
	all := w.series.bars[instrumentID]
	n := lookup.BarsBefore(w.cutoff, all)
	if n == 0 {
		return domain.Bar{}, false
	}
	return *all[n-1], true
}

// Closes returns up to the last n visible closes of an instrument, oldest first.
func (w *Window) Closes(instrumentID string, n int) []decimal.Decimal {
	all := w.series.bars[instrumentID]
	end := lookup.BarsBefore(w.cutoff, all)
	start := end - n
	if start < 0 {
		start = 0
	}
	out := make([]decimal.Decimal, 0, end-start)
	for _, b := range all[start:end] {
		out = append(out, b.Close)
	}
	return out
}
