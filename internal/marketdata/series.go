// Package marketdata holds pre-loaded daily bars and the time-windowed view
// handed to signal sources.
package marketdata

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"ashare-quant-lab/internal/domain"
	"ashare-quant-lab/internal/lookup"
)

// Series errors
var (
	ErrDuplicateBar = errors.New("duplicate bar")
	ErrInvalidBar   = errors.New("invalid bar")
)

// Series is an immutable in-memory index of daily bars by (instrument, date).
// Missing bars are represented by absence and are never interpolated.
type Series struct {
	bars  map[string][]*domain.Bar // per instrument, date ASC
	index map[string]map[string]int
	dates []time.Time // union of all bar dates, ASC
}

// NewSeries validates and indexes bars. Input order does not matter.
func NewSeries(bars []*domain.Bar) (*Series, error) {
	s := &Series{
		bars:  make(map[string][]*domain.Bar),
		index: make(map[string]map[string]int),
	}
	seenDates := make(map[string]time.Time)

	for _, b := range bars {
		if err := validateBar(b); err != nil {
			return nil, err
		}
		c := *b
		c.Date = domain.Day(b.Date)
		s.bars[c.InstrumentID] = append(s.bars[c.InstrumentID], &c)
		seenDates[c.Date.Format(domain.DateLayout)] = c.Date
	}

	for id, list := range s.bars {
		sort.Slice(list, func(i, j int) bool {
			return list[i].Date.Before(list[j].Date)
		})
		idx := make(map[string]int, len(list))
		for i, b := range list {
			key := b.Date.Format(domain.DateLayout)
			if _, dup := idx[key]; dup {
				return nil, fmt.Errorf("%w: %s on %s", ErrDuplicateBar, id, key)
			}
			idx[key] = i
		}
		s.index[id] = idx
	}

	for _, d := range seenDates {
		s.dates = append(s.dates, d)
	}
	sort.Slice(s.dates, func(i, j int) bool {
		return s.dates[i].Before(s.dates[j])
	})

	return s, nil
}

func validateBar(b *domain.Bar) error {
	if b == nil || b.InstrumentID == "" || b.Date.IsZero() {
		return fmt.Errorf("%w: missing instrument or date", ErrInvalidBar)
	}
	if !b.Open.IsPositive() || !b.Close.IsPositive() {
		return fmt.Errorf("%w: %s on %s has non-positive open/close",
			ErrInvalidBar, b.InstrumentID, b.Date.Format(domain.DateLayout))
	}
	if b.High.LessThan(b.Low) {
		return fmt.Errorf("%w: %s on %s has high < low",
			ErrInvalidBar, b.InstrumentID, b.Date.Format(domain.DateLayout))
	}
	return nil
}

// Instruments returns the instruments present in the series, ascending.
func (s *Series) Instruments() []string {
	ids := make([]string, 0, len(s.bars))
	for id := range s.bars {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Dates returns every date with at least one bar within [from, to], ascending.
func (s *Series) Dates(from, to time.Time) []time.Time {
	from, to = domain.Day(from), domain.Day(to)
	var out []time.Time
	for _, d := range s.dates {
		if !d.Before(from) && !d.After(to) {
			out = append(out, d)
		}
	}
	return out
}

// BarAt returns the bar of an instrument on day, if one exists.
func (s *Series) BarAt(instrumentID string, day time.Time) (domain.Bar, bool) {
	i, ok := s.index[instrumentID][domain.Day(day).Format(domain.DateLayout)]
	if !ok {
		return domain.Bar{}, false
	}
	return *s.bars[instrumentID][i], true
}

// HasAnyBar reports whether any of the instruments has a bar on day.
func (s *Series) HasAnyBar(day time.Time, instruments []string) bool {
	key := domain.Day(day).Format(domain.DateLayout)
	for _, id := range instruments {
		if _, ok := s.index[id][key]; ok {
			return true
		}
	}
	return false
}

// CloseAtOrBefore returns the last close of an instrument at or before day.
func (s *Series) CloseAtOrBefore(instrumentID string, day time.Time) (decimal.Decimal, error) {
	price, err := lookup.CloseAt(domain.Day(day), s.bars[instrumentID])
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s on %s: %w", instrumentID, day.Format(domain.DateLayout), err)
	}
	return price, nil
}

// Window returns a view of the series restricted to bars dated strictly before cutoff.
func (s *Series) Window(cutoff time.Time) *Window {
	return &Window{series: s, cutoff: domain.Day(cutoff)}
}
