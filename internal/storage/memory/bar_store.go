package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ashare-quant-lab/internal/domain"
	"ashare-quant-lab/internal/storage"
)

// BarStore is an in-memory implementation of storage.BarStore.
type BarStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Bar // keyed by (instrument_id, date)
}

// NewBarStore creates a new in-memory bar store.
func NewBarStore() *BarStore {
	return &BarStore{
		data: make(map[string]*domain.Bar),
	}
}

// barKey generates a unique key for a bar.
func barKey(instrumentID string, date time.Time) string {
	return fmt.Sprintf("%s|%s", instrumentID, date.Format(domain.DateLayout))
}

// InsertBulk adds multiple bars. Fails entire batch on duplicate.
func (s *BarStore) InsertBulk(_ context.Context, bars []*domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(bars))

	// First pass: check for duplicates (existing + intra-batch)
	for _, b := range bars {
		if b == nil || b.InstrumentID == "" || b.Date.IsZero() {
			return storage.ErrInvalidInput
		}
		key := barKey(b.InstrumentID, b.Date)

		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	for _, b := range bars {
		barCopy := *b
		barCopy.Date = domain.Day(b.Date)
		s.data[barKey(b.InstrumentID, b.Date)] = &barCopy
	}

	return nil
}

// GetByInstrument retrieves all bars for an instrument, ordered by date ASC.
func (s *BarStore) GetByInstrument(_ context.Context, instrumentID string) ([]*domain.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Bar
	for _, b := range s.data {
		if b.InstrumentID == instrumentID {
			barCopy := *b
			result = append(result, &barCopy)
		}
	}

	sortBars(result)
	return result, nil
}

// GetByTimeRange retrieves bars for an instrument within [start, end] (inclusive).
func (s *BarStore) GetByTimeRange(_ context.Context, instrumentID string, start, end time.Time) ([]*domain.Bar, error) {
	start, end = domain.Day(start), domain.Day(end)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Bar
	for _, b := range s.data {
		if b.InstrumentID == instrumentID && !b.Date.Before(start) && !b.Date.After(end) {
			barCopy := *b
			result = append(result, &barCopy)
		}
	}

	sortBars(result)
	return result, nil
}

func sortBars(bars []*domain.Bar) {
	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Date.Before(bars[j].Date)
	})
}

var _ storage.BarStore = (*BarStore)(nil)
