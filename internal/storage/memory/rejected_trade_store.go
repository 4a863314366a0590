package memory

import (
	"context"
	"sort"
	"sync"

	"ashare-quant-lab/internal/domain"
	"ashare-quant-lab/internal/storage"
)

// RejectedTradeStore is an in-memory implementation of storage.RejectedTradeStore.
type RejectedTradeStore struct {
	mu   sync.RWMutex
	data []*domain.RejectedTrade // append-only
}

// NewRejectedTradeStore creates a new in-memory rejected trade store.
func NewRejectedTradeStore() *RejectedTradeStore {
	return &RejectedTradeStore{}
}

// InsertBulk adds multiple rejections atomically.
func (s *RejectedTradeStore) InsertBulk(_ context.Context, rejections []*domain.RejectedTrade) error {
	for _, r := range rejections {
		if r == nil || r.RunID == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range rejections {
		copy := *r
		s.data = append(s.data, &copy)
	}
	return nil
}

// GetByRunID retrieves all rejections of a run, ordered by date ASC.
func (s *RejectedTradeStore) GetByRunID(_ context.Context, runID string) ([]*domain.RejectedTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RejectedTrade
	for _, r := range s.data {
		if r.RunID == runID {
			copy := *r
			result = append(result, &copy)
		}
	}

	// stable keeps insertion order within a day
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})

	return result, nil
}

var _ storage.RejectedTradeStore = (*RejectedTradeStore)(nil)
