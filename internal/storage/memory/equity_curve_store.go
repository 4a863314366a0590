package memory

import (
	"context"
	"sync"

	"ashare-quant-lab/internal/domain"
	"ashare-quant-lab/internal/storage"
)

// EquityCurveStore is an in-memory implementation of storage.EquityCurveStore.
type EquityCurveStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.EquityCurvePoint // keyed by run_id, date ASC
}

// NewEquityCurveStore creates a new in-memory equity curve store.
func NewEquityCurveStore() *EquityCurveStore {
	return &EquityCurveStore{
		data: make(map[string][]*domain.EquityCurvePoint),
	}
}

// InsertBulk adds the curve of a run atomically. Points must be strictly date-ordered.
func (s *EquityCurveStore) InsertBulk(_ context.Context, runID string, points []*domain.EquityCurvePoint) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(points) == 0 {
		return nil
	}

	for i, p := range points {
		if p == nil {
			return storage.ErrInvalidInput
		}
		if i > 0 && !p.Date.After(points[i-1].Date) {
			return storage.ErrDuplicateKey
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[runID]; exists {
		return storage.ErrDuplicateKey
	}

	curve := make([]*domain.EquityCurvePoint, len(points))
	for i, p := range points {
		copy := *p
		curve[i] = &copy
	}
	s.data[runID] = curve
	return nil
}

// GetByRunID retrieves the curve of a run, ordered by date ASC.
func (s *EquityCurveStore) GetByRunID(_ context.Context, runID string) ([]*domain.EquityCurvePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	curve := s.data[runID]
	result := make([]*domain.EquityCurvePoint, len(curve))
	for i, p := range curve {
		copy := *p
		result[i] = &copy
	}
	return result, nil
}

var _ storage.EquityCurveStore = (*EquityCurveStore)(nil)
