package marketdata

import (
	"context"
	"fmt"
	"time"

	"ashare-quant-lab/internal/domain"
	"ashare-quant-lab/internal/storage"
)

// Load reads every instrument's bars within [from, to] from store and builds a Series.
// All I/O happens here, before a simulation starts.
func Load(ctx context.Context, store storage.BarStore, instruments []string, from, to time.Time) (*Series, error) {
	var bars []*domain.Bar
	for _, id := range instruments {
		got, err := store.GetByTimeRange(ctx, id, from, to)
		if err != nil {
			return nil, fmt.Errorf("load bars for %s: %w", id, err)
		}
		bars = append(bars, got...)
	}
	return NewSeries(bars)
}
