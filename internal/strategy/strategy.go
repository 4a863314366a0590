package strategy

import (
	"context"
	"time"

	"ashare-quant-lab/internal/domain"
	"ashare-quant-lab/internal/marketdata"
)

// Strategy produces one trading decision per simulated day.
type Strategy interface {
	// Signal decides what to hold on day. The window only exposes bars
	// strictly before day. A nil signal means hold.
	Signal(ctx context.Context, day time.Time, window *marketdata.Window, portfolio domain.PortfolioSnapshot) (*domain.Signal, error)

	// ID returns strategy identifier (includes parameters).
	ID() string
}
