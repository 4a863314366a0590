package backtest

import "errors"

var (
	// ErrInvalidConfiguration is returned before any day runs when Config is rejected.
	ErrInvalidConfiguration = errors.New("invalid backtest configuration")

	// ErrMissingPriceData is returned when a held instrument cannot be valued,
	// and under GapFail when a trade targets an instrument without a bar.
	ErrMissingPriceData = errors.New("missing price data")

	// ErrMissingTradingDay is returned under GapFail when a calendar day has no bars.
	ErrMissingTradingDay = errors.New("missing trading day")
)
