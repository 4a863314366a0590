package portfolio

import "errors"

// Trade rejection errors. A rejected trade leaves the portfolio untouched.
var (
	// ErrInsufficientCash is returned when cash does not cover amount plus costs.
	ErrInsufficientCash = errors.New("insufficient cash")

	// ErrInsufficientShares is returned when selling more shares than held.
	ErrInsufficientShares = errors.New("insufficient shares")

	// ErrInvalidOrder is returned for non-positive share counts or prices,
	// unknown venues, or malformed trade records.
	ErrInvalidOrder = errors.New("invalid order")
)

// ErrMissingPrice is returned by MarkToMarket when a held instrument has no price.
var ErrMissingPrice = errors.New("missing price for held instrument")

// ErrInvalidInitialCash is returned when a manager is created with non-positive cash.
var ErrInvalidInitialCash = errors.New("initial cash must be positive")
