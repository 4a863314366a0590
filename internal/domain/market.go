package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Venue is the listing exchange of an instrument.
type Venue string

// Venue constants. The set is closed: cost lookups switch over it exhaustively.
const (
	VenueSSE  Venue = "SSE"  // Shanghai Stock Exchange
	VenueSZSE Venue = "SZSE" // Shenzhen Stock Exchange
	VenueBSE  Venue = "BSE"  // Beijing Stock Exchange
)

// Venues lists every supported venue in a stable order.
var Venues = []Venue{VenueSSE, VenueSZSE, VenueBSE}

// ErrUnknownVenue is returned when an instrument cannot be mapped to a venue.
var ErrUnknownVenue = errors.New("unknown venue")

// ParseVenue parses a venue name (case-insensitive).
func ParseVenue(s string) (Venue, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SSE", "SH":
		return VenueSSE, nil
	case "SZSE", "SZ":
		return VenueSZSE, nil
	case "BSE", "BJ":
		return VenueBSE, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownVenue, s)
	}
}

// VenueOf resolves the listing venue of an instrument.
// Accepts "600000.SH" style suffixes, falling back to the code prefix
// (6xxxxx Shanghai, 0xxxxx/3xxxxx Shenzhen, 4xxxxx/8xxxxx/92xxxx Beijing).
func VenueOf(instrumentID string) (Venue, error) {
	code := strings.ToUpper(strings.TrimSpace(instrumentID))
	if i := strings.LastIndexByte(code, '.'); i >= 0 {
		return ParseVenue(code[i+1:])
	}
	if len(code) != 6 {
		return "", fmt.Errorf("%w: %q", ErrUnknownVenue, instrumentID)
	}
	switch {
	case strings.HasPrefix(code, "92"):
		return VenueBSE, nil
	case code[0] == '6':
		return VenueSSE, nil
	case code[0] == '0', code[0] == '3':
		return VenueSZSE, nil
	case code[0] == '4', code[0] == '8':
		return VenueBSE, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownVenue, instrumentID)
	}
}

// Side is the direction of a trade.
type Side string

// Side constants.
const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Bar is one daily OHLCV bar for an instrument.
// Corresponds to daily_bars table in ClickHouse.
type Bar struct {
	InstrumentID string
	Date         time.Time // trading day, UTC midnight
	Open         decimal.Decimal
	High         decimal.Decimal
	Low          decimal.Decimal
	Close        decimal.Decimal
	Volume       int64 // shares
}

// DateLayout is the canonical textual date format.
const DateLayout = "2006-01-02"

// Day truncates t to its calendar day in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD date.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Day(t), nil
}
