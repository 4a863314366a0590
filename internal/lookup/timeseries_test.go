package lookup

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ashare-quant-lab/internal/domain"
)

func day(n int) time.Time {
	return time.Date(2024, 1, n, 0, 0, 0, 0, time.UTC)
}

func testBars() []*domain.Bar {
	return []*domain.Bar{
		{Date: day(2), Close: decimal.NewFromInt(1)},
		{Date: day(3), Close: decimal.NewFromInt(2)},
		{Date: day(5), Close: decimal.NewFromInt(3)},
	}
}

func TestCloseAt_EmptySlice(t *testing.T) {
	_, err := CloseAt(day(2), nil)
	if err != ErrNoPriceData {
		t.Errorf("expected ErrNoPriceData, got %v", err)
	}

	_, err = CloseAt(day(2), []*domain.Bar{})
	if err != ErrNoPriceData {
		t.Errorf("expected ErrNoPriceData, got %v", err)
	}
}

func TestCloseAt_ExactMatch(t *testing.T) {
	price, err := CloseAt(day(3), testBars())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !price.Equal(decimal.NewFromInt(2)) {
		t.Errorf("expected 2, got %s", price)
	}
}

func TestCloseAt_CarriesForward(t *testing.T) {
	// day 4 has no bar: the close of day 3 is carried forward
	price, err := CloseAt(day(4), testBars())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !price.Equal(decimal.NewFromInt(2)) {
		t.Errorf("expected 2, got %s", price)
	}
}

func TestCloseAt_BeforeFirst(t *testing.T) {
	// must not fall forward to a later bar
	_, err := CloseAt(day(1), testBars())
	if err != ErrNoPriceData {
		t.Errorf("expected ErrNoPriceData, got %v", err)
	}
}

func TestCloseAt_AfterLast(t *testing.T) {
	price, err := CloseAt(day(20), testBars())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !price.Equal(decimal.NewFromInt(3)) {
		t.Errorf("expected 3, got %s", price)
	}
}

func TestBarsBefore(t *testing.T) {
	bars := testBars()

	tests := []struct {
		cutoff time.Time
		want   int
	}{
		{day(1), 0},
		{day(2), 0},
		{day(3), 1},
		{day(4), 2},
		{day(5), 2},
		{day(6), 3},
	}
	for _, tt := range tests {
		if got := BarsBefore(tt.cutoff, bars); got != tt.want {
			t.Errorf("BarsBefore(%s) = %d, want %d", tt.cutoff.Format(domain.DateLayout), got, tt.want)
		}
	}
}
