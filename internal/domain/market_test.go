package domain

import (
	"errors"
	"testing"
	"time"
)

func TestVenueOf(t *testing.T) {
	tests := []struct {
		id   string
		want Venue
	}{
		{"600000.SH", VenueSSE},
		{"000001.SZ", VenueSZSE},
		{"300750.sz", VenueSZSE},
		{"430047.BJ", VenueBSE},
		{"688981", VenueSSE},
		{"002594", VenueSZSE},
		{"830799", VenueBSE},
		{"920002", VenueBSE},
	}

	for _, tt := range tests {
		got, err := VenueOf(tt.id)
		if err != nil {
			t.Errorf("VenueOf(%q) failed: %v", tt.id, err)
			continue
		}
		if got != tt.want {
			t.Errorf("VenueOf(%q) = %s, want %s", tt.id, got, tt.want)
		}
	}
}

func TestVenueOf_Unknown(t *testing.T) {
	for _, id := range []string{"AAPL", "123", "600000.HK", "900901"} {
		if _, err := VenueOf(id); !errors.Is(err, ErrUnknownVenue) {
			t.Errorf("VenueOf(%q): expected ErrUnknownVenue, got %v", id, err)
		}
	}
}

func TestDay(t *testing.T) {
	loc := time.FixedZone("CST", 8*3600)
	in := time.Date(2024, 3, 15, 14, 59, 0, 0, loc)
	got := Day(in)
	want := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Day() = %v, want %v", got, want)
	}
}

func TestParseDay(t *testing.T) {
	got, err := ParseDay(" 2024-01-02 ")
	if err != nil {
		t.Fatalf("ParseDay failed: %v", err)
	}
	if got.Format(DateLayout) != "2024-01-02" {
		t.Errorf("unexpected date %v", got)
	}
	if _, err := ParseDay("2024/01/02"); err == nil {
		t.Error("expected error for bad layout")
	}
}
