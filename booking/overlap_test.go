package booking

import (
	"math/rand"
	"testing"
)

func testWindow(start, end int) Booking {
	return Booking{StartTime: start, EndTime: end}
}

func TestHasOverlap(t *testing.T) {
	tests := []struct {
		name     string
		bookings []Booking
		want     bool
	}{
		{name: "empty", want: false},
		{name: "single", bookings: []Booking{testWindow(600, 720)}, want: false},
		{name: "touching", bookings: []Booking{testWindow(600, 720), testWindow(720, 840)}, want: false},
		{name: "overlapping", bookings: []Booking{testWindow(600, 720), testWindow(660, 780)}, want: true},
		{name: "contained", bookings: []Booking{testWindow(480, 1020), testWindow(600, 660)}, want: true},
		{name: "same start", bookings: []Booking{testWindow(600, 660), testWindow(600, 720)}, want: true},
		{name: "gaps", bookings: []Booking{testWindow(0, 60), testWindow(120, 180), testWindow(1380, MinutesPerDay)}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SortByStart(tt.bookings)
			if got := HasOverlap(tt.bookings); got != tt.want {
				t.Errorf("HasOverlap() = %v, want %v", got, tt.want)
			}
		})
	}
}

// HasOverlap on a sorted slice must agree with a check over every pair.
func TestHasOverlapMatchesPairwise(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 500; i++ {
		n := rng.Intn(6)
		bookings := make([]Booking, n)
		for j := range bookings {
			start := rng.Intn(96) * 15
			length := (rng.Intn(12) + 1) * 15
			end := start + length
			if end > MinutesPerDay {
				end = MinutesPerDay
			}
			bookings[j] = testWindow(start, end)
		}

		pairwise := false
		for a := 0; a < n; a++ {
			for b := a + 1; b < n; b++ {
				if bookings[a].StartTime < bookings[b].EndTime && bookings[b].StartTime < bookings[a].EndTime {
					pairwise = true
				}
			}
		}

		SortByStart(bookings)
		if got := HasOverlap(bookings); got != pairwise {
			t.Fatalf("HasOverlap(%v) = %v, pairwise check says %v", bookings, got, pairwise)
		}
		if got := len(Overlaps(bookings)) > 0; got != pairwise {
			t.Fatalf("Overlaps(%v) found pairs = %v, pairwise check says %v", bookings, got, pairwise)
		}
	}
}

func TestSortByStartIsStable(t *testing.T) {
	bookings := []Booking{
		{ID: "b", StartTime: 600},
		{ID: "a", StartTime: 540},
		{ID: "c", StartTime: 600},
	}
	SortByStart(bookings)

	var ids string
	for _, b := range bookings {
		ids += b.ID
	}
	if ids != "abc" {
		t.Errorf("order = %q, want abc", ids)
	}
}
