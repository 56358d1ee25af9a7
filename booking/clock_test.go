package booking

import (
	"errors"
	"fmt"
	"testing"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "00:00", want: 0},
		{in: "09:30", want: 570},
		{in: "23:59", want: 1439},
		{in: "24:00", want: MinutesPerDay},
		{in: "24:01", wantErr: true},
		{in: "25:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "9:30", wantErr: true},
		{in: "ab:cd", wantErr: true},
		{in: "-1:00", wantErr: true},
		{in: "+1:00", wantErr: true},
		{in: "", wantErr: true},
		{in: "1200", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if tt.wantErr {
				var pErr *ParseError
				if !errors.As(err, &pErr) {
					t.Fatalf("ParseClock(%q) error = %v, want *ParseError", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseClock(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseClock(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestClockRoundTrip(t *testing.T) {
	for h := 0; h < 24; h++ {
		for _, m := range []int{0, 15, 30, 45} {
			s := fmt.Sprintf("%02d:%02d", h, m)
			minutes, err := ParseClock(s)
			if err != nil {
				t.Fatalf("ParseClock(%q): %v", s, err)
			}
			if got := FormatClock(minutes); got != s {
				t.Errorf("FormatClock(ParseClock(%q)) = %q", s, got)
			}
		}
	}

	if got := FormatClock(MinutesPerDay); got != "24:00" {
		t.Errorf("FormatClock(1440) = %q, want 24:00", got)
	}
	if got, _ := ParseClock(FormatClock(MinutesPerDay)); got != MinutesPerDay {
		t.Errorf("end of day sentinel did not survive a round trip: got %d", got)
	}
}

func TestClockLabel(t *testing.T) {
	tests := map[int]string{
		0:             "0",
		540:           "9",
		570:           "9:30",
		1065:          "17:45",
		MinutesPerDay: "24",
	}
	for in, want := range tests {
		if got := ClockLabel(in); got != want {
			t.Errorf("ClockLabel(%d) = %q, want %q", in, got, want)
		}
	}
}
