package booking

import (
	"testing"
)

func TestProjectToGrid(t *testing.T) {
	d1 := date(t, "2024-06-03")
	d2 := date(t, "2024-06-04")

	buckets := []Bucket{
		{Key: NewKey(d1, "volvo"), Bookings: []Booking{
			{ID: "late", StartTime: 900, EndTime: 960},
			{ID: "early", StartTime: 480, EndTime: 540},
		}},
		{Key: NewKey(d2, "tesla"), Bookings: []Booking{{ID: "t1", StartTime: 600, EndTime: 660}}},
		{Key: NewKey(d2, "scrapped"), Bookings: []Booking{{ID: "x"}}},
		{Key: NewKey(date(t, "2024-07-01"), "volvo"), Bookings: []Booking{{ID: "y"}}},
	}

	g := ProjectToGrid(buckets, []string{"volvo", "tesla"}, DaysFrom(d1, 2))

	if len(g.Cells) != 2 || len(g.Cells[0]) != 2 {
		t.Fatalf("grid shape = %dx%d, want 2x2", len(g.Cells), len(g.Cells[0]))
	}

	cell := g.Cell(d1, "volvo")
	if len(cell) != 2 || cell[0].ID != "early" || cell[1].ID != "late" {
		t.Errorf("volvo on %s = %+v, want early then late", d1.Format(DateLayout), cell)
	}
	if got := g.Cell(d2, "tesla"); len(got) != 1 || got[0].ID != "t1" {
		t.Errorf("tesla on %s = %+v", d2.Format(DateLayout), got)
	}
	if got := g.Cell(d1, "tesla"); len(got) != 0 {
		t.Errorf("empty cell = %+v, want none", got)
	}
	if got := g.Cell(d2, "scrapped"); got != nil {
		t.Errorf("unknown car cell = %+v, want nil", got)
	}
}

func TestDaysFrom(t *testing.T) {
	days := DaysFrom(date(t, "2024-02-27"), 4)
	want := []string{"2024-02-27", "2024-02-28", "2024-02-29", "2024-03-01"}
	if len(days) != len(want) {
		t.Fatalf("got %d days, want %d", len(days), len(want))
	}
	for i, d := range days {
		if d.Format(DateLayout) != want[i] {
			t.Errorf("day %d = %s, want %s", i, d.Format(DateLayout), want[i])
		}
	}
}

func TestLabel(t *testing.T) {
	tests := []struct {
		name string
		b    Booking
		want string
	}{
		{
			name: "full",
			b:    Booking{Users: []string{"anna", "bo"}, StartTime: 540, EndTime: 1050, Distance: 124, Destination: "Uppsala"},
			want: "anna, bo 9-17:30 (12) Uppsala",
		},
		{
			name: "rounds half up",
			b:    Booking{Users: []string{"anna"}, StartTime: 0, EndTime: MinutesPerDay, Distance: 15},
			want: "anna 0-24 (2)",
		},
		{
			name: "no distance",
			b:    Booking{Users: []string{"cia"}, StartTime: 600, EndTime: 660, Destination: "ICA"},
			want: "cia 10-11 ICA",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Label(tt.b); got != tt.want {
				t.Errorf("Label() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEstimateCost(t *testing.T) {
	if got := EstimateCost(100, 2.5); got != 250 {
		t.Errorf("EstimateCost(100, 2.5) = %v, want 250", got)
	}
	if got := EstimateCost(0, 2.5); got != 0 {
		t.Errorf("EstimateCost(0, 2.5) = %v, want 0", got)
	}
	if got := EstimateCost(100, 0); got != 0 {
		t.Errorf("EstimateCost(100, 0) = %v, want 0", got)
	}
}
