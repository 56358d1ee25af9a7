package booking

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DefaultPageDays is how many days one overview page spans.
const DefaultPageDays = 14

// Grid is a calendar page: Cells[i][j] holds the bookings of Cars[j] on
// Dates[i], ordered by StartTime.
type Grid struct {
	Dates []time.Time
	Cars  []string
	Cells [][][]Booking
}

// Cell returns the bookings of car on date, or nil when either is not part
// of the grid.
func (g Grid) Cell(date time.Time, car string) []Booking {
	for i, d := range g.Dates {
		if !d.Equal(Day(date)) {
			continue
		}
		for j, c := range g.Cars {
			if c == car {
				return g.Cells[i][j]
			}
		}
	}
	return nil
}

// LoadRange reads every bucket with a date in [from, to).
func LoadRange(ctx context.Context, store Store, from, to time.Time) ([]Bucket, error) {
	from, to = Day(from), Day(to)
	if to.Before(from) {
		return nil, &InvalidRangeError{Start: from, End: to}
	}
	buckets, err := store.QueryBuckets(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("loading buckets %s..%s: %w", from.Format(DateLayout), to.Format(DateLayout), err)
	}
	return buckets, nil
}

// ProjectToGrid places buckets into a dates × cars grid. Buckets for dates or
// cars outside the grid are dropped.
func ProjectToGrid(buckets []Bucket, cars []string, dates []time.Time) Grid {
	g := Grid{
		Dates: make([]time.Time, len(dates)),
		Cars:  append([]string(nil), cars...),
		Cells: make([][][]Booking, len(dates)),
	}

	dateIdx := make(map[string]int, len(dates))
	for i, d := range dates {
		g.Dates[i] = Day(d)
		dateIdx[g.Dates[i].Format(DateLayout)] = i
		g.Cells[i] = make([][]Booking, len(cars))
	}
	carIdx := make(map[string]int, len(cars))
	for j, c := range cars {
		carIdx[c] = j
	}

	for _, b := range buckets {
		i, ok := dateIdx[b.DateString()]
		if !ok {
			continue
		}
		j, ok := carIdx[b.Car]
		if !ok {
			continue
		}
		cell := append(g.Cells[i][j], b.Bookings...)
		SortByStart(cell)
		g.Cells[i][j] = cell
	}
	return g
}

// DaysFrom returns n consecutive calendar days starting at start.
func DaysFrom(start time.Time, n int) []time.Time {
	start = Day(start)
	days := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		days = append(days, start.AddDate(0, 0, i))
	}
	return days
}

// Label renders a booking the way overview cells show it:
// "anna, bo 9-17:30 (12) Uppsala". Distance is shown in mil (10 km).
func Label(b Booking) string {
	var sb strings.Builder
	sb.WriteString(strings.Join(b.Users, ", "))
	sb.WriteString(" ")
	sb.WriteString(ClockLabel(b.StartTime))
	sb.WriteString("-")
	sb.WriteString(ClockLabel(b.EndTime))
	if b.Distance > 0 {
		sb.WriteString(" (")
		sb.WriteString(strconv.FormatFloat(math.Round(b.Distance/10), 'f', -1, 64))
		sb.WriteString(")")
	}
	if b.Destination != "" {
		sb.WriteString(" ")
		sb.WriteString(b.Destination)
	}
	return sb.String()
}
