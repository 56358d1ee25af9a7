package booking

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

// Request is a booking intent before it is expanded into days. Times are
// minutes since midnight.
type Request struct {
	Mode          Mode
	StartDate     time.Time
	EndDate       time.Time
	RecurringDays []time.Weekday
	StartTime     int
	EndTime       int
	Distance      float64
}

// MaxRangeDays bounds the StartDate..EndDate span of weekly and multi-day
// requests, both dates included.
const MaxRangeDays = 366

// Leg is one concrete day of a materialized request.
type Leg struct {
	Date      time.Time
	StartTime int
	EndTime   int
	Distance  float64
}

var rruleWeekdays = [...]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

// Materialize expands a request into the legs that must be written, in
// ascending date order. It performs no I/O.
//
// Multi-day requests hold the car from StartTime on the first day to EndTime
// on the last; days in between are booked whole and the whole distance is
// attributed to the final leg.
func Materialize(req Request) ([]Leg, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	start := Day(req.StartDate)
	switch req.Mode {
	case ModeSingle:
		return []Leg{{Date: start, StartTime: req.StartTime, EndTime: req.EndTime, Distance: req.Distance}}, nil
	case ModeWeekly:
		return materializeWeekly(req, start, Day(req.EndDate))
	case ModeMultiDay:
		return materializeMultiDay(req, start, Day(req.EndDate)), nil
	}
	return nil, fmt.Errorf("booking: unsupported mode %s", req.Mode)
}

func materializeWeekly(req Request, start, end time.Time) ([]Leg, error) {
	days := make([]rrule.Weekday, 0, len(req.RecurringDays))
	for _, d := range req.RecurringDays {
		days = append(days, rruleWeekdays[d])
	}

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   start,
		Until:     end,
		Byweekday: days,
	})
	if err != nil {
		return nil, fmt.Errorf("booking: building recurrence rule: %w", err)
	}

	occurrences := rule.All()
	if len(occurrences) == 0 {
		vErr := &ValidationError{}
		vErr.add("recurringDays", "no selected weekday falls within the date range")
		return nil, vErr
	}

	legs := make([]Leg, 0, len(occurrences))
	for _, occ := range occurrences {
		legs = append(legs, Leg{
			Date:      Day(occ),
			StartTime: req.StartTime,
			EndTime:   req.EndTime,
			Distance:  req.Distance,
		})
	}
	return legs, nil
}

func materializeMultiDay(req Request, start, end time.Time) []Leg {
	if start.Equal(end) {
		return []Leg{{Date: start, StartTime: req.StartTime, EndTime: req.EndTime, Distance: req.Distance}}
	}

	var legs []Leg
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		leg := Leg{Date: d, StartTime: 0, EndTime: MinutesPerDay}
		switch {
		case d.Equal(start):
			leg.StartTime = req.StartTime
		case d.Equal(end):
			leg.EndTime = req.EndTime
			leg.Distance = req.Distance
		}
		legs = append(legs, leg)
	}
	return legs
}

func validateRequest(req Request) error {
	if req.StartDate.IsZero() {
		vErr := &ValidationError{}
		vErr.add("date", "start date is required")
		return vErr
	}

	needsEnd := req.Mode == ModeWeekly || req.Mode == ModeMultiDay
	if needsEnd && req.EndDate.IsZero() {
		vErr := &ValidationError{}
		vErr.add("endDate", fmt.Sprintf("end date is required for %s bookings", req.Mode))
		return vErr
	}
	if needsEnd && Day(req.EndDate).Before(Day(req.StartDate)) {
		return &InvalidRangeError{Start: Day(req.StartDate), End: Day(req.EndDate)}
	}
	if needsEnd && rangeDays(req.StartDate, req.EndDate) > MaxRangeDays {
		vErr := &ValidationError{}
		vErr.add("endDate", fmt.Sprintf("a booking can span at most %d days", MaxRangeDays))
		return vErr
	}

	vErr := &ValidationError{}
	if req.StartTime < 0 || req.StartTime >= MinutesPerDay {
		vErr.add("startTime", "start time must be between 00:00 and 23:59")
	}
	if req.EndTime <= 0 || req.EndTime > MinutesPerDay {
		vErr.add("endTime", "end time must be between 00:01 and 24:00")
	}
	if req.Distance < 0 {
		vErr.add("distance", "distance cannot be negative")
	}

	// A multi-day window may end earlier in the day than it started, unless
	// it collapses into a single day.
	sameDay := req.Mode != ModeMultiDay || Day(req.StartDate).Equal(Day(req.EndDate))
	if sameDay && req.StartTime >= req.EndTime {
		vErr.add("endTime", "end time must be after start time")
	}

	switch req.Mode {
	case ModeSingle, ModeMultiDay:
	case ModeWeekly:
		if len(req.RecurringDays) == 0 {
			vErr.add("recurringDays", "select at least one weekday")
		}
		for _, d := range req.RecurringDays {
			if d < time.Sunday || d > time.Saturday {
				vErr.add("recurringDays", fmt.Sprintf("invalid weekday %d", d))
			}
		}
	default:
		vErr.add("mode", fmt.Sprintf("unsupported mode %s", req.Mode))
	}

	if vErr.HasErrors() {
		return vErr
	}
	return nil
}

// rangeDays counts the days from start to end inclusive.
func rangeDays(start, end time.Time) int {
	return int(Day(end).Sub(Day(start)).Hours()/24) + 1
}
