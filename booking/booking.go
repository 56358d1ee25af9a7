package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// DateLayout is the calendar-day format used for bucket keys and the API.
const DateLayout = "2006-01-02"

// Booking is one reservation of a car on a single day. It is embedded in its
// Bucket and never stored on its own.
type Booking struct {
	ID           string    `json:"id" firestore:"id"`
	Users        []string  `json:"users" firestore:"users"`
	StartTime    int       `json:"startTime" firestore:"startTime"`
	EndTime      int       `json:"endTime" firestore:"endTime"`
	Distance     float64   `json:"distance" firestore:"distance"`
	Destination  string    `json:"destination,omitempty" firestore:"destination"`
	ByUser       string    `json:"byUser" firestore:"byUser"`
	RecurrenceID string    `json:"recurrenceId,omitempty" firestore:"recurrenceId"`
	CreatedAt    time.Time `json:"createdAt" firestore:"createdAt"`
}

// Key identifies a bucket: one car on one calendar day.
type Key struct {
	Date time.Time
	Car  string
}

// NewKey returns a key with the date truncated to the calendar day.
func NewKey(date time.Time, car string) Key {
	return Key{Date: Day(date), Car: car}
}

// DateString formats the key's date as YYYY-MM-DD.
func (k Key) DateString() string {
	return k.Date.Format(DateLayout)
}

// ID is the document id used by stores that key buckets by a single string.
func (k Key) ID() string {
	return k.DateString() + "_" + k.Car
}

func (k Key) String() string {
	return k.DateString() + "/" + k.Car
}

// Bucket holds every booking of one car on one day, ordered by StartTime.
// Version is bumped by the store on every successful write and is zero for a
// bucket that has never been stored.
type Bucket struct {
	Key
	Bookings []Booking
	Version  int64
}

// Find returns the index of the booking with the given id, or -1.
func (b Bucket) Find(id string) int {
	for i, bk := range b.Bookings {
		if bk.ID == id {
			return i
		}
	}
	return -1
}

// EncodeBookings serializes a bucket's bookings for document-style columns.
func EncodeBookings(bookings []Booking) ([]byte, error) {
	if bookings == nil {
		bookings = []Booking{}
	}
	return json.Marshal(bookings)
}

// DecodeBookings is the inverse of EncodeBookings.
func DecodeBookings(data []byte) ([]Booking, error) {
	var bookings []Booking
	if len(data) == 0 {
		return bookings, nil
	}
	if err := json.Unmarshal(data, &bookings); err != nil {
		return nil, fmt.Errorf("decoding bookings: %w", err)
	}
	return bookings, nil
}

// Recurrence describes the rule that generated a set of bookings sharing a
// RecurrenceID. It is written once and never mutated.
type Recurrence struct {
	ID               string
	IsMultiDay       bool
	RecurringDays    []time.Weekday
	StartDate        time.Time
	RecurringEndDate time.Time
	CreatedAt        time.Time
}

// Mode selects how a booking request is expanded into days.
type Mode int

const (
	ModeSingle Mode = iota
	ModeWeekly
	ModeMultiDay
)

var modeNames = [...]string{"single", "weekly", "multi-day"}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return fmt.Sprintf("Mode(%d)", int(m))
	}
	return modeNames[m]
}

// ParseMode accepts the names produced by String. An empty string is single.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "single":
		return ModeSingle, nil
	case "weekly", "weekly-recurring", "recurring":
		return ModeWeekly, nil
	case "multi-day", "multiday":
		return ModeMultiDay, nil
	}
	return ModeSingle, fmt.Errorf("unknown booking mode %q", s)
}

func (m Mode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *Mode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseMode(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, &ParseError{Input: s, Reason: "date must be YYYY-MM-DD"}
	}
	return t, nil
}

// EstimateCost returns the trip cost for a distance at the given rate.
func EstimateCost(distance, costPerKm float64) float64 {
	if distance <= 0 || costPerKm <= 0 {
		return 0
	}
	return distance * costPerKm
}
