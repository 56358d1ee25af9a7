package booking

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// MinutesPerDay is also the end-of-day sentinel: a window ending at 1440
	// runs to midnight and is rendered as "24:00".
	MinutesPerDay = 24 * 60
)

// ParseClock converts "HH:MM" to minutes since midnight. "24:00" is accepted
// as the end-of-day sentinel.
func ParseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok || len(hh) != 2 || len(mm) != 2 {
		return 0, &ParseError{Input: s, Reason: "expected HH:MM"}
	}
	hours, err := strconv.Atoi(hh)
	if err != nil || hh[0] == '+' || hh[0] == '-' {
		return 0, &ParseError{Input: s, Reason: "hours are not numeric"}
	}
	minutes, err := strconv.Atoi(mm)
	if err != nil || mm[0] == '+' || mm[0] == '-' {
		return 0, &ParseError{Input: s, Reason: "minutes are not numeric"}
	}
	if hours == 24 && minutes == 0 {
		return MinutesPerDay, nil
	}
	if hours < 0 || hours > 23 {
		return 0, &ParseError{Input: s, Reason: "hours must be 00-23"}
	}
	if minutes < 0 || minutes > 59 {
		return 0, &ParseError{Input: s, Reason: "minutes must be 00-59"}
	}
	return hours*60 + minutes, nil
}

// FormatClock converts minutes since midnight to "HH:MM". Values are clamped
// to 0..1440 and 1440 renders as "24:00".
func FormatClock(m int) string {
	m = clampMinutes(m)
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// ClockLabel is the compact form used in overview cells: "9", "9:30", "24".
func ClockLabel(m int) string {
	m = clampMinutes(m)
	if m%60 == 0 {
		return strconv.Itoa(m / 60)
	}
	return fmt.Sprintf("%d:%02d", m/60, m%60)
}

func clampMinutes(m int) int {
	if m < 0 {
		return 0
	}
	if m > MinutesPerDay {
		return MinutesPerDay
	}
	return m
}
