package booking

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	// ErrVersionConflict is returned by a Store when a bucket changed between
	// read and write. The Writer retries it; it is not a booking overlap.
	ErrVersionConflict = errors.New("booking: bucket version conflict")

	ErrBookingNotFound = errors.New("booking: booking not found")

	// ErrUndeclaredBucket means a transaction touched a bucket whose key
	// was not passed to Transact.
	ErrUndeclaredBucket = errors.New("booking: bucket not declared in transaction")

	// ErrRecurrenceNotFound is returned by ReadRecurrence for unknown ids.
	ErrRecurrenceNotFound = errors.New("booking: recurrence not found")
)

// ParseError reports malformed clock or date input.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("booking: cannot parse %q: %s", e.Input, e.Reason)
}

// InvalidRangeError reports an end date before the start date.
type InvalidRangeError struct {
	Start time.Time
	End   time.Time
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("booking: end date %s is before start date %s",
		e.End.Format(DateLayout), e.Start.Format(DateLayout))
}

// ValidationError captures field level problems with a booking request.
type ValidationError struct {
	FieldErrors map[string]string
}

func (v *ValidationError) Error() string {
	if v == nil || len(v.FieldErrors) == 0 {
		return "booking: validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for f := range v.FieldErrors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+v.FieldErrors[f])
	}
	return "booking: validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, ok := v.FieldErrors[field]; ok {
		return
	}
	v.FieldErrors[field] = message
}

// ConflictError lists every bucket in which the requested booking would
// overlap an existing one. Nothing was written.
type ConflictError struct {
	Keys []Key
}

func (e *ConflictError) Error() string {
	dates := make([]string, 0, len(e.Keys))
	for _, k := range e.Keys {
		dates = append(dates, k.String())
	}
	return "booking: overlaps existing booking on " + strings.Join(dates, ", ")
}

// Dates returns the conflicting dates in ascending order without duplicates.
func (e *ConflictError) Dates() []string {
	seen := make(map[string]struct{}, len(e.Keys))
	dates := make([]string, 0, len(e.Keys))
	for _, k := range e.Keys {
		d := k.DateString()
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}
