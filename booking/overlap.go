package booking

import "sort"

// SortByStart orders bookings by StartTime, keeping the relative order of
// bookings that start at the same minute.
func SortByStart(bookings []Booking) {
	sort.SliceStable(bookings, func(i, j int) bool {
		return bookings[i].StartTime < bookings[j].StartTime
	})
}

// HasOverlap reports whether any two bookings in a StartTime-sorted slice
// intersect. Windows are half-open, so 10:00-12:00 and 12:00-14:00 touch
// without overlapping.
func HasOverlap(sorted []Booking) bool {
	for i := 1; i < len(sorted); i++ {
		if sorted[i].StartTime < sorted[i-1].EndTime {
			return true
		}
	}
	return false
}

// Overlaps re-scans a sorted slice and returns every pair of intersecting
// bookings. The writer logs these pairs when it rejects a bucket.
func Overlaps(sorted []Booking) [][2]Booking {
	var pairs [][2]Booking
	for i := range sorted {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[j].StartTime >= sorted[i].EndTime {
				break
			}
			pairs = append(pairs, [2]Booking{sorted[i], sorted[j]})
		}
	}
	return pairs
}
