// Package storetest checks that a booking.Store honours the bucket
// compare-and-swap contract. Each backend runs it from its own tests.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semanticallynull/carpool-backend/booking"
)

// Run exercises newStore against the Store contract. newStore must return an
// empty store for every call.
func Run(t *testing.T, newStore func(t *testing.T) booking.Store) {
	t.Run("MissingBucketIsEmpty", func(t *testing.T) { testMissingBucket(t, newStore(t)) })
	t.Run("WriteAndRead", func(t *testing.T) { testWriteAndRead(t, newStore(t)) })
	t.Run("StaleVersionIsRejected", func(t *testing.T) { testStaleVersion(t, newStore(t)) })
	t.Run("BatchIsAtomic", func(t *testing.T) { testBatchAtomic(t, newStore(t)) })
	t.Run("QueryIsHalfOpen", func(t *testing.T) { testQueryRange(t, newStore(t)) })
	t.Run("Recurrences", func(t *testing.T) { testRecurrences(t, newStore(t)) })
}

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := booking.ParseDate(s)
	require.NoError(t, err)
	return d
}

func sample(id string, start, end int) booking.Booking {
	return booking.Booking{
		ID:          id,
		Users:       []string{"anna", "bo"},
		StartTime:   start,
		EndTime:     end,
		Distance:    42.5,
		Destination: "Uppsala",
		ByUser:      "anna",
		CreatedAt:   time.Date(2024, 4, 1, 8, 30, 0, 0, time.UTC),
	}
}

func testMissingBucket(t *testing.T, s booking.Store) {
	key := booking.NewKey(date(t, "2024-04-10"), "volvo")

	b, err := s.ReadBucket(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, int64(0), b.Version)
	assert.Empty(t, b.Bookings)
	assert.Equal(t, key.ID(), b.ID())
}

func testWriteAndRead(t *testing.T, s booking.Store) {
	ctx := context.Background()
	key := booking.NewKey(date(t, "2024-04-10"), "volvo")

	err := s.WriteBuckets(ctx, []booking.Bucket{{Key: key, Bookings: []booking.Booking{sample("a", 600, 720)}}})
	require.NoError(t, err)

	b, err := s.ReadBucket(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(1), b.Version)
	require.Len(t, b.Bookings, 1)

	got := b.Bookings[0]
	want := sample("a", 600, 720)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Users, got.Users)
	assert.Equal(t, want.StartTime, got.StartTime)
	assert.Equal(t, want.EndTime, got.EndTime)
	assert.InDelta(t, want.Distance, got.Distance, 1e-9)
	assert.Equal(t, want.Destination, got.Destination)
	assert.Equal(t, want.ByUser, got.ByUser)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt), "created at %v, want %v", got.CreatedAt, want.CreatedAt)

	b.Bookings = append(b.Bookings, sample("b", 720, 840))
	require.NoError(t, s.WriteBuckets(ctx, []booking.Bucket{b}))

	b, err = s.ReadBucket(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(2), b.Version)
	assert.Len(t, b.Bookings, 2)

	b.Bookings = nil
	require.NoError(t, s.WriteBuckets(ctx, []booking.Bucket{b}))
	b, err = s.ReadBucket(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(3), b.Version)
	assert.Empty(t, b.Bookings)
}

func testStaleVersion(t *testing.T, s booking.Store) {
	ctx := context.Background()
	key := booking.NewKey(date(t, "2024-04-10"), "volvo")

	first, err := s.ReadBucket(ctx, key)
	require.NoError(t, err)
	second := first

	first.Bookings = []booking.Booking{sample("a", 600, 720)}
	require.NoError(t, s.WriteBuckets(ctx, []booking.Bucket{first}))

	second.Bookings = []booking.Booking{sample("b", 900, 960)}
	err = s.WriteBuckets(ctx, []booking.Bucket{second})
	assert.True(t, errors.Is(err, booking.ErrVersionConflict), "stale insert error = %v", err)

	current, err := s.ReadBucket(ctx, key)
	require.NoError(t, err)
	stale := current
	current.Bookings = append(current.Bookings, sample("c", 1000, 1100))
	require.NoError(t, s.WriteBuckets(ctx, []booking.Bucket{current}))

	stale.Bookings = nil
	err = s.WriteBuckets(ctx, []booking.Bucket{stale})
	assert.True(t, errors.Is(err, booking.ErrVersionConflict), "stale update error = %v", err)

	b, err := s.ReadBucket(ctx, key)
	require.NoError(t, err)
	require.Len(t, b.Bookings, 2)
	assert.Equal(t, "a", b.Bookings[0].ID)
}

func testBatchAtomic(t *testing.T, s booking.Store) {
	ctx := context.Background()
	k1 := booking.NewKey(date(t, "2024-03-01"), "volvo")
	k2 := booking.NewKey(date(t, "2024-03-02"), "volvo")

	// Someone else creates k2 first.
	require.NoError(t, s.WriteBuckets(ctx, []booking.Bucket{{Key: k2, Bookings: []booking.Booking{sample("x", 60, 120)}}}))

	err := s.WriteBuckets(ctx, []booking.Bucket{
		{Key: k1, Bookings: []booking.Booking{sample("m1", 540, 1440)}},
		{Key: k2, Bookings: []booking.Booking{sample("m2", 0, 1020)}},
	})
	assert.True(t, errors.Is(err, booking.ErrVersionConflict), "batch error = %v", err)

	b1, err := s.ReadBucket(ctx, k1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), b1.Version, "first bucket of a failed batch was written")
	assert.Empty(t, b1.Bookings)

	b2, err := s.ReadBucket(ctx, k2)
	require.NoError(t, err)
	require.Len(t, b2.Bookings, 1)
	assert.Equal(t, "x", b2.Bookings[0].ID)

	err = s.WriteBuckets(ctx, []booking.Bucket{
		{Key: k1, Bookings: []booking.Booking{sample("m1", 540, 1440)}},
		{Key: k2, Bookings: append(b2.Bookings, sample("m2", 120, 1020)), Version: b2.Version},
	})
	require.NoError(t, err)

	b1, err = s.ReadBucket(ctx, k1)
	require.NoError(t, err)
	assert.Len(t, b1.Bookings, 1)
}

func testQueryRange(t *testing.T, s booking.Store) {
	ctx := context.Background()
	var batch []booking.Bucket
	for _, d := range []string{"2024-04-09", "2024-04-10", "2024-04-11", "2024-04-12"} {
		for _, car := range []string{"volvo", "tesla"} {
			batch = append(batch, booking.Bucket{
				Key:      booking.NewKey(date(t, d), car),
				Bookings: []booking.Booking{sample(d+car, 600, 660)},
			})
		}
	}
	require.NoError(t, s.WriteBuckets(ctx, batch))

	buckets, err := s.QueryBuckets(ctx, date(t, "2024-04-10"), date(t, "2024-04-12"))
	require.NoError(t, err)
	require.Len(t, buckets, 4)

	seen := map[string]bool{}
	for _, b := range buckets {
		seen[b.ID()] = true
		assert.Len(t, b.Bookings, 1)
		assert.Equal(t, int64(1), b.Version)
	}
	for _, id := range []string{"2024-04-10_volvo", "2024-04-10_tesla", "2024-04-11_volvo", "2024-04-11_tesla"} {
		assert.True(t, seen[id], "missing bucket %s", id)
	}

	empty, err := s.QueryBuckets(ctx, date(t, "2025-01-01"), date(t, "2025-01-15"))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testRecurrences(t *testing.T, s booking.Store) {
	ctx := context.Background()

	_, err := s.ReadRecurrence(ctx, "does-not-exist")
	assert.True(t, errors.Is(err, booking.ErrRecurrenceNotFound), "unknown recurrence error = %v", err)

	rec := booking.Recurrence{
		ID:               "rec-1",
		RecurringDays:    []time.Weekday{time.Tuesday, time.Thursday},
		StartDate:        date(t, "2024-01-01"),
		RecurringEndDate: date(t, "2024-01-14"),
		CreatedAt:        time.Date(2023, 12, 20, 10, 0, 0, 0, time.UTC),
	}
	id, err := s.CreateRecurrence(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, "rec-1", id)

	got, err := s.ReadRecurrence(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.False(t, got.IsMultiDay)
	assert.Equal(t, rec.RecurringDays, got.RecurringDays)
	assert.Equal(t, "2024-01-01", got.StartDate.Format(booking.DateLayout))
	assert.Equal(t, "2024-01-14", got.RecurringEndDate.Format(booking.DateLayout))
	assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))

	generated, err := s.CreateRecurrence(ctx, booking.Recurrence{
		IsMultiDay:       true,
		StartDate:        date(t, "2024-03-01"),
		RecurringEndDate: date(t, "2024-03-03"),
		CreatedAt:        time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, generated)

	multi, err := s.ReadRecurrence(ctx, generated)
	require.NoError(t, err)
	assert.True(t, multi.IsMultiDay)
	assert.Empty(t, multi.RecurringDays)
}
