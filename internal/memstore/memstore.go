// Package memstore is an in-process booking.Store used by tests and by the
// server when no database is configured.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/semanticallynull/carpool-backend/booking"
)

type Store struct {
	mu          sync.Mutex
	buckets     map[string]booking.Bucket
	recurrences map[string]booking.Recurrence

	// BeforeWrite, when set, runs inside WriteBuckets before versions are
	// compared. Tests use it to interleave concurrent writers.
	BeforeWrite func()
}

func New() *Store {
	return &Store{
		buckets:     make(map[string]booking.Bucket),
		recurrences: make(map[string]booking.Recurrence),
	}
}

func (s *Store) ReadBucket(_ context.Context, key booking.Key) (booking.Bucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key.ID()]
	if !ok {
		return booking.Bucket{Key: key}, nil
	}
	return clone(b), nil
}

func (s *Store) WriteBuckets(_ context.Context, buckets []booking.Bucket) error {
	if s.BeforeWrite != nil {
		s.BeforeWrite()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range buckets {
		if s.buckets[b.ID()].Version != b.Version {
			return booking.ErrVersionConflict
		}
	}
	for _, b := range buckets {
		b = clone(b)
		b.Version++
		s.buckets[b.ID()] = b
	}
	return nil
}

func (s *Store) QueryBuckets(_ context.Context, from, to time.Time) ([]booking.Bucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []booking.Bucket
	for _, b := range s.buckets {
		if b.Date.Before(from) || !b.Date.Before(to) {
			continue
		}
		out = append(out, clone(b))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Car < out[j].Car
	})
	return out, nil
}

func (s *Store) CreateRecurrence(_ context.Context, rec booking.Recurrence) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.RecurringDays = append([]time.Weekday(nil), rec.RecurringDays...)
	s.recurrences[rec.ID] = rec
	return rec.ID, nil
}

func (s *Store) ReadRecurrence(_ context.Context, id string) (booking.Recurrence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.recurrences[id]
	if !ok {
		return booking.Recurrence{}, booking.ErrRecurrenceNotFound
	}
	return rec, nil
}

// Recurrences returns how many recurrences have been stored.
func (s *Store) Recurrences() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.recurrences)
}

func clone(b booking.Bucket) booking.Bucket {
	bookings := make([]booking.Booking, len(b.Bookings))
	for i, bk := range b.Bookings {
		bk.Users = append([]string(nil), bk.Users...)
		bookings[i] = bk
	}
	b.Bookings = bookings
	return b
}
