// Package firestore keeps buckets as documents in the "date-car-bookings"
// collection, one document per car and day, and recurrences in
// "recurrence".
package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/semanticallynull/carpool-backend/booking"
)

const (
	bucketsCollection    = "date-car-bookings"
	recurrenceCollection = "recurrence"
)

type Store struct {
	client *firestore.Client
	prefix string
}

// New wraps client. Collection names are prefixed with prefix, which lets
// several environments share one project.
func New(client *firestore.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

// Open creates a client for projectID. FIRESTORE_EMULATOR_HOST is honoured by
// the client library.
func Open(ctx context.Context, projectID, prefix string) (*Store, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}
	return New(client, prefix), nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

type bucketDoc struct {
	Date     time.Time         `firestore:"date"`
	Car      string            `firestore:"car"`
	Bookings []booking.Booking `firestore:"bookings"`
	Version  int64             `firestore:"version"`
}

func (d bucketDoc) toBucket() booking.Bucket {
	return booking.Bucket{Key: booking.NewKey(d.Date, d.Car), Bookings: d.Bookings, Version: d.Version}
}

type recurrenceDoc struct {
	IsMultiDay       bool      `firestore:"isMultiDay"`
	RecurringDays    []int     `firestore:"recurringDays"`
	StartDate        time.Time `firestore:"startDate"`
	RecurringEndDate time.Time `firestore:"recurringEndDate"`
	CreatedAt        time.Time `firestore:"createdAt"`
}

func (s *Store) buckets() *firestore.CollectionRef {
	return s.client.Collection(s.prefix + bucketsCollection)
}

func (s *Store) recurrences() *firestore.CollectionRef {
	return s.client.Collection(s.prefix + recurrenceCollection)
}

func (s *Store) ReadBucket(ctx context.Context, key booking.Key) (booking.Bucket, error) {
	snap, err := s.buckets().Doc(key.ID()).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return booking.Bucket{Key: key}, nil
	}
	if err != nil {
		return booking.Bucket{}, err
	}

	var doc bucketDoc
	if err := snap.DataTo(&doc); err != nil {
		return booking.Bucket{}, fmt.Errorf("decoding %s: %w", snap.Ref.ID, err)
	}
	b := doc.toBucket()
	b.Key = key
	return b, nil
}

// WriteBuckets checks every version inside one Firestore transaction before
// setting any document.
func (s *Store) WriteBuckets(ctx context.Context, buckets []booking.Bucket) error {
	refs := make([]*firestore.DocumentRef, len(buckets))
	for i, b := range buckets {
		refs[i] = s.buckets().Doc(b.ID())
	}

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snaps, err := tx.GetAll(refs)
		if err != nil {
			return err
		}
		for i, snap := range snaps {
			var stored int64
			if snap.Exists() {
				var doc bucketDoc
				if err := snap.DataTo(&doc); err != nil {
					return fmt.Errorf("decoding %s: %w", snap.Ref.ID, err)
				}
				stored = doc.Version
			}
			if stored != buckets[i].Version {
				return booking.ErrVersionConflict
			}
		}

		for i, b := range buckets {
			bookings := b.Bookings
			if bookings == nil {
				bookings = []booking.Booking{}
			}
			doc := bucketDoc{Date: b.Date, Car: b.Car, Bookings: bookings, Version: b.Version + 1}
			if err := tx.Set(refs[i], doc); err != nil {
				return err
			}
		}
		return nil
	})
	if status.Code(err) == codes.Aborted {
		return fmt.Errorf("%w: %v", booking.ErrVersionConflict, err)
	}
	return err
}

func (s *Store) QueryBuckets(ctx context.Context, from, to time.Time) ([]booking.Bucket, error) {
	snaps, err := s.buckets().
		Where("date", ">=", booking.Day(from)).
		Where("date", "<", booking.Day(to)).
		Documents(ctx).
		GetAll()
	if err != nil {
		return nil, err
	}

	out := make([]booking.Bucket, 0, len(snaps))
	for _, snap := range snaps {
		var doc bucketDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", snap.Ref.ID, err)
		}
		out = append(out, doc.toBucket())
	}
	return out, nil
}

func (s *Store) CreateRecurrence(ctx context.Context, rec booking.Recurrence) (string, error) {
	ref := s.recurrences().NewDoc()
	if rec.ID != "" {
		ref = s.recurrences().Doc(rec.ID)
	}

	days := make([]int, 0, len(rec.RecurringDays))
	for _, d := range rec.RecurringDays {
		days = append(days, int(d))
	}
	_, err := ref.Create(ctx, recurrenceDoc{
		IsMultiDay:       rec.IsMultiDay,
		RecurringDays:    days,
		StartDate:        booking.Day(rec.StartDate),
		RecurringEndDate: booking.Day(rec.RecurringEndDate),
		CreatedAt:        rec.CreatedAt,
	})
	if err != nil {
		return "", err
	}
	return ref.ID, nil
}

func (s *Store) ReadRecurrence(ctx context.Context, id string) (booking.Recurrence, error) {
	snap, err := s.recurrences().Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return booking.Recurrence{}, booking.ErrRecurrenceNotFound
	}
	if err != nil {
		return booking.Recurrence{}, err
	}

	var doc recurrenceDoc
	if err := snap.DataTo(&doc); err != nil {
		return booking.Recurrence{}, fmt.Errorf("decoding recurrence %s: %w", id, err)
	}
	rec := booking.Recurrence{
		ID:               snap.Ref.ID,
		IsMultiDay:       doc.IsMultiDay,
		StartDate:        booking.Day(doc.StartDate),
		RecurringEndDate: booking.Day(doc.RecurringEndDate),
		CreatedAt:        doc.CreatedAt,
	}
	for _, d := range doc.RecurringDays {
		if d < int(time.Sunday) || d > int(time.Saturday) {
			return booking.Recurrence{}, errors.New("firestore: recurrence " + id + " has an invalid weekday")
		}
		rec.RecurringDays = append(rec.RecurringDays, time.Weekday(d))
	}
	return rec, nil
}
