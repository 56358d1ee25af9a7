// Package sqlite stores booking buckets in a single SQLite file. Dates are
// kept as YYYY-MM-DD text so range scans compare lexically.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/semanticallynull/carpool-backend/booking"
	"github.com/semanticallynull/carpool-backend/internal/migrate"
)

//go:embed migrations/*.sql
var migrations embed.FS

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

type Store struct {
	db *sqlx.DB
}

// Open connects to the database file at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	// SQLite allows one writer; a single connection serializes transactions
	// instead of surfacing SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := migrate.Up(ctx, db, migrations, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating sqlite: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type bucketRow struct {
	Date     string `db:"date"`
	Car      string `db:"car"`
	Bookings string `db:"bookings"`
	Version  int64  `db:"version"`
}

func (row bucketRow) toBucket() (booking.Bucket, error) {
	date, err := booking.ParseDate(row.Date)
	if err != nil {
		return booking.Bucket{}, err
	}
	bookings, err := booking.DecodeBookings([]byte(row.Bookings))
	if err != nil {
		return booking.Bucket{}, err
	}
	return booking.Bucket{Key: booking.NewKey(date, row.Car), Bookings: bookings, Version: row.Version}, nil
}

func (s *Store) ReadBucket(ctx context.Context, key booking.Key) (booking.Bucket, error) {
	var row bucketRow
	err := s.db.GetContext(ctx, &row, readBucketQuery, key.DateString(), key.Car)
	if errors.Is(err, sql.ErrNoRows) {
		return booking.Bucket{Key: key}, nil
	}
	if err != nil {
		return booking.Bucket{}, err
	}
	return row.toBucket()
}

const readBucketQuery = `
SELECT date, car, bookings, version
FROM date_car_bookings
WHERE date = ? AND car = ?
`

func (s *Store) WriteBuckets(ctx context.Context, buckets []booking.Bucket) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, b := range buckets {
		doc, err := booking.EncodeBookings(b.Bookings)
		if err != nil {
			return err
		}

		var res sql.Result
		if b.Version == 0 {
			res, err = tx.ExecContext(ctx, insertBucketQuery, b.DateString(), b.Car, string(doc), now)
		} else {
			res, err = tx.ExecContext(ctx, updateBucketQuery, string(doc), now, b.DateString(), b.Car, b.Version)
		}
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n != 1 {
			return booking.ErrVersionConflict
		}
	}

	return tx.Commit()
}

const insertBucketQuery = `
INSERT INTO date_car_bookings (date, car, bookings, version, updated_at)
VALUES (?, ?, ?, 1, ?)
ON CONFLICT (date, car) DO NOTHING
`

const updateBucketQuery = `
UPDATE date_car_bookings
SET bookings = ?, version = version + 1, updated_at = ?
WHERE date = ? AND car = ? AND version = ?
`

func (s *Store) QueryBuckets(ctx context.Context, from, to time.Time) ([]booking.Bucket, error) {
	var rows []bucketRow
	err := s.db.SelectContext(ctx, &rows, queryBucketsQuery, from.Format(booking.DateLayout), to.Format(booking.DateLayout))
	if err != nil {
		return nil, err
	}

	buckets := make([]booking.Bucket, 0, len(rows))
	for _, row := range rows {
		b, err := row.toBucket()
		if err != nil {
			return nil, fmt.Errorf("bucket %s/%s: %w", row.Date, row.Car, err)
		}
		buckets = append(buckets, b)
	}
	return buckets, nil
}

const queryBucketsQuery = `
SELECT date, car, bookings, version
FROM date_car_bookings
WHERE date >= ? AND date < ?
ORDER BY date ASC, car ASC
`

type recurrenceRow struct {
	ID               string `db:"id"`
	IsMultiDay       bool   `db:"is_multi_day"`
	RecurringDays    string `db:"recurring_days"`
	StartDate        string `db:"start_date"`
	RecurringEndDate string `db:"recurring_end_date"`
	CreatedAt        string `db:"created_at"`
}

func (s *Store) CreateRecurrence(ctx context.Context, rec booking.Recurrence) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	days := rec.RecurringDays
	if days == nil {
		days = []time.Weekday{}
	}
	doc, err := json.Marshal(days)
	if err != nil {
		return "", err
	}

	_, err = s.db.ExecContext(ctx, createRecurrenceQuery,
		rec.ID,
		rec.IsMultiDay,
		string(doc),
		rec.StartDate.Format(booking.DateLayout),
		rec.RecurringEndDate.Format(booking.DateLayout),
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

const createRecurrenceQuery = `
INSERT INTO recurrences (id, is_multi_day, recurring_days, start_date, recurring_end_date, created_at)
VALUES (?, ?, ?, ?, ?, ?)
`

func (s *Store) ReadRecurrence(ctx context.Context, id string) (booking.Recurrence, error) {
	var row recurrenceRow
	err := s.db.GetContext(ctx, &row, readRecurrenceQuery, id)
	if errors.Is(err, sql.ErrNoRows) {
		return booking.Recurrence{}, booking.ErrRecurrenceNotFound
	}
	if err != nil {
		return booking.Recurrence{}, err
	}

	rec := booking.Recurrence{ID: row.ID, IsMultiDay: row.IsMultiDay}
	if rec.StartDate, err = booking.ParseDate(row.StartDate); err != nil {
		return booking.Recurrence{}, err
	}
	if rec.RecurringEndDate, err = booking.ParseDate(row.RecurringEndDate); err != nil {
		return booking.Recurrence{}, err
	}
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, row.CreatedAt); err != nil {
		return booking.Recurrence{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if err := json.Unmarshal([]byte(row.RecurringDays), &rec.RecurringDays); err != nil {
		return booking.Recurrence{}, fmt.Errorf("decoding recurring days: %w", err)
	}
	return rec, nil
}

const readRecurrenceQuery = `
SELECT id, is_multi_day, recurring_days, start_date, recurring_end_date, created_at
FROM recurrences
WHERE id = ?
`
