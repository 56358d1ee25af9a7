package booking

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/semanticallynull/carpool-backend/internal/migrate"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Repository is the Postgres Store. Buckets are rows keyed by (date, car)
// with the bookings embedded as a JSONB document.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Migrate applies the embedded schema migrations.
func (r *Repository) Migrate(ctx context.Context) error {
	return migrate.Up(ctx, r.db, migrations, "migrations")
}

type bucketRow struct {
	Date     time.Time `db:"date"`
	Car      string    `db:"car"`
	Bookings string    `db:"bookings"`
	Version  int64     `db:"version"`
}

func (row bucketRow) toBucket() (Bucket, error) {
	bookings, err := DecodeBookings([]byte(row.Bookings))
	if err != nil {
		return Bucket{}, err
	}
	return Bucket{Key: NewKey(row.Date, row.Car), Bookings: bookings, Version: row.Version}, nil
}

// ReadBucket fetches one bucket. A missing row is an empty bucket.
func (r *Repository) ReadBucket(ctx context.Context, key Key) (Bucket, error) {
	var row bucketRow
	err := r.db.GetContext(ctx, &row, readBucketQuery, key.DateString(), key.Car)
	if errors.Is(err, sql.ErrNoRows) {
		return Bucket{Key: key}, nil
	}
	if err != nil {
		return Bucket{}, err
	}
	return row.toBucket()
}

const readBucketQuery = `
SELECT date, car, bookings::text AS bookings, version
FROM date_car_bookings
WHERE date = $1::date AND car = $2
`

// WriteBuckets stores the batch in one transaction. Each row is only written
// if its version is unchanged since it was read.
func (r *Repository) WriteBuckets(ctx context.Context, buckets []Bucket) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, b := range buckets {
		doc, err := EncodeBookings(b.Bookings)
		if err != nil {
			return err
		}

		var res sql.Result
		if b.Version == 0 {
			res, err = tx.ExecContext(ctx, insertBucketQuery, b.DateString(), b.Car, string(doc))
		} else {
			res, err = tx.ExecContext(ctx, updateBucketQuery, b.DateString(), b.Car, string(doc), b.Version)
		}
		if err != nil {
			return mapPgError(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n != 1 {
			return ErrVersionConflict
		}
	}

	return mapPgError(tx.Commit())
}

const insertBucketQuery = `
INSERT INTO date_car_bookings (date, car, bookings, version, updated_at)
VALUES ($1::date, $2, $3::jsonb, 1, now())
ON CONFLICT (date, car) DO NOTHING
`

const updateBucketQuery = `
UPDATE date_car_bookings
SET bookings = $3::jsonb, version = version + 1, updated_at = now()
WHERE date = $1::date AND car = $2 AND version = $4
`

// QueryBuckets fetches the buckets with a date in [from, to).
func (r *Repository) QueryBuckets(ctx context.Context, from, to time.Time) ([]Bucket, error) {
	var rows []bucketRow
	err := r.db.SelectContext(ctx, &rows, queryBucketsQuery, from.Format(DateLayout), to.Format(DateLayout))
	if err != nil {
		return nil, err
	}

	buckets := make([]Bucket, 0, len(rows))
	for _, row := range rows {
		b, err := row.toBucket()
		if err != nil {
			return nil, fmt.Errorf("bucket %s/%s: %w", row.Date.Format(DateLayout), row.Car, err)
		}
		buckets = append(buckets, b)
	}
	return buckets, nil
}

const queryBucketsQuery = `
SELECT date, car, bookings::text AS bookings, version
FROM date_car_bookings
WHERE date >= $1::date AND date < $2::date
ORDER BY date ASC, car ASC
`

type recurrenceRow struct {
	ID               string    `db:"id"`
	IsMultiDay       bool      `db:"is_multi_day"`
	RecurringDays    string    `db:"recurring_days"`
	StartDate        time.Time `db:"start_date"`
	RecurringEndDate time.Time `db:"recurring_end_date"`
	CreatedAt        time.Time `db:"created_at"`
}

// CreateRecurrence inserts rec, generating an id when it has none.
func (r *Repository) CreateRecurrence(ctx context.Context, rec Recurrence) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	days, err := json.Marshal(weekdaysOrEmpty(rec.RecurringDays))
	if err != nil {
		return "", err
	}
	_, err = r.db.ExecContext(ctx, createRecurrenceQuery,
		rec.ID, rec.IsMultiDay, string(days), rec.StartDate.Format(DateLayout), rec.RecurringEndDate.Format(DateLayout), rec.CreatedAt)
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

const createRecurrenceQuery = `
INSERT INTO recurrences (id, is_multi_day, recurring_days, start_date, recurring_end_date, created_at)
VALUES ($1, $2, $3::jsonb, $4::date, $5::date, $6)
`

func (r *Repository) ReadRecurrence(ctx context.Context, id string) (Recurrence, error) {
	var row recurrenceRow
	err := r.db.GetContext(ctx, &row, readRecurrenceQuery, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Recurrence{}, ErrRecurrenceNotFound
	}
	if err != nil {
		return Recurrence{}, err
	}

	rec := Recurrence{
		ID:               row.ID,
		IsMultiDay:       row.IsMultiDay,
		StartDate:        Day(row.StartDate),
		RecurringEndDate: Day(row.RecurringEndDate),
		CreatedAt:        row.CreatedAt,
	}
	if err := json.Unmarshal([]byte(row.RecurringDays), &rec.RecurringDays); err != nil {
		return Recurrence{}, fmt.Errorf("decoding recurring days: %w", err)
	}
	return rec, nil
}

const readRecurrenceQuery = `
SELECT id, is_multi_day, recurring_days::text AS recurring_days, start_date, recurring_end_date, created_at
FROM recurrences
WHERE id = $1
`

// mapPgError turns serialization and deadlock failures into
// ErrVersionConflict so the writer retries them.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return fmt.Errorf("%w: %s", ErrVersionConflict, pgErr.Message)
		}
	}
	return err
}

func weekdaysOrEmpty(days []time.Weekday) []time.Weekday {
	if days == nil {
		return []time.Weekday{}
	}
	return days
}
