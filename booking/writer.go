package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultMaxAttempts     = 5
	defaultInitialInterval = 20 * time.Millisecond
	defaultMaxInterval     = 500 * time.Millisecond
)

// Writer applies bookings to buckets with overlap checking. Every write goes
// through Transact, which re-reads the affected buckets and retries when the
// store reports a concurrent modification.
type Writer struct {
	store       Store
	maxAttempts uint
	newBackOff  func() backoff.BackOff
	newID       func() string
	now         func() time.Time
	logger      *slog.Logger
	metrics     *Metrics
	tracer      trace.Tracer
}

type Option func(*Writer)

// WithMaxAttempts bounds how often a batch is retried on ErrVersionConflict.
func WithMaxAttempts(n uint) Option {
	return func(w *Writer) {
		if n > 0 {
			w.maxAttempts = n
		}
	}
}

func WithBackOff(fn func() backoff.BackOff) Option {
	return func(w *Writer) {
		if fn != nil {
			w.newBackOff = fn
		}
	}
}

func WithIDGenerator(fn func() string) Option {
	return func(w *Writer) {
		if fn != nil {
			w.newID = fn
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(w *Writer) {
		if now != nil {
			w.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Writer) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(w *Writer) {
		w.metrics = m
	}
}

func NewWriter(store Store, opts ...Option) *Writer {
	w := &Writer{
		store:       store,
		maxAttempts: defaultMaxAttempts,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = defaultInitialInterval
			b.MaxInterval = defaultMaxInterval
			return b
		},
		newID:  func() string { return uuid.NewString() },
		now:    time.Now,
		logger: slog.Default(),
		tracer: otel.Tracer("carpool/booking"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Details are the parts of a booking that do not depend on the day.
type Details struct {
	Users       []string
	Destination string
	ByUser      string
}

type BookRequest struct {
	Car string
	Details
	Request
}

// Placed is a booking together with the bucket it was written to.
type Placed struct {
	Key     Key
	Booking Booking
}

type Result struct {
	RecurrenceID string
	Bookings     []Placed
}

// Ref points at one stored booking.
type Ref struct {
	Key       Key
	BookingID string
}

// EditRequest replaces the window and details of an existing booking. A zero
// Date or empty Car keeps the booking's current day or car.
type EditRequest struct {
	Date      time.Time
	Car       string
	StartTime int
	EndTime   int
	Distance  float64
	Details
}

// Book materializes req and writes every leg in one batch. Weekly and
// multi-day requests get a Recurrence shared by all their legs. When any leg
// overlaps, nothing is written and a *ConflictError lists every failing day.
func (w *Writer) Book(ctx context.Context, req BookRequest) (Result, error) {
	ctx, span := w.tracer.Start(ctx, "booking.Book", trace.WithAttributes(
		attribute.String("car", req.Car),
		attribute.String("mode", req.Mode.String()),
	))
	defer span.End()

	if err := validateDetails(req.Car, req.Details, true); err != nil {
		return Result{}, err
	}
	legs, err := Materialize(req.Request)
	if err != nil {
		return Result{}, err
	}

	createdAt := w.now().UTC()
	var rec *Recurrence
	if req.Mode != ModeSingle {
		rec = &Recurrence{
			ID:               w.newID(),
			IsMultiDay:       req.Mode == ModeMultiDay,
			StartDate:        Day(req.StartDate),
			RecurringEndDate: Day(req.EndDate),
			CreatedAt:        createdAt,
		}
		if req.Mode == ModeWeekly {
			rec.RecurringDays = sortedWeekdays(req.RecurringDays)
		}
	}

	placed := make([]Placed, 0, len(legs))
	keys := make([]Key, 0, len(legs))
	for _, leg := range legs {
		b := Booking{
			ID:          w.newID(),
			Users:       append([]string(nil), req.Users...),
			StartTime:   leg.StartTime,
			EndTime:     leg.EndTime,
			Distance:    leg.Distance,
			Destination: req.Destination,
			ByUser:      req.ByUser,
			CreatedAt:   createdAt,
		}
		if rec != nil {
			b.RecurrenceID = rec.ID
		}
		key := NewKey(leg.Date, req.Car)
		placed = append(placed, Placed{Key: key, Booking: b})
		keys = append(keys, key)
	}

	recurrenceStored := false
	err = w.transact(ctx, keys, func(tx *Tx) error {
		for _, p := range placed {
			tx.Put(p.Key, p.Booking)
		}
		return nil
	}, func(ctx context.Context) error {
		// Stored once, before the first commit attempt.
		if rec == nil || recurrenceStored {
			return nil
		}
		if _, err := w.store.CreateRecurrence(ctx, *rec); err != nil {
			return fmt.Errorf("creating recurrence: %w", err)
		}
		recurrenceStored = true
		return nil
	})
	if err != nil {
		recordSpanError(span, err)
		return Result{}, err
	}

	res := Result{Bookings: placed}
	if rec != nil {
		res.RecurrenceID = rec.ID
	}
	return res, nil
}

// Edit rewrites an existing booking, moving it to another day or car when
// the request names one. The booking keeps its id, creator and recurrence.
func (w *Writer) Edit(ctx context.Context, ref Ref, req EditRequest) (Placed, error) {
	ctx, span := w.tracer.Start(ctx, "booking.Edit", trace.WithAttributes(
		attribute.String("bucket", ref.Key.String()),
		attribute.String("booking_id", ref.BookingID),
	))
	defer span.End()

	ref.Key = NewKey(ref.Key.Date, ref.Key.Car)
	target := ref.Key
	if !req.Date.IsZero() {
		target.Date = Day(req.Date)
	}
	if req.Car != "" {
		target.Car = req.Car
	}

	if err := validateDetails(target.Car, req.Details, false); err != nil {
		return Placed{}, err
	}
	legs, err := Materialize(Request{
		Mode:      ModeSingle,
		StartDate: target.Date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Distance:  req.Distance,
	})
	if err != nil {
		return Placed{}, err
	}
	leg := legs[0]

	var updated Booking
	err = w.transact(ctx, []Key{ref.Key, target}, func(tx *Tx) error {
		src := tx.Bucket(ref.Key)
		idx := src.Find(ref.BookingID)
		if idx < 0 {
			return ErrBookingNotFound
		}
		updated = src.Bookings[idx]
		updated.Users = append([]string(nil), req.Users...)
		updated.Destination = req.Destination
		updated.StartTime = leg.StartTime
		updated.EndTime = leg.EndTime
		updated.Distance = leg.Distance

		if target.ID() != ref.Key.ID() {
			tx.Remove(ref.Key, ref.BookingID)
		}
		tx.Put(target, updated)
		return nil
	}, nil)
	if err != nil {
		recordSpanError(span, err)
		return Placed{}, err
	}
	return Placed{Key: target, Booking: updated}, nil
}

// Delete removes one booking. The bucket is kept even when it becomes empty
// and a shared Recurrence is left untouched.
func (w *Writer) Delete(ctx context.Context, ref Ref) error {
	ctx, span := w.tracer.Start(ctx, "booking.Delete", trace.WithAttributes(
		attribute.String("bucket", ref.Key.String()),
		attribute.String("booking_id", ref.BookingID),
	))
	defer span.End()

	ref.Key = NewKey(ref.Key.Date, ref.Key.Car)
	err := w.transact(ctx, []Key{ref.Key}, func(tx *Tx) error {
		if _, ok := tx.Remove(ref.Key, ref.BookingID); !ok {
			return ErrBookingNotFound
		}
		return nil
	}, nil)
	if err != nil {
		recordSpanError(span, err)
	}
	return err
}

// Lookup returns a stored booking and, when it belongs to one, its
// Recurrence.
func (w *Writer) Lookup(ctx context.Context, ref Ref) (Booking, *Recurrence, error) {
	ref.Key = NewKey(ref.Key.Date, ref.Key.Car)
	bucket, err := w.store.ReadBucket(ctx, ref.Key)
	if err != nil {
		return Booking{}, nil, fmt.Errorf("reading bucket %s: %w", ref.Key, err)
	}
	idx := bucket.Find(ref.BookingID)
	if idx < 0 {
		return Booking{}, nil, ErrBookingNotFound
	}
	b := bucket.Bookings[idx]
	if b.RecurrenceID == "" {
		return b, nil, nil
	}

	rec, err := w.store.ReadRecurrence(ctx, b.RecurrenceID)
	if errors.Is(err, ErrRecurrenceNotFound) {
		w.logger.WarnContext(ctx, "booking references missing recurrence",
			"bucket", ref.Key.String(), "recurrence_id", b.RecurrenceID)
		return b, nil, nil
	}
	if err != nil {
		return Booking{}, nil, fmt.Errorf("reading recurrence %s: %w", b.RecurrenceID, err)
	}
	return b, &rec, nil
}

// Tx is the view of the buckets inside one Transact attempt.
type Tx struct {
	buckets map[string]*Bucket
	order   []string
	dirty   map[string]bool
	grown   map[string]bool
	err     error
}

// Bucket returns the snapshot of a declared key, or nil.
func (tx *Tx) Bucket(key Key) *Bucket {
	return tx.buckets[key.ID()]
}

// Put inserts b into the bucket, replacing a booking with the same id. Putting
// into an undeclared bucket fails the transaction with ErrUndeclaredBucket.
func (tx *Tx) Put(key Key, b Booking) {
	bucket := tx.Bucket(key)
	if bucket == nil {
		if tx.err == nil {
			tx.err = fmt.Errorf("%w: %s", ErrUndeclaredBucket, key)
		}
		return
	}
	if i := bucket.Find(b.ID); i >= 0 {
		bucket.Bookings[i] = b
	} else {
		bucket.Bookings = append(bucket.Bookings, b)
	}
	tx.dirty[key.ID()] = true
	tx.grown[key.ID()] = true
}

// Remove drops the booking with the given id and reports whether it existed.
func (tx *Tx) Remove(key Key, id string) (Booking, bool) {
	bucket := tx.Bucket(key)
	if bucket == nil {
		return Booking{}, false
	}
	i := bucket.Find(id)
	if i < 0 {
		return Booking{}, false
	}
	removed := bucket.Bookings[i]
	bucket.Bookings = append(bucket.Bookings[:i:i], bucket.Bookings[i+1:]...)
	tx.dirty[key.ID()] = true
	return removed, true
}

// Transact runs fn against fresh snapshots of the buckets for keys, then sorts
// and overlap-checks every bucket fn added to and writes all modified buckets
// in one batch. Errors returned by fn abort without retrying.
func (w *Writer) Transact(ctx context.Context, keys []Key, fn func(tx *Tx) error) error {
	return w.transact(ctx, keys, fn, nil)
}

func (w *Writer) transact(ctx context.Context, keys []Key, fn func(tx *Tx) error, beforeCommit func(context.Context) error) error {
	keys = uniqueKeys(keys)
	attempt := 0

	operation := func() (struct{}, error) {
		attempt++
		tx := &Tx{
			buckets: make(map[string]*Bucket, len(keys)),
			dirty:   make(map[string]bool, len(keys)),
			grown:   make(map[string]bool, len(keys)),
		}
		for _, k := range keys {
			b, err := w.store.ReadBucket(ctx, k)
			if err != nil {
				return struct{}{}, backoff.Permanent(fmt.Errorf("reading bucket %s: %w", k, err))
			}
			b.Key = k
			b.Bookings = append([]Booking(nil), b.Bookings...)
			tx.buckets[k.ID()] = &b
			tx.order = append(tx.order, k.ID())
		}

		if err := fn(tx); err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		if tx.err != nil {
			return struct{}{}, backoff.Permanent(tx.err)
		}

		var conflicts []Key
		var changed []Bucket
		for _, id := range tx.order {
			if !tx.dirty[id] {
				continue
			}
			b := tx.buckets[id]
			SortByStart(b.Bookings)
			if tx.grown[id] && HasOverlap(b.Bookings) {
				w.logOverlaps(ctx, *b)
				conflicts = append(conflicts, b.Key)
				continue
			}
			changed = append(changed, *b)
		}
		if len(conflicts) > 0 {
			return struct{}{}, backoff.Permanent(&ConflictError{Keys: conflicts})
		}
		if len(changed) == 0 {
			return struct{}{}, nil
		}

		if beforeCommit != nil {
			if err := beforeCommit(ctx); err != nil {
				return struct{}{}, backoff.Permanent(err)
			}
		}

		err := w.store.WriteBuckets(ctx, changed)
		if errors.Is(err, ErrVersionConflict) {
			return struct{}{}, err
		}
		if err != nil {
			return struct{}{}, backoff.Permanent(fmt.Errorf("writing buckets: %w", err))
		}
		return struct{}{}, nil
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(w.newBackOff()),
		backoff.WithMaxTries(w.maxAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			w.metrics.retried()
			w.logger.InfoContext(ctx, "retrying bucket write",
				"attempt", attempt, "buckets", len(keys), "backoff", next, "error", err)
		}),
	)

	var conflict *ConflictError
	switch {
	case err == nil:
		w.metrics.observe(outcomeCommitted)
		return nil
	case errors.As(err, &conflict):
		w.metrics.observe(outcomeConflict)
		w.logger.InfoContext(ctx, "booking rejected by overlap", "dates", conflict.Dates())
		return conflict
	case errors.Is(err, ErrVersionConflict):
		w.metrics.observe(outcomeExhausted)
		return fmt.Errorf("booking: giving up after %d attempts: %w", attempt, ErrVersionConflict)
	default:
		w.metrics.observe(outcomeError)
		return err
	}
}

func (w *Writer) logOverlaps(ctx context.Context, b Bucket) {
	for _, pair := range Overlaps(b.Bookings) {
		w.logger.InfoContext(ctx, "overlapping bookings",
			"car", b.Car,
			"date", b.DateString(),
			"booking_id", pair[0].ID,
			"window", window(pair[0]),
			"other_booking_id", pair[1].ID,
			"other_window", window(pair[1]),
		)
	}
}

func window(b Booking) string {
	return FormatClock(b.StartTime) + "-" + FormatClock(b.EndTime)
}

func validateDetails(car string, d Details, requireCreator bool) error {
	vErr := &ValidationError{}
	if car == "" {
		vErr.add("car", "car is required")
	}
	if len(d.Users) == 0 {
		vErr.add("users", "at least one user is required")
	}
	for _, u := range d.Users {
		if u == "" {
			vErr.add("users", "user ids cannot be empty")
		}
	}
	if requireCreator && d.ByUser == "" {
		vErr.add("byUser", "booking creator is required")
	}
	if vErr.HasErrors() {
		return vErr
	}
	return nil
}

func uniqueKeys(keys []Key) []Key {
	seen := make(map[string]struct{}, len(keys))
	out := make([]Key, 0, len(keys))
	for _, k := range keys {
		k = NewKey(k.Date, k.Car)
		if _, ok := seen[k.ID()]; ok {
			continue
		}
		seen[k.ID()] = struct{}{}
		out = append(out, k)
	}
	return out
}

func sortedWeekdays(days []time.Weekday) []time.Weekday {
	seen := make(map[time.Weekday]struct{}, len(days))
	out := make([]time.Weekday, 0, len(days))
	for _, d := range days {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
