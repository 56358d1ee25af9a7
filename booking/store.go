package booking

import (
	"context"
	"time"
)

// Store is the bucket persistence the writer and overview rely on.
//
// WriteBuckets must apply the whole batch atomically and only if every
// bucket's stored version still equals the Version it was read with;
// otherwise nothing is written and ErrVersionConflict is returned. A
// successful write leaves each stored version incremented by one.
type Store interface {
	// ReadBucket returns the stored bucket, or an empty bucket with
	// version 0 when none exists.
	ReadBucket(ctx context.Context, key Key) (Bucket, error)
	WriteBuckets(ctx context.Context, buckets []Bucket) error
	// QueryBuckets returns the buckets whose date lies in [from, to).
	QueryBuckets(ctx context.Context, from, to time.Time) ([]Bucket, error)
	CreateRecurrence(ctx context.Context, rec Recurrence) (string, error)
	ReadRecurrence(ctx context.Context, id string) (Recurrence, error)
}
