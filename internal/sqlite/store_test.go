package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/semanticallynull/carpool-backend/booking"
	"github.com/semanticallynull/carpool-backend/internal/sqlite"
	"github.com/semanticallynull/carpool-backend/internal/storetest"
)

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "carpool.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) booking.Store {
		return openStore(t)
	})
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "carpool.db")

	s, err := sqlite.Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = sqlite.Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestWriterOnSQLite(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	w := booking.NewWriter(s)

	date, err := booking.ParseDate("2024-04-10")
	require.NoError(t, err)
	req := booking.BookRequest{
		Car:     "volvo",
		Details: booking.Details{Users: []string{"anna"}, ByUser: "anna"},
		Request: booking.Request{Mode: booking.ModeSingle, StartDate: date, StartTime: 600, EndTime: 720},
	}
	_, err = w.Book(ctx, req)
	require.NoError(t, err)

	req.StartTime, req.EndTime = 660, 780
	_, err = w.Book(ctx, req)
	var conflict *booking.ConflictError
	require.ErrorAs(t, err, &conflict)
}
