package booking_test

import (
	"context"
	"os"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/semanticallynull/carpool-backend/booking"
	"github.com/semanticallynull/carpool-backend/internal/storetest"
)

func TestRepository(t *testing.T) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set")
	}

	db, err := sqlx.Connect("pgx", dbURL)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := booking.NewRepository(db)
	require.NoError(t, repo.Migrate(context.Background()))

	storetest.Run(t, func(t *testing.T) booking.Store {
		_, err := db.Exec("TRUNCATE date_car_bookings, recurrences")
		require.NoError(t, err)
		return repo
	})
}
