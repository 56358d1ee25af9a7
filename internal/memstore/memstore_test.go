package memstore_test

import (
	"testing"

	"github.com/semanticallynull/carpool-backend/booking"
	"github.com/semanticallynull/carpool-backend/internal/memstore"
	"github.com/semanticallynull/carpool-backend/internal/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) booking.Store {
		return memstore.New()
	})
}
