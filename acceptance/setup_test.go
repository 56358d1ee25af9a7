package acceptance

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/semanticallynull/carpool-backend/api"
	"github.com/semanticallynull/carpool-backend/booking"
	"github.com/semanticallynull/carpool-backend/internal/auth0"
	"github.com/semanticallynull/carpool-backend/internal/memstore"
	"github.com/semanticallynull/carpool-backend/internal/middleware"
	"github.com/semanticallynull/carpool-backend/internal/o11y"
	"github.com/semanticallynull/carpool-backend/settings"
)

var testSettings = settings.Settings{
	CostPerKm: 2.5,
	Cars: []settings.Car{
		{ID: "volvo", Name: "Volvo V70"},
		{ID: "tesla", Name: "Tesla Model 3"},
	},
	Destinations: []settings.Destination{
		{ID: "uppsala", Name: "Uppsala", ShortName: "UPS", Distance: 72},
	},
}

type TestServer struct {
	DB     *sqlx.DB
	Store  booking.Store
	Router *gin.Engine
}

// NewTestServer runs the API against Postgres when DATABASE_URL is set and
// against the in-memory store otherwise.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()

	gin.SetMode(gin.TestMode)

	ts := &TestServer{}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		db, err := sqlx.Connect("pgx", dbURL)
		if err != nil {
			t.Fatalf("failed to connect to database: %v", err)
		}
		repo := booking.NewRepository(db)
		if err := repo.Migrate(context.Background()); err != nil {
			t.Fatalf("failed to migrate: %v", err)
		}
		cleanupTestData(t, db)
		ts.DB = db
		ts.Store = repo
	} else {
		ts.Store = memstore.New()
	}

	obs := o11y.Discard()
	writer := booking.NewWriter(ts.Store, booking.WithLogger(obs.Logger), booking.WithMetrics(booking.NewMetrics(obs.Registry)))
	a, err := api.New(ts.Store, writer, settings.Static(testSettings), obs, api.Config{
		Auth:     middleware.HeaderAuth(),
		Profiles: testProfiles(),
	})
	if err != nil {
		t.Fatalf("failed to create api: %v", err)
	}
	ts.Router = a.Router()

	return ts
}

// testProfiles knows a single access token, "anna-token".
func testProfiles() *auth0.FakeClient {
	c := auth0.NewFakeClient()
	c.AddProfile("anna-token", auth0.Profile{Sub: "anna", Name: "Anna Berg", Nickname: "anna", Email: "anna@example.com"})
	return c
}

func (ts *TestServer) Close() {
	if ts.DB != nil {
		ts.DB.Close()
	}
}

func cleanupTestData(t *testing.T, db *sqlx.DB) {
	t.Helper()

	_, err := db.Exec("DELETE FROM date_car_bookings")
	if err != nil {
		t.Logf("warning: failed to clean buckets: %v", err)
	}
	_, err = db.Exec("DELETE FROM recurrences")
	if err != nil {
		t.Logf("warning: failed to clean recurrences: %v", err)
	}
}

func asUser(id string) map[string]string {
	return map[string]string{"X-User-ID": id}
}

func (ts *TestServer) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	ts.Router.ServeHTTP(w, req)
	return w
}

func (ts *TestServer) GET(path string, headers map[string]string) *httptest.ResponseRecorder {
	return ts.do(http.MethodGet, path, nil, headers)
}

func (ts *TestServer) POST(path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	return ts.do(http.MethodPost, path, body, headers)
}

func (ts *TestServer) PUT(path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	return ts.do(http.MethodPut, path, body, headers)
}

func (ts *TestServer) DELETE(path string, headers map[string]string) *httptest.ResponseRecorder {
	return ts.do(http.MethodDelete, path, nil, headers)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to unmarshal response %q: %v", w.Body.String(), err)
	}
	return v
}

// CreateTestBooking books a single day through the API and returns the
// created booking.
func (ts *TestServer) CreateTestBooking(t *testing.T, userID, carID, date, start, end string) bookingResponse {
	t.Helper()
	w := ts.POST("/bookings", map[string]any{
		"carId":     carID,
		"users":     []string{userID},
		"date":      date,
		"startTime": start,
		"endTime":   end,
	}, asUser(userID))
	if w.Code != http.StatusCreated {
		t.Fatalf("failed to create test booking: %d %s", w.Code, w.Body.String())
	}
	resp := decode[createBookingResponse](t, w)
	if len(resp.Bookings) != 1 {
		t.Fatalf("expected 1 booking, got %d", len(resp.Bookings))
	}
	return resp.Bookings[0]
}

func bookingPath(b bookingResponse) string {
	return "/bookings/" + b.Date + "/" + b.CarID + "/" + b.ID
}
