package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newRouter(t *testing.T, logs *bytes.Buffer, reg *prometheus.Registry) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewJSONHandler(logs, nil))
	r := gin.New()
	r.Use(Tracing(), Logging(logger), Metrics(reg))

	authed := r.Group("/", HeaderAuth())
	authed.GET("/me/:id", func(c *gin.Context) {
		id, ok := GetUserID(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		GetLogger(c).Info("handled")
		c.JSON(http.StatusOK, gin.H{"user": id})
	})
	return r
}

func TestHeaderAuth(t *testing.T) {
	var logs bytes.Buffer
	r := newRouter(t, &logs, prometheus.NewRegistry())

	req := httptest.NewRequest(http.MethodGet, "/me/1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("without header: status %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/me/1", nil)
	req.Header.Set("X-User-ID", "anna")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("with header: status %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"anna"`) {
		t.Errorf("body = %s, want user anna", w.Body.String())
	}
	if !strings.Contains(logs.String(), `"user_id":"anna"`) {
		t.Errorf("completion log missing user id: %s", logs.String())
	}
}

func TestMetricsUseRouteTemplate(t *testing.T) {
	var logs bytes.Buffer
	reg := prometheus.NewRegistry()
	r := newRouter(t, &logs, reg)

	for _, id := range []string{"1", "2", "3"} {
		req := httptest.NewRequest(http.MethodGet, "/me/"+id, nil)
		req.Header.Set("X-User-ID", "anna")
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	n, err := testutil.GatherAndCount(reg, "http_requests_total")
	if err != nil {
		t.Fatalf("gathering metrics: %v", err)
	}
	if n != 1 {
		t.Errorf("http_requests_total has %d series, want 1", n)
	}
}

func TestGetLoggerOutsideRequest(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	if GetLogger(c) == nil {
		t.Fatal("GetLogger returned nil")
	}
	if _, ok := GetUserID(c); ok {
		t.Error("GetUserID succeeded without auth")
	}
}
