package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/semanticallynull/carpool-backend/booking"
	"github.com/semanticallynull/carpool-backend/internal/auth0"
	"github.com/semanticallynull/carpool-backend/internal/middleware"
	"github.com/semanticallynull/carpool-backend/internal/o11y"
	"github.com/semanticallynull/carpool-backend/settings"
)

type API struct {
	r        *gin.Engine
	store    booking.Store
	writer   *booking.Writer
	settings settings.Source
	profiles auth0.Client
}

type Config struct {
	Auth0Domain     string
	Audience        string
	MetricsUsername string
	MetricsPassword string

	// Auth replaces JWT validation when set.
	Auth gin.HandlerFunc
	// Profiles resolves display names for GET /me. Without it the user id
	// is used as the name.
	Profiles auth0.Client
}

func New(store booking.Store, writer *booking.Writer, src settings.Source, obs *o11y.Observability, cfg Config) (*API, error) {
	a := &API{
		r:        gin.New(),
		store:    store,
		writer:   writer,
		settings: src,
		profiles: cfg.Profiles,
	}

	auth := cfg.Auth
	if auth == nil {
		if cfg.Auth0Domain == "" {
			return nil, errors.New("api: an Auth0 domain or an auth handler is required")
		}
		var err error
		auth, err = middleware.Auth(cfg.Auth0Domain, cfg.Audience)
		if err != nil {
			return nil, err
		}
	}

	a.r.Use(
		gin.Recovery(),
		middleware.Tracing(),
		middleware.Logging(obs.Logger),
		middleware.Metrics(obs.Registry),
	)

	a.r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	metrics := gin.WrapH(promhttp.HandlerFor(obs.Registry, promhttp.HandlerOpts{}))
	if cfg.MetricsUsername != "" {
		a.r.GET("/metrics", gin.BasicAuth(gin.Accounts{cfg.MetricsUsername: cfg.MetricsPassword}), metrics)
	} else {
		a.r.GET("/metrics", metrics)
	}

	protected := a.r.Group("/", auth)
	{
		protected.GET("/me", a.meHandler)
		protected.GET("/cars", a.carsHandler)
		protected.GET("/destinations", a.destinationsHandler)

		protected.POST("/bookings", a.createBookingHandler)
		protected.GET("/bookings/:date/:carId/:bookingId", a.getBookingHandler)
		protected.PUT("/bookings/:date/:carId/:bookingId", a.updateBookingHandler)
		protected.DELETE("/bookings/:date/:carId/:bookingId", a.deleteBookingHandler)

		protected.GET("/overview", a.overviewHandler)
		protected.GET("/recurrences/:id", a.recurrenceHandler)
	}

	return a, nil
}

func (a *API) Router() *gin.Engine {
	return a.r
}

func (a *API) carsHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	s, err := a.settings.Load(c)
	if err != nil {
		logger.ErrorContext(c, "failed to load settings", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	cars := s.Cars
	if cars == nil {
		cars = []settings.Car{}
	}
	c.JSON(http.StatusOK, cars)
}

func (a *API) destinationsHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	s, err := a.settings.Load(c)
	if err != nil {
		logger.ErrorContext(c, "failed to load settings", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	dests := s.Destinations
	if dests == nil {
		dests = []settings.Destination{}
	}
	c.JSON(http.StatusOK, dests)
}
