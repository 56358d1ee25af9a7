package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/semanticallynull/carpool-backend/booking"
	"github.com/semanticallynull/carpool-backend/internal/middleware"
	"github.com/semanticallynull/carpool-backend/settings"
)

type bookingResponse struct {
	ID           string    `json:"id"`
	Date         string    `json:"date"`
	CarID        string    `json:"carId"`
	Users        []string  `json:"users"`
	StartTime    string    `json:"startTime"`
	EndTime      string    `json:"endTime"`
	Distance     float64   `json:"distance"`
	Destination  string    `json:"destination,omitempty"`
	ByUser       string    `json:"byUser"`
	RecurrenceID string    `json:"recurrenceId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	Label        string    `json:"label"`
	Cost         float64   `json:"cost"`
}

type recurrenceResponse struct {
	ID               string    `json:"id"`
	IsMultiDay       bool      `json:"isMultiDay"`
	RecurringDays    []int     `json:"recurringDays"`
	StartDate        string    `json:"startDate"`
	RecurringEndDate string    `json:"recurringEndDate"`
	CreatedAt        time.Time `json:"createdAt"`
}

type createBookingRequest struct {
	CarID         string       `json:"carId" binding:"required"`
	Users         []string     `json:"users"`
	Date          string       `json:"date" binding:"required"`
	EndDate       string       `json:"endDate"`
	Mode          booking.Mode `json:"mode"`
	RecurringDays []int        `json:"recurringDays"`
	StartTime     string       `json:"startTime" binding:"required"`
	EndTime       string       `json:"endTime" binding:"required"`
	Distance      *float64     `json:"distance"`
	Destination   string       `json:"destination"`
}

type createBookingResponse struct {
	RecurrenceID string            `json:"recurrenceId,omitempty"`
	Bookings     []bookingResponse `json:"bookings"`
}

type updateBookingRequest struct {
	CarID       string   `json:"carId"`
	Date        string   `json:"date"`
	Users       []string `json:"users"`
	StartTime   string   `json:"startTime" binding:"required"`
	EndTime     string   `json:"endTime" binding:"required"`
	Distance    *float64 `json:"distance"`
	Destination string   `json:"destination"`
}

type getBookingResponse struct {
	Booking    bookingResponse     `json:"booking"`
	Recurrence *recurrenceResponse `json:"recurrence,omitempty"`
}

func (a *API) createBookingHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "Authentication required"})
		return
	}

	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": err.Error()})
		return
	}

	s, err := a.settings.Load(c)
	if err != nil {
		logger.ErrorContext(c, "failed to load settings", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if _, ok := s.Car(req.CarID); !ok {
		c.JSON(http.StatusNotFound, gin.H{"code": "CAR_NOT_FOUND", "message": "Car not found"})
		return
	}

	startDate, ok := parseDateField(c, "date", req.Date)
	if !ok {
		return
	}
	var endDate time.Time
	if req.EndDate != "" {
		if endDate, ok = parseDateField(c, "endDate", req.EndDate); !ok {
			return
		}
	}
	startTime, endTime, ok := parseWindow(c, req.StartTime, req.EndTime)
	if !ok {
		return
	}

	days := make([]time.Weekday, 0, len(req.RecurringDays))
	for _, d := range req.RecurringDays {
		days = append(days, time.Weekday(d))
	}
	destination, distance := resolveDestination(s, req.Destination, req.Distance)

	res, err := a.writer.Book(c.Request.Context(), booking.BookRequest{
		Car: req.CarID,
		Details: booking.Details{
			Users:       req.Users,
			Destination: destination,
			ByUser:      userID,
		},
		Request: booking.Request{
			Mode:          req.Mode,
			StartDate:     startDate,
			EndDate:       endDate,
			RecurringDays: days,
			StartTime:     startTime,
			EndTime:       endTime,
			Distance:      distance,
		},
	})
	if err != nil {
		respondBookingError(c, logger, err, "failed to create booking")
		return
	}

	logger.InfoContext(c, "booking created",
		"car", req.CarID, "mode", req.Mode.String(), "days", len(res.Bookings), "recurrence_id", res.RecurrenceID)

	resp := createBookingResponse{
		RecurrenceID: res.RecurrenceID,
		Bookings:     make([]bookingResponse, 0, len(res.Bookings)),
	}
	for _, p := range res.Bookings {
		resp.Bookings = append(resp.Bookings, toBookingResponse(p.Key, p.Booking, s.CostPerKm))
	}
	c.JSON(http.StatusCreated, resp)
}

func (a *API) getBookingHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	ref, ok := bookingRef(c)
	if !ok {
		return
	}
	s, err := a.settings.Load(c)
	if err != nil {
		logger.ErrorContext(c, "failed to load settings", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	b, rec, err := a.writer.Lookup(c.Request.Context(), ref)
	if err != nil {
		respondBookingError(c, logger, err, "failed to get booking")
		return
	}

	resp := getBookingResponse{Booking: toBookingResponse(ref.Key, b, s.CostPerKm)}
	if rec != nil {
		r := toRecurrenceResponse(*rec)
		resp.Recurrence = &r
	}
	c.JSON(http.StatusOK, resp)
}

func (a *API) updateBookingHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	ref, ok := bookingRef(c)
	if !ok {
		return
	}

	var req updateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": err.Error()})
		return
	}

	s, err := a.settings.Load(c)
	if err != nil {
		logger.ErrorContext(c, "failed to load settings", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if req.CarID != "" {
		if _, ok := s.Car(req.CarID); !ok {
			c.JSON(http.StatusNotFound, gin.H{"code": "CAR_NOT_FOUND", "message": "Car not found"})
			return
		}
	}

	var date time.Time
	if req.Date != "" {
		if date, ok = parseDateField(c, "date", req.Date); !ok {
			return
		}
	}
	startTime, endTime, ok := parseWindow(c, req.StartTime, req.EndTime)
	if !ok {
		return
	}
	destination, distance := resolveDestination(s, req.Destination, req.Distance)

	placed, err := a.writer.Edit(c.Request.Context(), ref, booking.EditRequest{
		Date:      date,
		Car:       req.CarID,
		StartTime: startTime,
		EndTime:   endTime,
		Distance:  distance,
		Details: booking.Details{
			Users:       req.Users,
			Destination: destination,
		},
	})
	if err != nil {
		respondBookingError(c, logger, err, "failed to update booking")
		return
	}

	c.JSON(http.StatusOK, toBookingResponse(placed.Key, placed.Booking, s.CostPerKm))
}

func (a *API) deleteBookingHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	ref, ok := bookingRef(c)
	if !ok {
		return
	}

	if err := a.writer.Delete(c.Request.Context(), ref); err != nil {
		respondBookingError(c, logger, err, "failed to delete booking")
		return
	}

	logger.InfoContext(c, "booking deleted", "bucket", ref.Key.String(), "booking_id", ref.BookingID)
	c.Status(http.StatusNoContent)
}

func (a *API) recurrenceHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	rec, err := a.store.ReadRecurrence(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondBookingError(c, logger, err, "failed to get recurrence")
		return
	}
	c.JSON(http.StatusOK, toRecurrenceResponse(rec))
}

// respondBookingError maps booking errors onto status codes. Anything it
// does not recognise is logged and reported as a 500.
func respondBookingError(c *gin.Context, logger *slog.Logger, err error, msg string) {
	var (
		vErr        *booking.ValidationError
		pErr        *booking.ParseError
		rErr        *booking.InvalidRangeError
		conflictErr *booking.ConflictError
	)

	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": vErr.Error(), "fields": vErr.FieldErrors})
	case errors.As(err, &pErr):
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_TIME", "message": pErr.Error()})
	case errors.As(err, &rErr):
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_RANGE", "message": "End date must not be before start date"})
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusConflict, gin.H{
			"code":    "BOOKING_OVERLAP",
			"message": "Booking overlaps with existing booking",
			"dates":   conflictErr.Dates(),
		})
	case errors.Is(err, booking.ErrVersionConflict):
		logger.WarnContext(c, msg, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"code": "TRY_AGAIN", "message": "The car was booked concurrently, please try again"})
	case errors.Is(err, booking.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"code": "BOOKING_NOT_FOUND", "message": "Booking not found"})
	case errors.Is(err, booking.ErrRecurrenceNotFound):
		c.JSON(http.StatusNotFound, gin.H{"code": "RECURRENCE_NOT_FOUND", "message": "Recurrence not found"})
	default:
		logger.ErrorContext(c, msg, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func bookingRef(c *gin.Context) (booking.Ref, bool) {
	date, ok := parseDateField(c, "date", c.Param("date"))
	if !ok {
		return booking.Ref{}, false
	}
	return booking.Ref{
		Key:       booking.NewKey(date, c.Param("carId")),
		BookingID: c.Param("bookingId"),
	}, true
}

func parseDateField(c *gin.Context, field, value string) (time.Time, bool) {
	d, err := booking.ParseDate(value)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "INVALID_REQUEST",
			"message": "Invalid " + field,
			"fields":  map[string]string{field: "date must be YYYY-MM-DD"},
		})
		return time.Time{}, false
	}
	return d, true
}

func parseWindow(c *gin.Context, start, end string) (int, int, bool) {
	startTime, err := booking.ParseClock(start)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_TIME", "message": "Invalid startTime: " + err.Error()})
		return 0, 0, false
	}
	endTime, err := booking.ParseClock(end)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_TIME", "message": "Invalid endTime: " + err.Error()})
		return 0, 0, false
	}
	return startTime, endTime, true
}

// resolveDestination canonicalises a known destination's name and takes its
// distance when the request gave none.
func resolveDestination(s settings.Settings, name string, distance *float64) (string, float64) {
	var km float64
	if distance != nil {
		km = *distance
	}
	d, ok := s.Destination(name)
	if !ok {
		return name, km
	}
	if distance == nil || *distance == 0 {
		km = d.Distance
	}
	return d.Name, km
}

func toBookingResponse(key booking.Key, b booking.Booking, costPerKm float64) bookingResponse {
	users := b.Users
	if users == nil {
		users = []string{}
	}
	return bookingResponse{
		ID:           b.ID,
		Date:         key.DateString(),
		CarID:        key.Car,
		Users:        users,
		StartTime:    booking.FormatClock(b.StartTime),
		EndTime:      booking.FormatClock(b.EndTime),
		Distance:     b.Distance,
		Destination:  b.Destination,
		ByUser:       b.ByUser,
		RecurrenceID: b.RecurrenceID,
		CreatedAt:    b.CreatedAt,
		Label:        booking.Label(b),
		Cost:         booking.EstimateCost(b.Distance, costPerKm),
	}
}

func toRecurrenceResponse(rec booking.Recurrence) recurrenceResponse {
	days := make([]int, 0, len(rec.RecurringDays))
	for _, d := range rec.RecurringDays {
		days = append(days, int(d))
	}
	return recurrenceResponse{
		ID:               rec.ID,
		IsMultiDay:       rec.IsMultiDay,
		RecurringDays:    days,
		StartDate:        rec.StartDate.Format(booking.DateLayout),
		RecurringEndDate: rec.RecurringEndDate.Format(booking.DateLayout),
		CreatedAt:        rec.CreatedAt,
	}
}
