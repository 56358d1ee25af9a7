package api

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/semanticallynull/carpool-backend/booking"
	"github.com/semanticallynull/carpool-backend/internal/middleware"
)

const maxOverviewDays = 62

type overviewResponse struct {
	Start     string        `json:"start"`
	Days      int           `json:"days"`
	CostPerKm float64       `json:"costPerKm"`
	Cars      []carColumn   `json:"cars"`
	Rows      []overviewRow `json:"rows"`
}

type carColumn struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type overviewRow struct {
	Date  string         `json:"date"`
	Cells []overviewCell `json:"cells"`
}

type overviewCell struct {
	CarID    string            `json:"carId"`
	Bookings []overviewBooking `json:"bookings"`
}

type overviewBooking struct {
	bookingResponse
	IsOwnBooking bool `json:"isOwnBooking"`
}

func (a *API) overviewHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "Authentication required"})
		return
	}

	start, days, err := parseOverviewQuery(c.Query("start"), c.Query("days"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": err.Error()})
		return
	}

	s, err := a.settings.Load(c)
	if err != nil {
		logger.ErrorContext(c, "failed to load settings", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	dates := booking.DaysFrom(start, days)
	buckets, err := booking.LoadRange(c.Request.Context(), a.store, start, start.AddDate(0, 0, days))
	if err != nil {
		respondBookingError(c, logger, err, "failed to load bookings")
		return
	}
	grid := booking.ProjectToGrid(buckets, s.CarIDs(), dates)

	resp := overviewResponse{
		Start:     start.Format(booking.DateLayout),
		Days:      days,
		CostPerKm: s.CostPerKm,
		Cars:      make([]carColumn, 0, len(s.Cars)),
		Rows:      make([]overviewRow, 0, len(grid.Dates)),
	}
	for _, car := range s.Cars {
		resp.Cars = append(resp.Cars, carColumn{ID: car.ID, Name: car.Name})
	}

	for i, d := range grid.Dates {
		row := overviewRow{Date: d.Format(booking.DateLayout), Cells: make([]overviewCell, 0, len(grid.Cars))}
		for j, car := range grid.Cars {
			cell := overviewCell{CarID: car, Bookings: make([]overviewBooking, 0, len(grid.Cells[i][j]))}
			for _, b := range grid.Cells[i][j] {
				cell.Bookings = append(cell.Bookings, overviewBooking{
					bookingResponse: toBookingResponse(booking.NewKey(d, car), b, s.CostPerKm),
					IsOwnBooking:    b.ByUser == userID || slices.Contains(b.Users, userID),
				})
			}
			row.Cells = append(row.Cells, cell)
		}
		resp.Rows = append(resp.Rows, row)
	}

	c.JSON(http.StatusOK, resp)
}

// parseOverviewQuery defaults to a page of booking.DefaultPageDays starting
// today.
func parseOverviewQuery(startStr, daysStr string) (time.Time, int, error) {
	start := booking.Day(time.Now())
	if startStr != "" {
		t, err := booking.ParseDate(startStr)
		if err != nil {
			return time.Time{}, 0, errors.New("invalid start, expected YYYY-MM-DD")
		}
		start = t
	}

	days := booking.DefaultPageDays
	if daysStr != "" {
		n, err := strconv.Atoi(daysStr)
		if err != nil || n < 1 || n > maxOverviewDays {
			return time.Time{}, 0, fmt.Errorf("days must be between 1 and %d", maxOverviewDays)
		}
		days = n
	}
	return start, days, nil
}
