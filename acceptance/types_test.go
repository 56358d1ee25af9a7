package acceptance

import "time"

type bookingResponse struct {
	ID           string    `json:"id"`
	Date         string    `json:"date"`
	CarID        string    `json:"carId"`
	Users        []string  `json:"users"`
	StartTime    string    `json:"startTime"`
	EndTime      string    `json:"endTime"`
	Distance     float64   `json:"distance"`
	Destination  string    `json:"destination"`
	ByUser       string    `json:"byUser"`
	RecurrenceID string    `json:"recurrenceId"`
	CreatedAt    time.Time `json:"createdAt"`
	Label        string    `json:"label"`
	Cost         float64   `json:"cost"`
	IsOwnBooking bool      `json:"isOwnBooking"`
}

type createBookingResponse struct {
	RecurrenceID string            `json:"recurrenceId"`
	Bookings     []bookingResponse `json:"bookings"`
}

type recurrenceResponse struct {
	ID               string `json:"id"`
	IsMultiDay       bool   `json:"isMultiDay"`
	RecurringDays    []int  `json:"recurringDays"`
	StartDate        string `json:"startDate"`
	RecurringEndDate string `json:"recurringEndDate"`
}

type getBookingResponse struct {
	Booking    bookingResponse     `json:"booking"`
	Recurrence *recurrenceResponse `json:"recurrence"`
}

type errorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields"`
	Dates   []string          `json:"dates"`
}

type overviewResponse struct {
	Start     string  `json:"start"`
	Days      int     `json:"days"`
	CostPerKm float64 `json:"costPerKm"`
	Cars      []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"cars"`
	Rows []struct {
		Date  string `json:"date"`
		Cells []struct {
			CarID    string            `json:"carId"`
			Bookings []bookingResponse `json:"bookings"`
		} `json:"cells"`
	} `json:"rows"`
}
