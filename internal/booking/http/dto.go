package http

import (
	"fmt"
	"time"

	"github.com/nekogravitycat/studyspace-booking/internal/booking"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// SlotsRequest defines query parameters for the slot grid of one or many spaces.
type SlotsRequest struct {
	Date     string   `form:"date" binding:"required"`
	SpaceIDs []string `form:"space_id" binding:"omitempty,dive,uuid"`
	Building string   `form:"building"`
	Campus   string   `form:"campus"`
	Level    string   `form:"level"`
}

// DurationsRequest defines query parameters for selectable booking lengths.
type DurationsRequest struct {
	Date  string `form:"date" binding:"required"`
	Start string `form:"start" binding:"required"`
}

type CreateBookingRequest struct {
	RoomID    string `json:"room_id" binding:"required,uuid"`
	Date      string `json:"date" binding:"required"`
	StartTime string `json:"start_time" binding:"required"`
	EndTime   string `json:"end_time" binding:"required"`
}

// parseDate reads YYYY-MM-DD as a calendar day in loc.
func parseDate(s string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return d, nil
}

// parseClock reads HH:mm. 24:00 is not accepted.
func parseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:mm", s)
	}
	return t.Hour(), t.Minute(), nil
}

// ToDomain resolves the wall-clock fields against the booking timezone.
func (r *CreateBookingRequest) ToDomain(studentID string, loc *time.Location) (booking.CreateRequest, error) {
	date, err := parseDate(r.Date, loc)
	if err != nil {
		return booking.CreateRequest{}, err
	}
	sh, sm, err := parseClock(r.StartTime)
	if err != nil {
		return booking.CreateRequest{}, err
	}
	eh, em, err := parseClock(r.EndTime)
	if err != nil {
		return booking.CreateRequest{}, err
	}

	return booking.CreateRequest{
		StudentID: studentID,
		RoomID:    r.RoomID,
		Date:      date,
		StartTime: booking.At(date, sh, sm, loc),
		EndTime:   booking.At(date, eh, em, loc),
	}, nil
}

type BookingResponse struct {
	ID          string    `json:"id"`
	StudentID   string    `json:"student_id"`
	RoomID      string    `json:"room_id"`
	Building    string    `json:"building"`
	Campus      string    `json:"campus"`
	Level       string    `json:"level"`
	BookingDate string    `json:"booking_date"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

func NewBookingResponse(b *booking.Booking) BookingResponse {
	return BookingResponse{
		ID:          b.ID,
		StudentID:   b.StudentID,
		RoomID:      b.RoomID,
		Building:    b.Building,
		Campus:      b.Campus,
		Level:       b.Level,
		BookingDate: b.BookingDate.Format(dateLayout),
		StartTime:   b.StartTime,
		EndTime:     b.EndTime,
		Status:      string(b.Status),
		CreatedAt:   b.CreatedAt,
	}
}

type SlotResponse struct {
	RoomID    string    `json:"room_id"`
	SpaceID   string    `json:"space_id"`
	Building  string    `json:"building"`
	Campus    string    `json:"campus"`
	Level     string    `json:"level"`
	TimeSlot  string    `json:"time_slot"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Status    string    `json:"status"`
}

func NewSlotResponse(s booking.BookingSlot) SlotResponse {
	return SlotResponse{
		RoomID:    s.RoomID,
		SpaceID:   s.SpaceID,
		Building:  s.Building,
		Campus:    s.Campus,
		Level:     s.Level,
		TimeSlot:  s.TimeSlot,
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
		Status:    string(s.Status),
	}
}

type DurationsResponse struct {
	Date      string `json:"date"`
	Start     string `json:"start"`
	Durations []int  `json:"durations"`
}

type SweepResponse struct {
	Completed int `json:"completed"`
	Purged    int `json:"purged"`
}
