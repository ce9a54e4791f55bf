package booking

import (
	"net/http"
	"time"

	"github.com/nekogravitycat/studyspace-booking/internal/pkg/apperror"
)

var (
	ErrSpaceNotFound                = apperror.New(http.StatusNotFound, "SpaceNotFound", "study space not found")
	ErrSpaceUnavailable             = apperror.New(http.StatusConflict, "SpaceUnavailable", "study space is not available for booking")
	ErrTooManyActiveBookings        = apperror.New(http.StatusConflict, "TooManyActiveBookings", "student already holds the maximum number of active bookings")
	ErrSlotConflict                 = apperror.New(http.StatusConflict, "SlotConflict", "time slot already booked")
	ErrPastBooking                  = apperror.New(http.StatusBadRequest, "PastBooking", "cannot create booking in the past")
	ErrExceedsClosingTime           = apperror.New(http.StatusBadRequest, "ExceedsClosingTime", "booking must end by closing time")
	ErrInsertionVerificationFailure = apperror.New(http.StatusInternalServerError, "InsertionVerificationFailure", "booking could not be verified after saving")
	ErrStoreUnavailable             = apperror.New(http.StatusServiceUnavailable, "StoreUnavailable", "booking store unavailable")

	ErrInvalidTimeRange = apperror.New(http.StatusBadRequest, "InvalidTimeRange", "start time must be before end time on the booking date")
	ErrNotFound         = apperror.New(http.StatusNotFound, "BookingNotFound", "booking not found")
	ErrPermissionDenied = apperror.New(http.StatusForbidden, "PermissionDenied", "permission denied")
	ErrInvalidInput     = apperror.New(http.StatusBadRequest, "InvalidInput", "invalid input parameters")
)

// MaxActiveBookings is the number of ACTIVE bookings a student may hold at once.
const MaxActiveBookings = 2

type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Booking is a reservation of a study space for a contiguous time window.
// Building, Campus and Level are copied from the space when the booking is created.
type Booking struct {
	ID          string
	StudentID   string
	RoomID      string
	Building    string
	Campus      string
	Level       string
	BookingDate time.Time // Only the calendar fields are meaningful
	StartTime   time.Time
	EndTime     time.Time
	Status      Status
	CreatedAt   time.Time
}

// Overlaps uses half-open semantics: [a1,a2) and [b1,b2) overlap iff a1 < b2 && b1 < a2.
func (b *Booking) Overlaps(start, end time.Time) bool {
	return b.StartTime.Before(end) && start.Before(b.EndTime)
}

// Contains reports whether t falls inside [StartTime, EndTime).
func (b *Booking) Contains(t time.Time) bool {
	return !t.Before(b.StartTime) && t.Before(b.EndTime)
}

// OnDate reports whether the booking's calendar day equals date's.
func (b *Booking) OnDate(date time.Time) bool {
	return sameDate(b.BookingDate, date)
}

type SlotStatus string

const (
	SlotAvailable SlotStatus = "AVAILABLE"
	SlotBooked    SlotStatus = "BOOKED"
	SlotInUse     SlotStatus = "IN_USE"
	SlotMine      SlotStatus = "MY_BOOKING"
	SlotPast      SlotStatus = "PAST"
)

// BookingSlot is the availability of one space at one half-hour boundary.
// It is derived on every query and never stored.
type BookingSlot struct {
	RoomID    string
	SpaceID   string
	Building  string
	Campus    string
	Level     string
	TimeSlot  string // HH:mm
	StartTime time.Time
	EndTime   time.Time
	Status    SlotStatus
}

// CreateRequest carries a candidate booking from the caller.
type CreateRequest struct {
	StudentID string
	RoomID    string
	Date      time.Time
	StartTime time.Time
	EndTime   time.Time
}

// SlotQuery selects the spaces whose slots are projected.
// SpaceIDs takes precedence; otherwise every offerable space matching the filter is used.
type SlotQuery struct {
	SpaceIDs  []string
	Building  string
	Campus    string
	Level     string
	Date      time.Time
	StudentID string
}
