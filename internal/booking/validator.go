package booking

import (
	"context"
	"errors"
	"time"

	"github.com/nekogravitycat/studyspace-booking/internal/pkg/apperror"
	"github.com/nekogravitycat/studyspace-booking/internal/space"
)

// SpaceFinder looks up study spaces.
type SpaceFinder interface {
	GetByID(ctx context.Context, id string) (*space.StudySpace, error)
	List(ctx context.Context, filter space.Filter) ([]*space.StudySpace, int, error)
}

// Validator runs every creation rule against a candidate booking.
// Any violated rule rejects the whole candidate.
type Validator struct {
	spaces   SpaceFinder
	store    Store
	detector *ConflictDetector
	loc      *time.Location
}

func NewValidator(spaces SpaceFinder, store Store, loc *time.Location) *Validator {
	return &Validator{
		spaces:   spaces,
		store:    store,
		detector: NewConflictDetector(store, loc),
		loc:      loc,
	}
}

// Validate checks the candidate in a fixed order and returns the first violation.
// On success it returns the target space so callers can copy its location fields.
func (v *Validator) Validate(ctx context.Context, candidate *Booking, now time.Time) (*space.StudySpace, error) {
	// 0. Shape: a non-empty interval inside the bookable day, no longer than the longest duration
	if !candidate.StartTime.Before(candidate.EndTime) {
		return nil, ErrInvalidTimeRange
	}
	if !sameDate(DateOf(candidate.StartTime, v.loc), candidate.BookingDate) {
		return nil, ErrInvalidTimeRange
	}
	if candidate.StartTime.Before(At(candidate.BookingDate, OpeningHour, 0, v.loc)) {
		return nil, ErrInvalidTimeRange
	}
	if candidate.EndTime.Sub(candidate.StartTime) > MaxDurationMinutes*time.Minute {
		return nil, ErrInvalidTimeRange
	}

	// 1. Space exists and is switched on
	sp, err := v.spaces.GetByID(ctx, candidate.RoomID)
	if err != nil {
		if errors.Is(err, ErrSpaceNotFound) {
			return nil, ErrSpaceNotFound
		}
		return nil, apperror.Wrap(ErrStoreUnavailable, err)
	}
	if !sp.Offerable() {
		return nil, ErrSpaceUnavailable
	}

	// 2. Student is below the active booking limit
	active, err := v.store.QueryByStudentAndStatus(ctx, candidate.StudentID, StatusActive)
	if err != nil {
		return nil, storeErr(err)
	}
	if len(active) >= MaxActiveBookings {
		return nil, ErrTooManyActiveBookings
	}

	// 3. Room is free for the whole interval
	conflicts, err := v.detector.FindConflicts(ctx, candidate.RoomID, candidate.StartTime, candidate.EndTime)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		return nil, ErrSlotConflict
	}

	// 4. Not in the past
	if candidate.StartTime.Before(now) {
		return nil, ErrPastBooking
	}

	// 5. Ends by closing time on the booking date
	if candidate.EndTime.After(ClosingTime(candidate.BookingDate, v.loc)) {
		return nil, ErrExceedsClosingTime
	}

	return sp, nil
}
