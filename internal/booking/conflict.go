package booking

import (
	"context"
	"time"
)

// Overlapping filters bookings down to the ACTIVE ones overlapping [start, end)
// whose booking date is start's calendar day in loc.
// A raw timestamp match on another calendar day is not a conflict.
func Overlapping(bookings []*Booking, start, end time.Time, loc *time.Location) []*Booking {
	day := DateOf(start, loc)

	var out []*Booking
	for _, b := range bookings {
		if b.Status != StatusActive {
			continue
		}
		if !b.OnDate(day) {
			continue
		}
		if b.Overlaps(start, end) {
			out = append(out, b)
		}
	}
	return out
}

// ConflictDetector finds ACTIVE bookings that collide with a room interval.
type ConflictDetector struct {
	store Store
	loc   *time.Location
}

func NewConflictDetector(store Store, loc *time.Location) *ConflictDetector {
	return &ConflictDetector{store: store, loc: loc}
}

// FindConflicts returns the ACTIVE bookings of roomID overlapping [start, end).
// An empty result means the interval is free.
func (d *ConflictDetector) FindConflicts(ctx context.Context, roomID string, start, end time.Time) ([]*Booking, error) {
	candidates, err := d.store.QueryByRoomAndOverlap(ctx, roomID, start, end)
	if err != nil {
		return nil, storeErr(err)
	}
	return Overlapping(candidates, start, end, d.loc), nil
}

// FindNextBooking returns the ACTIVE booking of roomID on after's calendar day with the
// smallest start time strictly greater than after, or nil when there is none.
func (d *ConflictDetector) FindNextBooking(ctx context.Context, roomID string, after time.Time) (*Booking, error) {
	day := DateOf(after, d.loc)
	dayEnd := day.AddDate(0, 0, 1)

	candidates, err := d.store.QueryByRoomAndOverlap(ctx, roomID, after, dayEnd)
	if err != nil {
		return nil, storeErr(err)
	}

	var next *Booking
	for _, b := range candidates {
		if b.Status != StatusActive || !b.OnDate(day) {
			continue
		}
		if !b.StartTime.After(after) {
			continue
		}
		if next == nil || b.StartTime.Before(next.StartTime) {
			next = b
		}
	}
	return next, nil
}
