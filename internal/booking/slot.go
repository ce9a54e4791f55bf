package booking

import (
	"time"

	"github.com/nekogravitycat/studyspace-booking/internal/space"
)

const (
	SlotDuration = 30 * time.Minute
	OpeningHour  = 8
	ClosingHour  = 21
	// SlotsPerDay counts the half-hour starts from 08:00 through 20:30.
	SlotsPerDay = (ClosingHour - OpeningHour) * 2
)

// Slot is one half-hour interval of the bookable day.
type Slot struct {
	Label string // HH:mm
	Start time.Time
	End   time.Time
}

// DateOf returns midnight of t's calendar day in loc.
func DateOf(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// normalizeDate keeps the calendar fields of date and pins it to midnight in loc.
func normalizeDate(date time.Time, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// At returns the instant hour:minute on date's calendar day in loc.
func At(date time.Time, hour, minute int, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, loc)
}

// ClosingTime returns 21:00 on date's calendar day in loc.
func ClosingTime(date time.Time, loc *time.Location) time.Time {
	return At(date, ClosingHour, 0, loc)
}

// EnumerateSlots lists the half-hour slots of date in order, 08:00 through 20:30.
func EnumerateSlots(date time.Time, loc *time.Location) []Slot {
	slots := make([]Slot, 0, SlotsPerDay)
	start := At(date, OpeningHour, 0, loc)
	closing := ClosingTime(date, loc)

	for t := start; t.Before(closing); t = t.Add(SlotDuration) {
		slots = append(slots, Slot{
			Label: t.Format("15:04"),
			Start: t,
			End:   t.Add(SlotDuration),
		})
	}
	return slots
}

// Classify decides the status of a slot. The checks run in a fixed order so the
// most specific status wins: past, free, own booking, in use, booked.
// conflicts must hold the bookings overlapping the slot; non-ACTIVE entries are ignored.
func Classify(slot Slot, now time.Time, conflicts []*Booking, studentID string) SlotStatus {
	if slot.Start.Before(now) {
		return SlotPast
	}

	var active []*Booking
	for _, b := range conflicts {
		if b.Status == StatusActive {
			active = append(active, b)
		}
	}
	if len(active) == 0 {
		return SlotAvailable
	}

	for _, b := range active {
		if studentID != "" && b.StudentID == studentID {
			return SlotMine
		}
	}

	for _, b := range active {
		if b.Contains(now) {
			return SlotInUse
		}
	}

	return SlotBooked
}

// Project computes the slot view of every space on date from the given bookings.
// It is a pure function of its inputs.
func Project(spaces []*space.StudySpace, bookings []*Booking, date, now time.Time, studentID string, loc *time.Location) []BookingSlot {
	byRoom := make(map[string][]*Booking, len(spaces))
	for _, b := range bookings {
		byRoom[b.RoomID] = append(byRoom[b.RoomID], b)
	}

	slots := EnumerateSlots(date, loc)
	out := make([]BookingSlot, 0, len(spaces)*len(slots))

	for _, sp := range spaces {
		roomBookings := byRoom[sp.ID]
		for _, slot := range slots {
			conflicts := Overlapping(roomBookings, slot.Start, slot.End, loc)
			out = append(out, BookingSlot{
				RoomID:    sp.ID,
				SpaceID:   sp.SpaceID,
				Building:  sp.Building,
				Campus:    sp.Campus,
				Level:     sp.Level,
				TimeSlot:  slot.Label,
				StartTime: slot.Start,
				EndTime:   slot.End,
				Status:    Classify(slot, now, conflicts, studentID),
			})
		}
	}
	return out
}
