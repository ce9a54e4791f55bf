package booking

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nekogravitycat/studyspace-booking/internal/metrics"
	"github.com/nekogravitycat/studyspace-booking/internal/pkg/apperror"
	"github.com/nekogravitycat/studyspace-booking/internal/space"
)

// Durations lists the selectable booking lengths in minutes.
var Durations = []int{30, 60, 90, 120}

// MaxDurationMinutes caps a single booking.
const MaxDurationMinutes = 120

const (
	EventBookingCreated   = "booking.created"
	EventBookingCancelled = "booking.cancelled"
	EventBookingCompleted = "booking.completed"
)

// Clock is the source of "now".
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// EventPublisher delivers booking events to interested parties.
type EventPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

type nopPublisher struct{}

func (nopPublisher) PublishJSON(context.Context, string, any) error { return nil }

// Config carries the optional collaborators of the service.
type Config struct {
	Location  *time.Location
	Clock     Clock
	Cache     DayCache
	Publisher EventPublisher
	Logger    *logrus.Logger
}

type Service interface {
	// GetAvailableSlots projects the slots of every space in scope on the query date.
	GetAvailableSlots(ctx context.Context, q SlotQuery) ([]BookingSlot, error)
	// GetAvailableDurations returns the booking lengths in minutes that fit from the given start.
	GetAvailableDurations(ctx context.Context, spaceID string, date time.Time, startHour, startMinute int) ([]int, error)

	Create(ctx context.Context, req CreateRequest) (*Booking, error)
	Cancel(ctx context.Context, id string, studentID string) error
	GetByID(ctx context.Context, id string, studentID string) (*Booking, error)
	ListActive(ctx context.Context, studentID string) ([]*Booking, error)

	// SweepCompleted marks every ACTIVE booking that ended before now as COMPLETED.
	SweepCompleted(ctx context.Context, now time.Time) (int, error)
	// PurgeTerminal hard-deletes every COMPLETED and CANCELLED booking.
	PurgeTerminal(ctx context.Context) (int, error)

	Location() *time.Location
	Now() time.Time
}

type service struct {
	repo      Repository
	spaces    SpaceFinder
	loc       *time.Location
	clock     Clock
	cache     DayCache
	publisher EventPublisher
	log       *logrus.Logger
}

func NewService(repo Repository, spaces SpaceFinder, cfg Config) Service {
	s := &service{
		repo:      repo,
		spaces:    spaces,
		loc:       cfg.Location,
		clock:     cfg.Clock,
		cache:     cfg.Cache,
		publisher: cfg.Publisher,
		log:       cfg.Logger,
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.clock == nil {
		s.clock = SystemClock{}
	}
	if s.cache == nil {
		s.cache = NopDayCache{}
	}
	if s.publisher == nil {
		s.publisher = nopPublisher{}
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	return s
}

func (s *service) Location() *time.Location { return s.loc }

func (s *service) Now() time.Time { return s.clock.Now() }

func (s *service) Create(ctx context.Context, req CreateRequest) (*Booking, error) {
	now := s.clock.Now()

	// Bookings that already ended must not count toward the active limit.
	s.sweepBestEffort(ctx, now)

	candidate := &Booking{
		ID:          uuid.NewString(),
		StudentID:   req.StudentID,
		RoomID:      req.RoomID,
		BookingDate: normalizeDate(req.Date, s.loc),
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Status:      StatusActive,
	}

	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		// Concurrent creators for the same room or student queue up here.
		if err := tx.Lock(ctx, "room:"+candidate.RoomID, "student:"+candidate.StudentID); err != nil {
			return storeErr(err)
		}

		sp, err := NewValidator(s.spaces, tx, s.loc).Validate(ctx, candidate, now)
		if err != nil {
			return err
		}
		candidate.Building = sp.Building
		candidate.Campus = sp.Campus
		candidate.Level = sp.Level

		return storeErr(tx.Insert(ctx, candidate))
	})
	if err != nil {
		s.recordRejection(candidate, err)
		return nil, err
	}

	// Read-your-write: the booking only counts once it can be read back.
	if _, err := s.repo.GetByID(ctx, candidate.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			s.log.WithFields(logrus.Fields{
				"booking_id": candidate.ID,
				"room_id":    candidate.RoomID,
			}).Error("booking missing after insert")
			return nil, ErrInsertionVerificationFailure
		}
		return nil, storeErr(err)
	}

	s.invalidate(ctx, candidate.RoomID, candidate.BookingDate)
	s.publish(ctx, EventBookingCreated, candidate)
	metrics.RecordBookingCreated()

	s.log.WithFields(logrus.Fields{
		"booking_id": candidate.ID,
		"room_id":    candidate.RoomID,
		"student_id": candidate.StudentID,
		"start_time": candidate.StartTime,
		"end_time":   candidate.EndTime,
	}).Info("booking created")

	return candidate, nil
}

func (s *service) Cancel(ctx context.Context, id string, studentID string) error {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Already gone: cancelling twice is a no-op.
			return nil
		}
		return storeErr(err)
	}

	if b.StudentID != studentID {
		return ErrPermissionDenied
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return storeErr(err)
	}

	s.invalidate(ctx, b.RoomID, b.BookingDate)
	if b.Status.Terminal() {
		// Ended or already cancelled: the delete is an early purge, not a cancellation
		return nil
	}
	b.Status = StatusCancelled
	s.publish(ctx, EventBookingCancelled, b)
	metrics.RecordBookingCancellation()

	s.log.WithFields(logrus.Fields{
		"booking_id": b.ID,
		"room_id":    b.RoomID,
		"student_id": b.StudentID,
	}).Info("booking cancelled")

	return nil
}

func (s *service) GetByID(ctx context.Context, id string, studentID string) (*Booking, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	if b.StudentID != studentID {
		return nil, ErrPermissionDenied
	}
	return b, nil
}

func (s *service) ListActive(ctx context.Context, studentID string) ([]*Booking, error) {
	bookings, err := s.repo.QueryByStudentAndStatus(ctx, studentID, StatusActive)
	if err != nil {
		return nil, storeErr(err)
	}
	sort.Slice(bookings, func(i, j int) bool {
		return bookings[i].StartTime.Before(bookings[j].StartTime)
	})
	return bookings, nil
}

func (s *service) SweepCompleted(ctx context.Context, now time.Time) (int, error) {
	var completed []*Booking

	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		completed = completed[:0]

		all, err := tx.QueryAll(ctx)
		if err != nil {
			return storeErr(err)
		}
		for _, b := range all {
			if b.Status != StatusActive || !b.EndTime.Before(now) {
				continue
			}
			if err := tx.UpdateStatus(ctx, b.ID, StatusCompleted); err != nil {
				if errors.Is(err, ErrNotFound) {
					continue
				}
				return storeErr(err)
			}
			completed = append(completed, b)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, b := range completed {
		b.Status = StatusCompleted
		s.invalidate(ctx, b.RoomID, b.BookingDate)
		s.publish(ctx, EventBookingCompleted, b)
	}
	if len(completed) > 0 {
		metrics.RecordBookingsCompleted(len(completed))
		s.log.WithField("count", len(completed)).Info("bookings completed")
	}

	return len(completed), nil
}

func (s *service) PurgeTerminal(ctx context.Context) (int, error) {
	purged := 0

	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		purged = 0

		all, err := tx.QueryAll(ctx)
		if err != nil {
			return storeErr(err)
		}
		for _, b := range all {
			if !b.Status.Terminal() {
				continue
			}
			if err := tx.Delete(ctx, b.ID); err != nil {
				if errors.Is(err, ErrNotFound) {
					continue
				}
				return storeErr(err)
			}
			purged++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if purged > 0 {
		metrics.RecordBookingsPurged(purged)
		s.log.WithField("count", purged).Info("terminal bookings purged")
	}
	return purged, nil
}

func (s *service) GetAvailableSlots(ctx context.Context, q SlotQuery) ([]BookingSlot, error) {
	now := s.clock.Now()
	date := normalizeDate(q.Date, s.loc)

	s.sweepBestEffort(ctx, now)
	s.purgeBestEffort(ctx)

	spaces, err := s.resolveSpaces(ctx, q)
	if err != nil {
		return nil, err
	}

	var bookings []*Booking
	for _, sp := range spaces {
		dayBookings, err := s.dayBookings(ctx, sp.ID, date)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, dayBookings...)
	}

	return Project(spaces, bookings, date, now, q.StudentID, s.loc), nil
}

func (s *service) GetAvailableDurations(ctx context.Context, spaceID string, date time.Time, startHour, startMinute int) ([]int, error) {
	if startHour < 0 || startHour > 23 || startMinute < 0 || startMinute > 59 {
		return nil, ErrInvalidInput
	}

	date = normalizeDate(date, s.loc)
	start := At(date, startHour, startMinute, s.loc)
	available := []int{}

	if start.Before(s.clock.Now()) {
		return available, nil
	}

	sp, err := s.spaces.GetByID(ctx, spaceID)
	if err != nil {
		if errors.Is(err, ErrSpaceNotFound) {
			return nil, ErrSpaceNotFound
		}
		return nil, apperror.Wrap(ErrStoreUnavailable, err)
	}
	if !sp.Offerable() {
		return available, nil
	}

	detector := NewConflictDetector(s.repo, s.loc)

	// A start inside an existing booking leaves nothing to choose from.
	conflicts, err := detector.FindConflicts(ctx, spaceID, start, start.Add(SlotDuration))
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		return available, nil
	}

	next, err := detector.FindNextBooking(ctx, spaceID, start)
	if err != nil {
		return nil, err
	}

	maxMinutes := MaxDurationMinutes
	if untilClose := minutesBetween(start, ClosingTime(date, s.loc)); untilClose < maxMinutes {
		maxMinutes = untilClose
	}
	if next != nil {
		if untilNext := minutesBetween(start, next.StartTime); untilNext < maxMinutes {
			maxMinutes = untilNext
		}
	}
	if maxMinutes < 0 {
		maxMinutes = 0
	}

	for _, d := range Durations {
		if d <= maxMinutes {
			available = append(available, d)
		}
	}
	return available, nil
}

func minutesBetween(from, to time.Time) int {
	return int(to.Sub(from) / time.Minute)
}

// resolveSpaces returns the offerable spaces selected by q.
func (s *service) resolveSpaces(ctx context.Context, q SlotQuery) ([]*space.StudySpace, error) {
	var out []*space.StudySpace

	if len(q.SpaceIDs) > 0 {
		for _, id := range q.SpaceIDs {
			sp, err := s.spaces.GetByID(ctx, id)
			if err != nil {
				if errors.Is(err, ErrSpaceNotFound) {
					return nil, ErrSpaceNotFound
				}
				return nil, apperror.Wrap(ErrStoreUnavailable, err)
			}
			if sp.Offerable() {
				out = append(out, sp)
			}
		}
		return out, nil
	}

	filter := space.Filter{
		Building:      q.Building,
		Campus:        q.Campus,
		Level:         q.Level,
		AvailableOnly: true,
		Page:          1,
		PageSize:      100,
	}
	for {
		page, total, err := s.spaces.List(ctx, filter)
		if err != nil {
			return nil, apperror.Wrap(ErrStoreUnavailable, err)
		}
		for _, sp := range page {
			if sp.Offerable() {
				out = append(out, sp)
			}
		}
		if len(page) == 0 || filter.Page*filter.PageSize >= total {
			break
		}
		filter.Page++
	}
	return out, nil
}

// dayBookings returns the ACTIVE bookings of roomID on date, served from the cache when possible.
func (s *service) dayBookings(ctx context.Context, roomID string, date time.Time) ([]*Booking, error) {
	cached, ok, err := s.cache.Get(ctx, roomID, date)
	if err != nil {
		s.log.WithError(err).WithField("room_id", roomID).Warn("day cache read failed")
	}
	metrics.RecordCacheLookup(ok)
	if ok {
		return cached, nil
	}

	dayStart := normalizeDate(date, s.loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	candidates, err := s.repo.QueryByRoomAndOverlap(ctx, roomID, dayStart, dayEnd)
	if err != nil {
		return nil, storeErr(err)
	}
	bookings := Overlapping(candidates, dayStart, dayEnd, s.loc)

	if err := s.cache.Set(ctx, roomID, date, bookings); err != nil {
		s.log.WithError(err).WithField("room_id", roomID).Warn("day cache write failed")
	}
	return bookings, nil
}

func (s *service) sweepBestEffort(ctx context.Context, now time.Time) {
	if _, err := s.SweepCompleted(ctx, now); err != nil {
		s.log.WithError(err).Warn("sweep of ended bookings failed")
	}
}

func (s *service) purgeBestEffort(ctx context.Context) {
	if _, err := s.PurgeTerminal(ctx); err != nil {
		metrics.RecordPurgeFailure()
		s.log.WithError(err).Warn("purge of terminal bookings failed")
	}
}

func (s *service) invalidate(ctx context.Context, roomID string, date time.Time) {
	if err := s.cache.Invalidate(ctx, roomID, date); err != nil {
		s.log.WithError(err).WithField("room_id", roomID).Warn("day cache invalidation failed")
	}
}

type bookingEvent struct {
	BookingID string    `json:"booking_id"`
	StudentID string    `json:"student_id"`
	RoomID    string    `json:"room_id"`
	Date      string    `json:"booking_date"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Status    Status    `json:"status"`
}

func (s *service) publish(ctx context.Context, key string, b *Booking) {
	ev := bookingEvent{
		BookingID: b.ID,
		StudentID: b.StudentID,
		RoomID:    b.RoomID,
		Date:      b.BookingDate.Format(dateLayout),
		StartTime: b.StartTime,
		EndTime:   b.EndTime,
		Status:    b.Status,
	}
	if err := s.publisher.PublishJSON(ctx, key, ev); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"event":      key,
			"booking_id": b.ID,
		}).Warn("publish booking event failed")
	}
}

func (s *service) recordRejection(candidate *Booking, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || appErr.Kind == ErrStoreUnavailable.Kind {
		s.log.WithError(err).WithField("room_id", candidate.RoomID).Error("create booking failed")
		return
	}

	metrics.RecordBookingRejected(appErr.Kind)
	s.log.WithFields(logrus.Fields{
		"room_id":    candidate.RoomID,
		"student_id": candidate.StudentID,
		"reason":     appErr.Kind,
	}).Info("booking rejected")
}
