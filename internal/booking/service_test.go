package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/studyspace-booking/internal/pkg/logging"
	"github.com/nekogravitycat/studyspace-booking/internal/space"
)

// mapCache is an in-memory DayCache that records invalidations.
type mapCache struct {
	mu          sync.Mutex
	entries     map[string][]*Booking
	invalidated []string
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[string][]*Booking{}}
}

func (c *mapCache) Get(_ context.Context, roomID string, date time.Time) ([]*Booking, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.entries[dayKey(roomID, date)]
	return b, ok, nil
}

func (c *mapCache) Set(_ context.Context, roomID string, date time.Time, bookings []*Booking) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[dayKey(roomID, date)] = bookings
	return nil
}

func (c *mapCache) Invalidate(_ context.Context, roomID string, date time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := dayKey(roomID, date)
	delete(c.entries, key)
	c.invalidated = append(c.invalidated, key)
	return nil
}

type fixture struct {
	svc       Service
	repo      *memRepo
	spaces    *fakeSpaces
	cache     *mapCache
	publisher *recordingPublisher
}

var (
	room1    = &space.StudySpace{ID: "r1", SpaceID: "Room 1", Building: "Library", Campus: "Main", Level: "1", Capacity: 10, IsAvailable: true}
	room2    = &space.StudySpace{ID: "r2", SpaceID: "Room 2", Building: "Library", Campus: "Main", Level: "2", Capacity: 6, IsAvailable: true}
	room3    = &space.StudySpace{ID: "r3", SpaceID: "Room 3", Building: "Science", Campus: "North", Level: "1", Capacity: 4, IsAvailable: true}
	disabled = &space.StudySpace{ID: "r9", SpaceID: "Room 9", Building: "Library", Campus: "Main", Level: "1", Capacity: 4, IsAvailable: false}
)

func newFixture(now time.Time, seed ...*Booking) *fixture {
	f := &fixture{
		repo:      newMemRepo(seed...),
		spaces:    newFakeSpaces(room1, room2, room3, disabled),
		cache:     newMapCache(),
		publisher: &recordingPublisher{},
	}
	f.svc = NewService(f.repo, f.spaces, Config{
		Location:  taipei,
		Clock:     fixedClock{now: now},
		Cache:     f.cache,
		Publisher: f.publisher,
		Logger:    logging.Discard(),
	})
	return f
}

func createReq(student, room string, date time.Time, sh, sm, eh, em int) CreateRequest {
	return CreateRequest{
		StudentID: student,
		RoomID:    room,
		Date:      date,
		StartTime: clock(date, sh, sm),
		EndTime:   clock(date, eh, em),
	}
}

func statusAt(slots []BookingSlot, roomID, label string) SlotStatus {
	for _, s := range slots {
		if s.RoomID == roomID && s.TimeSlot == label {
			return s.Status
		}
	}
	return ""
}

func TestEndToEndScenario(t *testing.T) {
	ctx := context.Background()
	date := day(2025, time.June, 10)
	f := newFixture(clock(day(2025, time.June, 9), 12, 0))

	slots, err := f.svc.GetAvailableSlots(ctx, SlotQuery{SpaceIDs: []string{"r1"}, Date: date, StudentID: "S1"})
	require.NoError(t, err)
	require.Len(t, slots, 26)
	for _, s := range slots {
		assert.Equal(t, SlotAvailable, s.Status, s.TimeSlot)
	}

	b, err := f.svc.Create(ctx, createReq("S1", "r1", date, 9, 0, 10, 0))
	require.NoError(t, err)
	assert.Equal(t, StatusActive, b.Status)

	mine, err := f.svc.GetAvailableSlots(ctx, SlotQuery{SpaceIDs: []string{"r1"}, Date: date, StudentID: "S1"})
	require.NoError(t, err)
	assert.Equal(t, SlotMine, statusAt(mine, "r1", "09:00"))
	assert.Equal(t, SlotMine, statusAt(mine, "r1", "09:30"))
	assert.Equal(t, SlotAvailable, statusAt(mine, "r1", "10:00"))

	theirs, err := f.svc.GetAvailableSlots(ctx, SlotQuery{SpaceIDs: []string{"r1"}, Date: date, StudentID: "S2"})
	require.NoError(t, err)
	assert.Equal(t, SlotBooked, statusAt(theirs, "r1", "09:00"))
	assert.Equal(t, SlotBooked, statusAt(theirs, "r1", "09:30"))

	_, err = f.svc.Create(ctx, createReq("S1", "r1", date, 9, 30, 10, 30))
	assert.ErrorIs(t, err, ErrSlotConflict)

	_, err = f.svc.Create(ctx, createReq("S1", "r2", date, 9, 0, 10, 0))
	require.NoError(t, err)

	active, err := f.svc.ListActive(ctx, "S1")
	require.NoError(t, err)
	assert.Len(t, active, 2)

	_, err = f.svc.Create(ctx, createReq("S1", "r3", date, 12, 0, 13, 0))
	assert.ErrorIs(t, err, ErrTooManyActiveBookings)
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	date := day(2025, time.June, 10)
	now := clock(date, 8, 0)

	t.Run("Copies location and publishes", func(t *testing.T) {
		f := newFixture(now)

		b, err := f.svc.Create(ctx, createReq("s1", "r1", date, 10, 0, 11, 0))
		require.NoError(t, err)

		assert.NotEmpty(t, b.ID)
		assert.Equal(t, "Library", b.Building)
		assert.Equal(t, "Main", b.Campus)
		assert.Equal(t, "1", b.Level)
		assert.True(t, sameDate(date, b.BookingDate))
		assert.Equal(t, []string{EventBookingCreated}, f.publisher.keys())
		assert.Contains(t, f.cache.invalidated, dayKey("r1", date))
		assert.Contains(t, f.repo.locks, []string{"room:r1", "student:s1"})

		stored, err := f.repo.GetByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusActive, stored.Status)
	})

	t.Run("Closing time boundary", func(t *testing.T) {
		f := newFixture(now)

		_, err := f.svc.Create(ctx, createReq("s1", "r1", date, 20, 0, 21, 0))
		assert.NoError(t, err)

		_, err = f.svc.Create(ctx, createReq("s2", "r2", date, 20, 30, 21, 30))
		assert.ErrorIs(t, err, ErrExceedsClosingTime)
	})

	t.Run("Outside the bookable day or too long", func(t *testing.T) {
		f := newFixture(clock(date, 0, 30))

		_, err := f.svc.Create(ctx, createReq("s1", "r1", date, 3, 0, 4, 0))
		assert.ErrorIs(t, err, ErrInvalidTimeRange)

		_, err = f.svc.Create(ctx, createReq("s2", "r2", date, 8, 0, 21, 0))
		assert.ErrorIs(t, err, ErrInvalidTimeRange)

		assert.Equal(t, 0, f.repo.count())
		assert.Empty(t, f.publisher.keys())
	})

	t.Run("Rejection leaves no trace", func(t *testing.T) {
		f := newFixture(now)

		_, err := f.svc.Create(ctx, createReq("s1", "r9", date, 10, 0, 11, 0))
		assert.ErrorIs(t, err, ErrSpaceUnavailable)
		assert.Equal(t, 0, f.repo.count())
		assert.Empty(t, f.publisher.keys())
	})

	t.Run("Past booking", func(t *testing.T) {
		f := newFixture(clock(date, 12, 0))

		_, err := f.svc.Create(ctx, createReq("s1", "r1", date, 11, 0, 11, 30))
		assert.ErrorIs(t, err, ErrPastBooking)
	})

	t.Run("Unreadable after insert", func(t *testing.T) {
		f := newFixture(now)
		f.repo.dropInsert = true

		b, err := f.svc.Create(ctx, createReq("s1", "r1", date, 10, 0, 11, 0))
		assert.ErrorIs(t, err, ErrInsertionVerificationFailure)
		assert.Nil(t, b)
		assert.Empty(t, f.publisher.keys())
	})

	t.Run("Ended bookings do not count toward the limit", func(t *testing.T) {
		yesterday := day(2025, time.June, 9)
		f := newFixture(now,
			activeBooking("old1", "s1", "r1", yesterday, 9, 0, 10, 0),
			activeBooking("old2", "s1", "r2", yesterday, 9, 0, 10, 0),
		)

		_, err := f.svc.Create(ctx, createReq("s1", "r1", date, 10, 0, 11, 0))
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, f.repo.status("old1"))
		assert.Equal(t, StatusCompleted, f.repo.status("old2"))
	})

	t.Run("Publisher failure does not fail the booking", func(t *testing.T) {
		f := newFixture(now)
		f.publisher.err = errBoom

		_, err := f.svc.Create(ctx, createReq("s1", "r1", date, 10, 0, 11, 0))
		assert.NoError(t, err)
		assert.Equal(t, 1, f.repo.count())
	})

	t.Run("Store failure", func(t *testing.T) {
		f := newFixture(now)
		f.repo.queryErr = errBoom

		_, err := f.svc.Create(ctx, createReq("s1", "r1", date, 10, 0, 11, 0))
		assert.ErrorIs(t, err, ErrStoreUnavailable)
	})
}

func TestCreateCapacityInvariant(t *testing.T) {
	ctx := context.Background()
	date := day(2025, time.June, 10)
	f := newFixture(clock(date, 8, 0))

	rooms := []string{"r1", "r2", "r3", "r1", "r2"}
	succeeded := 0
	for i, room := range rooms {
		_, err := f.svc.Create(ctx, createReq("s1", room, date, 9+2*i, 0, 10+2*i, 0))
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrTooManyActiveBookings)
	}

	assert.Equal(t, MaxActiveBookings, succeeded)
	active, err := f.repo.QueryByStudentAndStatus(ctx, "s1", StatusActive)
	require.NoError(t, err)
	assert.Len(t, active, MaxActiveBookings)
}

func TestCreateConcurrentSameSlot(t *testing.T) {
	ctx := context.Background()
	date := day(2025, time.June, 10)
	f := newFixture(clock(date, 8, 0))

	const workers = 10
	var wg sync.WaitGroup
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			student := string(rune('a' + i))
			_, errs[i] = f.svc.Create(ctx, createReq(student, "r1", date, 10, 0, 11, 0))
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrSlotConflict)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, f.repo.count())
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	date := day(2025, time.June, 10)
	now := clock(date, 8, 0)

	t.Run("Owner cancels twice", func(t *testing.T) {
		f := newFixture(now, activeBooking("b1", "s1", "r1", date, 10, 0, 11, 0))

		require.NoError(t, f.svc.Cancel(ctx, "b1", "s1"))
		assert.Equal(t, 0, f.repo.count())
		assert.Equal(t, []string{EventBookingCancelled}, f.publisher.keys())
		assert.Contains(t, f.cache.invalidated, dayKey("r1", date))

		require.NoError(t, f.svc.Cancel(ctx, "b1", "s1"))
		assert.Equal(t, 0, f.repo.count())
		assert.Len(t, f.publisher.keys(), 1)
	})

	t.Run("Someone else's booking", func(t *testing.T) {
		f := newFixture(now, activeBooking("b1", "s1", "r1", date, 10, 0, 11, 0))

		err := f.svc.Cancel(ctx, "b1", "s2")
		assert.ErrorIs(t, err, ErrPermissionDenied)
		assert.Equal(t, StatusActive, f.repo.status("b1"))
	})

	t.Run("Already completed booking is removed quietly", func(t *testing.T) {
		done := activeBooking("b1", "s1", "r1", date, 9, 0, 10, 0)
		done.Status = StatusCompleted
		f := newFixture(clock(date, 11, 0), done)

		require.NoError(t, f.svc.Cancel(ctx, "b1", "s1"))
		assert.Equal(t, 0, f.repo.count())
		assert.Empty(t, f.publisher.keys())
	})

	t.Run("Cancelled slot becomes free", func(t *testing.T) {
		f := newFixture(now, activeBooking("b1", "s1", "r1", date, 10, 0, 11, 0))
		require.NoError(t, f.svc.Cancel(ctx, "b1", "s1"))

		_, err := f.svc.Create(ctx, createReq("s2", "r1", date, 10, 0, 11, 0))
		assert.NoError(t, err)
	})
}

func TestGetByIDAndListActive(t *testing.T) {
	ctx := context.Background()
	date := day(2025, time.June, 10)
	done := activeBooking("b0", "s1", "r3", date, 8, 0, 9, 0)
	done.Status = StatusCompleted

	f := newFixture(clock(date, 8, 0),
		activeBooking("b2", "s1", "r2", date, 14, 0, 15, 0),
		activeBooking("b1", "s1", "r1", date, 10, 0, 11, 0),
		done,
	)

	b, err := f.svc.GetByID(ctx, "b1", "s1")
	require.NoError(t, err)
	assert.Equal(t, "r1", b.RoomID)

	_, err = f.svc.GetByID(ctx, "b1", "s2")
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = f.svc.GetByID(ctx, "missing", "s1")
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := f.svc.ListActive(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b1", list[0].ID)
	assert.Equal(t, "b2", list[1].ID)
}

func TestSweepAndPurge(t *testing.T) {
	ctx := context.Background()
	date := day(2025, time.June, 10)
	now := clock(date, 12, 0)

	cancelled := activeBooking("c1", "s3", "r3", date, 9, 0, 10, 0)
	cancelled.Status = StatusCancelled

	f := newFixture(now,
		activeBooking("ended", "s1", "r1", date, 9, 0, 10, 0),
		activeBooking("endsNow", "s1", "r2", date, 11, 0, 12, 0),
		activeBooking("future", "s2", "r1", date, 13, 0, 14, 0),
		cancelled,
	)

	n, err := f.svc.SweepCompleted(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "a booking ending exactly now is not yet over")
	assert.Equal(t, StatusCompleted, f.repo.status("ended"))
	assert.Equal(t, StatusActive, f.repo.status("endsNow"))
	assert.Equal(t, StatusActive, f.repo.status("future"))
	assert.Equal(t, []string{EventBookingCompleted}, f.publisher.keys())

	n, err = f.svc.PurgeTerminal(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, f.repo.count())

	n, err = f.svc.PurgeTerminal(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSweepStaleTransition(t *testing.T) {
	ctx := context.Background()
	date := day(2025, time.June, 10)
	now := clock(date, 12, 0)
	ended := activeBooking("ended", "s1", "r1", date, 9, 0, 10, 0)

	f := newFixture(now, ended)

	n, err := f.svc.SweepCompleted(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// A second transition of the same row finds nothing left to move
	assert.ErrorIs(t, f.repo.UpdateStatus(ctx, "ended", StatusCompleted), ErrNotFound)

	// A sweep that still saw the row as ACTIVE neither counts it nor publishes it again
	f.repo.staleAll = []*Booking{ended}
	n, err = f.svc.SweepCompleted(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, []string{EventBookingCompleted}, f.publisher.keys())
	assert.Equal(t, StatusCompleted, f.repo.status("ended"))
}

func TestGetAvailableSlots(t *testing.T) {
	ctx := context.Background()
	date := day(2025, time.June, 10)
	now := clock(date, 9, 10)

	t.Run("Filter skips disabled spaces", func(t *testing.T) {
		f := newFixture(now)

		slots, err := f.svc.GetAvailableSlots(ctx, SlotQuery{Building: "Library", Date: date})
		require.NoError(t, err)
		assert.Len(t, slots, 2*SlotsPerDay)
		for _, s := range slots {
			assert.NotEqual(t, "r9", s.RoomID)
		}
		assert.Equal(t, SlotPast, statusAt(slots, "r1", "09:00"))
		assert.Equal(t, SlotAvailable, statusAt(slots, "r1", "09:30"))
	})

	t.Run("Explicit IDs", func(t *testing.T) {
		f := newFixture(now)

		slots, err := f.svc.GetAvailableSlots(ctx, SlotQuery{SpaceIDs: []string{"r3", "r9"}, Date: date})
		require.NoError(t, err)
		assert.Len(t, slots, SlotsPerDay)

		_, err = f.svc.GetAvailableSlots(ctx, SlotQuery{SpaceIDs: []string{"nope"}, Date: date})
		assert.ErrorIs(t, err, ErrSpaceNotFound)
	})

	t.Run("In use", func(t *testing.T) {
		f := newFixture(now, activeBooking("b1", "s1", "r1", date, 9, 0, 10, 0))

		slots, err := f.svc.GetAvailableSlots(ctx, SlotQuery{SpaceIDs: []string{"r1"}, Date: date, StudentID: "s2"})
		require.NoError(t, err)
		assert.Equal(t, SlotInUse, statusAt(slots, "r1", "09:30"))
	})

	t.Run("Purges terminal bookings first", func(t *testing.T) {
		old := activeBooking("old", "s1", "r1", day(2025, time.June, 9), 9, 0, 10, 0)
		old.Status = StatusCompleted
		f := newFixture(now, old, activeBooking("ended", "s2", "r2", date, 8, 0, 8, 30))

		_, err := f.svc.GetAvailableSlots(ctx, SlotQuery{SpaceIDs: []string{"r1"}, Date: date})
		require.NoError(t, err)
		assert.Equal(t, 0, f.repo.count())
	})

	t.Run("Serves from cache", func(t *testing.T) {
		f := newFixture(now)
		cached := []*Booking{activeBooking("b1", "s1", "r1", date, 15, 0, 16, 0)}
		require.NoError(t, f.cache.Set(ctx, "r1", date, cached))

		slots, err := f.svc.GetAvailableSlots(ctx, SlotQuery{SpaceIDs: []string{"r1"}, Date: date, StudentID: "s1"})
		require.NoError(t, err)
		assert.Equal(t, SlotMine, statusAt(slots, "r1", "15:00"))
	})

	t.Run("Fills cache on miss", func(t *testing.T) {
		f := newFixture(now, activeBooking("b1", "s1", "r1", date, 15, 0, 16, 0))

		_, err := f.svc.GetAvailableSlots(ctx, SlotQuery{SpaceIDs: []string{"r1"}, Date: date})
		require.NoError(t, err)

		got, ok, err := f.cache.Get(ctx, "r1", date)
		require.NoError(t, err)
		require.True(t, ok)
		require.Len(t, got, 1)
		assert.Equal(t, "b1", got[0].ID)
	})

	t.Run("Store failure surfaces", func(t *testing.T) {
		f := newFixture(now)
		f.repo.queryErr = errBoom

		_, err := f.svc.GetAvailableSlots(ctx, SlotQuery{SpaceIDs: []string{"r1"}, Date: date})
		assert.ErrorIs(t, err, ErrStoreUnavailable)
	})
}

func TestGetAvailableDurations(t *testing.T) {
	ctx := context.Background()
	date := day(2025, time.June, 10)
	now := clock(date, 8, 0)

	seed := []*Booking{
		activeBooking("b1", "s1", "r1", date, 10, 0, 11, 0),
		activeBooking("b2", "s1", "r1", date, 12, 30, 13, 0),
	}

	tests := []struct {
		name    string
		room    string
		h, m    int
		want    []int
		wantErr error
	}{
		{name: "free morning", room: "r2", h: 9, want: []int{30, 60, 90, 120}},
		{name: "bounded by next booking", room: "r1", h: 9, want: []int{30, 60}},
		{name: "back to back after booking", room: "r1", h: 11, want: []int{30, 60, 90}},
		{name: "start inside booking", room: "r1", h: 10, m: 30, want: []int{}},
		{name: "bounded by closing", room: "r2", h: 20, want: []int{30, 60}},
		{name: "last slot", room: "r2", h: 20, m: 30, want: []int{30}},
		{name: "at closing", room: "r2", h: 21, want: []int{}},
		{name: "in the past", room: "r2", h: 7, m: 30, want: []int{}},
		{name: "disabled space", room: "r9", h: 9, want: []int{}},
		{name: "missing space", room: "nope", h: 9, wantErr: ErrSpaceNotFound},
		{name: "bad minute", room: "r2", h: 9, m: 60, wantErr: ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(now, seed...)
			got, err := f.svc.GetAvailableDurations(ctx, tt.room, date, tt.h, tt.m)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
