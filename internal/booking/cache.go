package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DayCache holds the ACTIVE bookings of one room on one calendar day for the read path.
// Entries may be stale for at most the configured TTL; writers invalidate the keys they touch.
type DayCache interface {
	Get(ctx context.Context, roomID string, date time.Time) ([]*Booking, bool, error)
	Set(ctx context.Context, roomID string, date time.Time, bookings []*Booking) error
	Invalidate(ctx context.Context, roomID string, date time.Time) error
}

type cachedBooking struct {
	ID          string    `json:"id"`
	StudentID   string    `json:"student_id"`
	RoomID      string    `json:"room_id"`
	Building    string    `json:"building"`
	Campus      string    `json:"campus"`
	Level       string    `json:"level"`
	BookingDate string    `json:"booking_date"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

const dateLayout = "2006-01-02"

type RedisDayCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDayCache(client *redis.Client, ttl time.Duration) *RedisDayCache {
	return &RedisDayCache{client: client, ttl: ttl}
}

func dayKey(roomID string, date time.Time) string {
	return fmt.Sprintf("bookings:%s:%s", roomID, date.Format(dateLayout))
}

func (c *RedisDayCache) Get(ctx context.Context, roomID string, date time.Time) ([]*Booking, bool, error) {
	raw, err := c.client.Get(ctx, dayKey(roomID, date)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var entries []cachedBooking
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, false, fmt.Errorf("decode cached bookings failed: %w", err)
	}

	bookings := make([]*Booking, 0, len(entries))
	for _, e := range entries {
		day, err := time.Parse(dateLayout, e.BookingDate)
		if err != nil {
			return nil, false, fmt.Errorf("decode cached booking date failed: %w", err)
		}
		bookings = append(bookings, &Booking{
			ID:          e.ID,
			StudentID:   e.StudentID,
			RoomID:      e.RoomID,
			Building:    e.Building,
			Campus:      e.Campus,
			Level:       e.Level,
			BookingDate: day,
			StartTime:   e.StartTime,
			EndTime:     e.EndTime,
			Status:      e.Status,
			CreatedAt:   e.CreatedAt,
		})
	}
	return bookings, true, nil
}

func (c *RedisDayCache) Set(ctx context.Context, roomID string, date time.Time, bookings []*Booking) error {
	entries := make([]cachedBooking, 0, len(bookings))
	for _, b := range bookings {
		entries = append(entries, cachedBooking{
			ID:          b.ID,
			StudentID:   b.StudentID,
			RoomID:      b.RoomID,
			Building:    b.Building,
			Campus:      b.Campus,
			Level:       b.Level,
			BookingDate: b.BookingDate.Format(dateLayout),
			StartTime:   b.StartTime,
			EndTime:     b.EndTime,
			Status:      b.Status,
			CreatedAt:   b.CreatedAt,
		})
	}

	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode bookings failed: %w", err)
	}
	if err := c.client.Set(ctx, dayKey(roomID, date), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *RedisDayCache) Invalidate(ctx context.Context, roomID string, date time.Time) error {
	if err := c.client.Del(ctx, dayKey(roomID, date)).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

// NopDayCache never hits. Used when Redis is not configured.
type NopDayCache struct{}

func (NopDayCache) Get(context.Context, string, time.Time) ([]*Booking, bool, error) {
	return nil, false, nil
}

func (NopDayCache) Set(context.Context, string, time.Time, []*Booking) error { return nil }

func (NopDayCache) Invalidate(context.Context, string, time.Time) error { return nil }
