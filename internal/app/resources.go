package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nekogravitycat/studyspace-booking/internal/pkg/mq"
)

// EventPublisher is a booking.EventPublisher that owns a broker connection.
type EventPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
	Close() error
}

// OpenRedis connects to Redis. An empty addr disables caching and returns nil.
func OpenRedis(ctx context.Context, addr string) (*redis.Client, error) {
	if addr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// OpenPublisher connects to RabbitMQ. An empty url disables events.
func OpenPublisher(url, exchange string) (EventPublisher, error) {
	if url == "" {
		return mq.NopPublisher{}, nil
	}
	publisher, err := mq.NewPublisher(url, exchange)
	if err != nil {
		return nil, err
	}
	return publisher, nil
}
