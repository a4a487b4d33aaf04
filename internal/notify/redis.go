package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/edusync/internal/telemetry"
)

type RedisConfig struct {
	Prefix          string
	MaxMessageBytes int
}

type RedisClient interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// Notification is the message sent on the redis channel. Pub/sub carries no headers,
// so the metadata travels next to the payload.
type Notification struct {
	EventType string          `json:"eventType"`
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Redis publishes notifications on the channel "<prefix>:results".
type Redis struct {
	rc       RedisClient
	channel  string
	maxBytes int
	now      func() time.Time
}

func NewRedis(c RedisConfig, rc RedisClient) *Redis {
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = defaultMaxMessageBytes
	}

	return &Redis{
		rc:       rc,
		channel:  Channel(c.Prefix),
		maxBytes: c.MaxMessageBytes,
		now:      time.Now,
	}
}

func Channel(prefix string) string {
	return fmt.Sprintf("%s:results", prefix)
}

func (r *Redis) Publish(ctx context.Context, payload any, eventType string) (err error) {
	defer func() { telemetry.ObserveNotification(eventType, err) }()

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: marshal %s: %w", eventType, err)
	}

	if err := checkSize(eventType, data, r.maxBytes); err != nil {
		return err
	}

	b, err := json.Marshal(Notification{
		EventType: eventType,
		Timestamp: timestamp(r.now()),
		Data:      data,
	})
	if err != nil {
		return fmt.Errorf("notify: marshal %s: %w", eventType, err)
	}

	if err := r.rc.Publish(ctx, r.channel, b).Err(); err != nil {
		return fmt.Errorf("notify: publish %s: %w", eventType, err)
	}

	slog.InfoContext(ctx, fmt.Sprintf("notify: %s sent to %s", eventType, r.channel))
	return nil
}

// Close is a no-op, the redis client is closed by its owner.
func (*Redis) Close() error {
	return nil
}
