// Package notify sends result notifications to an external event stream.
//
// A Publisher holds one long-lived client for the whole process and is safe for concurrent use.
// Delivery is best-effort: each Publish call makes a single send attempt and reports any failure
// to the caller, it never retries.
package notify

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DriverKafka = "kafka"
	DriverRedis = "redis"
	DriverNone  = "none"
)

// Metadata attached to every notification.
const (
	HeaderEventType = "EventType"
	HeaderTimestamp = "timestamp"
)

const defaultMaxMessageBytes = 1024 * 1024

// ErrMessageTooLarge is returned when the encoded payload exceeds the configured message size.
var ErrMessageTooLarge = stderrors.New("message too large")

// Publisher sends a payload tagged with an event type.
type Publisher interface {
	Publish(ctx context.Context, payload any, eventType string) error
	Close() error
}

// Discard drops every notification.
type Discard struct{}

func (Discard) Publish(context.Context, any, string) error { return nil }

func (Discard) Close() error { return nil }

type Config struct {
	Driver string
	Kafka  KafkaConfig
	Redis  RedisConfig
}

// New creates the publisher selected by c.Driver. The Redis client is only used by the redis driver.
func New(c Config, rc RedisClient) (Publisher, error) {
	switch c.Driver {
	case DriverKafka:
		return NewKafka(c.Kafka)
	case DriverRedis:
		if rc == nil {
			return nil, fmt.Errorf("notify: redis driver requires a redis client")
		}
		return NewRedis(c.Redis, rc), nil
	case DriverNone, "":
		slog.Warn("notify: notifications are disabled")
		return Discard{}, nil
	default:
		return nil, fmt.Errorf("notify: unsupported driver %q", c.Driver)
	}
}

var _ RedisClient = (redis.UniversalClient)(nil)

func timestamp(now time.Time) string {
	return now.UTC().Format(time.RFC3339Nano)
}

func checkSize(eventType string, value []byte, maxBytes int) error {
	if maxBytes > 0 && len(value) > maxBytes {
		return fmt.Errorf("notify: %s payload is %d bytes, limit is %d: %w", eventType, len(value), maxBytes, ErrMessageTooLarge)
	}

	return nil
}
