package notify

import (
	"context"
	"crypto/tls"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"

	"github.com/victornm/edusync/internal/telemetry"
)

const defaultWriteTimeout = 10 * time.Second

type KafkaConfig struct {
	Brokers []string
	Topic   string
	// RequiredAcks follows kafka semantics: -1 all replicas, 1 leader only, 0 none.
	RequiredAcks    int
	MaxMessageBytes int
	WriteTimeout    time.Duration

	// Username and Password enable SASL/PLAIN, e.g. "$ConnectionString" and the
	// connection string of an Azure Event Hubs namespace.
	Username string
	Password string
	TLS      bool
}

type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes notifications as kafka messages whose headers carry the event metadata.
type Kafka struct {
	w        kafkaWriter
	topic    string
	maxBytes int
	now      func() time.Time
}

func NewKafka(c KafkaConfig) (*Kafka, error) {
	if strings.TrimSpace(c.Topic) == "" {
		return nil, fmt.Errorf("notify: kafka topic must not be empty")
	}
	if len(c.Brokers) == 0 {
		return nil, fmt.Errorf("notify: at least one kafka broker is required")
	}

	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = defaultMaxMessageBytes
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}

	transport := &kafka.Transport{}
	if c.Username != "" {
		transport.SASL = plain.Mechanism{
			Username: c.Username,
			Password: c.Password,
		}
	}
	if c.TLS {
		transport.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(c.Brokers...),
		Topic:        c.Topic,
		Balancer:     &kafka.RoundRobin{},
		MaxAttempts:  1,
		BatchSize:    1,
		BatchBytes:   int64(c.MaxMessageBytes),
		WriteTimeout: c.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(c.RequiredAcks),
		Transport:    transport,
	}

	slog.Info(fmt.Sprintf("notify: kafka publisher ready, topic %s", c.Topic), "brokers", c.Brokers)
	return newKafkaWithWriter(w, c.Topic, c.MaxMessageBytes), nil
}

func newKafkaWithWriter(w kafkaWriter, topic string, maxBytes int) *Kafka {
	return &Kafka{
		w:        w,
		topic:    topic,
		maxBytes: maxBytes,
		now:      time.Now,
	}
}

// Publish encodes payload as JSON and writes it in a single attempt.
func (k *Kafka) Publish(ctx context.Context, payload any, eventType string) (err error) {
	defer func() { telemetry.ObserveNotification(eventType, err) }()

	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: marshal %s: %w", eventType, err)
	}

	if err := checkSize(eventType, value, k.maxBytes); err != nil {
		return err
	}

	msg := kafka.Message{
		Value: value,
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(eventType)},
			{Key: HeaderTimestamp, Value: []byte(timestamp(k.now()))},
		},
	}

	if err := k.w.WriteMessages(ctx, msg); err != nil {
		var tooLarge kafka.MessageTooLargeError
		if stderrors.As(err, &tooLarge) {
			return fmt.Errorf("notify: write %s: %w", eventType, ErrMessageTooLarge)
		}
		return fmt.Errorf("notify: write %s: %w", eventType, err)
	}

	slog.InfoContext(ctx, fmt.Sprintf("notify: %s sent to %s", eventType, k.topic))
	return nil
}

func (k *Kafka) Close() error {
	return k.w.Close()
}
