// Package events publishes domain events for downstream consumers such as
// billing and analytics.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// Event types emitted by the channeling core.
const (
	AppointmentCreated       = "appointment.created"
	AppointmentStatusChanged = "appointment.status_changed"
	PaymentStatusChanged     = "appointment.payment_changed"
	AuditRecorded            = "audit.recorded"
)

// Event is the envelope written to every topic.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	TenantID   string          `json:"tenant_id"`
	Key        string          `json:"key"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// New wraps payload in an envelope. key selects the Kafka partition so all
// events for one entity stay ordered.
func New(eventType, tenantID, key string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		TenantID:   tenantID,
		Key:        key,
		OccurredAt: time.Now().UTC(),
		Payload:    raw,
	}, nil
}

// Publisher sends events to a named topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, events ...Event) error
	Close() error
}

// KafkaPublisher writes events with a single kafka.Writer; the topic is set
// per message.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic string, events ...Event) error {
	msgs, err := toMessages(topic, events)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write to %s: %w", topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func toMessages(topic string, events []Event) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(events))
	for _, evt := range events {
		value, err := json.Marshal(evt)
		if err != nil {
			return nil, fmt.Errorf("marshal event %s: %w", evt.ID, err)
		}
		msgs = append(msgs, kafka.Message{
			Topic: topic,
			Key:   []byte(evt.Key),
			Value: value,
			Time:  evt.OccurredAt,
			Headers: []kafka.Header{
				{Key: "event-type", Value: []byte(evt.Type)},
				{Key: "tenant-id", Value: []byte(evt.TenantID)},
			},
		})
	}
	return msgs, nil
}

// LogPublisher writes events to the log. It is used when no brokers are
// configured.
type LogPublisher struct {
	logger zerolog.Logger
}

func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, topic string, events ...Event) error {
	for _, evt := range events {
		p.logger.Info().
			Str("topic", topic).
			Str("event_id", evt.ID).
			Str("event_type", evt.Type).
			Str("tenant_id", evt.TenantID).
			Str("key", evt.Key).
			RawJSON("payload", evt.Payload).
			Msg("event")
	}
	return nil
}

func (p *LogPublisher) Close() error { return nil }
