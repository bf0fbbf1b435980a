package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// PaymentEvent is published after a payment reaches a new status.
type PaymentEvent struct {
	EventType  string    `json:"event_type"`
	PaymentID  uuid.UUID `json:"payment_id"`
	Reference  string    `json:"reference"`
	UserID     uuid.UUID `json:"user_id"`
	Type       string    `json:"type"`
	Status     string    `json:"status"`
	Amount     string    `json:"amount"`
	Asset      string    `json:"asset"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewPaymentEvent fills EventType from the status, e.g. payment.completed.
func NewPaymentEvent(e PaymentEvent) PaymentEvent {
	e.EventType = "payment." + strings.ToLower(e.Status)
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	return e
}

type Publisher interface {
	PublishPayment(ctx context.Context, event PaymentEvent) error
	Close() error
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(cfg KafkaConfig) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  3,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		Logger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			log.Debug().Str("component", "kafka").Msg(fmt.Sprintf(msg, args...))
		}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			log.Warn().Str("component", "kafka").Msg(fmt.Sprintf(msg, args...))
		}),
	}
	return &KafkaPublisher{writer: writer}
}

// PublishPayment keys messages by reference so a payment's events stay ordered.
func (p *KafkaPublisher) PublishPayment(ctx context.Context, event PaymentEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal payment event: %w", err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Reference),
		Value: body,
		Time:  event.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("publish %s for %s: %w", event.EventType, event.Reference, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher is used when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishPayment(ctx context.Context, event PaymentEvent) error { return nil }
func (NoopPublisher) Close() error                                                 { return nil }

// New returns a Kafka publisher when brokers are set.
func New(cfg KafkaConfig) Publisher {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		log.Info().Msg("Kafka not configured, settlement events disabled")
		return NoopPublisher{}
	}
	log.Info().Strs("brokers", cfg.Brokers).Str("topic", cfg.Topic).Msg("Kafka publisher initialized")
	return NewKafkaPublisher(cfg)
}
