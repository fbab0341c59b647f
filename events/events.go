// Package events publishes model life-cycle events so that other systems can
// react to a retrain or a forecast without polling the bundle store.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// Kind names an event.
type Kind string

const (
	ModelTrained     Kind = "model.trained"
	TrainingFailed   Kind = "model.training_failed"
	ModelExtended    Kind = "model.extended"
	ForecastComputed Kind = "forecast.computed"
)

// Event is one published message. Zero fields are omitted.
type Event struct {
	Kind    Kind      `json:"kind"`
	Outlet  string    `json:"outlet"`
	RunID   string    `json:"run_id,omitempty"`
	Order   string    `json:"order,omitempty"`
	AIC     float64   `json:"aic,omitempty"`
	Quality string    `json:"quality,omitempty"`
	Weeks   int       `json:"weeks,omitempty"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

// Publisher sends events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                          { return nil }

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON to a Kafka topic, keyed by outlet so
// that one outlet's events stay ordered.
type KafkaPublisher struct {
	Writer MessageWriter
	Logger zerolog.Logger
}

// NewKafkaPublisher creates a publisher writing to topic on brokers.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		Writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		},
		Logger: zerolog.Nop(),
	}
}

// Publish writes e, stamping it with the current time when At is zero.
func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("events: encode %s: %w", e.Kind, err)
	}
	if err := p.Writer.WriteMessages(ctx, kafka.Message{Key: []byte(e.Outlet), Value: b}); err != nil {
		return fmt.Errorf("events: publish %s: %w", e.Kind, err)
	}
	p.Logger.Debug().Str("kind", string(e.Kind)).Str("outlet", e.Outlet).Msg("event published")
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.Writer.Close()
}
