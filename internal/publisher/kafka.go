// Package publisher forwards resolved rates to external sinks. Each sink's
// Publish method matches the hub callback signature.
package publisher

import (
	"context"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"ratefeed/internal/rate"
)

// RateEvent is the message published for every resolved rate.
type RateEvent struct {
	EventID    string    `json:"event_id"`
	Base       string    `json:"base"`
	Target     string    `json:"target"`
	Rate       float64   `json:"rate"`
	Source     string    `json:"source"`
	Fallback   bool      `json:"fallback"`
	ObservedAt time.Time `json:"observed_at"`
}

// NewRateEvent builds the event for r.
func NewRateEvent(r rate.ConversionRate) RateEvent {
	return RateEvent{
		EventID:    uuid.New().String(),
		Base:       r.From,
		Target:     r.To,
		Rate:       r.Rate,
		Source:     r.Source,
		Fallback:   r.IsFallback(),
		ObservedAt: r.ObservedAt,
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes rate events keyed by currency pair, so one pair's
// events stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher creates a KafkaPublisher for topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 5 * time.Second,
			RequiredAcks: kafka.RequireOne,
		},
	}
}

// Publish sends one event for r.
func (k *KafkaPublisher) Publish(ctx context.Context, r rate.ConversionRate) error {
	msg, err := json.Marshal(NewRateEvent(r))
	if err != nil {
		return err
	}

	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(r.From + "/" + r.To),
		Value: msg,
		Time:  time.Now(),
	})
}

// Close flushes pending messages and closes the writer.
func (k *KafkaPublisher) Close() error {
	return k.writer.Close()
}
