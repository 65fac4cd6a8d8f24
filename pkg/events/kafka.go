package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes events to a single topic keyed by aggregate, so all events
// for one item (or order) land on the same partition in order.
// Writes go through a circuit breaker: when the brokers keep failing,
// Publish fails fast with gobreaker.ErrOpenState instead of waiting on them.
type Kafka struct {
	writer  messageWriter
	breaker *gobreaker.CircuitBreaker[struct{}]
}

func NewKafka(topic string, brokers ...string) *Kafka {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}

	return newKafka(w)
}

func newKafka(w messageWriter) *Kafka {
	st := gobreaker.Settings{
		Name:        "kafka-publisher",
		MaxRequests: 1,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker changed state",
				slog.String("name", name), slog.String("from", from.String()), slog.String("to", to.String()))
		},
	}

	return &Kafka{writer: w, breaker: gobreaker.NewCircuitBreaker[struct{}](st)}
}

func (k *Kafka) Publish(ctx context.Context, events ...Event) error {
	if len(events) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		value, err := e.encode()
		if err != nil {
			return fmt.Errorf("can't encode event %s: %w", e.Type, err)
		}

		msgs = append(msgs, kafka.Message{
			Key:     []byte(e.Key),
			Value:   value,
			Time:    e.OccurredAt,
			Headers: []kafka.Header{{Key: "event_type", Value: []byte(e.Type)}},
		})
	}

	_, err := k.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, k.writer.WriteMessages(ctx, msgs...)
	})
	if err != nil {
		return fmt.Errorf("can't write %d events to kafka: %w", len(msgs), err)
	}

	return nil
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}
