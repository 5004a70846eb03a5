package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"wellness-payments/internal/domain/ports/adapter"
)

var _ adapter.EventPublisher = (*KafkaPublisher)(nil)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes payment events keyed by ref_code so one payment's events stay ordered
// within a partition.
type KafkaPublisher struct {
	writer  messageWriter
	topic   string
	timeout time.Duration
	log     *zerolog.Logger
}

func NewKafkaPublisher(brokers []string, topic string, logger *zerolog.Logger) *KafkaPublisher {
	l := logger.With().Str("component", "KafkaPublisher").Logger()
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: 5 * time.Second,
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		Logger:       kafka.LoggerFunc(func(msg string, args ...interface{}) { l.Debug().Msgf(msg, args...) }),
		ErrorLogger:  kafka.LoggerFunc(func(msg string, args ...interface{}) { l.Error().Msgf(msg, args...) }),
	}
	return &KafkaPublisher{writer: w, topic: topic, timeout: w.WriteTimeout, log: &l}
}

func (p *KafkaPublisher) PublishPaymentStatusChanged(ctx context.Context, ev adapter.PaymentStatusChanged) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode payment event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(ev.RefCode),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("PaymentStatusChanged")},
		},
	}

	wctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.writer.WriteMessages(wctx, msg); err != nil {
		return fmt.Errorf("failed to produce message to Kafka: %w", err)
	}
	p.log.Debug().Str("topic", p.topic).Str("ref_code", ev.RefCode).Msg("payment event published")
	return nil
}

func (p *KafkaPublisher) Close() error {
	if p.writer == nil {
		return nil
	}
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka producer: %w", err)
	}
	return nil
}
