// internal/events/kafka.go
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tgggt66uhgg/stk-push/config"
	"github.com/tgggt66uhgg/stk-push/internal/metrics"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes receipt events keyed by reference, so all events of one
// receipt land on the same partition in order. With an async writer Publish
// only enqueues; delivery failures surface through the writer's Completion hook.
type KafkaPublisher struct {
	writer messageWriter
	logger *zap.Logger
}

func NewKafkaWriter(cfg config.KafkaConfig, logger *zap.Logger) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		MaxAttempts:  3,
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		Compression:  kafka.Snappy,
		Logger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Debug(fmt.Sprintf(msg, args...))
		}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Warn(fmt.Sprintf(msg, args...))
		}),
		Completion: func(messages []kafka.Message, err error) {
			if err == nil {
				return
			}
			metrics.EventPublishErrors.Add(float64(len(messages)))
			logger.Error("async kafka write failed", zap.Int("count", len(messages)), zap.Error(err))
		},
	}
}

func NewKafkaPublisher(writer messageWriter, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, logger: logger}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev ReceiptEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(ev.Reference),
		Value: data,
		Time:  ev.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
			{Key: "event_id", Value: []byte(ev.EventID)},
		},
	}

	start := time.Now()
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("failed to publish receipt event",
			zap.String("reference", ev.Reference),
			zap.String("type", string(ev.Type)),
			zap.Error(err))
		return fmt.Errorf("publish event: %w", err)
	}

	p.logger.Debug("receipt event published",
		zap.String("reference", ev.Reference),
		zap.String("type", string(ev.Type)),
		zap.Duration("duration", time.Since(start)))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
