package kafka

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/RxDossier/internal/config"
	"github.com/turtacn/RxDossier/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RxDossier/pkg/errors"
)

// WriterInterface abstracts kafka.Writer for testing.
type WriterInterface interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes enveloped events. Messages are keyed so that all
// events for one document land on the same partition.
type Producer struct {
	writer WriterInterface
	source string
	logger logging.Logger

	closed    atomic.Bool
	published atomic.Int64
	failed    atomic.Int64
}

// NewProducer builds a producer on a real kafka.Writer.
func NewProducer(cfg config.KafkaConfig, source string, logger logging.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "kafka brokers required")
	}
	retries := cfg.ProducerRetries
	if retries <= 0 {
		retries = 3
	}
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 50 * time.Millisecond
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  retries,
		BatchTimeout: batchTimeout,
	}
	return NewProducerWithWriter(writer, source, logger), nil
}

// NewProducerWithWriter injects the writer, used by tests.
func NewProducerWithWriter(writer WriterInterface, source string, logger logging.Logger) *Producer {
	return &Producer{
		writer: writer,
		source: source,
		logger: logger.Named("kafka_producer"),
	}
}

// Publish wraps the payload in an envelope and writes it to topic.
func (p *Producer) Publish(ctx context.Context, topic, key, eventType string, payload interface{}) error {
	if p.closed.Load() {
		return errors.New(errors.ErrCodeInternal, "producer closed")
	}

	envelope, err := NewEnvelope(eventType, p.source, payload)
	if err != nil {
		return err
	}
	value, err := json.Marshal(envelope)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode event envelope")
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Time:  envelope.Timestamp,
	})
	if err != nil {
		p.failed.Add(1)
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to publish event").
			WithDetail("topic=" + topic)
	}

	p.published.Add(1)
	p.logger.Debug("event published",
		logging.String("topic", topic),
		logging.String("event_type", eventType),
		logging.String("event_id", envelope.EventID),
	)
	return nil
}

// Published reports how many events were written successfully.
func (p *Producer) Published() int64 { return p.published.Load() }

// Failed reports how many writes errored.
func (p *Producer) Failed() int64 { return p.failed.Load() }

// Close flushes and shuts the writer down.
func (p *Producer) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	p.logger.Info("kafka producer closed", logging.Int64("published", p.published.Load()))
	return p.writer.Close()
}
