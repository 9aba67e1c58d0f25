package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/RxDossier/internal/config"
	"github.com/turtacn/RxDossier/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RxDossier/pkg/errors"
)

// Handler processes one decoded event. A non-nil error triggers the
// retry-then-dead-letter policy.
type Handler func(ctx context.Context, envelope EventEnvelope) error

// DeadLetterPublisher receives messages whose retries are exhausted.
type DeadLetterPublisher interface {
	Publish(ctx context.Context, topic, key, eventType string, payload interface{}) error
}

// ReaderInterface abstracts kafka.Reader for testing.
type ReaderInterface interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ConsumerOptions tune the retry and dead-letter behavior.
type ConsumerOptions struct {
	MaxRetries      int
	RetryBackoff    time.Duration
	HandlerTimeout  time.Duration
	DeadLetterTopic string
}

func (o *ConsumerOptions) applyDefaults() {
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = time.Second
	}
	if o.HandlerTimeout <= 0 {
		o.HandlerTimeout = 5 * time.Minute
	}
}

// Consumer reads enveloped events from a consumer group and dispatches
// them to a handler. Offsets are committed only after the handler
// succeeds or the message is dead-lettered, so a crash mid-job replays
// the job rather than losing it.
type Consumer struct {
	reader  ReaderInterface
	handler Handler
	dlq     DeadLetterPublisher
	opts    ConsumerOptions
	logger  logging.Logger

	running      atomic.Bool
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	processed    atomic.Int64
	deadLettered atomic.Int64
}

// NewConsumer builds a consumer-group reader for topic.
func NewConsumer(cfg config.KafkaConfig, topic string, handler Handler, dlq DeadLetterPublisher, opts ConsumerOptions, logger logging.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "kafka brokers required")
	}
	if cfg.GroupID == "" {
		return nil, errors.New(errors.ErrCodeValidation, "kafka group_id required")
	}

	startOffset := kafka.FirstOffset
	if cfg.AutoOffsetReset == "latest" {
		startOffset = kafka.LastOffset
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       topic,
		StartOffset: startOffset,
		MinBytes:    1,
		MaxBytes:    10 * 1024 * 1024,
	})
	return NewConsumerWithReader(reader, handler, dlq, opts, logger), nil
}

// NewConsumerWithReader injects the reader, used by tests.
func NewConsumerWithReader(reader ReaderInterface, handler Handler, dlq DeadLetterPublisher, opts ConsumerOptions, logger logging.Logger) *Consumer {
	opts.applyDefaults()
	return &Consumer{
		reader:  reader,
		handler: handler,
		dlq:     dlq,
		opts:    opts,
		logger:  logger.Named("kafka_consumer"),
	}
}

// Start launches the consume loop in the background.
func (c *Consumer) Start(ctx context.Context) error {
	if c.running.Swap(true) {
		return errors.New(errors.ErrCodeConflict, "consumer already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.wg.Add(1)
	go c.consumeLoop(ctx)
	c.logger.Info("kafka consumer started")
	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	defer c.wg.Done()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("failed to fetch message", logging.Err(err))
			time.Sleep(time.Second)
			continue
		}

		c.handleMessage(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("failed to commit offset", logging.Err(err))
		}
	}
}

// handleMessage decodes, retries the handler, and dead-letters on
// exhaustion. It never blocks consumption on a poison message.
func (c *Consumer) handleMessage(ctx context.Context, msg kafka.Message) {
	var envelope EventEnvelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		c.logger.Error("dropping undecodable message",
			logging.String("topic", msg.Topic),
			logging.Int64("offset", msg.Offset),
			logging.Err(err),
		)
		c.sendToDeadLetter(ctx, msg, err)
		return
	}

	var err error
	backoff := c.opts.RetryBackoff
	for attempt := 0; attempt < c.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.opts.HandlerTimeout)
		err = c.handler(attemptCtx, envelope)
		cancel()
		if err == nil {
			c.processed.Add(1)
			return
		}
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("handler failed",
			logging.String("event_id", envelope.EventID),
			logging.Int("attempt", attempt+1),
			logging.Err(err),
		)
	}

	c.logger.Error("handler retries exhausted, dead-lettering",
		logging.String("event_id", envelope.EventID),
		logging.Err(err),
	)
	c.sendToDeadLetter(ctx, msg, err)
}

func (c *Consumer) sendToDeadLetter(ctx context.Context, msg kafka.Message, cause error) {
	if c.dlq == nil || c.opts.DeadLetterTopic == "" {
		return
	}
	payload := map[string]interface{}{
		"original_topic": msg.Topic,
		"offset":         msg.Offset,
		"error":          cause.Error(),
		"message":        string(msg.Value),
	}
	if err := c.dlq.Publish(ctx, c.opts.DeadLetterTopic, string(msg.Key), "analysis.dead_letter", payload); err != nil {
		c.logger.Error("failed to publish to dead-letter topic", logging.Err(err))
		return
	}
	c.deadLettered.Add(1)
}

// Processed reports how many messages were handled successfully.
func (c *Consumer) Processed() int64 { return c.processed.Load() }

// DeadLettered reports how many messages were parked on the DLQ.
func (c *Consumer) DeadLettered() int64 { return c.deadLettered.Load() }

// Close stops the loop and closes the reader.
func (c *Consumer) Close() error {
	if !c.running.CompareAndSwap(true, false) {
		return nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	c.logger.Info("kafka consumer closed", logging.Int64("processed", c.processed.Load()))
	return c.reader.Close()
}
