package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"msgmon/internal/config"
	"msgmon/internal/constants"
	"msgmon/internal/history"
	"msgmon/internal/logger"
	"msgmon/pkg/errors"
	"msgmon/pkg/jsoncodec"
	"msgmon/pkg/logging"
	"msgmon/pkg/metrics"
	"msgmon/pkg/retry"
	"msgmon/pkg/tracing"
)

const (
	serviceName = "msgmon"
	tracerName  = "msgmon-broker"
)

func EncodeEvent(event history.Event) ([]byte, error) {
	body, err := jsoncodec.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal history event: %w", err)
	}
	return body, nil
}

func DecodeEvent(body []byte) (history.Event, error) {
	var event history.Event
	if err := jsoncodec.Unmarshal(body, &event); err != nil {
		return history.Event{}, fmt.Errorf("failed to unmarshal history event: %w", err)
	}
	if event.Kind == "" {
		return history.Event{}, errors.ErrValidation.WithMessage("history event without kind")
	}
	return event, nil
}

type KafkaProducer struct {
	writer *kafka.Writer
	topic  string
	logger logger.Logger
}

func NewKafkaProducer(cfg config.KafkaConfig, topic string, log logger.Logger) *KafkaProducer {
	if log == nil {
		log = logger.NopLogger()
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           constants.KafkaBatchTimeout,
		WriteTimeout:           constants.KafkaWriteTimeout,
		AllowAutoTopicCreation: true,
	}
	return &KafkaProducer{writer: w, topic: topic, logger: log}
}

// PublishEvent writes event keyed by Event.Key so attempts of one run land on
// the same partition.
func (p *KafkaProducer) PublishEvent(ctx context.Context, event history.Event) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	body, err := EncodeEvent(event)
	if err != nil {
		return err
	}

	
	start := time.Now()
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(event.Key()),
		Value:   body,
		Headers: tracing.KafkaHeaders(ctx),
		Time:    event.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}

	metrics.ObserveKafkaWriteDuration(serviceName, p.topic, time.Since(start))
	metrics.IncKafkaMessagesWritten(serviceName, p.topic)
	metrics.ObserveKafkaMessageSize(serviceName, p.topic, "out", len(body))
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

type KafkaConsumer struct {
	cfg    config.KafkaConfig
	topic  string
	reader *kafka.Reader
	logger logger.Logger
}

// NewKafkaConsumer reads topic with the configured group. Without a group the
// reader starts at the newest offset and commits nothing.
func NewKafkaConsumer(cfg config.KafkaConfig, topic string, log logger.Logger) *KafkaConsumer {
	if log == nil {
		log = logger.NopLogger()
	}
	rc := kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  500 * time.Millisecond,
	}
	if cfg.GroupID == "" {
		rc.StartOffset = kafka.LastOffset
	}
	return &KafkaConsumer{cfg: cfg, topic: topic, reader: kafka.NewReader(rc), logger: log}
}

// Consume blocks until ctx is done. Events that keep failing after retries
// are logged and committed.
func (c *KafkaConsumer) Consume(ctx context.Context, handler HandlerFunc) error {
	c.logger.InfowCtx(ctx, "Started consuming",
		"topic", c.topic,
		"brokers", c.cfg.Brokers,
		"group_id", c.cfg.GroupID,
	)

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.InfowCtx(ctx, "Stopped consuming", "topic", c.topic, "reason", "context canceled")
				return ctx.Err()
			}
			c.logger.ErrorwCtx(ctx, "Error fetching kafka message", "error", err, "topic", c.topic)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		metrics.IncKafkaMessagesRead(serviceName, c.topic)
		metrics.ObserveKafkaMessageSize(serviceName, c.topic, "in", len(m.Value))
		c.handle(ctx, m, handler)
		c.commit(ctx, m)
	}
}

func (c *KafkaConsumer) handle(ctx context.Context, m kafka.Message, handler HandlerFunc) {
	event, err := DecodeEvent(m.Value)
	if err != nil {
		c.logger.ErrorwCtx(ctx, "Failed to decode history event", "error", err, "topic", c.topic, "offset", m.Offset)
		return
	}

	msgCtx, span := tracing.StartKafkaSpan(ctx, tracerName, c.topic, m.Headers)
	defer span.End()
	if event.Message != nil {
		msgCtx = logging.WithMessageID(msgCtx, event.Message.ID)
		msgCtx = logging.WithRunID(msgCtx, event.Message.RunID)
	}

	if err := c.processWithRetry(msgCtx, event, handler); err != nil {
		c.logger.ErrorwCtx(msgCtx, "Failed to process history event after retries",
			"error", err,
			"kind", event.Kind,
			"topic", c.topic,
		)
	}
}

func (c *KafkaConsumer) commit(ctx context.Context, m kafka.Message) {
	if c.cfg.GroupID == "" {
		return
	}
	if err := c.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
		c.logger.ErrorwCtx(ctx, "Failed to commit message", "error", err, "topic", c.topic)
	}
}

func (c *KafkaConsumer) processWithRetry(ctx context.Context, event history.Event, handler HandlerFunc) error {
	policy := retry.FromConfig(c.cfg.Retry)
	return retry.Do(ctx, policy, func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = errors.FromPanic(r)
				c.logger.ErrorwCtx(ctx, "Panic recovered during event processing", "error", err, "topic", c.topic)
			}
		}()
		return handler(ctx, event)
	}, func(attempt int, err error, nextDelay time.Duration) {
		metrics.IncRetryAttempt("kafka_consume")
		c.logger.WarnwCtx(ctx, "Retrying event processing",
			"attempt", attempt,
			"max_attempts", policy.MaxAttempts,
			"next_delay", nextDelay,
			"error", err,
		)
	})
}

func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}
