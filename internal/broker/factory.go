package broker

import (
	"msgmon/internal/config"
	"msgmon/internal/constants"
	"msgmon/internal/logger"
	"msgmon/pkg/errors"
)

// NewEventPublisher returns nil when history publishing is disabled.
func NewEventPublisher(cfg *config.Config, log logger.Logger) (Producer, error) {
	if !cfg.History.Publish.Enabled {
		return nil, nil
	}
	if len(cfg.Broker.Kafka.Brokers) == 0 {
		return nil, errors.ErrValidation.WithMessage("history publishing requires broker.kafka.brokers")
	}
	return NewKafkaProducer(cfg.Broker.Kafka, cfg.History.Publish.Topic, log), nil
}

// NewEventConsumer tails the history topic, falling back to the default
// topic when publishing is not configured.
func NewEventConsumer(cfg *config.Config, log logger.Logger) (Consumer, error) {
	if len(cfg.Broker.Kafka.Brokers) == 0 {
		return nil, errors.ErrValidation.WithMessage("tailing history requires broker.kafka.brokers")
	}
	topic := cfg.History.Publish.Topic
	if topic == "" {
		topic = constants.DefaultHistoryTopic
	}
	return NewKafkaConsumer(cfg.Broker.Kafka, topic, log), nil
}
