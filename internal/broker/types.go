// Package broker carries history events over Kafka.
package broker

import (
	"context"

	"msgmon/internal/history"
)

type Producer interface {
	history.EventPublisher
	Close() error
}

type Consumer interface {
	Consume(ctx context.Context, handler HandlerFunc) error
	Close() error
}

type HandlerFunc func(ctx context.Context, event history.Event) error
