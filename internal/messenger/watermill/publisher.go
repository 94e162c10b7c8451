package watermill

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"msgmon/internal/history"
	"msgmon/internal/messenger"
	"msgmon/pkg/ids"
	"msgmon/pkg/jsoncodec"
	"msgmon/pkg/tracing"
)

// NewMessage builds a watermill message carrying v as JSON, its message type
// and the given stamps.
func NewMessage(v any, stamps ...messenger.Stamp) (*message.Message, error) {
	payload, err := jsoncodec.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message payload: %w", err)
	}

	msg := message.NewMessage(ids.NewULID(), payload)
	msg.Metadata.Set(MetadataMessageType, messenger.TypeOf(v))
	if err := Encode(messenger.NewEnvelope(v, stamps...), msg.Metadata); err != nil {
		return nil, err
	}
	return msg, nil
}

type monitoredPublisher struct {
	message.Publisher
	listener *history.Listener
}

// PublisherDecorator stamps every outgoing message with a fresh monitor
// stamp and the caller's trace context.
func PublisherDecorator(listener *history.Listener) message.PublisherDecorator {
	return func(pub message.Publisher) (message.Publisher, error) {
		return &monitoredPublisher{Publisher: pub, listener: listener}, nil
	}
}

func (p *monitoredPublisher) Publish(topic string, msgs ...*message.Message) error {
	for _, msg := range msgs {
		env, err := Decode(msg)
		if err != nil {
			return fmt.Errorf("failed to decode message %s: %w", msg.UUID, err)
		}
		if err := Encode(p.listener.OnDispatch(env), msg.Metadata); err != nil {
			return err
		}
		tracing.InjectMetadata(msg.Context(), msg.Metadata)
	}
	return p.Publisher.Publish(topic, msgs...)
}

// DecodePayload unmarshals the JSON payload written by NewMessage.
func DecodePayload(msg *message.Message, v any) error {
	if err := jsoncodec.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("failed to unmarshal message %s payload: %w", msg.UUID, err)
	}
	return nil
}
