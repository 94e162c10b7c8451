// Package transport exposes read-only views over the queues workers consume.
package transport

import (
	"context"
	"time"

	"msgmon/internal/history"
	"msgmon/internal/messenger"
)

// Transport is a named queue the monitor can inspect. What it supports
// beyond its kind is discovered through MessageCounter and MessageLister.
type Transport interface {
	Kind() string
}

// MessageCounter reports how many messages are waiting.
type MessageCounter interface {
	Count(ctx context.Context) (int, error)
}

// MessageLister returns up to limit waiting messages, newest first. A
// limit <= 0 means the default page size.
type MessageLister interface {
	List(ctx context.Context, limit int) ([]QueuedMessage, error)
}

// Named pairs a transport with the name it was configured under.
type Named struct {
	Name      string
	Transport Transport
}

// QueuedMessage is a message still waiting on a transport.
type QueuedMessage struct {
	ID           string       `json:"id"`
	Type         string       `json:"type"`
	Description  string       `json:"description,omitempty"`
	Tags         history.Tags `json:"tags"`
	RunID        int64        `json:"run_id,omitempty"`
	DispatchedAt *time.Time   `json:"dispatched_at,omitempty"`
	Redeliveries int          `json:"redeliveries"`
}

func NewQueuedMessage(env *messenger.Envelope, registry *messenger.Registry) QueuedMessage {
	q := QueuedMessage{
		Type: env.MessageType(),
		Tags: history.TagsFromEnvelope(env, registry),
	}
	if id, ok := messenger.Last[messenger.TransportMessageIDStamp](env); ok {
		q.ID = id.ID
	}
	if d, ok := messenger.Last[messenger.DescriptionStamp](env); ok {
		q.Description = d.Value
	} else if decl, ok := registry.Lookup(q.Type); ok {
		q.Description = decl.Description
	}
	if stamp, ok := messenger.Last[history.MonitorStamp](env); ok {
		at := stamp.DispatchedAt()
		q.RunID = stamp.RunID()
		q.DispatchedAt = &at
	}
	if r, ok := messenger.Last[messenger.RedeliveryStamp](env); ok {
		q.Redeliveries = r.RetryCount
	}
	return q
}

// ShortType is the message type without its package qualifier.
func (q QueuedMessage) ShortType() string {
	return messenger.ShortName(q.Type)
}
