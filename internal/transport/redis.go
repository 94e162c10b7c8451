package transport

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/redis/go-redis/v9"

	"msgmon/internal/constants"
	"msgmon/internal/messenger"
	wmadapter "msgmon/internal/messenger/watermill"
	"msgmon/pkg/jsoncodec"
)

// Stream entries and list items share the watermill message shape.
const (
	fieldUUID     = "uuid"
	fieldMetadata = "metadata"
	fieldPayload  = "payload"
)

type wireMessage struct {
	UUID     string            `json:"uuid"`
	Metadata map[string]string `json:"metadata"`
	Payload  []byte            `json:"payload"`
}

func (w wireMessage) message() *message.Message {
	msg := message.NewMessage(w.UUID, w.Payload)
	for k, v := range w.Metadata {
		msg.Metadata.Set(k, v)
	}
	return msg
}

// RedisTransport reads a redis list (LPUSH producers, newest at the head)
// or a redis stream.
type RedisTransport struct {
	client   *redis.Client
	key      string
	stream   bool
	registry *messenger.Registry
}

func NewRedisListTransport(client *redis.Client, key string, registry *messenger.Registry) *RedisTransport {
	return &RedisTransport{client: client, key: key, registry: registry}
}

func NewRedisStreamTransport(client *redis.Client, key string, registry *messenger.Registry) *RedisTransport {
	return &RedisTransport{client: client, key: key, stream: true, registry: registry}
}

func (t *RedisTransport) Kind() string {
	if t.stream {
		return constants.TransportRedisStream
	}
	return constants.TransportRedisList
}

func (t *RedisTransport) Count(ctx context.Context) (int, error) {
	var (
		n   int64
		err error
	)
	if t.stream {
		n, err = t.client.XLen(ctx, t.key).Result()
	} else {
		n, err = t.client.LLen(ctx, t.key).Result()
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", t.key, err)
	}
	return int(n), nil
}

func (t *RedisTransport) List(ctx context.Context, limit int) ([]QueuedMessage, error) {
	if limit <= 0 {
		limit = constants.DefaultLimit
	}
	var (
		wires []wireMessage
		err   error
	)
	if t.stream {
		wires, err = t.listStream(ctx, limit)
	} else {
		wires, err = t.listList(ctx, limit)
	}
	if err != nil {
		return nil, err
	}

	out := make([]QueuedMessage, 0, len(wires))
	for _, w := range wires {
		env, err := wmadapter.Decode(w.message())
		if err != nil {
			return nil, fmt.Errorf("failed to decode message %s: %w", w.UUID, err)
		}
		out = append(out, NewQueuedMessage(env, t.registry))
	}
	return out, nil
}

func (t *RedisTransport) listList(ctx context.Context, limit int) ([]wireMessage, error) {
	items, err := t.client.LRange(ctx, t.key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", t.key, err)
	}
	out := make([]wireMessage, 0, len(items))
	for _, item := range items {
		var w wireMessage
		if err := jsoncodec.UnmarshalString(item, &w); err != nil {
			return nil, fmt.Errorf("failed to decode list item: %w", err)
		}
		out = append(out, w)
	}
	return out, nil
}

func (t *RedisTransport) listStream(ctx context.Context, limit int) ([]wireMessage, error) {
	entries, err := t.client.XRevRangeN(ctx, t.key, "+", "-", int64(limit)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", t.key, err)
	}
	out := make([]wireMessage, 0, len(entries))
	for _, entry := range entries {
		w := wireMessage{UUID: entry.ID}
		if id, ok := entry.Values[fieldUUID].(string); ok && id != "" {
			w.UUID = id
		}
		if payload, ok := entry.Values[fieldPayload].(string); ok {
			w.Payload = []byte(payload)
		}
		if md, ok := entry.Values[fieldMetadata].(string); ok && md != "" {
			if err := jsoncodec.UnmarshalString(md, &w.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode stream entry %s: %w", entry.ID, err)
			}
		}
		out = append(out, w)
	}
	return out, nil
}
