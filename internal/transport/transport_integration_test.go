//go:build integration

package transport

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"msgmon/internal/history"
	"msgmon/internal/messenger"
	wmadapter "msgmon/internal/messenger/watermill"
	"msgmon/pkg/jsoncodec"
	"msgmon/pkg/testinfra"
)

func wireFor(t *testing.T, id string, tags ...string) wireMessage {
	t.Helper()
	msg, err := wmadapter.NewMessage(map[string]int{"n": 1}, history.NewMonitorStamp(), messenger.NewTagStamp(tags...))
	require.NoError(t, err)
	return wireMessage{UUID: id, Metadata: msg.Metadata, Payload: msg.Payload}
}

func TestRedisTransport_List(t *testing.T) {
	ctx := context.Background()
	client := testinfra.Redis(t)

	for _, id := range []string{"1", "2", "3"} {
		raw, err := jsoncodec.MarshalString(wireFor(t, id, "batch"))
		require.NoError(t, err)
		require.NoError(t, client.LPush(ctx, "queue:async", raw).Err())
	}

	tr := NewRedisListTransport(client, "queue:async", nil)
	count, err := tr.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	messages, err := tr.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "3", messages[0].ID)
	assert.Equal(t, history.Tags{"batch"}, messages[0].Tags)
	assert.NotNil(t, messages[0].DispatchedAt)
}

func TestRedisTransport_Stream(t *testing.T) {
	ctx := context.Background()
	client := testinfra.Redis(t)

	for _, id := range []string{"a", "b"} {
		w := wireFor(t, id)
		md, err := jsoncodec.MarshalString(w.Metadata)
		require.NoError(t, err)
		require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{
			Stream: "stream:events",
			Values: map[string]any{fieldUUID: w.UUID, fieldPayload: string(w.Payload), fieldMetadata: md},
		}).Err())
	}

	tr := NewRedisStreamTransport(client, "stream:events", nil)
	count, err := tr.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	messages, err := tr.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "b", messages[0].ID)
}

func TestKafkaTransport_CountsGroupLag(t *testing.T) {
	ctx := context.Background()
	brokers := testinfra.Kafka(t)
	topic := "transport-lag"

	client := &kafka.Client{Addr: kafka.TCP(brokers...), Timeout: 10 * time.Second}
	_, err := client.CreateTopics(ctx, &kafka.CreateTopicsRequest{
		Topics: []kafka.TopicConfig{{Topic: topic, NumPartitions: 1, ReplicationFactor: 1}},
	})
	require.NoError(t, err)

	writer := &kafka.Writer{Addr: kafka.TCP(brokers...), Topic: topic}
	defer writer.Close()
	require.NoError(t, writer.WriteMessages(ctx,
		kafka.Message{Value: []byte("1")},
		kafka.Message{Value: []byte("2")},
		kafka.Message{Value: []byte("3")},
	))

	tr := NewKafkaTransport(brokers, topic, "idle-workers")
	require.Eventually(t, func() bool {
		count, err := tr.Count(ctx)
		return err == nil && count == 3
	}, 30*time.Second, 500*time.Millisecond)
}
