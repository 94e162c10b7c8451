//go:build integration

package broker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"msgmon/internal/config"
	"msgmon/internal/history"
	"msgmon/internal/history/historytest"
	"msgmon/internal/history/memstore"
	"msgmon/pkg/testinfra"
)

func TestKafka_PublishingStorageRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cfg := config.KafkaConfig{Brokers: testinfra.Kafka(t), GroupID: "tail-test"}
	client := &kafka.Client{Addr: kafka.TCP(cfg.Brokers...), Timeout: 10 * time.Second}
	_, err := client.CreateTopics(ctx, &kafka.CreateTopicsRequest{
		Topics: []kafka.TopicConfig{{Topic: "history-events", NumPartitions: 1, ReplicationFactor: 1}},
	})
	require.NoError(t, err)

	producer := NewKafkaProducer(cfg, "history-events", nil)
	defer producer.Close()

	storage := history.NewPublishingStorage(memstore.New(), producer, nil)
	msg := historytest.NewMessage(time.Now(), historytest.WithRunID(99))
	require.NoError(t, storage.Save(ctx, msg))
	require.NoError(t, storage.Delete(ctx, msg.ID()))

	consumer := NewKafkaConsumer(cfg, "history-events", nil)
	defer consumer.Close()

	var (
		mu     sync.Mutex
		events []history.Event
	)
	consumeCtx, stop := context.WithCancel(ctx)
	go consumer.Consume(consumeCtx, func(_ context.Context, event history.Event) error {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, event)
		return nil
	})
	defer stop()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 2
	}, 45*time.Second, 200*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, history.EventSaved, events[0].Kind)
	require.NotNil(t, events[0].Message)
	assert.Equal(t, int64(99), events[0].Message.RunID)
	assert.Equal(t, history.EventDeleted, events[1].Kind)
	assert.Equal(t, msg.ID(), events[1].ID)
}
