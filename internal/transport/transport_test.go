package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"msgmon/internal/config"
	"msgmon/internal/constants"
	"msgmon/internal/history"
	"msgmon/internal/messenger"
	"msgmon/internal/worker"
	"msgmon/pkg/errors"
)

func newTestMonitor(t *testing.T, cache worker.Cache) (*Monitor, *MemoryTransport) {
	t.Helper()
	memory := NewMemoryTransport(nil)
	return NewMonitor(worker.NewMonitor(cache),
		Named{Name: "async", Transport: memory},
		Named{Name: "sync", Transport: &SyncTransport{}},
		Named{Name: "failed", Transport: NewMemoryTransport(nil)},
		Named{Name: "scheduler_default", Transport: &SchedulerTransport{Schedule: "default"}},
	), memory
}

func TestMonitor_Filters(t *testing.T) {
	monitor, _ := newTestMonitor(t, worker.NewMemoryCache(0))

	tests := []struct {
		name    string
		monitor *Monitor
		want    []string
	}{
		{"all", monitor, []string{"async", "sync", "failed", "scheduler_default"}},
		{"countable", monitor.Countable(), []string{"async", "failed"}},
		{"listable", monitor.Listable(), []string{"async", "failed"}},
		{"exclude sync", monitor.ExcludeSync(), []string{"async", "failed", "scheduler_default"}},
		{"exclude schedules", monitor.ExcludeSchedules(), []string{"async", "sync", "failed"}},
		{"exclude failed", monitor.ExcludeFailed(), []string{"async", "sync", "scheduler_default"}},
		{"chained", monitor.ExcludeSync().ExcludeSchedules().ExcludeFailed(), []string{"async"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.monitor.Names())
			assert.Equal(t, len(tt.want), tt.monitor.Len())
			assert.Len(t, tt.monitor.All(), len(tt.want))
		})
	}

	assert.Equal(t, 4, monitor.Len(), "filters must not modify the original monitor")
}

func TestMonitor_Get(t *testing.T) {
	monitor, _ := newTestMonitor(t, worker.NewMemoryCache(0))

	info, err := monitor.ExcludeSync().Get("sync")
	require.NoError(t, err)
	assert.Equal(t, constants.TransportSync, info.Kind())

	_, err = monitor.Get("missing")
	require.Error(t, err)
	assert.True(t, errors.IsInvalidArgument(err))
}

func TestMonitor_Failure(t *testing.T) {
	monitor, _ := newTestMonitor(t, worker.NewMemoryCache(0))

	failure, ok := monitor.ExcludeFailed().Failure()
	require.True(t, ok)
	assert.Equal(t, "failed", failure.Name())
	assert.True(t, failure.IsFailure())

	_, ok = NewMonitor(nil, Named{Name: "async", Transport: &SyncTransport{}}).Failure()
	assert.False(t, ok)
}

func TestInfo_CountAndList(t *testing.T) {
	ctx := context.Background()
	monitor, memory := newTestMonitor(t, worker.NewMemoryCache(0))

	dispatched := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	stamp := history.NewMonitorStampAt(dispatched)
	memory.Add(
		messenger.NewEnvelope(nil, messenger.TransportMessageIDStamp{ID: "1"}).WithMessageType("app.First"),
		messenger.NewEnvelope(nil,
			messenger.TransportMessageIDStamp{ID: "2"},
			stamp,
			messenger.NewTagStamp("report"),
			messenger.DescriptionStamp{Value: "weekly"},
			messenger.RedeliveryStamp{RetryCount: 1},
		).WithMessageType("app.Second"),
	)

	info, err := monitor.Get("async")
	require.NoError(t, err)
	assert.True(t, info.IsCountable())
	assert.True(t, info.IsListable())

	count, err := info.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	messages, err := info.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	latest := messages[0]
	assert.Equal(t, "2", latest.ID)
	assert.Equal(t, "Second", latest.ShortType())
	assert.Equal(t, "weekly", latest.Description)
	assert.Equal(t, history.Tags{"report"}, latest.Tags)
	assert.Equal(t, stamp.RunID(), latest.RunID)
	require.NotNil(t, latest.DispatchedAt)
	assert.True(t, latest.DispatchedAt.Equal(dispatched))
	assert.Equal(t, 1, latest.Redeliveries)

	assert.True(t, memory.Ack("1"))
	assert.False(t, memory.Ack("1"))
	count, err = info.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestInfo_UnsupportedOperations(t *testing.T) {
	monitor, _ := newTestMonitor(t, worker.NewMemoryCache(0))
	info, err := monitor.Get("sync")
	require.NoError(t, err)

	_, err = info.Count(context.Background())
	assert.True(t, errors.IsUsage(err))

	_, err = info.List(context.Background(), 10)
	assert.True(t, errors.IsUsage(err))
}

func TestInfo_Workers(t *testing.T) {
	ctx := context.Background()
	cache := worker.NewMemoryCache(time.Minute)
	monitor, _ := newTestMonitor(t, cache)
	require.NoError(t, cache.Set(ctx, worker.Info{ID: "w1", Metadata: worker.Metadata{Transports: []string{"async"}}}))

	async, err := monitor.Get("async")
	require.NoError(t, err)
	running, err := async.IsRunning(ctx)
	require.NoError(t, err)
	assert.True(t, running)

	failed, err := monitor.Get("failed")
	require.NoError(t, err)
	running, err = failed.IsRunning(ctx)
	require.NoError(t, err)
	assert.False(t, running)
}

func TestQueuedMessage_DescriptionFromRegistry(t *testing.T) {
	registry := messenger.NewRegistry()
	registry.Register("app.Cleanup", messenger.Declaration{Description: "cleanup", Tags: []string{"maintenance"}})

	q := NewQueuedMessage(messenger.NewEnvelope(nil).WithMessageType("app.Cleanup"), registry)
	assert.Equal(t, "cleanup", q.Description)
	assert.Equal(t, history.Tags{"maintenance"}, q.Tags)
	assert.Nil(t, q.DispatchedAt)
}

func TestFromConfig(t *testing.T) {
	named, err := FromConfig(
		[]config.TransportConfig{
			{Name: "async", Type: constants.TransportMemory},
			{Name: "sync", Type: constants.TransportSync},
			{Name: "events", Type: constants.TransportKafka, Topic: "app.events"},
		},
		[]config.ScheduleConfig{{Name: "default"}},
		Dependencies{KafkaBrokers: []string{"localhost:9092"}, KafkaGroup: "workers"},
	)
	require.NoError(t, err)
	require.Len(t, named, 4)
	assert.Equal(t, constants.TransportKafka, named[2].Transport.Kind())
	assert.Equal(t, "scheduler_default", named[3].Name)
	assert.Equal(t, constants.TransportScheduler, named[3].Transport.Kind())

	tests := []struct {
		name string
		cfg  config.TransportConfig
	}{
		{"redis without client", config.TransportConfig{Name: "q", Type: constants.TransportRedisList}},
		{"kafka without brokers", config.TransportConfig{Name: "q", Type: constants.TransportKafka}},
		{"unknown type", config.TransportConfig{Name: "q", Type: "amqp"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromConfig([]config.TransportConfig{tt.cfg}, nil, Dependencies{})
			assert.Error(t, err)
		})
	}
}
