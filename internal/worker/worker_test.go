package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	cache := NewMemoryCache(time.Minute).WithClock(c.Now)

	require.NoError(t, cache.Set(ctx, Info{ID: "a", StartTime: c.Now()}))
	c.Advance(30 * time.Second)
	require.NoError(t, cache.Set(ctx, Info{ID: "b", StartTime: c.Now()}))

	all, err := cache.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].ID)

	c.Advance(45 * time.Second)
	all, err = cache.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "b", all[0].ID)

	pruned, err := cache.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)
}

func TestMemoryCache_Remove(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache(0)

	require.NoError(t, cache.Set(ctx, Info{ID: "a"}))
	require.NoError(t, cache.Remove(ctx, "a"))
	require.NoError(t, cache.Remove(ctx, "unknown"))

	all, err := cache.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestListener_Lifecycle(t *testing.T) {
	cache := NewMemoryCache(time.Hour)
	monitor := NewMonitor(cache)
	l := NewListener(cache, Metadata{Transports: []string{"async"}, Queues: []string{"high"}},
		WithHeartbeat(10*time.Millisecond),
		WithMemorySampler(func() uint64 { return 2048 }),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Start(ctx) }()

	require.Eventually(t, func() bool {
		running, err := monitor.IsRunning(context.Background())
		return err == nil && running
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, l.Processing(context.Background()))
	workers, err := monitor.ForTransport(context.Background(), "async")
	require.NoError(t, err)
	require.Len(t, workers, 1)
	assert.True(t, workers[0].IsProcessing())
	assert.Equal(t, uint64(2048), workers[0].MemoryUsage)

	require.NoError(t, l.Idle(context.Background(), true))
	workers, err = monitor.ForQueue(context.Background(), "high")
	require.NoError(t, err)
	require.Len(t, workers, 1)
	assert.True(t, workers[0].IsIdle())
	assert.Equal(t, 1, workers[0].MessagesHandled)

	none, err := monitor.ForTransport(context.Background(), "other")
	require.NoError(t, err)
	assert.Empty(t, none)

	cancel()
	require.NoError(t, <-done)

	count, err := monitor.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestInfo_RunningFor(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	info := Info{StartTime: start}

	assert.Equal(t, time.Minute, info.RunningFor(start.Add(time.Minute)))
	assert.Zero(t, info.RunningFor(start.Add(-time.Minute)))
}
