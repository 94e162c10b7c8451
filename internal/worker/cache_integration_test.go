//go:build integration

package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"msgmon/internal/constants"
	"msgmon/pkg/testinfra"
)

func TestRedisCache_Lifecycle(t *testing.T) {
	ctx := context.Background()
	client := testinfra.Redis(t)
	cache := NewRedisCache(client, time.Minute)

	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	first := Info{ID: "w1", Metadata: Metadata{Transports: []string{"async"}}, Status: StatusIdle, StartTime: start}
	second := Info{ID: "w2", Metadata: Metadata{Transports: []string{"sync"}}, Status: StatusProcessing, StartTime: start.Add(time.Second)}

	require.NoError(t, cache.Set(ctx, second))
	require.NoError(t, cache.Set(ctx, first))

	all, err := cache.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "w1", all[0].ID)
	assert.True(t, all[1].IsProcessing())

	ttl, err := client.TTL(ctx, workerKey("w1")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, cache.Remove(ctx, "w1"))
	all, err = cache.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "w2", all[0].ID)
}

func TestRedisCache_PruneExpired(t *testing.T) {
	ctx := context.Background()
	client := testinfra.Redis(t)
	cache := NewRedisCache(client, time.Minute)

	require.NoError(t, cache.Set(ctx, Info{ID: "gone", StartTime: time.Now()}))
	require.NoError(t, client.Del(ctx, workerKey("gone")).Err())

	all, err := cache.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	pruned, err := cache.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)

	exists, err := client.HExists(ctx, constants.CacheKeyWorkerIDs, "gone").Result()
	require.NoError(t, err)
	assert.False(t, exists)
}
