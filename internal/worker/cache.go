package worker

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"msgmon/internal/constants"
	"msgmon/pkg/jsoncodec"
)

// Cache stores the state of running workers. Entries expire when a worker
// stops refreshing them, which covers workers that die without removing
// themselves.
type Cache interface {
	// Set registers the worker if needed and refreshes its entry and expiry.
	Set(ctx context.Context, info Info) error
	Remove(ctx context.Context, id string) error
	// All returns the live workers ordered by start time.
	All(ctx context.Context) ([]Info, error)
	// Prune forgets registered ids whose entry has expired.
	Prune(ctx context.Context) (int, error)
}

type memoryEntry struct {
	info      Info
	expiresAt time.Time
}

type MemoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	ids     map[string]time.Time
	entries map[string]memoryEntry
}

var _ Cache = (*MemoryCache)(nil)

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = constants.ExpiredWorkerTTL
	}
	return &MemoryCache{
		ttl:     ttl,
		now:     time.Now,
		ids:     make(map[string]time.Time),
		entries: make(map[string]memoryEntry),
	}
}

// WithClock is for tests.
func (c *MemoryCache) WithClock(now func() time.Time) *MemoryCache {
	c.now = now
	return c
}

func (c *MemoryCache) Set(_ context.Context, info Info) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.ids[info.ID]; !ok {
		c.ids[info.ID] = info.StartTime
	}
	c.entries[info.ID] = memoryEntry{info: info, expiresAt: c.now().Add(c.ttl)}
	return nil
}

func (c *MemoryCache) Remove(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.ids, id)
	delete(c.entries, id)
	return nil
}

func (c *MemoryCache) All(_ context.Context) ([]Info, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	out := make([]Info, 0, len(c.ids))
	for id := range c.ids {
		entry, ok := c.entries[id]
		if !ok || !now.Before(entry.expiresAt) {
			continue
		}
		out = append(out, entry.info)
	}
	sortByStart(out)
	return out, nil
}

func (c *MemoryCache) Prune(_ context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	pruned := 0
	for id := range c.ids {
		if entry, ok := c.entries[id]; ok && now.Before(entry.expiresAt) {
			continue
		}
		delete(c.ids, id)
		delete(c.entries, id)
		pruned++
	}
	return pruned, nil
}

// RedisCache keeps a hash of worker ids to start times plus one JSON key per
// worker carrying the TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ Cache = (*RedisCache)(nil)

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = constants.ExpiredWorkerTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

func workerKey(id string) string {
	return constants.CacheKeyPrefixWorker + id
}

func (c *RedisCache) Set(ctx context.Context, info Info) error {
	data, err := jsoncodec.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal worker info: %w", err)
	}

	pipe := c.client.TxPipeline()
	pipe.HSetNX(ctx, constants.CacheKeyWorkerIDs, info.ID, info.StartTime.Unix())
	pipe.Set(ctx, workerKey(info.ID), data, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store worker %s: %w", info.ID, err)
	}
	return nil
}

func (c *RedisCache) Remove(ctx context.Context, id string) error {
	pipe := c.client.TxPipeline()
	pipe.HDel(ctx, constants.CacheKeyWorkerIDs, id)
	pipe.Del(ctx, workerKey(id))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to remove worker %s: %w", id, err)
	}
	return nil
}

func (c *RedisCache) All(ctx context.Context) ([]Info, error) {
	infos, _, err := c.load(ctx)
	return infos, err
}

func (c *RedisCache) Prune(ctx context.Context) (int, error) {
	_, expired, err := c.load(ctx)
	if err != nil {
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}
	if err := c.client.HDel(ctx, constants.CacheKeyWorkerIDs, expired...).Err(); err != nil {
		return 0, fmt.Errorf("failed to prune workers: %w", err)
	}
	return len(expired), nil
}

// load returns the live workers and the registered ids without an entry.
func (c *RedisCache) load(ctx context.Context) ([]Info, []string, error) {
	ids, err := c.client.HGetAll(ctx, constants.CacheKeyWorkerIDs).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load worker ids: %w", err)
	}
	if len(ids) == 0 {
		return []Info{}, nil, nil
	}

	keys := make([]string, 0, len(ids))
	order := make([]string, 0, len(ids))
	for id := range ids {
		keys = append(keys, workerKey(id))
		order = append(order, id)
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, nil, fmt.Errorf("failed to load workers: %w", err)
	}

	infos := make([]Info, 0, len(values))
	var expired []string
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			expired = append(expired, order[i])
			continue
		}
		var info Info
		if err := jsoncodec.UnmarshalString(raw, &info); err != nil {
			return nil, nil, fmt.Errorf("failed to decode worker %s: %w", order[i], err)
		}
		if info.StartTime.IsZero() {
			if started, err := strconv.ParseInt(ids[order[i]], 10, 64); err == nil {
				info.StartTime = time.Unix(started, 0)
			}
		}
		infos = append(infos, info)
	}
	sortByStart(infos)
	return infos, expired, nil
}

func sortByStart(infos []Info) {
	slices.SortFunc(infos, func(a, b Info) int {
		return cmp.Or(a.StartTime.Compare(b.StartTime), strings.Compare(a.ID, b.ID))
	})
}
