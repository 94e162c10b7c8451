package worker

import (
	"context"
	"fmt"

	"msgmon/pkg/metrics"
)

// Monitor answers questions about the workers currently registered in a
// Cache.
type Monitor struct {
	cache Cache
}

func NewMonitor(cache Cache) *Monitor {
	return &Monitor{cache: cache}
}

func (m *Monitor) All(ctx context.Context) ([]Info, error) {
	infos, err := m.cache.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list workers: %w", err)
	}
	return infos, nil
}

func (m *Monitor) ForTransport(ctx context.Context, name string) ([]Info, error) {
	return m.filter(ctx, func(i Info) bool { return i.ConsumesTransport(name) })
}

func (m *Monitor) ForQueue(ctx context.Context, name string) ([]Info, error) {
	return m.filter(ctx, func(i Info) bool { return i.ConsumesQueue(name) })
}

func (m *Monitor) Count(ctx context.Context) (int, error) {
	infos, err := m.All(ctx)
	if err != nil {
		return 0, err
	}
	metrics.SetWorkersActive(len(infos))
	return len(infos), nil
}

func (m *Monitor) IsRunning(ctx context.Context) (bool, error) {
	count, err := m.Count(ctx)
	return count > 0, err
}

// Prune drops expired registrations from the cache.
func (m *Monitor) Prune(ctx context.Context) (int, error) {
	return m.cache.Prune(ctx)
}

func (m *Monitor) filter(ctx context.Context, keep func(Info) bool) ([]Info, error) {
	infos, err := m.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Info, 0, len(infos))
	for _, info := range infos {
		if keep(info) {
			out = append(out, info)
		}
	}
	return out, nil
}
