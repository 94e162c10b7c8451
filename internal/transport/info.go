package transport

import (
	"context"
	"fmt"

	"msgmon/internal/worker"
	"msgmon/pkg/errors"
	"msgmon/pkg/metrics"
)

// Info describes one transport and the workers consuming it.
type Info struct {
	name      string
	transport Transport
	workers   *worker.Monitor
}

func newInfo(n Named, workers *worker.Monitor) *Info {
	return &Info{name: n.Name, transport: n.Transport, workers: workers}
}

func (i *Info) Name() string {
	return i.name
}

func (i *Info) Transport() Transport {
	return i.transport
}

func (i *Info) Kind() string {
	return i.transport.Kind()
}

func (i *Info) IsFailure() bool {
	return isFailure(i.name)
}

func (i *Info) IsCountable() bool {
	_, ok := i.transport.(MessageCounter)
	return ok
}

func (i *Info) IsListable() bool {
	_, ok := i.transport.(MessageLister)
	return ok
}

// Count fails with ErrUsage on transports that cannot count.
func (i *Info) Count(ctx context.Context) (int, error) {
	counter, ok := i.transport.(MessageCounter)
	if !ok {
		return 0, errors.ErrUsage.WithMessage("transport %q is not countable", i.name)
	}
	count, err := counter.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages on %s: %w", i.name, err)
	}
	metrics.SetTransportQueuedMessages(i.name, count)
	return count, nil
}

// List fails with ErrUsage on transports that cannot list.
func (i *Info) List(ctx context.Context, limit int) ([]QueuedMessage, error) {
	lister, ok := i.transport.(MessageLister)
	if !ok {
		return nil, errors.ErrUsage.WithMessage("transport %q is not listable", i.name)
	}
	messages, err := lister.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages on %s: %w", i.name, err)
	}
	return messages, nil
}

func (i *Info) Workers(ctx context.Context) ([]worker.Info, error) {
	if i.workers == nil {
		return []worker.Info{}, nil
	}
	return i.workers.ForTransport(ctx, i.name)
}

func (i *Info) IsRunning(ctx context.Context) (bool, error) {
	workers, err := i.Workers(ctx)
	return len(workers) > 0, err
}
