package transport

import (
	"context"
	"slices"
	"sync"

	"msgmon/internal/constants"
	"msgmon/internal/messenger"
)

// SyncTransport handles messages in the dispatching process. Nothing ever
// waits on it.
type SyncTransport struct{}

func (*SyncTransport) Kind() string { return constants.TransportSync }

// SchedulerTransport injects scheduled messages directly into workers.
type SchedulerTransport struct {
	Schedule string
}

func (*SchedulerTransport) Kind() string { return constants.TransportScheduler }

// SchedulerTransportName is the transport name workers use for schedule.
func SchedulerTransportName(schedule string) string {
	return constants.SchedulerTransportPrefix + schedule
}

// MemoryTransport keeps waiting envelopes in process.
type MemoryTransport struct {
	mu       sync.Mutex
	queue    []*messenger.Envelope
	registry *messenger.Registry
}

func NewMemoryTransport(registry *messenger.Registry) *MemoryTransport {
	return &MemoryTransport{registry: registry}
}

func (*MemoryTransport) Kind() string { return constants.TransportMemory }

func (t *MemoryTransport) Add(envs ...*messenger.Envelope) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.queue = append(t.queue, envs...)
}

// Ack removes the envelope carrying the transport message id.
func (t *MemoryTransport) Ack(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, env := range t.queue {
		if stamp, ok := messenger.Last[messenger.TransportMessageIDStamp](env); ok && stamp.ID == id {
			t.queue = slices.Delete(t.queue, i, i+1)
			return true
		}
	}
	return false
}

func (t *MemoryTransport) Count(context.Context) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queue), nil
}

func (t *MemoryTransport) List(_ context.Context, limit int) ([]QueuedMessage, error) {
	if limit <= 0 {
		limit = constants.DefaultLimit
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]QueuedMessage, 0, min(limit, len(t.queue)))
	for i := len(t.queue) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, NewQueuedMessage(t.queue[i], t.registry))
	}
	return out, nil
}
