package worker

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"msgmon/internal/constants"
	"msgmon/internal/logger"
	"msgmon/pkg/ids"
	"msgmon/pkg/metrics"
)

type ListenerOption func(*Listener)

func WithHeartbeat(interval time.Duration) ListenerOption {
	return func(l *Listener) {
		if interval > 0 {
			l.heartbeat = interval
		}
	}
}

func WithLogger(log logger.Logger) ListenerOption {
	return func(l *Listener) {
		l.logger = log
	}
}

func WithClock(now func() time.Time) ListenerOption {
	return func(l *Listener) {
		l.now = now
	}
}

func WithMemorySampler(sample func() uint64) ListenerOption {
	return func(l *Listener) {
		l.memory = sample
	}
}

// Listener publishes one worker's state to the Cache for the lifetime of
// Start.
type Listener struct {
	cache     Cache
	heartbeat time.Duration
	logger    logger.Logger
	now       func() time.Time
	memory    func() uint64

	mu   sync.Mutex
	info Info
}

func NewListener(cache Cache, metadata Metadata, opts ...ListenerOption) *Listener {
	host, _ := os.Hostname()
	l := &Listener{
		cache:     cache,
		heartbeat: constants.DefaultWorkerHeartbeat,
		logger:    logger.NopLogger(),
		now:       time.Now,
		memory:    func() uint64 { return 0 },
		info: Info{
			ID:       ids.NewUUID(),
			Host:     host,
			PID:      os.Getpid(),
			Metadata: metadata,
			Status:   StatusIdle,
		},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Listener) ID() string {
	return l.info.ID
}

// Info returns a copy of the state last reported.
func (l *Listener) Info() Info {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.info
}

// Start registers the worker and refreshes its entry every heartbeat until
// ctx is done. The worker is removed from the cache on return.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	l.info.StartTime = l.now().UTC().Truncate(time.Second)
	l.mu.Unlock()

	if err := l.publish(ctx); err != nil {
		return fmt.Errorf("failed to register worker: %w", err)
	}
	l.logger.Infow("Worker registered", "worker_id", l.info.ID, "transports", l.info.Metadata.Transports)

	ticker := time.NewTicker(l.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return l.stop()
		case <-ticker.C:
			if err := l.publish(ctx); err != nil {
				metrics.IncWorkerHeartbeat("error")
				l.logger.Warnw("Worker heartbeat failed", "worker_id", l.info.ID, "error", err)
				continue
			}
			metrics.IncWorkerHeartbeat("success")
		}
	}
}

func (l *Listener) stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()

	if err := l.cache.Remove(ctx, l.info.ID); err != nil {
		return fmt.Errorf("failed to deregister worker: %w", err)
	}
	l.logger.Infow("Worker deregistered", "worker_id", l.info.ID)
	return nil
}

// Processing reports that a message is being handled.
func (l *Listener) Processing(ctx context.Context) error {
	l.mu.Lock()
	l.info.Status = StatusProcessing
	l.mu.Unlock()
	return l.publish(ctx)
}

// Idle reports that the worker is waiting. handled counts the message that
// just finished, if any.
func (l *Listener) Idle(ctx context.Context, handled bool) error {
	l.mu.Lock()
	l.info.Status = StatusIdle
	if handled {
		l.info.MessagesHandled++
	}
	l.mu.Unlock()
	return l.publish(ctx)
}

func (l *Listener) publish(ctx context.Context) error {
	l.mu.Lock()
	l.info.MemoryUsage = l.memory()
	info := l.info
	l.mu.Unlock()

	return l.cache.Set(ctx, info)
}
