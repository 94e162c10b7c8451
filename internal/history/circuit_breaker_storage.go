package history

import (
	"context"

	"msgmon/internal/config"
	"msgmon/pkg/circuitbreaker"
)

// CircuitBreakerStorage guards every backend call with one breaker so a
// failing database stops slowing down message handling.
type CircuitBreakerStorage struct {
	storage Storage
	cb      *circuitbreaker.Wrapper
}

func NewCircuitBreakerStorage(storage Storage, cfg config.CircuitBreakerConfig) *CircuitBreakerStorage {
	return &CircuitBreakerStorage{
		storage: storage,
		cb:      circuitbreaker.FromConfig("history-storage", cfg),
	}
}

func (s *CircuitBreakerStorage) State() string {
	return s.cb.StateName()
}

func (s *CircuitBreakerStorage) Find(ctx context.Context, id string) (*ProcessedMessage, error) {
	return circuitbreaker.Do(ctx, s.cb, func() (*ProcessedMessage, error) {
		return s.storage.Find(ctx, id)
	})
}

func (s *CircuitBreakerStorage) Filter(spec Specification) Sequence {
	return s.storage.Filter(spec).mapPages(func(page PageFunc) PageFunc {
		return func(ctx context.Context, offset, limit int) ([]*ProcessedMessage, error) {
			return circuitbreaker.Do(ctx, s.cb, func() ([]*ProcessedMessage, error) {
				return page(ctx, offset, limit)
			})
		}
	})
}

func (s *CircuitBreakerStorage) Count(ctx context.Context, spec Specification) (int, error) {
	return circuitbreaker.Do(ctx, s.cb, func() (int, error) {
		return s.storage.Count(ctx, spec)
	})
}

func (s *CircuitBreakerStorage) Purge(ctx context.Context, spec Specification) (int, error) {
	return circuitbreaker.Do(ctx, s.cb, func() (int, error) {
		return s.storage.Purge(ctx, spec)
	})
}

func (s *CircuitBreakerStorage) Save(ctx context.Context, m *ProcessedMessage) error {
	return circuitbreaker.Run(ctx, s.cb, func() error {
		return s.storage.Save(ctx, m)
	})
}

func (s *CircuitBreakerStorage) Delete(ctx context.Context, id string) error {
	return circuitbreaker.Run(ctx, s.cb, func() error {
		return s.storage.Delete(ctx, id)
	})
}

type average struct {
	seconds float64
	ok      bool
}

func (s *CircuitBreakerStorage) AverageWaitTime(ctx context.Context, spec Specification) (float64, bool, error) {
	avg, err := circuitbreaker.Do(ctx, s.cb, func() (average, error) {
		seconds, ok, err := s.storage.AverageWaitTime(ctx, spec)
		return average{seconds, ok}, err
	})
	return avg.seconds, avg.ok, err
}

func (s *CircuitBreakerStorage) AverageHandlingTime(ctx context.Context, spec Specification) (float64, bool, error) {
	avg, err := circuitbreaker.Do(ctx, s.cb, func() (average, error) {
		seconds, ok, err := s.storage.AverageHandlingTime(ctx, spec)
		return average{seconds, ok}, err
	})
	return avg.seconds, avg.ok, err
}

func (s *CircuitBreakerStorage) AvailableMessageTypes(ctx context.Context, spec Specification) ([]string, error) {
	return circuitbreaker.Do(ctx, s.cb, func() ([]string, error) {
		return s.storage.AvailableMessageTypes(ctx, spec)
	})
}
