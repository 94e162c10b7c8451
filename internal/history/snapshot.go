package history

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"msgmon/pkg/errors"
)

var ErrUnboundedRate = errors.ErrUsage.WithMessage(`specification must have a "from" date to calculate handled-per-x`)

type SnapshotOption func(*Snapshot)

// WithSnapshotClock overrides the clock used for open-ended windows.
func WithSnapshotClock(now func() time.Time) SnapshotOption {
	return func(s *Snapshot) {
		s.now = now
	}
}

// Snapshot is an aggregate view of one Specification over one Storage.
// Every metric is computed on first use and memoised for the snapshot's life.
type Snapshot struct {
	storage Storage
	spec    Specification
	now     func() time.Time

	mu              sync.Mutex
	successCount    *int
	failureCount    *int
	averageWait     *float64
	averageHandling *float64
	totalSeconds    *float64
}

func NewSnapshot(storage Storage, spec Specification, opts ...SnapshotOption) *Snapshot {
	s := &Snapshot{storage: storage, spec: spec, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Snapshot) Specification() Specification {
	return s.spec
}

// Messages returns the matching messages as a lazy sequence.
func (s *Snapshot) Messages() Sequence {
	return s.storage.Filter(s.spec)
}

// SuccessCount narrows the specification to successes. It is 0 without a
// query when the specification only matches failures.
func (s *Snapshot) SuccessCount(ctx context.Context) (int, error) {
	return s.memoCount(ctx, &s.successCount, Success)
}

// FailureCount is the failure counterpart of SuccessCount.
func (s *Snapshot) FailureCount(ctx context.Context) (int, error) {
	return s.memoCount(ctx, &s.failureCount, Failed)
}

func (s *Snapshot) memoCount(ctx context.Context, slot **int, status Status) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if *slot != nil {
		return **slot, nil
	}
	if s.spec.status != AnyStatus && s.spec.status != status {
		zero := 0
		*slot = &zero
		return 0, nil
	}
	spec := s.spec
	spec.status = status
	n, err := s.storage.Count(ctx, spec)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	*slot = &n
	return n, nil
}

func (s *Snapshot) TotalCount(ctx context.Context) (int, error) {
	successes, err := s.SuccessCount(ctx)
	if err != nil {
		return 0, err
	}
	failures, err := s.FailureCount(ctx)
	if err != nil {
		return 0, err
	}
	return successes + failures, nil
}

// FailRate is 0 when nothing matches.
func (s *Snapshot) FailRate(ctx context.Context) (float64, error) {
	total, err := s.TotalCount(ctx)
	if err != nil || total == 0 {
		return 0, err
	}
	failures, err := s.FailureCount(ctx)
	if err != nil {
		return 0, err
	}
	return float64(failures) / float64(total), nil
}

// AverageWaitTime is in seconds, 0 when nothing matches.
func (s *Snapshot) AverageWaitTime(ctx context.Context) (float64, error) {
	return s.memoAverage(ctx, &s.averageWait, s.storage.AverageWaitTime)
}

// AverageHandlingTime is in seconds, 0 when nothing matches.
func (s *Snapshot) AverageHandlingTime(ctx context.Context) (float64, error) {
	return s.memoAverage(ctx, &s.averageHandling, s.storage.AverageHandlingTime)
}

func (s *Snapshot) memoAverage(ctx context.Context, slot **float64, query func(context.Context, Specification) (float64, bool, error)) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if *slot != nil {
		return **slot, nil
	}
	avg, ok, err := query(ctx, s.spec)
	if err != nil {
		return 0, fmt.Errorf("failed to average messages: %w", err)
	}
	if !ok || math.IsNaN(avg) {
		avg = 0
	}
	*slot = &avg
	return avg, nil
}

func (s *Snapshot) AverageProcessingTime(ctx context.Context) (float64, error) {
	wait, err := s.AverageWaitTime(ctx)
	if err != nil {
		return 0, err
	}
	handling, err := s.AverageHandlingTime(ctx)
	if err != nil {
		return 0, err
	}
	return wait + handling, nil
}

// HandledPer is the throughput per divisor seconds over [from, to or now].
// It fails with ErrUnboundedRate when the specification has no from date and
// returns 0 for an empty window.
func (s *Snapshot) HandledPer(ctx context.Context, divisor int) (float64, error) {
	if divisor <= 0 {
		return 0, errors.ErrUsage.WithMessage("handled-per divisor must be positive, got %d", divisor)
	}
	seconds, err := s.windowSeconds()
	if err != nil {
		return 0, err
	}
	total, err := s.TotalCount(ctx)
	if err != nil {
		return 0, err
	}
	if seconds == 0 {
		return 0, nil
	}
	return float64(total) / (seconds / float64(divisor)), nil
}

func (s *Snapshot) HandledPerMinute(ctx context.Context) (float64, error) {
	return s.HandledPer(ctx, 60)
}

func (s *Snapshot) HandledPerHour(ctx context.Context) (float64, error) {
	return s.HandledPer(ctx, 60*60)
}

func (s *Snapshot) HandledPerDay(ctx context.Context) (float64, error) {
	return s.HandledPer(ctx, 60*60*24)
}

func (s *Snapshot) windowSeconds() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.totalSeconds != nil {
		return *s.totalSeconds, nil
	}
	values := s.spec.Values()
	if values.From.IsZero() {
		return 0, ErrUnboundedRate
	}
	to := values.To
	if to.IsZero() {
		to = s.now()
	}
	seconds := math.Abs(to.Sub(values.From).Seconds())
	s.totalSeconds = &seconds
	return seconds, nil
}

// Summary is the serialisable aggregate of a Snapshot. Durations are seconds.
type Summary struct {
	From                  time.Time `json:"from,omitempty"`
	To                    time.Time `json:"to,omitempty"`
	Total                 int       `json:"total"`
	Successes             int       `json:"successes"`
	Failures              int       `json:"failures"`
	FailRate              float64   `json:"fail_rate"`
	AverageWaitTime       float64   `json:"average_wait_time"`
	AverageHandlingTime   float64   `json:"average_handling_time"`
	AverageProcessingTime float64   `json:"average_processing_time"`
	Bounded               bool      `json:"bounded"`
	HandledPerMinute      float64   `json:"handled_per_minute"`
	HandledPerHour        float64   `json:"handled_per_hour"`
	HandledPerDay         float64   `json:"handled_per_day"`
}

func (s *Snapshot) Summary(ctx context.Context) (Summary, error) {
	values := s.spec.Values()
	out := Summary{From: values.From, To: values.To}

	var err error
	if out.Successes, err = s.SuccessCount(ctx); err != nil {
		return Summary{}, err
	}
	if out.Failures, err = s.FailureCount(ctx); err != nil {
		return Summary{}, err
	}
	out.Total = out.Successes + out.Failures
	if out.FailRate, err = s.FailRate(ctx); err != nil {
		return Summary{}, err
	}
	if out.AverageWaitTime, err = s.AverageWaitTime(ctx); err != nil {
		return Summary{}, err
	}
	if out.AverageHandlingTime, err = s.AverageHandlingTime(ctx); err != nil {
		return Summary{}, err
	}
	out.AverageProcessingTime = out.AverageWaitTime + out.AverageHandlingTime

	if values.From.IsZero() {
		return out, nil
	}
	out.Bounded = true
	if out.HandledPerMinute, err = s.HandledPerMinute(ctx); err != nil {
		return Summary{}, err
	}
	if out.HandledPerHour, err = s.HandledPerHour(ctx); err != nil {
		return Summary{}, err
	}
	if out.HandledPerDay, err = s.HandledPerDay(ctx); err != nil {
		return Summary{}, err
	}
	return out, nil
}
