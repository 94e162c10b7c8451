package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"msgmon/internal/config"
	apperrors "msgmon/pkg/errors"
)

// Policy bounds an exponential backoff. MaxAttempts counts the first call.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxElapsedTime  time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
		MaxElapsedTime:  5 * time.Minute,
	}
}

// FromConfig overlays the configured values on DefaultPolicy.
func FromConfig(cfg config.RetryConfig) Policy {
	policy := DefaultPolicy()
	if cfg.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.InitialInterval > 0 {
		policy.InitialInterval = cfg.InitialInterval
	}
	if cfg.MaxInterval > 0 {
		policy.MaxInterval = cfg.MaxInterval
	}
	if cfg.Multiplier > 0 {
		policy.Multiplier = cfg.Multiplier
	}
	if cfg.MaxElapsedTime > 0 {
		policy.MaxElapsedTime = cfg.MaxElapsedTime
	}
	return policy
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialInterval
	exp.MaxInterval = p.MaxInterval
	exp.Multiplier = p.Multiplier
	exp.MaxElapsedTime = p.MaxElapsedTime

	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultPolicy().MaxAttempts
	}
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(attempts-1)), ctx)
}

// Notify is called before each wait with the failed attempt number, starting
// at 1, its error and the delay until the next attempt.
type Notify func(attempt int, err error, next time.Duration)

// Do calls fn until it succeeds, the policy is exhausted or ctx is done.
// Errors that report themselves fatal through IsFatal stop immediately and
// are returned unwrapped.
func Do(ctx context.Context, policy Policy, fn func() error, notify Notify) error {
	attempt := 0
	operation := func() error {
		attempt++
		err := fn()
		var fatal apperrors.FatalError
		if err != nil && errors.As(err, &fatal) && fatal.IsFatal() {
			return backoff.Permanent(err)
		}
		return err
	}

	var onRetry backoff.Notify
	if notify != nil {
		onRetry = func(err error, next time.Duration) {
			notify(attempt, err, next)
		}
	}
	return backoff.RetryNotify(operation, policy.backOff(ctx), onRetry)
}
