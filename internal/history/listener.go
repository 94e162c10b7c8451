package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"msgmon/internal/logger"
	"msgmon/internal/messenger"
	"msgmon/pkg/logging"
	"msgmon/pkg/metrics"
	"msgmon/pkg/tracing"
)

const tracerName = "msgmon-history"

// HandlerLocator reports whether any handler is registered for a message type.
type HandlerLocator interface {
	HasHandlers(messageType string) bool
}

type HandlerLocatorFunc func(messageType string) bool

func (f HandlerLocatorFunc) HasHandlers(messageType string) bool {
	return f(messageType)
}

type ListenerOption func(*Listener)

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

func WithRegistry(registry *messenger.Registry) ListenerOption {
	return func(l *Listener) {
		l.registry = registry
	}
}

// WithHandlerLocator decides "only when no handler" opt-outs. Without one,
// a message counts as handler-less when it carries no HandledStamp.
func WithHandlerLocator(locator HandlerLocator) ListenerOption {
	return func(l *Listener) {
		l.locator = locator
	}
}

func WithLogger(log logger.Logger) ListenerOption {
	return func(l *Listener) {
		l.logger = log
	}
}

// Listener records message attempts to Storage as they move through
// dispatch, receipt and completion.
type Listener struct {
	storage    Storage
	normalizer *ResultNormalizer
	registry   *messenger.Registry
	locator    HandlerLocator
	now        func() time.Time
	memory     func() uint64
	logger     logger.Logger
}

func NewListener(storage Storage, normalizer *ResultNormalizer, opts ...ListenerOption) *Listener {
	l := &Listener{
		storage:    storage,
		normalizer: normalizer,
		now:        time.Now,
		memory:     SampleMemory,
		logger:     logger.NopLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.normalizer == nil {
		l.normalizer = NewResultNormalizer("")
	}
	return l
}

func (l *Listener) Registry() *messenger.Registry {
	return l.registry
}

// OnDispatch attaches a fresh MonitorStamp. Queued mail also gets its tag
// and description from the email headers.
func (l *Listener) OnDispatch(env *messenger.Envelope) *messenger.Envelope {
	return messenger.StampEmail(env).With(NewMonitorStampAt(l.now()))
}

// OnReceive marks the stamp received on transport. Messages injected by a
// scheduler never see OnDispatch and get a stamp backdated to their trigger
// time plus the schedule tag.
func (l *Listener) OnReceive(env *messenger.Envelope, transport string) *messenger.Envelope {
	if reason, disabled := l.monitoringDisabled(env); disabled {
		l.logger.Debugw("Monitoring disabled for message", "message_type", env.MessageType(), "reason", reason)
		metrics.IncHistorySkipped(reason)
		return env
	}

	stamp, ok := messenger.Last[MonitorStamp](env)

	if scheduled, isScheduled := messenger.Last[messenger.ScheduledStamp](env); isScheduled {
		stamp, ok = NewMonitorStampAt(scheduled.TriggeredAt), true
		env = env.With(messenger.NewTagStamp(ForSchedule(scheduled.Schedule, scheduled.TaskID)))
	}

	if !ok {
		return env
	}

	return env.With(stamp.MarkReceivedAt(transport, l.now()))
}

// OnHandled records a successful attempt. Envelopes without a received
// stamp are returned unchanged.
func (l *Listener) OnHandled(ctx context.Context, env *messenger.Envelope) (*messenger.Envelope, error) {
	return l.finish(ctx, env, nil)
}

// OnFailed records a failed attempt. Nested handler errors each become a
// failure result.
func (l *Listener) OnFailed(ctx context.Context, env *messenger.Envelope, failure error) (*messenger.Envelope, error) {
	return l.finish(ctx, env, failure)
}

func (l *Listener) finish(ctx context.Context, env *messenger.Envelope, failure error) (*messenger.Envelope, error) {
	stamp, ok := messenger.Last[MonitorStamp](env)
	if !ok || !stamp.IsReceived() {
		metrics.IncHistorySkipped("not_received")
		return env, nil
	}

	finished, err := stamp.MarkFinishedAt(l.now(), l.memory())
	if err != nil {
		return env, err
	}
	env = env.With(finished)

	return env, l.save(ctx, env, l.createResults(env, failure), failure)
}

func (l *Listener) createResults(env *messenger.Envelope, failure error) Results {
	results := Results{}

	for _, handled := range messenger.All[messenger.HandledStamp](env) {
		results = append(results, Result{
			Handler: handled.HandlerName,
			Data:    l.normalizer.Normalize(handled.Result),
		})
	}

	if failure == nil {
		return results
	}

	nested := []error{failure}
	var handlerErr *messenger.HandlerFailedError
	if errors.As(failure, &handlerErr) {
		nested = handlerErr.Errors()
	}

	for _, err := range nested {
		results = append(results, Result{
			Exception: messenger.ErrorType(err),
			Message:   messenger.Unstacked(err).Error(),
			Data:      l.normalizer.Normalize(err),
		})
	}

	return results
}

func (l *Listener) save(ctx context.Context, env *messenger.Envelope, results Results, failure error) (err error) {
	msg, err := NewProcessedMessage(env, results, failure, l.registry)
	if err != nil {
		return fmt.Errorf("failed to build processed message: %w", err)
	}

	ctx = logging.WithRunID(logging.WithTransport(ctx, msg.Transport()), msg.RunID())
	ctx, span := tracing.StartSpan(ctx, tracerName, "history.save",
		attribute.String("message.type", msg.Type()),
		attribute.String("message.transport", msg.Transport()),
		attribute.Int64("message.run_id", msg.RunID()),
		attribute.Int("message.attempt", msg.Attempt()),
	)
	defer func() { tracing.EndSpan(span, err) }()

	if err = l.storage.Save(ctx, msg); err != nil {
		metrics.IncHistorySaveError(msg.Transport())
		l.logger.ErrorwCtx(ctx, "Failed to save processed message",
			"message_type", msg.Type(),
			"error", err,
		)
		return fmt.Errorf("failed to save processed message: %w", err)
	}

	status := string(Success)
	if msg.IsFailure() {
		status = string(Failed)
	}
	metrics.ObserveHistoryMessage(msg.Transport(), status, msg.TimeInQueue(), msg.TimeToHandle())
	l.logger.DebugwCtx(ctx, "Processed message saved",
		"message_type", msg.Type(),
		"status", status,
		"attempt", msg.Attempt(),
	)
	return nil
}

// monitoringDisabled checks the envelope's opt-out stamp first, then the
// declaration registered for the message type.
func (l *Listener) monitoringDisabled(env *messenger.Envelope) (string, bool) {
	if stamp, ok := messenger.Last[messenger.DisableMonitoringStamp](env); ok {
		if !stamp.OnlyWhenNoHandler || l.hasNoHandlers(env) {
			return "disabled_stamp", true
		}
		return "", false
	}

	if decl, ok := l.registry.Lookup(env.MessageType()); ok && decl.DisableMonitoring {
		if !decl.OnlyWhenNoHandler || l.hasNoHandlers(env) {
			return "disabled_type", true
		}
	}

	return "", false
}

func (l *Listener) hasNoHandlers(env *messenger.Envelope) bool {
	if l.locator != nil {
		return !l.locator.HasHandlers(env.MessageType())
	}
	return len(messenger.All[messenger.HandledStamp](env)) == 0
}
