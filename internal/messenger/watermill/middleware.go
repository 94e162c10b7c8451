package watermill

import (
	"context"
	"errors"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"

	"msgmon/internal/history"
	"msgmon/internal/logger"
	"msgmon/internal/messenger"
	"msgmon/internal/worker"
	"msgmon/pkg/logging"
	"msgmon/pkg/tracing"
)

type resultsKey struct{}

type recorder struct {
	mu      sync.Mutex
	results []any
}

func (r *recorder) add(v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, v)
}

func (r *recorder) stamps(handler string) []messenger.Stamp {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.results) == 0 {
		return []messenger.Stamp{messenger.HandledStamp{HandlerName: handler}}
	}
	out := make([]messenger.Stamp, len(r.results))
	for i, v := range r.results {
		out[i] = messenger.HandledStamp{HandlerName: handler, Result: v}
	}
	return out
}

// RecordResult attaches v to the history record of the message being
// handled. It reports false when ctx does not come from Middleware.
func RecordResult(ctx context.Context, v any) bool {
	r, ok := ctx.Value(resultsKey{}).(*recorder)
	if !ok {
		return false
	}
	r.add(v)
	return true
}

type MiddlewareOption func(*middlewareOptions)

type middlewareOptions struct {
	transport string
	logger    logger.Logger
}

// WithTransport overrides the transport name recorded for messages. The
// subscribe topic is used by default.
func WithTransport(name string) MiddlewareOption {
	return func(o *middlewareOptions) {
		o.transport = name
	}
}

func WithLogger(log logger.Logger) MiddlewareOption {
	return func(o *middlewareOptions) {
		o.logger = log
	}
}

// Middleware records the outcome of every handled message through listener.
// Save failures are returned to the router alongside any handler error.
func Middleware(listener *history.Listener, opts ...MiddlewareOption) message.HandlerMiddleware {
	o := middlewareOptions{logger: logger.NopLogger()}
	for _, opt := range opts {
		opt(&o)
	}

	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			ctx := tracing.ExtractMetadata(msg.Context(), msg.Metadata)
			ctx = logging.WithMessageID(ctx, msg.UUID)

			env, err := Decode(msg)
			if err != nil {
				o.logger.WarnwCtx(ctx, "Skipping history for undecodable message", "error", err)
				return h(msg)
			}

			transport := o.transport
			if transport == "" {
				transport = message.SubscribeTopicFromCtx(msg.Context())
			}
			env = listener.OnReceive(env, transport)

			rec := &recorder{}
			ctx = context.WithValue(ctx, resultsKey{}, rec)
			msg.SetContext(ctx)

			produced, handlerErr := h(msg)

			var saveErr error
			if handlerErr != nil {
				env, saveErr = listener.OnFailed(ctx, env, messenger.NewHandlerFailedError(handlerErr))
				env = env.With(messenger.RedeliveryStamp{RetryCount: Redeliveries(msg.Metadata) + 1})
			} else {
				env = env.With(rec.stamps(message.HandlerNameFromCtx(msg.Context()))...)
				env, saveErr = listener.OnHandled(ctx, env)
			}

			if err := Encode(env, msg.Metadata); err != nil {
				o.logger.WarnwCtx(ctx, "Failed to write monitoring metadata", "error", err)
			}

			return produced, errors.Join(handlerErr, saveErr)
		}
	}
}

// WorkerMiddleware reports the worker as processing while a handler runs.
// Cache errors are logged and never fail the message.
func WorkerMiddleware(l *worker.Listener, log logger.Logger) message.HandlerMiddleware {
	if log == nil {
		log = logger.NopLogger()
	}
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			ctx := msg.Context()
			if err := l.Processing(ctx); err != nil {
				log.WarnwCtx(ctx, "Failed to report worker status", "status", worker.StatusProcessing, "error", err)
			}
			defer func() {
				if err := l.Idle(ctx, true); err != nil {
					log.WarnwCtx(ctx, "Failed to report worker status", "status", worker.StatusIdle, "error", err)
				}
			}()
			return h(msg)
		}
	}
}
