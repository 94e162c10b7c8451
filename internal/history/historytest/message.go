// Package historytest builds processed messages for tests and holds the
// behaviour every history.Storage backend must share.
package historytest

import (
	"time"

	"msgmon/internal/history"
)

const DefaultType = "app.SendReport"

type Option func(*history.Record)

// NewMessage returns a successful message finished at finishedAt that
// waited one second in the queue and took one second to handle.
func NewMessage(finishedAt time.Time, opts ...Option) *history.ProcessedMessage {
	r := history.Record{
		RunID:        1,
		Attempt:      1,
		Type:         DefaultType,
		DispatchedAt: finishedAt.Add(-2 * time.Second),
		ReceivedAt:   finishedAt.Add(-time.Second),
		FinishedAt:   finishedAt,
		Transport:    "async",
		Results:      history.Results{},
		MemoryUsage:  1 << 20,
	}
	for _, opt := range opts {
		opt(&r)
	}
	return history.FromRecord(r)
}

func WithType(messageType string) Option {
	return func(r *history.Record) { r.Type = messageType }
}

func WithTransport(transport string) Option {
	return func(r *history.Record) { r.Transport = transport }
}

func WithTags(tags ...string) Option {
	return func(r *history.Record) { r.Tags = append(r.Tags, tags...) }
}

func WithRunID(runID int64) Option {
	return func(r *history.Record) { r.RunID = runID }
}

func WithDescription(description string) Option {
	return func(r *history.Record) { r.Description = description }
}

// WithTimings moves dispatch and receipt so the message waited wait and was
// handled in handle.
func WithTimings(wait, handle time.Duration) Option {
	return func(r *history.Record) {
		r.ReceivedAt = r.FinishedAt.Add(-handle)
		r.DispatchedAt = r.ReceivedAt.Add(-wait)
	}
}

func WithResults(results ...history.Result) Option {
	return func(r *history.Record) { r.Results = append(r.Results, results...) }
}

func Failed(errorType, message string) Option {
	return func(r *history.Record) {
		r.FailureType = errorType
		r.FailureMessage = message
		r.Results = append(r.Results, history.Result{Exception: errorType, Message: message, Data: map[string]any{}})
	}
}
