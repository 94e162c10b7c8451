// Package logging carries per-message log fields through a context.
package logging

import (
	"context"
)

const (
	TraceIDKey   = "trace_id"
	MessageIDKey = "message_id"
	RunIDKey     = "run_id"
	TransportKey = "transport"
)

type fieldsKey struct{}

type field struct {
	key   string
	value interface{}
}

// with returns a context whose fields hold key=value. An existing key keeps
// its position and takes the new value. The parent's fields are never
// mutated.
func with(ctx context.Context, key string, value interface{}) context.Context {
	parent, _ := ctx.Value(fieldsKey{}).([]field)
	fields := make([]field, 0, len(parent)+1)
	replaced := false
	for _, f := range parent {
		if f.key == key {
			f.value = value
			replaced = true
		}
		fields = append(fields, f)
	}
	if !replaced {
		fields = append(fields, field{key: key, value: value})
	}
	return context.WithValue(ctx, fieldsKey{}, fields)
}

func lookup(ctx context.Context, key string) interface{} {
	fields, _ := ctx.Value(fieldsKey{}).([]field)
	for _, f := range fields {
		if f.key == key {
			return f.value
		}
	}
	return nil
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return with(ctx, TraceIDKey, traceID)
}

func WithMessageID(ctx context.Context, messageID string) context.Context {
	return with(ctx, MessageIDKey, messageID)
}

// WithRunID adds the run id of the message being processed. Zero run ids
// belong to unsaved messages and are ignored.
func WithRunID(ctx context.Context, runID int64) context.Context {
	if runID == 0 {
		return ctx
	}
	return with(ctx, RunIDKey, runID)
}

func WithTransport(ctx context.Context, transport string) context.Context {
	return with(ctx, TransportKey, transport)
}

func GetTraceID(ctx context.Context) string {
	v, _ := lookup(ctx, TraceIDKey).(string)
	return v
}

// GetLogFields returns the fields of ctx as alternating keys and values, in
// the order they were first added.
func GetLogFields(ctx context.Context) []interface{} {
	fields, _ := ctx.Value(fieldsKey{}).([]field)
	out := make([]interface{}, 0, 2*len(fields))
	for _, f := range fields {
		if s, ok := f.value.(string); ok && s == "" {
			continue
		}
		out = append(out, f.key, f.value)
	}
	return out
}
