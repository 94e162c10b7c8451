package tracing

import (
	"context"
	"sort"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MetadataCarrier adapts string metadata maps, such as watermill message
// metadata, to the OpenTelemetry propagator.
type MetadataCarrier map[string]string

func (c MetadataCarrier) Get(key string) string {
	return c[key]
}

func (c MetadataCarrier) Set(key, value string) {
	c[key] = value
}

func (c MetadataCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

func InjectMetadata(ctx context.Context, metadata map[string]string) {
	if metadata == nil {
		return
	}
	otel.GetTextMapPropagator().Inject(ctx, MetadataCarrier(metadata))
}

func ExtractMetadata(ctx context.Context, metadata map[string]string) context.Context {
	if metadata == nil {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, MetadataCarrier(metadata))
}

// KafkaHeaders returns the propagation headers of the span in ctx, sorted by
// key. It returns nil when there is nothing to propagate.
func KafkaHeaders(ctx context.Context) []kafka.Header {
	carrier := MetadataCarrier{}
	InjectMetadata(ctx, carrier)
	if len(carrier) == 0 {
		return nil
	}

	headers := make([]kafka.Header, 0, len(carrier))
	for k, v := range carrier {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	sort.Slice(headers, func(i, j int) bool { return headers[i].Key < headers[j].Key })
	return headers
}

// StartKafkaSpan continues the trace carried by headers, if any, with a
// consumer span for topic.
func StartKafkaSpan(ctx context.Context, tracer, topic string, headers []kafka.Header) (context.Context, trace.Span) {
	carrier := make(MetadataCarrier, len(headers))
	for _, h := range headers {
		carrier[h.Key] = string(h.Value)
	}
	ctx = ExtractMetadata(ctx, carrier)
	return Tracer(tracer).Start(ctx, "kafka.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(attribute.String("messaging.destination.name", topic)),
	)
}

// StartSpan starts a span on the named tracer with the given attributes.
func StartSpan(ctx context.Context, tracer, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer(tracer).Start(ctx, operation, trace.WithAttributes(attrs...))
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
