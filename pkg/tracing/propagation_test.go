package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestMetadataCarrier_RoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "publish")
	defer span.End()

	metadata := map[string]string{"message_type": "report"}
	InjectMetadata(ctx, metadata)

	assert.NotEmpty(t, metadata["traceparent"])
	assert.Contains(t, MetadataCarrier(metadata).Keys(), "message_type")

	extracted := ExtractMetadata(context.Background(), metadata)
	assert.Equal(t, span.SpanContext().TraceID(), trace.SpanContextFromContext(extracted).TraceID())
}

func TestMetadataCarrier_NilMetadata(t *testing.T) {
	ctx := context.Background()

	InjectMetadata(ctx, nil)
	assert.Equal(t, ctx, ExtractMetadata(ctx, nil))
}

func TestKafkaHeaders(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	assert.Nil(t, KafkaHeaders(context.Background()))

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	ctx, span := tp.Tracer("test").Start(context.Background(), "publish")
	defer span.End()

	headers := KafkaHeaders(ctx)
	if assert.Len(t, headers, 1) {
		assert.Equal(t, "traceparent", headers[0].Key)
	}

	consumed, consumer := StartKafkaSpan(context.Background(), "test", "msgmon.history", headers)
	defer consumer.End()
	assert.Equal(t, span.SpanContext().TraceID(), trace.SpanContextFromContext(consumed).TraceID())
}
