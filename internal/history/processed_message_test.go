package history

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"msgmon/internal/messenger"
)

type reportMessage struct{ name string }

func (r reportMessage) String() string { return "report " + r.name }

// finishedEnvelope returns an envelope dispatched at base, received after
// wait and finished handle later.
func finishedEnvelope(t *testing.T, base time.Time, wait, handle time.Duration, stamps ...messenger.Stamp) *messenger.Envelope {
	t.Helper()
	stamp, err := NewMonitorStampAt(base).
		MarkReceivedAt("async", base.Add(wait)).
		MarkFinishedAt(base.Add(wait+handle), 1024)
	require.NoError(t, err)
	return messenger.NewEnvelope(reportMessage{name: "daily"}, append(stamps, stamp)...)
}

func TestNewProcessedMessage_Success(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	env := finishedEnvelope(t, base, time.Second, 2*time.Second, messenger.NewTagStamp("foo", "bar"))
	results := Results{{Handler: "ReportHandler", Data: map[string]any{"x": int64(1)}}}

	msg, err := NewProcessedMessage(env, results, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, time.Second, msg.TimeInQueue())
	assert.Equal(t, 2*time.Second, msg.TimeToHandle())
	assert.Equal(t, 3*time.Second, msg.TimeToProcess())
	assert.False(t, msg.IsFailure())
	assert.Nil(t, msg.Failure())
	assert.Len(t, msg.Results().Successes(), 1)
	assert.Equal(t, 1, msg.Attempt())
	assert.Equal(t, "async", msg.Transport())
	assert.Equal(t, Tags{"foo", "bar"}, msg.Tags())
	assert.Equal(t, "msgmon/internal/history.reportMessage", msg.Type())
	assert.Equal(t, "report daily", msg.Description())
	assert.Equal(t, uint64(1024), msg.MemoryUsage())
	assert.Empty(t, msg.ID())
}

func TestNewProcessedMessage_RedeliveredFailure(t *testing.T) {
	base := time.Now()
	boom := errors.New("boom")
	env := finishedEnvelope(t, base, 0, time.Millisecond, messenger.RedeliveryStamp{RetryCount: 2})
	n := NewResultNormalizer("")
	results := Results{{Exception: messenger.ErrorType(boom), Message: boom.Error(), Data: n.Normalize(boom)}}

	msg, err := NewProcessedMessage(env, results, messenger.NewHandlerFailedError(boom), nil)
	require.NoError(t, err)

	assert.Equal(t, 3, msg.Attempt())
	assert.True(t, msg.IsFailure())
	require.Len(t, msg.Results().Failures(), 1)
	assert.Equal(t, "*errors.errorString", msg.Results().Failures()[0].Exception)
	assert.Equal(t, "boom", msg.Results().Failures()[0].Message)
	assert.Equal(t, "*messenger.HandlerFailedError", msg.Failure().Type)
	assert.Equal(t, "handling failed: boom", msg.Failure().Message)
}

func TestNewProcessedMessage_Description(t *testing.T) {
	base := time.Now()
	registry := messenger.NewRegistry()
	registry.Register("msgmon/internal/history.reportMessage", messenger.Declaration{Description: "declared", Tags: []string{"reports"}})

	tests := []struct {
		name     string
		stamps   []messenger.Stamp
		registry *messenger.Registry
		expect   string
	}{
		{"stamp wins", []messenger.Stamp{messenger.DescriptionStamp{Value: "stamped"}}, registry, "stamped"},
		{"registry", nil, registry, "declared"},
		{"stringer fallback", nil, nil, "report daily"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewProcessedMessage(finishedEnvelope(t, base, 0, 0, tt.stamps...), nil, nil, tt.registry)
			require.NoError(t, err)
			assert.Equal(t, tt.expect, msg.Description())
		})
	}
}

func TestNewProcessedMessage_RequiresCompletedStamp(t *testing.T) {
	tests := []struct {
		name   string
		env    *messenger.Envelope
		expect error
	}{
		{"missing", messenger.NewEnvelope("x"), ErrMissingStamp},
		{"dispatched only", messenger.NewEnvelope("x", NewMonitorStamp()), ErrNotReceived},
		{"received only", messenger.NewEnvelope("x", NewMonitorStamp().MarkReceived("async")), ErrNotFinished},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProcessedMessage(tt.env, nil, nil, nil)
			assert.True(t, errors.Is(err, tt.expect), "got %v", err)
		})
	}
}

func TestProcessedMessage_ClampsClockSkew(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	stamp, err := NewMonitorStampAt(base).
		MarkReceivedAt("async", base.Add(-5*time.Second)).
		MarkFinishedAt(base.Add(-6*time.Second), 0)
	require.NoError(t, err)

	msg, err := NewProcessedMessage(messenger.NewEnvelope("x", stamp), nil, nil, nil)
	require.NoError(t, err)

	assert.Zero(t, msg.TimeInQueue())
	assert.Zero(t, msg.TimeToHandle())
	assert.Equal(t, msg.TimeInQueue()+msg.TimeToHandle(), msg.TimeToProcess())
}

func TestProcessedMessage_RecordRoundTrip(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.UTC)
	msg, err := NewProcessedMessage(finishedEnvelope(t, base, time.Second, time.Second, messenger.NewTagStamp("a")), Results{{Handler: "h", Data: map[string]any{}}}, errors.New("x"), nil)
	require.NoError(t, err)

	stored := msg.WithID("42")
	restored := FromRecord(stored.Record())

	assert.Equal(t, stored, restored)
	assert.Equal(t, base.Truncate(time.Millisecond), restored.DispatchedAt())
	assert.Empty(t, msg.ID(), "WithID must not modify the receiver")
}
