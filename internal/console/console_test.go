package console

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"msgmon/internal/alerting"
	"msgmon/internal/dashboard"
	"msgmon/internal/history"
	"msgmon/internal/worker"
)

func TestSeconds(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "n/a"},
		{0.25, "250 ms"},
		{1, "1 second"},
		{42, "42 seconds"},
		{120, "2 minutes"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Seconds(tt.in))
		})
	}
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "n/a", Bytes(0))
	assert.Equal(t, "2MiB", Bytes(2*1024*1024))
	assert.Equal(t, "33%", FailRate(1.0/3))
	assert.Equal(t, "0.33", Rate(1.0/3))
}

func TestWorkers(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Workers(&buf, nil))
	assert.Contains(t, buf.String(), "[!] No workers running.")

	buf.Reset()
	require.NoError(t, Workers(&buf, []dashboard.WorkerView{{
		Info: worker.Info{
			Status:          worker.StatusProcessing,
			Metadata:        worker.Metadata{Transports: []string{"async", "high"}},
			MessagesHandled: 7,
			MemoryUsage:     2 * 1024 * 1024,
		},
		RunningForSeconds: 42,
	}}))
	out := buf.String()
	assert.Contains(t, out, "processing")
	assert.Contains(t, out, "42 seconds")
	assert.Contains(t, out, "async, high")
	assert.Contains(t, out, "2MiB")
}

func TestTransports(t *testing.T) {
	queued := 3
	var buf bytes.Buffer
	require.NoError(t, Transports(&buf, []dashboard.TransportView{
		{Name: "async", Queued: &queued, Workers: 2},
		{Name: "sync"},
		{Name: "redis", Error: "connection refused"},
	}))

	out := buf.String()
	assert.Contains(t, out, "QUEUED MESSAGES")
	assert.Regexp(t, `async\s+3\s+2`, out)
	assert.Regexp(t, `sync\s+n/a\s+0`, out)
	assert.Contains(t, out, "error: connection refused")
}

func TestSnapshot(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Snapshot(&buf, history.InLastDay, history.Summary{
		Total:               10,
		Failures:            2,
		FailRate:            0.2,
		AverageWaitTime:     1.5,
		AverageHandlingTime: 0,
		Bounded:             true,
		HandledPerMinute:    0.0069,
	}))

	out := buf.String()
	assert.Contains(t, out, "Historical Snapshot")
	assert.Regexp(t, `Period:\s+In Last Day`, out)
	assert.Regexp(t, `Messages Processed:\s+10 \(2 failed\)`, out)
	assert.Regexp(t, `Fail Rate:\s+20%`, out)
	assert.Regexp(t, `Avg. Wait Time:\s+1 second`, out)
	assert.Regexp(t, `Avg. Handling Time:\s+n/a`, out)
	assert.Regexp(t, `Handled Per Minute:\s+0.01`, out)
}

func TestMessages(t *testing.T) {
	finished := time.Date(2024, 3, 1, 12, 0, 0, 0, time.Local)
	records := []history.Record{
		{
			Type:         "app.SendEmail",
			Transport:    "async",
			DispatchedAt: finished.Add(-3 * time.Second),
			ReceivedAt:   finished.Add(-time.Second),
			FinishedAt:   finished,
			Tags:         []string{"mail", "urgent"},
		},
		{
			Type:         "app.Cleanup",
			Transport:    "sync",
			DispatchedAt: finished,
			ReceivedAt:   finished,
			FinishedAt:   finished,
			FailureType:  "app.Boom",
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Messages(&buf, "Last 10", records))

	out := buf.String()
	assert.Contains(t, out, "SendEmail")
	assert.Contains(t, out, "2 seconds")
	assert.Contains(t, out, "mail, urgent")
	assert.Contains(t, out, "[!] 2024-03-01 12:00:00")
	assert.Contains(t, out, "(none)")
}

func TestAlerts(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Alerts(&buf, []alerting.Alert{
		{Rule: "failures", Severity: "critical", Period: history.InLastHour, Triggered: true},
		{Rule: "slow", Severity: "warning", Period: history.InLastDay},
	}))

	out := buf.String()
	assert.Regexp(t, `failures\s+critical\s+In Last Hour\s+TRIGGERED`, out)
	assert.Regexp(t, `slow\s+warning\s+In Last Day\s+ok`, out)
}
