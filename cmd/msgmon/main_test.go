package main

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"msgmon/internal/history"
)

func TestRootCmd_Commands(t *testing.T) {
	root := newRootCmd()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "status", "snapshot", "purge", "schedule-purge", "migrate", "tail"}, names)
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		periods []history.Period
		want    history.Period
		wantErr bool
	}{
		{"in last", "in-last-hour", snapshotPeriods(), history.InLastHour, false},
		{"absolute", "yesterday", snapshotPeriods(), history.Yesterday, false},
		{"older than rejected for snapshots", "1-month", snapshotPeriods(), "", true},
		{"older than", "1-week", history.OlderThanPeriods(), history.OlderThan1Week, false},
		{"in last rejected for purge", "in-last-day", history.OlderThanPeriods(), "", true},
		{"unknown", "fortnight", snapshotPeriods(), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePeriod(tt.value, tt.periods)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilterFlags_Input(t *testing.T) {
	var f filterFlags
	cmd := &cobra.Command{Use: "x", RunE: func(*cobra.Command, []string) error { return nil }}
	f.bind(cmd)
	require.NoError(t, cmd.ParseFlags([]string{
		"--status", "failed",
		"--type", "app.SendEmail",
		"--tag", "mail", "--tag", "urgent",
		"--not-tag", "schedule",
	}))

	in := f.input(history.InLastDay)
	assert.Equal(t, history.Input{
		Period:      "in-last-day",
		Status:      "failed",
		MessageType: "app.SendEmail",
		Tags:        []string{"mail", "urgent"},
		NotTags:     []string{"schedule"},
	}, in)
}

func TestFormatEvent(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.Local)

	tests := []struct {
		name  string
		event history.Event
		want  []string
	}{
		{
			name: "saved",
			event: history.Event{Kind: history.EventSaved, OccurredAt: at, Message: &history.Record{
				Type:       "app.SendEmail",
				RunID:      42,
				Attempt:    2,
				Transport:  "async",
				ReceivedAt: at.Add(-3 * time.Second),
				FinishedAt: at,
				Tags:       []string{"mail"},
			}},
			want: []string{"2024-03-01 12:00:00 SAVED SendEmail", "run=42", "attempt=2", "transport=async", "handled_in=3 seconds", "ok", "tags=mail"},
		},
		{
			name: "saved failure",
			event: history.Event{Kind: history.EventSaved, OccurredAt: at, Message: &history.Record{
				Type:        "app.Cleanup",
				FailureType: "app.Boom",
				ReceivedAt:  at,
				FinishedAt:  at,
			}},
			want: []string{"Cleanup", "failed: Boom"},
		},
		{"deleted", history.Event{Kind: history.EventDeleted, OccurredAt: at, ID: "m1"}, []string{"DELETED id=m1"}},
		{"purged", history.Event{Kind: history.EventPurged, OccurredAt: at, Purged: 3}, []string{"PURGED 3 messages"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := formatEvent(tt.event)
			for _, want := range tt.want {
				assert.Contains(t, line, want)
			}
		})
	}
}
