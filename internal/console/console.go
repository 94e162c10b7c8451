// Package console renders monitor state as plain text tables for the CLI.
package console

import (
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/docker/go-units"

	"msgmon/internal/alerting"
	"msgmon/internal/dashboard"
	"msgmon/internal/history"
	"msgmon/internal/messenger"
)

const (
	TimeLayout = "2006-01-02 15:04:05"
	notApplied = "n/a"
)

// Table is a titled tabular block written through a tabwriter.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
	// Empty replaces the rows when there are none.
	Empty string
}

func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

func (t *Table) Render(w io.Writer) error {
	if err := t.title(w); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(t.Headers, "\t"))
	if len(t.Rows) == 0 && t.Empty != "" {
		fmt.Fprintln(tw, t.Empty)
	}
	for _, row := range t.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w)
	return err
}

// Horizontal renders a single-row table as header/value pairs.
func (t *Table) Horizontal(w io.Writer) error {
	if err := t.title(w); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, h := range t.Headers {
		value := ""
		if len(t.Rows) > 0 && i < len(t.Rows[0]) {
			value = t.Rows[0][i]
		}
		fmt.Fprintf(tw, "%s:\t%s\n", h, value)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w)
	return err
}

func (t *Table) title(w io.Writer) error {
	if t.Title == "" {
		return nil
	}
	_, err := fmt.Fprintf(w, "%s\n%s\n", t.Title, strings.Repeat("=", len(t.Title)))
	return err
}

// Seconds formats a duration given in seconds. Zero reads as n/a.
func Seconds(seconds float64) string {
	if seconds <= 0 {
		return notApplied
	}
	return Duration(time.Duration(seconds * float64(time.Second)))
}

func Duration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%d ms", d.Milliseconds())
	}
	return units.HumanDuration(d)
}

func Bytes(n uint64) string {
	if n == 0 {
		return notApplied
	}
	return units.BytesSize(float64(n))
}

func Rate(v float64) string {
	return fmt.Sprintf("%.2f", math.Round(v*100)/100)
}

// FailRate rounds to a whole percentage.
func FailRate(rate float64) string {
	return fmt.Sprintf("%.0f%%", math.Round(rate*100))
}

func Workers(w io.Writer, workers []dashboard.WorkerView) error {
	t := &Table{
		Title:   "Workers",
		Headers: []string{"STATUS", "UP TIME", "TRANSPORTS", "QUEUES", "MESSAGES", "MEMORY"},
		Empty:   "[!] No workers running.",
	}
	for _, v := range workers {
		queues := strings.Join(v.Metadata.Queues, ", ")
		if queues == "" {
			queues = notApplied
		}
		t.AddRow(
			string(v.Status),
			Seconds(v.RunningForSeconds),
			strings.Join(v.Metadata.Transports, ", "),
			queues,
			fmt.Sprint(v.MessagesHandled),
			Bytes(v.MemoryUsage),
		)
	}
	return t.Render(w)
}

func Transports(w io.Writer, transports []dashboard.TransportView) error {
	t := &Table{
		Title:   "Transports",
		Headers: []string{"NAME", "QUEUED MESSAGES", "WORKERS"},
		Empty:   "[!] No transports configured.",
	}
	for _, v := range transports {
		queued := notApplied
		switch {
		case v.Error != "":
			queued = "error: " + v.Error
		case v.Queued != nil:
			queued = fmt.Sprint(*v.Queued)
		}
		t.AddRow(v.Name, queued, fmt.Sprint(v.Workers))
	}
	return t.Render(w)
}

func Snapshot(w io.Writer, period history.Period, s history.Summary) error {
	total := fmt.Sprint(s.Total)
	if s.Failures > 0 {
		total = fmt.Sprintf("%d (%d failed)", s.Total, s.Failures)
	}

	perMinute, perHour, perDay := notApplied, notApplied, notApplied
	if s.Bounded {
		perMinute, perHour, perDay = Rate(s.HandledPerMinute), Rate(s.HandledPerHour), Rate(s.HandledPerDay)
	}

	t := &Table{
		Title: "Historical Snapshot",
		Headers: []string{
			"Period",
			"Messages Processed",
			"Fail Rate",
			"Avg. Wait Time",
			"Avg. Handling Time",
			"Handled Per Minute",
			"Handled Per Hour",
			"Handled Per Day",
		},
	}
	t.AddRow(
		period.Humanize(),
		total,
		FailRate(s.FailRate),
		Seconds(s.AverageWaitTime),
		Seconds(s.AverageHandlingTime),
		perMinute,
		perHour,
		perDay,
	)
	return t.Horizontal(w)
}

func Messages(w io.Writer, title string, records []history.Record) error {
	t := &Table{
		Title:   title,
		Headers: []string{"TYPE", "TRANSPORT", "TIME IN QUEUE", "TIME TO HANDLE", "HANDLED AT", "TAGS"},
		Empty:   "(no messages)",
	}
	for _, r := range records {
		handledAt := r.FinishedAt.Local().Format(TimeLayout)
		if r.FailureType != "" {
			handledAt = "[!] " + handledAt
		}
		tags := history.NewTags(r.Tags...).Implode(", ")
		if tags == "" {
			tags = "(none)"
		}
		t.AddRow(
			messenger.ShortName(r.Type),
			r.Transport,
			Duration(r.ReceivedAt.Sub(r.DispatchedAt)),
			Duration(r.FinishedAt.Sub(r.ReceivedAt)),
			handledAt,
			tags,
		)
	}
	return t.Render(w)
}

func Alerts(w io.Writer, alerts []alerting.Alert) error {
	t := &Table{
		Title:   "Alerts",
		Headers: []string{"RULE", "SEVERITY", "PERIOD", "STATE"},
		Empty:   "(no alert rules)",
	}
	for _, a := range alerts {
		state := "ok"
		if a.Triggered {
			state = "TRIGGERED"
		}
		t.AddRow(a.Rule, a.Severity, a.Period.Humanize(), state)
	}
	return t.Render(w)
}
