package main

import (
	"context"
	"io"
	"time"

	"github.com/spf13/cobra"

	"msgmon/internal/console"
	"msgmon/internal/dashboard"
	"msgmon/internal/history"
)

const snapshotListing = 10

func snapshotCmd() *cobra.Command {
	var (
		period  string
		filters filterFlags
	)

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Display a historical snapshot of processed messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePeriod(period, snapshotPeriods())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(context.Background())

			return renderSnapshot(ctx, cmd.OutOrStdout(), app, p, filters)
		},
	}

	periodFlag(cmd, &period, "period", history.InLastDay, snapshotPeriods())
	filters.bind(cmd)
	return cmd
}

func renderSnapshot(ctx context.Context, w io.Writer, app *App, period history.Period, filters filterFlags) error {
	view, err := app.service.History(ctx, dashboard.HistoryQuery{
		Input: filters.input(period),
		Limit: snapshotListing,
	})
	if err != nil {
		return err
	}

	if err := console.Snapshot(w, period, view.Summary); err != nil {
		return err
	}
	if err := console.Messages(w, "Last 10", view.Messages); err != nil {
		return err
	}

	if len(app.base.Alerts.Rules()) == 0 {
		return nil
	}
	// Rules pick their own period and status.
	in := filters.input("")
	in.Status = ""
	base, err := history.Create(in)
	if err != nil {
		return err
	}
	alerts, err := app.base.Alerts.Check(ctx, app.base.Storage, base, time.Now())
	if err != nil {
		return err
	}
	return console.Alerts(w, alerts)
}
