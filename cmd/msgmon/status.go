package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"msgmon/internal/console"
	"msgmon/internal/constants"
	"msgmon/internal/history"
)

const clearScreen = "\033[H\033[2J"

func statusCmd() *cobra.Command {
	var (
		period string
		once   bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Display a status overview of workers, transports and recent history",
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

			w := cmd.OutOrStdout()
			if once || !isatty.IsTerminal(os.Stdout.Fd()) {
				return renderStatus(ctx, w, app, p)
			}
			return watchStatus(ctx, w, app, p)
		},
	}

	periodFlag(cmd, &period, "period", history.InLastDay, snapshotPeriods())
	cmd.Flags().BoolVar(&once, "once", false, "Render once instead of refreshing")
	return cmd
}

// watchStatus redraws the overview every second until ctx is done.
func watchStatus(ctx context.Context, w io.Writer, app *App, period history.Period) error {
	ticker := time.NewTicker(constants.StatusRefreshEvery)
	defer ticker.Stop()

	for {
		fmt.Fprint(w, clearScreen)
		if err := renderStatus(ctx, w, app, period); err != nil {
			return err
		}
		fmt.Fprintln(w, "! [NOTE] Press CTRL+C to quit")

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func renderStatus(ctx context.Context, w io.Writer, app *App, period history.Period) error {
	workers, err := app.service.Workers(ctx)
	if err != nil {
		return err
	}
	if err := console.Workers(w, workers); err != nil {
		return err
	}
	if err := console.Transports(w, app.service.Transports(ctx, nil)); err != nil {
		return err
	}

	from, to := period.Timestamps(time.Now())
	summary, err := history.NewSpecification().From(from).To(to).Snapshot(app.base.Storage).Summary(ctx)
	if err != nil {
		return err
	}
	return console.Snapshot(w, period, summary)
}
