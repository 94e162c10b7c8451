package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"msgmon/internal/constants"
	"msgmon/internal/history"
	"msgmon/internal/schedule"
)

func purgeCmd() *cobra.Command {
	var (
		olderThan        string
		excludeSchedules bool
		filters          filterFlags
	)

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Purge processed message history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePeriod(olderThan, history.OlderThanPeriods())
			if err != nil {
				return err
			}

			in := filters.input(p)
			if excludeSchedules {
				in.NotTags = append(in.NotTags, schedule.ScheduleTag)
			}
			spec, err := history.Create(in)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(context.Background())

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Purging processed messages %s\n", p.Humanize())
			purged, err := app.base.Storage.Purge(ctx, spec)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "[OK] Purged %d processed messages.\n", purged)
			return nil
		},
	}

	periodFlag(cmd, &olderThan, "older-than", history.OlderThan1Month, history.OlderThanPeriods())
	cmd.Flags().BoolVar(&excludeSchedules, "exclude-schedules", false, "Do not purge schedule history")
	filters.bind(cmd)
	return cmd
}

func schedulePurgeCmd() *cobra.Command {
	var (
		keep          int
		removeOrphans bool
	)

	cmd := &cobra.Command{
		Use:   "schedule-purge [schedule...]",
		Short: "Purge schedule task history, keeping the latest runs of each task",
		Long: "Purges task history for the given schedules (all by default) keeping the latest\n" +
			"--keep runs of each task. --remove-orphans also removes history of tasks that are\n" +
			"no longer configured.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if keep < 0 {
				return fmt.Errorf("--keep must not be negative, got %d", keep)
			}

			ctx := cmd.Context()
			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(context.Background())

			schedules := app.base.Schedules
			purger := schedule.NewPurger(schedules, app.base.Storage, app.logger)
			out := cmd.OutOrStdout()

			names := args
			if len(names) == 0 {
				names = schedules.Names()
			}
			for _, name := range names {
				info, err := schedules.Get(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Purging tasks from schedule %s, keeping latest %d\n", name, keep)
				purged, err := purger.PurgeSchedule(ctx, info, keep)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "[OK] Purged %d tasks\n", purged)
			}

			if !removeOrphans {
				return nil
			}
			fmt.Fprintln(out, "Removing orphaned task histories")
			purged, err := purger.RemoveOrphans(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "[OK] Removed %d orphaned task histories\n", purged)
			return nil
		},
	}

	cmd.Flags().IntVar(&keep, "keep", constants.DefaultKeep, "Number of task histories to keep")
	cmd.Flags().BoolVar(&removeOrphans, "remove-orphans", false, "Remove task histories no longer attached to a schedule")
	return cmd
}
