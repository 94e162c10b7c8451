package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"msgmon/internal/broker"
	"msgmon/internal/console"
	"msgmon/internal/history"
	"msgmon/internal/messenger"
)

func tailCmd() *cobra.Command {
	var group string

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Follow the history event stream published by monitored workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer log.Sync()

			if cmd.Flags().Changed("group") {
				cfg.Broker.Kafka.GroupID = group
			}
			consumer, err := broker.NewEventConsumer(cfg, log)
			if err != nil {
				return err
			}
			defer consumer.Close()

			out := cmd.OutOrStdout()
			err = consumer.Consume(cmd.Context(), func(_ context.Context, event history.Event) error {
				_, err := fmt.Fprintln(out, formatEvent(event))
				return err
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&group, "group", "", "Consumer group (empty reads from the newest offset without committing)")
	return cmd
}

func formatEvent(event history.Event) string {
	var b strings.Builder
	b.WriteString(event.OccurredAt.Local().Format(console.TimeLayout))
	b.WriteString(" ")
	b.WriteString(strings.ToUpper(string(event.Kind)))

	switch event.Kind {
	case history.EventSaved:
		if m := event.Message; m != nil {
			status := "ok"
			if m.FailureType != "" {
				status = "failed: " + messenger.ShortName(m.FailureType)
			}
			fmt.Fprintf(&b, " %s run=%d attempt=%d transport=%s handled_in=%s %s",
				messenger.ShortName(m.Type),
				m.RunID,
				m.Attempt,
				m.Transport,
				console.Duration(m.FinishedAt.Sub(m.ReceivedAt)),
				status,
			)
			if len(m.Tags) > 0 {
				fmt.Fprintf(&b, " tags=%s", strings.Join(m.Tags, ","))
			}
		}
	case history.EventDeleted:
		fmt.Fprintf(&b, " id=%s", event.ID)
	case history.EventPurged:
		fmt.Fprintf(&b, " %d messages", event.Purged)
	}
	return b.String()
}
