package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"msgmon/internal/history"
)

// filterFlags are the history filters shared by snapshot and purge.
type filterFlags struct {
	status      string
	messageType string
	transport   string
	tags        []string
	notTags     []string
}

func (f *filterFlags) bind(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.status, "status", "", `Status, "failed" or "success"`)
	flags.StringVar(&f.messageType, "type", "", "Message type")
	flags.StringVar(&f.transport, "transport", "", "Transport")
	flags.StringArrayVar(&f.tags, "tag", nil, "Tag(s)")
	flags.StringArrayVar(&f.notTags, "not-tag", nil, `"Not" tag(s)`)
}

func (f *filterFlags) input(period history.Period) history.Input {
	return history.Input{
		Period:      string(period),
		Status:      f.status,
		MessageType: f.messageType,
		Transport:   f.transport,
		Tags:        f.tags,
		NotTags:     f.notTags,
	}
}

// periodFlag registers a period flag restricted to periods.
func periodFlag(cmd *cobra.Command, target *string, name string, def history.Period, periods []history.Period) {
	values := history.PeriodValues(periods)
	cmd.Flags().StringVar(target, name, string(def), fmt.Sprintf("Period (%s)", strings.Join(values, ", ")))
	_ = cmd.RegisterFlagCompletionFunc(name, cobra.FixedCompletions(values, cobra.ShellCompDirectiveNoFileComp))
}

// parsePeriod rejects values outside periods.
func parsePeriod(value string, periods []history.Period) (history.Period, error) {
	p, err := history.ParsePeriodOrFail(value)
	if err != nil {
		return "", err
	}
	for _, allowed := range periods {
		if p == allowed {
			return p, nil
		}
	}
	return "", fmt.Errorf("period %q is not allowed here (expected one of %s)",
		value, strings.Join(history.PeriodValues(periods), ", "))
}

func snapshotPeriods() []history.Period {
	return append(history.InLastPeriods(), history.AbsolutePeriods()...)
}
