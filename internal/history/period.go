package history

import (
	"time"

	"msgmon/pkg/errors"
)

// Period is a named time window resolved against "now" on every call.
type Period string

const (
	InLastHour      Period = "in-last-hour"
	InLastDay       Period = "in-last-day"
	InLastWeek      Period = "in-last-week"
	InLastMonth     Period = "in-last-month"
	Today           Period = "today"
	Yesterday       Period = "yesterday"
	LastWeek        Period = "last-week"
	LastMonth       Period = "last-month"
	AllTime         Period = "all"
	OlderThan1Hour  Period = "1-hour"
	OlderThan1Day   Period = "1-day"
	OlderThan1Week  Period = "1-week"
	OlderThan1Month Period = "1-month"
)

var periodLabels = map[Period]string{
	InLastHour:      "In Last Hour",
	InLastDay:       "In Last Day",
	InLastWeek:      "In Last Week",
	InLastMonth:     "In Last Month",
	Today:           "Today",
	Yesterday:       "Yesterday",
	LastWeek:        "Last Week",
	LastMonth:       "Last Month",
	AllTime:         "All Time",
	OlderThan1Hour:  "Older Than 1 Hour",
	OlderThan1Day:   "Older Than 1 Day",
	OlderThan1Week:  "Older Than 1 Week",
	OlderThan1Month: "Older Than 1 Month",
}

func InLastPeriods() []Period {
	return []Period{InLastHour, InLastDay, InLastWeek, InLastMonth}
}

func AbsolutePeriods() []Period {
	return []Period{Today, Yesterday, LastWeek, LastMonth, AllTime}
}

func OlderThanPeriods() []Period {
	return []Period{OlderThan1Hour, OlderThan1Day, OlderThan1Week, OlderThan1Month}
}

// Periods lists every preset in display order.
func Periods() []Period {
	out := InLastPeriods()
	out = append(out, AbsolutePeriods()...)
	return append(out, OlderThanPeriods()...)
}

func PeriodValues(periods []Period) []string {
	out := make([]string, len(periods))
	for i, p := range periods {
		out[i] = string(p)
	}
	return out
}

// ParsePeriod falls back to def when value is not a known preset.
func ParsePeriod(value string, def Period) Period {
	p, err := ParsePeriodOrFail(value)
	if err != nil {
		return def
	}
	return p
}

func ParsePeriodOrFail(value string) (Period, error) {
	p := Period(value)
	if _, ok := periodLabels[p]; !ok {
		return "", errors.ErrValidation.WithMessage("invalid period %q", value)
	}
	return p, nil
}

func (p Period) String() string {
	return string(p)
}

func (p Period) Humanize() string {
	return periodLabels[p]
}

// Timestamps resolves the window relative to now. A zero time means unbounded.
func (p Period) Timestamps(now time.Time) (from, to time.Time) {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch p {
	case InLastHour:
		return now.Add(-time.Hour), time.Time{}
	case InLastDay:
		return now.Add(-24 * time.Hour), time.Time{}
	case InLastWeek:
		return now.AddDate(0, 0, -7), time.Time{}
	case InLastMonth:
		return now.AddDate(0, -1, 0), time.Time{}
	case Today:
		return midnight, midnight.AddDate(0, 0, 1)
	case Yesterday:
		return midnight.AddDate(0, 0, -1), midnight
	case LastWeek:
		end := lastSunday(midnight)
		return end.AddDate(0, 0, -7), end
	case LastMonth:
		thisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return thisMonth.AddDate(0, -1, 0), thisMonth
	case OlderThan1Hour:
		return time.Time{}, now.Add(-time.Hour)
	case OlderThan1Day:
		return time.Time{}, now.Add(-24 * time.Hour)
	case OlderThan1Week:
		return time.Time{}, now.AddDate(0, 0, -7)
	case OlderThan1Month:
		return time.Time{}, now.AddDate(0, -1, 0)
	}
	return time.Time{}, time.Time{}
}

// lastSunday is the most recent Sunday strictly before midnight's day.
func lastSunday(midnight time.Time) time.Time {
	days := int(midnight.Weekday())
	if days == 0 {
		days = 7
	}
	return midnight.AddDate(0, 0, -days)
}
