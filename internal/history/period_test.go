package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"msgmon/pkg/errors"
)

func TestParsePeriod(t *testing.T) {
	assert.Equal(t, Today, ParsePeriod("today", InLastDay))
	assert.Equal(t, InLastDay, ParsePeriod("invalid", InLastDay))
	assert.Equal(t, AllTime, ParsePeriod("", AllTime))

	p, err := ParsePeriodOrFail("1-week")
	require.NoError(t, err)
	assert.Equal(t, OlderThan1Week, p)

	_, err = ParsePeriodOrFail("fortnight")
	assert.True(t, errors.IsValidation(err))
}

func TestPeriods(t *testing.T) {
	assert.Len(t, Periods(), 13)
	assert.Equal(t, []string{"in-last-hour", "in-last-day", "in-last-week", "in-last-month"}, PeriodValues(InLastPeriods()))
	for _, p := range Periods() {
		assert.NotEmpty(t, p.Humanize(), p)
	}
	assert.Equal(t, "Older Than 1 Month", OlderThan1Month.Humanize())
	assert.Equal(t, "All Time", AllTime.Humanize())
}

func TestPeriod_Timestamps(t *testing.T) {
	// Wednesday.
	now := time.Date(2024, 3, 13, 15, 30, 0, 0, time.UTC)
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }
	var none time.Time

	tests := []struct {
		period   Period
		from, to time.Time
	}{
		{InLastHour, now.Add(-time.Hour), none},
		{InLastDay, now.Add(-24 * time.Hour), none},
		{InLastWeek, day(2024, 3, 6).Add(15*time.Hour + 30*time.Minute), none},
		{InLastMonth, day(2024, 2, 13).Add(15*time.Hour + 30*time.Minute), none},
		{Today, day(2024, 3, 13), day(2024, 3, 14)},
		{Yesterday, day(2024, 3, 12), day(2024, 3, 13)},
		{LastWeek, day(2024, 3, 3), day(2024, 3, 10)},
		{LastMonth, day(2024, 2, 1), day(2024, 3, 1)},
		{AllTime, none, none},
		{OlderThan1Hour, none, now.Add(-time.Hour)},
		{OlderThan1Day, none, now.Add(-24 * time.Hour)},
		{OlderThan1Week, none, day(2024, 3, 6).Add(15*time.Hour + 30*time.Minute)},
		{OlderThan1Month, none, day(2024, 2, 13).Add(15*time.Hour + 30*time.Minute)},
	}

	for _, tt := range tests {
		t.Run(tt.period.String(), func(t *testing.T) {
			from, to := tt.period.Timestamps(now)
			assert.Equal(t, tt.from, from)
			assert.Equal(t, tt.to, to)
		})
	}
}

func TestPeriod_LastWeekOnSunday(t *testing.T) {
	sunday := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

	from, to := LastWeek.Timestamps(sunday)

	assert.Equal(t, time.Date(2024, 2, 25, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC), to)
}
