package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"msgmon/internal/messenger"
	"msgmon/pkg/errors"
)

func TestSpecification_BuildersDoNotMutate(t *testing.T) {
	base := NewSpecification().With("a").Without("b")
	before := base.Values()
	now := time.Now()

	builders := map[string]func(Specification) Specification{
		"From":       func(s Specification) Specification { return s.From(now) },
		"To":         func(s Specification) Specification { return s.To(now) },
		"For":        func(s Specification) Specification { return s.For("type") },
		"On":         func(s Specification) Specification { return s.On("async") },
		"With":       func(s Specification) Specification { return s.With("c") },
		"Without":    func(s Specification) Specification { return s.Without("d") },
		"Successes":  func(s Specification) Specification { return s.Successes() },
		"Failures":   func(s Specification) Specification { return s.Failures() },
		"Ascending":  func(s Specification) Specification { return s.Ascending() },
		"ForRun":     func(s Specification) Specification { return s.ForRun(7) },
		"AnyStatus":  func(s Specification) Specification { return s.Failures().AnyStatus() },
		"Descending": func(s Specification) Specification { return s.Ascending().Descending() },
	}

	for name, build := range builders {
		t.Run(name, func(t *testing.T) {
			_ = build(base)
			assert.Equal(t, before, base.Values())
		})
	}
}

func TestSpecification_Values(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	spec := NewSpecification().
		From(from).
		Failures().
		For("type").
		On("async").
		With("a", "b", "a").
		Without("c").
		Ascending().
		ForRun(9)

	assert.Equal(t, Values{
		From:        from,
		Status:      Failed,
		MessageType: "type",
		Transport:   "async",
		Tags:        []string{"a", "b"},
		NotTags:     []string{"c"},
		Sort:        SortAsc,
		RunID:       9,
	}, spec.Values())

	assert.Equal(t, SortDesc, Specification{}.Values().Sort)
	assert.Equal(t, []string{}, NewSpecification().Values().Tags)
}

func TestCreateAt(t *testing.T) {
	now := time.Date(2024, 3, 13, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		input   Input
		expect  Values
		wantErr bool
	}{
		{
			name:   "empty",
			expect: NewSpecification().Values(),
		},
		{
			name:   "period",
			input:  Input{Period: "in-last-day"},
			expect: NewSpecification().From(now.Add(-24 * time.Hour)).Values(),
		},
		{
			name:   "explicit from overrides period",
			input:  Input{Period: "today", From: "2024-03-13T10:00:00Z"},
			expect: NewSpecification().From(time.Date(2024, 3, 13, 10, 0, 0, 0, time.UTC)).To(time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)).Values(),
		},
		{
			name:   "presets",
			input:  Input{From: OneMonthAgo, To: OneHourAgo},
			expect: NewSpecification().From(now.Add(-30 * 24 * time.Hour)).To(now.Add(-time.Hour)).Values(),
		},
		{
			name:   "date only",
			input:  Input{From: "2024-03-01"},
			expect: NewSpecification().From(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)).Values(),
		},
		{
			name:  "filters",
			input: Input{Status: "success", MessageType: "t", Transport: "async", Tags: []string{"x"}, NotTags: []string{"y"}, Sort: "ASC", RunID: 4},
			expect: NewSpecification().Successes().For("t").On("async").With("x").Without("y").Ascending().ForRun(4).Values(),
		},
		{name: "bad period", input: Input{Period: "fortnight"}, wantErr: true},
		{name: "bad status", input: Input{Status: "ok"}, wantErr: true},
		{name: "bad date", input: Input{From: "yesterday-ish"}, wantErr: true},
		{name: "bad sort", input: Input{Sort: "random"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := CreateAt(tt.input, now)
			if tt.wantErr {
				assert.True(t, errors.IsValidation(err), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expect, spec.Values())
		})
	}
}

func TestSpecification_Matches(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	env := finishedEnvelope(t, base, time.Second, time.Second, messenger.NewTagStamp("schedule:daily:cleanup", "foobar"))
	msg, err := NewProcessedMessage(env, nil, nil, nil)
	require.NoError(t, err)
	finished := msg.FinishedAt()

	tests := []struct {
		name  string
		spec  Specification
		match bool
	}{
		{"empty", NewSpecification(), true},
		{"from inclusive", NewSpecification().From(finished), true},
		{"from after", NewSpecification().From(finished.Add(time.Millisecond)), false},
		{"to inclusive", NewSpecification().To(finished), true},
		{"to before", NewSpecification().To(finished.Add(-time.Millisecond)), false},
		{"from same millisecond", NewSpecification().From(finished.Add(500 * time.Microsecond)), true},
		{"to earlier millisecond", NewSpecification().To(finished.Add(-500 * time.Microsecond)), false},
		{"successes", NewSpecification().Successes(), true},
		{"failures", NewSpecification().Failures(), false},
		{"type", NewSpecification().For(msg.Type()), true},
		{"other type", NewSpecification().For("other"), false},
		{"transport", NewSpecification().On("async"), true},
		{"other transport", NewSpecification().On("sync"), false},
		{"run", NewSpecification().ForRun(msg.RunID()), true},
		{"other run", NewSpecification().ForRun(msg.RunID() + 1), false},
		{"tag prefix", NewSpecification().With("schedule:daily"), true},
		{"all tags", NewSpecification().With("schedule", "foobar"), true},
		{"partial segment", NewSpecification().With("foo"), false},
		{"without other", NewSpecification().Without("foo"), true},
		{"without matching", NewSpecification().Without("schedule"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.match, tt.spec.Matches(msg))
		})
	}
}

func TestSpecification_WithoutMatchesUntagged(t *testing.T) {
	msg, err := NewProcessedMessage(finishedEnvelope(t, time.Now(), 0, 0), nil, nil, nil)
	require.NoError(t, err)

	assert.True(t, NewSpecification().Without("schedule").Matches(msg))
	assert.False(t, NewSpecification().With("schedule").Matches(msg))
}

func TestSpecification_BoundsTruncateToStorageUnit(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		in     time.Time
		expect time.Time
	}{
		{"zero", time.Time{}, time.Time{}},
		{"whole millisecond", base.Add(3 * time.Millisecond), base.Add(3 * time.Millisecond)},
		{"sub millisecond", base.Add(3*time.Millisecond + 999*time.Microsecond), base.Add(3 * time.Millisecond)},
		{"nanoseconds", base.Add(42), base},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := NewSpecification().From(tt.in).To(tt.in).Values()
			assert.True(t, tt.expect.Equal(values.From), "from %s", values.From)
			assert.True(t, tt.expect.Equal(values.To), "to %s", values.To)
		})
	}
}
