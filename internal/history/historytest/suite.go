package historytest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"msgmon/internal/history"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func at(minutes int) time.Time {
	return base.Add(time.Duration(minutes) * time.Minute)
}

// RunStorageTests exercises the query semantics shared by all backends.
// newStorage must return an empty storage for every call.
func RunStorageTests(t *testing.T, newStorage func(t *testing.T) history.Storage) {
	t.Run("SaveFindDelete", func(t *testing.T) { testSaveFindDelete(t, newStorage(t)) })
	t.Run("FilterOrdering", func(t *testing.T) { testFilterOrdering(t, newStorage(t)) })
	t.Run("FilterPaging", func(t *testing.T) { testFilterPaging(t, newStorage(t)) })
	t.Run("Predicates", func(t *testing.T) { testPredicates(t, newStorage(t)) })
	t.Run("PeriodWithScheduleTag", func(t *testing.T) { testPeriodWithScheduleTag(t, newStorage(t)) })
	t.Run("TagsAreCaseSensitive", func(t *testing.T) { testTagsAreCaseSensitive(t, newStorage(t)) })
	t.Run("SubMillisecondBounds", func(t *testing.T) { testSubMillisecondBounds(t, newStorage(t)) })
	t.Run("Purge", func(t *testing.T) { testPurge(t, newStorage(t)) })
	t.Run("Averages", func(t *testing.T) { testAverages(t, newStorage(t)) })
	t.Run("AvailableMessageTypes", func(t *testing.T) { testAvailableMessageTypes(t, newStorage(t)) })
}

func save(t *testing.T, storage history.Storage, messages ...*history.ProcessedMessage) {
	t.Helper()
	for _, m := range messages {
		require.NoError(t, storage.Save(context.Background(), m))
	}
}

func finishTimes(t *testing.T, seq history.Sequence) []time.Time {
	t.Helper()
	messages, err := seq.Collect(context.Background())
	require.NoError(t, err)
	out := make([]time.Time, len(messages))
	for i, m := range messages {
		out[i] = m.FinishedAt()
	}
	return out
}

func testSaveFindDelete(t *testing.T, storage history.Storage) {
	ctx := context.Background()
	msg := NewMessage(at(1),
		WithTags("reports", "schedule:daily:cleanup"),
		WithDescription("daily report"),
		WithRunID(77),
		WithResults(history.Result{Handler: "app.ReportHandler::Handle", Data: map[string]any{"sent": "yes"}}),
		Failed("*app.TimeoutError", "timed out"),
	)
	save(t, storage, msg)
	require.NotEmpty(t, msg.ID())

	found, err := storage.Find(ctx, msg.ID())
	require.NoError(t, err)
	require.NotNil(t, found)

	assert.Equal(t, msg.ID(), found.ID())
	assert.Equal(t, int64(77), found.RunID())
	assert.Equal(t, DefaultType, found.Type())
	assert.Equal(t, "daily report", found.Description())
	assert.Equal(t, "async", found.Transport())
	assert.Equal(t, []string{"reports", "schedule:daily:cleanup"}, found.Tags().All())
	assert.True(t, found.FinishedAt().Equal(at(1)))
	assert.Equal(t, time.Second, found.TimeInQueue())
	assert.Equal(t, time.Second, found.TimeToHandle())
	assert.Equal(t, uint64(1<<20), found.MemoryUsage())
	assert.Equal(t, &history.Failure{Type: "*app.TimeoutError", Message: "timed out"}, found.Failure())
	require.Equal(t, 2, found.Results().Len())
	assert.Equal(t, "yes", found.Results().Successes()[0].Data["sent"])
	assert.Equal(t, "timed out", found.Results().Failures()[0].Message)

	missing, err := storage.Find(ctx, "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, storage.Delete(ctx, msg.ID()))
	require.NoError(t, storage.Delete(ctx, msg.ID()), "deleting twice is a no-op")
	require.NoError(t, storage.Delete(ctx, "does-not-exist"))

	gone, err := storage.Find(ctx, msg.ID())
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func testFilterOrdering(t *testing.T, storage history.Storage) {
	save(t, storage, NewMessage(at(1)), NewMessage(at(3)), NewMessage(at(2)))

	assert.Equal(t, []time.Time{at(3), at(2), at(1)}, finishTimes(t, storage.Filter(history.NewSpecification())))
	assert.Equal(t, []time.Time{at(1), at(2), at(3)}, finishTimes(t, storage.Filter(history.NewSpecification().Ascending())))
}

func testFilterPaging(t *testing.T, storage history.Storage) {
	ctx := context.Background()
	for i := range 5 {
		save(t, storage, NewMessage(at(i)))
	}
	seq := storage.Filter(history.NewSpecification()).WithPageSize(2)

	assert.Len(t, finishTimes(t, seq), 5)
	assert.Equal(t, []time.Time{at(4), at(3), at(2)}, finishTimes(t, seq.Take(3)))

	first, err := seq.First(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.True(t, first.FinishedAt().Equal(at(4)))

	assert.Len(t, finishTimes(t, seq), 5, "sequences are restartable")
}

func testPredicates(t *testing.T, storage history.Storage) {
	save(t, storage,
		NewMessage(at(1), WithType("A"), WithTags("schedule:daily:cleanup"), WithRunID(10)),
		NewMessage(at(2), WithType("B"), WithTransport("sync"), WithTags("reports"), Failed("E", "boom")),
		NewMessage(at(3), WithType("A"), Failed("E", "boom")),
		NewMessage(at(4), WithType("A"), WithTags("schedule:weekly:x", "reports")),
	)

	spec := history.NewSpecification()
	tests := []struct {
		name string
		spec history.Specification
		want int
	}{
		{"all", spec, 4},
		{"from is inclusive", spec.From(at(2)), 3},
		{"to is inclusive", spec.To(at(2)), 2},
		{"window", spec.From(at(2)).To(at(3)), 2},
		{"successes", spec.Successes(), 2},
		{"failures", spec.Failures(), 2},
		{"message type", spec.For("B"), 1},
		{"transport", spec.On("sync"), 1},
		{"run id", spec.ForRun(10), 1},
		{"tag root", spec.With("schedule"), 2},
		{"tag prefix", spec.With("schedule:daily"), 1},
		{"tag partial segment", spec.With("schedule:dai"), 0},
		{"all tags required", spec.With("schedule", "reports"), 1},
		{"untagged satisfies without", spec.Without("schedule"), 2},
		{"without reports", spec.Without("reports"), 2},
		{"with and without", spec.With("reports").Without("schedule"), 1},
		{"combined", spec.For("A").Failures().From(at(2)), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count, err := storage.Count(context.Background(), tt.spec)
			require.NoError(t, err)
			assert.Equal(t, tt.want, count)
			assert.Len(t, finishTimes(t, storage.Filter(tt.spec)), tt.want)
		})
	}
}

func testPeriodWithScheduleTag(t *testing.T, storage history.Storage) {
	now := time.Now()
	for i := range 10 {
		save(t, storage, NewMessage(now.Add(-time.Duration(i+1)*time.Minute), WithTags(history.ForSchedule("daily", "cleanup"))))
	}
	for i := range 5 {
		save(t, storage, NewMessage(now.Add(-time.Duration(i+1)*time.Minute), WithTags(history.ForSchedule("daily", "other"))))
	}

	spec, err := history.Create(history.Input{Period: "in-last-day"})
	require.NoError(t, err)

	count, err := storage.Count(context.Background(), spec.With(history.ForSchedule("daily", "cleanup")))
	require.NoError(t, err)
	assert.Equal(t, 10, count)
}

func testTagsAreCaseSensitive(t *testing.T, storage history.Storage) {
	ctx := context.Background()
	save(t, storage, NewMessage(at(1), WithTags("billing", "schedule:daily:cleanup")))

	tests := []struct {
		name   string
		spec   history.Specification
		expect int
	}{
		{"exact", history.NewSpecification().With("billing"), 1},
		{"upper", history.NewSpecification().With("BILLING"), 0},
		{"title", history.NewSpecification().With("Billing"), 0},
		{"prefix upper", history.NewSpecification().With("Schedule:daily"), 0},
		{"without upper", history.NewSpecification().Without("BILLING"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count, err := storage.Count(ctx, tt.spec)
			require.NoError(t, err)
			assert.Equal(t, tt.expect, count)
		})
	}

	purged, err := storage.Purge(ctx, history.NewSpecification().With("Billing"))
	require.NoError(t, err)
	assert.Zero(t, purged)

	total, err := storage.Count(ctx, history.NewSpecification())
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func testSubMillisecondBounds(t *testing.T, storage history.Storage) {
	ctx := context.Background()
	save(t, storage, NewMessage(at(1)), NewMessage(at(2)))

	tests := []struct {
		name   string
		spec   history.Specification
		expect int
	}{
		{"from inside finish millisecond", history.NewSpecification().From(at(1).Add(500 * time.Microsecond)), 2},
		{"to inside finish millisecond", history.NewSpecification().To(at(2).Add(999 * time.Microsecond)), 2},
		{"to before finish millisecond", history.NewSpecification().To(at(2).Add(-500 * time.Microsecond)), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count, err := storage.Count(ctx, tt.spec)
			require.NoError(t, err)
			assert.Equal(t, tt.expect, count)
		})
	}
}

func testPurge(t *testing.T, storage history.Storage) {
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		save(t, storage, NewMessage(at(i), WithTags("purge-me")))
	}
	save(t, storage, NewMessage(at(1), WithTags("keep-me")))

	purged, err := storage.Purge(ctx, history.NewSpecification().With("purge-me").To(at(2)).Descending())
	require.NoError(t, err)
	assert.Equal(t, 2, purged)

	remaining, err := storage.Count(ctx, history.NewSpecification().With("purge-me"))
	require.NoError(t, err)
	assert.Equal(t, 3, remaining)

	total, err := storage.Count(ctx, history.NewSpecification())
	require.NoError(t, err)
	assert.Equal(t, 4, total)

	none, err := storage.Purge(ctx, history.NewSpecification().For("unknown"))
	require.NoError(t, err)
	assert.Zero(t, none)
}

func testAverages(t *testing.T, storage history.Storage) {
	ctx := context.Background()
	save(t, storage,
		NewMessage(at(1), WithTimings(time.Second, 2*time.Second)),
		NewMessage(at(2), WithTimings(3*time.Second, 4*time.Second)),
	)

	wait, ok, err := storage.AverageWaitTime(ctx, history.NewSpecification())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, 2.0, wait, 0.001)

	handling, ok, err := storage.AverageHandlingTime(ctx, history.NewSpecification())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, 3.0, handling, 0.001)

	_, ok, err = storage.AverageWaitTime(ctx, history.NewSpecification().For("unknown"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func testAvailableMessageTypes(t *testing.T, storage history.Storage) {
	save(t, storage,
		NewMessage(at(1), WithType("B")),
		NewMessage(at(2), WithType("A")),
		NewMessage(at(3), WithType("A"), Failed("E", "boom")),
	)

	types, err := storage.AvailableMessageTypes(context.Background(), history.NewSpecification())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A", "B"}, types)

	failed, err := storage.AvailableMessageTypes(context.Background(), history.NewSpecification().Failures())
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, failed)
}
