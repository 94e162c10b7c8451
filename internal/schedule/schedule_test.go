package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"msgmon/internal/config"
	"msgmon/internal/history"
	"msgmon/internal/history/historytest"
	"msgmon/internal/history/memstore"
	"msgmon/internal/transport"
	"msgmon/internal/worker"
	"msgmon/pkg/errors"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

var testSchedules = []config.ScheduleConfig{
	{Name: "daily", Tasks: []config.TaskConfig{
		{ID: "cleanup", MessageType: "app.Cleanup", Trigger: "0 3 * * *"},
		{ID: "report", MessageType: "app.SendReport", Trigger: "every 1 hour", Description: "hourly report"},
	}},
	{Name: "weekly", Tasks: []config.TaskConfig{
		{ID: "digest", MessageType: "app.Digest", Trigger: "@weekly"},
	}},
}

type fixture struct {
	cache    *worker.MemoryCache
	storage  *memstore.Storage
	monitor  *Monitor
	purger   *Purger
	tagCount func(tag string) int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cache := worker.NewMemoryCache(time.Minute)
	storage := memstore.New()
	named, err := transport.FromConfig(nil, testSchedules, transport.Dependencies{})
	require.NoError(t, err)
	transports := transport.NewMonitor(worker.NewMonitor(cache), named...)
	monitor := NewMonitor(testSchedules, transports, storage)

	return &fixture{
		cache:   cache,
		storage: storage,
		monitor: monitor,
		purger:  NewPurger(monitor, storage, nil),
		tagCount: func(tag string) int {
			n, err := storage.Count(context.Background(), history.NewSpecification().With(tag))
			require.NoError(t, err)
			return n
		},
	}
}

func (f *fixture) save(t *testing.T, n int, tags ...string) {
	t.Helper()
	for i := 1; i <= n; i++ {
		msg := historytest.NewMessage(base.Add(time.Duration(i)*time.Minute), historytest.WithTags(tags...))
		require.NoError(t, f.storage.Save(context.Background(), msg))
	}
}

func TestMonitor_Get(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, []string{"daily", "weekly"}, f.monitor.Names())
	assert.Equal(t, 2, f.monitor.Len())
	assert.Len(t, f.monitor.All(), 2)

	first, err := f.monitor.Get("")
	require.NoError(t, err)
	assert.Equal(t, "daily", first.Name())

	weekly, err := f.monitor.Get("weekly")
	require.NoError(t, err)
	assert.Equal(t, 1, weekly.Len())

	_, err = f.monitor.Get("monthly")
	assert.True(t, errors.IsInvalidArgument(err))

	_, err = NewMonitor(nil, nil, f.storage).Get("")
	assert.True(t, errors.IsInvalidArgument(err))
}

func TestInfo_Tasks(t *testing.T) {
	f := newFixture(t)
	daily, err := f.monitor.Get("daily")
	require.NoError(t, err)

	tasks := daily.Tasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, "schedule:daily:cleanup", tasks[0].Tag())
	assert.Equal(t, "Cleanup", tasks[0].ShortType())

	report, err := daily.Task("report")
	require.NoError(t, err)
	assert.Equal(t, "hourly report", report.Description())
	assert.Equal(t, "daily", report.Schedule())
	assert.False(t, report.Trigger().IsCron())

	_, err = daily.Task("missing")
	assert.True(t, errors.IsInvalidArgument(err))
}

func TestInfo_Transport(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	daily, err := f.monitor.Get("daily")
	require.NoError(t, err)

	tr, err := daily.Transport()
	require.NoError(t, err)
	assert.Equal(t, "scheduler_daily", tr.Name())

	running, err := daily.IsRunning(ctx)
	require.NoError(t, err)
	assert.False(t, running)

	require.NoError(t, f.cache.Set(ctx, worker.Info{ID: "w1", Metadata: worker.Metadata{Transports: []string{"scheduler_daily"}}}))
	running, err = daily.IsRunning(ctx)
	require.NoError(t, err)
	assert.True(t, running)
}

func TestHistory_FiltersBySchedule(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.save(t, 3, "schedule:daily:cleanup")
	f.save(t, 2, "schedule:daily:report")
	f.save(t, 1, "schedule:weekly:digest")
	f.save(t, 4, "manual")

	total, err := f.monitor.History(history.NewSpecification()).TotalCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, total)

	daily, err := f.monitor.Get("daily")
	require.NoError(t, err)
	total, err = daily.History(history.NewSpecification()).TotalCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, total)

	cleanup, err := daily.Task("cleanup")
	require.NoError(t, err)
	total, err = cleanup.History(history.NewSpecification()).TotalCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

func TestPurger_PurgeTaskKeepsNewest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.save(t, 5, "schedule:daily:cleanup")

	daily, err := f.monitor.Get("daily")
	require.NoError(t, err)
	cleanup, err := daily.Task("cleanup")
	require.NoError(t, err)

	purged, err := f.purger.PurgeTask(ctx, cleanup, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, purged)
	assert.Equal(t, 3, f.tagCount(cleanup.Tag()))

	oldest, err := f.storage.Filter(history.NewSpecification().With(cleanup.Tag()).Ascending()).First(ctx)
	require.NoError(t, err)
	assert.True(t, oldest.FinishedAt().Equal(base.Add(3*time.Minute)))
}

func TestPurger_PurgeTaskBounds(t *testing.T) {
	tests := []struct {
		name       string
		stored     int
		keep       int
		wantPurged int
	}{
		{"fewer than keep", 2, 3, 0},
		{"exactly keep", 3, 3, 0},
		{"keep one", 4, 1, 3},
		{"keep none", 4, 0, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.save(t, tt.stored, "schedule:weekly:digest")
			weekly, err := f.monitor.Get("weekly")
			require.NoError(t, err)

			purged, err := f.purger.PurgeTask(context.Background(), weekly.Tasks()[0], tt.keep)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPurged, purged)
			assert.Equal(t, tt.stored-tt.wantPurged, f.tagCount("schedule:weekly:digest"))
		})
	}
}

func TestPurger_NegativeKeep(t *testing.T) {
	f := newFixture(t)
	weekly, err := f.monitor.Get("weekly")
	require.NoError(t, err)

	_, err = f.purger.PurgeTask(context.Background(), weekly.Tasks()[0], -1)
	assert.True(t, errors.IsValidation(err))
}

func TestPurger_PurgeSchedule(t *testing.T) {
	f := newFixture(t)
	f.save(t, 5, "schedule:daily:cleanup")
	f.save(t, 4, "schedule:daily:report")
	f.save(t, 5, "schedule:weekly:digest")

	daily, err := f.monitor.Get("daily")
	require.NoError(t, err)
	purged, err := f.purger.PurgeSchedule(context.Background(), daily, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, purged)
	assert.Equal(t, 2, f.tagCount("schedule:daily:cleanup"))
	assert.Equal(t, 2, f.tagCount("schedule:daily:report"))
	assert.Equal(t, 5, f.tagCount("schedule:weekly:digest"))
}

func TestPurger_RemoveOrphans(t *testing.T) {
	f := newFixture(t)
	f.save(t, 2, "schedule:daily:cleanup")
	f.save(t, 3, "schedule:daily:removed")
	f.save(t, 1, "schedule:retired:task")
	f.save(t, 2, "manual")

	purged, err := f.purger.RemoveOrphans(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, purged)
	assert.Equal(t, 2, f.tagCount("schedule"))
	assert.Equal(t, 2, f.tagCount("manual"))
}

func TestTrigger_IsCron(t *testing.T) {
	tests := []struct {
		trigger Trigger
		want    bool
	}{
		{"0 3 * * *", true},
		{"*/5 * * * * *", true},
		{"@daily", true},
		{"every 10 minutes", false},
		{"every 1 2 3 4", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.trigger.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.trigger.IsCron())
		})
	}
}
