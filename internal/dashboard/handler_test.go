package dashboard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"msgmon/internal/alerting"
	"msgmon/internal/config"
	"msgmon/internal/constants"
	"msgmon/internal/history"
	"msgmon/internal/history/historytest"
	"msgmon/internal/history/memstore"
	"msgmon/internal/schedule"
	"msgmon/internal/transport"
	"msgmon/internal/worker"
	"msgmon/pkg/health"
	"msgmon/pkg/jsoncodec"
	"msgmon/pkg/ratelimit"
)

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	storage *memstore.Storage
	cache   *worker.MemoryCache
	service *Service
	router  http.Handler
}

func newFixture(t *testing.T, opts RouterOptions) *fixture {
	t.Helper()
	storage := memstore.New()
	cache := worker.NewMemoryCache(time.Hour)

	schedules := []config.ScheduleConfig{{Name: "default", Tasks: []config.TaskConfig{
		{ID: "report", MessageType: "app.SendReport", Trigger: "every 1 hour"},
	}}}
	named, err := transport.FromConfig([]config.TransportConfig{
		{Name: "async", Type: constants.TransportMemory},
		{Name: "sync", Type: constants.TransportSync},
	}, schedules, transport.Dependencies{})
	require.NoError(t, err)

	workers := worker.NewMonitor(cache)
	transports := transport.NewMonitor(workers, named...)
	evaluator, err := alerting.NewEvaluator([]config.AlertConfig{
		{Name: "failures", Expression: "snapshot.failures > 0", Period: "in-last-day"},
	})
	require.NoError(t, err)

	service := NewService(storage, workers, transports, schedule.NewMonitor(schedules, transports, storage),
		WithAlerts(evaluator),
		WithClock(func() time.Time { return now }),
	)
	return &fixture{
		storage: storage,
		cache:   cache,
		service: service,
		router:  NewRouter(NewHandler(service, nil), opts, nil),
	}
}

func (f *fixture) save(t *testing.T, finishedAt time.Time, opts ...historytest.Option) *history.ProcessedMessage {
	t.Helper()
	msg := historytest.NewMessage(finishedAt, opts...)
	require.NoError(t, f.storage.Save(context.Background(), msg))
	return msg
}

func (f *fixture) get(t *testing.T, method, path string, out any) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if out != nil && rec.Code < 300 {
		require.NoError(t, jsoncodec.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

func TestHandler_Dashboard(t *testing.T) {
	f := newFixture(t, RouterOptions{})
	f.save(t, now.Add(-time.Hour))
	f.save(t, now.Add(-2*time.Hour), historytest.Failed("app.Boom", "boom"))
	f.save(t, now.Add(-48*time.Hour))
	require.NoError(t, f.cache.Set(context.Background(), worker.Info{
		ID:        "w1",
		StartTime: now.Add(-time.Minute),
		Metadata:  worker.Metadata{Transports: []string{"async"}},
	}))

	var view DashboardView
	rec := f.get(t, http.MethodGet, "/api/v1/dashboard", &view)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 2, view.Summary.Total)
	assert.Equal(t, 1, view.Summary.Failures)
	assert.Len(t, view.Recent, 2)
	require.Len(t, view.Workers, 1)
	assert.Equal(t, 60.0, view.Workers[0].RunningForSeconds)

	names := make([]string, len(view.Transports))
	for i, tr := range view.Transports {
		names[i] = tr.Name
	}
	assert.Equal(t, []string{"async", "scheduler_default"}, names)
	require.NotNil(t, view.Transports[0].Queued)
	assert.True(t, view.Transports[0].IsRunning)
}

func TestHandler_History(t *testing.T) {
	f := newFixture(t, RouterOptions{})
	f.save(t, now.Add(-time.Minute), historytest.WithType("app.A"))
	f.save(t, now.Add(-2*time.Minute), historytest.WithType("app.B"), historytest.WithTags("schedule:default:report"))
	f.save(t, now.Add(-3*time.Minute), historytest.WithType("app.A"), historytest.Failed("app.Boom", "boom"))

	tests := []struct {
		name      string
		query     string
		wantTotal int
		wantTypes []string
	}{
		{"all", "", 3, []string{"app.A", "app.B"}},
		{"failed", "?status=failed", 1, []string{"app.A"}},
		{"exclude schedules", "?schedule=_exclude", 2, []string{"app.A"}},
		{"include schedules", "?schedule=_include", 1, []string{"app.B"}},
		{"by schedule tag", "?schedule=schedule:default:report", 1, []string{"app.B"}},
		{"by type", "?type=app.A&period=in-last-hour", 2, []string{"app.A"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var view HistoryView
			rec := f.get(t, http.MethodGet, "/api/v1/history"+tt.query, &view)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.wantTotal, view.Summary.Total)
			assert.Len(t, view.Messages, tt.wantTotal)
			assert.ElementsMatch(t, tt.wantTypes, view.MessageTypes)
		})
	}
}

func TestHandler_HistoryLimit(t *testing.T) {
	f := newFixture(t, RouterOptions{})
	for i := 1; i <= 5; i++ {
		f.save(t, now.Add(-time.Duration(i)*time.Minute))
	}

	var view HistoryView
	f.get(t, http.MethodGet, "/api/v1/history?limit=2", &view)
	require.Len(t, view.Messages, 2)
	assert.Equal(t, 5, view.Summary.Total)
	assert.True(t, view.Messages[0].FinishedAt.After(view.Messages[1].FinishedAt))
}

func TestHandler_InvalidQuery(t *testing.T) {
	f := newFixture(t, RouterOptions{})

	for _, query := range []string{"?status=maybe", "?period=fortnight", "?run_id=abc"} {
		t.Run(query, func(t *testing.T) {
			rec := f.get(t, http.MethodGet, "/api/v1/history"+query, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandler_MessageLifecycle(t *testing.T) {
	f := newFixture(t, RouterOptions{})
	msg := f.save(t, now.Add(-time.Minute), historytest.WithRunID(7))

	var record history.Record
	rec := f.get(t, http.MethodGet, "/api/v1/history/"+msg.ID(), &record)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(7), record.RunID)

	rec = f.get(t, http.MethodDelete, "/api/v1/history/"+msg.ID(), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.get(t, http.MethodGet, "/api/v1/history/"+msg.ID(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOT_FOUND")
}

func TestHandler_Schedules(t *testing.T) {
	f := newFixture(t, RouterOptions{})
	f.save(t, now.Add(-time.Hour), historytest.WithTags(history.ForSchedule("default", "report")))
	f.save(t, now.Add(-30*time.Minute), historytest.WithTags(history.ForSchedule("default", "report")))

	var views []ScheduleView
	rec := f.get(t, http.MethodGet, "/api/v1/schedules", &views)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, views, 1)
	assert.Equal(t, "scheduler_default", views[0].Transport)
	require.Len(t, views[0].Tasks, 1)
	assert.Equal(t, 2, views[0].Tasks[0].Summary.Total)
	require.NotNil(t, views[0].Tasks[0].LastRun)
	assert.True(t, views[0].Tasks[0].LastRun.FinishedAt.Equal(now.Add(-30*time.Minute)))
	assert.Empty(t, views[0].Recent)

	var view ScheduleView
	rec = f.get(t, http.MethodGet, "/api/v1/schedules/default?limit=1", &view)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, view.Recent, 1)

	rec = f.get(t, http.MethodGet, "/api/v1/schedules/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_TransportsAndWorkers(t *testing.T) {
	f := newFixture(t, RouterOptions{})

	var transports []TransportView
	rec := f.get(t, http.MethodGet, "/api/v1/transports", &transports)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, transports, 3)

	rec = f.get(t, http.MethodGet, "/api/v1/transports/sync/messages", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var messages []transport.QueuedMessage
	rec = f.get(t, http.MethodGet, "/api/v1/transports/async/messages", &messages)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, messages)

	var workers []WorkerView
	rec = f.get(t, http.MethodGet, "/api/v1/workers", &workers)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, workers)
}

func TestHandler_Alerts(t *testing.T) {
	f := newFixture(t, RouterOptions{})
	f.save(t, now.Add(-time.Hour), historytest.Failed("app.Boom", "boom"))

	var alerts []alerting.Alert
	rec := f.get(t, http.MethodGet, "/api/v1/alerts", &alerts)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, alerts, 1)
	assert.Equal(t, "failures", alerts[0].Rule)
	assert.True(t, alerts[0].Triggered)
}

func TestRouter_Health(t *testing.T) {
	registry := health.NewCheckerRegistry()
	registry.Register(health.NewCheckFunc("storage", func(context.Context) error { return nil }))
	f := newFixture(t, RouterOptions{Health: registry})

	var h health.Health
	rec := f.get(t, http.MethodGet, "/health", &h)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, health.StatusHealthy, h.Status)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRouter_RateLimit(t *testing.T) {
	limiters := ratelimit.NewLimiters(ratelimit.RateLimitConfig{RPS: 0.001, Burst: 1, CleanupInterval: time.Minute, MaxAge: time.Minute})
	f := newFixture(t, RouterOptions{Limiters: limiters})

	assert.Equal(t, http.StatusOK, f.get(t, http.MethodGet, "/api/v1/workers", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, f.get(t, http.MethodGet, "/api/v1/workers", nil).Code)
	assert.Equal(t, http.StatusOK, f.get(t, http.MethodGet, "/health", nil).Code)
}
