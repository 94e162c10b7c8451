// Package dashboard assembles the read models served by the HTTP API and
// rendered by the CLI.
package dashboard

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"msgmon/internal/alerting"
	"msgmon/internal/constants"
	"msgmon/internal/history"
	"msgmon/internal/schedule"
	"msgmon/internal/transport"
	"msgmon/internal/worker"
	"msgmon/pkg/errors"
)

const (
	ScheduleExclude = "_exclude"
	ScheduleInclude = "_include"
)

type Service struct {
	storage    history.Storage
	workers    *worker.Monitor
	transports *transport.Monitor
	schedules  *schedule.Monitor
	alerts     *alerting.Evaluator
	now        func() time.Time
}

type ServiceOption func(*Service)

func WithAlerts(e *alerting.Evaluator) ServiceOption {
	return func(s *Service) { s.alerts = e }
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

func NewService(storage history.Storage, workers *worker.Monitor, transports *transport.Monitor, schedules *schedule.Monitor, opts ...ServiceOption) *Service {
	s := &Service{
		storage:    storage,
		workers:    workers,
		transports: transports,
		schedules:  schedules,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type TransportView struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Failure   bool   `json:"failure"`
	Queued    *int   `json:"queued,omitempty"`
	Workers   int    `json:"workers"`
	IsRunning bool   `json:"is_running"`
	Error     string `json:"error,omitempty"`
}

type WorkerView struct {
	worker.Info
	RunningForSeconds float64 `json:"running_for_seconds"`
}

type DashboardView struct {
	Workers    []WorkerView     `json:"workers"`
	Transports []TransportView  `json:"transports"`
	Summary    history.Summary  `json:"summary"`
	Recent     []history.Record `json:"recent"`
}

type HistoryQuery struct {
	history.Input
	Schedule string
	Limit    int
}

type HistoryView struct {
	Summary      history.Summary  `json:"summary"`
	Messages     []history.Record `json:"messages"`
	MessageTypes []string         `json:"message_types"`
}

type TaskView struct {
	ID          string          `json:"id"`
	MessageType string          `json:"message_type"`
	ShortType   string          `json:"short_type"`
	Description string          `json:"description,omitempty"`
	Trigger     string          `json:"trigger"`
	IsCron      bool            `json:"is_cron"`
	Tag         string          `json:"tag"`
	Summary     history.Summary `json:"summary"`
	LastRun     *history.Record `json:"last_run,omitempty"`
}

type ScheduleView struct {
	Name      string           `json:"name"`
	Transport string           `json:"transport"`
	IsRunning bool             `json:"is_running"`
	Tasks     []TaskView       `json:"tasks"`
	Summary   history.Summary  `json:"summary"`
	Recent    []history.Record `json:"recent,omitempty"`
}

// Dashboard shows the last day of history next to live worker and
// transport state.
func (s *Service) Dashboard(ctx context.Context) (*DashboardView, error) {
	workers, err := s.Workers(ctx)
	if err != nil {
		return nil, err
	}

	spec := history.ForPeriod(history.InLastDay, s.now())
	summary, err := spec.Snapshot(s.storage).Summary(ctx)
	if err != nil {
		return nil, err
	}
	recent, err := s.records(ctx, spec, constants.DefaultLimit)
	if err != nil {
		return nil, err
	}

	return &DashboardView{
		Workers:    workers,
		Transports: s.Transports(ctx, s.transports.ExcludeSync()),
		Summary:    summary,
		Recent:     recent,
	}, nil
}

// Specification resolves q against the current time.
func (s *Service) Specification(q HistoryQuery) (history.Specification, error) {
	spec, err := history.CreateAt(q.Input, s.now())
	if err != nil {
		return history.Specification{}, err
	}

	switch q.Schedule {
	case "":
	case ScheduleExclude:
		spec = spec.Without(schedule.ScheduleTag)
	case ScheduleInclude:
		spec = spec.With(schedule.ScheduleTag)
	default:
		spec = spec.With(q.Schedule)
	}
	return spec, nil
}

func (s *Service) History(ctx context.Context, q HistoryQuery) (*HistoryView, error) {
	spec, err := s.Specification(q)
	if err != nil {
		return nil, err
	}

	summary, err := spec.Snapshot(s.storage).Summary(ctx)
	if err != nil {
		return nil, err
	}
	messages, err := s.records(ctx, spec, ClampLimit(q.Limit))
	if err != nil {
		return nil, err
	}
	types, err := spec.Filters(s.storage).AvailableMessageTypes(ctx)
	if err != nil {
		return nil, err
	}

	return &HistoryView{Summary: summary, Messages: messages, MessageTypes: types}, nil
}

func (s *Service) Message(ctx context.Context, id string) (*history.Record, error) {
	m, err := s.storage.Find(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find message %s: %w", id, err)
	}
	if m == nil {
		return nil, errors.ErrNotFound.WithMessage("message %q not found", id)
	}
	r := m.Record()
	return &r, nil
}

func (s *Service) DeleteMessage(ctx context.Context, id string) error {
	if err := s.storage.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete message %s: %w", id, err)
	}
	return nil
}

func (s *Service) Workers(ctx context.Context) ([]WorkerView, error) {
	infos, err := s.workers.All(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]WorkerView, len(infos))
	for i, info := range infos {
		out[i] = WorkerView{Info: info, RunningForSeconds: info.RunningFor(now).Seconds()}
	}
	return out, nil
}

// Transports describes every transport of monitor. A failing count is
// reported on the view instead of failing the whole listing.
func (s *Service) Transports(ctx context.Context, monitor *transport.Monitor) []TransportView {
	if monitor == nil {
		monitor = s.transports
	}
	infos := monitor.All()
	out := make([]TransportView, 0, len(infos))
	for _, info := range infos {
		view := TransportView{Name: info.Name(), Kind: info.Kind(), Failure: info.IsFailure()}
		if info.IsCountable() {
			if n, err := info.Count(ctx); err != nil {
				view.Error = err.Error()
			} else {
				view.Queued = &n
			}
		}
		if workers, err := info.Workers(ctx); err == nil {
			view.Workers = len(workers)
			view.IsRunning = len(workers) > 0
		}
		out = append(out, view)
	}
	return out
}

func (s *Service) TransportMessages(ctx context.Context, name string, limit int) ([]transport.QueuedMessage, error) {
	info, err := s.transports.Get(name)
	if err != nil {
		return nil, err
	}
	return info.List(ctx, ClampLimit(limit))
}

func (s *Service) Schedules(ctx context.Context, period history.Period) ([]ScheduleView, error) {
	out := []ScheduleView{}
	for _, info := range s.schedules.All() {
		view, err := s.scheduleView(ctx, info, period, 0)
		if err != nil {
			return nil, err
		}
		out = append(out, *view)
	}
	return out, nil
}

// Schedule returns one schedule with its latest runs. An empty name selects
// the first schedule.
func (s *Service) Schedule(ctx context.Context, name string, period history.Period, limit int) (*ScheduleView, error) {
	info, err := s.schedules.Get(name)
	if err != nil {
		return nil, err
	}
	return s.scheduleView(ctx, info, period, ClampLimit(limit))
}

func (s *Service) scheduleView(ctx context.Context, info *schedule.Info, period history.Period, recent int) (*ScheduleView, error) {
	spec := history.ForPeriod(period, s.now())
	view := &ScheduleView{Name: info.Name(), Transport: info.TransportName(), Tasks: []TaskView{}}

	running, err := info.IsRunning(ctx)
	if err != nil && !errors.IsInvalidArgument(err) {
		return nil, err
	}
	view.IsRunning = running

	for _, task := range info.Tasks() {
		snapshot := task.History(spec)
		summary, err := snapshot.Summary(ctx)
		if err != nil {
			return nil, err
		}
		tv := TaskView{
			ID:          task.ID(),
			MessageType: task.MessageType(),
			ShortType:   task.ShortType(),
			Description: task.Description(),
			Trigger:     task.Trigger().String(),
			IsCron:      task.Trigger().IsCron(),
			Tag:         task.Tag(),
			Summary:     summary,
		}
		last, err := task.History(history.NewSpecification()).Messages().First(ctx)
		if err != nil {
			return nil, err
		}
		if last != nil {
			r := last.Record()
			tv.LastRun = &r
		}
		view.Tasks = append(view.Tasks, tv)
	}

	snapshot := info.History(spec)
	if view.Summary, err = snapshot.Summary(ctx); err != nil {
		return nil, err
	}
	if recent > 0 {
		if view.Recent, err = toRecords(ctx, snapshot.Messages().Take(recent)); err != nil {
			return nil, err
		}
	}
	return view, nil
}

// Alerts evaluates the configured rules. It returns an empty list when no
// rules are configured.
func (s *Service) Alerts(ctx context.Context) ([]alerting.Alert, error) {
	if s.alerts == nil {
		return []alerting.Alert{}, nil
	}
	return s.alerts.Check(ctx, s.storage, history.NewSpecification(), s.now())
}

func (s *Service) records(ctx context.Context, spec history.Specification, limit int) ([]history.Record, error) {
	return toRecords(ctx, s.storage.Filter(spec).Take(limit))
}

func toRecords(ctx context.Context, seq history.Sequence) ([]history.Record, error) {
	messages, err := seq.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	out := make([]history.Record, len(messages))
	for i, m := range messages {
		out[i] = m.Record()
	}
	return out, nil
}

// ClampLimit applies the default and maximum page sizes.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return constants.DefaultLimit
	case limit > constants.MaxLimit:
		return constants.MaxLimit
	}
	return limit
}

// ParseLimit reads a limit query value, falling back to the default.
func ParseLimit(value string) int {
	n, err := strconv.Atoi(value)
	if err != nil {
		return constants.DefaultLimit
	}
	return ClampLimit(n)
}
