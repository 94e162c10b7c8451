// Package schedule exposes the configured schedules and the history of
// their tasks. Tasks are joined to history through the tag produced by
// history.ForSchedule.
package schedule

import (
	"context"
	"strings"

	"msgmon/internal/config"
	"msgmon/internal/history"
	"msgmon/internal/messenger"
	"msgmon/internal/transport"
	"msgmon/internal/worker"
	"msgmon/pkg/errors"
)

// ScheduleTag matches the history of every schedule.
const ScheduleTag = "schedule"

// Trigger is the textual trigger of a task, a cron expression or an
// interval such as "every 10 minutes".
type Trigger string

func (t Trigger) String() string {
	return string(t)
}

// IsCron reports whether the trigger is a cron expression or descriptor.
func (t Trigger) IsCron() bool {
	s := strings.TrimSpace(string(t))
	if strings.HasPrefix(s, "@") {
		return true
	}
	fields := strings.Fields(s)
	return (len(fields) == 5 || len(fields) == 6) && !strings.EqualFold(fields[0], "every")
}

type Task struct {
	schedule string
	cfg      config.TaskConfig
	storage  history.Storage
}

func (t *Task) ID() string {
	return t.cfg.ID
}

func (t *Task) Schedule() string {
	return t.schedule
}

func (t *Task) MessageType() string {
	return t.cfg.MessageType
}

func (t *Task) ShortType() string {
	return messenger.ShortName(t.cfg.MessageType)
}

func (t *Task) Description() string {
	return t.cfg.Description
}

func (t *Task) Trigger() Trigger {
	return Trigger(t.cfg.Trigger)
}

// Tag is the history tag carried by messages this task produced.
func (t *Task) Tag() string {
	return history.ForSchedule(t.schedule, t.cfg.ID)
}

func (t *Task) History(spec history.Specification) *history.Snapshot {
	return spec.With(t.Tag()).Snapshot(t.storage)
}

// Info describes one schedule and its tasks.
type Info struct {
	name       string
	tasks      []config.TaskConfig
	transports *transport.Monitor
	storage    history.Storage
}

func (i *Info) Name() string {
	return i.name
}

func (i *Info) Tasks() []*Task {
	out := make([]*Task, len(i.tasks))
	for n, cfg := range i.tasks {
		out[n] = &Task{schedule: i.name, cfg: cfg, storage: i.storage}
	}
	return out
}

func (i *Info) Len() int {
	return len(i.tasks)
}

func (i *Info) Task(id string) (*Task, error) {
	for _, cfg := range i.tasks {
		if cfg.ID == id {
			return &Task{schedule: i.name, cfg: cfg, storage: i.storage}, nil
		}
	}
	return nil, errors.ErrInvalidArgument.WithMessage("task %q not found in schedule %q", id, i.name)
}

// History covers every task of the schedule, including removed ones.
func (i *Info) History(spec history.Specification) *history.Snapshot {
	return spec.With(ScheduleTag + ":" + i.name).Snapshot(i.storage)
}

func (i *Info) TransportName() string {
	return transport.SchedulerTransportName(i.name)
}

func (i *Info) Transport() (*transport.Info, error) {
	return i.transports.Get(i.TransportName())
}

func (i *Info) Workers(ctx context.Context) ([]worker.Info, error) {
	t, err := i.Transport()
	if err != nil {
		return nil, err
	}
	return t.Workers(ctx)
}

func (i *Info) IsRunning(ctx context.Context) (bool, error) {
	workers, err := i.Workers(ctx)
	return len(workers) > 0, err
}

// Monitor gives access to the configured schedules in configuration order.
type Monitor struct {
	schedules  []config.ScheduleConfig
	transports *transport.Monitor
	storage    history.Storage
}

func NewMonitor(schedules []config.ScheduleConfig, transports *transport.Monitor, storage history.Storage) *Monitor {
	return &Monitor{schedules: schedules, transports: transports, storage: storage}
}

func (m *Monitor) Names() []string {
	names := make([]string, len(m.schedules))
	for i, s := range m.schedules {
		names[i] = s.Name
	}
	return names
}

func (m *Monitor) Len() int {
	return len(m.schedules)
}

// Get returns the named schedule, or the first one when name is empty.
func (m *Monitor) Get(name string) (*Info, error) {
	if name == "" && len(m.schedules) > 0 {
		name = m.schedules[0].Name
	}
	for _, s := range m.schedules {
		if s.Name == name {
			return m.info(s), nil
		}
	}
	return nil, errors.ErrInvalidArgument.WithMessage("schedule %q does not exist", name)
}

func (m *Monitor) All() []*Info {
	out := make([]*Info, len(m.schedules))
	for i, s := range m.schedules {
		out[i] = m.info(s)
	}
	return out
}

// History covers every scheduled message.
func (m *Monitor) History(spec history.Specification) *history.Snapshot {
	return spec.With(ScheduleTag).Snapshot(m.storage)
}

// TaskTags lists the history tag of every configured task.
func (m *Monitor) TaskTags() []string {
	var tags []string
	for _, s := range m.schedules {
		for _, t := range s.Tasks {
			tags = append(tags, history.ForSchedule(s.Name, t.ID))
		}
	}
	return tags
}

func (m *Monitor) info(s config.ScheduleConfig) *Info {
	return &Info{name: s.Name, tasks: s.Tasks, transports: m.transports, storage: m.storage}
}
