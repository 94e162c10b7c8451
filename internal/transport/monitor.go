package transport

import (
	"slices"
	"strings"

	"msgmon/internal/worker"
	"msgmon/pkg/errors"
)

type filter func(name string, t Transport) bool

// Monitor is an immutable, filterable view over the configured transports.
// Every filter method returns a new Monitor.
type Monitor struct {
	transports []Named
	workers    *worker.Monitor
	filters    []filter
}

func NewMonitor(workers *worker.Monitor, transports ...Named) *Monitor {
	return &Monitor{
		transports: slices.Clone(transports),
		workers:    workers,
	}
}

func (m *Monitor) Countable() *Monitor {
	return m.with(func(_ string, t Transport) bool {
		_, ok := t.(MessageCounter)
		return ok
	})
}

func (m *Monitor) Listable() *Monitor {
	return m.with(func(_ string, t Transport) bool {
		_, ok := t.(MessageLister)
		return ok
	})
}

func (m *Monitor) ExcludeSync() *Monitor {
	return m.with(func(_ string, t Transport) bool {
		_, ok := t.(*SyncTransport)
		return !ok
	})
}

func (m *Monitor) ExcludeSchedules() *Monitor {
	return m.with(func(_ string, t Transport) bool {
		_, ok := t.(*SchedulerTransport)
		return !ok
	})
}

func (m *Monitor) ExcludeFailed() *Monitor {
	return m.with(func(name string, _ Transport) bool {
		return !isFailure(name)
	})
}

func (m *Monitor) with(f filter) *Monitor {
	clone := *m
	clone.filters = append(slices.Clone(m.filters), f)
	return &clone
}

func (m *Monitor) accepts(n Named) bool {
	for _, f := range m.filters {
		if !f(n.Name, n.Transport) {
			return false
		}
	}
	return true
}

// Names lists the transports passing every filter in configuration order.
func (m *Monitor) Names() []string {
	names := make([]string, 0, len(m.transports))
	for _, n := range m.transports {
		if m.accepts(n) {
			names = append(names, n.Name)
		}
	}
	return names
}

func (m *Monitor) Len() int {
	return len(m.Names())
}

// Get looks a transport up by name, ignoring filters.
func (m *Monitor) Get(name string) (*Info, error) {
	for _, n := range m.transports {
		if n.Name == name {
			return newInfo(n, m.workers), nil
		}
	}
	return nil, errors.ErrInvalidArgument.WithMessage("transport %q does not exist", name)
}

func (m *Monitor) All() []*Info {
	out := make([]*Info, 0, len(m.transports))
	for _, n := range m.transports {
		if m.accepts(n) {
			out = append(out, newInfo(n, m.workers))
		}
	}
	return out
}

// Failure returns the first transport whose name marks it as a failure
// queue, ignoring filters.
func (m *Monitor) Failure() (*Info, bool) {
	for _, n := range m.transports {
		if isFailure(n.Name) {
			return newInfo(n, m.workers), true
		}
	}
	return nil, false
}

func isFailure(name string) bool {
	return strings.Contains(name, "fail")
}
