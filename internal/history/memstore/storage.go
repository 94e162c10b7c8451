// Package memstore keeps processed messages in process memory.
package memstore

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"msgmon/internal/constants"
	"msgmon/internal/history"
	"msgmon/pkg/ids"
	"msgmon/pkg/metrics"
)

type entry struct {
	seq     uint64
	message *history.ProcessedMessage
}

// Storage is a history.Storage backed by a map. It is meant for tests and
// single-process setups where losing history on restart is acceptable.
type Storage struct {
	mu      sync.RWMutex
	entries map[string]entry
	seq     uint64
}

var _ history.Storage = (*Storage)(nil)

func New() *Storage {
	return &Storage{entries: make(map[string]entry)}
}

func (s *Storage) Find(_ context.Context, id string) (*history.ProcessedMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, nil
	}
	return e.message, nil
}

func (s *Storage) Filter(spec history.Specification) history.Sequence {
	return history.NewSequence(func(_ context.Context, offset, limit int) ([]*history.ProcessedMessage, error) {
		done := metrics.TrackStorageQuery(constants.StorageMemory, "filter")
		matches := s.matching(spec, true)
		done(nil)

		if offset >= len(matches) {
			return nil, nil
		}
		return matches[offset:min(len(matches), offset+limit)], nil
	})
}

func (s *Storage) Count(_ context.Context, spec history.Specification) (int, error) {
	return len(s.matching(spec, false)), nil
}

func (s *Storage) Purge(_ context.Context, spec history.Specification) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	for id, e := range s.entries {
		if spec.Matches(e.message) {
			delete(s.entries, id)
			purged++
		}
	}
	metrics.AddStoragePurged(constants.StorageMemory, purged)
	return purged, nil
}

func (s *Storage) Save(_ context.Context, m *history.ProcessedMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.AssignID(ids.NewULIDAt(m.FinishedAt()))
	s.seq++
	s.entries[m.ID()] = entry{seq: s.seq, message: m}
	return nil
}

func (s *Storage) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, id)
	return nil
}

func (s *Storage) AverageWaitTime(_ context.Context, spec history.Specification) (float64, bool, error) {
	return average(s.matching(spec, false), (*history.ProcessedMessage).TimeInQueue)
}

func (s *Storage) AverageHandlingTime(_ context.Context, spec history.Specification) (float64, bool, error) {
	return average(s.matching(spec, false), (*history.ProcessedMessage).TimeToHandle)
}

func (s *Storage) AvailableMessageTypes(_ context.Context, spec history.Specification) ([]string, error) {
	types := []string{}
	for _, m := range s.matching(spec, false) {
		if !slices.Contains(types, m.Type()) {
			types = append(types, m.Type())
		}
	}
	slices.Sort(types)
	return types, nil
}

// matching returns the messages satisfying spec, ordered by finish time in
// the specification's direction when sorted is set. Ties fall back to save order.
func (s *Storage) matching(spec history.Specification, sorted bool) []*history.ProcessedMessage {
	s.mu.RLock()
	matches := make([]entry, 0, len(s.entries))
	for _, e := range s.entries {
		if spec.Matches(e.message) {
			matches = append(matches, e)
		}
	}
	s.mu.RUnlock()

	if sorted {
		desc := spec.Values().Sort == history.SortDesc
		slices.SortFunc(matches, func(a, b entry) int {
			c := a.message.FinishedAt().Compare(b.message.FinishedAt())
			if c == 0 {
				c = cmp.Compare(a.seq, b.seq)
			}
			if desc {
				return -c
			}
			return c
		})
	}

	out := make([]*history.ProcessedMessage, len(matches))
	for i, e := range matches {
		out[i] = e.message
	}
	return out
}

func average(messages []*history.ProcessedMessage, f func(*history.ProcessedMessage) time.Duration) (float64, bool, error) {
	if len(messages) == 0 {
		return 0, false, nil
	}
	var sum time.Duration
	for _, m := range messages {
		sum += f(m)
	}
	return sum.Seconds() / float64(len(messages)), true, nil
}
