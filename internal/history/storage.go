package history

import (
	"context"
	"iter"

	"msgmon/internal/constants"
)

// Storage persists processed messages and answers Specification queries.
type Storage interface {
	// Find returns nil, nil when id does not exist.
	Find(ctx context.Context, id string) (*ProcessedMessage, error)
	// Filter returns a lazy sequence ordered by finish time per spec.
	Filter(spec Specification) Sequence
	Count(ctx context.Context, spec Specification) (int, error)
	// Purge removes every match and returns how many rows were removed.
	Purge(ctx context.Context, spec Specification) (int, error)
	// Save persists m and assigns its id.
	Save(ctx context.Context, m *ProcessedMessage) error
	// Delete is a no-op for unknown ids.
	Delete(ctx context.Context, id string) error
	// AverageWaitTime is the mean receive minus dispatch time in seconds.
	// ok is false when nothing matches.
	AverageWaitTime(ctx context.Context, spec Specification) (seconds float64, ok bool, err error)
	// AverageHandlingTime is the mean finish minus receive time in seconds.
	AverageHandlingTime(ctx context.Context, spec Specification) (seconds float64, ok bool, err error)
	// AvailableMessageTypes lists the distinct message types among matches.
	AvailableMessageTypes(ctx context.Context, spec Specification) ([]string, error)
}

// PageFunc loads up to limit messages starting at offset.
type PageFunc func(ctx context.Context, offset, limit int) ([]*ProcessedMessage, error)

// Sequence is a lazy, restartable view over a query. Nothing is loaded
// until it is iterated and each iteration re-runs the query.
type Sequence struct {
	page     PageFunc
	limit    int
	pageSize int
}

func NewSequence(page PageFunc) Sequence {
	return Sequence{page: page, limit: -1, pageSize: constants.DefaultPageSize}
}

// SliceSequence serves an already loaded slice.
func SliceSequence(messages []*ProcessedMessage) Sequence {
	return NewSequence(func(_ context.Context, offset, limit int) ([]*ProcessedMessage, error) {
		if offset >= len(messages) {
			return nil, nil
		}
		end := min(len(messages), offset+limit)
		return messages[offset:end], nil
	})
}

// mapPages decorates every page load of the sequence.
func (s Sequence) mapPages(wrap func(PageFunc) PageFunc) Sequence {
	if s.page != nil {
		s.page = wrap(s.page)
	}
	return s
}

// Take limits the sequence to its first n messages.
func (s Sequence) Take(n int) Sequence {
	if n < 0 {
		n = 0
	}
	if s.limit < 0 || n < s.limit {
		s.limit = n
	}
	return s
}

func (s Sequence) WithPageSize(size int) Sequence {
	if size > 0 {
		s.pageSize = size
	}
	return s
}

// Iter yields messages until the sequence is exhausted or the first error,
// which is yielded with a nil message.
func (s Sequence) Iter(ctx context.Context) iter.Seq2[*ProcessedMessage, error] {
	return func(yield func(*ProcessedMessage, error) bool) {
		if s.page == nil {
			return
		}
		offset := 0
		for s.limit < 0 || offset < s.limit {
			size := s.pageSize
			if s.limit >= 0 {
				size = min(size, s.limit-offset)
			}
			batch, err := s.page(ctx, offset, size)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, m := range batch {
				if !yield(m, nil) {
					return
				}
			}
			if len(batch) < size {
				return
			}
			offset += len(batch)
		}
	}
}

func (s Sequence) Collect(ctx context.Context) ([]*ProcessedMessage, error) {
	var out []*ProcessedMessage
	for m, err := range s.Iter(ctx) {
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// First returns nil, nil for an empty sequence.
func (s Sequence) First(ctx context.Context) (*ProcessedMessage, error) {
	for m, err := range s.Take(1).Iter(ctx) {
		return m, err
	}
	return nil, nil
}

// Last returns the final message of a bounded sequence, or nil when empty.
func (s Sequence) Last(ctx context.Context) (*ProcessedMessage, error) {
	var last *ProcessedMessage
	for m, err := range s.Iter(ctx) {
		if err != nil {
			return nil, err
		}
		last = m
	}
	return last, nil
}
