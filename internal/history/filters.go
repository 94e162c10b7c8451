package history

import (
	"context"
	"fmt"
	"sync"
)

// Filters exposes the values a history view can be narrowed by.
type Filters struct {
	storage Storage
	spec    Specification

	mu           sync.Mutex
	messageTypes []string
}

func NewFilters(storage Storage, spec Specification) *Filters {
	return &Filters{storage: storage, spec: spec}
}

// AvailableMessageTypes lists the distinct message types matching the
// specification, fetched once.
func (f *Filters) AvailableMessageTypes(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.messageTypes != nil {
		return f.messageTypes, nil
	}

	types, err := f.storage.AvailableMessageTypes(ctx, f.spec)
	if err != nil {
		return nil, fmt.Errorf("failed to load available message types: %w", err)
	}
	if types == nil {
		types = []string{}
	}
	f.messageTypes = types
	return types, nil
}
