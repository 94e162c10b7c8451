package history

import (
	"context"
	"strconv"
	"time"
)

type EventKind string

const (
	EventSaved   EventKind = "saved"
	EventDeleted EventKind = "deleted"
	EventPurged  EventKind = "purged"
)

// Event is published on the history stream after a storage write.
type Event struct {
	Kind       EventKind `json:"kind"`
	OccurredAt time.Time `json:"occurred_at"`
	// Message is set for saved events.
	Message *Record `json:"message,omitempty"`
	// ID is set for deleted events.
	ID string `json:"id,omitempty"`
	// Purged and Filter are set for purge events.
	Purged int     `json:"purged,omitempty"`
	Filter *Values `json:"filter,omitempty"`
}

// Key partitions events so that attempts of one run stay ordered.
func (e Event) Key() string {
	switch {
	case e.Message != nil:
		return strconv.FormatInt(e.Message.RunID, 10)
	case e.ID != "":
		return e.ID
	}
	return string(e.Kind)
}

type EventPublisher interface {
	PublishEvent(ctx context.Context, event Event) error
}
