package history

import (
	"context"
	"time"

	"msgmon/internal/logger"
)

// PublishingStorage announces successful writes on the history stream.
// Publish failures are logged and never fail the write itself.
type PublishingStorage struct {
	Storage
	publisher EventPublisher
	logger    logger.Logger
	now       func() time.Time
}

func NewPublishingStorage(storage Storage, publisher EventPublisher, log logger.Logger) *PublishingStorage {
	if log == nil {
		log = logger.NopLogger()
	}
	return &PublishingStorage{
		Storage:   storage,
		publisher: publisher,
		logger:    log,
		now:       time.Now,
	}
}

func (s *PublishingStorage) Save(ctx context.Context, m *ProcessedMessage) error {
	if err := s.Storage.Save(ctx, m); err != nil {
		return err
	}
	record := m.Record()
	s.publish(ctx, Event{Kind: EventSaved, Message: &record})
	return nil
}

func (s *PublishingStorage) Delete(ctx context.Context, id string) error {
	if err := s.Storage.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, Event{Kind: EventDeleted, ID: id})
	return nil
}

func (s *PublishingStorage) Purge(ctx context.Context, spec Specification) (int, error) {
	purged, err := s.Storage.Purge(ctx, spec)
	if err != nil || purged == 0 {
		return purged, err
	}
	values := spec.Values()
	s.publish(ctx, Event{Kind: EventPurged, Purged: purged, Filter: &values})
	return purged, nil
}

func (s *PublishingStorage) publish(ctx context.Context, event Event) {
	event.OccurredAt = s.now().UTC()
	if err := s.publisher.PublishEvent(ctx, event); err != nil {
		s.logger.WarnwCtx(ctx, "Failed to publish history event",
			"kind", event.Kind,
			"error", err,
		)
	}
}
