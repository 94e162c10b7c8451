// Package mongostore persists processed messages in MongoDB.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"msgmon/internal/constants"
	"msgmon/internal/history"
	"msgmon/pkg/ids"
	"msgmon/pkg/metrics"
)

type document struct {
	ID             string          `bson:"_id"`
	RunID          int64           `bson:"run_id"`
	Attempt        int             `bson:"attempt"`
	Type           string          `bson:"type"`
	Description    string          `bson:"description,omitempty"`
	DispatchedAt   time.Time       `bson:"dispatched_at"`
	ReceivedAt     time.Time       `bson:"received_at"`
	FinishedAt     time.Time       `bson:"finished_at"`
	WaitTime       int64           `bson:"wait_time"`
	HandleTime     int64           `bson:"handle_time"`
	Transport      string          `bson:"transport"`
	Tags           []string        `bson:"tags"`
	TagPaths       []string        `bson:"tag_paths"`
	Results        history.Results `bson:"results"`
	FailureType    *string         `bson:"failure_type"`
	FailureMessage *string         `bson:"failure_message"`
	MemoryUsage    int64           `bson:"memory_usage"`
}

func toDocument(id string, m *history.ProcessedMessage) document {
	doc := document{
		ID:           id,
		RunID:        m.RunID(),
		Attempt:      m.Attempt(),
		Type:         m.Type(),
		Description:  m.Description(),
		DispatchedAt: m.DispatchedAt(),
		ReceivedAt:   m.ReceivedAt(),
		FinishedAt:   m.FinishedAt(),
		WaitTime:     m.TimeInQueue().Milliseconds(),
		HandleTime:   m.TimeToHandle().Milliseconds(),
		Transport:    m.Transport(),
		Tags:         m.Tags().All(),
		TagPaths:     m.Tags().Paths(),
		Results:      m.Results(),
		MemoryUsage:  int64(m.MemoryUsage()),
	}
	if doc.Tags == nil {
		doc.Tags = []string{}
		doc.TagPaths = []string{}
	}
	if failure := m.Failure(); failure != nil {
		doc.FailureType = &failure.Type
		doc.FailureMessage = &failure.Message
	}
	return doc
}

func (d document) message() *history.ProcessedMessage {
	results := make(history.Results, len(d.Results))
	for i, r := range d.Results {
		r.Data = plainMap(r.Data)
		results[i] = r
	}

	r := history.Record{
		ID:           d.ID,
		RunID:        d.RunID,
		Attempt:      d.Attempt,
		Type:         d.Type,
		Description:  d.Description,
		DispatchedAt: d.DispatchedAt,
		ReceivedAt:   d.ReceivedAt,
		FinishedAt:   d.FinishedAt,
		Transport:    d.Transport,
		Tags:         d.Tags,
		Results:      results,
		MemoryUsage:  uint64(d.MemoryUsage),
	}
	if d.FailureType != nil {
		r.FailureType = *d.FailureType
	}
	if d.FailureMessage != nil {
		r.FailureMessage = *d.FailureMessage
	}
	return history.FromRecord(r)
}

// plainMap replaces the driver's document and array types nested inside
// result data with plain maps and slices.
func plainMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = plainValue(v)
	}
	return out
}

func plainValue(v any) any {
	switch value := v.(type) {
	case primitive.D:
		return plainMap(value.Map())
	case primitive.M:
		return plainMap(value)
	case map[string]any:
		return plainMap(value)
	case primitive.A:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = plainValue(item)
		}
		return out
	case int32:
		return int64(value)
	}
	return v
}

// Storage is a history.Storage over one collection.
type Storage struct {
	collection *mongo.Collection
}

var _ history.Storage = (*Storage)(nil)

func New(db *mongo.Database, collection string) *Storage {
	if collection == "" {
		collection = constants.DefaultHistoryColl
	}
	return &Storage{collection: db.Collection(collection)}
}

func (s *Storage) Find(ctx context.Context, id string) (m *history.ProcessedMessage, err error) {
	done := metrics.TrackStorageQuery(constants.StorageMongoDB, "find")
	defer func() { done(err) }()

	var doc document
	if err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find processed message %s: %w", id, err)
	}
	return doc.message(), nil
}

func (s *Storage) Filter(spec history.Specification) history.Sequence {
	filter := buildFilter(spec)
	direction := -1
	if spec.Values().Sort == history.SortAsc {
		direction = 1
	}

	return history.NewSequence(func(ctx context.Context, offset, limit int) (_ []*history.ProcessedMessage, err error) {
		done := metrics.TrackStorageQuery(constants.StorageMongoDB, "filter")
		defer func() { done(err) }()

		opts := options.Find().
			SetSort(bson.D{{Key: "finished_at", Value: direction}, {Key: "_id", Value: direction}}).
			SetSkip(int64(offset)).
			SetLimit(int64(limit))

		cursor, err := s.collection.Find(ctx, filter, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to filter processed messages: %w", err)
		}
		defer cursor.Close(ctx)

		var docs []document
		if err := cursor.All(ctx, &docs); err != nil {
			return nil, fmt.Errorf("failed to decode processed messages: %w", err)
		}

		messages := make([]*history.ProcessedMessage, len(docs))
		for i, doc := range docs {
			messages[i] = doc.message()
		}
		return messages, nil
	})
}

func (s *Storage) Count(ctx context.Context, spec history.Specification) (count int, err error) {
	done := metrics.TrackStorageQuery(constants.StorageMongoDB, "count")
	defer func() { done(err) }()

	n, err := s.collection.CountDocuments(ctx, buildFilter(spec))
	if err != nil {
		return 0, fmt.Errorf("failed to count processed messages: %w", err)
	}
	return int(n), nil
}

func (s *Storage) Purge(ctx context.Context, spec history.Specification) (purged int, err error) {
	done := metrics.TrackStorageQuery(constants.StorageMongoDB, "purge")
	defer func() { done(err) }()

	res, err := s.collection.DeleteMany(ctx, buildFilter(spec))
	if err != nil {
		return 0, fmt.Errorf("failed to purge processed messages: %w", err)
	}
	metrics.AddStoragePurged(constants.StorageMongoDB, int(res.DeletedCount))
	return int(res.DeletedCount), nil
}

func (s *Storage) Save(ctx context.Context, m *history.ProcessedMessage) (err error) {
	done := metrics.TrackStorageQuery(constants.StorageMongoDB, "save")
	defer func() { done(err) }()

	id := m.ID()
	if id == "" {
		id = ids.NewULIDAt(m.FinishedAt())
	}
	if _, err := s.collection.InsertOne(ctx, toDocument(id, m)); err != nil {
		return fmt.Errorf("failed to insert processed message: %w", err)
	}
	m.AssignID(id)
	return nil
}

func (s *Storage) Delete(ctx context.Context, id string) (err error) {
	done := metrics.TrackStorageQuery(constants.StorageMongoDB, "delete")
	defer func() { done(err) }()

	if _, err := s.collection.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("failed to delete processed message %s: %w", id, err)
	}
	return nil
}

func (s *Storage) AverageWaitTime(ctx context.Context, spec history.Specification) (float64, bool, error) {
	return s.average(ctx, "wait_time", spec)
}

func (s *Storage) AverageHandlingTime(ctx context.Context, spec history.Specification) (float64, bool, error) {
	return s.average(ctx, "handle_time", spec)
}

func (s *Storage) average(ctx context.Context, field string, spec history.Specification) (seconds float64, ok bool, err error) {
	done := metrics.TrackStorageQuery(constants.StorageMongoDB, "average")
	defer func() { done(err) }()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: buildFilter(spec)}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "avg", Value: bson.D{{Key: "$avg", Value: "$" + field}}},
		}}},
	}

	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, false, fmt.Errorf("failed to average %s: %w", field, err)
	}
	defer cursor.Close(ctx)

	var out []struct {
		Avg *float64 `bson:"avg"`
	}
	if err := cursor.All(ctx, &out); err != nil {
		return 0, false, fmt.Errorf("failed to decode %s average: %w", field, err)
	}
	if len(out) == 0 || out[0].Avg == nil {
		return 0, false, nil
	}
	return *out[0].Avg / 1000, true, nil
}

func (s *Storage) AvailableMessageTypes(ctx context.Context, spec history.Specification) (types []string, err error) {
	done := metrics.TrackStorageQuery(constants.StorageMongoDB, "message_types")
	defer func() { done(err) }()

	values, err := s.collection.Distinct(ctx, "type", buildFilter(spec))
	if err != nil {
		return nil, fmt.Errorf("failed to list message types: %w", err)
	}

	types = make([]string, 0, len(values))
	for _, v := range values {
		if t, ok := v.(string); ok {
			types = append(types, t)
		}
	}
	slices.Sort(types)
	return types, nil
}

func buildFilter(spec history.Specification) bson.D {
	v := spec.Values()
	filter := bson.D{}

	finished := bson.D{}
	if !v.From.IsZero() {
		finished = append(finished, bson.E{Key: "$gte", Value: v.From})
	}
	if !v.To.IsZero() {
		finished = append(finished, bson.E{Key: "$lte", Value: v.To})
	}
	if len(finished) > 0 {
		filter = append(filter, bson.E{Key: "finished_at", Value: finished})
	}

	if v.MessageType != "" {
		filter = append(filter, bson.E{Key: "type", Value: v.MessageType})
	}
	if v.Transport != "" {
		filter = append(filter, bson.E{Key: "transport", Value: v.Transport})
	}
	if v.RunID != 0 {
		filter = append(filter, bson.E{Key: "run_id", Value: v.RunID})
	}

	switch v.Status {
	case history.Success:
		filter = append(filter, bson.E{Key: "failure_type", Value: nil})
	case history.Failed:
		filter = append(filter, bson.E{Key: "failure_type", Value: bson.D{{Key: "$ne", Value: nil}}})
	}

	tagPaths := bson.D{}
	if len(v.Tags) > 0 {
		tagPaths = append(tagPaths, bson.E{Key: "$all", Value: v.Tags})
	}
	if len(v.NotTags) > 0 {
		tagPaths = append(tagPaths, bson.E{Key: "$nin", Value: v.NotTags})
	}
	if len(tagPaths) > 0 {
		filter = append(filter, bson.E{Key: "tag_paths", Value: tagPaths})
	}

	return filter
}
