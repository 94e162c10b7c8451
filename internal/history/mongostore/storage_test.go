package mongostore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"msgmon/internal/history"
	"msgmon/internal/history/historytest"
)

func TestBuildFilter(t *testing.T) {
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		spec history.Specification
		want bson.D
	}{
		{"empty", history.NewSpecification(), bson.D{}},
		{
			"window and type",
			history.NewSpecification().From(from).For("A"),
			bson.D{
				{Key: "finished_at", Value: bson.D{{Key: "$gte", Value: from}}},
				{Key: "type", Value: "A"},
			},
		},
		{
			"successes",
			history.NewSpecification().Successes(),
			bson.D{{Key: "failure_type", Value: nil}},
		},
		{
			"tags",
			history.NewSpecification().With("schedule").Without("reports"),
			bson.D{{Key: "tag_paths", Value: bson.D{
				{Key: "$all", Value: []string{"schedule"}},
				{Key: "$nin", Value: []string{"reports"}},
			}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildFilter(tt.spec))
		})
	}
}

func TestDocument_RoundTrip(t *testing.T) {
	msg := historytest.NewMessage(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		historytest.WithTags("schedule:daily:cleanup"),
		historytest.Failed("E", "boom"),
	)

	doc := toDocument("01HX", msg)
	assert.Equal(t, []string{"schedule", "schedule:daily", "schedule:daily:cleanup"}, doc.TagPaths)
	assert.Equal(t, int64(1000), doc.WaitTime)

	restored := doc.message()
	assert.Equal(t, "01HX", restored.ID())
	assert.Equal(t, msg.Failure(), restored.Failure())
	assert.Equal(t, msg.Tags(), restored.Tags())
}

func TestDocument_UntaggedStoresEmptyArrays(t *testing.T) {
	doc := toDocument("1", historytest.NewMessage(time.Now()))

	assert.Equal(t, []string{}, doc.Tags)
	assert.Equal(t, []string{}, doc.TagPaths)
	assert.Nil(t, doc.FailureType)
}

func TestPlainValue(t *testing.T) {
	in := map[string]any{
		"nested": primitive.D{{Key: "a", Value: int32(1)}},
		"list":   primitive.A{"x", primitive.D{{Key: "b", Value: "y"}}},
	}

	assert.Equal(t, map[string]any{
		"nested": map[string]any{"a": int64(1)},
		"list":   []any{"x", map[string]any{"b": "y"}},
	}, plainMap(in))
}
