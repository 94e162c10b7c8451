package migrations

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureMongoIndexes creates the indexes the history queries rely on.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database, collection string) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "finished_at", Value: -1}},
			Options: options.Index().SetName("idx_processed_messages_finished_at"),
		},
		{
			Keys:    bson.D{{Key: "type", Value: 1}, {Key: "finished_at", Value: -1}},
			Options: options.Index().SetName("idx_processed_messages_type_finished_at"),
		},
		{
			Keys:    bson.D{{Key: "transport", Value: 1}, {Key: "finished_at", Value: -1}},
			Options: options.Index().SetName("idx_processed_messages_transport_finished_at"),
		},
		{
			Keys:    bson.D{{Key: "tag_paths", Value: 1}, {Key: "finished_at", Value: -1}},
			Options: options.Index().SetName("idx_processed_messages_tag_paths"),
		},
		{
			Keys:    bson.D{{Key: "run_id", Value: 1}},
			Options: options.Index().SetName("idx_processed_messages_run_id"),
		},
	}

	_, err := db.Collection(collection).Indexes().CreateMany(ctx, indexes)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}
