//go:build integration

package mongostore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"msgmon/internal/history"
	"msgmon/internal/history/historytest"
	"msgmon/pkg/migrations"
	"msgmon/pkg/testinfra"
)

func TestStorage_MongoContract(t *testing.T) {
	db := testinfra.Mongo(t)
	require.NoError(t, migrations.EnsureMongoIndexes(context.Background(), db, "processed_messages"))

	historytest.RunStorageTests(t, func(t *testing.T) history.Storage {
		_, err := db.Collection("processed_messages").DeleteMany(context.Background(), map[string]any{})
		require.NoError(t, err)
		return New(db, "processed_messages")
	})
}
