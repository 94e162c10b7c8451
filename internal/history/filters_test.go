package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilters_AvailableMessageTypes(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	storage := newCountingStorage(
		messageAt(t, now, 0, 0, nil),
		messageAt(t, now, 0, 0, errors.New("boom")),
	)
	filters := NewSpecification().Filters(storage)

	types, err := filters.AvailableMessageTypes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"msgmon/internal/history.reportMessage"}, types)

	_, err = filters.AvailableMessageTypes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, storage.calls["types"])
}

func TestFilters_EmptyAndErrors(t *testing.T) {
	ctx := context.Background()

	types, err := NewFilters(newCountingStorage(), NewSpecification()).AvailableMessageTypes(ctx)
	require.NoError(t, err)
	assert.Empty(t, types)
	assert.NotNil(t, types)

	failing := newCountingStorage()
	failing.err = errors.New("timeout")
	_, err = NewFilters(failing, NewSpecification()).AvailableMessageTypes(ctx)
	assert.ErrorIs(t, err, failing.err)
}
