package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"msgmon/internal/history"
	"msgmon/internal/history/historytest"
)

func TestStorage_Contract(t *testing.T) {
	historytest.RunStorageTests(t, func(*testing.T) history.Storage { return New() })
}

func TestStorage_SaveAssignsSortableIDs(t *testing.T) {
	s := New()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	first := historytest.NewMessage(base)
	second := historytest.NewMessage(base.Add(time.Second))
	require.NoError(t, s.Save(context.Background(), first))
	require.NoError(t, s.Save(context.Background(), second))

	assert.Len(t, first.ID(), 26)
	assert.Less(t, first.ID(), second.ID())
}

func TestStorage_TiesFollowSaveOrder(t *testing.T) {
	s := New()
	finished := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	a := historytest.NewMessage(finished, historytest.WithType("a"))
	b := historytest.NewMessage(finished, historytest.WithType("b"))
	require.NoError(t, s.Save(context.Background(), a))
	require.NoError(t, s.Save(context.Background(), b))

	asc, err := s.Filter(history.NewSpecification().Ascending()).Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, asc, 2)
	assert.Equal(t, "a", asc[0].Type())

	desc, err := s.Filter(history.NewSpecification()).Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "b", desc[0].Type())
}
