package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatstream/internal/models"
)

func TestMemoryStoreUpsertAndGet(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	conv := Conversation{
		ID:       "conv-1",
		Title:    "Greetings",
		Model:    "gpt-4",
		Messages: []models.ChatMessage{models.NewTextMessage(models.RoleUser, "hi")},
	}
	require.NoError(t, s.Upsert(ctx, conv))

	got, err := s.Get(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "Greetings", got.Title)
	assert.False(t, got.UpdatedAt.IsZero())

	conv.Title = "Renamed"
	require.NoError(t, s.Upsert(ctx, conv))
	got, err = s.Get(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
}

func TestMemoryStoreGetMissing(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreRejectsEmptyID(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	assert.Error(t, s.Upsert(context.Background(), Conversation{}))
}
