package session

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"pharmacy-service/internal/apperr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, store Store) {
	ctx := context.Background()
	s := &Session{
		ID:        uuid.NewString(),
		Username:  "pharmacist",
		CreatedAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}

	require.NoError(t, store.Save(ctx, s))

	got, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "pharmacist", got.Username)

	require.NoError(t, store.Delete(ctx, s.ID))
	_, err = store.Get(ctx, s.ID)
	assert.True(t, errors.Is(err, apperr.ErrUnauthorized))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	s := &Session{ID: "abc", Username: "pharmacist", ExpiresAt: now.Add(time.Minute)}
	require.NoError(t, store.Save(context.Background(), s))

	_, err := store.Get(context.Background(), "abc")
	require.NoError(t, err)

	now = now.Add(time.Minute)
	_, err = store.Get(context.Background(), "abc")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("Integration test - requires redis (set REDIS_ADDR)")
	}

	store, err := NewRedisStore(addr, os.Getenv("REDIS_PASSWORD"), 0)
	require.NoError(t, err)
	defer store.Close()

	exerciseStore(t, store)
}
