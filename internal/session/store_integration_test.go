//go:build integration
// +build integration

package session

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight/finsight/internal/log"
	"github.com/finsight/finsight/internal/testutil"
)

func TestStore_CreateAndGet_Integration(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	store, err := NewStore(db.Pool, log.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	sess, err := store.Create(ctx, "203.0.113.7")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, sess.ID)
	assert.NotZero(t, sess.CreatedAt)

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
	assert.Equal(t, "203.0.113.7", got.IPHash)
}

func TestStore_Get_NotFound_Integration(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	store, err := NewStore(db.Pool, log.NewNop())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_GetOrCreate_Integration(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	store, err := NewStore(db.Pool, log.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	// Nil UUID always creates
	sess, created, err := store.GetOrCreate(ctx, uuid.Nil, "203.0.113.7")
	require.NoError(t, err)
	assert.True(t, created)

	// Known UUID returns the same session
	again, created, err := store.GetOrCreate(ctx, sess.ID, "203.0.113.7")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, sess.ID, again.ID)

	// Stale cookie UUID creates a replacement
	fresh, created, err := store.GetOrCreate(ctx, uuid.New(), "203.0.113.7")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, sess.ID, fresh.ID)
}

func TestStore_DeleteIdleBefore_Integration(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	store, err := NewStore(db.Pool, log.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	old, err := store.Create(ctx, "203.0.113.7")
	require.NoError(t, err)
	_, err = db.Pool.Exec(ctx,
		`UPDATE sessions SET last_seen_at = NOW() - INTERVAL '200 days' WHERE id = $1`, old.ID)
	require.NoError(t, err)

	fresh, err := store.Create(ctx, "203.0.113.8")
	require.NoError(t, err)

	deleted, err := store.DeleteIdleBefore(ctx, time.Now().AddDate(0, 0, -180))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = store.Get(ctx, old.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Get(ctx, fresh.ID)
	assert.NoError(t, err)
}
