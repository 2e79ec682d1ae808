package sqlite

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sandevgo/lexibot/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvents_InsertConflict(t *testing.T) {
	ctx := context.Background()
	repo := NewEvents(newTestDB(t))

	require.NoError(t, repo.Insert(ctx, "ev-1", "message", time.Now()))

	err := repo.Insert(ctx, "ev-1", "message", time.Now())
	assert.ErrorIs(t, err, core.ErrAlreadyProcessed)
}

func TestEvents_Exists(t *testing.T) {
	ctx := context.Background()
	repo := NewEvents(newTestDB(t))

	ok, err := repo.Exists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Insert(ctx, "ev-1", "message", time.Now()))

	ok, err = repo.Exists(ctx, "ev-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvents_Delete(t *testing.T) {
	ctx := context.Background()
	repo := NewEvents(newTestDB(t))

	require.NoError(t, repo.Insert(ctx, "ev-1", "message", time.Now()))
	require.NoError(t, repo.Delete(ctx, "ev-1"))

	ok, err := repo.Exists(ctx, "ev-1")
	require.NoError(t, err)
	assert.False(t, ok)

	// Deleting a missing key is a no-op.
	require.NoError(t, repo.Delete(ctx, "ev-1"))
}

func TestEvents_DeleteOlderThan(t *testing.T) {
	ctx := context.Background()
	repo := NewEvents(newTestDB(t))

	now := time.Now()
	require.NoError(t, repo.Insert(ctx, "old", "message", now.Add(-25*time.Hour)))
	require.NoError(t, repo.Insert(ctx, "fresh", "message", now))

	purged, err := repo.DeleteOlderThan(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	ok, err := repo.Exists(ctx, "fresh")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvents_ConcurrentInsertSingleWinner(t *testing.T) {
	ctx := context.Background()
	repo := NewEvents(newTestDB(t))

	const workers = 8
	var wg sync.WaitGroup
	wins := make(chan struct{}, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := repo.Insert(ctx, "contended", "message", time.Now()); err == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	assert.Equal(t, 1, len(wins), "exactly one worker must win the insert")
}
