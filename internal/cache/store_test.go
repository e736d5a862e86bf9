package cache_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/archivecrawl/crawler/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *cache.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.db")
	store, err := cache.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSetThenGetRoundTrips(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "https://example.com/guide", "# Guide", `{"title":"Guide"}`, 24))

	rec, ok, err := store.Get(ctx, "https://example.com/guide")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "# Guide", rec.Content)
	assert.Equal(t, `{"title":"Guide"}`, rec.MetadataJSON)
	assert.NotEmpty(t, rec.ContentHash)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	store := openTestStore(t)
	_, ok, err := store.Get(context.Background(), "https://example.com/absent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetUpsertsExistingURL(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "https://example.com/guide", "v1", "{}", 24))
	require.NoError(t, store.Set(ctx, "https://example.com/guide", "v2", "{}", 24))

	rec, ok, err := store.Get(ctx, "https://example.com/guide")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v2", rec.Content)
}

func TestDeleteRemovesRow(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "https://example.com/guide", "v1", "{}", 24))
	require.NoError(t, store.Delete(ctx, "https://example.com/guide"))

	_, ok, err := store.Get(ctx, "https://example.com/guide")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClearRemovesAllRows(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "https://example.com/a", "a", "{}", 24))
	require.NoError(t, store.Set(ctx, "https://example.com/b", "b", "{}", 24))
	require.NoError(t, store.Clear(ctx))

	_, okA, err := store.Get(ctx, "https://example.com/a")
	require.NoError(t, err)
	_, okB, err := store.Get(ctx, "https://example.com/b")
	require.NoError(t, err)
	assert.False(t, okA)
	assert.False(t, okB)
}

func TestCleanupExpiredRemovesOnlyPastTTL(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "https://example.com/fresh", "fresh", "{}", 24))

	n, err := store.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, ok, err := store.Get(ctx, "https://example.com/fresh")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestModeGates(t *testing.T) {
	assert.False(t, cache.ModeBypass.CanRead())
	assert.False(t, cache.ModeBypass.CanWrite())
	assert.True(t, cache.ModeCached.CanRead())
	assert.True(t, cache.ModeCached.CanWrite())
	assert.True(t, cache.ModeReadOnly.CanRead())
	assert.False(t, cache.ModeReadOnly.CanWrite())
	assert.False(t, cache.ModeWriteOnly.CanRead())
	assert.True(t, cache.ModeWriteOnly.CanWrite())
}

func TestTTLZeroNeverExpires(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "https://example.com/forever", "content", "{}", 0))
	time.Sleep(10 * time.Millisecond)

	_, ok, err := store.Get(ctx, "https://example.com/forever")
	require.NoError(t, err)
	assert.True(t, ok)
}
