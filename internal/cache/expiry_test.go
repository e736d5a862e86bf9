package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

// backdate rewrites created_at directly, bypassing Set, so tests can
// exercise real TTL expiry without sleeping for hours.
func (s *Store) backdate(t *testing.T, url string, createdAt time.Time) {
	t.Helper()
	if _, err := s.db.Exec(`UPDATE cache_entries SET created_at = ? WHERE url = ?`, createdAt, url); err != nil {
		t.Fatalf("backdate failed: %v", err)
	}
}

func TestGetDeletesExpiredRow(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Set(ctx, "https://example.com/stale", "old", "{}", 1); err != nil {
		t.Fatalf("Set: %v", err)
	}
	store.backdate(t, "https://example.com/stale", time.Now().Add(-2*time.Hour))

	_, ok, err := store.Get(ctx, "https://example.com/stale")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Error("expired row should not be returned")
	}

	var count int
	if err := store.db.QueryRow(`SELECT COUNT(*) FROM cache_entries WHERE url = ?`, "https://example.com/stale").Scan(&count); err != nil {
		t.Fatalf("count query: %v", err)
	}
	if count != 0 {
		t.Error("expired row should have been deleted from the table")
	}
}

func TestCleanupExpiredCountsAndRemovesStaleRows(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Set(ctx, "https://example.com/stale-a", "a", "{}", 1); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Set(ctx, "https://example.com/stale-b", "b", "{}", 1); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Set(ctx, "https://example.com/fresh", "c", "{}", 1); err != nil {
		t.Fatalf("Set: %v", err)
	}
	store.backdate(t, "https://example.com/stale-a", time.Now().Add(-2*time.Hour))
	store.backdate(t, "https://example.com/stale-b", time.Now().Add(-2*time.Hour))

	n, err := store.CleanupExpired(ctx)
	if err != nil {
		t.Fatalf("CleanupExpired: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 expired rows removed, got %d", n)
	}

	_, ok, err := store.Get(ctx, "https://example.com/fresh")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Error("fresh row should survive cleanup")
	}
}
