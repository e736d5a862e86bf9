// Package cache is a content-addressed, single-file cache for fetched
// pages. It is opaque to content format: callers decide what bytes to
// store (the fetch pipeline stores generated Markdown).
package cache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/archivecrawl/crawler/pkg/hashutil"
)

// Store is a SQLite-backed cache keyed by canonical URL. Journaling is
// WAL so a single process can read and write concurrently without
// blocking on file locks.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS cache_entries (
		url           TEXT PRIMARY KEY,
		content_hash  TEXT NOT NULL,
		content       TEXT NOT NULL,
		metadata_json TEXT NOT NULL DEFAULT '{}',
		created_at    TIMESTAMP NOT NULL,
		accessed_at   TIMESTAMP NOT NULL,
		ttl_hours     INTEGER NOT NULL DEFAULT 0
	)`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("%w: %v", ErrMigrationFailed, err)
	}
	return nil
}

// Get returns the record for url, or (Record{}, false, nil) if absent
// or expired. An expired row is deleted as part of the read. On a
// live hit, accessed_at is bumped best-effort: a failure to bump it
// does not fail the read.
func (s *Store) Get(ctx context.Context, url string) (Record, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT url, content_hash, content, metadata_json, created_at, accessed_at, ttl_hours
		FROM cache_entries WHERE url = ?`, url)

	var rec Record
	if err := row.Scan(&rec.URL, &rec.ContentHash, &rec.Content, &rec.MetadataJSON,
		&rec.CreatedAt, &rec.AccessedAt, &rec.TTLHours); err != nil {
		if err == sql.ErrNoRows {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}

	now := time.Now()
	if rec.expired(now) {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE url = ?`, url)
		return Record{}, false, nil
	}

	rec.AccessedAt = now
	_, _ = s.db.ExecContext(ctx, `UPDATE cache_entries SET accessed_at = ? WHERE url = ?`, now, url)

	return rec, true, nil
}

// Set computes content's SHA-256 hash and upserts a row with
// created_at = accessed_at = now.
func (s *Store) Set(ctx context.Context, url, content, metadataJSON string, ttlHours int) error {
	hash, err := hashutil.HashBytes([]byte(content), hashutil.HashAlgoSHA256)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}

	now := time.Now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (url, content_hash, content, metadata_json, created_at, accessed_at, ttl_hours)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			content_hash = excluded.content_hash,
			content = excluded.content,
			metadata_json = excluded.metadata_json,
			created_at = excluded.created_at,
			accessed_at = excluded.accessed_at,
			ttl_hours = excluded.ttl_hours`,
		url, hash, content, metadataJSON, now, now, ttlHours)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, url string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE url = ?`, url)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries`)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	return nil
}

// CleanupExpired deletes every row past its TTL and returns how many
// rows were removed.
func (s *Store) CleanupExpired(ctx context.Context) (int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT url, created_at, ttl_hours FROM cache_entries WHERE ttl_hours > 0`)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}

	now := time.Now()
	var expiredURLs []string
	for rows.Next() {
		var url string
		var createdAt time.Time
		var ttlHours int
		if err := rows.Scan(&url, &createdAt, &ttlHours); err != nil {
			rows.Close()
			return 0, fmt.Errorf("%w: %v", ErrQueryFailed, err)
		}
		if now.Sub(createdAt) > time.Duration(ttlHours)*time.Hour {
			expiredURLs = append(expiredURLs, url)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	rows.Close()

	for _, url := range expiredURLs {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE url = ?`, url); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrQueryFailed, err)
		}
	}
	return len(expiredURLs), nil
}
