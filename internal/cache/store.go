package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Store is the cache collaborator contract. Expiry is owned entirely by the
// store; callers never revalidate a hit.
type Store interface {
	// Get returns the cached value for key and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value under key. The store applies its own TTL.
	Set(ctx context.Context, key string, value []byte) error
}

// SQLStore persists cache entries in the provider_cache table of the
// library database. Expired entries are deleted lazily on read and in bulk
// via Purge.
type SQLStore struct {
	db  *sql.DB
	ttl time.Duration
}

// NewSQLStore creates a store with the given entry TTL.
func NewSQLStore(db *sql.DB, ttl time.Duration) *SQLStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SQLStore{db: db, ttl: ttl}
}

// Get retrieves a cache entry, treating expired entries as absent.
func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	var expiresAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM provider_cache WHERE key = ?`, key).
		Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cache entry: %w", err)
	}

	exp, err := time.Parse(time.RFC3339, expiresAt)
	if err != nil || !exp.After(time.Now().UTC()) {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM provider_cache WHERE key = ?`, key)
		return nil, false, nil
	}
	return value, true, nil
}

// Set stores or replaces a cache entry.
func (s *SQLStore) Set(ctx context.Context, key string, value []byte) error {
	expiresAt := time.Now().UTC().Add(s.ttl).Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO provider_cache (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at
	`, key, value, expiresAt)
	if err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

// Purge removes all expired entries.
func (s *SQLStore) Purge(ctx context.Context) error {
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM provider_cache WHERE expires_at <= ?`, now); err != nil {
		return fmt.Errorf("purging cache: %w", err)
	}
	return nil
}
