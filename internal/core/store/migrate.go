package store

import (
	"context"
	"errors"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS geocode_cache (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		address TEXT NOT NULL,
		provider TEXT NOT NULL,
		places TEXT NOT NULL,
		failure TEXT,
		resolved_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL,
		UNIQUE(address, provider)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_geocode_cache_expires ON geocode_cache(expires_at);`,
	`CREATE INDEX IF NOT EXISTS idx_geocode_cache_lookup ON geocode_cache(address, provider);`,
	`CREATE TABLE IF NOT EXISTS rate_limits (
		endpoint TEXT PRIMARY KEY,
		request_count INTEGER NOT NULL DEFAULT 0,
		last_request_at INTEGER NOT NULL,
		backoff_until INTEGER,
		last_429_at INTEGER
	);`,
	`CREATE TABLE IF NOT EXISTS maps (
		name TEXT PRIMARY KEY,
		document TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);`,
}

// Migrate ensures the required database tables exist.
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	for _, stmt := range schemaStatements {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store migration failed: %w", err)
		}
	}

	return nil
}
