package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pinmap/pinmap/internal/core"
)

// GetCachedPlaces returns cached geocoding results if they are still valid.
// The second return value reports the resolution time and expiry as
// provenance; callers receive (nil, nil, nil) on a cache miss. A cached
// provider failure comes back with provenance and an error wrapping
// core.ErrCachedFailure.
func (s *Store) GetCachedPlaces(ctx context.Context, address, provider string) ([]core.Place, *core.Provenance, error) {
	if s == nil || s.DB == nil {
		return nil, nil, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	key := cacheKey(address)
	if key == "" {
		return nil, nil, errors.New("cache address is required")
	}

	var (
		placesJSON string
		failure    sql.NullString
		resolvedAt int64
		expiresAt  int64
	)

	row := s.DB.QueryRowContext(ctx, `
		SELECT places, failure, resolved_at, expires_at
		FROM geocode_cache
		WHERE address = ? AND provider = ? AND expires_at > ?
	`, key, provider, time.Now().UTC().Unix())

	if err := row.Scan(&placesJSON, &failure, &resolvedAt, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("fetch cached places: %w", err)
	}

	expires := time.Unix(expiresAt, 0).UTC()
	provenance := &core.Provenance{
		ResolvedAt:     time.Unix(resolvedAt, 0).UTC(),
		Source:         provider,
		FromCache:      true,
		CacheExpiresAt: &expires,
	}

	if failure.Valid && failure.String != "" {
		return nil, provenance, fmt.Errorf("%w: %s", core.ErrCachedFailure, failure.String)
	}

	var places []core.Place
	if err := json.Unmarshal([]byte(placesJSON), &places); err != nil {
		return nil, nil, fmt.Errorf("decode cached places: %w", err)
	}

	return places, provenance, nil
}

// SetCachedPlaces stores geocoding results with a TTL. An empty result set is
// cached too so repeated lookups of unknown addresses do not hit the provider.
func (s *Store) SetCachedPlaces(ctx context.Context, address, provider string, places []core.Place, ttl time.Duration) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if ttl <= 0 {
		return nil
	}

	key := cacheKey(address)
	if key == "" {
		return errors.New("cache address is required")
	}

	if places == nil {
		places = []core.Place{}
	}

	placesJSON, err := json.Marshal(places)
	if err != nil {
		return fmt.Errorf("encode cached places: %w", err)
	}

	now := time.Now().UTC()
	expires := now.Add(ttl)

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO geocode_cache (address, provider, places, failure, resolved_at, expires_at)
		VALUES (?, ?, ?, NULL, ?, ?)
		ON CONFLICT(address, provider) DO UPDATE SET
			places = excluded.places,
			failure = NULL,
			resolved_at = excluded.resolved_at,
			expires_at = excluded.expires_at
	`, key, provider, string(placesJSON), now.Unix(), expires.Unix())
	if err != nil {
		return fmt.Errorf("store cached places: %w", err)
	}

	return nil
}

// SetCachedError stores a provider failure with a TTL so a failing upstream
// is not hammered with retries. The entry is replaced by the next successful
// lookup.
func (s *Store) SetCachedError(ctx context.Context, address, provider, message string, ttl time.Duration) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if ttl <= 0 || message == "" {
		return nil
	}

	key := cacheKey(address)
	if key == "" {
		return errors.New("cache address is required")
	}

	now := time.Now().UTC()
	expires := now.Add(ttl)

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO geocode_cache (address, provider, places, failure, resolved_at, expires_at)
		VALUES (?, ?, '[]', ?, ?, ?)
		ON CONFLICT(address, provider) DO UPDATE SET
			places = '[]',
			failure = excluded.failure,
			resolved_at = excluded.resolved_at,
			expires_at = excluded.expires_at
	`, key, provider, message, now.Unix(), expires.Unix())
	if err != nil {
		return fmt.Errorf("store cached failure: %w", err)
	}

	return nil
}

// ClearCache removes all cached geocoding results, returning the number of
// rows deleted.
func (s *Store) ClearCache(ctx context.Context) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	result, err := s.DB.ExecContext(ctx, `DELETE FROM geocode_cache`)
	if err != nil {
		return 0, fmt.Errorf("clear geocode cache: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return affected, nil
}

// PruneCache removes expired cache entries.
func (s *Store) PruneCache(ctx context.Context) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	result, err := s.DB.ExecContext(ctx, `DELETE FROM geocode_cache WHERE expires_at <= ?`, time.Now().UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("prune geocode cache: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return affected, nil
}

// cacheKey normalizes an address for cache lookup.
func cacheKey(address string) string {
	return strings.ToLower(strings.Join(strings.Fields(address), " "))
}
