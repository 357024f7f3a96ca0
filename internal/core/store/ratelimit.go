package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pinmap/pinmap/internal/core"
)

// GetRateLimit returns stored rate limit state for an endpoint.
func (s *Store) GetRateLimit(ctx context.Context, endpoint string) (*core.RateLimitState, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("endpoint is required")
	}

	var (
		requestCount  int
		lastRequestAt int64
		backoffUntil  sql.NullInt64
		last429At     sql.NullInt64
	)

	row := s.DB.QueryRowContext(ctx, `
		SELECT request_count, last_request_at, backoff_until, last_429_at
		FROM rate_limits
		WHERE endpoint = ?
	`, endpoint)

	if err := row.Scan(&requestCount, &lastRequestAt, &backoffUntil, &last429At); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch rate limit: %w", err)
	}

	state := &core.RateLimitState{
		RequestCount:  requestCount,
		LastRequestAt: time.Unix(lastRequestAt, 0).UTC(),
	}

	if backoffUntil.Valid {
		value := time.Unix(backoffUntil.Int64, 0).UTC()
		state.BackoffUntil = &value
	}
	if last429At.Valid {
		value := time.Unix(last429At.Int64, 0).UTC()
		state.Last429At = &value
	}

	return state, nil
}

// UpdateRateLimit persists rate limit state for an endpoint.
func (s *Store) UpdateRateLimit(ctx context.Context, endpoint string, state *core.RateLimitState) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return errors.New("endpoint is required")
	}
	if state == nil {
		return errors.New("rate limit state is required")
	}

	var backoffUntil sql.NullInt64
	if state.BackoffUntil != nil {
		backoffUntil = sql.NullInt64{Int64: state.BackoffUntil.UTC().Unix(), Valid: true}
	}

	var last429At sql.NullInt64
	if state.Last429At != nil {
		last429At = sql.NullInt64{Int64: state.Last429At.UTC().Unix(), Valid: true}
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO rate_limits (endpoint, request_count, last_request_at, backoff_until, last_429_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(endpoint) DO UPDATE SET
			request_count = excluded.request_count,
			last_request_at = excluded.last_request_at,
			backoff_until = excluded.backoff_until,
			last_429_at = excluded.last_429_at
	`, endpoint, state.RequestCount, state.LastRequestAt.UTC().Unix(), backoffUntil, last429At)
	if err != nil {
		return fmt.Errorf("store rate limit: %w", err)
	}

	return nil
}

// ListRateLimits returns all tracked endpoints with their state.
func (s *Store) ListRateLimits(ctx context.Context) (map[string]*core.RateLimitState, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT endpoint, request_count, last_request_at, backoff_until, last_429_at
		FROM rate_limits
		ORDER BY endpoint
	`)
	if err != nil {
		return nil, fmt.Errorf("list rate limits: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	states := make(map[string]*core.RateLimitState)
	for rows.Next() {
		var (
			endpoint      string
			requestCount  int
			lastRequestAt int64
			backoffUntil  sql.NullInt64
			last429At     sql.NullInt64
		)
		if err := rows.Scan(&endpoint, &requestCount, &lastRequestAt, &backoffUntil, &last429At); err != nil {
			return nil, fmt.Errorf("scan rate limit: %w", err)
		}

		state := &core.RateLimitState{
			RequestCount:  requestCount,
			LastRequestAt: time.Unix(lastRequestAt, 0).UTC(),
		}
		if backoffUntil.Valid {
			value := time.Unix(backoffUntil.Int64, 0).UTC()
			state.BackoffUntil = &value
		}
		if last429At.Valid {
			value := time.Unix(last429At.Int64, 0).UTC()
			state.Last429At = &value
		}
		states[endpoint] = state
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rate limits: %w", err)
	}

	return states, nil
}

// ResetRateLimit deletes stored state for an endpoint, or for all endpoints
// when the endpoint is empty.
func (s *Store) ResetRateLimit(ctx context.Context, endpoint string) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	endpoint = strings.TrimSpace(endpoint)

	var (
		result sql.Result
		err    error
	)
	if endpoint == "" {
		result, err = s.DB.ExecContext(ctx, `DELETE FROM rate_limits`)
	} else {
		result, err = s.DB.ExecContext(ctx, `DELETE FROM rate_limits WHERE endpoint = ?`, endpoint)
	}
	if err != nil {
		return 0, fmt.Errorf("reset rate limit: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return affected, nil
}
