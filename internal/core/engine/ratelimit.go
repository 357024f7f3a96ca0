package engine

import (
	"context"
	"strings"
	"time"

	"github.com/pinmap/pinmap/internal/core"
)

// RateLimiter enforces a minimum interval between requests per endpoint.
// Geocoding providers publish absolute usage policies (Nominatim allows at
// most one request per second), so the gate is a gap between consecutive
// requests rather than a counting window.
type RateLimiter struct {
	Store     RateLimitStore
	Intervals map[string]time.Duration
	Clock     func() time.Time
	Margin    float64
}

// RateLimitStore stores rate limit state.
type RateLimitStore interface {
	GetRateLimit(ctx context.Context, endpoint string) (*core.RateLimitState, error)
	UpdateRateLimit(ctx context.Context, endpoint string, state *core.RateLimitState) error
}

// DefaultIntervals provides conservative defaults per endpoint.
var DefaultIntervals = map[string]time.Duration{
	"nominatim.openstreetmap.org": time.Second,
	"photon.komoot.io":            600 * time.Millisecond,
	"ip-api.com":                  1500 * time.Millisecond,
}

// Allow checks if a request is allowed and returns the remaining wait
// duration if not. It does not record the request; callers pair it with
// Record once the request is actually sent. Two concurrent callers may both
// see a stale last-request time and both be admitted, which slightly
// overshoots the provider's rate but never blocks a caller spuriously.
func (r *RateLimiter) Allow(ctx context.Context, endpoint string) (bool, time.Duration, error) {
	if r == nil || r.Store == nil {
		return true, 0, nil
	}

	state, err := r.Store.GetRateLimit(ctx, endpoint)
	if err != nil {
		return true, 0, err
	}
	if state == nil {
		return true, 0, nil
	}

	now := r.now()
	if state.BackoffUntil != nil && now.Before(*state.BackoffUntil) {
		return false, state.BackoffUntil.Sub(now), nil
	}

	interval := r.getInterval(endpoint)
	nextAllowed := state.LastRequestAt.Add(interval)
	if now.Before(nextAllowed) {
		return false, nextAllowed.Sub(now), nil
	}

	return true, 0, nil
}

// Wait blocks until the endpoint admits a request or the context is
// cancelled, returning the total time spent waiting.
func (r *RateLimiter) Wait(ctx context.Context, endpoint string) (time.Duration, error) {
	if r == nil || r.Store == nil {
		return 0, nil
	}

	if ctx == nil {
		ctx = context.Background()
	}

	var waited time.Duration
	for {
		allowed, wait, err := r.Allow(ctx, endpoint)
		if err != nil {
			return waited, err
		}
		if allowed {
			return waited, nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return waited, ctx.Err()
		case <-timer.C:
			waited += wait
		}
	}
}

// Record stamps the last request time for an endpoint.
func (r *RateLimiter) Record(ctx context.Context, endpoint string) error {
	if r == nil || r.Store == nil {
		return nil
	}

	state, err := r.Store.GetRateLimit(ctx, endpoint)
	if err != nil {
		return err
	}
	if state == nil {
		state = &core.RateLimitState{}
	}

	state.RequestCount++
	state.LastRequestAt = r.now()

	return r.Store.UpdateRateLimit(ctx, endpoint, state)
}

// Record429 applies a backoff window from a 429 response.
func (r *RateLimiter) Record429(ctx context.Context, endpoint string, retryAfter time.Duration) error {
	if r == nil || r.Store == nil {
		return nil
	}

	state, err := r.Store.GetRateLimit(ctx, endpoint)
	if err != nil {
		return err
	}
	if state == nil {
		state = &core.RateLimitState{}
	}

	now := r.now()
	state.Last429At = &now
	if retryAfter <= 0 {
		retryAfter = r.getInterval(endpoint)
	}
	until := now.Add(retryAfter)
	state.BackoffUntil = &until

	return r.Store.UpdateRateLimit(ctx, endpoint, state)
}

// ApplyOverrides merges per-endpoint interval overrides.
func (r *RateLimiter) ApplyOverrides(overrides map[string]time.Duration) {
	if r == nil || len(overrides) == 0 {
		return
	}

	if r.Intervals == nil {
		r.Intervals = make(map[string]time.Duration, len(DefaultIntervals))
		for key, interval := range DefaultIntervals {
			r.Intervals[key] = interval
		}
	}

	for endpoint, interval := range overrides {
		endpoint = strings.TrimSpace(endpoint)
		if endpoint == "" || interval <= 0 {
			continue
		}
		r.Intervals[endpoint] = interval
	}
}

// ApplySafetyMargin adjusts the effective intervals by a ratio (0-1].
// A margin of 0.5 halves the admitted rate by doubling each gap.
func (r *RateLimiter) ApplySafetyMargin(margin float64) {
	if r == nil {
		return
	}
	if margin <= 0 || margin > 1 {
		return
	}
	r.Margin = margin
}

func (r *RateLimiter) getInterval(endpoint string) time.Duration {
	if r == nil {
		return time.Second
	}

	intervals := r.Intervals
	if intervals == nil {
		intervals = DefaultIntervals
	}

	if interval, ok := intervals[endpoint]; ok {
		return r.applyMargin(interval)
	}

	return r.applyMargin(time.Second)
}

func (r *RateLimiter) now() time.Time {
	if r != nil && r.Clock != nil {
		return r.Clock()
	}
	return time.Now().UTC()
}

func (r *RateLimiter) applyMargin(interval time.Duration) time.Duration {
	if r == nil || r.Margin <= 0 || r.Margin > 1 {
		return interval
	}
	return time.Duration(float64(interval) / r.Margin)
}
