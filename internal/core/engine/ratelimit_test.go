package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pinmap/pinmap/internal/core"
)

type memoryRateLimitStore struct {
	mu     sync.Mutex
	states map[string]*core.RateLimitState
}

func newMemoryRateLimitStore() *memoryRateLimitStore {
	return &memoryRateLimitStore{states: make(map[string]*core.RateLimitState)}
}

func (m *memoryRateLimitStore) GetRateLimit(_ context.Context, endpoint string) (*core.RateLimitState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.states[endpoint]
	if !ok {
		return nil, nil
	}
	copied := *state
	return &copied, nil
}

func (m *memoryRateLimitStore) UpdateRateLimit(_ context.Context, endpoint string, state *core.RateLimitState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *state
	m.states[endpoint] = &copied
	return nil
}

func TestRateLimiterAllowsFirstRequest(t *testing.T) {
	limiter := &RateLimiter{Store: newMemoryRateLimitStore()}

	allowed, wait, err := limiter.Allow(context.Background(), "nominatim.openstreetmap.org")
	require.NoError(t, err)
	require.True(t, allowed)
	require.Zero(t, wait)
}

func TestRateLimiterEnforcesMinimumInterval(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := &RateLimiter{
		Store: newMemoryRateLimitStore(),
		Clock: func() time.Time { return now },
	}
	ctx := context.Background()
	endpoint := "nominatim.openstreetmap.org"

	require.NoError(t, limiter.Record(ctx, endpoint))

	allowed, wait, err := limiter.Allow(ctx, endpoint)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Equal(t, time.Second, wait)

	// Half the interval elapses; still gated, with the remainder reported.
	now = now.Add(500 * time.Millisecond)
	allowed, wait, err = limiter.Allow(ctx, endpoint)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Equal(t, 500*time.Millisecond, wait)

	now = now.Add(500 * time.Millisecond)
	allowed, wait, err = limiter.Allow(ctx, endpoint)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Zero(t, wait)
}

func TestRateLimiterGapMeasuredFromLastRequest(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := &RateLimiter{
		Store: newMemoryRateLimitStore(),
		Clock: func() time.Time { return now },
	}
	ctx := context.Background()
	endpoint := "nominatim.openstreetmap.org"

	require.NoError(t, limiter.Record(ctx, endpoint))

	// A long idle period admits the next request immediately.
	now = now.Add(time.Minute)
	allowed, _, err := limiter.Allow(ctx, endpoint)
	require.NoError(t, err)
	require.True(t, allowed)

	require.NoError(t, limiter.Record(ctx, endpoint))

	now = now.Add(200 * time.Millisecond)
	allowed, wait, err := limiter.Allow(ctx, endpoint)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Equal(t, 800*time.Millisecond, wait)
}

func TestRateLimiterRecord429Backoff(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := &RateLimiter{
		Store: newMemoryRateLimitStore(),
		Clock: func() time.Time { return now },
	}
	ctx := context.Background()
	endpoint := "nominatim.openstreetmap.org"

	require.NoError(t, limiter.Record429(ctx, endpoint, 30*time.Second))

	allowed, wait, err := limiter.Allow(ctx, endpoint)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Equal(t, 30*time.Second, wait)

	now = now.Add(31 * time.Second)
	allowed, _, err = limiter.Allow(ctx, endpoint)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestRateLimiterApplyOverrides(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := &RateLimiter{
		Store: newMemoryRateLimitStore(),
		Clock: func() time.Time { return now },
	}
	limiter.ApplyOverrides(map[string]time.Duration{
		"nominatim.openstreetmap.org": 5 * time.Second,
		"":                            time.Second,
		"ignored":                     -time.Second,
	})

	ctx := context.Background()
	require.NoError(t, limiter.Record(ctx, "nominatim.openstreetmap.org"))

	now = now.Add(2 * time.Second)
	allowed, wait, err := limiter.Allow(ctx, "nominatim.openstreetmap.org")
	require.NoError(t, err)
	require.False(t, allowed)
	require.Equal(t, 3*time.Second, wait)

	// Defaults survive for endpoints without overrides.
	require.Equal(t, 1500*time.Millisecond, limiter.Intervals["ip-api.com"])
}

func TestRateLimiterSafetyMarginStretchesInterval(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := &RateLimiter{
		Store: newMemoryRateLimitStore(),
		Clock: func() time.Time { return now },
	}
	limiter.ApplySafetyMargin(0.5)

	ctx := context.Background()
	endpoint := "nominatim.openstreetmap.org"
	require.NoError(t, limiter.Record(ctx, endpoint))

	now = now.Add(time.Second)
	allowed, wait, err := limiter.Allow(ctx, endpoint)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Equal(t, time.Second, wait)

	limiter.ApplySafetyMargin(0)
	require.Equal(t, 0.5, limiter.Margin)

	limiter.ApplySafetyMargin(1.5)
	require.Equal(t, 0.5, limiter.Margin)
}

func TestRateLimiterWaitHonorsContext(t *testing.T) {
	limiter := &RateLimiter{Store: newMemoryRateLimitStore()}
	ctx := context.Background()
	endpoint := "nominatim.openstreetmap.org"

	require.NoError(t, limiter.Record(ctx, endpoint))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()

	_, err := limiter.Wait(cancelled, endpoint)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRateLimiterNilSafe(t *testing.T) {
	var limiter *RateLimiter

	allowed, wait, err := limiter.Allow(context.Background(), "anything")
	require.NoError(t, err)
	require.True(t, allowed)
	require.Zero(t, wait)

	require.NoError(t, limiter.Record(context.Background(), "anything"))
	require.NoError(t, limiter.Record429(context.Background(), "anything", time.Second))
}
