package cmd

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pinmap/pinmap/internal/config"
	"github.com/pinmap/pinmap/internal/core"
)

type memoryRateStore struct {
	states map[string]*core.RateLimitState
}

func newMemoryRateStore() *memoryRateStore {
	return &memoryRateStore{states: make(map[string]*core.RateLimitState)}
}

func (m *memoryRateStore) GetRateLimit(_ context.Context, endpoint string) (*core.RateLimitState, error) {
	state, ok := m.states[endpoint]
	if !ok {
		return nil, nil
	}
	copied := *state
	return &copied, nil
}

func (m *memoryRateStore) UpdateRateLimit(_ context.Context, endpoint string, state *core.RateLimitState) error {
	copied := *state
	m.states[endpoint] = &copied
	return nil
}

func TestBuildLimiterAppliesMinInterval(t *testing.T) {
	cfg := &config.Config{}
	cfg.Geocoder.MinInterval = 5 * time.Second

	limiter := buildLimiter(cfg, nil)
	require.Equal(t, 5*time.Second, limiter.Intervals["nominatim.openstreetmap.org"])

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter.Store = newMemoryRateStore()
	limiter.Clock = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, limiter.Record(ctx, "nominatim.openstreetmap.org"))

	// Two seconds in, the configured five second gap still has three to go.
	now = now.Add(2 * time.Second)
	allowed, wait, err := limiter.Allow(ctx, "nominatim.openstreetmap.org")
	require.NoError(t, err)
	require.False(t, allowed)
	require.Equal(t, 3*time.Second, wait)
}

func TestBuildLimiterEndpointOverrideWins(t *testing.T) {
	cfg := &config.Config{}
	cfg.Geocoder.MinInterval = 5 * time.Second
	cfg.RateLimits = map[string]time.Duration{
		"nominatim.openstreetmap.org": 2 * time.Second,
	}

	limiter := buildLimiter(cfg, nil)
	require.Equal(t, 2*time.Second, limiter.Intervals["nominatim.openstreetmap.org"])
}

func TestBuildLimiterMinIntervalFollowsBaseURL(t *testing.T) {
	cfg := &config.Config{}
	cfg.Geocoder.Provider = "nominatim"
	cfg.Geocoder.BaseURL = "https://geo.example.com/nominatim"
	cfg.Geocoder.MinInterval = 3 * time.Second

	limiter := buildLimiter(cfg, nil)
	require.Equal(t, 3*time.Second, limiter.Intervals["geo.example.com"])
}
