//go:build cgo

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pinmap/pinmap/internal/config"
	"github.com/pinmap/pinmap/internal/core"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	ctx := context.Background()
	cfg := config.StoreConfig{
		Driver: "libsql",
		Path:   ":memory:",
	}

	store, err := Open(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))

	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	return store
}

func TestOpenMemoryStore(t *testing.T) {
	ctx := context.Background()
	cfg := config.StoreConfig{
		Driver: "libsql",
		Path:   ":memory:",
	}

	store, err := Open(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, store)
	require.Equal(t, "libsql", store.Driver())
	require.NoError(t, store.Close())
}

func TestGeocodeCacheRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	places := []core.Place{
		{DisplayName: "Paris, France", Lat: 48.8566, Long: 2.3522},
	}

	require.NoError(t, store.SetCachedPlaces(ctx, "Paris, France", "nominatim", places, time.Hour))

	cached, provenance, err := store.GetCachedPlaces(ctx, "paris,  france", "nominatim")
	require.NoError(t, err)
	require.NotNil(t, provenance)
	require.True(t, provenance.FromCache)
	require.Equal(t, "nominatim", provenance.Source)
	require.Len(t, cached, 1)
	require.Equal(t, places[0].DisplayName, cached[0].DisplayName)
}

func TestGeocodeCacheMiss(t *testing.T) {
	store := openTestStore(t)

	cached, provenance, err := store.GetCachedPlaces(context.Background(), "nowhere", "nominatim")
	require.NoError(t, err)
	require.Nil(t, provenance)
	require.Nil(t, cached)
}

func TestGeocodeCacheEmptyResultCached(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetCachedPlaces(ctx, "asdfgh", "nominatim", nil, time.Hour))

	cached, provenance, err := store.GetCachedPlaces(ctx, "asdfgh", "nominatim")
	require.NoError(t, err)
	require.NotNil(t, provenance)
	require.Empty(t, cached)
}

func TestGeocodeCacheFailureRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetCachedError(ctx, "unreachable place", "nominatim", "unexpected nominatim response: 502", time.Minute))

	cached, provenance, err := store.GetCachedPlaces(ctx, "unreachable place", "nominatim")
	require.ErrorIs(t, err, core.ErrCachedFailure)
	require.Contains(t, err.Error(), "502")
	require.Nil(t, cached)
	require.NotNil(t, provenance)
	require.True(t, provenance.FromCache)

	// A successful lookup replaces the failure entry.
	places := []core.Place{{DisplayName: "Found", Lat: 1, Long: 2}}
	require.NoError(t, store.SetCachedPlaces(ctx, "unreachable place", "nominatim", places, time.Hour))

	cached, _, err = store.GetCachedPlaces(ctx, "unreachable place", "nominatim")
	require.NoError(t, err)
	require.Len(t, cached, 1)
}

func TestRateLimitRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	backoff := now.Add(30 * time.Second)

	state := &core.RateLimitState{
		RequestCount:  3,
		LastRequestAt: now,
		BackoffUntil:  &backoff,
	}

	require.NoError(t, store.UpdateRateLimit(ctx, "nominatim", state))

	loaded, err := store.GetRateLimit(ctx, "nominatim")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, 3, loaded.RequestCount)
	require.Equal(t, now, loaded.LastRequestAt)
	require.NotNil(t, loaded.BackoffUntil)
	require.Equal(t, backoff, *loaded.BackoffUntil)
	require.Nil(t, loaded.Last429At)
}

func TestRateLimitReset(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	state := &core.RateLimitState{RequestCount: 1, LastRequestAt: time.Now().UTC()}
	require.NoError(t, store.UpdateRateLimit(ctx, "nominatim", state))
	require.NoError(t, store.UpdateRateLimit(ctx, "photon", state))

	affected, err := store.ResetRateLimit(ctx, "nominatim")
	require.NoError(t, err)
	require.EqualValues(t, 1, affected)

	states, err := store.ListRateLimits(ctx)
	require.NoError(t, err)
	require.Len(t, states, 1)
	require.Contains(t, states, "photon")
}

func TestMapsRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	doc := &core.MapDocument{
		Position: core.DocumentPosition{Lat: 1, Long: 2, Zoom: 5},
		Markers: []core.MarkerSpec{
			{Address: "Berlin"},
		},
	}

	require.NoError(t, store.SaveMap(ctx, "trip", doc))

	saved, err := store.GetMap(ctx, "trip")
	require.NoError(t, err)
	require.Equal(t, "trip", saved.Name)
	require.Equal(t, 5, saved.Document.Position.Zoom)
	require.Len(t, saved.Document.Markers, 1)

	maps, err := store.ListMaps(ctx)
	require.NoError(t, err)
	require.Len(t, maps, 1)

	require.NoError(t, store.DeleteMap(ctx, "trip"))
	_, err = store.GetMap(ctx, "trip")
	require.ErrorIs(t, err, ErrMapNotFound)
	require.ErrorIs(t, store.DeleteMap(ctx, "trip"), ErrMapNotFound)
}
