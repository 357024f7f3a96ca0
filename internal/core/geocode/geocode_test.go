package geocode

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pinmap/pinmap/internal/core"
	"github.com/pinmap/pinmap/internal/core/engine"
)

type memoryGeocodeStore struct {
	mu       sync.Mutex
	places   map[string][]core.Place
	failures map[string]string
	states   map[string]*core.RateLimitState
}

func newMemoryGeocodeStore() *memoryGeocodeStore {
	return &memoryGeocodeStore{
		places:   make(map[string][]core.Place),
		failures: make(map[string]string),
		states:   make(map[string]*core.RateLimitState),
	}
}

func (m *memoryGeocodeStore) GetCachedPlaces(_ context.Context, address, provider string) ([]core.Place, *core.Provenance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	provenance := &core.Provenance{
		ResolvedAt: time.Now().UTC(),
		Source:     provider,
		FromCache:  true,
	}

	if message, ok := m.failures[provider+"|"+address]; ok {
		return nil, provenance, fmt.Errorf("%w: %s", core.ErrCachedFailure, message)
	}

	places, ok := m.places[provider+"|"+address]
	if !ok {
		return nil, nil, nil
	}
	return places, provenance, nil
}

func (m *memoryGeocodeStore) SetCachedPlaces(_ context.Context, address, provider string, places []core.Place, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.places[provider+"|"+address] = places
	delete(m.failures, provider+"|"+address)
	return nil
}

func (m *memoryGeocodeStore) SetCachedError(_ context.Context, address, provider, message string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failures[provider+"|"+address] = message
	return nil
}

func (m *memoryGeocodeStore) GetRateLimit(_ context.Context, endpoint string) (*core.RateLimitState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.states[endpoint]
	if !ok {
		return nil, nil
	}
	copied := *state
	return &copied, nil
}

func (m *memoryGeocodeStore) UpdateRateLimit(_ context.Context, endpoint string, state *core.RateLimitState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *state
	m.states[endpoint] = &copied
	return nil
}

func TestNominatimGeocode(t *testing.T) {
	var gotUserAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
		require.Equal(t, "/search", r.URL.Path)
		require.Equal(t, "Paris", r.URL.Query().Get("q"))
		require.Equal(t, "json", r.URL.Query().Get("format"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"display_name": "Paris, Ile-de-France, France", "lat": "48.8566", "lon": "2.3522"},
			{"display_name": "Paris, Texas, USA", "lat": "33.6609", "lon": "-95.5555"}
		]`))
	}))
	defer server.Close()

	client := &NominatimClient{
		BaseURL:   server.URL,
		UserAgent: "pinmap-test/1.0",
	}

	places, provenance, err := client.Geocode(context.Background(), "Paris")
	require.NoError(t, err)
	require.Equal(t, "pinmap-test/1.0", gotUserAgent)
	require.Len(t, places, 2)
	require.Equal(t, "Paris, Ile-de-France, France", places[0].DisplayName)
	require.Equal(t, 48.8566, places[0].Lat)
	require.Equal(t, 2.3522, places[0].Long)
	require.NotNil(t, provenance)
	require.Equal(t, "nominatim", provenance.Source)
	require.False(t, provenance.FromCache)
}

func TestNominatimNoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := &NominatimClient{BaseURL: server.URL}

	_, _, err := client.Geocode(context.Background(), "zzzzzz")
	require.ErrorIs(t, err, core.ErrNoResults)
}

func TestNominatimSkipsMalformedCoordinates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"display_name": "Bad", "lat": "not-a-number", "lon": "2.0"},
			{"display_name": "Out of range", "lat": "95.0", "lon": "2.0"},
			{"display_name": "Good", "lat": "1.0", "lon": "2.0"}
		]`))
	}))
	defer server.Close()

	client := &NominatimClient{BaseURL: server.URL}

	places, _, err := client.Geocode(context.Background(), "somewhere")
	require.NoError(t, err)
	require.Len(t, places, 1)
	require.Equal(t, "Good", places[0].DisplayName)
}

func TestNominatimUsesCache(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"display_name": "Paris", "lat": "48.85", "lon": "2.35"}]`))
	}))
	defer server.Close()

	store := newMemoryGeocodeStore()
	client := &NominatimClient{
		Store:    store,
		BaseURL:  server.URL,
		UseCache: true,
	}

	ctx := context.Background()

	places, _, err := client.Geocode(ctx, "Paris")
	require.NoError(t, err)
	require.Len(t, places, 1)
	require.Equal(t, 1, calls)

	places, provenance, err := client.Geocode(ctx, "Paris")
	require.NoError(t, err)
	require.Len(t, places, 1)
	require.Equal(t, 1, calls)
	require.True(t, provenance.FromCache)
}

func TestNominatimCachesEmptyResults(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	store := newMemoryGeocodeStore()
	client := &NominatimClient{
		Store:    store,
		BaseURL:  server.URL,
		UseCache: true,
	}

	ctx := context.Background()

	_, _, err := client.Geocode(ctx, "zzzzzz")
	require.ErrorIs(t, err, core.ErrNoResults)
	require.Equal(t, 1, calls)

	_, provenance, err := client.Geocode(ctx, "zzzzzz")
	require.ErrorIs(t, err, core.ErrNoResults)
	require.Equal(t, 1, calls)
	require.True(t, provenance.FromCache)
}

func TestNominatimCachesFailures(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	store := newMemoryGeocodeStore()
	client := &NominatimClient{
		Store:    store,
		BaseURL:  server.URL,
		UseCache: true,
	}

	ctx := context.Background()

	_, _, err := client.Geocode(ctx, "Paris")
	require.Error(t, err)
	require.Contains(t, err.Error(), "502")
	require.Equal(t, 1, calls)

	// The failure is served from cache; the provider is not contacted again.
	_, provenance, err := client.Geocode(ctx, "Paris")
	require.ErrorIs(t, err, core.ErrCachedFailure)
	require.Equal(t, 1, calls)
	require.NotNil(t, provenance)
	require.True(t, provenance.FromCache)
}

func TestEndpointHost(t *testing.T) {
	require.Equal(t, "nominatim.openstreetmap.org", EndpointHost("", ""))
	require.Equal(t, "nominatim.openstreetmap.org", EndpointHost("nominatim", ""))
	require.Equal(t, "photon.komoot.io", EndpointHost("photon", ""))
	require.Equal(t, "geo.example.com", EndpointHost("nominatim", "https://geo.example.com/nominatim"))
	require.Empty(t, EndpointHost("unknown", ""))
}

func TestNominatimRecords429(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	store := newMemoryGeocodeStore()
	limiter := &engine.RateLimiter{Store: store}
	client := &NominatimClient{
		Store:   store,
		Limiter: limiter,
		BaseURL: server.URL,
	}

	_, _, err := client.Geocode(context.Background(), "Paris")
	require.Error(t, err)
	require.Contains(t, err.Error(), "rate limited")

	parsed, parseErr := url.Parse(server.URL)
	require.NoError(t, parseErr)

	state, err := store.GetRateLimit(context.Background(), parsed.Hostname())
	require.NoError(t, err)
	require.NotNil(t, state)
	require.NotNil(t, state.BackoffUntil)
	require.NotNil(t, state.Last429At)
}

func TestNominatimLimiterGatesRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"display_name": "Paris", "lat": "48.85", "lon": "2.35"}]`))
	}))
	defer server.Close()

	store := newMemoryGeocodeStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := &engine.RateLimiter{
		Store: store,
		Clock: func() time.Time { return now },
	}
	client := &NominatimClient{
		Store:   store,
		Limiter: limiter,
		BaseURL: server.URL,
	}

	_, _, err := client.Geocode(context.Background(), "Paris")
	require.NoError(t, err)

	// The limiter recorded the request; a second call inside the interval
	// has to wait the remaining gap before it is admitted.
	parsed, parseErr := url.Parse(server.URL)
	require.NoError(t, parseErr)

	allowed, wait, err := limiter.Allow(context.Background(), parsed.Hostname())
	require.NoError(t, err)
	require.False(t, allowed)
	require.Equal(t, time.Second, wait)
}

func TestPhotonGeocode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api", r.URL.Path)
		require.Equal(t, "Berlin", r.URL.Query().Get("q"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"type": "FeatureCollection",
			"features": [
				{
					"type": "Feature",
					"geometry": {"type": "Point", "coordinates": [13.405, 52.52]},
					"properties": {"name": "Berlin", "country": "Germany"}
				}
			]
		}`))
	}))
	defer server.Close()

	client := &PhotonClient{BaseURL: server.URL}

	places, provenance, err := client.Geocode(context.Background(), "Berlin")
	require.NoError(t, err)
	require.Len(t, places, 1)
	require.Equal(t, "Berlin, Germany", places[0].DisplayName)
	require.Equal(t, 52.52, places[0].Lat)
	require.Equal(t, 13.405, places[0].Long)
	require.Equal(t, "photon", provenance.Source)
}

func TestPhotonNoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"type": "FeatureCollection", "features": []}`))
	}))
	defer server.Close()

	client := &PhotonClient{BaseURL: server.URL}

	_, _, err := client.Geocode(context.Background(), "zzzzzz")
	require.ErrorIs(t, err, core.ErrNoResults)
}

func TestRetryAfterHeader(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	require.Zero(t, retryAfterHeader(resp))

	resp.Header.Set("Retry-After", "30")
	require.Equal(t, 30*time.Second, retryAfterHeader(resp))
}
