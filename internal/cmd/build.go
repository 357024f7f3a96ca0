package cmd

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pinmap/pinmap/internal/config"
	"github.com/pinmap/pinmap/internal/core/engine"
	"github.com/pinmap/pinmap/internal/core/geocode"
	"github.com/pinmap/pinmap/internal/core/locate"
	"github.com/pinmap/pinmap/internal/core/store"
	"github.com/pinmap/pinmap/internal/render"
)

// buildLimiter constructs the shared minimum-interval gate. The configured
// geocoder minimum interval applies to the active provider's endpoint; the
// per-endpoint rate_limits map wins over it when both name the same host.
func buildLimiter(cfg *config.Config, db *store.Store) *engine.RateLimiter {
	limiter := &engine.RateLimiter{Store: db}
	if cfg.Geocoder.MinInterval > 0 {
		if endpoint := geocode.EndpointHost(cfg.Geocoder.Provider, cfg.Geocoder.BaseURL); endpoint != "" {
			limiter.ApplyOverrides(map[string]time.Duration{endpoint: cfg.Geocoder.MinInterval})
		}
	}
	limiter.ApplyOverrides(cfg.RateLimits)
	limiter.ApplySafetyMargin(cfg.RateLimitMargin)
	return limiter
}

// buildGeocoder constructs the configured geocoding client. Both providers
// share the persistent cache and the rate limit gate.
func buildGeocoder(cfg *config.Config, db *store.Store, useCache bool) (engine.Geocoder, error) {
	limiter := buildLimiter(cfg, db)

	timeout := cfg.Geocoder.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	cachePolicy := geocode.CachePolicy{
		SuccessTTL: cfg.Cache.HitTTL,
		EmptyTTL:   cfg.Cache.MissTTL,
		ErrorTTL:   cfg.Cache.ErrorTTL,
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.Geocoder.Provider))
	switch provider {
	case "", "nominatim":
		return &geocode.NominatimClient{
			Store:       db,
			Client:      client,
			Limiter:     limiter,
			CachePolicy: cachePolicy,
			UseCache:    useCache,
			BaseURL:     cfg.Geocoder.BaseURL,
			UserAgent:   cfg.Geocoder.UserAgent,
			Email:       cfg.Geocoder.Email,
			Limit:       cfg.Geocoder.Limit,
		}, nil
	case "photon":
		return &geocode.PhotonClient{
			Store:       db,
			Client:      client,
			Limiter:     limiter,
			CachePolicy: cachePolicy,
			UseCache:    useCache,
			BaseURL:     cfg.Geocoder.BaseURL,
			Limit:       cfg.Geocoder.Limit,
		}, nil
	default:
		return nil, fmt.Errorf("unknown geocoder provider %q", provider)
	}
}

// buildLocator constructs the IP geolocation client.
func buildLocator(cfg *config.Config) engine.Locator {
	timeout := cfg.Locator.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &locate.IPAPIClient{
		Client:         &http.Client{Timeout: timeout},
		BaseURL:        cfg.Locator.BaseURL,
		RequestsPerMin: cfg.Locator.RequestsPerMin,
	}
}

// buildOrchestrator wires the marker resolution engine.
func buildOrchestrator(cfg *config.Config, db *store.Store, useCache bool) (*engine.Orchestrator, error) {
	geocoder, err := buildGeocoder(cfg, db, useCache)
	if err != nil {
		return nil, err
	}
	return &engine.Orchestrator{
		Geocoder: geocoder,
		Locator:  buildLocator(cfg),
	}, nil
}

// buildLeafletRenderer maps view configuration onto the HTML page renderer.
func buildLeafletRenderer(cfg *config.Config) *render.LeafletRenderer {
	return &render.LeafletRenderer{
		ContainerID: cfg.Map.ContainerID,
		TileURL:     cfg.Map.TileURL,
		Attribution: cfg.Map.Attribution,
		AutoLocate:  cfg.Map.AutoLocate,
	}
}

// buildStaticRenderer maps view configuration onto the PNG renderer.
func buildStaticRenderer(cfg *config.Config) *render.StaticMapRenderer {
	return &render.StaticMapRenderer{
		Width:  cfg.Map.Width,
		Height: cfg.Map.Height,
	}
}
