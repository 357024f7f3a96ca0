package geocode

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pinmap/pinmap/internal/core"
)

// GeocodeStore supports cached places and rate limits.
type GeocodeStore interface {
	GetCachedPlaces(ctx context.Context, address, provider string) ([]core.Place, *core.Provenance, error)
	SetCachedPlaces(ctx context.Context, address, provider string, places []core.Place, ttl time.Duration) error
	SetCachedError(ctx context.Context, address, provider, message string, ttl time.Duration) error
	GetRateLimit(ctx context.Context, endpoint string) (*core.RateLimitState, error)
	UpdateRateLimit(ctx context.Context, endpoint string, state *core.RateLimitState) error
}

// CachePolicy controls how long geocoding outcomes are cached.
type CachePolicy struct {
	SuccessTTL time.Duration
	EmptyTTL   time.Duration
	ErrorTTL   time.Duration
}

// DefaultCachePolicy keeps successful lookups for a week, empty ones for an
// hour, and failures for half a minute. Addresses rarely move; unknown
// addresses get retried sooner, and a failing provider gets a short breather.
var DefaultCachePolicy = CachePolicy{
	SuccessTTL: 7 * 24 * time.Hour,
	EmptyTTL:   time.Hour,
	ErrorTTL:   30 * time.Second,
}

func cacheTTL(policy CachePolicy, places []core.Place) time.Duration {
	if len(places) == 0 {
		if policy.EmptyTTL > 0 {
			return policy.EmptyTTL
		}
		return DefaultCachePolicy.EmptyTTL
	}
	if policy.SuccessTTL > 0 {
		return policy.SuccessTTL
	}
	return DefaultCachePolicy.SuccessTTL
}

func errorCacheTTL(policy CachePolicy) time.Duration {
	if policy.ErrorTTL > 0 {
		return policy.ErrorTTL
	}
	return DefaultCachePolicy.ErrorTTL
}

// EndpointHost returns the rate-limit endpoint key for a provider. A custom
// base URL wins over the provider's public instance.
func EndpointHost(provider, baseURL string) string {
	if baseURL != "" {
		if parsed, err := url.Parse(baseURL); err == nil && parsed.Hostname() != "" {
			return parsed.Hostname()
		}
	}

	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", nominatimProvider:
		return "nominatim.openstreetmap.org"
	case photonProvider:
		return "photon.komoot.io"
	default:
		return ""
	}
}

func retryAfterHeader(resp *http.Response) time.Duration {
	if resp == nil || resp.Header == nil {
		return 0
	}

	retry := resp.Header.Get("Retry-After")
	if retry == "" {
		return 0
	}

	if seconds, err := time.ParseDuration(retry + "s"); err == nil {
		return seconds
	}
	if parsed, err := http.ParseTime(retry); err == nil {
		return time.Until(parsed)
	}

	return 0
}
