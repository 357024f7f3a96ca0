package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pinmap/pinmap/internal/core"
	"github.com/pinmap/pinmap/internal/core/engine"
	"github.com/pinmap/pinmap/internal/metrics"
)

const nominatimProvider = "nominatim"

// NominatimClient geocodes addresses against a Nominatim instance. The public
// instance requires an identifying User-Agent and at most one request per
// second; the limiter gate runs before every network call.
type NominatimClient struct {
	Store       GeocodeStore
	Client      *http.Client
	Limiter     *engine.RateLimiter
	CachePolicy CachePolicy
	UseCache    bool
	BaseURL     string
	UserAgent   string
	Email       string
	Limit       int
	Clock       func() time.Time
}

type nominatimPlace struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}

// Geocode resolves an address into candidate places, best match first.
// A lookup that succeeds but matches nothing returns core.ErrNoResults.
func (c *NominatimClient) Geocode(ctx context.Context, address string) ([]core.Place, *core.Provenance, error) {
	if c == nil {
		return nil, nil, errors.New("nominatim client is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	query := strings.TrimSpace(address)
	if query == "" {
		return nil, nil, errors.New("address is required")
	}

	requestedAt := c.now()

	if c.UseCache && c.Store != nil {
		if cached, provenance, err := c.Store.GetCachedPlaces(ctx, query, nominatimProvider); provenance != nil {
			provenance.RequestedAt = requestedAt
			if err != nil {
				return nil, provenance, err
			}
			if len(cached) == 0 {
				return nil, provenance, core.ErrNoResults
			}
			return cached, provenance, nil
		}
	}

	baseURL := c.baseURL()
	endpoint := baseURL.Hostname()

	if c.Limiter != nil && endpoint != "" {
		waited, err := c.Limiter.Wait(ctx, endpoint)
		if err != nil {
			return nil, nil, err
		}
		metrics.RecordGeocodeWait(endpoint, waited)
	}

	values := url.Values{}
	values.Set("q", query)
	values.Set("format", "json")
	values.Set("limit", strconv.Itoa(c.limit()))
	if c.Email != "" {
		values.Set("email", c.Email)
	}

	searchURL := baseURL.ResolveReference(&url.URL{Path: joinPath(baseURL.Path, "search"), RawQuery: values.Encode()})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL.String(), nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent())

	client := c.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	if c.Limiter != nil && endpoint != "" {
		if err := c.Limiter.Record(ctx, endpoint); err != nil {
			return nil, nil, err
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		metrics.RecordGeocodeRequest(nominatimProvider, false)
		return nil, nil, c.cacheError(ctx, query, fmt.Errorf("nominatim request: %w", err))
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	switch resp.StatusCode {
	case http.StatusOK:
		// fall through to decoding
	case http.StatusTooManyRequests:
		wait := retryAfterHeader(resp)
		if c.Limiter != nil && endpoint != "" {
			_ = c.Limiter.Record429(ctx, endpoint, wait)
		}
		metrics.RecordGeocodeRequest(nominatimProvider, false)
		return nil, nil, c.cacheError(ctx, query, fmt.Errorf("nominatim rate limited, retry in %s", wait.Round(time.Second)))
	default:
		metrics.RecordGeocodeRequest(nominatimProvider, false)
		return nil, nil, c.cacheError(ctx, query, fmt.Errorf("unexpected nominatim response: %d", resp.StatusCode))
	}

	var payload []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		metrics.RecordGeocodeRequest(nominatimProvider, false)
		return nil, nil, c.cacheError(ctx, query, fmt.Errorf("decode nominatim response: %w", err))
	}

	places := make([]core.Place, 0, len(payload))
	for _, entry := range payload {
		lat, latErr := strconv.ParseFloat(entry.Lat, 64)
		long, lonErr := strconv.ParseFloat(entry.Lon, 64)
		if latErr != nil || lonErr != nil {
			continue
		}
		if core.ValidatePosition(lat, long) != nil {
			continue
		}
		places = append(places, core.Place{
			DisplayName: entry.DisplayName,
			Lat:         lat,
			Long:        long,
		})
	}

	metrics.RecordGeocodeRequest(nominatimProvider, true)

	provenance := &core.Provenance{
		CheckID:     uuid.New().String(),
		RequestedAt: requestedAt,
		ResolvedAt:  c.now(),
		Source:      nominatimProvider,
	}

	c.cachePlaces(ctx, query, places)

	if len(places) == 0 {
		return nil, provenance, core.ErrNoResults
	}

	return places, provenance, nil
}

// Provider returns the provider name.
func (c *NominatimClient) Provider() string {
	return nominatimProvider
}

func (c *NominatimClient) baseURL() *url.URL {
	if c != nil && c.BaseURL != "" {
		if parsed, err := url.Parse(c.BaseURL); err == nil {
			return parsed
		}
	}
	parsed, _ := url.Parse("https://nominatim.openstreetmap.org")
	return parsed
}

func (c *NominatimClient) userAgent() string {
	if c != nil && c.UserAgent != "" {
		return c.UserAgent
	}
	return "pinmap"
}

func (c *NominatimClient) limit() int {
	if c != nil && c.Limit > 0 {
		return c.Limit
	}
	return 5
}

func (c *NominatimClient) cachePlaces(ctx context.Context, address string, places []core.Place) {
	if c == nil || c.Store == nil || !c.UseCache {
		return
	}

	ttl := cacheTTL(c.CachePolicy, places)
	if ttl <= 0 {
		return
	}

	_ = c.Store.SetCachedPlaces(ctx, address, nominatimProvider, places, ttl)
}

// cacheError stores a failure outcome under the error TTL and returns the
// cause unchanged so callers can chain it into their return.
func (c *NominatimClient) cacheError(ctx context.Context, address string, cause error) error {
	if c == nil || c.Store == nil || !c.UseCache || cause == nil {
		return cause
	}

	ttl := errorCacheTTL(c.CachePolicy)
	if ttl <= 0 {
		return cause
	}

	_ = c.Store.SetCachedError(ctx, address, nominatimProvider, cause.Error(), ttl)
	return cause
}

func (c *NominatimClient) now() time.Time {
	if c != nil && c.Clock != nil {
		return c.Clock()
	}
	return time.Now().UTC()
}

func joinPath(base, elem string) string {
	base = strings.TrimSuffix(base, "/")
	return base + "/" + elem
}
