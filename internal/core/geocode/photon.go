package geocode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/pinmap/pinmap/internal/core"
	"github.com/pinmap/pinmap/internal/core/engine"
	"github.com/pinmap/pinmap/internal/metrics"
)

const photonProvider = "photon"

// maxPhotonBody bounds the response read; Photon replies are small.
const maxPhotonBody = 4 << 20

// PhotonClient geocodes addresses against a Photon instance. Photon speaks
// GeoJSON, so responses decode through the orb feature collection types.
type PhotonClient struct {
	Store       GeocodeStore
	Client      *http.Client
	Limiter     *engine.RateLimiter
	CachePolicy CachePolicy
	UseCache    bool
	BaseURL     string
	Limit       int
	Clock       func() time.Time
}

// Geocode resolves an address into candidate places, best match first.
func (c *PhotonClient) Geocode(ctx context.Context, address string) ([]core.Place, *core.Provenance, error) {
	if c == nil {
		return nil, nil, errors.New("photon client is not configured")
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
		if cached, provenance, err := c.Store.GetCachedPlaces(ctx, query, photonProvider); provenance != nil {
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
	values.Set("limit", strconv.Itoa(c.limit()))

	searchURL := baseURL.ResolveReference(&url.URL{Path: joinPath(baseURL.Path, "api"), RawQuery: values.Encode()})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL.String(), nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Accept", "application/json")

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
		metrics.RecordGeocodeRequest(photonProvider, false)
		return nil, nil, c.cacheError(ctx, query, fmt.Errorf("photon request: %w", err))
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
		metrics.RecordGeocodeRequest(photonProvider, false)
		return nil, nil, c.cacheError(ctx, query, fmt.Errorf("photon rate limited, retry in %s", wait.Round(time.Second)))
	default:
		metrics.RecordGeocodeRequest(photonProvider, false)
		return nil, nil, c.cacheError(ctx, query, fmt.Errorf("unexpected photon response: %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotonBody))
	if err != nil {
		metrics.RecordGeocodeRequest(photonProvider, false)
		return nil, nil, c.cacheError(ctx, query, fmt.Errorf("read photon response: %w", err))
	}

	collection, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		metrics.RecordGeocodeRequest(photonProvider, false)
		return nil, nil, c.cacheError(ctx, query, fmt.Errorf("decode photon response: %w", err))
	}

	places := make([]core.Place, 0, len(collection.Features))
	for _, feature := range collection.Features {
		point, ok := feature.Geometry.(orb.Point)
		if !ok {
			continue
		}
		lat := point.Lat()
		long := point.Lon()
		if core.ValidatePosition(lat, long) != nil {
			continue
		}
		places = append(places, core.Place{
			DisplayName: photonDisplayName(feature),
			Lat:         lat,
			Long:        long,
		})
	}

	metrics.RecordGeocodeRequest(photonProvider, true)

	provenance := &core.Provenance{
		CheckID:     uuid.New().String(),
		RequestedAt: requestedAt,
		ResolvedAt:  c.now(),
		Source:      photonProvider,
	}

	c.cachePlaces(ctx, query, places)

	if len(places) == 0 {
		return nil, provenance, core.ErrNoResults
	}

	return places, provenance, nil
}

// Provider returns the provider name.
func (c *PhotonClient) Provider() string {
	return photonProvider
}

func (c *PhotonClient) baseURL() *url.URL {
	if c != nil && c.BaseURL != "" {
		if parsed, err := url.Parse(c.BaseURL); err == nil {
			return parsed
		}
	}
	parsed, _ := url.Parse("https://photon.komoot.io")
	return parsed
}

func (c *PhotonClient) limit() int {
	if c != nil && c.Limit > 0 {
		return c.Limit
	}
	return 5
}

func (c *PhotonClient) cachePlaces(ctx context.Context, address string, places []core.Place) {
	if c == nil || c.Store == nil || !c.UseCache {
		return
	}

	ttl := cacheTTL(c.CachePolicy, places)
	if ttl <= 0 {
		return
	}

	_ = c.Store.SetCachedPlaces(ctx, address, photonProvider, places, ttl)
}

func (c *PhotonClient) cacheError(ctx context.Context, address string, cause error) error {
	if c == nil || c.Store == nil || !c.UseCache || cause == nil {
		return cause
	}

	ttl := errorCacheTTL(c.CachePolicy)
	if ttl <= 0 {
		return cause
	}

	_ = c.Store.SetCachedError(ctx, address, photonProvider, cause.Error(), ttl)
	return cause
}

func (c *PhotonClient) now() time.Time {
	if c != nil && c.Clock != nil {
		return c.Clock()
	}
	return time.Now().UTC()
}

// photonDisplayName assembles a readable name from feature properties.
func photonDisplayName(feature *geojson.Feature) string {
	if feature == nil {
		return ""
	}

	parts := make([]string, 0, 4)
	for _, key := range []string{"name", "city", "state", "country"} {
		value, ok := feature.Properties[key].(string)
		if !ok || value == "" {
			continue
		}
		if len(parts) > 0 && parts[len(parts)-1] == value {
			continue
		}
		parts = append(parts, value)
	}

	return strings.Join(parts, ", ")
}
