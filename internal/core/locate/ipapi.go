package locate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/pinmap/pinmap/internal/core"
)

const ipapiSource = "ip-api"

// ipapiRate is the default outbound cap of 45 calls per minute, the free
// tier limit.
var ipapiRate = rate.Every(time.Minute / 45)

// IPAPIClient estimates the caller's position from its public IP address
// using ip-api.com. The free endpoint is HTTP only and needs no key.
// RequestsPerMin overrides the outbound cap; zero keeps the free tier rate.
type IPAPIClient struct {
	Client         *http.Client
	BaseURL        string
	RequestsPerMin int
	limiter        *rate.Limiter
}

type ipapiResponse struct {
	Status     string  `json:"status"`
	Message    string  `json:"message"`
	Country    string  `json:"country"`
	RegionName string  `json:"regionName"`
	City       string  `json:"city"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Query      string  `json:"query"`
}

// Locate returns the position estimated for the caller's public IP.
func (c *IPAPIClient) Locate(ctx context.Context) (*core.Location, error) {
	if c == nil {
		return nil, errors.New("ip-api client is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.queryURL(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	client := c.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ip-api request: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected ip-api response: %d", resp.StatusCode)
	}

	var payload ipapiResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode ip-api response: %w", err)
	}

	if payload.Status != "success" {
		if payload.Message != "" {
			return nil, fmt.Errorf("ip-api lookup failed: %s", payload.Message)
		}
		return nil, errors.New("ip-api lookup failed")
	}

	if err := core.ValidatePosition(payload.Lat, payload.Lon); err != nil {
		return nil, fmt.Errorf("ip-api position: %w", err)
	}

	return &core.Location{
		Position: core.Position{Lat: payload.Lat, Long: payload.Lon},
		City:     payload.City,
		Region:   payload.RegionName,
		Country:  payload.Country,
		Query:    payload.Query,
	}, nil
}

// Source returns the locator name.
func (c *IPAPIClient) Source() string {
	return ipapiSource
}

func (c *IPAPIClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		c.limiter = rate.NewLimiter(c.rateLimit(), 1)
	}
	return c.limiter.Wait(ctx)
}

func (c *IPAPIClient) rateLimit() rate.Limit {
	if c != nil && c.RequestsPerMin > 0 {
		return rate.Every(time.Minute / time.Duration(c.RequestsPerMin))
	}
	return ipapiRate
}

func (c *IPAPIClient) queryURL() string {
	base := "http://ip-api.com"
	if c != nil && c.BaseURL != "" {
		base = c.BaseURL
	}

	parsed, err := url.Parse(base)
	if err != nil {
		return base + "/json"
	}
	return parsed.ResolveReference(&url.URL{Path: "/json"}).String()
}
