package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHealthHandlerReportsHealthy(t *testing.T) {
	hm := NewHealthManager("test")
	hm.RegisterChecker("always_ok", HealthCheckerFunc(func(ctx context.Context) error {
		return nil
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	hm.HealthHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "healthy", resp.Status)
	require.Equal(t, "test", resp.Version)
	require.Equal(t, "healthy", resp.Checks["always_ok"])
}

func TestHealthHandlerReportsUnhealthy(t *testing.T) {
	hm := NewHealthManager("test")
	hm.RegisterChecker("broken", HealthCheckerFunc(func(ctx context.Context) error {
		return errors.New("dependency down")
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	hm.HealthHandler(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDetermineOverallStatus(t *testing.T) {
	hm := NewHealthManager("test")

	require.Equal(t, "healthy", hm.determineOverallStatus(map[string]string{"a": "healthy"}))
	require.Equal(t, "degraded", hm.determineOverallStatus(map[string]string{"a": "timeout"}))
	require.Equal(t, "unhealthy", hm.determineOverallStatus(map[string]string{"a": "healthy", "b": "unhealthy"}))
}

func TestLivenessProbe(t *testing.T) {
	hm := NewHealthManager("test")
	hm.RegisterChecker("noop", HealthCheckerFunc(func(ctx context.Context) error {
		return nil
	}))

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()

	hm.LivenessHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ProbeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "healthy", resp.Status)
	require.False(t, resp.Timestamp.IsZero())
}

func TestHealthHandlerUninitialized(t *testing.T) {
	original := globalHealthManager
	globalHealthManager = nil
	t.Cleanup(func() { globalHealthManager = original })

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	HealthHandler(rec, req)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
