package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pinmap/pinmap/internal/core"
	"github.com/pinmap/pinmap/internal/core/engine"
	apperrors "github.com/pinmap/pinmap/internal/errors"
	"github.com/pinmap/pinmap/internal/server/handlers"
)

type stubGeocoder struct {
	places []core.Place
	err    error
}

func (s *stubGeocoder) Geocode(ctx context.Context, address string) ([]core.Place, *core.Provenance, error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	return s.places, &core.Provenance{Source: s.Provider()}, nil
}

func (s *stubGeocoder) Provider() string { return "stub" }

type stubLocator struct {
	location *core.Location
	err      error
}

func (s *stubLocator) Locate(ctx context.Context) (*core.Location, error) {
	return s.location, s.err
}

func newTestServer(deps Deps) *Server {
	return New("127.0.0.1", 0, deps)
}

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	srv := newTestServer(Deps{})

	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}

	var body apperrors.HTTPErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}

	if body.Error.Code != "NOT_FOUND" {
		t.Fatalf("expected error code NOT_FOUND, got %s", body.Error.Code)
	}
}

func TestServerRejectsWrongMethod(t *testing.T) {
	srv := newTestServer(Deps{})

	req := httptest.NewRequest(http.MethodDelete, "/draw", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rec.Code)
	}

	var body apperrors.HTTPErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}

	if body.Error.Code != "METHOD_NOT_ALLOWED" {
		t.Fatalf("expected error code METHOD_NOT_ALLOWED, got %s", body.Error.Code)
	}
}

func TestDrawEndpointComposesView(t *testing.T) {
	srv := newTestServer(Deps{
		Orchestrator: &engine.Orchestrator{
			Geocoder: &stubGeocoder{places: []core.Place{
				{DisplayName: "Berlin, Germany", Lat: 52.52, Long: 13.405},
			}},
		},
	})

	document := `{
		"position": {"lat": 52.5, "long": 13.4, "zoom": 11},
		"markers": [
			{"lat": 52.516, "long": 13.377, "label": "Brandenburg Gate"},
			{"address": "Berlin"}
		]
	}`

	req := httptest.NewRequest(http.MethodPost, "/draw", strings.NewReader(document))
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp handlers.DrawResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode draw response: %v", err)
	}

	if resp.View == nil || len(resp.View.Markers) != 2 {
		t.Fatalf("expected 2 markers in view, got %+v", resp.View)
	}
	if resp.Batch == nil || resp.Batch.Added != 2 || resp.Batch.Failed != 0 {
		t.Fatalf("expected 2 added and 0 failed, got %+v", resp.Batch)
	}
	if resp.View.Zoom != 11 {
		t.Fatalf("expected zoom 11, got %d", resp.View.Zoom)
	}
}

func TestDrawEndpointRejectsMalformedDocument(t *testing.T) {
	srv := newTestServer(Deps{Orchestrator: &engine.Orchestrator{}})

	req := httptest.NewRequest(http.MethodPost, "/draw", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}

	var body apperrors.HTTPErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}

	if body.Error.Code != "VALIDATION_FAILED" {
		t.Fatalf("expected error code VALIDATION_FAILED, got %s", body.Error.Code)
	}
}

func TestGeocodeEndpointReturnsPlaces(t *testing.T) {
	srv := newTestServer(Deps{
		Geocoder: &stubGeocoder{places: []core.Place{
			{DisplayName: "Paris, France", Lat: 48.857, Long: 2.351},
		}},
	})

	req := httptest.NewRequest(http.MethodGet, "/geocode?q=Paris", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp handlers.GeocodeResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode geocode response: %v", err)
	}

	if resp.Provider != "stub" {
		t.Fatalf("expected provider stub, got %s", resp.Provider)
	}
	if len(resp.Places) != 1 || resp.Places[0].DisplayName != "Paris, France" {
		t.Fatalf("unexpected places: %+v", resp.Places)
	}
}

func TestGeocodeEndpointRequiresQuery(t *testing.T) {
	srv := newTestServer(Deps{Geocoder: &stubGeocoder{}})

	req := httptest.NewRequest(http.MethodGet, "/geocode", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestGeocodeEndpointMapsNoResultsTo404(t *testing.T) {
	srv := newTestServer(Deps{Geocoder: &stubGeocoder{err: core.ErrNoResults}})

	req := httptest.NewRequest(http.MethodGet, "/geocode?q=zzzzzz", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}

func TestLocateEndpointReturnsPosition(t *testing.T) {
	srv := newTestServer(Deps{
		Locator: &stubLocator{location: &core.Location{
			Position: core.Position{Lat: 37.77, Long: -122.42},
			City:     "San Francisco",
		}},
	})

	req := httptest.NewRequest(http.MethodGet, "/locate", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var location core.Location
	if err := json.NewDecoder(rec.Body).Decode(&location); err != nil {
		t.Fatalf("failed to decode location: %v", err)
	}

	if location.City != "San Francisco" || location.Position.Lat != 37.77 {
		t.Fatalf("unexpected location: %+v", location)
	}
}
