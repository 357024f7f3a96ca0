package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/pinmap/pinmap/internal/core"
	"github.com/pinmap/pinmap/internal/core/engine"
	apperrors "github.com/pinmap/pinmap/internal/errors"
)

// GeocodeHandler serves address lookups through the configured provider.
type GeocodeHandler struct {
	Geocoder engine.Geocoder
	Locator  engine.Locator
}

// GeocodeResponse is the GET /geocode payload.
type GeocodeResponse struct {
	Query      string           `json:"query"`
	Provider   string           `json:"provider"`
	Places     []core.Place     `json:"places"`
	Provenance *core.Provenance `json:"provenance,omitempty"`
}

// Geocode resolves the q parameter into candidate places.
func (h *GeocodeHandler) Geocode(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Geocoder == nil {
		respondWithError(w, r, apperrors.NewInternalError("geocoder is not configured"))
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		respondWithError(w, r, apperrors.NewValidationError("query parameter q is required"))
		return
	}

	places, provenance, err := h.Geocoder.Geocode(r.Context(), query)
	if err != nil {
		if errors.Is(err, core.ErrNoResults) {
			respondWithError(w, r, apperrors.NewNotFoundError("no results for "+query))
			return
		}
		respondWithError(w, r, apperrors.WrapGeocoding(r.Context(), err, "geocoding failed"))
		return
	}

	response := GeocodeResponse{
		Query:      query,
		Provider:   h.Geocoder.Provider(),
		Places:     places,
		Provenance: provenance,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

// Locate returns the server's estimated position.
func (h *GeocodeHandler) Locate(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Locator == nil {
		respondWithError(w, r, apperrors.NewInternalError("locator is not configured"))
		return
	}

	location, err := h.Locator.Locate(r.Context())
	if err != nil {
		respondWithError(w, r, apperrors.WrapGeocoding(r.Context(), err, "geolocation failed"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(location)
}
