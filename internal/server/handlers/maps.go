package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pinmap/pinmap/internal/core"
	"github.com/pinmap/pinmap/internal/core/engine"
	"github.com/pinmap/pinmap/internal/core/store"
	apperrors "github.com/pinmap/pinmap/internal/errors"
	"github.com/pinmap/pinmap/internal/metrics"
	"github.com/pinmap/pinmap/internal/render"
)

// maxDocumentBody bounds map document uploads.
const maxDocumentBody = 1 << 20

// MapsHandler serves the stored-maps API: documents are saved by name and
// drawn on demand.
type MapsHandler struct {
	Store        *store.Store
	Orchestrator *engine.Orchestrator
	Leaflet      *render.LeafletRenderer
	Static       *render.StaticMapRenderer
}

// SaveMapRequest is the POST /maps payload.
type SaveMapRequest struct {
	Name     string           `json:"name"`
	Document core.MapDocument `json:"document"`
}

// MapSummary is a stored map list entry.
type MapSummary struct {
	Name      string `json:"name"`
	Markers   int    `json:"markers"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// DrawResponse pairs the composed view with its batch outcome.
type DrawResponse struct {
	View  *core.MapView     `json:"view"`
	Batch *core.BatchResult `json:"batch"`
}

// Save stores a named map document.
func (h *MapsHandler) Save(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Store == nil {
		respondWithError(w, r, apperrors.NewInternalError("map store is not configured"))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxDocumentBody))
	if err != nil {
		respondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "unable to read request body"))
		return
	}

	var request SaveMapRequest
	if err := json.Unmarshal(body, &request); err != nil {
		respondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "request body is not valid JSON"))
		return
	}

	name := strings.TrimSpace(request.Name)
	if name == "" {
		respondWithError(w, r, apperrors.NewValidationError("map name is required"))
		return
	}

	if err := request.Document.Validate(); err != nil {
		respondWithError(w, r, apperrors.WrapValidationError(r.Context(), err, "map document is invalid"))
		return
	}

	if err := h.Store.SaveMap(r.Context(), name, &request.Document); err != nil {
		respondWithError(w, r, apperrors.WrapDatabaseError(r.Context(), err, "unable to store map"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]string{"name": name})
}

// List returns summaries of all stored maps.
func (h *MapsHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Store == nil {
		respondWithError(w, r, apperrors.NewInternalError("map store is not configured"))
		return
	}

	maps, err := h.Store.ListMaps(r.Context())
	if err != nil {
		respondWithError(w, r, apperrors.WrapDatabaseError(r.Context(), err, "unable to list maps"))
		return
	}

	summaries := make([]MapSummary, 0, len(maps))
	for _, saved := range maps {
		summaries = append(summaries, MapSummary{
			Name:      saved.Name,
			Markers:   len(saved.Document.Markers),
			CreatedAt: saved.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			UpdatedAt: saved.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(summaries)
}

// Get returns a stored map document.
func (h *MapsHandler) Get(w http.ResponseWriter, r *http.Request) {
	saved, ok := h.loadMap(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(saved.Document)
}

// Delete removes a stored map.
func (h *MapsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Store == nil {
		respondWithError(w, r, apperrors.NewInternalError("map store is not configured"))
		return
	}

	name := chi.URLParam(r, "name")
	if err := h.Store.DeleteMap(r.Context(), name); err != nil {
		if errors.Is(err, store.ErrMapNotFound) {
			respondWithError(w, r, apperrors.NewNotFoundError("map not found: "+name))
			return
		}
		respondWithError(w, r, apperrors.WrapDatabaseError(r.Context(), err, "unable to delete map"))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// View draws a stored map and returns the composed view with its batch.
func (h *MapsHandler) View(w http.ResponseWriter, r *http.Request) {
	view, batch, ok := h.drawMap(w, r)
	if !ok {
		return
	}

	metrics.RecordMapDrawn("server")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(DrawResponse{View: view, Batch: batch})
}

// Page draws a stored map as a Leaflet HTML page.
func (h *MapsHandler) Page(w http.ResponseWriter, r *http.Request) {
	view, _, ok := h.drawMap(w, r)
	if !ok {
		return
	}

	renderer := h.Leaflet
	if renderer == nil {
		renderer = &render.LeafletRenderer{}
	}

	page, err := renderer.Render(view)
	if err != nil {
		respondWithError(w, r, apperrors.WrapInternal(r.Context(), err, "unable to render map page"))
		return
	}

	metrics.RecordMapDrawn("server")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(page)
}

// Image draws a stored map as a static PNG.
func (h *MapsHandler) Image(w http.ResponseWriter, r *http.Request) {
	view, _, ok := h.drawMap(w, r)
	if !ok {
		return
	}

	renderer := h.Static
	if renderer == nil {
		renderer = &render.StaticMapRenderer{}
	}

	img, err := renderer.Render(view)
	if err != nil {
		respondWithError(w, r, apperrors.WrapInternal(r.Context(), err, "unable to render map image"))
		return
	}

	metrics.RecordMapDrawn("server")

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if err := render.EncodeImage(w, img, "png", 0); err != nil {
		// Headers are already sent; nothing left to do beyond logging upstream.
		return
	}
}

// Draw hydrates an inline document without storing it.
func (h *MapsHandler) Draw(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Orchestrator == nil {
		respondWithError(w, r, apperrors.NewInternalError("orchestrator is not configured"))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxDocumentBody))
	if err != nil {
		respondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "unable to read request body"))
		return
	}

	view, batch, err := h.Orchestrator.Hydrate(r.Context(), body)
	if err != nil {
		respondWithError(w, r, apperrors.WrapValidationError(r.Context(), err, "map document is invalid"))
		return
	}

	metrics.RecordMapDrawn("server")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(DrawResponse{View: view, Batch: batch})
}

func (h *MapsHandler) loadMap(w http.ResponseWriter, r *http.Request) (*store.SavedMap, bool) {
	if h == nil || h.Store == nil {
		respondWithError(w, r, apperrors.NewInternalError("map store is not configured"))
		return nil, false
	}

	name := chi.URLParam(r, "name")
	saved, err := h.Store.GetMap(r.Context(), name)
	if err != nil {
		if errors.Is(err, store.ErrMapNotFound) {
			respondWithError(w, r, apperrors.NewNotFoundError("map not found: "+name))
			return nil, false
		}
		respondWithError(w, r, apperrors.WrapDatabaseError(r.Context(), err, "unable to load map"))
		return nil, false
	}

	return saved, true
}

func (h *MapsHandler) drawMap(w http.ResponseWriter, r *http.Request) (*core.MapView, *core.BatchResult, bool) {
	saved, ok := h.loadMap(w, r)
	if !ok {
		return nil, nil, false
	}

	if h.Orchestrator == nil {
		respondWithError(w, r, apperrors.NewInternalError("orchestrator is not configured"))
		return nil, nil, false
	}

	view, batch, err := h.Orchestrator.Draw(r.Context(), &saved.Document)
	if err != nil {
		respondWithError(w, r, apperrors.WrapValidationError(r.Context(), err, "stored map document is invalid"))
		return nil, nil, false
	}

	return view, batch, true
}
