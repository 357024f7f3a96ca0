package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pinmap/pinmap/internal/core"
)

// defaultConcurrency bounds the marker resolution fan-out.
const defaultConcurrency = 4

// Orchestrator coordinates map composition: marker resolution, geolocation
// and document hydration.
type Orchestrator struct {
	Geocoder    Geocoder
	Locator     Locator
	Concurrency int
	Clock       func() time.Time
}

// Geocoder resolves a free-form address into candidate places, best match
// first. A nil error implies at least one place; a lookup that succeeds but
// matches nothing returns core.ErrNoResults.
type Geocoder interface {
	Geocode(ctx context.Context, address string) ([]core.Place, *core.Provenance, error)
	Provider() string
}

// Locator estimates the caller's own position.
type Locator interface {
	Locate(ctx context.Context) (*core.Location, error)
}

// Draw builds a map view from a document. The view always comes back with a
// valid position; marker failures are reported in the batch result without
// failing the draw.
func (o *Orchestrator) Draw(ctx context.Context, doc *core.MapDocument) (*core.MapView, *core.BatchResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if doc == nil {
		return core.DefaultView(), &core.BatchResult{CompletedAt: o.now()}, nil
	}

	if err := doc.Validate(); err != nil {
		return nil, nil, err
	}

	view := core.DefaultView()
	view.Center = core.Position{Lat: doc.Position.Lat, Long: doc.Position.Long}
	view.Zoom = doc.Position.Zoom

	batch := o.AddMarkers(ctx, view, doc.Markers)
	return view, batch, nil
}

// Hydrate parses a JSON document and draws it. Malformed documents fail the
// whole operation; individual marker failures do not.
func (o *Orchestrator) Hydrate(ctx context.Context, data []byte) (*core.MapView, *core.BatchResult, error) {
	doc, err := core.ParseDocument(data)
	if err != nil {
		return nil, nil, err
	}
	return o.Draw(ctx, doc)
}

// AddMarkers resolves marker specs concurrently and appends the successful
// ones to the view in spec order. Resolution is best effort: a spec that
// fails to validate or geocode produces a failed entry in the batch result
// and the remaining markers still land.
func (o *Orchestrator) AddMarkers(ctx context.Context, view *core.MapView, specs []core.MarkerSpec) *core.BatchResult {
	if ctx == nil {
		ctx = context.Background()
	}

	batch := &core.BatchResult{
		Results: make([]*core.MarkerResult, 0, len(specs)),
	}

	if len(specs) == 0 {
		batch.CompletedAt = o.now()
		return batch
	}

	concurrency := o.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if concurrency > len(specs) {
		concurrency = len(specs)
	}

	resultCh := make(chan *core.MarkerResult, len(specs))
	sem := make(chan struct{}, concurrency)

	var wg sync.WaitGroup
	for i, spec := range specs {
		wg.Add(1)
		go func(index int, spec core.MarkerSpec) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			resultCh <- o.resolveMarker(ctx, index, spec)
		}(i, spec)
	}

	wg.Wait()
	close(resultCh)

	for result := range resultCh {
		batch.Results = append(batch.Results, result)
	}
	sort.Slice(batch.Results, func(a, b int) bool {
		return batch.Results[a].Index < batch.Results[b].Index
	})

	for _, result := range batch.Results {
		switch result.Status {
		case core.MarkerStatusAdded:
			batch.Added++
			if view != nil && result.Marker != nil {
				view.Markers = append(view.Markers, result.Marker)
			}
		default:
			batch.Failed++
		}
	}

	batch.CompletedAt = o.now()
	return batch
}

// MoveView recenters the view and adjusts the zoom. The existing markers are
// kept; only the camera moves.
func (o *Orchestrator) MoveView(view *core.MapView, lat, long float64, zoom int) error {
	if view == nil {
		return errors.New("view is required")
	}

	if err := core.ValidatePosition(lat, long); err != nil {
		return err
	}
	if zoom < core.MinZoom || zoom > core.MaxZoom {
		return fmt.Errorf("zoom %d out of range [%d, %d]", zoom, core.MinZoom, core.MaxZoom)
	}

	view.Center = core.Position{Lat: lat, Long: long}
	view.Zoom = zoom
	return nil
}

// Teardown resets a view to the default configuration and drops its markers.
// The view value stays usable for a subsequent draw.
func (o *Orchestrator) Teardown(view *core.MapView) {
	if view == nil {
		return
	}

	fresh := core.DefaultView()
	view.Center = fresh.Center
	view.Zoom = fresh.Zoom
	view.Markers = nil
}

// Locate returns the caller's estimated position.
func (o *Orchestrator) Locate(ctx context.Context) (*core.Location, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if o == nil || o.Locator == nil {
		return nil, errors.New("locator is not configured")
	}

	return o.Locator.Locate(ctx)
}

func (o *Orchestrator) resolveMarker(ctx context.Context, index int, spec core.MarkerSpec) *core.MarkerResult {
	requestedAt := o.now()

	result := &core.MarkerResult{
		Index:  index,
		Spec:   spec,
		Status: core.MarkerStatusFailed,
		Provenance: core.Provenance{
			RequestedAt: requestedAt,
			Source:      "literal",
		},
	}

	if err := spec.Validate(); err != nil {
		result.Message = err.Error()
		result.Provenance.ResolvedAt = o.now()
		return result
	}

	if !spec.IsAddress() {
		result.Marker = &core.Marker{
			Position:  core.Position{Lat: *spec.Lat, Long: *spec.Long},
			Label:     spec.Label,
			PopupText: spec.PopupText,
			Icon:      spec.Icon,
		}
		result.Status = core.MarkerStatusAdded
		result.Provenance.ResolvedAt = o.now()
		return result
	}

	if o == nil || o.Geocoder == nil {
		result.Message = "geocoder is not configured"
		result.Provenance.ResolvedAt = o.now()
		return result
	}

	result.Provenance.Source = o.Geocoder.Provider()

	places, provenance, err := o.Geocoder.Geocode(ctx, strings.TrimSpace(spec.Address))
	if provenance != nil {
		provenance.RequestedAt = requestedAt
		result.Provenance = *provenance
	}
	if result.Provenance.ResolvedAt.IsZero() {
		result.Provenance.ResolvedAt = o.now()
	}

	if err != nil {
		if errors.Is(err, core.ErrNoResults) {
			result.Message = fmt.Sprintf("no results for %q", spec.Address)
		} else {
			result.Message = err.Error()
		}
		return result
	}
	if len(places) == 0 {
		result.Message = fmt.Sprintf("no results for %q", spec.Address)
		return result
	}

	// The first candidate wins; providers order results by relevance.
	place := places[0]
	label := spec.Label
	if label == "" {
		label = place.DisplayName
	}

	result.Marker = &core.Marker{
		Position:  core.Position{Lat: place.Lat, Long: place.Long},
		Label:     label,
		PopupText: spec.PopupText,
		Icon:      spec.Icon,
	}
	result.Status = core.MarkerStatusAdded
	return result
}

func (o *Orchestrator) now() time.Time {
	if o != nil && o.Clock != nil {
		return o.Clock()
	}
	return time.Now().UTC()
}
