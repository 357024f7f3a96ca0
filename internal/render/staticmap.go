package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"

	sm "github.com/flopp/go-staticmaps"
	"github.com/golang/geo/s2"

	"github.com/pinmap/pinmap/internal/core"
)

const (
	defaultStaticWidth  = 800
	defaultStaticHeight = 600
	defaultMarkerSize   = 16.0
)

// StaticMapRenderer draws a view into a PNG image with OSM tiles. Useful for
// sharing a composed map without a browser.
type StaticMapRenderer struct {
	Width  int
	Height int
}

// Render draws the view and returns the composed image. Tile fetches go over
// the network, so callers should treat this as a slow operation.
func (r *StaticMapRenderer) Render(view *core.MapView) (image.Image, error) {
	if view == nil {
		return nil, errors.New("map view is required")
	}

	ctx := sm.NewContext()
	ctx.SetSize(r.width(), r.height())
	ctx.SetZoom(view.Zoom)
	ctx.SetCenter(s2.LatLngFromDegrees(view.Center.Lat, view.Center.Long))

	for _, marker := range StaticMarkers(view) {
		ctx.AddObject(marker)
	}

	img, err := ctx.Render()
	if err != nil {
		return nil, fmt.Errorf("render static map: %w", err)
	}

	return img, nil
}

// RenderPNG draws the view and writes it as PNG.
func (r *StaticMapRenderer) RenderPNG(view *core.MapView, w io.Writer) error {
	img, err := r.Render(view)
	if err != nil {
		return err
	}

	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode static map: %w", err)
	}

	return nil
}

// StaticMarkers converts view markers into static map marker objects.
func StaticMarkers(view *core.MapView) []*sm.Marker {
	if view == nil {
		return nil
	}

	markers := make([]*sm.Marker, 0, len(view.Markers))
	for _, marker := range view.Markers {
		if marker == nil {
			continue
		}
		pos := s2.LatLngFromDegrees(marker.Position.Lat, marker.Position.Long)
		markers = append(markers, sm.NewMarker(pos, color.RGBA{R: 0xd3, G: 0x2f, B: 0x2f, A: 0xff}, defaultMarkerSize))
	}

	return markers
}

func (r *StaticMapRenderer) width() int {
	if r != nil && r.Width > 0 {
		return r.Width
	}
	return defaultStaticWidth
}

func (r *StaticMapRenderer) height() int {
	if r != nil && r.Height > 0 {
		return r.Height
	}
	return defaultStaticHeight
}
