package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// Default view used when no position is configured.
const (
	DefaultLat  = 0.0
	DefaultLong = 0.0
	DefaultZoom = 13

	MinZoom = 0
	MaxZoom = 19
)

// DocumentPosition is the position block of a map document.
type DocumentPosition struct {
	Lat  float64 `json:"lat"`
	Long float64 `json:"long"`
	Zoom int     `json:"zoom"`
}

// MapDocument is the external JSON representation of a map: a position and a
// marker list. Saved documents hydrate into the same draw sequence as direct
// construction.
type MapDocument struct {
	Position DocumentPosition `json:"position"`
	Markers  []MarkerSpec     `json:"markers"`
}

// ErrNoResults reports an address lookup that returned zero places.
var ErrNoResults = errors.New("no geocoding results")

// ErrCachedFailure reports a lookup answered from a cached provider failure.
// The provider is not contacted again until the cache entry expires.
var ErrCachedFailure = errors.New("cached geocoding failure")

// ParseDocument decodes and validates a map document. A malformed document
// returns an error to the caller; it is never swallowed.
func ParseDocument(data []byte) (*MapDocument, error) {
	if len(data) == 0 {
		return nil, errors.New("map document is empty")
	}

	var doc MapDocument
	decoder := json.NewDecoder(strings.NewReader(string(data)))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse map document: %w", err)
	}

	if err := doc.Validate(); err != nil {
		return nil, err
	}

	return &doc, nil
}

// Validate checks document coordinates and zoom bounds. Marker specs are not
// validated here; individual entries fail independently during the batch add.
func (d *MapDocument) Validate() error {
	if d == nil {
		return errors.New("map document is required")
	}

	if err := ValidatePosition(d.Position.Lat, d.Position.Long); err != nil {
		return fmt.Errorf("document position: %w", err)
	}

	if d.Position.Zoom < MinZoom || d.Position.Zoom > MaxZoom {
		return fmt.Errorf("document zoom %d out of range [%d, %d]", d.Position.Zoom, MinZoom, MaxZoom)
	}

	return nil
}

// ValidatePosition rejects NaN, infinite, and out-of-range coordinates.
func ValidatePosition(lat, long float64) error {
	if math.IsNaN(lat) || math.IsInf(lat, 0) {
		return errors.New("latitude is not a number")
	}
	if math.IsNaN(long) || math.IsInf(long, 0) {
		return errors.New("longitude is not a number")
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude %g out of range [-90, 90]", lat)
	}
	if long < -180 || long > 180 {
		return fmt.Errorf("longitude %g out of range [-180, 180]", long)
	}
	return nil
}

// Validate checks a marker spec before any network call. A spec must carry
// either a non-empty address or a literal coordinate pair.
func (m MarkerSpec) Validate() error {
	if strings.TrimSpace(m.Address) != "" {
		return nil
	}

	if m.Lat == nil || m.Long == nil {
		return errors.New("marker requires an address or both lat and long")
	}

	return ValidatePosition(*m.Lat, *m.Long)
}

// IsAddress reports whether the spec resolves through the geocoder.
func (m MarkerSpec) IsAddress() bool {
	return strings.TrimSpace(m.Address) != ""
}

// DefaultView returns the view used for an empty configuration: centered on
// (0,0) at zoom 13 with no markers.
func DefaultView() *MapView {
	return &MapView{
		Center: Position{Lat: DefaultLat, Long: DefaultLong},
		Zoom:   DefaultZoom,
	}
}

// Document snapshots a view back into its external JSON form.
func (v *MapView) Document() *MapDocument {
	if v == nil {
		return nil
	}

	doc := &MapDocument{
		Position: DocumentPosition{Lat: v.Center.Lat, Long: v.Center.Long, Zoom: v.Zoom},
		Markers:  make([]MarkerSpec, 0, len(v.Markers)),
	}
	for _, marker := range v.Markers {
		if marker == nil {
			continue
		}
		lat := marker.Position.Lat
		long := marker.Position.Long
		doc.Markers = append(doc.Markers, MarkerSpec{
			Lat:       &lat,
			Long:      &long,
			Label:     marker.Label,
			PopupText: marker.PopupText,
			Icon:      marker.Icon,
		})
	}
	return doc
}
