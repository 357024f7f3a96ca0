package output

import (
	"encoding/json"
	"errors"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/pinmap/pinmap/internal/core"
)

// GeoJSONFormatter renders view markers as a GeoJSON feature collection,
// suitable for loading into other mapping tools.
type GeoJSONFormatter struct {
	Indent bool
}

// FormatDraw renders the view markers as GeoJSON. The batch result is not
// part of the output; failed markers have no geometry to emit.
func (f *GeoJSONFormatter) FormatDraw(view *core.MapView, _ *core.BatchResult) (string, error) {
	collection, err := FeatureCollection(view)
	if err != nil {
		return "", err
	}

	var data []byte
	if f.Indent {
		data, err = json.MarshalIndent(collection, "", "  ")
	} else {
		data, err = collection.MarshalJSON()
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}

// FeatureCollection converts view markers into GeoJSON features.
func FeatureCollection(view *core.MapView) (*geojson.FeatureCollection, error) {
	if view == nil {
		return nil, errors.New("map view is required")
	}

	collection := geojson.NewFeatureCollection()
	for _, marker := range view.Markers {
		if marker == nil {
			continue
		}

		feature := geojson.NewFeature(orb.Point{marker.Position.Long, marker.Position.Lat})
		if marker.Label != "" {
			feature.Properties["label"] = marker.Label
		}
		if marker.PopupText != "" {
			feature.Properties["popup_text"] = marker.PopupText
		}
		if marker.Icon != nil && marker.Icon.URL != "" {
			feature.Properties["icon"] = marker.Icon.URL
		}
		collection.Append(feature)
	}

	return collection, nil
}
