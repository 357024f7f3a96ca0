package output

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pinmap/pinmap/internal/core"
)

func sampleDraw() (*core.MapView, *core.BatchResult) {
	view := core.DefaultView()
	view.Center = core.Position{Lat: 52.52, Long: 13.405}
	view.Zoom = 12

	marker := &core.Marker{
		Position:  core.Position{Lat: 52.516, Long: 13.377},
		Label:     "Brandenburg Gate",
		PopupText: "Pariser Platz",
	}
	view.Markers = []*core.Marker{marker}

	batch := &core.BatchResult{
		Results: []*core.MarkerResult{
			{
				Index:      0,
				Spec:       core.MarkerSpec{Address: "Brandenburg Gate"},
				Marker:     marker,
				Status:     core.MarkerStatusAdded,
				Provenance: core.Provenance{Source: "nominatim"},
			},
			{
				Index:      1,
				Spec:       core.MarkerSpec{Address: "zzzzzz"},
				Status:     core.MarkerStatusFailed,
				Message:    `no results for "zzzzzz"`,
				Provenance: core.Provenance{Source: "nominatim"},
			},
		},
		Added:       1,
		Failed:      1,
		CompletedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	return view, batch
}

func TestParseFormat(t *testing.T) {
	cases := []struct {
		input    string
		expected Format
		wantErr  bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{"JSON", FormatJSON, false},
		{" markdown ", FormatMarkdown, false},
		{"geojson", FormatGeoJSON, false},
		{"xml", "", true},
	}

	for _, tc := range cases {
		format, err := ParseFormat(tc.input)
		if tc.wantErr {
			require.Error(t, err, tc.input)
			continue
		}
		require.NoError(t, err, tc.input)
		require.Equal(t, tc.expected, format)
	}
}

func TestTableFormatter(t *testing.T) {
	view, batch := sampleDraw()

	rendered, err := (&TableFormatter{}).FormatDraw(view, batch)
	require.NoError(t, err)
	require.Contains(t, rendered, "Brandenburg Gate")
	require.Contains(t, rendered, "added")
	require.Contains(t, rendered, "failed")
	require.Contains(t, rendered, "1 added, 1 failed")
	require.Contains(t, rendered, "center (52.52, 13.405) zoom 12")
}

func TestJSONFormatter(t *testing.T) {
	view, batch := sampleDraw()

	rendered, err := (&JSONFormatter{Indent: true}).FormatDraw(view, batch)
	require.NoError(t, err)

	var decoded struct {
		View  *core.MapView     `json:"view"`
		Batch *core.BatchResult `json:"batch"`
	}
	require.NoError(t, json.Unmarshal([]byte(rendered), &decoded))
	require.Equal(t, 12, decoded.View.Zoom)
	require.Equal(t, 1, decoded.Batch.Added)
	require.Len(t, decoded.Batch.Results, 2)
}

func TestMarkdownFormatter(t *testing.T) {
	view, batch := sampleDraw()

	rendered, err := (&MarkdownFormatter{}).FormatDraw(view, batch)
	require.NoError(t, err)
	require.Contains(t, rendered, "| Brandenburg Gate | nominatim | added |")
	require.Contains(t, rendered, "**Summary**: 1 added, 1 failed")
}

func TestGeoJSONFormatter(t *testing.T) {
	view, batch := sampleDraw()

	rendered, err := (&GeoJSONFormatter{Indent: true}).FormatDraw(view, batch)
	require.NoError(t, err)

	var decoded struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type        string    `json:"type"`
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal([]byte(rendered), &decoded))
	require.Equal(t, "FeatureCollection", decoded.Type)
	require.Len(t, decoded.Features, 1)
	// GeoJSON coordinates are [long, lat].
	require.Equal(t, 13.377, decoded.Features[0].Geometry.Coordinates[0])
	require.Equal(t, 52.516, decoded.Features[0].Geometry.Coordinates[1])
	require.Equal(t, "Brandenburg Gate", decoded.Features[0].Properties["label"])
}

func TestFormattersHandleNil(t *testing.T) {
	for _, format := range []Format{FormatTable, FormatJSON, FormatMarkdown} {
		formatter := NewFormatter(format)
		_, err := formatter.FormatDraw(nil, nil)
		require.NoError(t, err, string(format))
	}

	_, err := (&GeoJSONFormatter{}).FormatDraw(nil, nil)
	require.Error(t, err)
}

func TestMarkerNameFallbacks(t *testing.T) {
	lat, long := 1.5, 2.5

	require.Equal(t, "Spot", markerName(&core.MarkerResult{Spec: core.MarkerSpec{Label: "Spot"}}))
	require.Equal(t, "Berlin", markerName(&core.MarkerResult{Spec: core.MarkerSpec{Address: "Berlin"}}))
	require.Equal(t, "(1.5, 2.5)", markerName(&core.MarkerResult{Spec: core.MarkerSpec{Lat: &lat, Long: &long}}))
	require.Equal(t, "(unspecified)", markerName(&core.MarkerResult{}))
}
