package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDocument(t *testing.T) {
	doc, err := ParseDocument([]byte(`{"position":{"lat":1,"long":2,"zoom":5},"markers":[]}`))
	require.NoError(t, err)
	require.Equal(t, 1.0, doc.Position.Lat)
	require.Equal(t, 2.0, doc.Position.Long)
	require.Equal(t, 5, doc.Position.Zoom)
	require.Empty(t, doc.Markers)
}

func TestParseDocumentMalformed(t *testing.T) {
	_, err := ParseDocument([]byte(`{"position":{`))
	require.Error(t, err)

	_, err = ParseDocument(nil)
	require.Error(t, err)

	_, err = ParseDocument([]byte(`{"position":{"lat":1,"long":2,"zoom":5},"unexpected":true}`))
	require.Error(t, err)
}

func TestParseDocumentOutOfRange(t *testing.T) {
	_, err := ParseDocument([]byte(`{"position":{"lat":91,"long":0,"zoom":5},"markers":[]}`))
	require.Error(t, err)

	_, err = ParseDocument([]byte(`{"position":{"lat":0,"long":0,"zoom":42},"markers":[]}`))
	require.Error(t, err)
}

func TestMarkerSpecValidate(t *testing.T) {
	lat := 48.85
	long := 2.35
	nan := math.NaN()

	tests := []struct {
		name    string
		spec    MarkerSpec
		wantErr bool
	}{
		{name: "address", spec: MarkerSpec{Address: "Paris"}, wantErr: false},
		{name: "coordinates", spec: MarkerSpec{Lat: &lat, Long: &long}, wantErr: false},
		{name: "empty", spec: MarkerSpec{}, wantErr: true},
		{name: "blank address", spec: MarkerSpec{Address: "   "}, wantErr: true},
		{name: "missing long", spec: MarkerSpec{Lat: &lat}, wantErr: true},
		{name: "nan lat", spec: MarkerSpec{Lat: &nan, Long: &long}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.spec.Validate()
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestDefaultView(t *testing.T) {
	view := DefaultView()
	require.Equal(t, Position{Lat: 0, Long: 0}, view.Center)
	require.Equal(t, 13, view.Zoom)
	require.Empty(t, view.Markers)
}

func TestViewDocumentRoundTrip(t *testing.T) {
	view := &MapView{
		Center: Position{Lat: 1, Long: 2},
		Zoom:   5,
		Markers: []*Marker{
			{Position: Position{Lat: 3, Long: 4}, Label: "office"},
			nil,
		},
	}

	doc := view.Document()
	require.Equal(t, 1.0, doc.Position.Lat)
	require.Equal(t, 5, doc.Position.Zoom)
	require.Len(t, doc.Markers, 1)
	require.Equal(t, "office", doc.Markers[0].Label)
	require.NotNil(t, doc.Markers[0].Lat)
	require.Equal(t, 3.0, *doc.Markers[0].Lat)
}
