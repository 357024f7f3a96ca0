package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/pinmap/pinmap/internal/core"
)

const leafletVersion = "1.9.4"

// LeafletRenderer emits a self-contained HTML page that draws the view with
// Leaflet. Marker data is serialized into the page and placed client-side,
// so the emitted file needs nothing beyond the Leaflet CDN assets.
type LeafletRenderer struct {
	ContainerID string
	TileURL     string
	Attribution string
	AutoLocate  bool
	Title       string
}

type leafletPage struct {
	Title       string
	ContainerID string
	Version     string
	TileURL     template.JSStr
	Attribution template.JSStr
	ViewJSON    template.JS
	AutoLocate  bool
}

var leafletTemplate = template.Must(template.New("leaflet").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<link rel="stylesheet" href="https://unpkg.com/leaflet@{{.Version}}/dist/leaflet.css">
<script src="https://unpkg.com/leaflet@{{.Version}}/dist/leaflet.js"></script>
<style>
html, body { height: 100%; margin: 0; }
#{{.ContainerID}} { height: 100%; }
</style>
</head>
<body>
<div id="{{.ContainerID}}"></div>
<script>
var view = {{.ViewJSON}};

var map = L.map({{.ContainerID}}).setView([view.center.lat, view.center.long], view.zoom);

L.tileLayer("{{.TileURL}}", {
	maxZoom: 19,
	attribution: "{{.Attribution}}"
}).addTo(map);

(view.markers || []).forEach(function (m) {
	var options = {};
	if (m.icon && m.icon.url) {
		var iconOptions = { iconUrl: m.icon.url };
		if (m.icon.width && m.icon.height) {
			iconOptions.iconSize = [m.icon.width, m.icon.height];
		}
		if (m.icon.anchor_x || m.icon.anchor_y) {
			iconOptions.iconAnchor = [m.icon.anchor_x || 0, m.icon.anchor_y || 0];
		}
		if (m.icon.popup_anchor_x || m.icon.popup_anchor_y) {
			iconOptions.popupAnchor = [m.icon.popup_anchor_x || 0, m.icon.popup_anchor_y || 0];
		}
		options.icon = L.icon(iconOptions);
	}
	if (m.label) {
		options.title = m.label;
	}
	var marker = L.marker([m.position.lat, m.position.long], options).addTo(map);
	if (m.popup_text) {
		marker.bindPopup(m.popup_text);
	}
});
{{if .AutoLocate}}
map.locate({ setView: true, maxZoom: 16 });

map.on("locationfound", function (e) {
	L.marker(e.latlng).addTo(map).bindPopup("You are within " + Math.round(e.accuracy) + " meters of this point").openPopup();
	L.circle(e.latlng, e.accuracy).addTo(map);
});

map.on("locationerror", function (e) {
	console.warn("geolocation failed: " + e.message);
});
{{end}}
</script>
</body>
</html>
`))

// Render emits the HTML page for a view.
func (r *LeafletRenderer) Render(view *core.MapView) ([]byte, error) {
	if view == nil {
		return nil, errors.New("map view is required")
	}

	viewJSON, err := json.Marshal(view)
	if err != nil {
		return nil, fmt.Errorf("encode map view: %w", err)
	}

	page := leafletPage{
		Title:       r.title(),
		ContainerID: r.containerID(),
		Version:     leafletVersion,
		TileURL:     template.JSStr(template.JSEscapeString(r.tileURL())),
		Attribution: template.JSStr(template.JSEscapeString(r.attribution())),
		ViewJSON:    template.JS(viewJSON), // #nosec G203 -- marshaled from typed structs, not user HTML
		AutoLocate:  r.autoLocate(),
	}

	var buf bytes.Buffer
	if err := leafletTemplate.Execute(&buf, page); err != nil {
		return nil, fmt.Errorf("render leaflet page: %w", err)
	}

	return buf.Bytes(), nil
}

func (r *LeafletRenderer) containerID() string {
	if r != nil && strings.TrimSpace(r.ContainerID) != "" {
		return strings.TrimSpace(r.ContainerID)
	}
	return "map"
}

func (r *LeafletRenderer) tileURL() string {
	if r != nil && r.TileURL != "" {
		return r.TileURL
	}
	return "https://tile.openstreetmap.org/{z}/{x}/{y}.png"
}

func (r *LeafletRenderer) attribution() string {
	if r != nil && r.Attribution != "" {
		return r.Attribution
	}
	return `&copy; OpenStreetMap contributors`
}

func (r *LeafletRenderer) autoLocate() bool {
	return r != nil && r.AutoLocate
}

func (r *LeafletRenderer) title() string {
	if r != nil && r.Title != "" {
		return r.Title
	}
	return "pinmap"
}
