package output

import (
	"fmt"
	"strings"

	"github.com/pinmap/pinmap/internal/core"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatGeoJSON  Format = "geojson"
)

// Formatter renders a composed view and its batch outcome.
type Formatter interface {
	FormatDraw(view *core.MapView, batch *core.BatchResult) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown):
		return FormatMarkdown, nil
	case string(FormatGeoJSON):
		return FormatGeoJSON, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	case FormatGeoJSON:
		return &GeoJSONFormatter{Indent: true}
	default:
		return &TableFormatter{}
	}
}

func markerName(r *core.MarkerResult) string {
	if r == nil {
		return ""
	}
	if r.Marker != nil && r.Marker.Label != "" {
		return r.Marker.Label
	}
	if r.Spec.Label != "" {
		return r.Spec.Label
	}
	if r.Spec.IsAddress() {
		return strings.TrimSpace(r.Spec.Address)
	}
	if r.Spec.Lat != nil && r.Spec.Long != nil {
		return fmt.Sprintf("(%g, %g)", *r.Spec.Lat, *r.Spec.Long)
	}
	return "(unspecified)"
}

func statusLabel(r *core.MarkerResult) string {
	if r == nil {
		return ""
	}
	switch r.Status {
	case core.MarkerStatusAdded:
		return "added"
	case core.MarkerStatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func formatNotes(r *core.MarkerResult) string {
	if r == nil {
		return ""
	}

	notes := make([]string, 0, 3)
	if r.Marker != nil {
		notes = append(notes, fmt.Sprintf("%.4f, %.4f", r.Marker.Position.Lat, r.Marker.Position.Long))
	}
	if r.Message != "" {
		notes = append(notes, r.Message)
	}
	if r.Provenance.FromCache {
		notes = append(notes, "cached")
	}

	return strings.Join(notes, "; ")
}

func batchSummary(batch *core.BatchResult) string {
	if batch == nil {
		return ""
	}

	summary := fmt.Sprintf("%d added", batch.Added)
	if batch.Failed > 0 {
		summary += fmt.Sprintf(", %d failed", batch.Failed)
	}
	return summary
}

func viewSummary(view *core.MapView) string {
	if view == nil {
		return ""
	}
	return fmt.Sprintf("center (%g, %g) zoom %d", view.Center.Lat, view.Center.Long, view.Zoom)
}
