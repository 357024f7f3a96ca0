package core

import "time"

// MarkerStatus represents the outcome of a single marker creation.
type MarkerStatus int

const (
	MarkerStatusUnknown MarkerStatus = 0
	MarkerStatusAdded   MarkerStatus = 1
	MarkerStatusFailed  MarkerStatus = 2
)

// Position is a geographic coordinate pair in degrees.
type Position struct {
	Lat  float64 `json:"lat"`
	Long float64 `json:"long"`
}

// Place is a single geocoding result.
type Place struct {
	DisplayName string  `json:"display_name"`
	Lat         float64 `json:"lat"`
	Long        float64 `json:"long"`
}

// IconSpec describes a custom marker icon, passed through to renderers.
type IconSpec struct {
	URL          string `json:"url"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
	AnchorX      int    `json:"anchor_x,omitempty"`
	AnchorY      int    `json:"anchor_y,omitempty"`
	PopupAnchorX int    `json:"popup_anchor_x,omitempty"`
	PopupAnchorY int    `json:"popup_anchor_y,omitempty"`
}

// MarkerSpec describes a marker to place: either an address to resolve or
// literal coordinates. Address takes precedence when both are set.
type MarkerSpec struct {
	Address   string    `json:"address,omitempty"`
	Lat       *float64  `json:"lat,omitempty"`
	Long      *float64  `json:"long,omitempty"`
	Label     string    `json:"label,omitempty"`
	PopupText string    `json:"popupText,omitempty"`
	Icon      *IconSpec `json:"icon,omitempty"`
}

// Marker is a resolved marker ready for rendering.
type Marker struct {
	Position  Position  `json:"position"`
	Label     string    `json:"label,omitempty"`
	PopupText string    `json:"popup_text,omitempty"`
	Icon      *IconSpec `json:"icon,omitempty"`
}

// Provenance captures metadata about how a marker was resolved.
type Provenance struct {
	CheckID        string     `json:"check_id,omitempty"`
	RequestedAt    time.Time  `json:"requested_at"`
	ResolvedAt     time.Time  `json:"resolved_at"`
	Source         string     `json:"source"`
	FromCache      bool       `json:"from_cache"`
	CacheExpiresAt *time.Time `json:"cache_expires_at,omitempty"`
}

// MarkerResult reports the outcome of a single marker creation attempt.
type MarkerResult struct {
	Index      int          `json:"index"`
	Spec       MarkerSpec   `json:"spec"`
	Marker     *Marker      `json:"marker,omitempty"`
	Status     MarkerStatus `json:"status"`
	Message    string       `json:"message,omitempty"`
	Provenance Provenance   `json:"provenance"`
}

// BatchResult aggregates the outcome of a marker batch add. A failed entry
// never aborts the batch; it only increments Failed.
type BatchResult struct {
	Results     []*MarkerResult `json:"results"`
	Added       int             `json:"added"`
	Failed      int             `json:"failed"`
	CompletedAt time.Time       `json:"completed_at"`
}

// MapView is the mutable view state owned by the orchestrator: where the map
// is centered, how far it is zoomed, and which markers have been placed.
type MapView struct {
	Center  Position  `json:"center"`
	Zoom    int       `json:"zoom"`
	Markers []*Marker `json:"markers"`
}

// Location is a geolocation fix for the current caller.
type Location struct {
	Position Position `json:"position"`
	City     string   `json:"city,omitempty"`
	Region   string   `json:"region,omitempty"`
	Country  string   `json:"country,omitempty"`
	Query    string   `json:"query,omitempty"`
}

// RateLimitState tracks outbound call state for a geocoding endpoint.
type RateLimitState struct {
	LastRequestAt time.Time  `json:"last_request_at"`
	RequestCount  int        `json:"request_count"`
	BackoffUntil  *time.Time `json:"backoff_until,omitempty"`
	Last429At     *time.Time `json:"last_429_at,omitempty"`
}
