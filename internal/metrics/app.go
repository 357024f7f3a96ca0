package metrics

import (
	"time"

	"github.com/pinmap/pinmap/internal/observability"
)

// Application-level metrics following Prometheus conventions
const (
	GeocodeRequestsTotal = "geocode_requests_total"
	GeocodeWaitDuration  = "geocode_wait_duration_ms"
	MarkersTotal         = "markers_total"
	MapsDrawnTotal       = "maps_drawn_total"
	HealthCheckTotal     = "health_check_total"
	ServerStartTime      = "server_start_time_seconds"
)

// RecordGeocodeRequest records an outbound geocoding call with its outcome.
func RecordGeocodeRequest(provider string, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			GeocodeRequestsTotal,
			1,
			map[string]string{
				"provider": provider,
				"status":   status,
			},
		)
	}
}

// RecordGeocodeWait records time spent suspended in the rate-limit gate.
func RecordGeocodeWait(endpoint string, wait time.Duration) {
	if wait <= 0 {
		return
	}
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Histogram(
			GeocodeWaitDuration,
			wait,
			map[string]string{
				"endpoint": endpoint,
			},
		)
	}
}

// RecordMarker records a marker batch entry outcome.
func RecordMarker(added bool) {
	status := "added"
	if !added {
		status = "failed"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			MarkersTotal,
			1,
			map[string]string{
				"status": status,
			},
		)
	}
}

// RecordMapDrawn records a completed draw operation.
func RecordMapDrawn(source string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			MapsDrawnTotal,
			1,
			map[string]string{
				"source": source,
			},
		)
	}
}

// RecordHealthCheck records a health check execution.
func RecordHealthCheck(checkName string, healthy bool) {
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			HealthCheckTotal,
			1,
			map[string]string{
				"check":  checkName,
				"status": status,
			},
		)
	}
}

// SetServerStartTime records the server start time (Unix timestamp).
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			ServerStartTime,
			float64(timestamp),
			nil,
		)
	}
}
