// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// HTTP client metrics. class is "2xx", "4xx", "5xx" or "error".
	ObserveRequest(service, class string, duration time.Duration)
	IncUnauthorizedBroadcast()

	// Catalog cache metrics
	IncCatalogCacheHit()
	IncCatalogCacheMiss()

	// Camera capture metrics. status is "analyzed", "throttled" or "failed".
	IncCaptureFrame(status string)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}

// StatusClass buckets an HTTP status code. Zero means the request never got
// a response.
func StatusClass(status int) string {
	switch {
	case status == 0:
		return "error"
	case status < 300:
		return "2xx"
	case status < 400:
		return "3xx"
	case status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
