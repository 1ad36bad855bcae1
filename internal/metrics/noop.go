package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// ObserveRequest is a no-op.
func (n *NoopRecorder) ObserveRequest(service, class string, duration time.Duration) {}

// IncUnauthorizedBroadcast is a no-op.
func (n *NoopRecorder) IncUnauthorizedBroadcast() {}

// IncCatalogCacheHit is a no-op.
func (n *NoopRecorder) IncCatalogCacheHit() {}

// IncCatalogCacheMiss is a no-op.
func (n *NoopRecorder) IncCatalogCacheMiss() {}

// IncCaptureFrame is a no-op.
func (n *NoopRecorder) IncCaptureFrame(status string) {}
