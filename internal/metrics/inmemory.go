package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	Requests               map[string]uint64 // "service class" -> count
	RequestDurationCount   uint64
	RequestDurationTotalNs int64
	UnauthorizedBroadcasts uint64
	CatalogCacheHits       uint64
	CatalogCacheMisses     uint64
	CaptureFrames          map[string]uint64
}

// InMemoryRecorder stores metrics in memory for tests and the -stats flag.
type InMemoryRecorder struct {
	mu            sync.Mutex
	requests      map[string]uint64
	captureFrames map[string]uint64

	requestDurationCount   uint64
	requestDurationTotalNs int64
	unauthorized           uint64
	cacheHits              uint64
	cacheMisses            uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		requests:      make(map[string]uint64),
		captureFrames: make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	requests := make(map[string]uint64, len(m.requests))
	for k, v := range m.requests {
		requests[k] = v
	}
	frames := make(map[string]uint64, len(m.captureFrames))
	for k, v := range m.captureFrames {
		frames[k] = v
	}
	m.mu.Unlock()

	return Snapshot{
		Requests:               requests,
		RequestDurationCount:   atomic.LoadUint64(&m.requestDurationCount),
		RequestDurationTotalNs: atomic.LoadInt64(&m.requestDurationTotalNs),
		UnauthorizedBroadcasts: atomic.LoadUint64(&m.unauthorized),
		CatalogCacheHits:       atomic.LoadUint64(&m.cacheHits),
		CatalogCacheMisses:     atomic.LoadUint64(&m.cacheMisses),
		CaptureFrames:          frames,
	}
}

// ObserveRequest counts a request and records its duration.
func (m *InMemoryRecorder) ObserveRequest(service, class string, duration time.Duration) {
	m.mu.Lock()
	m.requests[service+" "+class]++
	m.mu.Unlock()
	atomic.AddUint64(&m.requestDurationCount, 1)
	atomic.AddInt64(&m.requestDurationTotalNs, duration.Nanoseconds())
}

// IncUnauthorizedBroadcast increments the broadcast counter.
func (m *InMemoryRecorder) IncUnauthorizedBroadcast() {
	atomic.AddUint64(&m.unauthorized, 1)
}

// IncCatalogCacheHit increments cache hit counter.
func (m *InMemoryRecorder) IncCatalogCacheHit() {
	atomic.AddUint64(&m.cacheHits, 1)
}

// IncCatalogCacheMiss increments cache miss counter.
func (m *InMemoryRecorder) IncCatalogCacheMiss() {
	atomic.AddUint64(&m.cacheMisses, 1)
}

// IncCaptureFrame counts a captured frame by outcome.
func (m *InMemoryRecorder) IncCaptureFrame(status string) {
	m.mu.Lock()
	m.captureFrames[status]++
	m.mu.Unlock()
}
