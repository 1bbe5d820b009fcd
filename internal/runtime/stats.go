package runtime

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/drblury/mediaflow/internal/runtime/result"
)

const (
	latencySampleSize    = 256
	throughputWindowSize = time.Minute
)

// LatencyMetrics summarises the most recent handling durations.
type LatencyMetrics struct {
	AverageNs  int64 `json:"average_ns"`
	P50Ns      int64 `json:"p50_ns"`
	P95Ns      int64 `json:"p95_ns"`
	P99Ns      int64 `json:"p99_ns"`
	LastNs     int64 `json:"last_ns"`
	SampleSize int   `json:"sample_size"`
}

// ThroughputMetrics counts results over a sliding one-minute window.
type ThroughputMetrics struct {
	CurrentRPS       float64 `json:"current_rps"`
	WindowSeconds    float64 `json:"window_seconds"`
	MessagesInWindow uint64  `json:"messages_in_window"`
}

// MediaTypeStats is a point-in-time view of the results of one media type.
type MediaTypeStats struct {
	MediaType         string                 `json:"media_type"`
	Handler           string                 `json:"handler,omitempty"`
	MessagesHandled   uint64                 `json:"messages_handled"`
	Outcomes          map[result.Kind]uint64 `json:"outcomes"`
	TotalHandlingTime int64                  `json:"total_handling_time_ns"`
	LastHandledAt     time.Time              `json:"last_handled_at"`
	LastError         string                 `json:"last_error,omitempty"`
	Latency           LatencyMetrics         `json:"latency"`
	Throughput        ThroughputMetrics      `json:"throughput"`
	Resource          ResourceUsage          `json:"resource"`
}

type mediaTypeCounters struct {
	stats      MediaTypeStats
	latency    *latencyWindow
	throughput *throughputWindow
}

// StatsCollector is a result sink that keeps per-media-type counters for the
// handler introspection endpoint.
type StatsCollector struct {
	mu          sync.RWMutex
	byMediaType map[string]*mediaTypeCounters
	resources   *resourceTracker
	now         func() time.Time
}

func NewStatsCollector() *StatsCollector {
	return &StatsCollector{
		byMediaType: make(map[string]*mediaTypeCounters),
		resources:   newResourceTracker(),
		now:         time.Now,
	}
}

func (c *StatsCollector) Observe(_ context.Context, r result.MessageHandlingResult) {
	mediaType := r.MediaType
	if mediaType == "" {
		mediaType = "unknown"
	}
	now := c.now()
	usage := c.resources.Snapshot()

	c.mu.Lock()
	defer c.mu.Unlock()
	counters, ok := c.byMediaType[mediaType]
	if !ok {
		counters = &mediaTypeCounters{
			stats:      MediaTypeStats{MediaType: mediaType, Outcomes: make(map[result.Kind]uint64)},
			latency:    newLatencyWindow(latencySampleSize),
			throughput: newThroughputWindow(throughputWindowSize),
		}
		c.byMediaType[mediaType] = counters
	}

	s := &counters.stats
	if r.Handler != "" {
		s.Handler = r.Handler
	}
	s.MessagesHandled++
	s.Outcomes[r.Kind]++
	s.TotalHandlingTime += int64(r.Elapsed)
	s.LastHandledAt = now.UTC()
	if r.Error != nil {
		s.LastError = r.Error.Message
	}

	counters.latency.Add(r.Elapsed)
	s.Latency = counters.latency.Snapshot()
	s.Latency.AverageNs = s.TotalHandlingTime / int64(s.MessagesHandled)

	window := counters.throughput.AddAndSnapshot(now)
	s.Throughput = ThroughputMetrics{
		CurrentRPS:       window.CurrentRPS,
		WindowSeconds:    window.WindowSeconds,
		MessagesInWindow: uint64(window.Count),
	}
	s.Resource = usage
}

// Snapshot returns a copy of every media type's stats, sorted by media type.
func (c *StatsCollector) Snapshot() []MediaTypeStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]MediaTypeStats, 0, len(c.byMediaType))
	for _, counters := range c.byMediaType {
		s := counters.stats
		s.Outcomes = make(map[result.Kind]uint64, len(counters.stats.Outcomes))
		for k, v := range counters.stats.Outcomes {
			s.Outcomes[k] = v
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MediaType < out[j].MediaType })
	return out
}

// latencyWindow is a ring buffer of the last handling durations.
type latencyWindow struct {
	samples []int64
	next    int
	filled  int
	last    int64
}

func newLatencyWindow(size int) *latencyWindow {
	if size <= 0 {
		size = latencySampleSize
	}
	return &latencyWindow{samples: make([]int64, size)}
}

func (lw *latencyWindow) Add(d time.Duration) {
	lw.samples[lw.next] = int64(d)
	lw.last = int64(d)
	lw.next = (lw.next + 1) % len(lw.samples)
	if lw.filled < len(lw.samples) {
		lw.filled++
	}
}

func (lw *latencyWindow) Snapshot() LatencyMetrics {
	m := LatencyMetrics{LastNs: lw.last, SampleSize: lw.filled}
	if lw.filled == 0 {
		return m
	}
	sorted := make([]int64, 0, lw.filled)
	for i := 0; i < lw.filled; i++ {
		idx := (lw.next - lw.filled + i + len(lw.samples)) % len(lw.samples)
		sorted = append(sorted, lw.samples[idx])
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum int64
	for _, v := range sorted {
		sum += v
	}
	m.AverageNs = sum / int64(len(sorted))
	m.P50Ns = percentile(sorted, 0.50)
	m.P95Ns = percentile(sorted, 0.95)
	m.P99Ns = percentile(sorted, 0.99)
	return m
}

// percentile interpolates linearly between the two nearest ranks.
func percentile(sorted []int64, q float64) int64 {
	switch {
	case len(sorted) == 0:
		return 0
	case q <= 0:
		return sorted[0]
	case q >= 1:
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lower, upper := int(math.Floor(pos)), int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}
	return sorted[lower] + int64(float64(sorted[upper]-sorted[lower])*(pos-float64(lower)))
}

type throughputWindow struct {
	horizon time.Duration
	samples []time.Time
}

type throughputSnapshot struct {
	Count         int
	WindowSeconds float64
	CurrentRPS    float64
}

func newThroughputWindow(horizon time.Duration) *throughputWindow {
	return &throughputWindow{horizon: horizon, samples: make([]time.Time, 0, 64)}
}

func (tw *throughputWindow) AddAndSnapshot(now time.Time) throughputSnapshot {
	tw.samples = append(tw.samples, now)

	cutoff := now.Add(-tw.horizon)
	drop := 0
	for drop < len(tw.samples) && tw.samples[drop].Before(cutoff) {
		drop++
	}
	tw.samples = append(tw.samples[:0], tw.samples[drop:]...)

	span := now.Sub(tw.samples[0])
	if span <= 0 {
		span = time.Nanosecond
	}
	return throughputSnapshot{
		Count:         len(tw.samples),
		WindowSeconds: span.Seconds(),
		CurrentRPS:    float64(len(tw.samples)) / span.Seconds(),
	}
}
