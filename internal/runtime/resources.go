package runtime

import (
	goruntime "runtime"
	"runtime/metrics"
	"sync"
	"time"
)

const cpuSecondsMetric = "/sched/cpu:seconds"

// ResourceUsage is a coarse process snapshot attached to handler stats.
type ResourceUsage struct {
	CPUPercent  float64 `json:"cpu_percent"`
	MemoryBytes uint64  `json:"memory_bytes"`
	Goroutines  int     `json:"goroutines"`
}

// resourceTracker derives CPU utilisation from the difference between two
// consecutive samples of the scheduler's CPU-seconds metric.
type resourceTracker struct {
	mu       sync.Mutex
	sample   []metrics.Sample
	lastCPU  float64
	lastWall time.Time
	cpus     float64
}

func newResourceTracker() *resourceTracker {
	return &resourceTracker{
		sample: []metrics.Sample{{Name: cpuSecondsMetric}},
		cpus:   float64(goruntime.NumCPU()),
	}
}

func (r *resourceTracker) Snapshot() ResourceUsage {
	if r == nil {
		return ResourceUsage{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	metrics.Read(r.sample)
	now := time.Now()
	usage := ResourceUsage{Goroutines: goruntime.NumGoroutine()}

	if r.sample[0].Value.Kind() == metrics.KindFloat64 {
		cpu := r.sample[0].Value.Float64()
		if wall := now.Sub(r.lastWall).Seconds(); !r.lastWall.IsZero() && wall > 0 && r.cpus > 0 {
			usage.CPUPercent = (cpu - r.lastCPU) / wall / r.cpus * 100
		}
		r.lastCPU = cpu
	}
	r.lastWall = now

	var mem goruntime.MemStats
	goruntime.ReadMemStats(&mem)
	usage.MemoryBytes = mem.Alloc
	return usage
}
