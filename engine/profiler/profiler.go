// Package profiler reports frame rate and memory statistics of the render loop.
package profiler

import (
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-pipeline/engine/logger"
)

// Stats is one reporting interval's summary.
type Stats struct {
	// FPS is the number of frames per second over the interval.
	FPS float64

	// WorstFrame is the longest gap between two ticks in the interval.
	WorstFrame time.Duration

	// HeapMB is the live heap size in MiB.
	HeapMB float64

	// AllocRateMB is the heap allocation rate in MiB per second.
	AllocRateMB float64

	// GCCount is the cumulative number of garbage collections.
	GCCount uint32

	// MaxPause is the longest GC pause since the previous report.
	MaxPause time.Duration
}

// Profiler tracks frame rate and memory statistics for performance monitoring.
// Outputs stats to the logger at a configurable interval.
type Profiler struct {
	log            logger.Logger
	now            func() time.Time
	updateInterval time.Duration

	frameCount     int
	lastTime       time.Time
	lastTick       time.Time
	worstFrame     time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
}

// NewProfiler creates a new Profiler. The update interval defaults to 1 second.
//
// Parameters:
//   - options: optional builder options
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		log:            logger.Nop(),
		now:            time.Now,
		updateInterval: time.Second,
	}
	for _, opt := range options {
		opt(p)
	}
	p.lastTime = p.now()
	p.lastTick = p.lastTime
	return p
}

// Tick should be called once per frame to track frame timing.
// When the update interval has elapsed it logs and returns the interval's statistics.
//
// Returns:
//   - Stats: the interval summary, zero when nothing was reported
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() (Stats, bool) {
	p.frameCount++
	currentTime := p.now()
	p.worstFrame = max(p.worstFrame, currentTime.Sub(p.lastTick))
	p.lastTick = currentTime

	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return Stats{}, false
	}

	runtime.ReadMemStats(&p.memStats)
	stats := Stats{
		FPS:         float64(p.frameCount) / elapsed.Seconds(),
		WorstFrame:  p.worstFrame,
		HeapMB:      float64(p.memStats.Alloc) / 1024 / 1024,
		AllocRateMB: float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds(),
		GCCount:     p.memStats.NumGC,
	}

	// PauseNs is a circular buffer of the last 256 pauses.
	start := p.lastGCCount
	if stats.GCCount-start > 256 {
		start = stats.GCCount - 256
	}
	for i := start; i < stats.GCCount; i++ {
		stats.MaxPause = max(stats.MaxPause, time.Duration(p.memStats.PauseNs[i%256]))
	}

	p.log.Infof("FPS: %.2f | worst frame: %s | heap: %.2f MB | alloc rate: %.2f MB/s | GC: %d (max pause: %s)",
		stats.FPS, stats.WorstFrame.Round(time.Microsecond), stats.HeapMB, stats.AllocRateMB, stats.GCCount, stats.MaxPause)

	p.frameCount = 0
	p.worstFrame = 0
	p.lastTime = currentTime
	p.lastGCCount = stats.GCCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return stats, true
}
