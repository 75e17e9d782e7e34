package profiler

import (
	"time"

	"github.com/Carmen-Shannon/oxy-pipeline/engine/logger"
)

// ProfilerBuilderOption is a function that configures a Profiler.
type ProfilerBuilderOption func(*Profiler)

// WithLogger is an option builder that sets where statistics are reported.
//
// Parameters:
//   - log: the logger to use
//
// Returns:
//   - ProfilerBuilderOption: a function that applies the logger option
func WithLogger(log logger.Logger) ProfilerBuilderOption {
	return func(p *Profiler) {
		if log != nil {
			p.log = log
		}
	}
}

// WithInterval is an option builder that sets how often statistics are reported.
//
// Parameters:
//   - interval: the reporting interval, ignored when not positive
//
// Returns:
//   - ProfilerBuilderOption: a function that applies the interval option
func WithInterval(interval time.Duration) ProfilerBuilderOption {
	return func(p *Profiler) {
		if interval > 0 {
			p.updateInterval = interval
		}
	}
}

// WithClock is an option builder that replaces time.Now.
//
// Parameters:
//   - now: the clock
//
// Returns:
//   - ProfilerBuilderOption: a function that applies the clock option
func WithClock(now func() time.Time) ProfilerBuilderOption {
	return func(p *Profiler) {
		if now != nil {
			p.now = now
		}
	}
}
