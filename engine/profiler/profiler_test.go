package profiler

import (
	"bytes"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-pipeline/engine/logger"
	"github.com/stretchr/testify/assert"
)

// fakeClock advances only when told to.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestTickReportsAfterInterval(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	var out bytes.Buffer
	p := NewProfiler(
		WithClock(clock.now),
		WithInterval(time.Second),
		WithLogger(logger.New(logger.Options{Output: &out})),
	)

	for i := 0; i < 9; i++ {
		clock.advance(100 * time.Millisecond)
		_, reported := p.Tick()
		assert.False(t, reported)
	}
	clock.advance(100 * time.Millisecond)
	stats, reported := p.Tick()
	assert.True(t, reported)
	assert.InDelta(t, 10, stats.FPS, 1e-9)
	assert.Equal(t, 100*time.Millisecond, stats.WorstFrame)
	assert.Contains(t, out.String(), "FPS: 10.00")
}

func TestTickTracksWorstFramePerInterval(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	p := NewProfiler(WithClock(clock.now), WithInterval(time.Second))

	clock.advance(700 * time.Millisecond)
	p.Tick()
	clock.advance(300 * time.Millisecond)
	stats, reported := p.Tick()
	assert.True(t, reported)
	assert.Equal(t, 700*time.Millisecond, stats.WorstFrame)

	clock.advance(500 * time.Millisecond)
	p.Tick()
	clock.advance(500 * time.Millisecond)
	stats, reported = p.Tick()
	assert.True(t, reported)
	assert.Equal(t, 500*time.Millisecond, stats.WorstFrame)
	assert.InDelta(t, 2, stats.FPS, 1e-9)
}

func TestWithIntervalIgnoresNonPositive(t *testing.T) {
	p := NewProfiler(WithInterval(0))
	assert.Equal(t, time.Second, p.updateInterval)
}
