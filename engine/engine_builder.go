package engine

import (
	"time"

	"github.com/Carmen-Shannon/oxy-pipeline/engine/config"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/logger"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/scene"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/window"
)

// EngineBuilderOption is a functional option for configuring an engine.
// Use the With* functions to create options.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: whether profiling is enabled
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled.Store(enabled)
	}
}

// WithTickRate sets the engine tick rate in frames per second.
//
// Parameters:
//   - fps: target ticks per second, ignored when not positive
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickRate(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps > 0 {
			e.engineTickRate = time.Duration(float64(time.Second) / fps)
		}
	}
}

// WithWindow sets the window the engine renders into.
//
// Parameters:
//   - w: the window
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithScene sets the scene the engine renders.
//
// Parameters:
//   - s: the scene
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithScene(s scene.Scene) EngineBuilderOption {
	return func(e *engine) {
		e.scene = s
	}
}

// WithRenderer injects a renderer instead of creating one for the window in Run.
//
// Parameters:
//   - r: the renderer
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderer(r renderer.Renderer) EngineBuilderOption {
	return func(e *engine) {
		e.renderer = r
	}
}

// WithConfig sets the settings the renderer, shader library and logger are created from.
//
// Parameters:
//   - cfg: the settings
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithConfig(cfg config.Config) EngineBuilderOption {
	return func(e *engine) {
		e.cfg = cfg
	}
}

// WithConfigPath sets the file feature changes are persisted to.
//
// Parameters:
//   - path: the TOML settings path, "~" is expanded
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithConfigPath(path string) EngineBuilderOption {
	return func(e *engine) {
		e.configPath = path
	}
}

// WithLogger sets the engine logger. Without it a logger is created from the configured level.
//
// Parameters:
//   - log: the logger
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithLogger(log logger.Logger) EngineBuilderOption {
	return func(e *engine) {
		e.log = log
	}
}

// WithRenderFrameLimit sets an optional render frame rate cap.
//
// Parameters:
//   - fps: maximum render frames per second (0 = uncapped)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		e.SetRenderFrameLimit(fps)
	}
}

// WithCameraSpeeds sets how far a drag orbits and a scroll step dollies the camera.
//
// Parameters:
//   - orbit: radians per dragged pixel
//   - zoom: world units per scroll step
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithCameraSpeeds(orbit, zoom float32) EngineBuilderOption {
	return func(e *engine) {
		e.orbitSpeed, e.zoomSpeed = orbit, zoom
	}
}
