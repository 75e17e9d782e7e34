package renderer

import (
	"errors"

	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/gpu"
)

// State is the lifecycle position of a Renderer.
type State int32

const (
	// StateUninitialized is a renderer without a device.
	StateUninitialized State = iota

	// StateDeviceReady holds a device and surface but no passes.
	StateDeviceReady

	// StatePassesBuilt has every enabled pass built for the current features.
	StatePassesBuilt

	// StateRendering has rendered at least one frame since the passes were built.
	StateRendering
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateDeviceReady:
		return "device-ready"
	case StatePassesBuilt:
		return "passes-built"
	case StateRendering:
		return "rendering"
	default:
		return "unknown"
	}
}

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the display refresh rate.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	PresentModeUncapped
)

var (
	// ErrNoAdapter is returned by Init when no compatible adapter exists.
	ErrNoAdapter = gpu.ErrNoAdapter

	// ErrNoDevice is returned by Init when the adapter cannot create a device.
	ErrNoDevice = gpu.ErrNoDevice

	// ErrNotReady is returned when an operation needs a state the renderer has not reached.
	ErrNotReady = errors.New("renderer not ready")

	// ErrAlreadyInitialized is returned by a second Init.
	ErrAlreadyInitialized = errors.New("renderer already initialized")

	// ErrStopped is returned by RenderOneFrame after Stop.
	ErrStopped = errors.New("renderer stopped")

	// ErrPassDisabled is returned when a pass is driven while its feature is off.
	ErrPassDisabled = errors.New("pass disabled by the current features")
)
