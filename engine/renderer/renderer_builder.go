package renderer

import (
	"github.com/Carmen-Shannon/oxy-pipeline/engine/logger"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithLogger sets the logger used for lifecycle messages and dropped frames.
//
// Parameters:
//   - l: the Logger to use
//
// Returns:
//   - RendererBuilderOption: a function that applies the logger option to a renderer
func WithLogger(l logger.Logger) RendererBuilderOption {
	return func(r *renderer) {
		if l != nil {
			r.log = l
		}
	}
}

// WithLibrary sets the shader variant library. The renderer does not close a library it was given.
// When not specified, a library over shader.Assets is created and closed by Dispose.
//
// Parameters:
//   - lib: the Library to build passes from
//
// Returns:
//   - RendererBuilderOption: a function that applies the library option to a renderer
func WithLibrary(lib shader.Library) RendererBuilderOption {
	return func(r *renderer) {
		r.library = lib
	}
}

// WithSize sets the initial surface size in pixels. Non-positive values are ignored.
//
// Parameters:
//   - width: the surface width
//   - height: the surface height
//
// Returns:
//   - RendererBuilderOption: a function that applies the size option to a renderer
func WithSize(width, height int) RendererBuilderOption {
	return func(r *renderer) {
		if width > 0 && height > 0 {
			r.width, r.height = uint32(width), uint32(height)
		}
	}
}

// WithPresentMode sets the surface present mode which controls how frames are delivered to the display.
//
// Parameters:
//   - mode: the PresentMode to use (VSync or Uncapped)
//
// Returns:
//   - RendererBuilderOption: a function that applies the present mode option to a renderer
func WithPresentMode(mode PresentMode) RendererBuilderOption {
	return func(r *renderer) {
		r.presentMode = mode
	}
}

// WithClearColor sets the color the shading and composition passes clear to.
//
// Parameters:
//   - c: the clear color
//
// Returns:
//   - RendererBuilderOption: a function that applies the clear color option to a renderer
func WithClearColor(c wgpu.Color) RendererBuilderOption {
	return func(r *renderer) {
		r.clearColor = c
	}
}

// WithShadowMapSize sets the edge length in texels of the shadow maps lights allocate.
// When not specified, the default is 2048.
//
// Parameters:
//   - size: the shadow map edge length, ignored when zero
//
// Returns:
//   - RendererBuilderOption: a function that applies the shadow map size option to a renderer
func WithShadowMapSize(size uint32) RendererBuilderOption {
	return func(r *renderer) {
		if size > 0 {
			r.shadowMapSize = size
		}
	}
}

// WithHistoryWeight sets the share of the previous composed frame blended into each new one.
//
// Parameters:
//   - w: the weight, clamped to [0, 1]
//
// Returns:
//   - RendererBuilderOption: a function that applies the history weight option to a renderer
func WithHistoryWeight(w float32) RendererBuilderOption {
	return func(r *renderer) {
		r.historyWeight = min(max(w, 0), 1)
	}
}

// WithExposure sets the exposure the composition pass applies before tone mapping.
//
// Parameters:
//   - e: the exposure multiplier
//
// Returns:
//   - RendererBuilderOption: a function that applies the exposure option to a renderer
func WithExposure(e float32) RendererBuilderOption {
	return func(r *renderer) {
		r.exposure = e
	}
}
