package scene

import (
	"github.com/Carmen-Shannon/oxy-pipeline/engine/light"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer"
)

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithItems adds initial draw items to the scene in order.
//
// Parameters:
//   - items: the draw items to add
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithItems(items ...renderer.DrawItem) SceneBuilderOption {
	return func(s *scene) {
		for _, item := range items {
			s.items[s.nextID] = item
			s.order = append(s.order, s.nextID)
			s.nextID++
		}
	}
}

// WithLights adds initial lights to the scene.
//
// Parameters:
//   - lights: the lights to add
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithLights(lights ...light.Light) SceneBuilderOption {
	return func(s *scene) {
		for _, l := range lights {
			if l != nil {
				s.lights = append(s.lights, l)
			}
		}
	}
}

// WithAmbientColor sets the ambient light.
//
// Parameters:
//   - r, g, b: the ambient color
//   - intensity: the multiplier applied to the color
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithAmbientColor(r, g, b, intensity float32) SceneBuilderOption {
	return func(s *scene) {
		s.ambient[0], s.ambient[1], s.ambient[2] = r*intensity, g*intensity, b*intensity
	}
}

// WithOnChange sets the hook called after items, lights or the camera change.
//
// Parameters:
//   - fn: the hook
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithOnChange(fn func()) SceneBuilderOption {
	return func(s *scene) {
		s.onChange = fn
	}
}
