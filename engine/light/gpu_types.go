package light

import (
	"github.com/go-gl/mathgl/mgl32"
)

// SunUniform returns the lighting fields a directional light fills in the scene group.
// A nil or disabled light yields a black sun.
//
// Parameters:
//   - l: the directional light
//
// Returns:
//   - map[string]any: the sunDirection and sunColor values
func SunUniform(l Light) map[string]any {
	if l == nil || !l.Enabled() {
		return map[string]any{
			"sunDirection": mgl32.Vec4{0, -1, 0, 0},
			"sunColor":     mgl32.Vec4{},
		}
	}
	return map[string]any{
		"sunDirection": l.Direction().Vec4(0),
		"sunColor":     l.Color().Vec4(l.Intensity()),
	}
}

// PointUniform returns one element of the scene group's point light array.
// Position carries the range in w and color carries the intensity in w.
//
// Parameters:
//   - l: the point light
//
// Returns:
//   - map[string]any: the position and color values
func PointUniform(l Light) map[string]any {
	return map[string]any{
		"position": l.Position().Vec4(l.Range()),
		"color":    l.Color().Vec4(l.Intensity()),
	}
}
