package model

import (
	"github.com/go-gl/mathgl/mgl32"
)

// ModelBuilderOption is a functional option for configuring a Model via NewModel.
type ModelBuilderOption func(*model)

// WithName is an option builder that sets the name of the Model. Defaults to the mesh label.
//
// Parameters:
//   - name: the model identifier
//
// Returns:
//   - ModelBuilderOption: a function that applies the name option to a model
func WithName(name string) ModelBuilderOption {
	return func(m *model) {
		m.name = name
	}
}

// WithPosition is an option builder that sets the world-space translation.
//
// Parameters:
//   - x, y, z: translation components
//
// Returns:
//   - ModelBuilderOption: a function that applies the position option to a model
func WithPosition(x, y, z float32) ModelBuilderOption {
	return func(m *model) {
		m.position = mgl32.Vec3{x, y, z}
	}
}

// WithRotation is an option builder that sets the orientation from Euler angles in radians,
// applied in Y, X, Z order.
//
// Parameters:
//   - rx, ry, rz: rotation about each axis
//
// Returns:
//   - ModelBuilderOption: a function that applies the rotation option to a model
func WithRotation(rx, ry, rz float32) ModelBuilderOption {
	return func(m *model) {
		m.rotation = mgl32.AnglesToQuat(ry, rx, rz, mgl32.YXZ)
	}
}

// WithScale is an option builder that sets the per-axis scale.
//
// Parameters:
//   - x, y, z: scale components
//
// Returns:
//   - ModelBuilderOption: a function that applies the scale option to a model
func WithScale(x, y, z float32) ModelBuilderOption {
	return func(m *model) {
		m.scale = mgl32.Vec3{x, y, z}
	}
}

// WithInstances is an option builder that replaces the default single identity instance.
//
// Parameters:
//   - instances: per-instance transforms
//
// Returns:
//   - ModelBuilderOption: a function that applies the instances option to a model
func WithInstances(instances ...mgl32.Mat4) ModelBuilderOption {
	return func(m *model) {
		m.instances = append([]mgl32.Mat4(nil), instances...)
	}
}

// WithGrid is an option builder that lays out count instances on a square grid in the XZ plane.
//
// Parameters:
//   - count: the number of instances
//   - spacing: the distance between neighbouring instances
//
// Returns:
//   - ModelBuilderOption: a function that applies the grid option to a model
func WithGrid(count int, spacing float32) ModelBuilderOption {
	return func(m *model) {
		m.instances = m.instances[:0]
		side := 1
		for side*side < count {
			side++
		}
		offset := float32(side-1) * spacing / 2
		for i := 0; i < count; i++ {
			x := float32(i%side)*spacing - offset
			z := float32(i/side)*spacing - offset
			m.instances = append(m.instances, mgl32.Translate3D(x, 0, z))
		}
	}
}
