package model

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer"
	"github.com/go-gl/mathgl/mgl32"
)

// model is the implementation of the Model interface.
type model struct {
	mu sync.Mutex

	name      string
	mesh      Mesh
	material  Material
	position  mgl32.Vec3
	rotation  mgl32.Quat
	scale     mgl32.Vec3
	instances []mgl32.Mat4
}

// Model defines a drawable placed in the world: one mesh with one material, a local transform
// and one or more instance transforms applied before it.
//
// A new Model has a single identity instance. Setting an empty instance list hides it.
type Model interface {
	renderer.DrawItem

	// Name retrieves the model identifier.
	//
	// Returns:
	//   - string: the model name
	Name() string

	// Position returns the world-space translation.
	Position() mgl32.Vec3

	// Rotation returns the orientation.
	Rotation() mgl32.Quat

	// Scale returns the per-axis scale.
	Scale() mgl32.Vec3

	// SetPosition sets the world-space translation.
	//
	// Parameters:
	//   - x, y, z: translation components
	SetPosition(x, y, z float32)

	// SetRotation sets the orientation.
	//
	// Parameters:
	//   - q: the orientation quaternion
	SetRotation(q mgl32.Quat)

	// SetScale sets the per-axis scale.
	//
	// Parameters:
	//   - x, y, z: scale components
	SetScale(x, y, z float32)

	// SetInstances replaces the instance transforms. An empty list hides the model.
	//
	// Parameters:
	//   - instances: per-instance transforms applied before the model transform
	SetInstances(instances []mgl32.Mat4)

	// AddInstance appends one instance transform.
	//
	// Parameters:
	//   - m: the instance transform
	AddInstance(m mgl32.Mat4)
}

var _ Model = &model{}

// NewModel creates a new Model drawing mesh with material.
//
// Parameters:
//   - mesh: the geometry
//   - material: the surface
//   - options: a variadic list of ModelBuilderOption functions to configure the Model
//
// Returns:
//   - Model: a new instance of Model configured with the provided options
func NewModel(mesh Mesh, material Material, options ...ModelBuilderOption) Model {
	m := &model{
		mesh:      mesh,
		material:  material,
		rotation:  mgl32.QuatIdent(),
		scale:     mgl32.Vec3{1, 1, 1},
		instances: []mgl32.Mat4{mgl32.Ident4()},
	}
	if mesh != nil {
		m.name = mesh.Label()
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *model) Name() string {
	return m.name
}

func (m *model) Mesh() renderer.Mesh {
	return m.mesh
}

func (m *model) Material() renderer.Material {
	if m.material == nil {
		return nil
	}
	return m.material
}

func (m *model) Position() mgl32.Vec3 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

func (m *model) Rotation() mgl32.Quat {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rotation
}

func (m *model) Scale() mgl32.Vec3 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scale
}

func (m *model) SetPosition(x, y, z float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.position = mgl32.Vec3{x, y, z}
}

func (m *model) SetRotation(q mgl32.Quat) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rotation = q.Normalize()
}

func (m *model) SetScale(x, y, z float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scale = mgl32.Vec3{x, y, z}
}

func (m *model) SetInstances(instances []mgl32.Mat4) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instances = append(m.instances[:0:0], instances...)
}

func (m *model) AddInstance(t mgl32.Mat4) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instances = append(m.instances, t)
}

// Transform composes translation, rotation and scale, in that order of application from the left.
func (m *model) Transform() mgl32.Mat4 {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := mgl32.Translate3D(m.position.X(), m.position.Y(), m.position.Z())
	s := mgl32.Scale3D(m.scale.X(), m.scale.Y(), m.scale.Z())
	return t.Mul4(m.rotation.Mat4()).Mul4(s)
}

func (m *model) Instances() []mgl32.Mat4 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mgl32.Mat4(nil), m.instances...)
}
