package renderer

import (
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/uniform"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

// Scene is everything the renderer draws in one frame.
type Scene interface {
	// Camera returns the viewpoint the frame is rendered from.
	//
	// Returns:
	//   - Camera: the active camera
	Camera() Camera

	// Lights returns every light of the scene. Lights that cast shadows render their own depth maps.
	//
	// Returns:
	//   - []Light: the scene lights
	Lights() []Light

	// DrawItems returns every drawable of the scene.
	//
	// Returns:
	//   - []DrawItem: the drawables
	DrawItems() []DrawItem

	// ToBindGroup writes scene-level uniform values (ambient light, sun, point lights) into the scene group.
	// The renderer writes the camera and shadow entries itself.
	//
	// Parameters:
	//   - g: the scene bind group
	ToBindGroup(g *uniform.BindGroup)
}

// Camera exposes the matrices the renderer packs into the camera uniform.
type Camera interface {
	// ViewMatrix returns the world to view transform.
	ViewMatrix() mgl32.Mat4

	// ProjMatrix returns the view to clip transform.
	ProjMatrix() mgl32.Mat4

	// Position returns the eye position in world space.
	Position() mgl32.Vec3

	// Near returns the near plane distance.
	Near() float32

	// SetAspect updates the projection for a new surface aspect ratio.
	SetAspect(aspect float32)
}

// Light is a scene light. Only lights reporting CastsShadow take part in the shadow stage.
type Light interface {
	// CastsShadow reports whether the light renders a shadow map.
	CastsShadow() bool

	// PrepareShadow allocates the light's shadow map and view group on r's device.
	//
	// Parameters:
	//   - r: the renderer that owns the depth pass
	//
	// Returns:
	//   - error: an error if allocation fails
	PrepareShadow(r DepthPassRenderer) error

	// RenderShadow updates the light's view transform and renders the scene depth into its shadow map.
	//
	// Parameters:
	//   - r: the renderer that owns the depth pass
	//
	// Returns:
	//   - error: an error if the depth pass fails
	RenderShadow(r DepthPassRenderer) error

	// ShadowMap returns the view of the light's shadow map, or nil before PrepareShadow.
	ShadowMap() gpu.TextureView

	// ShadowViewProj returns the light's view-projection used when the shadow map was last rendered.
	ShadowViewProj() mgl32.Mat4

	// ReleaseShadow frees the shadow map and view group.
	ReleaseShadow()
}

// DepthPassRenderer is the part of the renderer a shadow-casting light drives.
type DepthPassRenderer interface {
	// Device returns the device every shadow resource must be created on.
	Device() gpu.Device

	// ShadowMapSize returns the edge length in texels of shadow maps.
	ShadowMapSize() uint32

	// ShadowViewLayout returns the layout of the group built by NewShadowViewGroup.
	ShadowViewLayout() gpu.BindGroupLayout

	// RenderDepthPass draws every draw item's depth into target, positioned by the view group.
	// It submits one command buffer labelled "shadow".
	//
	// Parameters:
	//   - label: a debug label for the pass
	//   - target: a Depth32Float view to clear and write
	//   - viewGroup: a bind group created from NewShadowViewGroup against ShadowViewLayout
	//
	// Returns:
	//   - error: ErrPassDisabled when shadow mapping is off, or an encoding error
	RenderDepthPass(label string, target gpu.TextureView, viewGroup gpu.BindGroup) error
}

// DrawItem is one drawable: a mesh with a material placed by a transform and one or more instances.
type DrawItem interface {
	// Mesh returns the geometry.
	Mesh() Mesh

	// Material returns the surface description.
	Material() Material

	// Transform returns the local to world transform.
	Transform() mgl32.Mat4

	// Instances returns per-instance transforms applied before Transform. An empty result hides the item.
	Instances() []mgl32.Mat4
}

// Mesh is GPU-resident geometry.
type Mesh interface {
	// Label returns a debug name, also used to group draws for static batching.
	Label() string

	// Upload creates the vertex and index buffers on device if they do not exist yet.
	//
	// Parameters:
	//   - device: the device to allocate on
	//
	// Returns:
	//   - error: an error if a buffer cannot be created or written
	Upload(device gpu.Device) error

	// VertexBuffer returns the interleaved vertex buffer matching the shared vertex layout.
	VertexBuffer() gpu.Buffer

	// IndexBuffer returns the index buffer, or nil for non-indexed meshes.
	IndexBuffer() gpu.Buffer

	// IndexFormat returns the format of IndexBuffer.
	IndexFormat() wgpu.IndexFormat

	// VertexCount returns the number of vertices.
	VertexCount() uint32

	// IndexCount returns the number of indices.
	IndexCount() uint32

	// Radius returns the bounding sphere radius around the local origin.
	Radius() float32

	// Release frees the GPU buffers.
	Release()
}

// Material describes a surface. The renderer owns the material bind group and seeds it with defaults.
type Material interface {
	// Label returns a debug name.
	Label() string

	// Upload creates the material's textures on device if they do not exist yet.
	//
	// Parameters:
	//   - device: the device to allocate on
	//
	// Returns:
	//   - error: an error if a texture cannot be created or written
	Upload(device gpu.Device) error

	// ToBindGroup writes the material values and any textures it owns into g.
	//
	// Parameters:
	//   - g: the material bind group, pre-filled with default textures and sampler
	ToBindGroup(g *uniform.BindGroup)

	// Release frees the GPU textures.
	Release()
}
