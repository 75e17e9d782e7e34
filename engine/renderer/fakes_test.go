package renderer

import (
	"errors"

	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/uniform"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

const vertexStride = 48

var errFakeLight = errors.New("fake light failed")

type fakeMesh struct {
	label   string
	indexed bool

	vb gpu.Buffer
	ib gpu.Buffer

	uploads int
}

func (m *fakeMesh) Label() string { return m.label }

func (m *fakeMesh) Upload(device gpu.Device) error {
	m.uploads++
	if m.vb != nil {
		return nil
	}
	vb, err := device.CreateBuffer(&gpu.BufferDescriptor{Label: m.label + ".vertices", Size: 3 * vertexStride, Usage: wgpu.BufferUsageVertex})
	if err != nil {
		return err
	}
	m.vb = vb
	if m.indexed {
		ib, err := device.CreateBuffer(&gpu.BufferDescriptor{Label: m.label + ".indices", Size: 8, Usage: wgpu.BufferUsageIndex})
		if err != nil {
			return err
		}
		m.ib = ib
	}
	return nil
}

func (m *fakeMesh) VertexBuffer() gpu.Buffer      { return m.vb }
func (m *fakeMesh) IndexBuffer() gpu.Buffer       { return m.ib }
func (m *fakeMesh) IndexFormat() wgpu.IndexFormat { return wgpu.IndexFormatUint16 }
func (m *fakeMesh) VertexCount() uint32           { return 3 }
func (m *fakeMesh) IndexCount() uint32            { return 3 }
func (m *fakeMesh) Radius() float32               { return 1 }
func (m *fakeMesh) Release()                      {}

type fakeMaterial struct {
	label   string
	color   mgl32.Vec4
	uploads int
}

func (m *fakeMaterial) Label() string { return m.label }

func (m *fakeMaterial) Upload(gpu.Device) error {
	m.uploads++
	return nil
}

func (m *fakeMaterial) ToBindGroup(g *uniform.BindGroup) {
	g.Set("material", map[string]any{"baseColor": m.color})
}

func (m *fakeMaterial) Release() {}

type fakeItem struct {
	mesh      Mesh
	material  Material
	transform mgl32.Mat4
	instances []mgl32.Mat4
}

func (i *fakeItem) Mesh() Mesh              { return i.mesh }
func (i *fakeItem) Material() Material      { return i.material }
func (i *fakeItem) Transform() mgl32.Mat4   { return i.transform }
func (i *fakeItem) Instances() []mgl32.Mat4 { return i.instances }

func newItem(mesh Mesh, material Material, instances int) *fakeItem {
	item := &fakeItem{mesh: mesh, material: material, transform: mgl32.Ident4()}
	for n := 0; n < instances; n++ {
		item.instances = append(item.instances, mgl32.Translate3D(float32(n), 0, 0))
	}
	return item
}

type fakeCamera struct {
	aspect float32
}

func (c *fakeCamera) ViewMatrix() mgl32.Mat4 {
	return mgl32.LookAtV(mgl32.Vec3{0, 2, 5}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
}

func (c *fakeCamera) ProjMatrix() mgl32.Mat4 {
	return mgl32.Perspective(mgl32.DegToRad(60), c.aspect, 0.1, 100)
}

func (c *fakeCamera) Position() mgl32.Vec3 { return mgl32.Vec3{0, 2, 5} }
func (c *fakeCamera) Near() float32        { return 0.1 }
func (c *fakeCamera) SetAspect(a float32)  { c.aspect = a }

// fakeLight casts a shadow the way a directional light does: its own depth map and view group.
type fakeLight struct {
	fail bool

	tex     gpu.Texture
	view    gpu.TextureView
	group   *uniform.BindGroup
	buffers *uniform.BufferManager
	bind    gpu.BindGroup

	prepared, rendered, released int
}

func (l *fakeLight) CastsShadow() bool { return true }

func (l *fakeLight) PrepareShadow(r DepthPassRenderer) error {
	l.ReleaseShadow()
	l.prepared++

	size := r.ShadowMapSize()
	tex, err := r.Device().CreateTexture(&gpu.TextureDescriptor{
		Label:         "shadow.fake",
		Width:         size,
		Height:        size,
		MipLevelCount: 1,
		SampleCount:   1,
		Format:        DepthFormat,
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding,
	})
	if err != nil {
		return err
	}
	l.tex = tex
	if l.view, err = tex.CreateView(nil); err != nil {
		return err
	}
	if l.group, err = NewShadowViewGroup("shadow.fake"); err != nil {
		return err
	}
	l.buffers = uniform.NewBufferManager("shadow.fake", l.group)
	if err := l.buffers.Create(r.Device()); err != nil {
		return err
	}
	l.bind, err = l.buffers.CreateBindGroup(r.ShadowViewLayout(), l.group)
	return err
}

func (l *fakeLight) RenderShadow(r DepthPassRenderer) error {
	if l.fail {
		return errFakeLight
	}
	l.rendered++
	l.group.Set("lightViewProj", l.ShadowViewProj())
	if err := l.buffers.WriteBuffer(r.Device().Queue()); err != nil {
		return err
	}
	return r.RenderDepthPass("shadow.fake", l.view, l.bind)
}

func (l *fakeLight) ShadowMap() gpu.TextureView {
	if l.view == nil {
		return nil
	}
	return l.view
}

func (l *fakeLight) ShadowViewProj() mgl32.Mat4 {
	return mgl32.Ortho(-10, 10, -10, 10, 0.1, 50).Mul4(mgl32.LookAtV(mgl32.Vec3{5, 10, 5}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0}))
}

func (l *fakeLight) ReleaseShadow() {
	if l.buffers != nil {
		l.buffers.Release()
		l.buffers = nil
	}
	if l.tex != nil {
		l.tex.Release()
		l.tex = nil
	}
	l.view, l.bind = nil, nil
	l.released++
}

type fakeScene struct {
	camera *fakeCamera
	lights []Light
	items  []DrawItem

	writes int
}

func (s *fakeScene) Camera() Camera {
	if s.camera == nil {
		return nil
	}
	return s.camera
}

func (s *fakeScene) Lights() []Light       { return s.lights }
func (s *fakeScene) DrawItems() []DrawItem { return s.items }

func (s *fakeScene) ToBindGroup(g *uniform.BindGroup) {
	s.writes++
	g.Set("lighting", map[string]any{
		"ambient":      mgl32.Vec4{0.1, 0.1, 0.1, 1},
		"sunDirection": mgl32.Vec4{-0.3, -1, -0.2, 0},
		"sunColor":     mgl32.Vec4{1, 1, 1, 3},
		"pointCount":   uint32(0),
	})
}
