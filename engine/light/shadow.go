package light

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-pipeline/engine/camera"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/uniform"
	"github.com/chewxy/math32"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

// DefaultShadowHalfExtent is the default orthographic half-extent (in world units)
// used for the directional light shadow frustum. Controls how much of the scene
// around the shadow center is captured in the shadow map.
const DefaultShadowHalfExtent float32 = 40.0

// DefaultShadowNear is the default near plane for the directional light's
// orthographic shadow projection.
const DefaultShadowNear float32 = 0.1

// DefaultShadowFar is the default far plane for the directional light's
// orthographic shadow projection.
const DefaultShadowFar float32 = 200.0

// shadowMap is the depth target and view group of one shadow-casting light.
type shadowMap struct {
	label    string
	tex      gpu.Texture
	view     gpu.TextureView
	group    *uniform.BindGroup
	buffers  *uniform.BufferManager
	bind     gpu.BindGroup
	viewProj mgl32.Mat4
}

// prepare reallocates the map at the renderer's current size and rebuilds the view group
// against the current layout, which changes on every config refresh.
func (s *shadowMap) prepare(r renderer.DepthPassRenderer) error {
	s.release()

	size := r.ShadowMapSize()
	tex, err := r.Device().CreateTexture(&gpu.TextureDescriptor{
		Label:         s.label,
		Width:         size,
		Height:        size,
		MipLevelCount: 1,
		SampleCount:   1,
		Format:        renderer.DepthFormat,
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding,
	})
	if err != nil {
		return fmt.Errorf("failed to create shadow map %s: %w", s.label, err)
	}
	s.tex = tex
	if s.view, err = tex.CreateView(nil); err != nil {
		s.release()
		return fmt.Errorf("failed to create shadow map view %s: %w", s.label, err)
	}

	if s.group, err = renderer.NewShadowViewGroup(s.label); err != nil {
		s.release()
		return err
	}
	s.buffers = uniform.NewBufferManager(s.label, s.group)
	if err := s.buffers.Create(r.Device()); err != nil {
		s.release()
		return err
	}
	if s.bind, err = s.buffers.CreateBindGroup(r.ShadowViewLayout(), s.group); err != nil {
		s.release()
		return err
	}
	s.viewProj = mgl32.Ident4()
	return nil
}

func (s *shadowMap) render(r renderer.DepthPassRenderer, viewProj mgl32.Mat4) error {
	s.viewProj = viewProj
	s.group.Set("lightViewProj", viewProj)
	if err := s.buffers.WriteBuffer(r.Device().Queue()); err != nil {
		return err
	}
	return r.RenderDepthPass(s.label, s.view, s.bind)
}

func (s *shadowMap) release() {
	if s.bind != nil {
		s.bind.Release()
		s.bind = nil
	}
	if s.buffers != nil {
		s.buffers.Release()
		s.buffers = nil
	}
	if s.view != nil {
		s.view.Release()
		s.view = nil
	}
	if s.tex != nil {
		s.tex.Release()
		s.tex = nil
	}
	s.group = nil
}

// directionalViewProj builds the orthographic light transform of a directional light centered on center.
// The frustum is translated in light space to whole texels so shadow edges do not shimmer as the center moves.
func directionalViewProj(direction, center mgl32.Vec3, halfExtent, near, far float32, size uint32) mgl32.Mat4 {
	up := mgl32.Vec3{0, 1, 0}
	if math32.Abs(direction.Y()) > 0.99 {
		up = mgl32.Vec3{0, 0, 1}
	}
	eye := center.Sub(direction.Mul(far * 0.5))
	view := mgl32.LookAtV(eye, center, up)

	texel := 2 * halfExtent / float32(max(size, 1))
	origin := view.Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	dx := snap(origin.X(), texel) - origin.X()
	dy := snap(origin.Y(), texel) - origin.Y()
	view = mgl32.Translate3D(dx, dy, 0).Mul4(view)

	proj := camera.Orthographic{Height: 2 * halfExtent, Near: near, Far: far}.Matrix(1)
	return proj.Mul4(view)
}

func snap(v, step float32) float32 {
	return math32.Floor(v/step+0.5) * step
}
