package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// Shadow depth bias applied by the shadow pipeline.
const (
	shadowDepthBias      = 2
	shadowDepthBiasSlope = 2.0
)

// depthPass is a depth-only pipeline over the draw list. The early depth pass binds the camera
// group, the shadow pass binds each light's view group.
type depthPass struct {
	pipeline pipeline.Pipeline
	view     pipeline.Layout
}

func (r *renderer) objectLayout() (pipeline.Layout, error) {
	g, err := newObjectGroup(groupObject, 1)
	if err != nil {
		return pipeline.Layout{}, err
	}
	return r.layout(groupObject, g)
}

func (r *renderer) buildShadowPass(macros map[string]string) (*depthPass, error) {
	s, err := r.library.Variant(shader.PathDepth, shader.WithMacro(macros, shader.MacroShadowPass))
	if err != nil {
		return nil, err
	}
	viewGroup, err := NewShadowViewGroup(groupShadowView)
	if err != nil {
		return nil, err
	}
	view, err := r.layout(groupShadowView, viewGroup)
	if err != nil {
		return nil, err
	}
	object, err := r.objectLayout()
	if err != nil {
		return nil, err
	}

	p := pipeline.NewPipeline("shadow", pipeline.PipelineTypeRender, s,
		pipeline.WithDepthFormat(DepthFormat),
		pipeline.WithDepthBias(shadowDepthBias, shadowDepthBiasSlope),
	)
	if err := p.Build(r.device, []pipeline.Layout{view, object}); err != nil {
		return nil, err
	}
	return &depthPass{pipeline: p, view: view}, nil
}

func (r *renderer) buildEarlyZPass(macros map[string]string) (*depthPass, error) {
	s, err := r.library.Variant(shader.PathDepth, macros)
	if err != nil {
		return nil, err
	}
	view, err := r.layout(groupEarlyZ, r.earlyzGroup)
	if err != nil {
		return nil, err
	}
	object, err := r.objectLayout()
	if err != nil {
		return nil, err
	}

	p := pipeline.NewPipeline("earlyz", pipeline.PipelineTypeRender, s,
		pipeline.WithDepthFormat(DepthFormat),
		pipeline.WithDepthCompare(wgpu.CompareFunctionLess),
		pipeline.WithDepthWriteEnabled(true),
	)
	if err := p.Build(r.device, []pipeline.Layout{view, object}); err != nil {
		return nil, err
	}
	return &depthPass{pipeline: p, view: view}, nil
}

// encode clears target and draws every draw's depth into it with viewGroup at index 0.
func (p *depthPass) encode(r *renderer, enc gpu.CommandEncoder, label string, target gpu.TextureView, viewGroup gpu.BindGroup) error {
	pass := enc.BeginRenderPass(&gpu.RenderPassDescriptor{
		Label: label,
		Depth: &gpu.DepthAttachment{
			View:            target,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1,
		},
	})
	pass.SetPipeline(p.pipeline.Render())
	pass.SetBindGroup(0, viewGroup, nil)
	r.encodeDraws(pass, false)
	return pass.End()
}

func (p *depthPass) release() {
	if p.pipeline != nil {
		p.pipeline.Release()
	}
}

// renderShadows lets every shadow-casting light render its depth map.
func (r *renderer) renderShadows() error {
	for i, l := range r.scene.Lights() {
		if l == nil || !l.CastsShadow() {
			continue
		}
		if err := l.RenderShadow(r); err != nil {
			return fmt.Errorf("light %d: %w", i, err)
		}
	}
	return nil
}

// prepareShadows allocates the shadow map of every shadow-casting light.
func (r *renderer) prepareShadows() error {
	for i, l := range r.scene.Lights() {
		if l == nil || !l.CastsShadow() {
			continue
		}
		if err := l.PrepareShadow(r); err != nil {
			return fmt.Errorf("light %d: %w", i, err)
		}
	}
	return nil
}

// shadowCaster returns the first light with a shadow map. Only its map is sampled by the shading passes.
func (r *renderer) shadowCaster() Light {
	if r.shadow == nil {
		return nil
	}
	for _, l := range r.scene.Lights() {
		if l != nil && l.CastsShadow() && l.ShadowMap() != nil {
			return l
		}
	}
	return nil
}

func (r *renderer) Device() gpu.Device {
	return r.device
}

func (r *renderer) ShadowMapSize() uint32 {
	return r.shadowMapSize
}

func (r *renderer) ShadowViewLayout() gpu.BindGroupLayout {
	if r.shadow == nil {
		return nil
	}
	return r.shadow.view.Handle
}

func (r *renderer) RenderDepthPass(label string, target gpu.TextureView, viewGroup gpu.BindGroup) error {
	if r.shadow == nil {
		return ErrPassDisabled
	}
	return r.submit("shadow", func(enc gpu.CommandEncoder) error {
		return r.shadow.encode(r, enc, label, target, viewGroup)
	})
}
