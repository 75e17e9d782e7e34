package renderer

import (
	"github.com/Carmen-Shannon/oxy-pipeline/engine/config"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/uniform"
	"github.com/cogentcore/webgpu/wgpu"
)

// ShadingStrategy is the opaque shading step of a frame. It is closed: the renderer picks
// forward or deferred shading from config.Features.Shading.
type ShadingStrategy interface {
	// Shading returns the technique this strategy implements.
	Shading() config.Shading

	build(r *renderer, macros map[string]string) error
	onRendering(r *renderer) error
	release()
}

var (
	_ ShadingStrategy = &forwardShading{}
	_ ShadingStrategy = &deferredShading{}
)

func newShadingStrategy(s config.Shading) ShadingStrategy {
	if s == config.ShadingDeferred {
		return &deferredShading{}
	}
	return &forwardShading{}
}

// depthOptions configures a shading pass against the depth buffer. After an early depth pass the
// buffer already holds the nearest depth, so the pass tests for equality and leaves it untouched.
func depthOptions(earlyZ bool) []pipeline.PipelineBuilderOption {
	if earlyZ {
		return []pipeline.PipelineBuilderOption{
			pipeline.WithDepthFormat(DepthFormat),
			pipeline.WithDepthCompare(wgpu.CompareFunctionLessEqual),
			pipeline.WithDepthWriteEnabled(false),
		}
	}
	return []pipeline.PipelineBuilderOption{
		pipeline.WithDepthFormat(DepthFormat),
		pipeline.WithDepthCompare(wgpu.CompareFunctionLess),
		pipeline.WithDepthWriteEnabled(true),
	}
}

// depthAttachment loads the early depth result, or clears when there is none.
func (r *renderer) depthAttachment() *gpu.DepthAttachment {
	load := wgpu.LoadOpClear
	if r.earlyz != nil {
		load = wgpu.LoadOpLoad
	}
	return &gpu.DepthAttachment{
		View:            r.targets.depth.view,
		DepthLoadOp:     load,
		DepthStoreOp:    wgpu.StoreOpStore,
		DepthClearValue: 1,
	}
}

// geometryLayouts returns the scene, object and material layouts in group order.
func (r *renderer) geometryLayouts() ([]pipeline.Layout, error) {
	scene, err := r.layout(groupScene, r.sceneGroup)
	if err != nil {
		return nil, err
	}
	object, err := r.objectLayout()
	if err != nil {
		return nil, err
	}
	mg, err := newMaterialGroup(groupMaterial)
	if err != nil {
		return nil, err
	}
	material, err := r.layout(groupMaterial, mg)
	if err != nil {
		return nil, err
	}
	return []pipeline.Layout{scene, object, material}, nil
}

// forwardShading shades every draw in one pass into the scene color target.
type forwardShading struct {
	pipeline pipeline.Pipeline
}

func (f *forwardShading) Shading() config.Shading {
	return config.ShadingForward
}

func (f *forwardShading) build(r *renderer, macros map[string]string) error {
	s, err := r.library.Variant(shader.PathForward, macros)
	if err != nil {
		return err
	}
	layouts, err := r.geometryLayouts()
	if err != nil {
		return err
	}
	opts := append([]pipeline.PipelineBuilderOption{pipeline.WithColorTargets(ColorFormat)}, depthOptions(r.earlyz != nil)...)
	f.pipeline = pipeline.NewPipeline("forward", pipeline.PipelineTypeRender, s, opts...)
	return f.pipeline.Build(r.device, layouts)
}

func (f *forwardShading) onRendering(r *renderer) error {
	return r.submit("forward", func(enc gpu.CommandEncoder) error {
		pass := enc.BeginRenderPass(&gpu.RenderPassDescriptor{
			Label: "forward",
			ColorAttachments: []gpu.ColorAttachment{{
				View:       r.targets.color.view,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: r.clearColor,
			}},
			Depth: r.depthAttachment(),
		})
		pass.SetPipeline(f.pipeline.Render())
		pass.SetBindGroup(0, r.sceneBind, nil)
		r.encodeDraws(pass, true)
		return pass.End()
	})
}

func (f *forwardShading) release() {
	if f.pipeline != nil {
		f.pipeline.Release()
	}
}

// deferredShading writes albedo, normal and material parameters into a G-buffer, then lights it in
// a full-screen pass into the scene color target.
type deferredShading struct {
	gbuffer  pipeline.Pipeline
	lighting pipeline.Pipeline

	albedo   target
	normal   target
	material target

	group   *uniform.BindGroup
	buffers *uniform.BufferManager
	bind    gpu.BindGroup
}

func (d *deferredShading) Shading() config.Shading {
	return config.ShadingDeferred
}

func (d *deferredShading) build(r *renderer, macros map[string]string) error {
	gs, err := r.library.Variant(shader.PathGBuffer, macros)
	if err != nil {
		return err
	}
	ls, err := r.library.Variant(shader.PathDeferredLighting, macros)
	if err != nil {
		return err
	}

	w, h := r.targets.width, r.targets.height
	usage := wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding
	if d.albedo, err = newTarget(r.device, "gbuffer.albedo", w, h, 1, AlbedoFormat, usage); err != nil {
		return err
	}
	if d.normal, err = newTarget(r.device, "gbuffer.normal", w, h, 1, NormalFormat, usage); err != nil {
		return err
	}
	if d.material, err = newTarget(r.device, "gbuffer.material", w, h, 1, MaterialFormat, usage); err != nil {
		return err
	}

	if d.group, err = newGBufferGroup(); err != nil {
		return err
	}
	d.group.Set("gAlbedo", d.albedo.view)
	d.group.Set("gNormal", d.normal.view)
	d.group.Set("gParams", d.material.view)
	d.group.Set("gDepth", r.targets.depth.view)
	d.buffers = uniform.NewBufferManager(groupGBuffer, d.group)
	if err := d.buffers.Create(r.device); err != nil {
		return err
	}
	gbufferLayout, err := r.layout(groupGBuffer, d.group)
	if err != nil {
		return err
	}
	if d.bind, err = d.buffers.CreateBindGroup(gbufferLayout.Handle, d.group); err != nil {
		return err
	}

	layouts, err := r.geometryLayouts()
	if err != nil {
		return err
	}
	opts := append([]pipeline.PipelineBuilderOption{
		pipeline.WithColorTargets(AlbedoFormat, NormalFormat, MaterialFormat),
	}, depthOptions(r.earlyz != nil)...)
	d.gbuffer = pipeline.NewPipeline("gbuffer", pipeline.PipelineTypeRender, gs, opts...)
	if err := d.gbuffer.Build(r.device, layouts); err != nil {
		return err
	}

	d.lighting = pipeline.NewPipeline("lighting", pipeline.PipelineTypeRender, ls,
		pipeline.WithColorTargets(ColorFormat),
	)
	return d.lighting.Build(r.device, []pipeline.Layout{layouts[0], gbufferLayout})
}

func (d *deferredShading) onRendering(r *renderer) error {
	err := r.submit("gbuffer", func(enc gpu.CommandEncoder) error {
		attach := func(t target) gpu.ColorAttachment {
			return gpu.ColorAttachment{View: t.view, LoadOp: wgpu.LoadOpClear, StoreOp: wgpu.StoreOpStore}
		}
		pass := enc.BeginRenderPass(&gpu.RenderPassDescriptor{
			Label:            "gbuffer",
			ColorAttachments: []gpu.ColorAttachment{attach(d.albedo), attach(d.normal), attach(d.material)},
			Depth:            r.depthAttachment(),
		})
		pass.SetPipeline(d.gbuffer.Render())
		pass.SetBindGroup(0, r.sceneBind, nil)
		r.encodeDraws(pass, true)
		return pass.End()
	})
	if err != nil {
		return err
	}

	return r.submit("lighting", func(enc gpu.CommandEncoder) error {
		pass := enc.BeginRenderPass(&gpu.RenderPassDescriptor{
			Label: "lighting",
			ColorAttachments: []gpu.ColorAttachment{{
				View:       r.targets.color.view,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: r.clearColor,
			}},
		})
		pass.SetPipeline(d.lighting.Render())
		pass.SetBindGroup(0, r.sceneBind, nil)
		pass.SetBindGroup(1, d.bind, nil)
		pass.Draw(3, 1, 0, 0)
		return pass.End()
	})
}

func (d *deferredShading) release() {
	if d.bind != nil {
		d.bind.Release()
		d.bind = nil
	}
	if d.buffers != nil {
		d.buffers.Release()
		d.buffers = nil
	}
	d.albedo.release()
	d.normal.release()
	d.material.release()
	if d.gbuffer != nil {
		d.gbuffer.Release()
	}
	if d.lighting != nil {
		d.lighting.Release()
	}
}
