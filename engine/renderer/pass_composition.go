package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/uniform"
	"github.com/cogentcore/webgpu/wgpu"
)

// compositionPass blends the shaded color with the previous composed frame and writes the result to
// the surface and to one of two composed targets. Group i writes composed[i] and reads composed[1-i]
// as history, so swapping is a flip of the current index.
type compositionPass struct {
	pipeline pipeline.Pipeline

	groups  [2]*uniform.BindGroup
	buffers *uniform.BufferManager
	binds   [2]gpu.BindGroup

	current int
	primed  bool
}

func (r *renderer) buildComposition(macros map[string]string) (*compositionPass, error) {
	s, err := r.library.Variant(shader.PathComposition, macros)
	if err != nil {
		return nil, err
	}

	p := &compositionPass{}
	for i := range p.groups {
		g, err := newCompositionGroup(fmt.Sprintf("%s.%d", groupComposition, i))
		if err != nil {
			return nil, err
		}
		g.Set("current", r.targets.color.view)
		g.Set("history", r.targets.composed[1-i].view)
		g.Set("linearSampler", r.placeholders.linear)
		p.groups[i] = g
	}

	p.buffers = uniform.NewBufferManager(groupComposition, p.groups[:]...)
	if err := p.buffers.Create(r.device); err != nil {
		p.release()
		return nil, err
	}
	layout, err := r.layout(groupComposition, p.groups[0])
	if err != nil {
		p.release()
		return nil, err
	}
	for i, g := range p.groups {
		if p.binds[i], err = p.buffers.CreateBindGroup(layout.Handle, g); err != nil {
			p.release()
			return nil, err
		}
	}

	p.pipeline = pipeline.NewPipeline("composition", pipeline.PipelineTypeRender, s,
		pipeline.WithColorTargets(r.surface.Format(), ColorFormat),
	)
	if err := p.pipeline.Build(r.device, []pipeline.Layout{layout}); err != nil {
		p.release()
		return nil, err
	}
	return p, nil
}

// encode composes into surface and the current composed target. History is ignored until one frame
// has been composed since the targets were built.
func (p *compositionPass) encode(r *renderer, enc gpu.CommandEncoder, surface gpu.TextureView) error {
	weight := r.historyWeight
	if !p.primed {
		weight = 0
	}
	p.groups[p.current].Set("composition", map[string]any{
		"historyWeight": weight,
		"exposure":      r.exposure,
	})
	if err := p.buffers.WriteBuffer(r.device.Queue()); err != nil {
		return err
	}

	pass := enc.BeginRenderPass(&gpu.RenderPassDescriptor{
		Label: "composition",
		ColorAttachments: []gpu.ColorAttachment{
			{View: surface, LoadOp: wgpu.LoadOpClear, StoreOp: wgpu.StoreOpStore, ClearValue: r.clearColor},
			{View: r.targets.composed[p.current].view, LoadOp: wgpu.LoadOpClear, StoreOp: wgpu.StoreOpStore},
		},
	})
	pass.SetPipeline(p.pipeline.Render())
	pass.SetBindGroup(0, p.binds[p.current], nil)
	pass.Draw(3, 1, 0, 0)
	return pass.End()
}

// swap makes this frame's output the next frame's history.
func (p *compositionPass) swap() {
	p.current = 1 - p.current
	p.primed = true
}

func (p *compositionPass) release() {
	for i := range p.binds {
		if p.binds[i] != nil {
			p.binds[i].Release()
			p.binds[i] = nil
		}
	}
	if p.buffers != nil {
		p.buffers.Release()
		p.buffers = nil
	}
	if p.pipeline != nil {
		p.pipeline.Release()
	}
}
