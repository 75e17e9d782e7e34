package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/uniform"
	"github.com/cogentcore/webgpu/wgpu"
)

// hizPass builds a max-depth pyramid from the depth buffer. Level zero copies depth at full
// resolution; every later level keeps the farthest of a 2x2 footprint of the level above.
// It runs before the early depth pass, so it always sees the previous frame's depth.
type hizPass struct {
	copy   pipeline.Pipeline
	reduce pipeline.Pipeline

	pyramid target
	mips    []gpu.TextureView
	sizes   [][2]uint32

	groups  []*uniform.BindGroup
	buffers *uniform.BufferManager
	binds   []gpu.BindGroup
}

func (r *renderer) buildHiZ(macros map[string]string) (*hizPass, error) {
	copyShader, err := r.library.Variant(shader.PathHiZ, shader.WithMacro(macros, shader.MacroHiZCopy))
	if err != nil {
		return nil, err
	}
	reduceShader, err := r.library.Variant(shader.PathHiZ, macros)
	if err != nil {
		return nil, err
	}

	p := &hizPass{}
	ok := false
	defer func() {
		if !ok {
			p.release()
		}
	}()

	w, h := r.targets.width, r.targets.height
	levels := gpu.MipLevels(w, h)
	if p.pyramid, err = newTarget(r.device, "hiz", w, h, levels, HiZFormat,
		wgpu.TextureUsageStorageBinding|wgpu.TextureUsageTextureBinding); err != nil {
		return nil, err
	}

	for level := uint32(0); level < levels; level++ {
		view, err := p.pyramid.tex.CreateView(&gpu.ViewDescriptor{
			Label:         fmt.Sprintf("hiz.mip%d", level),
			BaseMipLevel:  level,
			MipLevelCount: 1,
		})
		if err != nil {
			return nil, err
		}
		p.mips = append(p.mips, view)
		p.sizes = append(p.sizes, [2]uint32{max(w>>level, 1), max(h>>level, 1)})

		g, err := newHiZGroup(fmt.Sprintf("hiz.%d", level), level)
		if err != nil {
			return nil, err
		}
		if level == 0 {
			g.Set("src", r.targets.depth.view)
		} else {
			g.Set("src", p.mips[level-1])
		}
		g.Set("dst", view)
		p.groups = append(p.groups, g)
	}

	p.buffers = uniform.NewBufferManager("hiz", p.groups...)
	if err := p.buffers.Create(r.device); err != nil {
		return nil, err
	}

	copyLayout, err := r.layout(groupHiZCopy, p.groups[0])
	if err != nil {
		return nil, err
	}
	p.copy = pipeline.NewPipeline("hiz.copy", pipeline.PipelineTypeCompute, copyShader)
	if err := p.copy.Build(r.device, []pipeline.Layout{copyLayout}); err != nil {
		return nil, err
	}
	b, err := p.buffers.CreateBindGroup(copyLayout.Handle, p.groups[0])
	if err != nil {
		return nil, err
	}
	p.binds = append(p.binds, b)

	if levels > 1 {
		reduceLayout, err := r.layout(groupHiZReduce, p.groups[1])
		if err != nil {
			return nil, err
		}
		p.reduce = pipeline.NewPipeline("hiz.reduce", pipeline.PipelineTypeCompute, reduceShader)
		if err := p.reduce.Build(r.device, []pipeline.Layout{reduceLayout}); err != nil {
			return nil, err
		}
		for _, g := range p.groups[1:] {
			b, err := p.buffers.CreateBindGroup(reduceLayout.Handle, g)
			if err != nil {
				return nil, err
			}
			p.binds = append(p.binds, b)
		}
	}

	ok = true
	return p, nil
}

// view returns the view over every level, bound by the passes that test occlusion.
func (p *hizPass) view() gpu.TextureView {
	return p.pyramid.view
}

func (p *hizPass) encode(enc gpu.CommandEncoder) error {
	pass := enc.BeginComputePass("hiz")
	for level, b := range p.binds {
		pipe := p.copy
		if level > 0 {
			pipe = p.reduce
		}
		pass.SetPipeline(pipe.Compute())
		pass.SetBindGroup(0, b, nil)
		x, y := pipe.Workgroups(p.sizes[level][0], p.sizes[level][1])
		pass.DispatchWorkgroups(x, y, 1)
	}
	return pass.End()
}

func (p *hizPass) release() {
	for _, b := range p.binds {
		b.Release()
	}
	p.binds = nil
	if p.buffers != nil {
		p.buffers.Release()
		p.buffers = nil
	}
	for _, v := range p.mips {
		v.Release()
	}
	p.mips = nil
	p.pyramid.release()
	if p.copy != nil {
		p.copy.Release()
	}
	if p.reduce != nil {
		p.reduce.Release()
	}
}
