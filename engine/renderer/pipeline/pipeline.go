package pipeline

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// PipelineType identifies whether a pipeline is a compute pipeline or a render pipeline.
type PipelineType int

const (
	// PipelineTypeCompute indicates a compute pipeline with a single compute shader entry point.
	PipelineTypeCompute PipelineType = iota

	// PipelineTypeRender indicates a render pipeline with a vertex entry point and an optional fragment entry point.
	PipelineTypeRender
)

// ErrMissingStage is returned by Build when the shader lacks an entry point the pipeline needs.
var ErrMissingStage = errors.New("shader is missing a required stage")

// Layout pairs a created bind group layout with the descriptor it was created from.
// The descriptor is what Build checks against the shader's reflected bindings.
type Layout struct {
	Descriptor wgpu.BindGroupLayoutDescriptor
	Handle     gpu.BindGroupLayout
}

// pipeline is the implementation of the Pipeline interface.
// It holds the GPU pipeline objects and the state used to create them for both render and compute pipelines.
type pipeline struct {
	// pipelineType indicates the type of pipeline this is; compute or render
	pipelineType PipelineType
	// pipelineKey is the unique identifier for this pipeline, used as the GPU label
	pipelineKey string

	// shader is the preprocessed variant every stage of this pipeline is compiled from
	shader shader.Shader

	module          gpu.ShaderModule
	renderPipeline  gpu.RenderPipeline
	computePipeline gpu.ComputePipeline
	layouts         []Layout

	// The following properties configure the pipeline during Build and can be set with the builder options.
	// Compute pipelines keep the defaults but do not use them.

	depthTestEnabled    bool
	depthWriteEnabled   bool
	depthCompare        wgpu.CompareFunction
	depthFormat         wgpu.TextureFormat
	depthBias           int32
	depthBiasSlopeScale float32
	blendEnabled        bool
	cullMode            wgpu.CullMode
	topology            wgpu.PrimitiveTopology
	frontFace           wgpu.FrontFace
	writeMask           wgpu.ColorWriteMask
	blendState          *wgpu.BlendState
	colorFormats        []wgpu.TextureFormat
}

// Pipeline defines the interface for a GPU pipeline, encapsulating either a render pipeline
// (vertex and optional fragment stage) or a compute pipeline (compute stage). It holds all configuration
// state required for pipeline creation including depth, blend, cull, and topology settings.
type Pipeline interface {
	// Type returns the type of the pipeline
	//
	// Returns:
	//   - PipelineType: the type of the pipeline (render or compute)
	Type() PipelineType

	// PipelineKey returns the unique key associated with this pipeline, used for lookups and GPU labels.
	//
	// Returns:
	//   - string: the unique key for this pipeline
	PipelineKey() string

	// Shader returns the shader variant this pipeline compiles.
	//
	// Returns:
	//   - shader.Shader: the shader variant
	Shader() shader.Shader

	// Build validates every layout against the shader's reflected bindings, then creates the shader module
	// and the render or compute pipeline on the device. Calling Build again releases the previous objects.
	//
	// Parameters:
	//   - device: the device to create the pipeline on
	//   - layouts: the bind group layouts in group index order
	//
	// Returns:
	//   - error: ErrMissingStage, a layout mismatch, or a device error
	Build(device gpu.Device, layouts []Layout) error

	// Built reports whether Build has succeeded since the last Release.
	//
	// Returns:
	//   - bool: true if the GPU pipeline exists
	Built() bool

	// Render returns the render pipeline, or nil for compute pipelines and before Build.
	//
	// Returns:
	//   - gpu.RenderPipeline: the render pipeline
	Render() gpu.RenderPipeline

	// Compute returns the compute pipeline, or nil for render pipelines and before Build.
	//
	// Returns:
	//   - gpu.ComputePipeline: the compute pipeline
	Compute() gpu.ComputePipeline

	// Layouts returns the layouts the pipeline was last built against.
	//
	// Returns:
	//   - []Layout: the layouts in group index order
	Layouts() []Layout

	// Workgroups returns how many workgroups cover a width by height grid with the shader's workgroup size.
	//
	// Parameters:
	//   - width: the grid width in invocations
	//   - height: the grid height in invocations
	//
	// Returns:
	//   - x, y: the dispatch counts, at least one each
	Workgroups(width, height uint32) (x, y uint32)

	// DepthTestEnabled returns whether depth testing is enabled for this pipeline.
	//
	// Returns:
	//   - bool: true if depth testing is enabled, false otherwise
	DepthTestEnabled() bool

	// DepthWriteEnabled returns whether depth writing is enabled for this pipeline.
	//
	// Returns:
	//   - bool: true if depth writing is enabled, false otherwise
	DepthWriteEnabled() bool

	// DepthCompare returns the depth comparison used when depth testing is enabled.
	//
	// Returns:
	//   - wgpu.CompareFunction: the comparison function
	DepthCompare() wgpu.CompareFunction

	// DepthFormat returns the depth attachment format, or wgpu.TextureFormatUndefined when the pipeline has no depth attachment.
	//
	// Returns:
	//   - wgpu.TextureFormat: the depth format
	DepthFormat() wgpu.TextureFormat

	// DepthBias returns the depth bias value configured for this pipeline.
	//
	// Returns:
	//   - int32: the depth bias value for this pipeline
	DepthBias() int32

	// DepthBiasSlopeScale returns the depth bias slope scale configured for this pipeline.
	//
	// Returns:
	//   - float32: the depth bias slope scale for this pipeline
	DepthBiasSlopeScale() float32

	// BlendEnabled returns whether blending is enabled for this pipeline.
	//
	// Returns:
	//   - bool: true if blending is enabled, false otherwise
	BlendEnabled() bool

	// CullMode returns the cull mode configured for this pipeline.
	//
	// Returns:
	//   - wgpu.CullMode: the cull mode for this pipeline (e.g., wgpu.CullModeNone, wgpu.CullModeBack)
	CullMode() wgpu.CullMode

	// Topology returns the primitive topology configured for this pipeline.
	//
	// Returns:
	//   - wgpu.PrimitiveTopology: the primitive topology for this pipeline
	Topology() wgpu.PrimitiveTopology

	// FrontFace returns the front face winding order configured for this pipeline.
	//
	// Returns:
	//   - wgpu.FrontFace: the front face winding order for this pipeline
	FrontFace() wgpu.FrontFace

	// WriteMask returns the color write mask configured for this pipeline.
	//
	// Returns:
	//   - wgpu.ColorWriteMask: the color write mask for this pipeline
	WriteMask() wgpu.ColorWriteMask

	// BlendState returns the blend state configured for this pipeline.
	//
	// Returns:
	//   - *wgpu.BlendState: the blend state applied when blending is enabled
	BlendState() *wgpu.BlendState

	// ColorFormats returns the color target formats in location order. An empty list makes a depth-only pipeline.
	//
	// Returns:
	//   - []wgpu.TextureFormat: the color target formats
	ColorFormats() []wgpu.TextureFormat

	// Release frees the GPU pipeline and shader module. The configuration is kept so Build can run again.
	Release()
}

var _ Pipeline = &pipeline{}

// NewPipeline is the entry point to create a new Pipeline interface. A PipelineType and shader variant must be provided upon creation.
//
// Parameters:
//   - pipelineKey: the unique key for this pipeline
//   - pipelineType: the type of pipeline to create (render or compute)
//   - s: the shader variant the pipeline compiles
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: a new Pipeline instance with the specified type and configuration
func NewPipeline(pipelineKey string, pipelineType PipelineType, s shader.Shader, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		pipelineKey:       pipelineKey,
		pipelineType:      pipelineType,
		shader:            s,
		depthTestEnabled:  true,
		depthWriteEnabled: true,
		depthCompare:      wgpu.CompareFunctionLess,
		depthFormat:       wgpu.TextureFormatUndefined,
		blendEnabled:      false,
		cullMode:          wgpu.CullModeNone,
		topology:          wgpu.PrimitiveTopologyTriangleList,
		frontFace:         wgpu.FrontFaceCCW,
		writeMask:         wgpu.ColorWriteMaskAll,
		blendState: &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *pipeline) Type() PipelineType {
	return p.pipelineType
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) Shader() shader.Shader {
	return p.shader
}

func (p *pipeline) Build(device gpu.Device, layouts []Layout) error {
	if p.shader == nil {
		return fmt.Errorf("pipeline %q: %w", p.pipelineKey, ErrMissingStage)
	}
	if err := p.checkStages(); err != nil {
		return err
	}
	for _, b := range p.shader.Bindings() {
		if int(b.Group) >= len(layouts) {
			return fmt.Errorf("pipeline %q: @group(%d) %s has no layout: %w", p.pipelineKey, b.Group, b.Name, shader.ErrLayoutMismatch)
		}
	}
	for i, l := range layouts {
		if err := p.shader.CheckLayout(uint32(i), l.Descriptor); err != nil {
			return fmt.Errorf("pipeline %q: %w", p.pipelineKey, err)
		}
	}
	p.Release()

	module, err := device.CreateShaderModule(p.shader.Key(), p.shader.Source())
	if err != nil {
		return fmt.Errorf("pipeline %q: %w", p.pipelineKey, err)
	}

	handles := make([]gpu.BindGroupLayout, len(layouts))
	for i, l := range layouts {
		handles[i] = l.Handle
	}

	switch p.pipelineType {
	case PipelineTypeCompute:
		cp, err := device.CreateComputePipeline(&gpu.ComputePipelineDescriptor{
			Label:      p.pipelineKey,
			Layouts:    handles,
			Module:     module,
			EntryPoint: p.shader.EntryPoint(shader.ShaderTypeCompute),
		})
		if err != nil {
			module.Release()
			return fmt.Errorf("pipeline %q: %w", p.pipelineKey, err)
		}
		p.computePipeline = cp
	default:
		rp, err := device.CreateRenderPipeline(p.renderDescriptor(module, handles))
		if err != nil {
			module.Release()
			return fmt.Errorf("pipeline %q: %w", p.pipelineKey, err)
		}
		p.renderPipeline = rp
	}

	p.module = module
	p.layouts = append([]Layout(nil), layouts...)
	return nil
}

func (p *pipeline) checkStages() error {
	if p.pipelineType == PipelineTypeCompute {
		if !p.shader.HasStage(shader.ShaderTypeCompute) {
			return fmt.Errorf("pipeline %q compute stage: %w", p.pipelineKey, ErrMissingStage)
		}
		return nil
	}
	if !p.shader.HasStage(shader.ShaderTypeVertex) {
		return fmt.Errorf("pipeline %q vertex stage: %w", p.pipelineKey, ErrMissingStage)
	}
	if len(p.colorFormats) > 0 && !p.shader.HasStage(shader.ShaderTypeFragment) {
		return fmt.Errorf("pipeline %q fragment stage: %w", p.pipelineKey, ErrMissingStage)
	}
	return nil
}

func (p *pipeline) renderDescriptor(module gpu.ShaderModule, handles []gpu.BindGroupLayout) *gpu.RenderPipelineDescriptor {
	desc := &gpu.RenderPipelineDescriptor{
		Label:            p.pipelineKey,
		Layouts:          handles,
		Vertex:           module,
		VertexEntryPoint: p.shader.EntryPoint(shader.ShaderTypeVertex),
		VertexBuffers:    p.shader.VertexLayouts(),
		Primitive: wgpu.PrimitiveState{
			Topology:  p.topology,
			FrontFace: p.frontFace,
			CullMode:  p.cullMode,
		},
		SampleCount: 1,
	}

	if len(p.colorFormats) > 0 {
		desc.Fragment = module
		desc.FragmentEntryPoint = p.shader.EntryPoint(shader.ShaderTypeFragment)
		for _, format := range p.colorFormats {
			target := wgpu.ColorTargetState{
				Format:    format,
				WriteMask: p.writeMask,
			}
			if p.blendEnabled {
				target.Blend = p.blendState
			}
			desc.Targets = append(desc.Targets, target)
		}
	}

	if p.depthFormat != wgpu.TextureFormatUndefined {
		compare := p.depthCompare
		if !p.depthTestEnabled {
			compare = wgpu.CompareFunctionAlways
		}
		desc.DepthStencil = &wgpu.DepthStencilState{
			Format:              p.depthFormat,
			DepthWriteEnabled:   p.depthWriteEnabled,
			DepthCompare:        compare,
			DepthBias:           p.depthBias,
			DepthBiasSlopeScale: p.depthBiasSlopeScale,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		}
	}
	return desc
}

func (p *pipeline) Built() bool {
	return p.renderPipeline != nil || p.computePipeline != nil
}

func (p *pipeline) Render() gpu.RenderPipeline {
	return p.renderPipeline
}

func (p *pipeline) Compute() gpu.ComputePipeline {
	return p.computePipeline
}

func (p *pipeline) Layouts() []Layout {
	return p.layouts
}

func (p *pipeline) Workgroups(width, height uint32) (uint32, uint32) {
	size := [3]uint32{1, 1, 1}
	if p.shader != nil {
		size = p.shader.WorkgroupSize()
	}
	wx, wy := max(size[0], 1), max(size[1], 1)
	return max((width+wx-1)/wx, 1), max((height+wy-1)/wy, 1)
}

func (p *pipeline) DepthTestEnabled() bool {
	return p.depthTestEnabled
}

func (p *pipeline) DepthWriteEnabled() bool {
	return p.depthWriteEnabled
}

func (p *pipeline) DepthCompare() wgpu.CompareFunction {
	return p.depthCompare
}

func (p *pipeline) DepthFormat() wgpu.TextureFormat {
	return p.depthFormat
}

func (p *pipeline) DepthBias() int32 {
	return p.depthBias
}

func (p *pipeline) DepthBiasSlopeScale() float32 {
	return p.depthBiasSlopeScale
}

func (p *pipeline) BlendEnabled() bool {
	return p.blendEnabled
}

func (p *pipeline) CullMode() wgpu.CullMode {
	return p.cullMode
}

func (p *pipeline) Topology() wgpu.PrimitiveTopology {
	return p.topology
}

func (p *pipeline) FrontFace() wgpu.FrontFace {
	return p.frontFace
}

func (p *pipeline) WriteMask() wgpu.ColorWriteMask {
	return p.writeMask
}

func (p *pipeline) BlendState() *wgpu.BlendState {
	return p.blendState
}

func (p *pipeline) ColorFormats() []wgpu.TextureFormat {
	return p.colorFormats
}

func (p *pipeline) Release() {
	if p.renderPipeline != nil {
		p.renderPipeline.Release()
		p.renderPipeline = nil
	}
	if p.computePipeline != nil {
		p.computePipeline.Release()
		p.computePipeline = nil
	}
	if p.module != nil {
		p.module.Release()
		p.module = nil
	}
	p.layouts = nil
}
