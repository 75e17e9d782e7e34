package pipeline

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/gpu/gputest"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/uniform"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const litSource = `
struct Camera {
	viewProj: mat4x4<f32>,
}
@group(0) @binding(0) var<uniform> camera: Camera;

struct VertexInput {
	@location(0) position: vec3<f32>,
}

@vertex
fn vs_main(in: VertexInput) -> @builtin(position) vec4<f32> {
	return camera.viewProj * vec4<f32>(in.position, 1.0);
}

@fragment
fn fs_main() -> @location(0) vec4<f32> {
	return vec4<f32>(1.0);
}
`

const depthSource = `
@group(0) @binding(0) var<uniform> viewProj: mat4x4<f32>;

struct VertexInput {
	@location(0) position: vec3<f32>,
}

@vertex
fn vs_depth(in: VertexInput) -> @builtin(position) vec4<f32> {
	return viewProj * vec4<f32>(in.position, 1.0);
}
`

const reduceSource = `
@group(0) @binding(0) var src: texture_2d<f32>;
@group(0) @binding(1) var dst: texture_storage_2d<r32float, write>;

@compute @workgroup_size(8, 8)
fn build(@builtin(global_invocation_id) id: vec3<u32>) {
	textureStore(dst, vec2<i32>(id.xy), textureLoad(src, vec2<i32>(id.xy), 0));
}
`

func newShader(t *testing.T, key, source string) shader.Shader {
	t.Helper()
	s, err := shader.NewShader(key, source)
	require.NoError(t, err)
	return s
}

func layoutOf(t *testing.T, d *gputest.Device, entries ...uniform.Entry) Layout {
	t.Helper()
	g, err := uniform.NewBindGroup("test", entries...)
	require.NoError(t, err)
	desc := g.LayoutDescriptor()
	h, err := d.CreateBindGroupLayout(&desc)
	require.NoError(t, err)
	return Layout{Descriptor: desc, Handle: h}
}

func cameraLayout(t *testing.T, d *gputest.Device) Layout {
	return layoutOf(t, d, uniform.Entry{Name: "camera", Binding: 0, Visibility: wgpu.ShaderStageVertex, Property: uniform.NewMat4()})
}

func TestNewPipelineDefaults(t *testing.T) {
	p := NewPipeline("p", PipelineTypeRender, nil)

	assert.Equal(t, "p", p.PipelineKey())
	assert.Equal(t, PipelineTypeRender, p.Type())
	assert.True(t, p.DepthTestEnabled())
	assert.True(t, p.DepthWriteEnabled())
	assert.Equal(t, wgpu.CompareFunctionLess, p.DepthCompare())
	assert.Equal(t, wgpu.TextureFormatUndefined, p.DepthFormat())
	assert.False(t, p.BlendEnabled())
	assert.Equal(t, wgpu.CullModeNone, p.CullMode())
	assert.Equal(t, wgpu.PrimitiveTopologyTriangleList, p.Topology())
	assert.Equal(t, wgpu.FrontFaceCCW, p.FrontFace())
	assert.Equal(t, wgpu.ColorWriteMaskAll, p.WriteMask())
	assert.NotNil(t, p.BlendState())
	assert.Empty(t, p.ColorFormats())
	assert.False(t, p.Built())
}

func TestBuildRenderPipeline(t *testing.T) {
	d := gputest.NewDevice()
	s := newShader(t, "lit.wgsl", litSource)
	p := NewPipeline("lit", PipelineTypeRender, s,
		WithColorTargets(wgpu.TextureFormatRGBA16Float),
		WithDepthFormat(wgpu.TextureFormatDepth32Float),
		WithDepthCompare(wgpu.CompareFunctionLessEqual),
		WithDepthWriteEnabled(false),
		WithCullMode(wgpu.CullModeBack),
	)

	require.NoError(t, p.Build(d, []Layout{cameraLayout(t, d)}))
	require.True(t, p.Built())
	assert.Nil(t, p.Compute())
	assert.Len(t, p.Layouts(), 1)

	rp, ok := p.Render().(*gputest.RenderPipeline)
	require.True(t, ok)
	desc := rp.Descriptor
	assert.Equal(t, "lit", desc.Label)
	assert.Equal(t, "vs_main", desc.VertexEntryPoint)
	assert.Equal(t, "fs_main", desc.FragmentEntryPoint)
	assert.NotNil(t, desc.Fragment)
	require.Len(t, desc.Targets, 1)
	assert.Equal(t, wgpu.TextureFormatRGBA16Float, desc.Targets[0].Format)
	assert.Nil(t, desc.Targets[0].Blend)
	require.Len(t, desc.VertexBuffers, 1)
	assert.Equal(t, uint64(12), desc.VertexBuffers[0].ArrayStride)
	assert.Equal(t, wgpu.CullModeBack, desc.Primitive.CullMode)
	require.NotNil(t, desc.DepthStencil)
	assert.Equal(t, wgpu.CompareFunctionLessEqual, desc.DepthStencil.DepthCompare)
	assert.False(t, desc.DepthStencil.DepthWriteEnabled)

	modules := d.ShaderModules()
	require.Len(t, modules, 1)
	assert.Equal(t, "lit.wgsl", modules[0].Label)
	assert.Equal(t, litSource, modules[0].Source)
}

func TestBuildDepthOnlyPipeline(t *testing.T) {
	d := gputest.NewDevice()
	p := NewPipeline("shadow", PipelineTypeRender, newShader(t, "depth.wgsl", depthSource),
		WithDepthFormat(wgpu.TextureFormatDepth32Float),
		WithDepthBias(2, 1.5),
		WithDepthTestEnabled(false),
	)
	require.NoError(t, p.Build(d, []Layout{cameraLayout(t, d)}))

	desc := p.Render().(*gputest.RenderPipeline).Descriptor
	assert.Nil(t, desc.Fragment)
	assert.Empty(t, desc.Targets)
	require.NotNil(t, desc.DepthStencil)
	assert.Equal(t, wgpu.CompareFunctionAlways, desc.DepthStencil.DepthCompare)
	assert.Equal(t, int32(2), desc.DepthStencil.DepthBias)
	assert.Equal(t, float32(1.5), desc.DepthStencil.DepthBiasSlopeScale)
}

func TestBuildBlendAppliesToEveryTarget(t *testing.T) {
	d := gputest.NewDevice()
	p := NewPipeline("mrt", PipelineTypeRender, newShader(t, "lit.wgsl", litSource),
		WithColorTargets(wgpu.TextureFormatBGRA8Unorm, wgpu.TextureFormatRGBA16Float),
		WithBlendEnabled(true),
	)
	require.NoError(t, p.Build(d, []Layout{cameraLayout(t, d)}))

	desc := p.Render().(*gputest.RenderPipeline).Descriptor
	require.Len(t, desc.Targets, 2)
	for _, target := range desc.Targets {
		assert.Same(t, p.BlendState(), target.Blend)
	}
	assert.Nil(t, desc.DepthStencil)
}

func TestBuildMissingFragmentStage(t *testing.T) {
	d := gputest.NewDevice()
	p := NewPipeline("broken", PipelineTypeRender, newShader(t, "depth.wgsl", depthSource),
		WithColorTargets(wgpu.TextureFormatRGBA8Unorm),
	)

	err := p.Build(d, []Layout{cameraLayout(t, d)})
	assert.ErrorIs(t, err, ErrMissingStage)
	assert.Empty(t, d.ShaderModules())
}

func TestBuildMissingShader(t *testing.T) {
	err := NewPipeline("empty", PipelineTypeRender, nil).Build(gputest.NewDevice(), nil)
	assert.ErrorIs(t, err, ErrMissingStage)
}

func TestBuildRejectsMismatchedLayout(t *testing.T) {
	d := gputest.NewDevice()
	p := NewPipeline("lit", PipelineTypeRender, newShader(t, "lit.wgsl", litSource),
		WithColorTargets(wgpu.TextureFormatRGBA8Unorm),
	)

	wrong := layoutOf(t, d, uniform.Entry{Name: "camera", Binding: 0, Visibility: wgpu.ShaderStageVertex, Property: uniform.NewTexture(wgpu.TextureSampleTypeFloat)})
	err := p.Build(d, []Layout{wrong})
	assert.ErrorIs(t, err, shader.ErrLayoutMismatch)
	assert.False(t, p.Built())
	assert.Empty(t, d.ShaderModules())

	err = p.Build(d, nil)
	assert.ErrorIs(t, err, shader.ErrLayoutMismatch)
}

func TestBuildShaderModuleFailure(t *testing.T) {
	d := gputest.NewDevice()
	d.FailModule = "lit.wgsl"
	p := NewPipeline("lit", PipelineTypeRender, newShader(t, "lit.wgsl", litSource),
		WithColorTargets(wgpu.TextureFormatRGBA8Unorm),
	)

	assert.Error(t, p.Build(d, []Layout{cameraLayout(t, d)}))
	assert.False(t, p.Built())
}

func TestBuildComputePipeline(t *testing.T) {
	d := gputest.NewDevice()
	p := NewPipeline("reduce", PipelineTypeCompute, newShader(t, "reduce.wgsl", reduceSource))
	layout := layoutOf(t, d,
		uniform.Entry{Name: "src", Binding: 0, Visibility: wgpu.ShaderStageCompute, Property: uniform.NewTexture(wgpu.TextureSampleTypeUnfilterableFloat)},
		uniform.Entry{Name: "dst", Binding: 1, Visibility: wgpu.ShaderStageCompute, Property: uniform.NewStorageTexture(wgpu.TextureFormatR32Float)},
	)

	require.NoError(t, p.Build(d, []Layout{layout}))
	assert.Nil(t, p.Render())
	cp, ok := p.Compute().(*gputest.ComputePipeline)
	require.True(t, ok)
	assert.Equal(t, "build", cp.Descriptor.EntryPoint)

	x, y := p.Workgroups(17, 8)
	assert.Equal(t, uint32(3), x)
	assert.Equal(t, uint32(1), y)
	x, y = p.Workgroups(0, 0)
	assert.Equal(t, uint32(1), x)
	assert.Equal(t, uint32(1), y)

	p.Release()
	assert.False(t, p.Built())
	assert.Nil(t, p.Layouts())
}

func TestBuildComputeRequiresComputeStage(t *testing.T) {
	d := gputest.NewDevice()
	p := NewPipeline("reduce", PipelineTypeCompute, newShader(t, "lit.wgsl", litSource))
	assert.ErrorIs(t, p.Build(d, []Layout{cameraLayout(t, d)}), ErrMissingStage)
}
