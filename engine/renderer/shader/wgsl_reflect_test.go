package shader

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/uniform"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const litSource = `
struct Camera {
    viewProj: mat4x4<f32>,
    position: vec3<f32>,
    near: f32,
}

struct VertexInput {
    @location(0) position: vec3<f32>,
    @location(1) normal: vec3<f32>,
    @location(2) uv: vec2<f32>,
}

struct VertexOutput {
    @builtin(position) clip: vec4<f32>,
    @location(0) uv: vec2<f32>,
}

@group(0) @binding(0) var<uniform> camera: Camera;
@group(0) @binding(1) var<storage, read> instances: array<mat4x4<f32>>;
@group(1) @binding(3) var shadowSampler: sampler_comparison;
@group(1) @binding(0) var albedo: texture_2d<f32>;
@group(1) @binding(1) var albedoSampler: sampler;
@group(1) @binding(2) var shadowMap: texture_depth_2d;
// @group(2) @binding(0) var<uniform> unused: Camera;

@vertex
fn vs_main(in: VertexInput, @builtin(instance_index) i: u32) -> VertexOutput {
    var out: VertexOutput;
    out.clip = camera.viewProj * instances[i] * vec4<f32>(in.position, 1.0);
    out.uv = in.uv;
    return out;
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    return textureSample(albedo, albedoSampler, in.uv);
}
`

const downsampleSource = `
@group(0) @binding(0) var src: texture_2d<f32>;
@group(0) @binding(1) var dst: texture_storage_2d<r32float, write>;

@compute @workgroup_size(8, 8)
fn downsample(@builtin(global_invocation_id) id: vec3<u32>) {
    textureStore(dst, id.xy, textureLoad(src, id.xy * 2u, 0));
}
`

func TestNewShaderReflectsEntryPoints(t *testing.T) {
	s, err := NewShader("lit", litSource)
	require.NoError(t, err)

	assert.Equal(t, "vs_main", s.EntryPoint(ShaderTypeVertex))
	assert.Equal(t, "fs_main", s.EntryPoint(ShaderTypeFragment))
	assert.False(t, s.HasStage(ShaderTypeCompute))
	assert.Equal(t, [3]uint32{0, 0, 0}, s.WorkgroupSize())
}

func TestNewShaderVertexLayouts(t *testing.T) {
	s, err := NewShader("lit", litSource)
	require.NoError(t, err)

	layouts := s.VertexLayouts()
	require.Len(t, layouts, 1)
	assert.Equal(t, uint64(32), layouts[0].ArrayStride)
	assert.Equal(t, wgpu.VertexStepModeVertex, layouts[0].StepMode)
	require.Len(t, layouts[0].Attributes, 3)
	assert.Equal(t, wgpu.VertexAttribute{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0}, layouts[0].Attributes[0])
	assert.Equal(t, wgpu.VertexAttribute{Format: wgpu.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1}, layouts[0].Attributes[1])
	assert.Equal(t, wgpu.VertexAttribute{Format: wgpu.VertexFormatFloat32x2, Offset: 24, ShaderLocation: 2}, layouts[0].Attributes[2])
}

func TestNewShaderBindings(t *testing.T) {
	s, err := NewShader("lit", litSource)
	require.NoError(t, err)

	bindings := s.Bindings()
	require.Len(t, bindings, 6)

	names := make([]string, len(bindings))
	for i, b := range bindings {
		names[i] = b.Name
		assert.Equal(t, wgpu.ShaderStageVertex|wgpu.ShaderStageFragment, b.Entry.Visibility)
	}
	assert.Equal(t, []string{"camera", "instances", "albedo", "albedoSampler", "shadowMap", "shadowSampler"}, names)

	assert.Equal(t, wgpu.BufferBindingTypeUniform, bindings[0].Entry.Buffer.Type)
	assert.Equal(t, uint64(80), bindings[0].Entry.Buffer.MinBindingSize)
	assert.Equal(t, wgpu.BufferBindingTypeReadOnlyStorage, bindings[1].Entry.Buffer.Type)
	assert.Equal(t, uint64(64), bindings[1].Entry.Buffer.MinBindingSize)
	assert.Equal(t, wgpu.TextureSampleTypeFloat, bindings[2].Entry.Texture.SampleType)
	assert.Equal(t, wgpu.TextureViewDimension2D, bindings[2].Entry.Texture.ViewDimension)
	assert.Equal(t, wgpu.SamplerBindingTypeFiltering, bindings[3].Entry.Sampler.Type)
	assert.Equal(t, wgpu.TextureSampleTypeDepth, bindings[4].Entry.Texture.SampleType)
	assert.Equal(t, wgpu.SamplerBindingTypeComparison, bindings[5].Entry.Sampler.Type)
}

func TestNewShaderComputeStage(t *testing.T) {
	s, err := NewShader("hiz", downsampleSource)
	require.NoError(t, err)

	assert.Equal(t, "downsample", s.EntryPoint(ShaderTypeCompute))
	assert.Equal(t, [3]uint32{8, 8, 1}, s.WorkgroupSize())
	assert.Nil(t, s.VertexLayouts())

	bindings := s.Bindings()
	require.Len(t, bindings, 2)
	assert.Equal(t, wgpu.ShaderStageCompute, bindings[1].Entry.Visibility)
	assert.Equal(t, wgpu.TextureFormatR32Float, bindings[1].Entry.StorageTexture.Format)
	assert.Equal(t, wgpu.StorageTextureAccessWriteOnly, bindings[1].Entry.StorageTexture.Access)
}

func TestNewShaderRequiresEntryPoint(t *testing.T) {
	_, err := NewShader("lib", "struct Only { x: f32, }")
	assert.Error(t, err)
}

func TestNestedStructSizesResolveOutOfOrder(t *testing.T) {
	src := `
struct Lighting {
    sun: Sun,
    count: u32,
}
struct Sun {
    direction: vec4<f32>,
    color: vec4<f32>,
}
struct PointLight {
    position: vec4<f32>,
    color: vec4<f32>,
}
@group(0) @binding(0) var<uniform> lighting: Lighting;
@group(0) @binding(1) var<uniform> points: array<PointLight, 16>;
@fragment fn fs() -> @location(0) vec4<f32> { return vec4<f32>(1.0); }
`
	s, err := NewShader("nested", src)
	require.NoError(t, err)

	bindings := s.Bindings()
	require.Len(t, bindings, 2)
	assert.Equal(t, uint64(48), bindings[0].Entry.Buffer.MinBindingSize)
	assert.Equal(t, uint64(512), bindings[1].Entry.Buffer.MinBindingSize)
}

func TestCheckLayoutAcceptsUniformDerivedLayout(t *testing.T) {
	s, err := NewShader("lit", litSource)
	require.NoError(t, err)

	cam, err := uniform.NewStruct(
		uniform.F("viewProj", uniform.NewMat4()),
		uniform.F("position", uniform.NewVec3()),
		uniform.F("near", uniform.NewF32()),
	)
	require.NoError(t, err)
	instances, err := uniform.NewArray(64, func() uniform.Property { return uniform.NewMat4() })
	require.NoError(t, err)

	stages := wgpu.ShaderStageVertex | wgpu.ShaderStageFragment
	scene, err := uniform.NewBindGroup("scene",
		uniform.Entry{Name: "camera", Binding: 0, Visibility: stages, Property: cam},
		uniform.Entry{Name: "instances", Binding: 1, Visibility: stages, Property: instances, Storage: uniform.StorageRead},
	)
	require.NoError(t, err)

	assert.NoError(t, s.CheckLayout(0, scene.LayoutDescriptor()))
}

func TestCheckLayoutMismatches(t *testing.T) {
	s, err := NewShader("lit", litSource)
	require.NoError(t, err)

	material := func(albedo wgpu.TextureSampleType, sampler, shadowSampler wgpu.SamplerBindingType) wgpu.BindGroupLayoutDescriptor {
		return wgpu.BindGroupLayoutDescriptor{
			Label: "material",
			Entries: []wgpu.BindGroupLayoutEntry{
				{Binding: 0, Texture: wgpu.TextureBindingLayout{SampleType: albedo, ViewDimension: wgpu.TextureViewDimension2D}},
				{Binding: 1, Sampler: wgpu.SamplerBindingLayout{Type: sampler}},
				{Binding: 2, Texture: wgpu.TextureBindingLayout{SampleType: wgpu.TextureSampleTypeDepth, ViewDimension: wgpu.TextureViewDimension2D}},
				{Binding: 3, Sampler: wgpu.SamplerBindingLayout{Type: shadowSampler}},
			},
		}
	}

	assert.NoError(t, s.CheckLayout(1, material(wgpu.TextureSampleTypeFloat, wgpu.SamplerBindingTypeFiltering, wgpu.SamplerBindingTypeComparison)))
	assert.NoError(t, s.CheckLayout(1, material(wgpu.TextureSampleTypeUnfilterableFloat, wgpu.SamplerBindingTypeNonFiltering, wgpu.SamplerBindingTypeComparison)))

	err = s.CheckLayout(1, material(wgpu.TextureSampleTypeDepth, wgpu.SamplerBindingTypeFiltering, wgpu.SamplerBindingTypeComparison))
	assert.ErrorIs(t, err, ErrLayoutMismatch)
	assert.Contains(t, err.Error(), "albedo")

	err = s.CheckLayout(1, material(wgpu.TextureSampleTypeFloat, wgpu.SamplerBindingTypeFiltering, wgpu.SamplerBindingTypeFiltering))
	assert.ErrorIs(t, err, ErrLayoutMismatch)
	assert.Contains(t, err.Error(), "shadowSampler")

	small := wgpu.BindGroupLayoutDescriptor{
		Label: "scene",
		Entries: []wgpu.BindGroupLayoutEntry{
			{Binding: 0, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform, MinBindingSize: 64}},
			{Binding: 1, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}},
		},
	}
	assert.ErrorIs(t, s.CheckLayout(0, small), ErrLayoutMismatch)

	missing := wgpu.BindGroupLayoutDescriptor{
		Label:   "scene",
		Entries: small.Entries[:1],
	}
	missing.Entries[0].Buffer.MinBindingSize = 80
	err = s.CheckLayout(0, missing)
	assert.ErrorIs(t, err, ErrLayoutMismatch)
	assert.Contains(t, err.Error(), "instances")

	assert.NoError(t, s.CheckLayout(2, wgpu.BindGroupLayoutDescriptor{}))
}

func TestCheckLayoutStorageTextureFormat(t *testing.T) {
	s, err := NewShader("hiz", downsampleSource)
	require.NoError(t, err)

	layout := func(format wgpu.TextureFormat) wgpu.BindGroupLayoutDescriptor {
		return wgpu.BindGroupLayoutDescriptor{
			Entries: []wgpu.BindGroupLayoutEntry{
				{Binding: 0, Texture: wgpu.TextureBindingLayout{SampleType: wgpu.TextureSampleTypeUnfilterableFloat}},
				{Binding: 1, StorageTexture: wgpu.StorageTextureBindingLayout{Access: wgpu.StorageTextureAccessWriteOnly, Format: format}},
			},
		}
	}

	assert.NoError(t, s.CheckLayout(0, layout(wgpu.TextureFormatR32Float)))
	assert.ErrorIs(t, s.CheckLayout(0, layout(wgpu.TextureFormatRGBA8Unorm)), ErrLayoutMismatch)
}

func TestVertexLayoutsIgnoreFragmentOutputs(t *testing.T) {
	src := `
struct GBufferOutput {
    @location(0) albedo: vec4<f32>,
    @location(1) normal: vec4<f32>,
}
struct Position {
    @location(0) position: vec3<f32>,
}
struct Color {
    @location(1) color: vec4<f32>,
}
@vertex
fn vs(
    @builtin(instance_index) instance: u32,
    color: Color,
    pos: Position,
) -> @builtin(position) vec4<f32> {
    return vec4<f32>(pos.position, 1.0);
}
@fragment
fn fs() -> GBufferOutput {
    var out: GBufferOutput;
    return out;
}
`
	s, err := NewShader("gbuffer", src)
	require.NoError(t, err)

	layouts := s.VertexLayouts()
	require.Len(t, layouts, 2)
	assert.Equal(t, uint64(16), layouts[0].ArrayStride)
	assert.Equal(t, uint32(1), layouts[0].Attributes[0].ShaderLocation)
	assert.Equal(t, uint64(12), layouts[1].ArrayStride)
}
