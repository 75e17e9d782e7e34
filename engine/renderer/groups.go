package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/uniform"
	"github.com/cogentcore/webgpu/wgpu"
)

// MaxPointLights is the capacity of the point light array in the scene group.
const MaxPointLights = 16

// Bind group labels. Groups sharing a layout key share one GPU layout.
const (
	groupScene       = "scene"
	groupEarlyZ      = "earlyz.scene"
	groupShadowView  = "shadow.view"
	groupObject      = "object"
	groupMaterial    = "material"
	groupGBuffer     = "gbuffer"
	groupComposition = "composition"
	groupHiZCopy     = "hiz.copy"
	groupHiZReduce   = "hiz.reduce"
)

const (
	visVertex   = wgpu.ShaderStageVertex
	visFragment = wgpu.ShaderStageFragment
	visRender   = wgpu.ShaderStageVertex | wgpu.ShaderStageFragment
	visCompute  = wgpu.ShaderStageCompute
)

func newCameraStruct() (*uniform.Struct, error) {
	return uniform.NewStruct(
		uniform.F("viewProj", uniform.NewMat4()),
		uniform.F("view", uniform.NewMat4()),
		uniform.F("invViewProj", uniform.NewMat4()),
		uniform.F("position", uniform.NewVec3()),
		uniform.F("near", uniform.NewF32()),
		uniform.F("screen", uniform.NewVec4()),
	)
}

func newLightingStruct() (*uniform.Struct, error) {
	return uniform.NewStruct(
		uniform.F("ambient", uniform.NewVec4()),
		uniform.F("sunDirection", uniform.NewVec4()),
		uniform.F("sunColor", uniform.NewVec4()),
		uniform.F("shadowViewProj", uniform.NewMat4()),
		uniform.F("pointCount", uniform.NewU32()),
		uniform.F("shadowEnabled", uniform.NewU32()),
		uniform.F("shadowTexel", uniform.NewF32()),
	)
}

func newPointLightStruct() uniform.Property {
	s, _ := uniform.NewStruct(
		uniform.F("position", uniform.NewVec4()),
		uniform.F("color", uniform.NewVec4()),
	)
	return s
}

// newSceneGroup builds group 0 of the shading passes: camera, lighting, point lights, the shadow map
// with its comparison sampler, and the Hi-Z pyramid.
func newSceneGroup() (*uniform.BindGroup, error) {
	camera, err := newCameraStruct()
	if err != nil {
		return nil, err
	}
	lighting, err := newLightingStruct()
	if err != nil {
		return nil, err
	}
	points, err := uniform.NewArray(MaxPointLights, newPointLightStruct)
	if err != nil {
		return nil, err
	}
	return uniform.NewBindGroup(groupScene,
		uniform.Entry{Name: "camera", Binding: 0, Visibility: visRender, Property: camera},
		uniform.Entry{Name: "lighting", Binding: 1, Visibility: visRender, Property: lighting},
		uniform.Entry{Name: "points", Binding: 2, Visibility: visRender, Property: points},
		uniform.Entry{Name: "shadowMap", Binding: 3, Visibility: visFragment, Property: uniform.NewTexture(wgpu.TextureSampleTypeDepth)},
		uniform.Entry{Name: "shadowSampler", Binding: 4, Visibility: visFragment, Property: uniform.NewSampler(wgpu.SamplerBindingTypeComparison)},
		uniform.Entry{Name: "hiz", Binding: 5, Visibility: visRender, Property: uniform.NewTexture(wgpu.TextureSampleTypeUnfilterableFloat)},
	)
}

// newEarlyZGroup builds group 0 of the early depth pass.
func newEarlyZGroup() (*uniform.BindGroup, error) {
	camera, err := newCameraStruct()
	if err != nil {
		return nil, err
	}
	return uniform.NewBindGroup(groupEarlyZ,
		uniform.Entry{Name: "camera", Binding: 0, Visibility: visVertex, Property: camera},
		uniform.Entry{Name: "hiz", Binding: 1, Visibility: visVertex, Property: uniform.NewTexture(wgpu.TextureSampleTypeUnfilterableFloat)},
	)
}

// NewShadowViewGroup builds the group a shadow-casting light binds at index 0 of the shadow depth pass.
// Its single entry "lightViewProj" holds the light's view-projection matrix.
//
// Parameters:
//   - label: a debug label, usually derived from the light
//
// Returns:
//   - *uniform.BindGroup: the view group
//   - error: an error if the group cannot be built
func NewShadowViewGroup(label string) (*uniform.BindGroup, error) {
	return uniform.NewBindGroup(label,
		uniform.Entry{Name: "lightViewProj", Binding: 0, Visibility: visVertex, Property: uniform.NewMat4()},
	)
}

// newObjectGroup builds group 1 of every geometry pass for one draw with room for capacity instances.
func newObjectGroup(label string, capacity int) (*uniform.BindGroup, error) {
	object, err := uniform.NewStruct(
		uniform.F("model", uniform.NewMat4()),
		uniform.F("normalModel", uniform.NewMat4()),
		uniform.F("instanceCount", uniform.NewU32()),
		uniform.F("radius", uniform.NewF32()),
	)
	if err != nil {
		return nil, err
	}
	instances, err := uniform.NewArray(max(capacity, 1), func() uniform.Property { return uniform.NewMat4() })
	if err != nil {
		return nil, err
	}
	return uniform.NewBindGroup(label,
		uniform.Entry{Name: "object", Binding: 0, Visibility: visRender, Property: object},
		uniform.Entry{Name: "instances", Binding: 1, Visibility: visRender, Property: instances, Storage: uniform.StorageRead},
	)
}

// newMaterialGroup builds group 2 of the shading geometry passes.
func newMaterialGroup(label string) (*uniform.BindGroup, error) {
	material, err := uniform.NewStruct(
		uniform.F("baseColor", uniform.NewVec4([4]float32{1, 1, 1, 1})),
		uniform.F("emissive", uniform.NewVec4()),
		uniform.F("metallic", uniform.NewF32()),
		uniform.F("roughness", uniform.NewF32(float32(1))),
		uniform.F("normalScale", uniform.NewF32(float32(1))),
		uniform.F("flags", uniform.NewU32()),
	)
	if err != nil {
		return nil, err
	}
	return uniform.NewBindGroup(label,
		uniform.Entry{Name: "material", Binding: 0, Visibility: visFragment, Property: material},
		uniform.Entry{Name: "albedoMap", Binding: 1, Visibility: visFragment, Property: uniform.NewTexture(wgpu.TextureSampleTypeFloat)},
		uniform.Entry{Name: "normalMap", Binding: 2, Visibility: visFragment, Property: uniform.NewTexture(wgpu.TextureSampleTypeFloat)},
		uniform.Entry{Name: "materialSampler", Binding: 3, Visibility: visFragment, Property: uniform.NewSampler(wgpu.SamplerBindingTypeFiltering)},
	)
}

// newGBufferGroup builds group 1 of the deferred lighting pass.
func newGBufferGroup() (*uniform.BindGroup, error) {
	return uniform.NewBindGroup(groupGBuffer,
		uniform.Entry{Name: "gAlbedo", Binding: 0, Visibility: visFragment, Property: uniform.NewTexture(wgpu.TextureSampleTypeUnfilterableFloat)},
		uniform.Entry{Name: "gNormal", Binding: 1, Visibility: visFragment, Property: uniform.NewTexture(wgpu.TextureSampleTypeUnfilterableFloat)},
		uniform.Entry{Name: "gParams", Binding: 2, Visibility: visFragment, Property: uniform.NewTexture(wgpu.TextureSampleTypeUnfilterableFloat)},
		uniform.Entry{Name: "gDepth", Binding: 3, Visibility: visFragment, Property: uniform.NewTexture(wgpu.TextureSampleTypeDepth)},
	)
}

// newCompositionGroup builds the group of one ping-pong direction of the composition pass.
func newCompositionGroup(label string) (*uniform.BindGroup, error) {
	composition, err := uniform.NewStruct(
		uniform.F("historyWeight", uniform.NewF32()),
		uniform.F("exposure", uniform.NewF32(float32(1))),
	)
	if err != nil {
		return nil, err
	}
	return uniform.NewBindGroup(label,
		uniform.Entry{Name: "composition", Binding: 0, Visibility: visFragment, Property: composition},
		uniform.Entry{Name: "current", Binding: 1, Visibility: visFragment, Property: uniform.NewTexture(wgpu.TextureSampleTypeFloat)},
		uniform.Entry{Name: "history", Binding: 2, Visibility: visFragment, Property: uniform.NewTexture(wgpu.TextureSampleTypeFloat)},
		uniform.Entry{Name: "linearSampler", Binding: 3, Visibility: visFragment, Property: uniform.NewSampler(wgpu.SamplerBindingTypeFiltering)},
	)
}

// newHiZGroup builds the group of one Hi-Z dispatch. Level zero reads the depth buffer, later levels
// read the previous mip.
func newHiZGroup(label string, level uint32) (*uniform.BindGroup, error) {
	sampleType := wgpu.TextureSampleTypeUnfilterableFloat
	if level == 0 {
		sampleType = wgpu.TextureSampleTypeDepth
	}
	return uniform.NewBindGroup(label,
		uniform.Entry{Name: "src", Binding: 0, Visibility: visCompute, Property: uniform.NewTexture(sampleType)},
		uniform.Entry{Name: "dst", Binding: 1, Visibility: visCompute, Property: uniform.NewStorageTexture(wgpu.TextureFormatR32Float)},
	)
}

// layout returns the cached GPU layout for key, creating it from g on first use.
func (r *renderer) layout(key string, g *uniform.BindGroup) (pipeline.Layout, error) {
	if l, ok := r.layouts[key]; ok {
		return l, nil
	}
	desc := g.LayoutDescriptor()
	desc.Label = key
	h, err := r.device.CreateBindGroupLayout(&desc)
	if err != nil {
		return pipeline.Layout{}, fmt.Errorf("bind group layout %q: %w", key, err)
	}
	l := pipeline.Layout{Descriptor: desc, Handle: h}
	r.layouts[key] = l
	return l, nil
}

func (r *renderer) releaseLayouts() {
	for key, l := range r.layouts {
		l.Handle.Release()
		delete(r.layouts, key)
	}
}
