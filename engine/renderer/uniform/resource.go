package uniform

import (
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// Resource is a sampler or texture binding. It has no buffer footprint; its value is the GPU handle
// bound when the bind group is created.
type Resource struct {
	kind    Kind
	sampler gpu.Sampler
	view    gpu.TextureView

	samplerType   wgpu.SamplerBindingType
	sampleType    wgpu.TextureSampleType
	viewDimension wgpu.TextureViewDimension
	format        wgpu.TextureFormat
}

var _ Property = &Resource{}

// NewSampler creates a sampler binding of the given type (filtering, comparison, non-filtering).
func NewSampler(bindingType wgpu.SamplerBindingType) *Resource {
	return &Resource{kind: KindSampler, samplerType: bindingType}
}

// NewTexture creates a sampled 2D texture binding.
func NewTexture(sampleType wgpu.TextureSampleType) *Resource {
	return &Resource{kind: KindTexture, sampleType: sampleType, viewDimension: wgpu.TextureViewDimension2D}
}

// NewStorageTexture creates a write-only 2D storage texture binding.
func NewStorageTexture(format wgpu.TextureFormat) *Resource {
	return &Resource{kind: KindStorageTexture, format: format, viewDimension: wgpu.TextureViewDimension2D}
}

func (r *Resource) Kind() Kind    { return r.kind }
func (r *Resource) Align() uint64 { return NotResident }
func (r *Resource) Size() uint64  { return NotResident }

// Set accepts a gpu.Sampler for sampler bindings and a gpu.TextureView for texture bindings.
func (r *Resource) Set(v any) {
	if r.kind == KindSampler {
		if s, ok := v.(gpu.Sampler); ok {
			r.sampler = s
		}
		return
	}
	if view, ok := v.(gpu.TextureView); ok {
		r.view = view
	}
}

func (r *Resource) Write([]byte, uint64) {}

// Sampler returns the bound sampler, or nil.
func (r *Resource) Sampler() gpu.Sampler { return r.sampler }

// View returns the bound texture view, or nil.
func (r *Resource) View() gpu.TextureView { return r.view }

func (r *Resource) layoutEntry(entry *wgpu.BindGroupLayoutEntry) {
	switch r.kind {
	case KindSampler:
		entry.Sampler.Type = r.samplerType
	case KindTexture:
		entry.Texture.SampleType = r.sampleType
		entry.Texture.ViewDimension = r.viewDimension
		entry.Texture.Multisampled = false
	case KindStorageTexture:
		entry.StorageTexture.Access = wgpu.StorageTextureAccessWriteOnly
		entry.StorageTexture.Format = r.format
		entry.StorageTexture.ViewDimension = r.viewDimension
	}
}
