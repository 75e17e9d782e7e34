package model

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-pipeline/common"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer/uniform"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

// Material flag bits, matching the constants of the material shader include.
const (
	FlagAlbedoMap uint32 = 1 << 0
	FlagNormalMap uint32 = 1 << 1
)

// material is the implementation of the Material interface.
type material struct {
	mu sync.Mutex

	label       string
	baseColor   mgl32.Vec4
	emissive    mgl32.Vec4
	metallic    float32
	roughness   float32
	normalScale float32

	albedoSource *common.ImportedTexture
	normalSource *common.ImportedTexture

	albedo  texture
	normal  texture
	sampler gpu.Sampler
}

type texture struct {
	tex  gpu.Texture
	view gpu.TextureView
}

func (t *texture) release() {
	if t.view != nil {
		t.view.Release()
		t.view = nil
	}
	if t.tex != nil {
		t.tex.Release()
		t.tex = nil
	}
}

// Material defines a PBR metallic-roughness surface with optional albedo and normal textures.
//
// Scalar properties are read at every frame through ToBindGroup. Textures are decoded and uploaded
// by Upload; a texture that fails to decode fails the upload.
type Material interface {
	renderer.Material

	// BaseColor returns the albedo color (RGBA).
	BaseColor() mgl32.Vec4

	// Metallic returns the metallic factor (0.0 = dielectric, 1.0 = metal).
	Metallic() float32

	// Roughness returns the roughness factor (0.0 = smooth, 1.0 = rough).
	Roughness() float32

	// Flags returns the bits of the textures that are resident on the GPU.
	Flags() uint32

	// SetBaseColor sets the albedo color.
	//
	// Parameters:
	//   - c: the RGBA color
	SetBaseColor(c mgl32.Vec4)

	// SetEmissive sets the emitted color; alpha is the emission strength.
	//
	// Parameters:
	//   - c: the RGBA emission
	SetEmissive(c mgl32.Vec4)
}

var _ Material = &material{}

// NewMaterial creates a new Material instance configured with the provided options.
// Defaults to an opaque white dielectric with full roughness.
//
// Parameters:
//   - label: the debug name
//   - options: variadic list of MaterialBuilderOption functions to configure the material
//
// Returns:
//   - Material: a new Material instance
func NewMaterial(label string, options ...MaterialBuilderOption) Material {
	m := &material{
		label:       label,
		baseColor:   mgl32.Vec4{1, 1, 1, 1},
		roughness:   1,
		normalScale: 1,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// NewMaterialFromImported creates a Material from properties read out of a model file.
//
// Parameters:
//   - imported: the imported material
//
// Returns:
//   - Material: a new Material instance
func NewMaterialFromImported(imported common.ImportedMaterial) Material {
	opts := []MaterialBuilderOption{
		WithBaseColor(imported.BaseColor[0], imported.BaseColor[1], imported.BaseColor[2], imported.BaseColor[3]),
		WithMetallicRoughness(imported.Metallic, imported.Roughness),
	}
	if e := imported.Emissive; e != [3]float32{} {
		opts = append(opts, WithEmissive(e[0], e[1], e[2], 1))
	}
	if imported.DiffuseTexture != nil {
		opts = append(opts, WithAlbedoTexture(imported.DiffuseTexture))
	}
	if imported.NormalTexture != nil {
		opts = append(opts, WithNormalTexture(imported.NormalTexture))
	}
	return NewMaterial(imported.Name, opts...)
}

func (m *material) Label() string {
	return m.label
}

func (m *material) BaseColor() mgl32.Vec4 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.baseColor
}

func (m *material) Metallic() float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metallic
}

func (m *material) Roughness() float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.roughness
}

func (m *material) SetBaseColor(c mgl32.Vec4) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.baseColor = c
}

func (m *material) SetEmissive(c mgl32.Vec4) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emissive = c
}

func (m *material) Flags() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flags()
}

func (m *material) flags() uint32 {
	var f uint32
	if m.albedo.view != nil {
		f |= FlagAlbedoMap
	}
	if m.normal.view != nil {
		f |= FlagNormalMap
	}
	return f
}

func (m *material) Upload(device gpu.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.albedoSource != nil && m.albedo.view == nil {
		t, err := uploadTexture(device, m.label+".albedo", m.albedoSource, wgpu.TextureFormatRGBA8UnormSrgb)
		if err != nil {
			return err
		}
		m.albedo = t
	}
	if m.normalSource != nil && m.normal.view == nil {
		t, err := uploadTexture(device, m.label+".normal", m.normalSource, wgpu.TextureFormatRGBA8Unorm)
		if err != nil {
			return err
		}
		m.normal = t
	}

	if m.sampler == nil {
		if sd := samplerData(m.albedoSource, m.normalSource); sd != nil {
			s, err := device.CreateSampler(&wgpu.SamplerDescriptor{
				Label:         m.label + ".sampler",
				AddressModeU:  sd.AddressModeU,
				AddressModeV:  sd.AddressModeV,
				AddressModeW:  sd.AddressModeW,
				MagFilter:     sd.MagFilter,
				MinFilter:     sd.MinFilter,
				MipmapFilter:  sd.MipmapFilter,
				LodMinClamp:   sd.LodMinClamp,
				LodMaxClamp:   sd.LodMaxClamp,
				MaxAnisotropy: max(sd.MaxAnisotropy, 1),
			})
			if err != nil {
				return fmt.Errorf("failed to create sampler %s: %w", m.label, err)
			}
			m.sampler = s
		}
	}
	return nil
}

func samplerData(textures ...*common.ImportedTexture) *common.SamplerStagingData {
	for _, t := range textures {
		if t != nil && t.SamplerData != nil {
			return t.SamplerData
		}
	}
	return nil
}

func uploadTexture(device gpu.Device, label string, source *common.ImportedTexture, format wgpu.TextureFormat) (texture, error) {
	pixels, width, height, err := source.Decode()
	if err != nil {
		return texture{}, fmt.Errorf("failed to decode texture %s: %w", label, err)
	}
	tex, err := device.CreateTexture(&gpu.TextureDescriptor{
		Label:         label,
		Width:         width,
		Height:        height,
		MipLevelCount: 1,
		SampleCount:   1,
		Format:        format,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
	})
	if err != nil {
		return texture{}, fmt.Errorf("failed to create texture %s: %w", label, err)
	}
	t := texture{tex: tex}
	if err := device.Queue().WriteTexture(tex, pixels, 4*width); err != nil {
		t.release()
		return texture{}, fmt.Errorf("failed to write texture %s: %w", label, err)
	}
	if t.view, err = tex.CreateView(nil); err != nil {
		t.release()
		return texture{}, fmt.Errorf("failed to create texture view %s: %w", label, err)
	}
	return t, nil
}

func (m *material) ToBindGroup(g *uniform.BindGroup) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g.Set("material", map[string]any{
		"baseColor":   m.baseColor,
		"emissive":    m.emissive,
		"metallic":    m.metallic,
		"roughness":   m.roughness,
		"normalScale": m.normalScale,
		"flags":       m.flags(),
	})
	if m.albedo.view != nil {
		g.Set("albedoMap", m.albedo.view)
	}
	if m.normal.view != nil {
		g.Set("normalMap", m.normal.view)
	}
	if m.sampler != nil {
		g.Set("materialSampler", m.sampler)
	}
}

func (m *material) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.albedo.release()
	m.normal.release()
	if m.sampler != nil {
		m.sampler.Release()
		m.sampler = nil
	}
}
