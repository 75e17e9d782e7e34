package loader

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-pipeline/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// extractMaterial reads a metallic-roughness material. Factors missing from the file take the
// glTF defaults: white, fully metallic, fully rough.
func (f *gltfFile) extractMaterial(index int) (*common.ImportedMaterial, error) {
	if index < 0 || index >= len(f.doc.Materials) {
		return nil, fmt.Errorf("material index %d out of range", index)
	}
	mat := &f.doc.Materials[index]
	result := &common.ImportedMaterial{
		Name:      common.Coalesce(mat.Name, fmt.Sprintf("material%d", index)),
		BaseColor: [4]float32{1, 1, 1, 1},
		Metallic:  1,
		Roughness: 1,
	}

	if mat.EmissiveFactor != nil {
		result.Emissive = *mat.EmissiveFactor
	}
	if pbr := mat.PbrMetallicRoughness; pbr != nil {
		if pbr.BaseColorFactor != nil {
			result.BaseColor = *pbr.BaseColorFactor
		}
		if pbr.MetallicFactor != nil {
			result.Metallic = *pbr.MetallicFactor
		}
		if pbr.RoughnessFactor != nil {
			result.Roughness = *pbr.RoughnessFactor
		}
		if pbr.BaseColorTexture != nil {
			tex, err := f.extractTexture(pbr.BaseColorTexture.Index, "diffuse")
			if err != nil {
				return nil, fmt.Errorf("material %q: base color texture: %w", result.Name, err)
			}
			result.DiffuseTexture = tex
		}
		if pbr.MetallicRoughnessTexture != nil {
			tex, err := f.extractTexture(pbr.MetallicRoughnessTexture.Index, "metallicRoughness")
			if err != nil {
				return nil, fmt.Errorf("material %q: metallic-roughness texture: %w", result.Name, err)
			}
			result.MetallicRoughnessTexture = tex
		}
	}
	if mat.NormalTexture != nil {
		tex, err := f.extractTexture(mat.NormalTexture.Index, "normal")
		if err != nil {
			return nil, fmt.Errorf("material %q: normal texture: %w", result.Name, err)
		}
		result.NormalTexture = tex
	}
	return result, nil
}

// extractTexture loads the encoded image bytes of a texture, from a buffer view or a URI.
func (f *gltfFile) extractTexture(index int, name string) (*common.ImportedTexture, error) {
	if index < 0 || index >= len(f.doc.Textures) {
		return nil, fmt.Errorf("texture index %d out of range", index)
	}
	tex := &f.doc.Textures[index]
	if tex.Source == nil || *tex.Source < 0 || *tex.Source >= len(f.doc.Images) {
		return nil, fmt.Errorf("texture %d has no image source", index)
	}
	img := &f.doc.Images[*tex.Source]

	result := &common.ImportedTexture{Name: common.Coalesce(img.Name, name), MimeType: img.MimeType}
	var err error
	switch {
	case img.BufferView != nil:
		result.Data, err = f.bufferView(*img.BufferView)
	case img.URI != "":
		result.Data, err = f.readURI(img.URI)
	default:
		err = fmt.Errorf("image %d has neither bufferView nor uri", *tex.Source)
	}
	if err != nil {
		return nil, err
	}

	if tex.Sampler != nil && *tex.Sampler >= 0 && *tex.Sampler < len(f.doc.Samplers) {
		result.SamplerData = samplerStagingData(&f.doc.Samplers[*tex.Sampler])
	}
	return result, nil
}

// samplerStagingData converts a glTF sampler. Unset fields take the glTF defaults: linear filtering and repeat wrapping.
func samplerStagingData(s *gltfSampler) *common.SamplerStagingData {
	result := &common.SamplerStagingData{
		AddressModeU:  wgpu.AddressModeRepeat,
		AddressModeV:  wgpu.AddressModeRepeat,
		AddressModeW:  wgpu.AddressModeRepeat,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeLinear,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	}
	if s.MagFilter != nil && *s.MagFilter == gltfFilterNearest {
		result.MagFilter = wgpu.FilterModeNearest
	}
	if s.MinFilter != nil {
		switch *s.MinFilter {
		case gltfFilterNearest, gltfFilterNearestMipmapNearest, gltfFilterNearestMipmapLinear:
			result.MinFilter = wgpu.FilterModeNearest
		}
		switch *s.MinFilter {
		case gltfFilterNearest, gltfFilterLinear, gltfFilterNearestMipmapNearest, gltfFilterLinearMipmapNearest:
			result.MipmapFilter = wgpu.MipmapFilterModeNearest
		}
	}
	if s.WrapS != nil {
		result.AddressModeU = addressMode(*s.WrapS)
	}
	if s.WrapT != nil {
		result.AddressModeV = addressMode(*s.WrapT)
	}
	return result
}

func addressMode(wrap int) wgpu.AddressMode {
	switch wrap {
	case gltfWrapClampToEdge:
		return wgpu.AddressModeClampToEdge
	case gltfWrapMirroredRepeat:
		return wgpu.AddressModeMirrorRepeat
	default:
		return wgpu.AddressModeRepeat
	}
}
