package model

import (
	"github.com/Carmen-Shannon/oxy-pipeline/common"
	"github.com/go-gl/mathgl/mgl32"
)

// MaterialBuilderOption is a functional option for configuring a Material via NewMaterial.
type MaterialBuilderOption func(*material)

// WithBaseColor is an option builder that sets the albedo color.
//
// Parameters:
//   - r, g, b, a: the color components
//
// Returns:
//   - MaterialBuilderOption: a function that applies the base color option to a material
func WithBaseColor(r, g, b, a float32) MaterialBuilderOption {
	return func(m *material) {
		m.baseColor = mgl32.Vec4{r, g, b, a}
	}
}

// WithEmissive is an option builder that sets the emitted color. Alpha is the emission strength.
//
// Parameters:
//   - r, g, b, strength: the emission components
//
// Returns:
//   - MaterialBuilderOption: a function that applies the emissive option to a material
func WithEmissive(r, g, b, strength float32) MaterialBuilderOption {
	return func(m *material) {
		m.emissive = mgl32.Vec4{r, g, b, strength}
	}
}

// WithMetallicRoughness is an option builder that sets the metallic and roughness factors.
// Both are clamped to [0, 1].
//
// Parameters:
//   - metallic: the metallic factor
//   - roughness: the roughness factor
//
// Returns:
//   - MaterialBuilderOption: a function that applies the factors to a material
func WithMetallicRoughness(metallic, roughness float32) MaterialBuilderOption {
	return func(m *material) {
		m.metallic = min(max(metallic, 0), 1)
		m.roughness = min(max(roughness, 0), 1)
	}
}

// WithNormalScale is an option builder that scales the tangent-space normal map XY components.
//
// Parameters:
//   - scale: the normal scale
//
// Returns:
//   - MaterialBuilderOption: a function that applies the normal scale option to a material
func WithNormalScale(scale float32) MaterialBuilderOption {
	return func(m *material) {
		m.normalScale = scale
	}
}

// WithAlbedoTexture is an option builder that sets the albedo texture source. It is decoded by Upload.
//
// Parameters:
//   - t: the texture source
//
// Returns:
//   - MaterialBuilderOption: a function that applies the albedo texture option to a material
func WithAlbedoTexture(t *common.ImportedTexture) MaterialBuilderOption {
	return func(m *material) {
		m.albedoSource = t
	}
}

// WithNormalTexture is an option builder that sets the tangent-space normal map source. It is decoded by Upload.
//
// Parameters:
//   - t: the texture source
//
// Returns:
//   - MaterialBuilderOption: a function that applies the normal texture option to a material
func WithNormalTexture(t *common.ImportedTexture) MaterialBuilderOption {
	return func(m *material) {
		m.normalSource = t
	}
}
